package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/akamensky/argparse"
	"github.com/coreos/go-systemd/daemon"
	"github.com/cyclopcam/henhouse/pkg/buildinfo"
	"github.com/cyclopcam/henhouse/pkg/nn"
	"github.com/cyclopcam/henhouse/pkg/nnload"
	"github.com/cyclopcam/henhouse/pkg/onnx"
	"github.com/cyclopcam/henhouse/server/config"
	hlog "github.com/cyclopcam/henhouse/server/log"
	"github.com/cyclopcam/henhouse/server/monitor"
	"github.com/cyclopcam/henhouse/server/snapshot"
	"github.com/cyclopcam/henhouse/server/status"
	"github.com/cyclopcam/logs"
)

func main() {
	parser := argparse.NewParser("henhouse", "Count eggs and chickens, and publish the counts to Home Assistant")
	modelFile := parser.String("m", "model", &argparse.Options{Help: "ONNX model file", Default: config.DefaultModelFile})
	once := parser.Flag("", "once", &argparse.Options{Help: "Run a single detection cycle and exit", Default: false})
	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Printf("Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	cfg.ModelFile = *modelFile

	baseLog, err := logs.NewLog()
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger := hlog.NewLevelLogger(baseLog, cfg.LogLevel)
	os.Exit(run(logger, cfg, *once))
}

func run(logger logs.Log, cfg *config.Config, once bool) int {
	defer logger.Close()
	logger.Infof("=== Henhouse Monitor %v starting ===", buildinfo.Version)
	for _, w := range cfg.Warnings {
		logger.Warnf("%v", w)
	}
	logger.Infof("Image source: %v", cfg.ImageSourceDescription())

	detector, err := nnload.LoadModel(logger, cfg.ModelFile, nnload.Options{
		SharedLibPath: cfg.OnnxRuntimeLib,
		ThreadingMode: nn.ThreadingModeParallel,
	})
	if err != nil {
		logger.Criticalf("Fatal error: %v", monitor.Fatal("load model", err))
		return 1
	}

	sensors, err := monitor.RegisterSensors(logger, cfg)
	if err != nil {
		logger.Warnf("Failed to set up MQTT sensors: %v", err)
		logger.Warnf("Continuing without MQTT integration")
	}

	mon := monitor.NewMonitor(logger, cfg, snapshot.NewSource(logger, cfg), detector, sensors)

	var statusServer *status.Server
	shutdown := func() {
		if statusServer != nil {
			statusServer.Shutdown()
		}
		sensors.Close()
		detector.Close()
		onnx.Shutdown()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if once {
		err := mon.RunCycle(ctx)
		shutdown()
		if err != nil {
			logger.Errorf("Error in detection cycle: %v", err)
			return 1
		}
		return 0
	}

	if cfg.StatusAddr != "" {
		statusServer = status.NewServer(hlog.NewPrefixLogger(logger, "[status]"), mon)
		if err := statusServer.ListenAndServe(cfg.StatusAddr); err != nil {
			logger.Warnf("Failed to start status server on %v: %v", cfg.StatusAddr, err)
			statusServer = nil
			cfg.StatusAddr = ""
		}
	}

	// Tell systemd that we're alive
	daemon.SdNotify(false, daemon.SdNotifyReady)

	mon.Run(ctx)

	daemon.SdNotify(false, daemon.SdNotifyStopping)
	shutdown()
	logger.Infof("=== Henhouse Monitor shutdown completed ===")
	return 0
}
