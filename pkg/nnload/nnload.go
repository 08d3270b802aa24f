package nnload

// Package nnload wraps up our 'nn' interface layer, and has concrete references to our
// neural network implementation (onnxruntime), so that you can just call one function to
// load a model, and not need to know about the implementation details.

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cyclopcam/henhouse/pkg/nn"
	"github.com/cyclopcam/henhouse/pkg/onnx"
	"github.com/cyclopcam/logs"
)

type Options struct {
	SharedLibPath string           // Path to the onnxruntime shared library. Empty = platform default.
	ThreadingMode nn.ThreadingMode // ThreadingModeParallel lets onnxruntime use all cores
}

// ModelConfigFile returns the path of the optional JSON config that sits next to the model,
// eg models/henhouse.onnx -> models/henhouse.json
func ModelConfigFile(modelFile string) string {
	return strings.TrimSuffix(modelFile, filepath.Ext(modelFile)) + ".json"
}

// LoadModelConfig reads the JSON config next to the model if there is one.
// Otherwise the config comes from the metadata inside the model file.
// The onnx runtime must already be initialized.
func LoadModelConfig(logs logs.Log, modelFile string) (*nn.ModelConfig, error) {
	configFile := ModelConfigFile(modelFile)
	if _, err := os.Stat(configFile); err == nil {
		logs.Infof("Reading model config from %v", configFile)
		config, err := nn.LoadModelConfig(configFile)
		if err != nil {
			return nil, fmt.Errorf("Error loading %v: %w", configFile, err)
		}
		return config, nil
	} else if !os.IsNotExist(err) {
		return nil, err
	}
	return onnx.ReadModelConfig(modelFile)
}

// LoadModel loads a neural network from disk.
func LoadModel(logs logs.Log, modelFile string, options Options) (nn.ObjectDetector, error) {
	if _, err := os.Stat(modelFile); err != nil {
		return nil, fmt.Errorf("Model file '%v' is not readable: %w", modelFile, err)
	}
	if ext := strings.ToLower(filepath.Ext(modelFile)); ext != ".onnx" {
		return nil, fmt.Errorf("Unrecognized NN model type '%v'", modelFile)
	}

	if err := onnx.Initialize(options.SharedLibPath); err != nil {
		return nil, err
	}

	config, err := LoadModelConfig(logs, modelFile)
	if err != nil {
		return nil, err
	}
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("Invalid model config for '%v': %w", modelFile, err)
	}
	logs.Infof("Model %v: %v, %vx%v, classes %v", filepath.Base(modelFile), config.Architecture, config.Width, config.Height, config.Classes)

	return onnx.NewDetector(config, options.ThreadingMode, modelFile)
}

func validateConfig(config *nn.ModelConfig) error {
	if config.Width <= 0 || config.Height <= 0 {
		return fmt.Errorf("Invalid input size %vx%v", config.Width, config.Height)
	}
	if len(config.Classes) == 0 {
		return fmt.Errorf("No classes")
	}
	return nil
}
