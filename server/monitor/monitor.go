// Package monitor runs the detection loop: load an image, count eggs and chickens, publish the counts, sleep.
package monitor

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/bmharper/cimg/v2"
	"github.com/cyclopcam/henhouse/pkg/nn"
	"github.com/cyclopcam/henhouse/pkg/perfstats"
	"github.com/cyclopcam/henhouse/server/config"
	"github.com/cyclopcam/henhouse/server/counter"
	"github.com/cyclopcam/henhouse/server/snapshot"
	"github.com/cyclopcam/logs"
)

type State string

const (
	StateRunning      State = "RUNNING"
	StateShuttingDown State = "SHUTTING_DOWN"
)

// Result of the most recent cycle that got as far as detection
type Result struct {
	Cycle     int64
	Time      time.Time
	Counts    counter.CountMap
	NObjects  int
	Detection string // "ok" or "failed"
	Error     string // Detection error, if Detection is "failed"
	Image     *cimg.Image // Only retained when the status server is enabled
}

// Status is a read-only view of the monitor, for the status server
type Status struct {
	State     State
	Cycle     int64
	LastError string // Most recent cycle-level error, cleared by a successful cycle
	Last      *Result
}

type Monitor struct {
	Log    logs.Log
	Memory MemoryReader // Replaceable by unit tests

	config   *config.Config
	source   snapshot.Source
	detector nn.ObjectDetector
	sensors  *Sensors
	params   *nn.DetectionParams

	// Only touched by the loop goroutine
	cycle      int64
	loadTime   perfstats.TimeAccumulator
	detectTime perfstats.TimeAccumulator

	statusLock sync.Mutex
	status     Status
}

// NewMonitor creates a monitor. detector and sensors may be nil.
func NewMonitor(log logs.Log, cfg *config.Config, source snapshot.Source, detector nn.ObjectDetector, sensors *Sensors) *Monitor {
	return &Monitor{
		Log:      log,
		Memory:   ProcessRSS,
		config:   cfg,
		source:   source,
		detector: detector,
		sensors:  sensors,
		params:   nn.NewDetectionParams(),
		status: Status{
			State: StateRunning,
		},
	}
}

// Run cycles until ctx is cancelled.
// Errors within a cycle are logged, and never stop the loop.
func (m *Monitor) Run(ctx context.Context) {
	m.Log.Infof("Starting henhouse monitoring loop, every %v, from %v", m.config.DetectionInterval, m.source.Describe())
	for {
		if err := m.RunCycle(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			m.Log.Errorf("Error in detection cycle: %v", err)
			m.Log.Infof("Continuing with next cycle...")
		}
		m.Log.Debugf("Waiting %v until next detection", m.config.DetectionInterval)
		timer := time.NewTimer(m.config.DetectionInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
		}
		if ctx.Err() != nil {
			break
		}
	}
	m.setState(StateShuttingDown)
	m.Log.Infof("Received interrupt signal, shutting down...")
}

// RunCycle performs a single cycle: load image, detect, publish.
// The returned error is always an *Error of KindRecoverable.
func (m *Monitor) RunCycle(ctx context.Context) (err error) {
	m.cycle++
	cycle := m.cycle
	m.Log.Debugf("Starting detection cycle %v (memory %v)", cycle, m.memoryString())
	m.statusLock.Lock()
	m.status.Cycle = cycle
	m.statusLock.Unlock()

	defer func() {
		if r := recover(); r != nil {
			m.Log.Errorf("Stack Trace: %v", string(debug.Stack()))
			err = Recoverable("detection cycle", fmt.Errorf("Panic: %v", r))
		}
		m.statusLock.Lock()
		if err != nil {
			m.status.LastError = err.Error()
		} else {
			m.status.LastError = ""
		}
		m.statusLock.Unlock()
	}()

	start := time.Now()
	img, err := m.source.Load(ctx)
	m.loadTime.Since(start)
	if err != nil {
		return Recoverable("load image", err)
	}

	m.detectAndPublish(cycle, img)

	if m.config.MemoryLogInterval > 0 && cycle%int64(m.config.MemoryLogInterval) == 0 {
		m.reclaimMemory(cycle)
	}
	return nil
}

// Status returns a copy of the monitor's current status
func (m *Monitor) Status() Status {
	m.statusLock.Lock()
	defer m.statusLock.Unlock()
	return m.status
}

func (m *Monitor) setState(state State) {
	m.statusLock.Lock()
	m.status.State = state
	m.statusLock.Unlock()
}

func (m *Monitor) setResult(r *Result) {
	m.statusLock.Lock()
	m.status.Last = r
	m.statusLock.Unlock()
}
