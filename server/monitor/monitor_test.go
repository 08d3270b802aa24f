package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bmharper/cimg/v2"
	"github.com/cyclopcam/henhouse/pkg/nn"
	"github.com/cyclopcam/henhouse/server/config"
	"github.com/cyclopcam/henhouse/server/counter"
	"github.com/cyclopcam/henhouse/server/log"
	"github.com/cyclopcam/henhouse/server/snapshot"
	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/require"
)

type dummyDetector struct {
	config  nn.ModelConfig
	objects []nn.ObjectDetection
	err     error
	panics  bool
}

func (d *dummyDetector) Close() {}

func (d *dummyDetector) DetectObjects(img nn.ImageCrop, params *nn.DetectionParams) ([]nn.ObjectDetection, error) {
	if d.panics {
		var objects []nn.ObjectDetection
		return objects[:1], nil
	}
	return d.objects, d.err
}

func (d *dummyDetector) Config() *nn.ModelConfig {
	return &d.config
}

func newDummyDetector(classes ...int) *dummyDetector {
	d := &dummyDetector{
		config: nn.ModelConfig{
			Architecture: "yolo11",
			Width:        640,
			Height:       640,
			Classes:      []string{"egg", "chicken"},
		},
	}
	for _, c := range classes {
		d.objects = append(d.objects, nn.ObjectDetection{Class: c, Confidence: 0.8})
	}
	return d
}

type fakeSource struct {
	img   *cimg.Image
	err   error
	loads int
}

func (s *fakeSource) Load(ctx context.Context) (*cimg.Image, error) {
	s.loads++
	if s.err != nil {
		return nil, s.err
	}
	return s.img, nil
}

func (s *fakeSource) Describe() string {
	return "fake"
}

func newFakeSource() *fakeSource {
	return &fakeSource{img: cimg.NewImage(32, 24, cimg.PixelFormatRGB)}
}

type fakeSensor struct {
	lock       sync.Mutex
	states     []any
	attributes []map[string]any
	err        error
}

func (s *fakeSensor) SetState(value any) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.err != nil {
		return s.err
	}
	s.states = append(s.states, value)
	return nil
}

func (s *fakeSensor) SetAttributes(attributes map[string]any) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.attributes = append(s.attributes, attributes)
	return nil
}

func (s *fakeSensor) States() []any {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]any(nil), s.states...)
}

func newFakeSensors() (*Sensors, *fakeSensor, *fakeSensor) {
	eggs := &fakeSensor{}
	chickens := &fakeSensor{}
	return &Sensors{Eggs: eggs, Chickens: chickens}, eggs, chickens
}

func testConfig(t *testing.T) *config.Config {
	cfg, err := config.FromLookup(func(string) (string, bool) { return "", false })
	require.NoError(t, err)
	cfg.DetectionInterval = 5 * time.Millisecond
	return cfg
}

func newTestMonitor(t *testing.T, source snapshot.Source, detector nn.ObjectDetector, sensors *Sensors) (*Monitor, *log.Recorder) {
	rec := log.NewRecorder(logs.NewTestingLog(t))
	m := NewMonitor(rec, testConfig(t), source, detector, sensors)
	m.Memory = func() (uint64, error) {
		return 100 * 1024 * 1024, nil
	}
	return m, rec
}

func TestPublishCounts(t *testing.T) {
	rec := log.NewRecorder(logs.NewTestingLog(t))
	sensors, eggs, chickens := newFakeSensors()
	PublishCounts(rec, sensors, counter.CountMap{"egg": 4, "chicken": 2, "feeder": 9}, map[string]any{"detection": "ok"})
	require.Equal(t, []any{4}, eggs.States())
	require.Equal(t, []any{2}, chickens.States())
	require.Equal(t, []map[string]any{{"detection": "ok"}}, eggs.attributes)
	require.Equal(t, 1, rec.Count(log.LevelInfo, "Published to MQTT - Eggs: 4, Chickens: 2"))

	// Absent keys are zero
	PublishCounts(rec, sensors, counter.CountMap{"feeder": 1}, nil)
	require.Equal(t, []any{4, 0}, eggs.States())
	require.Equal(t, []any{2, 0}, chickens.States())
}

func TestPublishWithoutSensors(t *testing.T) {
	rec := log.NewRecorder(logs.NewTestingLog(t))
	require.NotPanics(t, func() {
		PublishCounts(rec, nil, counter.CountMap{"egg": 1}, nil)
	})
	require.Equal(t, 0, rec.Count(log.LevelInfo, "Published to MQTT"))
}

func TestPublishFailureIsSwallowed(t *testing.T) {
	rec := log.NewRecorder(logs.NewTestingLog(t))
	sensors, eggs, chickens := newFakeSensors()
	eggs.err = errors.New("broker unreachable")
	require.NotPanics(t, func() {
		PublishCounts(rec, sensors, counter.CountMap{"egg": 1, "chicken": 1}, nil)
	})
	require.Equal(t, 1, rec.Count(log.LevelError, "broker unreachable"))
	require.Empty(t, chickens.States())
}

func TestCycleCountsAndPublishes(t *testing.T) {
	sensors, eggs, chickens := newFakeSensors()
	m, _ := newTestMonitor(t, newFakeSource(), newDummyDetector(0, 0, 0, 1, 1, 0), sensors)
	require.NoError(t, m.RunCycle(context.Background()))
	require.Equal(t, []any{4}, eggs.States())
	require.Equal(t, []any{2}, chickens.States())

	status := m.Status()
	require.Equal(t, StateRunning, status.State)
	require.Equal(t, int64(1), status.Cycle)
	require.Equal(t, "ok", status.Last.Detection)
	require.Equal(t, counter.CountMap{"egg": 4, "chicken": 2}, status.Last.Counts)
	require.Equal(t, 6, status.Last.NObjects)
	require.Equal(t, "ok", eggs.attributes[0]["detection"])
}

func TestDetectionFailurePublishesZero(t *testing.T) {
	for _, detector := range []nn.ObjectDetector{
		&dummyDetector{err: errors.New("inference exploded")},
		&dummyDetector{panics: true},
		newDummyDetector(0, 7), // class out of range
		nil,
	} {
		sensors, eggs, chickens := newFakeSensors()
		m, rec := newTestMonitor(t, newFakeSource(), detector, sensors)
		require.NoError(t, m.RunCycle(context.Background()))
		require.Equal(t, []any{0}, eggs.States())
		require.Equal(t, []any{0}, chickens.States())
		require.Equal(t, 1, rec.Count(log.LevelError, "Error during detection"))
		require.Equal(t, "failed", eggs.attributes[0]["detection"])
		require.NotEmpty(t, eggs.attributes[0]["error"])
		require.Equal(t, "failed", m.Status().Last.Detection)
	}
}

func TestDetectionFailureWithoutSensors(t *testing.T) {
	m, _ := newTestMonitor(t, newFakeSource(), &dummyDetector{err: errors.New("boom")}, nil)
	require.NoError(t, m.RunCycle(context.Background()))
	require.Equal(t, counter.FallbackCounts(), m.Status().Last.Counts)
}

func TestImageLoadFailure(t *testing.T) {
	sensors, eggs, _ := newFakeSensors()
	source := snapshot.NewFileSource(logs.NewTestingLog(t), t.TempDir()+"/missing.jpeg")
	m, _ := newTestMonitor(t, source, newDummyDetector(0), sensors)
	err := m.RunCycle(context.Background())
	require.Error(t, err)
	require.Equal(t, KindRecoverable, KindOf(err))
	require.Empty(t, eggs.States())
	require.NotEmpty(t, m.Status().LastError)
	require.Nil(t, m.Status().Last)
}

func TestLoopContinuesAfterErrors(t *testing.T) {
	sensors, eggs, _ := newFakeSensors()
	source := &fakeSource{err: errors.New("camera offline")}
	m, rec := newTestMonitor(t, source, newDummyDetector(0), sensors)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan bool)
	go func() {
		m.Run(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool {
		return rec.Count(log.LevelError, "Error in detection cycle: load image: camera offline") >= 3
	}, 5*time.Second, time.Millisecond)
	cancel()
	<-done

	nErrors := rec.Count(log.LevelError, "Error in detection cycle")
	require.Equal(t, nErrors, rec.Count(log.LevelInfo, "Continuing with next cycle..."))
	require.Equal(t, 1, rec.Count(log.LevelInfo, "Received interrupt signal, shutting down..."))
	require.Empty(t, eggs.States())
	require.Equal(t, StateShuttingDown, m.Status().State)
}

func TestMemoryLogEveryTenthCycle(t *testing.T) {
	m, rec := newTestMonitor(t, newFakeSource(), newDummyDetector(0), nil)
	m.config.MemoryWarnBytes = 50 * 1024 * 1024
	for i := 0; i < 25; i++ {
		require.NoError(t, m.RunCycle(context.Background()))
	}
	require.Equal(t, 2, rec.Count(log.LevelInfo, "Memory after GC"))
	require.Equal(t, 1, rec.Count(log.LevelInfo, "Cycle 10: Memory after GC: 100.0 MB"))
	require.Equal(t, 1, rec.Count(log.LevelInfo, "Cycle 20: Memory after GC: 100.0 MB"))
	require.Equal(t, 2, rec.Count(log.LevelWarn, "exceeds warning threshold of 50 MB"))
}

func TestFailedCyclesSkipMemoryLog(t *testing.T) {
	source := newFakeSource()
	m, rec := newTestMonitor(t, source, newDummyDetector(0), nil)
	for i := 1; i <= 20; i++ {
		if i == 10 {
			source.err = errors.New("nope")
		} else {
			source.err = nil
		}
		m.RunCycle(context.Background())
	}
	require.Equal(t, 0, rec.Count(log.LevelInfo, "Cycle 10: Memory after GC"))
	require.Equal(t, 1, rec.Count(log.LevelInfo, "Cycle 20: Memory after GC"))
}

func TestCancelDuringSleep(t *testing.T) {
	source := newFakeSource()
	m, rec := newTestMonitor(t, source, newDummyDetector(1), nil)
	m.config.DetectionInterval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan bool)
	go func() {
		m.Run(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool {
		return rec.Count(log.LevelInfo, "Detection results") == 1
	}, 5*time.Second, time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Monitor did not stop")
	}
	require.Equal(t, 1, source.loads)
	require.Equal(t, 1, rec.Count(log.LevelInfo, "Received interrupt signal, shutting down..."))
}

func TestErrorKinds(t *testing.T) {
	base := errors.New("file not found")
	err := Fatal("load model", base)
	require.Equal(t, KindFatal, KindOf(err))
	require.ErrorIs(t, err, base)
	require.Equal(t, "load model: file not found", err.Error())
	require.Equal(t, KindDegraded, KindOf(Degraded("register sensors", base)))
	require.Equal(t, KindRecoverable, KindOf(base))
	require.Equal(t, "degraded", KindDegraded.String())
}

func TestImageRetainedOnlyForStatusServer(t *testing.T) {
	m, _ := newTestMonitor(t, newFakeSource(), newDummyDetector(0), nil)
	require.NoError(t, m.RunCycle(context.Background()))
	require.Nil(t, m.Status().Last.Image)

	m.config.StatusAddr = "127.0.0.1:8080"
	require.NoError(t, m.RunCycle(context.Background()))
	require.NotNil(t, m.Status().Last.Image)
	require.Equal(t, 32, m.Status().Last.Image.Width)
}

func TestDetectionErrorLogsStack(t *testing.T) {
	m, rec := newTestMonitor(t, newFakeSource(), &dummyDetector{err: errors.New("inference exploded")}, nil)
	require.NoError(t, m.RunCycle(context.Background()))
	require.Equal(t, 1, rec.Count(log.LevelError, "Error during detection: Failed to detect objects: inference exploded"))
	require.Equal(t, 1, rec.Count(log.LevelDebug, "Stack Trace: goroutine"))
}
