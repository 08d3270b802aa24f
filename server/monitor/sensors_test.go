package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cyclopcam/henhouse/pkg/hass"
	"github.com/cyclopcam/henhouse/server/log"
	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/require"
)

type fakeRegistry struct {
	okBeforeFail int // number of NewSensor calls that succeed before we start failing
	calls        int
	closed       int
}

func (f *fakeRegistry) NewSensor(info hass.SensorInfo) (*hass.Sensor, error) {
	f.calls++
	if f.calls > f.okBeforeFail {
		return nil, errors.New("publish timed out")
	}
	return nil, nil
}

func (f *fakeRegistry) Close() {
	f.closed++
}

func TestRegisterSensorsUnreachableBroker(t *testing.T) {
	cfg := testConfig(t)
	cfg.MQTT.Host = "127.0.0.1"
	cfg.MQTT.Port = 1
	cfg.MQTT.ConnectTimeout = 2 * time.Second

	rec := log.NewRecorder(logs.NewTestingLog(t))
	start := time.Now()
	sensors, err := RegisterSensors(rec, cfg)
	require.Error(t, err)
	require.Nil(t, sensors)
	require.Equal(t, KindDegraded, KindOf(err))
	require.Less(t, time.Since(start), 10*time.Second)

	// Carry on without sensors
	m, mrec := newTestMonitor(t, newFakeSource(), newDummyDetector(0, 1), sensors)
	require.NotPanics(t, func() {
		require.NoError(t, m.RunCycle(context.Background()))
	})
	require.Equal(t, 0, mrec.Count(log.LevelInfo, "Published to MQTT"))
	require.Equal(t, 0, mrec.Count(log.LevelError, "Failed to publish"))
	require.NotPanics(t, sensors.Close)
}

func TestRegisterSensorsClosesOnFailure(t *testing.T) {
	for okBeforeFail := 0; okBeforeFail < 2; okBeforeFail++ {
		registry := &fakeRegistry{okBeforeFail: okBeforeFail}
		sensors, err := registerSensors(logs.NewTestingLog(t), registry)
		require.Error(t, err)
		require.Nil(t, sensors)
		require.Equal(t, KindDegraded, KindOf(err))
		require.Equal(t, okBeforeFail+1, registry.calls)
		require.Equal(t, 1, registry.closed)
	}
}

func TestSensorsCloseReleasesRegistry(t *testing.T) {
	registry := &fakeRegistry{okBeforeFail: 2}
	sensors, err := registerSensors(logs.NewTestingLog(t), registry)
	require.NoError(t, err)
	require.Equal(t, 0, registry.closed)
	sensors.Close()
	require.Equal(t, 1, registry.closed)
}
