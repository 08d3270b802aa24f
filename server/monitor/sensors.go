package monitor

import (
	"github.com/cyclopcam/henhouse/pkg/hass"
	"github.com/cyclopcam/henhouse/server/config"
	"github.com/cyclopcam/logs"
)

// NumericSensor is the part of hass.Sensor that we use
type NumericSensor interface {
	SetState(value any) error
	SetAttributes(attributes map[string]any) error
}

// Sensors are the two Home Assistant entities that we publish to
type Sensors struct {
	Eggs     NumericSensor
	Chickens NumericSensor
	registry sensorRegistry
}

var Device = hass.DeviceInfo{
	Name:         "Henhouse Monitor",
	Identifiers:  []string{"henhouse_001"},
	Manufacturer: "Custom",
	Model:        "Egg Detector v1.0",
}

var EggSensor = hass.SensorInfo{
	Name:       "Eggs",
	UniqueID:   "henhouse_eggs",
	Icon:       "mdi:egg",
	StateClass: "measurement",
}

var ChickenSensor = hass.SensorInfo{
	Name:       "Chickens",
	UniqueID:   "henhouse_chickens",
	Icon:       "mdi:bird",
	StateClass: "measurement",
}

// sensorRegistry is the part of hass.Client that we use
type sensorRegistry interface {
	NewSensor(info hass.SensorInfo) (*hass.Sensor, error)
	Close()
}

// RegisterSensors connects to the MQTT broker and announces our two sensors.
// Failure returns a KindDegraded error, and the caller should continue without sensors.
func RegisterSensors(log logs.Log, cfg *config.Config) (*Sensors, error) {
	settings := hass.Settings{
		BrokerURL:      cfg.MQTT.BrokerURL(),
		Username:       cfg.MQTT.Username,
		Password:       cfg.MQTT.Password,
		ConnectTimeout: cfg.MQTT.ConnectTimeout,
	}
	client, err := hass.Connect(log, settings, Device)
	if err != nil {
		return nil, Degraded("register sensors", err)
	}
	return registerSensors(log, client)
}

// If either sensor fails to register, the registry is closed, so that we don't leave
// a half-announced device connected to the broker.
func registerSensors(log logs.Log, registry sensorRegistry) (*Sensors, error) {
	eggs, err := registry.NewSensor(EggSensor)
	if err != nil {
		registry.Close()
		return nil, Degraded("register sensors", err)
	}
	chickens, err := registry.NewSensor(ChickenSensor)
	if err != nil {
		registry.Close()
		return nil, Degraded("register sensors", err)
	}
	log.Infof("MQTT sensors registered with Home Assistant")
	return &Sensors{
		Eggs:     eggs,
		Chickens: chickens,
		registry: registry,
	}, nil
}

// Close marks the device offline. Safe to call on nil.
func (s *Sensors) Close() {
	if s != nil && s.registry != nil {
		s.registry.Close()
	}
}
