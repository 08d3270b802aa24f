// Package hass publishes sensors to Home Assistant over MQTT, using Home Assistant's MQTT discovery convention.
//
// Every sensor has a retained discovery config on <DiscoveryPrefix>/sensor/<unique_id>/config,
// which points Home Assistant at the sensor's state and attribute topics. The device's availability
// is tracked with an MQTT last will, so Home Assistant marks the sensors unavailable if we vanish.
package hass

import (
	"regexp"
	"strings"
	"time"
)

const (
	DefaultDiscoveryPrefix = "homeassistant"
	DefaultStatePrefix     = "hmd"
	DefaultConnectTimeout  = 10 * time.Second
	DefaultPublishTimeout  = 10 * time.Second

	PayloadOnline  = "online"
	PayloadOffline = "offline"
)

// Settings for the connection to the MQTT broker
type Settings struct {
	BrokerURL       string // eg tcp://localhost:1883 or ssl://broker:8883
	Username        string // Empty for anonymous
	Password        string
	ClientID        string // Generated if empty
	DiscoveryPrefix string // Defaults to DefaultDiscoveryPrefix
	StatePrefix     string // Defaults to DefaultStatePrefix
	ConnectTimeout  time.Duration
	PublishTimeout  time.Duration
}

func (s *Settings) setDefaults() {
	if s.DiscoveryPrefix == "" {
		s.DiscoveryPrefix = DefaultDiscoveryPrefix
	}
	if s.StatePrefix == "" {
		s.StatePrefix = DefaultStatePrefix
	}
	if s.ConnectTimeout == 0 {
		s.ConnectTimeout = DefaultConnectTimeout
	}
	if s.PublishTimeout == 0 {
		s.PublishTimeout = DefaultPublishTimeout
	}
}

// DeviceInfo groups sensors together inside Home Assistant
type DeviceInfo struct {
	Name         string   `json:"name"`
	Identifiers  []string `json:"identifiers"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Model        string   `json:"model,omitempty"`
}

// SensorInfo describes a single sensor entity
type SensorInfo struct {
	Name              string // Display name, eg "Eggs"
	UniqueID          string // Stable id, eg "henhouse_eggs"
	Icon              string // eg "mdi:egg"
	UnitOfMeasurement string // Empty for a unitless count
	StateClass        string // eg "measurement"
}

// Payload of the retained discovery message
type discoveryConfig struct {
	Name                string     `json:"name"`
	UniqueID            string     `json:"unique_id"`
	Icon                string     `json:"icon,omitempty"`
	UnitOfMeasurement   string     `json:"unit_of_measurement,omitempty"`
	StateClass          string     `json:"state_class,omitempty"`
	StateTopic          string     `json:"state_topic"`
	JSONAttributesTopic string     `json:"json_attributes_topic"`
	AvailabilityTopic   string     `json:"availability_topic"`
	Device              DeviceInfo `json:"device"`
}

var topicUnsafe = regexp.MustCompile(`[^a-z0-9_\-]`)

// TopicName converts a display name into a topic segment, eg "Henhouse Monitor" -> "henhouse_monitor"
func TopicName(name string) string {
	s := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
	return topicUnsafe.ReplaceAllString(s, "")
}

func discoveryTopic(discoveryPrefix, uniqueID string) string {
	return discoveryPrefix + "/sensor/" + uniqueID + "/config"
}

func availabilityTopic(statePrefix string, device *DeviceInfo) string {
	return statePrefix + "/device/" + TopicName(device.Name) + "/availability"
}

func sensorTopic(statePrefix string, device *DeviceInfo, sensor *SensorInfo, leaf string) string {
	return statePrefix + "/sensor/" + TopicName(device.Name) + "/" + TopicName(sensor.Name) + "/" + leaf
}
