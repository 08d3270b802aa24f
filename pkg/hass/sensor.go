package hass

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Sensor is a numeric (or text) sensor entity registered with Home Assistant
type Sensor struct {
	Info   SensorInfo
	client *Client

	lock       sync.Mutex
	state      []byte // Last state, resent after a reconnect
	attributes []byte // Last attributes, resent after a reconnect
}

func (s *Sensor) StateTopic() string {
	return sensorTopic(s.client.settings.StatePrefix, &s.client.Device, &s.Info, "state")
}

func (s *Sensor) AttributesTopic() string {
	return sensorTopic(s.client.settings.StatePrefix, &s.client.Device, &s.Info, "attributes")
}

func (s *Sensor) DiscoveryTopic() string {
	return discoveryTopic(s.client.settings.DiscoveryPrefix, s.Info.UniqueID)
}

func (s *Sensor) discoveryConfig() discoveryConfig {
	return discoveryConfig{
		Name:                s.Info.Name,
		UniqueID:            s.Info.UniqueID,
		Icon:                s.Info.Icon,
		UnitOfMeasurement:   s.Info.UnitOfMeasurement,
		StateClass:          s.Info.StateClass,
		StateTopic:          s.StateTopic(),
		JSONAttributesTopic: s.AttributesTopic(),
		AvailabilityTopic:   s.client.AvailabilityTopic(),
		Device:              s.client.Device,
	}
}

func (s *Sensor) publishConfig() error {
	cfg, err := json.Marshal(s.discoveryConfig())
	if err != nil {
		return err
	}
	if err := s.client.pub.publish(s.DiscoveryTopic(), true, cfg); err != nil {
		return fmt.Errorf("Failed to publish discovery config for %v: %w", s.Info.UniqueID, err)
	}
	return nil
}

// SetState publishes a new value, eg an integer count
func (s *Sensor) SetState(value any) error {
	payload := []byte(fmt.Sprint(value))
	if err := s.client.pub.publish(s.StateTopic(), true, payload); err != nil {
		return fmt.Errorf("Failed to publish state of %v: %w", s.Info.UniqueID, err)
	}
	s.lock.Lock()
	s.state = payload
	s.lock.Unlock()
	return nil
}

// SetAttributes publishes a JSON object of extra attributes
func (s *Sensor) SetAttributes(attributes map[string]any) error {
	payload, err := json.Marshal(attributes)
	if err != nil {
		return err
	}
	if err := s.client.pub.publish(s.AttributesTopic(), true, payload); err != nil {
		return fmt.Errorf("Failed to publish attributes of %v: %w", s.Info.UniqueID, err)
	}
	s.lock.Lock()
	s.attributes = payload
	s.lock.Unlock()
	return nil
}

func (s *Sensor) republish() error {
	if err := s.publishConfig(); err != nil {
		return err
	}
	s.lock.Lock()
	state, attributes := s.state, s.attributes
	s.lock.Unlock()
	if state != nil {
		if err := s.client.pub.publish(s.StateTopic(), true, state); err != nil {
			return err
		}
	}
	if attributes != nil {
		if err := s.client.pub.publish(s.AttributesTopic(), true, attributes); err != nil {
			return err
		}
	}
	return nil
}
