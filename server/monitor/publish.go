package monitor

import (
	"github.com/cyclopcam/henhouse/server/counter"
	"github.com/cyclopcam/logs"
)

// PublishCounts sends the egg and chicken counts to Home Assistant.
// Failures are logged and swallowed. If sensors is nil, this is a no-op.
func PublishCounts(log logs.Log, sensors *Sensors, counts counter.CountMap, attributes map[string]any) {
	if sensors == nil {
		log.Debugf("MQTT sensors not available, skipping publish")
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("Failed to publish to MQTT: panic: %v", r)
		}
	}()

	eggs := counts.Get(counter.ClassEgg)
	chickens := counts.Get(counter.ClassChicken)
	if err := sensors.Eggs.SetState(eggs); err != nil {
		log.Errorf("Failed to publish to MQTT: %v", err)
		return
	}
	if err := sensors.Chickens.SetState(chickens); err != nil {
		log.Errorf("Failed to publish to MQTT: %v", err)
		return
	}
	if attributes != nil {
		for _, s := range []NumericSensor{sensors.Eggs, sensors.Chickens} {
			if err := s.SetAttributes(attributes); err != nil {
				log.Warnf("Failed to publish sensor attributes: %v", err)
			}
		}
	}
	log.Infof("Published to MQTT - Eggs: %v, Chickens: %v", eggs, chickens)
}
