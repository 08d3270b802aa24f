package monitor

import (
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/bmharper/cimg/v2"
	"github.com/cyclopcam/henhouse/pkg/nn"
	"github.com/cyclopcam/henhouse/server/counter"
)

// detectAndPublish counts objects in img and publishes the counts.
// If detection fails for any reason, we publish zero counts instead. This function never fails.
func (m *Monitor) detectAndPublish(cycle int64, img *cimg.Image) counter.CountMap {
	result := &Result{
		Cycle:     cycle,
		Time:      time.Now(),
		Detection: "ok",
	}
	// The frame is only needed for the status server's snapshot. Otherwise it must
	// not outlive the cycle.
	if m.config.StatusAddr != "" {
		result.Image = img
	}
	counts, nObjects, err := m.detect(img)
	attributes := map[string]any{
		"detection": "ok",
		"objects":   nObjects,
		"cycle":     cycle,
		"timestamp": result.Time.UTC().Format(time.RFC3339),
	}
	if err != nil {
		m.Log.Errorf("Error during detection: %v", err)
		m.Log.Debugf("Stack Trace: %v", string(debug.Stack()))
		counts = counter.FallbackCounts()
		result.Detection = "failed"
		result.Error = err.Error()
		attributes = map[string]any{
			"detection": "failed",
			"error":     err.Error(),
			"cycle":     cycle,
			"timestamp": result.Time.UTC().Format(time.RFC3339),
		}
	} else {
		m.Log.Infof("Detection results: %v", counts)
	}
	result.Counts = counts
	result.NObjects = nObjects
	m.setResult(result)

	PublishCounts(m.Log, m.sensors, counts, attributes)
	return counts
}

func (m *Monitor) detect(img *cimg.Image) (counts counter.CountMap, nObjects int, err error) {
	defer func() {
		if r := recover(); r != nil {
			m.Log.Errorf("Stack Trace: %v", string(debug.Stack()))
			counts = nil
			nObjects = 0
			err = fmt.Errorf("Detector panic: %v", r)
		}
	}()

	if m.detector == nil {
		return nil, 0, errors.New("No detection model loaded")
	}
	if img.NChan() != 3 {
		img = img.ToRGB()
	}
	start := time.Now()
	objects, err := m.detector.DetectObjects(nn.WholeImage(img.NChan(), img.Pixels, img.Width, img.Height), m.params)
	m.detectTime.Since(start)
	if err != nil {
		return nil, 0, fmt.Errorf("Failed to detect objects: %w", err)
	}
	counts, err = counter.Count(m.detector.Config(), objects)
	if err != nil {
		return nil, 0, err
	}
	return counts, len(objects), nil
}
