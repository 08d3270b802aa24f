// Package counter reduces a list of object detections to a count per class
package counter

import (
	"fmt"

	"github.com/cyclopcam/henhouse/pkg/nn"
)

const (
	ClassEgg     = "egg"
	ClassChicken = "chicken"
)

// CountMap maps class name to the number of objects of that class in one image.
// An absent key means zero.
type CountMap map[string]int

// Get returns the count for 'class', or zero if absent
func (c CountMap) Get(class string) int {
	return c[class]
}

// FallbackCounts is what we report when detection fails
func FallbackCounts() CountMap {
	return CountMap{
		ClassEgg:     0,
		ClassChicken: 0,
	}
}

// Count tallies 'objects' by class name. The result has an entry for every class of the model,
// including those with zero detections.
func Count(model *nn.ModelConfig, objects []nn.ObjectDetection) (CountMap, error) {
	counts := CountMap{}
	for _, c := range model.Classes {
		counts[c] = 0
	}
	for _, obj := range objects {
		name, err := model.ClassName(obj.Class)
		if err != nil {
			return nil, err
		}
		counts[name]++
	}
	return counts, nil
}

func (c CountMap) String() string {
	return fmt.Sprintf("Eggs: %v, Chickens: %v", c.Get(ClassEgg), c.Get(ClassChicken))
}
