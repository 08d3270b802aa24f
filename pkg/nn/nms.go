package nn

import (
	"sort"

	flatbush "github.com/bmharper/flatbush-go"
)

// NonMaxSuppression removes objects that overlap a more confident object of the same class
// by at least minIoU. The returned objects are sorted by descending confidence.
func NonMaxSuppression(input []ObjectDetection, minIoU float32) []ObjectDetection {
	if len(input) == 0 {
		return input
	}

	sorted := make([]ObjectDetection, len(input))
	copy(sorted, input)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	// Create spatial index to avoid O(N^2) comparisons
	fb := flatbush.NewFlatbush[float32]()
	fb.Reserve(len(sorted))
	for _, b := range sorted {
		fb.Add(float32(b.Box.X), float32(b.Box.Y), float32(b.Box.X2()), float32(b.Box.Y2()))
	}
	fb.Finish()

	suppressed := make([]bool, len(sorted))
	retain := make([]ObjectDetection, 0, len(sorted))
	for i, in := range sorted {
		if suppressed[i] {
			continue
		}
		retain = append(retain, in)
		for _, j := range fb.Search(float32(in.Box.X), float32(in.Box.Y), float32(in.Box.X2()), float32(in.Box.Y2())) {
			// Only objects after 'i' have lower confidence
			if j <= i || suppressed[j] {
				continue
			}
			if sorted[j].Class != in.Class {
				continue
			}
			if in.Box.IOU(sorted[j].Box) >= minIoU {
				suppressed[j] = true
			}
		}
	}
	return retain
}
