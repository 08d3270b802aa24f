package perfstats

// Package perfstats accumulates timings of the operations in a detection cycle,
// so that we can log averages periodically.

import (
	"fmt"
	"time"
)

// Accumulate samples of how long something took
type TimeAccumulator struct {
	Samples int64
	Total   time.Duration
	Max     time.Duration
}

func (a *TimeAccumulator) Reset() {
	*a = TimeAccumulator{}
}

func (a *TimeAccumulator) AddSample(v time.Duration) {
	a.Samples++
	a.Total += v
	a.Max = max(a.Max, v)
}

// Measure the time since 'start' and add it as a sample
func (a *TimeAccumulator) Since(start time.Time) {
	a.AddSample(time.Since(start))
}

func (a *TimeAccumulator) Average() time.Duration {
	if a.Samples == 0 {
		return 0
	}
	return time.Duration(a.Total.Nanoseconds() / a.Samples)
}

func (a *TimeAccumulator) String() string {
	return fmt.Sprintf("avg %v, max %v (%v samples)", a.Average().Round(time.Millisecond), a.Max.Round(time.Millisecond), a.Samples)
}
