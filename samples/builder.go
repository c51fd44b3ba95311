package samples

import (
	"fmt"
	"math"
)

// Builder accumulates samples for a thread that is still being recorded. Snapshots returned by
// Model stay valid while the builder keeps growing, because elements that have been published
// are never written again.
//
// A Builder is not safe for concurrent use, but the models it returns are.
type Builder struct {
	samples  []Sample
	interval float64
}

// NewBuilder returns an empty builder. An interval that is not a positive, finite number is
// treated as unknown.
func NewBuilder(interval float64) *Builder {
	if !(interval > 0) || math.IsInf(interval, 0) {
		interval = 0
	}
	return &Builder{interval: interval}
}

// Append adds a sample after all previously appended ones. Samples that are invalid or not
// strictly later than the previous sample are rejected.
func (b *Builder) Append(s Sample) error {
	if math.IsNaN(s.Time) || math.IsInf(s.Time, 0) {
		return fmt.Errorf("time %v: %w", s.Time, ErrUnsortedSamples)
	}
	if n := len(b.samples); n > 0 && !(s.Time > b.samples[n-1].Time) {
		return fmt.Errorf("time %v follows %v: %w", s.Time, b.samples[n-1].Time, ErrUnsortedSamples)
	}
	ns, err := normalize(s)
	if err != nil {
		return err
	}
	b.samples = append(b.samples, ns)
	return nil
}

func (b *Builder) Len() int {
	return len(b.samples)
}

// Model returns an immutable snapshot of the samples appended so far.
func (b *Builder) Model() *Model {
	return &Model{
		samples:  b.samples[:len(b.samples):len(b.samples)],
		interval: b.interval,
	}
}
