// Package samples holds the normalized, in-memory form of one thread's profiler samples.
package samples

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"
)

var (
	ErrUnsortedSamples = errors.New("samples are not sorted strictly by time")
	ErrInvalidWeight   = errors.New("invalid category weight")
	ErrInvalidCPU      = errors.New("invalid cpu usage")
	ErrEmptyModel      = errors.New("model has no samples")
	ErrInvalidInterval = errors.New("invalid sampling interval")
)

// CategoryID is an opaque key into a caller-owned table of category names and colors.
type CategoryID uint16

// Unknown is the pseudo-category that receives the span of samples for which no stack was
// captured.
const Unknown CategoryID = math.MaxUint16

// Weight is the share of a sample attributed to one category.
type Weight struct {
	Category CategoryID
	Fraction float64
}

type CPUState uint8

const (
	// CPUMissing marks a sample without a preceding interval to measure, typically the first
	// sample of a thread.
	CPUMissing CPUState = iota
	CPUMeasured
	// CPUUnreliable marks a measurement the profiler could not trust. It is treated exactly
	// like a missing one.
	CPUUnreliable
)

func (s CPUState) String() string {
	switch s {
	case CPUMissing:
		return "missing"
	case CPUMeasured:
		return "measured"
	case CPUUnreliable:
		return "unreliable"
	default:
		return "?"
	}
}

// CPUUsage is the amount of CPU time a thread consumed during the span of a sample.
type CPUUsage struct {
	Value float64
	State CPUState
}

// Measured returns a measured usage of v.
func Measured(v float64) CPUUsage {
	return CPUUsage{Value: v, State: CPUMeasured}
}

func (c CPUUsage) Valid() bool {
	return c.State == CPUMeasured
}

type Sample struct {
	Time    float64
	Weights []Weight
	CPU     CPUUsage
}

// IsNull reports whether the sample carries no category information.
func (s Sample) IsNull() bool {
	return len(s.Weights) == 0
}

// Model is an immutable, strictly time-ordered sequence of samples for one thread. The span
// attributed to sample i is [Time[i], Time[i+1]). A Model may be shared between goroutines.
type Model struct {
	samples []Sample
	// interval is the nominal sampling interval, used to estimate the span of the last
	// sample. It is zero when unknown.
	interval float64
}

// NewModel validates and normalizes the samples and returns a model owning a copy of them.
// interval is the nominal sampling interval and may be zero.
func NewModel(samples []Sample, interval float64) (*Model, error) {
	if math.IsNaN(interval) || math.IsInf(interval, 0) || interval < 0 {
		return nil, fmt.Errorf("%v: %w", interval, ErrInvalidInterval)
	}
	out := make([]Sample, 0, len(samples))
	for i, s := range samples {
		ns, err := normalize(s)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
		if math.IsNaN(s.Time) || math.IsInf(s.Time, 0) {
			return nil, fmt.Errorf("sample %d has time %v: %w", i, s.Time, ErrUnsortedSamples)
		}
		if i > 0 && !(s.Time > samples[i-1].Time) {
			return nil, fmt.Errorf("sample %d at %v follows %v: %w", i, s.Time, samples[i-1].Time, ErrUnsortedSamples)
		}
		out = append(out, ns)
	}
	return &Model{samples: out, interval: interval}, nil
}

// normalize merges duplicate categories and rescales the fractions so that they sum to one.
func normalize(s Sample) (Sample, error) {
	switch s.CPU.State {
	case CPUMeasured:
		if math.IsNaN(s.CPU.Value) || math.IsInf(s.CPU.Value, 0) || s.CPU.Value < 0 {
			return Sample{}, fmt.Errorf("usage %v: %w", s.CPU.Value, ErrInvalidCPU)
		}
	case CPUMissing, CPUUnreliable:
		s.CPU.Value = 0
	default:
		return Sample{}, fmt.Errorf("state %d: %w", s.CPU.State, ErrInvalidCPU)
	}

	var sum float64
	weights := make([]Weight, 0, len(s.Weights))
	for _, w := range s.Weights {
		if math.IsNaN(w.Fraction) || math.IsInf(w.Fraction, 0) || w.Fraction < 0 {
			return Sample{}, fmt.Errorf("category %d fraction %v: %w", w.Category, w.Fraction, ErrInvalidWeight)
		}
		if w.Fraction == 0 {
			continue
		}
		sum += w.Fraction
		if idx := slices.IndexFunc(weights, func(o Weight) bool { return o.Category == w.Category }); idx >= 0 {
			weights[idx].Fraction += w.Fraction
			continue
		}
		weights = append(weights, w)
	}
	if sum > 0 && sum != 1 {
		for i := range weights {
			weights[i].Fraction /= sum
		}
	}
	if len(weights) == 0 {
		weights = nil
	}
	s.Weights = weights
	return s, nil
}

func (m *Model) Len() int {
	if m == nil {
		return 0
	}
	return len(m.samples)
}

// At returns the i-th sample. The returned weights must not be modified.
func (m *Model) At(i int) Sample {
	return m.samples[i]
}

func (m *Model) Interval() float64 {
	return m.interval
}

// SpanEnd returns the end of the span attributed to sample i. The span of the last sample is
// estimated from the nominal interval, then from the gap preceding it, and finally from
// fallback, which callers set to the end of the range they are looking at.
func (m *Model) SpanEnd(i int, fallback float64) float64 {
	if i+1 < len(m.samples) {
		return m.samples[i+1].Time
	}
	t := m.samples[i].Time
	switch {
	case m.interval > 0:
		return t + m.interval
	case i > 0:
		return t + (t - m.samples[i-1].Time)
	case fallback > t:
		return fallback
	default:
		return t
	}
}

// MeasuredSpan returns the length of the interval the CPU usage of sample i was measured over:
// the time since the previous sample. The first sample has no previous one, so its usage is
// taken to cover the nominal interval, or else its own span.
func (m *Model) MeasuredSpan(i int, fallback float64) float64 {
	if i > 0 {
		return m.samples[i].Time - m.samples[i-1].Time
	}
	if m.interval > 0 {
		return m.interval
	}
	return m.SpanEnd(i, fallback) - m.samples[i].Time
}

// Domain returns the time covered by the model, from the first sample to the end of the last
// sample's span.
func (m *Model) Domain() (start, end float64, err error) {
	if m.Len() == 0 {
		return 0, 0, ErrEmptyModel
	}
	last := len(m.samples) - 1
	return m.samples[0].Time, m.SpanEnd(last, m.samples[last].Time), nil
}

// Search returns the index of the first sample whose span ends after t. It returns Len() if
// there is none. Because the span of the last sample depends on fallback, fallback has the same
// meaning as for SpanEnd.
func (m *Model) Search(t, fallback float64) int {
	n := m.Len()
	idx := sort.Search(n, func(i int) bool {
		return i+1 >= n || m.samples[i+1].Time > t
	})
	if idx == n-1 && m.SpanEnd(idx, fallback) <= t {
		return n
	}
	return idx
}

// Categories returns the sorted set of categories used by the model. Unknown is included when
// the model contains null samples.
func (m *Model) Categories() []CategoryID {
	var out []CategoryID
	for _, s := range m.samples {
		if s.IsNull() {
			out = append(out, Unknown)
		}
		for _, w := range s.Weights {
			out = append(out, w.Category)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
