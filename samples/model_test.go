package samples

import (
	"errors"
	"math"
	"slices"
	"testing"
)

func TestNewModelValidation(t *testing.T) {
	type testcase struct {
		name     string
		samples  []Sample
		interval float64
		err      error
	}
	for _, tc := range []testcase{
		{
			name:    "unsorted",
			samples: []Sample{{Time: 1}, {Time: 0}},
			err:     ErrUnsortedSamples,
		},
		{
			name:    "duplicate time",
			samples: []Sample{{Time: 1}, {Time: 1}},
			err:     ErrUnsortedSamples,
		},
		{
			name:    "nan time",
			samples: []Sample{{Time: math.NaN()}},
			err:     ErrUnsortedSamples,
		},
		{
			name:    "negative fraction",
			samples: []Sample{{Time: 0, Weights: []Weight{{Category: 1, Fraction: -0.5}}}},
			err:     ErrInvalidWeight,
		},
		{
			name:    "negative cpu",
			samples: []Sample{{Time: 0, CPU: Measured(-1)}},
			err:     ErrInvalidCPU,
		},
		{
			name:    "infinite cpu",
			samples: []Sample{{Time: 0, CPU: Measured(math.Inf(1))}},
			err:     ErrInvalidCPU,
		},
		{
			name:     "negative interval",
			samples:  []Sample{{Time: 0}},
			interval: -1,
			err:      ErrInvalidInterval,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewModel(tc.samples, tc.interval)
			if !errors.Is(err, tc.err) {
				t.Errorf("expected %v, got %v", tc.err, err)
			}
		})
	}
}

func TestNewModelNormalizes(t *testing.T) {
	in := []Sample{
		{Time: 0, Weights: []Weight{{Category: 3, Fraction: 2}, {Category: 1, Fraction: 1}, {Category: 3, Fraction: 1}}},
		{Time: 1, Weights: []Weight{{Category: 2, Fraction: 0}}},
		{Time: 2, CPU: CPUUsage{Value: 12, State: CPUUnreliable}},
	}
	m, err := NewModel(in, 0)
	if err != nil {
		t.Fatal(err)
	}
	s := m.At(0)
	if len(s.Weights) != 2 {
		t.Fatalf("expected duplicate categories to merge, got %v", s.Weights)
	}
	if s.Weights[0].Category != 3 || s.Weights[0].Fraction != 0.75 || s.Weights[1].Fraction != 0.25 {
		t.Errorf("expected weights {3 0.75} {1 0.25}, got %v", s.Weights)
	}
	if !m.At(1).IsNull() {
		t.Errorf("expected sample with only zero weights to be null, got %v", m.At(1).Weights)
	}
	if cpu := m.At(2).CPU; cpu.Valid() || cpu.Value != 0 {
		t.Errorf("expected unreliable cpu to be invalid and zeroed, got %+v", cpu)
	}

	// The model owns its samples.
	in[0].Time = 100
	in[0].Weights[0].Fraction = 100
	if m.At(0).Time != 0 || m.At(0).Weights[0].Fraction != 0.75 {
		t.Errorf("model was changed through its input slice")
	}
}

func TestSpanEnd(t *testing.T) {
	withInterval, err := NewModel([]Sample{{Time: 0}, {Time: 3}}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got := withInterval.SpanEnd(0, 100); got != 3 {
		t.Errorf("expected span to end at the next sample, got %v", got)
	}
	if got := withInterval.SpanEnd(1, 100); got != 4 {
		t.Errorf("expected last span to use the interval, got %v", got)
	}

	withoutInterval, err := NewModel([]Sample{{Time: 0}, {Time: 3}}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got := withoutInterval.SpanEnd(1, 100); got != 6 {
		t.Errorf("expected last span to repeat the previous gap, got %v", got)
	}

	single, err := NewModel([]Sample{{Time: 2}}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got := single.SpanEnd(0, 10); got != 10 {
		t.Errorf("expected single span to extend to the fallback, got %v", got)
	}
	if got := single.SpanEnd(0, 1); got != 2 {
		t.Errorf("expected an empty span for a fallback before the sample, got %v", got)
	}
}

func TestMeasuredSpan(t *testing.T) {
	uneven, err := NewModel([]Sample{{Time: 0}, {Time: 1}, {Time: 3}}, 0)
	if err != nil {
		t.Fatal(err)
	}
	for i, want := range []float64{1, 1, 2} {
		if got := uneven.MeasuredSpan(i, 100); got != want {
			t.Errorf("sample %d: expected a measured span of %v, got %v", i, want, got)
		}
	}

	withInterval, err := NewModel([]Sample{{Time: 0}, {Time: 5}}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if got := withInterval.MeasuredSpan(0, 100); got != 2 {
		t.Errorf("expected the first sample to use the interval, got %v", got)
	}

	single, err := NewModel([]Sample{{Time: 2}}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got := single.MeasuredSpan(0, 10); got != 8 {
		t.Errorf("expected a lone sample to fall back to its own span, got %v", got)
	}
}

func TestSearch(t *testing.T) {
	m, err := NewModel([]Sample{{Time: 1}, {Time: 2}, {Time: 4}}, 1)
	if err != nil {
		t.Fatal(err)
	}
	for _, tc := range []struct {
		t    float64
		want int
	}{
		{t: 0, want: 0},
		{t: 1, want: 0},
		{t: 1.5, want: 0},
		{t: 2, want: 1},
		{t: 3.99, want: 1},
		{t: 4, want: 2},
		{t: 4.5, want: 2},
		{t: 5, want: 3},
		{t: 50, want: 3},
	} {
		if got := m.Search(tc.t, 100); got != tc.want {
			t.Errorf("Search(%v) = %d, expected %d", tc.t, got, tc.want)
		}
	}

	var empty *Model
	if got := empty.Search(0, 1); got != 0 {
		t.Errorf("expected search on an empty model to return 0, got %d", got)
	}
}

func TestDomain(t *testing.T) {
	m, err := NewModel([]Sample{{Time: 1}, {Time: 2}, {Time: 4}}, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	start, end, err := m.Domain()
	if err != nil {
		t.Fatal(err)
	}
	if start != 1 || end != 4.5 {
		t.Errorf("expected domain [1, 4.5), got [%v, %v)", start, end)
	}

	empty, err := NewModel(nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := empty.Domain(); !errors.Is(err, ErrEmptyModel) {
		t.Errorf("expected ErrEmptyModel, got %v", err)
	}
}

func TestCategories(t *testing.T) {
	m, err := NewModel([]Sample{
		{Time: 0, Weights: []Weight{{Category: 5, Fraction: 1}}},
		{Time: 1},
		{Time: 2, Weights: []Weight{{Category: 2, Fraction: 1}, {Category: 5, Fraction: 1}}},
	}, 0)
	if err != nil {
		t.Fatal(err)
	}
	want := []CategoryID{2, 5, Unknown}
	if got := m.Categories(); !slices.Equal(got, want) {
		t.Errorf("expected categories %v, got %v", want, got)
	}
}
