package samples

import (
	"errors"
	"math"
	"testing"
)

func TestBuilderSnapshots(t *testing.T) {
	b := NewBuilder(1)
	for i := 0; i < 3; i++ {
		if err := b.Append(Sample{Time: float64(i), Weights: []Weight{{Category: 1, Fraction: 1}}}); err != nil {
			t.Fatal(err)
		}
	}
	snap := b.Model()
	for i := 3; i < 100; i++ {
		if err := b.Append(Sample{Time: float64(i), CPU: Measured(float64(i))}); err != nil {
			t.Fatal(err)
		}
	}
	if snap.Len() != 3 {
		t.Errorf("expected snapshot to keep 3 samples, got %d", snap.Len())
	}
	for i := 0; i < snap.Len(); i++ {
		if s := snap.At(i); s.Time != float64(i) || s.IsNull() {
			t.Errorf("snapshot sample %d changed: %+v", i, s)
		}
	}
	if _, end, _ := snap.Domain(); end != 3 {
		t.Errorf("expected snapshot domain to end at 3, got %v", end)
	}
	if got := b.Model().Len(); got != 100 {
		t.Errorf("expected 100 samples in a fresh snapshot, got %d", got)
	}
}

func TestBuilderRejects(t *testing.T) {
	b := NewBuilder(math.Inf(1))
	if b.Model().Interval() != 0 {
		t.Errorf("expected an infinite interval to be treated as unknown")
	}
	if err := b.Append(Sample{Time: 5}); err != nil {
		t.Fatal(err)
	}
	if err := b.Append(Sample{Time: 5}); !errors.Is(err, ErrUnsortedSamples) {
		t.Errorf("expected ErrUnsortedSamples for a repeated time, got %v", err)
	}
	if err := b.Append(Sample{Time: math.NaN()}); !errors.Is(err, ErrUnsortedSamples) {
		t.Errorf("expected ErrUnsortedSamples for NaN, got %v", err)
	}
	if err := b.Append(Sample{Time: 6, Weights: []Weight{{Category: 1, Fraction: math.NaN()}}}); !errors.Is(err, ErrInvalidWeight) {
		t.Errorf("expected ErrInvalidWeight, got %v", err)
	}
	if b.Len() != 1 {
		t.Errorf("expected rejected samples not to be appended, got %d samples", b.Len())
	}
}
