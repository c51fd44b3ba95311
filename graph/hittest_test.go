package graph

import (
	"testing"

	"git.sr.ht/~whereswaldon/thread-activity/samples"
)

func TestHitTest(t *testing.T) {
	m := makeTestModel(t)
	v := View{Start: 0, End: 8, Width: 80, Height: 10}
	opts := AggregateOptions{MaxCPURate: 1000}

	hit, ok := HitTest(m, v, opts, 25)
	if !ok {
		t.Fatalf("expected a hit at x=25")
	}
	if hit.Column != 25 {
		t.Errorf("expected column 25, got %d", hit.Column)
	}
	if !hit.HasDominant || hit.Dominant != catOther {
		t.Errorf("expected dominant category %d, got %d (%v)", catOther, hit.Dominant, hit.HasDominant)
	}
	if !hit.HasCPU || !near(hit.CPU, 1) {
		t.Errorf("expected full CPU intensity, got %v (%v)", hit.CPU, hit.HasCPU)
	}
	if !hit.HasSample || hit.Sample != 2 {
		t.Errorf("expected sample 2, got %d (%v)", hit.Sample, hit.HasSample)
	}

	// The first sample has no CPU measurement.
	hit, ok = HitTest(m, v, opts, 3)
	if !ok {
		t.Fatalf("expected a hit at x=3")
	}
	if hit.HasCPU {
		t.Errorf("expected no CPU data for the first sample, got %v", hit.CPU)
	}
	if hit.Dominant != catDOM || hit.Sample != 0 {
		t.Errorf("expected sample 0 in category %d, got sample %d in %d", catDOM, hit.Sample, hit.Dominant)
	}
}

func TestHitTestMiss(t *testing.T) {
	m := makeTestModel(t)
	opts := AggregateOptions{MaxCPURate: 1000}
	v := View{Start: 0, End: 8, Width: 80, Height: 10}
	for _, x := range []float64{-1, 80, 1000} {
		if _, ok := HitTest(m, v, opts, x); ok {
			t.Errorf("expected no hit at x=%v", x)
		}
	}

	// The last sample ends at 8; the right half of this view has no data.
	wide := View{Start: 0, End: 16, Width: 16, Height: 10}
	if _, ok := HitTest(m, wide, opts, 12.5); ok {
		t.Errorf("expected no hit past the last sample")
	}
	if hit, ok := HitTest(m, wide, opts, 7.5); !ok || hit.Sample != 7 {
		t.Errorf("expected a hit on the last sample, got %+v (%v)", hit, ok)
	}

	empty, err := samples.NewModel(nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := HitTest(empty, v, opts, 10); ok {
		t.Errorf("expected no hit on an empty model")
	}
}
