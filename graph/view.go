// Package graph turns a thread's samples into a fixed number of pixel columns and draws them as
// stacked category areas with an optional CPU trace.
package graph

import (
	"errors"
	"fmt"
	"math"

	"golang.org/x/exp/constraints"
)

var ErrInvalidRange = errors.New("invalid range")

// Interval is the half-open time span [Start, End).
type Interval struct {
	Start, End float64
}

func (iv Interval) Duration() float64 {
	return iv.End - iv.Start
}

// overlap returns the length of the intersection of iv and [start, end).
func (iv Interval) overlap(start, end float64) float64 {
	return max(0, min(iv.End, end)-max(iv.Start, start))
}

// View is the visible time range of a graph and the size, in pixels, of the surface it is drawn
// on. Column i covers the i-th of Width equal slices of [Start, End).
type View struct {
	Start, End    float64
	Width, Height int
}

// NewView validates the geometry of a graph.
func NewView(start, end float64, width, height int) (View, error) {
	v := View{Start: start, End: end, Width: width, Height: height}
	if err := v.validate(); err != nil {
		return View{}, err
	}
	if height <= 0 {
		return View{}, fmt.Errorf("height %d: %w", height, ErrInvalidRange)
	}
	return v, nil
}

func (v View) validate() error {
	return validateRange(v.Start, v.End, v.Width)
}

func validateRange(start, end float64, width int) error {
	if width <= 0 {
		return fmt.Errorf("width %d: %w", width, ErrInvalidRange)
	}
	if math.IsNaN(start) || math.IsNaN(end) || math.IsInf(start, 0) || math.IsInf(end, 0) {
		return fmt.Errorf("[%v, %v): %w", start, end, ErrInvalidRange)
	}
	if !(end > start) {
		return fmt.Errorf("[%v, %v) is empty: %w", start, end, ErrInvalidRange)
	}
	return nil
}

// Columns divides [start, end) into width contiguous intervals. The boundaries are computed the
// same way for every column so that neighbouring columns share them exactly, and the last column
// ends at end.
func Columns(start, end float64, width int) ([]Interval, error) {
	if err := validateRange(start, end, width); err != nil {
		return nil, err
	}
	v := View{Start: start, End: end, Width: width}
	out := make([]Interval, width)
	for i := range out {
		out[i] = v.Column(i)
	}
	return out, nil
}

// boundary returns the start of column i. boundary(Width) is End.
func (v View) boundary(i int) float64 {
	if i >= v.Width {
		return v.End
	}
	return v.Start + (v.End-v.Start)*float64(i)/float64(v.Width)
}

// Column returns the time interval of column i.
func (v View) Column(i int) Interval {
	return Interval{Start: v.boundary(i), End: v.boundary(i + 1)}
}

// ColumnAt returns the column under the horizontal pixel coordinate x.
func (v View) ColumnAt(x float64) (int, bool) {
	if !(x >= 0) || x >= float64(v.Width) {
		return 0, false
	}
	return clamp(int(x), 0, v.Width-1), true
}

// TimeAt converts a horizontal pixel coordinate to a timestamp.
func (v View) TimeAt(x float64) float64 {
	return v.Start + (v.End-v.Start)*x/float64(v.Width)
}

// X converts a timestamp to a horizontal pixel coordinate.
func (v View) X(t float64) float64 {
	return (t - v.Start) / (v.End - v.Start) * float64(v.Width)
}

// firstColumn returns the column containing t, which must lie in [Start, End).
func (v View) firstColumn(t float64) int {
	i := clamp(int(math.Floor(v.X(t))), 0, v.Width-1)
	// Rounding in X can land one column off the exact boundaries computed by boundary.
	for i > 0 && v.boundary(i) > t {
		i--
	}
	for i < v.Width-1 && v.boundary(i+1) <= t {
		i++
	}
	return i
}

func clamp[T constraints.Ordered](v, lo, hi T) T {
	return max(lo, min(hi, v))
}
