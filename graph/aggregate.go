package graph

import (
	"slices"

	"git.sr.ht/~whereswaldon/thread-activity/samples"
)

// AggregateOptions configures how CPU usage is normalized.
type AggregateOptions struct {
	// MaxCPURate is the CPU usage per unit of time that maps to full intensity, e.g. 1000 for
	// samples measured in milliseconds with CPU deltas in microseconds on a single core. CPU
	// intensity is not computed if MaxCPURate is not positive.
	MaxCPURate float64
}

// Column summarizes the samples overlapping one pixel column.
type Column struct {
	Interval
	// Durations holds the time spent in each category, indexed like Aggregation.Categories.
	Durations []float64
	// Covered is the part of the column's interval that is covered by sample spans. The
	// remainder is idle.
	Covered float64
	// CPU is the time-weighted CPU intensity in [0, 1]. It is only meaningful if HasCPU is
	// true, which is the case when at least part of the column has a measured CPU usage.
	CPU    float64
	HasCPU bool

	cpuSum      float64
	cpuMeasured float64
}

// Fraction returns the share of the column's interval spent in the category at index idx.
func (c *Column) Fraction(idx int) float64 {
	d := c.Duration()
	if d <= 0 {
		return 0
	}
	return clamp(c.Durations[idx]/d, 0, 1)
}

// Aggregation is the per-column summary of a model for one view.
type Aggregation struct {
	// Categories lists the categories present in the view in ascending order.
	Categories []samples.CategoryID
	Columns    []Column
}

// CategoryIndex returns the index of cat in a.Categories.
func (a *Aggregation) CategoryIndex(cat samples.CategoryID) (int, bool) {
	return slices.BinarySearch(a.Categories, cat)
}

// Duration returns the time column col spent in cat.
func (a *Aggregation) Duration(col int, cat samples.CategoryID) float64 {
	idx, ok := a.CategoryIndex(cat)
	if !ok {
		return 0
	}
	return a.Columns[col].Durations[idx]
}

// Dominant returns the category with the largest duration in column col. Ties go to the lower
// category ID.
func (a *Aggregation) Dominant(col int) (samples.CategoryID, bool) {
	c := &a.Columns[col]
	best := -1
	for i, d := range c.Durations {
		if d > 0 && (best == -1 || d > c.Durations[best]) {
			best = i
		}
	}
	if best == -1 {
		return 0, false
	}
	return a.Categories[best], true
}

// visibleSamples returns the index range of samples whose spans intersect the view.
func visibleSamples(m *samples.Model, v View) (first, end int) {
	first = m.Search(v.Start, v.End)
	end = first
	for end < m.Len() && m.At(end).Time < v.End {
		end++
	}
	return first, end
}

// Aggregate integrates the samples of m over the columns of v. Each sample's span is
// distributed over the columns it overlaps in proportion to the overlap. Samples and columns
// are both sorted by time, so a single pass over each suffices.
func Aggregate(m *samples.Model, v View, opts AggregateOptions) (Aggregation, error) {
	if err := v.validate(); err != nil {
		return Aggregation{}, err
	}
	first, end := visibleSamples(m, v)

	var cats []samples.CategoryID
	for i := first; i < end; i++ {
		s := m.At(i)
		if s.IsNull() {
			cats = append(cats, samples.Unknown)
			continue
		}
		for _, w := range s.Weights {
			cats = append(cats, w.Category)
		}
	}
	slices.Sort(cats)
	cats = slices.Compact(cats)

	a := Aggregation{
		Categories: cats,
		Columns:    make([]Column, v.Width),
	}
	k := len(cats)
	durations := make([]float64, v.Width*k)
	for i := range a.Columns {
		a.Columns[i] = Column{
			Interval:  v.Column(i),
			Durations: durations[i*k : (i+1)*k : (i+1)*k],
		}
	}

	// Scratch mapping from a sample's weights to category indices.
	var slots []int
	for i := first; i < end; i++ {
		s := m.At(i)
		span := Interval{Start: s.Time, End: m.SpanEnd(i, v.End)}
		d := span.Duration()
		if d <= 0 {
			continue
		}
		lo, hi := max(span.Start, v.Start), min(span.End, v.End)
		if hi <= lo {
			continue
		}

		slots = slots[:0]
		if s.IsNull() {
			idx, _ := a.CategoryIndex(samples.Unknown)
			slots = append(slots, idx)
		} else {
			for _, w := range s.Weights {
				idx, _ := a.CategoryIndex(w.Category)
				slots = append(slots, idx)
			}
		}
		// Usage is drawn over the sample's span but measured over the gap before it.
		var rate float64
		measured := s.CPU.Valid()
		if measured {
			if gap := m.MeasuredSpan(i, v.End); gap > 0 {
				rate = s.CPU.Value / gap
			} else {
				measured = false
			}
		}

		for c := v.firstColumn(lo); c < v.Width; c++ {
			col := &a.Columns[c]
			if col.Start >= hi {
				break
			}
			o := col.overlap(lo, hi)
			if o <= 0 {
				continue
			}
			col.Covered += o
			if s.IsNull() {
				col.Durations[slots[0]] += o
			} else {
				for j, w := range s.Weights {
					col.Durations[slots[j]] += o * w.Fraction
				}
			}
			if measured {
				col.cpuSum += o * rate
				col.cpuMeasured += o
			}
		}
	}

	for i := range a.Columns {
		finishColumn(&a.Columns[i], opts)
	}
	return a, nil
}

func finishColumn(col *Column, opts AggregateOptions) {
	for j, d := range col.Durations {
		if d < 0 {
			col.Durations[j] = 0
		}
	}
	col.Covered = clamp(col.Covered, 0, col.Duration())
	if col.cpuMeasured > 0 && opts.MaxCPURate > 0 {
		col.CPU = clamp(col.cpuSum/(col.cpuMeasured*opts.MaxCPURate), 0, 1)
		col.HasCPU = true
	}
}
