package graph

import (
	"git.sr.ht/~whereswaldon/thread-activity/samples"
)

// Hit describes what lies under a pointer.
type Hit struct {
	Column int
	// Time is the timestamp under the pointer.
	Time float64
	// Sample is the index of the sample whose span contains Time. It is only meaningful if
	// HasSample is set.
	Sample    int
	HasSample bool

	Dominant    samples.CategoryID
	HasDominant bool

	CPU    float64
	HasCPU bool
}

// HitTest resolves the horizontal pixel coordinate x to the column under it. It only reads the
// model and the view, so it may run concurrently with a render of the same model. The second
// return value is false if x is outside the view or no sample covers the column.
func HitTest(m *samples.Model, v View, opts AggregateOptions, x float64) (Hit, bool) {
	if v.validate() != nil {
		return Hit{}, false
	}
	col, ok := v.ColumnAt(x)
	if !ok {
		return Hit{}, false
	}
	hit := Hit{
		Column: col,
		Time:   v.TimeAt(x),
	}

	iv := v.Column(col)
	a, err := Aggregate(m, View{Start: iv.Start, End: iv.End, Width: 1, Height: v.Height}, opts)
	if err != nil || a.Columns[0].Covered <= 0 {
		return hit, false
	}
	c := &a.Columns[0]
	hit.Dominant, hit.HasDominant = a.Dominant(0)
	hit.CPU, hit.HasCPU = c.CPU, c.HasCPU

	if idx := m.Search(hit.Time, v.End); idx < m.Len() && m.At(idx).Time <= hit.Time {
		hit.Sample, hit.HasSample = idx, true
	}
	return hit, true
}
