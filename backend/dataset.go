package backend

import (
	"fmt"
	"slices"

	"git.sr.ht/~whereswaldon/thread-activity/samples"
	"git.sr.ht/~whereswaldon/thread-activity/tracefile"
)

// Thread is the samples recorded for one thread.
type Thread struct {
	Name  string
	Model *samples.Model
}

// Dataset is an immutable snapshot of everything a session has loaded so far.
type Dataset struct {
	// Categories holds the category names, indexed by samples.CategoryID.
	Categories []string
	Threads    []Thread
}

func (d Dataset) Initialized() bool {
	return len(d.Threads) != 0
}

// Domain returns the time covered by any thread. ok is false if no thread has samples.
func (d Dataset) Domain() (dMin, dMax float64, ok bool) {
	for _, t := range d.Threads {
		tMin, tMax, err := t.Model.Domain()
		if err != nil {
			continue
		}
		if !ok {
			dMin, dMax, ok = tMin, tMax, true
			continue
		}
		dMin = min(tMin, dMin)
		dMax = max(tMax, dMax)
	}
	return dMin, dMax, ok
}

// CategoryName returns the display name of a category.
func (d Dataset) CategoryName(id samples.CategoryID) string {
	if id == samples.Unknown {
		return "unknown"
	}
	if int(id) < len(d.Categories) {
		return d.Categories[id]
	}
	return fmt.Sprintf("category %d", id)
}

// CategoryIDs returns every named category of the dataset, followed by samples.Unknown if
// any thread has samples without category information.
func (d Dataset) CategoryIDs() []samples.CategoryID {
	ids := make([]samples.CategoryID, 0, len(d.Categories)+1)
	for i := range d.Categories {
		ids = append(ids, samples.CategoryID(i))
	}
	for _, t := range d.Threads {
		if slices.Contains(t.Model.Categories(), samples.Unknown) {
			return append(ids, samples.Unknown)
		}
	}
	return ids
}

type threadBuilder struct {
	name    string
	builder *samples.Builder
}

// datasetBuilder accumulates the samples of all sources of a session. Sources number their
// categories by column, so each source gets a mapping onto the session's categories, which
// are unified by name.
type datasetBuilder struct {
	interval   float64
	categories []string
	threads    []threadBuilder
	// threadMapping maps thread names to their index in threads.
	threadMapping map[string]int
	// categoryMapping maps each source's column categories to session categories.
	categoryMapping map[int][]samples.CategoryID
}

func newDatasetBuilder(interval float64) *datasetBuilder {
	return &datasetBuilder{
		interval:        interval,
		threadMapping:   make(map[string]int),
		categoryMapping: make(map[int][]samples.CategoryID),
	}
}

// SetHeadings registers the categories of a source. It must be invoked before the first call
// to Insert for that source.
func (d *datasetBuilder) SetHeadings(source int, headings []string) {
	mapping := make([]samples.CategoryID, len(headings))
	for i, h := range headings {
		idx := slices.Index(d.categories, h)
		if idx < 0 {
			idx = len(d.categories)
			d.categories = append(d.categories, h)
		}
		mapping[i] = samples.CategoryID(idx)
	}
	d.categoryMapping[source] = mapping
}

// Insert appends a record of a source to its thread.
func (d *datasetBuilder) Insert(source int, rec tracefile.Record) error {
	mapping, ok := d.categoryMapping[source]
	if !ok {
		return fmt.Errorf("source %d: %w", source, tracefile.ErrMissingHeadings)
	}
	s := rec.Sample
	if len(s.Weights) > 0 {
		weights := make([]samples.Weight, len(s.Weights))
		for i, w := range s.Weights {
			if int(w.Category) >= len(mapping) {
				return fmt.Errorf("source %d category %d: %w", source, w.Category, tracefile.ErrMalformedRecord)
			}
			weights[i] = samples.Weight{Category: mapping[w.Category], Fraction: w.Fraction}
		}
		s.Weights = weights
	}
	idx, ok := d.threadMapping[rec.Thread]
	if !ok {
		idx = len(d.threads)
		d.threadMapping[rec.Thread] = idx
		d.threads = append(d.threads, threadBuilder{name: rec.Thread, builder: samples.NewBuilder(d.interval)})
	}
	if err := d.threads[idx].builder.Append(s); err != nil {
		return fmt.Errorf("thread %s: %w", rec.Thread, err)
	}
	return nil
}

// Snapshot returns the data inserted so far. Later inserts do not affect it.
func (d *datasetBuilder) Snapshot() Dataset {
	ds := Dataset{
		Categories: slices.Clip(d.categories),
		Threads:    make([]Thread, 0, len(d.threads)),
	}
	for _, t := range d.threads {
		if t.builder.Len() == 0 {
			continue
		}
		ds.Threads = append(ds.Threads, Thread{Name: t.name, Model: t.builder.Model()})
	}
	return ds
}
