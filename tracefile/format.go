// Package tracefile reads and writes the CSV format in which thread samples are recorded.
package tracefile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"git.sr.ht/~whereswaldon/thread-activity/samples"
)

var (
	ErrMissingHeadings   = errors.New("missing csv headings")
	ErrMalformedRecord   = errors.New("malformed sample record")
	ErrTooManyCategories = errors.New("too many categories")
)

const (
	threadCol = iota
	timeCol
	cpuCol
	firstCategoryCol
)

// FixedHeadings are the columns that precede the category columns.
var FixedHeadings = []string{"thread", "time (ms)", "cpu (µs)"}

// unreliableCPU marks a CPU cell whose measurement cannot be trusted. An empty cell means the
// measurement is missing.
const unreliableCPU = "?"

// ParseHeadings returns the category names of a heading record.
func ParseHeadings(rec []string) ([]string, error) {
	if len(rec) < firstCategoryCol {
		return nil, fmt.Errorf("%w: got %d columns", ErrMissingHeadings, len(rec))
	}
	categories := make([]string, 0, len(rec)-firstCategoryCol)
	for _, h := range rec[firstCategoryCol:] {
		categories = append(categories, strings.TrimSpace(h))
	}
	// Trailing separators leave an empty heading.
	for len(categories) > 0 && categories[len(categories)-1] == "" {
		categories = categories[:len(categories)-1]
	}
	if len(categories) >= int(samples.Unknown) {
		return nil, fmt.Errorf("%w: %d", ErrTooManyCategories, len(categories))
	}
	return categories, nil
}

// Record is one parsed sample row. Weight categories are column indices into the headings
// the record was parsed with.
type Record struct {
	Thread string
	Sample samples.Sample
}

// ParseRecord parses a sample row of a file with numCategories category columns.
func ParseRecord(numCategories int, rec []string) (Record, error) {
	if len(rec) < firstCategoryCol {
		return Record{}, fmt.Errorf("%w: got %d columns", ErrMalformedRecord, len(rec))
	}
	thread := strings.TrimSpace(rec[threadCol])
	if thread == "" {
		return Record{}, fmt.Errorf("%w: no thread name", ErrMalformedRecord)
	}
	ts, err := strconv.ParseFloat(strings.TrimSpace(rec[timeCol]), 64)
	if err != nil || math.IsNaN(ts) || math.IsInf(ts, 0) {
		return Record{}, fmt.Errorf("%w: time %q", ErrMalformedRecord, rec[timeCol])
	}
	var cpu samples.CPUUsage
	switch cell := strings.TrimSpace(rec[cpuCol]); cell {
	case "":
		cpu.State = samples.CPUMissing
	case unreliableCPU:
		cpu.State = samples.CPUUnreliable
	default:
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return Record{}, fmt.Errorf("%w: cpu %q", ErrMalformedRecord, cell)
		}
		cpu = samples.Measured(v)
	}

	var weights []samples.Weight
	for i, cell := range rec[firstCategoryCol:] {
		cell = strings.TrimSpace(cell)
		if cell == "" {
			continue
		}
		if i >= numCategories {
			return Record{}, fmt.Errorf("%w: value %q in column %d has no heading", ErrMalformedRecord, cell, i+firstCategoryCol)
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return Record{}, fmt.Errorf("%w: weight %q", ErrMalformedRecord, cell)
		}
		if v == 0 {
			continue
		}
		weights = append(weights, samples.Weight{Category: samples.CategoryID(i), Fraction: v})
	}
	return Record{
		Thread: thread,
		Sample: samples.Sample{Time: ts, Weights: weights, CPU: cpu},
	}, nil
}

// Writer writes samples in the CSV format ParseHeadings and ParseRecord read.
type Writer struct {
	w          *csv.Writer
	categories int
	record     []string
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: csv.NewWriter(w)}
}

// WriteHeadings must be called once before the first sample.
func (w *Writer) WriteHeadings(categories []string) error {
	w.categories = len(categories)
	w.record = make([]string, firstCategoryCol+len(categories))
	headings := append(append([]string{}, FixedHeadings...), categories...)
	return w.w.Write(headings)
}

// WriteSample writes s as a row of thread. Weights of categories without a heading, such as
// samples.Unknown, are dropped.
func (w *Writer) WriteSample(thread string, s samples.Sample) error {
	if w.record == nil {
		return ErrMissingHeadings
	}
	for i := range w.record {
		w.record[i] = ""
	}
	w.record[threadCol] = thread
	w.record[timeCol] = strconv.FormatFloat(s.Time, 'f', -1, 64)
	switch s.CPU.State {
	case samples.CPUMeasured:
		w.record[cpuCol] = strconv.FormatFloat(s.CPU.Value, 'f', -1, 64)
	case samples.CPUUnreliable:
		w.record[cpuCol] = unreliableCPU
	}
	for _, wt := range s.Weights {
		if int(wt.Category) < w.categories {
			w.record[firstCategoryCol+int(wt.Category)] = strconv.FormatFloat(wt.Fraction, 'f', -1, 64)
		}
	}
	return w.w.Write(w.record)
}

// Flush writes buffered rows to the underlying writer.
func (w *Writer) Flush() error {
	w.w.Flush()
	return w.w.Error()
}
