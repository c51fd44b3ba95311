package backend

import (
	"errors"
	"reflect"
	"testing"

	"git.sr.ht/~whereswaldon/thread-activity/samples"
	"git.sr.ht/~whereswaldon/thread-activity/tracefile"
)

func record(thread string, ts float64, cat samples.CategoryID) tracefile.Record {
	return tracefile.Record{
		Thread: thread,
		Sample: samples.Sample{Time: ts, Weights: []samples.Weight{{Category: cat, Fraction: 1}}},
	}
}

func TestDatasetBuilderUnifiesCategories(t *testing.T) {
	b := newDatasetBuilder(1)
	b.SetHeadings(1, []string{"running", "sleeping"})
	b.SetHeadings(2, []string{"sleeping", "zombie"})

	for _, in := range []struct {
		source int
		rec    tracefile.Record
	}{
		{1, record("main", 0, 0)},
		{2, record("worker", 0, 0)},
		{1, record("main", 1, 1)},
		{2, record("worker", 1, 1)},
	} {
		if err := b.Insert(in.source, in.rec); err != nil {
			t.Fatal(err)
		}
	}
	ds := b.Snapshot()
	if expected := []string{"running", "sleeping", "zombie"}; !reflect.DeepEqual(ds.Categories, expected) {
		t.Fatalf("expected categories %v, got %v", expected, ds.Categories)
	}
	if len(ds.Threads) != 2 || ds.Threads[0].Name != "main" || ds.Threads[1].Name != "worker" {
		t.Fatalf("expected threads main and worker, got %+v", ds.Threads)
	}
	worker := ds.Threads[1].Model
	if got := worker.At(0).Weights[0].Category; got != 1 {
		t.Errorf("expected worker's first sample to be sleeping (1), got %d", got)
	}
	if got := worker.At(1).Weights[0].Category; got != 2 {
		t.Errorf("expected worker's second sample to be zombie (2), got %d", got)
	}
	if got := ds.CategoryName(2); got != "zombie" {
		t.Errorf("expected category 2 to be named zombie, got %q", got)
	}
	if got := ds.CategoryName(samples.Unknown); got != "unknown" {
		t.Errorf("expected the unknown category to be named unknown, got %q", got)
	}
	if ids := ds.CategoryIDs(); !reflect.DeepEqual(ids, []samples.CategoryID{0, 1, 2}) {
		t.Errorf("expected only named categories without null samples, got %v", ids)
	}

	if err := b.Insert(1, tracefile.Record{Thread: "main", Sample: samples.Sample{Time: 2}}); err != nil {
		t.Fatal(err)
	}
	if ids := b.Snapshot().CategoryIDs(); !reflect.DeepEqual(ids, []samples.CategoryID{0, 1, 2, samples.Unknown}) {
		t.Errorf("expected unknown to follow the named categories once a null sample arrives, got %v", ids)
	}
}

func TestDatasetBuilderRejects(t *testing.T) {
	b := newDatasetBuilder(0)
	if err := b.Insert(1, record("main", 0, 0)); !errors.Is(err, tracefile.ErrMissingHeadings) {
		t.Errorf("expected ErrMissingHeadings for a source without headings, got %v", err)
	}
	b.SetHeadings(1, []string{"running"})
	if err := b.Insert(1, record("main", 5, 0)); err != nil {
		t.Fatal(err)
	}
	if err := b.Insert(1, record("main", 4, 0)); !errors.Is(err, samples.ErrUnsortedSamples) {
		t.Errorf("expected ErrUnsortedSamples for an out-of-order record, got %v", err)
	}
	if err := b.Insert(1, record("main", 6, 3)); !errors.Is(err, tracefile.ErrMalformedRecord) {
		t.Errorf("expected ErrMalformedRecord for an unknown column, got %v", err)
	}
	// Other threads are unaffected by the ordering of main.
	if err := b.Insert(1, record("worker", 1, 0)); err != nil {
		t.Errorf("expected another thread to accept an earlier time, got %v", err)
	}
}

func TestDatasetSnapshotIsolation(t *testing.T) {
	b := newDatasetBuilder(1)
	b.SetHeadings(1, []string{"running"})
	if err := b.Insert(1, record("main", 0, 0)); err != nil {
		t.Fatal(err)
	}
	snap := b.Snapshot()
	b.SetHeadings(2, []string{"idle"})
	if err := b.Insert(1, record("main", 1, 0)); err != nil {
		t.Fatal(err)
	}
	if err := b.Insert(2, record("other", 0, 0)); err != nil {
		t.Fatal(err)
	}
	if len(snap.Categories) != 1 || len(snap.Threads) != 1 || snap.Threads[0].Model.Len() != 1 {
		t.Errorf("snapshot changed after later inserts: %+v", snap)
	}
	start, end, ok := snap.Domain()
	if !ok || start != 0 || end != 1 {
		t.Errorf("expected snapshot domain [0, 1), got [%v, %v) %v", start, end, ok)
	}
	if _, _, ok := (Dataset{}).Domain(); ok {
		t.Errorf("expected an empty dataset to have no domain")
	}
	if !b.Snapshot().Initialized() || (Dataset{}).Initialized() {
		t.Errorf("unexpected Initialized results")
	}
}
