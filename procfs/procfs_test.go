package procfs

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"testing"
	"time"

	"git.sr.ht/~whereswaldon/thread-activity/sensors"
)

func statLine(tid int, comm string, state byte, utime, stime int) string {
	return strconv.Itoa(tid) + " (" + comm + ") " + string(state) +
		" 1 1 1 0 -1 4194560 100 0 0 0 " +
		strconv.Itoa(utime) + " " + strconv.Itoa(stime) +
		" 0 0 20 0 4 0 100 1000 200\n"
}

func TestParseStat(t *testing.T) {
	type testcase struct {
		name     string
		input    string
		expected stat
		err      bool
	}
	for _, tc := range []testcase{
		{
			name:     "simple",
			input:    statLine(42, "worker", 'R', 7, 3),
			expected: stat{tid: 42, comm: "worker", state: 'R', utime: 7, stime: 3},
		},
		{
			name:     "parens in name",
			input:    statLine(7, "a) (b", 'S', 1, 2),
			expected: stat{tid: 7, comm: "a) (b", state: 'S', utime: 1, stime: 2},
		},
		{
			name:  "truncated",
			input: "12 (x) R 1 2 3",
			err:   true,
		},
		{
			name:  "no name",
			input: "12 x R",
			err:   true,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			st, err := parseStat([]byte(tc.input))
			if tc.err {
				if !errors.Is(err, ErrMalformedStat) {
					t.Errorf("expected ErrMalformedStat, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if st != tc.expected {
				t.Errorf("expected %+v, got %+v", tc.expected, st)
			}
		})
	}
}

func writeStat(t *testing.T, root string, pid, tid int, content string) {
	t.Helper()
	dir := filepath.Join(root, strconv.Itoa(pid), "task", strconv.Itoa(tid))
	if err := os.MkdirAll(filepath.Join(dir, "fd"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "stat"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestOpenThread(t *testing.T) {
	root := t.TempDir()
	writeStat(t, root, 100, 100, statLine(100, "main", 'S', 10, 5))
	writeStat(t, root, 100, 101, statLine(101, "io worker", 'D', 0, 0))
	writeStat(t, root, 100, 102, "garbage")

	worker, err := OpenThread(root, 100, 101)
	if err != nil {
		t.Fatal(err)
	}
	defer worker.Close()
	if worker.Name() != "io worker-101" || worker.TID() != 101 {
		t.Errorf("expected io worker-101, got %q (%d)", worker.Name(), worker.TID())
	}

	mainThread, err := OpenThread(root, 100, 100)
	if err != nil {
		t.Fatal(err)
	}
	defer mainThread.Close()
	r, err := mainThread.Read()
	if err != nil {
		t.Fatal(err)
	}
	if r.State != sensors.Sleeping || r.CPU != 150*time.Millisecond {
		t.Errorf("expected first reading to be sleeping with 150ms of CPU, got %+v", r)
	}
	writeStat(t, root, 100, 100, statLine(100, "main", 'R', 12, 6))
	r, err = mainThread.Read()
	if err != nil {
		t.Fatal(err)
	}
	if r.State != sensors.Running || r.CPU != 30*time.Millisecond {
		t.Errorf("expected running with 30ms of CPU since the last reading, got %+v", r)
	}

	if _, err := OpenThread(root, 100, 102); !errors.Is(err, ErrMalformedStat) {
		t.Errorf("expected a malformed stat error, got %v", err)
	}
	if _, err := OpenThread(root, 999, 999); err == nil {
		t.Errorf("expected an error for a missing thread")
	}
}

func TestListThreads(t *testing.T) {
	root := t.TempDir()
	writeStat(t, root, 7, 7, statLine(7, "main", 'R', 0, 0))
	writeStat(t, root, 7, 9, statLine(9, "worker", 'S', 0, 0))
	if err := os.MkdirAll(filepath.Join(root, "7", "task", "not-a-tid"), 0o755); err != nil {
		t.Fatal(err)
	}
	tids, err := ListThreads(root, 7)
	if err != nil {
		t.Fatal(err)
	}
	slices.Sort(tids)
	if expected := []int{7, 9}; !slices.Equal(tids, expected) {
		t.Errorf("expected tids %v, got %v", expected, tids)
	}
	if _, err := OpenThread(root, 7, 8); err == nil {
		t.Errorf("expected an error opening a thread that does not exist")
	}
}
