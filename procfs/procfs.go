// Package procfs reads the scheduler state and CPU time of threads from a Linux /proc
// filesystem.
package procfs

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"git.sr.ht/~whereswaldon/thread-activity/sensors"
)

// Root is where the proc filesystem is mounted.
const Root = "/proc"

// ticksPerSecond is USER_HZ, the unit of the utime and stime fields. It is 100 on every
// architecture Linux supports.
const ticksPerSecond = 100

var ErrMalformedStat = errors.New("malformed stat file")

type taskFile struct {
	path      string
	name      string
	tid       int
	file      *os.File
	lastTicks uint64
}

var _ sensors.Sensor = (*taskFile)(nil)

func (t *taskFile) Name() string {
	return t.name
}

func (t *taskFile) TID() int {
	return t.tid
}

func (t *taskFile) Close() error {
	return t.file.Close()
}

// Read returns the current state of the thread and the CPU time it used since the previous
// call. The first call reports the CPU time since the thread started.
func (t *taskFile) Read() (sensors.Reading, error) {
	var buf [1024]byte
	if _, err := t.file.Seek(0, io.SeekStart); err != nil {
		return sensors.Reading{}, fmt.Errorf("failed rewinding %s: %w", t.path, err)
	}
	n, err := t.file.Read(buf[:])
	if err != nil {
		return sensors.Reading{}, fmt.Errorf("failed reading %s: %w", t.path, err)
	}
	st, err := parseStat(buf[:n])
	if err != nil {
		return sensors.Reading{}, fmt.Errorf("failed parsing %s: %w", t.path, err)
	}
	ticks := st.utime + st.stime
	var increment uint64
	if ticks >= t.lastTicks {
		increment = ticks - t.lastTicks
	}
	t.lastTicks = ticks
	return sensors.Reading{
		State: sensors.ParseState(st.state),
		CPU:   time.Duration(increment) * time.Second / ticksPerSecond,
	}, nil
}

type stat struct {
	tid          int
	comm         string
	state        byte
	utime, stime uint64
}

// parseStat parses the fields of a stat file that are needed here. The command name is
// wrapped in parentheses and may itself contain spaces and parentheses, so the fields after
// it are found from the last closing parenthesis.
func parseStat(data []byte) (stat, error) {
	open := bytes.IndexByte(data, '(')
	end := bytes.LastIndexByte(data, ')')
	if open < 0 || end < open {
		return stat{}, ErrMalformedStat
	}
	tid, err := strconv.Atoi(string(bytes.TrimSpace(data[:open])))
	if err != nil {
		return stat{}, fmt.Errorf("%w: pid: %w", ErrMalformedStat, err)
	}
	// Fields from the state onwards, so utime and stime are the 12th and 13th.
	rest := bytes.Fields(data[end+1:])
	if len(rest) < 13 || len(rest[0]) != 1 {
		return stat{}, fmt.Errorf("%w: %d fields", ErrMalformedStat, len(rest))
	}
	utime, err := strconv.ParseUint(string(rest[11]), 10, 64)
	if err != nil {
		return stat{}, fmt.Errorf("%w: utime: %w", ErrMalformedStat, err)
	}
	stime, err := strconv.ParseUint(string(rest[12]), 10, 64)
	if err != nil {
		return stat{}, fmt.Errorf("%w: stime: %w", ErrMalformedStat, err)
	}
	return stat{
		tid:   tid,
		comm:  string(data[open+1 : end]),
		state: rest[0][0],
		utime: utime,
		stime: stime,
	}, nil
}

// ListThreads returns the thread IDs of process pid below root.
func ListThreads(root string, pid int) ([]int, error) {
	taskDir := filepath.Join(root, strconv.Itoa(pid), "task")
	entries, err := os.ReadDir(taskDir)
	if err != nil {
		return nil, fmt.Errorf("failed listing threads of %d: %w", pid, err)
	}
	tids := make([]int, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		tid, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		tids = append(tids, tid)
	}
	return tids, nil
}

// OpenThread opens the stat file of thread tid of process pid. The sensor is named
// "<comm>-<tid>".
func OpenThread(root string, pid, tid int) (*taskFile, error) {
	path := filepath.Join(root, strconv.Itoa(pid), "task", strconv.Itoa(tid), "stat")
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed opening file %q: %w", path, err)
	}
	data, err := io.ReadAll(file)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed reading %q: %w", path, err)
	}
	st, err := parseStat(data)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed parsing %q: %w", path, err)
	}
	return &taskFile{
		path: path,
		name: st.comm + "-" + strconv.Itoa(st.tid),
		tid:  st.tid,
		file: file,
	}, nil
}
