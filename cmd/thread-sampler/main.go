package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"slices"
	"time"

	"git.sr.ht/~whereswaldon/thread-activity/procfs"
	"git.sr.ht/~whereswaldon/thread-activity/samples"
	"git.sr.ht/~whereswaldon/thread-activity/sensors"
	"git.sr.ht/~whereswaldon/thread-activity/tracefile"
)

func linuxUsage() {
	fmt.Fprintf(flag.CommandLine.Output(), `%[1]s: collect a csv trace of the activity of every thread of a process
Usage:

 %[1]s [flags] -- command [args...] > file

OR

 %[1]s -pid <pid> | thread-activity

`, os.Args[0])
	flag.PrintDefaults()
}

func unsupportedUsage() {
	fmt.Fprintf(flag.CommandLine.Output(), `%[1]s: collect a csv trace of the activity of every thread of a process

This platform is unsupported; thread states are only available from /proc on Linux.

`, os.Args[0])
	flag.PrintDefaults()
}

func main() {
	switch runtime.GOOS {
	case "linux":
		flag.Usage = linuxUsage
	default:
		flag.Usage = unsupportedUsage
	}
	dur := flag.Duration("sample-interval", 10*time.Millisecond, "Interval between reading new samples from threads")
	outputName := flag.String("output", "-", "Output file for CSV thread data")
	pid := flag.Int("pid", 0, "Sample an already running process instead of launching a command")
	root := flag.String("proc", procfs.Root, "Mount point of the proc filesystem")
	flag.Parse()
	if runtime.GOOS != "linux" {
		flag.Usage()
		os.Exit(2)
	}

	var child *exec.Cmd
	exited := make(chan struct{})
	if *pid == 0 {
		if flag.NArg() < 1 {
			flag.Usage()
			os.Exit(2)
		}
		child = exec.Command(flag.Arg(0), flag.Args()[1:]...)
		child.Stdin = os.Stdin
		// Stdout carries the trace.
		child.Stdout = os.Stderr
		child.Stderr = os.Stderr
		if err := child.Start(); err != nil {
			log.Fatalf("failed launching %q: %v", flag.Arg(0), err)
		}
		*pid = child.Process.Pid
		go func() {
			defer close(exited)
			if err := child.Wait(); err != nil {
				log.Printf("%s exited: %v", flag.Arg(0), err)
			}
		}()
	}

	var output io.WriteCloser
	if *outputName == "-" {
		output = os.Stdout
	} else {
		f, err := os.Create(*outputName)
		if err != nil {
			log.Fatalf("failed opening output file %q: %v", *outputName, err)
		}
		output = f
	}
	buffered := bufio.NewWriter(output)
	trace := tracefile.NewWriter(buffered)
	headings := make([]string, len(sensors.States))
	for i, s := range sensors.States {
		headings[i] = s.String()
	}
	if err := trace.WriteHeadings(headings); err != nil {
		log.Fatalf("failed writing headings: %v", err)
	}
	flush := func() {
		if err := trace.Flush(); err != nil {
			log.Fatalf("failed writing trace: %v", err)
		}
		if err := buffered.Flush(); err != nil {
			log.Fatalf("failed writing trace: %v", err)
		}
	}
	closeOutput := func() {
		flush()
		if err := output.Close(); err != nil {
			log.Printf("failed closing output: %v", err)
		}
	}

	s := newSampler(*root, *pid)
	start := time.Now()
	lastReadTime := start
	s.discover()
	sampleRate := *dur
	ticker := time.NewTicker(sampleRate)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, shutdownSignals...)
	defer ticker.Stop()
	for {
		select {
		case sig := <-sigChan:
			if child != nil {
				// Keep sampling until the command has handled the signal.
				if err := forward(*pid, sig); err != nil {
					log.Printf("failed forwarding %v: %v", sig, err)
				}
				continue
			}
			closeOutput()
			return
		case <-exited:
			closeOutput()
			s.close()
			return
		case sampleTime := <-ticker.C:
			readings := s.read()
			readFinishedAt := time.Now()
			// A read that took too long covers more time than its interval, so its CPU time
			// cannot be attributed.
			reliable := readFinishedAt.Sub(lastReadTime) < sampleRate*2
			if !reliable {
				log.Printf("marking cpu unreliable for read duration %v >= sample rate %v", readFinishedAt.Sub(lastReadTime), sampleRate)
			}
			ts := float64(sampleTime.Sub(start)) / float64(time.Millisecond)
			for _, r := range readings {
				if err := trace.WriteSample(r.name, toSample(ts, r.Reading, reliable)); err != nil {
					log.Fatalf("failed writing sample: %v", err)
				}
			}
			flush()
			lastReadTime = sampleTime
			if !s.discover() && child == nil {
				closeOutput()
				return
			}
		}
	}
}

// toSample converts a reading into a sample whose only category is the state of the thread.
func toSample(ts float64, r sensors.Reading, reliable bool) samples.Sample {
	s := samples.Sample{Time: ts}
	if reliable {
		s.CPU = samples.Measured(float64(r.CPU.Microseconds()))
	} else {
		s.CPU.State = samples.CPUUnreliable
	}
	if r.State != sensors.Unknown {
		s.Weights = []samples.Weight{{Category: samples.CategoryID(slices.Index(sensors.States, r.State)), Fraction: 1}}
	}
	return s
}

type thread interface {
	sensors.Sensor
	TID() int
	Close() error
}

type namedReading struct {
	name string
	sensors.Reading
}

// sampler tracks the threads of a process as they start and exit.
type sampler struct {
	root    string
	pid     int
	threads []thread
}

func newSampler(root string, pid int) *sampler {
	return &sampler{root: root, pid: pid}
}

// discover opens threads that started since the last call. It reports whether the process
// still exists.
func (s *sampler) discover() bool {
	tids, err := procfs.ListThreads(s.root, s.pid)
	if err != nil {
		return false
	}
	for _, tid := range tids {
		if slices.ContainsFunc(s.threads, func(t thread) bool { return t.TID() == tid }) {
			continue
		}
		t, err := procfs.OpenThread(s.root, s.pid, tid)
		if err != nil {
			continue
		}
		// Pre-read so that the first sample only covers CPU time since discovery.
		if _, err := t.Read(); err != nil {
			t.Close()
			continue
		}
		s.threads = append(s.threads, t)
	}
	return true
}

// read samples every thread, dropping the ones that have exited.
func (s *sampler) read() []namedReading {
	readings := make([]namedReading, 0, len(s.threads))
	s.threads = slices.DeleteFunc(s.threads, func(t thread) bool {
		r, err := t.Read()
		if err != nil {
			t.Close()
			return true
		}
		readings = append(readings, namedReading{name: t.Name(), Reading: r})
		return false
	})
	return readings
}

func (s *sampler) close() {
	for _, t := range s.threads {
		t.Close()
	}
	s.threads = nil
}
