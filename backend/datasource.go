package backend

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"gioui.org/x/explorer"
	"git.sr.ht/~gioverse/skel/stream"
	"git.sr.ht/~whereswaldon/thread-activity/tracefile"
)

type Session struct {
	ID   string
	Data Dataset
	Mode Mode
	// Done is set once every source of the session has been read to its end. Sources that
	// are regular files are followed as they grow and never finish.
	Done bool
	Err  error
}

type InputKind uint8

const (
	KindSample InputKind = iota
	KindHeadings
	KindDone
)

// InputData is one event read from a source.
type InputData struct {
	Kind InputKind
	// Source identifies the source within the datasource.
	Source   int
	Headings []string
	tracefile.Record
}

type Mode uint8

const (
	ModeNone Mode = iota
	// ModeSampling sessions read a thread sampler launched by the datasource and record its
	// output to a file.
	ModeSampling
	ModeReplaying
)

// maxBatch bounds the number of inputs folded into one published snapshot.
const maxBatch = 4096

type Datasource struct {
	pool          *stream.MutationPool[string, Session]
	follower      *follower
	appCtx        context.Context
	interval      float64
	sourceCounter atomic.Int32
}

// NewDatasource creates a datasource whose sessions build models with the given nominal
// sampling interval in milliseconds (zero if unknown).
func NewDatasource(appCtx context.Context, mutator *stream.Mutator, interval float64) (*Datasource, error) {
	f, err := newFollower()
	if err != nil {
		return nil, err
	}
	go f.run(appCtx)
	ds := &Datasource{
		pool:     stream.NewMutationPool[string, Session](mutator),
		follower: f,
		appCtx:   appCtx,
		interval: interval,
	}
	return ds, nil
}

// LatestSession streams the state of the most recently started session, switching over
// whenever a new session starts.
func (d *Datasource) LatestSession(ctx context.Context) <-chan Session {
	return stream.Multiplex(d.pool.Stream(ctx), func(ctx context.Context, state string, mutations map[string]*stream.Mutation[Session]) (<-chan Session, string) {
		latest := ""
		for id := range mutations {
			// Session IDs sort by creation time.
			if id > latest {
				latest = id
			}
		}
		if latest == "" || latest == state {
			return nil, state
		}
		return mutations[latest].Stream(ctx), latest
	})
}

func generateSessionID() string {
	return strings.Replace(time.Now().UTC().Format("20060102150405.000000000"), ".", "", 1)
}

func sessionFileFor(sessionID string) string {
	return "thread-activity-" + sessionID + ".csv"
}

// source is an input of a session. wait is nil for sources that cannot grow.
type source struct {
	r    io.ReadCloser
	id   int
	wait func(ctx context.Context) bool
	stop func()
}

// openSource prepares r for reading, following it if it is a regular file.
func (d *Datasource) openSource(r io.ReadCloser) source {
	src := source{r: r, id: int(d.sourceCounter.Add(1)), stop: func() {}}
	f, ok := r.(*os.File)
	if !ok {
		return src
	}
	if fi, err := f.Stat(); err != nil || !fi.Mode().IsRegular() {
		return src
	}
	notify, unfollow, err := d.follower.follow(f.Name())
	if err != nil {
		log.Printf("not following %s: %v", f.Name(), err)
		return src
	}
	src.wait = waitFor(notify)
	src.stop = unfollow
	return src
}

func (d *Datasource) recordSession(sessionID string, mode Mode, files ...io.ReadCloser) *stream.Mutation[Session] {
	box, _ := stream.Mutate(d.pool, sessionID, func(ctx context.Context) (values <-chan Session) {
		out := make(chan Session, 1)
		go func() {
			defer close(out)
			session := Session{
				ID:   sessionID,
				Mode: mode,
			}
			// Emit the empty session immediately.
			out <- session

			inputs := make(chan InputData, 1024)
			for _, file := range files {
				go readSource(ctx, d.openSource(file), inputs)
			}
			remaining := len(files)

			var sessionFile *os.File
			var sessionWriter *bufio.Writer
			var recorder *tracefile.Writer
			if mode == ModeSampling {
				var err error
				sessionFile, err = os.Create(sessionFileFor(sessionID))
				if err != nil {
					session.Err = err
					out <- session
					return
				}
				sessionWriter = bufio.NewWriter(sessionFile)
				recorder = tracefile.NewWriter(sessionWriter)
			}
			flushAll := func() {
				if recorder == nil {
					return
				}
				err := recorder.Flush()
				err = errors.Join(err, sessionWriter.Flush(), sessionFile.Close())
				recorder = nil
				if err != nil {
					session.Err = err
					select {
					case out <- session:
					default:
					}
				}
			}

			data := newDatasetBuilder(d.interval)
			consume := func(in InputData) {
				switch in.Kind {
				case KindHeadings:
					data.SetHeadings(in.Source, in.Headings)
					if recorder != nil {
						if err := recorder.WriteHeadings(in.Headings); err != nil {
							session.Err = err
						}
					}
				case KindSample:
					if err := data.Insert(in.Source, in.Record); err != nil {
						log.Printf("dropping sample: %v", err)
						return
					}
					if recorder != nil {
						if err := recorder.WriteSample(in.Thread, in.Sample); err != nil {
							session.Err = err
						}
					}
				case KindDone:
					remaining--
				}
			}
			for {
				select {
				case <-ctx.Done():
					flushAll()
					return
				case in := <-inputs:
					consume(in)
				drain:
					for i := 1; i < maxBatch; i++ {
						select {
						case in := <-inputs:
							consume(in)
						default:
							break drain
						}
					}
				}
				session.Data = data.Snapshot()
				session.Done = remaining == 0
				if session.Done {
					flushAll()
				}
				select {
				case out <- session:
				case <-ctx.Done():
					flushAll()
					return
				}
			}
		}()
		return out
	})
	return box
}

// LoadFromFile lets the user choose a recording and replays it.
func (d *Datasource) LoadFromFile(expl *explorer.Explorer) (string, error) {
	file, err := expl.ChooseFile()
	if err != nil {
		return "", err
	}
	return d.LoadFromStream(ModeReplaying, file), nil
}

// LoadFiles replays the recordings at paths as one session.
func (d *Datasource) LoadFiles(paths ...string) (string, error) {
	files := make([]io.ReadCloser, 0, len(paths))
	var err error
	for _, p := range paths {
		f, openErr := os.Open(p)
		if openErr != nil {
			err = errors.Join(err, openErr)
			continue
		}
		files = append(files, f)
	}
	if err != nil {
		for _, f := range files {
			f.Close()
		}
		return "", err
	}
	return d.LoadFromStream(ModeReplaying, files...), nil
}

func (d *Datasource) LoadFromStream(mode Mode, files ...io.ReadCloser) string {
	id := generateSessionID()
	return d.LoadFromStreamWithID(id, mode, files...)
}

func (d *Datasource) LoadFromStreamWithID(sessionID string, mode Mode, files ...io.ReadCloser) string {
	d.recordSession(sessionID, mode, files...)
	return sessionID
}

// LaunchSampler starts the thread sampler on the given command line and records its output.
func (d *Datasource) LaunchSampler(args ...string) (string, error) {
	traceReader, err := launchSampler(d.appCtx, args)
	if err != nil {
		return "", err
	}
	id := generateSessionID()
	d.recordSession(id, ModeSampling, traceReader)
	return id, nil
}

func runSamplerWithName(ctx context.Context, exeName string, args []string) (io.ReadCloser, error) {
	cmd := exec.CommandContext(ctx, exeName, append([]string{"--"}, args...)...)
	cmd.Stderr = os.Stderr
	out, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed acquiring stdout pipe: %w", err)
	}
	return out, cmd.Start()
}

func launchSampler(ctx context.Context, args []string) (io.ReadCloser, error) {
	const samplerExeName = "thread-sampler"
	execPath, err := os.Executable()
	if err == nil {
		samplerExe := filepath.Join(filepath.Dir(execPath), samplerExeName)
		if runtime.GOOS == "windows" {
			samplerExe += ".exe"
		}
		log.Printf("Looking for %q", samplerExe)
		output, err := runSamplerWithName(ctx, samplerExe, args)
		if err == nil {
			return output, nil
		}
	}

	log.Printf("Searching path for sampler")
	samplerExe, err := exec.LookPath(samplerExeName)
	if err != nil {
		return nil, fmt.Errorf("unable to locate %q in $PATH: %w", samplerExeName, err)
	}

	output, err := runSamplerWithName(ctx, samplerExe, args)
	if err != nil {
		return nil, fmt.Errorf("failed launching %q: %w", samplerExe, err)
	}

	return output, nil
}

// readSource parses the CSV data of src and sends it on out until the data ends or ctx is
// done. It always finishes with a KindDone input.
func readSource(ctx context.Context, src source, out chan<- InputData) {
	send := func(in InputData) bool {
		in.Source = src.id
		select {
		case out <- in:
			return true
		case <-ctx.Done():
			return false
		}
	}
	defer func() {
		src.stop()
		if err := src.r.Close(); err != nil {
			log.Printf("failed closing source %d: %v", src.id, err)
		}
		send(InputData{Kind: KindDone})
	}()

	csvReader := csv.NewReader(NewLineReader(src.r))
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1
	var headings []string
	// Continuously parse the CSV data and send it on the channel.
readLoop:
	for {
		rec, err := csvReader.Read()
		if err != nil {
			var parseErr *csv.ParseError
			switch {
			case errors.Is(err, io.EOF):
				if src.wait != nil && src.wait(ctx) {
					continue readLoop
				}
				return
			case errors.As(err, &parseErr):
				log.Printf("skipping unparseable sample data: %v", err)
				continue readLoop
			default:
				log.Printf("could not read sample data: %v", err)
				return
			}
		}
		if headings == nil {
			headings, err = tracefile.ParseHeadings(rec)
			if err != nil {
				log.Printf("failed reading CSV headings: %v", err)
				return
			}
			if !send(InputData{Kind: KindHeadings, Headings: headings}) {
				return
			}
			continue
		}
		r, err := tracefile.ParseRecord(len(headings), rec)
		if err != nil {
			log.Printf("skipping record: %v", err)
			continue
		}
		if !send(InputData{Kind: KindSample, Record: r}) {
			return
		}
	}
}
