package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gioui.org/app"
	"gioui.org/op"
	"gioui.org/x/explorer"
	"git.sr.ht/~gioverse/skel/stream"

	"git.sr.ht/~whereswaldon/thread-activity/backend"
)

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), `%[1]s: view the activity of the threads of a program
Usage:

 %[1]s [flags] [recording.csv...]

OR

 thread-sampler -- command | %[1]s

`, os.Args[0])
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	maxCPURate := flag.Float64("max-cpu-rate", 1000, "CPU µs per ms of wall time drawn at full intensity")
	interval := flag.Float64("interval", 0, "Nominal sampling interval of recordings in ms, 0 if unknown")
	cpuTrace := flag.String("cpu-trace", cpuTraceStroke, "How to draw CPU intensity: "+strings.Join([]string{cpuTraceNone, cpuTraceStroke, cpuTraceFill}, ", "))
	scaleByCPU := flag.Bool("scale-by-cpu", false, "Scale category heights by CPU intensity")
	command := flag.String("command", "", "Command line the sampler is launched on from the start screen")
	flag.Parse()
	switch *cpuTrace {
	case cpuTraceNone, cpuTraceStroke, cpuTraceFill:
	default:
		log.Fatalf("unknown cpu trace style %q", *cpuTrace)
	}
	if *maxCPURate <= 0 {
		log.Fatalf("max-cpu-rate must be positive, got %v", *maxCPURate)
	}
	opts := chartOptions{
		MaxCPURate: *maxCPURate,
		CPUTrace:   *cpuTrace,
		ScaleByCPU: *scaleByCPU,
	}

	ctx, cancel := context.WithCancel(context.Background())
	mutator := stream.NewMutator(ctx, time.Second)
	bundle, err := backend.NewBundle(ctx, mutator, *interval)
	if err != nil {
		log.Fatalf("failed initializing backend: %v", err)
	}
	if flag.NArg() > 0 {
		if _, err := bundle.Datasource.LoadFiles(flag.Args()...); err != nil {
			log.Fatalf("failed loading recordings: %v", err)
		}
	} else if fi, err := os.Stdin.Stat(); err == nil && fi.Mode()&os.ModeCharDevice == 0 {
		bundle.Datasource.LoadFromStream(backend.ModeReplaying, os.Stdin)
	}

	go func() {
		w := app.NewWindow(app.Title("Thread Activity"))
		expl := explorer.NewExplorer(w)
		ui := NewUI(backend.NewWindowState(ctx, bundle, w), expl, opts, strings.Fields(*command))
		if err := loop(w, expl, ui); err != nil {
			log.Fatal(err)
		}
		cancel()
		os.Exit(0)
	}()

	app.Main()
}

func loop(w *app.Window, expl *explorer.Explorer, ui *UI) error {
	var ops op.Ops
	for {
		ev := w.NextEvent()
		expl.ListenEvents(ev)
		switch ev := ev.(type) {
		case app.DestroyEvent:
			return ev.Err
		case app.FrameEvent:
			gtx := app.NewContext(&ops, ev)
			ui.Layout(gtx)
			ev.Frame(gtx.Ops)
		}
	}
}
