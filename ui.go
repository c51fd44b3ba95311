package main

import (
	"errors"
	"image"
	"image/color"
	"log"
	"strings"

	"gioui.org/font/gofont"
	"gioui.org/layout"
	"gioui.org/text"
	"gioui.org/widget"
	"gioui.org/widget/material"
	"gioui.org/x/explorer"
	"git.sr.ht/~gioverse/skel/stream"

	"git.sr.ht/~whereswaldon/thread-activity/backend"
)

type (
	C = layout.Context
	D = layout.Dimensions
)

// UI is responsible for holding the state of and drawing the top-level UI.
type UI struct {
	ws   backend.WindowState
	expl *explorer.Explorer
	// command is the command line the sampler is launched on.
	command []string

	chart       *Chart
	launchBtn   widget.Clickable
	explorerBtn widget.Clickable
	launching   bool
	sessionErr  string

	th            *material.Theme
	sessionStream *stream.Stream[backend.Session]
	session       backend.Session
}

func NewUI(ws backend.WindowState, expl *explorer.Explorer, opts chartOptions, command []string) *UI {
	th := material.NewTheme()
	th.Shaper = text.NewShaper(text.WithCollection(gofont.Collection()), text.NoSystemFonts())
	return &UI{
		ws:            ws,
		th:            th,
		expl:          expl,
		command:       command,
		chart:         NewChart(opts),
		sessionStream: stream.New(ws.Controller, ws.Bundle.Datasource.LatestSession),
	}
}

// Update the state of the UI and process events.
func (ui *UI) Update(gtx C) {
	if session, ok := ui.sessionStream.ReadNew(gtx); ok {
		ui.session = session
		ui.chart.SetDataset(session.Data)
		if session.Err != nil {
			ui.sessionErr = session.Err.Error()
		}
	}
	if !ui.launching && len(ui.command) > 0 && ui.launchBtn.Clicked(gtx) {
		ui.launching = true
		if _, err := ui.ws.Bundle.Datasource.LaunchSampler(ui.command...); err != nil {
			ui.sessionErr = err.Error()
			ui.launching = false
		}
	}
	if ui.explorerBtn.Clicked(gtx) {
		go func() {
			if _, err := ui.ws.Bundle.Datasource.LoadFromFile(ui.expl); err != nil && !errors.Is(err, explorer.ErrUserDecline) {
				log.Printf("failed opening recording: %v", err)
			}
		}()
	}
}

func (ui *UI) status() string {
	switch ui.session.Mode {
	case backend.ModeSampling:
		if ui.session.Done {
			return "Sampling finished"
		}
		return "Sampling " + strings.Join(ui.command, " ")
	case backend.ModeReplaying:
		if ui.session.Done {
			return "Recording loaded"
		}
		return "Following recording"
	default:
		return ""
	}
}

func (ui *UI) layoutMainArea(gtx C) D {
	return layout.Flex{
		Axis: layout.Vertical,
	}.Layout(gtx,
		layout.Rigid(func(gtx C) D {
			return layout.UniformInset(4).Layout(gtx, material.Body2(ui.th, ui.status()).Layout)
		}),
		layout.Rigid(func(gtx C) D {
			if len(ui.sessionErr) == 0 {
				return D{}
			}
			l := material.Body1(ui.th, ui.sessionErr)
			l.Color = color.NRGBA{R: 150, A: 255}
			return l.Layout(gtx)
		}),
		layout.Flexed(1, func(gtx C) D {
			return ui.chart.Layout(gtx, ui.th)
		}),
	)
}

func (ui *UI) layoutStartScreen(gtx C) D {
	l := material.Body1(ui.th, "No data yet.")
	return layout.Flex{
		Axis:      layout.Vertical,
		Alignment: layout.Middle,
		Spacing:   layout.SpaceAround,
	}.Layout(gtx,
		layout.Rigid(func(gtx C) D {
			gtx.Constraints.Min = image.Point{}
			return l.Layout(gtx)
		}),
		layout.Rigid(func(gtx C) D {
			gtx.Constraints.Min = image.Point{}
			if len(ui.command) == 0 {
				return material.Body2(ui.th, "Pass -command to sample a program from here.").Layout(gtx)
			}
			if ui.launching {
				gtx = gtx.Disabled()
			}
			return material.Button(ui.th, &ui.launchBtn, "Launch Sampler").Layout(gtx)
		}),
		layout.Rigid(func(gtx C) D {
			gtx.Constraints.Min = image.Point{}
			return material.Button(ui.th, &ui.explorerBtn, "Open Recording").Layout(gtx)
		}),
		layout.Rigid(func(gtx C) D {
			gtx.Constraints.Min = image.Point{}
			return material.Body2(ui.th, ui.sessionErr).Layout(gtx)
		}),
	)
}

// Layout the UI into the provided context.
func (ui *UI) Layout(gtx C) D {
	ui.Update(gtx)
	if ui.session.Data.Initialized() {
		return ui.layoutMainArea(gtx)
	}
	return ui.layoutStartScreen(gtx)
}
