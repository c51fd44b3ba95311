package main

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"gioui.org/f32"
	"gioui.org/gesture"
	"gioui.org/io/event"
	"gioui.org/io/pointer"
	"gioui.org/layout"
	"gioui.org/op"
	"gioui.org/op/clip"
	"gioui.org/op/paint"
	"gioui.org/text"
	"gioui.org/unit"
	"gioui.org/widget"
	"gioui.org/widget/material"
	"gioui.org/x/component"
	"golang.org/x/exp/constraints"
	"golang.org/x/exp/shiny/materialdesign/icons"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"git.sr.ht/~whereswaldon/thread-activity/backend"
	"git.sr.ht/~whereswaldon/thread-activity/giosurface"
	"git.sr.ht/~whereswaldon/thread-activity/graph"
	"git.sr.ht/~whereswaldon/thread-activity/samples"
)

var pauseIcon = func() *widget.Icon {
	icon, _ := widget.NewIcon(icons.AVPause)
	return icon
}()

var playIcon = func() *widget.Icon {
	icon, _ := widget.NewIcon(icons.AVPlayArrow)
	return icon
}()

var local = message.NewPrinter(language.English)

const (
	cpuTraceNone   = "none"
	cpuTraceStroke = "stroke"
	cpuTraceFill   = "fill"
)

const (
	nameWidth   = unit.Dp(120)
	minRowDp    = unit.Dp(12)
	minMsPerDp  = 1e-3
	traceWidth  = unit.Dp(1.5)
	defaultZoom = 1
)

type chartOptions struct {
	MaxCPURate float64
	CPUTrace   string
	ScaleByCPU bool
}

// threadRow is the hover state of the graph of one thread.
type threadRow struct {
	pos       f32.Point
	isHovered bool
}

func (r *threadRow) Update(gtx C) {
	for {
		ev, ok := gtx.Event(pointer.Filter{
			Target: r,
			Kinds:  pointer.Enter | pointer.Leave | pointer.Move,
		})
		if !ok {
			break
		}
		switch ev := ev.(type) {
		case pointer.Event:
			switch ev.Kind {
			case pointer.Enter:
				r.isHovered = true
				r.pos = ev.Position
			case pointer.Leave, pointer.Cancel:
				r.isHovered = false
			case pointer.Move:
				r.pos = ev.Position
			}
		}
	}
}

// Chart draws one activity graph per thread over a shared, zoomable time axis.
type Chart struct {
	data backend.Dataset
	opts chartOptions
	// categories lists the categories of the legend in display order.
	categories []samples.CategoryID
	enabled    map[samples.CategoryID]*widget.Bool
	// totals holds the time spent in each of categories across every thread.
	totals []float64
	rows   []*threadRow

	zoom       gesture.Scroll
	pan        gesture.Scroll
	panBar     widget.Scrollbar
	xOffset    float64
	xOrigin    float64
	paused     bool
	pauseBtn   widget.Clickable
	scaleByCPU widget.Bool
	keyTable   component.GridState
	msPerDp    float64

	surface   *giosurface.Surface
	renderErr error
}

func NewChart(opts chartOptions) *Chart {
	c := &Chart{
		opts:    opts,
		enabled: make(map[samples.CategoryID]*widget.Bool),
		msPerDp: defaultZoom,
		surface: giosurface.New(nil, color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}),
	}
	c.scaleByCPU.Value = opts.ScaleByCPU
	return c
}

// SetDataset replaces the data shown by the chart, keeping the viewport and the legend state.
func (c *Chart) SetDataset(ds backend.Dataset) {
	c.data = ds
	c.categories = ds.CategoryIDs()
	for _, cat := range c.categories {
		if _, ok := c.enabled[cat]; !ok {
			c.enabled[cat] = &widget.Bool{Value: true}
		}
	}
	for len(c.rows) < len(ds.Threads) {
		c.rows = append(c.rows, &threadRow{})
	}
	c.totals = c.computeTotals()
}

// computeTotals aggregates every thread into a single column spanning the whole recording.
func (c *Chart) computeTotals() []float64 {
	totals := make([]float64, len(c.categories))
	dMin, dMax, ok := c.data.Domain()
	if !ok || dMax <= dMin {
		return totals
	}
	v, err := graph.NewView(dMin, dMax, 1, 1)
	if err != nil {
		return totals
	}
	for _, t := range c.data.Threads {
		a, err := graph.Aggregate(t.Model, v, graph.AggregateOptions{})
		if err != nil {
			continue
		}
		for i, cat := range c.categories {
			totals[i] += a.Duration(0, cat)
		}
	}
	return totals
}

// config builds the graph configuration from the legend and the options.
func (c *Chart) config(gtx C) graph.Config {
	cfg := graph.Config{
		Palette:    palette,
		Aggregate:  graph.AggregateOptions{MaxCPURate: c.opts.MaxCPURate},
		ScaleByCPU: c.scaleByCPU.Value,
	}
	for _, cat := range c.categories {
		if c.enabled[cat].Value {
			cfg.Order = append(cfg.Order, cat)
		}
	}
	switch c.opts.CPUTrace {
	case cpuTraceStroke:
		cfg.CPU = graph.CPUTrace{
			Enabled: true,
			Color:   cpuColor,
			Width:   float64(gtx.Metric.PxPerDp) * float64(traceWidth),
		}
	case cpuTraceFill:
		fill := cpuColor
		fill.A = 80
		cfg.CPU = graph.CPUTrace{Enabled: true, Color: fill, Filled: true}
	}
	return cfg
}

func (c *Chart) Update(gtx C) {
	if c.pauseBtn.Clicked(gtx) {
		_, dMax, _ := c.data.Domain()
		c.paused = !c.paused
		c.xOrigin = dMax + c.xOffset
		c.xOffset = 0
	}
	c.scaleByCPU.Update(gtx)
	for _, cat := range c.categories {
		c.enabled[cat].Update(gtx)
	}
}

func rec(gtx C, w layout.Widget) (D, op.CallOp) {
	macro := op.Record(gtx.Ops)
	dims := w(gtx)
	call := macro.Stop()
	return dims, call
}

// visibleRange applies pending zoom and pan gestures and returns the time range shown in a
// plot that is width pixels wide.
func (c *Chart) visibleRange(gtx C, width int) (start, end, dMin, dMax float64, ok bool) {
	dMin, dMax, ok = c.data.Domain()
	if !ok {
		return 0, 0, 0, 0, false
	}
	dist := c.zoom.Update(gtx.Metric, gtx.Source, gtx.Now, gesture.Vertical, image.Rect(0, -1e6, 0, 1e6))
	if dist != 0 {
		proportion := 1 + float64(dist)/float64(gtx.Constraints.Max.Y)
		c.msPerDp = max(c.msPerDp*proportion, minMsPerDp)
	}
	var panned float64
	dist = c.pan.Update(gtx.Metric, gtx.Source, gtx.Now, gesture.Horizontal, image.Rect(-1e6, 0, 1e6, 0))
	if dist != 0 {
		panned += float64(gtx.Metric.PxToDp(dist)) * c.msPerDp
	}
	if panDist := c.panBar.ScrollDistance(); panDist != 0 {
		panned += float64(panDist) * (dMax - dMin)
	}
	origin := dMax
	if c.paused {
		origin = c.xOrigin
	}
	if panned != 0 {
		if endCandidate := origin + c.xOffset + panned; endCandidate >= dMin && endCandidate <= dMax {
			c.xOffset += panned
		}
	}
	end = min(origin+c.xOffset, dMax)
	start = end - float64(gtx.Metric.PxToDp(width))*c.msPerDp
	return start, end, dMin, dMax, true
}

func (c *Chart) Layout(gtx C, th *material.Theme) D {
	c.Update(gtx)
	if len(c.data.Threads) < 1 {
		return D{Size: gtx.Constraints.Max}
	}
	origConstraints := gtx.Constraints
	gtx.Constraints.Min = image.Point{}

	// Determine the space occupied by the key.
	macro := op.Record(gtx.Ops)
	gtx.Constraints.Min.X = gtx.Constraints.Max.X
	gtx.Constraints.Max.Y = origConstraints.Max.Y / 3
	keyDims := c.layoutControls(gtx, th)
	keyCall := macro.Stop()
	gtx.Constraints = origConstraints

	labelW := min(gtx.Dp(nameWidth), gtx.Constraints.Max.X/3)
	start, end, dMin, dMax, ok := c.visibleRange(gtx, gtx.Constraints.Max.X-labelW)
	if !ok {
		return D{Size: gtx.Constraints.Max}
	}
	return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
		layout.Rigid(func(gtx C) D {
			return c.layoutToolbar(gtx, th)
		}),
		layout.Rigid(func(gtx C) D {
			if c.renderErr == nil {
				return D{}
			}
			l := material.Body2(th, c.renderErr.Error())
			l.Color = color.NRGBA{R: 150, A: 255}
			return l.Layout(gtx)
		}),
		layout.Flexed(1, func(gtx C) D {
			return c.layoutPlot(gtx, th, labelW, start, end, dMin, dMax)
		}),
		layout.Rigid(func(gtx C) D {
			minDomainLabel := material.Body1(th, local.Sprintf("%.1f ms", start))
			maxDomainLabel := material.Body1(th, local.Sprintf("%.1f ms", end))
			xAxisLabel := material.Body2(th, local.Sprintf("Time (spans %.1f ms, scale = %.3f ms/Dp)", end-start, c.msPerDp))
			xAxisLabel.MaxLines = 1
			xAxisLabel.Alignment = text.Middle
			return layout.Inset{Left: gtx.Metric.PxToDp(labelW)}.Layout(gtx, func(gtx C) D {
				return layout.Flex{
					Axis:      layout.Horizontal,
					Alignment: layout.Baseline,
				}.Layout(gtx,
					layout.Rigid(minDomainLabel.Layout),
					layout.Flexed(1, xAxisLabel.Layout),
					layout.Rigid(maxDomainLabel.Layout),
				)
			})
		}),
		layout.Rigid(func(gtx C) D {
			keyCall.Add(gtx.Ops)
			return keyDims
		}),
	)
}

func (c *Chart) layoutToolbar(gtx C, th *material.Theme) D {
	return layout.Flex{Alignment: layout.Middle}.Layout(gtx,
		layout.Rigid(func(gtx C) D {
			size := gtx.Dp(32)
			gtx.Constraints = layout.Exact(image.Pt(size, size))
			icon := pauseIcon
			if c.paused {
				icon = playIcon
			}
			return material.Clickable(gtx, &c.pauseBtn, func(gtx C) D {
				return layout.Center.Layout(gtx, func(gtx C) D {
					return icon.Layout(gtx, th.Fg)
				})
			})
		}),
		layout.Rigid(material.CheckBox(th, &c.scaleByCPU, "Scale by CPU").Layout),
		layout.Flexed(1, func(gtx C) D {
			l := material.Body2(th, local.Sprintf("%d threads", len(c.data.Threads)))
			l.Alignment = text.End
			return l.Layout(gtx)
		}),
	)
}

// layoutPlot draws the graph of every thread between start and end, stacked vertically, with
// the thread names in a column labelW pixels wide.
func (c *Chart) layoutPlot(gtx C, th *material.Theme, labelW int, start, end, dMin, dMax float64) D {
	size := gtx.Constraints.Max
	defer clip.Rect{Max: size}.Push(gtx.Ops).Pop()
	c.pan.Add(gtx.Ops)
	c.zoom.Add(gtx.Ops)

	plotW := size.X - labelW
	rowH := max(size.Y/len(c.data.Threads), gtx.Dp(minRowDp))
	gap := gtx.Dp(1)
	v, err := graph.NewView(start, end, plotW, rowH-gap)
	if err != nil {
		c.renderErr = err
		return D{Size: size}
	}
	c.renderErr = nil
	cfg := c.config(gtx)

	hovered := -1
	for i, t := range c.data.Threads {
		if i*rowH >= size.Y {
			break
		}
		row := c.rows[i]
		row.Update(gtx)

		stack := op.Offset(image.Pt(0, i*rowH)).Push(gtx.Ops)
		labelGtx := gtx
		labelGtx.Constraints = layout.Exact(image.Pt(labelW, rowH))
		layout.W.Layout(labelGtx, func(gtx C) D {
			l := material.Body2(th, t.Name)
			l.MaxLines = 1
			return l.Layout(gtx)
		})

		plot := op.Offset(image.Pt(labelW, 0)).Push(gtx.Ops)
		area := clip.Rect{Max: image.Pt(v.Width, v.Height)}.Push(gtx.Ops)
		event.Op(gtx.Ops, row)
		c.surface.Reset(gtx.Ops)
		if err := graph.Render(t.Model, v, cfg, c.surface); err != nil {
			c.renderErr = fmt.Errorf("thread %s: %w", t.Name, err)
		}
		if row.isHovered {
			hovered = i
			xR := ceil(row.pos.X)
			xL := xR - float32(gtx.Dp(1))
			paint.FillShape(gtx.Ops, color.NRGBA{A: 255}, clip.Rect{
				Min: image.Point{X: int(xL)},
				Max: image.Point{X: int(xR), Y: v.Height},
			}.Op())
		}
		area.Pop()
		plot.Pop()
		stack.Pop()
	}
	if hovered >= 0 {
		row := c.rows[hovered]
		origin := image.Pt(labelW, hovered*rowH)
		c.layoutHover(gtx, th, c.data.Threads[hovered], v, cfg, origin, row.pos)
	}

	if dMax > dMin {
		vpStart := float32((start - dMin) / (dMax - dMin))
		vpEnd := float32((end - dMin) / (dMax - dMin))
		barGtx := gtx
		barGtx.Constraints.Min = image.Point{}
		macro := op.Record(gtx.Ops)
		scrollbar := material.Scrollbar(th, &c.panBar)
		scrollbar.Track.MajorPadding = 0
		scrollbar.Track.MinorPadding = 0
		scrollbar.Indicator.CornerRadius = 0
		scrollbar.Indicator.Color.A = 100
		barDims := scrollbar.Layout(barGtx, layout.Horizontal, vpStart, vpEnd)
		call := macro.Stop()
		offset := op.Offset(image.Pt(0, size.Y-barDims.Size.Y)).Push(gtx.Ops)
		call.Add(gtx.Ops)
		offset.Pop()
	}
	return D{Size: size}
}

// layoutHover draws a tooltip describing the column under the pointer. origin is the position
// of the thread's plot within the chart.
func (c *Chart) layoutHover(gtx C, th *material.Theme, t backend.Thread, v graph.View, cfg graph.Config, origin image.Point, pos f32.Point) {
	hit, ok := graph.HitTest(t.Model, v, cfg.Aggregate, float64(pos.X))
	if !ok {
		return
	}
	lines := []string{local.Sprintf("%s at %.2f ms", t.Name, hit.Time)}
	if hit.HasDominant {
		lines = append(lines, "mostly "+c.data.CategoryName(hit.Dominant))
	}
	if hit.HasCPU {
		lines = append(lines, local.Sprintf("CPU %.0f%%", hit.CPU*100))
	} else {
		lines = append(lines, "CPU: no data")
	}
	if hit.HasSample {
		s := t.Model.At(hit.Sample)
		cpu := s.CPU.State.String()
		if s.CPU.Valid() {
			cpu = local.Sprintf("%.0f µs", s.CPU.Value)
		}
		lines = append(lines, local.Sprintf("sample %d at %.2f ms, %s", hit.Sample, s.Time, cpu))
	}
	children := make([]layout.FlexChild, 0, len(lines))
	for _, line := range lines {
		children = append(children, layout.Rigid(material.Body2(th, line).Layout))
	}

	origConstraints := gtx.Constraints
	gtx.Constraints.Min = image.Point{}
	hoverInfoDims, hoverInfoCall := rec(gtx, func(gtx C) D {
		return layout.Background{}.Layout(gtx,
			func(gtx C) D {
				paint.FillShape(gtx.Ops, color.NRGBA{R: 255, G: 255, B: 255, A: 220}, clip.Rect{Max: gtx.Constraints.Min}.Op())
				return D{Size: gtx.Constraints.Min}
			},
			func(gtx C) D {
				return layout.UniformInset(6).Layout(gtx, func(gtx C) D {
					return layout.Flex{Axis: layout.Vertical}.Layout(gtx, children...)
				})
			},
		)
	})
	gtx.Constraints = origConstraints

	x := origin.X + int(ceil(pos.X))
	y := origin.Y + int(pos.Y)
	p := image.Point{}
	if x > gtx.Constraints.Max.X-x {
		p.X = max(x-hoverInfoDims.Size.X, 0)
	} else {
		p.X = min(x, gtx.Constraints.Max.X-hoverInfoDims.Size.X)
	}
	if offscreenY := gtx.Constraints.Max.Y - (y + hoverInfoDims.Size.Y); offscreenY < 0 {
		p.Y = max(y+offscreenY, 0)
	} else {
		p.Y = y
	}
	transform := op.Offset(p).Push(gtx.Ops)
	hoverInfoCall.Add(gtx.Ops)
	transform.Pop()
}

func ceil[T constraints.Integer | constraints.Float](a T) T {
	return T(math.Ceil(float64(a)))
}

// layoutControls draws the legend. Clicking a category's color toggles whether it is drawn.
func (c *Chart) layoutControls(gtx C, th *material.Theme) D {
	table := component.Table(th, &c.keyTable)
	table.HScrollbarStyle.Indicator.MinorWidth = 0
	table.HScrollbarStyle.Track.MinorPadding = 0
	table.VScrollbarStyle.Indicator.MinorWidth = 0
	table.VScrollbarStyle.Track.MinorPadding = 0
	colorColWidth := gtx.Dp(50)
	totalColWidth := gtx.Dp(100)
	nameColWidth := gtx.Constraints.Max.X - colorColWidth - 2*totalColWidth - gtx.Dp(table.VScrollbarStyle.Width())
	rowHeight := gtx.Sp(20)
	const (
		colorCol = iota
		categoryNameCol
		totalMsCol
		shareCol
		numCols
	)
	var sum float64
	for _, t := range c.totals {
		sum += t
	}
	return table.Layout(gtx, len(c.categories), numCols,
		func(axis layout.Axis, index, constraint int) int {
			if axis == layout.Vertical {
				return min(constraint, rowHeight)
			}

			var size int
			switch index {
			case colorCol:
				size = colorColWidth
			case categoryNameCol:
				size = nameColWidth
			case totalMsCol, shareCol:
				size = totalColWidth
			}
			return min(size, constraint)
		},
		func(gtx C, index int) D {
			var l material.LabelStyle
			switch index {
			case colorCol:
				l = material.Body1(th, "Color")
			case categoryNameCol:
				l = material.Body1(th, "Category")
				l.Alignment = text.Middle
			case totalMsCol:
				l = material.Body1(th, "Total ms")
				l.Alignment = text.End
			case shareCol:
				l = material.Body1(th, "Share")
				l.Alignment = text.End
			default:
				l = material.Body1(th, "???")
			}
			l.Color = th.ContrastFg
			return layout.Background{}.Layout(gtx,
				func(gtx C) D {
					paint.FillShape(gtx.Ops, th.ContrastBg, clip.Rect{Max: gtx.Constraints.Max}.Op())
					return D{Size: gtx.Constraints.Min}
				}, func(gtx C) D {
					return l.Layout(gtx)
				},
			)
		},
		func(gtx C, row, col int) (dims D) {
			defer func() {
				dims.Size = gtx.Constraints.Constrain(dims.Size)
			}()
			cat := c.categories[row]
			toggle := c.enabled[cat]
			enabled := toggle.Value
			disabledAlpha := uint8(100)
			dims = layout.UniformInset(2).Layout(gtx, func(gtx C) D {
				switch col {
				case colorCol:
					return toggle.Layout(gtx, func(gtx C) D {
						return layout.Center.Layout(gtx, func(gtx C) D {
							sideLen := gtx.Dp(10)
							sz := image.Pt(sideLen, sideLen)
							paint.FillShape(gtx.Ops, categoryColor(cat, enabled), clip.Rect{Max: sz}.Op())
							return D{Size: sz}
						})
					})
				case categoryNameCol:
					l := material.Body2(th, c.data.CategoryName(cat))
					if !enabled {
						l.Color.A = disabledAlpha
					}
					return l.Layout(gtx)
				case totalMsCol:
					l := material.Body2(th, local.Sprintf("%.1f", c.totals[row]))
					if !enabled {
						l.Color.A = disabledAlpha
					}
					l.Alignment = text.End
					return l.Layout(gtx)
				case shareCol:
					share := 0.0
					if sum > 0 {
						share = c.totals[row] / sum * 100
					}
					l := material.Body2(th, local.Sprintf("%.1f%%", share))
					if !enabled {
						l.Color.A = disabledAlpha
					}
					l.Alignment = text.End
					return l.Layout(gtx)
				default:
					return D{Size: gtx.Constraints.Max}
				}
			})
			if row&1 != 0 {
				stripe := categoryColor(cat, enabled)
				stripe.A = 50
				paint.FillShape(gtx.Ops, stripe, clip.Rect{Max: gtx.Constraints.Max}.Op())
			}
			return dims
		})
}
