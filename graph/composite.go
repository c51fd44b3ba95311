package graph

import (
	"errors"
	"fmt"
	"image/color"

	"git.sr.ht/~whereswaldon/thread-activity/samples"
)

var ErrInvalidConfig = errors.New("invalid graph configuration")

// Palette maps categories to the colors they are drawn with.
type Palette interface {
	Color(cat samples.CategoryID) color.Color
}

// PaletteFunc adapts a function to the Palette interface.
type PaletteFunc func(cat samples.CategoryID) color.Color

func (f PaletteFunc) Color(cat samples.CategoryID) color.Color { return f(cat) }

// CPUTrace configures the CPU intensity trace drawn on top of the categories.
type CPUTrace struct {
	Enabled bool
	Color   color.Color
	// Width is the stroke width in pixels. It is ignored if Filled is set.
	Width  float64
	Filled bool
}

// Config holds everything a render needs beyond the samples and the view.
type Config struct {
	// Order lists the categories to draw, bottom to top. Categories that are not listed are
	// not drawn, but still count towards the column height, leaving a gap at the top.
	Order     []samples.CategoryID
	Palette   Palette
	CPU       CPUTrace
	Aggregate AggregateOptions
	// ScaleByCPU scales the category heights of every column with CPU data by its CPU
	// intensity.
	ScaleByCPU bool
}

// segment is a run of columns with identical top and bottom edges.
type segment struct {
	x0, x1   float64
	top, bot float64
}

type composer struct {
	ops Drawing
}

func (c *composer) emit(op Op) { c.ops = append(c.ops, op) }

func (c *composer) moveTo(x, y float64) { c.emit(Op{Kind: OpMoveTo, X: x, Y: y}) }
func (c *composer) lineTo(x, y float64) { c.emit(Op{Kind: OpLineTo, X: x, Y: y}) }

// Compose turns an aggregation into drawing operations: a clear of the whole surface, one
// filled stacked area per category in cfg.Order, and the CPU trace if enabled. The result only
// depends on the arguments.
func Compose(a Aggregation, v View, cfg Config) (Drawing, error) {
	if err := v.validate(); err != nil {
		return nil, err
	}
	if v.Height <= 0 {
		return nil, fmt.Errorf("height %d: %w", v.Height, ErrInvalidRange)
	}
	if len(a.Columns) != v.Width {
		return nil, fmt.Errorf("aggregation has %d columns, view is %d pixels wide: %w", len(a.Columns), v.Width, ErrInvalidRange)
	}
	if len(cfg.Order) > 0 && cfg.Palette == nil {
		return nil, fmt.Errorf("no palette: %w", ErrInvalidConfig)
	}
	if cfg.CPU.Enabled && cfg.CPU.Color == nil {
		return nil, fmt.Errorf("cpu trace has no color: %w", ErrInvalidConfig)
	}

	h := float64(v.Height)
	var c composer
	c.emit(Op{Kind: OpClearRect, W: float64(v.Width), H: h})

	scale := make([]float64, len(a.Columns))
	for i := range a.Columns {
		scale[i] = 1
		if col := &a.Columns[i]; cfg.ScaleByCPU && col.HasCPU {
			scale[i] = col.CPU
		}
	}

	// base holds the stacked height, as a fraction of the column, below the current category.
	base := make([]float64, len(a.Columns))
	segs := make([]segment, 0, len(a.Columns))
	seen := make(map[samples.CategoryID]struct{}, len(cfg.Order))
	for _, cat := range cfg.Order {
		if _, ok := seen[cat]; ok {
			continue
		}
		seen[cat] = struct{}{}
		idx, ok := a.CategoryIndex(cat)
		if !ok {
			continue
		}

		segs = segs[:0]
		visible := false
		for i := range a.Columns {
			frac := a.Columns[i].Fraction(idx) * scale[i]
			lo := base[i]
			hi := min(lo+frac, 1)
			base[i] = hi
			if hi > lo {
				visible = true
			}
			seg := segment{
				x0:  float64(i),
				x1:  float64(i + 1),
				top: h - hi*h,
				bot: h - lo*h,
			}
			if n := len(segs); n > 0 && segs[n-1].top == seg.top && segs[n-1].bot == seg.bot {
				segs[n-1].x1 = seg.x1
				continue
			}
			segs = append(segs, seg)
		}
		if !visible {
			continue
		}
		c.area(segs)
		c.emit(Op{Kind: OpFill, Color: cfg.Palette.Color(cat)})
	}

	if cfg.CPU.Enabled {
		c.cpuTrace(a, h, cfg.CPU)
	}
	return c.ops, nil
}

// area emits a closed path whose top edge follows the tops of segs from left to right and whose
// bottom edge follows their bottoms back from right to left.
func (c *composer) area(segs []segment) {
	c.emit(Op{Kind: OpBeginPath})
	for i, s := range segs {
		if i == 0 {
			c.moveTo(s.x0, s.top)
		} else {
			c.lineTo(s.x0, s.top)
		}
		c.lineTo(s.x1, s.top)
	}
	for i := len(segs) - 1; i >= 0; i-- {
		s := segs[i]
		c.lineTo(s.x1, s.bot)
		c.lineTo(s.x0, s.bot)
	}
	c.emit(Op{Kind: OpClosePath})
}

// cpuTrace emits the CPU intensity as a step function, with one subpath per run of columns
// that have CPU data.
func (c *composer) cpuTrace(a Aggregation, h float64, style CPUTrace) {
	var runs [][]segment
	var run []segment
	for i := range a.Columns {
		col := &a.Columns[i]
		if !col.HasCPU {
			if len(run) > 0 {
				runs = append(runs, run)
				run = nil
			}
			continue
		}
		y := h - col.CPU*h
		if n := len(run); n > 0 && run[n-1].top == y {
			run[n-1].x1 = float64(i + 1)
			continue
		}
		run = append(run, segment{x0: float64(i), x1: float64(i + 1), top: y, bot: h})
	}
	if len(run) > 0 {
		runs = append(runs, run)
	}
	if len(runs) == 0 {
		return
	}

	c.emit(Op{Kind: OpBeginPath})
	for _, run := range runs {
		if style.Filled {
			c.moveTo(run[0].x0, h)
			c.lineTo(run[0].x0, run[0].top)
		} else {
			c.moveTo(run[0].x0, run[0].top)
		}
		for i, s := range run {
			if i > 0 {
				c.lineTo(s.x0, s.top)
			}
			c.lineTo(s.x1, s.top)
		}
		if style.Filled {
			c.lineTo(run[len(run)-1].x1, h)
			c.emit(Op{Kind: OpClosePath})
		}
	}
	if style.Filled {
		c.emit(Op{Kind: OpFill, Color: style.Color})
	} else {
		c.emit(Op{Kind: OpStroke, Color: style.Color, Width: max(style.Width, 1)})
	}
}
