// Package giosurface draws graph operations into Gio's operation list.
package giosurface

import (
	"errors"
	"image"
	"image/color"
	"math"

	"gioui.org/f32"
	"gioui.org/op"
	"gioui.org/op/clip"
	"gioui.org/op/paint"

	"git.sr.ht/~whereswaldon/thread-activity/graph"
)

var errNoOps = errors.New("no operation list to draw into")

// Surface implements graph.Surface on top of Gio clip paths. Coordinates are in pixels
// relative to the current Gio transform, with y growing downwards.
//
// Fill and Stroke consume the current path; drawing again requires a new BeginPath.
type Surface struct {
	ops *op.Ops
	// Background is painted by ClearRect.
	Background color.NRGBA

	path clip.Path
	open bool
}

var (
	_ graph.Surface = (*Surface)(nil)
	_ graph.Readier = (*Surface)(nil)
)

func New(ops *op.Ops, background color.NRGBA) *Surface {
	return &Surface{ops: ops, Background: background}
}

// Reset points the surface at a new operation list, dropping any unfinished path. Windows
// call it at the start of every frame.
func (s *Surface) Reset(ops *op.Ops) {
	s.ops = ops
	s.path = clip.Path{}
	s.open = false
}

func (s *Surface) Ready() error {
	if s.ops == nil {
		return errNoOps
	}
	return nil
}

func pt(x, y float64) f32.Point {
	return f32.Pt(float32(x), float32(y))
}

func nrgba(c color.Color) color.NRGBA {
	if c == nil {
		return color.NRGBA{}
	}
	return color.NRGBAModel.Convert(c).(color.NRGBA)
}

func (s *Surface) ClearRect(x, y, w, h float64) {
	r := image.Rectangle{
		Min: image.Pt(int(math.Floor(x)), int(math.Floor(y))),
		Max: image.Pt(int(math.Ceil(x+w)), int(math.Ceil(y+h))),
	}
	paint.FillShape(s.ops, s.Background, clip.Rect(r).Op())
}

func (s *Surface) BeginPath() {
	if s.open {
		// Discard the unfinished path.
		s.path.End()
	}
	s.path = clip.Path{}
	s.path.Begin(s.ops)
	s.open = true
}

func (s *Surface) MoveTo(x, y float64) {
	if s.open {
		s.path.MoveTo(pt(x, y))
	}
}

func (s *Surface) LineTo(x, y float64) {
	if s.open {
		s.path.LineTo(pt(x, y))
	}
}

func (s *Surface) ClosePath() {
	if s.open {
		s.path.Close()
	}
}

func (s *Surface) end() (clip.PathSpec, bool) {
	if !s.open {
		return clip.PathSpec{}, false
	}
	s.open = false
	return s.path.End(), true
}

func (s *Surface) Fill(c color.Color) {
	spec, ok := s.end()
	if !ok {
		return
	}
	stack := clip.Outline{Path: spec}.Op().Push(s.ops)
	paint.Fill(s.ops, nrgba(c))
	stack.Pop()
}

func (s *Surface) Stroke(c color.Color, width float64) {
	spec, ok := s.end()
	if !ok {
		return
	}
	stack := clip.Stroke{Path: spec, Width: float32(width)}.Op().Push(s.ops)
	paint.Fill(s.ops, nrgba(c))
	stack.Pop()
}
