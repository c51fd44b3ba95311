package graph

import (
	"errors"
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

var ErrSurfaceUnavailable = errors.New("drawing surface unavailable")

// Surface is a 2D drawing target. Colors are opaque to the graph and only interpreted by the
// surface.
//
// A surface must not be drawn to by more than one Render at a time.
type Surface interface {
	ClearRect(x, y, w, h float64)
	BeginPath()
	MoveTo(x, y float64)
	LineTo(x, y float64)
	ClosePath()
	Fill(c color.Color)
	Stroke(c color.Color, width float64)
}

// Readier is implemented by surfaces that may not be able to accept drawing operations yet.
type Readier interface {
	Ready() error
}

type OpKind uint8

const (
	OpClearRect OpKind = iota
	OpBeginPath
	OpMoveTo
	OpLineTo
	OpClosePath
	OpFill
	OpStroke
)

func (k OpKind) String() string {
	switch k {
	case OpClearRect:
		return "clearRect"
	case OpBeginPath:
		return "beginPath"
	case OpMoveTo:
		return "moveTo"
	case OpLineTo:
		return "lineTo"
	case OpClosePath:
		return "closePath"
	case OpFill:
		return "fill"
	case OpStroke:
		return "stroke"
	default:
		return "unknown"
	}
}

// Op is a single drawing operation. Which fields are used depends on Kind: X and Y for MoveTo
// and LineTo, all four coordinates for ClearRect, Color for Fill and Stroke, and Width for
// Stroke.
type Op struct {
	Kind  OpKind
	X, Y  float64
	W, H  float64
	Color color.Color
	Width float64
}

func (op Op) String() string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	switch op.Kind {
	case OpClearRect:
		return fmt.Sprintf("%s(%s, %s, %s, %s)", op.Kind, f(op.X), f(op.Y), f(op.W), f(op.H))
	case OpMoveTo, OpLineTo:
		return fmt.Sprintf("%s(%s, %s)", op.Kind, f(op.X), f(op.Y))
	case OpFill:
		return fmt.Sprintf("%s(%s)", op.Kind, formatColor(op.Color))
	case OpStroke:
		return fmt.Sprintf("%s(%s, %s)", op.Kind, formatColor(op.Color), f(op.Width))
	default:
		return op.Kind.String() + "()"
	}
}

func formatColor(c color.Color) string {
	if c == nil {
		return "<nil>"
	}
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return fmt.Sprintf("#%02x%02x%02x%02x", n.R, n.G, n.B, n.A)
}

// Drawing is an ordered sequence of drawing operations.
type Drawing []Op

// Replay performs the operations on s.
func (d Drawing) Replay(s Surface) {
	for _, op := range d {
		switch op.Kind {
		case OpClearRect:
			s.ClearRect(op.X, op.Y, op.W, op.H)
		case OpBeginPath:
			s.BeginPath()
		case OpMoveTo:
			s.MoveTo(op.X, op.Y)
		case OpLineTo:
			s.LineTo(op.X, op.Y)
		case OpClosePath:
			s.ClosePath()
		case OpFill:
			s.Fill(op.Color)
		case OpStroke:
			s.Stroke(op.Color, op.Width)
		}
	}
}

func (d Drawing) String() string {
	var sb strings.Builder
	for _, op := range d {
		sb.WriteString(op.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Recorder is a Surface that records every operation performed on it. It serves as a headless
// surface and as a test double whose log can be compared against a snapshot.
type Recorder struct {
	Ops Drawing
	// Err, if set, is returned by Ready.
	Err error
}

var (
	_ Surface = (*Recorder)(nil)
	_ Readier = (*Recorder)(nil)
)

func (r *Recorder) Ready() error { return r.Err }

func (r *Recorder) ClearRect(x, y, w, h float64) {
	r.Ops = append(r.Ops, Op{Kind: OpClearRect, X: x, Y: y, W: w, H: h})
}

func (r *Recorder) BeginPath() { r.Ops = append(r.Ops, Op{Kind: OpBeginPath}) }
func (r *Recorder) ClosePath() { r.Ops = append(r.Ops, Op{Kind: OpClosePath}) }

func (r *Recorder) MoveTo(x, y float64) {
	r.Ops = append(r.Ops, Op{Kind: OpMoveTo, X: x, Y: y})
}

func (r *Recorder) LineTo(x, y float64) {
	r.Ops = append(r.Ops, Op{Kind: OpLineTo, X: x, Y: y})
}

func (r *Recorder) Fill(c color.Color) {
	r.Ops = append(r.Ops, Op{Kind: OpFill, Color: c})
}

func (r *Recorder) Stroke(c color.Color, width float64) {
	r.Ops = append(r.Ops, Op{Kind: OpStroke, Color: c, Width: width})
}

// Flush returns the recorded log and resets the recorder.
func (r *Recorder) Flush() Drawing {
	ops := r.Ops
	r.Ops = nil
	return ops
}

func surfaceReady(s Surface) error {
	if s == nil {
		return fmt.Errorf("no surface: %w", ErrSurfaceUnavailable)
	}
	if r, ok := s.(Readier); ok {
		if err := r.Ready(); err != nil {
			return fmt.Errorf("%w: %w", ErrSurfaceUnavailable, err)
		}
	}
	return nil
}

// Log returns the textual draw log of the recorded operations, one per line.
func (r *Recorder) Log() string {
	return r.Ops.String()
}
