// Package f32color converts perceptual Oklch colors into the sRGB colors Gio paints with.
package f32color

import (
	"image/color"
	"math"
)

// Oklch is a color in the cylindrical form of the Oklab color space. L is the perceived
// lightness in [0, 1], C the chroma, H the hue in degrees and A the alpha in [0, 1].
type Oklch struct {
	L, C, H, A float32
}

// linear returns the color in linear sRGB. Channels outside of [0, 1] mean the color is out of
// gamut.
func (c Oklch) linear() (r, g, b float64) {
	h := float64(c.H) * math.Pi / 180
	L := float64(c.L)
	a := float64(c.C) * math.Cos(h)
	bb := float64(c.C) * math.Sin(h)

	l := cube(L + 0.3963377774*a + 0.2158037573*bb)
	m := cube(L - 0.1055613458*a - 0.0638541728*bb)
	s := cube(L - 0.0894841775*a - 1.2914855480*bb)

	r = +4.0767416621*l - 3.3077115913*m + 0.2309699292*s
	g = -1.2684380046*l + 2.6097574011*m - 0.3413193965*s
	b = -0.0041960863*l - 0.7034186147*m + 1.7076147010*s
	return r, g, b
}

func cube(v float64) float64 { return v * v * v }

// gamutSlack absorbs rounding in the conversion matrices.
const gamutSlack = 1e-6

func inGamut(r, g, b float64) bool {
	const lo, hi = -gamutSlack, 1 + gamutSlack
	return r >= lo && r <= hi && g >= lo && g <= hi && b >= lo && b <= hi
}

// InGamut reports whether the color can be shown in sRGB without reducing its chroma.
func (c Oklch) InGamut() bool {
	return inGamut(c.linear())
}

// MapToSRGB reduces the chroma of out-of-gamut colors until they fit into sRGB, keeping
// lightness and hue.
func (c Oklch) MapToSRGB() Oklch {
	switch {
	case c.L >= 1:
		return Oklch{L: 1, A: c.A}
	case c.L <= 0:
		return Oklch{L: 0, A: c.A}
	case c.InGamut():
		return c
	}
	lo, hi := float32(0), c.C
	for hi-lo > 1e-4 {
		mid := (lo + hi) / 2
		c.C = mid
		if c.InGamut() {
			lo = mid
		} else {
			hi = mid
		}
	}
	c.C = lo
	return c
}

func encode(v float64) uint8 {
	v = min(max(v, 0), 1)
	if v >= 0.0031308 {
		v = 1.055*math.Pow(v, 1/2.4) - 0.055
	} else {
		v *= 12.92
	}
	return uint8(math.Round(v * 0xff))
}

// NRGBA converts the color to non-premultiplied 8-bit sRGB, mapping it into the gamut first.
func (c Oklch) NRGBA() color.NRGBA {
	m := c.MapToSRGB()
	r, g, b := m.linear()
	a := min(max(float64(c.A), 0), 1)
	return color.NRGBA{
		R: encode(r),
		G: encode(g),
		B: encode(b),
		A: uint8(math.Round(a * 0xff)),
	}
}

// Disabled desaturates the color and makes it more transparent, for drawing things the user
// has switched off.
func Disabled(c Oklch) Oklch {
	c.C *= 0.2
	c.A *= 0.5
	return c
}

// Hues returns n colors of equal lightness and chroma whose hues are spread by the golden
// angle, so that neighbours are easy to tell apart however many colors are used.
func Hues(n int, lightness, chroma float32) []Oklch {
	out := make([]Oklch, 0, n)
	for i := 0; i < n; i++ {
		hue := math.Mod(float64(i+1)*math.Phi*360, 360)
		out = append(out, Oklch{L: lightness, C: chroma, H: float32(hue), A: 1})
	}
	return out
}

// Palette is Hues converted to sRGB.
func Palette(n int, lightness, chroma float32) []color.NRGBA {
	hues := Hues(n, lightness, chroma)
	out := make([]color.NRGBA, len(hues))
	for i, h := range hues {
		out[i] = h.NRGBA()
	}
	return out
}
