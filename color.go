package main

import (
	"image/color"

	"git.sr.ht/~whereswaldon/thread-activity/f32color"
	"git.sr.ht/~whereswaldon/thread-activity/graph"
	"git.sr.ht/~whereswaldon/thread-activity/samples"
)

var (
	hues = f32color.Hues(20, .65, .15)
	// idleColor is used for samples.Unknown, which covers the time a thread was not sampled.
	idleColor = f32color.Oklch{L: .85, C: 0, A: 1}
	cpuColor  = color.NRGBA{A: 200}
)

func categoryOklch(cat samples.CategoryID) f32color.Oklch {
	if cat == samples.Unknown {
		return idleColor
	}
	return hues[int(cat)%len(hues)]
}

// categoryColor returns the color a category is drawn with, paled if it is disabled.
func categoryColor(cat samples.CategoryID, enabled bool) color.NRGBA {
	c := categoryOklch(cat)
	if !enabled {
		c = f32color.Disabled(c)
	}
	return c.NRGBA()
}

var palette = graph.PaletteFunc(func(cat samples.CategoryID) color.Color {
	return categoryColor(cat, true)
})
