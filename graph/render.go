package graph

import (
	"git.sr.ht/~whereswaldon/thread-activity/samples"
)

// Render draws the samples of m that fall into the view onto s. Nothing is drawn if any step
// fails.
func Render(m *samples.Model, v View, cfg Config, s Surface) error {
	if err := surfaceReady(s); err != nil {
		return err
	}
	d, err := Draw(m, v, cfg)
	if err != nil {
		return err
	}
	d.Replay(s)
	return nil
}

// Draw computes the drawing operations Render would perform, without a surface.
func Draw(m *samples.Model, v View, cfg Config) (Drawing, error) {
	a, err := Aggregate(m, v, cfg.Aggregate)
	if err != nil {
		return nil, err
	}
	return Compose(a, v, cfg)
}
