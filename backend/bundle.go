package backend

import (
	"context"

	"gioui.org/app"
	"git.sr.ht/~gioverse/skel/stream"
)

// WindowState is the per-window view of the application's backend.
type WindowState struct {
	Bundle
	Controller *stream.Controller
}

func NewWindowState(ctx context.Context, bundle Bundle, win *app.Window) WindowState {
	return WindowState{
		Bundle:     bundle,
		Controller: stream.NewController(ctx, win.Invalidate),
	}
}

// Bundle holds the backend services shared by all windows.
type Bundle struct {
	Datasource *Datasource
}

// NewBundle creates the backend services. interval is the nominal sampling interval of loaded
// recordings in milliseconds, or zero if unknown.
func NewBundle(ctx context.Context, mutator *stream.Mutator, interval float64) (Bundle, error) {
	ds, err := NewDatasource(ctx, mutator, interval)
	if err != nil {
		return Bundle{}, err
	}
	return Bundle{
		Datasource: ds,
	}, nil
}
