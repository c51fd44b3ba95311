package backend

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"slices"
	"sync"

	"github.com/fsnotify/fsnotify"
)

type RWBox[T any] struct {
	t    T
	lock sync.RWMutex
}

func (r *RWBox[T]) Read(f func(*T)) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	f(&r.t)
}

func (r *RWBox[T]) Write(f func(*T)) {
	r.lock.Lock()
	defer r.lock.Unlock()
	f(&r.t)
}

// follower notifies readers of growing files when more data has been written. A single
// fsnotify watcher serves every file, so its events are fanned out to the subscribers of
// each path.
type follower struct {
	watcher *fsnotify.Watcher
	subs    RWBox[map[string][]chan struct{}]
}

func newFollower() (*follower, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed creating file watcher: %w", err)
	}
	f := &follower{watcher: watcher}
	f.subs.Write(func(m *map[string][]chan struct{}) {
		*m = make(map[string][]chan struct{})
	})
	return f, nil
}

// run dispatches watcher events until ctx is done, then closes the watcher.
func (f *follower) run(ctx context.Context) {
	defer f.watcher.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) {
				continue
			}
			name := filepath.Clean(ev.Name)
			f.subs.Read(func(m *map[string][]chan struct{}) {
				for _, ch := range (*m)[name] {
					// Subscribers only need to know that something changed.
					select {
					case ch <- struct{}{}:
					default:
					}
				}
			})
		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("file watcher: %v", err)
		}
	}
}

// follow subscribes to writes to the file at path. The returned function cancels the
// subscription.
func (f *follower) follow(path string) (<-chan struct{}, func(), error) {
	path = filepath.Clean(path)
	ch := make(chan struct{}, 1)
	var err error
	f.subs.Write(func(m *map[string][]chan struct{}) {
		if len((*m)[path]) == 0 {
			if err = f.watcher.Add(path); err != nil {
				return
			}
		}
		(*m)[path] = append((*m)[path], ch)
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed watching %s: %w", path, err)
	}
	unfollow := func() {
		f.subs.Write(func(m *map[string][]chan struct{}) {
			subs := slices.DeleteFunc((*m)[path], func(c chan struct{}) bool { return c == ch })
			if len(subs) > 0 {
				(*m)[path] = subs
				return
			}
			delete(*m, path)
			if err := f.watcher.Remove(path); err != nil {
				log.Printf("failed to stop watching %s: %v", path, err)
			}
		})
	}
	return ch, unfollow, nil
}

// waitFor returns a function that blocks until notify fires or ctx is done, reporting whether
// reading should continue.
func waitFor(notify <-chan struct{}) func(ctx context.Context) bool {
	return func(ctx context.Context) bool {
		select {
		case <-ctx.Done():
			return false
		case <-notify:
			return true
		}
	}
}
