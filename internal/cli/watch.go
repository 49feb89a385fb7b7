package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/rux"
	"github.com/aretw0/rux/pkg/ports"
)

// settleDelay lets the file system settle before the manifest is re-read.
const settleDelay = 100 * time.Millisecond

// Watcher is implemented by manifest sources that report document changes.
type Watcher interface {
	Watch(ctx context.Context) (<-chan string, error)
}

var errNotWatchable = errors.New("watching requires --repo")

// Reloader rebuilds an engine whenever its manifest source changes.
type Reloader struct {
	config  Config
	source  ports.ManifestSource
	watcher Watcher
	logger  *slog.Logger
	opts    []rux.Option

	// Exclusive, when set, runs install while holding exclusive access to the
	// engine being replaced, and serves the engine install returns from then on.
	// Without it the previous engine is read directly.
	Exclusive func(install func(prev *rux.Engine) (*rux.Engine, error)) error

	// OnReload receives every rebuilt engine, state already carried over.
	OnReload func(*rux.Engine)
}

// NewReloader checks that the source selected by c can be watched.
func NewReloader(c Config, logger *slog.Logger, opts ...rux.Option) (*Reloader, error) {
	src, err := Source(c)
	if err != nil {
		return nil, err
	}
	w, ok := src.(Watcher)
	if !ok {
		return nil, errNotWatchable
	}
	return &Reloader{config: c, source: src, watcher: w, logger: logger, opts: opts}, nil
}

// Open builds the first engine.
func (r *Reloader) Open(ctx context.Context) (*rux.Engine, error) {
	return openEngine(ctx, r.config, r.source, r.logger, r.opts...)
}

// Run blocks until ctx ends, rebuilding current on every change. A manifest
// that fails to compile keeps the previous engine alive.
func (r *Reloader) Run(ctx context.Context, current *rux.Engine) error {
	events, err := r.watcher.Watch(ctx)
	if err != nil {
		return err
	}
	r.logger.Info("Starting Watcher")

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Stopping watcher")
			return nil
		case id, ok := <-events:
			if !ok {
				return nil
			}
			r.logger.Info("Change detected, triggering reload", "document", id)
			time.Sleep(settleDelay)
			drain(events)

			next, err := r.reload(ctx, current)
			if err != nil {
				r.logger.Error("Reload failed, keeping previous store", "err", err)
				continue
			}
			current = next
			if r.OnReload != nil {
				r.OnReload(next)
			}
		}
	}
}

func (r *Reloader) reload(ctx context.Context, current *rux.Engine) (*rux.Engine, error) {
	next, err := r.Open(ctx)
	if err != nil {
		return nil, err
	}
	install := func(prev *rux.Engine) (*rux.Engine, error) {
		if prev != nil && prev.HasStore() {
			if err := CarryState(prev, next, r.logger); err != nil {
				r.logger.Debug("state not carried over", "err", err)
			}
		}
		return next, nil
	}
	if r.Exclusive == nil {
		return install(current)
	}
	if err := r.Exclusive(install); err != nil {
		return nil, err
	}
	return next, nil
}

func drain(events <-chan string) {
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

// Describe formats a one-line summary of a live engine.
func Describe(engine *rux.Engine) string {
	roots, err := engine.Roots()
	if err != nil {
		return fmt.Sprintf("%s (no store)", engine.Name)
	}
	return fmt.Sprintf("%s: %d roots %v", engine.Name, len(roots), roots)
}
