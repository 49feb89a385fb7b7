package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/aretw0/rux"
	"github.com/aretw0/rux/pkg/domain"
	"github.com/tidwall/gjson"
)

// SignalContext wraps a context and captures the signal that cancelled it.
type SignalContext struct {
	context.Context
	Cancel func()
	once   sync.Once
	sigCh  chan os.Signal
	sigVal os.Signal
	mu     sync.Mutex
}

// NewSignalContext creates a context that is cancelled on SIGINT or SIGTERM.
// It acts as a drop-in replacement for signal.NotifyContext but allows retrieving the signal.
func NewSignalContext(parent context.Context) *SignalContext {
	ctx, cancel := context.WithCancel(parent)
	sc := &SignalContext{
		Context: ctx,
		Cancel:  cancel,
		sigCh:   make(chan os.Signal, 1),
	}

	signal.Notify(sc.sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sc.sigCh:
			sc.mu.Lock()
			sc.sigVal = sig
			sc.mu.Unlock()
			sc.Cancel()
		case <-sc.Context.Done():
		}
		sc.once.Do(func() { signal.Stop(sc.sigCh) })
	}()

	return sc
}

// Signal returns the signal that caused the context to be cancelled, or nil.
func (sc *SignalContext) Signal() os.Signal {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.sigVal
}

// Assignment is a parsed --set flag.
type Assignment struct {
	Path  domain.StatePath
	Value any
}

// ParseAssignment parses "Slice.field=<json>". A value that is not valid JSON
// is taken as a plain string.
func ParseAssignment(s string) (Assignment, error) {
	lhs, raw, ok := strings.Cut(s, "=")
	if !ok {
		return Assignment{}, fmt.Errorf("invalid assignment %q: want Slice.field=value", s)
	}
	path, err := domain.ParsePath(strings.TrimSpace(lhs))
	if err != nil {
		return Assignment{}, fmt.Errorf("invalid assignment %q: %w", s, err)
	}
	if !gjson.Valid(raw) {
		return Assignment{Path: path, Value: raw}, nil
	}
	return Assignment{Path: path, Value: gjson.Parse(raw).Value()}, nil
}

// Apply dispatches every assignment in order.
func Apply(engine *rux.Engine, assignments []Assignment) error {
	for _, a := range assignments {
		if err := engine.DispatchState(a.Path, a.Value); err != nil {
			return fmt.Errorf("failed to set %s: %w", a.Path, err)
		}
	}
	return nil
}

// CarryState copies the field values of prev that still exist in next, then
// loads them into next. Roots or fields that disappeared are dropped.
func CarryState(prev, next *rux.Engine, logger *slog.Logger) error {
	old, err := prev.DumpStore()
	if err != nil {
		return err
	}
	data, err := next.DumpStore()
	if err != nil {
		return err
	}
	for root, fields := range data {
		oldFields, ok := old[root]
		if !ok {
			continue
		}
		for field := range fields {
			if v, ok := oldFields[field]; ok {
				fields[field] = v
			}
		}
	}
	if err := next.LoadStore(data); err != nil {
		logger.Warn("previous state does not fit the new manifest, using defaults", "err", err)
		return err
	}
	return nil
}
