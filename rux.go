package rux

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/rux/internal/logging"
	"github.com/aretw0/rux/internal/runtime"
	"github.com/aretw0/rux/pkg/domain"
	"github.com/aretw0/rux/pkg/manifest"
	"github.com/aretw0/rux/pkg/ports"
	"github.com/aretw0/rux/pkg/schema"
	"github.com/google/uuid"
)

const defaultLockTTL = 10 * time.Second

// Engine is the high-level entry point for the rux library.
// It wraps the internal runtime and adds snapshot persistence.
// An Engine is not safe for concurrent use.
type Engine struct {
	runtime   *runtime.Engine
	snapshots ports.SnapshotStore
	locker    ports.DistributedLocker
	lockTTL   time.Duration
	hooks     domain.LifecycleHooks
	logger    *slog.Logger
	Name      string
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithSnapshotStore enables Persist and Restore.
func WithSnapshotStore(store ports.SnapshotStore) Option {
	return func(e *Engine) {
		e.snapshots = store
	}
}

// WithLocker guards snapshot writes with a distributed lock held for at most ttl.
// A zero ttl uses a 10 second default.
func WithLocker(locker ports.DistributedLocker, ttl time.Duration) Option {
	return func(e *Engine) {
		e.locker = locker
		e.lockTTL = ttl
	}
}

// WithName labels the engine; the name is attached to every log line.
func WithName(name string) Option {
	return func(e *Engine) {
		e.Name = name
	}
}

// New creates an engine for the slice types of catalog. No store exists until
// CreateStore is called.
func New(catalog *domain.Catalog, opts ...Option) *Engine {
	eng := &Engine{lockTTL: defaultLockTTL}
	for _, opt := range opts {
		opt(eng)
	}
	if eng.lockTTL <= 0 {
		eng.lockTTL = defaultLockTTL
	}

	// Ensure logger is initialized (so we don't pass nil to runtime)
	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	if eng.Name != "" {
		eng.logger = eng.logger.With("store", eng.Name)
	}

	eng.runtime = runtime.NewEngine(catalog,
		runtime.WithLifecycleHooks(eng.hooks),
		runtime.WithLogger(eng.logger),
	)
	return eng
}

// NewFromManifest compiles m and creates a store from the default instance of
// every root.
func NewFromManifest(m *manifest.Manifest, opts ...Option) (*Engine, error) {
	compiled, err := m.Compile()
	if err != nil {
		return nil, err
	}
	instances, err := compiled.Defaults()
	if err != nil {
		return nil, err
	}
	eng := New(compiled.Catalog, opts...)
	if err := eng.CreateStore(instances...); err != nil {
		return nil, err
	}
	return eng, nil
}

// Open loads a manifest from src and creates its default store.
func Open(ctx context.Context, src ports.ManifestSource, opts ...Option) (*Engine, error) {
	m, err := src.LoadManifest(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load manifest: %w", err)
	}
	return NewFromManifest(m, opts...)
}

// Catalog returns the slice types the engine was created with.
func (e *Engine) Catalog() *domain.Catalog { return e.runtime.Catalog() }

// CreateStore installs one root instance per concrete slice type and
// activates every reaction whose slices are all present.
func (e *Engine) CreateStore(instances ...*domain.Instance) error {
	return e.runtime.CreateStore(instances...)
}

// ClearStore drops the store and every subscription.
func (e *Engine) ClearStore() error { return e.runtime.ClearStore() }

// HasStore reports whether a store is live.
func (e *Engine) HasStore() bool { return e.runtime.HasStore() }

// GetState returns the committed value addressed by path.
func (e *Engine) GetState(path domain.StatePath) (any, error) { return e.runtime.GetState(path) }

// GetSlice returns the root instance owning the named slice type.
func (e *Engine) GetSlice(slice string) (*domain.Instance, error) { return e.runtime.GetSlice(slice) }

// Dispatch runs a reducer against the root owning its slice type.
// Called from a subscriber while that root is mid-commit, the dispatch is
// queued and returns nil; it runs once the commit ends and its error is
// returned by the dispatch that drained it.
func (e *Engine) Dispatch(r *domain.Reducer, payload ...any) error {
	return e.runtime.Dispatch(r, payload...)
}

// DispatchByName looks up a reducer by slice type and name, then dispatches it.
func (e *Engine) DispatchByName(slice, reducer string, payload ...any) error {
	r, err := e.Reducer(slice, reducer)
	if err != nil {
		return err
	}
	return e.Dispatch(r, payload...)
}

// Reducer resolves a reducer visible from the named slice type.
func (e *Engine) Reducer(slice, name string) (*domain.Reducer, error) {
	t, err := e.Catalog().Lookup(slice)
	if err != nil {
		return nil, err
	}
	return t.Reducer(name)
}

// DispatchState replaces the field addressed by path.
func (e *Engine) DispatchState(path domain.StatePath, value any) error {
	return e.runtime.DispatchState(path, value)
}

// ForceNotify re-delivers the committed values of paths to their subscribers.
func (e *Engine) ForceNotify(paths ...domain.StatePath) error {
	return e.runtime.ForceNotify(paths...)
}

// Subscribe registers cb on paths. cb runs once immediately with the current values.
func (e *Engine) Subscribe(cb domain.Callback, paths ...domain.StatePath) (domain.Unsubscribe, error) {
	return e.runtime.Subscribe(cb, paths...)
}

// Subscribers returns how many subscriptions watch path.
func (e *Engine) Subscribers(path domain.StatePath) (int, error) { return e.runtime.Subscribers(path) }

// DumpStore returns the plain field values of every root.
func (e *Engine) DumpStore() (map[string]map[string]any, error) { return e.runtime.DumpStore() }

// LoadStore validates data and installs it, notifying subscribers of every change.
func (e *Engine) LoadStore(data map[string]map[string]any) error { return e.runtime.LoadStore(data) }

// Schema returns the field schema of every root.
func (e *Engine) Schema() (map[string]schema.Schema, error) { return e.runtime.Schema() }

// Roots returns the root slice names in creation order.
func (e *Engine) Roots() ([]string, error) { return e.runtime.Roots() }

// Tree maps every slice type in the store to its root.
func (e *Engine) Tree() (map[string]string, error) { return e.runtime.Tree() }

// RootOf returns the root owning the named slice type.
func (e *Engine) RootOf(slice string) (string, error) { return e.runtime.RootOf(slice) }

// Persist saves a snapshot of the store under id and returns the id.
// An empty id gets a fresh UUID.
func (e *Engine) Persist(ctx context.Context, id string) (string, error) {
	if e.snapshots == nil {
		return "", &domain.ConfigurationError{Subject: "persist", Reason: "no snapshot store configured"}
	}
	if id == "" {
		id = uuid.NewString()
	}

	dump, err := e.DumpStore()
	if err != nil {
		return "", err
	}

	if e.locker != nil {
		unlock, err := e.locker.Lock(ctx, "snapshot:"+id, e.lockTTL)
		if err != nil {
			return "", fmt.Errorf("failed to lock snapshot %s: %w", id, err)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				e.logger.Warn("failed to release snapshot lock", "id", id, "err", err)
			}
		}()
	}

	snap := &domain.Snapshot{ID: id, Slices: dump, SavedAt: time.Now().UTC()}
	if err := e.snapshots.Save(ctx, id, snap); err != nil {
		return "", fmt.Errorf("failed to save snapshot %s: %w", id, err)
	}
	e.logger.Info("snapshot saved", "id", id)
	return id, nil
}

// Restore loads the snapshot id into the live store.
func (e *Engine) Restore(ctx context.Context, id string) error {
	if e.snapshots == nil {
		return &domain.ConfigurationError{Subject: "restore", Reason: "no snapshot store configured"}
	}
	snap, err := e.snapshots.Load(ctx, id)
	if err != nil {
		return err
	}
	if err := e.LoadStore(snap.Slices); err != nil {
		return fmt.Errorf("failed to restore snapshot %s: %w", id, err)
	}
	e.logger.Info("snapshot restored", "id", id)
	return nil
}

// Snapshots lists the IDs held by the snapshot store.
func (e *Engine) Snapshots(ctx context.Context) ([]string, error) {
	if e.snapshots == nil {
		return nil, &domain.ConfigurationError{Subject: "snapshots", Reason: "no snapshot store configured"}
	}
	return e.snapshots.List(ctx)
}
