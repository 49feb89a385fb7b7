package runtime

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/aretw0/rux/internal/logging"
	"github.com/aretw0/rux/pkg/domain"
	"github.com/aretw0/rux/pkg/schema"
)

// Engine owns one store: the root instances, the slice tree mapping every
// ancestor name to its root and the subscription registry.
// It is not safe for concurrent use; adapters that serve several callers
// serialise access themselves.
type Engine struct {
	catalog *domain.Catalog
	logger  *slog.Logger
	hooks   domain.LifecycleHooks

	store map[string]*domain.Instance
	roots []string
	tree  sliceTree
	subs  *registry

	// generation changes whenever a store is created or dropped.
	generation uint64

	// committing counts in-flight commits per root; dispatches reaching a
	// committing root wait in pending until the commit ends.
	committing map[string]int
	pending    map[string][]pendingDispatch
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the structured logger. A nil logger keeps the default no-op logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// NewEngine creates an engine for the slice types of catalog. No store exists
// until CreateStore is called.
func NewEngine(catalog *domain.Catalog, opts ...EngineOption) *Engine {
	if catalog == nil {
		catalog = domain.NewCatalog()
	}
	e := &Engine{
		catalog: catalog,
		logger:  logging.NewNop(),
		subs:    newRegistry(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Catalog returns the catalog the engine was created with.
func (e *Engine) Catalog() *domain.Catalog { return e.catalog }

// HasStore reports whether a store is live.
func (e *Engine) HasStore() bool { return e.store != nil }

// CreateStore installs one root instance per concrete slice type, builds the
// slice tree and activates every reaction whose slices are all present.
// Each activated reaction runs once so derived fields start consistent.
func (e *Engine) CreateStore(instances ...*domain.Instance) error {
	if e.store != nil {
		return domain.ErrStoreExists
	}

	tree := make(sliceTree)
	store := make(map[string]*domain.Instance, len(instances))
	roots := make([]string, 0, len(instances))
	for i, inst := range instances {
		if inst == nil {
			return &domain.ConfigurationError{Subject: "store", Reason: fmt.Sprintf("instance %d is nil", i)}
		}
		typ := inst.Type()
		if typ.Catalog() != e.catalog {
			return &domain.ConfigurationError{Subject: "slice " + typ.Name(), Reason: "defined in another catalog"}
		}
		name := typ.Name()
		if _, dup := store[name]; dup {
			return &domain.ConfigurationError{Subject: "slice " + name, Reason: "registered twice"}
		}
		if err := tree.register(typ, name); err != nil {
			return err
		}
		store[name] = inst
		roots = append(roots, name)
	}

	e.store = store
	e.generation++
	e.roots = roots
	e.tree = tree
	e.committing = make(map[string]int)
	e.pending = make(map[string][]pendingDispatch)

	if err := e.activate(); err != nil {
		e.teardown()
		return fmt.Errorf("activate reactions: %w", err)
	}

	e.logger.Info("store created", "slices", roots, "subscriptions", e.subs.size())
	if e.hooks.OnStoreCreated != nil {
		e.hooks.OnStoreCreated(&domain.StoreEvent{
			EventBase: domain.NewEventBase(domain.EventStoreCreated),
			Slices:    slices.Clone(roots),
		})
	}
	return nil
}

// ClearStore drops the store, the slice tree and every subscription.
// Unsubscribe functions handed out before become no-ops.
func (e *Engine) ClearStore() error {
	if e.store == nil {
		return domain.ErrStoreNotCreated
	}
	if e.busy() {
		return fmt.Errorf("%w: cannot clear the store during a dispatch", domain.ErrLifecycle)
	}

	reactions := e.subs.removeWhere(func(s *subscription) bool { return s.origin == originActivation })
	users := e.subs.removeWhere(func(*subscription) bool { return true })
	roots := e.roots
	e.teardown()

	e.logger.Info("store cleared", "slices", roots, "reactions", reactions, "subscriptions", users)
	if e.hooks.OnStoreCleared != nil {
		e.hooks.OnStoreCleared(&domain.StoreEvent{
			EventBase: domain.NewEventBase(domain.EventStoreCleared),
			Slices:    roots,
		})
	}
	return nil
}

func (e *Engine) teardown() {
	e.subs.reset()
	e.store = nil
	e.generation++
	e.roots = nil
	e.tree = nil
	e.committing = nil
	e.pending = nil
}

func (e *Engine) busy() bool {
	for _, n := range e.committing {
		if n > 0 {
			return true
		}
	}
	return false
}

// Roots returns the root slice names in creation order.
func (e *Engine) Roots() ([]string, error) {
	if e.store == nil {
		return nil, domain.ErrStoreNotCreated
	}
	return slices.Clone(e.roots), nil
}

// Tree returns a copy of the slice tree: every registered type name mapped to its root.
func (e *Engine) Tree() (map[string]string, error) {
	if e.store == nil {
		return nil, domain.ErrStoreNotCreated
	}
	return maps.Clone(map[string]string(e.tree)), nil
}

// RootOf returns the root slice that owns the named slice type.
func (e *Engine) RootOf(slice string) (string, error) {
	return e.rootOf(slice)
}

func (e *Engine) rootOf(slice string) (string, error) {
	if e.store == nil {
		return "", domain.ErrStoreNotCreated
	}
	root, ok := e.tree[slice]
	if !ok {
		return "", &domain.NotFoundError{Kind: "slice", Name: slice}
	}
	if _, ok := e.store[root]; !ok {
		return "", &domain.NotFoundError{Kind: "root", Name: root}
	}
	return root, nil
}

// resolve maps a path onto the root that stores it.
func (e *Engine) resolve(p domain.StatePath) (domain.StatePath, error) {
	root, err := e.rootOf(p.Slice)
	if err != nil {
		return domain.StatePath{}, err
	}
	typ, err := e.catalog.Lookup(p.Slice)
	if err != nil {
		return domain.StatePath{}, err
	}
	if !typ.HasField(p.Field) {
		return domain.StatePath{}, &domain.NotFoundError{Kind: "field", Name: p.String()}
	}
	return domain.StatePath{Slice: root, Field: p.Field}, nil
}

func (e *Engine) committed(key domain.StatePath) (any, error) {
	inst, ok := e.store[key.Slice]
	if !ok {
		return nil, &domain.NotFoundError{Kind: "root", Name: key.Slice}
	}
	return inst.Get(key.Field)
}

// GetState returns the committed value of the field addressed by path.
func (e *Engine) GetState(path domain.StatePath) (any, error) {
	key, err := e.resolve(path)
	if err != nil {
		return nil, err
	}
	return e.committed(key)
}

// GetSlice returns the root instance that owns the named slice type.
func (e *Engine) GetSlice(slice string) (*domain.Instance, error) {
	root, err := e.rootOf(slice)
	if err != nil {
		return nil, err
	}
	return e.store[root], nil
}

// Schema returns the field schema of every root slice.
func (e *Engine) Schema() (map[string]schema.Schema, error) {
	if e.store == nil {
		return nil, domain.ErrStoreNotCreated
	}
	out := make(map[string]schema.Schema, len(e.roots))
	for _, root := range e.roots {
		out[root] = e.store[root].Type().Schema()
	}
	return out, nil
}

// DumpStore returns the plain field values of every root slice.
func (e *Engine) DumpStore() (map[string]map[string]any, error) {
	if e.store == nil {
		return nil, domain.ErrStoreNotCreated
	}
	out := make(map[string]map[string]any, len(e.roots))
	for _, root := range e.roots {
		out[root] = e.store[root].Map()
	}
	return out, nil
}

// LoadStore replaces every root instance with one built from data.
// All roots are validated before any is installed; each is then committed
// through the dispatch pipeline so subscribers and reactions observe the change.
func (e *Engine) LoadStore(data map[string]map[string]any) error {
	if e.store == nil {
		return domain.ErrStoreNotCreated
	}

	var errs []error
	for name := range data {
		if _, ok := e.store[name]; !ok {
			errs = append(errs, &domain.NotFoundError{Kind: "root", Name: name})
		}
	}
	next := make(map[string]*domain.Instance, len(e.roots))
	for _, root := range e.roots {
		raw, ok := data[root]
		if !ok {
			errs = append(errs, fmt.Errorf("slice %s missing from input: %w", root, domain.ErrNotFound))
			continue
		}
		inst, err := e.store[root].Type().New(raw)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		next[root] = inst
	}
	if len(errs) > 0 {
		return fmt.Errorf("load store: %w", errors.Join(errs...))
	}

	for _, root := range e.roots {
		inst := next[root]
		errs = append(errs, e.dispatch(root, "load", func(*domain.Instance) (*domain.Instance, error) {
			return inst, nil
		}))
	}
	return errors.Join(errs...)
}
