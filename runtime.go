package selectz

import (
	"sync"

	"github.com/zoobzio/clockz"
	"github.com/zoobzio/hookz"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

// Runtime owns everything the bindings share: the store table, the active
// store key, the memoized top-level View per store key, the read-only and
// writable getter registries, and the factory registry. It is an explicit
// object rather than package-level state, so tests and applications can run
// any number of independent runtimes in one process.
//
// Registries and views are created lazily on first use and live for the
// Runtime's lifetime. There is no eviction: every cache entry, once created,
// persists until Reset is called. This trades unbounded growth for O(1)
// lookups and stable accessor identity, which is what lets the reactive host
// memoize on top. Entries are never invalidated even if a store is replaced
// under the same key; only a differently-keyed store gets a new top-level
// View.
//
// A Runtime is safe for concurrent use. The evaluation model itself stays
// synchronous: no binding blocks, suspends, or schedules asynchronous work.
type Runtime struct {
	stores      map[string]Store
	views       map[string]View
	readonly    map[uint64]Derived
	writable    map[uint64]Derived
	factories   map[uint64]map[string]Derived
	host        Host
	clock       clockz.Clock
	metrics     *metricz.Registry
	tracer      *tracez.Tracer
	cacheHooks  *hookz.Hooks[CacheEvent]
	commitHooks *hookz.Hooks[CommitEvent]
	storeKey    string
	mu          sync.RWMutex
}

// Option configures a Runtime at construction time.
type Option func(*Runtime)

// WithStore registers a store under the given key. Registering under
// DefaultStoreKey makes the store active without any SetStoreKey call.
func WithStore(key string, store Store) Option {
	return func(r *Runtime) {
		r.stores[key] = store
	}
}

// WithHost sets the reactive host that wraps accessors into derived values.
// Defaults to BasicHost.
func WithHost(host Host) Option {
	return func(r *Runtime) {
		r.host = host
	}
}

// WithClock sets a custom clock for testing.
func WithClock(clock clockz.Clock) Option {
	return func(r *Runtime) {
		r.clock = clock
	}
}

// New creates a Runtime with its own observability components.
func New(opts ...Option) *Runtime {
	registry := metricz.New()
	registry.Counter(GetterCacheHitsTotal)
	registry.Counter(GetterCacheMissesTotal)
	registry.Counter(EvaluationsTotal)
	registry.Counter(EvaluationErrorsTotal)
	registry.Counter(FactoryCacheHitsTotal)
	registry.Counter(FactoryCacheMissesTotal)
	registry.Counter(FactoryCacheBypassTotal)
	registry.Counter(CommitsTotal)
	registry.Counter(CommitsSkippedTotal)

	r := &Runtime{
		stores:      make(map[string]Store),
		views:       make(map[string]View),
		readonly:    make(map[uint64]Derived),
		writable:    make(map[uint64]Derived),
		factories:   make(map[uint64]map[string]Derived),
		host:        BasicHost{},
		storeKey:    DefaultStoreKey,
		metrics:     registry,
		tracer:      tracez.New(),
		cacheHooks:  hookz.New[CacheEvent](),
		commitHooks: hookz.New[CommitEvent](),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterStore registers a store under the given key. A store registered
// under a key that already has a memoized View does not replace that View:
// existing bindings keep reading through the original store.
func (r *Runtime) RegisterStore(key string, store Store) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stores[key] = store
}

// SetStoreKey selects which registered store backs all subsequent binds and
// evaluations. An empty key restores DefaultStoreKey.
func (r *Runtime) SetStoreKey(key string) {
	if key == "" {
		key = DefaultStoreKey
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.storeKey = key
}

// StoreKey returns the active store key.
func (r *Runtime) StoreKey() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.storeKey
}

// Reset clears every registry and memoized View. Registered stores and the
// active key survive. This is the documented manual-clear extension to the
// otherwise unbounded caches; nothing calls it implicitly.
func (r *Runtime) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views = make(map[string]View)
	r.readonly = make(map[uint64]Derived)
	r.writable = make(map[uint64]Derived)
	r.factories = make(map[uint64]map[string]Derived)
}

// Metrics returns the metrics registry for this runtime.
func (r *Runtime) Metrics() *metricz.Registry {
	return r.metrics
}

// Tracer returns the tracer for this runtime.
func (r *Runtime) Tracer() *tracez.Tracer {
	return r.tracer
}

// Close gracefully shuts down observability components.
func (r *Runtime) Close() error {
	if r.tracer != nil {
		r.tracer.Close()
	}
	r.cacheHooks.Close()
	r.commitHooks.Close()
	return nil
}

// activeStore returns the store registered under the active key.
func (r *Runtime) activeStore() (Store, string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	store, ok := r.stores[r.storeKey]
	if !ok {
		return nil, r.storeKey, &BindError{
			Op:       "resolve store",
			StoreKey: r.storeKey,
			Err:      ErrNoStore,
		}
	}
	return store, r.storeKey, nil
}

// activeView returns the memoized top-level View for the active store key,
// building it on first use. The View resolves the store's root state lazily,
// so it never goes stale and is never rebuilt for the same key.
func (r *Runtime) activeView() (View, string, error) {
	r.mu.RLock()
	key := r.storeKey
	view, ok := r.views[key]
	r.mu.RUnlock()
	if ok {
		return view, key, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if view, ok = r.views[key]; ok {
		return view, key, nil
	}
	store, ok := r.stores[key]
	if !ok {
		return View{}, key, &BindError{
			Op:       "resolve store",
			StoreKey: key,
			Err:      ErrNoStore,
		}
	}
	view = storeView(store)
	r.views[key] = view
	return view, key, nil
}

// getClock returns the clock to use.
func (r *Runtime) getClock() clockz.Clock {
	if r.clock == nil {
		return clockz.RealClock
	}
	return r.clock
}
