package selectz

import (
	"context"
	"time"

	"github.com/zoobzio/hookz"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

// Metric keys for binding registries and evaluation.
const (
	GetterCacheHitsTotal   = metricz.Key("getter.cache.hits.total")
	GetterCacheMissesTotal = metricz.Key("getter.cache.misses.total")
	EvaluationsTotal       = metricz.Key("selector.evaluations.total")
	EvaluationErrorsTotal  = metricz.Key("selector.evaluation.errors.total")
)

// Span names for evaluation.
const (
	EvaluateSpan = tracez.Key("selectz.evaluate")
)

// Span tags for evaluation.
const (
	TagSelector = tracez.Tag("selectz.selector")
	TagStoreKey = tracez.Tag("selectz.store_key")
	TagError    = tracez.Tag("selectz.error")

	// Hook event keys for registry decisions.
	EventCacheHit    = hookz.Key("cache.hit")
	EventCacheMiss   = hookz.Key("cache.miss")
	EventCacheBypass = hookz.Key("cache.bypass")
)

// CacheEvent describes a registry decision: a bind that reused a cached
// derived value, built and stored a new one, or bypassed caching entirely.
// Emitted via hooks so external systems can watch cache behavior.
type CacheEvent struct {
	Timestamp time.Time
	Registry  string // "getter", "writable", or "factory"
	Name      Name   // selector or factory name
	Signature string // factory argument signature, empty for plain selectors
	Hit       bool
	Bypassed  bool
}

// registryKinds for CacheEvent.Registry.
const (
	registryGetter   = "getter"
	registryWritable = "writable"
	registryFactory  = "factory"
)

// OnCacheHit registers a handler called when a bind reuses a cached derived
// value. The handler runs asynchronously.
func (r *Runtime) OnCacheHit(handler func(context.Context, CacheEvent) error) error {
	_, err := r.cacheHooks.Hook(EventCacheHit, handler)
	return err
}

// OnCacheMiss registers a handler called when a bind builds and stores a new
// derived value.
func (r *Runtime) OnCacheMiss(handler func(context.Context, CacheEvent) error) error {
	_, err := r.cacheHooks.Hook(EventCacheMiss, handler)
	return err
}

// OnCacheBypass registers a handler called when a factory bind skips the
// registry because an argument was tagged Opaque.
func (r *Runtime) OnCacheBypass(handler func(context.Context, CacheEvent) error) error {
	_, err := r.cacheHooks.Hook(EventCacheBypass, handler)
	return err
}

// BindReadOnly returns the cached read-only derived value for a selector,
// creating it on first use. Identity is the selector reference itself:
// binding the same Selector value twice returns the same derived instance,
// and the host's Computed constructor runs at most once per selector.
//
// The read-only registry is distinct from the writable one. A selector bound
// both read-only and writable gets two independent accessors, because the
// writable accessor closes over setter state the read-only one never has.
//
// An invalid (zero) selector yields a derived value whose Get always fails;
// it is never cached.
func (r *Runtime) BindReadOnly(selector Selector) Derived {
	if !selector.valid() {
		return r.invalidBind("bind read-only", selector.name)
	}

	r.mu.Lock()
	if d, ok := r.readonly[selector.id]; ok {
		r.mu.Unlock()
		r.metrics.Counter(GetterCacheHitsTotal).Inc()
		r.emitCache(EventCacheHit, CacheEvent{
			Registry:  registryGetter,
			Name:      selector.name,
			Hit:       true,
			Timestamp: r.getClock().Now(),
		})
		return d
	}
	d := r.host.Computed(selector.name, func(ctx context.Context) (any, error) {
		return r.evaluate(ctx, selector)
	})
	r.readonly[selector.id] = d
	r.mu.Unlock()

	r.metrics.Counter(GetterCacheMissesTotal).Inc()
	r.emitCache(EventCacheMiss, CacheEvent{
		Registry:  registryGetter,
		Name:      selector.name,
		Timestamp: r.getClock().Now(),
	})
	return d
}

// evaluate runs one synchronous selector evaluation: resolve the active
// store's memoized View, apply the selector, and unwrap the result on exit.
// The unwrap step guarantees consumers receive the actual stored object -
// object identity survives for later commits - while derivation itself could
// never have mutated it. A write attempt inside the selector panics at the
// View and is recovered here into a *MutationError.
func (r *Runtime) evaluate(ctx context.Context, selector Selector) (result any, err error) {
	// Declared before the recovery defer so it observes the recovered error.
	defer func() {
		if err != nil {
			r.metrics.Counter(EvaluationErrorsTotal).Inc()
		}
	}()
	defer recoverEvaluation(&result, &err, selector.name)

	_, span := r.tracer.StartSpan(ctx, EvaluateSpan)
	defer span.Finish()
	span.SetTag(TagSelector, string(selector.name))

	r.metrics.Counter(EvaluationsTotal).Inc()

	view, key, verr := r.activeView()
	span.SetTag(TagStoreKey, key)
	if verr != nil {
		span.SetTag(TagError, verr.Error())
		return nil, verr
	}

	result = selector.fn(view)
	if v, ok := result.(View); ok {
		result = v.Raw()
	}
	return result, nil
}

// invalidBind returns an uncached derived value that fails on every access.
// Misuse surfaces at the first Get instead of being silently dropped.
func (r *Runtime) invalidBind(op string, name Name) Derived {
	fail := func(context.Context) (any, error) {
		return nil, &BindError{
			Op:       op,
			Selector: name,
			Err:      ErrInvalidSelector,
		}
	}
	return r.host.Computed(name, fail)
}

// emitCache fires a cache event, dropping hook errors: observers must not
// affect binding behavior.
func (r *Runtime) emitCache(key hookz.Key, event CacheEvent) {
	_ = r.cacheHooks.Emit(context.Background(), key, event) //nolint:errcheck
}
