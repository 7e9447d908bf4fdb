package selectz

import (
	"context"
	"fmt"
	"strings"

	"github.com/zoobzio/metricz"
)

// Metric keys for the factory registry.
const (
	FactoryCacheHitsTotal   = metricz.Key("factory.cache.hits.total")
	FactoryCacheMissesTotal = metricz.Key("factory.cache.misses.total")
	FactoryCacheBypassTotal = metricz.Key("factory.cache.bypass.total")
)

// argKind classifies a factory argument for cache eligibility.
type argKind uint8

const (
	argLiteral argKind = iota
	argReference
	argOpaque
)

// Arg is a tagged factory argument. The tag, chosen at the call site, decides
// cache eligibility explicitly instead of inferring it from the value's
// runtime type:
//
//   - Literal: a plain value, cached by value.
//   - Reference: a Ref, cached by the value observed at bind time but
//     re-resolved to the Ref's current value on every evaluation.
//   - Opaque: anything else - an object, a function, a predicate. One Opaque
//     argument disables caching for the whole call.
type Arg struct {
	value any
	ref   *Ref
	kind  argKind
}

// Literal tags a plain value argument. Cacheable.
func Literal(value any) Arg {
	return Arg{kind: argLiteral, value: value}
}

// Reference tags a Ref argument. Cacheable; the binding re-reads the Ref's
// current value on every evaluation. A nil Ref resolves to nil.
func Reference(ref *Ref) Arg {
	return Arg{kind: argReference, ref: ref}
}

// Opaque tags an argument that must not participate in caching. Any Opaque
// argument makes the whole bind uncached: the registry is never touched and
// every call builds a fresh derived value.
func Opaque(value any) Arg {
	return Arg{kind: argOpaque, value: value}
}

// resolve returns the argument's current value. For Reference args this reads
// the Ref at call time, which is what lets evaluation observe later updates.
func (a Arg) resolve() any {
	if a.kind == argReference {
		if a.ref == nil {
			return nil
		}
		return a.ref.Value()
	}
	return a.value
}

// cacheable reports whether the argument may participate in a registry key.
func (a Arg) cacheable() bool {
	return a.kind != argOpaque
}

// signature encodes resolved argument values into the registry's second-level
// key. Order-preserving and value-based, with each element tagged by its kind
// and concrete type so values with identical string forms never collide: the
// string "5" signs as `lit|string=5`, the int 5 as `lit|int=5`.
func signature(args []Arg) string {
	var b strings.Builder
	for i, a := range args {
		if i > 0 {
			b.WriteByte(';')
		}
		tag := "lit"
		if a.kind == argReference {
			tag = "ref"
		}
		v := a.resolve()
		fmt.Fprintf(&b, "%s|%T=%v", tag, v, v)
	}
	return b.String()
}

// BindFromFactory returns a derived value for a parameterized selector,
// memoized per factory identity and argument signature.
//
// Classification is explicit: if every argument is Literal or Reference, the
// call is cacheable and (factory, signature) keys the two-level registry. One
// Opaque argument makes the call non-cacheable - the registry is never
// touched and a fresh derived value comes back on every call.
//
// On every evaluation the binding re-resolves each argument (Reference args
// to the Ref's current value), applies the factory to produce a selector, and
// evaluates it like any read-only bind. Cache identity is fixed by the values
// observed at bind time; later Ref updates change what evaluation sees but
// not which cache entry the binding lives under.
func (r *Runtime) BindFromFactory(factory Factory, args ...Arg) Derived {
	if !factory.valid() {
		return r.invalidBind("bind from factory", factory.name)
	}

	get := func(ctx context.Context) (any, error) {
		resolved := make([]any, len(args))
		for i, a := range args {
			resolved[i] = a.resolve()
		}
		return r.evaluate(ctx, factory.fn(resolved...))
	}

	for _, a := range args {
		if !a.cacheable() {
			r.metrics.Counter(FactoryCacheBypassTotal).Inc()
			r.emitCache(EventCacheBypass, CacheEvent{
				Registry:  registryFactory,
				Name:      factory.name,
				Bypassed:  true,
				Timestamp: r.getClock().Now(),
			})
			return r.host.Computed(factory.name, get)
		}
	}

	sig := signature(args)

	r.mu.Lock()
	inner, ok := r.factories[factory.id]
	if !ok {
		inner = make(map[string]Derived)
		r.factories[factory.id] = inner
	}
	if d, ok := inner[sig]; ok {
		r.mu.Unlock()
		r.metrics.Counter(FactoryCacheHitsTotal).Inc()
		r.emitCache(EventCacheHit, CacheEvent{
			Registry:  registryFactory,
			Name:      factory.name,
			Signature: sig,
			Hit:       true,
			Timestamp: r.getClock().Now(),
		})
		return d
	}
	d := r.host.Computed(factory.name, get)
	inner[sig] = d
	r.mu.Unlock()

	r.metrics.Counter(FactoryCacheMissesTotal).Inc()
	r.emitCache(EventCacheMiss, CacheEvent{
		Registry:  registryFactory,
		Name:      factory.name,
		Signature: sig,
		Timestamp: r.getClock().Now(),
	})
	return d
}
