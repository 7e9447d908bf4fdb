// Package selectz provides memoized selector bindings between a mutation-gated
// state store and a reactive computation host.
//
// # Overview
//
// selectz lets applications compose small "selector" functions (state → value)
// into larger selectors without re-deriving intermediate values unnecessarily,
// exposes them to a reactive host as cached derived values, and enforces that
// reading state can never mutate it.
//
// Three mechanisms work together:
//
//   - Composition: Compose combines N input selectors with a combiner function
//     into a new selector, to arbitrary depth.
//   - Memoization: a Runtime keeps identity-keyed registries mapping each
//     selector (or factory plus argument signature) to a single reusable
//     derived value, so two binds of the same selector share one accessor.
//   - Immutability: selectors evaluate against a read-only View of the store's
//     state tree. Any write through a View fails immediately, and the Raw
//     escape hatch is the only way back to the underlying value.
//
// # Core Concepts
//
// A Selector is a named, identity-carrying wrapper around a state → value
// function:
//
//	total := selectz.Select("total", func(v selectz.View) any {
//	    return v.Get("total")
//	})
//
// Selectors compose positionally - the combiner receives one argument per
// input selector, in declaration order, and never sees state directly:
//
//	area := selectz.MustCompose("area",
//	    func(vals ...any) any { return vals[0].(int) * vals[1].(int) },
//	    width, height,
//	)
//
// A Runtime owns the registries, the store table, and the per-store View
// cache. It is an explicit object rather than package-level state so tests
// and applications can run independent runtimes side by side:
//
//	rt := selectz.New(selectz.WithStore(selectz.DefaultStoreKey, store))
//	derived := rt.BindReadOnly(area)
//	value, err := derived.Get(ctx)
//
// Writable bindings pair the same getter with a setter that forwards named
// commits to the store, skipping redundant commits:
//
//	count, err := rt.BindWritable(counter, "SET_COUNT")
//	err = count.Set(ctx, 42) // commits SET_COUNT with payload [42]
//
// Parameterized selectors come from factories. Arguments are tagged at the
// call site, which decides cache eligibility explicitly:
//
//	byID := selectz.NewFactory("item-by-id", func(args ...any) selectz.Selector {
//	    id := args[0].(string)
//	    return selectz.Select("item", func(v selectz.View) any {
//	        return v.Get("items").(selectz.View).Get(id)
//	    })
//	})
//
//	rt.BindFromFactory(byID, selectz.Literal("a1"))      // cached per value
//	rt.BindFromFactory(byID, selectz.Reference(cursor))  // cached, re-read each evaluation
//	rt.BindFromFactory(byID, selectz.Opaque(predicate))  // never cached
//
// # Immutability
//
// Every evaluation wraps the store's root state in a View. Reading an
// object-typed field yields a fresh child View; reading a scalar yields the
// raw value; Raw returns the underlying value at any node. Set always fails
// with a *MutationError that aborts the evaluation - there is no configuration
// that permits writes through a View. Results that are still wrapped when a
// selector returns are unwrapped on exit, so consumers receive the actual
// stored object, preserving identity for later commits.
//
// # Observability
//
// Each Runtime carries its own metrics registry, tracer, and event hooks in
// the zoobzio style:
//
//	rt.Metrics().Counter(selectz.GetterCacheHitsTotal).Value()
//	rt.OnCommit(func(ctx context.Context, e selectz.CommitEvent) error {
//	    log.Printf("committed %s with %v", e.Mutation, e.Payload)
//	    return nil
//	})
//
// # Error Handling
//
// All failures are programmer errors surfaced immediately and never retried:
//
//   - *MutationError: a write was attempted through a read-only View during
//     evaluation. Fatal to that evaluation.
//   - *CompositionError: Compose was called without a usable combiner.
//     Surfaced at composition time, not deferred to evaluation.
//   - *BindError: a binding could not evaluate or commit, for example because
//     no store is registered under the active key.
//
// Store-reported commit errors propagate unchanged; selectz adds no recovery.
package selectz

import "sync/atomic"

// Name is a type alias for selector, factory, and mutation names.
// Using this type encourages storing names as constants rather than
// using inline strings throughout your code.
//
// Example:
//
//	const (
//	    CartTotalSelector Name = "cart-total"
//	    SetCartMutation   Name = "SET_CART"
//	)
type Name = string

// identities issues the opaque handles that key the memoization registries.
// Function values cannot key a Go map, so every Selector and Factory is
// stamped with a process-unique ID at construction time. Two Selector values
// share an ID only if one was copied from the other, which is exactly the
// reference-identity rule the registries need.
var identities atomic.Uint64

// Selector is a pure function mapping state to a derived value, wrapped with
// a name for debugging and an identity for memoization.
//
// A Selector must not mutate state: it receives a read-only View, and any
// write attempt aborts the evaluation. Selectors may read fields directly or
// be built from other selectors with Compose.
//
// The zero Selector is invalid; construct selectors with Select or Compose.
type Selector struct {
	fn   func(View) any
	name Name
	id   uint64
}

// Select creates a Selector from a state function. The name appears in spans,
// events, and errors to identify where a failure occurred.
//
//	active := selectz.Select("active-users", func(v selectz.View) any {
//	    return v.Get("users").(selectz.View).Get("active")
//	})
func Select(name Name, fn func(View) any) Selector {
	return Selector{
		name: name,
		fn:   fn,
		id:   identities.Add(1),
	}
}

// Name returns the selector's name for debugging and error reporting.
func (s Selector) Name() Name {
	return s.name
}

// valid reports whether the selector was built through Select or Compose.
func (s Selector) valid() bool {
	return s.id != 0 && s.fn != nil
}

// Combiner consumes the outputs of a composition's input selectors, one
// positional argument per input in declaration order, and returns the derived
// value. A Combiner never receives state directly.
type Combiner func(values ...any) any

// Factory is a function mapping call-site arguments to a Selector, wrapped
// with a name and an identity so parameterized bindings can be memoized per
// argument signature.
//
// Factories are expected to be deterministic: the same arguments must produce
// a selector with the same meaning, since the runtime caches one accessor per
// argument signature and re-applies the factory on every evaluation.
//
// The zero Factory is invalid; construct factories with NewFactory.
type Factory struct {
	fn   func(args ...any) Selector
	name Name
	id   uint64
}

// NewFactory creates a Factory from an argument function.
//
//	itemByID := selectz.NewFactory("item-by-id", func(args ...any) selectz.Selector {
//	    id := args[0].(string)
//	    return selectz.Select("item", func(v selectz.View) any {
//	        return v.Get("items").(selectz.View).Get(id)
//	    })
//	})
func NewFactory(name Name, fn func(args ...any) Selector) Factory {
	return Factory{
		name: name,
		fn:   fn,
		id:   identities.Add(1),
	}
}

// Name returns the factory's name for debugging and error reporting.
func (f Factory) Name() Name {
	return f.name
}

// valid reports whether the factory was built through NewFactory.
func (f Factory) valid() bool {
	return f.id != 0 && f.fn != nil
}
