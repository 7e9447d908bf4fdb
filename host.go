package selectz

import "context"

// Derived is a cached derived value handed back by the reactive host. Every
// bind operation returns one. Get evaluates the underlying selector against
// the active store; Set forwards an assignment to the binding's setter, or
// fails with ErrReadOnly for read-only bindings.
type Derived interface {
	Get(ctx context.Context) (any, error)
	Set(ctx context.Context, value any) error
	Name() Name
}

// Host is the reactive computation collaborator. It turns the runtime's
// accessors into cached derived values, typically adding its own dependency
// tracking and invalidation on top.
//
// selectz deliberately implements no reactivity of its own: the runtime
// guarantees at most one Computed or WritableComputed call per memoized
// binding, so whatever caching the host layers on is shared by every caller
// of that binding.
type Host interface {
	// Computed wraps a getter into a read-only derived value.
	Computed(name Name, get func(context.Context) (any, error)) Derived

	// WritableComputed wraps a getter/setter pair into a writable derived
	// value whose Set is invoked on external assignment.
	WritableComputed(name Name, get func(context.Context) (any, error), set func(context.Context, any) error) Derived
}

// BasicHost is the default Host: a pass-through with no dependency tracking.
// Every Get re-evaluates the selector against the store's current state,
// which keeps reads correct without any subscription mechanism. Applications
// with a real reactive host supply it through WithHost.
type BasicHost struct{}

// Computed implements the Host interface.
func (BasicHost) Computed(name Name, get func(context.Context) (any, error)) Derived {
	return &basicDerived{name: name, get: get}
}

// WritableComputed implements the Host interface.
func (BasicHost) WritableComputed(name Name, get func(context.Context) (any, error), set func(context.Context, any) error) Derived {
	return &basicDerived{name: name, get: get, set: set}
}

type basicDerived struct {
	get  func(context.Context) (any, error)
	set  func(context.Context, any) error
	name Name
}

func (d *basicDerived) Get(ctx context.Context) (any, error) {
	return d.get(ctx)
}

func (d *basicDerived) Set(ctx context.Context, value any) error {
	if d.set == nil {
		return &BindError{
			Op:       "set",
			Selector: d.name,
			Err:      ErrReadOnly,
		}
	}
	return d.set(ctx, value)
}

func (d *basicDerived) Name() Name {
	return d.name
}
