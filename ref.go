package selectz

import "sync"

// Ref is a boxed mutable value, the runtime's rendering of the reactive
// host's "reference" concept. Factory bindings that take a Reference argument
// re-read the Ref's current value on every evaluation, while their cache
// identity is fixed by the value observed when the binding was created.
//
// A Ref is safe for concurrent use.
type Ref struct {
	mu    sync.RWMutex
	value any
}

// NewRef creates a Ref holding an initial value.
func NewRef(value any) *Ref {
	return &Ref{value: value}
}

// Value returns the current boxed value.
func (r *Ref) Value() any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.value
}

// Store replaces the boxed value. Bindings that reference this Ref observe
// the new value on their next evaluation.
func (r *Ref) Store(value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.value = value
}
