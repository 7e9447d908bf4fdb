package selectz

import (
	"errors"
	"fmt"
	"time"
)

// MutationError reports a write attempted through a read-only View during
// selector evaluation. It is always fatal to that evaluation: the write never
// reaches the underlying state, the selector never returns a value, and the
// error propagates to the caller of the derived value's Get.
type MutationError struct {
	Timestamp time.Time
	Selector  Name
	Field     Name
	Index     int
	Indexed   bool
}

// Error implements the error interface, providing a detailed error message.
func (e *MutationError) Error() string {
	target := fmt.Sprintf("field %q", e.Field)
	if e.Indexed {
		target = fmt.Sprintf("index %d", e.Index)
	}
	if e.Selector != "" {
		return fmt.Sprintf("selector %q: mutation not allowed: write to %s through read-only view", e.Selector, target)
	}
	return fmt.Sprintf("mutation not allowed: write to %s through read-only view", target)
}

// IsMutationNotAllowed reports whether err was caused by a write attempt
// through a read-only View.
func IsMutationNotAllowed(err error) bool {
	var me *MutationError
	return errors.As(err, &me)
}

// CompositionError reports an invalid Compose call, such as a missing or nil
// combiner. It is surfaced at composition time, never deferred to evaluation.
type CompositionError struct {
	Name   Name
	Reason string
}

// Error implements the error interface.
func (e *CompositionError) Error() string {
	return fmt.Sprintf("invalid composition %q: %s", e.Name, e.Reason)
}

// BindError reports a binding that could not be created or evaluated: an
// invalid selector or factory, a missing store under the active key, or a
// panic escaping a selector. The underlying cause, when there is one, is
// available through Unwrap.
type BindError struct {
	Err      error
	Op       string
	Selector Name
	StoreKey string
}

// Error implements the error interface, providing a detailed error message.
func (e *BindError) Error() string {
	location := e.Op
	if e.Selector != "" {
		location = fmt.Sprintf("%s %q", e.Op, e.Selector)
	}
	if e.StoreKey != "" {
		location = fmt.Sprintf("%s (store %q)", location, e.StoreKey)
	}
	return fmt.Sprintf("%s: %v", location, e.Err)
}

// Unwrap returns the underlying error, supporting error wrapping patterns.
func (e *BindError) Unwrap() error {
	return e.Err
}

// ErrNoStore is the cause reported by a BindError when no store is registered
// under the runtime's active store key.
var ErrNoStore = errors.New("no store registered under active key")

// ErrReadOnly is the cause reported when Set is called on a read-only derived
// value.
var ErrReadOnly = errors.New("derived value is read-only")

// ErrInvalidSelector is the cause reported when a bind receives a zero
// Selector or Factory instead of one built with Select, Compose, or
// NewFactory.
var ErrInvalidSelector = errors.New("selector or factory was not constructed with this package")

// recoverEvaluation translates panics escaping a selector into errors at the
// accessor boundary. A *MutationError panic from a View write trap is stamped
// with the selector's name and returned as-is; any other panic is wrapped in
// a BindError so callers still get an error instead of a crash.
func recoverEvaluation(result *any, err *error, selector Name) {
	r := recover()
	if r == nil {
		return
	}
	*result = nil
	if me, ok := r.(*MutationError); ok {
		me.Selector = selector
		*err = me
		return
	}
	*err = &BindError{
		Op:       "evaluate",
		Selector: selector,
		Err:      fmt.Errorf("selector panicked: %v", r),
	}
}
