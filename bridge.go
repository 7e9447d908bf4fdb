package selectz

import (
	"context"
	"fmt"
	"reflect"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/zoobzio/hookz"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

// Metric keys for the mutation bridge.
const (
	CommitsTotal        = metricz.Key("bridge.commits.total")
	CommitsSkippedTotal = metricz.Key("bridge.commits.skipped.total")
)

// Span names for the mutation bridge.
const (
	CommitSpan = tracez.Key("selectz.commit")
)

// Span tags for the mutation bridge.
const (
	TagMutation = tracez.Tag("selectz.mutation")
	TagSkipped  = tracez.Tag("selectz.skipped")

	// Hook event keys.
	EventCommit        = hookz.Key("bridge.commit")
	EventCommitSkipped = hookz.Key("bridge.commit.skipped")
)

// CommitEvent describes one assignment through a writable binding, whether
// it reached the store or was skipped as redundant.
type CommitEvent struct {
	Value     any
	Payload   []any
	Timestamp time.Time
	Selector  Name
	Mutation  Name
	StoreKey  string
	Skipped   bool
}

// OnCommit registers a handler called after a writable binding commits to the
// store. The handler runs asynchronously.
func (r *Runtime) OnCommit(handler func(context.Context, CommitEvent) error) error {
	_, err := r.commitHooks.Hook(EventCommit, handler)
	return err
}

// OnCommitSkipped registers a handler called when an assignment was dropped
// because the value matched the last committed one.
func (r *Runtime) OnCommitSkipped(handler func(context.Context, CommitEvent) error) error {
	_, err := r.commitHooks.Hook(EventCommitSkipped, handler)
	return err
}

// BindWritable returns the cached writable derived value for a selector,
// creating it on first use. The getter evaluates exactly like BindReadOnly;
// the setter forwards assignments to the active store as named commits.
//
// The mutation identifier may be a Name (or plain string) used literally, or
// a function, in which case the function's declared name is used. Anything
// else is an immediate *BindError.
//
// The setter remembers the last value it committed. Assigning a value
// identical to that one (strict equality; reference identity for slices,
// maps, and functions) is a no-op - no commit reaches the store. Otherwise
// the setter records the value, builds the payload by appending it to the
// binding's extra arguments, and commits under the mutation name. Store
// errors propagate unchanged.
//
// Writable bindings live in their own registry, keyed by selector identity
// like the read-only one. The first BindWritable call for a selector fixes
// its mutation and extra arguments; later calls return the cached binding
// regardless of their arguments.
func (r *Runtime) BindWritable(selector Selector, mutation any, extraArgs ...any) (Derived, error) {
	if !selector.valid() {
		return nil, &BindError{
			Op:       "bind writable",
			Selector: selector.name,
			Err:      ErrInvalidSelector,
		}
	}
	name, err := mutationName(mutation)
	if err != nil {
		return nil, &BindError{
			Op:       "bind writable",
			Selector: selector.name,
			Err:      err,
		}
	}

	r.mu.Lock()
	if d, ok := r.writable[selector.id]; ok {
		r.mu.Unlock()
		r.metrics.Counter(GetterCacheHitsTotal).Inc()
		r.emitCache(EventCacheHit, CacheEvent{
			Registry:  registryWritable,
			Name:      selector.name,
			Hit:       true,
			Timestamp: r.getClock().Now(),
		})
		return d, nil
	}

	get := func(ctx context.Context) (any, error) {
		return r.evaluate(ctx, selector)
	}
	set := r.committer(selector.name, name, extraArgs)

	d := r.host.WritableComputed(selector.name, get, set)
	r.writable[selector.id] = d
	r.mu.Unlock()

	r.metrics.Counter(GetterCacheMissesTotal).Inc()
	r.emitCache(EventCacheMiss, CacheEvent{
		Registry:  registryWritable,
		Name:      selector.name,
		Timestamp: r.getClock().Now(),
	})
	return d, nil
}

// committer builds the setter closure for one writable binding. The closure
// owns the binding's last-committed value, which is why writable bindings can
// never share an accessor with read-only ones.
func (r *Runtime) committer(selector, mutation Name, extraArgs []any) func(context.Context, any) error {
	var mu sync.Mutex
	var last any
	var committed bool

	return func(ctx context.Context, value any) error {
		mu.Lock()
		defer mu.Unlock()

		_, span := r.tracer.StartSpan(ctx, CommitSpan)
		defer span.Finish()
		span.SetTag(TagSelector, string(selector))
		span.SetTag(TagMutation, string(mutation))

		store, key, err := r.activeStore()
		span.SetTag(TagStoreKey, key)
		if err != nil {
			span.SetTag(TagError, err.Error())
			return err
		}

		if committed && identical(last, value) {
			span.SetTag(TagSkipped, "true")
			r.metrics.Counter(CommitsSkippedTotal).Inc()
			_ = r.commitHooks.Emit(ctx, EventCommitSkipped, CommitEvent{ //nolint:errcheck
				Selector:  selector,
				Mutation:  mutation,
				StoreKey:  key,
				Value:     value,
				Skipped:   true,
				Timestamp: r.getClock().Now(),
			})
			return nil
		}

		last = value
		committed = true

		payload := make([]any, 0, len(extraArgs)+1)
		payload = append(payload, extraArgs...)
		payload = append(payload, value)

		span.SetTag(TagSkipped, "false")
		if err := store.Commit(mutation, payload); err != nil {
			span.SetTag(TagError, err.Error())
			return err
		}

		r.metrics.Counter(CommitsTotal).Inc()
		_ = r.commitHooks.Emit(ctx, EventCommit, CommitEvent{ //nolint:errcheck
			Selector:  selector,
			Mutation:  mutation,
			StoreKey:  key,
			Value:     value,
			Payload:   payload,
			Timestamp: r.getClock().Now(),
		})
		return nil
	}
}

// mutationName resolves a mutation identifier to its committed name. Strings
// pass through; functions contribute their declared name with package path
// and method-value suffixes stripped.
func mutationName(mutation any) (Name, error) {
	switch m := mutation.(type) {
	case Name:
		if m == "" {
			return "", fmt.Errorf("mutation name must not be empty")
		}
		return m, nil
	}
	rv := reflect.ValueOf(mutation)
	if rv.Kind() == reflect.Func && !rv.IsNil() {
		full := runtime.FuncForPC(rv.Pointer()).Name()
		if i := strings.LastIndexByte(full, '.'); i >= 0 {
			full = full[i+1:]
		}
		full = strings.TrimSuffix(full, "-fm")
		if full == "" {
			return "", fmt.Errorf("mutation function has no resolvable name")
		}
		return full, nil
	}
	return "", fmt.Errorf("mutation identifier must be a string or a function, got %T", mutation)
}

// identical implements the setter's strict-equality check. Comparable values
// compare with ==; slices, maps, and functions compare by reference identity;
// values of different dynamic types are never identical.
func identical(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta.Comparable() {
		return a == b
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	switch va.Kind() {
	case reflect.Slice, reflect.Map, reflect.Func:
		return va.Pointer() == vb.Pointer()
	default:
		return false
	}
}
