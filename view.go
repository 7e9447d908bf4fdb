package selectz

import (
	"reflect"
	"time"
)

// View is a read-only wrapper over a node of the state tree. It holds a
// borrowed reference to the raw value and never takes ownership: reading an
// object-typed field constructs a fresh child View on demand, reading a
// scalar field returns the raw value unchanged, and Raw returns the exact
// underlying value at this node.
//
// Writes are intercepted unconditionally. Set and SetIndex panic with a
// *MutationError regardless of depth or field; the accessor machinery
// recovers the panic at the evaluation boundary and surfaces it as an error,
// so a selector that attempts a write never produces a value.
//
// Child Views are not cached. Each access rebuilds the wrapper for that
// field, so a View always reflects the current contents of the raw node it
// borrows. The top-level View handed to selectors additionally resolves the
// store's root state lazily, which lets the runtime memoize it once per store
// key without it ever going stale.
//
// Supported node shapes: maps with string keys, structs, pointers to either,
// and slices/arrays for element access. Anything else is treated as a scalar.
type View struct {
	node any
	src  Store
}

// NewView wraps a raw value in a read-only View. Most callers never construct
// Views directly - the runtime builds them during evaluation - but a
// standalone View is useful for testing selectors in isolation:
//
//	v := selectz.NewView(map[string]any{"a": 3})
//	got := mySelector.fn(v)
func NewView(root any) View {
	return View{node: root}
}

// storeView wraps a store so the top-level View re-reads the store's current
// root state on every access instead of capturing a snapshot.
func storeView(src Store) View {
	return View{src: src}
}

// Raw returns the underlying raw value this View wraps, by reference, never a
// re-wrapped copy. This is the single escape hatch for handing the literal
// stored value back to the reactive host, so that later mutations through the
// store observe the same object identity.
func (v View) Raw() any {
	if v.src != nil {
		return v.src.State()
	}
	return v.node
}

// Get reads a field of this node by name. Map lookups use the field as a
// string key; struct lookups use the exported field name. An object-typed,
// non-nil result comes back as a fresh child View; scalars come back raw;
// missing fields come back nil.
func (v View) Get(field Name) any {
	rv := deref(reflect.ValueOf(v.Raw()))
	if !rv.IsValid() {
		return nil
	}
	switch rv.Kind() {
	case reflect.Map:
		key := reflect.ValueOf(field)
		if !key.Type().AssignableTo(rv.Type().Key()) {
			return nil
		}
		mv := rv.MapIndex(key)
		if !mv.IsValid() {
			return nil
		}
		return wrap(mv.Interface())
	case reflect.Struct:
		fv := rv.FieldByName(field)
		if !fv.IsValid() || !fv.CanInterface() {
			return nil
		}
		return wrap(fv.Interface())
	default:
		return nil
	}
}

// GetPath follows a sequence of field names from this node, returning the
// value at the end of the path. Traversal stops with nil as soon as any
// intermediate value is missing or scalar.
func (v View) GetPath(fields ...Name) any {
	var current any = v
	for _, field := range fields {
		cv, ok := current.(View)
		if !ok {
			return nil
		}
		current = cv.Get(field)
	}
	return current
}

// Index reads element i of a slice or array node. Out-of-range indexes and
// non-indexable nodes return nil. Object-typed elements come back wrapped.
func (v View) Index(i int) any {
	rv := deref(reflect.ValueOf(v.Raw()))
	if !rv.IsValid() {
		return nil
	}
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if i < 0 || i >= rv.Len() {
			return nil
		}
		return wrap(rv.Index(i).Interface())
	default:
		return nil
	}
}

// Len returns the length of a map, slice, array, or string node, or zero for
// anything else.
func (v View) Len() int {
	rv := deref(reflect.ValueOf(v.Raw()))
	if !rv.IsValid() {
		return 0
	}
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.String:
		return rv.Len()
	default:
		return 0
	}
}

// Set intercepts a write attempt. It always panics with a *MutationError and
// never touches the underlying state, at any depth, including the top-level
// View. The panic is translated to an error at the accessor boundary.
func (v View) Set(field Name, _ any) {
	panic(&MutationError{
		Field:     field,
		Timestamp: time.Now(),
	})
}

// SetIndex intercepts an indexed write attempt. Like Set, it always panics
// with a *MutationError and performs no state change.
func (v View) SetIndex(i int, _ any) {
	panic(&MutationError{
		Index:     i,
		Indexed:   true,
		Timestamp: time.Now(),
	})
}

// wrap boxes object-typed values in a child View and passes scalars through.
func wrap(value any) any {
	if isObject(value) {
		return View{node: value}
	}
	return value
}

// isObject reports whether a value is object-typed and non-nil: a map,
// struct, slice, array, or a non-nil pointer to one of those.
func isObject(value any) bool {
	rv := deref(reflect.ValueOf(value))
	if !rv.IsValid() {
		return false
	}
	switch rv.Kind() {
	case reflect.Map, reflect.Slice:
		return !rv.IsNil()
	case reflect.Struct, reflect.Array:
		return true
	default:
		return false
	}
}

// deref follows pointers and interfaces down to the concrete value.
func deref(rv reflect.Value) reflect.Value {
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return reflect.Value{}
		}
		rv = rv.Elem()
	}
	return rv
}
