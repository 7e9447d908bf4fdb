package selectz

// DefaultStoreKey is the store identifier used when no key has been
// configured through SetStoreKey.
const DefaultStoreKey = "default"

// Store is the external collaborator holding root state and accepting named
// commits. selectz only ever reads a store's state through a read-only View
// and forwards writes through Commit; it never mutates state directly.
//
// Failure modes of Commit (unknown mutation name, mutation body failing) are
// the store's responsibility and propagate to the caller unchanged.
//
// Multiple stores may back one runtime: each is registered under a key and
// SetStoreKey selects which one the bindings evaluate against.
type Store interface {
	// State returns the current root state object. The runtime wraps it in a
	// read-only View for every evaluation; implementations must return the
	// same tree that Commit mutates so reads observe committed writes.
	State() any

	// Commit applies a named mutation with the given payload. The payload is
	// the binding's extra arguments, in order, with the incoming value
	// appended last.
	Commit(mutation Name, payload []any) error
}
