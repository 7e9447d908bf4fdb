package selectz

import (
	"context"
	"sync"
)

// commitRecord captures one Commit call for assertions.
type commitRecord struct {
	mutation Name
	payload  []any
}

// memStore is a minimal in-memory Store for tests. An optional apply hook
// mutates the root so committed writes become visible to subsequent reads.
type memStore struct {
	root    map[string]any
	apply   func(root map[string]any, mutation Name, payload []any) error
	commits []commitRecord
	mu      sync.Mutex
}

func newMemStore(root map[string]any) *memStore {
	return &memStore{root: root}
}

func (s *memStore) State() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.root
}

func (s *memStore) Commit(mutation Name, payload []any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commits = append(s.commits, commitRecord{mutation: mutation, payload: payload})
	if s.apply != nil {
		return s.apply(s.root, mutation, payload)
	}
	return nil
}

func (s *memStore) setRoot(root map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.root = root
}

func (s *memStore) committed() []commitRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]commitRecord, len(s.commits))
	copy(out, s.commits)
	return out
}

// countingHost wraps BasicHost and counts constructor calls, which makes
// "no new accessor on the second bind" directly observable.
type countingHost struct {
	mu       sync.Mutex
	computed int
	writable int
}

func (h *countingHost) Computed(name Name, get func(context.Context) (any, error)) Derived {
	h.mu.Lock()
	h.computed++
	h.mu.Unlock()
	return BasicHost{}.Computed(name, get)
}

func (h *countingHost) WritableComputed(name Name, get func(context.Context) (any, error), set func(context.Context, any) error) Derived {
	h.mu.Lock()
	h.writable++
	h.mu.Unlock()
	return BasicHost{}.WritableComputed(name, get, set)
}

func (h *countingHost) computedCalls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.computed
}

func (h *countingHost) writableCalls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.writable
}
