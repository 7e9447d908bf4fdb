// Package testing provides test utilities for selectz-based applications.
//
// This package includes a mock store that records commits, a mock host that
// counts accessor constructions, and assertion helpers for verifying binding
// behavior.
//
// Example usage:
//
//	func TestCartTotal(t *testing.T) {
//		store := selectztest.NewMockStore(map[string]any{"total": 42})
//		rt := selectz.New(selectz.WithStore(selectz.DefaultStoreKey, store))
//		defer rt.Close()
//
//		derived := rt.BindReadOnly(cartTotal)
//		got, err := derived.Get(context.Background())
//		if err != nil {
//			t.Fatal(err)
//		}
//		if got != 42 {
//			t.Errorf("expected 42, got %v", got)
//		}
//		selectztest.AssertCommits(t, store, 0)
//	}
package testing

import (
	"context"
	"sync"
	"testing"

	"github.com/zoobzio/selectz"
)

// Commit records one Commit call received by a MockStore.
type Commit struct {
	Mutation selectz.Name
	Payload  []any
}

// MockStore is a configurable in-memory implementation of selectz.Store. It
// records every commit, optionally applies a per-mutation handler to its root
// state, and optionally fails commits with a fixed error.
type MockStore struct {
	root      map[string]any
	handlers  map[selectz.Name]func(root map[string]any, payload []any)
	commitErr error
	commits   []Commit
	mu        sync.RWMutex
}

// NewMockStore creates a mock store over the given root state. The store
// keeps the map by reference, so tests can assert on it directly.
func NewMockStore(root map[string]any) *MockStore {
	return &MockStore{
		root:     root,
		handlers: make(map[selectz.Name]func(root map[string]any, payload []any)),
	}
}

// WithMutation registers a handler applied to the root state when the named
// mutation is committed. Unnamed mutations are still recorded but change
// nothing.
func (s *MockStore) WithMutation(name selectz.Name, handler func(root map[string]any, payload []any)) *MockStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[name] = handler
	return s
}

// WithCommitError makes every subsequent Commit fail with err after being
// recorded.
func (s *MockStore) WithCommitError(err error) *MockStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitErr = err
	return s
}

// State implements selectz.Store.
func (s *MockStore) State() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.root
}

// Commit implements selectz.Store.
func (s *MockStore) Commit(mutation selectz.Name, payload []any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commits = append(s.commits, Commit{Mutation: mutation, Payload: payload})
	if s.commitErr != nil {
		return s.commitErr
	}
	if handler, ok := s.handlers[mutation]; ok {
		handler(s.root, payload)
	}
	return nil
}

// SetRoot replaces the root state.
func (s *MockStore) SetRoot(root map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.root = root
}

// Commits returns a copy of every recorded commit in order.
func (s *MockStore) Commits() []Commit {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Commit, len(s.commits))
	copy(out, s.commits)
	return out
}

// CommitCount returns how many commits the store has received.
func (s *MockStore) CommitCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.commits)
}

// MockHost wraps selectz.BasicHost and counts constructor calls, which makes
// binding memoization observable: a second bind of the same selector must not
// construct a new accessor.
type MockHost struct {
	mu       sync.RWMutex
	computed int
	writable int
}

// NewMockHost creates a counting host.
func NewMockHost() *MockHost {
	return &MockHost{}
}

// Computed implements selectz.Host.
func (h *MockHost) Computed(name selectz.Name, get func(context.Context) (any, error)) selectz.Derived {
	h.mu.Lock()
	h.computed++
	h.mu.Unlock()
	return selectz.BasicHost{}.Computed(name, get)
}

// WritableComputed implements selectz.Host.
func (h *MockHost) WritableComputed(name selectz.Name, get func(context.Context) (any, error), set func(context.Context, any) error) selectz.Derived {
	h.mu.Lock()
	h.writable++
	h.mu.Unlock()
	return selectz.BasicHost{}.WritableComputed(name, get, set)
}

// ComputedCalls returns how many read-only accessors were constructed.
func (h *MockHost) ComputedCalls() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.computed
}

// WritableCalls returns how many writable accessors were constructed.
func (h *MockHost) WritableCalls() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.writable
}

// AssertCommits fails the test unless the store received exactly expected
// commits.
func AssertCommits(t *testing.T, store *MockStore, expected int) {
	t.Helper()
	if got := store.CommitCount(); got != expected {
		t.Errorf("Expected %d commits, got %d", expected, got)
	}
}

// AssertLastCommit fails the test unless the store's most recent commit used
// the given mutation name.
func AssertLastCommit(t *testing.T, store *MockStore, mutation selectz.Name) {
	t.Helper()
	commits := store.Commits()
	if len(commits) == 0 {
		t.Error("Expected at least one commit")
		return
	}
	if got := commits[len(commits)-1].Mutation; got != mutation {
		t.Errorf("Expected last commit %q, got %q", mutation, got)
	}
}
