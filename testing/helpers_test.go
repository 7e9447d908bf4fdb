package testing

import (
	"context"
	"errors"
	"testing"

	"github.com/zoobzio/selectz"
)

// Simple test to verify the testing infrastructure works end to end.
func TestSimpleInfrastructure(t *testing.T) {
	ctx := context.Background()

	store := NewMockStore(map[string]any{"a": 3, "b": 3}).
		WithMutation("SET_A", func(root map[string]any, payload []any) {
			root["a"] = payload[len(payload)-1]
		})
	host := NewMockHost()
	rt := selectz.New(
		selectz.WithStore(selectz.DefaultStoreKey, store),
		selectz.WithHost(host),
	)
	defer rt.Close()

	a := selectz.Select("a", func(v selectz.View) any { return v.Get("a") })
	b := selectz.Select("b", func(v selectz.View) any { return v.Get("b") })
	product := selectz.MustCompose("product", func(vals ...any) any {
		return vals[0].(int) * vals[1].(int)
	}, a, b)

	derived := rt.BindReadOnly(product)
	got, err := derived.Get(ctx)
	if err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}
	if got != 9 {
		t.Errorf("expected 9, got %v", got)
	}

	if rt.BindReadOnly(product) != derived {
		t.Error("expected the cached derived on rebind")
	}
	if host.ComputedCalls() != 1 {
		t.Errorf("expected 1 accessor construction, got %d", host.ComputedCalls())
	}

	writable, err := rt.BindWritable(a, "SET_A")
	if err != nil {
		t.Fatalf("bind writable failed: %v", err)
	}
	if err := writable.Set(ctx, 6); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	AssertCommits(t, store, 1)
	AssertLastCommit(t, store, "SET_A")

	got, err = derived.Get(ctx)
	if err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}
	if got != 18 {
		t.Errorf("expected committed write to be visible (6*3=18), got %v", got)
	}
}

func TestMockStore_CommitError(t *testing.T) {
	wantErr := errors.New("unknown mutation")
	store := NewMockStore(map[string]any{"a": 1}).WithCommitError(wantErr)
	rt := selectz.New(selectz.WithStore(selectz.DefaultStoreKey, store))
	defer rt.Close()

	a := selectz.Select("a", func(v selectz.View) any { return v.Get("a") })
	writable, err := rt.BindWritable(a, "BOGUS")
	if err != nil {
		t.Fatalf("bind writable failed: %v", err)
	}

	if err := writable.Set(context.Background(), 2); !errors.Is(err, wantErr) {
		t.Errorf("expected store error to propagate, got %v", err)
	}
	AssertCommits(t, store, 1)
}
