package selectz

import (
	"context"
	"testing"
)

func itemFactory() Factory {
	return NewFactory("item-by-key", func(args ...any) Selector {
		key := args[0].(string)
		return Select("item", func(v View) any {
			return v.GetPath("items", key)
		})
	})
}

func TestBindFromFactory_CacheHitOnEqualPrimitiveArgs(t *testing.T) {
	host := &countingHost{}
	rt := New(
		WithStore(DefaultStoreKey, newMemStore(map[string]any{
			"items": map[string]any{"x": 1, "y": 2},
		})),
		WithHost(host),
	)
	defer rt.Close()

	f := itemFactory()
	d1 := rt.BindFromFactory(f, Literal("x"))
	d2 := rt.BindFromFactory(f, Literal("x"))

	if d1 != d2 {
		t.Error("Expected equal primitive args to hit the cache")
	}
	if host.computedCalls() != 1 {
		t.Errorf("Expected 1 accessor construction, got %d", host.computedCalls())
	}

	got, err := d1.Get(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got != 1 {
		t.Errorf("Expected 1, got %v", got)
	}
}

func TestBindFromFactory_DistinctArgsGetDistinctDeriveds(t *testing.T) {
	rt := New(WithStore(DefaultStoreKey, newMemStore(map[string]any{
		"items": map[string]any{"x": 1, "y": 2},
	})))
	defer rt.Close()

	f := itemFactory()
	dx := rt.BindFromFactory(f, Literal("x"))
	dy := rt.BindFromFactory(f, Literal("y"))

	if dx == dy {
		t.Error("Expected different args to cache independently")
	}

	got, err := dy.Get(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got != 2 {
		t.Errorf("Expected 2, got %v", got)
	}
}

func TestBindFromFactory_OpaqueBypassesCache(t *testing.T) {
	host := &countingHost{}
	rt := New(
		WithStore(DefaultStoreKey, newMemStore(map[string]any{"n": 10})),
		WithHost(host),
	)
	defer rt.Close()

	f := NewFactory("above", func(args ...any) Selector {
		threshold := args[0].(func(int) bool)
		return Select("above", func(v View) any {
			return threshold(v.Get("n").(int))
		})
	})

	pred := func(n int) bool { return n > 5 }
	d1 := rt.BindFromFactory(f, Opaque(pred))
	d2 := rt.BindFromFactory(f, Opaque(pred))

	if d1 == d2 {
		t.Error("Expected opaque args to produce a fresh derived on every call")
	}
	if host.computedCalls() != 2 {
		t.Errorf("Expected 2 accessor constructions, got %d", host.computedCalls())
	}
	if got := rt.Metrics().Counter(FactoryCacheBypassTotal).Value(); got != 2 {
		t.Errorf("Expected 2 bypasses, got %v", got)
	}
	if got := rt.Metrics().Counter(FactoryCacheMissesTotal).Value(); got != 0 {
		t.Errorf("Expected the registry untouched, got %v misses", got)
	}

	got, err := d1.Get(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got != true {
		t.Errorf("Expected true, got %v", got)
	}
}

func TestBindFromFactory_OneOpaqueArgDisablesCachingForTheCall(t *testing.T) {
	rt := New(WithStore(DefaultStoreKey, newMemStore(map[string]any{
		"items": map[string]any{"x": 1},
	})))
	defer rt.Close()

	f := NewFactory("mixed", func(args ...any) Selector {
		key := args[0].(string)
		return Select("item", func(v View) any { return v.GetPath("items", key) })
	})

	d1 := rt.BindFromFactory(f, Literal("x"), Opaque([]int{1, 2}))
	d2 := rt.BindFromFactory(f, Literal("x"), Opaque([]int{1, 2}))

	if d1 == d2 {
		t.Error("Expected any opaque arg to disable caching for the whole call")
	}
}

func TestBindFromFactory_SignatureIsTypeTagged(t *testing.T) {
	rt := New(WithStore(DefaultStoreKey, newMemStore(map[string]any{})))
	defer rt.Close()

	f := NewFactory("echo", func(args ...any) Selector {
		arg := args[0]
		return Select("echo", func(_ View) any { return arg })
	})

	asString := rt.BindFromFactory(f, Literal("5"))
	asInt := rt.BindFromFactory(f, Literal(5))

	if asString == asInt {
		t.Fatal("Expected the string \"5\" and the int 5 to cache under different signatures")
	}

	got, err := asString.Get(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got != "5" {
		t.Errorf("Expected %q, got %v", "5", got)
	}
	got, err = asInt.Get(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got != 5 {
		t.Errorf("Expected 5, got %v", got)
	}
}

func TestBindFromFactory_ReferenceResolvedAtEvaluationTime(t *testing.T) {
	rt := New(WithStore(DefaultStoreKey, newMemStore(map[string]any{
		"items": map[string]any{"x": 1, "y": 2},
	})))
	defer rt.Close()

	cursor := NewRef("x")
	d := rt.BindFromFactory(itemFactory(), Reference(cursor))

	got, err := d.Get(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got != 1 {
		t.Errorf("Expected 1, got %v", got)
	}

	// The same cached binding must observe the reference's new value.
	cursor.Store("y")
	got, err = d.Get(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got != 2 {
		t.Errorf("Expected re-resolved reference to yield 2, got %v", got)
	}
}

func TestBindFromFactory_ReferenceCacheIdentityFixedAtBindTime(t *testing.T) {
	host := &countingHost{}
	rt := New(
		WithStore(DefaultStoreKey, newMemStore(map[string]any{
			"items": map[string]any{"x": 1, "y": 2},
		})),
		WithHost(host),
	)
	defer rt.Close()

	f := itemFactory()
	cursor := NewRef("x")
	d1 := rt.BindFromFactory(f, Reference(cursor))

	// Binding again after the ref moved computes a new signature, so a new
	// cache entry appears alongside the old one.
	cursor.Store("y")
	d2 := rt.BindFromFactory(f, Reference(cursor))

	if d1 == d2 {
		t.Error("Expected a different signature after the reference moved")
	}
	if host.computedCalls() != 2 {
		t.Errorf("Expected 2 accessor constructions, got %d", host.computedCalls())
	}
}

func TestBindFromFactory_LiteralAndReferenceSignaturesDiffer(t *testing.T) {
	rt := New(WithStore(DefaultStoreKey, newMemStore(map[string]any{
		"items": map[string]any{"x": 1},
	})))
	defer rt.Close()

	f := itemFactory()
	lit := rt.BindFromFactory(f, Literal("x"))
	ref := rt.BindFromFactory(f, Reference(NewRef("x")))

	if lit == ref {
		t.Error("Expected literal and reference args to sign differently")
	}
}

func TestBindFromFactory_InvalidFactory(t *testing.T) {
	rt := New(WithStore(DefaultStoreKey, newMemStore(map[string]any{})))
	defer rt.Close()

	var zero Factory
	d := rt.BindFromFactory(zero, Literal(1))

	if _, err := d.Get(context.Background()); err == nil {
		t.Fatal("Expected error from zero-value factory")
	}
}

func TestSignature_OrderPreserving(t *testing.T) {
	ab := signature([]Arg{Literal("a"), Literal("b")})
	ba := signature([]Arg{Literal("b"), Literal("a")})
	if ab == ba {
		t.Error("Expected signatures to preserve argument order")
	}
}
