package transport

import (
	"testing"

	"github.com/goliatone/go-posture/core"
)

func TestRegistry_RegisterAndGet(t *testing.T) {
	registry := NewRegistry()
	adapter := NewRESTAdapter(nil)

	if err := registry.Register(adapter); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.Register(adapter); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}

	got, ok := registry.Get(" REST ")
	if !ok {
		t.Fatalf("expected kind lookup to be normalized")
	}
	if got.Kind() != KindREST {
		t.Fatalf("unexpected adapter %q", got.Kind())
	}
}

func TestRegistry_BuildFromFactory(t *testing.T) {
	registry := NewRegistry()
	if err := registry.RegisterFactory("custom", func(config map[string]any) (core.Transport, error) {
		return NewUnsupportedAdapter("custom", "not wired in tests"), nil
	}); err != nil {
		t.Fatalf("register factory: %v", err)
	}

	adapter, err := registry.Build("custom", nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if adapter.Kind() != "custom" {
		t.Fatalf("unexpected adapter kind %q", adapter.Kind())
	}

	if _, err := registry.Build("unknown", nil); err == nil {
		t.Fatalf("expected unknown kind to fail")
	}
}

func TestNewDefaultRegistry(t *testing.T) {
	registry := NewDefaultRegistry()
	adapter, ok := registry.Get(KindREST)
	if !ok {
		t.Fatalf("expected rest adapter to be registered")
	}
	if _, isThrottled := adapter.(*ThrottleAwareAdapter); !isThrottled {
		t.Fatalf("expected the default rest adapter to be throttle aware, got %T", adapter)
	}
	if len(registry.List()) != 1 {
		t.Fatalf("expected a single default adapter, got %d", len(registry.List()))
	}
}
