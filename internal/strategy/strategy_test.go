package strategy

import (
	"context"
	"testing"

	"tradesim/internal/domain"
)

// stubStrategy is a minimal Strategy implementation used in registry tests.
type stubStrategy struct {
	name string
}

func (s *stubStrategy) Name() string                                                   { return s.name }
func (s *stubStrategy) Init(_ context.Context) error                                   { return nil }
func (s *stubStrategy) OnBar(_ context.Context, _ domain.Bar) ([]domain.Signal, error) { return nil, nil }

func TestRegistryRegisterAndCreate(t *testing.T) {
	r := NewRegistry()
	r.Register("test-strategy", func(_ map[string]string) (Strategy, error) {
		return &stubStrategy{name: "test-strategy"}, nil
	})

	got, err := r.Create("test-strategy", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if got.Name() != "test-strategy" {
		t.Errorf("Create returned strategy with Name() = %q, want %q", got.Name(), "test-strategy")
	}

	// Each Create call returns a fresh instance.
	again, err := r.Create("test-strategy", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if got == again {
		t.Error("Create should return a fresh instance per call")
	}
}

func TestRegistryCreate_NotFound(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Create("nonexistent", nil); err == nil {
		t.Error("Create should error for an unregistered strategy")
	}
}

func TestRegistryList(t *testing.T) {
	r := NewRegistry()
	factory := func(_ map[string]string) (Strategy, error) { return &stubStrategy{}, nil }
	r.Register("beta", factory)
	r.Register("alpha", factory)

	names := r.List()
	if len(names) != 2 {
		t.Fatalf("List returned %d names, want 2", len(names))
	}
	// List returns sorted names.
	if names[0] != "alpha" || names[1] != "beta" {
		t.Errorf("List returned %v, want [alpha beta]", names)
	}
}
