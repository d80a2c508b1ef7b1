// Package strategy defines the Strategy interface for trading strategies and
// provides a Registry of strategy factories. Each backtest run creates a
// fresh strategy instance so runs never share mutable state.
package strategy

import (
	"context"
	"fmt"
	"sort"

	"tradesim/internal/domain"
)

// Strategy is the interface that all trading strategies must implement.
// Implementations must be deterministic given the same bars and parameters.
type Strategy interface {
	// Name returns the unique identifier for this strategy.
	Name() string

	// Init performs any one-time setup required before the strategy begins
	// processing market data.
	Init(ctx context.Context) error

	// OnBar is called for each OHLCV bar in timestamp order. It returns zero
	// or more trading signals.
	OnBar(ctx context.Context, bar domain.Bar) ([]domain.Signal, error)
}

// Factory creates a fresh strategy instance from run parameters.
type Factory func(params map[string]string) (Strategy, error)

// Registry holds a named collection of strategy factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates an empty strategy Registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a strategy factory under the given name.
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// Create instantiates a fresh strategy by name with the given parameters.
func (r *Registry) Create(name string, params map[string]string) (Strategy, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q (registered: %v)", name, r.List())
	}
	return f(params)
}

// List returns a sorted slice of all registered strategy names.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
