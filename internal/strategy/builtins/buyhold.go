// Package builtins provides built-in strategy implementations that ship with
// the tradesim platform.
package builtins

import (
	"context"

	"tradesim/internal/domain"
	"tradesim/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*BuyHold)(nil)

// BuyHold goes fully invested on the first bar of each symbol and holds for
// the rest of the run. It is the golden scenario used for engine parity
// regression.
type BuyHold struct {
	entered map[string]bool
}

// NewBuyHold creates a buy-and-hold strategy.
func NewBuyHold() *BuyHold {
	return &BuyHold{entered: make(map[string]bool)}
}

// Name returns "buyhold".
func (s *BuyHold) Name() string {
	return "buyhold"
}

// Init is a no-op.
func (s *BuyHold) Init(_ context.Context) error {
	return nil
}

// OnBar emits a single full-weight buy signal on the first bar per symbol.
func (s *BuyHold) OnBar(_ context.Context, bar domain.Bar) ([]domain.Signal, error) {
	if s.entered[bar.Symbol] {
		return nil, nil
	}
	s.entered[bar.Symbol] = true
	return []domain.Signal{{
		Symbol:       bar.Symbol,
		Type:         domain.SignalTypeBuy,
		TargetWeight: 1.0,
		Timestamp:    bar.Timestamp,
	}}, nil
}
