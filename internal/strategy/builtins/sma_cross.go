package builtins

import (
	"context"
	"fmt"
	"strconv"

	"tradesim/internal/domain"
	"tradesim/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*SMACross)(nil)

// SMACross implements a simple moving average crossover strategy. It
// generates a full-weight buy signal when the short-period SMA crosses above
// the long-period SMA, and a flatten signal when it crosses below.
type SMACross struct {
	shortPeriod int
	longPeriod  int

	closes map[string][]float64
	long   map[string]bool // currently holding
}

// NewSMACross creates a new SMACross strategy with the specified short and
// long moving average periods.
func NewSMACross(short, long int) (*SMACross, error) {
	if short <= 0 || long <= 0 || short >= long {
		return nil, fmt.Errorf("sma-cross: need 0 < short < long, got short=%d long=%d", short, long)
	}
	return &SMACross{
		shortPeriod: short,
		longPeriod:  long,
		closes:      make(map[string][]float64),
		long:        make(map[string]bool),
	}, nil
}

// NewSMACrossFromParams builds an SMACross from run parameters "short" and
// "long" (defaults 20/50).
func NewSMACrossFromParams(params map[string]string) (strategy.Strategy, error) {
	short, err := intParam(params, "short", 20)
	if err != nil {
		return nil, err
	}
	long, err := intParam(params, "long", 50)
	if err != nil {
		return nil, err
	}
	return NewSMACross(short, long)
}

// Name returns "sma-cross".
func (s *SMACross) Name() string {
	return "sma-cross"
}

// Init is a no-op.
func (s *SMACross) Init(_ context.Context) error {
	return nil
}

// OnBar appends the close to the price history and emits a signal when the
// short SMA crosses the long SMA.
func (s *SMACross) OnBar(_ context.Context, bar domain.Bar) ([]domain.Signal, error) {
	closes := append(s.closes[bar.Symbol], bar.Close)
	s.closes[bar.Symbol] = closes
	if len(closes) < s.longPeriod {
		return nil, nil
	}

	shortSMA := mean(closes[len(closes)-s.shortPeriod:])
	longSMA := mean(closes[len(closes)-s.longPeriod:])

	holding := s.long[bar.Symbol]
	switch {
	case shortSMA > longSMA && !holding:
		s.long[bar.Symbol] = true
		return []domain.Signal{{
			Symbol:       bar.Symbol,
			Type:         domain.SignalTypeBuy,
			TargetWeight: 1.0,
			Timestamp:    bar.Timestamp,
		}}, nil
	case shortSMA < longSMA && holding:
		s.long[bar.Symbol] = false
		return []domain.Signal{{
			Symbol:       bar.Symbol,
			Type:         domain.SignalTypeSell,
			TargetWeight: 0,
			Timestamp:    bar.Timestamp,
		}}, nil
	}
	return nil, nil
}

func mean(xs []float64) float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func intParam(params map[string]string, key string, def int) (int, error) {
	v, ok := params[key]
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parameter %q: %w", key, err)
	}
	return n, nil
}
