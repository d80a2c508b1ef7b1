package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"tradesim/internal/domain"
	"tradesim/internal/store"
	"tradesim/internal/strategy"
)

// Compile-time interface check.
var _ Engine = (*VectorEngine)(nil)

const vectorEngineVersion = "1.0.0"

// VectorEngineConfig is the friction model of the vectorized engine. It
// mirrors the simulator's market-order frictions; latency and partial fills
// do not apply because fills are immediate by construction.
type VectorEngineConfig struct {
	SlippageBps        int64   `yaml:"slippage_bps"`
	CommissionPerShare float64 `yaml:"commission_per_share"`
}

// VectorEngine is an alternative engine built on plain float64 arithmetic
// with immediate fills and no order pipeline. It exists as an independent
// implementation of the engine contract: comparing its results against the
// event engine's catches drift in either one.
type VectorEngine struct {
	bars       store.BarStore
	strategies *strategy.Registry
	cfg        VectorEngineConfig
}

// NewVectorEngine creates a vectorized engine.
func NewVectorEngine(bars store.BarStore, strategies *strategy.Registry, cfg VectorEngineConfig) *VectorEngine {
	return &VectorEngine{
		bars:       bars,
		strategies: strategies,
		cfg:        cfg,
	}
}

// Name returns "vector".
func (e *VectorEngine) Name() string {
	return "vector"
}

// Run executes the request with immediate float64 fills.
func (e *VectorEngine) Run(ctx context.Context, req domain.RunRequest) (*domain.RunResult, error) {
	started := time.Now()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	series, err := loadBars(ctx, e.bars, req)
	if err != nil {
		return nil, err
	}
	st, err := newStrategy(e.strategies, req)
	if err != nil {
		return nil, err
	}
	if err := st.Init(ctx); err != nil {
		return nil, fmt.Errorf("initializing strategy %s: %w", req.StrategyName, err)
	}

	var (
		cash      = req.InitialCash.InexactFloat64()
		initial   = cash
		positions = make(map[string]float64)
		prices    = make(map[string]float64)
		curve     []equityPoint
		ledger    []domain.TradeRecord
	)

	cursors := make([]int, len(series))
	for _, ts := range timeline(series) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var bars []domain.Bar
		for i, s := range series {
			for cursors[i] < len(s.bars) && !s.bars[cursors[i]].Timestamp.After(ts) {
				if s.bars[cursors[i]].Timestamp.Equal(ts) {
					bars = append(bars, s.bars[cursors[i]])
				}
				cursors[i]++
			}
		}
		for _, bar := range bars {
			prices[bar.Symbol] = bar.Close
		}

		for _, bar := range bars {
			sigs, err := st.OnBar(ctx, bar)
			if err != nil {
				return nil, fmt.Errorf("strategy %s on bar %s@%s: %w", req.StrategyName, bar.Symbol, ts, err)
			}
			for _, sig := range sigs {
				equity := cash + markToMarket(positions, prices)
				desired := targetShares(equity, sig.TargetWeight, bar.Close, e.cfg.SlippageBps, e.cfg.CommissionPerShare)
				delta := desired - positions[sig.Symbol]
				if delta == 0 {
					continue
				}

				side := domain.OrderSideBuy
				qty := delta
				if delta < 0 {
					side = domain.OrderSideSell
					qty = -delta
				}
				fillPrice := e.fillPrice(side, bar.Close)
				commission := qty * e.cfg.CommissionPerShare
				if side == domain.OrderSideBuy {
					cash -= qty*fillPrice + commission
					positions[sig.Symbol] += qty
				} else {
					cash += qty*fillPrice - commission
					positions[sig.Symbol] -= qty
				}
				if positions[sig.Symbol] == 0 {
					delete(positions, sig.Symbol)
				}

				ledger = append(ledger, domain.TradeRecord{
					Symbol:     sig.Symbol,
					Side:       side,
					Quantity:   decimal.NewFromFloat(qty),
					Price:      decimal.NewFromFloat(fillPrice),
					Commission: decimal.NewFromFloat(commission),
					Timestamp:  ts,
				})
			}
		}

		curve = append(curve, equityPoint{ts: ts, value: cash + markToMarket(positions, prices)})
	}

	return &domain.RunResult{
		Engine:        e.Name(),
		EngineVersion: vectorEngineVersion,
		Metrics:       computeMetrics(initial, curve, len(ledger)),
		Trades:        ledger,
		Runtime:       time.Since(started),
	}, nil
}

// fillPrice applies adverse slippage to a fill.
func (e *VectorEngine) fillPrice(side domain.OrderSide, price float64) float64 {
	slip := float64(e.cfg.SlippageBps) / 10000
	if side == domain.OrderSideBuy {
		return price * (1 + slip)
	}
	return price * (1 - slip)
}

// markToMarket values all positions at the last seen prices.
func markToMarket(positions, prices map[string]float64) float64 {
	total := 0.0
	for sym, qty := range positions {
		total += qty * prices[sym]
	}
	return total
}
