package backtest

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"tradesim/internal/domain"
	"tradesim/internal/engine"
	"tradesim/internal/registry"
	"tradesim/internal/store"
	"tradesim/internal/strategy"
	"tradesim/internal/util"
)

// Compile-time interface check.
var _ Engine = (*EventEngine)(nil)

const eventEngineVersion = "1.0.0"

// EventEngineConfig configures the event-driven engine.
type EventEngineConfig struct {
	// Simulator is the execution friction model.
	Simulator engine.SimulatorConfig

	// Risk enables pre-trade risk checks when non-nil.
	Risk *domain.RiskConfig
}

// EventEngine is the event-driven backtest engine: it replays bars in
// timestamp order through an ExecutionSimulator, routing strategy signals
// through the full risk/validation/fill pipeline. It is the reference
// implementation of the engine contract.
type EventEngine struct {
	bars       store.BarStore
	strategies *strategy.Registry
	cfg        EventEngineConfig
	orders     *registry.OrderRegistry // optional audit trail, may be nil
	cal        *util.TradingCalendar
	log        *slog.Logger
}

// NewEventEngine creates an event-driven engine. orders may be nil to skip
// the audit trail.
func NewEventEngine(bars store.BarStore, strategies *strategy.Registry, cfg EventEngineConfig, orders *registry.OrderRegistry, log *slog.Logger) *EventEngine {
	return &EventEngine{
		bars:       bars,
		strategies: strategies,
		cfg:        cfg,
		orders:     orders,
		cal:        util.NewTradingCalendar(),
		log:        log,
	}
}

// Name returns "event".
func (e *EventEngine) Name() string {
	return "event"
}

// Run executes the request bar-by-bar through an execution simulator.
func (e *EventEngine) Run(ctx context.Context, req domain.RunRequest) (*domain.RunResult, error) {
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

	var risk *engine.RiskChecker
	if e.cfg.Risk != nil {
		risk = engine.NewRiskChecker(*e.cfg.Risk, req.InitialCash, e.log)
	}
	sim := engine.NewExecutionSimulator(e.cfg.Simulator, req.InitialCash, risk, e.log, req.Seed)

	commission := e.cfg.Simulator.CommissionPerShare.InexactFloat64()
	initial := req.InitialCash.InexactFloat64()

	var (
		curve  []equityPoint
		ledger []domain.TradeRecord
		prevTS time.Time
	)

	cursors := make([]int, len(series))
	for _, ts := range timeline(series) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if risk != nil && (prevTS.IsZero() || !e.cal.SameTradingDay(prevTS, ts)) {
			risk.ResetDailyTracking(sim.PortfolioValue())
		}
		prevTS = ts

		// Bars for this timestamp, in request symbol order for determinism.
		var bars []domain.Bar
		for i, s := range series {
			for cursors[i] < len(s.bars) && !s.bars[cursors[i]].Timestamp.After(ts) {
				if s.bars[cursors[i]].Timestamp.Equal(ts) {
					bars = append(bars, s.bars[cursors[i]])
				}
				cursors[i]++
			}
		}

		// Feed prices first so pending orders can fill on this bar.
		for _, bar := range bars {
			fills, err := sim.ProcessMarketData(bar.Symbol, decimal.NewFromFloat(bar.Close), ts)
			if err != nil {
				return nil, err
			}
			for _, f := range fills {
				order, _ := sim.Order(f.OrderID)
				ledger = append(ledger, fillRecord(order, f))
				if err := e.saveOrder(order); err != nil {
					return nil, err
				}
			}
		}

		// Then let the strategy react and submit resulting orders.
		for _, bar := range bars {
			sigs, err := st.OnBar(ctx, bar)
			if err != nil {
				return nil, fmt.Errorf("strategy %s on bar %s@%s: %w", req.StrategyName, bar.Symbol, ts, err)
			}
			for _, sig := range sigs {
				order, fills, err := e.actOnSignal(sim, sig, bar, ts, commission)
				if err != nil {
					return nil, err
				}
				if order != nil {
					for _, f := range fills {
						ledger = append(ledger, fillRecord(order, f))
					}
					if err := e.saveOrder(order); err != nil {
						return nil, err
					}
				}
			}
		}

		curve = append(curve, equityPoint{ts: ts, value: sim.PortfolioValue().InexactFloat64()})
	}

	return &domain.RunResult{
		Engine:        e.Name(),
		EngineVersion: eventEngineVersion,
		Metrics:       computeMetrics(initial, curve, len(ledger)),
		Trades:        ledger,
		Runtime:       time.Since(started),
	}, nil
}

// actOnSignal converts a target-weight signal into a market order sized
// against current equity, and submits it. A signal whose target matches the
// current position produces no order.
func (e *EventEngine) actOnSignal(sim *engine.ExecutionSimulator, sig domain.Signal, bar domain.Bar, ts time.Time, commission float64) (*domain.Order, []domain.OrderExecution, error) {
	equity := sim.PortfolioValue().InexactFloat64()
	desired := targetShares(equity, sig.TargetWeight, bar.Close, e.cfg.Simulator.SlippageBps, commission)
	current := sim.Position(sig.Symbol).InexactFloat64()
	delta := desired - current
	if delta == 0 {
		return nil, nil, nil
	}

	side := domain.OrderSideBuy
	if delta < 0 {
		side = domain.OrderSideSell
		delta = -delta
	}

	order, err := sim.NewOrder(sig.Symbol, side, domain.OrderTypeMarket, decimal.NewFromInt(int64(delta)), nil)
	if err != nil {
		return nil, nil, err
	}
	before := len(order.Executions)
	if _, err := sim.SubmitOrder(order, ts); err != nil {
		return nil, nil, err
	}
	return order, order.Executions[before:], nil
}

// saveOrder mirrors the order's current state into the audit registry, so
// the trail exists even when a run aborts later. No-op without a registry.
func (e *EventEngine) saveOrder(order *domain.Order) error {
	if e.orders == nil {
		return nil
	}
	if err := e.orders.SaveOrder(order); err != nil {
		return fmt.Errorf("saving order %s to registry: %w", order.ID, err)
	}
	return nil
}

// fillRecord converts an execution into a ledger entry.
func fillRecord(order *domain.Order, f domain.OrderExecution) domain.TradeRecord {
	return domain.TradeRecord{
		Symbol:     order.Symbol,
		Side:       order.Side,
		Quantity:   f.Quantity,
		Price:      f.Price,
		Commission: f.Commission,
		Timestamp:  f.Timestamp,
	}
}

// targetShares sizes a target-weight signal, accounting for slippage and
// commission so a full-weight order remains affordable after frictions.
// Both engines share this sizing so they trade identical quantities.
func targetShares(equity, weight, price float64, slippageBps int64, commissionPerShare float64) float64 {
	if weight <= 0 || equity <= 0 {
		return 0
	}
	eff := price*(1+float64(slippageBps)/10000) + commissionPerShare
	if eff <= 0 {
		return 0
	}
	return math.Floor(equity * weight / eff)
}
