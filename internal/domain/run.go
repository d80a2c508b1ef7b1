package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Canonical metric keys. These names are a compatibility surface shared by
// every backtest engine, the CLI output, and the dashboard; renaming one is
// a breaking change.
const (
	MetricROI         = "roi"
	MetricCAGR        = "cagr"
	MetricSharpe      = "sharpe"
	MetricMaxDrawdown = "max_drawdown"
	MetricEndingValue = "ending_value"
	MetricTradeCount  = "trade_count"
)

// RunRequest describes one backtest run. Engines must treat it as
// read-only.
type RunRequest struct {
	StrategyName string            `json:"strategy_name" yaml:"strategy_name"`
	Symbols      []string          `json:"symbols" yaml:"symbols"`
	Start        time.Time         `json:"start" yaml:"start"`
	End          time.Time         `json:"end" yaml:"end"`
	InitialCash  decimal.Decimal   `json:"initial_cash" yaml:"initial_cash"`
	Parameters   map[string]string `json:"parameters,omitempty" yaml:"parameters"`

	// Seed drives any stochastic element of the simulation. Runs with the
	// same request and price stream are byte-identical.
	Seed int64 `json:"seed" yaml:"seed"`
}

// Validate rejects malformed requests before any engine work starts.
func (r *RunRequest) Validate() error {
	if r.StrategyName == "" {
		return fmt.Errorf("run request: empty strategy name")
	}
	if len(r.Symbols) == 0 {
		return fmt.Errorf("run request: no symbols")
	}
	if !r.Start.Before(r.End) {
		return fmt.Errorf("run request: start %s must be before end %s", r.Start.Format(time.DateOnly), r.End.Format(time.DateOnly))
	}
	if !r.InitialCash.IsPositive() {
		return fmt.Errorf("run request: initial cash must be positive, got %s", r.InitialCash)
	}
	return nil
}

// TradeRecord is one entry in the per-trade ledger of a run result.
type TradeRecord struct {
	Symbol     string          `json:"symbol"`
	Side       OrderSide       `json:"side"`
	Quantity   decimal.Decimal `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	Commission decimal.Decimal `json:"commission"`
	Timestamp  time.Time       `json:"timestamp"`
}

// RunResult is the canonical output of a backtest engine.
type RunResult struct {
	Engine        string             `json:"engine"`
	EngineVersion string             `json:"engine_version"`
	Metrics       map[string]float64 `json:"metrics"`
	Trades        []TradeRecord      `json:"trades"`
	Runtime       time.Duration      `json:"runtime"`
}
