// Package backtest defines the engine contract for backtest runs, two
// independent engine implementations, and the parity harness that compares
// their results.
package backtest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"tradesim/internal/domain"
	"tradesim/internal/store"
	"tradesim/internal/strategy"
)

// Engine runs one backtest. Implementations must not mutate the request and
// must be deterministic: the same request against the same bar data yields
// the same result (runtime metadata aside).
type Engine interface {
	// Name returns the stable engine identifier reported in results.
	Name() string

	// Run executes the backtest described by the request.
	Run(ctx context.Context, req domain.RunRequest) (*domain.RunResult, error)
}

// symbolBars is one symbol's bar series plus a cursor, used when merging
// multiple series into a single chronological stream.
type symbolBars struct {
	symbol string
	bars   []domain.Bar
}

// loadBars reads bar data for every requested symbol. A symbol with no bars
// in the window is an error: the request cannot be satisfied.
func loadBars(ctx context.Context, bs store.BarStore, req domain.RunRequest) ([]symbolBars, error) {
	out := make([]symbolBars, 0, len(req.Symbols))
	for _, sym := range req.Symbols {
		bars, err := bs.ReadBars(ctx, sym, req.Start, req.End)
		if err != nil {
			return nil, fmt.Errorf("loading bars for %s: %w", sym, err)
		}
		if len(bars) == 0 {
			return nil, fmt.Errorf("no bar data for %s in [%s, %s]",
				sym, req.Start.Format(time.DateOnly), req.End.Format(time.DateOnly))
		}
		out = append(out, symbolBars{symbol: sym, bars: bars})
	}
	return out, nil
}

// timeline returns the sorted union of all bar timestamps.
func timeline(series []symbolBars) []time.Time {
	seen := make(map[int64]time.Time)
	for _, s := range series {
		for _, b := range s.bars {
			seen[b.Timestamp.UnixMilli()] = b.Timestamp
		}
	}
	out := make([]time.Time, 0, len(seen))
	for _, ts := range seen {
		out = append(out, ts)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// newStrategy instantiates the request's strategy from the registry.
func newStrategy(reg *strategy.Registry, req domain.RunRequest) (strategy.Strategy, error) {
	st, err := reg.Create(req.StrategyName, req.Parameters)
	if err != nil {
		return nil, err
	}
	return st, nil
}
