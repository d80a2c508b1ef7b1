package backtest

import (
	"context"
	"testing"
	"time"

	"tradesim/internal/domain"
	"tradesim/internal/engine"
)

// runBoth executes the same request on both engines with matching friction
// models and returns the two results.
func runBoth(t *testing.T, ms *memStore, req domain.RunRequest, slippageBps int64, commission string) (*domain.RunResult, *domain.RunResult) {
	t.Helper()

	eventCfg := EventEngineConfig{
		Simulator: engine.SimulatorConfig{
			SlippageBps:        slippageBps,
			CommissionPerShare: dec(commission),
		},
	}
	vectorCfg := VectorEngineConfig{
		SlippageBps:        slippageBps,
		CommissionPerShare: dec(commission).InexactFloat64(),
	}

	a, err := NewEventEngine(ms, testStrategies(), eventCfg, nil, discardLogger()).Run(context.Background(), req)
	if err != nil {
		t.Fatalf("event run: %v", err)
	}
	b, err := NewVectorEngine(ms, testStrategies(), vectorCfg).Run(context.Background(), req)
	if err != nil {
		t.Fatalf("vector run: %v", err)
	}
	return a, b
}

func TestParityBuyAndHold(t *testing.T) {
	ms := storeWith(t, "SPY", []float64{100, 102, 101, 105, 107, 106, 110})
	req := runRequest("SPY", "100000")

	a, b := runBoth(t, ms, req, 5, "0.005")
	rep := Compare(a, b, DefaultTolerances())
	if !rep.Pass {
		t.Fatalf("parity failed:\n%s", rep)
	}
	for _, c := range rep.Checks {
		if c.Metric == domain.MetricTradeCount && c.Delta != 0 {
			t.Errorf("trade counts differ: %v vs %v", c.A, c.B)
		}
	}
}

func TestParitySMACross(t *testing.T) {
	ms := storeWith(t, "SPY", []float64{10, 9, 8, 12, 15, 14, 9, 7, 8, 11, 14})
	req := domain.RunRequest{
		StrategyName: "sma-cross",
		Symbols:      []string{"SPY"},
		Start:        time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		End:          time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		InitialCash:  dec("100000"),
		Parameters:   map[string]string{"short": "2", "long": "3"},
		Seed:         7,
	}

	a, b := runBoth(t, ms, req, 0, "0")
	if a.Metrics[domain.MetricTradeCount] == 0 {
		t.Fatal("expected the crossover series to produce trades")
	}
	rep := Compare(a, b, DefaultTolerances())
	if !rep.Pass {
		t.Fatalf("parity failed:\n%s", rep)
	}
}

func TestCompareReportsMismatch(t *testing.T) {
	a := &domain.RunResult{
		Engine: "event",
		Metrics: map[string]float64{
			domain.MetricROI:         5.0,
			domain.MetricCAGR:        12.0,
			domain.MetricMaxDrawdown: 3.0,
			domain.MetricSharpe:      1.1,
			domain.MetricTradeCount:  4,
		},
	}
	b := &domain.RunResult{
		Engine: "vector",
		Metrics: map[string]float64{
			domain.MetricROI:         6.5, // outside 0.1 point tolerance
			domain.MetricCAGR:        12.0,
			domain.MetricMaxDrawdown: 3.0,
			domain.MetricSharpe:      1.1,
			domain.MetricTradeCount:  4,
		},
	}

	rep := Compare(a, b, DefaultTolerances())
	if rep.Pass {
		t.Fatal("expected comparison to fail on roi")
	}
	var roi *Check
	for i := range rep.Checks {
		if rep.Checks[i].Metric == domain.MetricROI {
			roi = &rep.Checks[i]
		}
	}
	if roi == nil {
		t.Fatal("roi check missing from report")
	}
	if roi.Pass {
		t.Error("roi check passed despite 1.5 point delta")
	}
	if roi.Delta != 1.5 {
		t.Errorf("roi delta = %v, want 1.5", roi.Delta)
	}
}

func TestCompareTradeCountExact(t *testing.T) {
	metrics := func(trades float64) map[string]float64 {
		return map[string]float64{
			domain.MetricROI:         1.0,
			domain.MetricCAGR:        1.0,
			domain.MetricMaxDrawdown: 1.0,
			domain.MetricSharpe:      1.0,
			domain.MetricTradeCount:  trades,
		}
	}
	rep := Compare(
		&domain.RunResult{Engine: "event", Metrics: metrics(4)},
		&domain.RunResult{Engine: "vector", Metrics: metrics(5)},
		DefaultTolerances(),
	)
	if rep.Pass {
		t.Fatal("expected trade count mismatch to fail parity")
	}
}
