package backtest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tradesim/internal/domain"
	"tradesim/internal/engine"
	"tradesim/internal/registry"
	"tradesim/internal/strategy"
	"tradesim/internal/strategy/builtins"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// memStore is an in-memory BarStore fixture.
type memStore struct {
	bars map[string][]domain.Bar
}

func newMemStore() *memStore {
	return &memStore{bars: make(map[string][]domain.Bar)}
}

func (m *memStore) WriteBars(_ context.Context, bars []domain.Bar) error {
	for _, b := range bars {
		m.bars[b.Symbol] = append(m.bars[b.Symbol], b)
	}
	return nil
}

func (m *memStore) ReadBars(_ context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	var out []domain.Bar
	for _, b := range m.bars[symbol] {
		if !b.Timestamp.Before(start) && !b.Timestamp.After(end) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (m *memStore) ListSymbols(context.Context) ([]string, error) {
	var out []string
	for sym := range m.bars {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out, nil
}

// dailyBars builds one bar per consecutive weekday starting 2024-03-04 (a
// Monday), with Close set from the given series.
func dailyBars(symbol string, closes []float64) []domain.Bar {
	ts := time.Date(2024, 3, 4, 21, 0, 0, 0, time.UTC)
	bars := make([]domain.Bar, 0, len(closes))
	for _, c := range closes {
		for ts.Weekday() == time.Saturday || ts.Weekday() == time.Sunday {
			ts = ts.AddDate(0, 0, 1)
		}
		bars = append(bars, domain.Bar{
			Symbol:    symbol,
			Timestamp: ts,
			Open:      c,
			High:      c,
			Low:       c,
			Close:     c,
			Volume:    1000,
		})
		ts = ts.AddDate(0, 0, 1)
	}
	return bars
}

func storeWith(t *testing.T, symbol string, closes []float64) *memStore {
	t.Helper()
	ms := newMemStore()
	if err := ms.WriteBars(context.Background(), dailyBars(symbol, closes)); err != nil {
		t.Fatalf("writing fixture bars: %v", err)
	}
	return ms
}

func testStrategies() *strategy.Registry {
	reg := strategy.NewRegistry()
	reg.Register("buyhold", func(map[string]string) (strategy.Strategy, error) {
		return builtins.NewBuyHold(), nil
	})
	reg.Register("sma-cross", builtins.NewSMACrossFromParams)
	return reg
}

func runRequest(symbol string, cash string) domain.RunRequest {
	return domain.RunRequest{
		StrategyName: "buyhold",
		Symbols:      []string{symbol},
		Start:        time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		End:          time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		InitialCash:  dec(cash),
		Seed:         42,
	}
}

func wantMetric(t *testing.T, res *domain.RunResult, key string, want, tol float64) {
	t.Helper()
	got, ok := res.Metrics[key]
	if !ok {
		t.Fatalf("metric %q missing from result", key)
	}
	if math.Abs(got-want) > tol {
		t.Errorf("metric %q = %v, want %v (tol %v)", key, got, want, tol)
	}
}

func TestEventEngineBuyAndHold(t *testing.T) {
	ms := storeWith(t, "AAPL", []float64{100, 101, 102, 103, 104})
	eng := NewEventEngine(ms, testStrategies(), EventEngineConfig{}, nil, discardLogger())

	res, err := eng.Run(context.Background(), runRequest("AAPL", "10000"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if res.Engine != "event" {
		t.Errorf("engine name = %q, want event", res.Engine)
	}
	// 100 shares at 100, held to 104.
	wantMetric(t, res, domain.MetricTradeCount, 1, 0)
	wantMetric(t, res, domain.MetricEndingValue, 10400, 1e-9)
	wantMetric(t, res, domain.MetricROI, 4.0, 1e-9)
	wantMetric(t, res, domain.MetricMaxDrawdown, 0, 1e-9)
	if len(res.Trades) != 1 {
		t.Fatalf("trades = %d, want 1", len(res.Trades))
	}
	tr := res.Trades[0]
	if tr.Side != domain.OrderSideBuy || !tr.Quantity.Equal(dec("100")) || !tr.Price.Equal(dec("100")) {
		t.Errorf("unexpected trade record: %+v", tr)
	}
}

func TestEventEngineAppliesFrictions(t *testing.T) {
	ms := storeWith(t, "AAPL", []float64{100, 101, 102, 103, 104})
	cfg := EventEngineConfig{
		Simulator: engine.SimulatorConfig{
			SlippageBps:        10,
			CommissionPerShare: dec("0.01"),
		},
	}
	eng := NewEventEngine(ms, testStrategies(), cfg, nil, discardLogger())

	res, err := eng.Run(context.Background(), runRequest("AAPL", "10000"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	// Sized at floor(10000 / (100*1.001 + 0.01)) = 99 shares, filled at
	// 100.10 plus 0.99 commission: cash 89.11, ending 89.11 + 99*104.
	wantMetric(t, res, domain.MetricTradeCount, 1, 0)
	wantMetric(t, res, domain.MetricEndingValue, 10385.11, 1e-6)
	if len(res.Trades) != 1 {
		t.Fatalf("trades = %d, want 1", len(res.Trades))
	}
	if !res.Trades[0].Price.Equal(dec("100.1")) {
		t.Errorf("fill price = %s, want 100.1", res.Trades[0].Price)
	}
	if !res.Trades[0].Commission.Equal(dec("0.99")) {
		t.Errorf("commission = %s, want 0.99", res.Trades[0].Commission)
	}
}

func TestEventEngineKillSwitchBlocksAllTrades(t *testing.T) {
	ms := storeWith(t, "AAPL", []float64{100, 101, 102})
	cfg := EventEngineConfig{
		Risk: &domain.RiskConfig{TradingEnabled: false},
	}
	eng := NewEventEngine(ms, testStrategies(), cfg, nil, discardLogger())

	res, err := eng.Run(context.Background(), runRequest("AAPL", "10000"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	wantMetric(t, res, domain.MetricTradeCount, 0, 0)
	wantMetric(t, res, domain.MetricROI, 0, 1e-9)
	wantMetric(t, res, domain.MetricEndingValue, 10000, 1e-9)
}

func TestEventEngineWritesAuditTrail(t *testing.T) {
	ms := storeWith(t, "AAPL", []float64{100, 101, 102})
	reg, err := registry.NewOrderRegistry(t.TempDir(), discardLogger())
	if err != nil {
		t.Fatalf("creating registry: %v", err)
	}
	eng := NewEventEngine(ms, testStrategies(), EventEngineConfig{}, reg, discardLogger())

	if _, err := eng.Run(context.Background(), runRequest("AAPL", "10000")); err != nil {
		t.Fatalf("run: %v", err)
	}

	orders, err := reg.ListOrders(registry.ListFilter{})
	if err != nil {
		t.Fatalf("listing orders: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("registry has %d orders, want 1", len(orders))
	}
	if orders[0].Status != domain.OrderStatusFilled {
		t.Errorf("order status = %q, want filled", orders[0].Status)
	}
	execs, err := reg.GetExecutions(orders[0].ID)
	if err != nil {
		t.Fatalf("getting executions: %v", err)
	}
	if len(execs) != 1 {
		t.Errorf("executions = %d, want 1", len(execs))
	}
}

// faultyStrategy buys on its first bar, then fails on the third, simulating
// a strategy error partway through a run.
type faultyStrategy struct {
	bars    int
	entered bool
}

func (s *faultyStrategy) Name() string { return "faulty" }

func (s *faultyStrategy) Init(context.Context) error { return nil }

func (s *faultyStrategy) OnBar(_ context.Context, bar domain.Bar) ([]domain.Signal, error) {
	s.bars++
	if s.bars >= 3 {
		return nil, errors.New("indicator window corrupted")
	}
	if s.entered {
		return nil, nil
	}
	s.entered = true
	return []domain.Signal{{
		Symbol:       bar.Symbol,
		Type:         domain.SignalTypeBuy,
		TargetWeight: 1.0,
		Timestamp:    bar.Timestamp,
	}}, nil
}

func TestEventEngineAuditTrailSurvivesAbortedRun(t *testing.T) {
	ms := storeWith(t, "AAPL", []float64{100, 101, 102, 103})
	reg, err := registry.NewOrderRegistry(t.TempDir(), discardLogger())
	if err != nil {
		t.Fatalf("creating registry: %v", err)
	}
	strategies := strategy.NewRegistry()
	strategies.Register("faulty", func(map[string]string) (strategy.Strategy, error) {
		return &faultyStrategy{}, nil
	})
	eng := NewEventEngine(ms, strategies, EventEngineConfig{}, reg, discardLogger())

	req := runRequest("AAPL", "10000")
	req.StrategyName = "faulty"
	if _, err := eng.Run(context.Background(), req); err == nil {
		t.Fatal("expected the run to abort on the strategy error")
	}

	// The order filled before the abort is already on disk.
	orders, err := reg.ListOrders(registry.ListFilter{})
	if err != nil {
		t.Fatalf("listing orders: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("registry has %d orders after aborted run, want 1", len(orders))
	}
	if orders[0].Status != domain.OrderStatusFilled {
		t.Errorf("order status = %q, want filled", orders[0].Status)
	}
}

func TestEventEngineDeterministic(t *testing.T) {
	ms := storeWith(t, "AAPL", []float64{100, 99, 103, 102, 106})
	cfg := EventEngineConfig{
		Simulator: engine.SimulatorConfig{SlippageBps: 5, CommissionPerShare: dec("0.005")},
	}
	eng := NewEventEngine(ms, testStrategies(), cfg, nil, discardLogger())

	a, err := eng.Run(context.Background(), runRequest("AAPL", "10000"))
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	b, err := eng.Run(context.Background(), runRequest("AAPL", "10000"))
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	for key, va := range a.Metrics {
		if vb := b.Metrics[key]; va != vb {
			t.Errorf("metric %q differs across runs: %v vs %v", key, va, vb)
		}
	}
	if len(a.Trades) != len(b.Trades) {
		t.Fatalf("trade counts differ: %d vs %d", len(a.Trades), len(b.Trades))
	}
	for i := range a.Trades {
		ta, tb := a.Trades[i], b.Trades[i]
		if !ta.Quantity.Equal(tb.Quantity) || !ta.Price.Equal(tb.Price) || !ta.Timestamp.Equal(tb.Timestamp) {
			t.Errorf("trade %d differs across runs: %+v vs %+v", i, ta, tb)
		}
	}
}

func TestEventEngineMissingData(t *testing.T) {
	eng := NewEventEngine(newMemStore(), testStrategies(), EventEngineConfig{}, nil, discardLogger())
	if _, err := eng.Run(context.Background(), runRequest("AAPL", "10000")); err == nil {
		t.Fatal("expected error for symbol with no bar data")
	}
}

func TestEventEngineContextCancelled(t *testing.T) {
	ms := storeWith(t, "AAPL", []float64{100, 101, 102})
	eng := NewEventEngine(ms, testStrategies(), EventEngineConfig{}, nil, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := eng.Run(ctx, runRequest("AAPL", "10000")); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func TestVectorEngineBuyAndHold(t *testing.T) {
	ms := storeWith(t, "AAPL", []float64{100, 101, 102, 103, 104})
	eng := NewVectorEngine(ms, testStrategies(), VectorEngineConfig{})

	res, err := eng.Run(context.Background(), runRequest("AAPL", "10000"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Engine != "vector" {
		t.Errorf("engine name = %q, want vector", res.Engine)
	}
	wantMetric(t, res, domain.MetricTradeCount, 1, 0)
	wantMetric(t, res, domain.MetricEndingValue, 10400, 1e-9)
	wantMetric(t, res, domain.MetricROI, 4.0, 1e-9)
}

func TestVectorEngineAppliesFrictions(t *testing.T) {
	ms := storeWith(t, "AAPL", []float64{100, 101, 102, 103, 104})
	cfg := VectorEngineConfig{SlippageBps: 10, CommissionPerShare: 0.01}
	eng := NewVectorEngine(ms, testStrategies(), cfg)

	res, err := eng.Run(context.Background(), runRequest("AAPL", "10000"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	wantMetric(t, res, domain.MetricTradeCount, 1, 0)
	wantMetric(t, res, domain.MetricEndingValue, 10385.11, 1e-6)
}
