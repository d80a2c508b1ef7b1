package backtest

import (
	"context"
	"testing"

	"tradesim/internal/domain"
)

func TestRunBatch(t *testing.T) {
	ms := storeWith(t, "AAPL", []float64{100, 101, 102, 103, 104})
	eng := NewEventEngine(ms, testStrategies(), EventEngineConfig{}, nil, discardLogger())

	reqs := []domain.RunRequest{
		runRequest("AAPL", "10000"),
		runRequest("AAPL", "20000"),
		runRequest("AAPL", "50000"),
	}
	results, err := RunBatch(context.Background(), eng, reqs, 2)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if len(results) != len(reqs) {
		t.Fatalf("results = %d, want %d", len(results), len(reqs))
	}
	// Results come back in request order.
	for i, want := range []float64{10400, 20800, 52000} {
		if got := results[i].Metrics[domain.MetricEndingValue]; got != want {
			t.Errorf("result %d ending_value = %v, want %v", i, got, want)
		}
	}
}

func TestRunBatchPropagatesError(t *testing.T) {
	eng := NewEventEngine(newMemStore(), testStrategies(), EventEngineConfig{}, nil, discardLogger())
	reqs := []domain.RunRequest{runRequest("MISSING", "10000")}
	if _, err := RunBatch(context.Background(), eng, reqs, 4); err == nil {
		t.Fatal("expected error for request over missing data")
	}
}
