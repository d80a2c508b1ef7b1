package results

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tradesim/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleRun() (domain.RunRequest, *domain.RunResult) {
	req := domain.RunRequest{
		StrategyName: "buyhold",
		Symbols:      []string{"AAPL"},
		Start:        time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:          time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC),
		InitialCash:  decimal.NewFromInt(10000),
		Seed:         42,
	}
	res := &domain.RunResult{
		Engine:        "event",
		EngineVersion: "1.0.0",
		Metrics: map[string]float64{
			domain.MetricROI:        4.0,
			domain.MetricTradeCount: 1,
		},
	}
	return req, res
}

func TestSaveAndLoad(t *testing.T) {
	store, err := NewStore(t.TempDir(), discardLogger())
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}

	req, res := sampleRun()
	id, err := store.Save(req, res)
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	rec, err := store.Load(id)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if rec.ID != id {
		t.Errorf("record id = %q, want %q", rec.ID, id)
	}
	if rec.Request.StrategyName != "buyhold" {
		t.Errorf("strategy = %q, want buyhold", rec.Request.StrategyName)
	}
	if !rec.Request.InitialCash.Equal(decimal.NewFromInt(10000)) {
		t.Errorf("initial cash = %s, want 10000", rec.Request.InitialCash)
	}
	if got := rec.Result.Metrics[domain.MetricROI]; got != 4.0 {
		t.Errorf("roi = %v, want 4.0", got)
	}
}

func TestLoadUnknownRun(t *testing.T) {
	store, err := NewStore(t.TempDir(), discardLogger())
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	if _, err := store.Load("missing"); err == nil {
		t.Fatal("expected error loading unknown run")
	}
}

func TestIndexSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, discardLogger())
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	req, res := sampleRun()
	id, err := store.Save(req, res)
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	reopened, err := NewStore(dir, discardLogger())
	if err != nil {
		t.Fatalf("reopening store: %v", err)
	}
	ids := reopened.List()
	if len(ids) != 1 || ids[0] != id {
		t.Fatalf("reopened list = %v, want [%s]", ids, id)
	}
	if _, err := reopened.Load(id); err != nil {
		t.Errorf("load after reopen: %v", err)
	}
}
