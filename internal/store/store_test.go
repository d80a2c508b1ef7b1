package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"tradesim/internal/domain"
)

func sampleBars() []domain.Bar {
	return []domain.Bar{
		{
			Symbol:     "AAPL",
			Timestamp:  time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
			Open:       185.0,
			High:       186.5,
			Low:        184.0,
			Close:      185.5,
			Volume:     50000000,
			TradeCount: 500000,
			VWAP:       185.25,
		},
		{
			Symbol:     "AAPL",
			Timestamp:  time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
			Open:       185.5,
			High:       187.0,
			Low:        185.0,
			Close:      186.0,
			Volume:     45000000,
			TradeCount: 450000,
			VWAP:       185.75,
		},
	}
}

func TestParquetStorePath(t *testing.T) {
	ps := NewParquetStore("/data")

	ts := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	got := ps.barPath("aapl", ts)
	want := filepath.Join("/data", "daily", "AAPL", "2024.parquet")
	if got != want {
		t.Errorf("barPath mismatch:\n  got  %s\n  want %s", got, want)
	}
}

func TestParquetStoreWriteReadBars(t *testing.T) {
	dir := t.TempDir()
	ps := NewParquetStore(dir)
	ctx := context.Background()

	bars := sampleBars()
	if err := ps.WriteBars(ctx, bars); err != nil {
		t.Fatalf("WriteBars: %v", err)
	}

	// Writing again with overlapping data must not duplicate records.
	if err := ps.WriteBars(ctx, bars[:1]); err != nil {
		t.Fatalf("WriteBars merge: %v", err)
	}

	got, err := ps.ReadBars(ctx, "AAPL",
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ReadBars returned %d bars, want 2", len(got))
	}
	if got[0].Close != 185.5 || got[1].Close != 186.0 {
		t.Errorf("bars out of order or corrupted: %+v", got)
	}

	// Range filtering.
	got, err = ps.ReadBars(ctx, "AAPL",
		time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("range read returned %d bars, want 1", len(got))
	}

	symbols, err := ps.ListSymbols(ctx)
	if err != nil {
		t.Fatalf("ListSymbols: %v", err)
	}
	if len(symbols) != 1 || symbols[0] != "AAPL" {
		t.Errorf("symbols = %v, want [AAPL]", symbols)
	}
}

func TestSQLiteStoreWriteReadBars(t *testing.T) {
	dir := t.TempDir()
	ss, err := NewSQLiteStore(filepath.Join(dir, "bars.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer ss.Close()
	ctx := context.Background()

	if err := ss.WriteBars(ctx, sampleBars()); err != nil {
		t.Fatalf("WriteBars: %v", err)
	}
	// Upsert: rewriting the same bars must not duplicate.
	if err := ss.WriteBars(ctx, sampleBars()); err != nil {
		t.Fatalf("WriteBars upsert: %v", err)
	}

	got, err := ss.ReadBars(ctx, "AAPL",
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ReadBars returned %d bars, want 2", len(got))
	}
	if !got[0].Timestamp.Before(got[1].Timestamp) {
		t.Error("bars should be ordered by timestamp")
	}

	symbols, err := ss.ListSymbols(ctx)
	if err != nil {
		t.Fatalf("ListSymbols: %v", err)
	}
	if len(symbols) != 1 || symbols[0] != "AAPL" {
		t.Errorf("symbols = %v, want [AAPL]", symbols)
	}
}
