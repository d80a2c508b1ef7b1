// Package store defines storage for the historical bar data that feeds
// backtest runs, with Parquet and SQLite backed implementations.
package store

import (
	"context"
	"time"

	"tradesim/internal/domain"
)

// BarStore persists and retrieves OHLCV bar data.
type BarStore interface {
	// WriteBars persists a batch of bars to storage.
	WriteBars(ctx context.Context, bars []domain.Bar) error

	// ReadBars returns bars for the given symbol within [start, end],
	// sorted by timestamp.
	ReadBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error)

	// ListSymbols returns all distinct symbols available, sorted.
	ListSymbols(ctx context.Context) ([]string, error)
}
