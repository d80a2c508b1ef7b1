package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"tradesim/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ BarStore = (*SQLiteStore)(nil)

// SQLiteStore implements BarStore backed by a SQLite database. It is useful
// for small fixture datasets and ad-hoc queries; bulk historical data lives
// in the ParquetStore.
type SQLiteStore struct {
	db *sql.DB
}

const barsSchema = `
CREATE TABLE IF NOT EXISTS bars (
	symbol      TEXT    NOT NULL,
	timestamp   INTEGER NOT NULL, -- Unix ms
	open        REAL    NOT NULL,
	high        REAL    NOT NULL,
	low         REAL    NOT NULL,
	close       REAL    NOT NULL,
	volume      INTEGER NOT NULL,
	trade_count INTEGER NOT NULL,
	vwap        REAL    NOT NULL,
	PRIMARY KEY (symbol, timestamp)
);
`

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns
// a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(barsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bars table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// WriteBars upserts a batch of bars in one transaction.
func (s *SQLiteStore) WriteBars(ctx context.Context, bars []domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO bars
			(symbol, timestamp, open, high, low, close, volume, trade_count, vwap)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx,
			b.Symbol, b.Timestamp.UnixMilli(), b.Open, b.High, b.Low, b.Close,
			b.Volume, b.TradeCount, b.VWAP); err != nil {
			return fmt.Errorf("inserting bar %s@%s: %w", b.Symbol, b.Timestamp, err)
		}
	}
	return tx.Commit()
}

// ReadBars returns bars for the symbol within [start, end], ordered by
// timestamp.
func (s *SQLiteStore) ReadBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, timestamp, open, high, low, close, volume, trade_count, vwap
		FROM bars
		WHERE symbol = ? AND timestamp BETWEEN ? AND ?
		ORDER BY timestamp`,
		symbol, start.UnixMilli(), end.UnixMilli())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bars []domain.Bar
	for rows.Next() {
		var b domain.Bar
		var ts int64
		if err := rows.Scan(&b.Symbol, &ts, &b.Open, &b.High, &b.Low, &b.Close,
			&b.Volume, &b.TradeCount, &b.VWAP); err != nil {
			return nil, err
		}
		b.Timestamp = time.UnixMilli(ts).UTC()
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// ListSymbols returns all distinct symbols with bar data, sorted.
func (s *SQLiteStore) ListSymbols(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT symbol FROM bars ORDER BY symbol`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, err
		}
		symbols = append(symbols, sym)
	}
	return symbols, rows.Err()
}
