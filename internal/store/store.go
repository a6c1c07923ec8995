// Package store defines storage interfaces for instruments, OHLCV bars and
// backtest results, and implements them on a relational database.
package store

import (
	"context"

	"tickerlab/internal/domain"
)

// BarStore persists and retrieves OHLCV bar data.
type BarStore interface {
	// ReadBars returns the stored bars matching the query's ticker and
	// timeframe with bar_date in [start, end], ordered by date then time.
	ReadBars(ctx context.Context, q domain.Query) ([]domain.Bar, error)

	// ExistingKeys returns every stored key for the ticker and timeframe.
	ExistingKeys(ctx context.Context, ticker string, tf domain.Timeframe) (map[domain.BarKey]struct{}, error)

	// InsertBars writes the batch in one transaction. Rows whose key already
	// exists are skipped and reported through a *domain.DuplicateDataError
	// alongside the count of rows actually inserted.
	InsertBars(ctx context.Context, bars []domain.Bar) (int, error)
}

// InstrumentStore persists instrument metadata.
type InstrumentStore interface {
	// EnsureInstrument creates the instrument if it is absent. An existing
	// row is left untouched.
	EnsureInstrument(ctx context.Context, inst domain.Instrument) error

	// GetInstrument returns the instrument or domain.ErrNotFound.
	GetInstrument(ctx context.Context, ticker string) (*domain.Instrument, error)

	// ListInstruments returns all instruments ordered by ticker.
	ListInstruments(ctx context.Context) ([]domain.Instrument, error)

	// DeleteInstrument removes the instrument together with its bars and
	// backtest runs.
	DeleteInstrument(ctx context.Context, ticker string) error
}

// BacktestStore persists backtest runs and their trade ledgers.
type BacktestStore interface {
	// SaveBacktest writes the run summary and every trade detail in a single
	// transaction and returns the assigned run id.
	SaveBacktest(ctx context.Context, run *domain.BacktestRun, trades []domain.TradeDetail) (int64, error)

	// GetBacktest returns a run and its trades ordered by trade number.
	GetBacktest(ctx context.Context, runID int64) (*domain.BacktestRun, []domain.TradeDetail, error)

	// ListBacktests returns run summaries, newest first. An empty ticker
	// lists every instrument.
	ListBacktests(ctx context.Context, ticker string, limit int) ([]domain.BacktestRun, error)
}

// Store is the full relational store.
type Store interface {
	BarStore
	InstrumentStore
	BacktestStore
	Close() error
}
