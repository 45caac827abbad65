// Package store provides persistence for snapshots, backtest results and
// underlying bars.
package store

import (
	"context"
	"time"

	"nse-options-lab/internal/models"
)

// SnapshotStore persists daily market snapshots keyed by (symbol, date).
type SnapshotStore interface {
	SaveSnapshots(ctx context.Context, snaps []*models.MarketSnapshot) error
	GetSnapshots(ctx context.Context, symbol string, from, to models.Date) ([]*models.MarketSnapshot, error)
	GetSnapshot(ctx context.Context, symbol string, date models.Date) (*models.MarketSnapshot, error)
	ListSymbols(ctx context.Context) ([]string, error)
}

// ResultStore persists backtest results keyed by (symbol, year, month). The
// ledger is replaced together with its result.
type ResultStore interface {
	SaveResult(ctx context.Context, runID string, result *models.BacktestResult, ledger []models.HedgeEntry) error
	GetResults(ctx context.Context, filter ResultFilter) ([]StoredResult, error)
	GetLedger(ctx context.Context, key models.MonthKey) ([]models.HedgeEntry, error)
}

// MarketDataStore persists daily underlying bars.
type MarketDataStore interface {
	SaveBars(ctx context.Context, symbol string, bars []models.Candle) error
	GetBars(ctx context.Context, symbol string, from, to models.Date) ([]models.Candle, error)
}

// SyncTracker records when a data set was last refreshed.
type SyncTracker interface {
	GetLastSync(dataType string) time.Time
	SetLastSync(dataType string, t time.Time) error
}

// Store is what the CLI opens: snapshots and results behind one handle.
type Store interface {
	SnapshotStore
	ResultStore
	Close() error
}

// ResultFilter narrows GetResults. Zero fields match everything.
type ResultFilter struct {
	Symbol string
	Year   int
	Month  int
	RunID  string
	Limit  int
}

// StoredResult is a result with its persistence metadata.
type StoredResult struct {
	models.BacktestResult
	RunID     string    `json:"run_id"`
	UpdatedAt time.Time `json:"updated_at"`
}
