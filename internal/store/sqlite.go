package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"nse-options-lab/internal/errors"
	"nse-options-lab/internal/models"
)

// SQLiteStore implements Store and MarketDataStore using SQLite.
type SQLiteStore struct {
	db        *sql.DB
	mu        sync.RWMutex
	syncTimes map[string]time.Time
}

// NewSQLiteStore opens (and creates when missing) the database at dbPath.
func NewSQLiteStore(dbPath string, maxOpenConns int) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if maxOpenConns <= 0 {
		maxOpenConns = 10
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxOpenConns / 2)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{
		db:        db,
		syncTimes: make(map[string]time.Time),
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- One row per symbol and trading day; payload is the external JSON record
	CREATE TABLE IF NOT EXISTS snapshots (
		symbol TEXT NOT NULL,
		date TEXT NOT NULL,
		payload TEXT NOT NULL,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (symbol, date)
	);

	CREATE TABLE IF NOT EXISTS backtest_results (
		symbol TEXT NOT NULL,
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		run_id TEXT NOT NULL,
		skipped_reason TEXT,
		pnl_points REAL,
		payload TEXT NOT NULL,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (symbol, year, month)
	);
	CREATE INDEX IF NOT EXISTS idx_results_run ON backtest_results(run_id);

	CREATE TABLE IF NOT EXISTS hedge_ledger (
		symbol TEXT NOT NULL,
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		seq INTEGER NOT NULL,
		date TEXT NOT NULL,
		quantity TEXT NOT NULL,
		price TEXT NOT NULL,
		cash_flow TEXT NOT NULL,
		liquidation INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (symbol, year, month, seq)
	);

	CREATE TABLE IF NOT EXISTS underlying_bars (
		symbol TEXT NOT NULL,
		date TEXT NOT NULL,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		volume INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (symbol, date)
	);

	CREATE TABLE IF NOT EXISTS sync_status (
		data_type TEXT PRIMARY KEY,
		last_sync DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ============================================================================
// Snapshot Methods
// ============================================================================

// SaveSnapshots upserts snapshots in one transaction.
func (s *SQLiteStore) SaveSnapshots(ctx context.Context, snaps []*models.MarketSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO snapshots (symbol, date, payload, updated_at)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, snap := range snaps {
		payload, err := json.Marshal(snap)
		if err != nil {
			return fmt.Errorf("failed to encode snapshot %s %s: %w", snap.Symbol, snap.Date, err)
		}
		if _, err := stmt.ExecContext(ctx, snap.Symbol, snap.Date, string(payload), now); err != nil {
			return errors.NewStoreError("save snapshot", snap.Symbol+"/"+snap.Date.ISO(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetSnapshots returns the symbol's snapshots in [from, to], oldest first.
func (s *SQLiteStore) GetSnapshots(ctx context.Context, symbol string, from, to models.Date) ([]*models.MarketSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, payload FROM snapshots
		WHERE symbol = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`, symbol, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var out []*models.MarketSnapshot
	for rows.Next() {
		var date models.Date
		var payload string
		if err := rows.Scan(&date, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snap, err := decodeSnapshot(symbol, date, []byte(payload))
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}

	return out, nil
}

// GetSnapshot returns one snapshot or ErrDataNotFound.
func (s *SQLiteStore) GetSnapshot(ctx context.Context, symbol string, date models.Date) (*models.MarketSnapshot, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `
		SELECT payload FROM snapshots WHERE symbol = ? AND date = ?
	`, symbol, date).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, errors.NewDataError("snapshot", symbol, "no snapshot on "+date.ISO(), errors.ErrDataNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return decodeSnapshot(symbol, date, []byte(payload))
}

// ListSymbols returns every symbol with at least one snapshot.
func (s *SQLiteStore) ListSymbols(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT symbol FROM snapshots ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("failed to list symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, sym)
	}
	return symbols, rows.Err()
}

func decodeSnapshot(symbol string, date models.Date, payload []byte) (*models.MarketSnapshot, error) {
	var snap models.MarketSnapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, errors.NewDataError("snapshot", symbol, "corrupt payload for "+date.ISO(), err)
	}
	snap.Symbol = symbol
	snap.Date = date
	return &snap, nil
}

// ============================================================================
// Backtest Result Methods
// ============================================================================

// SaveResult upserts the result and replaces its ledger atomically.
func (s *SQLiteStore) SaveResult(ctx context.Context, runID string, result *models.BacktestResult, ledger []models.HedgeEntry) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var reason *string
	if result.SkippedReason != nil {
		r := string(*result.SkippedReason)
		reason = &r
	}

	key := result.Key()
	if _, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO backtest_results
			(symbol, year, month, run_id, skipped_reason, pnl_points, payload, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, key.Symbol, key.Year, key.Month, runID, reason, result.PnLPoints, string(payload), time.Now().UTC()); err != nil {
		return errors.NewStoreError("save result", monthKeyString(key), err)
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM hedge_ledger WHERE symbol = ? AND year = ? AND month = ?
	`, key.Symbol, key.Year, key.Month); err != nil {
		return errors.NewStoreError("clear ledger", monthKeyString(key), err)
	}

	if len(ledger) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO hedge_ledger
				(symbol, year, month, seq, date, quantity, price, cash_flow, liquidation)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for i, e := range ledger {
			if _, err := stmt.ExecContext(ctx, key.Symbol, key.Year, key.Month, i,
				e.Date, e.Quantity.String(), e.Price.String(), e.CashFlow.String(), e.Liquidation); err != nil {
				return errors.NewStoreError("save ledger", monthKeyString(key), err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetResults retrieves results ordered by symbol, year and month.
func (s *SQLiteStore) GetResults(ctx context.Context, filter ResultFilter) ([]StoredResult, error) {
	query := `SELECT run_id, payload, updated_at FROM backtest_results WHERE 1=1`
	var args []interface{}

	if filter.Symbol != "" {
		query += " AND symbol = ?"
		args = append(args, filter.Symbol)
	}
	if filter.Year != 0 {
		query += " AND year = ?"
		args = append(args, filter.Year)
	}
	if filter.Month != 0 {
		query += " AND month = ?"
		args = append(args, filter.Month)
	}
	if filter.RunID != "" {
		query += " AND run_id = ?"
		args = append(args, filter.RunID)
	}

	query += " ORDER BY symbol, year, month"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	var out []StoredResult
	for rows.Next() {
		var sr StoredResult
		var payload string
		if err := rows.Scan(&sr.RunID, &payload, &sr.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &sr.BacktestResult); err != nil {
			return nil, fmt.Errorf("failed to decode result: %w", err)
		}
		out = append(out, sr)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating results: %w", err)
	}

	return out, nil
}

// GetLedger returns the hedge ledger of one symbol-month in trade order.
func (s *SQLiteStore) GetLedger(ctx context.Context, key models.MonthKey) ([]models.HedgeEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, quantity, price, cash_flow, liquidation
		FROM hedge_ledger
		WHERE symbol = ? AND year = ? AND month = ?
		ORDER BY seq ASC
	`, key.Symbol, key.Year, key.Month)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger: %w", err)
	}
	defer rows.Close()

	var out []models.HedgeEntry
	for rows.Next() {
		var e models.HedgeEntry
		if err := rows.Scan(&e.Date, &e.Quantity, &e.Price, &e.CashFlow, &e.Liquidation); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		out = append(out, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger: %w", err)
	}

	return out, nil
}

func monthKeyString(k models.MonthKey) string {
	return fmt.Sprintf("%s/%04d-%02d", k.Symbol, k.Year, k.Month)
}

// ============================================================================
// Underlying Bar Methods
// ============================================================================

// SaveBars upserts daily bars for symbol.
func (s *SQLiteStore) SaveBars(ctx context.Context, symbol string, bars []models.Candle) error {
	if len(bars) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO underlying_bars (symbol, date, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx, symbol, b.Date, b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			return fmt.Errorf("failed to insert bar: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetBars returns bars in [from, to], oldest first. A zero bound is open.
func (s *SQLiteStore) GetBars(ctx context.Context, symbol string, from, to models.Date) ([]models.Candle, error) {
	query := `SELECT date, open, high, low, close, volume FROM underlying_bars WHERE symbol = ?`
	args := []interface{}{symbol}
	if !from.IsZero() {
		query += " AND date >= ?"
		args = append(args, from)
	}
	if !to.IsZero() {
		query += " AND date <= ?"
		args = append(args, to)
	}
	query += " ORDER BY date ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bars: %w", err)
	}
	defer rows.Close()

	var bars []models.Candle
	for rows.Next() {
		var b models.Candle
		if err := rows.Scan(&b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan bar: %w", err)
		}
		bars = append(bars, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bars: %w", err)
	}

	return bars, nil
}

// ============================================================================
// Sync Status Methods
// ============================================================================

// GetLastSync returns the last sync time for a data type.
func (s *SQLiteStore) GetLastSync(dataType string) time.Time {
	s.mu.RLock()
	if t, ok := s.syncTimes[dataType]; ok {
		s.mu.RUnlock()
		return t
	}
	s.mu.RUnlock()

	var lastSync time.Time
	err := s.db.QueryRow(`
		SELECT last_sync FROM sync_status WHERE data_type = ?
	`, dataType).Scan(&lastSync)
	if err != nil {
		return time.Time{}
	}

	s.mu.Lock()
	s.syncTimes[dataType] = lastSync
	s.mu.Unlock()

	return lastSync
}

// SetLastSync sets the last sync time for a data type.
func (s *SQLiteStore) SetLastSync(dataType string, t time.Time) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO sync_status (data_type, last_sync, updated_at)
		VALUES (?, ?, ?)
	`, strings.TrimSpace(dataType), t, time.Now())
	if err != nil {
		return fmt.Errorf("failed to set last sync: %w", err)
	}

	s.mu.Lock()
	s.syncTimes[dataType] = t
	s.mu.Unlock()

	return nil
}
