package store

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"nse-options-lab/internal/errors"
	"nse-options-lab/internal/models"
)

// SnapshotRow is the Postgres row of a market snapshot.
type SnapshotRow struct {
	Symbol    string         `gorm:"type:text;primaryKey"`
	Date      string         `gorm:"type:date;primaryKey"`
	Payload   datatypes.JSON `gorm:"type:jsonb;not null"`
	UpdatedAt time.Time      `gorm:"type:timestamptz;not null"`
}

func (SnapshotRow) TableName() string {
	return "snapshots"
}

// ResultRow is the Postgres row of a backtest result.
type ResultRow struct {
	Symbol        string         `gorm:"type:text;primaryKey"`
	Year          int            `gorm:"primaryKey"`
	Month         int            `gorm:"primaryKey"`
	RunID         string         `gorm:"type:uuid;index;not null"`
	SkippedReason *string        `gorm:"type:text"`
	PnLPoints     *float64       `gorm:"column:pnl_points"`
	Payload       datatypes.JSON `gorm:"type:jsonb;not null"`
	UpdatedAt     time.Time      `gorm:"type:timestamptz;not null"`
}

func (ResultRow) TableName() string {
	return "backtest_results"
}

// LedgerRow is one hedge trade.
type LedgerRow struct {
	Symbol      string          `gorm:"type:text;primaryKey"`
	Year        int             `gorm:"primaryKey"`
	Month       int             `gorm:"primaryKey"`
	Seq         int             `gorm:"primaryKey"`
	Date        string          `gorm:"type:date;not null"`
	Quantity    decimal.Decimal `gorm:"type:numeric;not null"`
	Price       decimal.Decimal `gorm:"type:numeric;not null"`
	CashFlow    decimal.Decimal `gorm:"type:numeric;not null"`
	Liquidation bool            `gorm:"not null;default:false"`
}

func (LedgerRow) TableName() string {
	return "hedge_ledger"
}

// PostgresStore implements Store on Postgres through gorm.
type PostgresStore struct {
	db *gorm.DB
}

// NewPostgresStore connects to dsn and migrates the schema.
func NewPostgresStore(dsn string, maxOpenConns int) (*PostgresStore, error) {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqldb, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get connection pool: %w", err)
	}
	if maxOpenConns > 0 {
		sqldb.SetMaxOpenConns(maxOpenConns)
		sqldb.SetMaxIdleConns(maxOpenConns / 2)
	}
	sqldb.SetConnMaxLifetime(time.Hour)

	return NewPostgresStoreFromDB(gdb)
}

// NewPostgresStoreFromDB wraps an open gorm handle and migrates the schema.
func NewPostgresStoreFromDB(gdb *gorm.DB) (*PostgresStore, error) {
	if err := gdb.AutoMigrate(&SnapshotRow{}, &ResultRow{}, &LedgerRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return &PostgresStore{db: gdb}, nil
}

// Close closes the underlying pool.
func (s *PostgresStore) Close() error {
	sqldb, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqldb.Close()
}

// --- snapshots ---------------------------------------------------------------

func (s *PostgresStore) SaveSnapshots(ctx context.Context, snaps []*models.MarketSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}

	now := time.Now().UTC()
	rows := make([]SnapshotRow, 0, len(snaps))
	for _, snap := range snaps {
		payload, err := json.Marshal(snap)
		if err != nil {
			return fmt.Errorf("failed to encode snapshot %s %s: %w", snap.Symbol, snap.Date, err)
		}
		rows = append(rows, SnapshotRow{
			Symbol:    snap.Symbol,
			Date:      snap.Date.ISO(),
			Payload:   datatypes.JSON(payload),
			UpdatedAt: now,
		})
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at"}),
	}).CreateInBatches(rows, 500).Error
	if err != nil {
		return errors.NewStoreError("save snapshots", snaps[0].Symbol, err)
	}
	return nil
}

func (s *PostgresStore) GetSnapshots(ctx context.Context, symbol string, from, to models.Date) ([]*models.MarketSnapshot, error) {
	var rows []SnapshotRow
	err := s.db.WithContext(ctx).
		Where("symbol = ? AND date >= ? AND date <= ?", symbol, from.ISO(), to.ISO()).
		Order("date ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}

	out := make([]*models.MarketSnapshot, 0, len(rows))
	for _, r := range rows {
		snap, err := r.decode()
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, nil
}

func (s *PostgresStore) GetSnapshot(ctx context.Context, symbol string, date models.Date) (*models.MarketSnapshot, error) {
	var row SnapshotRow
	err := s.db.WithContext(ctx).
		Where("symbol = ? AND date = ?", symbol, date.ISO()).
		First(&row).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.NewDataError("snapshot", symbol, "no snapshot on "+date.ISO(), errors.ErrDataNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return row.decode()
}

func (s *PostgresStore) ListSymbols(ctx context.Context) ([]string, error) {
	var symbols []string
	err := s.db.WithContext(ctx).Model(&SnapshotRow{}).
		Distinct("symbol").
		Order("symbol").
		Pluck("symbol", &symbols).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list symbols: %w", err)
	}
	return symbols, nil
}

func (r SnapshotRow) decode() (*models.MarketSnapshot, error) {
	date, err := models.ParseAnyDate(r.Date)
	if err != nil {
		return nil, errors.NewDataError("snapshot", r.Symbol, "bad date "+r.Date, err)
	}
	return decodeSnapshot(r.Symbol, date, r.Payload)
}

// --- results -----------------------------------------------------------------

func (s *PostgresStore) SaveResult(ctx context.Context, runID string, result *models.BacktestResult, ledger []models.HedgeEntry) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	key := result.Key()
	row := ResultRow{
		Symbol:    key.Symbol,
		Year:      key.Year,
		Month:     key.Month,
		RunID:     runID,
		PnLPoints: result.PnLPoints,
		Payload:   datatypes.JSON(payload),
		UpdatedAt: time.Now().UTC(),
	}
	if result.SkippedReason != nil {
		r := string(*result.SkippedReason)
		row.SkippedReason = &r
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "symbol"}, {Name: "year"}, {Name: "month"}},
			DoUpdates: clause.AssignmentColumns([]string{"run_id", "skipped_reason", "pnl_points", "payload", "updated_at"}),
		}).Create(&row).Error; err != nil {
			return err
		}

		if err := tx.Where("symbol = ? AND year = ? AND month = ?", key.Symbol, key.Year, key.Month).
			Delete(&LedgerRow{}).Error; err != nil {
			return err
		}

		if len(ledger) == 0 {
			return nil
		}
		rows := make([]LedgerRow, len(ledger))
		for i, e := range ledger {
			rows[i] = LedgerRow{
				Symbol:      key.Symbol,
				Year:        key.Year,
				Month:       key.Month,
				Seq:         i,
				Date:        e.Date.ISO(),
				Quantity:    e.Quantity,
				Price:       e.Price,
				CashFlow:    e.CashFlow,
				Liquidation: e.Liquidation,
			}
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return errors.NewStoreError("save result", monthKeyString(key), err)
	}
	return nil
}

func (s *PostgresStore) GetResults(ctx context.Context, filter ResultFilter) ([]StoredResult, error) {
	query := s.db.WithContext(ctx).Model(&ResultRow{})
	if filter.Symbol != "" {
		query = query.Where("symbol = ?", filter.Symbol)
	}
	if filter.Year != 0 {
		query = query.Where("year = ?", filter.Year)
	}
	if filter.Month != 0 {
		query = query.Where("month = ?", filter.Month)
	}
	if filter.RunID != "" {
		query = query.Where("run_id = ?", filter.RunID)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var rows []ResultRow
	if err := query.Order("symbol, year, month").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}

	out := make([]StoredResult, 0, len(rows))
	for _, r := range rows {
		sr := StoredResult{RunID: r.RunID, UpdatedAt: r.UpdatedAt}
		if err := json.Unmarshal(r.Payload, &sr.BacktestResult); err != nil {
			return nil, fmt.Errorf("failed to decode result: %w", err)
		}
		out = append(out, sr)
	}
	return out, nil
}

func (s *PostgresStore) GetLedger(ctx context.Context, key models.MonthKey) ([]models.HedgeEntry, error) {
	var rows []LedgerRow
	err := s.db.WithContext(ctx).
		Where("symbol = ? AND year = ? AND month = ?", key.Symbol, key.Year, key.Month).
		Order("seq ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger: %w", err)
	}

	out := make([]models.HedgeEntry, 0, len(rows))
	for _, r := range rows {
		d, err := models.ParseAnyDate(r.Date)
		if err != nil {
			return nil, errors.NewDataError("ledger", key.Symbol, "bad date "+r.Date, err)
		}
		out = append(out, models.HedgeEntry{
			Date:        d,
			Quantity:    r.Quantity,
			Price:       r.Price,
			CashFlow:    r.CashFlow,
			Liquidation: r.Liquidation,
		})
	}
	return out, nil
}
