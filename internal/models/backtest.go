package models

import "github.com/shopspring/decimal"

// SkipReason explains why a symbol-month produced no trade.
type SkipReason string

const (
	SkipEarnings          SkipReason = "Earnings"
	SkipNoOptions         SkipReason = "No Options Found"
	SkipExitUnresolved    SkipReason = "Exit Data Unresolved"
	SkipNoTradingDays     SkipReason = "No Trading Days"
	SkipMissingEntryData  SkipReason = "Missing Entry Data"
	SkipMissingExitPrices SkipReason = "Missing Exit Price"
)

// PositionState is the lifecycle state of a monthly strangle.
type PositionState string

const (
	StateIdle    PositionState = "IDLE"
	StateEntered PositionState = "ENTERED"
	StateExited  PositionState = "EXITED"
	StateSkipped PositionState = "SKIPPED"
)

// Terminal reports whether no further transitions are allowed.
func (s PositionState) Terminal() bool {
	return s == StateExited || s == StateSkipped
}

// HedgeEntry is one trade in the underlying. Quantity is signed units bought
// (negative = sold) and CashFlow = -Quantity * Price.
type HedgeEntry struct {
	Date        Date            `json:"date"`
	Quantity    decimal.Decimal `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	CashFlow    decimal.Decimal `json:"cash_flow"`
	Liquidation bool            `json:"liquidation"`
}

// HedgeOmission records a hedge date that could not be processed.
type HedgeOmission struct {
	Date   Date   `json:"date"`
	Reason string `json:"reason"`
}

// BacktestResult is the persisted outcome of one symbol-month. Skipped
// months carry only the key, the entry date and the skip reason.
type BacktestResult struct {
	Symbol         string      `json:"symbol"`
	EntryDate      *Date       `json:"entry_date"`
	ExitDate       *Date       `json:"exit_date"`
	Year           int         `json:"year"`
	Month          int         `json:"month"`
	EntryCredit    *float64    `json:"entry_credit"`
	ExitCost       *float64    `json:"exit_cost"`
	PnLPoints      *float64    `json:"pnl_points"`
	HedgePnLPoints *float64    `json:"hedge_pnl_points"`
	SkippedReason  *SkipReason `json:"skipped_reason"`

	CallEntryStrike *float64 `json:"call_entry_strike"`
	PutEntryStrike  *float64 `json:"put_entry_strike"`
	CallEntryDelta  *float64 `json:"call_entry_delta"`
	PutEntryDelta   *float64 `json:"put_entry_delta"`
	CallEntryPrice  *float64 `json:"call_entry_price"`
	PutEntryPrice   *float64 `json:"put_entry_price"`
	CallExitPrice   *float64 `json:"call_exit_price"`
	PutExitPrice    *float64 `json:"put_exit_price"`
}

// Skipped reports whether the month ended without a trade.
func (r *BacktestResult) Skipped() bool {
	return r.SkippedReason != nil
}

// Key returns the (symbol, year, month) identity of the result.
func (r *BacktestResult) Key() MonthKey {
	return MonthKey{Symbol: r.Symbol, Year: r.Year, Month: r.Month}
}

// MonthKey identifies one symbol-month unit of work.
type MonthKey struct {
	Symbol string
	Year   int
	Month  int
}
