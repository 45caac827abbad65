// Package backtest replays a monthly short strangle with weekly delta hedging
// over stored market snapshots.
package backtest

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"nse-options-lab/internal/models"
)

// Config holds strategy parameters.
type Config struct {
	TargetDelta    float64
	DeltaTolerance float64
	HedgeThreshold decimal.Decimal
}

// DefaultConfig returns the 20-delta strangle with any-size hedging.
func DefaultConfig() Config {
	return Config{
		TargetDelta:    0.20,
		DeltaTolerance: 0.10,
		HedgeThreshold: decimal.Zero,
	}
}

// EarningsSource reports scheduled results in an inclusive date range.
type EarningsSource interface {
	Within(symbol string, from, to models.Date) bool
}

// Outcome is everything one symbol-month produces.
type Outcome struct {
	Result    models.BacktestResult
	Ledger    []models.HedgeEntry
	Omissions []models.HedgeOmission
	State     models.PositionState
}

// Engine runs one symbol-month at a time. It holds no mutable state and is
// safe for concurrent use.
type Engine struct {
	cfg      Config
	earnings EarningsSource
	logger   zerolog.Logger
}

// NewEngine creates an engine. When earnings is nil the upcoming earnings
// dates of the entry snapshot and the session before it are used instead.
func NewEngine(cfg Config, earnings EarningsSource, logger zerolog.Logger) *Engine {
	return &Engine{cfg: cfg, earnings: earnings, logger: logger}
}

// RunMonth simulates the strangle entered on the first trading day of
// year/month. A result is always returned.
func (e *Engine) RunMonth(symbol string, year int, month time.Month, index bool, s *Series) Outcome {
	out := Outcome{
		Result: models.BacktestResult{Symbol: symbol, Year: year, Month: int(month)},
		State:  models.StateIdle,
	}

	days := s.TradingDaysIn(year, month)
	if len(days) == 0 {
		return out.skip(models.SkipNoTradingDays)
	}

	entry := days[0]
	out.Result.EntryDate = models.DatePtr(entry)

	snap, _ := s.At(entry)
	if len(snap.OptionChain) == 0 || snap.Expiry30d == nil || !(snap.UnderlyingPrice > 0) {
		return out.skip(models.SkipMissingEntryData)
	}
	expiry := *snap.Expiry30d

	if e.hasEarnings(symbol, s, snap, entry, expiry) {
		return out.skip(models.SkipEarnings)
	}

	call, okC := SelectByDelta(snap.Contracts(expiry, models.SideCall), e.cfg.TargetDelta, e.cfg.DeltaTolerance)
	put, okP := SelectByDelta(snap.Contracts(expiry, models.SidePut), -e.cfg.TargetDelta, e.cfg.DeltaTolerance)
	if !okC || !okP {
		return out.skip(models.SkipNoOptions)
	}

	exit, ok := ExitDate(s, entry, expiry, index)
	if !ok {
		return out.skip(models.SkipExitUnresolved)
	}
	exitSnap, _ := s.At(exit)
	callExit, okC := exitSnap.Contract(expiry, call.Strike, models.SideCall)
	putExit, okP := exitSnap.Contract(expiry, put.Strike, models.SidePut)
	if !okC || !okP || !(exitSnap.UnderlyingPrice > 0) {
		return out.skip(models.SkipMissingExitPrices)
	}

	out.State = models.StateEntered
	e.logger.Debug().
		Str("symbol", symbol).
		Str("entry", entry.ISO()).
		Float64("call_strike", call.Strike).
		Float64("put_strike", put.Strike).
		Msg("Strangle entered")

	leg := Strangle{Expiry: expiry, CallStrike: call.Strike, PutStrike: put.Strike}
	ledger := FoldHedges(s, leg, HedgeDates(s, entry, exit), e.cfg.HedgeThreshold)
	ledger = ledger.Liquidate(exit, exitSnap.UnderlyingPrice)

	credit := decimal.NewFromFloat(call.Settle).Add(decimal.NewFromFloat(put.Settle))
	cost := decimal.NewFromFloat(callExit.Settle).Add(decimal.NewFromFloat(putExit.Settle))
	strangle := credit.Sub(cost)
	hedge := ledger.PnL()

	r := &out.Result
	r.ExitDate = models.DatePtr(exit)
	r.EntryCredit = decimalPtr(credit)
	r.ExitCost = decimalPtr(cost)
	r.HedgePnLPoints = decimalPtr(hedge)
	r.PnLPoints = decimalPtr(strangle.Add(hedge))
	r.CallEntryStrike = models.Float(call.Strike)
	r.PutEntryStrike = models.Float(put.Strike)
	r.CallEntryDelta = models.Float(*call.Delta)
	r.PutEntryDelta = models.Float(*put.Delta)
	r.CallEntryPrice = models.Float(call.Settle)
	r.PutEntryPrice = models.Float(put.Settle)
	r.CallExitPrice = models.Float(callExit.Settle)
	r.PutExitPrice = models.Float(putExit.Settle)

	out.Ledger = ledger.Entries
	out.Omissions = ledger.Omissions
	out.State = models.StateExited

	e.logger.Debug().
		Str("symbol", symbol).
		Str("entry", entry.ISO()).
		Str("exit", exit.ISO()).
		Int("hedges", len(ledger.Entries)).
		Int("omissions", len(ledger.Omissions)).
		Msg("Strangle closed")

	return out
}

func (e *Engine) hasEarnings(symbol string, s *Series, snap *models.MarketSnapshot, entry, expiry models.Date) bool {
	if e.earnings != nil {
		return e.earnings.Within(symbol, entry, expiry)
	}
	within := func(u *models.Date) bool {
		return u != nil && !u.Before(entry) && !u.After(expiry)
	}
	if within(snap.UpcomingEarningDate) {
		return true
	}
	// A snapshot's upcoming date is strictly after its own date, so results
	// on the entry day only show up on the session before it.
	prev, ok := s.Before(entry)
	return ok && within(prev.UpcomingEarningDate)
}

// skip discards everything but the key, entry date and reason.
func (o Outcome) skip(reason models.SkipReason) Outcome {
	r := reason
	return Outcome{
		Result: models.BacktestResult{
			Symbol:        o.Result.Symbol,
			Year:          o.Result.Year,
			Month:         o.Result.Month,
			EntryDate:     o.Result.EntryDate,
			SkippedReason: &r,
		},
		State: models.StateSkipped,
	}
}

func decimalPtr(d decimal.Decimal) *float64 {
	return models.Float(d.InexactFloat64())
}
