// Package metrics builds the daily per-symbol market snapshot: option chain
// with implied vols and deltas, 30/60/90 day tenor metrics, IV percentile and
// rank, realized volatility and the next earnings date.
package metrics

import (
	"context"
	"sort"

	"github.com/rs/zerolog"

	"nse-options-lab/internal/analysis/rank"
	"nse-options-lab/internal/analysis/volatility"
	"nse-options-lab/internal/models"
	"nse-options-lab/internal/pricing"
)

// Config holds aggregator settings.
type Config struct {
	Solver           pricing.SolverConfig
	DividendYield    float64
	PercentileWindow int
	RVWindow         int
	RVMaxLookback    int
	TradingDays      float64
}

// DefaultConfig returns the default aggregator settings.
func DefaultConfig() Config {
	return Config{
		Solver:           pricing.DefaultSolverConfig(),
		PercentileWindow: rank.DefaultWindow,
		RVWindow:         30,
		RVMaxLookback:    90,
		TradingDays:      volatility.TradingDaysPerYear,
	}
}

// Aggregator turns daily quotes into market snapshots.
type Aggregator struct {
	cfg      Config
	rates    *RateTable
	earnings *EarningsCalendar
	chain    *ChainBuilder
	logger   zerolog.Logger
}

// NewAggregator creates an aggregator. rates and earnings may be nil.
func NewAggregator(cfg Config, rates *RateTable, earnings *EarningsCalendar, logger zerolog.Logger) *Aggregator {
	return &Aggregator{
		cfg:      cfg,
		rates:    rates,
		earnings: earnings,
		chain:    NewChainBuilder(cfg.Solver, cfg.DividendYield),
		logger:   logger,
	}
}

// BuildSymbol produces one snapshot per day, in ascending date order. bars
// are the symbol's underlying OHLC history used for realized vol.
func (a *Aggregator) BuildSymbol(ctx context.Context, symbol string, days []models.DayData, bars []models.Candle) ([]*models.MarketSnapshot, error) {
	sorted := append([]models.DayData(nil), days...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	tracker := rank.NewTracker(a.cfg.PercentileWindow)
	out := make([]*models.MarketSnapshot, 0, len(sorted))
	for _, day := range sorted {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		snap := a.buildDay(symbol, day)
		a.publishRanks(tracker, snap)
		out = append(out, snap)
	}

	if err := a.attachRV(out, bars); err != nil {
		return nil, err
	}

	a.logger.Debug().
		Str("symbol", symbol).
		Int("days", len(out)).
		Msg("Built snapshots")

	return out, nil
}

func (a *Aggregator) buildDay(symbol string, day models.DayData) *models.MarketSnapshot {
	rate := a.rates.Lookup(day.Date)
	snap := &models.MarketSnapshot{
		Symbol:              symbol,
		Date:                day.Date,
		UnderlyingPrice:     day.Underlying,
		InterestRate:        rate,
		UpcomingEarningDate: a.earnings.Upcoming(symbol, day.Date),
		OptionChain:         a.chain.Build(day, rate),
	}

	expiries := MonthlyExpiries(day.Quotes, len(models.Tenors))
	for i, e := range expiries {
		e := e
		switch models.Tenors[i] {
		case models.Tenor30:
			snap.Expiry30d = &e
		case models.Tenor60:
			snap.Expiry60d = &e
		case models.Tenor90:
			snap.Expiry90d = &e
		}
	}
	if len(expiries) < len(models.Tenors) {
		return snap
	}

	strike, ok := SelectStrike(day.Quotes, expiries, day.Underlying)
	if !ok {
		return snap
	}
	snap.StrikePrice = models.Float(strike)

	volume := make(map[models.Side]int64, 2)
	for _, q := range day.Quotes {
		volume[q.Side] += q.Contracts
	}

	for _, side := range []models.Side{models.SideCall, models.SidePut} {
		m := &models.SideMetrics{Volume: volume[side]}
		for i, t := range models.Tenors {
			if c, ok := snap.Contract(expiries[i], strike, side); ok {
				m.SetIV(t, c.IV)
			}
		}

		c30, _ := snap.Contract(expiries[0], strike, side)
		m.LastPrice30d = c30.Settle
		m.Open, m.High, m.Low, m.Close = c30.Open, c30.High, c30.Low, c30.Close
		m.Greeks = a.greeks(day, expiries[0], strike, side, rate, m.IV30)

		if side == models.SideCall {
			snap.CE = m
		} else {
			snap.PE = m
		}
	}

	return snap
}

// greeks evaluates the 30 day contract at its implied vol. Nil when the vol
// is unknown or the contract expires today.
func (a *Aggregator) greeks(day models.DayData, expiry models.Date, strike float64, side models.Side, rate float64, iv *float64) *models.OptionGreeks {
	if iv == nil {
		return nil
	}
	t := pricing.YearFraction(day.Date, expiry)
	if t == 0 {
		return nil
	}
	g, err := pricing.Greeks(pricing.Params{
		Spot:     day.Underlying,
		Strike:   strike,
		Expiry:   t,
		Rate:     rate / 100,
		Dividend: a.cfg.DividendYield,
		Vol:      *iv / 100,
		Side:     side,
	})
	if err != nil {
		return nil
	}
	return &g
}

func (a *Aggregator) publishRanks(tracker *rank.Tracker, snap *models.MarketSnapshot) {
	for _, side := range []models.Side{models.SideCall, models.SidePut} {
		m := snap.Side(side)
		if m == nil {
			continue
		}
		for _, t := range models.Tenors {
			iv := m.IV(t)
			if iv == nil {
				continue
			}
			r, err := tracker.Observe(rank.Key{Symbol: snap.Symbol, Tenor: t, Side: side}, *iv)
			if err != nil {
				continue
			}
			if t == models.Tenor30 {
				m.Percentile = models.Float(r.Percentile)
				m.Rank = models.Float(r.Rank)
			}
		}
	}
}

func (a *Aggregator) attachRV(snaps []*models.MarketSnapshot, bars []models.Candle) error {
	if len(snaps) == 0 || len(bars) == 0 {
		return nil
	}
	series, err := volatility.NewRollingYZ(a.cfg.RVWindow, a.cfg.RVMaxLookback, a.cfg.TradingDays).Calculate(bars)
	if err != nil {
		return err
	}

	sorted := append([]models.Candle(nil), bars...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })
	byDate := make(map[models.Date]*float64, len(sorted))
	for i, b := range sorted {
		byDate[b.Date] = series[i]
	}

	values := make([]*float64, len(snaps))
	for i, s := range snaps {
		values[i] = byDate[s.Date]
	}
	for i, v := range volatility.Interpolate(values) {
		snaps[i].RVYZ = v
	}
	return nil
}
