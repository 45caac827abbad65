package backtest

import (
	"sort"
	"time"

	"nse-options-lab/internal/models"
)

// Series is an immutable, date-ordered view over a symbol's snapshots. A
// trading day is any date with a snapshot.
type Series struct {
	snaps []*models.MarketSnapshot
	index map[models.Date]int
}

// NewSeries sorts snaps by date. When a date repeats, the first snapshot wins.
func NewSeries(snaps []*models.MarketSnapshot) *Series {
	sorted := make([]*models.MarketSnapshot, 0, len(snaps))
	for _, s := range snaps {
		if s != nil && !s.Date.IsZero() {
			sorted = append(sorted, s)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	s := &Series{index: make(map[models.Date]int, len(sorted))}
	for _, snap := range sorted {
		if _, dup := s.index[snap.Date]; dup {
			continue
		}
		s.index[snap.Date] = len(s.snaps)
		s.snaps = append(s.snaps, snap)
	}
	return s
}

// Len returns the number of trading days.
func (s *Series) Len() int { return len(s.snaps) }

// At returns the snapshot on d.
func (s *Series) At(d models.Date) (*models.MarketSnapshot, bool) {
	i, ok := s.index[d]
	if !ok {
		return nil, false
	}
	return s.snaps[i], true
}

// Has reports whether d is a trading day.
func (s *Series) Has(d models.Date) bool {
	_, ok := s.index[d]
	return ok
}

// Before returns the latest snapshot strictly before d.
func (s *Series) Before(d models.Date) (*models.MarketSnapshot, bool) {
	i := sort.Search(len(s.snaps), func(i int) bool { return !s.snaps[i].Date.Before(d) })
	if i == 0 {
		return nil, false
	}
	return s.snaps[i-1], true
}

// Dates returns every trading day in order.
func (s *Series) Dates() []models.Date {
	out := make([]models.Date, len(s.snaps))
	for i, snap := range s.snaps {
		out[i] = snap.Date
	}
	return out
}

// TradingDaysIn returns the trading days of year/month in order.
func (s *Series) TradingDaysIn(year int, month time.Month) []models.Date {
	from, to := models.MonthStart(year, month), models.MonthEnd(year, month)
	lo := sort.Search(len(s.snaps), func(i int) bool { return !s.snaps[i].Date.Before(from) })
	var out []models.Date
	for i := lo; i < len(s.snaps) && !s.snaps[i].Date.After(to); i++ {
		out = append(out, s.snaps[i].Date)
	}
	return out
}
