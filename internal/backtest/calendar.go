package backtest

import (
	"time"

	"nse-options-lab/internal/models"
	"nse-options-lab/pkg/utils"
)

// ExitWeekday is Tuesday for index underlyings and Wednesday for stocks.
func ExitWeekday(index bool) time.Weekday {
	if index {
		return time.Tuesday
	}
	return time.Wednesday
}

// ExitDate returns the latest exit weekday strictly before expiry. When that
// day did not trade, it walks back to the nearest earlier trading day that is
// still strictly after entry.
func ExitDate(s *Series, entry, expiry models.Date, index bool) (models.Date, bool) {
	for d := utils.LastWeekdayBefore(expiry, ExitWeekday(index)); d.After(entry); d = d.AddDays(-1) {
		if s.Has(d) {
			return d, true
		}
	}
	return models.Date{}, false
}

// HedgeDates returns the last trading day of each ISO week in the series
// that falls in (entry, exit].
func HedgeDates(s *Series, entry, exit models.Date) []models.Date {
	dates := s.Dates()
	var out []models.Date
	for i, d := range dates {
		if i+1 < len(dates) && sameISOWeek(d, dates[i+1]) {
			continue
		}
		if d.After(entry) && !d.After(exit) {
			out = append(out, d)
		}
	}
	return out
}

func sameISOWeek(a, b models.Date) bool {
	ay, aw := a.ISOWeek()
	by, bw := b.ISOWeek()
	return ay == by && aw == bw
}
