package metrics

import (
	"sort"

	"nse-options-lab/internal/models"
)

// EarningsCalendar holds results dates per symbol.
type EarningsCalendar struct {
	bySymbol map[string][]models.Date
}

// NewEarningsCalendar indexes events by symbol, sorted and de-duplicated.
func NewEarningsCalendar(events []models.EarningsEvent) *EarningsCalendar {
	c := &EarningsCalendar{bySymbol: make(map[string][]models.Date)}
	for _, e := range events {
		if e.Symbol == "" || e.Date.IsZero() {
			continue
		}
		c.bySymbol[e.Symbol] = append(c.bySymbol[e.Symbol], e.Date)
	}
	for sym, dates := range c.bySymbol {
		sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
		uniq := dates[:0]
		for _, d := range dates {
			if len(uniq) == 0 || !uniq[len(uniq)-1].Equal(d) {
				uniq = append(uniq, d)
			}
		}
		c.bySymbol[sym] = uniq
	}
	return c
}

// Upcoming returns the first results date strictly after d.
func (c *EarningsCalendar) Upcoming(symbol string, d models.Date) *models.Date {
	if c == nil {
		return nil
	}
	dates := c.bySymbol[symbol]
	i := sort.Search(len(dates), func(i int) bool { return dates[i].After(d) })
	if i == len(dates) {
		return nil
	}
	return models.DatePtr(dates[i])
}

// Within reports whether symbol has results on any date in [from, to].
func (c *EarningsCalendar) Within(symbol string, from, to models.Date) bool {
	if c == nil {
		return false
	}
	dates := c.bySymbol[symbol]
	i := sort.Search(len(dates), func(i int) bool { return !dates[i].Before(from) })
	return i < len(dates) && !dates[i].After(to)
}
