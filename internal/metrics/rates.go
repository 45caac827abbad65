package metrics

import (
	"sort"

	"nse-options-lab/internal/models"
)

// RateTable answers risk-free rate lookups by date. Rates are in percent.
type RateTable struct {
	dates []models.Date
	rates []float64
}

// NewRateTable builds a table from observations in any order. The first
// observation of a date wins.
func NewRateTable(obs []models.InterestRate) *RateTable {
	sorted := append([]models.InterestRate(nil), obs...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	t := &RateTable{}
	for _, o := range sorted {
		if n := len(t.dates); n > 0 && t.dates[n-1].Equal(o.Date) {
			continue
		}
		t.dates = append(t.dates, o.Date)
		t.rates = append(t.rates, o.Percent)
	}
	return t
}

// Len returns the number of distinct dates.
func (t *RateTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.dates)
}

// Lookup returns the rate on d, else the nearest earlier rate, else the
// nearest later rate, else 0.
func (t *RateTable) Lookup(d models.Date) float64 {
	if t.Len() == 0 {
		return 0
	}
	i := sort.Search(len(t.dates), func(i int) bool { return !t.dates[i].Before(d) })
	if i < len(t.dates) && t.dates[i].Equal(d) {
		return t.rates[i]
	}
	if i > 0 {
		return t.rates[i-1]
	}
	return t.rates[i]
}
