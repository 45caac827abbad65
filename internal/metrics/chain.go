package metrics

import (
	"math"
	"sort"

	"nse-options-lab/internal/models"
	"nse-options-lab/internal/pricing"
)

// MonthlyExpiries returns the last expiry of each calendar month present in
// quotes, ascending, limited to the first n.
func MonthlyExpiries(quotes []models.OptionQuote, n int) []models.Date {
	type ym struct {
		year  int
		month int
	}
	latest := make(map[ym]models.Date)
	for _, q := range quotes {
		if q.Expiry.IsZero() {
			continue
		}
		k := ym{q.Expiry.Year(), int(q.Expiry.Month())}
		if cur, ok := latest[k]; !ok || q.Expiry.After(cur) {
			latest[k] = q.Expiry
		}
	}

	out := make([]models.Date, 0, len(latest))
	for _, d := range latest {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// SelectStrike returns the strike nearest to spot among strikes quoted with
// both CE and PE in every one of expiries. Equal distances prefer the lower
// strike.
func SelectStrike(quotes []models.OptionQuote, expiries []models.Date, spot float64) (float64, bool) {
	if len(expiries) == 0 {
		return 0, false
	}

	type key struct {
		expiry models.Date
		strike float64
	}
	sides := make(map[key]uint8)
	for _, q := range quotes {
		bit := uint8(1)
		if q.Side == models.SidePut {
			bit = 2
		}
		sides[key{q.Expiry, q.Strike}] |= bit
	}

	var candidates []float64
	for k, mask := range sides {
		if mask != 3 || !k.expiry.Equal(expiries[0]) {
			continue
		}
		common := true
		for _, e := range expiries[1:] {
			if sides[key{e, k.strike}] != 3 {
				common = false
				break
			}
		}
		if common {
			candidates = append(candidates, k.strike)
		}
	}
	if len(candidates) == 0 {
		return 0, false
	}

	sort.Float64s(candidates)
	best := candidates[0]
	for _, s := range candidates[1:] {
		if math.Abs(s-spot) < math.Abs(best-spot) {
			best = s
		}
	}
	return best, true
}

// ChainBuilder turns raw quotes into chain contracts with implied vol and
// delta.
type ChainBuilder struct {
	solver   pricing.SolverConfig
	dividend float64
}

// NewChainBuilder creates a builder with the given solver settings.
func NewChainBuilder(solver pricing.SolverConfig, dividend float64) *ChainBuilder {
	return &ChainBuilder{solver: solver, dividend: dividend}
}

// Build prices every quote of the day. Contracts whose vol cannot be solved
// keep nil IV and delta. Output is ordered by expiry, strike, then CE before PE.
func (b *ChainBuilder) Build(day models.DayData, rate float64) []models.ChainContract {
	quotes := append([]models.OptionQuote(nil), day.Quotes...)
	sort.SliceStable(quotes, func(i, j int) bool {
		a, c := quotes[i], quotes[j]
		if !a.Expiry.Equal(c.Expiry) {
			return a.Expiry.Before(c.Expiry)
		}
		if a.Strike != c.Strike {
			return a.Strike < c.Strike
		}
		return a.Side < c.Side
	})

	chain := make([]models.ChainContract, 0, len(quotes))
	for _, q := range quotes {
		c := models.ChainContract{
			Expiry: q.Expiry,
			Strike: q.Strike,
			Type:   q.Side,
			Settle: q.Settle,
			Open:   q.Open,
			High:   q.High,
			Low:    q.Low,
			Close:  q.Close,
			Volume: q.Contracts,
		}

		p := b.params(day, q, rate)
		if iv, err := pricing.ImpliedVol(q.Settle, p, b.solver); err == nil {
			p.Vol = iv
			if g, err := pricing.Greeks(p); err == nil {
				c.IV = models.Float(iv * 100)
				c.Delta = models.Float(g.Delta)
			}
		}
		chain = append(chain, c)
	}
	return chain
}

func (b *ChainBuilder) params(day models.DayData, q models.OptionQuote, rate float64) pricing.Params {
	return pricing.Params{
		Spot:     day.Underlying,
		Strike:   q.Strike,
		Expiry:   pricing.YearFraction(day.Date, q.Expiry),
		Rate:     rate / 100,
		Dividend: b.dividend,
		Side:     q.Side,
	}
}
