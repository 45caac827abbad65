package backtest

import (
	"github.com/shopspring/decimal"

	"nse-options-lab/internal/models"
)

// Strangle identifies the two sold legs.
type Strangle struct {
	Expiry     models.Date
	CallStrike float64
	PutStrike  float64
}

// Ledger is the result of folding hedge events over a strangle's life.
type Ledger struct {
	Entries   []models.HedgeEntry
	Omissions []models.HedgeOmission
	Position  decimal.Decimal
}

// Omission reasons.
const (
	OmitNoSnapshot   = "no snapshot"
	OmitMissingDelta = "missing leg delta"
	OmitNoUnderlying = "no underlying price"
)

// FoldHedges rebalances the underlying position to flatten portfolio delta
// on each date. A trade happens only when the required quantity exceeds
// threshold in absolute value.
func FoldHedges(s *Series, leg Strangle, dates []models.Date, threshold decimal.Decimal) Ledger {
	l := Ledger{Position: decimal.Zero}
	for _, d := range dates {
		l = l.step(s, leg, d, threshold)
	}
	return l
}

func (l Ledger) step(s *Series, leg Strangle, d models.Date, threshold decimal.Decimal) Ledger {
	snap, ok := s.At(d)
	if !ok {
		return l.omit(d, OmitNoSnapshot)
	}
	if !(snap.UnderlyingPrice > 0) {
		return l.omit(d, OmitNoUnderlying)
	}
	call, okC := snap.Contract(leg.Expiry, leg.CallStrike, models.SideCall)
	put, okP := snap.Contract(leg.Expiry, leg.PutStrike, models.SidePut)
	if !okC || !okP || call.Delta == nil || put.Delta == nil {
		return l.omit(d, OmitMissingDelta)
	}

	// short both legs, so the strangle carries the negated long deltas
	strangle := decimal.NewFromFloat(*call.Delta).Add(decimal.NewFromFloat(*put.Delta)).Neg()
	required := strangle.Add(l.Position).Neg()
	if required.Abs().LessThanOrEqual(threshold) {
		return l
	}

	price := decimal.NewFromFloat(snap.UnderlyingPrice)
	l.Entries = append(append([]models.HedgeEntry(nil), l.Entries...), models.HedgeEntry{
		Date:     d,
		Quantity: required,
		Price:    price,
		CashFlow: required.Neg().Mul(price),
	})
	l.Position = l.Position.Add(required)
	return l
}

func (l Ledger) omit(d models.Date, reason string) Ledger {
	l.Omissions = append(append([]models.HedgeOmission(nil), l.Omissions...), models.HedgeOmission{Date: d, Reason: reason})
	return l
}

// Liquidate closes any open position at price on d.
func (l Ledger) Liquidate(d models.Date, price float64) Ledger {
	if l.Position.IsZero() {
		return l
	}
	px := decimal.NewFromFloat(price)
	l.Entries = append(append([]models.HedgeEntry(nil), l.Entries...), models.HedgeEntry{
		Date:        d,
		Quantity:    l.Position.Neg(),
		Price:       px,
		CashFlow:    l.Position.Mul(px),
		Liquidation: true,
	})
	l.Position = decimal.Zero
	return l
}

// PnL is the sum of all cash flows.
func (l Ledger) PnL() decimal.Decimal {
	total := decimal.Zero
	for _, e := range l.Entries {
		total = total.Add(e.CashFlow)
	}
	return total
}
