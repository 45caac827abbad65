// Package models defines the core data types shared across the application.
package models

import (
	"math"
	"sort"
)

// InstrumentType is the INSTRUMENT column of an NSE F&O bhavcopy.
type InstrumentType string

const (
	InstrumentFutIdx InstrumentType = "FUTIDX"
	InstrumentFutStk InstrumentType = "FUTSTK"
	InstrumentOptIdx InstrumentType = "OPTIDX"
	InstrumentOptStk InstrumentType = "OPTSTK"
)

// IsOption reports whether the instrument is an option contract.
func (i InstrumentType) IsOption() bool {
	return i == InstrumentOptIdx || i == InstrumentOptStk
}

// IsFuture reports whether the instrument is a futures contract.
func (i InstrumentType) IsFuture() bool {
	return i == InstrumentFutIdx || i == InstrumentFutStk
}

// Candle represents a daily OHLCV bar of an underlying.
type Candle struct {
	Date   Date
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// Valid reports whether every price of the bar is positive and finite.
func (c Candle) Valid() bool {
	for _, p := range []float64{c.Open, c.High, c.Low, c.Close} {
		if p <= 0 || math.IsNaN(p) || math.IsInf(p, 0) {
			return false
		}
	}
	return true
}

// InterestRate is a daily risk-free rate observation in percent.
type InterestRate struct {
	Date    Date
	Percent float64
}

// EarningsEvent is a scheduled results announcement.
type EarningsEvent struct {
	Symbol string
	Date   Date
}

// Universe is the tradable F&O symbol list split by underlying type.
type Universe struct {
	Indices []string
	Stocks  []string
}

// IsIndex reports whether symbol is an index underlying.
func (u Universe) IsIndex(symbol string) bool {
	for _, s := range u.Indices {
		if s == symbol {
			return true
		}
	}
	return false
}

// Symbols returns every symbol, sorted and de-duplicated.
func (u Universe) Symbols() []string {
	seen := make(map[string]bool, len(u.Indices)+len(u.Stocks))
	var out []string
	for _, s := range append(append([]string{}, u.Indices...), u.Stocks...) {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Float returns a pointer to v, or nil when v is NaN or infinite.
func Float(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Value dereferences p, returning 0 for nil.
func Value(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
