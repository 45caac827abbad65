package models

// Side is the option type as written in NSE files.
type Side string

const (
	SideCall Side = "CE"
	SidePut  Side = "PE"
)

// IsCall reports whether the side is a call.
func (s Side) IsCall() bool { return s == SideCall }

// Valid reports whether s is CE or PE.
func (s Side) Valid() bool { return s == SideCall || s == SidePut }

// Tenor is a target days-to-expiry bucket.
type Tenor int

const (
	Tenor30 Tenor = 30
	Tenor60 Tenor = 60
	Tenor90 Tenor = 90
)

// Tenors lists the tenors in ascending order.
var Tenors = []Tenor{Tenor30, Tenor60, Tenor90}

// OptionGreeks represents option Greeks.
type OptionGreeks struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
	Rho   float64 `json:"rho"`
}

// ChainContract is one option contract of a day's chain. Delta is the
// standard long-position delta; IV is in percent.
type ChainContract struct {
	Expiry Date     `json:"expiry"`
	Strike float64  `json:"strike"`
	Type   Side     `json:"type"`
	Settle float64  `json:"settle"`
	Open   float64  `json:"open"`
	High   float64  `json:"high"`
	Low    float64  `json:"low"`
	Close  float64  `json:"close"`
	Volume int64    `json:"volume"`
	IV     *float64 `json:"iv"`
	Delta  *float64 `json:"delta"`
}

// SideMetrics carries the per-side block of a snapshot. IVs are percent and
// Greeks belong to the 30-day tenor.
type SideMetrics struct {
	IV30         *float64      `json:"iv_30"`
	IV60         *float64      `json:"iv_60"`
	IV90         *float64      `json:"iv_90"`
	Volume       int64         `json:"volume"`
	LastPrice30d float64       `json:"last_price_30d"`
	Close        float64       `json:"close"`
	Open         float64       `json:"open"`
	High         float64       `json:"high"`
	Low          float64       `json:"low"`
	Percentile   *float64      `json:"ivp"`
	Rank         *float64      `json:"ivr"`
	Greeks       *OptionGreeks `json:"greeks"`
}

// IV returns the implied volatility of the given tenor.
func (m *SideMetrics) IV(t Tenor) *float64 {
	switch t {
	case Tenor30:
		return m.IV30
	case Tenor60:
		return m.IV60
	case Tenor90:
		return m.IV90
	}
	return nil
}

// SetIV stores the implied volatility of the given tenor.
func (m *SideMetrics) SetIV(t Tenor, v *float64) {
	switch t {
	case Tenor30:
		m.IV30 = v
	case Tenor60:
		m.IV60 = v
	case Tenor90:
		m.IV90 = v
	}
}
