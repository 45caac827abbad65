package models

// MarketSnapshot is the aggregated per-symbol, per-date record. Its JSON form
// is consumed by downstream dashboards, so key names and order are fixed.
type MarketSnapshot struct {
	Symbol string `json:"-"`
	Date   Date   `json:"-"`

	UnderlyingPrice     float64         `json:"underlying_price"`
	InterestRate        float64         `json:"interest_rate"`
	UpcomingEarningDate *Date           `json:"upcoming_earning_date"`
	Expiry30d           *Date           `json:"expiry_30d"`
	Expiry60d           *Date           `json:"expiry_60d"`
	Expiry90d           *Date           `json:"expiry_90d"`
	OptionChain         []ChainContract `json:"option_chain"`
	StrikePrice         *float64        `json:"strike_price"`
	RVYZ                *float64        `json:"rv_yz"`
	CE                  *SideMetrics    `json:"ce"`
	PE                  *SideMetrics    `json:"pe"`
}

// Expiry returns the expiry of the given tenor.
func (s *MarketSnapshot) Expiry(t Tenor) *Date {
	switch t {
	case Tenor30:
		return s.Expiry30d
	case Tenor60:
		return s.Expiry60d
	case Tenor90:
		return s.Expiry90d
	}
	return nil
}

// Side returns the per-side block.
func (s *MarketSnapshot) Side(side Side) *SideMetrics {
	if side == SideCall {
		return s.CE
	}
	return s.PE
}

// Contract finds the chain contract for expiry, strike and side.
func (s *MarketSnapshot) Contract(expiry Date, strike float64, side Side) (ChainContract, bool) {
	for _, c := range s.OptionChain {
		if c.Type == side && c.Strike == strike && c.Expiry.Equal(expiry) {
			return c, true
		}
	}
	return ChainContract{}, false
}

// Contracts returns the contracts of one side and expiry in chain order.
func (s *MarketSnapshot) Contracts(expiry Date, side Side) []ChainContract {
	var out []ChainContract
	for _, c := range s.OptionChain {
		if c.Type == side && c.Expiry.Equal(expiry) {
			out = append(out, c)
		}
	}
	return out
}
