// Package pricing implements Black-Scholes valuation, Greeks and implied
// volatility for European options.
package pricing

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"nse-options-lab/internal/errors"
	"nse-options-lab/internal/models"
)

// DaysPerYear converts calendar days to year fractions and theta to a daily rate.
const DaysPerYear = 365.0

// Params are the inputs of the pricing model. Expiry is in years, Rate,
// Dividend and Vol are decimals (0.0776, not 7.76).
type Params struct {
	Spot     float64
	Strike   float64
	Expiry   float64
	Rate     float64
	Dividend float64
	Vol      float64
	Side     models.Side
}

// Result is a price together with its Greeks.
type Result struct {
	Price  float64
	Greeks models.OptionGreeks
}

var normal = distuv.UnitNormal

// YearFraction returns the time from asOf to expiry in years, clamped at zero.
func YearFraction(asOf, expiry models.Date) float64 {
	days := asOf.DaysUntil(expiry)
	if days < 0 {
		days = 0
	}
	return float64(days) / DaysPerYear
}

func validate(p Params) error {
	switch {
	case !finite(p.Spot) || p.Spot <= 0:
		return errors.NewInvalidInputError("spot", p.Spot, "must be positive")
	case !finite(p.Strike) || p.Strike <= 0:
		return errors.NewInvalidInputError("strike", p.Strike, "must be positive")
	case !finite(p.Expiry) || p.Expiry < 0:
		return errors.NewInvalidInputError("expiry", p.Expiry, "must be non-negative")
	case !finite(p.Rate):
		return errors.NewInvalidInputError("rate", p.Rate, "must be finite")
	case !finite(p.Dividend):
		return errors.NewInvalidInputError("dividend", p.Dividend, "must be finite")
	case !p.Side.Valid():
		return errors.NewInvalidInputError("side", 0, "must be CE or PE")
	}
	return nil
}

func validateVol(vol float64) error {
	if !finite(vol) || vol <= 0 {
		return errors.NewInvalidInputError("vol", vol, "must be positive")
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Price returns the Black-Scholes value of the option.
func Price(p Params) (float64, error) {
	if err := validate(p); err != nil {
		return 0, err
	}
	if err := validateVol(p.Vol); err != nil {
		return 0, err
	}
	return price(p.Spot, p.Strike, p.Expiry, p.Rate, p.Dividend, p.Vol, p.Side.IsCall()), nil
}

// Greeks returns delta, gamma, theta (per calendar day), vega (per vol point)
// and rho (per rate point).
func Greeks(p Params) (models.OptionGreeks, error) {
	r, err := Evaluate(p)
	return r.Greeks, err
}

// Evaluate returns the price and Greeks in one pass.
func Evaluate(p Params) (Result, error) {
	if err := validate(p); err != nil {
		return Result{}, err
	}
	if err := validateVol(p.Vol); err != nil {
		return Result{}, err
	}

	call := p.Side.IsCall()
	if p.Expiry == 0 {
		return Result{
			Price:  intrinsic(p.Spot, p.Strike, call),
			Greeks: models.OptionGreeks{Delta: stepDelta(p.Spot, p.Strike, call)},
		}, nil
	}

	S, K, T, r, q, vol := p.Spot, p.Strike, p.Expiry, p.Rate, p.Dividend, p.Vol
	sqrtT := math.Sqrt(T)
	d1, d2 := d1d2(S, K, T, r, q, vol)
	eq := math.Exp(-q * T)
	er := math.Exp(-r * T)
	pdf := normal.Prob(d1)

	var g models.OptionGreeks
	g.Gamma = eq * pdf / (S * vol * sqrtT)
	g.Vega = S * eq * pdf * sqrtT / 100
	decay := -(S * pdf * vol * eq) / (2 * sqrtT)

	if call {
		g.Delta = eq * normal.CDF(d1)
		g.Theta = (decay - r*K*er*normal.CDF(d2) + q*S*eq*normal.CDF(d1)) / DaysPerYear
		g.Rho = K * T * er * normal.CDF(d2) / 100
	} else {
		g.Delta = -eq * normal.CDF(-d1)
		g.Theta = (decay + r*K*er*normal.CDF(-d2) - q*S*eq*normal.CDF(-d1)) / DaysPerYear
		g.Rho = -K * T * er * normal.CDF(-d2) / 100
	}

	return Result{Price: price(S, K, T, r, q, vol, call), Greeks: g}, nil
}

func d1d2(S, K, T, r, q, vol float64) (float64, float64) {
	sd := vol * math.Sqrt(T)
	d1 := (math.Log(S/K) + (r-q+0.5*vol*vol)*T) / sd
	return d1, d1 - sd
}

// price assumes validated inputs.
func price(S, K, T, r, q, vol float64, call bool) float64 {
	if T == 0 {
		return intrinsic(S, K, call)
	}
	d1, d2 := d1d2(S, K, T, r, q, vol)
	eq := math.Exp(-q * T)
	er := math.Exp(-r * T)
	if call {
		return S*eq*normal.CDF(d1) - K*er*normal.CDF(d2)
	}
	return K*er*normal.CDF(-d2) - S*eq*normal.CDF(-d1)
}

func intrinsic(S, K float64, call bool) float64 {
	if call {
		return math.Max(0, S-K)
	}
	return math.Max(0, K-S)
}

func stepDelta(S, K float64, call bool) float64 {
	switch {
	case call && S > K:
		return 1
	case !call && S < K:
		return -1
	default:
		return 0
	}
}
