package pricing

import (
	"math"

	"nse-options-lab/internal/errors"
)

// SolverConfig bounds the implied volatility search.
type SolverConfig struct {
	Low           float64
	High          float64
	Tolerance     float64
	MaxIterations int
}

// DefaultSolverConfig returns the default bisection bracket and budget.
func DefaultSolverConfig() SolverConfig {
	return SolverConfig{
		Low:           1e-4,
		High:          5.0,
		Tolerance:     1e-6,
		MaxIterations: 200,
	}
}

// ImpliedVol finds the volatility at which the model price equals
// marketPrice. p.Vol is ignored. Price is strictly increasing in volatility
// for T>0, so the bracket holds at most one root.
func ImpliedVol(marketPrice float64, p Params, cfg SolverConfig) (float64, error) {
	if err := validate(p); err != nil {
		return 0, err
	}
	if !finite(marketPrice) || marketPrice <= 0 {
		return 0, errors.NewInvalidInputError("price", marketPrice, "must be positive")
	}
	if cfg.Low <= 0 || cfg.High <= cfg.Low {
		return 0, errors.NewInvalidInputError("bracket", cfg.High, "requires 0 < low < high")
	}
	if p.Expiry == 0 {
		return 0, errors.NewConvergenceError(marketPrice, cfg.Low, cfg.High, 0, "no time value at expiry")
	}

	call := p.Side.IsCall()
	value := func(vol float64) float64 {
		return price(p.Spot, p.Strike, p.Expiry, p.Rate, p.Dividend, vol, call)
	}

	lo, hi := cfg.Low, cfg.High
	pLo, pHi := value(lo), value(hi)
	if math.Abs(pLo-marketPrice) < cfg.Tolerance {
		return lo, nil
	}
	if math.Abs(pHi-marketPrice) < cfg.Tolerance {
		return hi, nil
	}
	if marketPrice < pLo || marketPrice > pHi {
		return 0, errors.NewConvergenceError(marketPrice, cfg.Low, cfg.High, 0, "price outside bracket")
	}

	for i := 1; i <= cfg.MaxIterations; i++ {
		mid := 0.5 * (lo + hi)
		pm := value(mid)
		if math.Abs(pm-marketPrice) < cfg.Tolerance {
			return mid, nil
		}
		if pm > marketPrice {
			hi = mid
		} else {
			lo = mid
		}
	}

	return 0, errors.NewConvergenceError(marketPrice, cfg.Low, cfg.High, cfg.MaxIterations, "iteration budget exhausted")
}
