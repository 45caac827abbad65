// Package volatility implements realized volatility estimators over daily
// OHLC bars.
package volatility

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"nse-options-lab/internal/errors"
	"nse-options-lab/internal/models"
)

// TradingDaysPerYear is the default annualisation factor.
const TradingDaysPerYear = 252.0

// MinObservations is the smallest window the estimator accepts.
const MinObservations = 2

// YangZhang returns the annualised Yang-Zhang volatility, in percent, of the
// bars in chronological order.
func YangZhang(bars []models.Candle, tradingDays float64) (float64, error) {
	n := len(bars)
	if n < MinObservations {
		return 0, errors.NewInsufficientDataError(MinObservations, n, "too few bars")
	}
	for i, b := range bars {
		if !b.Valid() {
			return 0, errors.NewInsufficientDataError(MinObservations, n,
				fmt.Sprintf("non-positive price in bar %d (%s)", i, b.Date))
		}
	}
	if tradingDays <= 0 {
		tradingDays = TradingDaysPerYear
	}

	overnight := make([]float64, 0, n-1)
	openClose := make([]float64, n)
	var rs float64
	for i, b := range bars {
		if i > 0 {
			overnight = append(overnight, math.Log(b.Open/bars[i-1].Close))
		}
		openClose[i] = math.Log(b.Close / b.Open)
		rs += math.Log(b.High/b.Close)*math.Log(b.High/b.Open) +
			math.Log(b.Low/b.Close)*math.Log(b.Low/b.Open)
	}

	nf := float64(n)
	// n-1 overnight returns over an n-1 denominator.
	sigmaO := stat.PopVariance(overnight, nil)
	sigmaC := stat.Variance(openClose, nil)
	sigmaRS := rs / nf

	k := 0.34 / (1.34 + (nf+1)/(nf-1))
	variance := sigmaO + k*sigmaC + (1-k)*sigmaRS
	if variance < 0 {
		// Rogers-Satchell terms are non-negative for valid bars; guard rounding.
		variance = 0
	}

	return math.Sqrt(variance*tradingDays) * 100, nil
}
