package volatility

import (
	"fmt"
	"sort"

	"nse-options-lab/internal/models"
	"nse-options-lab/pkg/utils"
)

// RollingYZ computes a Yang-Zhang series where each point uses the last
// Window valid bars found within MaxLookback business days.
type RollingYZ struct {
	window      int
	maxLookback int
	tradingDays float64
}

// NewRollingYZ creates a rolling estimator.
func NewRollingYZ(window, maxLookback int, tradingDays float64) *RollingYZ {
	return &RollingYZ{
		window:      window,
		maxLookback: maxLookback,
		tradingDays: tradingDays,
	}
}

func (y *RollingYZ) Name() string {
	return fmt.Sprintf("YZ_%d", y.window)
}

func (y *RollingYZ) Period() int {
	return y.window
}

// Calculate returns one value per input bar, in date order. A point is nil
// when fewer than Window valid bars are reachable.
func (y *RollingYZ) Calculate(bars []models.Candle) ([]*float64, error) {
	if y.window < MinObservations {
		return nil, ErrInvalidPeriod
	}
	if y.maxLookback < y.window {
		return nil, fmt.Errorf("max lookback %d shorter than window %d", y.maxLookback, y.window)
	}

	sorted := append([]models.Candle(nil), bars...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	byDate := make(map[models.Date]models.Candle, len(sorted))
	for _, b := range sorted {
		byDate[b.Date] = b
	}

	out := make([]*float64, len(sorted))
	for i, b := range sorted {
		found := make([]models.Candle, 0, y.window)
		d := b.Date
		for step := 0; step < y.maxLookback && len(found) < y.window; step++ {
			if bar, ok := byDate[d]; ok && bar.Valid() {
				found = append(found, bar)
			}
			d = utils.PrevBusinessDay(d)
		}
		if len(found) < y.window {
			continue
		}

		// found is newest first
		for l, r := 0, len(found)-1; l < r; l, r = l+1, r-1 {
			found[l], found[r] = found[r], found[l]
		}
		v, err := YangZhang(found, y.tradingDays)
		if err != nil {
			continue
		}
		out[i] = models.Float(v)
	}

	return out, nil
}

// Interpolate fills nil gaps linearly by position between known values.
// Trailing gaps take the last known value and leading gaps stay nil.
func Interpolate(values []*float64) []*float64 {
	out := make([]*float64, len(values))
	copy(out, values)

	prev := -1
	for i, v := range values {
		if v == nil {
			continue
		}
		if prev >= 0 && i-prev > 1 {
			a, b := *values[prev], *v
			span := float64(i - prev)
			for j := prev + 1; j < i; j++ {
				out[j] = models.Float(a + (b-a)*float64(j-prev)/span)
			}
		}
		prev = i
	}

	if prev >= 0 {
		for j := prev + 1; j < len(values); j++ {
			out[j] = models.Float(*values[prev])
		}
	}

	return out
}
