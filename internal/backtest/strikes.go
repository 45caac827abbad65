package backtest

import (
	"math"
	"sort"

	"nse-options-lab/internal/models"
)

// tieEpsilon treats delta distances this close as equal.
const tieEpsilon = 1e-9

// SelectByDelta picks the contract whose delta is nearest target. Contracts
// without a finite delta or a positive settle are ignored. Ties go to the
// lower strike. ok is false when nothing lies within tolerance.
func SelectByDelta(contracts []models.ChainContract, target, tolerance float64) (models.ChainContract, bool) {
	var usable []models.ChainContract
	for _, c := range contracts {
		if c.Delta == nil || math.IsNaN(*c.Delta) || math.IsInf(*c.Delta, 0) {
			continue
		}
		if !(c.Settle > 0) || math.IsInf(c.Settle, 0) {
			continue
		}
		usable = append(usable, c)
	}
	if len(usable) == 0 {
		return models.ChainContract{}, false
	}

	// delta falls as strike rises for both calls and puts
	sort.Slice(usable, func(i, j int) bool { return usable[i].Strike < usable[j].Strike })
	i := sort.Search(len(usable), func(i int) bool { return *usable[i].Delta <= target })

	best := -1
	bestDist := math.Inf(1)
	for _, j := range []int{i - 1, i} {
		if j < 0 || j >= len(usable) {
			continue
		}
		dist := math.Abs(*usable[j].Delta - target)
		if dist < bestDist-tieEpsilon {
			best, bestDist = j, dist
		}
	}

	if best < 0 || bestDist > tolerance {
		return models.ChainContract{}, false
	}
	return usable[best], true
}
