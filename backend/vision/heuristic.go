package vision

import (
	"context"
	"math/rand/v2"
)

const (
	heuristicDirtinessMin   = 30
	heuristicDirtinessMax   = 90
	heuristicCleanlinessMin = 60
	heuristicCleanlinessMax = 100
)

// HeuristicAnalyzer draws uniform scores without looking at the image.
// Dirtiness is in [30,90], cleanliness in [60,100].
type HeuristicAnalyzer struct {
	intN func(n int) int
}

func NewHeuristicAnalyzer() *HeuristicAnalyzer {
	return &HeuristicAnalyzer{intN: rand.IntN}
}

func (a *HeuristicAnalyzer) Strategy() Strategy {
	return StrategyHeuristic
}

func (a *HeuristicAnalyzer) Dirtiness(context.Context, []byte) (int, error) {
	return a.dirtiness(), nil
}

func (a *HeuristicAnalyzer) Cleanliness(context.Context, []byte) (int, error) {
	return a.cleanliness(), nil
}

func (a *HeuristicAnalyzer) dirtiness() int {
	return a.between(heuristicDirtinessMin, heuristicDirtinessMax)
}

func (a *HeuristicAnalyzer) cleanliness() int {
	return a.between(heuristicCleanlinessMin, heuristicCleanlinessMax)
}

// between returns a uniform draw from [lo, hi].
func (a *HeuristicAnalyzer) between(lo, hi int) int {
	return lo + a.intN(hi-lo+1)
}
