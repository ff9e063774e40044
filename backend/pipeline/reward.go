package pipeline

import "github.com/shopspring/decimal"

const (
	rewardPerDirtiness = "0.6"
	maxRewardBonus     = 15
)

var rewardRate = decimal.RequireFromString(rewardPerDirtiness)

// Reward is round(dirtiness*0.6) plus a uniform bonus in [0,15]. intN must
// return a value in [0,n).
func Reward(dirtiness int, intN func(n int) int) int {
	base := decimal.NewFromInt(int64(dirtiness)).Mul(rewardRate).Round(0).IntPart()
	return int(base) + intN(maxRewardBonus+1)
}
