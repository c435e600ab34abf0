package loyalty

import "math"

// Tier classification is a pure function of lifetime points. The thresholds
// are fixed; spending points never demotes a customer. This is the single
// authoritative implementation; nothing else in the repo re-derives tiers.
type Tier string

const (
	TierBronze Tier = "bronze"
	TierSilver Tier = "silver"
	TierGold   Tier = "gold"
)

const (
	SilverThreshold int64 = 500
	GoldThreshold   int64 = 1000
)

// Rank orders tiers for eligibility comparisons: bronze < silver < gold.
func (t Tier) Rank() int {
	switch t {
	case TierGold:
		return 2
	case TierSilver:
		return 1
	case TierBronze:
		return 0
	default:
		return -1
	}
}

func (t Tier) String() string {
	return string(t)
}

func ParseTier(s string) Tier {
	switch Tier(s) {
	case TierBronze, TierSilver, TierGold:
		return Tier(s)
	default:
		return TierBronze
	}
}

func TierForPoints(lifetimePoints int64) Tier {
	switch {
	case lifetimePoints >= GoldThreshold:
		return TierGold
	case lifetimePoints >= SilverThreshold:
		return TierSilver
	default:
		return TierBronze
	}
}

// TierProgress returns how far (0-100) the customer is toward the next tier.
// Gold is terminal and always reports 100.
func TierProgress(lifetimePoints int64) int {
	switch TierForPoints(lifetimePoints) {
	case TierGold:
		return 100
	case TierSilver:
		return clampPercent(float64(lifetimePoints-SilverThreshold) / float64(GoldThreshold-SilverThreshold) * 100)
	default:
		return clampPercent(float64(lifetimePoints) / float64(SilverThreshold) * 100)
	}
}

func clampPercent(v float64) int {
	p := int(math.Round(v))
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
