package onboarding

import (
	"loyaltydesk/services/loyalty"
	"loyaltydesk/services/reward"
)

// WalletView is the customer-facing snapshot of a membership: balance, tier
// standing, recent activity and which rewards are within reach right now.
type WalletView struct {
	Restaurant   RestaurantView             `json:"restaurant"`
	Name         string                     `json:"name"`
	Code         string                     `json:"code"`
	TotalPoints  int64                      `json:"total_points"`
	CurrentTier  string                     `json:"current_tier"`
	TierProgress int                        `json:"tier_progress"`
	Activity     []*loyalty.TransactionView `json:"activity"`
	Rewards      []*WalletReward            `json:"rewards"`
	Redemptions  []*reward.RedemptionView   `json:"redemptions"`
}

type RestaurantView struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Currency string `json:"currency"`
}

type WalletReward struct {
	*reward.View
	Eligible bool `json:"eligible"`
}
