package reward

import (
	"time"
)

type RedemptionStatus string

var (
	Pending   RedemptionStatus = "pending"
	Fulfilled RedemptionStatus = "fulfilled"
	Cancelled RedemptionStatus = "cancelled"
)

func (s RedemptionStatus) String() string {
	switch s {
	case Pending, Fulfilled, Cancelled:
		return string(s)
	default:
		return ""
	}
}

// Reward is a redeemable catalog entry. TotalAvailable nil means unlimited;
// otherwise TotalRedeemed may never pass it.
type Reward struct {
	ID             string     `gorm:"column:id;primaryKey"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	UpdatedAt      time.Time  `gorm:"column:updated_at"`
	TenantID       string     `gorm:"column:tenant_id;index;not null"`
	Name           string     `gorm:"column:name;not null"`
	Description    string     `gorm:"column:description;type:text"`
	PointsRequired int64      `gorm:"column:points_required;not null"`
	MinTier        string     `gorm:"column:min_tier"`
	TotalAvailable *int64     `gorm:"column:total_available"`
	TotalRedeemed  int64      `gorm:"column:total_redeemed;not null;default:0"`
	Active         bool       `gorm:"column:active"`
	ExpiresAt      *time.Time `gorm:"column:expires_at"`
}

// Redemption is created together with the customer debit and the reward
// counter increment, inside one transaction.
type Redemption struct {
	ID         string           `gorm:"column:id;primaryKey"`
	CreatedAt  time.Time        `gorm:"column:created_at;index"`
	TenantID   string           `gorm:"column:tenant_id;index;not null"`
	CustomerID string           `gorm:"column:customer_id;index;not null"`
	RewardID   string           `gorm:"column:reward_id;index;not null"`
	Code       string           `gorm:"column:code"`
	PointsUsed int64            `gorm:"column:points_used;not null"`
	Status     RedemptionStatus `gorm:"column:status;type:varchar(20);default:'pending'"`
}

type View struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Description    string     `json:"description"`
	PointsRequired int64      `json:"points_required"`
	MinTier        string     `json:"min_tier"`
	TotalAvailable *int64     `json:"total_available,omitempty"`
	TotalRedeemed  int64      `json:"total_redeemed"`
	Active         bool       `json:"active"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
}

func (m *Reward) ToView() *View {
	return &View{
		ID:             m.ID,
		Name:           m.Name,
		Description:    m.Description,
		PointsRequired: m.PointsRequired,
		MinTier:        m.MinTier,
		TotalAvailable: m.TotalAvailable,
		TotalRedeemed:  m.TotalRedeemed,
		Active:         m.Active,
		ExpiresAt:      m.ExpiresAt,
	}
}

type RedemptionView struct {
	ID         string    `json:"id"`
	RewardID   string    `json:"reward_id"`
	CustomerID string    `json:"customer_id"`
	Code       string    `json:"code"`
	PointsUsed int64     `json:"points_used"`
	Status     string    `json:"status"`
	RedeemedAt time.Time `json:"redeemed_at"`
}

func (m *Redemption) ToView() *RedemptionView {
	return &RedemptionView{
		ID:         m.ID,
		RewardID:   m.RewardID,
		CustomerID: m.CustomerID,
		Code:       m.Code,
		PointsUsed: m.PointsUsed,
		Status:     m.Status.String(),
		RedeemedAt: m.CreatedAt,
	}
}
