package customer

import (
	"time"
)

// Customer is a loyalty enrollee of exactly one restaurant. TotalPoints is
// the spendable balance; LifetimePoints never decreases and is the tier
// basis. CurrentTier and TierProgress are denormalised from LifetimePoints
// on every accrual.
type Customer struct {
	ID             string     `gorm:"column:id;primaryKey"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	UpdatedAt      time.Time  `gorm:"column:updated_at"`
	TenantID       string     `gorm:"column:tenant_id;index;not null;uniqueIndex:idx_customer_tenant_email,priority:1"`
	Code           string     `gorm:"column:code"`
	Email          string     `gorm:"column:email;uniqueIndex:idx_customer_tenant_email,priority:2"`
	Name           string     `gorm:"column:name"`
	Phone          string     `gorm:"column:phone;index"`
	DateOfBirth    *time.Time `gorm:"column:date_of_birth"`
	TotalPoints    int64      `gorm:"column:total_points;not null;default:0"`
	LifetimePoints int64      `gorm:"column:lifetime_points;not null;default:0"`
	CurrentTier    string     `gorm:"column:current_tier"`
	TierProgress   int        `gorm:"column:tier_progress"`
	VisitCount     int64      `gorm:"column:visit_count"`
	TotalSpent     int64      `gorm:"column:total_spent"` // minor currency units
	LastVisit      *time.Time `gorm:"column:last_visit"`
	// No column default: creation sites set Active explicitly, so a row
	// created inactive stays inactive instead of gorm treating false as
	// unset and applying a default.
	Active bool `gorm:"column:active"`
}

type View struct {
	ID             string     `json:"id"`
	Code           string     `json:"code"`
	Email          string     `json:"email"`
	Name           string     `json:"name"`
	Phone          string     `json:"phone"`
	DateOfBirth    *time.Time `json:"date_of_birth,omitempty"`
	TotalPoints    int64      `json:"total_points"`
	LifetimePoints int64      `json:"lifetime_points"`
	CurrentTier    string     `json:"current_tier"`
	TierProgress   int        `json:"tier_progress"`
	VisitCount     int64      `json:"visit_count"`
	TotalSpent     int64      `json:"total_spent"`
	LastVisit      *time.Time `json:"last_visit,omitempty"`
	Active         bool       `json:"active"`
	CreatedAt      time.Time  `json:"created_at"`
}

func (m *Customer) ToView() *View {
	return &View{
		ID:             m.ID,
		Code:           m.Code,
		Email:          m.Email,
		Name:           m.Name,
		Phone:          m.Phone,
		DateOfBirth:    m.DateOfBirth,
		TotalPoints:    m.TotalPoints,
		LifetimePoints: m.LifetimePoints,
		CurrentTier:    m.CurrentTier,
		TierProgress:   m.TierProgress,
		VisitCount:     m.VisitCount,
		TotalSpent:     m.TotalSpent,
		LastVisit:      m.LastVisit,
		Active:         m.Active,
		CreatedAt:      m.CreatedAt,
	}
}

// Stats are the dashboard aggregates. They are recomputed from rows on every
// request; nothing here is cached.
type Stats struct {
	Customers         int64 `json:"customers"`
	ActiveCustomers   int64 `json:"active_customers"`
	PointsOutstanding int64 `json:"points_outstanding"`
	PointsIssued      int64 `json:"points_issued"`
	Redemptions       int64 `json:"redemptions"`
}
