package tenant

import (
	"time"
)

type TenantStatus string

var (
	Active    TenantStatus = "active"
	Suspended TenantStatus = "suspended"
	Archived  TenantStatus = "archived"
)

func (t TenantStatus) String() string {
	switch t {
	case Active, Suspended, Archived:
		return string(t)
	default:
		return ""
	}
}

// Tenant is a restaurant account. ContactEmail anchors ownership: the first
// identity signing in with it becomes the restaurant admin. Tenants are
// suspended or archived, never deleted.
type Tenant struct {
	ID           string       `gorm:"column:id;primaryKey"`
	CreatedAt    time.Time    `gorm:"column:created_at"`
	UpdatedAt    time.Time    `gorm:"column:updated_at"`
	Code         string       `gorm:"column:code"`
	Name         string       `gorm:"column:name"`
	Slug         string       `gorm:"column:slug;uniqueIndex"`
	ContactEmail string       `gorm:"column:contact_email;uniqueIndex"`
	Status       TenantStatus `gorm:"column:status"`

	// Loyalty settings
	Currency          string `gorm:"column:currency"`
	PointsPerCurrency int64  `gorm:"column:points_per_currency"`
	WelcomeBonus      int64  `gorm:"column:welcome_bonus"`
	ReferralBonus     int64  `gorm:"column:referral_bonus"`
}

type Settings struct {
	Currency          string `json:"currency"`
	PointsPerCurrency int64  `json:"points_per_currency"`
	WelcomeBonus      int64  `json:"welcome_bonus"`
	ReferralBonus     int64  `json:"referral_bonus"`
}

type View struct {
	ID           string    `json:"id"`
	Code         string    `json:"code"`
	Name         string    `json:"name"`
	Slug         string    `json:"slug"`
	ContactEmail string    `json:"contact_email"`
	Status       string    `json:"status"`
	Settings     Settings  `json:"settings"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (m *Tenant) ToView() *View {
	return &View{
		ID:           m.ID,
		Code:         m.Code,
		Name:         m.Name,
		Slug:         m.Slug,
		ContactEmail: m.ContactEmail,
		Status:       m.Status.String(),
		Settings: Settings{
			Currency:          m.Currency,
			PointsPerCurrency: m.PointsPerCurrency,
			WelcomeBonus:      m.WelcomeBonus,
			ReferralBonus:     m.ReferralBonus,
		},
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
