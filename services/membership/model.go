package membership

import (
	"time"

	"loyaltydesk/internal/session"
)

// Staff links an authenticated identity to a restaurant. IdentityID stays
// null until the first sign-in with a matching email claims the row; at most
// one membership exists per (tenant, email).
type Staff struct {
	ID          string       `gorm:"column:id;primaryKey"`
	CreatedAt   time.Time    `gorm:"column:created_at"`
	UpdatedAt   time.Time    `gorm:"column:updated_at"`
	TenantID    string       `gorm:"column:tenant_id;index;not null;uniqueIndex:idx_staff_tenant_email,priority:1"`
	IdentityID  *string      `gorm:"column:identity_id;uniqueIndex"`
	Email       string       `gorm:"column:email;not null;uniqueIndex:idx_staff_tenant_email,priority:2"`
	Name        string       `gorm:"column:name"`
	Role        session.Role `gorm:"column:role;type:varchar(20);not null"`
	Active      bool         `gorm:"column:active"`
	LastLoginAt *time.Time   `gorm:"column:last_login_at"`
}

func (m *Staff) Session(identity session.Identity) *session.Session {
	return &session.Session{
		Identity:     identity,
		MembershipID: m.ID,
		TenantID:     m.TenantID,
		Role:         m.Role,
	}
}

type View struct {
	ID          string     `json:"id"`
	TenantID    string     `json:"tenant_id"`
	Email       string     `json:"email"`
	Name        string     `json:"name"`
	Role        string     `json:"role"`
	Active      bool       `json:"active"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

func (m *Staff) ToView() *View {
	return &View{
		ID:          m.ID,
		TenantID:    m.TenantID,
		Email:       m.Email,
		Name:        m.Name,
		Role:        m.Role.String(),
		Active:      m.Active,
		LastLoginAt: m.LastLoginAt,
	}
}
