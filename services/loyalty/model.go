package loyalty

import (
	"time"

	"gorm.io/datatypes"
)

type TransactionKind string

var (
	Purchase TransactionKind = "purchase"
	Bonus    TransactionKind = "bonus"
	Referral TransactionKind = "referral"
	Signup   TransactionKind = "signup"
)

func (t TransactionKind) String() string {
	switch t {
	case Purchase, Bonus, Referral, Signup:
		return string(t)
	default:
		return ""
	}
}

// PointTransaction is an append-only ledger entry. Rows are never updated or
// deleted; customer totals are derived from them and kept denormalised on
// the customer row.
type PointTransaction struct {
	ID          string          `gorm:"column:id;primaryKey"`
	CreatedAt   time.Time       `gorm:"column:created_at;index"`
	TenantID    string          `gorm:"column:tenant_id;index;not null"`
	CustomerID  string          `gorm:"column:customer_id;index;not null"`
	Kind        TransactionKind `gorm:"column:kind;type:varchar(20);not null"`
	PointDelta  int64           `gorm:"column:point_delta;not null"`
	AmountSpent *int64          `gorm:"column:amount_spent"` // minor currency units
	Description string          `gorm:"column:description;type:text"`
	Metadata    datatypes.JSON  `gorm:"column:metadata"`
}

// TierLevel rows are seeded per tenant at provisioning so the dashboard can
// display thresholds. The accrual rule itself uses the fixed constants in
// tier.go.
type TierLevel struct {
	ID        string    `gorm:"column:id;primaryKey"`
	CreatedAt time.Time `gorm:"column:created_at"`
	TenantID  string    `gorm:"column:tenant_id;index;not null;uniqueIndex:idx_tier_tenant_name,priority:1"`
	Name      string    `gorm:"column:name;uniqueIndex:idx_tier_tenant_name,priority:2"`
	MinPoints int64     `gorm:"column:min_points;not null"`
	SortOrder int       `gorm:"column:sort_order"`
}

type TransactionView struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	PointDelta  int64     `json:"point_delta"`
	AmountSpent *int64    `json:"amount_spent,omitempty"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

func (m *PointTransaction) ToView() *TransactionView {
	return &TransactionView{
		ID:          m.ID,
		Kind:        m.Kind.String(),
		PointDelta:  m.PointDelta,
		AmountSpent: m.AmountSpent,
		Description: m.Description,
		CreatedAt:   m.CreatedAt,
	}
}
