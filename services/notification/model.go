package notification

import (
	"time"

	"gorm.io/datatypes"
)

type Kind string

var (
	Info       Kind = "info"
	TierChange Kind = "tier_change"
	Redemption Kind = "redemption"
	Welcome    Kind = "welcome"
)

func (k Kind) String() string {
	switch k {
	case Info, TierChange, Redemption, Welcome:
		return string(k)
	default:
		return string(Info)
	}
}

type Notification struct {
	ID        string         `gorm:"column:id;primaryKey"`
	CreatedAt time.Time      `gorm:"column:created_at;index"`
	TenantID  string         `gorm:"column:tenant_id;index;not null"`
	Kind      Kind           `gorm:"column:kind;type:varchar(20)"`
	Title     string         `gorm:"column:title"`
	Message   string         `gorm:"column:message;type:text"`
	Metadata  datatypes.JSON `gorm:"column:metadata"`
}

type View struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

func (m *Notification) ToView() *View {
	return &View{
		ID:        m.ID,
		Kind:      m.Kind.String(),
		Title:     m.Title,
		Message:   m.Message,
		CreatedAt: m.CreatedAt,
	}
}
