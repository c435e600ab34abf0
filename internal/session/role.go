package session

// Role is a closed enum. Permission checks go through Capabilities so a new
// role cannot silently inherit access.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleStaff   Role = "staff"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleStaff:
		return true
	default:
		return false
	}
}

func (r Role) String() string {
	if r.Valid() {
		return string(r)
	}
	return ""
}

type Capability string

const (
	CapViewCustomers   Capability = "customers:view"
	CapManageCustomers Capability = "customers:manage"
	CapAddPoints       Capability = "points:add"
	CapManageRewards   Capability = "rewards:manage"
	CapRedeemRewards   Capability = "rewards:redeem"
	CapManageSettings  Capability = "settings:manage"
	CapViewReports     Capability = "reports:view"
)

// Capabilities maps each role to its capability set. The switch is
// exhaustive over valid roles; unknown roles get nothing.
func (r Role) Capabilities() []Capability {
	switch r {
	case RoleAdmin:
		return []Capability{
			CapViewCustomers, CapManageCustomers, CapAddPoints,
			CapManageRewards, CapRedeemRewards, CapManageSettings, CapViewReports,
		}
	case RoleManager:
		return []Capability{
			CapViewCustomers, CapManageCustomers, CapAddPoints,
			CapManageRewards, CapRedeemRewards, CapViewReports,
		}
	case RoleStaff:
		return []Capability{
			CapViewCustomers, CapAddPoints, CapRedeemRewards,
		}
	default:
		return nil
	}
}
