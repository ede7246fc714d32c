package model

import "fmt"

// Role is the workflow role a user acts under.
type Role string

const (
	RoleDistributor Role = "distributor"
	RoleSales       Role = "sales"
	RoleShift       Role = "shift"
)

// Roles lists every role in a stable order.
var Roles = []Role{RoleDistributor, RoleSales, RoleShift}

// ParseRole validates a raw role name.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleDistributor, RoleSales, RoleShift:
		return Role(s), nil
	default:
		return "", fmt.Errorf("unknown role: %q", s)
	}
}

func (r Role) IsDistributor() bool { return r == RoleDistributor }
func (r Role) IsSales() bool       { return r == RoleSales }
func (r Role) IsShift() bool       { return r == RoleShift }

func (r Role) String() string { return string(r) }
