package domain

// Role is a closed set. Keeping it an enum (rather than raw strings at
// call sites) is what guarantees the approved_by foreign key is only ever
// written for RoleAdmin.
type Role string

const (
	RoleParticipant Role = "participant"
	RoleAdmin       Role = "admin"
	RoleSuperAdmin  Role = "superadmin"
)

func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleParticipant, RoleAdmin, RoleSuperAdmin:
		return Role(s), true
	default:
		return "", false
	}
}

// Actor is the authenticated principal performing an operation.
type Actor struct {
	ID    string
	Email string
	Role  Role
}

func (a Actor) IsStaff() bool {
	return a.Role == RoleAdmin || a.Role == RoleSuperAdmin
}
