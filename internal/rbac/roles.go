package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	RoleAgent      = "agent"
	RoleSupervisor = "supervisor"
	RoleAdmin      = "admin"
)

// IsAdmin reports whether the role bypasses ownership checks.
func IsAdmin(role string) bool { return role == RoleAdmin }

// ValidRole reports whether role is one of the defined role names.
func ValidRole(role string) bool {
	switch role {
	case RoleAgent, RoleSupervisor, RoleAdmin:
		return true
	default:
		return false
	}
}
