package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	RoleAdmin     = "admin"
	RoleCollector = "collector"
	RoleAnalyst   = "analyst"
	RoleAuditor   = "auditor" // hidden role
)

func IsAdmin(role string) bool { return role == RoleAdmin }

func IsHiddenRole(role string) bool { return role == RoleAuditor }

// IsKnown reports whether role may be issued a token.
func IsKnown(role string) bool {
	switch role {
	case RoleAdmin, RoleCollector, RoleAnalyst, RoleAuditor:
		return true
	default:
		return false
	}
}
