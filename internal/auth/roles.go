package auth

// Role represents a user role.
type Role string

const (
	RoleViewer Role = "viewer"
	RoleAdmin  Role = "admin"
)

// NormalizeRole validates and normalizes a role string. An empty role reads
// as viewer, since every signed-in user may view dashboards.
func NormalizeRole(value string) (Role, bool) {
	switch Role(value) {
	case "":
		return RoleViewer, true
	case RoleViewer, RoleAdmin:
		return Role(value), true
	default:
		return "", false
	}
}

// RoleAtLeast returns true when role satisfies required role.
func RoleAtLeast(role Role, required Role) bool {
	return roleRank(role) >= roleRank(required)
}

func roleRank(role Role) int {
	switch role {
	case RoleViewer:
		return 1
	case RoleAdmin:
		return 2
	default:
		return 0
	}
}
