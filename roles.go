package onboard

// UserRole is the user's role. The role is the single source of truth:
// the admin/instructor checks below are derived, never stored.
type UserRole = string

const (
	// RoleStudent is the default role for self-registered users.
	RoleStudent UserRole = "student"
	// RoleInstructor is granted through application approval.
	RoleInstructor UserRole = "instructor"
	// RoleAdmin can review applications and manage users.
	RoleAdmin UserRole = "admin"
)

// IsValidRole checks the role against the predefined set.
func IsValidRole(r UserRole) bool {
	switch r {
	case RoleStudent, RoleInstructor, RoleAdmin:
		return true
	default:
		return false
	}
}

// IsAdmin reports whether the role carries administrative privileges.
func IsAdmin(r UserRole) bool {
	return r == RoleAdmin
}

// IsInstructor reports whether the role can author courses. Admins are
// instructors for backward-compatible checks.
func IsInstructor(r UserRole) bool {
	return r == RoleInstructor || r == RoleAdmin
}

// GetAllRoles returns the predefined roles in ascending privilege order.
func GetAllRoles() []UserRole {
	return []UserRole{RoleStudent, RoleInstructor, RoleAdmin}
}

// ParseRole safely parses a string into a UserRole.
func ParseRole(roleStr string) (UserRole, bool) {
	role := UserRole(roleStr)
	return role, IsValidRole(role)
}
