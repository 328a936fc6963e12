package rbac

// Role names form a closed enumeration shared with the role-management
// endpoints. Scope and PII-decrypt decisions switch on these values, so
// new roles must be threaded through scope.Calculator and pii.Gate.
const (
	RoleSuperAdmin        = "SUPER_ADMIN"
	RoleSystemAdmin       = "SYSTEM_ADMINISTRATOR"
	RoleProgramManager    = "PROGRAM_MANAGER"
	RoleSubProjectManager = "SUB_PROJECT_MANAGER"
	RoleFieldOperator     = "FIELD_OPERATOR"
)

// AllRoles lists every recognised role name.
func AllRoles() []string {
	return []string{
		RoleSuperAdmin,
		RoleSystemAdmin,
		RoleProgramManager,
		RoleSubProjectManager,
		RoleFieldOperator,
	}
}

// IsAdminTier reports whether the role set contains an unrestricted-scope role.
func IsAdminTier(roles []string) bool {
	for _, r := range roles {
		if r == RoleSuperAdmin || r == RoleSystemAdmin {
			return true
		}
	}
	return false
}

// HasRole reports whether name is present in roles.
func HasRole(roles []string, name string) bool {
	for _, r := range roles {
		if r == name {
			return true
		}
	}
	return false
}
