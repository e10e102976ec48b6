package role

// Role identifies the capability level of an authenticated user.
// Roles form a closed set; transition definitions reference them by name.
type Role string

const (
	RoleRoot       Role = "ROOT"
	RoleAdmin      Role = "ADMIN"
	RoleSecretaria Role = "SECRETARIA"
	RoleProfesor   Role = "PROFESOR"
	RoleGuest      Role = "GUEST"
)

var validRoles = map[Role]bool{
	RoleRoot:       true,
	RoleAdmin:      true,
	RoleSecretaria: true,
	RoleProfesor:   true,
	RoleGuest:      true,
}

// String returns the string representation of the role
func (r Role) String() string {
	return string(r)
}

// IsValid returns true if the role is one of the defined roles
func (r Role) IsValid() bool {
	return validRoles[r]
}

// CanCreateRequests returns true for any authenticated non-guest role
func CanCreateRequests(r Role) bool {
	return r.IsValid() && r != RoleGuest
}

// CanManageRequests returns true for roles with administrative capability
func CanManageRequests(r Role) bool {
	return r == RoleAdmin || r == RoleRoot
}
