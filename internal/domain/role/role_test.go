package role

import "testing"

func TestRole_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		role     Role
		expected bool
	}{
		{"root", RoleRoot, true},
		{"admin", RoleAdmin, true},
		{"secretaria", RoleSecretaria, true},
		{"profesor", RoleProfesor, true},
		{"guest", RoleGuest, true},
		{"unknown role", Role("ALUMNO"), false},
		{"empty role", Role(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.role.IsValid(); got != tt.expected {
				t.Errorf("Role.IsValid() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestCanCreateRequests(t *testing.T) {
	tests := []struct {
		role     Role
		expected bool
	}{
		{RoleRoot, true},
		{RoleAdmin, true},
		{RoleSecretaria, true},
		{RoleProfesor, true},
		{RoleGuest, false},
		{Role(""), false},
		{Role("INVALID"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			if got := CanCreateRequests(tt.role); got != tt.expected {
				t.Errorf("CanCreateRequests(%s) = %v, want %v", tt.role, got, tt.expected)
			}
		})
	}
}

func TestCanManageRequests(t *testing.T) {
	tests := []struct {
		role     Role
		expected bool
	}{
		{RoleRoot, true},
		{RoleAdmin, true},
		{RoleSecretaria, false},
		{RoleProfesor, false},
		{RoleGuest, false},
		{Role("INVALID"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			if got := CanManageRequests(tt.role); got != tt.expected {
				t.Errorf("CanManageRequests(%s) = %v, want %v", tt.role, got, tt.expected)
			}
		})
	}
}
