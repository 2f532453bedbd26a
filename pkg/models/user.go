package models

import "time"

// User is a chat user with a role that scopes warehouse table access.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Role constants. Each role maps to an allow-list of warehouse tables in
// pkg/schema. An unknown role has an empty allow-list (deny-all).
const (
	RoleAdmin    = "Admin"
	RoleEntregas = "Entregas"
	RoleFacturas = "Facturas"
)

// ValidRoles contains all recognized role values.
var ValidRoles = []string{RoleAdmin, RoleEntregas, RoleFacturas}

// IsValidRole checks if the given role is recognized.
func IsValidRole(role string) bool {
	for _, r := range ValidRoles {
		if r == role {
			return true
		}
	}
	return false
}
