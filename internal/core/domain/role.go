package domain

import "strings"

const (
	RoleUser  = "ROLE_USER"
	RoleAdmin = "ROLE_ADMIN"
)

// Operations guarded by the role catalogue.
const (
	OpUpdatePassword = "UPDATE_PASSWORD"
	OpGetUser        = "GET_USER"
	OpLogout         = "LOGOUT"
)

// Role is a named authority. Roles flagged Default are granted on
// registration.
type Role struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Default bool   `json:"default"`
}

// JoinRoles renders a role set the way it travels in the authorities claim.
func JoinRoles(roles []string) string {
	return strings.Join(roles, ",")
}

// SplitRoles parses an authorities claim back into role names, dropping
// blanks.
func SplitRoles(claim string) []string {
	parts := strings.Split(claim, ",")
	roles := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			roles = append(roles, p)
		}
	}
	return roles
}
