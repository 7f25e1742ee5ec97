package domain

import "time"

// Operator roles.
const (
	RoleAdmin   = "admin"
	RoleLeader  = "leader"
	RoleCollab  = "collab"
	RoleCashier = "cashier"
)

// User is the operator signed in on the terminal.
type User struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// IsValidRole reports whether role is one of the known roles.
func IsValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleLeader, RoleCollab, RoleCashier:
		return true
	}
	return false
}

// CanManageCatalog reports whether the role may edit products and goals.
func CanManageCatalog(role string) bool {
	return role == RoleAdmin || role == RoleLeader
}

// OperatorSession links a terminal session id to the backend token of the
// operator who signed in.
type OperatorSession struct {
	ID           string    `json:"id"`
	Token        string    `json:"token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	User         User      `json:"user"`
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
}

// IsExpired reports whether the session is past its expiry at now.
func (s *OperatorSession) IsExpired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}
