package auth

import (
	"time"

	"github.com/tidewater-health/tidewater/internal/authz"
)

// User represents a staff account.
type User struct {
	ID           int64
	Email        string
	Username     string
	PasswordHash string
	FirstName    string
	LastName     string
	Role         authz.Role
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Principal projects the account onto the request-scoped identity.
func (u *User) Principal() *authz.Principal {
	return &authz.Principal{
		ID:       u.ID,
		Username: u.Username,
		Role:     u.Role,
		Enabled:  u.IsActive,
	}
}
