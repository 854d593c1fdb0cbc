package users

import (
	"time"

	"github.com/tidewater-health/tidewater/internal/authz"
)

// User represents a staff account for management.
type User struct {
	ID        int64
	Email     string
	Username  string
	FirstName string
	LastName  string
	Role      authz.Role
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewUser carries the fields required to provision an account.
type NewUser struct {
	Email     string
	Username  string
	Password  string
	FirstName string
	LastName  string
	Role      authz.Role
}

// Update carries mutable account fields.
type Update struct {
	FirstName string
	LastName  string
	Role      authz.Role
	IsActive  *bool
}
