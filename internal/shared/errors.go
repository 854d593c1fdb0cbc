package shared

import "errors"

// Sentinel errors shared by repositories and services. Repositories
// translate driver errors into these so services never import pgx.
var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrCSRFTokenMissing   = errors.New("csrf token missing")
	ErrCSRFTokenMismatch  = errors.New("csrf token mismatch")
)
