package authz

import (
	"log/slog"
	"net/http"

	"github.com/tidewater-health/tidewater/internal/platform/httpx"
)

// OwnerResolver maps a request to the user id owning the target
// resource. ok is false when ownership cannot be determined, e.g. the
// resource does not exist. Resolvers typically query storage and must
// honor the request context.
type OwnerResolver func(r *http.Request) (ownerID int64, ok bool, err error)

// Middleware wires authorization guards for HTTP handlers. Guards are
// independently safe: each re-verifies authentication rather than
// assuming ordering in the middleware chain.
type Middleware struct {
	Logger *slog.Logger
}

// RequireAuth rejects requests without an enabled principal. The 401 is
// written directly; authorization failures past this point travel to
// the responder as typed errors.
func (m Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if CheckAuthenticated(PrincipalFromContext(r.Context())) != nil {
			httpx.WriteEnvelope(w, r, httpx.Unauthorized(""))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole allows only principals whose role is an exact member of
// the accepted set. Membership is not hierarchy-based.
func (m Middleware) RequireRole(roles ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := PrincipalFromContext(r.Context())
			if CheckAuthenticated(principal) != nil {
				httpx.WriteEnvelope(w, r, httpx.Unauthorized(""))
				return
			}
			if err := CheckRole(principal, roles...); err != nil {
				httpx.RespondError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireMinimumRole allows principals at or above the required
// hierarchy level.
func (m Middleware) RequireMinimumRole(required Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := PrincipalFromContext(r.Context())
			if CheckAuthenticated(principal) != nil {
				httpx.WriteEnvelope(w, r, httpx.Unauthorized(""))
				return
			}
			if err := CheckMinimumRole(principal, required); err != nil {
				httpx.RespondError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireOwnerOrRole allows the resource owner or any principal at or
// above the required role level. Privileged principals never trigger
// the resolver. Indeterminate ownership fails closed as a 403 so the
// guard leaks nothing about resource existence; a resolver failure is
// an internal error, not a denial.
func (m Middleware) RequireOwnerOrRole(required Role, resolve OwnerResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := PrincipalFromContext(r.Context())
			if CheckAuthenticated(principal) != nil {
				httpx.WriteEnvelope(w, r, httpx.Unauthorized(""))
				return
			}
			if HasMinimumRole(principal.Role, required) {
				next.ServeHTTP(w, r)
				return
			}
			ownerID, ok, err := resolve(r)
			if err != nil {
				httpx.RespondError(w, r, httpx.Internal(err))
				return
			}
			if !ok {
				httpx.RespondError(w, r, httpx.Forbidden(
					"Resource ownership could not be determined",
					httpx.ForbiddenDetails{ActualRole: string(principal.Role)},
				))
				return
			}
			if ownerID == principal.ID {
				next.ServeHTTP(w, r)
				return
			}
			httpx.RespondError(w, r, httpx.Forbidden("", httpx.ForbiddenDetails{
				RequiredRole: string(required),
				ActualRole:   string(principal.Role),
			}))
		})
	}
}

// CheckAuthenticated is the pure decision behind RequireAuth.
func CheckAuthenticated(p *Principal) *httpx.Error {
	if p == nil || !p.Enabled {
		return httpx.Unauthorized("")
	}
	return nil
}

// CheckRole is the pure decision behind RequireRole.
func CheckRole(p *Principal, roles ...Role) *httpx.Error {
	if err := CheckAuthenticated(p); err != nil {
		return err
	}
	for _, role := range roles {
		if p.Role == role {
			return nil
		}
	}
	required := make([]string, len(roles))
	for i, role := range roles {
		required[i] = string(role)
	}
	return httpx.Forbidden("", httpx.ForbiddenDetails{
		RequiredRoles: required,
		ActualRole:    string(p.Role),
	})
}

// CheckMinimumRole is the pure decision behind RequireMinimumRole.
func CheckMinimumRole(p *Principal, required Role) *httpx.Error {
	if err := CheckAuthenticated(p); err != nil {
		return err
	}
	if HasMinimumRole(p.Role, required) {
		return nil
	}
	return httpx.Forbidden("", httpx.ForbiddenDetails{
		RequiredRole: string(required),
		ActualRole:   string(p.Role),
	})
}
