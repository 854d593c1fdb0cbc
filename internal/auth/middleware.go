package auth

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/tidewater-health/tidewater/internal/authz"
	"github.com/tidewater-health/tidewater/internal/shared"
)

// PrincipalMiddleware resolves the session's user id into an
// authz.Principal for downstream guards. Requests without a valid
// session continue unauthenticated; the guards reject them.
func PrincipalMiddleware(logger *slog.Logger, service *Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := shared.SessionFromContext(r.Context())
			if sess == nil || sess.User() == "" {
				next.ServeHTTP(w, r)
				return
			}
			userID, err := strconv.ParseInt(sess.User(), 10, 64)
			if err != nil {
				logger.Error("parse session user id", slog.String("value", sess.User()))
				next.ServeHTTP(w, r)
				return
			}
			principal, err := service.LoadPrincipal(r.Context(), userID)
			if err != nil {
				logger.Error("load principal", slog.Any("error", err), slog.Int64("user_id", userID))
				next.ServeHTTP(w, r)
				return
			}
			if principal == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := authz.ContextWithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
