package middleware

import (
	"net/http"
	"strings"

	"github.com/posterloft/posterloft-backend/api/responses"
	pkgerrors "github.com/posterloft/posterloft-backend/pkg/errors"
	"github.com/posterloft/posterloft-backend/pkg/logger"
)

// RequireRole guards the admin order routes and must run after Auth. A request
// with no authenticated account is unauthorized; a signed-in account without
// the role is forbidden. An empty role forbids everyone.
func RequireRole(role string, logg *logger.Logger) func(http.Handler) http.Handler {
	role = strings.TrimSpace(role)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if UserIDFromContext(ctx) == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
				return
			}
			if role == "" || !strings.EqualFold(RoleFromContext(ctx), role) {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required").
					WithDetails(map[string]any{"required_role": role}))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
