package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/posterloft/posterloft-backend/api/responses"
	pkgauth "github.com/posterloft/posterloft-backend/pkg/auth"
	pkgerrors "github.com/posterloft/posterloft-backend/pkg/errors"
	"github.com/posterloft/posterloft-backend/pkg/logger"
)

// TokenVerifier validates identity-provider bearer tokens.
type TokenVerifier interface {
	Verify(token string) (*pkgauth.Identity, error)
}

// Auth requires a valid bearer token and seeds the request context with the identity.
func Auth(verifier TokenVerifier, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}
			if verifier == nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "token verifier unavailable"))
				return
			}

			identity, err := verifier.Verify(token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), identity, logg)))
		})
	}
}

// OptionalAuth attaches the identity when a valid bearer token is present and
// otherwise lets the request through as a guest.
func OptionalAuth(verifier TokenVerifier, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" || verifier == nil {
				next.ServeHTTP(w, r)
				return
			}

			identity, err := verifier.Verify(token)
			if err != nil {
				if logg != nil {
					logg.Warn(r.Context(), "ignoring invalid bearer token on guest route")
				}
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), identity, logg)))
		})
	}
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(raw), "bearer ") {
		return strings.TrimSpace(raw[7:])
	}
	return raw
}

func withIdentity(ctx context.Context, identity *pkgauth.Identity, logg *logger.Logger) context.Context {
	ctx = context.WithValue(ctx, ctxUserID, identity.AccountID)
	ctx = context.WithValue(ctx, ctxRole, identity.Role)
	ctx = context.WithValue(ctx, ctxEmail, identity.Email)
	if logg != nil {
		ctx = logg.WithAccountID(ctx, identity.AccountID)
		if identity.Role != "" {
			ctx = logg.WithField(ctx, "actor_role", identity.Role)
		}
	}
	return ctx
}
