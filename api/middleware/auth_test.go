package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/posterloft/posterloft-backend/pkg/auth"
	"github.com/posterloft/posterloft-backend/pkg/config"
)

func testVerifier(t *testing.T) (*auth.Verifier, config.AuthConfig) {
	t.Helper()
	cfg := config.AuthConfig{JWTSecret: "secret", Issuer: "issuer", AdminRole: "admin"}
	verifier, err := auth.NewVerifier(cfg)
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	return verifier, cfg
}

func mintTestToken(t *testing.T, cfg config.AuthConfig, identity auth.Identity) string {
	t.Helper()
	token, err := auth.SignIdentityToken(cfg, time.Now(), time.Hour, identity)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthRejectsMissingToken(t *testing.T) {
	verifier, _ := testVerifier(t)
	handler := Auth(verifier, nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthRejectsInvalidToken(t *testing.T) {
	verifier, _ := testVerifier(t)
	handler := Auth(verifier, nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer invalid")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthAllowsValidToken(t *testing.T) {
	verifier, cfg := testVerifier(t)
	token := mintTestToken(t, cfg, auth.Identity{AccountID: "user-1", Email: "ada@example.com", Role: "admin"})

	var captured struct {
		user  string
		role  string
		email string
	}
	handler := Auth(verifier, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.user = UserIDFromContext(r.Context())
		captured.role = RoleFromContext(r.Context())
		captured.email = EmailFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if captured.user != "user-1" {
		t.Fatalf("expected user-1 in context, got %q", captured.user)
	}
	if captured.role != "admin" {
		t.Fatalf("expected role admin got %s", captured.role)
	}
	if captured.email != "ada@example.com" {
		t.Fatalf("expected email in context, got %q", captured.email)
	}
}

func TestOptionalAuthLetsGuestsThrough(t *testing.T) {
	verifier, cfg := testVerifier(t)

	var user string
	handler := OptionalAuth(verifier, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	for name, header := range map[string]string{
		"no header": "",
		"garbage":   "Bearer nope",
	} {
		t.Run(name, func(t *testing.T) {
			user = "unset"
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			resp := httptest.NewRecorder()
			handler.ServeHTTP(resp, req)
			if resp.Code != http.StatusOK {
				t.Fatalf("expected 200 got %d", resp.Code)
			}
			if user != "" {
				t.Fatalf("guest request must not carry a user id, got %q", user)
			}
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer "+mintTestToken(t, cfg, auth.Identity{AccountID: "user-7"}))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if user != "user-7" {
		t.Fatalf("expected user-7, got %q", user)
	}
}

func TestRequireRole(t *testing.T) {
	verifier, cfg := testVerifier(t)
	handler := Auth(verifier, nil)(RequireRole("admin", nil)(okHandler()))

	cases := []struct {
		role string
		want int
	}{
		{role: "admin", want: http.StatusOK},
		{role: "ADMIN", want: http.StatusOK},
		{role: "authenticated", want: http.StatusForbidden},
		{role: "", want: http.StatusForbidden},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("Authorization", "Bearer "+mintTestToken(t, cfg, auth.Identity{AccountID: "user-1", Role: tc.role}))
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != tc.want {
			t.Fatalf("role %q: expected %d got %d", tc.role, tc.want, resp.Code)
		}
	}
}
