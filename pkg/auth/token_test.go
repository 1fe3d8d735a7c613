package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/posterloft/posterloft-backend/pkg/config"
)

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret: "secret",
		Issuer:    "https://id.posterloft.test/auth/v1",
		Audience:  "authenticated",
		AdminRole: "admin",
	}
}

func TestSignAndVerifyIdentityToken(t *testing.T) {
	cfg := testAuthConfig()
	token, err := SignIdentityToken(cfg, time.Now(), time.Hour, Identity{AccountID: "user-1", Email: "ada@example.com", Role: "admin"})
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	verifier, err := NewVerifier(cfg)
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	identity, err := verifier.Verify(token)
	if err != nil {
		t.Fatalf("verify token: %v", err)
	}
	if identity.AccountID != "user-1" {
		t.Fatalf("expected account user-1, got %q", identity.AccountID)
	}
	if identity.Email != "ada@example.com" {
		t.Fatalf("unexpected email %q", identity.Email)
	}
	if !identity.HasRole("ADMIN") {
		t.Fatalf("expected admin role, got %q", identity.Role)
	}
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	cfg := testAuthConfig()
	verifier, err := NewVerifier(cfg)
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	other := cfg
	other.JWTSecret = "other"
	wrongSecret, _ := SignIdentityToken(other, time.Now(), time.Hour, Identity{AccountID: "user-1"})

	expired, _ := SignIdentityToken(cfg, time.Now().Add(-2*time.Hour), time.Hour, Identity{AccountID: "user-1"})

	otherIssuer := cfg
	otherIssuer.Issuer = "https://elsewhere.test"
	wrongIssuer, _ := SignIdentityToken(otherIssuer, time.Now(), time.Hour, Identity{AccountID: "user-1"})

	noSubject, _ := SignIdentityToken(cfg, time.Now(), time.Hour, Identity{})

	noneToken, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "user-1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	cases := map[string]string{
		"empty":        "",
		"garbage":      "not-a-jwt",
		"wrong secret": wrongSecret,
		"expired":      expired,
		"wrong issuer": wrongIssuer,
		"no subject":   noSubject,
		"alg none":     noneToken,
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := verifier.Verify(token); err == nil {
				t.Fatalf("expected %s token to be rejected", name)
			}
		})
	}
}

func TestVerifyFallsBackToTopLevelRole(t *testing.T) {
	cfg := testAuthConfig()
	claims := IdentityClaims{
		Role: "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-2",
			Issuer:    cfg.Issuer,
			Audience:  jwt.ClaimStrings{cfg.Audience},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	verifier, _ := NewVerifier(cfg)
	identity, err := verifier.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if identity.Role != "authenticated" {
		t.Fatalf("expected top-level role, got %q", identity.Role)
	}
	if identity.HasRole("admin") {
		t.Fatalf("authenticated user must not be admin")
	}
}

func TestNewVerifierRequiresSecret(t *testing.T) {
	if _, err := NewVerifier(config.AuthConfig{}); err == nil {
		t.Fatal("expected error without secret")
	}
}
