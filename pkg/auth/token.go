package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/posterloft/posterloft-backend/pkg/config"
)

var jwtSigningMethod = jwt.SigningMethodHS256

var errSecretRequired = errors.New("jwt secret is required")

// Verifier checks bearer tokens minted by the identity provider.
type Verifier struct {
	secret   []byte
	issuer   string
	audience string
	leeway   time.Duration
}

// NewVerifier builds a verifier from the auth config. Issuer and audience are
// only enforced when configured.
func NewVerifier(cfg config.AuthConfig) (*Verifier, error) {
	secret := strings.TrimSpace(cfg.JWTSecret)
	if secret == "" {
		return nil, errSecretRequired
	}
	return &Verifier{
		secret:   []byte(secret),
		issuer:   strings.TrimSpace(cfg.Issuer),
		audience: strings.TrimSpace(cfg.Audience),
		leeway:   30 * time.Second,
	}, nil
}

// Verify validates the token and returns the caller identity.
func (v *Verifier) Verify(tokenString string) (*Identity, error) {
	if v == nil {
		return nil, errSecretRequired
	}
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, errors.New("token is required")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwtSigningMethod.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := &IdentityClaims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwtSigningMethod {
				return nil, fmt.Errorf("unexpected signing method %s", token.Header["alg"])
			}
			return v.secret, nil
		},
		opts...,
	)
	if err != nil {
		return nil, err
	}

	identity := claims.identity()
	if identity.AccountID == "" {
		return nil, errors.New("token subject is required")
	}
	return identity, nil
}

// SignIdentityToken mints a token the verifier accepts. It exists for local
// tooling and tests; production tokens come from the identity provider.
func SignIdentityToken(cfg config.AuthConfig, now time.Time, ttl time.Duration, identity Identity) (string, error) {
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return "", errSecretRequired
	}
	if ttl <= 0 {
		return "", errors.New("token ttl must be positive")
	}

	claims := IdentityClaims{
		Email:       identity.Email,
		AppMetadata: AppMetadata{Role: identity.Role},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.AccountID,
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if aud := strings.TrimSpace(cfg.Audience); aud != "" {
		claims.Audience = jwt.ClaimStrings{aud}
	}

	token := jwt.NewWithClaims(jwtSigningMethod, claims)
	signed, err := token.SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}
