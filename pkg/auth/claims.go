package auth

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// IdentityClaims is the token shape issued by the hosted identity provider.
// The account id travels in the standard sub claim.
type IdentityClaims struct {
	Email       string      `json:"email,omitempty"`
	Role        string      `json:"role,omitempty"`
	AppMetadata AppMetadata `json:"app_metadata"`
	jwt.RegisteredClaims
}

// AppMetadata holds provider-managed attributes the user cannot edit.
type AppMetadata struct {
	Role string `json:"role,omitempty"`
}

// Identity is the verified caller.
type Identity struct {
	AccountID string
	Email     string
	Role      string
}

// HasRole reports whether the identity carries role, case-insensitively.
func (i *Identity) HasRole(role string) bool {
	if i == nil || strings.TrimSpace(role) == "" {
		return false
	}
	return strings.EqualFold(i.Role, strings.TrimSpace(role))
}

func (c *IdentityClaims) identity() *Identity {
	role := strings.TrimSpace(c.AppMetadata.Role)
	if role == "" {
		role = strings.TrimSpace(c.Role)
	}
	return &Identity{
		AccountID: strings.TrimSpace(c.Subject),
		Email:     strings.TrimSpace(c.Email),
		Role:      role,
	}
}
