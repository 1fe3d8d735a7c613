package prodigiwebhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	pkgerrors "github.com/posterloft/posterloft-backend/pkg/errors"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw callback body.
const SignatureHeader = "X-Fulfillment-Signature"

// SignatureVerifier checks callback signatures. With required unset, unsigned
// callbacks are accepted but a present signature must still match.
type SignatureVerifier struct {
	secret   []byte
	required bool
}

func NewSignatureVerifier(secret string, required bool) *SignatureVerifier {
	return &SignatureVerifier{secret: []byte(strings.TrimSpace(secret)), required: required}
}

// Verify returns a SIGNATURE_INVALID error when the body is not authenticated.
func (v *SignatureVerifier) Verify(payload []byte, header string) error {
	if v == nil {
		return nil
	}
	header = strings.TrimSpace(header)
	if header == "" {
		if v.required {
			return pkgerrors.New(pkgerrors.CodeSignature, "fulfillment signature missing")
		}
		return nil
	}
	if len(v.secret) == 0 {
		if v.required {
			return pkgerrors.New(pkgerrors.CodeSignature, "fulfillment signing secret not configured")
		}
		return nil
	}
	if !validSignature(payload, v.secret, header) {
		return pkgerrors.New(pkgerrors.CodeSignature, "invalid fulfillment signature")
	}
	return nil
}

// Sign computes the header value for payload. Used by tests and local tooling.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func validSignature(payload, secret []byte, header string) bool {
	header = strings.TrimPrefix(strings.ToLower(header), "sha256=")
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(header))
}
