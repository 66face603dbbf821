package auth

import (
	"crypto/subtle"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// AdminVerifier checks the secret presented on admin routes, either against
// a bcrypt hash or a plain shared secret.
type AdminVerifier struct {
	hash   []byte
	secret []byte
}

// NewAdminVerifier prefers hash when both are set. A malformed hash is an error.
func NewAdminVerifier(secret []byte, hash string) (*AdminVerifier, error) {
	hash = strings.TrimSpace(hash)
	if hash != "" {
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return nil, fmt.Errorf("invalid ADMIN_SECRET_HASH: %w", err)
		}
		return &AdminVerifier{hash: []byte(hash)}, nil
	}
	if len(secret) == 0 {
		return nil, fmt.Errorf("admin secret unavailable")
	}
	return &AdminVerifier{secret: secret}, nil
}

func (v *AdminVerifier) Verify(candidate string) bool {
	if candidate == "" {
		return false
	}
	if v.hash != nil {
		return bcrypt.CompareHashAndPassword(v.hash, []byte(candidate)) == nil
	}
	return subtle.ConstantTimeCompare(v.secret, []byte(candidate)) == 1
}

// HashSecret returns a bcrypt hash suitable for ADMIN_SECRET_HASH.
func HashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing failed: %w", err)
	}
	return string(hash), nil
}
