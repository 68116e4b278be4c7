package web

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ===== Bearer token primitives =====

// AuthManager mints and verifies owner-scoped HS256 bearer tokens with a
// fixed validity window.
type AuthManager struct {
	secret []byte
	ttl    time.Duration
}

func NewAuthManager(secret string, ttl time.Duration) *AuthManager {
	return &AuthManager{secret: []byte(secret), ttl: ttl}
}

type ownerClaims struct {
	jwt.RegisteredClaims
}

// Issue mints a token whose subject is the owner ID.
func (a *AuthManager) Issue(ownerID string) (string, error) {
	now := time.Now()
	claims := ownerClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   ownerID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// Verify parses a token and returns the owner ID it was issued for.
func (a *AuthManager) Verify(tok string) (string, error) {
	claims := &ownerClaims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	})
	if err != nil || !tkn.Valid || claims.Subject == "" {
		return "", errors.New("invalid token")
	}
	return claims.Subject, nil
}

// FromRequest extracts and verifies the Authorization bearer token.
func (a *AuthManager) FromRequest(r *http.Request) (string, error) {
	hdr := r.Header.Get("Authorization")
	if hdr == "" || !strings.HasPrefix(strings.ToLower(hdr), "bearer ") {
		return "", errors.New("missing token")
	}
	return a.Verify(strings.TrimSpace(hdr[7:]))
}
