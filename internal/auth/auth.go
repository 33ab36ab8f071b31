// Package auth guards mutating endpoints with a static bearer token. The
// token is never stored; only its bcrypt hash is configured.
package auth

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// TokenGuard validates Authorization: Bearer tokens against a bcrypt hash.
type TokenGuard struct {
	hash []byte
}

// NewTokenGuard returns a guard for the given bcrypt hash. An empty hash
// yields a nil guard, meaning the endpoint is open.
func NewTokenGuard(bcryptHash string) *TokenGuard {
	if bcryptHash == "" {
		return nil
	}
	return &TokenGuard{hash: []byte(bcryptHash)}
}

// HashToken produces a bcrypt hash suitable for the guard configuration.
func HashToken(token string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// Wrap enforces the bearer token on next. A nil guard passes everything
// through.
func (g *TokenGuard) Wrap(next http.Handler) http.Handler {
	if g == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		if err := bcrypt.CompareHashAndPassword(g.hash, []byte(parts[1])); err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
