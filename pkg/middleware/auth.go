// Package middleware provides HTTP middleware for admin authentication.
package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
)

type contextKey string

const adminKey contextKey = "admin"

// AdminAuth recognizes administrators by bearer token. Tokens are static
// configuration; each is compared in constant time.
type AdminAuth struct {
	tokens []string
}

func NewAdminAuth(tokens []string) *AdminAuth {
	return &AdminAuth{tokens: tokens}
}

// Detect marks the request context as admin when a valid bearer token is
// present, and passes everything through either way. Handlers that only
// need to know whether the caller is an admin use this.
func (m *AdminAuth) Detect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.validBearer(r) {
			r = r.WithContext(context.WithValue(r.Context(), adminKey, true))
		}
		next.ServeHTTP(w, r)
	})
}

// Require rejects requests without a valid admin bearer token.
func (m *AdminAuth) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.validBearer(r) {
			unauthorizedResponse(w, "admin token required")
			return
		}
		ctx := context.WithValue(r.Context(), adminKey, true)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AdminAuth) validBearer(r *http.Request) bool {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return false
	}

	for _, token := range m.tokens {
		if len(token) == len(parts[1]) &&
			subtle.ConstantTimeCompare([]byte(token), []byte(parts[1])) == 1 {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the request was made by a recognized admin.
func IsAdmin(r *http.Request) bool {
	admin, _ := r.Context().Value(adminKey).(bool)
	return admin
}

func unauthorizedResponse(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + message + `"}`))
}
