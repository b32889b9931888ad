// Package api implements the palimpsest HTTP API using chi.
package api

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

// Auth configures bearer authentication. A request passes when its bearer
// matches Token, or when it is an HS256 JWT signed with JWTSecret.
type Auth struct {
	Enabled   bool
	Token     string
	JWTSecret string
}

// AuthMiddleware returns middleware that enforces a. When a.Enabled is false
// every request passes through.
func AuthMiddleware(a Auth) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !a.Enabled {
				next.ServeHTTP(w, r)
				return
			}
			bearer, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || !a.accepts(bearer) {
				writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (a Auth) accepts(bearer string) bool {
	if bearer == "" {
		return false
	}
	if a.Token != "" && subtle.ConstantTimeCompare([]byte(bearer), []byte(a.Token)) == 1 {
		return true
	}
	if a.JWTSecret != "" {
		return validJWT(bearer, a.JWTSecret) == nil
	}
	return false
}

// validJWT checks signature and registered time claims.
func validJWT(tokenString, secret string) error {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return err
	}
	if !token.Valid {
		return fmt.Errorf("invalid token")
	}
	return nil
}
