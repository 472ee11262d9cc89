package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const adminClaimsKey contextKey = "adminClaims"

type authError string

func (e authError) Error() string { return string(e) }

const (
	errMissingToken = authError("staff token required")
	errInvalidToken = authError("staff token rejected")
)

// AdminJWT gates the staff console endpoints behind an HMAC-signed bearer
// token. An empty secret disables admin access entirely rather than leaving
// the surface open.
func AdminJWT(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				http.Error(w, "staff console access is not configured", http.StatusUnauthorized)
				return
			}
			claims, err := parseAdminToken(r.Header.Get("Authorization"), secret)
			if err != nil {
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), adminClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func parseAdminToken(header, secret string) (jwt.RegisteredClaims, error) {
	claims := jwt.RegisteredClaims{}
	raw, found := strings.CutPrefix(header, "Bearer ")
	if !found || raw == "" {
		return claims, errMissingToken
	}
	token, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
	if err != nil || !token.Valid {
		return claims, errInvalidToken
	}
	return claims, nil
}

// AdminClaimsFromContext returns the verified staff token claims if present.
func AdminClaimsFromContext(ctx context.Context) (jwt.RegisteredClaims, bool) {
	claims, ok := ctx.Value(adminClaimsKey).(jwt.RegisteredClaims)
	return claims, ok
}
