// Package middleware provides HTTP middlewares for authentication and logging.
package middleware

import (
	"context"
	"net/http"
	"strings"
)

type ctxKey string

const userKey ctxKey = "user"

// TokenParser verifies an access token and returns the username it was issued to.
type TokenParser interface {
	ParseToken(token string) (string, error)
}

// RequireToken is a middleware that enforces bearer token authentication.
//
// The token is read from the Authorization header only. On success the token's username is stored in the
// request context for GetUserIDFromContext.
func RequireToken(tp TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := tokenFromRequest(r)
			if token == "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="portal"`)
				http.Error(w, "token required", http.StatusUnauthorized)
				return
			}
			user, err := tp.ParseToken(token)
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), userKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalToken identifies the caller when a valid token is present and
// lets the request through anonymously otherwise. A token that is present
// but invalid is still rejected.
func OptionalToken(tp TokenParser) func(http.Handler) http.Handler {
	require := RequireToken(tp)
	return func(next http.Handler) http.Handler {
		authed := require(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokenFromRequest(r) == "" {
				next.ServeHTTP(w, r)
				return
			}
			authed.ServeHTTP(w, r)
		})
	}
}

func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	return ""
}

// GetUserIDFromContext extracts the authenticated username from the request
// context. Returns an empty string for anonymous requests.
func GetUserIDFromContext(ctx context.Context) string {
	val := ctx.Value(userKey)
	if s, ok := val.(string); ok {
		return s
	}
	return ""
}
