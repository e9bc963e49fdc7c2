// Package identity resolves which user a request acts for.
//
// Authentication is out of scope: an upstream gateway is trusted to set the
// X-User-ID header, and this package only carries that value through the
// request context.
package identity

import (
	"context"
	"net/http"
	"regexp"
	"strings"
)

// HeaderUserID carries the authenticated user's identifier.
const HeaderUserID = "X-User-ID"

type contextKey struct{}

var validUserID = regexp.MustCompile(`^[A-Za-z0-9._@:-]{1,128}$`)

// WithUserID returns a context carrying userID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, contextKey{}, userID)
}

// UserIDFromContext returns the user set by Middleware, if any.
func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(contextKey{}).(string)
	return userID, ok && userID != ""
}

// Valid reports whether userID is an acceptable identifier.
func Valid(userID string) bool {
	return validUserID.MatchString(userID)
}

// Middleware copies a well-formed X-User-ID header into the request context.
// Requests without one pass through; handlers that need a user call Require.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(HeaderUserID))
		if userID != "" && Valid(userID) {
			r = r.WithContext(WithUserID(r.Context(), userID))
		}
		next.ServeHTTP(w, r)
	})
}

// Require rejects requests that carry no user with 401.
func Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserIDFromContext(r.Context()); !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"missing or invalid ` + HeaderUserID + ` header","code":"unauthenticated"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}
