package httputil

import (
	"context"
	"net/http"
)

// Authorizer decides whether the request context carries a capability.
// The implementation is owned by the platform's authorization subsystem;
// this module only consumes it.
type Authorizer interface {
	Allows(ctx context.Context, capability string) bool
}

// AllowAll is an Authorizer that permits every capability. It is the
// default when no authorization subsystem is wired in (local development,
// tests).
type AllowAll struct{}

// Allows always returns true.
func (AllowAll) Allows(context.Context, string) bool { return true }

// RequireCapability creates middleware gating a route group behind a
// capability check.
func RequireCapability(authz Authorizer, capability string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !authz.Allows(r.Context(), capability) {
				Error(w, http.StatusForbidden, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CORSMiddleware creates CORS middleware that handles preflight requests
// and adds appropriate CORS headers to responses.
func CORSMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	originsSet := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		originsSet[o] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if originsSet[origin] || originsSet["*"] {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}

			if r.Method == http.MethodOptions {
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				w.Header().Set("Access-Control-Max-Age", "86400")
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
