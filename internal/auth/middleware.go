package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/medipos/medipos/internal/platform/httpx"
)

type contextKey struct{}

var principalKey contextKey

// ContextWithPrincipal attaches a principal to the context.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the request principal, or nil when absent.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey).(*Principal)
	return p
}

// Middleware authenticates requests via the Authorization bearer credential.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// Require rejects requests without a valid credential.
func (m Middleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		credential := bearerCredential(r)
		if credential == "" {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing credentials")
			return
		}
		principal, err := m.Service.Resolve(r.Context(), credential)
		if err != nil {
			if m.Logger != nil {
				m.Logger.Warn("credential rejected", slog.String("path", r.URL.Path))
			}
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid credentials")
			return
		}
		ctx := ContextWithPrincipal(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin additionally enforces the admin role.
func (m Middleware) RequireAdmin(next http.Handler) http.Handler {
	return m.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := PrincipalFromContext(r.Context())
		if p == nil || !p.IsAdmin() {
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	}))
}

func bearerCredential(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
