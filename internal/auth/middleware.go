package auth

import (
	"net/http"
	"strings"
)

// SessionCookie carries the identity provider token for browser sessions.
const SessionCookie = "gg_session"

// Middleware validates JWTs and enforces RBAC.
type Middleware struct {
	Secret   []byte
	Policy   Policy
	Denylist *Denylist
}

// NewMiddleware constructs an auth middleware.
func NewMiddleware(secret []byte, policy Policy, denylist *Denylist) *Middleware {
	return &Middleware{Secret: secret, Policy: policy, Denylist: denylist}
}

// Wrap applies auth and RBAC to the handler.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Policy.IsExempt(r) {
			next.ServeHTTP(w, r)
			return
		}

		required, ok := m.Policy.RequiredRole(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		token := extractToken(r)
		claims, err := ParseJWT(token, m.Secret)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if m.Denylist.Revoked(claims.TokenKey(token)) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		role, _ := NormalizeRole(claims.Role)
		ctx := WithIdentity(r.Context(), Identity{
			Subject: claims.Subject,
			Email:   claims.Email,
			Name:    claims.Name,
			Role:    role,
		})
		if !RoleAtLeast(role, required) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractToken prefers the Authorization header over the session cookie.
func extractToken(r *http.Request) string {
	if token := extractBearer(r); token != "" {
		return token
	}
	if r == nil {
		return ""
	}
	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(cookie.Value)
}

func extractBearer(r *http.Request) string {
	if r == nil {
		return ""
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.Fields(header)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
