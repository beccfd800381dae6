package auth

import (
	"encoding/json"
	"net/http"
	"time"
)

// SessionHandler serves the viewer identity and sign-out.
type SessionHandler struct {
	secret   []byte
	denylist *Denylist
}

// NewSessionHandler constructs a SessionHandler.
func NewSessionHandler(secret []byte, denylist *Denylist) *SessionHandler {
	return &SessionHandler{secret: secret, denylist: denylist}
}

// Me handles GET /api/v1/me.
func (h *SessionHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(identity)
}

// Logout handles POST /api/v1/auth/logout. The token is denied until it
// expires and the session cookie is cleared.
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := extractToken(r)
	claims, err := ParseJWT(token, h.secret)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var expiresAt time.Time
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	h.denylist.Revoke(claims.TokenKey(token), expiresAt)

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}
