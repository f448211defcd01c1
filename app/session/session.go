// Package session issues the anonymous cart cookie.
package session

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	CookieName = "cart_session"
	cookieTTL  = 30 * 24 * time.Hour
)

// ID returns the cart session id sent by the client, or "".
func ID(r *http.Request) string {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return ""
	}
	if _, err := uuid.Parse(c.Value); err != nil {
		return ""
	}
	return c.Value
}

// Ensure returns the existing session id or issues a new cookie.
func Ensure(w http.ResponseWriter, r *http.Request) string {
	if id := ID(r); id != "" {
		return id
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		Expires:  time.Now().Add(cookieTTL),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// Clear expires the cookie, e.g. once the cart was merged into a user cart.
func Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}
