package auth

import (
	"net/http"
)

// Cookie names.
const (
	AccessCookie  = "token"
	RefreshCookie = "refresh_token"
	StateCookie   = "oauth_state"
)

// Cookies writes session cookies. Secure should be true whenever the API
// is served over HTTPS.
type Cookies struct {
	Secure bool
}

// SetSession stores the access and refresh tokens.
//
// The refresh cookie is scoped to /auth so the browser only sends it to the
// refresh and logout endpoints, never to ordinary API calls.
func (c Cookies) SetSession(w http.ResponseWriter, access, refresh string) {
	http.SetCookie(w, c.cookie(AccessCookie, access, "/", int(AccessTTL.Seconds())))
	http.SetCookie(w, c.cookie(RefreshCookie, refresh, "/auth", int(RefreshTTL.Seconds())))
}

// ClearSession deletes both session cookies.
func (c Cookies) ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, c.cookie(AccessCookie, "", "/", -1))
	http.SetCookie(w, c.cookie(RefreshCookie, "", "/auth", -1))
}

// SetState stores the OAuth CSRF state for ten minutes.
func (c Cookies) SetState(w http.ResponseWriter, state string) {
	http.SetCookie(w, c.cookie(StateCookie, state, "/", 600))
}

// ClearState deletes the OAuth state cookie. It is single-use.
func (c Cookies) ClearState(w http.ResponseWriter) {
	http.SetCookie(w, c.cookie(StateCookie, "", "/", -1))
}

func (c Cookies) cookie(name, value, path string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
