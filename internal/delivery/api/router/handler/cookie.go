package handler

import (
	"net/http"
	"time"

	"authflow/config"

	"github.com/labstack/echo/v4"
)

// sessionCookie transports the session credential for browser clients.
type sessionCookie struct {
	name   string
	domain string
	secure bool
}

func newSessionCookie(cfg *config.Config) sessionCookie {
	return sessionCookie{
		name:   cfg.Session.CookieName,
		domain: cfg.Session.CookieDomain,
		secure: cfg.Session.CookieSecure,
	}
}

func (s sessionCookie) set(c echo.Context, token string, expiresAt *time.Time) {
	cookie := &http.Cookie{
		Name:     s.name,
		Value:    token,
		Path:     "/",
		Domain:   s.domain,
		Secure:   s.secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if expiresAt != nil {
		cookie.Expires = *expiresAt
	}
	c.SetCookie(cookie)
}

func (s sessionCookie) clear(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     s.name,
		Value:    "",
		Path:     "/",
		Domain:   s.domain,
		Secure:   s.secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
	})
}
