package middleware

import (
	"strings"

	"authflow/config"
	domainerrors "authflow/internal/domain/errors"
	"authflow/internal/usecase"

	"github.com/labstack/echo/v4"
)

const (
	contextKeySession = "session"
	bearerPrefix      = "Bearer "
)

// AuthMiddleware resolves the session credential from the session cookie or a Bearer header.
type AuthMiddleware struct {
	sessions   usecase.SessionUsecase
	cookieName string
}

// NewAuthMiddleware is the constructor for AuthMiddleware.
func NewAuthMiddleware(sessions usecase.SessionUsecase, cfg *config.Config) *AuthMiddleware {
	return &AuthMiddleware{sessions: sessions, cookieName: cfg.Session.CookieName}
}

// Authenticate rejects requests without a live session and stores the session on the context.
func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := m.credential(c)
		if token == "" {
			return domainerrors.ErrUnauthenticated
		}

		authed, err := m.sessions.Authenticate(c.Request().Context(), token)
		if err != nil {
			return err
		}
		c.Set(contextKeySession, authed)

		return next(c)
	}
}

// credential prefers the Authorization header over the cookie.
func (m *AuthMiddleware) credential(c echo.Context) string {
	if header := c.Request().Header.Get(echo.HeaderAuthorization); header != "" {
		if token, ok := strings.CutPrefix(header, bearerPrefix); ok {
			return strings.TrimSpace(token)
		}

		return ""
	}

	if cookie, err := c.Cookie(m.cookieName); err == nil {
		return cookie.Value
	}

	return ""
}

// SessionFromContext returns the session stored by Authenticate.
func SessionFromContext(c echo.Context) (*usecase.AuthenticatedSession, bool) {
	authed, ok := c.Get(contextKeySession).(*usecase.AuthenticatedSession)

	return authed, ok && authed != nil
}
