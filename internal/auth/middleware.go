package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type contextKey string

const SessionIDKey contextKey = "session_id"

// bearerToken extracts the token from an "Authorization: Bearer ..." header.
func bearerToken(c echo.Context) (string, bool) {
	authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

// Middleware validates the session token and stores the session id in the
// echo context.
func (m *SessionManager) Middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token, ok := bearerToken(c)
		if !ok {
			return echo.NewHTTPError(http.StatusUnauthorized, "Missing or malformed Authorization header")
		}

		id, err := m.ParseToken(token)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
		}

		c.Set(string(SessionIDKey), id)
		return next(c)
	}
}

// SessionIDFromContext returns the id stored by Middleware.
func SessionIDFromContext(c echo.Context) (uuid.UUID, error) {
	id, ok := c.Get(string(SessionIDKey)).(uuid.UUID)
	if !ok {
		return uuid.Nil, errors.New("session ID not found in context")
	}
	return id, nil
}

// AdminMiddleware admits requests carrying the admin secret in
// X-Admin-Secret or as a bearer token.
func AdminMiddleware(v *AdminVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if v.Verify(c.Request().Header.Get("X-Admin-Secret")) {
				return next(c)
			}
			if token, ok := bearerToken(c); ok && v.Verify(token) {
				return next(c)
			}
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized admin access"})
		}
	}
}
