package server

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	apperrors "github.com/Gwagwa94/Votooveto/internal/errors"
)

// Session keys
const (
	sessionName      = "votooveto-session"
	sessionKeyUserID = "user_id"
)

// sessionUserID extracts the authenticated user id from the session cookie.
// Returns uuid.Nil when no valid identity is present.
func (s *Server) sessionUserID(c echo.Context) uuid.UUID {
	session, err := s.sessionStore.Get(c.Request(), sessionName)
	if err != nil {
		return uuid.Nil
	}

	raw, ok := session.Values[sessionKeyUserID]
	if !ok {
		return uuid.Nil
	}

	str, ok := raw.(string)
	if !ok {
		return uuid.Nil
	}

	userID, err := uuid.Parse(str)
	if err != nil {
		return uuid.Nil
	}
	return userID
}

// requireAuth rejects requests without an authenticated identity.
func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID := s.sessionUserID(c)
		if userID == uuid.Nil {
			return apperrors.UnauthenticatedError("sign in required")
		}
		c.Set("userID", userID)
		return next(c)
	}
}

// optionalAuth attaches the identity when present; anonymous requests pass
// through with no userID set.
func (s *Server) optionalAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if userID := s.sessionUserID(c); userID != uuid.Nil {
			c.Set("userID", userID)
		}
		return next(c)
	}
}

// contextUserID reads the identity stored by the auth middleware.
func contextUserID(c echo.Context) uuid.UUID {
	if userID, ok := c.Get("userID").(uuid.UUID); ok {
		return userID
	}
	return uuid.Nil
}
