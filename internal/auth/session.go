package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	apperrors "iuran/internal/errors"
	"iuran/internal/model"
)

const sessionContextKey = "session"

// SessionUser is the identity carried by a session.
type SessionUser struct {
	ID       uuid.UUID  `json:"id"`
	Username string     `json:"username"`
	FullName string     `json:"full_name"`
	Role     model.Role `json:"role"`
}

// Session is the authenticated identity passed explicitly through access-layer calls.
// It is built from a verified access token and cleared at logout.
type Session struct {
	User            SessionUser `json:"user"`
	IsAuthenticated bool        `json:"isAuthenticated"`
	TokenID         string      `json:"-"`
	ExpiresAt       time.Time   `json:"expires_at"`
}

// NewSession builds a session from validated claims.
func NewSession(claims *Claims) *Session {
	if claims == nil {
		return &Session{}
	}
	s := &Session{
		User: SessionUser{
			ID:       claims.UserID,
			Username: claims.Username,
			FullName: claims.FullName,
			Role:     claims.Role,
		},
		IsAuthenticated: true,
		TokenID:         claims.ID,
	}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
	}
	return s
}

// SessionFor builds a session for a user without a token, used by binaries and tests.
func SessionFor(user *model.User) *Session {
	return &Session{
		User: SessionUser{
			ID:       user.ID,
			Username: user.Username,
			FullName: user.FullName,
			Role:     user.Role,
		},
		IsAuthenticated: true,
	}
}

// Clear drops the identity; the session is unauthenticated afterwards.
func (s *Session) Clear() {
	if s == nil {
		return
	}
	*s = Session{}
}

// Valid returns ErrUnauthenticated unless the session carries an identity.
func (s *Session) Valid() error {
	if s == nil || !s.IsAuthenticated || s.User.ID == uuid.Nil {
		return apperrors.ErrUnauthenticated
	}
	return nil
}

// Role returns the session role, empty when unauthenticated.
func (s *Session) Role() model.Role {
	if s == nil {
		return ""
	}
	return s.User.Role
}

// RemainingTTL is the time left before the access token expires.
func (s *Session) RemainingTTL() time.Duration {
	if s == nil || s.ExpiresAt.IsZero() {
		return 0
	}
	return time.Until(s.ExpiresAt)
}

// SetSession stores the session on the request context.
func SetSession(c echo.Context, s *Session) {
	c.Set(sessionContextKey, s)
}

// SessionFromContext returns the request session or an unauthenticated one.
func SessionFromContext(c echo.Context) *Session {
	if s, ok := c.Get(sessionContextKey).(*Session); ok && s != nil {
		return s
	}
	return &Session{}
}
