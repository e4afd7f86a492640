package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	apperrors "iuran/internal/errors"
	"iuran/internal/model"
)

const claimsContextKey = "user"

// JWTMiddleware verifies the bearer token and stores its *Claims under "user".
func JWTMiddleware(jwtService *JWTService) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		ContextKey:  claimsContextKey,
		TokenLookup: "header:" + echo.HeaderAuthorization + ":Bearer ",
		ParseTokenFunc: func(c echo.Context, auth string) (interface{}, error) {
			return jwtService.ValidateAccessToken(auth)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusUnauthorized, apperrors.ErrorResponse{
				Error: "invalid or missing access token",
				Code:  "UNAUTHENTICATED",
			})
		},
	})
}

// UserLoader returns the current state of an account.
type UserLoader interface {
	GetUser(ctx context.Context, id uuid.UUID) (*model.User, error)
}

// SessionMiddleware turns verified claims into a Session, rejecting blacklisted tokens
// and accounts that were deactivated after the token was issued. Role and names come
// from the live account, so a role change applies before the token expires.
func SessionMiddleware(tokenStore TokenStoreInterface, users UserLoader) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, ok := c.Get(claimsContextKey).(*Claims)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, apperrors.ErrorResponse{
					Error: apperrors.ErrUnauthenticated.Error(),
					Code:  "UNAUTHENTICATED",
				})
			}

			ctx := c.Request().Context()
			blacklisted, _ := tokenStore.IsAccessTokenBlacklisted(ctx, claims.ID)
			if blacklisted {
				return sessionRevoked()
			}

			user, err := users.GetUser(ctx, claims.UserID)
			if err != nil {
				if errors.Is(err, apperrors.ErrUserNotFound) {
					return sessionRevoked()
				}
				httpErr := apperrors.MapErrorToHTTP(err)
				return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse()).SetInternal(err)
			}
			if !user.IsActive {
				return sessionRevoked()
			}

			session := NewSession(claims)
			session.User.Username = user.Username
			session.User.FullName = user.FullName
			session.User.Role = user.Role
			SetSession(c, session)
			return next(c)
		}
	}
}

func sessionRevoked() *echo.HTTPError {
	return echo.NewHTTPError(http.StatusUnauthorized, apperrors.ErrorResponse{
		Error: "session has ended, log in again",
		Code:  "SESSION_REVOKED",
	})
}

// RequireRoles gates a route group to the given roles.
func RequireRoles(roles ...model.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := RequireRole(SessionFromContext(c), roles...); err != nil {
				httpErr := apperrors.MapErrorToHTTP(err)
				return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
			}
			return next(c)
		}
	}
}
