package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"iuran/internal/auth"
	apperrors "iuran/internal/errors"
	"iuran/internal/model"
	"iuran/internal/repository"
)

// AuthService handles authentication operations.
type AuthService interface {
	Login(ctx context.Context, username, password string) (accessToken, refreshToken string, user *model.User, err error)
	RefreshToken(ctx context.Context, refreshToken string) (accessToken string, err error)
	Logout(ctx context.Context, session *auth.Session, refreshToken string) error
}

type authService struct {
	userRepo   repository.UserRepository
	jwtService *auth.JWTService
	tokenStore auth.TokenStoreInterface
}

// NewAuthService creates a new authentication service.
func NewAuthService(userRepo repository.UserRepository, jwtService *auth.JWTService, tokenStore auth.TokenStoreInterface) AuthService {
	return &authService{
		userRepo:   userRepo,
		jwtService: jwtService,
		tokenStore: tokenStore,
	}
}

// Login verifies credentials through the authentication procedure and issues tokens.
// Password hashing and comparison happen inside the procedure.
func (s *authService) Login(ctx context.Context, username, password string) (accessToken, refreshToken string, user *model.User, err error) {
	if username == "" || password == "" {
		return "", "", nil, apperrors.ErrInvalidCredentials
	}

	matches, err := s.userRepo.Authenticate(ctx, username, password)
	if err != nil {
		if repository.IsUndefinedFunction(err) {
			return "", "", nil, apperrors.ErrProcedureMissing
		}
		return "", "", nil, fmt.Errorf("authenticate: %w", err)
	}
	if len(matches) == 0 || matches[0].ID == uuid.Nil {
		return "", "", nil, apperrors.ErrInvalidCredentials
	}

	// The procedure row may be partial; role and activity come from the table.
	user, err = s.userRepo.FindByID(ctx, matches[0].ID)
	if err != nil || !user.IsActive {
		return "", "", nil, apperrors.ErrInvalidCredentials
	}

	accessToken, err = s.jwtService.GenerateAccessToken(user)
	if err != nil {
		return "", "", nil, fmt.Errorf("generate access token: %w", err)
	}

	tokenID, refreshToken, err := s.jwtService.GenerateRefreshToken(user)
	if err != nil {
		return "", "", nil, fmt.Errorf("generate refresh token: %w", err)
	}

	if err := s.tokenStore.StoreRefreshToken(ctx, tokenID, user.ID, user.Username, auth.RefreshTokenExpiry); err != nil {
		return "", "", nil, fmt.Errorf("store refresh token: %w", err)
	}

	return accessToken, refreshToken, user, nil
}

// RefreshToken validates a refresh token and returns a new access token.
func (s *authService) RefreshToken(ctx context.Context, refreshToken string) (accessToken string, err error) {
	claims, err := s.jwtService.ValidateRefreshToken(refreshToken)
	if err != nil {
		return "", apperrors.ErrInvalidRefreshToken
	}

	storedUserID, storedUsername, err := s.tokenStore.GetRefreshToken(ctx, claims.ID)
	if err != nil {
		return "", apperrors.ErrInvalidRefreshToken
	}
	if storedUserID != claims.UserID || storedUsername != claims.Username {
		return "", apperrors.ErrInvalidRefreshToken
	}

	// Reload so a role change or deactivation takes effect on the next token.
	user, err := s.userRepo.FindByID(ctx, claims.UserID)
	if err != nil || !user.IsActive {
		_ = s.tokenStore.DeleteRefreshToken(ctx, claims.ID)
		return "", apperrors.ErrInvalidRefreshToken
	}

	accessToken, err = s.jwtService.GenerateAccessToken(user)
	if err != nil {
		return "", fmt.Errorf("generate access token: %w", err)
	}
	return accessToken, nil
}

// Logout revokes the refresh token, blacklists the current access token and clears the session.
func (s *authService) Logout(ctx context.Context, session *auth.Session, refreshToken string) error {
	if refreshToken != "" {
		claims, err := s.jwtService.ValidateRefreshToken(refreshToken)
		if err != nil {
			return apperrors.ErrInvalidRefreshToken
		}
		// a session may only revoke its own refresh token
		if session == nil || claims.UserID != session.User.ID {
			return apperrors.ErrInvalidRefreshToken
		}
		if err := s.tokenStore.DeleteRefreshToken(ctx, claims.ID); err != nil {
			return fmt.Errorf("delete refresh token: %w", err)
		}
	}

	if session != nil && session.TokenID != "" {
		if err := s.tokenStore.BlacklistAccessToken(ctx, session.TokenID, session.RemainingTTL()); err != nil {
			return fmt.Errorf("blacklist access token: %w", err)
		}
	}

	session.Clear()
	return nil
}
