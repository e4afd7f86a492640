package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"iuran/internal/auth"
	apperrors "iuran/internal/errors"
	"iuran/internal/model"
)

func TestAuthService_Login(t *testing.T) {
	userID := uuid.New()
	activeUser := &model.User{ID: userID, Username: "budi", FullName: "Budi", Role: model.RoleJamaah, IsActive: true}

	tests := []struct {
		name          string
		username      string
		password      string
		setupMock     func(*MockUserRepository, *MockTokenStore)
		expectedError error
	}{
		{
			name:     "successful login",
			username: "budi",
			password: "password123",
			setupMock: func(mRepo *MockUserRepository, mToken *MockTokenStore) {
				mRepo.On("Authenticate", mock.Anything, "budi", "password123").Return([]model.User{{ID: userID, Username: "budi"}}, nil)
				mRepo.On("FindByID", mock.Anything, userID).Return(activeUser, nil)
				mToken.On("StoreRefreshToken", mock.Anything, mock.Anything, userID, "budi", auth.RefreshTokenExpiry).Return(nil)
			},
			expectedError: nil,
		},
		{
			name:     "invalid credentials - no rows",
			username: "budi",
			password: "wrong",
			setupMock: func(mRepo *MockUserRepository, mToken *MockTokenStore) {
				mRepo.On("Authenticate", mock.Anything, "budi", "wrong").Return([]model.User{}, nil)
			},
			expectedError: apperrors.ErrInvalidCredentials,
		},
		{
			name:     "invalid credentials - inactive user",
			username: "budi",
			password: "password123",
			setupMock: func(mRepo *MockUserRepository, mToken *MockTokenStore) {
				mRepo.On("Authenticate", mock.Anything, "budi", "password123").Return([]model.User{{ID: userID}}, nil)
				mRepo.On("FindByID", mock.Anything, userID).Return(&model.User{ID: userID, IsActive: false}, nil)
			},
			expectedError: apperrors.ErrInvalidCredentials,
		},
		{
			name:     "invalid credentials - empty password",
			username: "budi",
			password: "",
			setupMock: func(mRepo *MockUserRepository, mToken *MockTokenStore) {
			},
			expectedError: apperrors.ErrInvalidCredentials,
		},
		{
			name:     "missing procedure",
			username: "budi",
			password: "password123",
			setupMock: func(mRepo *MockUserRepository, mToken *MockTokenStore) {
				mRepo.On("Authenticate", mock.Anything, "budi", "password123").Return(nil, &pgconn.PgError{Code: "42883"})
			},
			expectedError: apperrors.ErrProcedureMissing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockUserRepository)
			mockTokenStore := new(MockTokenStore)
			tt.setupMock(mockRepo, mockTokenStore)

			jwtService := auth.NewJWTService("test-secret")
			service := NewAuthService(mockRepo, jwtService, mockTokenStore)

			accessToken, refreshToken, user, err := service.Login(context.Background(), tt.username, tt.password)

			if tt.expectedError != nil {
				assert.Error(t, err)
				assert.Equal(t, tt.expectedError, err)
				assert.Empty(t, accessToken)
				assert.Empty(t, refreshToken)
				assert.Nil(t, user)
			} else {
				assert.NoError(t, err)
				assert.NotEmpty(t, accessToken)
				assert.NotEmpty(t, refreshToken)
				assert.NotNil(t, user)
				assert.Equal(t, tt.username, user.Username)

				claims, err := jwtService.ValidateAccessToken(accessToken)
				require.NoError(t, err)
				assert.Equal(t, model.RoleJamaah, claims.Role)
			}

			mockRepo.AssertExpectations(t)
			mockTokenStore.AssertExpectations(t)
		})
	}
}

func TestAuthService_RefreshToken(t *testing.T) {
	jwtService := auth.NewJWTService("test-secret")
	user := &model.User{ID: uuid.New(), Username: "budi", Role: model.RoleJamaah, IsActive: true}
	tokenID, refreshToken, err := jwtService.GenerateRefreshToken(user)
	require.NoError(t, err)
	accessToken, err := jwtService.GenerateAccessToken(user)
	require.NoError(t, err)

	t.Run("valid refresh token", func(t *testing.T) {
		mockRepo := new(MockUserRepository)
		mockTokenStore := new(MockTokenStore)
		mockTokenStore.On("GetRefreshToken", mock.Anything, tokenID).Return(user.ID, "budi", nil)
		mockRepo.On("FindByID", mock.Anything, user.ID).Return(user, nil)

		token, err := NewAuthService(mockRepo, jwtService, mockTokenStore).RefreshToken(context.Background(), refreshToken)
		require.NoError(t, err)
		_, err = jwtService.ValidateAccessToken(token)
		assert.NoError(t, err)
	})

	t.Run("revoked refresh token", func(t *testing.T) {
		mockTokenStore := new(MockTokenStore)
		mockTokenStore.On("GetRefreshToken", mock.Anything, tokenID).Return(uuid.Nil, "", errors.New("refresh token not found"))

		_, err := NewAuthService(new(MockUserRepository), jwtService, mockTokenStore).RefreshToken(context.Background(), refreshToken)
		assert.Equal(t, apperrors.ErrInvalidRefreshToken, err)
	})

	t.Run("access token is not a refresh token", func(t *testing.T) {
		mockTokenStore := new(MockTokenStore)

		_, err := NewAuthService(new(MockUserRepository), jwtService, mockTokenStore).RefreshToken(context.Background(), accessToken)
		assert.Equal(t, apperrors.ErrInvalidRefreshToken, err)
		assert.Empty(t, mockTokenStore.Calls)
	})

	t.Run("deactivated user", func(t *testing.T) {
		mockRepo := new(MockUserRepository)
		mockTokenStore := new(MockTokenStore)
		mockTokenStore.On("GetRefreshToken", mock.Anything, tokenID).Return(user.ID, "budi", nil)
		mockTokenStore.On("DeleteRefreshToken", mock.Anything, tokenID).Return(nil)
		mockRepo.On("FindByID", mock.Anything, user.ID).Return(nil, gorm.ErrRecordNotFound)

		_, err := NewAuthService(mockRepo, jwtService, mockTokenStore).RefreshToken(context.Background(), refreshToken)
		assert.Equal(t, apperrors.ErrInvalidRefreshToken, err)
		mockTokenStore.AssertExpectations(t)
	})
}

func TestAuthService_Logout(t *testing.T) {
	jwtService := auth.NewJWTService("test-secret")
	user := &model.User{ID: uuid.New(), Username: "budi", Role: model.RoleJamaah, IsActive: true}
	tokenID, refreshToken, err := jwtService.GenerateRefreshToken(user)
	require.NoError(t, err)

	session := auth.SessionFor(user)
	session.TokenID = "access-jti"
	session.ExpiresAt = time.Now().Add(10 * time.Minute)

	mockTokenStore := new(MockTokenStore)
	mockTokenStore.On("DeleteRefreshToken", mock.Anything, tokenID).Return(nil)
	mockTokenStore.On("BlacklistAccessToken", mock.Anything, "access-jti", mock.MatchedBy(func(ttl time.Duration) bool {
		return ttl > 9*time.Minute && ttl <= 10*time.Minute
	})).Return(nil)

	err = NewAuthService(new(MockUserRepository), jwtService, mockTokenStore).Logout(context.Background(), session, refreshToken)

	require.NoError(t, err)
	assert.False(t, session.IsAuthenticated)
	assert.ErrorIs(t, session.Valid(), apperrors.ErrUnauthenticated)
	mockTokenStore.AssertExpectations(t)
}

func TestAuthService_LogoutRejectsForeignRefreshToken(t *testing.T) {
	jwtService := auth.NewJWTService("test-secret")
	owner := &model.User{ID: uuid.New(), Username: "budi", Role: model.RoleJamaah, IsActive: true}
	_, refreshToken, err := jwtService.GenerateRefreshToken(owner)
	require.NoError(t, err)

	other := auth.SessionFor(&model.User{ID: uuid.New(), Username: "siti", Role: model.RoleJamaah})
	other.TokenID = "other-jti"
	mockTokenStore := new(MockTokenStore)

	err = NewAuthService(new(MockUserRepository), jwtService, mockTokenStore).Logout(context.Background(), other, refreshToken)

	assert.ErrorIs(t, err, apperrors.ErrInvalidRefreshToken)
	mockTokenStore.AssertNotCalled(t, "DeleteRefreshToken", mock.Anything, mock.Anything)
	assert.True(t, other.IsAuthenticated)
}
