package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "iuran/internal/errors"
	"iuran/internal/model"
)

// memoryStore is a map-backed cache.Store.
type memoryStore struct {
	data map[string][]byte
}

func newMemoryStore() *memoryStore { return &memoryStore{data: make(map[string][]byte)} }

func (m *memoryStore) Get(ctx context.Context, key string) ([]byte, error) { return m.data[key], nil }

func (m *memoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.data[key] = value
	return nil
}

func (m *memoryStore) Delete(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memoryStore) InvalidateGroups(ctx context.Context, groups ...string) error { return nil }

// userTable is a map-backed UserLoader.
type userTable map[uuid.UUID]*model.User

func (u userTable) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, ok := u[id]
	if !ok {
		return nil, apperrors.ErrUserNotFound
	}
	clone := *user
	return &clone, nil
}

func newSecuredEcho(jwtService *JWTService, store TokenStoreInterface, users UserLoader, roles ...model.Role) *echo.Echo {
	e := echo.New()
	g := e.Group("", JWTMiddleware(jwtService), SessionMiddleware(store, users))
	if len(roles) > 0 {
		g.Use(RequireRoles(roles...))
	}
	g.GET("/me", func(c echo.Context) error {
		return c.JSON(http.StatusOK, SessionFromContext(c))
	})
	return e
}

func doRequest(e *echo.Echo, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestSessionMiddleware(t *testing.T) {
	jwtService := NewJWTService("test-secret")
	store := NewTokenStore(newMemoryStore())
	user := &model.User{ID: uuid.New(), Username: "budi", FullName: "Budi", Role: model.RoleJamaah, IsActive: true}
	users := userTable{user.ID: user}

	access, err := jwtService.GenerateAccessToken(user)
	require.NoError(t, err)
	_, refresh, err := jwtService.GenerateRefreshToken(user)
	require.NoError(t, err)

	t.Run("valid token yields a session", func(t *testing.T) {
		rec := doRequest(newSecuredEcho(jwtService, store, users), access)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"username":"budi"`)
		assert.Contains(t, rec.Body.String(), `"isAuthenticated":true`)
	})

	t.Run("missing token", func(t *testing.T) {
		rec := doRequest(newSecuredEcho(jwtService, store, users), "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("refresh token is not a bearer token", func(t *testing.T) {
		rec := doRequest(newSecuredEcho(jwtService, store, users), refresh)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("role gate", func(t *testing.T) {
		rec := doRequest(newSecuredEcho(jwtService, store, users, model.RoleAdmin), access)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("role comes from the live account", func(t *testing.T) {
		promoted := *user
		promoted.Role = model.RoleAdmin
		rec := doRequest(newSecuredEcho(jwtService, store, userTable{user.ID: &promoted}, model.RoleAdmin), access)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"role":"admin"`)
	})

	t.Run("deactivated account is rejected before token expiry", func(t *testing.T) {
		deactivated := *user
		deactivated.IsActive = false
		rec := doRequest(newSecuredEcho(jwtService, store, userTable{user.ID: &deactivated}), access)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "SESSION_REVOKED")
	})

	t.Run("deleted account is rejected", func(t *testing.T) {
		rec := doRequest(newSecuredEcho(jwtService, store, userTable{}), access)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "SESSION_REVOKED")
	})

	t.Run("blacklisted token", func(t *testing.T) {
		claims, err := jwtService.ValidateToken(access)
		require.NoError(t, err)
		require.NoError(t, store.BlacklistAccessToken(context.Background(), claims.ID, time.Minute))

		rec := doRequest(newSecuredEcho(jwtService, store, users), access)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "SESSION_REVOKED")
	})
}

func TestSession(t *testing.T) {
	s := SessionFor(&model.User{ID: uuid.New(), Username: "budi", Role: model.RoleAdmin})
	assert.NoError(t, s.Valid())
	assert.Equal(t, model.RoleAdmin, s.Role())
	assert.Zero(t, s.RemainingTTL())

	s.Clear()
	assert.Error(t, s.Valid())
	assert.Equal(t, model.Role(""), s.Role())

	var nilSession *Session
	assert.Error(t, nilSession.Valid())
	assert.NotPanics(t, nilSession.Clear)
}

func TestTokenStore(t *testing.T) {
	store := NewTokenStore(newMemoryStore())
	ctx := context.Background()
	userID := uuid.New()

	require.NoError(t, store.StoreRefreshToken(ctx, "jti-1", userID, "budi", time.Hour))
	gotID, gotName, err := store.GetRefreshToken(ctx, "jti-1")
	require.NoError(t, err)
	assert.Equal(t, userID, gotID)
	assert.Equal(t, "budi", gotName)

	require.NoError(t, store.DeleteRefreshToken(ctx, "jti-1"))
	_, _, err = store.GetRefreshToken(ctx, "jti-1")
	assert.Error(t, err)

	require.NoError(t, store.BlacklistAccessToken(ctx, "expired", 0))
	blacklisted, _ := store.IsAccessTokenBlacklisted(ctx, "expired")
	assert.False(t, blacklisted)
}
