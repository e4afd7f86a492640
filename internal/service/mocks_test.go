package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"iuran/internal/cache"
	"iuran/internal/model"
	"iuran/internal/repository"
)

// noCache is a disabled cache; every read misses and writes are dropped.
var noCache cache.Store = (*cache.Client)(nil)

// MockUserRepository is a mock implementation of UserRepository.
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Authenticate(ctx context.Context, username, password string) ([]model.User, error) {
	args := m.Called(ctx, username, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.User), args.Error(1)
}

func (m *MockUserRepository) AddNewUser(ctx context.Context, username, fullName, password string, role model.Role) error {
	args := m.Called(ctx, username, fullName, password, role)
	return args.Error(0)
}

func (m *MockUserRepository) UpdateUserWithPassword(ctx context.Context, id uuid.UUID, username, fullName string, role model.Role, password string) (bool, error) {
	args := m.Called(ctx, id, username, fullName, role, password)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserRepository) SoftDeleteUser(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserRepository) GetActiveUsers(ctx context.Context) ([]model.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.User), args.Error(1)
}

func (m *MockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) (int64, error) {
	args := m.Called(ctx, id, fields)
	return args.Get(0).(int64), args.Error(1)
}

// MockSubmissionRepository is a mock implementation of SubmissionRepository.
type MockSubmissionRepository struct {
	mock.Mock
}

func (m *MockSubmissionRepository) ListWithUsers(ctx context.Context) ([]model.IuranSubmission, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.IuranSubmission), args.Error(1)
}

func (m *MockSubmissionRepository) DashboardStats(ctx context.Context) ([]model.DashboardStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.DashboardStats), args.Error(1)
}

func (m *MockSubmissionRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.IuranSubmission, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.IuranSubmission), args.Error(1)
}

func (m *MockSubmissionRepository) FindByUserAndMonth(ctx context.Context, userID uuid.UUID, month time.Time) (*model.IuranSubmission, error) {
	args := m.Called(ctx, userID, month)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.IuranSubmission), args.Error(1)
}

func (m *MockSubmissionRepository) Upsert(ctx context.Context, submission *model.IuranSubmission) error {
	args := m.Called(ctx, submission)
	return args.Error(0)
}

func (m *MockSubmissionRepository) InsertIfAbsent(ctx context.Context, submission *model.IuranSubmission) (bool, error) {
	args := m.Called(ctx, submission)
	return args.Bool(0), args.Error(1)
}

func (m *MockSubmissionRepository) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) (int64, error) {
	args := m.Called(ctx, id, fields)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockSubmissionRepository) DeleteSubmission(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

// MockMaintenanceRepository is a mock implementation of MaintenanceRepository.
// WithTransaction runs fn against the mock itself.
type MockMaintenanceRepository struct {
	mock.Mock
}

func (m *MockMaintenanceRepository) ListAllUsers(ctx context.Context) ([]model.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.User), args.Error(1)
}

func (m *MockMaintenanceRepository) ListAllSubmissions(ctx context.Context) ([]model.IuranSubmission, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.IuranSubmission), args.Error(1)
}

func (m *MockMaintenanceRepository) UpsertUsers(ctx context.Context, users []model.User) error {
	args := m.Called(ctx, users)
	return args.Error(0)
}

func (m *MockMaintenanceRepository) UpsertSubmissions(ctx context.Context, submissions []model.IuranSubmission) error {
	args := m.Called(ctx, submissions)
	return args.Error(0)
}

func (m *MockMaintenanceRepository) DeleteAllSubmissions(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockMaintenanceRepository) DeactivateMembers(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockMaintenanceRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context, repo repository.MaintenanceRepository) error) error {
	m.Called(ctx)
	return fn(ctx, m)
}

// MockTokenStore is a mock implementation of TokenStoreInterface.
type MockTokenStore struct {
	mock.Mock
}

func (m *MockTokenStore) StoreRefreshToken(ctx context.Context, tokenID string, userID uuid.UUID, username string, ttl time.Duration) error {
	args := m.Called(ctx, tokenID, userID, username, ttl)
	return args.Error(0)
}

func (m *MockTokenStore) GetRefreshToken(ctx context.Context, tokenID string) (uuid.UUID, string, error) {
	args := m.Called(ctx, tokenID)
	return args.Get(0).(uuid.UUID), args.String(1), args.Error(2)
}

func (m *MockTokenStore) DeleteRefreshToken(ctx context.Context, tokenID string) error {
	args := m.Called(ctx, tokenID)
	return args.Error(0)
}

func (m *MockTokenStore) BlacklistAccessToken(ctx context.Context, tokenID string, ttl time.Duration) error {
	args := m.Called(ctx, tokenID, ttl)
	return args.Error(0)
}

func (m *MockTokenStore) IsAccessTokenBlacklisted(ctx context.Context, tokenID string) (bool, error) {
	args := m.Called(ctx, tokenID)
	return args.Bool(0), args.Error(1)
}

// MockCache is a mock implementation of cache.Store. Reads always miss.
type MockCache struct {
	mock.Mock
}

func (m *MockCache) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, nil
}

func (m *MockCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return nil
}

func (m *MockCache) Delete(ctx context.Context, keys ...string) error {
	args := m.Called(ctx, keys)
	return args.Error(0)
}

func (m *MockCache) InvalidateGroups(ctx context.Context, groups ...string) error {
	args := m.Called(ctx, groups)
	return args.Error(0)
}
