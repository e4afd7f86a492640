package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	apperrors "iuran/internal/errors"
	"iuran/internal/model"
)

func newTestMaintenanceService(repo *MockMaintenanceRepository) *maintenanceService {
	return &maintenanceService{repo: repo, cache: noCache, now: func() time.Time { return fixedNow }}
}

func TestMaintenanceService_Backup(t *testing.T) {
	users := []model.User{{ID: uuid.New(), Username: "root", Role: model.RoleSuperadmin, PasswordHash: "$2a$hash"}}
	subs := []model.IuranSubmission{{ID: uuid.New(), UserID: users[0].ID}}

	mockRepo := new(MockMaintenanceRepository)
	mockRepo.On("ListAllUsers", mock.Anything).Return(users, nil)
	mockRepo.On("ListAllSubmissions", mock.Anything).Return(subs, nil)

	snapshot, err := newTestMaintenanceService(mockRepo).Backup(context.Background(), testSession(model.RoleSuperadmin))

	require.NoError(t, err)
	assert.Equal(t, model.SnapshotVersion, snapshot.Version)
	assert.Equal(t, fixedNow, snapshot.CreatedAt)
	require.Len(t, snapshot.Users, 1)
	assert.Equal(t, "$2a$hash", snapshot.Users[0].PasswordHash)
	assert.Len(t, snapshot.Submissions, 1)
}

func TestMaintenanceService_BackupPropagatesReadErrors(t *testing.T) {
	mockRepo := new(MockMaintenanceRepository)
	mockRepo.On("ListAllUsers", mock.Anything).Return(nil, errors.New("boom"))
	mockRepo.On("ListAllSubmissions", mock.Anything).Return([]model.IuranSubmission{}, nil).Maybe()

	_, err := newTestMaintenanceService(mockRepo).Snapshot(context.Background())
	assert.ErrorContains(t, err, "boom")
}

func TestMaintenanceService_RequiresSuperadmin(t *testing.T) {
	for _, role := range []model.Role{model.RoleAdmin, model.RoleJamaah} {
		t.Run(string(role), func(t *testing.T) {
			mockRepo := new(MockMaintenanceRepository)
			svc := newTestMaintenanceService(mockRepo)
			session := testSession(role)

			_, err := svc.Backup(context.Background(), session)
			assert.ErrorIs(t, err, apperrors.ErrForbidden)
			_, err = svc.Restore(context.Background(), session, &model.Snapshot{Version: model.SnapshotVersion})
			assert.ErrorIs(t, err, apperrors.ErrForbidden)
			_, err = svc.Reset(context.Background(), session, ResetOptions{})
			assert.ErrorIs(t, err, apperrors.ErrForbidden)

			assert.Empty(t, mockRepo.Calls)
		})
	}
}

func TestMaintenanceService_Restore(t *testing.T) {
	member := model.User{ID: uuid.New(), Username: "budi", Role: model.RoleJamaah, IsActive: true}
	month := datatypes.Date(time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC))

	snapshot := &model.Snapshot{
		Version: model.SnapshotVersion,
		Users:   []model.BackupUser{{User: member, PasswordHash: "$2a$hash"}},
		Submissions: []model.IuranSubmission{{
			ID:         uuid.New(),
			UserID:     member.ID,
			Username:   "budi",
			BulanTahun: month,
			Iuran1:     dec(1000),
			Iuran2:     dec(2000),
			TotalIuran: dec(1),
		}},
	}

	mockRepo := new(MockMaintenanceRepository)
	mockRepo.On("WithTransaction", mock.Anything).Return(nil)
	mockRepo.On("UpsertUsers", mock.Anything, mock.MatchedBy(func(users []model.User) bool {
		return len(users) == 1 && users[0].PasswordHash == "$2a$hash"
	})).Return(nil)
	mockRepo.On("UpsertSubmissions", mock.Anything, mock.MatchedBy(func(subs []model.IuranSubmission) bool {
		return len(subs) == 1 && subs[0].TotalIuran.Equal(dec(3000))
	})).Return(nil)

	result, err := newTestMaintenanceService(mockRepo).Restore(context.Background(), testSession(model.RoleSuperadmin), snapshot)

	require.NoError(t, err)
	assert.Equal(t, &RestoreResult{Users: 1, Submissions: 1}, result)
	mockRepo.AssertExpectations(t)
}

func TestMaintenanceService_RestoreRejectsBadSnapshots(t *testing.T) {
	member := model.User{ID: uuid.New(), Username: "budi", Role: model.RoleJamaah}
	month := datatypes.Date(time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC))

	tests := []struct {
		name     string
		snapshot *model.Snapshot
	}{
		{"nil", nil},
		{"wrong version", &model.Snapshot{Version: 99}},
		{"user without id", &model.Snapshot{Version: 1, Users: []model.BackupUser{{User: model.User{Username: "x", Role: model.RoleJamaah}}}}},
		{"unknown role", &model.Snapshot{Version: 1, Users: []model.BackupUser{{User: model.User{ID: uuid.New(), Username: "x", Role: "owner"}}}}},
		{"orphan submission", &model.Snapshot{Version: 1, Submissions: []model.IuranSubmission{{UserID: uuid.New(), BulanTahun: month}}}},
		{"duplicate month", &model.Snapshot{
			Version: 1,
			Users:   []model.BackupUser{{User: member}},
			Submissions: []model.IuranSubmission{
				{UserID: member.ID, BulanTahun: month},
				{UserID: member.ID, BulanTahun: month},
			},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockMaintenanceRepository)

			_, err := newTestMaintenanceService(mockRepo).Restore(context.Background(), testSession(model.RoleSuperadmin), tt.snapshot)
			assert.ErrorIs(t, err, apperrors.ErrInvalidSnapshot)
			assert.Empty(t, mockRepo.Calls)
		})
	}
}

func TestMaintenanceService_Reset(t *testing.T) {
	t.Run("deactivates members by default", func(t *testing.T) {
		mockRepo := new(MockMaintenanceRepository)
		mockRepo.On("WithTransaction", mock.Anything).Return(nil)
		mockRepo.On("DeleteAllSubmissions", mock.Anything).Return(int64(42), nil)
		mockRepo.On("DeactivateMembers", mock.Anything).Return(int64(7), nil)

		result, err := newTestMaintenanceService(mockRepo).Reset(context.Background(), testSession(model.RoleSuperadmin), ResetOptions{})

		require.NoError(t, err)
		assert.Equal(t, &ResetResult{SubmissionsDeleted: 42, UsersDeactivated: 7}, result)
		mockRepo.AssertExpectations(t)
	})

	t.Run("keep users", func(t *testing.T) {
		mockRepo := new(MockMaintenanceRepository)
		mockRepo.On("WithTransaction", mock.Anything).Return(nil)
		mockRepo.On("DeleteAllSubmissions", mock.Anything).Return(int64(3), nil)

		result, err := newTestMaintenanceService(mockRepo).Reset(context.Background(), testSession(model.RoleSuperadmin), ResetOptions{KeepUsers: true})

		require.NoError(t, err)
		assert.Equal(t, int64(0), result.UsersDeactivated)
		mockRepo.AssertNotCalled(t, "DeactivateMembers", mock.Anything)
	})

	t.Run("failure inside the transaction", func(t *testing.T) {
		mockRepo := new(MockMaintenanceRepository)
		mockRepo.On("WithTransaction", mock.Anything).Return(nil)
		mockRepo.On("DeleteAllSubmissions", mock.Anything).Return(int64(0), errors.New("lock timeout"))

		result, err := newTestMaintenanceService(mockRepo).Reset(context.Background(), testSession(model.RoleSuperadmin), ResetOptions{})
		assert.ErrorContains(t, err, "lock timeout")
		assert.Nil(t, result)
	})
}
