package main

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"iuran/internal/config"
	"iuran/internal/model"
)

// seedUsers is a username-keyed stand-in for the user repository.
type seedUsers struct {
	byName map[string]*model.User
	added  []string
}

func (s *seedUsers) Authenticate(ctx context.Context, username, password string) ([]model.User, error) {
	return nil, nil
}

func (s *seedUsers) AddNewUser(ctx context.Context, username, fullName, password string, role model.Role) error {
	s.added = append(s.added, username)
	s.byName[username] = &model.User{ID: uuid.New(), Username: username, FullName: fullName, Role: role, IsActive: true}
	return nil
}

func (s *seedUsers) UpdateUserWithPassword(ctx context.Context, id uuid.UUID, username, fullName string, role model.Role, password string) (bool, error) {
	return false, nil
}

func (s *seedUsers) SoftDeleteUser(ctx context.Context, id uuid.UUID) (bool, error) {
	return false, nil
}

func (s *seedUsers) GetActiveUsers(ctx context.Context) ([]model.User, error) { return nil, nil }

func (s *seedUsers) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *seedUsers) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	if u, ok := s.byName[username]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *seedUsers) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) (int64, error) {
	return 0, nil
}

func TestEnsureSuperadmin(t *testing.T) {
	cfg := &config.Config{SuperadminUsername: "root", SuperadminFullName: "Root", SuperadminPassword: "secret1"}

	t.Run("creates the account when absent", func(t *testing.T) {
		repo := &seedUsers{byName: map[string]*model.User{}}

		user, err := ensureSuperadmin(context.Background(), repo, cfg)

		require.NoError(t, err)
		assert.Equal(t, model.RoleSuperadmin, user.Role)
		assert.Equal(t, []string{"root"}, repo.added)
	})

	t.Run("keeps an active superadmin", func(t *testing.T) {
		repo := &seedUsers{byName: map[string]*model.User{
			"root": {ID: uuid.New(), Username: "root", Role: model.RoleSuperadmin, IsActive: true},
		}}

		_, err := ensureSuperadmin(context.Background(), repo, cfg)

		require.NoError(t, err)
		assert.Empty(t, repo.added)
	})

	rejected := []struct {
		name string
		user *model.User
	}{
		{"username held by a member", &model.User{ID: uuid.New(), Username: "root", Role: model.RoleJamaah, IsActive: true}},
		{"deactivated superadmin", &model.User{ID: uuid.New(), Username: "root", Role: model.RoleSuperadmin, IsActive: false}},
	}
	for _, tt := range rejected {
		t.Run(tt.name, func(t *testing.T) {
			repo := &seedUsers{byName: map[string]*model.User{"root": tt.user}}

			_, err := ensureSuperadmin(context.Background(), repo, cfg)

			assert.ErrorContains(t, err, "not an active superadmin")
			assert.Empty(t, repo.added)
		})
	}
}
