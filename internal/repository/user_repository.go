package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"iuran/internal/model"
)

// UserRepository defines user persistence operations.
// Methods named after a remote procedure call it by name; the rest are table queries.
type UserRepository interface {
	Authenticate(ctx context.Context, username, password string) ([]model.User, error)
	AddNewUser(ctx context.Context, username, fullName, password string, role model.Role) error
	UpdateUserWithPassword(ctx context.Context, id uuid.UUID, username, fullName string, role model.Role, password string) (bool, error)
	SoftDeleteUser(ctx context.Context, id uuid.UUID) (bool, error)
	GetActiveUsers(ctx context.Context) ([]model.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) (int64, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository builds a GORM-backed repository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Authenticate(ctx context.Context, username, password string) ([]model.User, error) {
	var users []model.User
	if err := r.db.WithContext(ctx).
		Raw("SELECT * FROM authenticate_user(?, ?)", username, password).
		Scan(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// AddNewUser creates a user, or reactivates a soft-deleted user with the same username.
func (r *userRepository) AddNewUser(ctx context.Context, username, fullName, password string, role model.Role) error {
	return r.db.WithContext(ctx).
		Exec("SELECT add_new_user(?, ?, ?, ?)", username, fullName, password, string(role)).Error
}

func (r *userRepository) UpdateUserWithPassword(ctx context.Context, id uuid.UUID, username, fullName string, role model.Role, password string) (bool, error) {
	return r.callBool(ctx, "SELECT update_user_with_password(?, ?, ?, ?, ?)", id, username, fullName, string(role), password)
}

func (r *userRepository) SoftDeleteUser(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.callBool(ctx, "SELECT soft_delete_user(?)", id)
}

func (r *userRepository) GetActiveUsers(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := r.db.WithContext(ctx).Raw("SELECT * FROM get_active_users()").Scan(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByUsername finds a user regardless of is_active.
func (r *userRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Updates(fields)
	return res.RowsAffected, res.Error
}

// callBool runs a procedure returning a boolean; NULL counts as false.
func (r *userRepository) callBool(ctx context.Context, query string, args ...interface{}) (bool, error) {
	var ok sql.NullBool
	if err := r.db.WithContext(ctx).Raw(query, args...).Scan(&ok).Error; err != nil {
		return false, err
	}
	return ok.Valid && ok.Bool, nil
}
