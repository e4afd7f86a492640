package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"iuran/internal/model"
)

const restoreBatchSize = 100

// MaintenanceRepository defines whole-table operations used by backup, restore and reset.
type MaintenanceRepository interface {
	ListAllUsers(ctx context.Context) ([]model.User, error)
	ListAllSubmissions(ctx context.Context) ([]model.IuranSubmission, error)
	UpsertUsers(ctx context.Context, users []model.User) error
	UpsertSubmissions(ctx context.Context, submissions []model.IuranSubmission) error
	DeleteAllSubmissions(ctx context.Context) (int64, error)
	DeactivateMembers(ctx context.Context) (int64, error)
	// Transaction methods
	WithTransaction(ctx context.Context, fn func(ctx context.Context, repo MaintenanceRepository) error) error
}

type maintenanceRepository struct {
	db *gorm.DB
}

// NewMaintenanceRepository creates a new maintenance repository.
func NewMaintenanceRepository(db *gorm.DB) MaintenanceRepository {
	return &maintenanceRepository{db: db}
}

func (r *maintenanceRepository) ListAllUsers(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := r.db.WithContext(ctx).Order("created_at").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *maintenanceRepository) ListAllSubmissions(ctx context.Context) ([]model.IuranSubmission, error) {
	var submissions []model.IuranSubmission
	if err := r.db.WithContext(ctx).Order("bulan_tahun, created_at").Find(&submissions).Error; err != nil {
		return nil, err
	}
	return submissions, nil
}

// UpsertUsers writes users keyed by id, overwriting existing rows.
func (r *maintenanceRepository) UpsertUsers(ctx context.Context, users []model.User) error {
	if len(users) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, UpdateAll: true}).
		CreateInBatches(users, restoreBatchSize).Error
}

// UpsertSubmissions writes submissions keyed by member and month.
func (r *maintenanceRepository) UpsertSubmissions(ctx context.Context, submissions []model.IuranSubmission) error {
	if len(submissions) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{Columns: monthConflict, DoUpdates: clause.AssignmentColumns(upsertColumns)}).
		CreateInBatches(submissions, restoreBatchSize).Error
}

func (r *maintenanceRepository) DeleteAllSubmissions(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&model.IuranSubmission{})
	return res.RowsAffected, res.Error
}

// DeactivateMembers soft-deletes every account except the superadmin.
func (r *maintenanceRepository) DeactivateMembers(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.User{}).
		Where("role <> ? AND is_active = ?", model.RoleSuperadmin, true).
		Update("is_active", false)
	return res.RowsAffected, res.Error
}

// WithTransaction executes a function within a database transaction.
func (r *maintenanceRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context, repo MaintenanceRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := &maintenanceRepository{db: tx}
		return fn(ctx, txRepo)
	})
}
