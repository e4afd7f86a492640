package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"iuran/internal/model"
)

// upsertColumns are overwritten when a (user_id, bulan_tahun) row already exists.
var upsertColumns = []string{
	"nama_jamaah", "username", "timestamp_submitted",
	"iuran_1", "iuran_2", "iuran_3", "iuran_4", "iuran_5",
	"total_iuran", "updated_at",
}

var monthConflict = []clause.Column{{Name: "user_id"}, {Name: "bulan_tahun"}}

// SubmissionRepository defines dues submission persistence operations.
type SubmissionRepository interface {
	ListWithUsers(ctx context.Context) ([]model.IuranSubmission, error)
	DashboardStats(ctx context.Context) ([]model.DashboardStats, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.IuranSubmission, error)
	FindByUserAndMonth(ctx context.Context, userID uuid.UUID, month time.Time) (*model.IuranSubmission, error)
	Upsert(ctx context.Context, submission *model.IuranSubmission) error
	InsertIfAbsent(ctx context.Context, submission *model.IuranSubmission) (bool, error)
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) (int64, error)
	DeleteSubmission(ctx context.Context, id uuid.UUID) (bool, error)
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository creates a new submission repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

// ListWithUsers returns every submission with its owner, newest first.
func (r *submissionRepository) ListWithUsers(ctx context.Context) ([]model.IuranSubmission, error) {
	var submissions []model.IuranSubmission
	if err := r.db.WithContext(ctx).
		Preload("User").
		Order("created_at DESC").
		Find(&submissions).Error; err != nil {
		return nil, err
	}
	return submissions, nil
}

// DashboardStats calls the aggregate procedure; it may return zero rows.
func (r *submissionRepository) DashboardStats(ctx context.Context) ([]model.DashboardStats, error) {
	var stats []model.DashboardStats
	if err := r.db.WithContext(ctx).Raw("SELECT * FROM get_dashboard_stats_active()").Scan(&stats).Error; err != nil {
		return nil, err
	}
	return stats, nil
}

func (r *submissionRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.IuranSubmission, error) {
	var submission model.IuranSubmission
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&submission).Error; err != nil {
		return nil, err
	}
	return &submission, nil
}

func (r *submissionRepository) FindByUserAndMonth(ctx context.Context, userID uuid.UUID, month time.Time) (*model.IuranSubmission, error) {
	var submission model.IuranSubmission
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND bulan_tahun = ?", userID, datatypes.Date(month)).
		First(&submission).Error; err != nil {
		return nil, err
	}
	return &submission, nil
}

// Upsert inserts the submission or overwrites the existing one for the same member and month.
func (r *submissionRepository) Upsert(ctx context.Context, submission *model.IuranSubmission) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   monthConflict,
		DoUpdates: clause.AssignmentColumns(upsertColumns),
	}).Create(submission).Error
}

// InsertIfAbsent inserts only when no row exists for the member and month.
// It reports false when the unique constraint rejected the row.
func (r *submissionRepository) InsertIfAbsent(ctx context.Context, submission *model.IuranSubmission) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   monthConflict,
		DoNothing: true,
	}).Create(submission)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *submissionRepository) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.IuranSubmission{}).Where("id = ?", id).Updates(fields)
	return res.RowsAffected, res.Error
}

// DeleteSubmission calls the delete procedure; false means nothing was removed.
func (r *submissionRepository) DeleteSubmission(ctx context.Context, id uuid.UUID) (bool, error) {
	var ok sql.NullBool
	if err := r.db.WithContext(ctx).Raw("SELECT delete_iuran_submission(?)", id).Scan(&ok).Error; err != nil {
		return false, err
	}
	return ok.Valid && ok.Bool, nil
}
