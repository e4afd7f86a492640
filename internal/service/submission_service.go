package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"iuran/internal/auth"
	"iuran/internal/cache"
	apperrors "iuran/internal/errors"
	"iuran/internal/model"
	"iuran/internal/repository"
)

// MaxIuranAmount is the ceiling for each of the five sub-amounts.
var MaxIuranAmount = decimal.NewFromInt(100_000_000)

var submissionIDPattern = regexp.MustCompile(`(?i)^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// ValidSubmissionID reports whether id is a canonical hyphenated UUID.
func ValidSubmissionID(id string) bool {
	return submissionIDPattern.MatchString(id)
}

// SubmissionInput is a member's dues for one month.
type SubmissionInput struct {
	UserID     uuid.UUID
	Username   string
	NamaJamaah string
	BulanTahun time.Time
	Iuran      [5]decimal.Decimal
}

// SubmissionPatch carries the fields of an update; nil fields are left untouched.
// TotalIuran is accepted from clients but never written: the total is always recomputed.
type SubmissionPatch struct {
	NamaJamaah *string
	Iuran      [5]*decimal.Decimal
	TotalIuran *decimal.Decimal
}

// SubmissionService mediates reads and writes of dues submissions.
type SubmissionService interface {
	ListActive(ctx context.Context) ([]model.IuranSubmission, error)
	DashboardStats(ctx context.Context) (*model.DashboardStats, error)
	UserSubmission(ctx context.Context, session *auth.Session, userID uuid.UUID, month time.Time) (*model.IuranSubmission, error)
	Submit(ctx context.Context, session *auth.Session, in SubmissionInput) (*model.IuranSubmission, error)
	Create(ctx context.Context, session *auth.Session, in SubmissionInput) (*model.IuranSubmission, error)
	Update(ctx context.Context, session *auth.Session, id string, patch SubmissionPatch) (*model.IuranSubmission, error)
	Delete(ctx context.Context, session *auth.Session, id string) error
}

type submissionService struct {
	repo  repository.SubmissionRepository
	cache cache.Store
	ttl   time.Duration
	now   func() time.Time
}

// NewSubmissionService creates a new submission service.
func NewSubmissionService(repo repository.SubmissionRepository, store cache.Store, ttl time.Duration) SubmissionService {
	return &submissionService{
		repo:  repo,
		cache: store,
		ttl:   ttl,
		now:   time.Now,
	}
}

func activeListKey() string { return cache.Key(cache.GroupIuran, "active") }

func userSubmissionKey(userID uuid.UUID, month time.Time) string {
	return cache.Key(cache.GroupUserSubmission, userID.String(), month.Format("2006-01-02"))
}

// ListActive returns submissions of active members, newest first.
func (s *submissionService) ListActive(ctx context.Context) ([]model.IuranSubmission, error) {
	var cached []model.IuranSubmission
	if s.getCached(ctx, activeListKey(), &cached) {
		return cached, nil
	}

	all, err := s.repo.ListWithUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}

	active := make([]model.IuranSubmission, 0, len(all))
	for _, sub := range all {
		if sub.User == nil || !sub.User.IsActive {
			continue
		}
		active = append(active, sub)
	}

	s.setCached(ctx, activeListKey(), active)
	return active, nil
}

// DashboardStats returns the aggregate, or zeroed stats when the procedure yields nothing.
func (s *submissionService) DashboardStats(ctx context.Context) (*model.DashboardStats, error) {
	var cached model.DashboardStats
	if s.getCached(ctx, cache.GroupDashboardStats, &cached) {
		return &cached, nil
	}

	rows, err := s.repo.DashboardStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("dashboard stats: %w", err)
	}

	stats := model.ZeroDashboardStats()
	if len(rows) > 0 {
		stats = &rows[0]
	}

	s.setCached(ctx, cache.GroupDashboardStats, stats)
	return stats, nil
}

// UserSubmission looks up one member's submission for one month.
// A missing row is an empty state: it returns nil, nil.
func (s *submissionService) UserSubmission(ctx context.Context, session *auth.Session, userID uuid.UUID, month time.Time) (*model.IuranSubmission, error) {
	if err := auth.CanAccessMember(session, userID); err != nil {
		return nil, err
	}
	month = model.MonthStart(month)
	key := userSubmissionKey(userID, month)

	var cached model.IuranSubmission
	if s.getCached(ctx, key, &cached) {
		return &cached, nil
	}

	sub, err := s.repo.FindByUserAndMonth(ctx, userID, month)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("find submission: %w", err)
	}

	s.setCached(ctx, key, sub)
	return sub, nil
}

// Submit creates or overwrites the member's submission for the month.
func (s *submissionService) Submit(ctx context.Context, session *auth.Session, in SubmissionInput) (*model.IuranSubmission, error) {
	sub, err := s.prepare(session, in)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Upsert(ctx, sub); err != nil {
		return nil, fmt.Errorf("upsert submission: %w", err)
	}

	stored, err := s.repo.FindByUserAndMonth(ctx, sub.UserID, sub.Month())
	if err != nil {
		log.Printf("reload submission %s/%s: %v", sub.UserID, sub.Month().Format("2006-01"), err)
		stored = sub
	}

	s.invalidate(ctx, sub.UserID, sub.Month())
	return stored, nil
}

// Create inserts the month's submission only if none exists yet.
// A concurrent or earlier submission surfaces as ErrAlreadySubmitted.
func (s *submissionService) Create(ctx context.Context, session *auth.Session, in SubmissionInput) (*model.IuranSubmission, error) {
	sub, err := s.prepare(session, in)
	if err != nil {
		return nil, err
	}

	inserted, err := s.repo.InsertIfAbsent(ctx, sub)
	if err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, apperrors.ErrAlreadySubmitted
		}
		return nil, fmt.Errorf("insert submission: %w", err)
	}
	if !inserted {
		return nil, apperrors.ErrAlreadySubmitted
	}

	s.invalidate(ctx, sub.UserID, sub.Month())
	return sub, nil
}

// Update patches an existing submission by id and recomputes its total.
func (s *submissionService) Update(ctx context.Context, session *auth.Session, id string, patch SubmissionPatch) (*model.IuranSubmission, error) {
	if !ValidSubmissionID(id) {
		return nil, apperrors.ErrInvalidSubmissionID
	}
	if err := session.Valid(); err != nil {
		return nil, err
	}
	subID := uuid.MustParse(id)

	existing, err := s.repo.FindByID(ctx, subID)
	if err != nil {
		return nil, mapSubmissionWriteError(err)
	}
	if err := auth.CanAccessMember(session, existing.UserID); err != nil {
		return nil, err
	}
	if err := s.checkOpen(session, existing.Month()); err != nil {
		return nil, err
	}

	fields, err := patch.fields()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, apperrors.NewValidationError("", "nothing to update")
	}

	updated := *existing
	patch.apply(&updated)
	updated.RecomputeTotal()
	if patch.touchesAmounts() {
		// the whole amount set is written with its total so a concurrent patch cannot split them
		for i, amount := range updated.Amounts() {
			fields[fmt.Sprintf("iuran_%d", i+1)] = amount
		}
		fields["total_iuran"] = updated.TotalIuran
	}

	rows, err := s.repo.UpdateFields(ctx, subID, fields)
	if err != nil {
		return nil, mapSubmissionWriteError(err)
	}
	if rows == 0 {
		return nil, apperrors.ErrSubmissionNotFound
	}

	s.invalidate(ctx, existing.UserID, existing.Month())
	return &updated, nil
}

// Delete removes a submission through the delete procedure. Staff only.
func (s *submissionService) Delete(ctx context.Context, session *auth.Session, id string) error {
	if !ValidSubmissionID(id) {
		return apperrors.ErrInvalidSubmissionID
	}
	if err := auth.RequireStaff(session); err != nil {
		return err
	}

	deleted, err := s.repo.DeleteSubmission(ctx, uuid.MustParse(id))
	if err != nil {
		return mapSubmissionWriteError(err)
	}
	if !deleted {
		return apperrors.ErrSubmissionNotFound
	}

	_ = s.cache.InvalidateGroups(ctx, cache.GroupIuran, cache.GroupDashboardStats, cache.GroupUserSubmission)
	return nil
}

// prepare validates input, applies the access policy and builds the row to write.
func (s *submissionService) prepare(session *auth.Session, in SubmissionInput) (*model.IuranSubmission, error) {
	if err := validateSubmissionInput(in); err != nil {
		return nil, err
	}
	if err := auth.CanAccessMember(session, in.UserID); err != nil {
		return nil, err
	}
	month := model.MonthStart(in.BulanTahun)
	if err := s.checkOpen(session, month); err != nil {
		return nil, err
	}

	sub := &model.IuranSubmission{
		UserID:             in.UserID,
		Username:           strings.TrimSpace(in.Username),
		NamaJamaah:         strings.TrimSpace(in.NamaJamaah),
		BulanTahun:         datatypes.Date(month),
		TimestampSubmitted: s.now().UTC(),
		Iuran1:             in.Iuran[0],
		Iuran2:             in.Iuran[1],
		Iuran3:             in.Iuran[2],
		Iuran4:             in.Iuran[3],
		Iuran5:             in.Iuran[4],
	}
	sub.RecomputeTotal()
	return sub, nil
}

// checkOpen locks every month but the current one for members.
func (s *submissionService) checkOpen(session *auth.Session, month time.Time) error {
	if session.Role().IsStaff() {
		return nil
	}
	if !model.MonthStart(month).Equal(model.MonthStart(s.now())) {
		return apperrors.ErrSubmissionLocked
	}
	return nil
}

func (s *submissionService) invalidate(ctx context.Context, userID uuid.UUID, month time.Time) {
	_ = s.cache.InvalidateGroups(ctx, cache.GroupIuran, cache.GroupDashboardStats)
	_ = s.cache.Delete(ctx, userSubmissionKey(userID, month))
}

func (s *submissionService) getCached(ctx context.Context, key string, dest interface{}) bool {
	data, _ := s.cache.Get(ctx, key)
	if data == nil {
		return false
	}
	return json.Unmarshal(data, dest) == nil
}

func (s *submissionService) setCached(ctx context.Context, key string, value interface{}) {
	if payload, err := json.Marshal(value); err == nil {
		_ = s.cache.Set(ctx, key, payload, s.ttl)
	}
}

func validateSubmissionInput(in SubmissionInput) error {
	var missing []string
	if in.UserID == uuid.Nil {
		missing = append(missing, "user_id")
	}
	if strings.TrimSpace(in.Username) == "" {
		missing = append(missing, "username")
	}
	if strings.TrimSpace(in.NamaJamaah) == "" {
		missing = append(missing, "nama_jamaah")
	}
	if in.BulanTahun.IsZero() {
		missing = append(missing, "bulan_tahun")
	}
	if len(missing) > 0 {
		return apperrors.NewValidationError("", "missing required fields: %s", strings.Join(missing, ", "))
	}

	for i, amount := range in.Iuran {
		if err := validateAmount(i, amount); err != nil {
			return err
		}
	}
	return nil
}

func validateAmount(i int, amount decimal.Decimal) error {
	field := fmt.Sprintf("iuran_%d", i+1)
	if amount.IsNegative() {
		return apperrors.NewValidationError(field, "must not be negative")
	}
	if amount.GreaterThan(MaxIuranAmount) {
		return apperrors.NewValidationError(field, "must not exceed %s", MaxIuranAmount.String())
	}
	return nil
}

func (p SubmissionPatch) fields() (map[string]interface{}, error) {
	fields := make(map[string]interface{})
	if p.NamaJamaah != nil {
		name := strings.TrimSpace(*p.NamaJamaah)
		if name == "" {
			return nil, apperrors.NewValidationError("nama_jamaah", "must not be empty")
		}
		fields["nama_jamaah"] = name
	}
	for i, amount := range p.Iuran {
		if amount == nil {
			continue
		}
		if err := validateAmount(i, *amount); err != nil {
			return nil, err
		}
		fields[fmt.Sprintf("iuran_%d", i+1)] = *amount
	}
	return fields, nil
}

func (p SubmissionPatch) touchesAmounts() bool {
	for _, amount := range p.Iuran {
		if amount != nil {
			return true
		}
	}
	return false
}

func (p SubmissionPatch) apply(sub *model.IuranSubmission) {
	if p.NamaJamaah != nil {
		sub.NamaJamaah = strings.TrimSpace(*p.NamaJamaah)
	}
	targets := [5]*decimal.Decimal{&sub.Iuran1, &sub.Iuran2, &sub.Iuran3, &sub.Iuran4, &sub.Iuran5}
	for i, amount := range p.Iuran {
		if amount != nil {
			*targets[i] = *amount
		}
	}
}

func mapSubmissionWriteError(err error) error {
	switch {
	case repository.IsInvalidUUID(err):
		return apperrors.ErrInvalidSubmissionID
	case repository.IsNotFound(err):
		return apperrors.ErrSubmissionNotFound
	case repository.IsUndefinedColumn(err):
		return apperrors.ErrUnknownColumn
	default:
		return fmt.Errorf("update submission: %w", err)
	}
}
