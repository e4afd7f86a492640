package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"iuran/internal/auth"
	"iuran/internal/cache"
	apperrors "iuran/internal/errors"
	"iuran/internal/model"
	"iuran/internal/repository"
)

// ResetOptions controls what Reset clears.
type ResetOptions struct {
	KeepUsers bool `json:"keep_users"`
}

// ResetResult counts the rows Reset touched.
type ResetResult struct {
	SubmissionsDeleted int64 `json:"submissions_deleted"`
	UsersDeactivated   int64 `json:"users_deactivated"`
}

// RestoreResult counts the rows a restore wrote.
type RestoreResult struct {
	Users       int `json:"users"`
	Submissions int `json:"submissions"`
}

// MaintenanceService backs up, restores and resets the whole dataset. Superadmin only.
type MaintenanceService interface {
	Backup(ctx context.Context, session *auth.Session) (*model.Snapshot, error)
	Restore(ctx context.Context, session *auth.Session, snapshot *model.Snapshot) (*RestoreResult, error)
	Reset(ctx context.Context, session *auth.Session, opts ResetOptions) (*ResetResult, error)
	// Snapshot reads the dataset without a session, for scheduled jobs.
	Snapshot(ctx context.Context) (*model.Snapshot, error)
}

type maintenanceService struct {
	repo  repository.MaintenanceRepository
	cache cache.Store
	now   func() time.Time
}

// NewMaintenanceService creates a new maintenance service.
func NewMaintenanceService(repo repository.MaintenanceRepository, store cache.Store) MaintenanceService {
	return &maintenanceService{repo: repo, cache: store, now: time.Now}
}

func (s *maintenanceService) Backup(ctx context.Context, session *auth.Session) (*model.Snapshot, error) {
	if err := auth.RequireRole(session, model.RoleSuperadmin); err != nil {
		return nil, err
	}
	return s.Snapshot(ctx)
}

func (s *maintenanceService) Snapshot(ctx context.Context) (*model.Snapshot, error) {
	var (
		users       []model.User
		submissions []model.IuranSubmission
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		users, err = s.repo.ListAllUsers(gctx)
		if err != nil {
			return fmt.Errorf("read users: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		submissions, err = s.repo.ListAllSubmissions(gctx)
		if err != nil {
			return fmt.Errorf("read submissions: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snapshot := &model.Snapshot{
		Version:     model.SnapshotVersion,
		CreatedAt:   s.now().UTC(),
		Users:       make([]model.BackupUser, 0, len(users)),
		Submissions: submissions,
	}
	for _, u := range users {
		snapshot.Users = append(snapshot.Users, model.BackupUser{User: u, PasswordHash: u.PasswordHash})
	}
	if snapshot.Submissions == nil {
		snapshot.Submissions = []model.IuranSubmission{}
	}
	return snapshot, nil
}

// Restore upserts the snapshot in one transaction. Existing rows not in the snapshot are kept.
func (s *maintenanceService) Restore(ctx context.Context, session *auth.Session, snapshot *model.Snapshot) (*RestoreResult, error) {
	if err := auth.RequireRole(session, model.RoleSuperadmin); err != nil {
		return nil, err
	}
	users, submissions, err := prepareSnapshot(snapshot)
	if err != nil {
		return nil, err
	}

	err = s.repo.WithTransaction(ctx, func(ctx context.Context, tx repository.MaintenanceRepository) error {
		if err := tx.UpsertUsers(ctx, users); err != nil {
			return fmt.Errorf("restore users: %w", err)
		}
		if err := tx.UpsertSubmissions(ctx, submissions); err != nil {
			return fmt.Errorf("restore submissions: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateAll(ctx)
	log.Printf("restored snapshot from %s: %d users, %d submissions",
		snapshot.CreatedAt.Format(time.RFC3339), len(users), len(submissions))
	return &RestoreResult{Users: len(users), Submissions: len(submissions)}, nil
}

func (s *maintenanceService) Reset(ctx context.Context, session *auth.Session, opts ResetOptions) (*ResetResult, error) {
	if err := auth.RequireRole(session, model.RoleSuperadmin); err != nil {
		return nil, err
	}

	result := &ResetResult{}
	err := s.repo.WithTransaction(ctx, func(ctx context.Context, tx repository.MaintenanceRepository) error {
		deleted, err := tx.DeleteAllSubmissions(ctx)
		if err != nil {
			return fmt.Errorf("delete submissions: %w", err)
		}
		result.SubmissionsDeleted = deleted

		if opts.KeepUsers {
			return nil
		}
		deactivated, err := tx.DeactivateMembers(ctx)
		if err != nil {
			return fmt.Errorf("deactivate users: %w", err)
		}
		result.UsersDeactivated = deactivated
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateAll(ctx)
	log.Printf("reset by %s: %d submissions deleted, %d users deactivated",
		session.User.Username, result.SubmissionsDeleted, result.UsersDeactivated)
	return result, nil
}

func (s *maintenanceService) invalidateAll(ctx context.Context) {
	_ = s.cache.InvalidateGroups(ctx, cache.GroupIuran, cache.GroupDashboardStats, cache.GroupUserSubmission, userCacheGroup)
}

// prepareSnapshot checks a snapshot and normalizes its rows for writing.
func prepareSnapshot(snapshot *model.Snapshot) ([]model.User, []model.IuranSubmission, error) {
	if snapshot == nil {
		return nil, nil, fmt.Errorf("%w: empty payload", apperrors.ErrInvalidSnapshot)
	}
	if snapshot.Version != model.SnapshotVersion {
		return nil, nil, fmt.Errorf("%w: unsupported version %d", apperrors.ErrInvalidSnapshot, snapshot.Version)
	}

	known := make(map[uuid.UUID]bool, len(snapshot.Users))
	users := make([]model.User, 0, len(snapshot.Users))
	for i, bu := range snapshot.Users {
		u := bu.User
		u.PasswordHash = bu.PasswordHash
		if u.ID == uuid.Nil || u.Username == "" {
			return nil, nil, fmt.Errorf("%w: user %d has no id or username", apperrors.ErrInvalidSnapshot, i)
		}
		if !u.Role.Valid() {
			return nil, nil, fmt.Errorf("%w: user %s has unknown role %q", apperrors.ErrInvalidSnapshot, u.Username, u.Role)
		}
		known[u.ID] = true
		users = append(users, u)
	}

	seen := make(map[string]bool, len(snapshot.Submissions))
	submissions := make([]model.IuranSubmission, 0, len(snapshot.Submissions))
	for i, sub := range snapshot.Submissions {
		if !known[sub.UserID] {
			return nil, nil, fmt.Errorf("%w: submission %d belongs to a user missing from the snapshot", apperrors.ErrInvalidSnapshot, i)
		}
		month := model.MonthStart(sub.Month())
		key := sub.UserID.String() + month.Format("2006-01")
		if seen[key] {
			return nil, nil, fmt.Errorf("%w: duplicate submission for %s in %s", apperrors.ErrInvalidSnapshot, sub.Username, month.Format("2006-01"))
		}
		seen[key] = true

		sub.BulanTahun = datatypes.Date(month)
		sub.User = nil
		sub.RecomputeTotal()
		submissions = append(submissions, sub)
	}
	return users, submissions, nil
}
