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

	"iuran/internal/auth"
	"iuran/internal/cache"
	apperrors "iuran/internal/errors"
	"iuran/internal/model"
	"iuran/internal/repository"
)

const (
	userCacheGroup    = "user"
	minPasswordLength = 6
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,50}$`)

// CreateUserInput holds the fields of a new account.
type CreateUserInput struct {
	Username string
	FullName string
	Password string
	Role     model.Role
}

// UpdateUserInput holds changed account fields; nil fields are kept.
// A non-empty Password routes the update through the password procedure.
type UpdateUserInput struct {
	FullName *string
	Role     *model.Role
	Password *string
}

// CreateUserResult reports the account and whether a soft-deleted one was reactivated.
type CreateUserResult struct {
	User        *model.User `json:"user"`
	Reactivated bool        `json:"reactivated"`
}

// UserService exposes account management.
type UserService interface {
	ListActive(ctx context.Context, session *auth.Session) ([]model.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*model.User, error)
	Create(ctx context.Context, session *auth.Session, in CreateUserInput) (*CreateUserResult, error)
	Update(ctx context.Context, session *auth.Session, id uuid.UUID, in UpdateUserInput) (*model.User, error)
	SoftDelete(ctx context.Context, session *auth.Session, id string) error
}

type userService struct {
	repo  repository.UserRepository
	cache cache.Store
	ttl   time.Duration
}

// NewUserService builds a UserService with repository and cache.
func NewUserService(repo repository.UserRepository, store cache.Store, ttl time.Duration) UserService {
	return &userService{repo: repo, cache: store, ttl: ttl}
}

func (s *userService) cacheKey(id uuid.UUID) string {
	return cache.Key(userCacheGroup, id.String())
}

func (s *userService) ListActive(ctx context.Context, session *auth.Session) ([]model.User, error) {
	if err := auth.RequireStaff(session); err != nil {
		return nil, err
	}
	users, err := s.repo.GetActiveUsers(ctx)
	if err != nil {
		if repository.IsUndefinedFunction(err) {
			return nil, apperrors.ErrProcedureMissing
		}
		return nil, fmt.Errorf("list active users: %w", err)
	}
	return users, nil
}

func (s *userService) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	if data, _ := s.cache.Get(ctx, s.cacheKey(id)); data != nil {
		var cached model.User
		if err := json.Unmarshal(data, &cached); err == nil {
			return &cached, nil
		}
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, err
	}

	if payload, err := json.Marshal(user); err == nil {
		_ = s.cache.Set(ctx, s.cacheKey(id), payload, s.ttl)
	}
	return user, nil
}

// Create adds an account through the add-user procedure. When a soft-deleted
// account holds the username the procedure reactivates it instead.
func (s *userService) Create(ctx context.Context, session *auth.Session, in CreateUserInput) (*CreateUserResult, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.FullName = strings.TrimSpace(in.FullName)
	if in.Role == "" {
		in.Role = model.RoleJamaah
	}

	if !usernamePattern.MatchString(in.Username) {
		return nil, apperrors.ErrInvalidUsername
	}
	if in.FullName == "" {
		return nil, apperrors.NewValidationError("full_name", "is required")
	}
	if len(in.Password) < minPasswordLength {
		return nil, apperrors.NewValidationError("password", "must be at least %d characters", minPasswordLength)
	}
	if !in.Role.Valid() {
		return nil, apperrors.NewValidationError("role", "unknown role %q", in.Role)
	}
	if err := auth.CanCreateUser(session, in.Role); err != nil {
		return nil, err
	}

	reactivated := false
	if existing, err := s.repo.FindByUsername(ctx, in.Username); err == nil && !existing.IsActive {
		reactivated = true
	}

	if err := s.repo.AddNewUser(ctx, in.Username, in.FullName, in.Password, in.Role); err != nil {
		return nil, mapUserWriteError(err)
	}

	user, err := s.repo.FindByUsername(ctx, in.Username)
	if err != nil {
		return nil, fmt.Errorf("load created user: %w", err)
	}

	if reactivated {
		log.Printf("reactivated user %s (%s)", user.Username, user.ID)
	}
	_ = s.cache.Delete(ctx, s.cacheKey(user.ID))
	_ = s.cache.InvalidateGroups(ctx, cache.GroupDashboardStats)
	return &CreateUserResult{User: user, Reactivated: reactivated}, nil
}

// Update changes an account's name or role, and its password when one is given.
func (s *userService) Update(ctx context.Context, session *auth.Session, id uuid.UUID, in UpdateUserInput) (*model.User, error) {
	target, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	if err := auth.CanEditUser(session, target, in.Role); err != nil {
		return nil, err
	}

	fields := make(map[string]interface{})
	fullName := target.FullName
	if in.FullName != nil {
		fullName = strings.TrimSpace(*in.FullName)
		if fullName == "" {
			return nil, apperrors.NewValidationError("full_name", "must not be empty")
		}
		fields["full_name"] = fullName
	}
	role := target.Role
	if in.Role != nil {
		if !in.Role.Valid() {
			return nil, apperrors.NewValidationError("role", "unknown role %q", *in.Role)
		}
		role = *in.Role
		fields["role"] = string(role)
	}

	if in.Password != nil && *in.Password != "" {
		if len(*in.Password) < minPasswordLength {
			return nil, apperrors.NewValidationError("password", "must be at least %d characters", minPasswordLength)
		}
		updated, err := s.repo.UpdateUserWithPassword(ctx, target.ID, target.Username, fullName, role, *in.Password)
		if err != nil {
			return nil, mapUserWriteError(err)
		}
		if !updated {
			return nil, apperrors.ErrUserNotFound
		}
	} else {
		if len(fields) == 0 {
			return target, nil
		}
		rows, err := s.repo.UpdateFields(ctx, target.ID, fields)
		if err != nil {
			return nil, mapUserWriteError(err)
		}
		if rows == 0 {
			return nil, apperrors.ErrUserNotFound
		}
	}

	target.FullName = fullName
	target.Role = role
	_ = s.cache.Delete(ctx, s.cacheKey(target.ID))
	_ = s.cache.InvalidateGroups(ctx, cache.GroupIuran, cache.GroupDashboardStats)
	return target, nil
}

// SoftDelete deactivates an account through the soft-delete procedure.
func (s *userService) SoftDelete(ctx context.Context, session *auth.Session, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return apperrors.NewValidationError("id", "is required")
	}
	userID, err := uuid.Parse(id)
	if err != nil {
		return apperrors.NewValidationError("id", "must be a valid UUID")
	}

	target, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return apperrors.ErrUserNotFound
		}
		return fmt.Errorf("find user: %w", err)
	}
	if err := auth.CanDeleteUser(session, target); err != nil {
		return err
	}

	deleted, err := s.repo.SoftDeleteUser(ctx, userID)
	if err != nil {
		return mapUserWriteError(err)
	}
	if !deleted {
		return apperrors.ErrUserNotFound
	}

	_ = s.cache.Delete(ctx, s.cacheKey(userID))
	_ = s.cache.InvalidateGroups(ctx, cache.GroupIuran, cache.GroupDashboardStats)
	return nil
}

// mapUserWriteError turns procedure failures into domain errors by SQLSTATE,
// then by the message texts the procedures raise.
func mapUserWriteError(err error) error {
	switch {
	case repository.IsUniqueViolation(err):
		return apperrors.ErrUsernameTaken
	case repository.IsUndefinedFunction(err):
		return apperrors.ErrProcedureMissing
	case repository.IsNotFound(err):
		return apperrors.ErrUserNotFound
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "already exists"),
		strings.Contains(msg, "sudah ada"),
		strings.Contains(msg, "sudah digunakan"),
		strings.Contains(msg, "duplicate"):
		return apperrors.ErrUsernameTaken
	case strings.Contains(msg, "invalid username"),
		strings.Contains(msg, "format username"),
		strings.Contains(msg, "karakter"):
		return apperrors.ErrInvalidUsername
	case strings.Contains(msg, "does not exist") && strings.Contains(msg, "function"):
		return apperrors.ErrProcedureMissing
	}
	return fmt.Errorf("user write: %w", err)
}
