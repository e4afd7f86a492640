package auth

import (
	"github.com/google/uuid"

	apperrors "iuran/internal/errors"
	"iuran/internal/model"
)

// RequireRole checks that the session holds one of roles.
func RequireRole(s *Session, roles ...model.Role) error {
	if err := s.Valid(); err != nil {
		return err
	}
	for _, r := range roles {
		if s.User.Role == r {
			return nil
		}
	}
	return apperrors.Forbidden("role " + string(s.User.Role) + " may not perform this action")
}

// RequireStaff checks for an admin or superadmin session.
func RequireStaff(s *Session) error {
	return RequireRole(s, model.RoleAdmin, model.RoleSuperadmin)
}

// CanAccessMember checks that the session may read or write data owned by userID.
// Members only reach their own records.
func CanAccessMember(s *Session, userID uuid.UUID) error {
	if err := s.Valid(); err != nil {
		return err
	}
	if s.User.Role.IsStaff() || s.User.ID == userID {
		return nil
	}
	return apperrors.Forbidden("members may only access their own submissions")
}

// CanCreateUser checks that the session may create an account with role.
func CanCreateUser(s *Session, role model.Role) error {
	if err := RequireStaff(s); err != nil {
		return err
	}
	switch role {
	case model.RoleSuperadmin:
		return apperrors.Forbidden("the superadmin account cannot be created")
	case model.RoleAdmin:
		if s.User.Role != model.RoleSuperadmin {
			return apperrors.Forbidden("only the superadmin may create admins")
		}
	}
	return nil
}

// CanEditUser checks that the session may edit target, optionally changing its role.
func CanEditUser(s *Session, target *model.User, newRole *model.Role) error {
	if err := s.Valid(); err != nil {
		return err
	}
	self := s.User.ID == target.ID

	if target.Role == model.RoleSuperadmin {
		if s.User.Role != model.RoleSuperadmin {
			return apperrors.Forbidden("only the superadmin may edit the superadmin")
		}
		if newRole != nil && *newRole != model.RoleSuperadmin {
			return apperrors.Forbidden("the superadmin role cannot change")
		}
		return nil
	}

	if newRole != nil && *newRole != target.Role {
		switch {
		case *newRole == model.RoleSuperadmin:
			return apperrors.Forbidden("the superadmin role cannot be assigned")
		case s.User.Role != model.RoleSuperadmin:
			return apperrors.Forbidden("only the superadmin may change roles")
		}
	}

	switch s.User.Role {
	case model.RoleSuperadmin:
		return nil
	case model.RoleAdmin:
		if self || target.Role == model.RoleJamaah {
			return nil
		}
		return apperrors.Forbidden("admins may not edit other admins")
	default:
		if self {
			return nil
		}
		return apperrors.Forbidden("members may only edit themselves")
	}
}

// CanDeleteUser checks that the session may soft-delete target.
func CanDeleteUser(s *Session, target *model.User) error {
	if err := RequireStaff(s); err != nil {
		return err
	}
	switch {
	case target.Role == model.RoleSuperadmin:
		return apperrors.Forbidden("the superadmin cannot be deleted")
	case target.ID == s.User.ID:
		return apperrors.Forbidden("you cannot delete your own account")
	case target.Role == model.RoleAdmin && s.User.Role != model.RoleSuperadmin:
		return apperrors.Forbidden("admins may not delete other admins")
	}
	return nil
}
