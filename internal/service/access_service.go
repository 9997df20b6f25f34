package service

import (
	"context"
	"errors"
	"sort"

	"authserver/internal/apperror"
	"authserver/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AccessService answers capability questions about a user. The effective
// permission set is the union of every assigned role's permissions and the
// user's direct grants, deduplicated by name. It is recomputed from the store
// on every call — membership can change between requests and a stale answer
// here is a security defect, so nothing in this service caches.
type AccessService interface {
	HasRole(ctx context.Context, userID uuid.UUID, roleName string) (bool, error)
	HasPermission(ctx context.Context, userID uuid.UUID, permissionName string) (bool, error)
	EffectivePermissions(ctx context.Context, userID uuid.UUID) ([]string, error)
}

type accessService struct {
	userRepo repository.UserRepository
}

func NewAccessService(userRepo repository.UserRepository) AccessService {
	return &accessService{userRepo: userRepo}
}

func (s *accessService) HasRole(ctx context.Context, userID uuid.UUID, roleName string) (bool, error) {
	user, err := s.userRepo.FindByIDWithAccess(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, apperror.NotFound("user %s", userID)
		}
		return false, err
	}

	for _, role := range user.Roles {
		if role.Name == roleName {
			return true, nil
		}
	}
	return false, nil
}

// HasPermission checks role-derived and directly granted permissions. Both
// sources count: a direct grant satisfies the check even when no role carries
// the permission.
func (s *accessService) HasPermission(ctx context.Context, userID uuid.UUID, permissionName string) (bool, error) {
	names, err := s.EffectivePermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, name := range names {
		if name == permissionName {
			return true, nil
		}
	}
	return false, nil
}

// EffectivePermissions returns the deduplicated union of role permissions and
// direct grants, sorted by name so the ordering is stable for a fixed data
// state.
func (s *accessService) EffectivePermissions(ctx context.Context, userID uuid.UUID) ([]string, error) {
	user, err := s.userRepo.FindByIDWithAccess(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("user %s", userID)
		}
		return nil, err
	}

	seen := make(map[string]bool)
	for _, role := range user.Roles {
		for _, perm := range role.Permissions {
			seen[perm.Name] = true
		}
	}
	for _, perm := range user.Permissions {
		seen[perm.Name] = true
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
