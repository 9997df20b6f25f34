package service

import (
	"context"
	"errors"
	"strings"

	"authserver/internal/apperror"
	"authserver/internal/model"
	"authserver/internal/repository"
	ws "authserver/internal/websocket"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// --- DTOs ---

type CreatePermissionRequest struct {
	Name string `json:"name" binding:"required"`
}

type UpdatePermissionRequest struct {
	Name string `json:"name" binding:"required"`
}

type PermissionResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	GuardName string `json:"guard_name"`
}

// --- Interface ---

type PermissionService interface {
	ListPermissions(ctx context.Context) ([]PermissionResponse, error)
	GetPermission(ctx context.Context, id string) (*PermissionResponse, error)
	CreatePermission(ctx context.Context, req CreatePermissionRequest) (*PermissionResponse, error)
	UpdatePermission(ctx context.Context, id string, req UpdatePermissionRequest) (*PermissionResponse, error)
	DeletePermission(ctx context.Context, id string) error
}

type permissionService struct {
	permRepo  repository.PermissionRepository
	txManager repository.TransactionManager
	hub       *ws.Hub
}

func NewPermissionService(permRepo repository.PermissionRepository, txManager repository.TransactionManager, hub *ws.Hub) PermissionService {
	return &permissionService{permRepo: permRepo, txManager: txManager, hub: hub}
}

// --- Implementation ---

func (s *permissionService) ListPermissions(ctx context.Context) ([]PermissionResponse, error) {
	perms, err := s.permRepo.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	res := make([]PermissionResponse, 0, len(perms))
	for _, p := range perms {
		res = append(res, toPermissionResponse(p))
	}
	return res, nil
}

func (s *permissionService) GetPermission(ctx context.Context, id string) (*PermissionResponse, error) {
	permID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperror.NewValidation().Add("id", "must be a valid uuid")
	}

	perm, err := s.permRepo.FindByID(ctx, permID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("permission %s", id)
		}
		return nil, err
	}

	resp := toPermissionResponse(*perm)
	return &resp, nil
}

func (s *permissionService) CreatePermission(ctx context.Context, req CreatePermissionRequest) (*PermissionResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperror.NewValidation().Add("name", "is required")
	}

	perm := model.Permission{Name: name}
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.permRepo.FindByName(txCtx, name); err == nil {
			return apperror.Conflict("permission '%s' already exists", name)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return s.permRepo.Create(txCtx, &perm)
	})
	if err != nil {
		return nil, wrapTxErr("create permission", err)
	}

	s.hub.Notify("permission", "created", perm.Name)

	resp := toPermissionResponse(perm)
	return &resp, nil
}

func (s *permissionService) UpdatePermission(ctx context.Context, id string, req UpdatePermissionRequest) (*PermissionResponse, error) {
	permID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperror.NewValidation().Add("id", "must be a valid uuid")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperror.NewValidation().Add("name", "is required")
	}

	var perm *model.Permission
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var findErr error
		perm, findErr = s.permRepo.FindByID(txCtx, permID)
		if findErr != nil {
			if errors.Is(findErr, gorm.ErrRecordNotFound) {
				return apperror.NotFound("permission %s", id)
			}
			return findErr
		}

		if other, otherErr := s.permRepo.FindByName(txCtx, name); otherErr == nil && other.ID != perm.ID {
			return apperror.Conflict("permission '%s' already exists", name)
		} else if otherErr != nil && !errors.Is(otherErr, gorm.ErrRecordNotFound) {
			return otherErr
		}

		perm.Name = name
		return s.permRepo.Update(txCtx, perm)
	})
	if err != nil {
		return nil, wrapTxErr("update permission", err)
	}

	s.hub.Notify("permission", "updated", perm.Name)

	resp := toPermissionResponse(*perm)
	return &resp, nil
}

// DeletePermission refuses to remove a permission that any role or any direct
// user grant still references. Cascade-unlinking silently would shrink a
// role's capability set as a side effect of an unrelated admin action.
func (s *permissionService) DeletePermission(ctx context.Context, id string) error {
	permID, err := uuid.Parse(id)
	if err != nil {
		return apperror.NewValidation().Add("id", "must be a valid uuid")
	}

	var name string
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		perm, findErr := s.permRepo.FindByID(txCtx, permID)
		if findErr != nil {
			if errors.Is(findErr, gorm.ErrRecordNotFound) {
				return apperror.NotFound("permission %s", id)
			}
			return findErr
		}
		name = perm.Name

		roleLinks, countErr := s.permRepo.CountRoleLinks(txCtx, permID)
		if countErr != nil {
			return countErr
		}
		if roleLinks > 0 {
			return apperror.Conflict("permission '%s' is still assigned to %d role(s)", perm.Name, roleLinks)
		}

		userLinks, countErr := s.permRepo.CountUserLinks(txCtx, permID)
		if countErr != nil {
			return countErr
		}
		if userLinks > 0 {
			return apperror.Conflict("permission '%s' is still granted to %d user(s)", perm.Name, userLinks)
		}

		return s.permRepo.Delete(txCtx, permID)
	})
	if err != nil {
		return wrapTxErr("delete permission", err)
	}

	s.hub.Notify("permission", "deleted", name)
	return nil
}

// --- Helpers ---

func toPermissionResponse(p model.Permission) PermissionResponse {
	return PermissionResponse{
		ID:        p.ID.String(),
		Name:      p.Name,
		GuardName: p.GuardName,
	}
}
