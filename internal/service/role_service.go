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

type CreateRoleRequest struct {
	Name        string   `json:"name" binding:"required"`
	Permissions []string `json:"permissions" binding:"required"` // permission names
}

type UpdateRoleRequest struct {
	Name        string   `json:"name" binding:"required"`
	Permissions []string `json:"permissions" binding:"required"`
}

type RoleResponse struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	GuardName   string               `json:"guard_name"`
	Permissions []PermissionResponse `json:"permissions"`
	CreatedAt   string               `json:"created_at"`
}

// --- Interface ---

type RoleService interface {
	ListRoles(ctx context.Context) ([]RoleResponse, error)
	GetRole(ctx context.Context, id string) (*RoleResponse, error)
	CreateRole(ctx context.Context, req CreateRoleRequest) (*RoleResponse, error)
	UpdateRole(ctx context.Context, id string, req UpdateRoleRequest) (*RoleResponse, error)
	DeleteRole(ctx context.Context, id string) error
}

type roleService struct {
	roleRepo  repository.RoleRepository
	permRepo  repository.PermissionRepository
	txManager repository.TransactionManager
	hub       *ws.Hub
}

func NewRoleService(roleRepo repository.RoleRepository, permRepo repository.PermissionRepository, txManager repository.TransactionManager, hub *ws.Hub) RoleService {
	return &roleService{roleRepo: roleRepo, permRepo: permRepo, txManager: txManager, hub: hub}
}

// --- Implementation ---

func (s *roleService) ListRoles(ctx context.Context) ([]RoleResponse, error) {
	roles, err := s.roleRepo.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	res := make([]RoleResponse, 0, len(roles))
	for _, r := range roles {
		res = append(res, toRoleResponse(r))
	}
	return res, nil
}

func (s *roleService) GetRole(ctx context.Context, id string) (*RoleResponse, error) {
	roleID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperror.NewValidation().Add("id", "must be a valid uuid")
	}

	role, err := s.roleRepo.FindByIDWithPermissions(ctx, roleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("role %s", id)
		}
		return nil, err
	}

	resp := toRoleResponse(*role)
	return &resp, nil
}

// CreateRole creates the role and links exactly the named permissions, all in
// one transaction. A failure at any step leaves no role and no links behind.
func (s *roleService) CreateRole(ctx context.Context, req CreateRoleRequest) (*RoleResponse, error) {
	ve := apperror.NewValidation()
	name := strings.TrimSpace(req.Name)
	if name == "" {
		ve.Add("name", "is required")
	}
	if len(req.Permissions) == 0 {
		ve.Add("permissions", "at least one permission is required")
	}
	if ve.HasErrors() {
		return nil, ve
	}

	role := model.Role{Name: name}
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.roleRepo.FindByName(txCtx, name); err == nil {
			return apperror.Conflict("role '%s' already exists", name)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		perms, err := s.resolvePermissions(txCtx, req.Permissions)
		if err != nil {
			return err
		}

		if err := s.roleRepo.Create(txCtx, &role); err != nil {
			return err
		}
		return s.roleRepo.ReplacePermissions(txCtx, role.ID, perms)
	})
	if err != nil {
		return nil, wrapTxErr("create role", err)
	}

	s.hub.Notify("role", "created", role.Name)

	return s.GetRole(ctx, role.ID.String())
}

// UpdateRole renames the role and re-syncs its permission links to exactly
// the named set, removing any not in it and adding any missing.
func (s *roleService) UpdateRole(ctx context.Context, id string, req UpdateRoleRequest) (*RoleResponse, error) {
	roleID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperror.NewValidation().Add("id", "must be a valid uuid")
	}

	ve := apperror.NewValidation()
	name := strings.TrimSpace(req.Name)
	if name == "" {
		ve.Add("name", "is required")
	}
	if len(req.Permissions) == 0 {
		ve.Add("permissions", "at least one permission is required")
	}
	if ve.HasErrors() {
		return nil, ve
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		role, findErr := s.roleRepo.FindByID(txCtx, roleID)
		if findErr != nil {
			if errors.Is(findErr, gorm.ErrRecordNotFound) {
				return apperror.NotFound("role %s", id)
			}
			return findErr
		}

		if other, otherErr := s.roleRepo.FindByName(txCtx, name); otherErr == nil && other.ID != role.ID {
			return apperror.Conflict("role '%s' already exists", name)
		} else if otherErr != nil && !errors.Is(otherErr, gorm.ErrRecordNotFound) {
			return otherErr
		}

		perms, permErr := s.resolvePermissions(txCtx, req.Permissions)
		if permErr != nil {
			return permErr
		}

		role.Name = name
		if err := s.roleRepo.Update(txCtx, role); err != nil {
			return err
		}
		return s.roleRepo.ReplacePermissions(txCtx, role.ID, perms)
	})
	if err != nil {
		return nil, wrapTxErr("update role", err)
	}

	s.hub.Notify("role", "updated", name)

	return s.GetRole(ctx, id)
}

// DeleteRole removes the role along with its permission links and user
// assignments. Users referencing the role keep their records; they simply
// lose the role-derived permissions.
func (s *roleService) DeleteRole(ctx context.Context, id string) error {
	roleID, err := uuid.Parse(id)
	if err != nil {
		return apperror.NewValidation().Add("id", "must be a valid uuid")
	}

	var name string
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		role, findErr := s.roleRepo.FindByID(txCtx, roleID)
		if findErr != nil {
			if errors.Is(findErr, gorm.ErrRecordNotFound) {
				return apperror.NotFound("role %s", id)
			}
			return findErr
		}
		name = role.Name

		if err := s.roleRepo.ClearPermissions(txCtx, role); err != nil {
			return err
		}
		if err := s.roleRepo.ClearUsers(txCtx, roleID); err != nil {
			return err
		}
		return s.roleRepo.Delete(txCtx, roleID)
	})
	if err != nil {
		return wrapTxErr("delete role", err)
	}

	s.hub.Notify("role", "deleted", name)
	return nil
}

// resolvePermissions maps permission names to rows, failing with NotFound when
// any name is unknown.
func (s *roleService) resolvePermissions(ctx context.Context, names []string) ([]model.Permission, error) {
	perms, err := s.permRepo.FindByNames(ctx, names)
	if err != nil {
		return nil, err
	}
	if missing := missingNames(names, permissionNames(perms)); len(missing) > 0 {
		return nil, apperror.NotFound("unknown permission(s): %s", strings.Join(missing, ", "))
	}
	return perms, nil
}

// --- Helpers ---

func toRoleResponse(r model.Role) RoleResponse {
	perms := make([]PermissionResponse, 0, len(r.Permissions))
	for _, p := range r.Permissions {
		perms = append(perms, toPermissionResponse(p))
	}

	return RoleResponse{
		ID:          r.ID.String(),
		Name:        r.Name,
		GuardName:   r.GuardName,
		Permissions: perms,
		CreatedAt:   r.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

func permissionNames(perms []model.Permission) []string {
	names := make([]string, 0, len(perms))
	for _, p := range perms {
		names = append(names, p.Name)
	}
	return names
}

// missingNames returns the requested names absent from found, deduplicated.
func missingNames(requested, found []string) []string {
	have := make(map[string]bool, len(found))
	for _, name := range found {
		have[name] = true
	}
	seen := make(map[string]bool)
	var missing []string
	for _, name := range requested {
		if !have[name] && !seen[name] {
			seen[name] = true
			missing = append(missing, name)
		}
	}
	return missing
}
