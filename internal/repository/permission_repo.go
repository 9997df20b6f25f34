package repository

import (
	"context"

	"authserver/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PermissionRepository interface {
	Create(ctx context.Context, perm *model.Permission) error
	Update(ctx context.Context, perm *model.Permission) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Permission, error)
	FindByName(ctx context.Context, name string) (*model.Permission, error)
	FindByNames(ctx context.Context, names []string) ([]model.Permission, error)
	ListAll(ctx context.Context) ([]model.Permission, error)
	CountRoleLinks(ctx context.Context, permID uuid.UUID) (int64, error)
	CountUserLinks(ctx context.Context, permID uuid.UUID) (int64, error)
}

type permissionRepository struct {
	db *gorm.DB
}

func NewPermissionRepository(db *gorm.DB) PermissionRepository {
	return &permissionRepository{db: db}
}

func (r *permissionRepository) Create(ctx context.Context, perm *model.Permission) error {
	return GetDB(ctx, r.db).Create(perm).Error
}

func (r *permissionRepository) Update(ctx context.Context, perm *model.Permission) error {
	return GetDB(ctx, r.db).Save(perm).Error
}

func (r *permissionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Permission{}).Error
}

func (r *permissionRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Permission, error) {
	var perm model.Permission
	if err := GetDB(ctx, r.db).First(&perm, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &perm, nil
}

func (r *permissionRepository) FindByName(ctx context.Context, name string) (*model.Permission, error) {
	var perm model.Permission
	if err := GetDB(ctx, r.db).Where("name = ?", name).First(&perm).Error; err != nil {
		return nil, err
	}
	return &perm, nil
}

// FindByNames returns every permission whose name is in names. The caller
// compares lengths to detect unknown names.
func (r *permissionRepository) FindByNames(ctx context.Context, names []string) ([]model.Permission, error) {
	var perms []model.Permission
	if len(names) == 0 {
		return perms, nil
	}
	if err := GetDB(ctx, r.db).Where("name IN ?", names).Find(&perms).Error; err != nil {
		return nil, err
	}
	return perms, nil
}

func (r *permissionRepository) ListAll(ctx context.Context) ([]model.Permission, error) {
	var perms []model.Permission
	err := GetDB(ctx, r.db).Order("guard_name asc, name asc").Find(&perms).Error
	if err != nil {
		return nil, err
	}
	return perms, nil
}

// CountRoleLinks reports how many roles still reference the permission.
func (r *permissionRepository) CountRoleLinks(ctx context.Context, permID uuid.UUID) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).Table("role_permissions").
		Where("permission_id = ?", permID).
		Count(&count).Error
	return count, err
}

// CountUserLinks reports how many direct user grants still reference the permission.
func (r *permissionRepository) CountUserLinks(ctx context.Context, permID uuid.UUID) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).Table("user_permissions").
		Where("permission_id = ?", permID).
		Count(&count).Error
	return count, err
}
