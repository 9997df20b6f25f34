package service

import (
	"context"
	"errors"
	"fmt"

	"authserver/internal/model"
	"authserver/internal/repository"

	"gorm.io/gorm"
)

// Baseline permissions the server itself gates routes with.
var baselinePermissions = []string{
	"users.read",
	"users.write",
	"roles.manage",
}

// SeedBaseline ensures the gating permissions and an admin role holding all
// of them exist. Idempotent; safe to run on every startup.
func SeedBaseline(ctx context.Context, permRepo repository.PermissionRepository, roleRepo repository.RoleRepository, txManager repository.TransactionManager) error {
	return txManager.RunInTx(ctx, func(txCtx context.Context) error {
		perms := make([]model.Permission, 0, len(baselinePermissions))
		for _, name := range baselinePermissions {
			perm, err := permRepo.FindByName(txCtx, name)
			if err != nil {
				if !errors.Is(err, gorm.ErrRecordNotFound) {
					return err
				}
				perm = &model.Permission{Name: name}
				if err := permRepo.Create(txCtx, perm); err != nil {
					return fmt.Errorf("failed to seed permission '%s': %w", name, err)
				}
			}
			perms = append(perms, *perm)
		}

		role, err := roleRepo.FindByName(txCtx, "admin")
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			role = &model.Role{Name: "admin"}
			if err := roleRepo.Create(txCtx, role); err != nil {
				return fmt.Errorf("failed to seed role 'admin': %w", err)
			}
		}

		// Union with whatever the role already carries so operator-added
		// permissions survive restarts.
		existing, err := roleRepo.FindByIDWithPermissions(txCtx, role.ID)
		if err != nil {
			return err
		}
		have := make(map[string]bool, len(existing.Permissions))
		for _, p := range existing.Permissions {
			have[p.Name] = true
		}
		merged := existing.Permissions
		for _, p := range perms {
			if !have[p.Name] {
				merged = append(merged, p)
			}
		}

		return roleRepo.ReplacePermissions(txCtx, role.ID, merged)
	})
}
