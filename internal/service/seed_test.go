package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedBaselineIsIdempotentAndPreservesExtras(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, SeedBaseline(ctx, env.permRepo, env.roleRepo, env.txManager))

	roles, err := env.roles.ListRoles(ctx)
	require.NoError(t, err)
	require.Len(t, roles, 1)
	assert.Equal(t, "admin", roles[0].Name)
	assert.Len(t, roles[0].Permissions, 3)

	// Operator adds a permission to admin; a reseed must not strip it.
	env.seedPermissions(t, "reports.read")
	_, err = env.roles.UpdateRole(ctx, roles[0].ID, UpdateRoleRequest{
		Name:        "admin",
		Permissions: []string{"users.read", "users.write", "roles.manage", "reports.read"},
	})
	require.NoError(t, err)

	require.NoError(t, SeedBaseline(ctx, env.permRepo, env.roleRepo, env.txManager))

	after, err := env.roles.GetRole(ctx, roles[0].ID)
	require.NoError(t, err)
	assert.Len(t, after.Permissions, 4)
}
