package service

import (
	"context"
	"sort"
	"testing"

	"authserver/internal/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEffectivePermissionsUnionsRolesAndDirectGrants(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedPermissions(t, "edit-post", "delete-post", "publish-post")
	env.seedRole(t, "editor", "edit-post", "publish-post")
	user, _ := env.seedUser(t, "alice", "alice@example.com", "editor")
	userID := uuid.MustParse(user.ID)

	// Direct grant overlapping a role-derived permission must not duplicate.
	_, err := env.users.GrantUserPermissions(ctx, user.ID, GrantPermissionsRequest{
		Permissions: []string{"edit-post", "delete-post"},
	})
	require.NoError(t, err)

	perms, err := env.access.EffectivePermissions(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, []string{"delete-post", "edit-post", "publish-post"}, perms)
	assert.True(t, sort.StringsAreSorted(perms))

	// Stable across calls for a fixed data state.
	again, err := env.access.EffectivePermissions(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, perms, again)
}

func TestHasPermissionChecksBothSources(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedPermissions(t, "edit-post", "delete-post")
	env.seedRole(t, "editor", "edit-post")
	user, _ := env.seedUser(t, "alice", "alice@example.com", "editor")
	userID := uuid.MustParse(user.ID)

	ok, err := env.access.HasPermission(ctx, userID, "edit-post")
	require.NoError(t, err)
	assert.True(t, ok, "role-derived permission")

	ok, err = env.access.HasPermission(ctx, userID, "delete-post")
	require.NoError(t, err)
	assert.False(t, ok)

	// Grant directly; no role carries delete-post.
	_, err = env.users.GrantUserPermissions(ctx, user.ID, GrantPermissionsRequest{
		Permissions: []string{"delete-post"},
	})
	require.NoError(t, err)

	ok, err = env.access.HasPermission(ctx, userID, "delete-post")
	require.NoError(t, err)
	assert.True(t, ok, "directly granted permission")

	ok, err = env.access.HasPermission(ctx, userID, "edit-post")
	require.NoError(t, err)
	assert.True(t, ok, "both sources still satisfied")
}

func TestHasRole(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedPermissions(t, "edit-post")
	env.seedRole(t, "editor", "edit-post")
	env.seedRole(t, "viewer", "edit-post")
	user, _ := env.seedUser(t, "alice", "alice@example.com", "editor")
	userID := uuid.MustParse(user.ID)

	ok, err := env.access.HasRole(ctx, userID, "editor")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = env.access.HasRole(ctx, userID, "viewer")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAccessQueriesUnknownUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.access.EffectivePermissions(ctx, uuid.New())
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = env.access.HasRole(ctx, uuid.New(), "editor")
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = env.access.HasPermission(ctx, uuid.New(), "edit-post")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestUserWithNoRolesAndNoGrants(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedPermissions(t, "edit-post")
	env.seedRole(t, "editor", "edit-post")
	user, _ := env.seedUser(t, "alice", "alice@example.com", "editor")
	userID := uuid.MustParse(user.ID)

	require.NoError(t, env.users.SyncUserRoles(ctx, userID, []string{}))

	perms, err := env.access.EffectivePermissions(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, perms, "empty set is a valid result, not an error")
}

func TestDeleteRoleRemovesDerivedPermissionsButKeepsUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedPermissions(t, "edit-post", "delete-post")
	role := env.seedRole(t, "editor", "edit-post")
	user, _ := env.seedUser(t, "alice", "alice@example.com", "editor")
	userID := uuid.MustParse(user.ID)

	_, err := env.users.GrantUserPermissions(ctx, user.ID, GrantPermissionsRequest{
		Permissions: []string{"delete-post"},
	})
	require.NoError(t, err)

	require.NoError(t, env.roles.DeleteRole(ctx, role.ID))

	// User record stays valid; role-derived permissions are gone, direct
	// grants survive.
	profile, err := env.users.Profile(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "alice", profile.Name)
	assert.Equal(t, []string{"delete-post"}, profile.Permissions)

	ok, err := env.access.HasPermission(ctx, userID, "edit-post")
	require.NoError(t, err)
	assert.False(t, ok)

	// The assignment rows go with the role; none may reference a deleted one.
	var linkCount int64
	require.NoError(t, env.db.Table("user_roles").Count(&linkCount).Error)
	assert.Zero(t, linkCount)
}

// The end-to-end scenario: editor role grants edit-post, delete-post arrives
// later as a direct grant.
func TestEditorScenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedPermissions(t, "edit-post", "delete-post")
	env.seedRole(t, "editor", "edit-post")
	alice, _ := env.seedUser(t, "alice", "alice@example.com", "editor")
	aliceID := uuid.MustParse(alice.ID)

	ok, err := env.access.HasPermission(ctx, aliceID, "edit-post")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = env.access.HasPermission(ctx, aliceID, "delete-post")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = env.users.GrantUserPermissions(ctx, alice.ID, GrantPermissionsRequest{
		Permissions: []string{"delete-post"},
	})
	require.NoError(t, err)

	ok, err = env.access.HasPermission(ctx, aliceID, "edit-post")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = env.access.HasPermission(ctx, aliceID, "delete-post")
	require.NoError(t, err)
	assert.True(t, ok)
}
