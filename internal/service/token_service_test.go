package service

import (
	"context"
	"testing"
	"time"

	"authserver/internal/apperror"
	"authserver/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenIssueVerifyRoundtrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedPermissions(t, "edit-post")
	env.seedRole(t, "editor", "edit-post")
	_, token := env.seedUser(t, "alice", "alice@example.com", "editor")

	user, err := env.tokens.Verify(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)
}

func TestVerifyRejectsGarbageAndForeignSignatures(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.tokens.Verify(ctx, "not-a-jwt")
	assert.ErrorIs(t, err, apperror.ErrUnauthenticated)

	// A token signed with a different secret fails signature verification
	// even though its shape is valid.
	other := NewTokenService(env.tokenRepo, env.userRepo, []byte("other-secret"))
	env.seedPermissions(t, "edit-post")
	env.seedRole(t, "editor", "edit-post")
	user, _ := env.seedUser(t, "alice", "alice@example.com", "editor")

	var stored model.User
	require.NoError(t, env.db.First(&stored, "email = ?", user.Email).Error)
	foreign, err := other.Issue(ctx, &stored)
	require.NoError(t, err)

	_, err = env.tokens.Verify(ctx, foreign)
	assert.ErrorIs(t, err, apperror.ErrUnauthenticated)
}

func TestVerifyRejectsRevokedToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedPermissions(t, "edit-post")
	env.seedRole(t, "editor", "edit-post")
	user, token := env.seedUser(t, "alice", "alice@example.com", "editor")

	var stored model.User
	require.NoError(t, env.db.First(&stored, "email = ?", user.Email).Error)
	require.NoError(t, env.tokens.RevokeAll(ctx, stored.ID))

	_, err := env.tokens.Verify(ctx, token)
	assert.ErrorIs(t, err, apperror.ErrUnauthenticated)
}

func TestVerifyRejectsExpiredTokenRecord(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedPermissions(t, "edit-post")
	env.seedRole(t, "editor", "edit-post")
	_, token := env.seedUser(t, "alice", "alice@example.com", "editor")

	// Force the stored record past its expiry.
	require.NoError(t, env.db.Model(&model.AccessToken{}).
		Where("1 = 1").
		Update("expires_at", time.Now().Add(-time.Hour)).Error)

	_, err := env.tokens.Verify(ctx, token)
	assert.ErrorIs(t, err, apperror.ErrUnauthenticated)
}
