package service

import (
	"errors"
	"testing"

	"authserver/internal/apperror"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestWrapTxErr(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		assert.NoError(t, wrapTxErr("noop", nil))
	})

	t.Run("domain errors pass through", func(t *testing.T) {
		conflict := apperror.Conflict("role 'editor' already exists")
		assert.ErrorIs(t, wrapTxErr("create role", conflict), apperror.ErrConflict)

		notFound := apperror.NotFound("role %s", "ghost")
		assert.ErrorIs(t, wrapTxErr("update role", notFound), apperror.ErrNotFound)
	})

	t.Run("duplicate key becomes conflict", func(t *testing.T) {
		// A concurrent writer losing the unique-index race is a conflict,
		// not a store fault.
		err := wrapTxErr("create role", gorm.ErrDuplicatedKey)
		assert.ErrorIs(t, err, apperror.ErrConflict)
		assert.Equal(t, 409, apperror.HTTPStatus(err))
	})

	t.Run("anything else is a transaction failure", func(t *testing.T) {
		cause := errors.New("connection reset")
		err := wrapTxErr("register user", cause)

		var tf *apperror.TransactionFailure
		assert.ErrorAs(t, err, &tf)
		assert.Equal(t, "register user", tf.Op)
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, 500, apperror.HTTPStatus(err))
	})
}
