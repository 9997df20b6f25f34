package service

import (
	"errors"

	"authserver/internal/apperror"

	"gorm.io/gorm"
)

// wrapTxErr classifies an error coming out of a transaction. Domain errors
// (validation, conflict, not-found, session) pass through untouched. A
// unique-index violation becomes a Conflict: two concurrent writers can both
// pass the in-transaction duplicate check, and the loser's constraint error
// is still a conflict, not a store fault. Anything else already triggered a
// rollback and is reported as a TransactionFailure.
func wrapTxErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var ve *apperror.ValidationError
	if errors.As(err, &ve) ||
		errors.Is(err, apperror.ErrConflict) ||
		errors.Is(err, apperror.ErrNotFound) ||
		errors.Is(err, apperror.ErrUnauthenticated) ||
		errors.Is(err, apperror.ErrUnauthorized) {
		return err
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperror.Conflict("%s: duplicate value", op)
	}
	return &apperror.TransactionFailure{Op: op, Err: err}
}
