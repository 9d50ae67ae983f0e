package repository

import (
	"errors"

	"gigmarket/pkg/apperror"
)

// Translate maps store errors onto the typed failures returned by services.
// Errors that already carry a kind pass through unchanged.
func Translate(err error, entity string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound):
		return apperror.NotFound(entity + " not found")
	case errors.Is(err, ErrDuplicate):
		return apperror.Conflict(entity + " already exists")
	case apperror.KindOf(err) != apperror.KindInternal:
		return err
	default:
		return apperror.Internal("failed to access "+entity, err)
	}
}
