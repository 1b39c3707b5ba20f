package services

import (
	"errors"

	"telemed-server/internal/apperrors"
	"telemed-server/internal/store"
)

// lookupErr turns a store miss into NotFound and anything else into Internal.
func lookupErr(err error, format string, args ...any) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperrors.NotFound(format, args...)
	}
	return apperrors.Internal(err, format, args...)
}

// passThrough keeps typed errors and wraps everything else as Internal.
func passThrough(err error, format string, args ...any) error {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.Internal(err, format, args...)
}
