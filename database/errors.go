package database

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	apperrors "github.com/kbukum/bookingplatform/errors"
)

// IsNotFoundError reports whether err is a GORM record-not-found error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// IsBusyError reports whether SQLite refused the statement because another
// connection holds the lock.
func IsBusyError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "sqlite_busy")
}

// FromDatabase converts a database error into an AppError. Not-found and
// duplicate-key errors name resource; everything else is a generic
// database error whose cause is kept for logging.
func FromDatabase(err error, resource, id string) *apperrors.AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := apperrors.AsAppError(err); ok {
		return appErr
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperrors.NotFound(resource, id)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return apperrors.AlreadyExists(resource).WithCause(err)
	case IsBusyError(err):
		appErr := apperrors.DatabaseError(err)
		appErr.Retryable = true
		return appErr
	}
	return apperrors.DatabaseError(err)
}
