package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	apperrors "bullbear/internal/errors"
)

// persistErr classifies a store failure. Context cancellation passes through;
// everything else becomes a retryable PERSISTENCE_ERROR.
func persistErr(err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return apperrors.Wrap(apperrors.ErrPersistence, err)
}

// notFoundOr maps gorm.ErrRecordNotFound to sentinel and anything else to persistErr.
func notFoundOr(err error, sentinel *apperrors.AppError) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return persistErr(err)
}

// isUniqueConstraintError checks if a GORM error is a unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || // SQLite
		strings.Contains(msg, "duplicate key value violates unique constraint") // PostgreSQL
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
