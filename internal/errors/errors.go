// Package errors provides custom error types for the bullbear API.
// All service-layer errors should use AppError so clients receive a stable
// code and message while the underlying cause stays in the logs.
package errors

import (
	"errors"
	"net/http"
)

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, and optional internal error.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Retryable  bool   `json:"retryable,omitempty"`
	Internal   error  `json:"-"`

	// sentinel is the AppError this one was derived from by Wrap or WithMessage.
	sentinel *AppError
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Is reports whether e is target or was derived from it by Wrap or
// WithMessage. Several sentinels share a code (ErrInvalidQuantity and
// ErrUnknownInstrument are both VALIDATION_ERROR), so matching is by origin
// rather than code: errors.Is(err, ErrValidation) is false for
// ErrUnknownInstrument. Compare Code directly to match a whole class.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	for cur := e; cur != nil; cur = cur.sentinel {
		if cur == t {
			return true
		}
	}
	return t.Code == e.Code && t.Message == e.Message
}

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Retryable:  sentinel.Retryable,
		Internal:   internal,
		sentinel:   sentinel,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Retryable:  sentinel.Retryable,
		Internal:   sentinel.Internal,
		sentinel:   sentinel,
	}
}

// IsRetryable reports whether err carries a retryable AppError.
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Retryable
	}
	return false
}

// Authentication & authorization errors.
var (
	ErrUnauthorized = &AppError{Code: "UNAUTHORIZED", Message: "Authentication required", StatusCode: http.StatusUnauthorized}
	ErrForbidden    = &AppError{Code: "FORBIDDEN", Message: "Access denied", StatusCode: http.StatusForbidden}
)

// General errors.
var (
	ErrInvalidInput      = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrNotFound          = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrInternalServer    = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
	ErrPersistence       = &AppError{Code: "PERSISTENCE_ERROR", Message: "The store is temporarily unavailable", StatusCode: http.StatusServiceUnavailable, Retryable: true}
	ErrValidation        = &AppError{Code: "VALIDATION_ERROR", Message: "Validation failed", StatusCode: http.StatusBadRequest}
	ErrUnknownInstrument = &AppError{Code: "VALIDATION_ERROR", Message: "Unknown instrument", StatusCode: http.StatusBadRequest}
	ErrInvalidQuantity   = &AppError{Code: "VALIDATION_ERROR", Message: "Quantity must be a positive whole number", StatusCode: http.StatusBadRequest}
	ErrInvalidPrice      = &AppError{Code: "VALIDATION_ERROR", Message: "Price must be positive", StatusCode: http.StatusBadRequest}
)

// Signal and recommendation errors.
var (
	ErrInsufficientData      = &AppError{Code: "INSUFFICIENT_DATA", Message: "Required signal data is missing", StatusCode: http.StatusUnprocessableEntity}
	ErrNoCandidates          = &AppError{Code: "INSUFFICIENT_DATA", Message: "No instrument has enough data to score", StatusCode: http.StatusUnprocessableEntity}
	ErrStaleRecommendation   = &AppError{Code: "STALE_RECOMMENDATION", Message: "Recommendation is no longer active", StatusCode: http.StatusConflict}
	ErrRecommendationMissing = &AppError{Code: "RECOMMENDATION_NOT_FOUND", Message: "Recommendation not found", StatusCode: http.StatusNotFound}
	ErrProfileNotFound       = &AppError{Code: "PROFILE_NOT_FOUND", Message: "User profile not found", StatusCode: http.StatusNotFound}
)

// Ledger errors.
var (
	ErrPortfolioNotFound      = &AppError{Code: "PORTFOLIO_NOT_FOUND", Message: "Portfolio not found", StatusCode: http.StatusNotFound}
	ErrPortfolioExists        = &AppError{Code: "PORTFOLIO_EXISTS", Message: "A portfolio already exists for this user", StatusCode: http.StatusConflict}
	ErrInvestmentNotFound     = &AppError{Code: "INVESTMENT_NOT_FOUND", Message: "Investment not found", StatusCode: http.StatusNotFound}
	ErrInsufficientFunds      = &AppError{Code: "INSUFFICIENT_FUNDS", Message: "Insufficient available cash", StatusCode: http.StatusBadRequest}
	ErrInsufficientHoldings   = &AppError{Code: "INSUFFICIENT_HOLDINGS", Message: "Insufficient holdings for this sale", StatusCode: http.StatusBadRequest}
	ErrConcurrentModification = &AppError{Code: "CONCURRENT_MODIFICATION", Message: "Portfolio was modified concurrently", StatusCode: http.StatusConflict, Retryable: true}
	ErrNotPending             = &AppError{Code: "VALIDATION_ERROR", Message: "Investment is not a pending decision", StatusCode: http.StatusBadRequest}
	ErrLedgerInvariant        = &AppError{Code: "LEDGER_INVARIANT", Message: "Ledger invariant violated", StatusCode: http.StatusInternalServerError}
)

// Instrument errors.
var (
	ErrInstrumentNotFound  = &AppError{Code: "INSTRUMENT_NOT_FOUND", Message: "Instrument not found", StatusCode: http.StatusNotFound}
	ErrDuplicateInstrument = &AppError{Code: "DUPLICATE_INSTRUMENT", Message: "An instrument with this code already exists", StatusCode: http.StatusConflict}
)
