package handlers

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "bullbear/internal/errors"
	"bullbear/internal/logger"
	"bullbear/internal/pagination"
)

// maxWindowDays bounds the ?days= shorthand on history endpoints.
const maxWindowDays = 3650

// getUserID extracts the authenticated user ID from the Gin context.
// Returns ErrUnauthorized if not present.
func getUserID(c *gin.Context) (string, error) {
	userID := c.GetString("userID")
	if userID == "" {
		return "", apperrors.ErrUnauthorized
	}
	return userID, nil
}

// parseFlexibleTime accepts RFC3339 timestamps or plain YYYY-MM-DD dates.
func parseFlexibleTime(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid time %q: use RFC3339 or YYYY-MM-DD", value)
}

// parseWindow reads optional from/to query bounds, or a ?days=N shorthand
// ending now. A plain to date covers the whole day.
func parseWindow(c *gin.Context, now time.Time) (pagination.Window, error) {
	if raw := c.Query("days"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil || days <= 0 || days > maxWindowDays {
			return pagination.Window{}, apperrors.WithMessage(apperrors.ErrInvalidInput, "days must be between 1 and 3650")
		}
		return pagination.LastDays(now, days), nil
	}

	var w pagination.Window
	if raw := c.Query("from"); raw != "" {
		from, err := parseFlexibleTime(raw)
		if err != nil {
			return w, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error())
		}
		w.From = from
	}
	if raw := c.Query("to"); raw != "" {
		to, err := parseFlexibleTime(raw)
		if err != nil {
			return w, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error())
		}
		if len(raw) == len("2006-01-02") {
			to = to.Add(24*time.Hour - time.Nanosecond)
		}
		w.To = to
	}
	if !w.Valid() {
		return w, apperrors.WithMessage(apperrors.ErrInvalidInput, "from must not be after to")
	}
	return w, nil
}

// respondWithError writes a consistent JSON error response. If the error is an
// *AppError it uses the error's status code, code, and message. Otherwise it
// logs the unexpected error and returns a generic internal server error.
func respondWithError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if appErr.Internal != nil {
			logger.Get().Errorw("app error",
				"code", appErr.Code,
				"internal", appErr.Internal.Error(),
				"path", c.Request.URL.Path,
			)
		}
		c.JSON(appErr.StatusCode, ErrorResponse{Error: ErrorDetail{
			Code:      appErr.Code,
			Message:   appErr.Message,
			Retryable: appErr.Retryable,
		}})
		return
	}

	logger.Get().Errorw("unexpected error",
		"error", err.Error(),
		"path", c.Request.URL.Path,
		"method", c.Request.Method,
	)
	c.JSON(apperrors.ErrInternalServer.StatusCode, ErrorResponse{Error: ErrorDetail{
		Code:    apperrors.ErrInternalServer.Code,
		Message: apperrors.ErrInternalServer.Message,
	}})
}

// ErrorDetail represents the inner error object in an error response.
type ErrorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}
