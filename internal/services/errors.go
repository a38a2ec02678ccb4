package services

import (
	"errors"

	apperrors "github.com/SAP-F-2025/marking-service/internal/errors"
)

// ===== COMMON SERVICE ERRORS =====

var (
	// Generic errors
	ErrNotFound         = errors.New("resource not found")
	ErrValidationFailed = errors.New("validation failed")
	ErrBadRequest       = errors.New("bad request")

	// Marking specific errors
	ErrResultNotFound = errors.New("marking result not found")
	ErrBatchNotFound  = errors.New("marking batch not found")
	ErrEmptyBatch     = errors.New("batch contains no questions")
	ErrBatchTooLarge  = errors.New("batch contains too many questions")
)

// ===== CUSTOM ERROR TYPES =====

// Use shared validation errors from errors package
type ValidationError = apperrors.ValidationError
type ValidationErrors = apperrors.ValidationErrors

// ===== ERROR HELPERS =====

// NewValidationError creates a new validation error using the shared type
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return apperrors.NewValidationError(field, message, value)
}

// IsNotFound checks if error represents a "not found" condition
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrResultNotFound) ||
		errors.Is(err, ErrBatchNotFound)
}

// IsValidation checks if error represents a validation failure
func IsValidation(err error) bool {
	if errors.Is(err, ErrValidationFailed) ||
		errors.Is(err, ErrBadRequest) ||
		errors.Is(err, ErrEmptyBatch) ||
		errors.Is(err, ErrBatchTooLarge) {
		return true
	}
	var ve apperrors.ValidationErrors
	return errors.As(err, &ve)
}

// IsUnavailable checks if error means the marking pipeline cannot take work
func IsUnavailable(err error) bool {
	return errors.Is(err, apperrors.ErrCoordinatorClosed) ||
		apperrors.IsChannelUnavailable(err)
}
