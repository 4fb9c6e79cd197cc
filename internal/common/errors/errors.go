// Package errors provides the structured error type shared by the REST API,
// the wizard service and the Zeebe review worker.
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidLeadType  ErrorCode = "INVALID_LEAD_TYPE"
	ErrCodeInvalidInput     ErrorCode = "INVALID_INPUT"

	ErrCodeReportNotFound          ErrorCode = "REPORT_NOT_FOUND"
	ErrCodeStepOutOfRange          ErrorCode = "STEP_OUT_OF_RANGE"
	ErrCodeStepNotSkippable        ErrorCode = "STEP_NOT_SKIPPABLE"
	ErrCodeSaveInProgress          ErrorCode = "SAVE_IN_PROGRESS"
	ErrCodeStepSaveFailed          ErrorCode = "STEP_SAVE_FAILED"
	ErrCodeReportFetchFailed       ErrorCode = "REPORT_FETCH_FAILED"
	ErrCodeReportLocked            ErrorCode = "REPORT_LOCKED"
	ErrCodeInvalidStatusTransition ErrorCode = "INVALID_STATUS_TRANSITION"
	ErrCodeInitializationFailed    ErrorCode = "INITIALIZATION_FAILED"
	ErrCodeLookupFailed            ErrorCode = "LOOKUP_FAILED"

	ErrCodeEmployeeNotFound  ErrorCode = "EMPLOYEE_NOT_FOUND"
	ErrCodeDuplicateEmployee ErrorCode = "DUPLICATE_EMPLOYEE"

	ErrCodeDatabaseError        ErrorCode = "DATABASE_ERROR"
	ErrCodeTimeout              ErrorCode = "TIMEOUT"
	ErrCodeExternalServiceError ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeInternal             ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// WithMetadata attaches a metadata entry and returns the same error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 2. Error Constructors
// ==========================

// NewValidationFailedError carries the field-level failures under metadata "fields".
func NewValidationFailedError(details string, fields interface{}) *StandardError {
	e := newError(ErrCodeValidationFailed, "Step data failed validation", details, false)
	if fields != nil {
		e.WithMetadata("fields", fields)
	}
	return e
}

func NewInvalidLeadTypeError(leadType string) *StandardError {
	return newError(ErrCodeInvalidLeadType, "Unsupported lead type", fmt.Sprintf("leadType: %s", leadType), false)
}

func NewInvalidInputError(details string) *StandardError {
	return newError(ErrCodeInvalidInput, "Invalid request input", details, false)
}

func NewReportNotFoundError(reportID int64) *StandardError {
	return newError(ErrCodeReportNotFound, "Pre-report not found", fmt.Sprintf("reportId: %d", reportID), false)
}

func NewStepOutOfRangeError(leadType string, step, total int) *StandardError {
	return newError(ErrCodeStepOutOfRange, "Step number out of range",
		fmt.Sprintf("leadType: %s, step: %d, totalSteps: %d", leadType, step, total), false)
}

func NewStepNotSkippableError(leadType string, step int) *StandardError {
	return newError(ErrCodeStepNotSkippable, "Step cannot be skipped",
		fmt.Sprintf("leadType: %s, step: %d", leadType, step), false)
}

// NewSaveInProgressError reports a concurrent save on the same report.
func NewSaveInProgressError(reportID int64) *StandardError {
	return newError(ErrCodeSaveInProgress, "Another save is in progress for this report",
		fmt.Sprintf("reportId: %d", reportID), true)
}

// NewStepSaveFailedError creates a retryable save failure. The wizard pointer is unchanged.
func NewStepSaveFailedError(reportID int64, step int, err error) *StandardError {
	return newError(ErrCodeStepSaveFailed, "Failed to save step",
		fmt.Sprintf("reportId: %d, step: %d, error: %s", reportID, step, err.Error()), true)
}

func NewReportFetchFailedError(reportID int64, err error) *StandardError {
	return newError(ErrCodeReportFetchFailed, "Failed to load pre-report",
		fmt.Sprintf("reportId: %d, error: %s", reportID, err.Error()), true)
}

func NewReportLockedError(reportID int64, status string) *StandardError {
	return newError(ErrCodeReportLocked, "Pre-report is no longer editable",
		fmt.Sprintf("reportId: %d, status: %s", reportID, status), false)
}

func NewInvalidStatusTransitionError(from, to string) *StandardError {
	return newError(ErrCodeInvalidStatusTransition, "Report status transition not allowed",
		fmt.Sprintf("from: %s, to: %s", from, to), false)
}

func NewInitializationFailedError(err error) *StandardError {
	return newError(ErrCodeInitializationFailed, "Failed to initialize pre-report", err.Error(), true)
}

func NewLookupFailedError(lookup string, err error) *StandardError {
	return newError(ErrCodeLookupFailed, "Dropdown lookup failed",
		fmt.Sprintf("lookup: %s, error: %s", lookup, err.Error()), true)
}

func NewEmployeeNotFoundError(id string) *StandardError {
	return newError(ErrCodeEmployeeNotFound, "Employee not found", fmt.Sprintf("employeeId: %s", id), false)
}

// NewDuplicateEmployeeError names the unique field that collided.
func NewDuplicateEmployeeError(field, value string) *StandardError {
	details := fmt.Sprintf("%s: %s", field, value)
	if value == "" {
		details = field
	}
	return newError(ErrCodeDuplicateEmployee, "Employee already exists", details, false)
}

func NewDatabaseError(operation string, err error) *StandardError {
	return newError(ErrCodeDatabaseError, "Database operation failed",
		fmt.Sprintf("operation: %s, error: %s", operation, err.Error()), true)
}

func NewTimeoutError(service string, err error) *StandardError {
	return newError(ErrCodeTimeout, fmt.Sprintf("Service '%s' timeout", service), err.Error(), true)
}

func NewExternalServiceError(service string, err error) *StandardError {
	return newError(ErrCodeExternalServiceError, fmt.Sprintf("External service '%s' error", service), err.Error(), true)
}

func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false)
}

// ==========================
// 3. Conversion helpers
// ==========================

// As extracts a *StandardError from an error chain.
func As(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// Normalize guarantees a StandardError, mapping context expiry onto TIMEOUT.
func Normalize(err error) *StandardError {
	if err == nil {
		return nil
	}
	if stdErr, ok := As(err); ok {
		return stdErr
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return NewTimeoutError("request", err)
	}
	return NewInternalError(err)
}

// HTTPStatusMapping maps error codes onto REST response statuses.
var HTTPStatusMapping = map[ErrorCode]int{
	ErrCodeValidationFailed:        http.StatusUnprocessableEntity,
	ErrCodeInvalidLeadType:         http.StatusBadRequest,
	ErrCodeInvalidInput:            http.StatusBadRequest,
	ErrCodeReportNotFound:          http.StatusNotFound,
	ErrCodeStepOutOfRange:          http.StatusBadRequest,
	ErrCodeStepNotSkippable:        http.StatusConflict,
	ErrCodeSaveInProgress:          http.StatusConflict,
	ErrCodeStepSaveFailed:          http.StatusBadGateway,
	ErrCodeReportFetchFailed:       http.StatusBadGateway,
	ErrCodeReportLocked:            http.StatusConflict,
	ErrCodeInvalidStatusTransition: http.StatusConflict,
	ErrCodeInitializationFailed:    http.StatusBadGateway,
	ErrCodeLookupFailed:            http.StatusBadGateway,
	ErrCodeEmployeeNotFound:        http.StatusNotFound,
	ErrCodeDuplicateEmployee:       http.StatusConflict,
	ErrCodeDatabaseError:           http.StatusServiceUnavailable,
	ErrCodeTimeout:                 http.StatusGatewayTimeout,
	ErrCodeExternalServiceError:    http.StatusBadGateway,
	ErrCodeInternal:                http.StatusInternalServerError,
}

// HTTPStatus returns the response status for a code, 500 when unmapped.
func HTTPStatus(code ErrorCode) int {
	if status, ok := HTTPStatusMapping[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// GetRetryCount returns the job retry budget the review worker uses per code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseError,
		ErrCodeExternalServiceError,
		ErrCodeReportFetchFailed,
		ErrCodeStepSaveFailed:
		return 3
	case ErrCodeTimeout,
		ErrCodeSaveInProgress:
		return 2
	default:
		return 0
	}
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "VALIDATION") || strings.HasPrefix(codeStr, "INVALID"):
		return "VALIDATION"
	case strings.Contains(codeStr, "STEP") || strings.Contains(codeStr, "SAVE") || strings.Contains(codeStr, "REPORT"):
		return "WIZARD"
	case strings.Contains(codeStr, "EMPLOYEE"):
		return "DIRECTORY"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "LOOKUP"):
		return "DATABASE"
	case strings.Contains(codeStr, "EXTERNAL") || strings.Contains(codeStr, "TIMEOUT"):
		return "INTEGRATION"
	default:
		return "OTHER"
	}
}
