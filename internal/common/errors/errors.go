// Package errors provides standardized error handling for BPMN workflow integration.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeUserNotFound            ErrorCode = "USER_NOT_FOUND"
	ErrCodePetNotFound             ErrorCode = "PET_NOT_FOUND"
	ErrCodeWeightsValidationFailed ErrorCode = "WEIGHTS_VALIDATION_FAILED"
	ErrCodeCapsValidationFailed    ErrorCode = "CAPS_VALIDATION_FAILED"
	ErrCodeInvalidInputFormat      ErrorCode = "INVALID_INPUT_FORMAT"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeQueryTimeout             ErrorCode = "QUERY_TIMEOUT"

	ErrCodeCacheReadFailed  ErrorCode = "CACHE_READ_FAILED"
	ErrCodeCacheWriteFailed ErrorCode = "CACHE_WRITE_FAILED"

	ErrCodeDeckGenerationFailed ErrorCode = "DECK_GENERATION_FAILED"
	ErrCodeSwipeRecordFailed    ErrorCode = "SWIPE_RECORD_FAILED"
	ErrCodeAuditWriteFailed     ErrorCode = "AUDIT_WRITE_FAILED"
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

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}

	for k, v := range e.ErrorVariables {
		vars[k] = v
	}

	return vars
}

// --- Error Constructors ---

// NewUserNotFoundError: requester id does not resolve to a known account.
// Generation aborts before any cache or audit write.
func NewUserNotFoundError(userID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUserNotFound,
		Message:   "User not found",
		Details:   fmt.Sprintf("userId: %s", userID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewPetNotFoundError creates a non-retryable pet lookup error.
func NewPetNotFoundError(petID string) *StandardError {
	return &StandardError{
		Code:      ErrCodePetNotFound,
		Message:   "Pet not found",
		Details:   fmt.Sprintf("petId: %s", petID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewWeightsValidationError: an out-of-range or non-numeric scoring weight.
// The update is rejected atomically, no partial config change.
func NewWeightsValidationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeWeightsValidationFailed,
		Message:   "Scoring weights validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewCapsValidationError creates a non-retryable diversity caps validation error.
func NewCapsValidationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeCapsValidationFailed,
		Message:   "Diversity caps validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidInputError creates a non-retryable input parse error.
func NewInvalidInputError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidInputFormat,
		Message:   "Invalid input format",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryExecutionFailedError creates a retryable query execution error.
func NewQueryExecutionFailedError(queryName string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryExecutionFailed,
		Message:   "Database query execution error",
		Details:   fmt.Sprintf("query: %s, error: %s", queryName, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryTimeoutError creates a retryable query timeout error.
func NewQueryTimeoutError(queryName string) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryTimeout,
		Message:   "Database query timeout",
		Details:   fmt.Sprintf("query: %s", queryName),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewCacheReadFailedError creates a retryable cache read error.
func NewCacheReadFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCacheReadFailed,
		Message:   "Deck cache read error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewCacheWriteFailedError creates a retryable cache write error.
func NewCacheWriteFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCacheWriteFailed,
		Message:   "Deck cache write error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDeckGenerationFailedError creates a retryable deck generation error.
func NewDeckGenerationFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDeckGenerationFailed,
		Message:   "Deck generation failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSwipeRecordFailedError creates a retryable swipe insert error.
func NewSwipeRecordFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSwipeRecordFailed,
		Message:   "Swipe record insert failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewAuditWriteFailedError creates an audit write error. Audit failures are
// logged by the caller and never fail the primary path.
func NewAuditWriteFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeAuditWriteFailed,
		Message:   "Audit record write failed",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// --- Error Conversion to BPMN ---

// BPMNErrorMapping maps internal error codes to BPMN error codes (identical).
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeUserNotFound:             "USER_NOT_FOUND",
	ErrCodePetNotFound:              "PET_NOT_FOUND",
	ErrCodeWeightsValidationFailed:  "WEIGHTS_VALIDATION_FAILED",
	ErrCodeCapsValidationFailed:     "CAPS_VALIDATION_FAILED",
	ErrCodeInvalidInputFormat:       "INVALID_INPUT_FORMAT",
	ErrCodeDatabaseConnectionFailed: "DATABASE_CONNECTION_FAILED",
	ErrCodeQueryExecutionFailed:     "QUERY_EXECUTION_FAILED",
	ErrCodeQueryTimeout:             "QUERY_TIMEOUT",
	ErrCodeCacheReadFailed:          "CACHE_READ_FAILED",
	ErrCodeCacheWriteFailed:         "CACHE_WRITE_FAILED",
	ErrCodeDeckGenerationFailed:     "DECK_GENERATION_FAILED",
	ErrCodeSwipeRecordFailed:        "SWIPE_RECORD_FAILED",
	ErrCodeAuditWriteFailed:         "AUDIT_WRITE_FAILED",
}

// GetRetryCount returns the recommended retry count per error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeCacheReadFailed,
		ErrCodeCacheWriteFailed,
		ErrCodeDeckGenerationFailed,
		ErrCodeSwipeRecordFailed:
		return 3 // Retryable technical errors

	case ErrCodeQueryTimeout:
		return 2

	default:
		return 0 // Business errors: no retry
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// --- Utility Functions ---

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "VALIDATION") || strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	case strings.Contains(codeStr, "NOT_FOUND"):
		return "LOOKUP"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY"):
		return "DATABASE"
	case strings.Contains(codeStr, "CACHE"):
		return "CACHE"
	case strings.Contains(codeStr, "DECK") || strings.Contains(codeStr, "SWIPE"):
		return "DECK"
	case strings.Contains(codeStr, "AUDIT"):
		return "AUDIT"
	default:
		return "OTHER"
	}
}
