// Package errors provides standardized error handling for BPMN workflow integration.
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Domain Sentinels
// ==========================

// Sentinels returned by the certificate core. Callers wrap them with fmt.Errorf("%w: ...")
// and match with errors.Is.
var (
	ErrNotFound          = stderrors.New("NOT_FOUND")
	ErrForbidden         = stderrors.New("FORBIDDEN")
	ErrAlreadyDecided    = stderrors.New("ALREADY_DECIDED")
	ErrAlreadyTerminal   = stderrors.New("ALREADY_TERMINAL")
	ErrAlreadyRevoked    = stderrors.New("ALREADY_REVOKED")
	ErrInvalidSignature  = stderrors.New("INVALID_SIGNATURE")
	ErrInvalidState      = stderrors.New("INVALID_STATE")
	ErrDuplicateNumber   = stderrors.New("DUPLICATE_NUMBER")
	ErrIssuanceFailed    = stderrors.New("ISSUANCE_FAILED")
	ErrLedgerUnavailable = stderrors.New("LEDGER_UNAVAILABLE")
	ErrKeyError          = stderrors.New("KEY_ERROR")
	ErrRevoked           = stderrors.New("REVOKED")
	ErrIntegrityFailure  = stderrors.New("INTEGRITY_FAILURE")
	ErrTimeout           = stderrors.New("TIMEOUT")
	ErrInvalidInput      = stderrors.New("INVALID_INPUT")

	// ErrDatabase marks a storage failure that is not a domain outcome (lost connection,
	// failover, serialization failure).
	ErrDatabase = stderrors.New("DATABASE_QUERY_FAILED")
)

// ==========================
// 2. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeNotFound          ErrorCode = "NOT_FOUND"
	ErrCodeForbidden         ErrorCode = "FORBIDDEN"
	ErrCodeAlreadyDecided    ErrorCode = "ALREADY_DECIDED"
	ErrCodeAlreadyTerminal   ErrorCode = "ALREADY_TERMINAL"
	ErrCodeAlreadyRevoked    ErrorCode = "ALREADY_REVOKED"
	ErrCodeInvalidSignature  ErrorCode = "INVALID_SIGNATURE"
	ErrCodeInvalidState      ErrorCode = "INVALID_STATE"
	ErrCodeDuplicateNumber   ErrorCode = "DUPLICATE_NUMBER"
	ErrCodeIssuanceFailed    ErrorCode = "ISSUANCE_FAILED"
	ErrCodeLedgerUnavailable ErrorCode = "LEDGER_UNAVAILABLE"
	ErrCodeKeyError          ErrorCode = "KEY_ERROR"
	ErrCodeRevoked           ErrorCode = "REVOKED"
	ErrCodeIntegrityFailure  ErrorCode = "INTEGRITY_FAILURE"
	ErrCodeTimeout           ErrorCode = "TIMEOUT"
	ErrCodeInvalidInput      ErrorCode = "INVALID_INPUT"

	ErrCodeDatabaseQueryFailed  ErrorCode = "DATABASE_QUERY_FAILED"
	ErrCodeNotificationFailed   ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeSearchQueryFailed    ErrorCode = "SEARCH_QUERY_FAILED"
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

// ==========================
// 3. BPMN Error Integration
// ==========================

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

// ==========================
// 4. Error Constructors
// ==========================

var sentinelCodes = []struct {
	err       error
	code      ErrorCode
	message   string
	retryable bool
}{
	{ErrNotFound, ErrCodeNotFound, "Resource not found", false},
	{ErrForbidden, ErrCodeForbidden, "Operation not permitted for this approver", false},
	{ErrAlreadyDecided, ErrCodeAlreadyDecided, "Application already decided at this level", false},
	{ErrAlreadyTerminal, ErrCodeAlreadyTerminal, "Application is already finished", false},
	{ErrAlreadyRevoked, ErrCodeAlreadyRevoked, "Certificate is already revoked", false},
	{ErrInvalidSignature, ErrCodeInvalidSignature, "Approval signature does not verify", false},
	{ErrInvalidState, ErrCodeInvalidState, "Precondition not met for this operation", false},
	{ErrDuplicateNumber, ErrCodeDuplicateNumber, "Certificate number collision", true},
	{ErrIssuanceFailed, ErrCodeIssuanceFailed, "Certificate issuance failed", true},
	{ErrLedgerUnavailable, ErrCodeLedgerUnavailable, "Ledger unavailable", true},
	{ErrKeyError, ErrCodeKeyError, "Malformed signing key material", false},
	{ErrRevoked, ErrCodeRevoked, "Certificate has been revoked", false},
	{ErrIntegrityFailure, ErrCodeIntegrityFailure, "Stored content failed integrity check", false},
	{ErrTimeout, ErrCodeTimeout, "External call exceeded its deadline", true},
	{ErrInvalidInput, ErrCodeInvalidInput, "Invalid job input", false},
	{ErrDatabase, ErrCodeDatabaseQueryFailed, "Database operation failed", true},
}

// FromError normalizes any error into a StandardError. Domain sentinels keep their code and
// retry class; context deadlines are reported as retryable timeouts.
func FromError(err error) *StandardError {
	if err == nil {
		return nil
	}

	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}

	for _, s := range sentinelCodes {
		if stderrors.Is(err, s.err) {
			return &StandardError{
				Code:      s.code,
				Message:   s.message,
				Details:   err.Error(),
				Retryable: s.retryable,
				Timestamp: time.Now().UTC(),
			}
		}
	}

	if stderrors.Is(err, context.DeadlineExceeded) {
		return NewTimeoutError("certificate", err)
	}

	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// CodeOf returns the error code FromError would assign.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	return FromError(err).Code
}

// NewDatabaseQueryFailedError creates a retryable database error.
func NewDatabaseQueryFailedError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseQueryFailed,
		Message:   "Database operation failed",
		Details:   fmt.Sprintf("operation: %s, error: %s", operation, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationSendFailedError creates a retryable notification send error.
func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationFailed,
		Message:   "Notification delivery failed",
		Details:   fmt.Sprintf("channel: %s, error: %s", channel, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSearchQueryFailedError creates a retryable search query error.
func NewSearchQueryFailedError(index string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSearchQueryFailed,
		Message:   "Elasticsearch query error",
		Details:   fmt.Sprintf("index: %s, error: %s", index, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidInputError creates a non-retryable input validation error.
func NewInvalidInputError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidInput,
		Message:   "Invalid job input",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// Generic constructors

func NewBusinessRuleError(message, details string) *StandardError {
	return &StandardError{
		Code:      "BUSINESS_RULE_VIOLATION",
		Message:   message,
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewExternalServiceError(service string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeExternalServiceError,
		Message:   fmt.Sprintf("External service '%s' error", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewTimeoutError(service string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTimeout,
		Message:   fmt.Sprintf("Service '%s' timeout", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewResourceNotFoundError(service, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotFound,
		Message:   fmt.Sprintf("Resource not found in %s", service),
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewAuthenticationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeForbidden,
		Message:   "Authentication failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 5. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to the error codes caught by boundary events.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeNotFound:          "NOT_FOUND",
	ErrCodeForbidden:         "FORBIDDEN",
	ErrCodeAlreadyDecided:    "ALREADY_DECIDED",
	ErrCodeAlreadyTerminal:   "ALREADY_TERMINAL",
	ErrCodeAlreadyRevoked:    "ALREADY_REVOKED",
	ErrCodeInvalidSignature:  "INVALID_SIGNATURE",
	ErrCodeInvalidState:      "INVALID_STATE",
	ErrCodeDuplicateNumber:   "DUPLICATE_NUMBER",
	ErrCodeIssuanceFailed:    "ISSUANCE_FAILED",
	ErrCodeLedgerUnavailable: "LEDGER_UNAVAILABLE",
	ErrCodeKeyError:          "KEY_ERROR",
	ErrCodeRevoked:           "CERTIFICATE_REVOKED",
	ErrCodeIntegrityFailure:  "INTEGRITY_FAILURE",
	ErrCodeTimeout:           "TIMEOUT",
	ErrCodeInvalidInput:      "INVALID_INPUT",
}

// GetRetryCount returns the recommended retry count for an error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDuplicateNumber,
		ErrCodeIssuanceFailed,
		ErrCodeDatabaseQueryFailed,
		ErrCodeNotificationFailed,
		ErrCodeSearchQueryFailed,
		ErrCodeExternalServiceError:
		return 3

	case ErrCodeTimeout,
		ErrCodeLedgerUnavailable:
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

// ==========================
// 6. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "ALREADY_") || code == ErrCodeInvalidState:
		return "STATE"
	case code == ErrCodeForbidden || code == ErrCodeInvalidSignature || code == ErrCodeKeyError:
		return "AUTHORIZATION"
	case code == ErrCodeDuplicateNumber || code == ErrCodeIssuanceFailed:
		return "ISSUANCE"
	case strings.Contains(codeStr, "LEDGER"):
		return "LEDGER"
	case code == ErrCodeRevoked || code == ErrCodeIntegrityFailure:
		return "VERIFICATION"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "SEARCH"):
		return "DATABASE"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
