package domain

import (
	"errors"
	"fmt"
)

// Error codes
const (
	ErrCodeNotFound               = "NOT_FOUND"
	ErrCodeConflict               = "CONFLICT"
	ErrCodePermissionDenied       = "PERMISSION_DENIED"
	ErrCodeSizeLimitExceeded      = "SIZE_LIMIT_EXCEEDED"
	ErrCodeBatchLimitExceeded     = "BATCH_LIMIT_EXCEEDED"
	ErrCodeInvalidPath            = "INVALID_PATH"
	ErrCodeInvalidIdentifier      = "INVALID_IDENTIFIER"
	ErrCodeTransientStoreError    = "TRANSIENT_STORE_ERROR"
	ErrCodeCredentialsUnavailable = "CREDENTIALS_UNAVAILABLE"
	ErrCodeInternalError          = "INTERNAL_ERROR"
)

// DomainError is the typed error returned by every public operation.
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches any DomainError with the same code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Predefined errors, usable as errors.Is targets.
var (
	ErrNotFound = &DomainError{
		Code:    ErrCodeNotFound,
		Message: "entry not found",
	}
	ErrConflict = &DomainError{
		Code:    ErrCodeConflict,
		Message: "an entry with that name already exists",
	}
	ErrPermissionDenied = &DomainError{
		Code:    ErrCodePermissionDenied,
		Message: "caller scope does not match the target namespace",
	}
	ErrSizeLimitExceeded = &DomainError{
		Code:    ErrCodeSizeLimitExceeded,
		Message: "payload exceeds the maximum upload size",
	}
	ErrBatchLimitExceeded = &DomainError{
		Code:    ErrCodeBatchLimitExceeded,
		Message: "too many items in one batch",
	}
	ErrInvalidPath = &DomainError{
		Code:    ErrCodeInvalidPath,
		Message: "invalid path",
	}
	ErrInvalidIdentifier = &DomainError{
		Code:    ErrCodeInvalidIdentifier,
		Message: "tenant or project identifier cannot be used in a bucket name",
	}
	ErrTransientStore = &DomainError{
		Code:    ErrCodeTransientStoreError,
		Message: "object store operation failed",
	}
	ErrCredentialsUnavailable = &DomainError{
		Code:    ErrCodeCredentialsUnavailable,
		Message: "object store credentials are unavailable",
	}
)

// InvalidPathf returns an INVALID_PATH error with a specific message.
func InvalidPathf(format string, args ...any) *DomainError {
	return NewDomainError(ErrCodeInvalidPath, fmt.Sprintf(format, args...), nil)
}

// NotFoundf returns a NOT_FOUND error naming the missing entry.
func NotFoundf(format string, args ...any) *DomainError {
	return NewDomainError(ErrCodeNotFound, fmt.Sprintf(format, args...), nil)
}

// Conflictf returns a CONFLICT error naming the colliding entry.
func Conflictf(format string, args ...any) *DomainError {
	return NewDomainError(ErrCodeConflict, fmt.Sprintf(format, args...), nil)
}

// ErrorCode extracts the code from a domain error, INTERNAL_ERROR otherwise.
func ErrorCode(err error) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ErrCodeInternalError
}

// IsNotFound reports whether err carries the NOT_FOUND code.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
