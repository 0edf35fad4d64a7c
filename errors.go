package sda

import (
	"errors"
	"fmt"
)

// ErrorCategory represents the category of an SDA error
type ErrorCategory string

const (
	ErrorCategoryKeystore   ErrorCategory = "keystore"
	ErrorCategoryScheme     ErrorCategory = "scheme"
	ErrorCategorySharing    ErrorCategory = "sharing"
	ErrorCategoryMasking    ErrorCategory = "masking"
	ErrorCategoryEncryption ErrorCategory = "encryption"
	ErrorCategorySigning    ErrorCategory = "signing"
	ErrorCategoryRandomness ErrorCategory = "randomness"
	ErrorCategoryDirectory  ErrorCategory = "directory"
	ErrorCategoryInternal   ErrorCategory = "internal"
)

// Error is the structured error returned by every engine in this package.
// Messages and context never carry secret values, only counts, indices and ids.
type Error struct {
	Category  ErrorCategory          `json:"category"`
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Cause     error                  `json:"-"`
	Context   map[string]interface{} `json:"context,omitempty"`
	Retriable bool                   `json:"retriable"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s:%s] %s: %s", e.Category, e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches errors by code, so copies produced by WithCause, WithContext and
// WithDetails still satisfy errors.Is against the package sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func (e *Error) clone() *Error {
	c := &Error{
		Category:  e.Category,
		Code:      e.Code,
		Message:   e.Message,
		Details:   e.Details,
		Cause:     e.Cause,
		Retriable: e.Retriable,
		Context:   make(map[string]interface{}, len(e.Context)+1),
	}
	for k, v := range e.Context {
		c.Context[k] = v
	}
	return c
}

// WithContext returns a copy of the error with an added context entry
func (e *Error) WithContext(key string, value interface{}) *Error {
	c := e.clone()
	c.Context[key] = value
	return c
}

// WithCause returns a copy of the error wrapping cause
func (e *Error) WithCause(cause error) *Error {
	c := e.clone()
	c.Cause = cause
	return c
}

// WithDetails returns a copy of the error with a formatted detail message
func (e *Error) WithDetails(format string, args ...interface{}) *Error {
	c := e.clone()
	c.Details = fmt.Sprintf(format, args...)
	return c
}

// NewError creates a new SDA error
func NewError(category ErrorCategory, code, message string, retriable bool) *Error {
	return &Error{
		Category:  category,
		Code:      code,
		Message:   message,
		Context:   make(map[string]interface{}),
		Retriable: retriable,
	}
}

// Keystore errors
var (
	ErrDuplicateKey = NewError(
		ErrorCategoryKeystore, "DUPLICATE_KEY",
		"key id already has an entry", false)

	ErrStorageUnavailable = NewError(
		ErrorCategoryKeystore, "STORAGE_UNAVAILABLE",
		"key storage is unavailable", true)

	ErrKeyNotFound = NewError(
		ErrorCategoryKeystore, "KEY_NOT_FOUND",
		"key not found", false)
)

// Randomness errors
var (
	ErrRandomnessUnavailable = NewError(
		ErrorCategoryRandomness, "RANDOMNESS_UNAVAILABLE",
		"failed to read from the entropy source", true)
)

// Scheme and sharing errors
var (
	ErrInvalidScheme = NewError(
		ErrorCategoryScheme, "INVALID_SCHEME",
		"scheme parameters are invalid", false)

	ErrSchemeMismatch = NewError(
		ErrorCategoryScheme, "SCHEME_MISMATCH",
		"operand is not suitable for the scheme", false)

	ErrInvalidThreshold = NewError(
		ErrorCategorySharing, "INVALID_THRESHOLD",
		"threshold must satisfy 1 <= t <= n", false)

	ErrDuplicateShareIndex = NewError(
		ErrorCategorySharing, "DUPLICATE_SHARE_INDEX",
		"duplicate share index", false)

	ErrInsufficientShares = NewError(
		ErrorCategorySharing, "INSUFFICIENT_SHARES",
		"not enough shares to reach the threshold", false)

	ErrNotInvertible = NewError(
		ErrorCategoryInternal, "NOT_INVERTIBLE",
		"element has no inverse in the ring", false)
)

// Encryption and signing errors
var (
	ErrDecryptionFailed = NewError(
		ErrorCategoryEncryption, "DECRYPTION_FAILED",
		"decryption failed", false)

	ErrEncryptionFailed = NewError(
		ErrorCategoryEncryption, "ENCRYPTION_FAILED",
		"encryption failed", false)

	ErrUnsupportedKind = NewError(
		ErrorCategoryInternal, "UNSUPPORTED_KIND",
		"unsupported key kind", false)

	ErrInvalidKey = NewError(
		ErrorCategorySigning, "INVALID_KEY",
		"key material is malformed", false)

	ErrUntrustedKey = NewError(
		ErrorCategorySigning, "UNTRUSTED_KEY",
		"encryption key signature does not verify against its signer", false)
)

// Directory errors
var (
	ErrAgentNotFound = NewError(
		ErrorCategoryDirectory, "AGENT_NOT_FOUND",
		"agent is not registered", false)

	ErrCommitteeTooSmall = NewError(
		ErrorCategoryDirectory, "COMMITTEE_TOO_SMALL",
		"not enough candidates with verified keys", false)
)

// IsErrorCategory checks if an error belongs to a specific category
func IsErrorCategory(err error, category ErrorCategory) bool {
	var sdaErr *Error
	if errors.As(err, &sdaErr) {
		return sdaErr.Category == category
	}
	return false
}

// IsRetriable reports whether the caller may retry the failed operation.
// Configuration errors such as ErrSchemeMismatch are never retriable.
func IsRetriable(err error) bool {
	var sdaErr *Error
	if errors.As(err, &sdaErr) {
		return sdaErr.Retriable
	}
	return false
}

// GetErrorContext extracts context from an SDA error
func GetErrorContext(err error) map[string]interface{} {
	var sdaErr *Error
	if errors.As(err, &sdaErr) {
		return sdaErr.Context
	}
	return nil
}
