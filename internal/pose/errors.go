package pose

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes failures and recoverable conditions.
type ErrorCode string

const (
	// ErrCodeInputFormat indicates missing required columns/fields or
	// malformed metadata. Fatal for the run.
	ErrCodeInputFormat ErrorCode = "INPUT_FORMAT"

	// ErrCodeSchemaMismatch indicates the two encodings of one table diverge.
	// Fatal for that partition only.
	ErrCodeSchemaMismatch ErrorCode = "SCHEMA_MISMATCH"

	// ErrCodeConfiguration indicates an unusable run configuration, such as
	// a project without a labeled-data root.
	ErrCodeConfiguration ErrorCode = "CONFIGURATION"
)

// Recoverable condition codes. These are reported, never returned as errors.
const (
	CondMissingAnchor      ErrorCode = "MISSING_ANCHOR"
	CondMissingIdentity    ErrorCode = "MISSING_IDENTITY"
	CondMissingSourceAsset ErrorCode = "MISSING_SOURCE_ASSET"
	CondPartialEncoding    ErrorCode = "PARTIAL_ENCODING"
)

// Error is a fatal poseconv failure.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Path is the file or directory involved, if any.
	Path string

	// Partition is the subject partition the failure is scoped to, if any.
	Partition string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Partition != "" {
		msg += fmt.Sprintf(" (partition=%s)", e.Partition)
	}
	if e.Path != "" {
		msg += fmt.Sprintf(" (path=%s)", e.Path)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// InputFormatError creates an INPUT_FORMAT error.
func InputFormatError(path, message string, err error) *Error {
	return &Error{Code: ErrCodeInputFormat, Message: message, Path: path, Err: err}
}

// SchemaMismatchError creates a SCHEMA_MISMATCH error scoped to partition.
func SchemaMismatchError(partition, path, message string) *Error {
	return &Error{Code: ErrCodeSchemaMismatch, Message: message, Path: path, Partition: partition}
}

// ConfigurationError creates a CONFIGURATION error.
func ConfigurationError(path, message string, err error) *Error {
	return &Error{Code: ErrCodeConfiguration, Message: message, Path: path, Err: err}
}

// IsInputFormat returns true if err is an INPUT_FORMAT error.
// Uses errors.As to handle wrapped errors.
func IsInputFormat(err error) bool {
	return hasCode(err, ErrCodeInputFormat)
}

// IsSchemaMismatch returns true if err is a SCHEMA_MISMATCH error.
func IsSchemaMismatch(err error) bool {
	return hasCode(err, ErrCodeSchemaMismatch)
}

// IsConfiguration returns true if err is a CONFIGURATION error.
func IsConfiguration(err error) bool {
	return hasCode(err, ErrCodeConfiguration)
}

func hasCode(err error, code ErrorCode) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code == code
	}
	return false
}

// Condition is a recoverable event: the affected unit is skipped and the
// run continues.
type Condition struct {
	Code    ErrorCode `json:"code"`
	Subject string    `json:"subject"` // image name, row filename or partition
	Detail  string    `json:"detail,omitempty"`
}

func (c Condition) String() string {
	if c.Detail != "" {
		return fmt.Sprintf("%s %s: %s", c.Code, c.Subject, c.Detail)
	}
	return fmt.Sprintf("%s %s", c.Code, c.Subject)
}
