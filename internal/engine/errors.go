package engine

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes workflow errors. Every error Execute returns carries
// exactly one code.
type ErrorCode string

const (
	// CodeValidation: the change conflicts with current state or is malformed.
	// Safe to surface; a blind retry fails the same way.
	CodeValidation ErrorCode = "VALIDATION"

	// CodeConflict: a reused idempotency key produced a different outcome.
	// Needs investigation, not a retry.
	CodeConflict ErrorCode = "CONFLICT"

	// CodeExternalService: the ERP or local storage failed. Nothing was
	// written when the ERP failed, so a retry is safe.
	CodeExternalService ErrorCode = "EXTERNAL_SERVICE"

	// CodeNotFound: the referenced order line or receipt does not exist.
	CodeNotFound ErrorCode = "NOT_FOUND"
)

// ValidationError reports a change rejected before reaching the ERP.
type ValidationError struct {
	// Field names the violated input, e.g. "new_date" or "vendor_shipment_no".
	Field  string
	Reason string
	// Rule is the gate rejection code, empty for malformed commands.
	Rule string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", CodeValidation, e.Field, e.Reason)
}

// Code returns CodeValidation.
func (e *ValidationError) Code() ErrorCode { return CodeValidation }

// ConflictError reports an idempotency key whose stored response differs from
// the outcome just produced. The mutation happened and its audit entry
// (AuditID) is flagged for review.
type ConflictError struct {
	Key      string
	Existing []byte
	AuditID  int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: idempotency key %q already holds a different response (audit entry %d flagged for review)",
		CodeConflict, e.Key, e.AuditID)
}

// Code returns CodeConflict.
func (e *ConflictError) Code() ErrorCode { return CodeConflict }

// ExternalServiceError wraps a failure of the ERP or of local storage.
type ExternalServiceError struct {
	Op  string
	Err error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s: %s: %v", CodeExternalService, e.Op, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// Code returns CodeExternalService.
func (e *ExternalServiceError) Code() ErrorCode { return CodeExternalService }

// NotFoundError reports a missing upstream entity.
type NotFoundError struct {
	Entity string
	ID     string
	Err    error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: %s %s does not exist", CodeNotFound, e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

// Code returns CodeNotFound.
func (e *NotFoundError) Code() ErrorCode { return CodeNotFound }

// CodeOf returns the code carried by err, or "" for errors from outside the
// taxonomy.
// Uses errors.As to handle wrapped errors.
func CodeOf(err error) ErrorCode {
	var coded interface{ Code() ErrorCode }
	if errors.As(err, &coded) {
		return coded.Code()
	}
	return ""
}

// IsValidationError returns true if err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsConflictError returns true if err is (or wraps) a ConflictError.
func IsConflictError(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// IsExternalServiceError returns true if err is (or wraps) an
// ExternalServiceError.
func IsExternalServiceError(err error) bool {
	var ee *ExternalServiceError
	return errors.As(err, &ee)
}

// IsNotFoundError returns true if err is (or wraps) a NotFoundError.
func IsNotFoundError(err error) bool {
	var ne *NotFoundError
	return errors.As(err, &ne)
}
