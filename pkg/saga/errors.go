// Copyright © 2025 jackelyj <dreamerlyj@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
//

package saga

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors shared by the saga core, its stores and its collaborators.
var (
	// ErrSagaNotFound is returned when no record exists for a saga id.
	ErrSagaNotFound = errors.New("saga not found")

	// ErrRecordNotFound is returned by RecordStore lookups that match nothing.
	ErrRecordNotFound = errors.New("saga record not found")

	// ErrInvalidStatusTransition is returned when a status update would move a record backwards.
	ErrInvalidStatusTransition = errors.New("invalid saga record status transition")

	// ErrMalformedStatePayload is returned when a state payload cannot be decoded.
	ErrMalformedStatePayload = errors.New("malformed saga state payload")

	// ErrUnknownSagaType is returned when a record carries an unrecognized type tag.
	ErrUnknownSagaType = errors.New("unknown saga type")

	// ErrUnsupportedSchemaVersion is returned for payloads written by an unknown schema version.
	ErrUnsupportedSchemaVersion = errors.New("unsupported saga state schema version")

	// ErrAssetNotFound is returned by an AssetStore when the target asset does not exist.
	ErrAssetNotFound = errors.New("asset not found")

	// ErrAssetExists is returned by an AssetStore when restoring over an existing asset.
	ErrAssetExists = errors.New("asset already exists")

	// ErrPermissionDenied is reported when the permission check answers no.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrInvalidRequest is reported when a saga request fails validation.
	ErrInvalidRequest = errors.New("invalid saga request")
)

// ErrorType represents the category of an error.
type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeData         ErrorType = "data"
	ErrorTypeSystem       ErrorType = "system"
	ErrorTypeCompensation ErrorType = "compensation"
)

// predefined error codes
const (
	ErrCodeSagaNotFound       = "SAGA_NOT_FOUND"
	ErrCodeStateDecodeFailed  = "STATE_DECODE_FAILED"
	ErrCodeStorageError       = "STORAGE_ERROR"
	ErrCodeCompensationFailed = "COMPENSATION_FAILED"
)

// SagaError is a structured error carrying a stable code alongside the wrapped cause.
type SagaError struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Type      ErrorType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Cause     error                  `json:"-"`
}

// NewSagaError creates a new SagaError with the specified parameters.
func NewSagaError(code, message string, errorType ErrorType) *SagaError {
	return &SagaError{
		Code:      code,
		Message:   message,
		Type:      errorType,
		Timestamp: time.Now(),
	}
}

// WrapError wraps an existing error into a SagaError.
func WrapError(err error, code, message string, errorType ErrorType) *SagaError {
	if err == nil {
		return nil
	}
	sagaErr := NewSagaError(code, message, errorType)
	sagaErr.Cause = err
	return sagaErr
}

// Error implements the error interface for SagaError.
func (e *SagaError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %s)", e.Code, e.Message, e.Cause.Error())
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the cause so errors.Is matches the sentinel errors above.
func (e *SagaError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the SagaError.
func (e *SagaError) WithDetail(key string, value interface{}) *SagaError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewSagaNotFoundError creates an error for when a Saga is not found.
func NewSagaNotFoundError(sagaID string) *SagaError {
	return WrapError(ErrSagaNotFound, ErrCodeSagaNotFound,
		fmt.Sprintf("Saga with ID '%s' not found", sagaID), ErrorTypeData).
		WithDetail("saga_id", sagaID)
}

// NewStateDecodeError creates an error for a payload that cannot be turned back into state.
func NewStateDecodeError(sagaID string, sagaType SagaType, err error) *SagaError {
	return WrapError(err, ErrCodeStateDecodeFailed,
		fmt.Sprintf("State of saga '%s' (%s) cannot be decoded", sagaID, sagaType), ErrorTypeData).
		WithDetail("saga_id", sagaID).
		WithDetail("saga_type", sagaType.String())
}

// NewStorageError creates an error for storage operation failures.
func NewStorageError(operation string, err error) *SagaError {
	return WrapError(err, ErrCodeStorageError,
		fmt.Sprintf("Storage operation '%s' failed", operation), ErrorTypeSystem).
		WithDetail("operation", operation)
}

// NewCompensationFailedError creates an error for compensation failure.
func NewCompensationFailedError(step string, err error) *SagaError {
	return WrapError(err, ErrCodeCompensationFailed,
		fmt.Sprintf("Compensation step '%s' failed", step), ErrorTypeCompensation).
		WithDetail("step_name", step)
}

// IsSagaNotFound checks if an error is a SagaNotFoundError.
func IsSagaNotFound(err error) bool {
	var sagaErr *SagaError
	if errors.As(err, &sagaErr) {
		return sagaErr.Code == ErrCodeSagaNotFound
	}
	return errors.Is(err, ErrSagaNotFound)
}
