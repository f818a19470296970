package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents an error detected while the engine serves a
// save or sync request.
//
// Per-record upload failures are never RuntimeErrors; they are counted in
// the pass result.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// RecordID identifies the affected record, when there is one.
	RecordID string

	// Pass is the sync pass number (0 outside a pass).
	Pass int64

	// Err is the underlying cause.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeSaveFailed indicates a record could not be persisted.
	ErrCodeSaveFailed RuntimeErrorCode = "SAVE_FAILED"

	// ErrCodeSnapshotFailed indicates the pending list could not be read at
	// the start of a pass.
	ErrCodeSnapshotFailed RuntimeErrorCode = "SNAPSHOT_FAILED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.RecordID != "" {
		msg += fmt.Sprintf(" (record=%s)", e.RecordID)
	}
	if e.Pass != 0 {
		msg += fmt.Sprintf(" (pass=%d)", e.Pass)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the cause so errors.Is matches store sentinels.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// IsSaveError returns true if the error is a failed save.
// Uses errors.As to handle wrapped errors.
func IsSaveError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeSaveFailed
	}
	return false
}

// IsSnapshotError returns true if a sync pass could not read its snapshot.
// Uses errors.As to handle wrapped errors.
func IsSnapshotError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeSnapshotFailed
	}
	return false
}

// NewSaveError creates a RuntimeError for a failed save.
func NewSaveError(recordID string, err error) *RuntimeError {
	return &RuntimeError{
		Code:     ErrCodeSaveFailed,
		Message:  "record could not be persisted",
		RecordID: recordID,
		Err:      err,
	}
}

// NewSnapshotError creates a RuntimeError for a failed pending scan.
func NewSnapshotError(pass int64, err error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeSnapshotFailed,
		Message: "pending records could not be listed",
		Pass:    pass,
		Err:     err,
	}
}
