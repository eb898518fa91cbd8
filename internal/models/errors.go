package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a domain error for boundary mapping. The HTTP layer
// converts kinds to status codes; internal callers branch on them with
// KindOf.
type ErrorKind string

const (
	// KindValidation is malformed caller input; recoverable.
	KindValidation ErrorKind = "validation"
	// KindNotFound is a missing resource (asset, job, matcher name).
	KindNotFound ErrorKind = "not_found"
	// KindConflict is a state collision, such as starting a recording
	// while one is active.
	KindConflict ErrorKind = "conflict"
	// KindRuleViolation is an operation the domain forbids in the current
	// state.
	KindRuleViolation ErrorKind = "rule_violation"
	// KindAuthentication is an uploader credential problem.
	KindAuthentication ErrorKind = "authentication"
	// KindConfiguration is a missing or invalid setting; fatal at startup.
	KindConfiguration ErrorKind = "configuration"
	// KindDevice is a recorder or capture device that is not ready;
	// transient.
	KindDevice ErrorKind = "device"
	// KindRecording is an unexpected response from the recorder.
	KindRecording ErrorKind = "recording"
	// KindInternal is everything unclassified.
	KindInternal ErrorKind = "internal"
)

// DomainError carries an ErrorKind alongside a message and optional cause.
type DomainError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap exposes the cause for errors.Is / errors.As chains.
func (e *DomainError) Unwrap() error { return e.Cause }

// NewError constructs a DomainError without a cause.
func NewError(kind ErrorKind, message string) *DomainError {
	return &DomainError{Kind: kind, Message: message}
}

// WrapError constructs a DomainError wrapping a cause.
func WrapError(kind ErrorKind, message string, cause error) *DomainError {
	return &DomainError{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the ErrorKind from an error chain; plain errors report
// KindInternal, nil reports the empty kind.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// Common sentinel errors.
var (
	// ErrUnknownCommand indicates a command name with no registered handler.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrAssetNotFound indicates the requested asset does not exist.
	ErrAssetNotFound = errors.New("asset not found")

	// ErrSessionActive indicates a recording session is already running.
	ErrSessionActive = errors.New("recording session already active")

	// ErrNoSession indicates no recording session is running.
	ErrNoSession = errors.New("no active recording session")

	// ErrIncomparableRates indicates a cross-variant rate comparison.
	ErrIncomparableRates = errors.New("rates of different kinds are incomparable")
)
