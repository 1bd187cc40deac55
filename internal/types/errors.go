package types

import (
	"context"
	"errors"
	"fmt"
)

// ErrorType labels a failure for reporting
type ErrorType string

const (
	ErrorTypeTransientUI        ErrorType = "TransientUIError"
	ErrorTypeValidationRejected ErrorType = "ValidationRejectedError"
	ErrorTypeAuthentication     ErrorType = "AuthenticationError"
	ErrorTypeExtraction         ErrorType = "ExtractionError"
	ErrorTypeIntegrity          ErrorType = "IntegrityError"
	ErrorTypeCancelled          ErrorType = "Cancelled"
	ErrorTypeSession            ErrorType = "SessionError"
	ErrorTypeUnknown            ErrorType = "UnknownError"
)

var (
	// ErrElementNotFound is returned when a selector matches nothing in time
	ErrElementNotFound = errors.New("element not found")
	// ErrNavigationTimeout is returned when a page does not finish loading in time
	ErrNavigationTimeout = errors.New("navigation timeout")
	// ErrOptionNotFound is returned when a select has no matching option
	ErrOptionNotFound = errors.New("option not found")
	// ErrNotApplicable marks a step the supplier has no equivalent for
	ErrNotApplicable = errors.New("step not applicable")
	// ErrSessionClosed is returned by drivers used after Close
	ErrSessionClosed = errors.New("session closed")
)

// TransientUIError is a UI failure that kept recurring until retries ran out
type TransientUIError struct {
	Step     Step
	Attempts int
	Err      error
}

func (e *TransientUIError) Error() string {
	return fmt.Sprintf("TransientUIError exhausted after %d attempts at %s: %v", e.Attempts, e.Step, e.Err)
}

func (e *TransientUIError) Unwrap() error { return e.Err }

// ValidationRejectedError means the supplier refused the configured input
type ValidationRejectedError struct {
	Field   string
	Message string
}

func (e *ValidationRejectedError) Error() string {
	if e.Field == "" {
		return "validation rejected: " + e.Message
	}
	return fmt.Sprintf("validation rejected for %s: %s", e.Field, e.Message)
}

// AuthenticationError means the session could not log in
type AuthenticationError struct {
	Supplier string
	Reason   string
	Err      error
}

func (e *AuthenticationError) Error() string {
	msg := fmt.Sprintf("authentication failed for %s: %s", e.Supplier, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// ExtractionKind distinguishes extraction failures
type ExtractionKind string

const (
	OutOfBounds ExtractionKind = "OutOfBounds"
	Unparseable ExtractionKind = "Unparseable"
)

// ExtractionError means the displayed price could not be accepted
type ExtractionError struct {
	Kind   ExtractionKind
	Raw    string
	Reason string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction error (%s) for %q: %s", e.Kind, e.Raw, e.Reason)
}

// IntegrityError means two different configurations share a fingerprint
type IntegrityError struct {
	Fingerprint Fingerprint
	First       ProductConfiguration
	Second      ProductConfiguration
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("fingerprint collision on %s between %s and %s", e.Fingerprint.Short(), e.First, e.Second)
}

// TypeOf maps an error to its taxonomy label
func TypeOf(err error) ErrorType {
	var (
		transient  *TransientUIError
		validation *ValidationRejectedError
		auth       *AuthenticationError
		extraction *ExtractionError
		integrity  *IntegrityError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &integrity):
		return ErrorTypeIntegrity
	case errors.As(err, &auth):
		return ErrorTypeAuthentication
	case errors.As(err, &validation):
		return ErrorTypeValidationRejected
	case errors.As(err, &extraction):
		return ErrorTypeExtraction
	case errors.As(err, &transient),
		errors.Is(err, ErrElementNotFound),
		errors.Is(err, ErrNavigationTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return ErrorTypeTransientUI
	case errors.Is(err, context.Canceled):
		return ErrorTypeCancelled
	case errors.Is(err, ErrSessionClosed):
		return ErrorTypeSession
	default:
		return ErrorTypeUnknown
	}
}

// Classify is the default step classifier. Rejections by the supplier are
// fatal; anything that looks like a slow or shifting page is transient.
func Classify(err error) StepStatus {
	if err == nil || errors.Is(err, ErrNotApplicable) {
		return StatusSuccess
	}
	switch TypeOf(err) {
	case ErrorTypeValidationRejected, ErrorTypeAuthentication, ErrorTypeExtraction,
		ErrorTypeIntegrity, ErrorTypeCancelled, ErrorTypeSession:
		return StatusFatal
	default:
		return StatusTransient
	}
}
