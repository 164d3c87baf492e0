// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Input errors.
	ErrMalformedRecord    = errors.New("malformed record")
	ErrInvariantViolation = errors.New("invariant violation")

	// Storage errors.
	ErrNotFound = errors.New("not found")

	// Ledger feed errors.
	ErrPlaidConnection = errors.New("plaid connection failed")
	ErrPlaidRateLimit  = errors.New("plaid rate limit exceeded")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// MalformedRecordError describes an input row that could not be normalized.
// The row is skipped and counted; the run continues.
type MalformedRecordError struct {
	Err    error
	Report string
	Column string
	Line   int
}

func (e *MalformedRecordError) Error() string {
	msg := fmt.Sprintf("%s report line %d", e.Report, e.Line)
	if e.Column != "" {
		msg += fmt.Sprintf(" column %q", e.Column)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Is matches ErrMalformedRecord.
func (e *MalformedRecordError) Is(target error) bool {
	return target == ErrMalformedRecord
}

func (e *MalformedRecordError) Unwrap() error {
	return e.Err
}

// InvariantViolation is returned when an itemized split does not sum to the
// transaction amount. Only the affected update is dropped.
type InvariantViolation struct {
	TransactionID string
	Detail        string
	Want          int64
	Got           int64
}

func (e *InvariantViolation) Error() string {
	msg := fmt.Sprintf("transaction %s: splits sum to %d, want %d", e.TransactionID, e.Got, e.Want)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Is matches ErrInvariantViolation.
func (e *InvariantViolation) Is(target error) bool {
	return target == ErrInvariantViolation
}

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrRateLimit) ||
		errors.Is(err, ErrPlaidRateLimit) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}
