// Package errors provides centralized error definitions and error handling
// utilities for the council codebase. It defines domain-specific errors,
// sentinel errors, error constructors with context wrapping, and
// classification helpers.
//
// # Error Types
//
// Domain-specific errors represent errors from specific subsystems:
//   - ReviewError: errors raised while collecting reviewer opinions
//   - DebateError: errors raised while debating a disagreement
//   - WorkflowError: errors raised by the workflow state machine
//   - PersistenceError: errors raised while saving or loading snapshots
//
// # Usage
//
// Creating errors:
//
//	err := errors.NewReviewError("collect opinions", errors.ErrReviewerTimeout).
//		WithReviewer("security")
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrReviewerTimeout) { ... }
//
//	var debateErr *errors.DebateError
//	if errors.As(err, &debateErr) { ... }
//
//	if errors.IsSafeguard(err) { ... }
//
// # Classification
//
// Collaborator timeouts and safeguard triggers are designed degradation
// paths, not run failures: IsSafeguard reports them so callers can
// substitute a safe default (abstention or forced resolution) instead
// of failing the round. Only persistence faults and exhausted producer
// retries are fatal to a run.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Review-related sentinel errors
var (
	// ErrReviewerTimeout indicates a reviewer did not respond within its timeout.
	ErrReviewerTimeout = New("reviewer timed out")
	// ErrMalformedOpinion indicates an opinion source returned an invalid payload.
	ErrMalformedOpinion = New("malformed opinion")
	// ErrNoReviewers indicates a round was requested with an empty panel.
	ErrNoReviewers = New("no reviewers configured")
)

// Debate-related sentinel errors
var (
	// ErrDebateTimeout indicates a debate round exceeded its wall-clock budget.
	ErrDebateTimeout = New("debate round timed out")
	// ErrRestatementFailed indicates the restatement collaborator errored.
	ErrRestatementFailed = New("restatement failed")
	// ErrDebateFinalized indicates an operation on an already terminal debate.
	ErrDebateFinalized = New("debate already finalized")
)

// Workflow-related sentinel errors
var (
	// ErrInvalidTransition indicates a phase transition the machine forbids.
	ErrInvalidTransition = New("invalid phase transition")
	// ErrRunTerminal indicates an operation on a completed, failed, or cancelled run.
	ErrRunTerminal = New("workflow run is terminal")
	// ErrDecisionPending indicates the run is still waiting on human input.
	ErrDecisionPending = New("human decision pending")
	// ErrAdjudicationComplete indicates the adjudicator already produced its record.
	ErrAdjudicationComplete = New("adjudication already complete")
	// ErrProducerFailed indicates the proposal producer errored unrecoverably.
	ErrProducerFailed = New("proposal producer failed")
)

// Persistence-related sentinel errors
var (
	// ErrSnapshotNotFound indicates no snapshot exists for a session.
	ErrSnapshotNotFound = New("snapshot not found")
	// ErrSnapshotCorrupted indicates snapshot data cannot be decoded.
	ErrSnapshotCorrupted = New("snapshot corrupted")
)

// General sentinel errors
var (
	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = New("operation timed out")
	// ErrCanceled indicates that an operation was canceled.
	ErrCanceled = New("operation canceled")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

// baseError provides common functionality for all error types.
type baseError struct {
	message   string
	cause     error
	retryable bool
	safeguard bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// ReviewError represents errors raised while collecting opinions.
type ReviewError struct {
	baseError
	Reviewer string
}

// NewReviewError creates a new ReviewError. Reviewer faults are
// recovered as abstentions, so these default to safeguard.
func NewReviewError(message string, cause error) *ReviewError {
	return &ReviewError{
		baseError: baseError{
			message:   message,
			cause:     cause,
			safeguard: true,
		},
	}
}

// WithReviewer adds the reviewer identity to the error context.
func (e *ReviewError) WithReviewer(id string) *ReviewError {
	e.Reviewer = id
	return e
}

// Error returns the formatted error message.
func (e *ReviewError) Error() string {
	prefix := "review error"
	if e.Reviewer != "" {
		prefix = fmt.Sprintf("review error [reviewer=%s]", e.Reviewer)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ReviewError) Is(target error) bool {
	if _, ok := target.(*ReviewError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// DebateError represents errors raised while debating a disagreement.
type DebateError struct {
	baseError
	DisagreementID string
	Round          int
}

// NewDebateError creates a new DebateError. Debate faults terminate
// only the affected debate, so these default to safeguard.
func NewDebateError(message string, cause error) *DebateError {
	return &DebateError{
		baseError: baseError{
			message:   message,
			cause:     cause,
			safeguard: true,
		},
	}
}

// WithDisagreement adds the disagreement ID to the error context.
func (e *DebateError) WithDisagreement(id string) *DebateError {
	e.DisagreementID = id
	return e
}

// WithRound adds the debate round index to the error context.
func (e *DebateError) WithRound(round int) *DebateError {
	e.Round = round
	return e
}

// Error returns the formatted error message.
func (e *DebateError) Error() string {
	var parts []string
	if e.DisagreementID != "" {
		parts = append(parts, fmt.Sprintf("disagreement=%s", e.DisagreementID))
	}
	if e.Round > 0 {
		parts = append(parts, fmt.Sprintf("round=%d", e.Round))
	}
	prefix := "debate error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("debate error [%s]", strings.Join(parts, ", "))
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *DebateError) Is(target error) bool {
	if _, ok := target.(*DebateError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// WorkflowError represents errors raised by the workflow state machine.
type WorkflowError struct {
	baseError
	SessionID string
	Phase     string
}

// NewWorkflowError creates a new WorkflowError.
func NewWorkflowError(message string, cause error) *WorkflowError {
	return &WorkflowError{
		baseError: baseError{
			message: message,
			cause:   cause,
		},
	}
}

// WithSession adds the session ID to the error context.
func (e *WorkflowError) WithSession(id string) *WorkflowError {
	e.SessionID = id
	return e
}

// WithPhase adds the workflow phase to the error context.
func (e *WorkflowError) WithPhase(phase string) *WorkflowError {
	e.Phase = phase
	return e
}

// Error returns the formatted error message.
func (e *WorkflowError) Error() string {
	var parts []string
	if e.SessionID != "" {
		parts = append(parts, fmt.Sprintf("session=%s", e.SessionID))
	}
	if e.Phase != "" {
		parts = append(parts, fmt.Sprintf("phase=%s", e.Phase))
	}
	prefix := "workflow error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("workflow error [%s]", strings.Join(parts, ", "))
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *WorkflowError) Is(target error) bool {
	if _, ok := target.(*WorkflowError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// PersistenceError represents errors raised while saving or loading
// snapshots. Persistence faults are fatal to the current phase
// transition and surface to the caller.
type PersistenceError struct {
	baseError
	SessionID string
}

// NewPersistenceError creates a new PersistenceError. Retryable by
// default since most storage faults are transient.
func NewPersistenceError(message string, cause error) *PersistenceError {
	return &PersistenceError{
		baseError: baseError{
			message:   message,
			cause:     cause,
			retryable: true,
		},
	}
}

// WithSession adds the session ID to the error context.
func (e *PersistenceError) WithSession(id string) *PersistenceError {
	e.SessionID = id
	return e
}

// Error returns the formatted error message.
func (e *PersistenceError) Error() string {
	prefix := "persistence error"
	if e.SessionID != "" {
		prefix = fmt.Sprintf("persistence error [session=%s]", e.SessionID)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *PersistenceError) Is(target error) bool {
	if _, ok := target.(*PersistenceError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Classification Helpers
// -----------------------------------------------------------------------------

// classifier is implemented by errors that know their own classification.
type classifier interface {
	retryableErr() bool
	safeguardErr() bool
}

func (e *baseError) retryableErr() bool { return e.retryable }
func (e *baseError) safeguardErr() bool { return e.safeguard }

// IsRetryable returns true if the error is transient and the operation
// may succeed on retry.
func IsRetryable(err error) bool {
	var c classifier
	if errors.As(err, &c) {
		return c.retryableErr()
	}
	return false
}

// IsSafeguard returns true if the error is a designed degradation path
// that should be recovered locally (abstention, forced resolution)
// rather than failing the run.
func IsSafeguard(err error) bool {
	if Is(err, ErrReviewerTimeout) || Is(err, ErrDebateTimeout) || Is(err, ErrMalformedOpinion) {
		return true
	}
	var c classifier
	if errors.As(err, &c) {
		return c.safeguardErr()
	}
	return false
}

// IsFatal returns true for errors that must move the run to the failed
// phase: persistence faults and exhausted producer retries.
func IsFatal(err error) bool {
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return true
	}
	return Is(err, ErrProducerFailed)
}
