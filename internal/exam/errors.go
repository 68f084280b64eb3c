package exam

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Error kinds. Every failure returned by this package and by the exam
// service matches exactly one of these via errors.Is.
var (
	ErrNotFound          = errors.New("exam not found")
	ErrInvalidTransition = errors.New("invalid exam state transition")
	ErrValidation        = errors.New("answer validation failed")
	ErrInsufficientData  = errors.New("insufficient questions for exam")
	ErrPersistence       = errors.New("exam persistence failure")
)

// TransitionError describes a state change that is not legal from the
// current status.
type TransitionError struct {
	Op     string
	Status Status
	Reason string
}

func (e *TransitionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("cannot %s exam in status %s: %s", e.Op, e.Status, e.Reason)
	}
	return fmt.Sprintf("cannot %s exam in status %s", e.Op, e.Status)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// ValidationError describes a malformed answer submission.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// PersistenceError wraps a storage failure with the exam it concerns. It
// matches both ErrPersistence and the underlying error.
type PersistenceError struct {
	Op     string
	ExamID uuid.UUID
	Err    error
}

func (e *PersistenceError) Error() string {
	if e.ExamID == uuid.Nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s exam %s: %v", e.Op, e.ExamID, e.Err)
}

func (e *PersistenceError) Unwrap() []error {
	return []error{ErrPersistence, e.Err}
}

// Reasons reported by transition errors.
const (
	ReasonNotStarted       = "exam has not been started"
	ReasonAlreadyStarted   = "exam has already been started"
	ReasonAlreadyCompleted = "exam is already completed"
	ReasonNotInProgress    = "exam is not in progress"
	ReasonNotPaused        = "exam is not paused"
	ReasonTimeExpired      = "time limit has expired"
	ReasonTerminal         = "exam is already finished"
	ReasonNotCompleted     = "exam is not completed"
)

func transitionErr(op string, status Status, reason string) error {
	return &TransitionError{Op: op, Status: status, Reason: reason}
}

func validationErr(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
