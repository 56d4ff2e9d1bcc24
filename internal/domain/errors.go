package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrTaskNotFound indicates the task is not part of the loaded board.
	ErrTaskNotFound = errors.New("task not found")

	// ErrPieceNotFound indicates the piece is not part of the loaded board.
	ErrPieceNotFound = errors.New("piece not found")

	// ErrConnectionLost resolves mutations that were pending when the push
	// channel dropped.
	ErrConnectionLost = errors.New("connection lost")

	// ErrSessionClosed is returned for operations on a closed board session.
	ErrSessionClosed = errors.New("board session closed")
)

// ValidationError rejects a mutation before anything is applied.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ReconciliationError reports a remote failure after an optimistic apply.
// Every entity touched by the mutation has been rolled back.
type ReconciliationError struct {
	MutationID string
	TaskID     string
	Op         string
	Err        error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("%s on task %s rolled back: %v", e.Op, e.TaskID, e.Err)
}

func (e *ReconciliationError) Unwrap() error { return e.Err }

// StaleDataError reports a pushed update for an entity the board no longer
// holds.
type StaleDataError struct {
	Kind string
	ID   string
}

func (e *StaleDataError) Error() string {
	return fmt.Sprintf("stale %s update: %s is not on the board", e.Kind, e.ID)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
