package services

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a referenced space, order or comment does
// not exist.
var ErrNotFound = errors.New("record not found")

// ValidationError reports malformed input: a bad interval, a missing
// field, an out-of-range rating.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ConflictError reports an overlapping reservation detected either by the
// advisory pre-check or by the authoritative re-check at payment time.
type ConflictError struct {
	SpaceID uint
	Start   time.Time
	End     time.Time
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("space %d already reserved between %s and %s",
		e.SpaceID, e.Start.Format(time.RFC3339), e.End.Format(time.RFC3339))
}

// StateError reports a lifecycle event attempted from a status that does
// not allow it.
type StateError struct {
	Event  string
	Status int
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s order in status %d", e.Event, e.Status)
}

// PermissionError reports an actor not entitled to the action. Roles are
// resolved by the caller (JWT middleware); the engine only checks them
// against the closed permission table in permissions.go.
type PermissionError struct {
	UserID uint
	Action string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("user %d may not %s", e.UserID, e.Action)
}

// IsConflict reports whether err is a reservation conflict.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}
