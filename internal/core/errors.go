package core

import (
	"errors"
	"fmt"
)

// Error taxonomy. Every failure surfaced by the orchestrator wraps one
// of these sentinels so adapters can classify with errors.Is.
var (
	// ErrValidation: malformed request, rejected before any side effect.
	ErrValidation = errors.New("validation error")

	// Access denials: no mutation happened, reported to the caller only.
	ErrNotInvited        = errors.New("user has not been invited")
	ErrOutsideGeofence   = errors.New("no device fits the position constraint")
	ErrOutsideTimeWindow = errors.New("room time window is not valid")

	// Consistency errors are fatal for the affected room: the room fails
	// closed afterwards, no repair is attempted.
	ErrDuplicateInvitation = errors.New("several invitations exist for the same triple")
	ErrWorkflowDesync      = errors.New("workflow and repository disagree on users list")
	ErrEmptyUsersList      = errors.New("users list is empty where members were expected")
	ErrRoomUnsafe          = errors.New("room is in an inconsistent state, commands fail closed")

	// ErrExternal: the workflow RPC failed; compensating cleanup already ran.
	ErrExternal = errors.New("workflow rpc failure")

	ErrRoomNotFound       = errors.New("room not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvitationNotFound = errors.New("invitation not found")
	ErrDeviceNotFound     = errors.New("device not found")

	// ErrDuplicateEntry: a uniqueness constraint rejected a write.
	ErrDuplicateEntry = errors.New("duplicate entry")
)

// IsAccessDenied groups the denials that degrade gracefully in a UI.
func IsAccessDenied(err error) bool {
	return errors.Is(err, ErrNotInvited) ||
		errors.Is(err, ErrOutsideGeofence) ||
		errors.Is(err, ErrOutsideTimeWindow)
}

// IsConsistency reports whether err marks a room as corrupted.
func IsConsistency(err error) bool {
	return errors.Is(err, ErrDuplicateInvitation) ||
		errors.Is(err, ErrWorkflowDesync) ||
		errors.Is(err, ErrEmptyUsersList)
}

// IsNotFound covers every absent-entity sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRoomNotFound) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrInvitationNotFound) ||
		errors.Is(err, ErrDeviceNotFound)
}

// ExternalFailure wraps a workflow RPC error with the failed operation.
func ExternalFailure(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrExternal, op, err)
}
