package service

import "errors"

// Error taxonomy for the messaging core. Handlers map these onto HTTP
// statuses; realtime callbacks never propagate them (bad events are logged
// and dropped).
var (
	// ErrUnauthorized - no authenticated session.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden - authenticated but not an active participant, or
	// insufficient role for the action.
	ErrForbidden = errors.New("forbidden")
	// ErrValidation - content or shape constraint violated.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound - unknown id, or hidden by a soft delete.
	ErrNotFound = errors.New("not found")
	// ErrConflict - the target moved underneath the caller, e.g. editing a
	// message another participant deleted for everyone.
	ErrConflict = errors.New("conflict")
	// ErrTransient - a race or stream failure that a plain retry resolves.
	ErrTransient = errors.New("transient failure")
)
