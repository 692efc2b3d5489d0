package calls

import "errors"

// Every coordinator and registry operation returns one of these typed
// errors (possibly wrapped) or succeeds; callers branch with errors.Is.
var (
	ErrInvalidArgument = errors.New("calls: invalid argument")

	// ErrConflict is the registry-level invariant violation on insert.
	ErrConflict = errors.New("calls: conflict")

	ErrNotFound      = errors.New("calls: not found")
	ErrNotAuthorized = errors.New("calls: not authorized")

	// ErrInvalidTransition covers any attempt to move a status backwards
	// or act on a record in the wrong state.
	ErrInvalidTransition = errors.New("calls: invalid transition")

	// ErrReceiverBusy / ErrCallerBusy reject call creation while the
	// party already has a live (pending or active) record.
	ErrReceiverBusy = errors.New("calls: receiver busy")
	ErrCallerBusy   = errors.New("calls: caller busy")
)
