package app

import "errors"

// Error kinds. Dynamic messages wrap one of these so the server layer can map
// them to HTTP statuses with errors.Is.
var (
	// ErrValidation marks bad input from the client.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidCredentials is returned when the supplied credentials do not match.
	// This message is intended to be shown to end users and should not enable account enumeration.
	ErrInvalidCredentials = errors.New("incorrect username or password")

	// ErrAccountLocked is returned while a lockout window is active.
	ErrAccountLocked = errors.New("account temporarily locked, try again later")

	// ErrAccountDisabled is returned when a deactivated account is used in a
	// flow that already proves account ownership (e.g. a valid reset token).
	// Login folds disabled accounts into ErrInvalidCredentials instead, so that
	// path never reveals account state.
	ErrAccountDisabled = errors.New("account disabled")

	// ErrForbidden marks an action the user's role does not allow.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound marks a missing entity.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks an operation invalid in the entity's current state.
	ErrConflict = errors.New("conflict")

	ErrInvalidResetToken = errors.New("invalid or expired reset token")
)
