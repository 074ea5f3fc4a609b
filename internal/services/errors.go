package services

import "errors"

// Service-level failure classes. Handlers map these onto HTTP statuses;
// store.ErrNotFound and store.ErrDuplicate pass through unwrapped.
var (
	// ErrNotAuthenticated covers missing sessions and bad credentials.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrForbidden covers authenticated callers with insufficient
	// permissions or ownership.
	ErrForbidden = errors.New("insufficient permissions")

	// ErrValidation covers malformed input, e.g. a password mismatch.
	ErrValidation = errors.New("invalid input")

	// ErrMailUnavailable is returned when an email job cannot be handed
	// to the broker. Any reset token issued beforehand stays valid.
	ErrMailUnavailable = errors.New("mail delivery unavailable")
)
