package services

import "errors"

// Shared errors used across services and the HTTP error mapping.
var (
	// Authentication / authorization
	ErrUnauthenticated    = errors.New("authentication required")
	ErrForbiddenOperation = errors.New("operation not allowed for the current user")

	// Lookups
	ErrEventNotFound  = errors.New("event not found")
	ErrPlayerNotFound = errors.New("player not found")
	ErrUserNotFound   = errors.New("user not found")

	// Roster rules
	ErrEventFull        = errors.New("event roster is full")
	ErrPositionConflict = errors.New("position is already occupied by another player")

	// Event rules. CapacityBelowRoster carries a user-facing message
	// distinct from generic validation failures.
	ErrCapacityBelowRoster = errors.New("capacity cannot be lower than the number of players already on the roster")

	// Validation
	ErrEventTitleRequired    = errors.New("event title is required")
	ErrEventLocationRequired = errors.New("event location is required")
	ErrEventInvalidCapacity  = errors.New("event capacity must be positive")
	ErrEventInvalidDate      = errors.New("event date is required")
	ErrPlayerNameRequired    = errors.New("player name is required")
	ErrInvalidPosition       = errors.New("position must be a positive integer")

	// Auth
	ErrAuthInvalidCredentials = errors.New("invalid email or password")
	ErrAuthEmailTaken         = errors.New("email is already taken")
	ErrPasswordTooShort       = errors.New("password is too short")

	// ErrStore marks failures where the backing store rejected or failed
	// to execute an operation; the underlying reason is opaque to callers.
	ErrStore = errors.New("store operation failed")
)
