package status

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation covers malformed or missing input; nothing was written.
	ErrValidation = errors.New("validation: invalid input")

	// ErrNotFound means the referenced entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized means the actor lacks the required relationship to the
	// entity (authorization, not authentication).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidState means the operation is not permitted in the current
	// lifecycle or approval state.
	ErrInvalidState = errors.New("invalid state")

	// ErrFull means the meetup reached its attendee capacity.
	ErrFull = errors.New("meetup is full")
)

// User-facing detail for the two non-joinable states. Both wrap
// ErrInvalidState but render different guidance (wait vs pick another venue).
const (
	MsgPendingApproval = "pending venue approval"
	MsgRejectedByVenue = "rejected by venue"
	MsgNotAMember      = "not a member"
)

// Validation wraps ErrValidation with a detail message.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Invalid wraps ErrInvalidState with a detail message.
func Invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidState, msg)
}

// NotFound wraps ErrNotFound with the entity kind.
func NotFound(what string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, what)
}
