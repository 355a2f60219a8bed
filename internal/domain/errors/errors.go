package errors

import "errors"

// Standard Sentinel Errors
// These let the transport layer map internal logic to status codes
// (e.g., ErrInsufficientInventory -> 409 Conflict) with errors.Is,
// while services wrap them with fmt.Errorf("%w: ...") for context.

var (
	// ErrValidation covers malformed or missing input (400).
	ErrValidation = errors.New("validation failed")

	// ErrNotFound covers unknown ids (404).
	ErrNotFound = errors.New("not found")

	// ErrInsufficientInventory is returned when a shipment item would
	// overdraw a package's available quantity at commit time (409).
	ErrInsufficientInventory = errors.New("insufficient inventory")

	// ErrInvalidState protects shipment-level preconditions, e.g. updating
	// a shipment that has already left PREPARING (409).
	ErrInvalidState = errors.New("shipment is not in a state permitting this operation")

	// ErrInvalidTransition protects the segment state machine. Callers wrap
	// it with the current and requested states (409).
	ErrInvalidTransition = errors.New("invalid segment transition")

	// ErrOutOfSequence is the accept->takeover->handover ordering violation,
	// a specific case of invalid transition kept distinct for the UI (409).
	ErrOutOfSequence = errors.New("transition attempted out of sequence")

	// ErrUnauthorizedTransition means the actor is not the segment's
	// designated owner (403).
	ErrUnauthorizedTransition = errors.New("actor is not the segment owner")

	// ErrConflict marks a lost race on concurrent mutation. Retryable:
	// the caller should refetch and retry idempotently (409).
	ErrConflict = errors.New("concurrent update conflict")
)
