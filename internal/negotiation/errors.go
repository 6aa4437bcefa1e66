package negotiation

import "errors"

// Validation failures leave session and queue state untouched. Callers are
// expected to report them to the originating player only.
var (
	// ErrInvalidRequest indicates malformed join parameters (unknown group
	// number or missing connection handle).
	ErrInvalidRequest = errors.New("invalid request")

	// ErrInvalidOffer indicates a split that does not sum to the pie size or
	// contains a negative component.
	ErrInvalidOffer = errors.New("invalid offer")

	// ErrInvalidState indicates an action attempted out of turn or in the
	// wrong phase of the round cycle.
	ErrInvalidState = errors.New("invalid state")

	// ErrInvalidResponse indicates an unrecognized response value.
	ErrInvalidResponse = errors.New("invalid response")

	// ErrGameEnded indicates an action against a session that has already
	// reached a terminal status.
	ErrGameEnded = errors.New("game already ended")

	// ErrNotFound indicates an unknown pair or player identifier.
	ErrNotFound = errors.New("not found")

	// ErrNoMatch is returned by a pairing attempt that found no waiting
	// partner. It is a normal outcome, not a failure: the caller stays
	// queued.
	ErrNoMatch = errors.New("no match")
)
