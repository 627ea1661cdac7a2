package routing

import "errors"

var (
	// ErrNoAvailableAstrologer is the only user-visible routing failure:
	// the candidate pool is empty after filters, or every reservation
	// attempt conflicted. Callers decide whether to queue or show
	// unavailability; the engine does not retry it.
	ErrNoAvailableAstrologer = errors.New("no available astrologer")

	// ErrInvalidOutcome rejects release calls carrying an outcome the
	// engine does not understand.
	ErrInvalidOutcome = errors.New("invalid consultation outcome")
)
