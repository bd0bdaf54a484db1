package ledger

import "errors"

// Business errors returned by Register and Cancel. All of them are
// detected before any mutation and surfaced directly to the caller;
// anything else coming out of the ledger is an infrastructure failure
// and means the whole transaction was rolled back.
var (
	ErrAlreadyRegistered    = errors.New("user already has an active registration for this event")
	ErrCancellationLimit    = errors.New("cancellation limit exceeded for this event")
	ErrRegistrationNotOpen  = errors.New("event is not accepting registrations")
	ErrSoldOut              = errors.New("tickets for this event are sold out")
	ErrNoActiveRegistration = errors.New("no active registration found")
	ErrEventCompleted       = errors.New("cannot cancel a registration for a completed event")
)

// IsBusinessError reports whether err is one of the ledger's expected,
// recoverable-by-caller rejections rather than a defect.
func IsBusinessError(err error) bool {
	for _, e := range []error{
		ErrAlreadyRegistered,
		ErrCancellationLimit,
		ErrRegistrationNotOpen,
		ErrSoldOut,
		ErrNoActiveRegistration,
		ErrEventCompleted,
	} {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}
