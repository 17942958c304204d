package reservation

import "errors"

// Outcome is the business result of a reservation attempt.  Only
// OutcomeReserved is a success; every other value is a user-correctable
// rejection that leaves all counters and assignments untouched.
type Outcome string

const (
	OutcomeReserved     Outcome = "reserved"
	OutcomeSlotNotFound Outcome = "slot_not_found"
	OutcomeSlotInactive Outcome = "slot_inactive"
	OutcomeSlotExpired  Outcome = "slot_expired"
	OutcomeSlotFull     Outcome = "slot_full"
)

// Message returns the human readable text shown to applicants.
func (o Outcome) Message() string {
	switch o {
	case OutcomeReserved:
		return "exam schedule selected"
	case OutcomeSlotNotFound:
		return "exam schedule not found"
	case OutcomeSlotInactive:
		return "exam schedule is not active"
	case OutcomeSlotExpired:
		return "exam schedule has already passed"
	case OutcomeSlotFull:
		return "exam schedule quota is full"
	}
	return string(o)
}

// Errors returned by Store implementations.  The engine turns the first
// three into outcomes or retries; anything else is an infrastructure
// failure and is propagated.
var (
	// ErrNotFound is returned when a slot row does not exist.
	ErrNotFound = errors.New("slot not found")
	// ErrCapacityExceeded is returned when an increment would push
	// occupied above capacity.
	ErrCapacityExceeded = errors.New("slot capacity exceeded")
	// ErrInvalidState is returned when a decrement would push occupied
	// below zero.
	ErrInvalidState = errors.New("slot occupancy would become negative")
	// ErrConflict marks a transient concurrency collision (deadlock,
	// lock wait timeout, failed compare-and-swap).  The engine retries it.
	ErrConflict = errors.New("concurrency conflict")
	// ErrApplicantNotFound is returned when the applicant row is missing.
	ErrApplicantNotFound = errors.New("applicant not found")
	// ErrNoActivePeriod is returned by calendars without an active period.
	ErrNoActivePeriod = errors.New("no active admission period")
)

// errRejected aborts the atomic unit so the store rolls back; the
// outcome itself travels in the Result captured by the closure.
var errRejected = errors.New("reservation rejected")
