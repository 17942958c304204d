// Package reservation implements the exam-slot allocation engine: the
// availability read path and the atomic move of an applicant from their
// previous slot (if any) to a newly requested one.
package reservation

import (
	"context"
	"time"

	"github.com/iliyamo/pmb-exam-scheduling/internal/model"
)

// Store is the persistence contract of the engine.  Atomic must run fn
// as one serializable unit: every mutation performed through the Tx is
// committed together when fn returns nil and discarded otherwise.
type Store interface {
	Atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// GetSlot returns the slot with its session and room, or ErrNotFound.
	GetSlot(ctx context.Context, id uint64) (model.ExamSlot, error)

	// ListAvailable returns active slots of the period with free seats
	// dated on or after asOf, ordered by date, session start, id.
	ListAvailable(ctx context.Context, periodID uint64, asOf time.Time) ([]model.ExamSlot, error)
}

// Tx exposes the row-level operations available inside Store.Atomic.
type Tx interface {
	// GetAssignment locks the applicant row and returns the held slot.
	// ok is false when the applicant has no slot.
	GetAssignment(ctx context.Context, applicantID uint64) (slotID uint64, ok bool, err error)

	// LockSlots locks the given slot rows in ascending id order and
	// returns those that exist, keyed by id.
	LockSlots(ctx context.Context, ids ...uint64) (map[uint64]model.ExamSlot, error)

	// IncrementOccupied adds one seat or fails with ErrCapacityExceeded.
	IncrementOccupied(ctx context.Context, slotID uint64) error

	// DecrementOccupied releases one seat or fails with ErrInvalidState.
	DecrementOccupied(ctx context.Context, slotID uint64) error

	// SetAssignment overwrites the applicant's slot unconditionally.
	SetAssignment(ctx context.Context, applicantID, slotID uint64, at time.Time) error
}

// Publisher receives committed reservations.  Implementations must not
// block the request for long; errors are logged by the engine.
type Publisher interface {
	PublishScheduleSelected(ctx context.Context, ev Selection) error
}

// Selection describes one committed change of an applicant's slot.
type Selection struct {
	ApplicantID    uint64
	PreviousSlotID *uint64
	Slot           model.ExamSlot
	SelectedAt     time.Time
}
