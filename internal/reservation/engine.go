package reservation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/iliyamo/pmb-exam-scheduling/internal/model"
)

// DefaultMaxAttempts bounds how many times a conflicting atomic unit is
// re-run before the request is answered with OutcomeSlotFull.
const DefaultMaxAttempts = 3

// Result is what Reserve returns for every business outcome.
type Result struct {
	Outcome Outcome
	// Slot is the requested slot as seen inside the atomic unit; after a
	// successful change it reflects the incremented occupancy.
	Slot model.ExamSlot
	// PreviousSlotID is the slot held before the call, if any.
	PreviousSlotID *uint64
	// Changed is false when the applicant re-confirmed the slot they
	// already hold.
	Changed bool
}

// OK reports whether the applicant now holds the requested slot.
func (r Result) OK() bool { return r.Outcome == OutcomeReserved }

// Options tunes an Engine.  Zero values pick the defaults.
type Options struct {
	MaxAttempts  int
	RetryBackoff time.Duration
	Publisher    Publisher
}

// Engine is the only writer of slot occupancy and applicant assignments.
type Engine struct {
	store     Store
	calendar  Calendar
	attempts  int
	backoff   time.Duration
	publisher Publisher
	now       func() time.Time
}

// NewEngine wires an engine over a store and a calendar.
func NewEngine(store Store, cal Calendar, opts Options) *Engine {
	e := &Engine{
		store:     store,
		calendar:  cal,
		attempts:  opts.MaxAttempts,
		backoff:   opts.RetryBackoff,
		publisher: opts.Publisher,
		now:       time.Now,
	}
	if e.attempts <= 0 {
		e.attempts = DefaultMaxAttempts
	}
	if e.backoff < 0 {
		e.backoff = 0
	}
	return e
}

// Reserve binds applicantID to slotID, releasing any slot held before.
// Business rejections come back as a Result with a non-success Outcome
// and a nil error; the error is reserved for storage failures and for
// an unknown applicant.
func (e *Engine) Reserve(ctx context.Context, applicantID, slotID uint64) (Result, error) {
	var (
		res Result
		err error
	)
	attempt := 0
	for attempt < e.attempts {
		attempt++
		res, err = e.reserveOnce(ctx, applicantID, slotID)
		if !errors.Is(err, ErrConflict) {
			break
		}
		reserveConflicts.Inc()
		if attempt < e.attempts && e.backoff > 0 {
			select {
			case <-ctx.Done():
				reserveAttempts.Observe(float64(attempt))
				return Result{}, ctx.Err()
			case <-time.After(time.Duration(attempt) * e.backoff):
			}
		}
	}
	reserveAttempts.Observe(float64(attempt))

	if errors.Is(err, ErrConflict) {
		log.Printf("reservation: applicant=%d slot=%d gave up after %d conflicting attempts", applicantID, slotID, attempt)
		res, err = Result{Outcome: OutcomeSlotFull}, nil
	}
	if err != nil {
		reserveErrors.Inc()
		return Result{}, err
	}
	reserveOutcomes.WithLabelValues(string(res.Outcome)).Inc()

	if res.OK() && res.Changed {
		e.publish(ctx, applicantID, res)
	}
	return res, nil
}

func (e *Engine) reserveOnce(ctx context.Context, applicantID, slotID uint64) (Result, error) {
	today := e.calendar.Today()
	var res Result

	err := e.store.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		prev, hasPrev, err := tx.GetAssignment(ctx, applicantID)
		if err != nil {
			return err
		}
		if hasPrev {
			p := prev
			res.PreviousSlotID = &p
		}

		ids := []uint64{slotID}
		if hasPrev && prev != slotID {
			ids = append(ids, prev)
		}
		slots, err := tx.LockSlots(ctx, ids...)
		if err != nil {
			return err
		}

		slot, ok := slots[slotID]
		switch {
		case !ok:
			res.Outcome = OutcomeSlotNotFound
			return errRejected
		case !slot.IsActive:
			res.Outcome = OutcomeSlotInactive
			return errRejected
		case slot.Date.Before(today):
			res.Outcome = OutcomeSlotExpired
			return errRejected
		}
		res.Slot = slot

		if hasPrev && prev == slotID {
			res.Outcome = OutcomeReserved
			return nil
		}
		if slot.IsFull() {
			res.Outcome = OutcomeSlotFull
			return errRejected
		}

		if _, held := slots[prev]; hasPrev && held {
			if err := tx.DecrementOccupied(ctx, prev); err != nil {
				return fmt.Errorf("release slot %d: %w", prev, err)
			}
		}
		if err := tx.IncrementOccupied(ctx, slotID); err != nil {
			if errors.Is(err, ErrCapacityExceeded) {
				res.Outcome = OutcomeSlotFull
				return errRejected
			}
			return fmt.Errorf("take slot %d: %w", slotID, err)
		}
		if err := tx.SetAssignment(ctx, applicantID, slotID, e.now().UTC()); err != nil {
			return fmt.Errorf("assign applicant %d: %w", applicantID, err)
		}

		res.Slot.Occupied++
		res.Outcome = OutcomeReserved
		res.Changed = true
		return nil
	})

	if errors.Is(err, errRejected) {
		return Result{Outcome: res.Outcome, PreviousSlotID: res.PreviousSlotID}, nil
	}
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

func (e *Engine) publish(ctx context.Context, applicantID uint64, res Result) {
	if e.publisher == nil {
		return
	}
	ev := Selection{
		ApplicantID:    applicantID,
		PreviousSlotID: res.PreviousSlotID,
		Slot:           res.Slot,
		SelectedAt:     e.now().UTC(),
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()
	if err := e.publisher.PublishScheduleSelected(pctx, ev); err != nil {
		log.Printf("reservation: publish schedule.selected for applicant=%d failed: %v", applicantID, err)
	}
}

// IsDeletable reports whether the slot holds no applicants and may be
// hard-deleted by an administrator.
func (e *Engine) IsDeletable(ctx context.Context, slotID uint64) (bool, error) {
	slot, err := e.store.GetSlot(ctx, slotID)
	if err != nil {
		return false, err
	}
	return slot.Occupied == 0, nil
}
