package repository

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"time"

	"github.com/iliyamo/pmb-exam-scheduling/internal/model"
	"github.com/iliyamo/pmb-exam-scheduling/internal/reservation"
)

// ReservationStore is the MySQL implementation of reservation.Store.
// Each atomic unit is one READ COMMITTED transaction; serializability of
// a reservation comes from the row locks taken by GetAssignment and
// LockSlots, released at commit or rollback.
type ReservationStore struct {
	db         *sql.DB
	slots      *SlotRepo
	applicants *ApplicantRepo
}

// NewReservationStore combines the slot and applicant repositories.
func NewReservationStore(db *sql.DB, slots *SlotRepo, applicants *ApplicantRepo) *ReservationStore {
	return &ReservationStore{db: db, slots: slots, applicants: applicants}
}

// Atomic implements reservation.Store.  Deadlocks and lock wait
// timeouts come back wrapped with reservation.ErrConflict.
func (s *ReservationStore) Atomic(ctx context.Context, fn func(ctx context.Context, tx reservation.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin reservation tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(ctx, &sqlTx{tx: tx, slots: s.slots, applicants: s.applicants}); err != nil {
		return asConflict(err)
	}
	if err := tx.Commit(); err != nil {
		return asConflict(fmt.Errorf("commit reservation tx: %w", err))
	}
	committed = true
	return nil
}

// GetSlot implements reservation.Store.
func (s *ReservationStore) GetSlot(ctx context.Context, id uint64) (model.ExamSlot, error) {
	return s.slots.GetByID(ctx, id)
}

// ListAvailable implements reservation.Store.
func (s *ReservationStore) ListAvailable(ctx context.Context, periodID uint64, asOf time.Time) ([]model.ExamSlot, error) {
	return s.slots.ListAvailable(ctx, periodID, asOf)
}

type sqlTx struct {
	tx         *sql.Tx
	slots      *SlotRepo
	applicants *ApplicantRepo
}

func (t *sqlTx) GetAssignment(ctx context.Context, applicantID uint64) (uint64, bool, error) {
	return t.applicants.GetAssignmentTx(ctx, t.tx, applicantID)
}

func (t *sqlTx) LockSlots(ctx context.Context, ids ...uint64) (map[uint64]model.ExamSlot, error) {
	return t.slots.LockTx(ctx, t.tx, sortedUnique(ids)...)
}

func (t *sqlTx) IncrementOccupied(ctx context.Context, slotID uint64) error {
	return t.slots.IncrementOccupiedTx(ctx, t.tx, slotID)
}

func (t *sqlTx) DecrementOccupied(ctx context.Context, slotID uint64) error {
	return t.slots.DecrementOccupiedTx(ctx, t.tx, slotID)
}

func (t *sqlTx) SetAssignment(ctx context.Context, applicantID, slotID uint64, at time.Time) error {
	return t.applicants.SetAssignmentTx(ctx, t.tx, applicantID, slotID, at)
}

// sortedUnique keeps lock acquisition order identical across requests.
func sortedUnique(ids []uint64) []uint64 {
	out := make([]uint64, 0, len(ids))
	seen := make(map[uint64]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}
