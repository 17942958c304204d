package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/pmb-exam-scheduling/internal/model"
	"github.com/iliyamo/pmb-exam-scheduling/internal/reservation"
)

// SlotRepo manages persistence for exam slots.  Occupancy is changed only
// through the *Tx methods, which run inside a reservation transaction
// owned by the caller.
type SlotRepo struct {
	db *sql.DB
}

// NewSlotRepo returns a SlotRepo bound to db.
func NewSlotRepo(db *sql.DB) *SlotRepo { return &SlotRepo{db: db} }

// DB exposes the underlying sql.DB so callers can begin transactions
// spanning several repositories.
func (r *SlotRepo) DB() *sql.DB { return r.db }

// selectSlot joins session and room so every read carries what the
// availability list and the exam card print.
const selectSlot = `SELECT s.id, s.period_id, s.exam_date, s.session_id, s.room_id,
       s.capacity, s.occupied, s.is_active, s.created_at, s.updated_at,
       se.name, se.starts_at, se.ends_at, ro.code, ro.name
  FROM exam_slots s
  JOIN exam_sessions se ON se.id = s.session_id
  JOIN exam_rooms ro ON ro.id = s.room_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSlot(row rowScanner) (model.ExamSlot, error) {
	var s model.ExamSlot
	err := row.Scan(
		&s.ID, &s.PeriodID, &s.Date, &s.SessionID, &s.RoomID,
		&s.Capacity, &s.Occupied, &s.IsActive, &s.CreatedAt, &s.UpdatedAt,
		&s.Session.Name, &s.Session.StartsAt, &s.Session.EndsAt, &s.Room.Code, &s.Room.Name,
	)
	s.Session.ID = s.SessionID
	s.Room.ID = s.RoomID
	return s, err
}

func collectSlots(rows *sql.Rows) ([]model.ExamSlot, error) {
	defer rows.Close()
	out := []model.ExamSlot{}
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetByID returns a slot or reservation.ErrNotFound.
func (r *SlotRepo) GetByID(ctx context.Context, id uint64) (model.ExamSlot, error) {
	s, err := scanSlot(r.db.QueryRowContext(ctx, selectSlot+` WHERE s.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.ExamSlot{}, reservation.ErrNotFound
	}
	return s, err
}

// ListAvailable returns the selectable slots of a period on or after
// asOf, ordered by date, session start time and id.
func (r *SlotRepo) ListAvailable(ctx context.Context, periodID uint64, asOf time.Time) ([]model.ExamSlot, error) {
	rows, err := r.db.QueryContext(ctx, selectSlot+`
 WHERE s.period_id = ? AND s.is_active = 1 AND s.occupied < s.capacity AND s.exam_date >= ?
 ORDER BY s.exam_date, se.starts_at, s.id`, periodID, asOf.Format(model.DateLayout))
	if err != nil {
		return nil, err
	}
	return collectSlots(rows)
}

// Create inserts a new slot.  The natural key (date, session, room) is
// checked up front for a friendly error and enforced again by the
// unique index.  On success the stored row is loaded back into s.
func (r *SlotRepo) Create(ctx context.Context, s *model.ExamSlot) error {
	if s.Capacity < 1 {
		return ErrInvalidCapacity
	}
	taken, err := r.naturalKeyTaken(ctx, r.db, s.Date, s.SessionID, s.RoomID, 0)
	if err != nil {
		return err
	}
	if taken {
		return ErrSlotExists
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO exam_slots (period_id, exam_date, session_id, room_id, capacity, is_active) VALUES (?, ?, ?, ?, ?, ?)`,
		s.PeriodID, s.Date.Format(model.DateLayout), s.SessionID, s.RoomID, s.Capacity, s.IsActive)
	if err != nil {
		switch mysqlCode(err) {
		case mysqlDuplicateEntry:
			return ErrSlotExists
		case mysqlNoReferencedRow:
			return ErrReferenceNotFound
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	stored, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*s = stored
	return nil
}

// SlotPatch lists the administratively editable fields; nil leaves the
// stored value unchanged.
type SlotPatch struct {
	PeriodID  *uint64
	Date      *time.Time
	SessionID *uint64
	RoomID    *uint64
	Capacity  *int
	IsActive  *bool
}

// Update applies a patch under a row lock so a concurrent reservation
// cannot slip between the capacity check and the write.
func (r *SlotRepo) Update(ctx context.Context, id uint64, p SlotPatch) (model.ExamSlot, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.ExamSlot{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var cur model.ExamSlot
	err = tx.QueryRowContext(ctx,
		`SELECT id, period_id, exam_date, session_id, room_id, capacity, occupied, is_active FROM exam_slots WHERE id = ? FOR UPDATE`, id).
		Scan(&cur.ID, &cur.PeriodID, &cur.Date, &cur.SessionID, &cur.RoomID, &cur.Capacity, &cur.Occupied, &cur.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ExamSlot{}, reservation.ErrNotFound
	}
	if err != nil {
		return model.ExamSlot{}, err
	}

	next := cur
	if p.PeriodID != nil {
		next.PeriodID = *p.PeriodID
	}
	if p.Date != nil {
		next.Date = *p.Date
	}
	if p.SessionID != nil {
		next.SessionID = *p.SessionID
	}
	if p.RoomID != nil {
		next.RoomID = *p.RoomID
	}
	if p.Capacity != nil {
		next.Capacity = *p.Capacity
	}
	if p.IsActive != nil {
		next.IsActive = *p.IsActive
	}
	if next.Capacity < 1 {
		return model.ExamSlot{}, ErrInvalidCapacity
	}
	if next.Capacity < cur.Occupied {
		return model.ExamSlot{}, ErrCapacityBelowOccupied
	}

	if !next.Date.Equal(cur.Date) || next.SessionID != cur.SessionID || next.RoomID != cur.RoomID {
		taken, err := r.naturalKeyTaken(ctx, tx, next.Date, next.SessionID, next.RoomID, id)
		if err != nil {
			return model.ExamSlot{}, err
		}
		if taken {
			return model.ExamSlot{}, ErrSlotExists
		}
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE exam_slots SET period_id = ?, exam_date = ?, session_id = ?, room_id = ?, capacity = ?, is_active = ?, updated_at = NOW() WHERE id = ?`,
		next.PeriodID, next.Date.Format(model.DateLayout), next.SessionID, next.RoomID, next.Capacity, next.IsActive, id)
	if err != nil {
		switch mysqlCode(err) {
		case mysqlDuplicateEntry:
			return model.ExamSlot{}, ErrSlotExists
		case mysqlNoReferencedRow:
			return model.ExamSlot{}, ErrReferenceNotFound
		}
		return model.ExamSlot{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.ExamSlot{}, err
	}
	committed = true
	return r.GetByID(ctx, id)
}

// Delete removes a slot that holds no applicants.  The occupancy guard
// is part of the DELETE itself, so a reservation committing at the same
// moment cannot leave an orphaned assignment.
func (r *SlotRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM exam_slots WHERE id = ? AND occupied = 0`, id)
	if isReferenced(err) {
		return ErrConflict
	}
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var exists int
	err = r.db.QueryRowContext(ctx, `SELECT 1 FROM exam_slots WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return reservation.ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrConflict
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *SlotRepo) naturalKeyTaken(ctx context.Context, q queryer, date time.Time, sessionID, roomID, exceptID uint64) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx,
		`SELECT 1 FROM exam_slots WHERE exam_date = ? AND session_id = ? AND room_id = ? AND id <> ? LIMIT 1`,
		date.Format(model.DateLayout), sessionID, roomID, exceptID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// LockTx locks the given slot rows in ascending id order and returns
// those that exist.  Only exam_slots rows are locked; the joined
// reference rows are read without locks.
func (r *SlotRepo) LockTx(ctx context.Context, tx *sql.Tx, ids ...uint64) (map[uint64]model.ExamSlot, error) {
	out := make(map[uint64]model.ExamSlot, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	ph := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := tx.QueryContext(ctx, selectSlot+` WHERE s.id IN (`+ph+`) ORDER BY s.id FOR UPDATE OF s`, args...)
	if err != nil {
		return nil, err
	}
	slots, err := collectSlots(rows)
	if err != nil {
		return nil, err
	}
	for _, s := range slots {
		out[s.ID] = s
	}
	return out, nil
}

// IncrementOccupiedTx takes one seat.  The WHERE clause makes the
// capacity check and the write a single statement.
func (r *SlotRepo) IncrementOccupiedTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE exam_slots SET occupied = occupied + 1, updated_at = NOW() WHERE id = ? AND occupied < capacity`, id)
	if err != nil {
		return err
	}
	return r.guardResult(ctx, tx, res, id, reservation.ErrCapacityExceeded)
}

// DecrementOccupiedTx releases one seat and never goes below zero.
func (r *SlotRepo) DecrementOccupiedTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE exam_slots SET occupied = occupied - 1, updated_at = NOW() WHERE id = ? AND occupied > 0`, id)
	if err != nil {
		return err
	}
	return r.guardResult(ctx, tx, res, id, reservation.ErrInvalidState)
}

func (r *SlotRepo) guardResult(ctx context.Context, tx *sql.Tx, res sql.Result, id uint64, guardErr error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	var one int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM exam_slots WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return reservation.ErrNotFound
	}
	if err != nil {
		return err
	}
	return guardErr
}
