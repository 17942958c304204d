package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/iliyamo/pmb-exam-scheduling/internal/model"
	"github.com/iliyamo/pmb-exam-scheduling/internal/reservation"
)

// ApplicantRepo stores applicants and their current exam-slot
// assignment.  It never touches slot occupancy; the reservation engine
// pairs SetAssignmentTx with the slot counter updates.
type ApplicantRepo struct {
	db  *sql.DB
	now func() time.Time
}

// NewApplicantRepo returns an ApplicantRepo bound to db.
func NewApplicantRepo(db *sql.DB) *ApplicantRepo {
	return &ApplicantRepo{db: db, now: time.Now}
}

// CreateTx inserts the applicant row of a freshly registered user inside
// the caller's transaction and assigns the next registration number of
// the year (PMB{YEAR}{SEQUENCE:05}).  A number taken by a concurrent
// registration is retried a few times.
func (r *ApplicantRepo) CreateTx(ctx context.Context, tx *sql.Tx, userID uint64, fullName, whatsapp string, periodID uint64) (model.Applicant, error) {
	a := model.Applicant{
		UserID:   userID,
		FullName: strings.TrimSpace(fullName),
		WhatsApp: strings.TrimSpace(whatsapp),
		PeriodID: periodID,
		Status:   model.StatusRegistered,
	}
	prefix := fmt.Sprintf("PMB%d", r.now().Year())
	for attempt := 0; attempt < 5; attempt++ {
		seq, err := lastSequence(ctx, tx, prefix)
		if err != nil {
			return model.Applicant{}, err
		}
		a.RegistrationNumber = fmt.Sprintf("%s%05d", prefix, seq+1+attempt)

		res, err := tx.ExecContext(ctx,
			`INSERT INTO applicants (user_id, registration_number, full_name, whatsapp, period_id, status) VALUES (?, ?, ?, ?, ?, ?)`,
			a.UserID, a.RegistrationNumber, a.FullName, a.WhatsApp, a.PeriodID, a.Status)
		if isDuplicate(err) {
			continue
		}
		if err != nil {
			return model.Applicant{}, err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return model.Applicant{}, err
		}
		a.ID = uint64(id)
		return a, nil
	}
	return model.Applicant{}, fmt.Errorf("allocate registration number: %w", ErrConflict)
}

// lastSequence returns the highest sequence issued under prefix across
// all periods, since registration numbers are unique table-wide.
func lastSequence(ctx context.Context, tx *sql.Tx, prefix string) (int, error) {
	var last string
	err := tx.QueryRowContext(ctx,
		`SELECT registration_number FROM applicants WHERE registration_number LIKE ?
		  ORDER BY LENGTH(registration_number) DESC, registration_number DESC LIMIT 1`, prefix+"%").Scan(&last)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	seq, err := strconv.Atoi(strings.TrimPrefix(last, prefix))
	if err != nil {
		return 0, fmt.Errorf("registration number %q: %w", last, err)
	}
	return seq, nil
}

const selectApplicant = `SELECT id, user_id, registration_number, full_name, whatsapp, period_id, exam_slot_id, status, slot_assigned_at, created_at, updated_at
	   FROM applicants`

func scanApplicant(row rowScanner) (model.Applicant, error) {
	var (
		a        model.Applicant
		slotID   sql.NullInt64
		assigned sql.NullTime
	)
	if err := row.Scan(&a.ID, &a.UserID, &a.RegistrationNumber, &a.FullName, &a.WhatsApp, &a.PeriodID, &slotID, &a.Status, &assigned, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return model.Applicant{}, err
	}
	if slotID.Valid {
		v := uint64(slotID.Int64)
		a.ExamSlotID = &v
	}
	if assigned.Valid {
		t := assigned.Time
		a.SlotAssignedAt = &t
	}
	return a, nil
}

// Get loads one applicant.
func (r *ApplicantRepo) Get(ctx context.Context, id uint64) (model.Applicant, error) {
	a, err := scanApplicant(r.db.QueryRowContext(ctx, selectApplicant+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Applicant{}, reservation.ErrApplicantNotFound
	}
	return a, err
}

// IDForUser resolves the applicant owned by a login account.
func (r *ApplicantRepo) IDForUser(ctx context.Context, userID uint64) (uint64, error) {
	var id uint64
	err := r.db.QueryRowContext(ctx, `SELECT id FROM applicants WHERE user_id = ? LIMIT 1`, userID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, reservation.ErrApplicantNotFound
	}
	return id, err
}

// Card returns the exam card of an applicant, or ErrNoSlotAssigned.
func (r *ApplicantRepo) Card(ctx context.Context, applicantID uint64) (model.ExamCard, error) {
	var (
		c      model.ExamCard
		slotID sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT a.registration_number, a.full_name, COALESCE(p.name, ''), a.exam_slot_id
		   FROM applicants a
		   LEFT JOIN admission_periods p ON p.id = a.period_id
		  WHERE a.id = ?`, applicantID).
		Scan(&c.RegistrationNumber, &c.FullName, &c.PeriodName, &slotID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ExamCard{}, reservation.ErrApplicantNotFound
	}
	if err != nil {
		return model.ExamCard{}, err
	}
	if !slotID.Valid {
		return model.ExamCard{}, ErrNoSlotAssigned
	}

	err = r.db.QueryRowContext(ctx,
		`SELECT s.id, s.exam_date, se.name, se.starts_at, se.ends_at, ro.code, ro.name
		   FROM exam_slots s
		   JOIN exam_sessions se ON se.id = s.session_id
		   JOIN exam_rooms ro ON ro.id = s.room_id
		  WHERE s.id = ?`, slotID.Int64).
		Scan(&c.SlotID, &c.Date, &c.SessionName, &c.SessionStartsAt, &c.SessionEndsAt, &c.RoomCode, &c.RoomName)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ExamCard{}, ErrNoSlotAssigned
	}
	return c, err
}

// GetAssignmentTx locks the applicant row and returns the held slot.
func (r *ApplicantRepo) GetAssignmentTx(ctx context.Context, tx *sql.Tx, applicantID uint64) (uint64, bool, error) {
	var slotID sql.NullInt64
	err := tx.QueryRowContext(ctx,
		`SELECT exam_slot_id FROM applicants WHERE id = ? FOR UPDATE`, applicantID).Scan(&slotID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, reservation.ErrApplicantNotFound
	}
	if err != nil {
		return 0, false, err
	}
	if !slotID.Valid {
		return 0, false, nil
	}
	return uint64(slotID.Int64), true, nil
}

// SetAssignmentTx overwrites the applicant's slot and marks the
// schedule step as done.
func (r *ApplicantRepo) SetAssignmentTx(ctx context.Context, tx *sql.Tx, applicantID, slotID uint64, at time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE applicants SET exam_slot_id = ?, slot_assigned_at = ?, status = ?, updated_at = NOW() WHERE id = ?`,
		slotID, at, model.StatusScheduleChosen, applicantID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return reservation.ErrApplicantNotFound
	}
	return nil
}
