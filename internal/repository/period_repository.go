package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/pmb-exam-scheduling/internal/model"
	"github.com/iliyamo/pmb-exam-scheduling/internal/reservation"
)

// ErrPeriodNotFound indicates that an admission period was not located.
var ErrPeriodNotFound = errors.New("admission period not found")

// PeriodRepo manages admission periods.
type PeriodRepo struct{ DB *sql.DB }

func NewPeriodRepo(db *sql.DB) *PeriodRepo { return &PeriodRepo{DB: db} }

const selectPeriod = `SELECT id, name, opens_on, closes_on, is_active FROM admission_periods`

func scanPeriod(row rowScanner) (model.Period, error) {
	var p model.Period
	err := row.Scan(&p.ID, &p.Name, &p.OpensOn, &p.ClosesOn, &p.IsActive)
	return p, err
}

// List returns all periods, newest first.
func (r *PeriodRepo) List(ctx context.Context) ([]model.Period, error) {
	rows, err := r.DB.QueryContext(ctx, selectPeriod+` ORDER BY opens_on DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Period{}
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Create inserts a period.  A period created active does not deactivate
// the others; use Activate for that.
func (r *PeriodRepo) Create(ctx context.Context, p *model.Period) error {
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO admission_periods (name, opens_on, closes_on, is_active) VALUES (?, ?, ?, ?)`,
		p.Name, p.OpensOn.Format(model.DateLayout), p.ClosesOn.Format(model.DateLayout), p.IsActive)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	return nil
}

// Get loads one period.
func (r *PeriodRepo) Get(ctx context.Context, id uint64) (model.Period, error) {
	p, err := scanPeriod(r.DB.QueryRowContext(ctx, selectPeriod+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Period{}, ErrPeriodNotFound
	}
	return p, err
}

// Update rewrites name and dates.  The active flag only changes through
// Activate.
func (r *PeriodRepo) Update(ctx context.Context, p model.Period) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE admission_periods SET name = ?, opens_on = ?, closes_on = ? WHERE id = ?`,
		p.Name, p.OpensOn.Format(model.DateLayout), p.ClosesOn.Format(model.DateLayout), p.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrPeriodNotFound
	}
	return nil
}

// Delete removes a period without slots or applicants; otherwise it
// returns ErrInUse.
func (r *PeriodRepo) Delete(ctx context.Context, id uint64) error {
	return deleteByID(ctx, r.DB, `DELETE FROM admission_periods WHERE id = ?`, id, ErrPeriodNotFound)
}

// Activate makes id the only active period.
func (r *PeriodRepo) Activate(ctx context.Context, id uint64) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `UPDATE admission_periods SET is_active = 1 WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrPeriodNotFound
	}
	if _, err := tx.ExecContext(ctx, `UPDATE admission_periods SET is_active = 0 WHERE id <> ?`, id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// Active returns the most recent active period or
// reservation.ErrNoActivePeriod.
func (r *PeriodRepo) Active(ctx context.Context) (model.Period, error) {
	p, err := scanPeriod(r.DB.QueryRowContext(ctx, selectPeriod+` WHERE is_active = 1 ORDER BY id DESC LIMIT 1`))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Period{}, reservation.ErrNoActivePeriod
	}
	return p, err
}

// Calendar serves the engine's period and date lookups from MySQL.
type Calendar struct {
	reservation.Clock
	Periods *PeriodRepo
}

// NewCalendar returns a Calendar computing "today" in loc.
func NewCalendar(periods *PeriodRepo, loc *time.Location) *Calendar {
	return &Calendar{Clock: reservation.Clock{Location: loc}, Periods: periods}
}

// ActivePeriod implements reservation.Calendar.
func (c *Calendar) ActivePeriod(ctx context.Context) (model.Period, error) {
	return c.Periods.Active(ctx)
}
