package repository

import (
	"context"
	"strings"
	"time"

	"github.com/iliyamo/pmb-exam-scheduling/internal/model"
)

// SlotQuery filters and paginates the administrative slot list.  Zero
// values disable a filter; Page 0 returns every match.
type SlotQuery struct {
	PeriodID  uint64
	SessionID uint64
	RoomID    uint64
	From      *time.Time // inclusive
	To        *time.Time // inclusive
	Active    *bool
	Page      int
	PageSize  int
}

// List returns the slots matching q ordered by date then session id,
// together with the total number of matches before pagination.
func (r *SlotRepo) List(ctx context.Context, q SlotQuery) ([]model.ExamSlot, int64, error) {
	where := []string{}
	args := []any{}

	if q.PeriodID != 0 {
		where = append(where, "s.period_id = ?")
		args = append(args, q.PeriodID)
	}
	if q.SessionID != 0 {
		where = append(where, "s.session_id = ?")
		args = append(args, q.SessionID)
	}
	if q.RoomID != 0 {
		where = append(where, "s.room_id = ?")
		args = append(args, q.RoomID)
	}
	if q.From != nil {
		where = append(where, "s.exam_date >= ?")
		args = append(args, q.From.Format(model.DateLayout))
	}
	if q.To != nil {
		where = append(where, "s.exam_date <= ?")
		args = append(args, q.To.Format(model.DateLayout))
	}
	if q.Active != nil {
		where = append(where, "s.is_active = ?")
		args = append(args, *q.Active)
	}

	cond := "1=1"
	if len(where) > 0 {
		cond = strings.Join(where, " AND ")
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM exam_slots s WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	dataSQL := selectSlot + ` WHERE ` + cond + ` ORDER BY s.exam_date, s.session_id, s.id`
	dataArgs := append([]any{}, args...)
	if q.Page > 0 && q.PageSize > 0 {
		dataSQL += ` LIMIT ? OFFSET ?`
		dataArgs = append(dataArgs, q.PageSize, (q.Page-1)*q.PageSize)
	}

	rows, err := r.db.QueryContext(ctx, dataSQL, dataArgs...)
	if err != nil {
		return nil, 0, err
	}
	slots, err := collectSlots(rows)
	if err != nil {
		return nil, 0, err
	}
	return slots, total, nil
}

// Occupancy totals the active slots of a period.
type Occupancy struct {
	Slots    int64
	Capacity int64
	Occupied int64
}

// Occupancy sums capacity and occupied seats over the active slots of
// periodID, or of every period when periodID is zero.
func (r *SlotRepo) Occupancy(ctx context.Context, periodID uint64) (Occupancy, error) {
	query := `SELECT COUNT(*), COALESCE(SUM(capacity), 0), COALESCE(SUM(occupied), 0) FROM exam_slots WHERE is_active = 1`
	args := []any{}
	if periodID != 0 {
		query += ` AND period_id = ?`
		args = append(args, periodID)
	}
	var o Occupancy
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&o.Slots, &o.Capacity, &o.Occupied)
	return o, err
}
