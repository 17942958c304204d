package repository

import (
	"context"
	"strings"

	"github.com/iliyamo/pmb-exam-scheduling/internal/model"
)

// ApplicantQuery filters and paginates the administrative applicant
// list.  Zero values disable a filter; Page 0 returns every match.
type ApplicantQuery struct {
	PeriodID uint64
	SlotID   uint64
	Status   string
	Search   string // substring of full name or registration number
	Page     int
	PageSize int
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// List returns the applicants matching q, newest registration first,
// together with the total number of matches before pagination.
func (r *ApplicantRepo) List(ctx context.Context, q ApplicantQuery) ([]model.Applicant, int64, error) {
	where := []string{}
	args := []any{}

	if q.PeriodID != 0 {
		where = append(where, "period_id = ?")
		args = append(args, q.PeriodID)
	}
	if q.SlotID != 0 {
		where = append(where, "exam_slot_id = ?")
		args = append(args, q.SlotID)
	}
	if q.Status != "" {
		where = append(where, "status = ?")
		args = append(args, q.Status)
	}
	if s := strings.TrimSpace(q.Search); s != "" {
		pattern := "%" + likeEscaper.Replace(s) + "%"
		where = append(where, "(full_name LIKE ? OR registration_number LIKE ?)")
		args = append(args, pattern, pattern)
	}

	cond := "1=1"
	if len(where) > 0 {
		cond = strings.Join(where, " AND ")
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM applicants WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	dataSQL := selectApplicant + ` WHERE ` + cond + ` ORDER BY created_at DESC, id DESC`
	dataArgs := append([]any{}, args...)
	if q.Page > 0 && q.PageSize > 0 {
		dataSQL += ` LIMIT ? OFFSET ?`
		dataArgs = append(dataArgs, q.PageSize, (q.Page-1)*q.PageSize)
	}

	rows, err := r.db.QueryContext(ctx, dataSQL, dataArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := []model.Applicant{}
	for rows.Next() {
		a, err := scanApplicant(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, a)
	}
	return out, total, rows.Err()
}

// ApplicantStats counts applicants per status.
type ApplicantStats struct {
	Total    int64
	ByStatus map[string]int64 // every model.Statuses entry is present
}

// Stats counts the applicants of periodID, or of every period when
// periodID is zero.
func (r *ApplicantRepo) Stats(ctx context.Context, periodID uint64) (ApplicantStats, error) {
	st := ApplicantStats{ByStatus: make(map[string]int64, len(model.Statuses))}
	for _, s := range model.Statuses {
		st.ByStatus[s] = 0
	}

	query := `SELECT status, COUNT(*) FROM applicants`
	args := []any{}
	if periodID != 0 {
		query += ` WHERE period_id = ?`
		args = append(args, periodID)
	}
	rows, err := r.db.QueryContext(ctx, query+` GROUP BY status`, args...)
	if err != nil {
		return st, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			status string
			n      int64
		)
		if err := rows.Scan(&status, &n); err != nil {
			return st, err
		}
		st.ByStatus[status] = n
		st.Total += n
	}
	return st, rows.Err()
}
