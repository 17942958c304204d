package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/pmb-exam-scheduling/internal/model"
)

type repos struct {
	periods  *PeriodRepo
	sessions *SessionRepo
	rooms    *RoomRepo
}

func newRepos(db *sql.DB) repos {
	return repos{periods: NewPeriodRepo(db), sessions: NewSessionRepo(db), rooms: NewRoomRepo(db)}
}

func TestReferenceDelete(t *testing.T) {
	targets := []struct {
		name    string
		query   string
		del     func(r repos) error
		missing error
	}{
		{"period", `DELETE FROM admission_periods WHERE id = ?`, func(r repos) error { return r.periods.Delete(context.Background(), 3) }, ErrPeriodNotFound},
		{"session", `DELETE FROM exam_sessions WHERE id = ?`, func(r repos) error { return r.sessions.Delete(context.Background(), 3) }, ErrSessionNotFound},
		{"room", `DELETE FROM exam_rooms WHERE id = ?`, func(r repos) error { return r.rooms.Delete(context.Background(), 3) }, ErrRoomNotFound},
	}
	outcomes := []struct {
		name   string
		expect func(e *sqlmock.ExpectedExec)
		want   func(missing error) error
	}{
		{"deleted", func(e *sqlmock.ExpectedExec) { e.WillReturnResult(sqlmock.NewResult(0, 1)) }, func(error) error { return nil }},
		{"referenced", func(e *sqlmock.ExpectedExec) { e.WillReturnError(&mysql.MySQLError{Number: 1451}) }, func(error) error { return ErrInUse }},
		{"missing", func(e *sqlmock.ExpectedExec) { e.WillReturnResult(sqlmock.NewResult(0, 0)) }, func(m error) error { return m }},
	}
	for _, tg := range targets {
		for _, oc := range outcomes {
			t.Run(tg.name+" "+oc.name, func(t *testing.T) {
				db, mock := newMock(t)
				oc.expect(mock.ExpectExec(regexp.QuoteMeta(tg.query)).WithArgs(3))

				err := tg.del(newRepos(db))
				if want := oc.want(tg.missing); want == nil {
					assert.NoError(t, err)
				} else {
					assert.ErrorIs(t, err, want)
				}
				assert.NoError(t, mock.ExpectationsWereMet())
			})
		}
	}
}

func TestSlotDeleteReferencedByApplicant(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM exam_slots WHERE id = ? AND occupied = 0`)).WithArgs(10).
		WillReturnError(&mysql.MySQLError{Number: 1451})
	assert.ErrorIs(t, NewSlotRepo(db).Delete(context.Background(), 10), ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPeriodGetAndUpdate(t *testing.T) {
	qSelect := regexp.QuoteMeta(`SELECT id, name, opens_on, closes_on, is_active FROM admission_periods WHERE id = ?`)
	qUpdate := regexp.QuoteMeta(`UPDATE admission_periods SET name = ?, opens_on = ?, closes_on = ? WHERE id = ?`)

	db, mock := newMock(t)
	mock.ExpectQuery(qSelect).WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "opens_on", "closes_on", "is_active"}).
			AddRow(2, "Gelombang 2", day(2026, 4, 1), day(2026, 5, 31), false))
	mock.ExpectQuery(qSelect).WithArgs(9).WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec(qUpdate).WithArgs("Gelombang 2", "2026-04-01", "2026-06-15", 2).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(qUpdate).WithArgs("x", "2026-04-01", "2026-06-15", 9).WillReturnResult(sqlmock.NewResult(0, 0))

	periods := NewPeriodRepo(db)
	p, err := periods.Get(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "Gelombang 2", p.Name)

	_, err = periods.Get(context.Background(), 9)
	assert.ErrorIs(t, err, ErrPeriodNotFound)

	p.ClosesOn = day(2026, 6, 15)
	require.NoError(t, periods.Update(context.Background(), p))

	p.ID, p.Name = 9, "x"
	assert.ErrorIs(t, periods.Update(context.Background(), p), ErrPeriodNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionAndRoomUpdateDuplicates(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE exam_sessions SET name = ?, starts_at = ?, ends_at = ?, is_active = ? WHERE id = ?`)).
		WithArgs("Sesi Siang", "08:00", "11:00", true, 1).
		WillReturnError(&mysql.MySQLError{Number: 1062})
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE exam_rooms SET code = ?, name = ?, capacity = ?, is_active = ? WHERE id = ?`)).
		WithArgs("R102", "Ruang 101", 30, true, 1).
		WillReturnError(&mysql.MySQLError{Number: 1062})
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE exam_rooms SET code = ?, name = ?, capacity = ?, is_active = ? WHERE id = ?`)).
		WithArgs("R101", "Ruang 101", 35, false, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))

	r := newRepos(db)
	err := r.sessions.Update(context.Background(), model.Session{ID: 1, Name: " Sesi Siang", StartsAt: "08:00", EndsAt: "11:00", IsActive: true})
	assert.ErrorIs(t, err, ErrSessionNameExists)

	rm := &model.Room{ID: 1, Code: "r102 ", Name: "Ruang 101", Capacity: 30, IsActive: true}
	assert.ErrorIs(t, r.rooms.Update(context.Background(), rm), ErrRoomCodeExists)

	rm = &model.Room{ID: 1, Code: "r101", Name: " Ruang 101 ", Capacity: 35}
	require.NoError(t, r.rooms.Update(context.Background(), rm))
	assert.Equal(t, "R101", rm.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

var applicantColumns = []string{
	"id", "user_id", "registration_number", "full_name", "whatsapp", "period_id",
	"exam_slot_id", "status", "slot_assigned_at", "created_at", "updated_at",
}

func TestApplicantListFiltersAndPages(t *testing.T) {
	db, mock := newMock(t)
	stamp := day(2026, 3, 1)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM applicants WHERE period_id = ? AND status = ? AND (full_name LIKE ? OR registration_number LIKE ?)`)).
		WithArgs(1, model.StatusFinished, `%50\%%`, `%50\%%`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(16))
	mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`)).
		WithArgs(1, model.StatusFinished, `%50\%%`, `%50\%%`, 15, 15).
		WillReturnRows(sqlmock.NewRows(applicantColumns).
			AddRow(100, 7, "PMB202600001", "Siti 50%", "0812", 1, 10, model.StatusFinished, stamp, stamp, stamp))

	got, total, err := NewApplicantRepo(db).List(context.Background(), ApplicantQuery{
		PeriodID: 1, Status: model.StatusFinished, Search: " 50% ", Page: 2, PageSize: 15,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(16), total)
	require.Len(t, got, 1)
	require.NotNil(t, got[0].ExamSlotID)
	assert.Equal(t, uint64(10), *got[0].ExamSlotID)
	require.NotNil(t, got[0].SlotAssignedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicantListBySlot(t *testing.T) {
	db, mock := newMock(t)
	stamp := day(2026, 3, 1)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM applicants WHERE exam_slot_id = ?`)).
		WithArgs(10).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE exam_slot_id = ? ORDER BY created_at DESC, id DESC`)).
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows(applicantColumns).
			AddRow(101, 8, "PMB202600002", "Budi", "", 1, nil, model.StatusRegistered, nil, stamp, stamp))

	got, _, err := NewApplicantRepo(db).List(context.Background(), ApplicantQuery{SlotID: 10})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Nil(t, got[0].ExamSlotID)
	assert.Nil(t, got[0].SlotAssignedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicantStatsCoversEveryStatus(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT status, COUNT(*) FROM applicants WHERE period_id = ? GROUP BY status`)).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"status", "n"}).
			AddRow(model.StatusRegistered, 2).
			AddRow(model.StatusScheduleChosen, 5))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT status, COUNT(*) FROM applicants GROUP BY status`)).
		WillReturnRows(sqlmock.NewRows([]string{"status", "n"}))

	repo := NewApplicantRepo(db)
	st, err := repo.Stats(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(7), st.Total)
	assert.Equal(t, map[string]int64{
		model.StatusRegistered:     2,
		model.StatusBiodataDone:    0,
		model.StatusScheduleChosen: 5,
		model.StatusFinished:       0,
	}, st.ByStatus)

	st, err = repo.Stats(context.Background(), 0)
	require.NoError(t, err)
	assert.Zero(t, st.Total)
	assert.Len(t, st.ByStatus, len(model.Statuses))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotOccupancy(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM exam_slots WHERE is_active = 1 AND period_id = ?`)).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"n", "capacity", "occupied"}).AddRow(3, 90, 31))

	o, err := NewSlotRepo(db).Occupancy(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, Occupancy{Slots: 3, Capacity: 90, Occupied: 31}, o)
	assert.NoError(t, mock.ExpectationsWereMet())
}
