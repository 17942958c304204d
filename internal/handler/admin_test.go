package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/pmb-exam-scheduling/internal/model"
	"github.com/iliyamo/pmb-exam-scheduling/internal/repository"
	"github.com/iliyamo/pmb-exam-scheduling/internal/reservation"
)

type fakePeriods struct {
	rows      map[uint64]model.Period
	active    *model.Period
	deleteErr error
}

func (f *fakePeriods) List(context.Context) ([]model.Period, error) {
	out := []model.Period{}
	for _, p := range f.rows {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakePeriods) Get(_ context.Context, id uint64) (model.Period, error) {
	p, ok := f.rows[id]
	if !ok {
		return model.Period{}, repository.ErrPeriodNotFound
	}
	return p, nil
}

func (f *fakePeriods) Create(_ context.Context, p *model.Period) error {
	p.ID = uint64(len(f.rows) + 1)
	f.rows[p.ID] = *p
	return nil
}

func (f *fakePeriods) Update(_ context.Context, p model.Period) error {
	if _, ok := f.rows[p.ID]; !ok {
		return repository.ErrPeriodNotFound
	}
	f.rows[p.ID] = p
	return nil
}

func (f *fakePeriods) Delete(_ context.Context, id uint64) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.rows[id]; !ok {
		return repository.ErrPeriodNotFound
	}
	delete(f.rows, id)
	return nil
}

func (f *fakePeriods) Activate(context.Context, uint64) error { return nil }

func (f *fakePeriods) Active(context.Context) (model.Period, error) {
	if f.active == nil {
		return model.Period{}, reservation.ErrNoActivePeriod
	}
	return *f.active, nil
}

type fakeSessions struct {
	rows      map[uint64]model.Session
	updateErr error
	deleteErr error
}

func (f *fakeSessions) List(context.Context) ([]model.Session, error) { return nil, nil }

func (f *fakeSessions) Get(_ context.Context, id uint64) (model.Session, error) {
	s, ok := f.rows[id]
	if !ok {
		return model.Session{}, repository.ErrSessionNotFound
	}
	return s, nil
}

func (f *fakeSessions) Create(_ context.Context, s *model.Session) error { return nil }

func (f *fakeSessions) Update(_ context.Context, s model.Session) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.rows[s.ID] = s
	return nil
}

func (f *fakeSessions) Delete(_ context.Context, id uint64) error { return f.deleteErr }

type fakeRooms struct {
	rows      map[uint64]model.Room
	updateErr error
	deleteErr error
}

func (f *fakeRooms) List(context.Context) ([]model.Room, error) { return nil, nil }

func (f *fakeRooms) Get(_ context.Context, id uint64) (model.Room, error) {
	r, ok := f.rows[id]
	if !ok {
		return model.Room{}, repository.ErrRoomNotFound
	}
	return r, nil
}

func (f *fakeRooms) Create(_ context.Context, r *model.Room) error { return nil }

func (f *fakeRooms) Update(_ context.Context, r *model.Room) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.rows[r.ID] = *r
	return nil
}

func (f *fakeRooms) Delete(_ context.Context, id uint64) error { return f.deleteErr }

func newReferenceHandler() (*AdminReferenceHandler, *fakePeriods, *fakeSessions, *fakeRooms) {
	p := &fakePeriods{rows: map[uint64]model.Period{
		1: {ID: 1, Name: "Gelombang 1", OpensOn: date(2026, 1, 1), ClosesOn: date(2026, 3, 31), IsActive: true},
	}}
	s := &fakeSessions{rows: map[uint64]model.Session{
		1: {ID: 1, Name: "Sesi Pagi", StartsAt: "08:00:00", EndsAt: "11:00:00", IsActive: true},
	}}
	r := &fakeRooms{rows: map[uint64]model.Room{
		1: {ID: 1, Code: "R101", Name: "Ruang 101", Capacity: 30, IsActive: true},
	}}
	return NewAdminReferenceHandler(p, s, r), p, s, r
}

func TestAdminUpdatePeriod(t *testing.T) {
	h, periods, _, _ := newReferenceHandler()

	rec := call(t, h.UpdatePeriod, http.MethodPut, "/v1/admin/periods/1", `{"closes_on":"2026-04-30"}`, 1, "id", "1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "Gelombang 1", body["name"])
	assert.Equal(t, "2026-04-30", body["closes_on"])
	assert.Equal(t, true, body["is_active"])
	assert.Equal(t, date(2026, 4, 30), periods.rows[1].ClosesOn)

	cases := []struct {
		name, id, body string
		want           int
	}{
		{"closes before opens", "1", `{"closes_on":"2025-12-31"}`, http.StatusBadRequest},
		{"blank name", "1", `{"name":"  "}`, http.StatusBadRequest},
		{"bad date", "1", `{"opens_on":"01-01-2026"}`, http.StatusBadRequest},
		{"unknown period", "9", `{"name":"x"}`, http.StatusNotFound},
		{"bad id", "x", `{}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := call(t, h.UpdatePeriod, http.MethodPut, "/v1/admin/periods/"+tc.id, tc.body, 1, "id", tc.id)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestAdminGetAndDeletePeriod(t *testing.T) {
	h, periods, _, _ := newReferenceHandler()

	rec := call(t, h.GetPeriod, http.MethodGet, "/v1/admin/periods/1", "", 1, "id", "1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2026-01-01", decode(t, rec)["opens_on"])

	periods.deleteErr = repository.ErrInUse
	rec = call(t, h.DeletePeriod, http.MethodDelete, "/v1/admin/periods/1", "", 1, "id", "1")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, periods.rows, uint64(1))

	periods.deleteErr = nil
	rec = call(t, h.DeletePeriod, http.MethodDelete, "/v1/admin/periods/1", "", 1, "id", "1")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, periods.rows)

	rec = call(t, h.GetPeriod, http.MethodGet, "/v1/admin/periods/1", "", 1, "id", "1")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminUpdateSession(t *testing.T) {
	h, _, sessions, _ := newReferenceHandler()

	rec := call(t, h.UpdateSession, http.MethodPut, "/v1/admin/sessions/1", `{"ends_at":"11:30","is_active":false}`, 1, "id", "1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Sesi Pagi", sessions.rows[1].Name)
	assert.Equal(t, "11:30", sessions.rows[1].EndsAt)
	assert.False(t, sessions.rows[1].IsActive)

	rec = call(t, h.UpdateSession, http.MethodPut, "/v1/admin/sessions/1", `{"starts_at":"25:00"}`, 1, "id", "1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	sessions.updateErr = repository.ErrSessionNameExists
	rec = call(t, h.UpdateSession, http.MethodPut, "/v1/admin/sessions/1", `{"name":"Sesi Siang"}`, 1, "id", "1")
	assert.Equal(t, http.StatusConflict, rec.Code)

	sessions.deleteErr = repository.ErrInUse
	rec = call(t, h.DeleteSession, http.MethodDelete, "/v1/admin/sessions/1", "", 1, "id", "1")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestAdminUpdateRoom(t *testing.T) {
	h, _, _, rooms := newReferenceHandler()

	rec := call(t, h.UpdateRoom, http.MethodPut, "/v1/admin/rooms/1", `{"capacity":35}`, 1, "id", "1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 35, rooms.rows[1].Capacity)
	assert.Equal(t, "R101", rooms.rows[1].Code)

	for _, body := range []string{`{"capacity":0}`, `{"code":" "}`} {
		rec = call(t, h.UpdateRoom, http.MethodPut, "/v1/admin/rooms/1", body, 1, "id", "1")
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}

	rooms.updateErr = repository.ErrRoomCodeExists
	rec = call(t, h.UpdateRoom, http.MethodPut, "/v1/admin/rooms/1", `{"code":"R102"}`, 1, "id", "1")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = call(t, h.GetRoom, http.MethodGet, "/v1/admin/rooms/7", "", 1, "id", "7")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rooms.deleteErr = repository.ErrInUse
	rec = call(t, h.DeleteRoom, http.MethodDelete, "/v1/admin/rooms/1", "", 1, "id", "1")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rooms.deleteErr = nil
	rec = call(t, h.DeleteRoom, http.MethodDelete, "/v1/admin/rooms/1", "", 1, "id", "1")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

type fakeRoster struct {
	applicants  []model.Applicant
	query       repository.ApplicantQuery
	statsPeriod uint64
}

func (f *fakeRoster) List(_ context.Context, q repository.ApplicantQuery) ([]model.Applicant, int64, error) {
	f.query = q
	return f.applicants, int64(len(f.applicants)), nil
}

func (f *fakeRoster) Get(_ context.Context, id uint64) (model.Applicant, error) {
	for _, a := range f.applicants {
		if a.ID == id {
			return a, nil
		}
	}
	return model.Applicant{}, reservation.ErrApplicantNotFound
}

func (f *fakeRoster) Stats(_ context.Context, periodID uint64) (repository.ApplicantStats, error) {
	f.statsPeriod = periodID
	return repository.ApplicantStats{Total: 3, ByStatus: map[string]int64{
		model.StatusRegistered: 1, model.StatusBiodataDone: 0, model.StatusScheduleChosen: 2, model.StatusFinished: 0,
	}}, nil
}

type fakeOccupancy struct{ period uint64 }

func (f *fakeOccupancy) Occupancy(_ context.Context, periodID uint64) (repository.Occupancy, error) {
	f.period = periodID
	return repository.Occupancy{Slots: 2, Capacity: 60, Occupied: 2}, nil
}

func newApplicantHandler() (*AdminApplicantHandler, *fakeRoster, *fakePeriods, *fakeOccupancy) {
	slot := uint64(10)
	at := time.Date(2026, 3, 10, 1, 0, 0, 0, time.UTC)
	roster := &fakeRoster{applicants: []model.Applicant{
		{ID: 100, UserID: 7, RegistrationNumber: "PMB202600001", FullName: "Siti Aminah", PeriodID: 1,
			ExamSlotID: &slot, Status: model.StatusScheduleChosen, SlotAssignedAt: &at, CreatedAt: at},
		{ID: 101, UserID: 8, RegistrationNumber: "PMB202600002", FullName: "Budi", PeriodID: 1,
			Status: model.StatusRegistered, CreatedAt: at},
	}}
	periods := &fakePeriods{rows: map[uint64]model.Period{}}
	occ := &fakeOccupancy{}
	return NewAdminApplicantHandler(roster, periods, occ), roster, periods, occ
}

func TestAdminListApplicants(t *testing.T) {
	h, roster, _, _ := newApplicantHandler()

	rec := call(t, h.List, http.MethodGet, "/v1/admin/applicants?period_id=1&status=jadwal_dipilih&search=siti&page_size=500", "", 1)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.EqualValues(t, 2, body["total"])
	items := body["items"].([]any)
	require.Len(t, items, 2)
	first := items[0].(map[string]any)
	assert.EqualValues(t, 10, first["exam_slot_id"])
	assert.Equal(t, "2026-03-10T01:00:00Z", first["slot_assigned_at"])
	assert.Nil(t, items[1].(map[string]any)["exam_slot_id"])

	assert.Equal(t, uint64(1), roster.query.PeriodID)
	assert.Equal(t, model.StatusScheduleChosen, roster.query.Status)
	assert.Equal(t, "siti", roster.query.Search)
	assert.Equal(t, 1, roster.query.Page)
	assert.Equal(t, 200, roster.query.PageSize)

	rec = call(t, h.List, http.MethodGet, "/v1/admin/applicants", "", 1)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 15, roster.query.PageSize)
}

func TestAdminListApplicantsStatusFilter(t *testing.T) {
	h, roster, _, _ := newApplicantHandler()

	for _, status := range model.Statuses {
		rec := call(t, h.List, http.MethodGet, "/v1/admin/applicants?status="+status, "", 1)
		assert.Equal(t, http.StatusOK, rec.Code, status)
		assert.Equal(t, status, roster.query.Status)
	}
	for _, bad := range []string{"?status=lulus", "?period_id=x", "?slot_id=-1"} {
		rec := call(t, h.List, http.MethodGet, "/v1/admin/applicants"+bad, "", 1)
		assert.Equal(t, http.StatusBadRequest, rec.Code, bad)
	}
}

func TestAdminListSlotApplicants(t *testing.T) {
	h, roster, _, _ := newApplicantHandler()

	rec := call(t, h.ListForSlot, http.MethodGet, "/v1/admin/slots/10/applicants?slot_id=3", "", 1, "id", "10")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uint64(10), roster.query.SlotID)

	rec = call(t, h.ListForSlot, http.MethodGet, "/v1/admin/slots/x/applicants", "", 1, "id", "x")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminGetApplicant(t *testing.T) {
	h, _, _, _ := newApplicantHandler()

	rec := call(t, h.Get, http.MethodGet, "/v1/admin/applicants/101", "", 1, "id", "101")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "PMB202600002", decode(t, rec)["registration_number"])

	rec = call(t, h.Get, http.MethodGet, "/v1/admin/applicants/5", "", 1, "id", "5")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminDashboard(t *testing.T) {
	t.Run("active period", func(t *testing.T) {
		h, roster, periods, occ := newApplicantHandler()
		periods.active = &model.Period{ID: 4, Name: "Gelombang 2", OpensOn: date(2026, 4, 1), ClosesOn: date(2026, 5, 31), IsActive: true}

		rec := call(t, h.Dashboard, http.MethodGet, "/v1/admin/dashboard", "", 1)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		body := decode(t, rec)
		assert.EqualValues(t, 4, body["period_id"])
		assert.Equal(t, "Gelombang 2", body["active_period"].(map[string]any)["name"])

		byStatus := body["applicants"].(map[string]any)["by_status"].(map[string]any)
		for _, s := range model.Statuses {
			assert.Contains(t, byStatus, s)
		}
		assert.EqualValues(t, 2, byStatus[model.StatusScheduleChosen])
		assert.EqualValues(t, 58, body["slots"].(map[string]any)["remaining"])
		assert.Equal(t, uint64(4), roster.statsPeriod)
		assert.Equal(t, uint64(4), occ.period)
	})

	t.Run("explicit period without active one", func(t *testing.T) {
		h, roster, _, occ := newApplicantHandler()

		rec := call(t, h.Dashboard, http.MethodGet, "/v1/admin/dashboard?period_id=2", "", 1)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Nil(t, decode(t, rec)["active_period"])
		assert.Equal(t, uint64(2), roster.statsPeriod)
		assert.Equal(t, uint64(2), occ.period)
	})
}
