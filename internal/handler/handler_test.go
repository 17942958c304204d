package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/pmb-exam-scheduling/internal/middleware"
	"github.com/iliyamo/pmb-exam-scheduling/internal/model"
	"github.com/iliyamo/pmb-exam-scheduling/internal/repository"
	"github.com/iliyamo/pmb-exam-scheduling/internal/reservation"
)

var wib = time.FixedZone("WIB", 7*60*60)

func date(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

// newEngine returns an engine whose today is 2026-03-10 with three slots
// in period 1: 10 (free), 11 (full) and 12 (yesterday).
func newEngine(t *testing.T) (*reservation.Engine, *reservation.MemoryStore) {
	t.Helper()
	store := reservation.NewMemoryStore()
	store.PutSession(model.Session{ID: 1, Name: "Sesi Pagi", StartsAt: "08:00:00", EndsAt: "11:00:00", IsActive: true})
	store.PutRoom(model.Room{ID: 1, Code: "R101", Name: "Ruang 101", Capacity: 30, IsActive: true})
	store.PutSlot(model.ExamSlot{ID: 10, PeriodID: 1, Date: date(2026, 3, 20), SessionID: 1, RoomID: 1, Capacity: 30, Occupied: 29, IsActive: true})
	store.PutSlot(model.ExamSlot{ID: 11, PeriodID: 1, Date: date(2026, 3, 21), SessionID: 1, RoomID: 1, Capacity: 5, Occupied: 5, IsActive: true})
	store.PutSlot(model.ExamSlot{ID: 12, PeriodID: 1, Date: date(2026, 3, 9), SessionID: 1, RoomID: 1, Capacity: 5, Occupied: 0, IsActive: true})
	store.PutApplicant(100, nil)

	cal := reservation.StaticCalendar{
		Clock:  reservation.Clock{Location: wib, Now: func() time.Time { return time.Date(2026, 3, 10, 8, 0, 0, 0, wib) }},
		Period: &model.Period{ID: 1, Name: "Gelombang 1", IsActive: true},
	}
	return reservation.NewEngine(store, cal, reservation.Options{}), store
}

type stubApplicants struct {
	byUser map[uint64]uint64
	cards  map[uint64]model.ExamCard
}

func (s stubApplicants) IDForUser(_ context.Context, userID uint64) (uint64, error) {
	id, ok := s.byUser[userID]
	if !ok {
		return 0, reservation.ErrApplicantNotFound
	}
	return id, nil
}

func (s stubApplicants) Card(_ context.Context, applicantID uint64) (model.ExamCard, error) {
	c, ok := s.cards[applicantID]
	if !ok {
		return model.ExamCard{}, repository.ErrNoSlotAssigned
	}
	return c, nil
}

// call runs h with an authenticated context for userID (0 = anonymous).
func call(t *testing.T, h echo.HandlerFunc, method, target, body string, userID uint64, params ...string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if len(params) == 2 {
		c.SetParamNames(params[0])
		c.SetParamValues(params[1])
	}
	if userID != 0 {
		c.Set(middleware.CtxUserID, userID)
	}
	require.NoError(t, h(c))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestSelectSlot(t *testing.T) {
	engine, store := newEngine(t)
	h := NewScheduleHandler(engine, stubApplicants{byUser: map[uint64]uint64{7: 100}})

	rec := call(t, h.SelectSlot, http.MethodPost, "/v1/applicant/slot", `{"exam_slot_id":10}`, 7)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, true, body["changed"])
	assert.Nil(t, body["previous_slot_id"])
	slot := body["slot"].(map[string]any)
	assert.EqualValues(t, 30, slot["occupied"])
	assert.EqualValues(t, 0, slot["remaining"])
	assert.Equal(t, "2026-03-20", slot["date"])

	held, ok := store.Assignment(100)
	require.True(t, ok)
	assert.Equal(t, uint64(10), held)

	// Re-confirming the now full slot succeeds without a change.
	rec = call(t, h.SelectSlot, http.MethodPost, "/v1/applicant/slot", `{"exam_slot_id":10}`, 7)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode(t, rec)["changed"])
}

func TestSelectSlotRejections(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		user   uint64
		status int
		errKey string
	}{
		{"anonymous", `{"exam_slot_id":10}`, 0, http.StatusUnauthorized, "unauthorized"},
		{"missing id", `{}`, 7, http.StatusBadRequest, "exam_slot_id is required"},
		{"unknown applicant", `{"exam_slot_id":10}`, 8, http.StatusNotFound, "applicant not found"},
		{"unknown slot", `{"exam_slot_id":99}`, 7, http.StatusUnprocessableEntity, "slot_not_found"},
		{"full", `{"exam_slot_id":11}`, 7, http.StatusUnprocessableEntity, "slot_full"},
		{"expired", `{"exam_slot_id":12}`, 7, http.StatusUnprocessableEntity, "slot_expired"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			engine, store := newEngine(t)
			h := NewScheduleHandler(engine, stubApplicants{byUser: map[uint64]uint64{7: 100}})

			rec := call(t, h.SelectSlot, http.MethodPost, "/v1/applicant/slot", tc.body, tc.user)
			assert.Equal(t, tc.status, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, tc.errKey, body["error"])
			if tc.status == http.StatusUnprocessableEntity {
				assert.NotEmpty(t, body["message"])
			}
			_, held := store.Assignment(100)
			assert.False(t, held)
		})
	}
}

func TestListSlots(t *testing.T) {
	engine, _ := newEngine(t)
	h := NewScheduleHandler(engine, stubApplicants{})

	rec := call(t, h.ListSlots, http.MethodGet, "/v1/applicant/slots", "", 7)
	require.Equal(t, http.StatusOK, rec.Code)
	items := decode(t, rec)["items"].([]any)
	require.Len(t, items, 1)
	first := items[0].(map[string]any)
	assert.EqualValues(t, 10, first["id"])
	assert.EqualValues(t, 1, first["remaining"])
	assert.Equal(t, "Sesi Pagi", first["session"].(map[string]any)["name"])

	rec = call(t, h.ListSlots, http.MethodGet, "/v1/applicant/slots?period_id=2", "", 7)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode(t, rec)["items"])

	rec = call(t, h.ListSlots, http.MethodGet, "/v1/applicant/slots?period_id=abc", "", 7)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCard(t *testing.T) {
	engine, _ := newEngine(t)
	h := NewScheduleHandler(engine, stubApplicants{
		byUser: map[uint64]uint64{7: 100, 8: 101},
		cards: map[uint64]model.ExamCard{100: {
			RegistrationNumber: "PMB202600001", FullName: "Siti", PeriodName: "Gelombang 1",
			SlotID: 10, Date: date(2026, 3, 20), SessionName: "Sesi Pagi",
			SessionStartsAt: "08:00:00", SessionEndsAt: "11:00:00", RoomCode: "R101", RoomName: "Ruang 101",
		}},
	})

	rec := call(t, h.Card, http.MethodGet, "/v1/applicant/card", "", 7)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "PMB202600001", body["registration_number"])
	assert.Equal(t, "2026-03-20", body["date"])
	assert.Equal(t, "R101", body["room_code"])

	rec = call(t, h.Card, http.MethodGet, "/v1/applicant/card", "", 8)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "no_slot_assigned", decode(t, rec)["error"])
}

// fakeRegistry serves admin slot operations from the engine's memory store
// where it can and records the rest.
type fakeRegistry struct {
	store     *reservation.MemoryStore
	createErr error
	updateErr error
	deleteErr error
	deleted   []uint64
	created   *model.ExamSlot
	query     repository.SlotQuery
}

func (f *fakeRegistry) List(ctx context.Context, q repository.SlotQuery) ([]model.ExamSlot, int64, error) {
	f.query = q
	var out []model.ExamSlot
	for _, id := range []uint64{10, 11, 12} {
		s, err := f.store.GetSlot(ctx, id)
		if err == nil && (q.PeriodID == 0 || s.PeriodID == q.PeriodID) {
			out = append(out, s)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeRegistry) GetByID(ctx context.Context, id uint64) (model.ExamSlot, error) {
	return f.store.GetSlot(ctx, id)
}

func (f *fakeRegistry) Create(_ context.Context, s *model.ExamSlot) error {
	if f.createErr != nil {
		return f.createErr
	}
	s.ID = 50
	f.created = s
	return nil
}

func (f *fakeRegistry) Update(ctx context.Context, id uint64, p repository.SlotPatch) (model.ExamSlot, error) {
	if f.updateErr != nil {
		return model.ExamSlot{}, f.updateErr
	}
	s, err := f.store.GetSlot(ctx, id)
	if err != nil {
		return model.ExamSlot{}, err
	}
	if p.Capacity != nil {
		s.Capacity = *p.Capacity
	}
	return s, nil
}

func (f *fakeRegistry) Delete(_ context.Context, id uint64) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func TestAdminListSlots(t *testing.T) {
	engine, store := newEngine(t)
	reg := &fakeRegistry{store: store}
	h := NewAdminSlotHandler(reg, engine)

	rec := call(t, h.List, http.MethodGet, "/v1/admin/slots?period_id=1&from=2026-03-01&active=true&page=2&page_size=500", "", 1)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.EqualValues(t, 3, body["total"])
	assert.Len(t, body["items"], 3)

	assert.Equal(t, uint64(1), reg.query.PeriodID)
	require.NotNil(t, reg.query.From)
	assert.Equal(t, date(2026, 3, 1), *reg.query.From)
	assert.Nil(t, reg.query.To)
	require.NotNil(t, reg.query.Active)
	assert.True(t, *reg.query.Active)
	assert.Equal(t, 2, reg.query.Page)
	assert.Equal(t, 200, reg.query.PageSize)

	for _, bad := range []string{"?period_id=x", "?from=03-01-2026", "?active=maybe"} {
		rec = call(t, h.List, http.MethodGet, "/v1/admin/slots"+bad, "", 1)
		assert.Equal(t, http.StatusBadRequest, rec.Code, bad)
	}
}

func TestAdminCreateSlot(t *testing.T) {
	engine, store := newEngine(t)
	reg := &fakeRegistry{store: store}
	h := NewAdminSlotHandler(reg, engine)

	rec := call(t, h.Create, http.MethodPost, "/v1/admin/slots",
		`{"period_id":1,"date":"2026-04-01","session_id":1,"room_id":1,"capacity":30}`, 1)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.NotNil(t, reg.created)
	assert.True(t, reg.created.IsActive)
	assert.Equal(t, date(2026, 4, 1), reg.created.Date)

	rec = call(t, h.Create, http.MethodPost, "/v1/admin/slots",
		`{"period_id":1,"date":"01/04/2026","session_id":1,"room_id":1,"capacity":30}`, 1)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	reg.createErr = repository.ErrSlotExists
	rec = call(t, h.Create, http.MethodPost, "/v1/admin/slots",
		`{"period_id":1,"date":"2026-04-01","session_id":1,"room_id":1,"capacity":30}`, 1)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	reg.createErr = repository.ErrInvalidCapacity
	rec = call(t, h.Create, http.MethodPost, "/v1/admin/slots",
		`{"period_id":1,"date":"2026-04-01","session_id":1,"room_id":1,"capacity":0}`, 1)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminUpdateSlot(t *testing.T) {
	engine, store := newEngine(t)
	reg := &fakeRegistry{store: store}
	h := NewAdminSlotHandler(reg, engine)

	rec := call(t, h.Update, http.MethodPut, "/v1/admin/slots/10", `{"capacity":40}`, 1, "id", "10")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 40, decode(t, rec)["capacity"])

	reg.updateErr = repository.ErrCapacityBelowOccupied
	rec = call(t, h.Update, http.MethodPut, "/v1/admin/slots/10", `{"capacity":3}`, 1, "id", "10")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	reg.updateErr = nil
	rec = call(t, h.Update, http.MethodPut, "/v1/admin/slots/99", `{"capacity":3}`, 1, "id", "99")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminDeleteSlot(t *testing.T) {
	engine, store := newEngine(t)
	reg := &fakeRegistry{store: store}
	h := NewAdminSlotHandler(reg, engine)

	rec := call(t, h.Delete, http.MethodDelete, "/v1/admin/slots/10", "", 1, "id", "10")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = call(t, h.Delete, http.MethodDelete, "/v1/admin/slots/12", "", 1, "id", "12")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []uint64{12}, reg.deleted)

	reg.deleteErr = repository.ErrConflict
	rec = call(t, h.Delete, http.MethodDelete, "/v1/admin/slots/12", "", 1, "id", "12")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = call(t, h.Delete, http.MethodDelete, "/v1/admin/slots/99", "", 1, "id", "99")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = call(t, h.Delete, http.MethodDelete, "/v1/admin/slots/x", "", 1, "id", "x")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegisterValidation(t *testing.T) {
	h := &AuthHandler{}
	cases := map[string]string{
		"missing password": `{"email":"a@b.id","full_name":"A","whatsapp":"0812"}`,
		"bad email":        `{"email":"nope","password":"longenough","full_name":"A","whatsapp":"0812"}`,
		"short password":   `{"email":"a@b.id","password":"short","full_name":"A","whatsapp":"0812"}`,
		"missing name":     `{"email":"a@b.id","password":"longenough","whatsapp":"0812"}`,
		"missing whatsapp": `{"email":"a@b.id","password":"longenough","full_name":"A"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := call(t, h.Register, http.MethodPost, "/v1/auth/register", body, 0)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestLogoutRequiresCredential(t *testing.T) {
	h := &AuthHandler{}
	rec := call(t, h.Logout, http.MethodPost, "/v1/auth/logout", `{}`, 0)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
