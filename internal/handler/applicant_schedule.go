package handler

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pmb-exam-scheduling/internal/model"
	"github.com/iliyamo/pmb-exam-scheduling/internal/repository"
	"github.com/iliyamo/pmb-exam-scheduling/internal/reservation"
)

// ApplicantLookup resolves the applicant behind a login and renders the
// exam card.  *repository.ApplicantRepo satisfies it.
type ApplicantLookup interface {
	IDForUser(ctx context.Context, userID uint64) (uint64, error)
	Card(ctx context.Context, applicantID uint64) (model.ExamCard, error)
}

// ScheduleHandler serves the applicant side of exam scheduling.  All
// methods assume JWTAuth and RequireRole(APPLICANT) already ran.
type ScheduleHandler struct {
	Engine     *reservation.Engine
	Applicants ApplicantLookup
}

func NewScheduleHandler(engine *reservation.Engine, applicants ApplicantLookup) *ScheduleHandler {
	if engine == nil || applicants == nil {
		panic("nil dependency passed to NewScheduleHandler")
	}
	return &ScheduleHandler{Engine: engine, Applicants: applicants}
}

// ListSlots handles GET /v1/applicant/slots[?period_id=N].  Without
// period_id the active period is listed.
func (h *ScheduleHandler) ListSlots(c echo.Context) error {
	periodID, ok := queryID(c, "period_id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid period_id"})
	}
	slots, err := h.Engine.ListAvailable(c.Request().Context(), periodID)
	if err != nil {
		log.Printf("schedule: list slots period=%d: %v", periodID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	items := make([]slotView, 0, len(slots))
	for _, s := range slots {
		items = append(items, toSlotView(s.ExamSlot))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

type selectSlotReq struct {
	ExamSlotID uint64 `json:"exam_slot_id"`
}

// SelectSlot handles POST /v1/applicant/slot.  Business rejections are
// 422 with the outcome code in "error"; the applicant keeps whatever slot
// they held before.
func (h *ScheduleHandler) SelectSlot(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req selectSlotReq
	if err := c.Bind(&req); err != nil || req.ExamSlotID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "exam_slot_id is required"})
	}

	ctx := c.Request().Context()
	applicantID, err := h.Applicants.IDForUser(ctx, userID)
	if errors.Is(err, reservation.ErrApplicantNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "applicant not found"})
	}
	if err != nil {
		log.Printf("schedule: resolve applicant user=%d: %v", userID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	res, err := h.Engine.Reserve(ctx, applicantID, req.ExamSlotID)
	if errors.Is(err, reservation.ErrApplicantNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "applicant not found"})
	}
	if err != nil {
		log.Printf("schedule: reserve applicant=%d slot=%d: %v", applicantID, req.ExamSlotID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to select exam schedule"})
	}
	if !res.OK() {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{
			"error":   string(res.Outcome),
			"message": res.Outcome.Message(),
		})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message":          res.Outcome.Message(),
		"changed":          res.Changed,
		"previous_slot_id": res.PreviousSlotID,
		"slot":             toSlotView(res.Slot),
	})
}

type examCardView struct {
	RegistrationNumber string `json:"registration_number"`
	FullName           string `json:"full_name"`
	Period             string `json:"period"`
	SlotID             uint64 `json:"exam_slot_id"`
	Date               string `json:"date"`
	Session            string `json:"session"`
	StartsAt           string `json:"starts_at"`
	EndsAt             string `json:"ends_at"`
	RoomCode           string `json:"room_code"`
	RoomName           string `json:"room_name"`
}

// Card handles GET /v1/applicant/card.
func (h *ScheduleHandler) Card(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx := c.Request().Context()
	applicantID, err := h.Applicants.IDForUser(ctx, userID)
	if errors.Is(err, reservation.ErrApplicantNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "applicant not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	card, err := h.Applicants.Card(ctx, applicantID)
	switch {
	case errors.Is(err, repository.ErrNoSlotAssigned):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "no_slot_assigned", "message": err.Error()})
	case errors.Is(err, reservation.ErrApplicantNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "applicant not found"})
	case err != nil:
		log.Printf("schedule: card applicant=%d: %v", applicantID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, examCardView{
		RegistrationNumber: card.RegistrationNumber,
		FullName:           card.FullName,
		Period:             card.PeriodName,
		SlotID:             card.SlotID,
		Date:               card.Date.Format(model.DateLayout),
		Session:            card.SessionName,
		StartsAt:           card.SessionStartsAt,
		EndsAt:             card.SessionEndsAt,
		RoomCode:           card.RoomCode,
		RoomName:           card.RoomName,
	})
}
