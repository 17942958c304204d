package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pmb-exam-scheduling/internal/model"
	"github.com/iliyamo/pmb-exam-scheduling/internal/repository"
	"github.com/iliyamo/pmb-exam-scheduling/internal/reservation"
)

// ApplicantRoster is the administrative read side of applicant storage.
// *repository.ApplicantRepo satisfies it.
type ApplicantRoster interface {
	List(ctx context.Context, q repository.ApplicantQuery) ([]model.Applicant, int64, error)
	Get(ctx context.Context, id uint64) (model.Applicant, error)
	Stats(ctx context.Context, periodID uint64) (repository.ApplicantStats, error)
}

// ActivePeriodFinder is satisfied by *repository.PeriodRepo.
type ActivePeriodFinder interface {
	Active(ctx context.Context) (model.Period, error)
}

// OccupancyReader is satisfied by *repository.SlotRepo.
type OccupancyReader interface {
	Occupancy(ctx context.Context, periodID uint64) (repository.Occupancy, error)
}

// AdminApplicantHandler lists applicants and summarises a period.
type AdminApplicantHandler struct {
	Applicants ApplicantRoster
	Periods    ActivePeriodFinder
	Slots      OccupancyReader
}

func NewAdminApplicantHandler(a ApplicantRoster, p ActivePeriodFinder, s OccupancyReader) *AdminApplicantHandler {
	if a == nil || p == nil || s == nil {
		panic("nil dependency passed to NewAdminApplicantHandler")
	}
	return &AdminApplicantHandler{Applicants: a, Periods: p, Slots: s}
}

type applicantView struct {
	ID                 uint64  `json:"id"`
	UserID             uint64  `json:"user_id"`
	RegistrationNumber string  `json:"registration_number"`
	FullName           string  `json:"full_name"`
	WhatsApp           string  `json:"whatsapp"`
	PeriodID           uint64  `json:"period_id"`
	ExamSlotID         *uint64 `json:"exam_slot_id"`
	Status             string  `json:"status"`
	SlotAssignedAt     *string `json:"slot_assigned_at"`
	CreatedAt          string  `json:"created_at"`
}

func toApplicantView(a model.Applicant) applicantView {
	v := applicantView{
		ID:                 a.ID,
		UserID:             a.UserID,
		RegistrationNumber: a.RegistrationNumber,
		FullName:           a.FullName,
		WhatsApp:           a.WhatsApp,
		PeriodID:           a.PeriodID,
		ExamSlotID:         a.ExamSlotID,
		Status:             a.Status,
		CreatedAt:          a.CreatedAt.UTC().Format(time.RFC3339),
	}
	if a.SlotAssignedAt != nil {
		s := a.SlotAssignedAt.UTC().Format(time.RFC3339)
		v.SlotAssignedAt = &s
	}
	return v
}

// List handles GET /v1/admin/applicants.  Optional filters: period_id,
// slot_id, status, search (name or registration number), and page with
// page_size (default 15).
func (h *AdminApplicantHandler) List(c echo.Context) error {
	q, msg := applicantQueryFrom(c)
	if msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}
	return h.list(c, q)
}

// ListForSlot handles GET /v1/admin/slots/:id/applicants.
func (h *AdminApplicantHandler) ListForSlot(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid slot id"})
	}
	q, msg := applicantQueryFrom(c)
	if msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}
	q.SlotID = id
	return h.list(c, q)
}

func (h *AdminApplicantHandler) list(c echo.Context, q repository.ApplicantQuery) error {
	applicants, total, err := h.Applicants.List(c.Request().Context(), q)
	if err != nil {
		log.Printf("admin: list applicants: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	items := make([]applicantView, 0, len(applicants))
	for _, a := range applicants {
		items = append(items, toApplicantView(a))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items, "total": total, "page": q.Page, "page_size": q.PageSize})
}

func applicantQueryFrom(c echo.Context) (repository.ApplicantQuery, string) {
	var q repository.ApplicantQuery
	var ok bool
	if q.PeriodID, ok = queryID(c, "period_id"); !ok {
		return q, "invalid period_id"
	}
	if q.SlotID, ok = queryID(c, "slot_id"); !ok {
		return q, "invalid slot_id"
	}
	if q.Status = c.QueryParam("status"); q.Status != "" && !model.ValidStatus(q.Status) {
		return q, "status must be one of " + strings.Join(model.Statuses, ", ")
	}
	q.Search = c.QueryParam("search")

	q.Page, _ = strconv.Atoi(c.QueryParam("page"))
	if q.Page < 1 {
		q.Page = 1
	}
	q.PageSize, _ = strconv.Atoi(c.QueryParam("page_size"))
	switch {
	case q.PageSize <= 0:
		q.PageSize = 15
	case q.PageSize > 200:
		q.PageSize = 200
	}
	return q, ""
}

// Get handles GET /v1/admin/applicants/:id.
func (h *AdminApplicantHandler) Get(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid applicant id"})
	}
	a, err := h.Applicants.Get(c.Request().Context(), id)
	if errors.Is(err, reservation.ErrApplicantNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	}
	if err != nil {
		log.Printf("admin: get applicant %d: %v", id, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, toApplicantView(a))
}

// Dashboard handles GET /v1/admin/dashboard.  It reports the period
// named by period_id, else the active period, else every period.
func (h *AdminApplicantHandler) Dashboard(c echo.Context) error {
	ctx := c.Request().Context()
	periodID, ok := queryID(c, "period_id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid period_id"})
	}

	var active *periodView
	p, err := h.Periods.Active(ctx)
	switch {
	case err == nil:
		v := toPeriodView(p)
		active = &v
		if periodID == 0 {
			periodID = p.ID
		}
	case !errors.Is(err, reservation.ErrNoActivePeriod):
		log.Printf("admin: dashboard active period: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	stats, err := h.Applicants.Stats(ctx, periodID)
	if err != nil {
		log.Printf("admin: dashboard applicant stats: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	occ, err := h.Slots.Occupancy(ctx, periodID)
	if err != nil {
		log.Printf("admin: dashboard occupancy: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"period_id":     periodID,
		"active_period": active,
		"applicants": echo.Map{
			"total":     stats.Total,
			"by_status": stats.ByStatus,
		},
		"slots": echo.Map{
			"count":     occ.Slots,
			"capacity":  occ.Capacity,
			"occupied":  occ.Occupied,
			"remaining": occ.Capacity - occ.Occupied,
		},
	})
}
