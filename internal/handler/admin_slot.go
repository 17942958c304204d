package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pmb-exam-scheduling/internal/model"
	"github.com/iliyamo/pmb-exam-scheduling/internal/repository"
	"github.com/iliyamo/pmb-exam-scheduling/internal/reservation"
)

// SlotRegistry is the administrative side of slot storage.
// *repository.SlotRepo satisfies it.
type SlotRegistry interface {
	List(ctx context.Context, q repository.SlotQuery) ([]model.ExamSlot, int64, error)
	GetByID(ctx context.Context, id uint64) (model.ExamSlot, error)
	Create(ctx context.Context, s *model.ExamSlot) error
	Update(ctx context.Context, id uint64, p repository.SlotPatch) (model.ExamSlot, error)
	Delete(ctx context.Context, id uint64) error
}

// AdminSlotHandler exposes slot maintenance to administrators.
type AdminSlotHandler struct {
	Slots  SlotRegistry
	Engine *reservation.Engine
}

func NewAdminSlotHandler(slots SlotRegistry, engine *reservation.Engine) *AdminSlotHandler {
	if slots == nil || engine == nil {
		panic("nil dependency passed to NewAdminSlotHandler")
	}
	return &AdminSlotHandler{Slots: slots, Engine: engine}
}

// slotStatus maps registry errors onto HTTP statuses; 0 means the error
// is unexpected.
func slotStatus(err error) int {
	switch {
	case errors.Is(err, reservation.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrInvalidCapacity):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrSlotExists),
		errors.Is(err, repository.ErrCapacityBelowOccupied),
		errors.Is(err, repository.ErrReferenceNotFound):
		return http.StatusUnprocessableEntity
	}
	return 0
}

// List handles GET /v1/admin/slots.  Optional filters: period_id,
// session_id, room_id, from, to (YYYY-MM-DD), active (true|false), and
// page with page_size (default 50, max 200).
func (h *AdminSlotHandler) List(c echo.Context) error {
	q, msg := slotQueryFrom(c)
	if msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}
	slots, total, err := h.Slots.List(c.Request().Context(), q)
	if err != nil {
		log.Printf("admin: list slots: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	items := make([]slotView, 0, len(slots))
	for _, s := range slots {
		items = append(items, toSlotView(s))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items, "total": total, "page": q.Page, "page_size": q.PageSize})
}

func slotQueryFrom(c echo.Context) (repository.SlotQuery, string) {
	var q repository.SlotQuery
	var ok bool
	if q.PeriodID, ok = queryID(c, "period_id"); !ok {
		return q, "invalid period_id"
	}
	if q.SessionID, ok = queryID(c, "session_id"); !ok {
		return q, "invalid session_id"
	}
	if q.RoomID, ok = queryID(c, "room_id"); !ok {
		return q, "invalid room_id"
	}
	for name, dst := range map[string]**time.Time{"from": &q.From, "to": &q.To} {
		if raw := c.QueryParam(name); raw != "" {
			d, ok := parseDate(raw)
			if !ok {
				return q, name + " must be YYYY-MM-DD"
			}
			*dst = &d
		}
	}
	switch c.QueryParam("active") {
	case "":
	case "true", "1":
		v := true
		q.Active = &v
	case "false", "0":
		v := false
		q.Active = &v
	default:
		return q, "active must be true or false"
	}

	q.Page, _ = strconv.Atoi(c.QueryParam("page"))
	if q.Page < 0 {
		q.Page = 0
	}
	if q.Page > 0 {
		q.PageSize, _ = strconv.Atoi(c.QueryParam("page_size"))
		switch {
		case q.PageSize <= 0:
			q.PageSize = 50
		case q.PageSize > 200:
			q.PageSize = 200
		}
	}
	return q, ""
}

// Get handles GET /v1/admin/slots/:id.
func (h *AdminSlotHandler) Get(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid slot id"})
	}
	s, err := h.Slots.GetByID(c.Request().Context(), id)
	if err != nil {
		if code := slotStatus(err); code != 0 {
			return c.JSON(code, echo.Map{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, toSlotView(s))
}

type createSlotReq struct {
	PeriodID  uint64 `json:"period_id"`
	Date      string `json:"date"`
	SessionID uint64 `json:"session_id"`
	RoomID    uint64 `json:"room_id"`
	Capacity  int    `json:"capacity"`
	IsActive  *bool  `json:"is_active"`
}

// Create handles POST /v1/admin/slots.  New slots are active unless
// is_active is false.
func (h *AdminSlotHandler) Create(c echo.Context) error {
	var req createSlotReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.PeriodID == 0 || req.SessionID == 0 || req.RoomID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "period_id, session_id and room_id are required"})
	}
	date, ok := parseDate(req.Date)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "date must be YYYY-MM-DD"})
	}
	slot := model.ExamSlot{
		PeriodID:  req.PeriodID,
		Date:      date,
		SessionID: req.SessionID,
		RoomID:    req.RoomID,
		Capacity:  req.Capacity,
		IsActive:  req.IsActive == nil || *req.IsActive,
	}
	if err := h.Slots.Create(c.Request().Context(), &slot); err != nil {
		if code := slotStatus(err); code != 0 {
			return c.JSON(code, echo.Map{"error": err.Error()})
		}
		log.Printf("admin: create slot: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create exam slot"})
	}
	return c.JSON(http.StatusCreated, toSlotView(slot))
}

type updateSlotReq struct {
	PeriodID  *uint64 `json:"period_id"`
	Date      *string `json:"date"`
	SessionID *uint64 `json:"session_id"`
	RoomID    *uint64 `json:"room_id"`
	Capacity  *int    `json:"capacity"`
	IsActive  *bool   `json:"is_active"`
}

// Update handles PUT /v1/admin/slots/:id with a partial body.
func (h *AdminSlotHandler) Update(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid slot id"})
	}
	var req updateSlotReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	patch := repository.SlotPatch{
		PeriodID:  req.PeriodID,
		SessionID: req.SessionID,
		RoomID:    req.RoomID,
		Capacity:  req.Capacity,
		IsActive:  req.IsActive,
	}
	if req.Date != nil {
		d, ok := parseDate(*req.Date)
		if !ok {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "date must be YYYY-MM-DD"})
		}
		patch.Date = &d
	}

	s, err := h.Slots.Update(c.Request().Context(), id, patch)
	if err != nil {
		if code := slotStatus(err); code != 0 {
			return c.JSON(code, echo.Map{"error": err.Error()})
		}
		log.Printf("admin: update slot %d: %v", id, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update exam slot"})
	}
	return c.JSON(http.StatusOK, toSlotView(s))
}

// Delete handles DELETE /v1/admin/slots/:id.  Slots holding applicants
// cannot be removed; deactivate them instead.
func (h *AdminSlotHandler) Delete(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid slot id"})
	}
	ctx := c.Request().Context()

	deletable, err := h.Engine.IsDeletable(ctx, id)
	if err != nil {
		if code := slotStatus(err); code != 0 {
			return c.JSON(code, echo.Map{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if deletable {
		err = h.Slots.Delete(ctx, id)
	}
	if !deletable || errors.Is(err, repository.ErrConflict) {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "exam slot already has applicants"})
	}
	if err != nil {
		if code := slotStatus(err); code != 0 {
			return c.JSON(code, echo.Map{"error": err.Error()})
		}
		log.Printf("admin: delete slot %d: %v", id, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to delete exam slot"})
	}
	return c.NoContent(http.StatusNoContent)
}
