package handler

import (
    "context"
    "errors"
    "log"
    "net/http"
    "regexp"
    "strings"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/pmb-exam-scheduling/internal/model"
    "github.com/iliyamo/pmb-exam-scheduling/internal/repository"
)

// PeriodStore is satisfied by *repository.PeriodRepo.
type PeriodStore interface {
    List(ctx context.Context) ([]model.Period, error)
    Get(ctx context.Context, id uint64) (model.Period, error)
    Create(ctx context.Context, p *model.Period) error
    Update(ctx context.Context, p model.Period) error
    Delete(ctx context.Context, id uint64) error
    Activate(ctx context.Context, id uint64) error
}

// SessionStore is satisfied by *repository.SessionRepo.
type SessionStore interface {
    List(ctx context.Context) ([]model.Session, error)
    Get(ctx context.Context, id uint64) (model.Session, error)
    Create(ctx context.Context, s *model.Session) error
    Update(ctx context.Context, s model.Session) error
    Delete(ctx context.Context, id uint64) error
}

// RoomStore is satisfied by *repository.RoomRepo.
type RoomStore interface {
    List(ctx context.Context) ([]model.Room, error)
    Get(ctx context.Context, id uint64) (model.Room, error)
    Create(ctx context.Context, rm *model.Room) error
    Update(ctx context.Context, rm *model.Room) error
    Delete(ctx context.Context, id uint64) error
}

// AdminReferenceHandler maintains admission periods, exam sessions and
// exam rooms.
type AdminReferenceHandler struct {
    Periods  PeriodStore
    Sessions SessionStore
    Rooms    RoomStore
}

func NewAdminReferenceHandler(p PeriodStore, s SessionStore, r RoomStore) *AdminReferenceHandler {
    if p == nil || s == nil || r == nil {
        panic("nil repository passed to NewAdminReferenceHandler")
    }
    return &AdminReferenceHandler{Periods: p, Sessions: s, Rooms: r}
}

type periodView struct {
    ID       uint64 `json:"id"`
    Name     string `json:"name"`
    OpensOn  string `json:"opens_on"`
    ClosesOn string `json:"closes_on"`
    IsActive bool   `json:"is_active"`
}

// refStatus maps reference repository errors onto HTTP statuses; 0
// means the error is unexpected.
func refStatus(err error) int {
    switch {
    case errors.Is(err, repository.ErrPeriodNotFound),
        errors.Is(err, repository.ErrSessionNotFound),
        errors.Is(err, repository.ErrRoomNotFound):
        return http.StatusNotFound
    case errors.Is(err, repository.ErrRoomCodeExists),
        errors.Is(err, repository.ErrSessionNameExists):
        return http.StatusConflict
    case errors.Is(err, repository.ErrInUse):
        return http.StatusUnprocessableEntity
    }
    return 0
}

// refFailure writes the response for a reference repository error.
func refFailure(c echo.Context, err error, action string) error {
    if code := refStatus(err); code != 0 {
        return c.JSON(code, echo.Map{"error": err.Error()})
    }
    log.Printf("admin: %s: %v", action, err)
    return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to " + action})
}

func toPeriodView(p model.Period) periodView {
    return periodView{
        ID:       p.ID,
        Name:     p.Name,
        OpensOn:  p.OpensOn.Format(model.DateLayout),
        ClosesOn: p.ClosesOn.Format(model.DateLayout),
        IsActive: p.IsActive,
    }
}

// ListPeriods handles GET /v1/admin/periods.
func (h *AdminReferenceHandler) ListPeriods(c echo.Context) error {
    periods, err := h.Periods.List(c.Request().Context())
    if err != nil {
        log.Printf("admin: list periods: %v", err)
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    items := make([]periodView, 0, len(periods))
    for _, p := range periods {
        items = append(items, toPeriodView(p))
    }
    return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// CreatePeriod handles POST /v1/admin/periods.
func (h *AdminReferenceHandler) CreatePeriod(c echo.Context) error {
    var req struct {
        Name     string `json:"name"`
        OpensOn  string `json:"opens_on"`
        ClosesOn string `json:"closes_on"`
    }
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    opens, ok1 := parseDate(req.OpensOn)
    closes, ok2 := parseDate(req.ClosesOn)
    switch {
    case strings.TrimSpace(req.Name) == "":
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "name is required"})
    case !ok1 || !ok2:
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "opens_on and closes_on must be YYYY-MM-DD"})
    case closes.Before(opens):
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "closes_on is before opens_on"})
    }
    p := model.Period{Name: strings.TrimSpace(req.Name), OpensOn: opens, ClosesOn: closes}
    if err := h.Periods.Create(c.Request().Context(), &p); err != nil {
        log.Printf("admin: create period: %v", err)
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create period"})
    }
    return c.JSON(http.StatusCreated, toPeriodView(p))
}

// ActivatePeriod handles POST /v1/admin/periods/:id/activate.  Every other
// period is deactivated.
func (h *AdminReferenceHandler) ActivatePeriod(c echo.Context) error {
    id, ok := pathID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid period id"})
    }
    err := h.Periods.Activate(c.Request().Context(), id)
    if errors.Is(err, repository.ErrPeriodNotFound) {
        return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
    }
    if err != nil {
        log.Printf("admin: activate period %d: %v", id, err)
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to activate period"})
    }
    return c.JSON(http.StatusOK, echo.Map{"id": id, "is_active": true})
}

// GetPeriod handles GET /v1/admin/periods/:id.
func (h *AdminReferenceHandler) GetPeriod(c echo.Context) error {
    id, ok := pathID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid period id"})
    }
    p, err := h.Periods.Get(c.Request().Context(), id)
    if err != nil {
        return refFailure(c, err, "load period")
    }
    return c.JSON(http.StatusOK, toPeriodView(p))
}

// UpdatePeriod handles PUT /v1/admin/periods/:id with a partial body.
func (h *AdminReferenceHandler) UpdatePeriod(c echo.Context) error {
    id, ok := pathID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid period id"})
    }
    var req struct {
        Name     *string `json:"name"`
        OpensOn  *string `json:"opens_on"`
        ClosesOn *string `json:"closes_on"`
    }
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    ctx := c.Request().Context()
    p, err := h.Periods.Get(ctx, id)
    if err != nil {
        return refFailure(c, err, "load period")
    }

    if req.Name != nil {
        p.Name = strings.TrimSpace(*req.Name)
    }
    for _, f := range []struct {
        raw *string
        dst *time.Time
    }{{req.OpensOn, &p.OpensOn}, {req.ClosesOn, &p.ClosesOn}} {
        if f.raw == nil {
            continue
        }
        d, ok := parseDate(*f.raw)
        if !ok {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "opens_on and closes_on must be YYYY-MM-DD"})
        }
        *f.dst = d
    }
    switch {
    case p.Name == "":
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "name is required"})
    case p.ClosesOn.Before(p.OpensOn):
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "closes_on is before opens_on"})
    }
    if err := h.Periods.Update(ctx, p); err != nil {
        return refFailure(c, err, "update period")
    }
    return c.JSON(http.StatusOK, toPeriodView(p))
}

// DeletePeriod handles DELETE /v1/admin/periods/:id.  Periods with slots
// or applicants are kept.
func (h *AdminReferenceHandler) DeletePeriod(c echo.Context) error {
    id, ok := pathID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid period id"})
    }
    if err := h.Periods.Delete(c.Request().Context(), id); err != nil {
        return refFailure(c, err, "delete period")
    }
    return c.NoContent(http.StatusNoContent)
}

var clockRe = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d(:[0-5]\d)?$`)

func sessionJSON(s model.Session) echo.Map {
    return echo.Map{"id": s.ID, "name": s.Name, "starts_at": s.StartsAt, "ends_at": s.EndsAt, "is_active": s.IsActive}
}

func roomJSON(r model.Room) echo.Map {
    return echo.Map{"id": r.ID, "code": r.Code, "name": r.Name, "capacity": r.Capacity, "is_active": r.IsActive}
}

// ListSessions handles GET /v1/admin/sessions.
func (h *AdminReferenceHandler) ListSessions(c echo.Context) error {
    sessions, err := h.Sessions.List(c.Request().Context())
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    items := make([]echo.Map, 0, len(sessions))
    for _, s := range sessions {
        items = append(items, sessionJSON(s))
    }
    return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// CreateSession handles POST /v1/admin/sessions.
func (h *AdminReferenceHandler) CreateSession(c echo.Context) error {
    var req struct {
        Name     string `json:"name"`
        StartsAt string `json:"starts_at"`
        EndsAt   string `json:"ends_at"`
    }
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    if strings.TrimSpace(req.Name) == "" || !clockRe.MatchString(req.StartsAt) || !clockRe.MatchString(req.EndsAt) {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "name, starts_at and ends_at (HH:MM) are required"})
    }
    s := model.Session{Name: req.Name, StartsAt: req.StartsAt, EndsAt: req.EndsAt, IsActive: true}
    if err := h.Sessions.Create(c.Request().Context(), &s); err != nil {
        return refFailure(c, err, "create session")
    }
    return c.JSON(http.StatusCreated, echo.Map{"id": s.ID, "name": strings.TrimSpace(s.Name), "starts_at": s.StartsAt, "ends_at": s.EndsAt})
}

// GetSession handles GET /v1/admin/sessions/:id.
func (h *AdminReferenceHandler) GetSession(c echo.Context) error {
    id, ok := pathID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
    }
    s, err := h.Sessions.Get(c.Request().Context(), id)
    if err != nil {
        return refFailure(c, err, "load session")
    }
    return c.JSON(http.StatusOK, sessionJSON(s))
}

// UpdateSession handles PUT /v1/admin/sessions/:id with a partial body.
func (h *AdminReferenceHandler) UpdateSession(c echo.Context) error {
    id, ok := pathID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
    }
    var req struct {
        Name     *string `json:"name"`
        StartsAt *string `json:"starts_at"`
        EndsAt   *string `json:"ends_at"`
        IsActive *bool   `json:"is_active"`
    }
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    ctx := c.Request().Context()
    s, err := h.Sessions.Get(ctx, id)
    if err != nil {
        return refFailure(c, err, "load session")
    }
    if req.Name != nil {
        s.Name = strings.TrimSpace(*req.Name)
    }
    if req.StartsAt != nil {
        s.StartsAt = *req.StartsAt
    }
    if req.EndsAt != nil {
        s.EndsAt = *req.EndsAt
    }
    if req.IsActive != nil {
        s.IsActive = *req.IsActive
    }
    if s.Name == "" || !clockRe.MatchString(s.StartsAt) || !clockRe.MatchString(s.EndsAt) {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "name, starts_at and ends_at (HH:MM) are required"})
    }
    if err := h.Sessions.Update(ctx, s); err != nil {
        return refFailure(c, err, "update session")
    }
    return c.JSON(http.StatusOK, sessionJSON(s))
}

// DeleteSession handles DELETE /v1/admin/sessions/:id.
func (h *AdminReferenceHandler) DeleteSession(c echo.Context) error {
    id, ok := pathID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
    }
    if err := h.Sessions.Delete(c.Request().Context(), id); err != nil {
        return refFailure(c, err, "delete session")
    }
    return c.NoContent(http.StatusNoContent)
}

// ListRooms handles GET /v1/admin/rooms.
func (h *AdminReferenceHandler) ListRooms(c echo.Context) error {
    rooms, err := h.Rooms.List(c.Request().Context())
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    items := make([]echo.Map, 0, len(rooms))
    for _, r := range rooms {
        items = append(items, roomJSON(r))
    }
    return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// CreateRoom handles POST /v1/admin/rooms.
func (h *AdminReferenceHandler) CreateRoom(c echo.Context) error {
    var req struct {
        Code     string `json:"code"`
        Name     string `json:"name"`
        Capacity int    `json:"capacity"`
    }
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    if strings.TrimSpace(req.Code) == "" || strings.TrimSpace(req.Name) == "" || req.Capacity < 1 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "code, name and a positive capacity are required"})
    }
    rm := model.Room{Code: req.Code, Name: req.Name, Capacity: req.Capacity, IsActive: true}
    if err := h.Rooms.Create(c.Request().Context(), &rm); err != nil {
        return refFailure(c, err, "create room")
    }
    return c.JSON(http.StatusCreated, echo.Map{"id": rm.ID, "code": rm.Code, "name": strings.TrimSpace(rm.Name), "capacity": rm.Capacity})
}

// GetRoom handles GET /v1/admin/rooms/:id.
func (h *AdminReferenceHandler) GetRoom(c echo.Context) error {
    id, ok := pathID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid room id"})
    }
    rm, err := h.Rooms.Get(c.Request().Context(), id)
    if err != nil {
        return refFailure(c, err, "load room")
    }
    return c.JSON(http.StatusOK, roomJSON(rm))
}

// UpdateRoom handles PUT /v1/admin/rooms/:id with a partial body.  The
// code stays unique across rooms other than this one.
func (h *AdminReferenceHandler) UpdateRoom(c echo.Context) error {
    id, ok := pathID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid room id"})
    }
    var req struct {
        Code     *string `json:"code"`
        Name     *string `json:"name"`
        Capacity *int    `json:"capacity"`
        IsActive *bool   `json:"is_active"`
    }
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    ctx := c.Request().Context()
    rm, err := h.Rooms.Get(ctx, id)
    if err != nil {
        return refFailure(c, err, "load room")
    }
    if req.Code != nil {
        rm.Code = *req.Code
    }
    if req.Name != nil {
        rm.Name = *req.Name
    }
    if req.Capacity != nil {
        rm.Capacity = *req.Capacity
    }
    if req.IsActive != nil {
        rm.IsActive = *req.IsActive
    }
    if strings.TrimSpace(rm.Code) == "" || strings.TrimSpace(rm.Name) == "" || rm.Capacity < 1 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "code, name and a positive capacity are required"})
    }
    if err := h.Rooms.Update(ctx, &rm); err != nil {
        return refFailure(c, err, "update room")
    }
    return c.JSON(http.StatusOK, roomJSON(rm))
}

// DeleteRoom handles DELETE /v1/admin/rooms/:id.
func (h *AdminReferenceHandler) DeleteRoom(c echo.Context) error {
    id, ok := pathID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid room id"})
    }
    if err := h.Rooms.Delete(c.Request().Context(), id); err != nil {
        return refFailure(c, err, "delete room")
    }
    return c.NoContent(http.StatusNoContent)
}
