package handler // handler defines http handlers

import (
    "errors"  // errors provides sentinel values used in getUserID
    "strconv" // strconv converts path parameters
    "time"

    "github.com/labstack/echo/v4" // echo defines request context types

    "github.com/iliyamo/pmb-exam-scheduling/internal/middleware"
    "github.com/iliyamo/pmb-exam-scheduling/internal/model"
)

var errNoUser = errors.New("invalid user_id in context")

// getUserID returns the user stored by the JWT middleware.
func getUserID(c echo.Context) (uint64, error) {
    if id, ok := middleware.UserID(c); ok {
        return id, nil
    }
    return 0, errNoUser
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
    id, err := strconv.ParseUint(c.Param(name), 10, 64)
    return id, err == nil && id > 0
}

// queryID parses an optional positive numeric query parameter; absent
// means zero.
func queryID(c echo.Context, name string) (uint64, bool) {
    raw := c.QueryParam(name)
    if raw == "" {
        return 0, true
    }
    id, err := strconv.ParseUint(raw, 10, 64)
    return id, err == nil
}

func parseDate(s string) (time.Time, bool) {
    t, err := time.Parse(model.DateLayout, s)
    return t, err == nil
}

// slotView is the JSON shape of an exam slot.
type slotView struct {
    ID        uint64 `json:"id"`
    PeriodID  uint64 `json:"period_id"`
    Date      string `json:"date"`
    Session   struct {
        ID       uint64 `json:"id"`
        Name     string `json:"name"`
        StartsAt string `json:"starts_at"`
        EndsAt   string `json:"ends_at"`
    } `json:"session"`
    Room struct {
        ID   uint64 `json:"id"`
        Code string `json:"code"`
        Name string `json:"name"`
    } `json:"room"`
    Capacity  int  `json:"capacity"`
    Occupied  int  `json:"occupied"`
    Remaining int  `json:"remaining"`
    IsActive  bool `json:"is_active"`
}

func toSlotView(s model.ExamSlot) slotView {
    v := slotView{
        ID:        s.ID,
        PeriodID:  s.PeriodID,
        Date:      s.DateString(),
        Capacity:  s.Capacity,
        Occupied:  s.Occupied,
        Remaining: s.Remaining(),
        IsActive:  s.IsActive,
    }
    v.Session.ID = s.SessionID
    v.Session.Name = s.Session.Name
    v.Session.StartsAt = s.Session.StartsAt
    v.Session.EndsAt = s.Session.EndsAt
    v.Room.ID = s.RoomID
    v.Room.Code = s.Room.Code
    v.Room.Name = s.Room.Name
    return v
}
