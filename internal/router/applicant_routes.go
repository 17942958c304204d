package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pmb-exam-scheduling/internal/handler"
	"github.com/iliyamo/pmb-exam-scheduling/internal/middleware"
	"github.com/iliyamo/pmb-exam-scheduling/internal/model"
)

// RegisterApplicant registers applicant-scoped endpoints under
// /v1/applicant.  All routes require a valid JWT and the APPLICANT role.
// The availability list goes through the response cache; the reserve call
// goes through the rate limiter and is never cached.
func RegisterApplicant(e *echo.Echo, h *handler.ScheduleHandler, jwtSecret string, cache, limiter echo.MiddlewareFunc) {
	g := e.Group(
		"/v1/applicant",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleApplicant),
	)
	g.GET("/slots", h.ListSlots, cache)
	g.POST("/slot", h.SelectSlot, limiter)
	g.GET("/card", h.Card)
}
