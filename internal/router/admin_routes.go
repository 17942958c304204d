package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pmb-exam-scheduling/internal/handler"
	"github.com/iliyamo/pmb-exam-scheduling/internal/middleware"
	"github.com/iliyamo/pmb-exam-scheduling/internal/model"
)

// RegisterAdmin registers ADMIN-scoped endpoints under /v1/admin.
func RegisterAdmin(e *echo.Echo, slots *handler.AdminSlotHandler, ref *handler.AdminReferenceHandler, applicants *handler.AdminApplicantHandler, jwtSecret string) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	)

	// ---- Exam slots ----
	g.GET("/slots", slots.List)
	g.POST("/slots", slots.Create)
	g.GET("/slots/:id", slots.Get)
	g.PUT("/slots/:id", slots.Update)
	g.PATCH("/slots/:id", slots.Update) // alias for clients that use PATCH
	g.DELETE("/slots/:id", slots.Delete)
	g.GET("/slots/:id/applicants", applicants.ListForSlot)

	// ---- Applicants ----
	g.GET("/dashboard", applicants.Dashboard)
	g.GET("/applicants", applicants.List)
	g.GET("/applicants/:id", applicants.Get)

	// ---- Admission periods ----
	g.GET("/periods", ref.ListPeriods)
	g.POST("/periods", ref.CreatePeriod)
	g.GET("/periods/:id", ref.GetPeriod)
	g.PUT("/periods/:id", ref.UpdatePeriod)
	g.DELETE("/periods/:id", ref.DeletePeriod)
	g.POST("/periods/:id/activate", ref.ActivatePeriod)

	// ---- Sessions and rooms ----
	g.GET("/sessions", ref.ListSessions)
	g.POST("/sessions", ref.CreateSession)
	g.GET("/sessions/:id", ref.GetSession)
	g.PUT("/sessions/:id", ref.UpdateSession)
	g.DELETE("/sessions/:id", ref.DeleteSession)
	g.GET("/rooms", ref.ListRooms)
	g.POST("/rooms", ref.CreateRoom)
	g.GET("/rooms/:id", ref.GetRoom)
	g.PUT("/rooms/:id", ref.UpdateRoom)
	g.DELETE("/rooms/:id", ref.DeleteRoom)
}
