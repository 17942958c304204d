package router // package router defines how HTTP routes are registered for the API

import (
	"database/sql"

	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/pmb-exam-scheduling/internal/handler"    // import the handlers that implement business logic
	"github.com/iliyamo/pmb-exam-scheduling/internal/middleware" // import middleware for JWT authentication and role enforcement
	"github.com/iliyamo/pmb-exam-scheduling/internal/model"
)

// RegisterRoutes registers routes that do not require authentication:
// liveness, readiness against db and the Prometheus scrape endpoint.
func RegisterRoutes(e *echo.Echo, db *sql.DB) {
	e.GET("/healthz", handler.Health)
	if db != nil {
		e.GET("/readyz", handler.Ready(db))
	}
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterAuth registers all authentication‑related routes.  Token
// operations live under /v1/auth; /v1/me requires a valid access token of
// either role.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	// rotates the refresh token
	g.POST("/refresh", a.Refresh)
	g.POST("/refresh-access", a.RefreshAccess)
	// Logout accepts either a refresh token in the body or a bearer token,
	// so it is not behind JWTAuth.
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.Use(middleware.RequireRole(model.RoleAdmin, model.RoleApplicant))
	auth.GET("/me", a.Me)
}
