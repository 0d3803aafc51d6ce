package router // router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/studiofit/class-booking/internal/handler"    // staff handlers
	"github.com/studiofit/class-booking/internal/middleware" // JWT + role middlewares
)

// RegisterStaff registers STAFF-scoped endpoints under /v1.
// All routes require a valid JWT and STAFF role.
func RegisterStaff(e *echo.Echo, s *handler.StaffHandler, jwtSecret string) {
	// Attach middlewares at group construction time for clarity.
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("STAFF"),
	)

	// ---- Class sessions ----
	g.POST("/sessions", s.CreateSession)
	g.PUT("/sessions/:id", s.UpdateSession)
	g.PATCH("/sessions/:id", s.UpdateSession) // allow partial/semantic updates via PATCH as well
	g.DELETE("/sessions/:id", s.DeleteSession)
	g.GET("/my-sessions", s.MySessions)

	// ---- Rosters ----
	g.GET("/sessions/:id/roster", s.SessionRoster)
}
