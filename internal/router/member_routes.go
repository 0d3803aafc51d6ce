package router

import (
	"github.com/labstack/echo/v4"

	"github.com/studiofit/class-booking/internal/handler"
	"github.com/studiofit/class-booking/internal/middleware"
)

// RegisterMember registers member-scoped endpoints under /v1.  All
// routes require a valid JWT and the MEMBER role.  Members can browse
// the schedule, book and cancel classes, and manage their
// subscriptions and class packs.
func RegisterMember(e *echo.Echo, b *handler.BookingHandler, ent *handler.EntitlementHandler, jwtSecret string) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("MEMBER"),
	)

	// ---- Bookings ----
	g.POST("/bookings", b.Book)
	g.DELETE("/bookings/:id", b.Cancel) // :id is the session id; ?occurrence_date for recurring
	g.GET("/my-bookings", b.MyBookings)
	g.GET("/cancellation-notice", b.CancellationNotice)

	// ---- Subscriptions ----
	g.GET("/subscriptions", ent.MySubscriptions)
	g.POST("/subscriptions", ent.PurchaseSubscription)
	g.POST("/subscriptions/:id/cancel-request", ent.RequestCancelSubscription)

	// ---- Class packs ----
	g.GET("/class-packs", ent.MyClassPacks)
	g.POST("/class-packs", ent.PurchaseClassPack)
	g.GET("/class-packs/:id/usage", ent.PackUsage)

	// Schedule browsing and per-instance occupancy are readable by both
	// roles; they are registered in RegisterSchedule.
}

// RegisterSchedule registers schedule browsing endpoints shared by both
// roles.  A valid JWT is still required.
func RegisterSchedule(e *echo.Echo, b *handler.BookingHandler, jwtSecret string) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("MEMBER", "STAFF"),
	)
	g.GET("/schedule", b.Schedule)
	g.GET("/sessions/:id/occupancy", b.Occupancy)
}
