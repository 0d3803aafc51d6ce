package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/studiofit/class-booking/internal/handler"    // import the handlers that implement business logic
	"github.com/studiofit/class-booking/internal/middleware" // import middleware for JWT authentication and role enforcement
)

// RegisterRoutes registers routes that do not require authentication on
// the provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	// Load balancers and monitoring systems use this endpoint to verify
	// that the service is up.
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers all authentication-related routes and applies
// the necessary middleware.  Unauthenticated operations live under
// /v1/auth, while protected endpoints live under /v1.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	// Register, login and token exchange do not require an existing
	// session.
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	// /refresh rotates the refresh token; /refresh-access issues a new
	// access token without rotation.
	g.POST("/refresh", a.Refresh)
	g.POST("/refresh-access", a.RefreshAccess)
	// Logout does not require JWT authentication: the handler accepts a
	// refresh_token body or a bearer token and invalidates accordingly.
	g.POST("/logout", a.Logout)

	// Protected endpoints run JWTAuth and accept both roles.
	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.Use(middleware.RequireRole("MEMBER", "STAFF"))
	auth.GET("/me", a.Me)

	// Alias so clients can call either /v1/auth/logout or /v1/logout
	// with a valid refresh token in the body.
	e.POST("/v1/logout", a.Logout)
}
