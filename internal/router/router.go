package router // package router wires handlers and middleware onto the echo instance

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ticket-marketplace/internal/handler"
	"github.com/iliyamo/ticket-marketplace/internal/middleware"
	"github.com/iliyamo/ticket-marketplace/internal/model"
	"github.com/iliyamo/ticket-marketplace/internal/monitoring"
)

// RegisterRoutes registers the operational endpoints.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
	e.GET("/metrics", echo.WrapHandler(monitoring.Handler()))
}

// RegisterAuth registers session endpoints under /v1/auth and the
// authenticated /v1/me.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	// logout works with a refresh token alone, so no JWT middleware here
	g.POST("/logout", a.Logout)

	e.GET("/v1/me", a.Me,
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleBuyer, model.RoleOrganizer),
	)
}

// RegisterPublic registers the anonymous catalogue.  The event listing goes
// through the response cache; availability never does.
func RegisterPublic(e *echo.Echo, p *handler.PublicHandler, cache echo.MiddlewareFunc) {
	e.GET("/v1/events", p.ListEvents, cache)
	e.GET("/v1/events/:id", p.GetEvent, cache)
	e.GET("/v1/events/:id/availability", p.Availability)
	e.GET("/v1/resales", p.ListResales)
}
