package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ticket-marketplace/internal/handler"
	"github.com/iliyamo/ticket-marketplace/internal/middleware"
	"github.com/iliyamo/ticket-marketplace/internal/model"
)

// RegisterOrganizer registers ORGANIZER-only endpoints under /v1.
// Ownership of the individual event is checked by the service.
func RegisterOrganizer(e *echo.Echo, o *handler.OrganizerHandler, jwtSecret string) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleOrganizer),
	)
	g.POST("/events", o.CreateEvent)
	g.PATCH("/events/:id", o.UpdateEvent)
	g.POST("/events/:id/cancel", o.CancelEvent)
	g.POST("/tickets/:id/redeem", o.Redeem)
}
