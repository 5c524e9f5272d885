package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ticket-marketplace/internal/handler"
	"github.com/iliyamo/ticket-marketplace/internal/middleware"
	"github.com/iliyamo/ticket-marketplace/internal/model"
)

// RegisterBuyer registers the endpoints any signed-in user may call.
// Organizers can buy tickets too.  The two purchase routes also pass
// through limit, the per-user token bucket.
func RegisterBuyer(e *echo.Echo, h *handler.BuyerHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleBuyer, model.RoleOrganizer),
	)
	g.POST("/events/:id/purchase", h.Purchase, limit)
	g.POST("/sales/:id/cancel", h.CancelSale)

	g.GET("/my-tickets", h.MyTickets)
	g.GET("/tickets/:id", h.GetTicket)
	g.GET("/tickets/:id/validity", h.Validity)

	g.POST("/tickets/:id/resale", h.PublishResale)
	g.POST("/resales/:id/purchase", h.BuyResale, limit)
	g.DELETE("/resales/:id", h.WithdrawResale)

	g.GET("/my-transactions", h.MyTransactions)
	g.GET("/transactions/:id", h.GetTransaction)
}
