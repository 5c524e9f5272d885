package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/ticket-marketplace/internal/model"
	"github.com/iliyamo/ticket-marketplace/internal/service"
)

// PublicHandler serves the catalogue to anonymous visitors.
type PublicHandler struct {
	Events    *service.EventService
	Inventory *service.Inventory
	Resale    *service.ResaleWorkflow
	Log       *slog.Logger
}

func NewPublicHandler(events *service.EventService, inv *service.Inventory, resale *service.ResaleWorkflow, log *slog.Logger) *PublicHandler {
	if events == nil || inv == nil || resale == nil {
		panic("nil service passed to NewPublicHandler")
	}
	return &PublicHandler{Events: events, Inventory: inv, Resale: resale, Log: log}
}

// parseFilter reads ?date=YYYY-MM-DD&place=&min_price=&max_price=&organizer_id=.
func parseFilter(c echo.Context) (model.EventFilter, error) {
	var f model.EventFilter
	if s := strings.TrimSpace(c.QueryParam("date")); s != "" {
		d, err := time.Parse(time.DateOnly, s)
		if err != nil {
			return f, err
		}
		f.Date = &d
	}
	f.Place = strings.TrimSpace(c.QueryParam("place"))
	f.OrganizerID = strings.TrimSpace(c.QueryParam("organizer_id"))
	for _, p := range []struct {
		key string
		dst **decimal.Decimal
	}{{"min_price", &f.MinPrice}, {"max_price", &f.MaxPrice}} {
		s := strings.TrimSpace(c.QueryParam(p.key))
		if s == "" {
			continue
		}
		v, err := decimal.NewFromString(s)
		if err != nil {
			return f, err
		}
		*p.dst = &v
	}
	return f, nil
}

// ListEvents handles GET /v1/events.
func (h *PublicHandler) ListEvents(c echo.Context) error {
	f, err := parseFilter(c)
	if err != nil {
		return badRequest(c, "invalid filter")
	}
	events, err := h.Events.List(c.Request().Context(), f)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, events)
}

// GetEvent handles GET /v1/events/:id.
func (h *PublicHandler) GetEvent(c echo.Context) error {
	ev, err := h.Events.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, ev)
}

// Availability handles GET /v1/events/:id/availability.
func (h *PublicHandler) Availability(c echo.Context) error {
	id := c.Param("id")
	left, err := h.Inventory.Availability(c.Request().Context(), id)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"event_id": id, "available": left})
}

// ListResales handles GET /v1/resales.
func (h *PublicHandler) ListResales(c echo.Context) error {
	listings, err := h.Resale.ListPending(c.Request().Context())
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, listings)
}
