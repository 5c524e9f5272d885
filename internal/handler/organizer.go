package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/ticket-marketplace/internal/model"
	"github.com/iliyamo/ticket-marketplace/internal/service"
)

// OrganizerHandler manages events and redeems tickets at the door.
type OrganizerHandler struct {
	Events  *service.EventService
	Tickets *service.Tickets
	Log     *slog.Logger
}

func NewOrganizerHandler(events *service.EventService, tickets *service.Tickets, log *slog.Logger) *OrganizerHandler {
	if events == nil || tickets == nil {
		panic("nil service passed to NewOrganizerHandler")
	}
	return &OrganizerHandler{Events: events, Tickets: tickets, Log: log}
}

type eventReq struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Date        *time.Time       `json:"date"`
	Place       *string          `json:"place"`
	Price       *decimal.Decimal `json:"price"`
	Capacity    *int             `json:"capacity"`
}

func (r eventReq) patch() model.EventPatch {
	return model.EventPatch{
		Name:        r.Name,
		Description: r.Description,
		Date:        r.Date,
		Place:       r.Place,
		Price:       r.Price,
		Capacity:    r.Capacity,
	}
}

// CreateEvent handles POST /v1/events.
func (h *OrganizerHandler) CreateEvent(c echo.Context) error {
	caller, ok := callerOf(c)
	if !ok {
		return unauthorized(c)
	}
	var req eventReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	var ev model.Event
	if req.Name != nil {
		ev.Name = *req.Name
	}
	if req.Description != nil {
		ev.Description = *req.Description
	}
	if req.Date != nil {
		ev.Date = *req.Date
	}
	if req.Place != nil {
		ev.Place = *req.Place
	}
	if req.Price != nil {
		ev.Price = *req.Price
	}
	if req.Capacity != nil {
		ev.Capacity = *req.Capacity
	}
	created, err := h.Events.Create(c.Request().Context(), caller, ev)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, created)
}

// UpdateEvent handles PATCH /v1/events/:id.  Absent fields are kept.
func (h *OrganizerHandler) UpdateEvent(c echo.Context) error {
	caller, ok := callerOf(c)
	if !ok {
		return unauthorized(c)
	}
	var req eventReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	ev, err := h.Events.Update(c.Request().Context(), caller, c.Param("id"), req.patch())
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, ev)
}

// CancelEvent handles POST /v1/events/:id/cancel.
func (h *OrganizerHandler) CancelEvent(c echo.Context) error {
	caller, ok := callerOf(c)
	if !ok {
		return unauthorized(c)
	}
	ev, err := h.Events.Cancel(c.Request().Context(), caller, c.Param("id"))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, ev)
}

// Redeem handles POST /v1/tickets/:id/redeem.
func (h *OrganizerHandler) Redeem(c echo.Context) error {
	caller, ok := callerOf(c)
	if !ok {
		return unauthorized(c)
	}
	id := c.Param("id")
	if err := h.Tickets.Redeem(c.Request().Context(), caller, id); err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"ticket_id": id, "state": model.TicketUsed})
}
