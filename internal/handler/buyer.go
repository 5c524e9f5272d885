package handler

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/ticket-marketplace/internal/model"
	"github.com/iliyamo/ticket-marketplace/internal/service"
)

// BuyerHandler exposes the purchase, resale and "my stuff" endpoints.
// JWTAuth runs first, so the caller is always present; a missing caller
// still answers 401.
type BuyerHandler struct {
	Sales   *service.SaleWorkflow
	Resale  *service.ResaleWorkflow
	Tickets *service.Tickets
	Ledger  *service.Ledger
	Log     *slog.Logger
}

func NewBuyerHandler(sales *service.SaleWorkflow, resale *service.ResaleWorkflow, tickets *service.Tickets, ledger *service.Ledger, log *slog.Logger) *BuyerHandler {
	if sales == nil || resale == nil || tickets == nil || ledger == nil {
		panic("nil service passed to NewBuyerHandler")
	}
	return &BuyerHandler{Sales: sales, Resale: resale, Tickets: tickets, Ledger: ledger, Log: log}
}

// Purchase handles POST /v1/events/:id/purchase with {"quantity": n}.
func (h *BuyerHandler) Purchase(c echo.Context) error {
	caller, ok := callerOf(c)
	if !ok {
		return unauthorized(c)
	}
	var body struct {
		Quantity int `json:"quantity"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	out, _ := h.Sales.Purchase(c.Request().Context(), caller, c.Param("id"), body.Quantity)
	return outcome(c, http.StatusCreated, out.Outcome, out)
}

// CancelSale handles POST /v1/sales/:id/cancel.
func (h *BuyerHandler) CancelSale(c echo.Context) error {
	caller, ok := callerOf(c)
	if !ok {
		return unauthorized(c)
	}
	out, _ := h.Sales.Cancel(c.Request().Context(), caller, c.Param("id"))
	return outcome(c, http.StatusOK, out, out)
}

// MyTickets handles GET /v1/my-tickets.
func (h *BuyerHandler) MyTickets(c echo.Context) error {
	caller, ok := callerOf(c)
	if !ok {
		return unauthorized(c)
	}
	tickets, err := h.Tickets.ListByOwner(c.Request().Context(), caller.UserID)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, tickets)
}

// GetTicket handles GET /v1/tickets/:id.  Only the holder may read it.
func (h *BuyerHandler) GetTicket(c echo.Context) error {
	caller, ok := callerOf(c)
	if !ok {
		return unauthorized(c)
	}
	tk, err := h.Tickets.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(c, h.Log, err)
	}
	if tk.OwnerID != caller.UserID {
		return fail(c, h.Log, model.ErrNotOwner)
	}
	return c.JSON(http.StatusOK, tk)
}

// Validity handles GET /v1/tickets/:id/validity.
func (h *BuyerHandler) Validity(c echo.Context) error {
	id := c.Param("id")
	valid, err := h.Tickets.IsValid(c.Request().Context(), id)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"ticket_id": id, "valid": valid})
}

// PublishResale handles POST /v1/tickets/:id/resale with {"price": "25.00"}.
func (h *BuyerHandler) PublishResale(c echo.Context) error {
	caller, ok := callerOf(c)
	if !ok {
		return unauthorized(c)
	}
	var body struct {
		Price decimal.Decimal `json:"price"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	out, _ := h.Resale.Publish(c.Request().Context(), caller, c.Param("id"), body.Price)
	return outcome(c, http.StatusCreated, out.Outcome, out)
}

// BuyResale handles POST /v1/resales/:id/purchase.
func (h *BuyerHandler) BuyResale(c echo.Context) error {
	caller, ok := callerOf(c)
	if !ok {
		return unauthorized(c)
	}
	out, _ := h.Resale.Purchase(c.Request().Context(), caller, c.Param("id"))
	return outcome(c, http.StatusOK, out.Outcome, out)
}

// WithdrawResale handles DELETE /v1/resales/:id.
func (h *BuyerHandler) WithdrawResale(c echo.Context) error {
	caller, ok := callerOf(c)
	if !ok {
		return unauthorized(c)
	}
	out, _ := h.Resale.Withdraw(c.Request().Context(), caller, c.Param("id"))
	return outcome(c, http.StatusOK, out, out)
}

// MyTransactions handles GET /v1/my-transactions.
func (h *BuyerHandler) MyTransactions(c echo.Context) error {
	caller, ok := callerOf(c)
	if !ok {
		return unauthorized(c)
	}
	entries, err := h.Ledger.ListForUser(c.Request().Context(), caller.UserID)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, entries)
}

// GetTransaction handles GET /v1/transactions/:id.  Entries of other
// users read as not found.
func (h *BuyerHandler) GetTransaction(c echo.Context) error {
	caller, ok := callerOf(c)
	if !ok {
		return unauthorized(c)
	}
	entry, err := h.Ledger.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(c, h.Log, err)
	}
	if entry.ActorID != caller.UserID {
		return fail(c, h.Log, model.ErrTransactionNotFound)
	}
	return c.JSON(http.StatusOK, entry)
}
