package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/ticket-marketplace/internal/model"
	"github.com/iliyamo/ticket-marketplace/internal/service/ports"
)

// Tickets owns the ticket lifecycle.  Every state change goes through one
// of its methods:
//
//	valid  -> listed     List
//	listed -> valid      Transfer (new owner) or Withdraw (same owner)
//	valid  -> used       MarkUsed, Redeem
//	valid  -> cancelled  Cancel
//
// used and cancelled are terminal.
type Tickets struct {
	store ports.Store
	log   *slog.Logger
}

func NewTickets(store ports.Store, log *slog.Logger) *Tickets {
	return &Tickets{store: store, log: orDefault(log)}
}

// Issue creates a valid ticket for the sale's buyer.
func (m *Tickets) Issue(ctx context.Context, tx ports.Tx, sale *model.Sale, ev *model.Event) (*model.Ticket, error) {
	tk := &model.Ticket{
		ID:       newID(),
		SaleID:   sale.ID,
		EventID:  ev.ID,
		OwnerID:  sale.BuyerID,
		IssuedAt: now(),
		Price:    sale.UnitPrice,
		State:    model.TicketValid,
	}
	code, err := qrCode(sale.ID)
	if err != nil {
		return nil, fmt.Errorf("ticket qr code: %w", err)
	}
	tk.QRCode = code
	if err := tx.InsertTicket(ctx, tk); err != nil {
		return nil, err
	}
	return tk, nil
}

// qrCode renders the door code TICKET-<sale prefix>-<random>.
func qrCode(saleID string) (string, error) {
	var b [6]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	prefix := strings.ReplaceAll(saleID, "-", "")
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return "TICKET-" + strings.ToUpper(prefix) + "-" + strings.ToUpper(hex.EncodeToString(b[:])), nil
}

// List puts a ticket the caller owns up for resale at price.  The
// pending-listing check runs under the ticket row lock, so two
// concurrent List calls for the same ticket cannot both succeed.
func (m *Tickets) List(ctx context.Context, tx ports.Tx, ticketID, caller string, price decimal.Decimal) (*model.Listing, error) {
	if !price.IsPositive() || !model.IsCentPrice(price) {
		return nil, model.ErrInvalidPrice
	}
	tk, err := tx.LockTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if tk.OwnerID != caller {
		return nil, model.ErrNotOwner
	}
	switch tk.State {
	case model.TicketListed:
		return nil, model.ErrAlreadyListed
	case model.TicketUsed:
		return nil, model.ErrAlreadyUsed
	case model.TicketCancelled:
		return nil, model.ErrTicketCancelled
	}
	if _, err := tx.PendingListingForTicket(ctx, tk.ID); err == nil {
		return nil, model.ErrAlreadyListed
	} else if !errors.Is(err, model.ErrListingNotFound) {
		return nil, err
	}

	at := now()
	l := &model.Listing{
		ID:            newID(),
		TicketID:      tk.ID,
		EventID:       tk.EventID,
		SellerID:      caller,
		OriginalPrice: tk.Price,
		AskingPrice:   price,
		Status:        model.ListingPending,
		CreatedAt:     at,
		UpdatedAt:     at,
	}
	if err := tx.InsertListing(ctx, l); err != nil {
		return nil, err
	}
	tk.State = model.TicketListed
	tk.ResalePrice = decimal.NewNullDecimal(price)
	tk.ListingID = &l.ID
	if err := tx.UpdateTicket(ctx, tk); err != nil {
		return nil, err
	}
	return l, nil
}

// Transfer hands a listed ticket to newOwner and completes its listing.
// It fails with ErrListingNotPending unless the ticket's listing is still
// pending when the locks are taken.
func (m *Tickets) Transfer(ctx context.Context, tx ports.Tx, ticketID, newOwner string) (*model.Listing, error) {
	tk, err := tx.LockTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if tk.State != model.TicketListed || tk.ListingID == nil {
		return nil, model.ErrListingNotPending
	}
	l, err := tx.LockListing(ctx, *tk.ListingID)
	if err != nil {
		return nil, err
	}
	if l.Status != model.ListingPending {
		return nil, model.ErrListingNotPending
	}

	tk.OwnerID = newOwner
	tk.State = model.TicketValid
	tk.ListingID = nil
	tk.ResalePrice = decimal.NullDecimal{}
	if err := tx.UpdateTicket(ctx, tk); err != nil {
		return nil, err
	}
	buyer := newOwner
	l.Status = model.ListingCompleted
	l.BuyerID = &buyer
	l.UpdatedAt = now()
	if err := tx.UpdateListing(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

// Withdraw takes a pending listing off the market and returns the ticket
// to valid.  Only the seller may withdraw.
func (m *Tickets) Withdraw(ctx context.Context, tx ports.Tx, listingID, caller string) (*model.Listing, error) {
	l, err := tx.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if l.SellerID != caller {
		return nil, model.ErrNotOwner
	}
	// ticket before listing, the same order Transfer locks in
	tk, err := tx.LockTicket(ctx, l.TicketID)
	if err != nil {
		return nil, err
	}
	if l, err = tx.LockListing(ctx, listingID); err != nil {
		return nil, err
	}
	if l.Status != model.ListingPending {
		return nil, model.ErrListingNotPending
	}

	if tk.ListingID != nil && *tk.ListingID == l.ID {
		tk.State = model.TicketValid
		tk.ListingID = nil
		tk.ResalePrice = decimal.NullDecimal{}
		if err := tx.UpdateTicket(ctx, tk); err != nil {
			return nil, err
		}
	}
	l.Status = model.ListingWithdrawn
	l.UpdatedAt = now()
	if err := tx.UpdateListing(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

// MarkUsed redeems a ticket.  A second call returns ErrAlreadyUsed.
func (m *Tickets) MarkUsed(ctx context.Context, ticketID string) error {
	return m.store.Atomic(ctx, func(tx ports.Tx) error {
		tk, err := tx.LockTicket(ctx, ticketID)
		if err != nil {
			return err
		}
		return markUsed(ctx, tx, tk)
	})
}

// Redeem is MarkUsed restricted to the organizer of the ticket's event.
func (m *Tickets) Redeem(ctx context.Context, caller model.Caller, ticketID string) error {
	err := m.store.Atomic(ctx, func(tx ports.Tx) error {
		tk, err := tx.LockTicket(ctx, ticketID)
		if err != nil {
			return err
		}
		ev, err := tx.GetEvent(ctx, tk.EventID)
		if err != nil {
			return err
		}
		if ev.OrganizerID != caller.UserID {
			return model.ErrNotOrganizer
		}
		return markUsed(ctx, tx, tk)
	})
	if err == nil {
		m.log.Info("ticket redeemed", "ticket_id", ticketID, "organizer_id", caller.UserID)
	}
	return err
}

func markUsed(ctx context.Context, tx ports.Tx, tk *model.Ticket) error {
	switch tk.State {
	case model.TicketUsed:
		return model.ErrAlreadyUsed
	case model.TicketListed:
		return model.ErrTicketListed
	case model.TicketCancelled:
		return model.ErrTicketCancelled
	}
	tk.State = model.TicketUsed
	return tx.UpdateTicket(ctx, tk)
}

// Cancel voids a valid ticket as part of a sale cancellation.
func (m *Tickets) Cancel(ctx context.Context, tx ports.Tx, tk *model.Ticket) error {
	if tk.State != model.TicketValid {
		return model.ErrSaleNotCancellable
	}
	tk.State = model.TicketCancelled
	return tx.UpdateTicket(ctx, tk)
}

// IsValid reports whether the ticket can be used or listed right now.
func (m *Tickets) IsValid(ctx context.Context, ticketID string) (bool, error) {
	tk, err := m.Get(ctx, ticketID)
	if err != nil {
		return false, err
	}
	return tk.State == model.TicketValid, nil
}

func (m *Tickets) Get(ctx context.Context, ticketID string) (*model.Ticket, error) {
	var tk *model.Ticket
	err := m.store.Atomic(ctx, func(tx ports.Tx) error {
		var err error
		tk, err = tx.GetTicket(ctx, ticketID)
		return err
	})
	return tk, err
}

func (m *Tickets) ListByOwner(ctx context.Context, ownerID string) ([]model.Ticket, error) {
	var out []model.Ticket
	err := m.store.Atomic(ctx, func(tx ports.Tx) error {
		var err error
		out, err = tx.ListTicketsByOwner(ctx, ownerID)
		return err
	})
	return out, err
}
