package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/ticket-marketplace/internal/model"
	"github.com/iliyamo/ticket-marketplace/internal/monitoring"
	"github.com/iliyamo/ticket-marketplace/internal/queue"
	"github.com/iliyamo/ticket-marketplace/internal/service/ports"
)

var errSellerEntryMissing = errors.New("ledger: seller entry for listing is missing")

// ResaleWorkflow lets ticket holders sell to other buyers.  Publishing
// records a pending ledger entry for the seller; a purchase completes it
// and records a completed entry for the buyer.
type ResaleWorkflow struct {
	store   ports.Store
	tickets *Tickets
	ledger  *Ledger
	pub     EventPublisher
	log     *slog.Logger
}

func NewResaleWorkflow(store ports.Store, tickets *Tickets, ledger *Ledger, pub EventPublisher, log *slog.Logger) *ResaleWorkflow {
	if pub == nil {
		pub = nopPublisher{}
	}
	return &ResaleWorkflow{store: store, tickets: tickets, ledger: ledger, pub: pub, log: orDefault(log)}
}

// Publish lists a ticket the caller owns at price.
func (w *ResaleWorkflow) Publish(ctx context.Context, caller model.Caller, ticketID string, price decimal.Decimal) (model.ListingOutcome, error) {
	start := time.Now()
	var (
		listing *model.Listing
		txID    string
	)
	err := w.store.Atomic(ctx, func(tx ports.Tx) error {
		var err error
		if listing, err = w.tickets.List(ctx, tx, ticketID, caller.UserID, price); err != nil {
			return err
		}
		txID, err = w.ledger.Append(ctx, tx, &model.Transaction{
			Kind:      model.KindResale,
			ActorID:   caller.UserID,
			EventID:   listing.EventID,
			Price:     listing.AskingPrice,
			Status:    model.TxPending,
			ListingID: &listing.ID,
		})
		return err
	})

	out, err := finish(w.log, "publish_resale", start, err)
	if !out.Success {
		return model.ListingOutcome{Outcome: out}, err
	}
	out.Message = "ticket published for resale"
	monitoring.LedgerWrite(string(model.KindResale), string(model.TxPending))
	w.log.Info("ticket listed", "listing_id", listing.ID, "ticket_id", ticketID, "seller_id", caller.UserID, "price", price.String())
	return model.ListingOutcome{Outcome: out, ListingID: listing.ID, TransactionID: txID}, nil
}

// Purchase buys a pending listing for caller.
//
// The transfer, the buyer's completed entry and the completion of the
// seller's pending entry commit as one unit of work.  A ledger failure
// after the transfer therefore rolls the transfer back as well, and the
// ledger never disagrees with ticket ownership.
func (w *ResaleWorkflow) Purchase(ctx context.Context, caller model.Caller, listingID string) (model.ResaleOutcome, error) {
	start := time.Now()
	var (
		listing  *model.Listing
		buyerTx  string
		sellerTx string
	)
	err := w.store.Atomic(ctx, func(tx ports.Tx) error {
		l, err := tx.GetListing(ctx, listingID)
		if err != nil {
			return err
		}
		if l.Status != model.ListingPending {
			return model.ErrListingNotPending
		}
		if l.SellerID == caller.UserID {
			return model.ErrSelfPurchase
		}

		if listing, err = w.tickets.Transfer(ctx, tx, l.TicketID, caller.UserID); err != nil {
			return err
		}
		if listing.ID != listingID {
			// the ticket moved to a newer listing since l was read
			return model.ErrListingNotPending
		}

		buyerTx, err = w.ledger.Append(ctx, tx, &model.Transaction{
			Kind:      model.KindResale,
			ActorID:   caller.UserID,
			EventID:   listing.EventID,
			Price:     listing.AskingPrice,
			Status:    model.TxCompleted,
			ListingID: &listing.ID,
		})
		if err != nil {
			return err
		}

		entries, err := tx.ListTransactionsByListing(ctx, listing.ID)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if e.ActorID == listing.SellerID && e.Status == model.TxPending {
				sellerTx = e.ID
				break
			}
		}
		if sellerTx == "" {
			return errSellerEntryMissing
		}
		return w.ledger.UpdateStatus(ctx, tx, sellerTx, model.TxCompleted)
	})

	out, err := finish(w.log, "purchase_resale", start, err)
	if !out.Success {
		return model.ResaleOutcome{Outcome: out}, err
	}
	out.Message = "resale purchase completed"
	// buyer leg appended, seller leg completed
	monitoring.LedgerWrite(string(model.KindResale), string(model.TxCompleted))
	monitoring.LedgerWrite(string(model.KindResale), string(model.TxCompleted))
	w.log.Info("resale settled", "listing_id", listing.ID, "ticket_id", listing.TicketID,
		"seller_id", listing.SellerID, "buyer_id", caller.UserID)

	evt := queue.ResaleSettledEvent{
		ListingID:           listing.ID,
		TicketID:            listing.TicketID,
		EventID:             listing.EventID,
		SellerID:            listing.SellerID,
		BuyerID:             caller.UserID,
		Price:               listing.AskingPrice.StringFixed(2),
		BuyerTransactionID:  buyerTx,
		SellerTransactionID: sellerTx,
		SettledAt:           listing.UpdatedAt.Format(time.RFC3339),
	}
	publish(ctx, w.log, queue.ResaleSettledQueue, func(ctx context.Context) error { return w.pub.ResaleSettled(ctx, evt) })

	return model.ResaleOutcome{Outcome: out, TicketID: listing.TicketID, TransactionID: buyerTx}, nil
}

// Withdraw takes the caller's pending listing off the market and cancels
// the seller's pending ledger entry.
func (w *ResaleWorkflow) Withdraw(ctx context.Context, caller model.Caller, listingID string) (model.Outcome, error) {
	start := time.Now()
	err := w.store.Atomic(ctx, func(tx ports.Tx) error {
		l, err := w.tickets.Withdraw(ctx, tx, listingID, caller.UserID)
		if err != nil {
			return err
		}
		entries, err := tx.ListTransactionsByListing(ctx, l.ID)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if e.ActorID == l.SellerID && e.Status == model.TxPending {
				return w.ledger.UpdateStatus(ctx, tx, e.ID, model.TxCancelled)
			}
		}
		return nil
	})

	out, err := finish(w.log, "withdraw_resale", start, err)
	if out.Success {
		out.Message = "resale listing withdrawn"
		monitoring.LedgerWrite(string(model.KindResale), string(model.TxCancelled))
		w.log.Info("listing withdrawn", "listing_id", listingID, "seller_id", caller.UserID)
	}
	return out, err
}

// ListPending returns every listing open for purchase, oldest first.
func (w *ResaleWorkflow) ListPending(ctx context.Context) ([]model.Listing, error) {
	var out []model.Listing
	err := w.store.Atomic(ctx, func(tx ports.Tx) error {
		var err error
		out, err = tx.ListPendingListings(ctx)
		return err
	})
	return out, err
}

// GetListing reads one listing.
func (w *ResaleWorkflow) GetListing(ctx context.Context, id string) (*model.Listing, error) {
	var l *model.Listing
	err := w.store.Atomic(ctx, func(tx ports.Tx) error {
		var err error
		l, err = tx.GetListing(ctx, id)
		return err
	})
	return l, err
}
