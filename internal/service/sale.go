package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/ticket-marketplace/internal/model"
	"github.com/iliyamo/ticket-marketplace/internal/monitoring"
	"github.com/iliyamo/ticket-marketplace/internal/queue"
	"github.com/iliyamo/ticket-marketplace/internal/service/ports"
)

// SaleWorkflow sells primary tickets.  A purchase reserves capacity,
// records the sale, issues the tickets and appends the ledger entry in a
// single unit of work: either all of it is visible or none of it is.
type SaleWorkflow struct {
	store     ports.Store
	inventory *Inventory
	tickets   *Tickets
	ledger    *Ledger
	pub       EventPublisher
	log       *slog.Logger
}

func NewSaleWorkflow(store ports.Store, inv *Inventory, tickets *Tickets, ledger *Ledger, pub EventPublisher, log *slog.Logger) *SaleWorkflow {
	if pub == nil {
		pub = nopPublisher{}
	}
	return &SaleWorkflow{store: store, inventory: inv, tickets: tickets, ledger: ledger, pub: pub, log: orDefault(log)}
}

// Purchase buys quantity tickets for eventID on behalf of caller.
func (w *SaleWorkflow) Purchase(ctx context.Context, caller model.Caller, eventID string, quantity int) (model.PurchaseOutcome, error) {
	start := time.Now()
	var (
		ev   *model.Event
		sale *model.Sale
		ids  []string
		txID string
	)
	var err error
	if quantity < 1 {
		err = model.ErrInvalidQuantity
	} else {
		err = w.store.Atomic(ctx, func(tx ports.Tx) error {
			current, err := tx.GetEvent(ctx, eventID)
			if err != nil {
				return err
			}
			if current.Cancelled {
				return model.ErrEventCancelled
			}
			left, err := w.inventory.Remaining(ctx, tx, current)
			if err != nil {
				return err
			}
			if left < quantity {
				return &model.InsufficientInventoryError{Requested: quantity, Remaining: left}
			}

			// authoritative check, under the event row lock
			if ev, err = w.inventory.Reserve(ctx, tx, eventID, quantity); err != nil {
				return err
			}
			sale = &model.Sale{
				ID:        newID(),
				EventID:   ev.ID,
				BuyerID:   caller.UserID,
				Quantity:  quantity,
				UnitPrice: ev.Price,
				Total:     ev.Price.Mul(decimal.NewFromInt(int64(quantity))),
				CreatedAt: now(),
			}
			if err := tx.InsertSale(ctx, sale); err != nil {
				return err
			}
			ids = make([]string, 0, quantity)
			for i := 0; i < quantity; i++ {
				tk, err := w.tickets.Issue(ctx, tx, sale, ev)
				if err != nil {
					return err
				}
				ids = append(ids, tk.ID)
			}
			txID, err = w.ledger.Append(ctx, tx, &model.Transaction{
				Kind:    model.KindSale,
				ActorID: caller.UserID,
				EventID: ev.ID,
				Price:   sale.Total,
				Status:  model.TxCompleted,
				SaleID:  &sale.ID,
			})
			return err
		})
	}

	out, err := finish(w.log, "purchase", start, err)
	if !out.Success {
		return model.PurchaseOutcome{Outcome: out}, err
	}

	out.Message = fmt.Sprintf("purchase completed: %d tickets issued", quantity)
	monitoring.TicketsIssued(quantity)
	monitoring.LedgerWrite(string(model.KindSale), string(model.TxCompleted))
	w.log.Info("tickets sold", "sale_id", sale.ID, "event_id", ev.ID, "buyer_id", caller.UserID, "quantity", quantity)

	evt := queue.TicketsSoldEvent{
		SaleID:        sale.ID,
		TransactionID: txID,
		EventID:       ev.ID,
		EventName:     ev.Name,
		BuyerID:       caller.UserID,
		TicketIDs:     ids,
		Quantity:      quantity,
		Total:         sale.Total.StringFixed(2),
		SoldAt:        sale.CreatedAt.Format(time.RFC3339),
	}
	publish(ctx, w.log, queue.TicketsSoldQueue, func(ctx context.Context) error { return w.pub.TicketsSold(ctx, evt) })

	return model.PurchaseOutcome{Outcome: out, SaleID: sale.ID, TicketIDs: ids, TransactionID: txID}, nil
}

// Cancel voids a primary sale.  Every ticket of the sale must still be
// valid and held by the buyer; they become cancelled and the sale's
// ledger entry moves to cancelled.  Capacity is not returned: the ticket
// rows stay as the audit trail.
func (w *SaleWorkflow) Cancel(ctx context.Context, caller model.Caller, saleID string) (model.Outcome, error) {
	start := time.Now()
	var cancelled int
	err := w.store.Atomic(ctx, func(tx ports.Tx) error {
		sale, err := tx.GetSale(ctx, saleID)
		if err != nil {
			return err
		}
		if sale.BuyerID != caller.UserID {
			return model.ErrNotSaleBuyer
		}
		entries, err := tx.ListTransactionsBySale(ctx, saleID)
		if err != nil {
			return err
		}
		var entry *model.Transaction
		for i := range entries {
			if entries[i].Kind == model.KindSale {
				entry = &entries[i]
				break
			}
		}
		if entry == nil {
			return model.ErrTransactionNotFound
		}
		if entry.Status == model.TxCancelled {
			return model.ErrSaleNotCancellable
		}

		tickets, err := tx.ListTicketsBySale(ctx, saleID)
		if err != nil {
			return err
		}
		for _, tk := range tickets {
			if tk.OwnerID != sale.BuyerID || tk.State != model.TicketValid {
				return model.ErrSaleNotCancellable
			}
		}
		for i := range tickets {
			if err := w.tickets.Cancel(ctx, tx, &tickets[i]); err != nil {
				return err
			}
		}
		cancelled = len(tickets)
		return w.ledger.UpdateStatus(ctx, tx, entry.ID, model.TxCancelled)
	})

	out, err := finish(w.log, "cancel_sale", start, err)
	if out.Success {
		out.Message = fmt.Sprintf("sale cancelled: %d tickets voided", cancelled)
		monitoring.LedgerWrite(string(model.KindSale), string(model.TxCancelled))
		w.log.Info("sale cancelled", "sale_id", saleID, "buyer_id", caller.UserID, "tickets", cancelled)
	}
	return out, err
}
