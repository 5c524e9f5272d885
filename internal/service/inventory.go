package service

import (
	"context"

	"github.com/iliyamo/ticket-marketplace/internal/model"
	"github.com/iliyamo/ticket-marketplace/internal/service/ports"
)

// Inventory owns event capacity.  Remaining capacity is derived from the
// ticket rows on every call; there is no counter to drift.
type Inventory struct {
	store ports.Store
}

func NewInventory(store ports.Store) *Inventory { return &Inventory{store: store} }

// Availability returns the committed remaining capacity of an event.
func (m *Inventory) Availability(ctx context.Context, eventID string) (int, error) {
	var left int
	err := m.store.Atomic(ctx, func(tx ports.Tx) error {
		ev, err := tx.GetEvent(ctx, eventID)
		if err != nil {
			return err
		}
		left, err = m.Remaining(ctx, tx, ev)
		return err
	})
	return left, err
}

// Remaining computes capacity minus issued tickets within tx.
func (m *Inventory) Remaining(ctx context.Context, tx ports.Tx, ev *model.Event) (int, error) {
	issued, err := tx.CountIssuedTickets(ctx, ev.ID)
	if err != nil {
		return 0, err
	}
	if left := ev.Capacity - issued; left > 0 {
		return left, nil
	}
	return 0, nil
}

// Reserve locks the event row and checks that quantity units are still
// free.  The reservation becomes a debit when the caller inserts the
// ticket rows in the same tx and commits; rolling back releases it.
func (m *Inventory) Reserve(ctx context.Context, tx ports.Tx, eventID string, quantity int) (*model.Event, error) {
	if quantity < 1 {
		return nil, model.ErrInvalidQuantity
	}
	ev, err := tx.LockEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if ev.Cancelled {
		return nil, model.ErrEventCancelled
	}
	left, err := m.Remaining(ctx, tx, ev)
	if err != nil {
		return nil, err
	}
	if left < quantity {
		return nil, &model.InsufficientInventoryError{Requested: quantity, Remaining: left}
	}
	return ev, nil
}

// Resize sets a new capacity on a locked event.  Capacity can never drop
// below the number of tickets already issued.
func (m *Inventory) Resize(ctx context.Context, tx ports.Tx, ev *model.Event, capacity int) error {
	if capacity < 1 {
		return model.ErrInvalidCapacity
	}
	issued, err := tx.CountIssuedTickets(ctx, ev.ID)
	if err != nil {
		return err
	}
	if capacity < issued {
		return model.ErrCapacityBelowIssued
	}
	ev.Capacity = capacity
	return nil
}
