package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/iliyamo/ticket-marketplace/internal/model"
	"github.com/iliyamo/ticket-marketplace/internal/service/ports"
)

// EventService is the organizer-facing administration of events.
// Capacity changes are delegated to Inventory.
type EventService struct {
	store     ports.Store
	inventory *Inventory
	log       *slog.Logger
}

func NewEventService(store ports.Store, inv *Inventory, log *slog.Logger) *EventService {
	return &EventService{store: store, inventory: inv, log: orDefault(log)}
}

func validateEvent(ev *model.Event) error {
	ev.Name = strings.TrimSpace(ev.Name)
	ev.Place = strings.TrimSpace(ev.Place)
	if ev.Name == "" || ev.Place == "" || ev.Date.IsZero() || ev.Price.IsNegative() || !model.IsCentPrice(ev.Price) {
		return model.ErrInvalidEvent
	}
	if ev.Capacity < 1 {
		return model.ErrInvalidCapacity
	}
	return nil
}

// Create stores a new event owned by caller.
func (s *EventService) Create(ctx context.Context, caller model.Caller, in model.Event) (*model.Event, error) {
	if !caller.IsOrganizer() {
		return nil, model.ErrNotOrganizer
	}
	ev := in
	ev.ID = newID()
	ev.OrganizerID = caller.UserID
	ev.Date = ev.Date.UTC()
	ev.Cancelled = false
	ev.CreatedAt = now()
	ev.UpdatedAt = ev.CreatedAt
	if err := validateEvent(&ev); err != nil {
		return nil, err
	}
	if err := s.store.Atomic(ctx, func(tx ports.Tx) error { return tx.InsertEvent(ctx, &ev) }); err != nil {
		return nil, err
	}
	s.log.Info("event created", "event_id", ev.ID, "organizer_id", ev.OrganizerID, "capacity", ev.Capacity)
	return &ev, nil
}

// Update applies patch to an event the caller organizes.  Cancelled events
// are frozen.
func (s *EventService) Update(ctx context.Context, caller model.Caller, id string, patch model.EventPatch) (*model.Event, error) {
	var ev *model.Event
	err := s.store.Atomic(ctx, func(tx ports.Tx) error {
		var err error
		if ev, err = s.lockOwned(ctx, tx, caller, id); err != nil {
			return err
		}
		if patch.Name != nil {
			ev.Name = *patch.Name
		}
		if patch.Description != nil {
			ev.Description = *patch.Description
		}
		if patch.Date != nil {
			ev.Date = patch.Date.UTC()
		}
		if patch.Place != nil {
			ev.Place = *patch.Place
		}
		if patch.Price != nil {
			ev.Price = *patch.Price
		}
		if patch.Capacity != nil {
			if err := s.inventory.Resize(ctx, tx, ev, *patch.Capacity); err != nil {
				return err
			}
		}
		if err := validateEvent(ev); err != nil {
			return err
		}
		ev.UpdatedAt = now()
		return tx.UpdateEvent(ctx, ev)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("event updated", "event_id", id, "organizer_id", caller.UserID)
	return ev, nil
}

// Cancel marks an event cancelled.  It is terminal: purchases are refused
// from then on and a second Cancel reports ErrEventCancelled.
func (s *EventService) Cancel(ctx context.Context, caller model.Caller, id string) (*model.Event, error) {
	var ev *model.Event
	err := s.store.Atomic(ctx, func(tx ports.Tx) error {
		var err error
		if ev, err = s.lockOwned(ctx, tx, caller, id); err != nil {
			return err
		}
		ev.Cancelled = true
		ev.UpdatedAt = now()
		return tx.UpdateEvent(ctx, ev)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("event cancelled", "event_id", id, "organizer_id", caller.UserID)
	return ev, nil
}

func (s *EventService) lockOwned(ctx context.Context, tx ports.Tx, caller model.Caller, id string) (*model.Event, error) {
	ev, err := tx.LockEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if ev.OrganizerID != caller.UserID {
		return nil, model.ErrNotOrganizer
	}
	if ev.Cancelled {
		return nil, model.ErrEventCancelled
	}
	return ev, nil
}

func (s *EventService) Get(ctx context.Context, id string) (*model.Event, error) {
	var ev *model.Event
	err := s.store.Atomic(ctx, func(tx ports.Tx) error {
		var err error
		ev, err = tx.GetEvent(ctx, id)
		return err
	})
	return ev, err
}

func (s *EventService) List(ctx context.Context, f model.EventFilter) ([]model.Event, error) {
	var out []model.Event
	err := s.store.Atomic(ctx, func(tx ports.Tx) error {
		var err error
		out, err = tx.ListEvents(ctx, f)
		return err
	})
	return out, err
}
