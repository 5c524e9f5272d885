package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/ticket-marketplace/internal/model"
	"github.com/iliyamo/ticket-marketplace/internal/queue"
	"github.com/iliyamo/ticket-marketplace/internal/repository/memstore"
)

var (
	organizer = model.Caller{UserID: "org-1", Role: model.RoleOrganizer}
	alice     = model.Caller{UserID: "alice", Role: model.RoleBuyer}
	bob       = model.Caller{UserID: "bob", Role: model.RoleBuyer}
	carol     = model.Caller{UserID: "carol", Role: model.RoleBuyer}
)

type recordingPublisher struct {
	mu      sync.Mutex
	sold    []queue.TicketsSoldEvent
	settled []queue.ResaleSettledEvent
}

func (p *recordingPublisher) TicketsSold(_ context.Context, ev queue.TicketsSoldEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sold = append(p.sold, ev)
	return nil
}

func (p *recordingPublisher) ResaleSettled(_ context.Context, ev queue.ResaleSettledEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.settled = append(p.settled, ev)
	return nil
}

func (p *recordingPublisher) counts() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sold), len(p.settled)
}

type fixture struct {
	store   *memstore.Store
	inv     *Inventory
	tickets *Tickets
	ledger  *Ledger
	sales   *SaleWorkflow
	resale  *ResaleWorkflow
	events  *EventService
	pub     *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memstore.New()
	pub := &recordingPublisher{}
	inv := NewInventory(store)
	tickets := NewTickets(store, log)
	ledger := NewLedger(store)
	return &fixture{
		store:   store,
		inv:     inv,
		tickets: tickets,
		ledger:  ledger,
		sales:   NewSaleWorkflow(store, inv, tickets, ledger, pub, log),
		resale:  NewResaleWorkflow(store, tickets, ledger, pub, log),
		events:  NewEventService(store, inv, log),
		pub:     pub,
	}
}

func (f *fixture) newEvent(t *testing.T, capacity int, price string) *model.Event {
	t.Helper()
	ev, err := f.events.Create(context.Background(), organizer, model.Event{
		Name:     "Concert",
		Date:     time.Date(2027, 5, 1, 20, 0, 0, 0, time.UTC),
		Place:    "Arena",
		Price:    decimal.RequireFromString(price),
		Capacity: capacity,
	})
	require.NoError(t, err)
	return ev
}

// buy purchases quantity tickets and requires success.
func (f *fixture) buy(t *testing.T, who model.Caller, eventID string, quantity int) model.PurchaseOutcome {
	t.Helper()
	out, err := f.sales.Purchase(context.Background(), who, eventID, quantity)
	require.NoError(t, err)
	require.True(t, out.Success, out.Message)
	return out
}

// list publishes a ticket for resale and requires success.
func (f *fixture) list(t *testing.T, who model.Caller, ticketID, price string) model.ListingOutcome {
	t.Helper()
	out, err := f.resale.Publish(context.Background(), who, ticketID, decimal.RequireFromString(price))
	require.NoError(t, err)
	require.True(t, out.Success, out.Message)
	return out
}

func (f *fixture) ticket(t *testing.T, id string) *model.Ticket {
	t.Helper()
	tk, err := f.tickets.Get(context.Background(), id)
	require.NoError(t, err)
	return tk
}
