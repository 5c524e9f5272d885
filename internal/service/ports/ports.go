// Package ports declares the storage boundary the services depend on.
// The MySQL repository and the in-memory store both implement it.
package ports

import (
	"context"
	"time"

	"github.com/iliyamo/ticket-marketplace/internal/model"
)

// Store runs units of work.  Every read and write performed through the
// Tx handed to fn commits together when fn returns nil, or not at all.
// Lock* methods take an exclusive row lock that is held until the unit of
// work ends, which is how concurrent writers to the same event, ticket
// or listing are serialized.
type Store interface {
	Atomic(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the set of persistence operations available inside a unit of
// work.  Lookups of a missing row return the matching model.Err*NotFound
// sentinel.
type Tx interface {
	EventTx
	TicketTx
	SaleTx
	ListingTx
	LedgerTx
}

type EventTx interface {
	InsertEvent(ctx context.Context, ev *model.Event) error
	GetEvent(ctx context.Context, id string) (*model.Event, error)
	LockEvent(ctx context.Context, id string) (*model.Event, error)
	UpdateEvent(ctx context.Context, ev *model.Event) error
	ListEvents(ctx context.Context, f model.EventFilter) ([]model.Event, error)
}

type TicketTx interface {
	// CountIssuedTickets counts every ticket row of the event regardless
	// of state.
	CountIssuedTickets(ctx context.Context, eventID string) (int, error)
	InsertTicket(ctx context.Context, t *model.Ticket) error
	GetTicket(ctx context.Context, id string) (*model.Ticket, error)
	LockTicket(ctx context.Context, id string) (*model.Ticket, error)
	UpdateTicket(ctx context.Context, t *model.Ticket) error
	ListTicketsByOwner(ctx context.Context, ownerID string) ([]model.Ticket, error)
	ListTicketsBySale(ctx context.Context, saleID string) ([]model.Ticket, error)
}

type SaleTx interface {
	InsertSale(ctx context.Context, s *model.Sale) error
	GetSale(ctx context.Context, id string) (*model.Sale, error)
}

type ListingTx interface {
	InsertListing(ctx context.Context, l *model.Listing) error
	GetListing(ctx context.Context, id string) (*model.Listing, error)
	LockListing(ctx context.Context, id string) (*model.Listing, error)
	UpdateListing(ctx context.Context, l *model.Listing) error
	// PendingListingForTicket returns model.ErrListingNotFound when the
	// ticket has no pending listing.
	PendingListingForTicket(ctx context.Context, ticketID string) (*model.Listing, error)
	ListPendingListings(ctx context.Context) ([]model.Listing, error)
}

type LedgerTx interface {
	InsertTransaction(ctx context.Context, t *model.Transaction) error
	GetTransaction(ctx context.Context, id string) (*model.Transaction, error)
	// SetTransactionStatus changes the status only if it still equals
	// from.  It reports whether a row was changed.
	SetTransactionStatus(ctx context.Context, id string, from, to model.TxStatus, at time.Time) (bool, error)
	ListTransactionsByActor(ctx context.Context, actorID string) ([]model.Transaction, error)
	ListTransactionsByListing(ctx context.Context, listingID string) ([]model.Transaction, error)
	ListTransactionsBySale(ctx context.Context, saleID string) ([]model.Transaction, error)
}

// Users is the identity store used by the auth endpoints.
type Users interface {
	CreateUser(ctx context.Context, u *model.User) error
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

// Tokens persists hashed refresh tokens.
type Tokens interface {
	StoreRefresh(ctx context.Context, userID, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (string, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID string) error
}
