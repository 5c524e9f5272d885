// Package memstore is an in-process implementation of the storage ports.
// Units of work are serialized by a single mutex and applied to a copy of
// the state, which replaces the live state only when the unit of work
// succeeds.  It backs the service tests, the load driver and
// STORE_DRIVER=memory.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/ticket-marketplace/internal/model"
	"github.com/iliyamo/ticket-marketplace/internal/service/ports"
)

type state struct {
	seq      int64
	order    map[string]int64
	events   map[string]model.Event
	tickets  map[string]model.Ticket
	sales    map[string]model.Sale
	listings map[string]model.Listing
	ledger   map[string]model.Transaction
}

func newState() *state {
	return &state{
		order:    map[string]int64{},
		events:   map[string]model.Event{},
		tickets:  map[string]model.Ticket{},
		sales:    map[string]model.Sale{},
		listings: map[string]model.Listing{},
		ledger:   map[string]model.Transaction{},
	}
}

func (s *state) clone() *state {
	c := &state{
		seq:      s.seq,
		order:    make(map[string]int64, len(s.order)),
		events:   make(map[string]model.Event, len(s.events)),
		tickets:  make(map[string]model.Ticket, len(s.tickets)),
		sales:    make(map[string]model.Sale, len(s.sales)),
		listings: make(map[string]model.Listing, len(s.listings)),
		ledger:   make(map[string]model.Transaction, len(s.ledger)),
	}
	for k, v := range s.order {
		c.order[k] = v
	}
	for k, v := range s.events {
		c.events[k] = v
	}
	for k, v := range s.tickets {
		c.tickets[k] = v
	}
	for k, v := range s.sales {
		c.sales[k] = v
	}
	for k, v := range s.listings {
		c.listings[k] = v
	}
	for k, v := range s.ledger {
		c.ledger[k] = v
	}
	return c
}

func (s *state) stamp(id string) {
	s.seq++
	s.order[id] = s.seq
}

// Store is safe for concurrent use.
type Store struct {
	mu     sync.Mutex
	data   *state
	faults map[string]*fault

	authMu sync.Mutex
	users  map[string]model.User
	tokens map[string]tokenRow
}

type tokenRow struct {
	userID  string
	expires time.Time
	revoked bool
}

var (
	_ ports.Store  = (*Store)(nil)
	_ ports.Users  = (*Store)(nil)
	_ ports.Tokens = (*Store)(nil)
)

// New returns an empty store.
func New() *Store {
	return &Store{
		data:   newState(),
		faults: map[string]*fault{},
		users:  map[string]model.User{},
		tokens: map[string]tokenRow{},
	}
}

// Atomic runs fn against a private copy of the state.  The copy replaces
// the live state only if fn succeeds and ctx is still live, so an
// abandoned request leaves nothing behind.
func (s *Store) Atomic(ctx context.Context, fn func(tx ports.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.data.clone()
	if err := fn(&tx{st: work, faults: s.faults}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.data = work
	return nil
}

// fault fails a Tx method once skip more calls have gone through.
type fault struct {
	err  error
	skip int
}

// InjectFault makes every later call of the named Tx method fail with err.
// A nil err clears the fault.
func (s *Store) InjectFault(op string, err error) {
	s.InjectFaultAfter(op, 0, err)
}

// InjectFaultAfter lets the next n calls of the named Tx method succeed and
// fails every call after them with err.  Calls are counted across units of
// work.
func (s *Store) InjectFaultAfter(op string, n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.faults, op)
		return
	}
	s.faults[op] = &fault{err: err, skip: n}
}

type tx struct {
	st     *state
	faults map[string]*fault
}

// fault is only called inside Atomic, which holds s.mu.
func (t *tx) fault(op string) error {
	f := t.faults[op]
	if f == nil {
		return nil
	}
	if f.skip > 0 {
		f.skip--
		return nil
	}
	return f.err
}

func (t *tx) byOrder(ids []string) {
	sort.Slice(ids, func(i, j int) bool { return t.st.order[ids[i]] < t.st.order[ids[j]] })
}

// ----- events -----

func (t *tx) InsertEvent(_ context.Context, ev *model.Event) error {
	if err := t.fault("InsertEvent"); err != nil {
		return err
	}
	t.st.events[ev.ID] = *ev
	t.st.stamp(ev.ID)
	return nil
}

func (t *tx) GetEvent(_ context.Context, id string) (*model.Event, error) {
	if err := t.fault("GetEvent"); err != nil {
		return nil, err
	}
	ev, ok := t.st.events[id]
	if !ok {
		return nil, model.ErrEventNotFound
	}
	return &ev, nil
}

func (t *tx) LockEvent(ctx context.Context, id string) (*model.Event, error) {
	if err := t.fault("LockEvent"); err != nil {
		return nil, err
	}
	return t.GetEvent(ctx, id)
}

func (t *tx) UpdateEvent(_ context.Context, ev *model.Event) error {
	if err := t.fault("UpdateEvent"); err != nil {
		return err
	}
	if _, ok := t.st.events[ev.ID]; !ok {
		return model.ErrEventNotFound
	}
	t.st.events[ev.ID] = *ev
	return nil
}

func (t *tx) ListEvents(_ context.Context, f model.EventFilter) ([]model.Event, error) {
	if err := t.fault("ListEvents"); err != nil {
		return nil, err
	}
	out := make([]model.Event, 0, len(t.st.events))
	for _, ev := range t.st.events {
		if f.Matches(ev) {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return t.st.order[out[i].ID] < t.st.order[out[j].ID]
	})
	return out, nil
}

// ----- tickets -----

func (t *tx) CountIssuedTickets(_ context.Context, eventID string) (int, error) {
	if err := t.fault("CountIssuedTickets"); err != nil {
		return 0, err
	}
	n := 0
	for _, tk := range t.st.tickets {
		if tk.EventID == eventID {
			n++
		}
	}
	return n, nil
}

func (t *tx) InsertTicket(_ context.Context, tk *model.Ticket) error {
	if err := t.fault("InsertTicket"); err != nil {
		return err
	}
	t.st.tickets[tk.ID] = *tk
	t.st.stamp(tk.ID)
	return nil
}

func (t *tx) GetTicket(_ context.Context, id string) (*model.Ticket, error) {
	if err := t.fault("GetTicket"); err != nil {
		return nil, err
	}
	tk, ok := t.st.tickets[id]
	if !ok {
		return nil, model.ErrTicketNotFound
	}
	return &tk, nil
}

func (t *tx) LockTicket(ctx context.Context, id string) (*model.Ticket, error) {
	if err := t.fault("LockTicket"); err != nil {
		return nil, err
	}
	return t.GetTicket(ctx, id)
}

func (t *tx) UpdateTicket(_ context.Context, tk *model.Ticket) error {
	if err := t.fault("UpdateTicket"); err != nil {
		return err
	}
	if _, ok := t.st.tickets[tk.ID]; !ok {
		return model.ErrTicketNotFound
	}
	t.st.tickets[tk.ID] = *tk
	return nil
}

func (t *tx) ListTicketsByOwner(_ context.Context, ownerID string) ([]model.Ticket, error) {
	if err := t.fault("ListTicketsByOwner"); err != nil {
		return nil, err
	}
	return t.tickets(func(tk model.Ticket) bool { return tk.OwnerID == ownerID }), nil
}

func (t *tx) ListTicketsBySale(_ context.Context, saleID string) ([]model.Ticket, error) {
	if err := t.fault("ListTicketsBySale"); err != nil {
		return nil, err
	}
	return t.tickets(func(tk model.Ticket) bool { return tk.SaleID == saleID }), nil
}

func (t *tx) tickets(keep func(model.Ticket) bool) []model.Ticket {
	var ids []string
	for id, tk := range t.st.tickets {
		if keep(tk) {
			ids = append(ids, id)
		}
	}
	t.byOrder(ids)
	out := make([]model.Ticket, 0, len(ids))
	for _, id := range ids {
		out = append(out, t.st.tickets[id])
	}
	return out
}

// ----- sales -----

func (t *tx) InsertSale(_ context.Context, sl *model.Sale) error {
	if err := t.fault("InsertSale"); err != nil {
		return err
	}
	t.st.sales[sl.ID] = *sl
	t.st.stamp(sl.ID)
	return nil
}

func (t *tx) GetSale(_ context.Context, id string) (*model.Sale, error) {
	if err := t.fault("GetSale"); err != nil {
		return nil, err
	}
	sl, ok := t.st.sales[id]
	if !ok {
		return nil, model.ErrSaleNotFound
	}
	return &sl, nil
}

// ----- listings -----

func (t *tx) InsertListing(_ context.Context, l *model.Listing) error {
	if err := t.fault("InsertListing"); err != nil {
		return err
	}
	if l.Status == model.ListingPending {
		for _, other := range t.st.listings {
			if other.TicketID == l.TicketID && other.Status == model.ListingPending {
				return model.ErrAlreadyListed
			}
		}
	}
	t.st.listings[l.ID] = *l
	t.st.stamp(l.ID)
	return nil
}

func (t *tx) GetListing(_ context.Context, id string) (*model.Listing, error) {
	if err := t.fault("GetListing"); err != nil {
		return nil, err
	}
	l, ok := t.st.listings[id]
	if !ok {
		return nil, model.ErrListingNotFound
	}
	return &l, nil
}

func (t *tx) LockListing(ctx context.Context, id string) (*model.Listing, error) {
	if err := t.fault("LockListing"); err != nil {
		return nil, err
	}
	return t.GetListing(ctx, id)
}

func (t *tx) UpdateListing(_ context.Context, l *model.Listing) error {
	if err := t.fault("UpdateListing"); err != nil {
		return err
	}
	if _, ok := t.st.listings[l.ID]; !ok {
		return model.ErrListingNotFound
	}
	t.st.listings[l.ID] = *l
	return nil
}

func (t *tx) PendingListingForTicket(_ context.Context, ticketID string) (*model.Listing, error) {
	if err := t.fault("PendingListingForTicket"); err != nil {
		return nil, err
	}
	for _, l := range t.st.listings {
		if l.TicketID == ticketID && l.Status == model.ListingPending {
			return &l, nil
		}
	}
	return nil, model.ErrListingNotFound
}

func (t *tx) ListPendingListings(_ context.Context) ([]model.Listing, error) {
	if err := t.fault("ListPendingListings"); err != nil {
		return nil, err
	}
	var ids []string
	for id, l := range t.st.listings {
		if l.Status == model.ListingPending {
			ids = append(ids, id)
		}
	}
	t.byOrder(ids)
	out := make([]model.Listing, 0, len(ids))
	for _, id := range ids {
		out = append(out, t.st.listings[id])
	}
	return out, nil
}

// ----- ledger -----

func (t *tx) InsertTransaction(_ context.Context, tr *model.Transaction) error {
	if err := t.fault("InsertTransaction"); err != nil {
		return err
	}
	t.st.ledger[tr.ID] = *tr
	t.st.stamp(tr.ID)
	return nil
}

func (t *tx) GetTransaction(_ context.Context, id string) (*model.Transaction, error) {
	if err := t.fault("GetTransaction"); err != nil {
		return nil, err
	}
	tr, ok := t.st.ledger[id]
	if !ok {
		return nil, model.ErrTransactionNotFound
	}
	return &tr, nil
}

func (t *tx) SetTransactionStatus(_ context.Context, id string, from, to model.TxStatus, at time.Time) (bool, error) {
	if err := t.fault("SetTransactionStatus"); err != nil {
		return false, err
	}
	tr, ok := t.st.ledger[id]
	if !ok || tr.Status != from {
		return false, nil
	}
	tr.Status = to
	tr.UpdatedAt = at
	t.st.ledger[id] = tr
	return true, nil
}

func (t *tx) ListTransactionsByActor(_ context.Context, actorID string) ([]model.Transaction, error) {
	if err := t.fault("ListTransactionsByActor"); err != nil {
		return nil, err
	}
	return t.transactions(func(tr model.Transaction) bool { return tr.ActorID == actorID }), nil
}

func (t *tx) ListTransactionsByListing(_ context.Context, listingID string) ([]model.Transaction, error) {
	if err := t.fault("ListTransactionsByListing"); err != nil {
		return nil, err
	}
	return t.transactions(func(tr model.Transaction) bool {
		return tr.ListingID != nil && *tr.ListingID == listingID
	}), nil
}

func (t *tx) ListTransactionsBySale(_ context.Context, saleID string) ([]model.Transaction, error) {
	if err := t.fault("ListTransactionsBySale"); err != nil {
		return nil, err
	}
	return t.transactions(func(tr model.Transaction) bool {
		return tr.SaleID != nil && *tr.SaleID == saleID
	}), nil
}

func (t *tx) transactions(keep func(model.Transaction) bool) []model.Transaction {
	var ids []string
	for id, tr := range t.st.ledger {
		if keep(tr) {
			ids = append(ids, id)
		}
	}
	t.byOrder(ids)
	out := make([]model.Transaction, 0, len(ids))
	for _, id := range ids {
		out = append(out, t.st.ledger[id])
	}
	return out
}

// ----- identity -----

func (s *Store) CreateUser(_ context.Context, u *model.User) error {
	s.authMu.Lock()
	defer s.authMu.Unlock()
	email := strings.ToLower(strings.TrimSpace(u.Email))
	for _, other := range s.users {
		if other.Email == email {
			return model.ErrEmailExists
		}
	}
	u.Email = email
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt, u.IsActive = now, now, true
	s.users[u.ID] = *u
	return nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	s.authMu.Lock()
	defer s.authMu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, model.ErrUserNotFound
}

func (s *Store) GetUserByID(_ context.Context, id string) (*model.User, error) {
	s.authMu.Lock()
	defer s.authMu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	return &u, nil
}

func (s *Store) StoreRefresh(_ context.Context, userID, tokenHash string, exp time.Time) error {
	s.authMu.Lock()
	defer s.authMu.Unlock()
	s.tokens[tokenHash] = tokenRow{userID: userID, expires: exp}
	return nil
}

func (s *Store) ValidateRefresh(_ context.Context, tokenHash string) (string, error) {
	s.authMu.Lock()
	defer s.authMu.Unlock()
	row, ok := s.tokens[tokenHash]
	if !ok || row.revoked || time.Now().UTC().After(row.expires) {
		return "", model.ErrUserNotFound
	}
	return row.userID, nil
}

func (s *Store) RevokeByHash(_ context.Context, tokenHash string) error {
	s.authMu.Lock()
	defer s.authMu.Unlock()
	if row, ok := s.tokens[tokenHash]; ok {
		row.revoked = true
		s.tokens[tokenHash] = row
	}
	return nil
}

func (s *Store) RevokeAllForUser(_ context.Context, userID string) error {
	s.authMu.Lock()
	defer s.authMu.Unlock()
	for h, row := range s.tokens {
		if row.userID == userID {
			row.revoked = true
			s.tokens[h] = row
		}
	}
	return nil
}
