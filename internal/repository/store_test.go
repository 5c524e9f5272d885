package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/ticket-marketplace/internal/model"
	"github.com/iliyamo/ticket-marketplace/internal/service/ports"
)

var (
	evDate = time.Date(2027, 5, 1, 20, 0, 0, 0, time.UTC)
	stamp  = time.Date(2026, 10, 1, 9, 30, 0, 0, time.UTC)
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db), mock
}

func columns(list string) []string { return strings.Split(list, ", ") }

func eventRows() *sqlmock.Rows {
	return sqlmock.NewRows(columns(eventColumns)).
		AddRow("ev-1", "org-1", "Concert", "", evDate, "Arena", "10.00", 2, false, stamp, stamp)
}

func TestAtomicLocksEventBeforeCounting(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM events WHERE id = \? FOR UPDATE`).
		WithArgs("ev-1").
		WillReturnRows(eventRows())
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM tickets WHERE event_id = \?`).
		WithArgs("ev-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectCommit()

	var (
		ev     *model.Event
		issued int
	)
	err := s.Atomic(context.Background(), func(tx ports.Tx) error {
		var err error
		if ev, err = tx.LockEvent(context.Background(), "ev-1"); err != nil {
			return err
		}
		issued, err = tx.CountIssuedTickets(context.Background(), ev.ID)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 2, ev.Capacity)
	assert.True(t, ev.Price.Equal(decimal.RequireFromString("10")))
	assert.Equal(t, 1, issued)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAtomicRollsBackWhenWorkFails(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO tickets`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := s.Atomic(context.Background(), func(tx ports.Tx) error {
		if err := tx.InsertTicket(context.Background(), &model.Ticket{ID: "tk-1", State: model.TicketValid}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAtomicReportsBeginAndCommitFailures(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

	err := s.Atomic(context.Background(), func(ports.Tx) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "begin tx")

	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(errors.New("deadlock"))
	err = s.Atomic(context.Background(), func(ports.Tx) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "commit")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// beginRecorder is a driver that only remembers the options of the last
// BeginTx call and refuses it.
type beginRecorder struct{ opts *driver.TxOptions }

var errRefused = errors.New("refused")

func (r *beginRecorder) Connect(context.Context) (driver.Conn, error) { return r, nil }
func (r *beginRecorder) Driver() driver.Driver { return nil }
func (r *beginRecorder) Prepare(string) (driver.Stmt, error) { return nil, errRefused }
func (r *beginRecorder) Close() error { return nil }
func (r *beginRecorder) Begin() (driver.Tx, error) { return nil, errRefused }

func (r *beginRecorder) BeginTx(_ context.Context, opts driver.TxOptions) (driver.Tx, error) {
	r.opts = &opts
	return nil, errRefused
}

func TestAtomicUsesReadCommitted(t *testing.T) {
	rec := &beginRecorder{}
	db := sql.OpenDB(rec)
	defer db.Close()

	err := NewStore(db).Atomic(context.Background(), func(ports.Tx) error { return nil })
	assert.ErrorIs(t, err, errRefused)
	require.NotNil(t, rec.opts)
	assert.Equal(t, driver.IsolationLevel(sql.LevelReadCommitted), rec.opts.Isolation)
	assert.False(t, rec.opts.ReadOnly)
}

func TestLockEventMissingRow(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM events WHERE id = \? FOR UPDATE`).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows(columns(eventColumns)))
	mock.ExpectRollback()

	err := s.Atomic(context.Background(), func(tx ports.Tx) error {
		_, err := tx.LockEvent(context.Background(), "nope")
		return err
	})
	assert.ErrorIs(t, err, model.ErrEventNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateEventChecksExistenceWhenNothingChanged(t *testing.T) {
	s, mock := newMockStore(t)
	ev := &model.Event{ID: "ev-1", Name: "Concert", Place: "Arena", Date: evDate, Price: decimal.NewFromInt(10), Capacity: 2}

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE events SET .+ WHERE id = \?`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`FROM events WHERE id = \?$`).WithArgs("ev-1").WillReturnRows(eventRows())
	mock.ExpectCommit()
	err := s.Atomic(context.Background(), func(tx ports.Tx) error { return tx.UpdateEvent(context.Background(), ev) })
	assert.NoError(t, err, "an unchanged row is not an error")

	ev.ID = "gone"
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE events SET .+ WHERE id = \?`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`FROM events WHERE id = \?$`).WithArgs("gone").WillReturnRows(sqlmock.NewRows(columns(eventColumns)))
	mock.ExpectRollback()
	err = s.Atomic(context.Background(), func(tx ports.Tx) error { return tx.UpdateEvent(context.Background(), ev) })
	assert.ErrorIs(t, err, model.ErrEventNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListEventsBuildsWhereClause(t *testing.T) {
	s, mock := newMockStore(t)
	day := time.Date(2027, 5, 1, 0, 0, 0, 0, time.UTC)
	// 23:30 in UTC-3 is already the next UTC day.
	local := time.Date(2027, 4, 30, 23, 30, 0, 0, time.FixedZone("UTC-3", -3*3600))
	minPrice, maxPrice := decimal.NewFromInt(5), decimal.NewFromInt(50)

	full := `SELECT ` + eventColumns + ` FROM events WHERE event_date >= ? AND event_date < ? AND place = ?` +
		` AND price >= ? AND price <= ? AND organizer_id = ? ORDER BY event_date ASC, created_at ASC`
	bare := `SELECT ` + eventColumns + ` FROM events ORDER BY event_date ASC, created_at ASC`

	mock.ExpectBegin()
	mock.ExpectQuery("^"+regexp.QuoteMeta(full)+"$").
		WithArgs(day, day.AddDate(0, 0, 1), "Arena", minPrice, maxPrice, "org-1").
		WillReturnRows(eventRows())
	mock.ExpectQuery("^" + regexp.QuoteMeta(bare) + "$").
		WillReturnRows(sqlmock.NewRows(columns(eventColumns)))
	mock.ExpectCommit()

	var filtered, all []model.Event
	err := s.Atomic(context.Background(), func(tx ports.Tx) error {
		var err error
		filtered, err = tx.ListEvents(context.Background(), model.EventFilter{
			Date: &local, Place: "Arena", MinPrice: &minPrice, MaxPrice: &maxPrice, OrganizerID: "org-1",
		})
		if err != nil {
			return err
		}
		all, err = tx.ListEvents(context.Background(), model.EventFilter{})
		return err
	})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "ev-1", filtered[0].ID)
	assert.NotNil(t, all)
	assert.Empty(t, all)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketNullableColumnsScan(t *testing.T) {
	s, mock := newMockStore(t)
	rows := sqlmock.NewRows(columns(ticketColumns)).
		AddRow("tk-1", "sale-1", "ev-1", "alice", stamp, "10.00", "valid", nil, nil, "TICKET-A-1").
		AddRow("tk-2", "sale-1", "ev-1", "alice", stamp, "10.00", "listed", "15.50", "ls-1", "TICKET-A-2")

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM tickets WHERE owner_id = \?`).WithArgs("alice").WillReturnRows(rows)
	mock.ExpectCommit()

	var got []model.Ticket
	err := s.Atomic(context.Background(), func(tx ports.Tx) error {
		var err error
		got, err = tx.ListTicketsByOwner(context.Background(), "alice")
		return err
	})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, model.TicketValid, got[0].State)
	assert.False(t, got[0].ResalePrice.Valid)
	assert.Nil(t, got[0].ListingID)

	assert.Equal(t, model.TicketListed, got[1].State)
	require.True(t, got[1].ResalePrice.Valid)
	assert.True(t, got[1].ResalePrice.Decimal.Equal(decimal.RequireFromString("15.5")))
	require.NotNil(t, got[1].ListingID)
	assert.Equal(t, "ls-1", *got[1].ListingID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPendingListingLookupLocks(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM tickets WHERE id = \? FOR UPDATE`).
		WithArgs("tk-1").
		WillReturnRows(sqlmock.NewRows(columns(ticketColumns)).
			AddRow("tk-1", "sale-1", "ev-1", "alice", stamp, "10.00", "valid", nil, nil, "TICKET-A-1"))
	mock.ExpectQuery(`FROM listings WHERE ticket_id = \? AND status = 'pending' LIMIT 1 FOR UPDATE`).
		WithArgs("tk-1").
		WillReturnRows(sqlmock.NewRows(columns(listingColumns)).
			AddRow("ls-1", "tk-1", "ev-1", "alice", "10.00", "15.00", "pending", nil, stamp, stamp))
	mock.ExpectCommit()

	var l *model.Listing
	err := s.Atomic(context.Background(), func(tx ports.Tx) error {
		tk, err := tx.LockTicket(context.Background(), "tk-1")
		if err != nil {
			return err
		}
		l, err = tx.PendingListingForTicket(context.Background(), tk.ID)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, model.ListingPending, l.Status)
	assert.Nil(t, l.BuyerID)
	assert.True(t, l.AskingPrice.Equal(decimal.NewFromInt(15)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertListingDuplicateKeyIsAlreadyListed(t *testing.T) {
	s, mock := newMockStore(t)
	l := &model.Listing{ID: "ls-2", TicketID: "tk-1", Status: model.ListingPending}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO listings`).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'tk-1' for key 'uq_listings_pending_ticket'"})
	mock.ExpectRollback()
	err := s.Atomic(context.Background(), func(tx ports.Tx) error { return tx.InsertListing(context.Background(), l) })
	assert.ErrorIs(t, err, model.ErrAlreadyListed)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO listings`).
		WillReturnError(&mysql.MySQLError{Number: 1452, Message: "Cannot add or update a child row"})
	mock.ExpectRollback()
	err = s.Atomic(context.Background(), func(tx ports.Tx) error { return tx.InsertListing(context.Background(), l) })
	require.Error(t, err)
	assert.NotErrorIs(t, err, model.ErrAlreadyListed)
	assert.Contains(t, err.Error(), "insert listing")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetTransactionStatusIsCompareAndSet(t *testing.T) {
	s, mock := newMockStore(t)
	q := `UPDATE transactions SET status = \?, updated_at = \? WHERE id = \? AND status = \?`

	mock.ExpectBegin()
	mock.ExpectExec(q).
		WithArgs(model.TxCompleted, stamp, "tx-1", model.TxPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).
		WithArgs(model.TxCompleted, stamp, "tx-1", model.TxPending).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	var first, second bool
	err := s.Atomic(context.Background(), func(tx ports.Tx) error {
		var err error
		if first, err = tx.SetTransactionStatus(context.Background(), "tx-1", model.TxPending, model.TxCompleted, stamp); err != nil {
			return err
		}
		second, err = tx.SetTransactionStatus(context.Background(), "tx-1", model.TxPending, model.TxCompleted, stamp)
		return err
	})
	require.NoError(t, err)
	assert.True(t, first)
	assert.False(t, second, "status already moved on")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsDuplicate(t *testing.T) {
	assert.True(t, isDuplicate(&mysql.MySQLError{Number: 1062}))
	assert.True(t, isDuplicate(errors.Join(errors.New("insert user"), &mysql.MySQLError{Number: 1062})))
	assert.False(t, isDuplicate(&mysql.MySQLError{Number: 1213}))
	assert.False(t, isDuplicate(errors.New("1062")))
	assert.False(t, isDuplicate(nil))
}
