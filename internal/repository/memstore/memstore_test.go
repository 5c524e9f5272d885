package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/ticket-marketplace/internal/model"
	"github.com/iliyamo/ticket-marketplace/internal/service/ports"
)

func seedEvent(t *testing.T, s *Store, id string) {
	t.Helper()
	require.NoError(t, s.Atomic(context.Background(), func(tx ports.Tx) error {
		return tx.InsertEvent(context.Background(), &model.Event{ID: id, Name: "E", Capacity: 5, Price: decimal.NewFromInt(1)})
	}))
}

func TestAtomicDiscardsFailedWork(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedEvent(t, s, "ev-1")

	boom := errors.New("boom")
	err := s.Atomic(ctx, func(tx ports.Tx) error {
		if err := tx.InsertTicket(ctx, &model.Ticket{ID: "tk-1", EventID: "ev-1"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	require.NoError(t, s.Atomic(ctx, func(tx ports.Tx) error {
		n, err := tx.CountIssuedTickets(ctx, "ev-1")
		assert.Equal(t, 0, n)
		_, getErr := tx.GetTicket(ctx, "tk-1")
		assert.ErrorIs(t, getErr, model.ErrTicketNotFound)
		return err
	}))
}

func TestAtomicDiscardsWorkOfCancelledContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())

	err := s.Atomic(ctx, func(tx ports.Tx) error {
		cancel()
		return tx.InsertEvent(ctx, &model.Event{ID: "ev-1"})
	})
	assert.ErrorIs(t, err, context.Canceled)

	err = s.Atomic(context.Background(), func(tx ports.Tx) error {
		_, err := tx.GetEvent(context.Background(), "ev-1")
		return err
	})
	assert.ErrorIs(t, err, model.ErrEventNotFound)
}

func TestInjectFault(t *testing.T) {
	s := New()
	ctx := context.Background()
	down := errors.New("down")
	s.InjectFault("GetEvent", down)

	err := s.Atomic(ctx, func(tx ports.Tx) error {
		_, err := tx.GetEvent(ctx, "x")
		return err
	})
	assert.ErrorIs(t, err, down)

	s.InjectFault("GetEvent", nil)
	err = s.Atomic(ctx, func(tx ports.Tx) error {
		_, err := tx.GetEvent(ctx, "x")
		return err
	})
	assert.ErrorIs(t, err, model.ErrEventNotFound)
}

func TestInjectFaultAfter(t *testing.T) {
	s := New()
	ctx := context.Background()
	full := errors.New("full")
	s.InjectFaultAfter("InsertEvent", 2, full)

	var inserted []string
	err := s.Atomic(ctx, func(tx ports.Tx) error {
		for _, id := range []string{"ev-1", "ev-2", "ev-3"} {
			if err := tx.InsertEvent(ctx, &model.Event{ID: id}); err != nil {
				return err
			}
			inserted = append(inserted, id)
		}
		return nil
	})
	assert.ErrorIs(t, err, full)
	assert.Equal(t, []string{"ev-1", "ev-2"}, inserted)

	err = s.Atomic(ctx, func(tx ports.Tx) error {
		_, err := tx.GetEvent(ctx, "ev-1")
		return err
	})
	assert.ErrorIs(t, err, model.ErrEventNotFound, "partial work is discarded")

	err = s.Atomic(ctx, func(tx ports.Tx) error { return tx.InsertEvent(ctx, &model.Event{ID: "ev-4"}) })
	assert.ErrorIs(t, err, full, "the skip budget is spent")
}

func TestOnePendingListingPerTicket(t *testing.T) {
	s := New()
	ctx := context.Background()
	insert := func(id string, status model.ListingStatus) error {
		return s.Atomic(ctx, func(tx ports.Tx) error {
			return tx.InsertListing(ctx, &model.Listing{ID: id, TicketID: "tk-1", Status: status})
		})
	}
	require.NoError(t, insert("l-1", model.ListingWithdrawn))
	require.NoError(t, insert("l-2", model.ListingPending))
	assert.ErrorIs(t, insert("l-3", model.ListingPending), model.ErrAlreadyListed)

	require.NoError(t, s.Atomic(ctx, func(tx ports.Tx) error {
		l, err := tx.PendingListingForTicket(ctx, "tk-1")
		if err != nil {
			return err
		}
		assert.Equal(t, "l-2", l.ID)
		pending, err := tx.ListPendingListings(ctx)
		assert.Len(t, pending, 1)
		return err
	}))
}

func TestSetTransactionStatusComparesAndSwaps(t *testing.T) {
	s := New()
	ctx := context.Background()
	at := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.Atomic(ctx, func(tx ports.Tx) error {
		if err := tx.InsertTransaction(ctx, &model.Transaction{ID: "t-1", Status: model.TxPending}); err != nil {
			return err
		}
		ok, err := tx.SetTransactionStatus(ctx, "t-1", model.TxCompleted, model.TxCancelled, at)
		assert.False(t, ok, "from does not match")
		if err != nil {
			return err
		}
		ok, err = tx.SetTransactionStatus(ctx, "t-1", model.TxPending, model.TxCompleted, at)
		assert.True(t, ok)
		if err != nil {
			return err
		}
		got, err := tx.GetTransaction(ctx, "t-1")
		if err != nil {
			return err
		}
		assert.Equal(t, model.TxCompleted, got.Status)
		assert.Equal(t, at, got.UpdatedAt)
		return nil
	}))
}

func TestListsKeepInsertionOrder(t *testing.T) {
	s := New()
	ctx := context.Background()
	ids := []string{"c", "a", "b"}
	require.NoError(t, s.Atomic(ctx, func(tx ports.Tx) error {
		for _, id := range ids {
			if err := tx.InsertTransaction(ctx, &model.Transaction{ID: id, ActorID: "u"}); err != nil {
				return err
			}
		}
		return nil
	}))
	require.NoError(t, s.Atomic(ctx, func(tx ports.Tx) error {
		got, err := tx.ListTransactionsByActor(ctx, "u")
		var order []string
		for _, tr := range got {
			order = append(order, tr.ID)
		}
		assert.Equal(t, ids, order)
		return err
	}))
}

func TestUsersAndRefreshTokens(t *testing.T) {
	s := New()
	ctx := context.Background()

	u := &model.User{ID: "u-1", Email: " Alice@Example.com ", Role: model.RoleBuyer}
	require.NoError(t, s.CreateUser(ctx, u))
	assert.ErrorIs(t, s.CreateUser(ctx, &model.User{ID: "u-2", Email: "alice@example.com"}), model.ErrEmailExists)

	got, err := s.GetUserByEmail(ctx, "ALICE@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u-1", got.ID)
	_, err = s.GetUserByID(ctx, "nope")
	assert.ErrorIs(t, err, model.ErrUserNotFound)

	require.NoError(t, s.StoreRefresh(ctx, "u-1", "h1", time.Now().Add(time.Hour)))
	require.NoError(t, s.StoreRefresh(ctx, "u-1", "h2", time.Now().Add(-time.Minute)))
	uid, err := s.ValidateRefresh(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, "u-1", uid)
	_, err = s.ValidateRefresh(ctx, "h2")
	assert.Error(t, err, "expired")

	require.NoError(t, s.RevokeAllForUser(ctx, "u-1"))
	_, err = s.ValidateRefresh(ctx, "h1")
	assert.Error(t, err)
}
