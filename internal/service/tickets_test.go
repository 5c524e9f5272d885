package service

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/ticket-marketplace/internal/model"
	"github.com/iliyamo/ticket-marketplace/internal/service/ports"
)

func TestIssuedTicketsAreValidAndOwned(t *testing.T) {
	f := newFixture(t)
	ev := f.newEvent(t, 10, "12.50")
	out := f.buy(t, alice, ev.ID, 2)

	require.Len(t, out.TicketIDs, 2)
	for _, id := range out.TicketIDs {
		tk := f.ticket(t, id)
		assert.Equal(t, alice.UserID, tk.OwnerID)
		assert.Equal(t, model.TicketValid, tk.State)
		assert.Equal(t, out.SaleID, tk.SaleID)
		assert.True(t, tk.Price.Equal(decimal.RequireFromString("12.50")))
		assert.True(t, strings.HasPrefix(tk.QRCode, "TICKET-"))
	}
	assert.NotEqual(t, f.ticket(t, out.TicketIDs[0]).QRCode, f.ticket(t, out.TicketIDs[1]).QRCode)
}

func TestMarkUsedTwiceReportsAlreadyUsed(t *testing.T) {
	f := newFixture(t)
	ev := f.newEvent(t, 1, "10.00")
	id := f.buy(t, alice, ev.ID, 1).TicketIDs[0]
	ctx := context.Background()

	require.NoError(t, f.tickets.MarkUsed(ctx, id))
	err := f.tickets.MarkUsed(ctx, id)
	assert.ErrorIs(t, err, model.ErrAlreadyUsed)
	assert.Equal(t, model.InvalidState, model.KindOf(err))

	valid, err := f.tickets.IsValid(ctx, id)
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestListedTicketCannotBeUsed(t *testing.T) {
	f := newFixture(t)
	ev := f.newEvent(t, 1, "10.00")
	id := f.buy(t, alice, ev.ID, 1).TicketIDs[0]
	f.list(t, alice, id, "15.00")

	assert.ErrorIs(t, f.tickets.MarkUsed(context.Background(), id), model.ErrTicketListed)
	assert.Equal(t, model.TicketListed, f.ticket(t, id).State)
}

func TestUsedTicketCannotBeListed(t *testing.T) {
	f := newFixture(t)
	ev := f.newEvent(t, 1, "10.00")
	id := f.buy(t, alice, ev.ID, 1).TicketIDs[0]
	require.NoError(t, f.tickets.MarkUsed(context.Background(), id))

	out, err := f.resale.Publish(context.Background(), alice, id, decimal.RequireFromString("15"))
	require.NoError(t, err)
	assert.False(t, out.Success)
	assert.Equal(t, model.InvalidState, out.Kind)
}

func TestListRequiresOwnerAndPositivePrice(t *testing.T) {
	f := newFixture(t)
	ev := f.newEvent(t, 1, "10.00")
	id := f.buy(t, alice, ev.ID, 1).TicketIDs[0]
	ctx := context.Background()

	err := f.store.Atomic(ctx, func(tx ports.Tx) error {
		_, err := f.tickets.List(ctx, tx, id, bob.UserID, decimal.RequireFromString("20"))
		return err
	})
	assert.ErrorIs(t, err, model.ErrNotOwner)

	for _, price := range []string{"0", "-1", "0.004", "15.001"} {
		err = f.store.Atomic(ctx, func(tx ports.Tx) error {
			_, err := f.tickets.List(ctx, tx, id, alice.UserID, decimal.RequireFromString(price))
			return err
		})
		assert.ErrorIs(t, err, model.ErrInvalidPrice, price)
	}
	assert.Equal(t, model.TicketValid, f.ticket(t, id).State)
}

func TestSecondListingOfSameTicketFails(t *testing.T) {
	f := newFixture(t)
	ev := f.newEvent(t, 1, "10.00")
	id := f.buy(t, alice, ev.ID, 1).TicketIDs[0]
	f.list(t, alice, id, "15.00")

	out, err := f.resale.Publish(context.Background(), alice, id, decimal.RequireFromString("16"))
	require.NoError(t, err)
	assert.False(t, out.Success)
	assert.Equal(t, model.ErrAlreadyListed.Msg, out.Message)

	pending, err := f.resale.ListPending(context.Background())
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestTransferRequiresPendingListing(t *testing.T) {
	f := newFixture(t)
	ev := f.newEvent(t, 1, "10.00")
	id := f.buy(t, alice, ev.ID, 1).TicketIDs[0]
	ctx := context.Background()

	err := f.store.Atomic(ctx, func(tx ports.Tx) error {
		_, err := f.tickets.Transfer(ctx, tx, id, bob.UserID)
		return err
	})
	assert.ErrorIs(t, err, model.ErrListingNotPending)
	assert.Equal(t, alice.UserID, f.ticket(t, id).OwnerID)
}

func TestRedeemOnlyByEventOrganizer(t *testing.T) {
	f := newFixture(t)
	ev := f.newEvent(t, 1, "10.00")
	id := f.buy(t, alice, ev.ID, 1).TicketIDs[0]
	ctx := context.Background()

	other := model.Caller{UserID: "org-2", Role: model.RoleOrganizer}
	assert.ErrorIs(t, f.tickets.Redeem(ctx, other, id), model.ErrNotOrganizer)
	require.NoError(t, f.tickets.Redeem(ctx, organizer, id))
	assert.Equal(t, model.TicketUsed, f.ticket(t, id).State)
	assert.ErrorIs(t, f.tickets.Redeem(ctx, organizer, id), model.ErrAlreadyUsed)
}

func TestListByOwnerFollowsOwnership(t *testing.T) {
	f := newFixture(t)
	ev := f.newEvent(t, 5, "10.00")
	ids := f.buy(t, alice, ev.ID, 2).TicketIDs
	l := f.list(t, alice, ids[0], "11.00")
	out, err := f.resale.Purchase(context.Background(), bob, l.ListingID)
	require.NoError(t, err)
	require.True(t, out.Success)

	mine, err := f.tickets.ListByOwner(context.Background(), alice.UserID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, ids[1], mine[0].ID)

	theirs, err := f.tickets.ListByOwner(context.Background(), bob.UserID)
	require.NoError(t, err)
	require.Len(t, theirs, 1)
	assert.Equal(t, ids[0], theirs[0].ID)
}

func TestPublishRejectsSubCentPrice(t *testing.T) {
	f := newFixture(t)
	ev := f.newEvent(t, 1, "10.00")
	id := f.buy(t, alice, ev.ID, 1).TicketIDs[0]

	out, err := f.resale.Publish(context.Background(), alice, id, decimal.RequireFromString("0.004"))
	require.NoError(t, err)
	assert.False(t, out.Success)
	assert.Equal(t, model.InvalidArgument, out.Kind)
	assert.Equal(t, model.TicketValid, f.ticket(t, id).State)

	// trailing zeros do not count as extra precision
	f.list(t, alice, id, "12.500")
}

func TestQRCodeCarriesSalePrefix(t *testing.T) {
	a, err := qrCode("3f2a9c1e-0000-4000-8000-000000000000")
	require.NoError(t, err)
	b, err := qrCode("3f2a9c1e-0000-4000-8000-000000000000")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(a, "TICKET-3F2A9C1E-"), a)
	assert.Len(t, a, len("TICKET-3F2A9C1E-")+12)
	assert.NotEqual(t, a, b)
}
