package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/ticket-marketplace/internal/model"
)

const listingColumns = `id, ticket_id, event_id, seller_id, original_price, asking_price, status, buyer_id, created_at, updated_at`

func scanListing(row interface{ Scan(...any) error }) (*model.Listing, error) {
	var l model.Listing
	err := row.Scan(&l.ID, &l.TicketID, &l.EventID, &l.SellerID, &l.OriginalPrice, &l.AskingPrice, &l.Status,
		&l.BuyerID, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrListingNotFound
		}
		return nil, fmt.Errorf("scan listing: %w", err)
	}
	return &l, nil
}

// InsertListing relies on the uq_listings_pending_ticket index as a
// backstop: a second pending listing for the same ticket is a duplicate
// key and surfaces as model.ErrAlreadyListed.
func (t *sqlTx) InsertListing(ctx context.Context, l *model.Listing) error {
	const q = `INSERT INTO listings (` + listingColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := t.tx.ExecContext(ctx, q, l.ID, l.TicketID, l.EventID, l.SellerID, l.OriginalPrice, l.AskingPrice,
		l.Status, l.BuyerID, l.CreatedAt, l.UpdatedAt)
	if err != nil {
		if isDuplicate(err) {
			return model.ErrAlreadyListed
		}
		return fmt.Errorf("insert listing: %w", err)
	}
	return nil
}

func (t *sqlTx) GetListing(ctx context.Context, id string) (*model.Listing, error) {
	const q = `SELECT ` + listingColumns + ` FROM listings WHERE id = ?`
	return scanListing(t.tx.QueryRowContext(ctx, q, id))
}

func (t *sqlTx) LockListing(ctx context.Context, id string) (*model.Listing, error) {
	const q = `SELECT ` + listingColumns + ` FROM listings WHERE id = ? FOR UPDATE`
	return scanListing(t.tx.QueryRowContext(ctx, q, id))
}

func (t *sqlTx) UpdateListing(ctx context.Context, l *model.Listing) error {
	const q = `UPDATE listings SET status = ?, buyer_id = ?, updated_at = ? WHERE id = ?`
	if _, err := t.tx.ExecContext(ctx, q, l.Status, l.BuyerID, l.UpdatedAt, l.ID); err != nil {
		return fmt.Errorf("update listing: %w", err)
	}
	return nil
}

func (t *sqlTx) PendingListingForTicket(ctx context.Context, ticketID string) (*model.Listing, error) {
	const q = `SELECT ` + listingColumns + ` FROM listings WHERE ticket_id = ? AND status = 'pending' LIMIT 1 FOR UPDATE`
	return scanListing(t.tx.QueryRowContext(ctx, q, ticketID))
}

func (t *sqlTx) ListPendingListings(ctx context.Context) ([]model.Listing, error) {
	const q = `SELECT ` + listingColumns + ` FROM listings WHERE status = 'pending' ORDER BY created_at ASC, id ASC`
	rows, err := t.tx.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}
	defer rows.Close()
	out := []model.Listing{}
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}
