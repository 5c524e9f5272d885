package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/ticket-marketplace/internal/model"
)

const ticketColumns = `id, sale_id, event_id, owner_id, issued_at, price, state, resale_price, listing_id, qr_code`

func scanTicket(row interface{ Scan(...any) error }) (*model.Ticket, error) {
	var tk model.Ticket
	err := row.Scan(&tk.ID, &tk.SaleID, &tk.EventID, &tk.OwnerID, &tk.IssuedAt, &tk.Price, &tk.State,
		&tk.ResalePrice, &tk.ListingID, &tk.QRCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrTicketNotFound
		}
		return nil, fmt.Errorf("scan ticket: %w", err)
	}
	return &tk, nil
}

// CountIssuedTickets is the authoritative source of remaining capacity.
// Callers that act on the result must hold the event row lock.
func (t *sqlTx) CountIssuedTickets(ctx context.Context, eventID string) (int, error) {
	var n int
	if err := t.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM tickets WHERE event_id = ?`, eventID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count tickets: %w", err)
	}
	return n, nil
}

func (t *sqlTx) InsertTicket(ctx context.Context, tk *model.Ticket) error {
	const q = `INSERT INTO tickets (` + ticketColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := t.tx.ExecContext(ctx, q, tk.ID, tk.SaleID, tk.EventID, tk.OwnerID, tk.IssuedAt, tk.Price, tk.State,
		tk.ResalePrice, tk.ListingID, tk.QRCode)
	if err != nil {
		return fmt.Errorf("insert ticket: %w", err)
	}
	return nil
}

func (t *sqlTx) GetTicket(ctx context.Context, id string) (*model.Ticket, error) {
	const q = `SELECT ` + ticketColumns + ` FROM tickets WHERE id = ?`
	return scanTicket(t.tx.QueryRowContext(ctx, q, id))
}

func (t *sqlTx) LockTicket(ctx context.Context, id string) (*model.Ticket, error) {
	const q = `SELECT ` + ticketColumns + ` FROM tickets WHERE id = ? FOR UPDATE`
	return scanTicket(t.tx.QueryRowContext(ctx, q, id))
}

func (t *sqlTx) UpdateTicket(ctx context.Context, tk *model.Ticket) error {
	const q = `UPDATE tickets SET owner_id = ?, state = ?, resale_price = ?, listing_id = ? WHERE id = ?`
	if _, err := t.tx.ExecContext(ctx, q, tk.OwnerID, tk.State, tk.ResalePrice, tk.ListingID, tk.ID); err != nil {
		return fmt.Errorf("update ticket: %w", err)
	}
	return nil
}

func (t *sqlTx) ListTicketsByOwner(ctx context.Context, ownerID string) ([]model.Ticket, error) {
	const q = `SELECT ` + ticketColumns + ` FROM tickets WHERE owner_id = ? ORDER BY issued_at ASC, id ASC`
	return t.listTickets(ctx, q, ownerID)
}

func (t *sqlTx) ListTicketsBySale(ctx context.Context, saleID string) ([]model.Ticket, error) {
	const q = `SELECT ` + ticketColumns + ` FROM tickets WHERE sale_id = ? ORDER BY issued_at ASC, id ASC FOR UPDATE`
	return t.listTickets(ctx, q, saleID)
}

func (t *sqlTx) listTickets(ctx context.Context, q string, arg any) ([]model.Ticket, error) {
	rows, err := t.tx.QueryContext(ctx, q, arg)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	defer rows.Close()
	out := []model.Ticket{}
	for rows.Next() {
		tk, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *tk)
	}
	return out, rows.Err()
}
