package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/ticket-marketplace/internal/model"
)

const txColumns = `id, kind, actor_id, event_id, price, status, sale_id, listing_id, created_at, updated_at`

func scanTransaction(row interface{ Scan(...any) error }) (*model.Transaction, error) {
	var tr model.Transaction
	err := row.Scan(&tr.ID, &tr.Kind, &tr.ActorID, &tr.EventID, &tr.Price, &tr.Status, &tr.SaleID, &tr.ListingID,
		&tr.CreatedAt, &tr.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	return &tr, nil
}

func (t *sqlTx) InsertTransaction(ctx context.Context, tr *model.Transaction) error {
	const q = `INSERT INTO transactions (` + txColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := t.tx.ExecContext(ctx, q, tr.ID, tr.Kind, tr.ActorID, tr.EventID, tr.Price, tr.Status, tr.SaleID,
		tr.ListingID, tr.CreatedAt, tr.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (t *sqlTx) GetTransaction(ctx context.Context, id string) (*model.Transaction, error) {
	const q = `SELECT ` + txColumns + ` FROM transactions WHERE id = ?`
	return scanTransaction(t.tx.QueryRowContext(ctx, q, id))
}

// SetTransactionStatus is a compare-and-set on the status column.
func (t *sqlTx) SetTransactionStatus(ctx context.Context, id string, from, to model.TxStatus, at time.Time) (bool, error) {
	const q = `UPDATE transactions SET status = ?, updated_at = ? WHERE id = ? AND status = ?`
	res, err := t.tx.ExecContext(ctx, q, to, at, id, from)
	if err != nil {
		return false, fmt.Errorf("update transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update transaction: %w", err)
	}
	return n == 1, nil
}

func (t *sqlTx) ListTransactionsByActor(ctx context.Context, actorID string) ([]model.Transaction, error) {
	const q = `SELECT ` + txColumns + ` FROM transactions WHERE actor_id = ? ORDER BY created_at ASC, id ASC`
	return t.listTransactions(ctx, q, actorID)
}

func (t *sqlTx) ListTransactionsByListing(ctx context.Context, listingID string) ([]model.Transaction, error) {
	const q = `SELECT ` + txColumns + ` FROM transactions WHERE listing_id = ? ORDER BY created_at ASC, id ASC`
	return t.listTransactions(ctx, q, listingID)
}

func (t *sqlTx) ListTransactionsBySale(ctx context.Context, saleID string) ([]model.Transaction, error) {
	const q = `SELECT ` + txColumns + ` FROM transactions WHERE sale_id = ? ORDER BY created_at ASC, id ASC`
	return t.listTransactions(ctx, q, saleID)
}

func (t *sqlTx) listTransactions(ctx context.Context, q string, arg any) ([]model.Transaction, error) {
	rows, err := t.tx.QueryContext(ctx, q, arg)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()
	out := []model.Transaction{}
	for rows.Next() {
		tr, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *tr)
	}
	return out, rows.Err()
}
