package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/ticket-marketplace/internal/model"
)

func (t *sqlTx) InsertSale(ctx context.Context, s *model.Sale) error {
	const q = `INSERT INTO sales (id, event_id, buyer_id, quantity, unit_price, total, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`
	if _, err := t.tx.ExecContext(ctx, q, s.ID, s.EventID, s.BuyerID, s.Quantity, s.UnitPrice, s.Total, s.CreatedAt); err != nil {
		return fmt.Errorf("insert sale: %w", err)
	}
	return nil
}

func (t *sqlTx) GetSale(ctx context.Context, id string) (*model.Sale, error) {
	const q = `SELECT id, event_id, buyer_id, quantity, unit_price, total, created_at FROM sales WHERE id = ?`
	var s model.Sale
	err := t.tx.QueryRowContext(ctx, q, id).Scan(&s.ID, &s.EventID, &s.BuyerID, &s.Quantity, &s.UnitPrice, &s.Total, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrSaleNotFound
		}
		return nil, fmt.Errorf("get sale: %w", err)
	}
	return &s, nil
}
