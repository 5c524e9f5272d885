package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/ticket-marketplace/internal/model"
)

const eventColumns = `id, organizer_id, name, description, event_date, place, price, capacity, cancelled, created_at, updated_at`

func scanEvent(row interface{ Scan(...any) error }) (*model.Event, error) {
	var ev model.Event
	err := row.Scan(&ev.ID, &ev.OrganizerID, &ev.Name, &ev.Description, &ev.Date, &ev.Place,
		&ev.Price, &ev.Capacity, &ev.Cancelled, &ev.CreatedAt, &ev.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrEventNotFound
		}
		return nil, fmt.Errorf("scan event: %w", err)
	}
	return &ev, nil
}

func (t *sqlTx) InsertEvent(ctx context.Context, ev *model.Event) error {
	const q = `INSERT INTO events (` + eventColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := t.tx.ExecContext(ctx, q, ev.ID, ev.OrganizerID, ev.Name, ev.Description, ev.Date, ev.Place,
		ev.Price, ev.Capacity, ev.Cancelled, ev.CreatedAt, ev.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (t *sqlTx) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	const q = `SELECT ` + eventColumns + ` FROM events WHERE id = ?`
	return scanEvent(t.tx.QueryRowContext(ctx, q, id))
}

// LockEvent reads the event row with an exclusive lock.  Concurrent
// purchases for the same event queue here until the holder commits.
func (t *sqlTx) LockEvent(ctx context.Context, id string) (*model.Event, error) {
	const q = `SELECT ` + eventColumns + ` FROM events WHERE id = ? FOR UPDATE`
	return scanEvent(t.tx.QueryRowContext(ctx, q, id))
}

func (t *sqlTx) UpdateEvent(ctx context.Context, ev *model.Event) error {
	const q = `UPDATE events SET name = ?, description = ?, event_date = ?, place = ?, price = ?, capacity = ?,
               cancelled = ?, updated_at = ? WHERE id = ?`
	res, err := t.tx.ExecContext(ctx, q, ev.Name, ev.Description, ev.Date, ev.Place, ev.Price, ev.Capacity,
		ev.Cancelled, ev.UpdatedAt, ev.ID)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// MySQL reports 0 for rows matched but unchanged, so confirm existence.
		if _, err := t.GetEvent(ctx, ev.ID); err != nil {
			return err
		}
	}
	return nil
}

// ListEvents builds the WHERE clause from the non-empty filter fields, in
// the same way the show search assembles its conditions.
func (t *sqlTx) ListEvents(ctx context.Context, f model.EventFilter) ([]model.Event, error) {
	var (
		conds []string
		args  []any
	)
	if f.Date != nil {
		y, m, d := f.Date.UTC().Date()
		day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		conds = append(conds, "event_date >= ? AND event_date < ?")
		args = append(args, day, day.AddDate(0, 0, 1))
	}
	if f.Place != "" {
		conds = append(conds, "place = ?")
		args = append(args, f.Place)
	}
	if f.MinPrice != nil {
		conds = append(conds, "price >= ?")
		args = append(args, *f.MinPrice)
	}
	if f.MaxPrice != nil {
		conds = append(conds, "price <= ?")
		args = append(args, *f.MaxPrice)
	}
	if f.OrganizerID != "" {
		conds = append(conds, "organizer_id = ?")
		args = append(args, f.OrganizerID)
	}
	q := `SELECT ` + eventColumns + ` FROM events`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY event_date ASC, created_at ASC"

	rows, err := t.tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()
	out := []model.Event{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ev)
	}
	return out, rows.Err()
}
