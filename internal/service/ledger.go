package service

import (
	"context"

	"github.com/iliyamo/ticket-marketplace/internal/model"
	"github.com/iliyamo/ticket-marketplace/internal/service/ports"
)

// Ledger is the append-only record of sales and resales.  Entries are
// never deleted; status is the only field that changes after insertion.
type Ledger struct {
	store ports.Store
}

func NewLedger(store ports.Store) *Ledger { return &Ledger{store: store} }

// Append stamps and inserts t within tx and returns its id.  It performs
// no business validation; callers decide what to record.
func (l *Ledger) Append(ctx context.Context, tx ports.Tx, t *model.Transaction) (string, error) {
	t.ID = newID()
	t.CreatedAt = now()
	t.UpdatedAt = t.CreatedAt
	if err := tx.InsertTransaction(ctx, t); err != nil {
		return "", err
	}
	return t.ID, nil
}

// UpdateStatus moves an entry to status.  Setting the current status
// again is a no-op; moves out of cancelled or back to pending fail with
// ErrIllegalTransition.
func (l *Ledger) UpdateStatus(ctx context.Context, tx ports.Tx, id string, status model.TxStatus) error {
	cur, err := tx.GetTransaction(ctx, id)
	if err != nil {
		return err
	}
	if cur.Status == status {
		return nil
	}
	if !cur.Status.CanMoveTo(status) {
		return model.ErrIllegalTransition
	}
	ok, err := tx.SetTransactionStatus(ctx, id, cur.Status, status, now())
	if err != nil {
		return err
	}
	if !ok {
		return model.ErrIllegalTransition
	}
	return nil
}

// Get reads one entry from committed state.
func (l *Ledger) Get(ctx context.Context, id string) (*model.Transaction, error) {
	var t *model.Transaction
	err := l.store.Atomic(ctx, func(tx ports.Tx) error {
		var err error
		t, err = tx.GetTransaction(ctx, id)
		return err
	})
	return t, err
}

// ListForUser returns every entry the user is the actor of, oldest first.
func (l *Ledger) ListForUser(ctx context.Context, userID string) ([]model.Transaction, error) {
	var out []model.Transaction
	err := l.store.Atomic(ctx, func(tx ports.Tx) error {
		var err error
		out, err = tx.ListTransactionsByActor(ctx, userID)
		return err
	})
	return out, err
}
