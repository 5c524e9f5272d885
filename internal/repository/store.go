package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/ticket-marketplace/internal/service/ports"
)

// Store runs units of work on MySQL.  Each call to Atomic is one
// *sql.Tx; locking reads inside it use SELECT ... FOR UPDATE so InnoDB
// serializes writers per event, ticket and listing row.
type Store struct {
	db *sql.DB
}

var _ ports.Store = (*Store)(nil)

// NewStore wraps an open connection pool.
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// DB exposes the underlying sql.DB.
func (s *Store) DB() *sql.DB { return s.db }

// Atomic begins a transaction, hands it to fn and commits when fn returns
// nil.  Any error, including a panic unwinding through fn, rolls back.
//
// READ COMMITTED makes every statement read the latest committed rows.
// Under REPEATABLE READ the ticket count taken after the event lock
// would come from the snapshot of the first read and could oversell.
func (s *Store) Atomic(ctx context.Context, fn func(tx ports.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(&sqlTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// sqlTx implements ports.Tx over a single *sql.Tx.  Its methods are
// spread over the *_repository.go files, one per table.
type sqlTx struct {
	tx *sql.Tx
}

// isDuplicate reports whether err is a MySQL unique key violation.
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}
