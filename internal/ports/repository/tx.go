package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
)

// TxState makes the transaction lifecycle explicit. A transaction is Active
// from Begin until exactly one of Commit or Rollback transitions it to a
// terminal state. Rollback on an already-terminal transaction is a no-op, so
// a fault racing a completed commit can never be misreported as a rollback
// failure.
type TxState int

const (
	TxIdle TxState = iota
	TxActive
	TxCommitted
	TxRolledBack
)

func (s TxState) String() string {
	switch s {
	case TxIdle:
		return "idle"
	case TxActive:
		return "active"
	case TxCommitted:
		return "committed"
	case TxRolledBack:
		return "rolled back"
	}
	return "unknown"
}

// dbtx is the query surface shared by *sql.DB and *sql.Tx, letting the same
// repository code run inside or outside a transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PgStore is the Postgres-backed Store.
type PgStore struct {
	db        *sql.DB
	events    *PgEventRepository
	summaries *PgSummaryRepository
}

// NewPgStore wraps a connection pool.
func NewPgStore(db *sql.DB) *PgStore {
	return &PgStore{
		db:        db,
		events:    &PgEventRepository{q: db},
		summaries: &PgSummaryRepository{q: db},
	}
}

// Events returns the event repository bound to the pool.
func (s *PgStore) Events() EventRepository { return s.events }

// Summaries returns the summary repository bound to the pool.
func (s *PgStore) Summaries() SummaryRepository { return s.summaries }

// Begin opens a transaction and returns repositories bound to it.
func (s *PgStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &pgTx{
		tx:        tx,
		state:     TxActive,
		events:    &PgEventRepository{q: tx},
		summaries: &PgSummaryRepository{q: tx},
	}, nil
}

type pgTx struct {
	tx        *sql.Tx
	mu        sync.Mutex
	state     TxState
	events    *PgEventRepository
	summaries *PgSummaryRepository
}

func (t *pgTx) Events() EventRepository      { return t.events }
func (t *pgTx) Summaries() SummaryRepository { return t.summaries }

func (t *pgTx) State() TxState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Commit transitions Active → Committed. Committing a non-active transaction
// is a programming error and is reported as one.
func (t *pgTx) Commit() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != TxActive {
		return fmt.Errorf("commit: transaction is %s", t.state)
	}
	if err := t.tx.Commit(); err != nil {
		t.state = TxRolledBack
		return fmt.Errorf("commit transaction: %w", err)
	}
	t.state = TxCommitted
	return nil
}

// Rollback transitions Active → RolledBack. On an already-terminal
// transaction it does nothing and reports no error: the state machine, not a
// driver error string, decides whether there is anything left to roll back.
func (t *pgTx) Rollback() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != TxActive {
		return nil
	}
	t.state = TxRolledBack
	if err := t.tx.Rollback(); err != nil {
		return fmt.Errorf("rollback transaction: %w", err)
	}
	return nil
}
