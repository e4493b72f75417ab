// Package memory provides an in-process unit of work and ledger for local
// runs and tests. Transactions are serialised: Begin blocks until the
// previous transaction commits or rolls back.
package memory

import (
	"context"
	"database/sql"
	"errors"
	"maps"
	"sync"

	"github.com/dukex/hesab/pkg/models"
	"github.com/dukex/hesab/pkg/persistence"
	"github.com/shopspring/decimal"
)

var errSQLNotSupported = errors.New("memory persistence does not execute SQL")

type state struct {
	wallets       map[string]decimal.Decimal
	transactions  map[string]models.Transaction
	subscriptions map[string]models.Subscription
}

func newState() *state {
	return &state{
		wallets:       make(map[string]decimal.Decimal),
		transactions:  make(map[string]models.Transaction),
		subscriptions: make(map[string]models.Subscription),
	}
}

func (s *state) clone() *state {
	return &state{
		wallets:       maps.Clone(s.wallets),
		transactions:  maps.Clone(s.transactions),
		subscriptions: maps.Clone(s.subscriptions),
	}
}

// Store is the committed state plus the lock that serialises transactions.
type Store struct {
	txLock sync.Mutex // held from Begin until Commit or Rollback

	mu        sync.RWMutex
	committed *state
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{committed: newState()}
}

// Begin snapshots the committed state into a new transaction.
func (s *Store) Begin(ctx context.Context) (persistence.Tx, error) {
	locked := make(chan struct{})

	go func() {
		s.txLock.Lock()
		close(locked)
	}()

	select {
	case <-locked:
	case <-ctx.Done():
		// Release the lock once the pending acquisition completes.
		go func() {
			<-locked
			s.txLock.Unlock()
		}()

		return nil, ctx.Err()
	}

	s.mu.RLock()
	snapshot := s.committed.clone()
	s.mu.RUnlock()

	return &Tx{store: s, state: snapshot}, nil
}

// HealthCheck always succeeds.
func (s *Store) HealthCheck(context.Context) error {
	return nil
}

// Close is a no-op.
func (s *Store) Close(context.Context) error {
	return nil
}

// DB returns a querier that reads committed state outside any transaction.
func (s *Store) DB() persistence.Querier {
	return s
}

func (s *Store) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	return nil, errSQLNotSupported
}

func (s *Store) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	return nil, errSQLNotSupported
}

func (s *Store) QueryRowContext(context.Context, string, ...any) *sql.Row {
	return nil
}

// Tx is an open transaction over a private copy of the store.
type Tx struct {
	store *Store

	mu    sync.Mutex
	state *state
	done  bool
}

// Commit publishes the transaction's state.
func (tx *Tx) Commit() error {
	if !tx.finish() {
		return sql.ErrTxDone
	}

	tx.mu.Lock()
	committed := tx.state
	tx.mu.Unlock()

	tx.store.mu.Lock()
	tx.store.committed = committed
	tx.store.mu.Unlock()

	tx.store.txLock.Unlock()

	return nil
}

// Rollback discards the transaction's state.
func (tx *Tx) Rollback() error {
	if !tx.finish() {
		return sql.ErrTxDone
	}

	tx.store.txLock.Unlock()

	return nil
}

func (tx *Tx) finish() bool {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.done {
		return false
	}

	tx.done = true

	return true
}

// apply runs fn on the transaction's state unless it already finished.
func (tx *Tx) apply(fn func(*state) error) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.done {
		return sql.ErrTxDone
	}

	return fn(tx.state)
}

func (tx *Tx) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	return nil, errSQLNotSupported
}

func (tx *Tx) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	return nil, errSQLNotSupported
}

func (tx *Tx) QueryRowContext(context.Context, string, ...any) *sql.Row {
	return nil
}
