package workflow

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dukex/hesab/pkg/eventbus"
	"github.com/dukex/hesab/pkg/models"
	"github.com/dukex/hesab/pkg/persistence"
	"github.com/stretchr/testify/require"
)

var errNotSupported = errors.New("not supported by fake transaction")

// fakeStore makes writes visible only once the transaction that made them commits.
type fakeStore struct {
	mu        sync.Mutex
	committed []string
	txs       []*fakeTx
	beginErr  error
	commitErr error
}

func (s *fakeStore) Begin(_ context.Context) (persistence.Tx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.beginErr != nil {
		return nil, s.beginErr
	}

	tx := &fakeTx{store: s}
	s.txs = append(s.txs, tx)

	return tx, nil
}

func (s *fakeStore) Committed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.committed...)
}

func (s *fakeStore) LastTx() *fakeTx {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.txs) == 0 {
		return nil
	}

	return s.txs[len(s.txs)-1]
}

type fakeTx struct {
	store      *fakeStore
	mu         sync.Mutex
	pending    []string
	committed  bool
	rolledBack bool
}

func (tx *fakeTx) ExecContext(_ context.Context, query string, _ ...any) (sql.Result, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.committed || tx.rolledBack {
		return nil, sql.ErrTxDone
	}

	tx.pending = append(tx.pending, query)

	return driver.RowsAffected(1), nil
}

func (tx *fakeTx) QueryContext(_ context.Context, _ string, _ ...any) (*sql.Rows, error) {
	return nil, errNotSupported
}

func (tx *fakeTx) QueryRowContext(_ context.Context, _ string, _ ...any) *sql.Row {
	return nil
}

func (tx *fakeTx) Commit() error {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.store.commitErr != nil {
		return tx.store.commitErr
	}

	tx.committed = true

	tx.store.mu.Lock()
	tx.store.committed = append(tx.store.committed, tx.pending...)
	tx.store.mu.Unlock()

	return nil
}

func (tx *fakeTx) Rollback() error {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	tx.rolledBack = true
	tx.pending = nil

	return nil
}

func (tx *fakeTx) State() (committed, rolledBack bool) {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	return tx.committed, tx.rolledBack
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, event eventbus.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, event)

	return nil
}

func (p *recordingPublisher) Events() []eventbus.Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]eventbus.Event(nil), p.events...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T, store *fakeStore, defs []models.WorkflowDefinition, opts ...Option) *Engine {
	t.Helper()

	registry, err := NewRegistry(defs...)
	require.NoError(t, err)

	opts = append([]Option{WithRunnerOptions(WithBackoffUnit(time.Millisecond))}, opts...)
	engine := NewEngine(registry, store, testLogger(), opts...)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = engine.Close(ctx)
	})

	return engine
}

// writing returns a handler that records a write on the run's transaction.
func writing(name string) models.StepHandler {
	return func(ec *models.ExecutionContext) (models.StepOutcome, error) {
		if _, err := ec.Tx.ExecContext(ec.Context(), "write "+name); err != nil {
			return nil, err
		}

		return models.StepOutcome{"step": name}, nil
	}
}

func failing(err error) models.StepHandler {
	return func(_ *models.ExecutionContext) (models.StepOutcome, error) {
		return nil, err
	}
}

func fast(opts ...models.StepOption) []models.StepOption {
	return append([]models.StepOption{models.WithTimeout(time.Second)}, opts...)
}
