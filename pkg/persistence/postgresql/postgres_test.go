package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/dukex/hesab/pkg/models"
	"github.com/dukex/hesab/pkg/persistence"
	"github.com/dukex/hesab/pkg/persistence/postgresql"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

var postgresContainer *postgres.PostgresContainer

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	for _, table := range []string{"subscriptions", "transactions", "wallets", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	err = db.Close()
	require.NoError(t, err)
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context, string) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("hesab_test"),
			postgres.WithUsername("hesab"),
			postgres.WithPassword("hesab"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDb(ctx, t, databaseURL)

		err = p.Close(ctx)
		require.NoError(t, err)

		cancel()
	})

	return p, ctx, databaseURL
}

func TestNewPersistence_Migrations(t *testing.T) {
	_, ctx, databaseURL := setupTestDB(t)

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer func() {
		err := db.Close()
		require.NoError(t, err)
	}()

	for _, table := range []string{"wallets", "transactions", "subscriptions", "schema_migrations"} {
		var exists bool

		err = db.QueryRowContext(ctx, `SELECT EXISTS (SELECT FROM
information_schema.tables WHERE table_name = $1)`, table).Scan(&exists)
		require.NoError(t, err)
		assert.True(t, exists, "%s table should exist", table)
	}

	var version int

	err = db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, 2, version)
}

func TestNewPersistence_HealthCheck(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	err := p.HealthCheck(ctx)
	assert.NoError(t, err)
}

func TestLedger_RollbackDiscardsWrites(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	ledger := p.Ledger()

	_, err := ledger.Credit(ctx, p.DB(), "alice", decimal.NewFromInt(1_000_000))
	require.NoError(t, err)

	tx, err := p.Begin(ctx)
	require.NoError(t, err)

	remaining, err := ledger.Debit(ctx, tx, "alice", decimal.NewFromInt(400_000))
	require.NoError(t, err)
	assert.Equal(t, "600000", remaining.String())

	require.NoError(t, ledger.CreateTransaction(ctx, tx, &models.Transaction{
		ID:          uuid.NewString(),
		UserID:      "alice",
		Type:        models.TransactionTypePayment,
		Status:      models.TransactionStatusPending,
		Amount:      decimal.NewFromInt(400_000),
		ExecutionID: "exec-rollback",
	}))

	require.NoError(t, tx.Rollback())

	balance, err := ledger.Balance(ctx, p.DB(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "1000000", balance.String())

	var rows int

	require.NoError(t, p.DB().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM transactions WHERE execution_id = 'exec-rollback'").Scan(&rows))
	assert.Zero(t, rows)
}

func TestLedger_CommitPersistsWrites(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	ledger := p.Ledger()

	_, err := ledger.Credit(ctx, p.DB(), "bob", decimal.NewFromInt(50_000))
	require.NoError(t, err)

	tx, err := p.Begin(ctx)
	require.NoError(t, err)

	txnID := uuid.NewString()

	_, err = ledger.Debit(ctx, tx, "bob", decimal.NewFromInt(20_000))
	require.NoError(t, err)
	_, err = ledger.Credit(ctx, tx, "carol", decimal.NewFromInt(20_000))
	require.NoError(t, err)
	require.NoError(t, ledger.CreateTransaction(ctx, tx, &models.Transaction{
		ID:          txnID,
		UserID:      "bob",
		Type:        models.TransactionTypeTransfer,
		Status:      models.TransactionStatusPending,
		Amount:      decimal.NewFromInt(20_000),
		RecipientID: "carol",
		ExecutionID: "exec-commit",
	}))
	require.NoError(t, ledger.CompleteTransaction(ctx, tx, txnID, "internal"))
	require.NoError(t, tx.Commit())

	bob, err := ledger.Balance(ctx, p.DB(), "bob")
	require.NoError(t, err)
	assert.Equal(t, "30000", bob.String())

	carol, err := ledger.Balance(ctx, p.DB(), "carol")
	require.NoError(t, err)
	assert.Equal(t, "20000", carol.String())

	txn, err := ledger.TransactionByID(ctx, p.DB(), txnID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusCompleted, txn.Status)
	assert.Equal(t, "carol", txn.RecipientID)
	assert.NotNil(t, txn.CompletedAt)
}

func TestLedger_DebitNeverGoesNegative(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	ledger := p.Ledger()

	_, err := ledger.Credit(ctx, p.DB(), "dave", decimal.NewFromInt(10))
	require.NoError(t, err)

	_, err = ledger.Debit(ctx, p.DB(), "dave", decimal.NewFromInt(11))
	assert.True(t, persistence.IsInsufficientBalance(err))

	_, err = ledger.Debit(ctx, p.DB(), "nobody", decimal.NewFromInt(1))
	assert.True(t, persistence.IsWalletNotFound(err))
}
