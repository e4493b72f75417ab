package postgresql

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dukex/hesab/pkg/models"
	"github.com/dukex/hesab/pkg/persistence"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockLedger(t *testing.T) (*Ledger, *sql.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	t.Cleanup(func() { _ = db.Close() })

	return NewLedger(slog.New(slog.NewTextHandler(io.Discard, nil))), db, mock
}

func TestLedger_Balance(t *testing.T) {
	ctx := context.Background()

	t.Run("existing wallet", func(t *testing.T) {
		ledger, db, mock := newMockLedger(t)

		mock.ExpectQuery(`SELECT balance FROM wallets WHERE user_id = \$1`).
			WithArgs("user-1").
			WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("2500000"))

		balance, err := ledger.Balance(ctx, db, "user-1")
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(2_500_000).Equal(balance))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing wallet", func(t *testing.T) {
		ledger, db, mock := newMockLedger(t)

		mock.ExpectQuery(`SELECT balance FROM wallets`).
			WithArgs("ghost").
			WillReturnError(sql.ErrNoRows)

		_, err := ledger.Balance(ctx, db, "ghost")
		require.Error(t, err)
		assert.True(t, persistence.IsWalletNotFound(err))
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLedger_Debit(t *testing.T) {
	ctx := context.Background()

	t.Run("locks and updates", func(t *testing.T) {
		ledger, db, mock := newMockLedger(t)

		mock.ExpectQuery(`SELECT balance FROM wallets WHERE user_id = \$1 FOR UPDATE`).
			WithArgs("user-1").
			WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("10000"))
		mock.ExpectExec(`UPDATE wallets SET balance = \$2`).
			WithArgs("user-1", decimal.NewFromInt(4000)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		remaining, err := ledger.Debit(ctx, db, "user-1", decimal.NewFromInt(6000))
		require.NoError(t, err)
		assert.Equal(t, "4000", remaining.String())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insufficient balance leaves wallet untouched", func(t *testing.T) {
		ledger, db, mock := newMockLedger(t)

		mock.ExpectQuery(`FOR UPDATE`).
			WithArgs("user-1").
			WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("100"))

		balance, err := ledger.Debit(ctx, db, "user-1", decimal.NewFromInt(500))
		require.Error(t, err)
		assert.True(t, persistence.IsInsufficientBalance(err))
		assert.Equal(t, "100", balance.String())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects non positive amounts", func(t *testing.T) {
		ledger, db, mock := newMockLedger(t)

		_, err := ledger.Debit(ctx, db, "user-1", decimal.Zero)
		require.Error(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLedger_Credit(t *testing.T) {
	ledger, db, mock := newMockLedger(t)

	mock.ExpectQuery(`INSERT INTO wallets .* ON CONFLICT \(user_id\) DO UPDATE .* RETURNING balance`).
		WithArgs("user-2", decimal.NewFromInt(700)).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("1700"))

	balance, err := ledger.Credit(context.Background(), db, "user-2", decimal.NewFromInt(700))
	require.NoError(t, err)
	assert.Equal(t, "1700", balance.String())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedger_CreateTransaction(t *testing.T) {
	ledger, db, mock := newMockLedger(t)

	txn := &models.Transaction{
		ID:          "3f0c1c8e-3c1a-4e53-9f7c-9d8f8b0b1a11",
		UserID:      "user-1",
		Type:        models.TransactionTypePayment,
		Status:      models.TransactionStatusPending,
		Amount:      decimal.NewFromInt(50000),
		Description: "coffee",
		ExecutionID: "exec-1234abcd",
		Metadata:    map[string]any{"merchant_id": "m-1"},
	}

	mock.ExpectExec(`INSERT INTO transactions`).
		WithArgs(txn.ID, "user-1", "payment", "pending", decimal.NewFromInt(50000), "coffee",
			nil, nil, "exec-1234abcd", sqlmock.AnyArg(), sqlmock.AnyArg(), nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, ledger.CreateTransaction(context.Background(), db, txn))
	assert.False(t, txn.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedger_TransactionByID(t *testing.T) {
	ledger, db, mock := newMockLedger(t)

	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	completed := created.Add(time.Minute)

	mock.ExpectQuery(`SELECT id, user_id, type, status, amount`).
		WithArgs("tx-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "type", "status", "amount", "description", "recipient_id",
			"gateway_ref", "execution_id", "metadata", "created_at", "completed_at",
		}).AddRow("tx-1", "user-1", "transfer", "completed", "120000", "rent", "user-9",
			"gw-77", "exec-1", []byte(`{"note":"march"}`), created, completed))

	txn, err := ledger.TransactionByID(context.Background(), db, "tx-1")
	require.NoError(t, err)

	assert.Equal(t, models.TransactionTypeTransfer, txn.Type)
	assert.Equal(t, models.TransactionStatusCompleted, txn.Status)
	assert.Equal(t, "120000", txn.Amount.String())
	assert.Equal(t, "user-9", txn.RecipientID)
	assert.Equal(t, "gw-77", txn.GatewayRef)
	assert.Equal(t, "march", txn.Metadata["note"])
	require.NotNil(t, txn.CompletedAt)
	assert.Equal(t, completed, *txn.CompletedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedger_CompleteTransaction(t *testing.T) {
	ctx := context.Background()

	t.Run("updates the row", func(t *testing.T) {
		ledger, db, mock := newMockLedger(t)

		mock.ExpectExec(`UPDATE transactions`).
			WithArgs("tx-1", "completed", "gw-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, ledger.CompleteTransaction(ctx, db, "tx-1", "gw-1"))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown row", func(t *testing.T) {
		ledger, db, mock := newMockLedger(t)

		mock.ExpectExec(`UPDATE transactions`).
			WithArgs("tx-404", "completed", "gw-1").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := ledger.CompleteTransaction(ctx, db, "tx-404", "gw-1")
		assert.True(t, persistence.IsTransactionNotFound(err))
	})
}

func TestLedger_Subscriptions(t *testing.T) {
	ctx := context.Background()
	ledger, db, mock := newMockLedger(t)

	starts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	ends := starts.AddDate(0, 1, 0)

	sub := &models.Subscription{
		ID:        "sub-1",
		UserID:    "user-1",
		Plan:      "monthly",
		Status:    models.SubscriptionStatusPending,
		Price:     decimal.NewFromInt(150000),
		AutoRenew: true,
		StartsAt:  starts,
		EndsAt:    ends,
	}

	mock.ExpectExec(`INSERT INTO subscriptions`).
		WithArgs("sub-1", "user-1", "monthly", "pending", decimal.NewFromInt(150000), true, starts, ends, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE subscriptions SET status = \$2 WHERE id = \$1`).
		WithArgs("sub-1", "active").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`FROM subscriptions\s+WHERE status = \$1 AND auto_renew AND ends_at < \$2`).
		WithArgs("active", ends.Add(time.Hour)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "plan", "status", "price", "auto_renew", "starts_at", "ends_at", "created_at",
		}).AddRow("sub-1", "user-1", "monthly", "active", "150000", true, starts, ends, starts))

	require.NoError(t, ledger.CreateSubscription(ctx, db, sub))
	require.NoError(t, ledger.ActivateSubscription(ctx, db, "sub-1"))

	due, err := ledger.DueSubscriptions(ctx, db, ends.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, models.SubscriptionStatusActive, due[0].Status)
	assert.Equal(t, "150000", due[0].Price.String())
	assert.Equal(t, ends, due[0].EndsAt)

	mock.ExpectExec(`UPDATE subscriptions SET status = \$2 WHERE id = \$1`).
		WithArgs("sub-1", "expired").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = ledger.ExpireSubscription(ctx, db, "sub-1")
	assert.True(t, persistence.IsSubscriptionNotFound(err))

	require.NoError(t, mock.ExpectationsWereMet())
}
