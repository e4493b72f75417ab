package postgresql_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dukex/hesab/pkg/models"
	"github.com/dukex/hesab/pkg/persistence/postgresql"
	"github.com/dukex/hesab/pkg/workflow"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// debitEngine runs a one-step workflow that debits amount from "alice".
func debitEngine(t *testing.T, amount int64) (*workflow.Engine, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := postgresql.FromDB(db, logger)

	registry, err := workflow.NewRegistry(models.WorkflowDefinition{
		Name: "debit",
		Steps: []models.StepDefinition{
			models.NewStep("debit_wallet", func(ec *models.ExecutionContext) (models.StepOutcome, error) {
				balance, err := p.Ledger().Debit(ec.Context(), ec.Tx, "alice", decimal.NewFromInt(amount))
				if err != nil {
					return nil, err
				}

				return models.StepOutcome{"balance": balance.String()}, nil
			}, models.WithRetryCount(1), models.WithTimeout(time.Second)),
		},
	})
	require.NoError(t, err)

	engine := workflow.NewEngine(registry, p, logger)

	t.Cleanup(func() {
		_ = engine.Close(context.Background())
		_ = db.Close()
	})

	return engine, mock
}

func TestEngine_CommitsRunTransaction(t *testing.T) {
	engine, mock := debitEngine(t, 300)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("1000"))
	mock.ExpectExec(`UPDATE wallets`).
		WithArgs("alice", decimal.NewFromInt(700)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	result, err := engine.Execute(context.Background(), "debit", nil, models.Identity{UserID: "alice"})
	require.NoError(t, err)

	assert.Equal(t, models.WorkflowStatusCompleted, result.Status)
	assert.Equal(t, "700", result.Data["debit_wallet"]["balance"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEngine_RollsBackRunTransactionOnFailure(t *testing.T) {
	engine, mock := debitEngine(t, 5000)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("1000"))
	mock.ExpectRollback()

	result, err := engine.Execute(context.Background(), "debit", nil, models.Identity{UserID: "alice"})
	require.NoError(t, err)

	assert.Equal(t, models.WorkflowStatusFailed, result.Status)
	assert.Contains(t, result.FirstError(), "insufficient balance")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEngine_BeginFailureIsSystemFault(t *testing.T) {
	engine, mock := debitEngine(t, 1)

	mock.ExpectBegin().WillReturnError(assert.AnError)

	result, err := engine.Execute(context.Background(), "debit", nil, models.Identity{UserID: "alice"})
	require.Error(t, err)

	assert.True(t, workflow.IsSystemFault(err))
	assert.Equal(t, models.WorkflowStatusFailed, result.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}
