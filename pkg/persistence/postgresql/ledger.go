package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/hesab/pkg/models"
	"github.com/dukex/hesab/pkg/persistence"
	"github.com/shopspring/decimal"
)

var errNonPositiveAmount = errors.New("amount must be positive")

// Ledger handles wallet, transaction and subscription rows. It holds no
// connection: callers pass the Querier, normally the run's transaction.
type Ledger struct {
	logger *slog.Logger
}

// NewLedger creates a new ledger repository.
func NewLedger(logger *slog.Logger) *Ledger {
	return &Ledger{logger: logger}
}

// Balance reads a wallet balance without locking it.
func (l *Ledger) Balance(ctx context.Context, q persistence.Querier, userID string) (decimal.Decimal, error) {
	var balance decimal.Decimal

	err := q.QueryRowContext(ctx, `SELECT balance FROM wallets WHERE user_id = $1`, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, persistence.NewWalletError("Balance", userID, persistence.ErrWalletNotFound)
		}

		return decimal.Zero, fmt.Errorf("failed to query balance: %w", err)
	}

	return balance, nil
}

// Debit locks the wallet row and subtracts amount, refusing to go negative.
func (l *Ledger) Debit(ctx context.Context, q persistence.Querier, userID string, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, persistence.NewWalletError("Debit", userID, errNonPositiveAmount)
	}

	var balance decimal.Decimal

	err := q.QueryRowContext(ctx, `SELECT balance FROM wallets WHERE user_id = $1 FOR UPDATE`, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, persistence.NewWalletError("Debit", userID, persistence.ErrWalletNotFound)
		}

		return decimal.Zero, fmt.Errorf("failed to lock wallet: %w", err)
	}

	if balance.LessThan(amount) {
		return balance, persistence.NewWalletError("Debit", userID, persistence.ErrInsufficientBalance)
	}

	remaining := balance.Sub(amount)

	_, err = q.ExecContext(ctx, `UPDATE wallets SET balance = $2, updated_at = NOW() WHERE user_id = $1`, userID, remaining)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to update wallet: %w", err)
	}

	l.logger.DebugContext(ctx, "Wallet debited", "user_id", userID, "amount", amount, "balance", remaining)

	return remaining, nil
}

// Credit adds amount to a wallet, creating it on first credit.
func (l *Ledger) Credit(ctx context.Context, q persistence.Querier, userID string, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, persistence.NewWalletError("Credit", userID, errNonPositiveAmount)
	}

	query := `
		INSERT INTO wallets (user_id, balance, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			balance = wallets.balance + EXCLUDED.balance,
			updated_at = NOW()
		RETURNING balance
	`

	var balance decimal.Decimal

	err := q.QueryRowContext(ctx, query, userID, amount).Scan(&balance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to credit wallet: %w", err)
	}

	l.logger.DebugContext(ctx, "Wallet credited", "user_id", userID, "amount", amount, "balance", balance)

	return balance, nil
}

// CreateTransaction inserts a ledger row.
func (l *Ledger) CreateTransaction(ctx context.Context, q persistence.Querier, txn *models.Transaction) error {
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now().UTC()
	}

	metadataJSON, err := json.Marshal(txn.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT INTO transactions (
			id, user_id, type, status, amount, description, recipient_id,
			gateway_ref, execution_id, metadata, created_at, completed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err = q.ExecContext(ctx, query,
		txn.ID,
		txn.UserID,
		txn.Type,
		txn.Status,
		txn.Amount,
		txn.Description,
		nullString(txn.RecipientID),
		nullString(txn.GatewayRef),
		txn.ExecutionID,
		metadataJSON,
		txn.CreatedAt,
		txn.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save transaction: %w", err)
	}

	return nil
}

// TransactionByID loads one ledger row.
func (l *Ledger) TransactionByID(ctx context.Context, q persistence.Querier, id string) (*models.Transaction, error) {
	query := `
		SELECT id, user_id, type, status, amount, description, recipient_id,
			   gateway_ref, execution_id, metadata, created_at, completed_at
		FROM transactions
		WHERE id = $1
	`

	var (
		txn          models.Transaction
		recipientID  sql.NullString
		gatewayRef   sql.NullString
		metadataJSON []byte
		completedAt  sql.NullTime
	)

	err := q.QueryRowContext(ctx, query, id).Scan(
		&txn.ID,
		&txn.UserID,
		&txn.Type,
		&txn.Status,
		&txn.Amount,
		&txn.Description,
		&recipientID,
		&gatewayRef,
		&txn.ExecutionID,
		&metadataJSON,
		&txn.CreatedAt,
		&completedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewRecordError("TransactionByID", id, persistence.ErrTransactionNotFound)
		}

		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}

	txn.RecipientID = recipientID.String
	txn.GatewayRef = gatewayRef.String

	if completedAt.Valid {
		txn.CompletedAt = &completedAt.Time
	}

	if len(metadataJSON) > 0 {
		err = json.Unmarshal(metadataJSON, &txn.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return &txn, nil
}

// CompleteTransaction marks a pending row completed with its gateway reference.
func (l *Ledger) CompleteTransaction(ctx context.Context, q persistence.Querier, id, gatewayRef string) error {
	result, err := q.ExecContext(ctx, `
		UPDATE transactions
		SET status = $2, gateway_ref = $3, completed_at = NOW()
		WHERE id = $1
	`, id, models.TransactionStatusCompleted, nullString(gatewayRef))
	if err != nil {
		return fmt.Errorf("failed to complete transaction: %w", err)
	}

	return expectOneRow(result, persistence.NewRecordError("CompleteTransaction", id, persistence.ErrTransactionNotFound))
}

// CreateSubscription inserts a subscription row.
func (l *Ledger) CreateSubscription(ctx context.Context, q persistence.Querier, sub *models.Subscription) error {
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO subscriptions (id, user_id, plan, status, price, auto_renew, starts_at, ends_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := q.ExecContext(ctx, query,
		sub.ID,
		sub.UserID,
		sub.Plan,
		sub.Status,
		sub.Price,
		sub.AutoRenew,
		sub.StartsAt,
		sub.EndsAt,
		sub.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save subscription: %w", err)
	}

	return nil
}

// ActivateSubscription moves a subscription to active.
func (l *Ledger) ActivateSubscription(ctx context.Context, q persistence.Querier, id string) error {
	return l.setSubscriptionStatus(ctx, q, "ActivateSubscription", id, models.SubscriptionStatusActive)
}

// ExpireSubscription moves a subscription to expired.
func (l *Ledger) ExpireSubscription(ctx context.Context, q persistence.Querier, id string) error {
	return l.setSubscriptionStatus(ctx, q, "ExpireSubscription", id, models.SubscriptionStatusExpired)
}

func (l *Ledger) setSubscriptionStatus(
	ctx context.Context,
	q persistence.Querier,
	op, id string,
	status models.SubscriptionStatus,
) error {
	result, err := q.ExecContext(ctx, `UPDATE subscriptions SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("failed to set subscription status to %s: %w", status, err)
	}

	return expectOneRow(result, persistence.NewRecordError(op, id, persistence.ErrSubscriptionNotFound))
}

// DueSubscriptions lists active auto-renewing subscriptions ending before t,
// soonest first.
func (l *Ledger) DueSubscriptions(ctx context.Context, q persistence.Querier, before time.Time) ([]*models.Subscription, error) {
	query := `
		SELECT id, user_id, plan, status, price, auto_renew, starts_at, ends_at, created_at
		FROM subscriptions
		WHERE status = $1 AND auto_renew AND ends_at < $2
		ORDER BY ends_at ASC
	`

	rows, err := q.QueryContext(ctx, query, models.SubscriptionStatusActive, before)
	if err != nil {
		return nil, fmt.Errorf("failed to query due subscriptions: %w", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			l.logger.ErrorContext(ctx, "Failed to close rows", "error", closeErr)
		}
	}()

	var subscriptions []*models.Subscription

	for rows.Next() {
		var sub models.Subscription

		err := rows.Scan(
			&sub.ID,
			&sub.UserID,
			&sub.Plan,
			&sub.Status,
			&sub.Price,
			&sub.AutoRenew,
			&sub.StartsAt,
			&sub.EndsAt,
			&sub.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}

		subscriptions = append(subscriptions, &sub)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subscriptions: %w", err)
	}

	return subscriptions, nil
}

func expectOneRow(result sql.Result, notFound error) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		return notFound
	}

	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
