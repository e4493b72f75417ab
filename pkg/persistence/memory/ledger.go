package memory

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/dukex/hesab/pkg/models"
	"github.com/dukex/hesab/pkg/persistence"
	"github.com/shopspring/decimal"
)

var errNonPositiveAmount = errors.New("amount must be positive")

// Ledger operates on a *Tx, or on the *Store itself in autocommit mode.
type Ledger struct {
	store *Store
}

// NewLedger creates a ledger over store.
func NewLedger(store *Store) *Ledger {
	return &Ledger{store: store}
}

func (l *Ledger) apply(ctx context.Context, q persistence.Querier, fn func(*state) error) error {
	switch q := q.(type) {
	case *Tx:
		return q.apply(fn)
	case *Store:
		tx, err := q.Begin(ctx)
		if err != nil {
			return err
		}

		memTx := tx.(*Tx)
		if err := memTx.apply(fn); err != nil {
			_ = memTx.Rollback()

			return err
		}

		return memTx.Commit()
	default:
		return fmt.Errorf("%w: unsupported querier %T", persistence.ErrNoTransaction, q)
	}
}

// Balance reads a wallet balance.
func (l *Ledger) Balance(ctx context.Context, q persistence.Querier, userID string) (decimal.Decimal, error) {
	var balance decimal.Decimal

	err := l.apply(ctx, q, func(s *state) error {
		b, ok := s.wallets[userID]
		if !ok {
			return persistence.NewWalletError("Balance", userID, persistence.ErrWalletNotFound)
		}

		balance = b

		return nil
	})

	return balance, err
}

// Debit subtracts amount, refusing to go negative.
func (l *Ledger) Debit(ctx context.Context, q persistence.Querier, userID string, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, persistence.NewWalletError("Debit", userID, errNonPositiveAmount)
	}

	var balance decimal.Decimal

	err := l.apply(ctx, q, func(s *state) error {
		b, ok := s.wallets[userID]
		if !ok {
			return persistence.NewWalletError("Debit", userID, persistence.ErrWalletNotFound)
		}

		balance = b
		if b.LessThan(amount) {
			return persistence.NewWalletError("Debit", userID, persistence.ErrInsufficientBalance)
		}

		balance = b.Sub(amount)
		s.wallets[userID] = balance

		return nil
	})

	return balance, err
}

// Credit adds amount, creating the wallet on first credit.
func (l *Ledger) Credit(ctx context.Context, q persistence.Querier, userID string, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, persistence.NewWalletError("Credit", userID, errNonPositiveAmount)
	}

	var balance decimal.Decimal

	err := l.apply(ctx, q, func(s *state) error {
		balance = s.wallets[userID].Add(amount)
		s.wallets[userID] = balance

		return nil
	})

	return balance, err
}

// CreateTransaction stores a ledger row.
func (l *Ledger) CreateTransaction(ctx context.Context, q persistence.Querier, txn *models.Transaction) error {
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now().UTC()
	}

	return l.apply(ctx, q, func(s *state) error {
		if _, exists := s.transactions[txn.ID]; exists {
			return fmt.Errorf("transaction %s already exists", txn.ID)
		}

		stored := *txn
		stored.Metadata = maps.Clone(txn.Metadata)
		s.transactions[txn.ID] = stored

		return nil
	})
}

// TransactionByID loads one ledger row.
func (l *Ledger) TransactionByID(ctx context.Context, q persistence.Querier, id string) (*models.Transaction, error) {
	var txn models.Transaction

	err := l.apply(ctx, q, func(s *state) error {
		stored, ok := s.transactions[id]
		if !ok {
			return persistence.NewRecordError("TransactionByID", id, persistence.ErrTransactionNotFound)
		}

		txn = stored

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &txn, nil
}

// CompleteTransaction marks a row completed with its gateway reference.
func (l *Ledger) CompleteTransaction(ctx context.Context, q persistence.Querier, id, gatewayRef string) error {
	return l.apply(ctx, q, func(s *state) error {
		txn, ok := s.transactions[id]
		if !ok {
			return persistence.NewRecordError("CompleteTransaction", id, persistence.ErrTransactionNotFound)
		}

		now := time.Now().UTC()
		txn.Status = models.TransactionStatusCompleted
		txn.GatewayRef = gatewayRef
		txn.CompletedAt = &now
		s.transactions[id] = txn

		return nil
	})
}

// CreateSubscription stores a subscription row.
func (l *Ledger) CreateSubscription(ctx context.Context, q persistence.Querier, sub *models.Subscription) error {
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}

	return l.apply(ctx, q, func(s *state) error {
		if _, exists := s.subscriptions[sub.ID]; exists {
			return fmt.Errorf("subscription %s already exists", sub.ID)
		}

		s.subscriptions[sub.ID] = *sub

		return nil
	})
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
	return l.apply(ctx, q, func(s *state) error {
		sub, ok := s.subscriptions[id]
		if !ok {
			return persistence.NewRecordError(op, id, persistence.ErrSubscriptionNotFound)
		}

		sub.Status = status
		s.subscriptions[id] = sub

		return nil
	})
}

// DueSubscriptions lists active auto-renewing subscriptions ending before t.
func (l *Ledger) DueSubscriptions(ctx context.Context, q persistence.Querier, before time.Time) ([]*models.Subscription, error) {
	var due []*models.Subscription

	err := l.apply(ctx, q, func(s *state) error {
		for _, sub := range s.subscriptions {
			if sub.Status == models.SubscriptionStatusActive && sub.AutoRenew && sub.EndsAt.Before(before) {
				due = append(due, &sub)
			}
		}

		return nil
	})

	slices.SortFunc(due, func(a, b *models.Subscription) int {
		return cmp.Or(a.EndsAt.Compare(b.EndsAt), cmp.Compare(a.ID, b.ID))
	})

	return due, err
}
