package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType classifies a ledger row.
type TransactionType string

const (
	TransactionTypePayment      TransactionType = "payment"
	TransactionTypeSubscription TransactionType = "subscription"
	TransactionTypeTransfer     TransactionType = "transfer"
	TransactionTypeWithdrawal   TransactionType = "withdrawal"
	TransactionTypeDeposit      TransactionType = "deposit"
)

// TransactionStatus tracks a ledger row through processing.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

// Transaction is a row in the billing ledger. Amounts are in rials.
type Transaction struct {
	ID          string            `json:"id"`
	UserID      string            `json:"user_id"`
	Type        TransactionType   `json:"type"`
	Status      TransactionStatus `json:"status"`
	Amount      decimal.Decimal   `json:"amount"`
	Description string            `json:"description"`
	RecipientID string            `json:"recipient_id,omitempty"`
	GatewayRef  string            `json:"gateway_ref,omitempty"`
	ExecutionID string            `json:"execution_id"`
	CreatedAt   time.Time         `json:"created_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
	Metadata    map[string]any    `json:"metadata,omitempty"`
}

// Wallet holds a user's balance.
type Wallet struct {
	UserID    string          `json:"user_id"`
	Balance   decimal.Decimal `json:"balance"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// SubscriptionStatus tracks a subscription lifecycle.
type SubscriptionStatus string

const (
	SubscriptionStatusPending SubscriptionStatus = "pending"
	SubscriptionStatusActive  SubscriptionStatus = "active"
	SubscriptionStatusExpired SubscriptionStatus = "expired"
)

// Subscription is a user's paid plan.
type Subscription struct {
	ID        string             `json:"id"`
	UserID    string             `json:"user_id"`
	Plan      string             `json:"plan"`
	Status    SubscriptionStatus `json:"status"`
	Price     decimal.Decimal    `json:"price"`
	AutoRenew bool               `json:"auto_renew"`
	StartsAt  time.Time          `json:"starts_at"`
	EndsAt    time.Time          `json:"ends_at"`
	CreatedAt time.Time          `json:"created_at"`
}
