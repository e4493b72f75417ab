// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrWalletNotFound indicates no wallet exists for the given user.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrTransactionNotFound indicates a ledger row was not found by the given identifier.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrSubscriptionNotFound indicates a subscription was not found by the given identifier.
	ErrSubscriptionNotFound = errors.New("subscription not found")

	// ErrInsufficientBalance indicates a debit would take a wallet below zero.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrNoTransaction indicates a repository was called outside a unit of work.
	ErrNoTransaction = errors.New("no open transaction")
)

// LedgerError wraps ledger-related errors with additional context.
type LedgerError struct {
	Op     string // Operation being performed (e.g., "Balance", "Adjust")
	UserID string // Wallet owner if applicable
	ID     string // Transaction or subscription ID if applicable
	Err    error  // Underlying error
}

func (e *LedgerError) Error() string {
	target := e.UserID
	if e.ID != "" {
		target = e.ID
	}

	return fmt.Sprintf("%s operation failed for %s: %v", e.Op, target, e.Err)
}

func (e *LedgerError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for ledger errors.
func (e *LedgerError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewWalletError creates a new ledger error scoped to a wallet owner.
func NewWalletError(op, userID string, err error) *LedgerError {
	return &LedgerError{
		Op:     op,
		UserID: userID,
		Err:    err,
	}
}

// NewRecordError creates a new ledger error scoped to a transaction or subscription row.
func NewRecordError(op, id string, err error) *LedgerError {
	return &LedgerError{
		Op:  op,
		ID:  id,
		Err: err,
	}
}

// IsWalletNotFound checks if an error indicates a wallet was not found.
func IsWalletNotFound(err error) bool {
	return errors.Is(err, ErrWalletNotFound)
}

// IsTransactionNotFound checks if an error indicates a ledger row was not found.
func IsTransactionNotFound(err error) bool {
	return errors.Is(err, ErrTransactionNotFound)
}

// IsInsufficientBalance checks if an error indicates a rejected debit.
func IsInsufficientBalance(err error) bool {
	return errors.Is(err, ErrInsufficientBalance)
}

// IsSubscriptionNotFound checks if an error indicates a subscription was not found.
func IsSubscriptionNotFound(err error) bool {
	return errors.Is(err, ErrSubscriptionNotFound)
}
