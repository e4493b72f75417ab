package billing

import (
	"errors"
	"fmt"

	"github.com/dukex/hesab/pkg/events"
	"github.com/dukex/hesab/pkg/models"
	"github.com/dukex/hesab/pkg/persistence"
	"github.com/dukex/hesab/pkg/ratelimit"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Outcome keys shared between steps.
const (
	keyAmount          = "amount"
	keyTransactionID   = "transaction_id"
	keyGatewayRef      = "gateway_ref"
	keySufficientFunds = "sufficient_funds"
	keyBalance         = "balance"
)

func confirmed(ec *models.ExecutionContext) bool {
	v, _ := ec.Input["confirmed"].(bool)

	return v
}

func inputString(ec *models.ExecutionContext, key string) string {
	v, _ := ec.Input[key].(string)

	return v
}

func resultValue[T any](ec *models.ExecutionContext, step, key string) (T, error) {
	var zero T

	outcome, ok := ec.Result(step)
	if !ok {
		return zero, fmt.Errorf("%w: %s", ErrMissingResult, step)
	}

	v, ok := outcome[key].(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s.%s", ErrMissingResult, step, key)
	}

	return v, nil
}

func resultAmount(ec *models.ExecutionContext, step string) (decimal.Decimal, error) {
	return resultValue[decimal.Decimal](ec, step, keyAmount)
}

func resultString(ec *models.ExecutionContext, step, key string) string {
	v, _ := resultValue[string](ec, step, key)

	return v
}

func needsConfirmation(message string) models.StepOutcome {
	return models.StepOutcome{
		models.OutcomeNeedsConfirmation:   true,
		models.OutcomeConfirmationMessage: message,
	}
}

func newID() string {
	return uuid.NewString()
}

// checkRateLimits counts the run against the caller's quota for the workflow.
func (s *Service) checkRateLimits(ec *models.ExecutionContext) (models.StepOutcome, error) {
	if s.limiter == nil {
		return models.StepOutcome{"allowed": true}, nil
	}

	decision, err := ratelimit.Check(ec.Context(), s.limiter, ec.User.UserID+":"+ec.Workflow)
	if err != nil {
		return nil, err
	}

	return models.StepOutcome{
		"allowed":   decision.Allowed,
		"remaining": decision.Remaining,
		"reset_in":  decision.ResetIn.String(),
	}, nil
}

// validateUserFunds reports whether the caller's wallet covers the amount
// computed by amountStep. A shortfall is data, not an error.
func (s *Service) validateUserFunds(amountStep string) models.StepHandler {
	return func(ec *models.ExecutionContext) (models.StepOutcome, error) {
		amount, err := resultAmount(ec, amountStep)
		if err != nil {
			return nil, err
		}

		balance, err := s.ledger.Balance(ec.Context(), ec.Tx, ec.User.UserID)
		if err != nil && !persistence.IsWalletNotFound(err) {
			return nil, err
		}

		return models.StepOutcome{
			keyBalance:         balance,
			"required":         amount,
			keySufficientFunds: balance.GreaterThanOrEqual(amount),
		}, nil
	}
}

// requireFunds fails fast, before anything leaves the platform, when the
// funds check came back short.
func requireFunds(ec *models.ExecutionContext) error {
	sufficient, err := resultValue[bool](ec, "validate_user_funds", keySufficientFunds)
	if err != nil {
		return err
	}

	if !sufficient {
		return ErrInsufficientFunds
	}

	return nil
}

// debit takes amount from the caller's wallet under a row lock.
func (s *Service) debit(ec *models.ExecutionContext, userID string, amount decimal.Decimal) (decimal.Decimal, error) {
	balance, err := s.ledger.Debit(ec.Context(), ec.Tx, userID, amount)
	if err != nil {
		if persistence.IsInsufficientBalance(err) || persistence.IsWalletNotFound(err) {
			return decimal.Zero, fmt.Errorf("%w: %w", ErrInsufficientFunds, err)
		}

		return decimal.Zero, err
	}

	return balance, nil
}

// createTransaction records a pending ledger row for this run.
func (s *Service) createTransaction(
	ec *models.ExecutionContext,
	kind models.TransactionType,
	amount decimal.Decimal,
	recipient, description string,
) (models.StepOutcome, error) {
	txn := &models.Transaction{
		ID:          newID(),
		UserID:      ec.User.UserID,
		Type:        kind,
		Status:      models.TransactionStatusPending,
		Amount:      amount,
		Description: description,
		RecipientID: recipient,
		ExecutionID: ec.ID,
		CreatedAt:   s.now().UTC(),
		Metadata: map[string]any{
			"workflow":   ec.Workflow,
			"ip_address": ec.IPAddress,
			"user_agent": ec.UserAgent,
		},
	}

	if err := s.ledger.CreateTransaction(ec.Context(), ec.Tx, txn); err != nil {
		return nil, err
	}

	return models.StepOutcome{keyTransactionID: txn.ID, keyAmount: amount}, nil
}

// updateWalletBalance debits the caller and completes the transaction created
// by createStep with the gateway reference from processStep.
func (s *Service) updateWalletBalance(createStep, processStep string) models.StepHandler {
	return func(ec *models.ExecutionContext) (models.StepOutcome, error) {
		txnID, err := resultValue[string](ec, createStep, keyTransactionID)
		if err != nil {
			return nil, err
		}

		amount, err := resultAmount(ec, createStep)
		if err != nil {
			return nil, err
		}

		balance, err := s.debit(ec, ec.User.UserID, amount)
		if err != nil {
			return nil, err
		}

		err = s.ledger.CompleteTransaction(ec.Context(), ec.Tx, txnID, resultString(ec, processStep, keyGatewayRef))
		if err != nil {
			return nil, err
		}

		return models.StepOutcome{keyBalance: balance, keyTransactionID: txnID}, nil
	}
}

// notify publishes a billing notification about the transaction created by
// createStep. It is always registered as optional.
func (s *Service) notify(kind, createStep string) models.StepHandler {
	return func(ec *models.ExecutionContext) (models.StepOutcome, error) {
		if s.notifier == nil {
			return models.StepOutcome{"sent": false}, nil
		}

		amount, err := resultAmount(ec, createStep)
		if err != nil && !errors.Is(err, ErrMissingResult) {
			return nil, err
		}

		event := events.BillingNotification{
			BaseEvent:     events.NewBaseEvent(events.BillingNotificationEvent, ec.Workflow, ec.ID),
			UserID:        ec.User.UserID,
			PhoneNumber:   ec.User.PhoneNumber,
			Kind:          kind,
			Message:       notificationMessage(kind, amount),
			Amount:        amount.String(),
			TransactionID: resultString(ec, createStep, keyTransactionID),
		}

		if err := s.notifier.Publish(ec.Context(), ec.User.UserID, event); err != nil {
			return nil, fmt.Errorf("publish notification: %w", err)
		}

		return models.StepOutcome{"sent": true, "notification_id": event.ID}, nil
	}
}

var notificationTemplates = map[string]string{
	"payment":      "پرداخت %s ریال با موفقیت انجام شد",
	"subscription": "اشتراک شما با پرداخت %s ریال فعال شد",
	"transfer":     "انتقال %s ریال با موفقیت انجام شد",
	"withdrawal":   "برداشت %s ریال به حساب بانکی شما ارسال شد",
}

func notificationMessage(kind string, amount decimal.Decimal) string {
	template, ok := notificationTemplates[kind]
	if !ok {
		return amount.String()
	}

	return fmt.Sprintf(template, amount.StringFixed(0))
}
