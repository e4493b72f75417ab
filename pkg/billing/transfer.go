package billing

import (
	"fmt"

	"github.com/dukex/hesab/pkg/models"
)

// internalRef marks transfers settled inside the ledger.
const internalRef = "internal"

func (s *Service) transferWorkflow() models.WorkflowDefinition {
	return models.WorkflowDefinition{
		Name:        TransferWorkflow,
		Description: "Move money between two users' wallets",
		Steps: []models.StepDefinition{
			models.NewStep("validate_transfer_request", s.validateTransferRequest, models.WithRetryCount(1)),
			models.NewStep("check_rate_limits", s.checkRateLimits,
				models.WithRetryCount(1), models.DependsOn("validate_transfer_request")),
			models.NewStep("validate_user_funds", s.validateUserFunds("validate_transfer_request"),
				models.DependsOn("validate_transfer_request")),
			models.NewStep("create_transfer_transaction", s.createTransferTransaction,
				models.WithRetryCount(1), models.RequiresConfirmation(),
				models.DependsOn("validate_transfer_request", "validate_user_funds")),
			models.NewStep("debit_sender_wallet", s.debitSenderWallet,
				models.WithRetryCount(1), models.DependsOn("create_transfer_transaction")),
			models.NewStep("credit_recipient_wallet", s.creditRecipientWallet,
				models.WithRetryCount(1), models.DependsOn("debit_sender_wallet")),
			models.NewStep("send_transfer_notification", s.notify("transfer", "create_transfer_transaction"),
				models.Optional(), models.DependsOn("credit_recipient_wallet")),
		},
	}
}

func (s *Service) validateTransferRequest(ec *models.ExecutionContext) (models.StepOutcome, error) {
	if err := validateInput(transferRequestSchema, ec.Input); err != nil {
		return nil, err
	}

	amount, err := ParseAmount(ec.Input["amount"])
	if err != nil {
		return nil, err
	}

	recipient := inputString(ec, "recipient_id")
	if recipient == ec.User.UserID {
		return nil, ErrSelfTransfer
	}

	return models.StepOutcome{
		keyAmount:      amount,
		"recipient_id": recipient,
		"description":  inputString(ec, "description"),
	}, nil
}

func (s *Service) createTransferTransaction(ec *models.ExecutionContext) (models.StepOutcome, error) {
	amount, err := resultAmount(ec, "validate_transfer_request")
	if err != nil {
		return nil, err
	}

	recipient := resultString(ec, "validate_transfer_request", "recipient_id")

	if amount.GreaterThan(s.threshold) && !confirmed(ec) {
		return needsConfirmation(fmt.Sprintf(
			"انتقال %s ریال به %s بیش از سقف %s ریال است. آیا تأیید می‌کنید؟",
			amount.StringFixed(0), recipient, s.threshold.StringFixed(0))), nil
	}

	return s.createTransaction(ec, models.TransactionTypeTransfer, amount, recipient,
		resultString(ec, "validate_transfer_request", "description"))
}

func (s *Service) debitSenderWallet(ec *models.ExecutionContext) (models.StepOutcome, error) {
	amount, err := resultAmount(ec, "create_transfer_transaction")
	if err != nil {
		return nil, err
	}

	balance, err := s.debit(ec, ec.User.UserID, amount)
	if err != nil {
		return nil, err
	}

	return models.StepOutcome{keyBalance: balance}, nil
}

func (s *Service) creditRecipientWallet(ec *models.ExecutionContext) (models.StepOutcome, error) {
	txnID, err := resultValue[string](ec, "create_transfer_transaction", keyTransactionID)
	if err != nil {
		return nil, err
	}

	amount, err := resultAmount(ec, "create_transfer_transaction")
	if err != nil {
		return nil, err
	}

	recipient := resultString(ec, "validate_transfer_request", "recipient_id")

	if _, err := s.ledger.Credit(ec.Context(), ec.Tx, recipient, amount); err != nil {
		return nil, err
	}

	if err := s.ledger.CompleteTransaction(ec.Context(), ec.Tx, txnID, internalRef); err != nil {
		return nil, err
	}

	return models.StepOutcome{"recipient_id": recipient, keyTransactionID: txnID}, nil
}
