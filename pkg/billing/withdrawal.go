package billing

import (
	"fmt"

	"github.com/dukex/hesab/pkg/gateway"
	"github.com/dukex/hesab/pkg/models"
)

func (s *Service) withdrawalWorkflow() models.WorkflowDefinition {
	return models.WorkflowDefinition{
		Name:        WithdrawalWorkflow,
		Description: "Pay out wallet funds to the caller's bank account",
		Steps: []models.StepDefinition{
			models.NewStep("validate_withdrawal_request", s.validateWithdrawalRequest, models.WithRetryCount(1)),
			models.NewStep("check_rate_limits", s.checkRateLimits,
				models.WithRetryCount(1), models.DependsOn("validate_withdrawal_request")),
			models.NewStep("validate_user_funds", s.validateUserFunds("validate_withdrawal_request"),
				models.DependsOn("validate_withdrawal_request")),
			models.NewStep("create_withdrawal_transaction", s.createWithdrawalTransaction,
				models.WithRetryCount(1), models.RequiresConfirmation(),
				models.DependsOn("validate_withdrawal_request", "validate_user_funds")),
			models.NewStep("process_bank_transfer", s.processBankTransfer,
				models.DependsOn("create_withdrawal_transaction")),
			models.NewStep("update_wallet_balance", s.updateWalletBalance("create_withdrawal_transaction", "process_bank_transfer"),
				models.WithRetryCount(1), models.DependsOn("process_bank_transfer")),
			models.NewStep("send_withdrawal_notification", s.notify("withdrawal", "create_withdrawal_transaction"),
				models.Optional(), models.DependsOn("update_wallet_balance")),
		},
	}
}

func (s *Service) validateWithdrawalRequest(ec *models.ExecutionContext) (models.StepOutcome, error) {
	if err := validateInput(withdrawalRequestSchema, ec.Input); err != nil {
		return nil, err
	}

	amount, err := ParseAmount(ec.Input["amount"])
	if err != nil {
		return nil, err
	}

	return models.StepOutcome{keyAmount: amount, "iban": inputString(ec, "iban")}, nil
}

// createWithdrawalTransaction always asks for confirmation first, since the
// money leaves the platform.
func (s *Service) createWithdrawalTransaction(ec *models.ExecutionContext) (models.StepOutcome, error) {
	amount, err := resultAmount(ec, "validate_withdrawal_request")
	if err != nil {
		return nil, err
	}

	iban := resultString(ec, "validate_withdrawal_request", "iban")

	if !confirmed(ec) {
		return needsConfirmation(fmt.Sprintf(
			"برداشت %s ریال به حساب %s. آیا تأیید می‌کنید؟", amount.StringFixed(0), iban)), nil
	}

	outcome, err := s.createTransaction(ec, models.TransactionTypeWithdrawal, amount, iban, "withdrawal")
	if err != nil {
		return nil, err
	}

	return outcome, nil
}

func (s *Service) processBankTransfer(ec *models.ExecutionContext) (models.StepOutcome, error) {
	if err := requireFunds(ec); err != nil {
		return nil, err
	}

	txnID, err := resultValue[string](ec, "create_withdrawal_transaction", keyTransactionID)
	if err != nil {
		return nil, err
	}

	amount, err := resultAmount(ec, "create_withdrawal_transaction")
	if err != nil {
		return nil, err
	}

	receipt, err := s.gateway.Payout(ec.Context(), gateway.PayoutRequest{
		UserID:    ec.User.UserID,
		IBAN:      resultString(ec, "validate_withdrawal_request", "iban"),
		Amount:    amount,
		Reference: txnID,
	})
	if err != nil {
		return nil, err
	}

	return models.StepOutcome{keyGatewayRef: receipt.ID, "gateway_status": receipt.Status}, nil
}
