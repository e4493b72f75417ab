package billing

import (
	"fmt"

	"github.com/dukex/hesab/pkg/gateway"
	"github.com/dukex/hesab/pkg/models"
)

func (s *Service) paymentWorkflow() models.WorkflowDefinition {
	return models.WorkflowDefinition{
		Name:        PaymentWorkflow,
		Description: "Pay a merchant or the platform from the caller's wallet",
		Steps: []models.StepDefinition{
			models.NewStep("validate_payment_request", s.validatePaymentRequest(false), models.WithRetryCount(1)),
			models.NewStep("check_rate_limits", s.checkRateLimits,
				models.WithRetryCount(1), models.DependsOn("validate_payment_request")),
			models.NewStep("validate_user_funds", s.validateUserFunds("validate_payment_request"),
				models.DependsOn("validate_payment_request")),
			models.NewStep("create_payment_transaction", s.createPaymentTransaction,
				models.WithRetryCount(1), models.RequiresConfirmation(),
				models.DependsOn("validate_payment_request", "validate_user_funds")),
			models.NewStep("process_payment", s.processPayment,
				models.DependsOn("create_payment_transaction")),
			models.NewStep("update_wallet_balance", s.updateWalletBalance("create_payment_transaction", "process_payment"),
				models.WithRetryCount(1), models.DependsOn("process_payment")),
			models.NewStep("send_payment_notification", s.notify("payment", "create_payment_transaction"),
				models.Optional(), models.DependsOn("update_wallet_balance")),
		},
	}
}

// validatePaymentRequest validates the raw input or, for voice payments, the
// parsed intent.
func (s *Service) validatePaymentRequest(fromIntent bool) models.StepHandler {
	return func(ec *models.ExecutionContext) (models.StepOutcome, error) {
		request := ec.Input

		if fromIntent {
			intent, ok := ec.Result("parse_payment_intent")
			if !ok {
				return nil, fmt.Errorf("%w: parse_payment_intent", ErrMissingResult)
			}

			request = map[string]any{
				"amount":      intent[keyAmount],
				"merchant_id": intent["recipient"],
				"description": intent["description"],
			}
		}

		if err := validateInput(paymentRequestSchema, request); err != nil {
			return nil, err
		}

		amount, err := ParseAmount(request["amount"])
		if err != nil {
			return nil, err
		}

		description, _ := request["description"].(string)

		merchant, _ := request["merchant_id"].(string)
		if merchant == "" {
			merchant = PlatformMerchant
		}

		return models.StepOutcome{
			keyAmount:     amount,
			"merchant_id": merchant,
			"description": description,
		}, nil
	}
}

// createPaymentTransaction pauses large unconfirmed payments before writing anything.
func (s *Service) createPaymentTransaction(ec *models.ExecutionContext) (models.StepOutcome, error) {
	amount, err := resultAmount(ec, "validate_payment_request")
	if err != nil {
		return nil, err
	}

	merchant := resultString(ec, "validate_payment_request", "merchant_id")

	if amount.GreaterThan(s.threshold) && !confirmed(ec) {
		return needsConfirmation(fmt.Sprintf(
			"پرداخت %s ریال به %s بیش از سقف %s ریال است. آیا تأیید می‌کنید؟",
			amount.StringFixed(0), merchant, s.threshold.StringFixed(0))), nil
	}

	return s.createTransaction(ec, models.TransactionTypePayment, amount, merchant,
		resultString(ec, "validate_payment_request", "description"))
}

// processPayment settles with the merchant through the gateway. The
// transaction ID is the idempotency key, so retries do not double-charge.
func (s *Service) processPayment(ec *models.ExecutionContext) (models.StepOutcome, error) {
	if err := requireFunds(ec); err != nil {
		return nil, err
	}

	txnID, err := resultValue[string](ec, "create_payment_transaction", keyTransactionID)
	if err != nil {
		return nil, err
	}

	amount, err := resultAmount(ec, "create_payment_transaction")
	if err != nil {
		return nil, err
	}

	receipt, err := s.gateway.Charge(ec.Context(), gateway.ChargeRequest{
		UserID:      ec.User.UserID,
		MerchantID:  resultString(ec, "validate_payment_request", "merchant_id"),
		Amount:      amount,
		Reference:   txnID,
		Description: resultString(ec, "validate_payment_request", "description"),
	})
	if err != nil {
		return nil, err
	}

	return models.StepOutcome{keyGatewayRef: receipt.ID, "gateway_status": receipt.Status}, nil
}
