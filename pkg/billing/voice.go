package billing

import (
	"fmt"

	"github.com/dukex/hesab/pkg/gateway"
	"github.com/dukex/hesab/pkg/models"
)

func (s *Service) voicePaymentWorkflow() models.WorkflowDefinition {
	return models.WorkflowDefinition{
		Name:        VoicePaymentWorkflow,
		Description: "Pay from a spoken command such as \"پرداخت ۵۰ هزار تومان به علی\"",
		Steps: []models.StepDefinition{
			models.NewStep("transcribe_voice_command", s.transcribeVoiceCommand),
			models.NewStep("parse_payment_intent", s.parsePaymentIntent,
				models.WithRetryCount(1), models.DependsOn("transcribe_voice_command")),
			models.NewStep("validate_payment_request", s.validatePaymentRequest(true),
				models.WithRetryCount(1), models.DependsOn("parse_payment_intent")),
			models.NewStep("check_rate_limits", s.checkRateLimits,
				models.WithRetryCount(1), models.DependsOn("validate_payment_request")),
			models.NewStep("validate_user_funds", s.validateUserFunds("validate_payment_request"),
				models.DependsOn("validate_payment_request")),
			models.NewStep("confirm_voice_payment", s.confirmVoicePayment,
				models.WithRetryCount(1), models.RequiresConfirmation(),
				models.DependsOn("validate_payment_request")),
			models.NewStep("create_payment_transaction", s.createPaymentTransaction,
				models.WithRetryCount(1), models.RequiresConfirmation(),
				models.DependsOn("confirm_voice_payment", "validate_user_funds")),
			models.NewStep("process_payment", s.processPayment,
				models.DependsOn("create_payment_transaction")),
			models.NewStep("update_wallet_balance", s.updateWalletBalance("create_payment_transaction", "process_payment"),
				models.WithRetryCount(1), models.DependsOn("process_payment")),
			models.NewStep("send_payment_notification", s.notify("payment", "create_payment_transaction"),
				models.Optional(), models.DependsOn("update_wallet_balance")),
		},
	}
}

func (s *Service) transcribeVoiceCommand(ec *models.ExecutionContext) (models.StepOutcome, error) {
	if err := validateInput(voiceCommandSchema, ec.Input); err != nil {
		return nil, err
	}

	transcript, err := s.transcriber.Transcribe(ec.Context(), gateway.TranscribeRequest{
		Audio:    inputString(ec, "audio"),
		AudioURL: inputString(ec, "audio_url"),
		Language: inputString(ec, "language"),
	})
	if err != nil {
		return nil, err
	}

	s.logger.DebugContext(ec.Context(), "voice command transcribed",
		"execution_id", ec.ID, "confidence", transcript.Confidence)

	return models.StepOutcome{
		"transcript": transcript.Text,
		"confidence": transcript.Confidence,
		"language":   transcript.Language,
	}, nil
}

func (s *Service) parsePaymentIntent(ec *models.ExecutionContext) (models.StepOutcome, error) {
	text, err := resultValue[string](ec, "transcribe_voice_command", "transcript")
	if err != nil {
		return nil, err
	}

	intent, err := ParseIntent(text)
	if err != nil {
		return nil, err
	}

	return models.StepOutcome{
		keyAmount:     intent.Amount,
		"recipient":   intent.Recipient,
		"description": intent.Description,
	}, nil
}

// confirmVoicePayment reads the understood command back to the caller. Speech
// recognition can mishear, so every voice payment is confirmed.
func (s *Service) confirmVoicePayment(ec *models.ExecutionContext) (models.StepOutcome, error) {
	amount, err := resultAmount(ec, "validate_payment_request")
	if err != nil {
		return nil, err
	}

	merchant := resultString(ec, "validate_payment_request", "merchant_id")

	if !confirmed(ec) {
		return needsConfirmation(fmt.Sprintf(
			"پرداخت %s ریال به %s. آیا تأیید می‌کنید؟", amount.StringFixed(0), merchant)), nil
	}

	return models.StepOutcome{"confirmed": true}, nil
}
