// Package billing defines the catalog of billing workflows and the step
// handlers behind them: payments, subscriptions, transfers, withdrawals and
// voice-initiated payments.
package billing

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dukex/hesab/pkg/eventbus"
	"github.com/dukex/hesab/pkg/gateway"
	"github.com/dukex/hesab/pkg/models"
	"github.com/dukex/hesab/pkg/persistence"
	"github.com/dukex/hesab/pkg/pricing"
	"github.com/dukex/hesab/pkg/ratelimit"
	"github.com/shopspring/decimal"
)

// Workflow names.
const (
	PaymentWorkflow      = "payment_process"
	SubscriptionWorkflow = "subscription_process"
	TransferWorkflow     = "transfer_process"
	WithdrawalWorkflow   = "withdrawal_process"
	VoicePaymentWorkflow = "voice_payment_process"
)

// PlatformMerchant receives payments made without a merchant_id, such as
// consultation fees.
const PlatformMerchant = "platform"

// DefaultConfirmationThreshold is the amount, in rials, above which payments
// and transfers need explicit confirmation.
var DefaultConfirmationThreshold = decimal.NewFromInt(1_000_000)

var (
	// ErrInvalidRequest indicates the workflow input failed validation.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrInvalidAmount indicates an amount that is missing, malformed or not positive.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInsufficientFunds indicates the wallet cannot cover the debit.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrSelfTransfer indicates sender and recipient are the same user.
	ErrSelfTransfer = errors.New("cannot transfer to self")

	// ErrUnparseableIntent indicates a voice command had no recognisable payment.
	ErrUnparseableIntent = errors.New("could not understand payment command")

	// ErrMissingResult indicates a step ran without the output of an earlier step.
	ErrMissingResult = errors.New("missing result of earlier step")
)

// Ledger is the storage the handlers need. Every call runs on the run's Tx.
type Ledger interface {
	Balance(ctx context.Context, q persistence.Querier, userID string) (decimal.Decimal, error)
	Debit(ctx context.Context, q persistence.Querier, userID string, amount decimal.Decimal) (decimal.Decimal, error)
	Credit(ctx context.Context, q persistence.Querier, userID string, amount decimal.Decimal) (decimal.Decimal, error)
	CreateTransaction(ctx context.Context, q persistence.Querier, txn *models.Transaction) error
	CompleteTransaction(ctx context.Context, q persistence.Querier, id, gatewayRef string) error
	CreateSubscription(ctx context.Context, q persistence.Querier, sub *models.Subscription) error
	ActivateSubscription(ctx context.Context, q persistence.Querier, id string) error
	ExpireSubscription(ctx context.Context, q persistence.Querier, id string) error
	DueSubscriptions(ctx context.Context, q persistence.Querier, before time.Time) ([]*models.Subscription, error)
}

// PaymentGateway moves money outside the platform.
type PaymentGateway interface {
	Charge(ctx context.Context, req gateway.ChargeRequest) (gateway.Receipt, error)
	Payout(ctx context.Context, req gateway.PayoutRequest) (gateway.Receipt, error)
}

// Transcriber turns a voice command into text.
type Transcriber interface {
	Transcribe(ctx context.Context, req gateway.TranscribeRequest) (gateway.Transcript, error)
}

// Service holds the collaborators the step handlers share.
type Service struct {
	ledger      Ledger
	gateway     PaymentGateway
	transcriber Transcriber
	limiter     ratelimit.Limiter
	pricer      *pricing.Pricer
	notifier    eventbus.EventPublisher
	logger      *slog.Logger

	threshold decimal.Decimal
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithRateLimiter enables the check_rate_limits step. Without one every
// request is allowed.
func WithRateLimiter(limiter ratelimit.Limiter) Option {
	return func(s *Service) { s.limiter = limiter }
}

// WithNotifier publishes billing notifications. Without one notification
// steps are no-ops.
func WithNotifier(notifier eventbus.EventPublisher) Option {
	return func(s *Service) { s.notifier = notifier }
}

// WithPricer replaces the default subscription pricing.
func WithPricer(pricer *pricing.Pricer) Option {
	return func(s *Service) { s.pricer = pricer }
}

// WithConfirmationThreshold sets the amount above which confirmation is needed.
func WithConfirmationThreshold(threshold decimal.Decimal) Option {
	return func(s *Service) { s.threshold = threshold }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService wires the handlers to their collaborators.
func NewService(ledger Ledger, gw PaymentGateway, transcriber Transcriber, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		ledger:      ledger,
		gateway:     gw,
		transcriber: transcriber,
		pricer:      pricing.New(pricing.DefaultMonthlyPrice),
		logger:      logger,
		threshold:   DefaultConfirmationThreshold,
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Catalog returns the billing workflows in registration order.
func (s *Service) Catalog() []models.WorkflowDefinition {
	return []models.WorkflowDefinition{
		s.paymentWorkflow(),
		s.subscriptionWorkflow(),
		s.transferWorkflow(),
		s.withdrawalWorkflow(),
		s.voicePaymentWorkflow(),
	}
}
