package billing_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dukex/hesab/pkg/billing"
	"github.com/dukex/hesab/pkg/gateway"
	"github.com/dukex/hesab/pkg/mocks"
	"github.com/dukex/hesab/pkg/models"
	"github.com/dukex/hesab/pkg/persistence/memory"
	"github.com/dukex/hesab/pkg/workflow"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newMockedEngine(
	t *testing.T,
	gw billing.PaymentGateway,
	transcriber billing.Transcriber,
) (*workflow.Engine, *memory.Store, *memory.Ledger) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.NewStore()
	ledger := memory.NewLedger(store)

	service := billing.NewService(ledger, gw, transcriber, logger)

	registry, err := workflow.NewRegistry(service.Catalog()...)
	require.NoError(t, err)

	engine := workflow.NewEngine(registry, store, logger,
		workflow.WithRunnerOptions(workflow.WithBackoffUnit(time.Millisecond)))
	t.Cleanup(func() { _ = engine.Close(context.Background()) })

	_, err = ledger.Credit(context.Background(), store, alice.UserID, decimal.NewFromInt(1_000_000))
	require.NoError(t, err)

	return engine, store, ledger
}

func TestPayment_ChargeCarriesRequestDetails(t *testing.T) {
	gw := &mocks.MockPaymentGateway{}
	gw.On("Charge", mock.Anything, mock.MatchedBy(func(req gateway.ChargeRequest) bool {
		return req.UserID == alice.UserID &&
			req.MerchantID == "shop-9" &&
			req.Description == "coffee" &&
			req.Amount.Equal(decimal.NewFromInt(45_000)) &&
			req.Reference != ""
	})).Return(gateway.Receipt{ID: "rcpt-1", Status: "approved"}, nil).Once()

	engine, store, ledger := newMockedEngine(t, gw, &mocks.MockTranscriber{})

	result, err := engine.Execute(context.Background(), billing.PaymentWorkflow, map[string]any{
		"amount":      45_000,
		"merchant_id": "shop-9",
		"description": "coffee",
	}, alice)
	require.NoError(t, err)
	require.Equal(t, models.WorkflowStatusCompleted, result.Status, result.Errors)

	gw.AssertExpectations(t)
	assert.Equal(t, "rcpt-1", result.Data["process_payment"]["gateway_ref"])

	balance, err := ledger.Balance(context.Background(), store, alice.UserID)
	require.NoError(t, err)
	requireAmount(t, 955_000, balance)
}

func TestVoicePayment_SpeechServiceDown(t *testing.T) {
	speech := &mocks.MockTranscriber{}
	speech.On("Transcribe", mock.Anything, gateway.TranscribeRequest{AudioURL: "https://cdn.example/v.ogg", Language: "fa"}).
		Return(gateway.Transcript{}, errors.New("speech service unavailable"))

	engine, store, ledger := newMockedEngine(t, &mocks.MockPaymentGateway{}, speech)

	result, err := engine.Execute(context.Background(), billing.VoicePaymentWorkflow, map[string]any{
		"audio_url": "https://cdn.example/v.ogg",
		"language":  "fa",
	}, alice)
	require.NoError(t, err)

	require.Equal(t, models.WorkflowStatusFailed, result.Status)
	assert.Equal(t, "transcribe_voice_command: speech service unavailable", result.FirstError())
	speech.AssertNumberOfCalls(t, "Transcribe", 3)

	balance, err := ledger.Balance(context.Background(), store, alice.UserID)
	require.NoError(t, err)
	requireAmount(t, 1_000_000, balance)
}

func TestVoicePayment_UsesTranscriptText(t *testing.T) {
	speech := &mocks.MockTranscriber{}
	speech.On("Transcribe", mock.Anything, mock.Anything).
		Return(gateway.Transcript{Text: "پرداخت ۲۰ هزار تومان به رضا", Confidence: 0.93, Language: "fa"}, nil)

	engine, _, _ := newMockedEngine(t, &mocks.MockPaymentGateway{}, speech)

	result, err := engine.Execute(context.Background(), billing.VoicePaymentWorkflow, map[string]any{
		"audio_url": "https://cdn.example/v.ogg",
	}, alice)
	require.NoError(t, err)

	require.Equal(t, models.WorkflowStatusRequiresConfirmation, result.Status, result.Errors)
	assert.InDelta(t, 0.93, result.Data["transcribe_voice_command"]["confidence"], 0.0001)
	assert.Contains(t, result.ConfirmationMessage, "رضا")
	assert.Contains(t, result.ConfirmationMessage, "200000")
}
