package billing_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dukex/hesab/pkg/billing"
	"github.com/dukex/hesab/pkg/eventbus"
	"github.com/dukex/hesab/pkg/events"
	"github.com/dukex/hesab/pkg/gateway"
	"github.com/dukex/hesab/pkg/models"
	"github.com/dukex/hesab/pkg/persistence/memory"
	"github.com/dukex/hesab/pkg/workflow"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var (
	alice = models.Identity{UserID: "alice", PhoneNumber: "+989120000001"}
	bob   = models.Identity{UserID: "bob"}

	fixedNow = time.Date(2026, 3, 21, 9, 0, 0, 0, time.UTC)
)

type notifications struct {
	mu     sync.Mutex
	events []events.BillingNotification
}

func (n *notifications) Publish(_ context.Context, _ string, event eventbus.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if e, ok := event.(events.BillingNotification); ok {
		n.events = append(n.events, e)
	}

	return nil
}

func (n *notifications) All() []events.BillingNotification {
	n.mu.Lock()
	defer n.mu.Unlock()

	return append([]events.BillingNotification(nil), n.events...)
}

// recordingGateway approves or declines and remembers every reference it saw.
type recordingGateway struct {
	mu         sync.Mutex
	err        error
	references []string
}

func (g *recordingGateway) Charge(_ context.Context, req gateway.ChargeRequest) (gateway.Receipt, error) {
	return g.record(req.Reference)
}

func (g *recordingGateway) Payout(_ context.Context, req gateway.PayoutRequest) (gateway.Receipt, error) {
	return g.record(req.Reference)
}

func (g *recordingGateway) record(reference string) (gateway.Receipt, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.references = append(g.references, reference)
	if g.err != nil {
		return gateway.Receipt{}, g.err
	}

	return gateway.Receipt{ID: "gw-" + reference, Status: "approved"}, nil
}

func (g *recordingGateway) References() []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	return append([]string(nil), g.references...)
}

type harness struct {
	store    *memory.Store
	ledger   *memory.Ledger
	gateway  *recordingGateway
	notified *notifications
	engine   *workflow.Engine
}

func newHarness(t *testing.T, opts ...billing.Option) *harness {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	h := &harness{
		store:    memory.NewStore(),
		gateway:  &recordingGateway{},
		notified: &notifications{},
	}
	h.ledger = memory.NewLedger(h.store)

	opts = append([]billing.Option{
		billing.WithNotifier(h.notified),
		billing.WithClock(func() time.Time { return fixedNow }),
	}, opts...)

	service := billing.NewService(h.ledger, h.gateway, gateway.StaticTranscriber{}, logger, opts...)

	registry, err := workflow.NewRegistry(service.Catalog()...)
	require.NoError(t, err)

	h.engine = workflow.NewEngine(registry, h.store, logger,
		workflow.WithRunnerOptions(workflow.WithBackoffUnit(time.Millisecond)))

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = h.engine.Close(ctx)
	})

	return h
}

func (h *harness) fund(t *testing.T, userID string, amount int64) {
	t.Helper()

	_, err := h.ledger.Credit(context.Background(), h.store, userID, decimal.NewFromInt(amount))
	require.NoError(t, err)
}

func (h *harness) balance(t *testing.T, userID string) decimal.Decimal {
	t.Helper()

	balance, err := h.ledger.Balance(context.Background(), h.store, userID)
	require.NoError(t, err)

	return balance
}

func (h *harness) run(t *testing.T, name string, caller models.Identity, input map[string]any) *models.WorkflowResult {
	t.Helper()

	result, err := h.engine.Execute(context.Background(), name, input, caller)
	require.NoError(t, err)

	return result
}

func requireAmount(t *testing.T, want int64, got decimal.Decimal) {
	t.Helper()

	require.Truef(t, decimal.NewFromInt(want).Equal(got), "want %d, got %s", want, got)
}

func transactionID(t *testing.T, result *models.WorkflowResult, step string) string {
	t.Helper()

	outcome, ok := result.Data[step]
	require.True(t, ok, "no outcome for %s", step)

	id, ok := outcome["transaction_id"].(string)
	require.True(t, ok)

	return id
}
