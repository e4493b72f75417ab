package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

// PaymentClient is the HTTP client of the payment provider.
type PaymentClient struct {
	client *resty.Client
}

// NewPaymentClient creates a client for the provider at baseURL.
func NewPaymentClient(baseURL, apiKey string, timeout time.Duration) *PaymentClient {
	return &PaymentClient{client: newClient(baseURL, apiKey, timeout)}
}

// Charge debits the user through the provider.
func (c *PaymentClient) Charge(ctx context.Context, req ChargeRequest) (Receipt, error) {
	var receipt Receipt

	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Idempotency-Key", req.Reference).
		SetBody(req).
		SetResult(&receipt).
		Post("/payments")
	if err := checkResponse(resp, err); err != nil {
		return Receipt{}, fmt.Errorf("charge %s: %w", req.Reference, err)
	}

	return receipt, nil
}

// Payout sends money to the user's bank account.
func (c *PaymentClient) Payout(ctx context.Context, req PayoutRequest) (Receipt, error) {
	var receipt Receipt

	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Idempotency-Key", req.Reference).
		SetBody(req).
		SetResult(&receipt).
		Post("/payouts")
	if err := checkResponse(resp, err); err != nil {
		return Receipt{}, fmt.Errorf("payout %s: %w", req.Reference, err)
	}

	return receipt, nil
}

// Sandbox approves every request locally. It stands in for the provider when
// no gateway URL is configured.
type Sandbox struct {
	mu       sync.Mutex
	receipts map[string]Receipt
}

// NewSandbox creates an empty sandbox.
func NewSandbox() *Sandbox {
	return &Sandbox{receipts: make(map[string]Receipt)}
}

// Charge approves req, returning the same receipt for a repeated reference.
func (s *Sandbox) Charge(_ context.Context, req ChargeRequest) (Receipt, error) {
	return s.approve(req.Reference), nil
}

// Payout approves req, returning the same receipt for a repeated reference.
func (s *Sandbox) Payout(_ context.Context, req PayoutRequest) (Receipt, error) {
	return s.approve(req.Reference), nil
}

func (s *Sandbox) approve(reference string) Receipt {
	s.mu.Lock()
	defer s.mu.Unlock()

	if receipt, ok := s.receipts[reference]; ok {
		return receipt
	}

	receipt := Receipt{ID: "sandbox-" + uuid.NewString(), Status: "approved"}
	s.receipts[reference] = receipt

	return receipt
}
