// Package gateway talks to the external payment provider and the
// speech-to-text service.
package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

const defaultTimeout = 10 * time.Second

var (
	// ErrDeclined indicates the provider refused the operation. Retrying will not help.
	ErrDeclined = errors.New("declined by provider")

	// ErrUnavailable indicates a transport failure or a 5xx from the provider.
	ErrUnavailable = errors.New("provider unavailable")
)

// APIError carries the status and message of a failed call.
type APIError struct {
	Status  int
	Message string
	Err     error
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%v (status %d)", e.Err, e.Status)
	}

	return fmt.Sprintf("%v: %s (status %d)", e.Err, e.Message, e.Status)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// ChargeRequest moves money from a user to a merchant.
type ChargeRequest struct {
	UserID      string          `json:"user_id"`
	MerchantID  string          `json:"merchant_id,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Reference   string          `json:"reference"`
	Description string          `json:"description,omitempty"`
}

// PayoutRequest moves money from the platform to a bank account.
type PayoutRequest struct {
	UserID    string          `json:"user_id"`
	IBAN      string          `json:"iban"`
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference"`
}

// Receipt is the provider's acknowledgement.
type Receipt struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// newClient builds a JSON client. Retries belong to the workflow runner, so
// resty's own retry is left off.
func newClient(baseURL, apiKey string, timeout time.Duration) *resty.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	if apiKey != "" {
		client.SetHeader("Authorization", "Bearer "+apiKey)
	}

	return client
}

func checkResponse(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	code := resp.StatusCode()
	if code < http.StatusBadRequest {
		return nil
	}

	apiErr := &APIError{Status: code, Message: parseAPIError(resp)}

	switch {
	case code >= http.StatusInternalServerError, code == http.StatusTooManyRequests:
		apiErr.Err = ErrUnavailable
	default:
		apiErr.Err = ErrDeclined
	}

	return apiErr
}

func parseAPIError(resp *resty.Response) string {
	body := resp.Body()
	if len(body) == 0 {
		return ""
	}

	var envelope struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}

	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}

	if msg := strings.TrimSpace(envelope.Error); msg != "" {
		return msg
	}

	return strings.TrimSpace(envelope.Message)
}
