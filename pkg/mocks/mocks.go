// Package mocks holds testify mocks of the collaborators workflows talk to.
package mocks

import (
	"context"

	"github.com/dukex/hesab/pkg/eventbus"
	"github.com/dukex/hesab/pkg/gateway"
	"github.com/stretchr/testify/mock"
)

// MockEventPublisher is a mock implementation of eventbus.EventPublisher.
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, key string, event eventbus.Event) error {
	args := m.Called(ctx, key, event)

	return args.Error(0)
}

// MockPaymentGateway is a mock payment provider.
type MockPaymentGateway struct {
	mock.Mock
}

func (m *MockPaymentGateway) Charge(ctx context.Context, req gateway.ChargeRequest) (gateway.Receipt, error) {
	args := m.Called(ctx, req)

	return args.Get(0).(gateway.Receipt), args.Error(1)
}

func (m *MockPaymentGateway) Payout(ctx context.Context, req gateway.PayoutRequest) (gateway.Receipt, error) {
	args := m.Called(ctx, req)

	return args.Get(0).(gateway.Receipt), args.Error(1)
}

// MockTranscriber is a mock speech-to-text service.
type MockTranscriber struct {
	mock.Mock
}

func (m *MockTranscriber) Transcribe(ctx context.Context, req gateway.TranscribeRequest) (gateway.Transcript, error) {
	args := m.Called(ctx, req)

	return args.Get(0).(gateway.Transcript), args.Error(1)
}
