package mocks

import (
	"context"

	"github.com/metinatakli/showtime-booking/internal/domain"
	"github.com/stretchr/testify/mock"
)

type MockPaymentProvider struct {
	mock.Mock
}

func (m *MockPaymentProvider) InitiatePayment(ctx context.Context, reservation *domain.Reservation) (*domain.PaymentSession, error) {
	args := m.Called(ctx, reservation)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaymentSession), args.Error(1)
}

func (m *MockPaymentProvider) Refund(ctx context.Context, reservation *domain.Reservation) error {
	args := m.Called(ctx, reservation)
	return args.Error(0)
}

func (m *MockPaymentProvider) ParseWebhook(payload []byte, signature string) (*domain.PaymentResult, error) {
	args := m.Called(payload, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaymentResult), args.Error(1)
}
