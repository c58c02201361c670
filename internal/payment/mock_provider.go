package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/metinatakli/showtime-booking/internal/domain"
)

// MockPaymentProvider approves everything locally. It backs the memory store
// and development runs without Stripe credentials.
type MockPaymentProvider struct {
	successUrl string

	mu      sync.Mutex
	refunds []int
}

func NewMockPaymentProvider(successUrl string) *MockPaymentProvider {
	return &MockPaymentProvider{successUrl: successUrl}
}

func (m *MockPaymentProvider) InitiatePayment(ctx context.Context, r *domain.Reservation) (*domain.PaymentSession, error) {
	return &domain.PaymentSession{
		TransactionID: "mock_" + uuid.NewString(),
		Method:        "mock",
		RedirectURL:   m.successUrl,
	}, nil
}

func (m *MockPaymentProvider) Refund(ctx context.Context, r *domain.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.refunds = append(m.refunds, r.ID)
	return nil
}

// Refunds lists the reservation ids refunded so far.
func (m *MockPaymentProvider) Refunds() []int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]int(nil), m.refunds...)
}

func (m *MockPaymentProvider) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.refunds = nil
}

// ParseWebhook accepts an unsigned JSON payment result.
func (m *MockPaymentProvider) ParseWebhook(payload []byte, signature string) (*domain.PaymentResult, error) {
	var body struct {
		ReservationID int    `json:"reservationId"`
		TransactionID string `json:"transactionId"`
		Status        string `json:"status"`
		FailureReason string `json:"failureReason"`
	}

	err := json.Unmarshal(payload, &body)
	if err != nil || body.ReservationID == 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWebhook, err)
	}

	return &domain.PaymentResult{
		ReservationID: body.ReservationID,
		TransactionID: body.TransactionID,
		Status:        domain.PaymentStatus(body.Status),
		FailureReason: body.FailureReason,
	}, nil
}
