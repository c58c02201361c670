package payment

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/metinatakli/showtime-booking/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"
)

const testWebhookSecret = "whsec_test"

func signedPayload(t *testing.T, eventType string, session map[string]any) ([]byte, string) {
	t.Helper()

	payload, err := json.Marshal(map[string]any{
		"id":     "evt_1",
		"object": "event",
		"type":   eventType,
		"data":   map[string]any{"object": session},
	})
	require.NoError(t, err)

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
	})

	return signed.Payload, signed.Header
}

func TestStripeParseWebhook(t *testing.T) {
	provider := NewStripePaymentProvider("https://example.com/fail", "https://example.com/ok", testWebhookSecret)

	tests := []struct {
		name      string
		eventType string
		session   map[string]any
		want      *domain.PaymentResult
		wantErr   bool
	}{
		{
			name:      "completed checkout with payment intent",
			eventType: "checkout.session.completed",
			session: map[string]any{
				"id":             "cs_1",
				"object":         "checkout.session",
				"payment_status": "paid",
				"payment_intent": "pi_1",
				"metadata":       map[string]string{"reservation_id": "42"},
			},
			want: &domain.PaymentResult{ReservationID: 42, TransactionID: "pi_1", Status: domain.PaymentStatusCompleted},
		},
		{
			name:      "completed checkout still unpaid",
			eventType: "checkout.session.completed",
			session: map[string]any{
				"id":             "cs_1",
				"object":         "checkout.session",
				"payment_status": "unpaid",
				"metadata":       map[string]string{"reservation_id": "42"},
			},
		},
		{
			name:      "expired checkout",
			eventType: "checkout.session.expired",
			session: map[string]any{
				"id":       "cs_2",
				"object":   "checkout.session",
				"metadata": map[string]string{"reservation_id": "7"},
			},
			want: &domain.PaymentResult{
				ReservationID: 7,
				TransactionID: "cs_2",
				Status:        domain.PaymentStatusFailed,
				FailureReason: "checkout.session.expired",
			},
		},
		{
			name:      "unrelated event",
			eventType: "customer.created",
			session:   map[string]any{"id": "cus_1", "object": "customer"},
		},
		{
			name:      "missing reservation id",
			eventType: "checkout.session.async_payment_succeeded",
			session:   map[string]any{"id": "cs_3", "object": "checkout.session"},
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, signature := signedPayload(t, tt.eventType, tt.session)

			got, err := provider.ParseWebhook(payload, signature)

			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidWebhook)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStripeParseWebhookRejectsBadSignature(t *testing.T) {
	provider := NewStripePaymentProvider("", "", testWebhookSecret)

	payload, _ := signedPayload(t, "checkout.session.completed", map[string]any{"id": "cs_1"})

	_, err := provider.ParseWebhook(payload, "t=1,v1=deadbeef")
	assert.ErrorIs(t, err, ErrInvalidWebhook)
}

func TestMockPaymentProvider(t *testing.T) {
	provider := NewMockPaymentProvider("https://example.com/ok")

	session, err := provider.InitiatePayment(context.Background(), &domain.Reservation{ID: 3})
	require.NoError(t, err)
	assert.Equal(t, "mock", session.Method)
	assert.Equal(t, "https://example.com/ok", session.RedirectURL)
	assert.Regexp(t, `^mock_[0-9a-f-]{36}$`, session.TransactionID)

	require.NoError(t, provider.Refund(context.Background(), &domain.Reservation{ID: 3}))
	require.NoError(t, provider.Refund(context.Background(), &domain.Reservation{ID: 5}))
	assert.Equal(t, []int{3, 5}, provider.Refunds())

	provider.Reset()
	assert.Empty(t, provider.Refunds())
}

func TestMockPaymentProviderParseWebhook(t *testing.T) {
	provider := NewMockPaymentProvider("")

	got, err := provider.ParseWebhook([]byte(`{"reservationId":9,"transactionId":"txn_9","status":"failed","failureReason":"card_declined"}`), "")
	require.NoError(t, err)
	assert.Equal(t, &domain.PaymentResult{
		ReservationID: 9,
		TransactionID: "txn_9",
		Status:        domain.PaymentStatusFailed,
		FailureReason: "card_declined",
	}, got)

	for _, payload := range []string{`not json`, `{"transactionId":"txn_9"}`} {
		_, err = provider.ParseWebhook([]byte(payload), "")
		assert.ErrorIs(t, err, ErrInvalidWebhook, payload)
	}
}
