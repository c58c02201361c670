package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/metinatakli/showtime-booking/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/refund"
	"github.com/stripe/stripe-go/v82/webhook"
)

const metadataReservationID = "reservation_id"

var ErrInvalidWebhook = errors.New("invalid webhook payload")

type StripePaymentProvider struct {
	failureUrl    string
	successUrl    string
	webhookSecret string
}

func NewStripePaymentProvider(failureUrl, successUrl, webhookSecret string) *StripePaymentProvider {
	return &StripePaymentProvider{
		failureUrl:    failureUrl,
		successUrl:    successUrl,
		webhookSecret: webhookSecret,
	}
}

// InitiatePayment opens a checkout session charging the reservation total.
// The returned transaction id is the session id until the webhook reports the
// payment intent.
func (s *StripePaymentProvider) InitiatePayment(ctx context.Context, r *domain.Reservation) (*domain.PaymentSession, error) {
	amountCents := r.TotalAmount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()

	params := &stripe.CheckoutSessionParams{
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(r.Currency),
					UnitAmount: stripe.Int64(amountCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(fmt.Sprintf("🎬 Booking #%d", r.ID)),
						Description: stripe.String(fmt.Sprintf(
							"Seats: %s • Combos: %d • Discount: %s",
							strings.Join(r.SeatCodes(), ", "),
							len(r.Combos),
							r.Discount.StringFixed(2),
						)),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(s.successUrl),
		CancelURL:  stripe.String(s.failureUrl),
		Metadata: map[string]string{
			metadataReservationID: strconv.Itoa(r.ID),
			"user_id":             strconv.Itoa(r.UserID),
			"schedule_id":         strconv.Itoa(r.ScheduleID),
		},
		ClientReferenceID: stripe.String(strconv.Itoa(r.ID)),
	}
	if r.ContactEmail != nil {
		params.CustomerEmail = r.ContactEmail
	}
	params.Context = ctx
	params.SetIdempotencyKey(fmt.Sprintf("checkout-%d-%s", r.ID, r.HoldToken))

	checkoutSession, err := session.New(params)
	if err != nil {
		return nil, err
	}

	return &domain.PaymentSession{
		TransactionID: checkoutSession.ID,
		Method:        "stripe_checkout",
		RedirectURL:   checkoutSession.URL,
	}, nil
}

// Refund returns the full amount of the reservation's payment intent. It is
// idempotent per reservation.
func (s *StripePaymentProvider) Refund(ctx context.Context, r *domain.Reservation) error {
	if r.Payment.TransactionID == nil {
		return fmt.Errorf("reservation %d has no transaction to refund", r.ID)
	}

	paymentIntentID := *r.Payment.TransactionID

	if strings.HasPrefix(paymentIntentID, "cs_") {
		params := &stripe.CheckoutSessionParams{}
		params.Context = ctx

		checkoutSession, err := session.Get(paymentIntentID, params)
		if err != nil {
			return err
		}
		if checkoutSession.PaymentIntent == nil {
			return fmt.Errorf("checkout session %s has no payment intent", paymentIntentID)
		}
		paymentIntentID = checkoutSession.PaymentIntent.ID
	}

	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(paymentIntentID),
		Metadata: map[string]string{
			metadataReservationID: strconv.Itoa(r.ID),
		},
	}
	params.Context = ctx
	params.SetIdempotencyKey(fmt.Sprintf("refund-%d", r.ID))

	_, err := refund.New(params)
	return err
}

// ParseWebhook verifies the signature and maps checkout events to a payment
// result. Events that carry no result return nil.
func (s *StripePaymentProvider) ParseWebhook(payload []byte, signature string) (*domain.PaymentResult, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWebhook, err)
	}

	var status domain.PaymentStatus
	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted, stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		status = domain.PaymentStatusCompleted
	case stripe.EventTypeCheckoutSessionExpired, stripe.EventTypeCheckoutSessionAsyncPaymentFailed:
		status = domain.PaymentStatusFailed
	default:
		return nil, nil
	}

	var checkoutSession stripe.CheckoutSession
	err = json.Unmarshal(event.Data.Raw, &checkoutSession)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWebhook, err)
	}

	// async methods complete the session before the money arrives
	if event.Type == stripe.EventTypeCheckoutSessionCompleted &&
		checkoutSession.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid {
		return nil, nil
	}

	reservationID, err := strconv.Atoi(checkoutSession.Metadata[metadataReservationID])
	if err != nil {
		return nil, fmt.Errorf("%w: missing reservation id", ErrInvalidWebhook)
	}

	result := &domain.PaymentResult{
		ReservationID: reservationID,
		TransactionID: checkoutSession.ID,
		Status:        status,
	}
	if checkoutSession.PaymentIntent != nil && checkoutSession.PaymentIntent.ID != "" {
		result.TransactionID = checkoutSession.PaymentIntent.ID
	}
	if status == domain.PaymentStatusFailed {
		result.FailureReason = string(event.Type)
	}

	return result, nil
}
