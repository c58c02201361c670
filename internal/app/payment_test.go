package app

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/metinatakli/showtime-booking/internal/domain"
	"github.com/metinatakli/showtime-booking/internal/payment"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type PaymentTestSuite struct {
	suite.Suite
	env         *testEnv
	schedule    *domain.Schedule
	reservation *domain.Reservation
}

func (s *PaymentTestSuite) SetupTest() {
	s.env = newTestApplication()
	s.schedule = s.env.addSchedule(s.T(), 24*time.Hour, 2*time.Hour)
	s.reservation = s.env.reserve(s.T(), s.schedule.ID, "C5", "C6")
}

func TestPaymentSuite(t *testing.T) {
	suite.Run(t, new(PaymentTestSuite))
}

func (s *PaymentTestSuite) getReservation() ReservationResponse {
	_, r := executeRequest(s.T(), http.MethodGet, fmt.Sprintf("/reservations/%d", s.reservation.ID), nil)
	w := s.env.serve(asUser(r, testUserId))
	s.Require().Equal(http.StatusOK, w.Code)

	return decodeJSON[ReservationResponse](s.T(), w)
}

func (s *PaymentTestSuite) TestInitiatePaymentHandler() {
	tests := []struct {
		name           string
		userId         int
		setup          func()
		wantStatus     int
		wantErrMessage string
	}{
		{
			name:   "should open checkout session for pending reservation",
			userId: testUserId,
			setup: func() {
				s.env.payments.On("InitiatePayment", mock.Anything, mock.MatchedBy(func(r *domain.Reservation) bool {
					return r.ID == s.reservation.ID
				})).Return(&domain.PaymentSession{
					TransactionID: "cs_test_1",
					Method:        "stripe_checkout",
					RedirectURL:   "https://checkout.stripe.com/c/pay/cs_test_1",
				}, nil).Once()
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "should hide reservation of another user",
			userId:     testUserId + 1,
			wantStatus: http.StatusNotFound,
		},
		{
			name:   "should reject reservation whose hold lapsed",
			userId: testUserId,
			setup: func() {
				s.env.clock.Advance(16 * time.Minute)
			},
			wantStatus:     http.StatusConflict,
			wantErrMessage: "reservation 1 cannot move from expired to confirmed",
		},
		{
			name:   "should fail when provider is unavailable",
			userId: testUserId,
			setup: func() {
				s.env.payments.On("InitiatePayment", mock.Anything, mock.Anything).
					Return(nil, errors.New("stripe unavailable")).Once()
			},
			wantStatus:     http.StatusInternalServerError,
			wantErrMessage: ErrInternalServer,
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.SetupTest()

			if tt.setup != nil {
				tt.setup()
			}

			_, r := executeRequest(s.T(), http.MethodPost, fmt.Sprintf("/reservations/%d/payment", s.reservation.ID), nil)
			w := s.env.serve(asUser(r, tt.userId))

			s.Equal(tt.wantStatus, w.Code)
			s.env.payments.AssertExpectations(s.T())

			if tt.wantStatus == http.StatusOK {
				resp := decodeJSON[CheckoutSessionResponse](s.T(), w)
				s.Equal("cs_test_1", resp.TransactionId)
				s.Equal("https://checkout.stripe.com/c/pay/cs_test_1", resp.RedirectUrl)

				stored := s.getReservation()
				s.Equal("stripe_checkout", stored.Payment.Method)
				s.Require().NotNil(stored.Payment.TransactionId)
				s.Equal("cs_test_1", *stored.Payment.TransactionId)
				s.Equal(string(domain.ReservationPending), stored.Status)
				return
			}

			checkErrorResponse(s.T(), w, struct {
				wantStatus     int
				wantErrMessage string
			}{
				wantStatus:     tt.wantStatus,
				wantErrMessage: tt.wantErrMessage,
			})
		})
	}
}

func (s *PaymentTestSuite) TestConfirmPaymentHandler() {
	tests := []struct {
		name           string
		body           map[string]any
		setup          func()
		wantStatus     int
		wantState      domain.ReservationStatus
		wantPayment    domain.PaymentStatus
		wantErrMessage string
	}{
		{
			name:        "should confirm reservation on completed payment",
			body:        map[string]any{"transactionId": "txn_1", "status": "completed"},
			wantStatus:  http.StatusOK,
			wantState:   domain.ReservationConfirmed,
			wantPayment: domain.PaymentStatusCompleted,
		},
		{
			name:        "should keep reservation pending on failed payment",
			body:        map[string]any{"transactionId": "txn_1", "status": "failed", "failureReason": "card_declined"},
			wantStatus:  http.StatusOK,
			wantState:   domain.ReservationPending,
			wantPayment: domain.PaymentStatusFailed,
		},
		{
			name: "should reject confirmation after hold lapsed",
			body: map[string]any{"transactionId": "txn_1", "status": "completed"},
			setup: func() {
				s.env.clock.Advance(15 * time.Minute)
			},
			wantStatus: http.StatusConflict,
			wantState:  domain.ReservationExpired,
		},
		{
			name:           "should reject unknown status",
			body:           map[string]any{"transactionId": "txn_1", "status": "paid"},
			wantStatus:     http.StatusUnprocessableEntity,
			wantState:      domain.ReservationPending,
			wantErrMessage: "must be one of [completed failed]",
		},
		{
			name:           "should require transaction id",
			body:           map[string]any{"status": "completed"},
			wantStatus:     http.StatusUnprocessableEntity,
			wantState:      domain.ReservationPending,
			wantErrMessage: "is required",
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.SetupTest()

			if tt.setup != nil {
				tt.setup()
			}

			url := fmt.Sprintf("/reservations/%d/payment/confirm", s.reservation.ID)
			_, r := executeRequest(s.T(), http.MethodPost, url, tt.body)
			w := s.env.serve(asUser(r, testUserId))

			s.Equal(tt.wantStatus, w.Code)

			if tt.wantStatus == http.StatusOK {
				resp := decodeJSON[ReservationResponse](s.T(), w)
				s.Equal(string(tt.wantState), resp.Status)
				s.Equal(string(tt.wantPayment), resp.Payment.Status)

				if tt.wantState == domain.ReservationConfirmed {
					s.Require().NotNil(resp.QRCode)
					s.Regexp(`^QR-[0-9A-F]{32}$`, *resp.QRCode)
					s.NotNil(resp.Payment.PaidAt)
				} else {
					s.Nil(resp.QRCode)
					s.Require().NotNil(resp.Payment.FailureReason)
					s.Equal("card_declined", *resp.Payment.FailureReason)
				}
			} else {
				checkErrorResponse(s.T(), w, struct {
					wantStatus     int
					wantErrMessage string
				}{
					wantStatus:     tt.wantStatus,
					wantErrMessage: tt.wantErrMessage,
				})
			}

			s.Equal(string(tt.wantState), s.getReservation().Status)
		})
	}
}

func (s *PaymentTestSuite) TestConfirmRouteHiddenWithRealProvider() {
	s.env = newTestApplication(func(cfg *Config) { cfg.ManualPaymentConfirm = false })
	s.schedule = s.env.addSchedule(s.T(), 24*time.Hour, 2*time.Hour)

	_, r := executeRequest(s.T(), http.MethodPost, "/reservations", map[string]any{
		"scheduleId": s.schedule.ID,
		"seats":      []string{"A1"},
	})
	w := s.env.serve(asUser(r, testUserId))
	s.Require().Equal(http.StatusCreated, w.Code)
	created := decodeJSON[ReservationResponse](s.T(), w)

	_, r = executeRequest(s.T(), http.MethodPost, fmt.Sprintf("/reservations/%d/payment/confirm", created.Id),
		map[string]any{"transactionId": "txn_free", "status": "completed"})
	w = s.env.serve(asUser(r, testUserId))
	s.Equal(http.StatusNotFound, w.Code)

	_, r = executeRequest(s.T(), http.MethodGet, fmt.Sprintf("/reservations/%d", created.Id), nil)
	w = s.env.serve(asUser(r, testUserId))
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal(string(domain.ReservationPending), decodeJSON[ReservationResponse](s.T(), w).Status)
}

func (s *PaymentTestSuite) TestConfirmationMailIsSent() {
	s.env = newTestApplication()
	s.schedule = s.env.addSchedule(s.T(), 24*time.Hour, 2*time.Hour)

	_, r := executeRequest(s.T(), http.MethodPost, "/reservations", map[string]any{
		"scheduleId":   s.schedule.ID,
		"seats":        []string{"A1"},
		"contactEmail": "guest@example.com",
	})
	w := s.env.serve(asUser(r, testUserId))
	s.Require().Equal(http.StatusCreated, w.Code)
	created := decodeJSON[ReservationResponse](s.T(), w)

	_, r = executeRequest(s.T(), http.MethodPost, fmt.Sprintf("/reservations/%d/payment/confirm", created.Id),
		map[string]any{"transactionId": "txn_9", "status": "completed"})
	w = s.env.serve(asUser(r, testUserId))
	s.Require().Equal(http.StatusOK, w.Code)

	s.env.app.ledger.Wait()

	emails := s.env.mailer.SentEmails()
	s.Require().Len(emails, 1)
	s.Equal("guest@example.com", emails[0].Recipient)
	s.Equal("booking_confirmed.tmpl", emails[0].TemplateFile)
}

func (s *PaymentTestSuite) TestStripeWebhookHandler() {
	completed := func(transactionID string) *domain.PaymentResult {
		return &domain.PaymentResult{
			ReservationID: s.reservation.ID,
			TransactionID: transactionID,
			Status:        domain.PaymentStatusCompleted,
		}
	}

	tests := []struct {
		name       string
		setup      func()
		wantStatus int
		wantState  domain.ReservationStatus
	}{
		{
			name: "should reject payload with bad signature",
			setup: func() {
				s.env.payments.On("ParseWebhook", mock.Anything, "sig").
					Return(nil, fmt.Errorf("%w: bad signature", payment.ErrInvalidWebhook)).Once()
			},
			wantStatus: http.StatusBadRequest,
			wantState:  domain.ReservationPending,
		},
		{
			name: "should acknowledge unrelated events",
			setup: func() {
				s.env.payments.On("ParseWebhook", mock.Anything, "sig").Return(nil, nil).Once()
			},
			wantStatus: http.StatusOK,
			wantState:  domain.ReservationPending,
		},
		{
			name: "should confirm reservation on completed checkout",
			setup: func() {
				s.env.payments.On("ParseWebhook", mock.Anything, "sig").Return(completed("pi_1"), nil).Once()
			},
			wantStatus: http.StatusOK,
			wantState:  domain.ReservationConfirmed,
		},
		{
			name: "should refund payment for lapsed reservation",
			setup: func() {
				s.env.clock.Advance(20 * time.Minute)
				s.env.payments.On("ParseWebhook", mock.Anything, "sig").Return(completed("pi_2"), nil).Once()
				s.env.payments.On("Refund", mock.Anything, mock.MatchedBy(func(r *domain.Reservation) bool {
					return r.ID == s.reservation.ID && *r.Payment.TransactionID == "pi_2"
				})).Return(nil).Once()
			},
			wantStatus: http.StatusOK,
			wantState:  domain.ReservationExpired,
		},
		{
			name: "should not refund redelivered event for confirmed reservation",
			setup: func() {
				_, r := executeRequest(s.T(), http.MethodPost, fmt.Sprintf("/reservations/%d/payment/confirm", s.reservation.ID),
					map[string]any{"transactionId": "pi_3", "status": "completed"})
				s.Require().Equal(http.StatusOK, s.env.serve(asUser(r, testUserId)).Code)

				s.env.payments.On("ParseWebhook", mock.Anything, "sig").Return(completed("pi_3"), nil).Once()
			},
			wantStatus: http.StatusOK,
			wantState:  domain.ReservationConfirmed,
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.SetupTest()

			if tt.setup != nil {
				tt.setup()
			}

			_, r := executeRequest(s.T(), http.MethodPost, "/webhook/stripe", nil)
			r.Header.Set("Stripe-Signature", "sig")

			w := s.env.serve(r)

			s.Equal(tt.wantStatus, w.Code)
			s.env.payments.AssertExpectations(s.T())
			s.Equal(string(tt.wantState), s.getReservation().Status)

			if tt.wantState == domain.ReservationConfirmed {
				s.Contains(s.env.events.Types(), domain.EventReservationConfirmed)
			}
			if tt.wantState == domain.ReservationPending || tt.wantState == domain.ReservationConfirmed {
				s.env.payments.AssertNotCalled(s.T(), "Refund", mock.Anything, mock.Anything)
			}
		})
	}
}
