package app

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/metinatakli/showtime-booking/internal/domain"
	"github.com/metinatakli/showtime-booking/internal/payment"
)

const maxWebhookBytes = 65536

func (app *Application) InitiatePaymentHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r, "id")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	session, err := app.ledger.InitiatePayment(r.Context(), id, app.contextGetUserId(r))
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	resp := CheckoutSessionResponse{
		TransactionId: session.TransactionID,
		Method:        session.Method,
		RedirectUrl:   session.RedirectURL,
	}

	err = app.writeJSON(w, http.StatusOK, resp, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// ConfirmPaymentHandler lets the caller settle their own reservation. It is
// only routed while the mock provider is active; with Stripe, results arrive
// through the signed webhook alone.
func (app *Application) ConfirmPaymentHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r, "id")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	var input ConfirmPaymentRequest

	err = app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	err = app.validator.Struct(input)
	if err != nil {
		app.failedValidationResponse(w, r, err)
		return
	}

	_, err = app.ledger.GetUserReservation(r.Context(), id, app.contextGetUserId(r))
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	reservation, err := app.ledger.ConfirmPayment(r.Context(), domain.PaymentResult{
		ReservationID: id,
		TransactionID: input.TransactionId,
		Status:        domain.PaymentStatus(input.Status),
		FailureReason: input.FailureReason,
	})
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, toReservationResponse(reservation), nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// StripeWebhookHandler feeds verified provider events into the ledger. A
// completed payment for a reservation that can no longer be confirmed is
// refunded right away.
func (app *Application) StripeWebhookHandler(w http.ResponseWriter, r *http.Request) {
	logger := app.contextGetLogger(r)

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	result, err := app.payments.ParseWebhook(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, payment.ErrInvalidWebhook) {
			app.badRequestResponse(w, r, err)
			return
		}
		app.serverErrorResponse(w, r, err)
		return
	}

	if result == nil {
		w.WriteHeader(http.StatusOK)
		return
	}

	_, err = app.ledger.ConfirmPayment(r.Context(), *result)

	var stateErr *domain.InvalidStateError
	switch {
	case err == nil:
	case errors.As(err, &stateErr), errors.Is(err, domain.ErrNotFound):
		// redeliveries for confirmed reservations are expected
		orphaned := stateErr == nil ||
			stateErr.From == domain.ReservationExpired ||
			stateErr.From == domain.ReservationCancelled
		if orphaned && result.Status == domain.PaymentStatusCompleted {
			app.refundOrphanedPayment(r.Context(), *result)
		}
		logger.Warn("ignored payment webhook", "reservation_id", result.ReservationID, "error", err)
	default:
		app.domainErrorResponse(w, r, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (app *Application) refundOrphanedPayment(ctx context.Context, result domain.PaymentResult) {
	transactionID := result.TransactionID

	reservation := &domain.Reservation{
		ID:      result.ReservationID,
		Payment: domain.Payment{TransactionID: &transactionID, Status: domain.PaymentStatusCompleted},
	}

	err := app.payments.Refund(ctx, reservation)
	if err != nil {
		app.logger.Error("failed to refund orphaned payment",
			"reservation_id", result.ReservationID,
			"transaction_id", result.TransactionID,
			"error", err)
		return
	}

	app.logger.Info("refunded orphaned payment",
		"reservation_id", result.ReservationID,
		"transaction_id", result.TransactionID)
}
