package ledger

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/metinatakli/showtime-booking/internal/domain"
)

// InitiatePayment opens a provider session for a pending reservation of
// userID and records the pending transaction on it.
func (l *Ledger) InitiatePayment(ctx context.Context, id, userID int) (*domain.PaymentSession, error) {
	r, err := l.GetUserReservation(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	now := l.now()
	if r.Status != domain.ReservationPending || r.HoldExpired(now) {
		return nil, &domain.InvalidStateError{ReservationID: id, From: effectiveStatus(r, now), To: domain.ReservationConfirmed}
	}

	session, err := l.payments.InitiatePayment(ctx, r)
	if err != nil {
		return nil, err
	}

	_, err = l.transition(ctx, id, domain.ReservationPending, domain.ReservationPending, func(r *domain.Reservation) error {
		if r.HoldExpired(now) {
			return &domain.InvalidStateError{ReservationID: id, From: domain.ReservationExpired, To: domain.ReservationConfirmed}
		}

		r.Payment.Method = session.Method
		r.Payment.TransactionID = &session.TransactionID
		r.Payment.Status = domain.PaymentStatusPending
		r.Payment.FailureReason = nil
		r.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("payment initiated", "reservation_id", id, "transaction_id", session.TransactionID)

	return session, nil
}

// ConfirmPayment records a provider result. A completed payment confirms the
// reservation and assigns its QR code; a failed one leaves it pending until
// the hold lapses. Results for a reservation that is no longer pending, or
// whose hold already lapsed, fail with *domain.InvalidStateError so the caller
// can release the funds.
func (l *Ledger) ConfirmPayment(ctx context.Context, result domain.PaymentResult) (*domain.Reservation, error) {
	if result.Status != domain.PaymentStatusCompleted && result.Status != domain.PaymentStatusFailed {
		return nil, &domain.ValidationError{Field: "status", Reason: "must be completed or failed"}
	}

	now := l.now()
	target := domain.ReservationPending
	if result.Status == domain.PaymentStatusCompleted {
		target = domain.ReservationConfirmed
	}

	holdLapsed := false

	updated, err := l.transition(ctx, result.ReservationID, domain.ReservationPending, target, func(r *domain.Reservation) error {
		if r.HoldExpired(now) {
			holdLapsed = true
			return &domain.InvalidStateError{ReservationID: r.ID, From: domain.ReservationExpired, To: target}
		}

		if result.TransactionID != "" {
			transactionID := result.TransactionID
			r.Payment.TransactionID = &transactionID
		}
		r.Payment.Status = result.Status
		r.UpdatedAt = now

		if result.Status == domain.PaymentStatusFailed {
			reason := result.FailureReason
			r.Payment.FailureReason = &reason
			return nil
		}

		paidAt := now
		r.Payment.PaidAt = &paidAt
		r.Payment.FailureReason = nil
		r.Status = domain.ReservationConfirmed
		if r.QRCode == nil {
			qr := newQRCode()
			r.QRCode = &qr
		}

		return nil
	})

	if holdLapsed {
		l.expire(ctx, result.ReservationID, now)
	}

	if err != nil {
		l.logger.Warn("payment result rejected",
			"reservation_id", result.ReservationID,
			"transaction_id", result.TransactionID,
			"status", result.Status,
			"error", err)
		return nil, err
	}

	if updated.Status != domain.ReservationConfirmed {
		l.logger.Info("payment failed", "reservation_id", updated.ID, "reason", result.FailureReason)
		return updated, nil
	}

	l.metrics.transition(ctx, string(domain.ReservationConfirmed))
	l.logger.Info("reservation confirmed", "reservation_id", updated.ID, "transaction_id", result.TransactionID)
	l.publish(ctx, domain.EventReservationConfirmed, updated)

	l.notify(updated, "booking_confirmed.tmpl", map[string]any{
		"reservationID": updated.ID,
		"seats":         strings.Join(updated.SeatCodes(), ", "),
		"total":         updated.TotalAmount.StringFixed(2),
		"currency":      strings.ToUpper(updated.Currency),
		"startTime":     l.scheduleStart(ctx, updated.ScheduleID),
		"qrCode":        *updated.QRCode,
	})

	return updated, nil
}

func (l *Ledger) scheduleStart(ctx context.Context, scheduleID int) string {
	s, err := l.schedules.GetById(ctx, scheduleID)
	if err != nil {
		return ""
	}
	return s.StartTime.Format(time.RFC1123)
}

// expire moves one lapsed pending reservation to expired right away instead
// of waiting for the sweeper.
func (l *Ledger) expire(ctx context.Context, id int, now time.Time) {
	expired, err := l.transition(ctx, id, domain.ReservationPending, domain.ReservationExpired, func(r *domain.Reservation) error {
		if !r.HoldExpired(now) {
			return &domain.InvalidStateError{ReservationID: id, From: r.Status, To: domain.ReservationExpired}
		}
		r.Status = domain.ReservationExpired
		r.UpdatedAt = now
		return nil
	})
	if err != nil {
		if !errors.Is(err, domain.ErrInvalidState) {
			l.logger.Warn("failed to expire lapsed reservation", "reservation_id", id, "error", err)
		}
		return
	}

	l.afterRelease(ctx, domain.EventReservationExpired, expired)
}

// Cancel is legal from pending and confirmed. A completed payment is marked
// refunded and the refund is handed to the payment provider after the status
// change is stored.
func (l *Ledger) Cancel(ctx context.Context, id, actorID int, reason string) (*domain.Reservation, error) {
	return l.release(ctx, id, actorID, reason, domain.ReservationCancelled)
}

// Refund moves a confirmed reservation to refunded and returns the payment.
func (l *Ledger) Refund(ctx context.Context, id, actorID int, reason string) (*domain.Reservation, error) {
	return l.release(ctx, id, actorID, reason, domain.ReservationRefunded)
}

func (l *Ledger) release(ctx context.Context, id, actorID int, reason string, to domain.ReservationStatus) (*domain.Reservation, error) {
	current, err := l.GetReservation(ctx, id)
	if err != nil {
		return nil, err
	}

	if !current.Status.CanTransitionTo(to) {
		return nil, &domain.InvalidStateError{ReservationID: id, From: current.Status, To: to}
	}

	now := l.now()
	refund := false

	updated, err := l.transition(ctx, id, current.Status, to, func(r *domain.Reservation) error {
		r.Status = to
		r.UpdatedAt = now
		r.CancelledBy = &actorID
		r.CancelledAt = &now
		if reason != "" {
			r.CancellationReason = &reason
		}

		refund = r.Payment.Status == domain.PaymentStatusCompleted
		if refund {
			r.Payment.Status = domain.PaymentStatusRefunded
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("reservation released",
		"reservation_id", id,
		"status", to,
		"actor_id", actorID,
		"refund", refund)

	if refund {
		err = l.payments.Refund(ctx, updated)
		if err != nil {
			l.logger.Error("refund request failed", "reservation_id", id, "error", err)
		}
	}

	eventType := domain.EventReservationCancelled
	if to == domain.ReservationRefunded {
		eventType = domain.EventReservationRefunded
	}
	l.afterRelease(ctx, eventType, updated)

	l.notify(updated, "booking_cancelled.tmpl", map[string]any{
		"reservationID": updated.ID,
		"refunded":      refund,
		"total":         updated.TotalAmount.StringFixed(2),
		"currency":      strings.ToUpper(updated.Currency),
	})

	return updated, nil
}

func (l *Ledger) afterRelease(ctx context.Context, eventType domain.EventType, r *domain.Reservation) {
	l.inventory.ReleaseSeats(ctx, r)
	l.metrics.transition(ctx, string(r.Status))
	l.publish(ctx, eventType, r)
}

// ExpireStale expires every pending reservation whose hold has lapsed. The
// store conditions the update on the pending status, so running it twice or
// next to a confirmation never expires a confirmed reservation.
func (l *Ledger) ExpireStale(ctx context.Context) (int, error) {
	expired, err := l.reservations.ExpireStale(ctx, l.now())
	if err != nil {
		return 0, err
	}

	for i := range expired {
		r := &expired[i]
		l.inventory.ReleaseSeats(ctx, r)
		l.publish(ctx, domain.EventReservationExpired, r)
		l.logger.Info("reservation expired", "reservation_id", r.ID, "schedule_id", r.ScheduleID)
	}

	if len(expired) > 0 {
		l.metrics.expired.Add(ctx, int64(len(expired)))
	}

	return len(expired), nil
}

// PurgeTerminal deletes cancelled, refunded and expired reservations last
// updated before the given time.
func (l *Ledger) PurgeTerminal(ctx context.Context, before time.Time) (int, error) {
	return l.reservations.PurgeTerminal(ctx, before)
}

func (l *Ledger) Now() time.Time {
	return l.now()
}

func effectiveStatus(r *domain.Reservation, now time.Time) domain.ReservationStatus {
	if r.HoldExpired(now) {
		return domain.ReservationExpired
	}
	return r.Status
}

func newQRCode() string {
	return "QR-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
}
