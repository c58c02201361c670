package domain

import (
	"context"
	"time"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	}

	return false
}

// Payment is the payment state recorded on a reservation.
type Payment struct {
	Method        string
	TransactionID *string
	Status        PaymentStatus
	PaidAt        *time.Time
	FailureReason *string
}

type PaymentSession struct {
	TransactionID string
	Method        string
	RedirectURL   string
}

// PaymentResult is a provider callback after signature verification.
type PaymentResult struct {
	ReservationID int
	TransactionID string
	Status        PaymentStatus
	FailureReason string
}

type PaymentProvider interface {
	InitiatePayment(ctx context.Context, reservation *Reservation) (*PaymentSession, error)
	Refund(ctx context.Context, reservation *Reservation) error
}
