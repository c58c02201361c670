package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type EventType string

const (
	EventReservationCreated   EventType = "reservation.created"
	EventReservationConfirmed EventType = "reservation.confirmed"
	EventReservationCancelled EventType = "reservation.cancelled"
	EventReservationRefunded  EventType = "reservation.refunded"
	EventReservationExpired   EventType = "reservation.expired"
)

type ReservationEvent struct {
	Type          EventType         `json:"type"`
	ReservationID int               `json:"reservationId"`
	UserID        int               `json:"userId"`
	ScheduleID    int               `json:"scheduleId"`
	Seats         []string          `json:"seats"`
	Status        ReservationStatus `json:"status"`
	TotalAmount   decimal.Decimal   `json:"totalAmount"`
	OccurredAt    time.Time         `json:"occurredAt"`
}

func NewReservationEvent(t EventType, r *Reservation, at time.Time) ReservationEvent {
	return ReservationEvent{
		Type:          t,
		ReservationID: r.ID,
		UserID:        r.UserID,
		ScheduleID:    r.ScheduleID,
		Seats:         r.SeatCodes(),
		Status:        r.Status,
		TotalAmount:   r.TotalAmount,
		OccurredAt:    at,
	}
}

type EventPublisher interface {
	Publish(ctx context.Context, event ReservationEvent) error
}
