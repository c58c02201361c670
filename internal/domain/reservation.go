package domain

import (
	"context"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "pending"
	ReservationConfirmed ReservationStatus = "confirmed"
	ReservationCancelled ReservationStatus = "cancelled"
	ReservationRefunded  ReservationStatus = "refunded"
	ReservationExpired   ReservationStatus = "expired"
)

var reservationTransitions = map[ReservationStatus][]ReservationStatus{
	ReservationPending:   {ReservationConfirmed, ReservationCancelled, ReservationExpired},
	ReservationConfirmed: {ReservationCancelled, ReservationRefunded},
}

func (s ReservationStatus) CanTransitionTo(target ReservationStatus) bool {
	return slices.Contains(reservationTransitions[s], target)
}

func (s ReservationStatus) IsTerminal() bool {
	return len(reservationTransitions[s]) == 0
}

// HoldsSeats reports whether a reservation in this status occupies its seats.
// A pending reservation past its expiry is checked separately.
func (s ReservationStatus) HoldsSeats() bool {
	return s == ReservationPending || s == ReservationConfirmed
}

type SeatLine struct {
	Code  string
	Class SeatClass
	Price decimal.Decimal
}

type ComboLine struct {
	ComboID  int
	Name     string
	Quantity int
	Price    decimal.Decimal
}

type Reservation struct {
	ID           int
	UserID       int
	ScheduleID   int
	Seats        []SeatLine
	Combos       []ComboLine
	Voucher      *AppliedVoucher
	Subtotal     decimal.Decimal
	Discount     decimal.Decimal
	Tax          decimal.Decimal
	ServiceFee   decimal.Decimal
	TotalAmount  decimal.Decimal
	Currency     string
	Payment      Payment
	Status       ReservationStatus
	QRCode       *string
	ContactEmail *string
	// HoldToken identifies the reservation's fast-path seat holds in the cache.
	HoldToken          string
	CreatedAt          time.Time
	UpdatedAt          time.Time
	ExpiresAt          time.Time
	CancelledBy        *int
	CancelledAt        *time.Time
	CancellationReason *string
}

func (r *Reservation) SeatCodes() []string {
	codes := make([]string, len(r.Seats))
	for i, s := range r.Seats {
		codes[i] = s.Code
	}

	return codes
}

// HoldExpired reports whether a pending hold has lapsed at now.
func (r *Reservation) HoldExpired(now time.Time) bool {
	return r.Status == ReservationPending && !now.Before(r.ExpiresAt)
}

// Active reports whether the reservation still occupies its seats at now.
func (r *Reservation) Active(now time.Time) bool {
	return r.Status.HoldsSeats() && !r.HoldExpired(now)
}

// Clone returns a deep copy so callers never share line slices or pointers.
func (r *Reservation) Clone() *Reservation {
	c := *r
	c.Seats = slices.Clone(r.Seats)
	c.Combos = slices.Clone(r.Combos)
	if r.Voucher != nil {
		v := *r.Voucher
		c.Voucher = &v
	}
	c.Payment.TransactionID = clonePtr(r.Payment.TransactionID)
	c.Payment.PaidAt = clonePtr(r.Payment.PaidAt)
	c.Payment.FailureReason = clonePtr(r.Payment.FailureReason)
	c.QRCode = clonePtr(r.QRCode)
	c.ContactEmail = clonePtr(r.ContactEmail)
	c.CancelledBy = clonePtr(r.CancelledBy)
	c.CancelledAt = clonePtr(r.CancelledAt)
	c.CancellationReason = clonePtr(r.CancellationReason)

	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

type SeatState string

const (
	SeatFree   SeatState = "free"
	SeatHeld   SeatState = "held"
	SeatBooked SeatState = "booked"
)

type ReservationRepository interface {
	// Create persists a pending reservation and claims its seats in one atomic
	// step. Pending reservations on the same seats whose hold lapsed at now are
	// expired first. Fails with *SeatConflictError listing every requested seat
	// still held or booked by another active reservation.
	Create(ctx context.Context, reservation *Reservation, now time.Time) error
	GetById(ctx context.Context, id int) (*Reservation, error)
	ListByUser(ctx context.Context, userID int, pagination Pagination) ([]Reservation, *Metadata, error)
	// SeatStates returns held or booked seat codes of active reservations on the schedule.
	SeatStates(ctx context.Context, scheduleID int, now time.Time) (map[string]SeatState, error)
	// Transition applies mutate only if the reservation's status still equals
	// from, as one atomic read-modify-write. Fails with *InvalidStateError when
	// the stored status differs. An error from mutate aborts the write.
	Transition(ctx context.Context, id int, from ReservationStatus, mutate func(*Reservation) error) (*Reservation, error)
	// ExpireStale moves every pending reservation with expires_at <= now to
	// expired and returns the affected reservations.
	ExpireStale(ctx context.Context, now time.Time) ([]Reservation, error)
	PurgeTerminal(ctx context.Context, before time.Time) (int, error)
	// RetireSchedule runs remove only when no pending or confirmed reservation
	// references the schedule, failing with *ConflictError otherwise. No claim
	// on the schedule can land between that check and remove, and claims after
	// a successful remove fail with *NotFoundError.
	RetireSchedule(ctx context.Context, scheduleID int, remove func(context.Context) error) error
}
