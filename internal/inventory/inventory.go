// Package inventory derives per-schedule seat availability from reservations
// and performs the all-or-nothing seat claim.
package inventory

import (
	"context"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/metinatakli/showtime-booking/internal/domain"
	"github.com/metinatakli/showtime-booking/internal/retry"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// SeatHolder is a fast, expiring seat hold in front of the reservation store.
type SeatHolder interface {
	Hold(ctx context.Context, scheduleID int, codes []string, token string, ttl time.Duration) ([]string, error)
	Release(ctx context.Context, scheduleID int, codes []string, token string) error
}

type NoopSeatHolder struct{}

func (NoopSeatHolder) Hold(context.Context, int, []string, string, time.Duration) ([]string, error) {
	return nil, nil
}

func (NoopSeatHolder) Release(context.Context, int, []string, string) error {
	return nil
}

type SeatAvailability struct {
	Code   string
	Row    string
	Column int
	Class  domain.SeatClass
	Price  decimal.Decimal
	State  domain.SeatState
}

type Availability struct {
	ScheduleID int
	RoomID     int
	Seats      []SeatAvailability
	Free       int
	Held       int
	Booked     int
}

type Inventory struct {
	schedules    domain.ScheduleRepository
	catalog      domain.CatalogRepository
	reservations domain.ReservationRepository
	holds        SeatHolder
	logger       *slog.Logger
	now          func() time.Time
	reads        singleflight.Group
}

func New(
	schedules domain.ScheduleRepository,
	catalog domain.CatalogRepository,
	reservations domain.ReservationRepository,
	holds SeatHolder,
	logger *slog.Logger,
	now func() time.Time,
) *Inventory {
	if holds == nil {
		holds = NoopSeatHolder{}
	}

	return &Inventory{
		schedules:    schedules,
		catalog:      catalog,
		reservations: reservations,
		holds:        holds,
		logger:       logger,
		now:          now,
	}
}

// GetAvailability reports every seat of the schedule's room as free, held or
// booked. Pending reservations whose hold lapsed count as free even before the
// sweeper expires them. Concurrent reads of one schedule share a single load,
// so the result must be treated as read-only.
func (i *Inventory) GetAvailability(ctx context.Context, scheduleID int) (*Availability, error) {
	v, err, _ := i.reads.Do(strconv.Itoa(scheduleID), func() (any, error) {
		return i.loadAvailability(ctx, scheduleID)
	})
	if err != nil {
		return nil, err
	}

	return v.(*Availability), nil
}

func (i *Inventory) loadAvailability(ctx context.Context, scheduleID int) (*Availability, error) {
	schedule, err := retry.Read(ctx, func() (*domain.Schedule, error) {
		return i.schedules.GetById(ctx, scheduleID)
	})
	if err != nil {
		return nil, err
	}

	room, err := retry.Read(ctx, func() (*domain.Room, error) {
		return i.catalog.GetRoom(ctx, schedule.RoomID)
	})
	if err != nil {
		return nil, err
	}

	states, err := retry.Read(ctx, func() (map[string]domain.SeatState, error) {
		return i.reservations.SeatStates(ctx, scheduleID, i.now())
	})
	if err != nil {
		return nil, err
	}

	availability := &Availability{
		ScheduleID: scheduleID,
		RoomID:     room.ID,
		Seats:      make([]SeatAvailability, 0, len(room.Seats)),
	}

	for _, seat := range room.Seats {
		state, ok := states[seat.Code]
		if !ok {
			state = domain.SeatFree
		}

		switch state {
		case domain.SeatFree:
			availability.Free++
		case domain.SeatHeld:
			availability.Held++
		case domain.SeatBooked:
			availability.Booked++
		}

		availability.Seats = append(availability.Seats, SeatAvailability{
			Code:   seat.Code,
			Row:    seat.Row,
			Column: seat.Column,
			Class:  seat.Class,
			Price:  schedule.Price.Add(seat.Surcharge),
			State:  state,
		})
	}

	return availability, nil
}

// ClaimSeats claims every seat of the pending reservation or none of them and
// persists the reservation as part of the claim. On a lost race it fails with
// *domain.SeatConflictError naming exactly the seats that are taken.
func (i *Inventory) ClaimSeats(ctx context.Context, reservation *domain.Reservation) error {
	codes := reservation.SeatCodes()
	if len(codes) == 0 {
		return &domain.ValidationError{Field: "seats", Reason: "must not be empty"}
	}

	now := i.now()
	reservation.HoldToken = uuid.NewString()

	taken, err := i.holds.Hold(ctx, reservation.ScheduleID, codes, reservation.HoldToken, reservation.ExpiresAt.Sub(now))
	if err != nil {
		// the store still enforces uniqueness, so a cache outage only costs speed
		i.logger.Warn("seat hold cache unavailable", "schedule_id", reservation.ScheduleID, "error", err)
	}

	if len(taken) > 0 {
		return i.conflicts(ctx, reservation.ScheduleID, codes, taken, now)
	}

	err = i.reservations.Create(ctx, reservation, now)
	if err != nil {
		i.releaseHolds(context.WithoutCancel(ctx), reservation)
		return err
	}

	return nil
}

// conflicts merges seats held in the cache with seats the store reports as
// taken so the caller sees the full set it lost.
func (i *Inventory) conflicts(ctx context.Context, scheduleID int, codes, taken []string, now time.Time) error {
	states, err := i.reservations.SeatStates(ctx, scheduleID, now)
	if err != nil {
		return err
	}

	var seats []string
	for _, code := range codes {
		if _, ok := states[code]; ok || slices.Contains(taken, code) {
			seats = append(seats, code)
		}
	}

	return &domain.SeatConflictError{Seats: seats}
}

// ReleaseSeats drops the cache holds of a reservation that no longer occupies
// its seats. The store releases them through the status change itself.
func (i *Inventory) ReleaseSeats(ctx context.Context, reservation *domain.Reservation) {
	i.releaseHolds(ctx, reservation)
}

func (i *Inventory) releaseHolds(ctx context.Context, reservation *domain.Reservation) {
	err := i.holds.Release(ctx, reservation.ScheduleID, reservation.SeatCodes(), reservation.HoldToken)
	if err != nil {
		i.logger.Warn("failed to release seat holds",
			"reservation_id", reservation.ID,
			"schedule_id", reservation.ScheduleID,
			"error", err)
	}
}
