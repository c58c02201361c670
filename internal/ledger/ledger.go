// Package ledger owns the reservation lifecycle: pending on creation, then
// confirmed, cancelled, refunded or expired. Every transition is a
// compare-and-swap on the stored status.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/metinatakli/showtime-booking/internal/domain"
	"github.com/metinatakli/showtime-booking/internal/inventory"
	"github.com/metinatakli/showtime-booking/internal/mailer"
	"github.com/metinatakli/showtime-booking/internal/pricing"
	"github.com/metinatakli/showtime-booking/internal/retry"
)

type Dependencies struct {
	Schedules    domain.ScheduleRepository
	Catalog      domain.CatalogRepository
	Reservations domain.ReservationRepository
	Inventory    *inventory.Inventory
	Payments     domain.PaymentProvider
	Events       domain.EventPublisher
	Mailer       mailer.Mailer
}

type Ledger struct {
	schedules    domain.ScheduleRepository
	catalog      domain.CatalogRepository
	reservations domain.ReservationRepository
	inventory    *inventory.Inventory
	payments     domain.PaymentProvider
	events       domain.EventPublisher
	mailer       mailer.Mailer
	policy       Policy
	logger       *slog.Logger
	now          func() time.Time
	metrics      *metrics
	wg           sync.WaitGroup
}

func New(deps Dependencies, policy Policy, logger *slog.Logger, now func() time.Time) *Ledger {
	return &Ledger{
		schedules:    deps.Schedules,
		catalog:      deps.Catalog,
		reservations: deps.Reservations,
		inventory:    deps.Inventory,
		payments:     deps.Payments,
		events:       deps.Events,
		mailer:       deps.Mailer,
		policy:       policy,
		logger:       logger,
		now:          now,
		metrics:      newMetrics(),
	}
}

type ComboRequest struct {
	ComboID  int
	Quantity int
}

type CreateInput struct {
	UserID       int
	ScheduleID   int
	SeatCodes    []string
	Combos       []ComboRequest
	VoucherCode  string
	ContactEmail *string
}

// CreateReservation prices the request from the current layout and catalog,
// then claims the seats and stores the reservation as pending in one step.
// Voucher and validation failures are reported before any seat is claimed.
func (l *Ledger) CreateReservation(ctx context.Context, in CreateInput) (*domain.Reservation, error) {
	now := l.now()

	err := validateCreateInput(in)
	if err != nil {
		return nil, err
	}

	schedule, err := retry.Read(ctx, func() (*domain.Schedule, error) {
		return l.schedules.GetById(ctx, in.ScheduleID)
	})
	if err != nil {
		return nil, err
	}

	if !schedule.Active {
		return nil, &domain.ValidationError{Field: "scheduleId", Reason: "is not open for booking"}
	}
	if !schedule.StartTime.After(now) {
		return nil, &domain.ValidationError{Field: "scheduleId", Reason: "has already started"}
	}

	seats, err := l.seatLines(ctx, schedule, in.SeatCodes)
	if err != nil {
		return nil, err
	}

	combos, err := l.comboLines(ctx, in.Combos)
	if err != nil {
		return nil, err
	}

	voucher, err := l.voucher(ctx, in.VoucherCode, now)
	if err != nil {
		return nil, err
	}

	breakdown, err := l.price(seats, combos, voucher)
	if err != nil {
		return nil, err
	}

	reservation := &domain.Reservation{
		UserID:       in.UserID,
		ScheduleID:   schedule.ID,
		Seats:        seats,
		Combos:       combos,
		Voucher:      voucher,
		Subtotal:     breakdown.Subtotal,
		Discount:     breakdown.Discount,
		Tax:          breakdown.Tax,
		ServiceFee:   breakdown.ServiceFee,
		TotalAmount:  breakdown.Total,
		Currency:     l.policy.Currency,
		Payment:      domain.Payment{Status: domain.PaymentStatusPending},
		Status:       domain.ReservationPending,
		ContactEmail: in.ContactEmail,
		ExpiresAt:    now.Add(l.policy.HoldDuration),
	}

	err = l.inventory.ClaimSeats(ctx, reservation)
	if err != nil {
		if errors.Is(err, domain.ErrSeatConflict) {
			l.metrics.seatConflicts.Add(ctx, 1)
		}
		return nil, err
	}

	l.metrics.created.Add(ctx, 1)
	l.logger.Info("reservation created",
		"reservation_id", reservation.ID,
		"schedule_id", reservation.ScheduleID,
		"seats", reservation.SeatCodes(),
		"total", reservation.TotalAmount.String())

	l.publish(ctx, domain.EventReservationCreated, reservation)

	return reservation, nil
}

func validateCreateInput(in CreateInput) error {
	if len(in.SeatCodes) == 0 {
		return &domain.ValidationError{Field: "seats", Reason: "must not be empty"}
	}

	seen := make(map[string]bool, len(in.SeatCodes))
	for _, code := range in.SeatCodes {
		if seen[code] {
			return &domain.ValidationError{Field: "seats", Reason: fmt.Sprintf("contains %s more than once", code)}
		}
		seen[code] = true
	}

	combos := make(map[int]bool, len(in.Combos))
	for _, c := range in.Combos {
		if c.Quantity <= 0 {
			return &domain.ValidationError{Field: "combos", Reason: "quantity must be positive"}
		}
		if combos[c.ComboID] {
			return &domain.ValidationError{Field: "combos", Reason: fmt.Sprintf("contains combo %d more than once", c.ComboID)}
		}
		combos[c.ComboID] = true
	}

	return nil
}

// seatLines snapshots class and price of each requested seat from the room
// layout. The price is the schedule price plus the seat class surcharge.
func (l *Ledger) seatLines(ctx context.Context, schedule *domain.Schedule, codes []string) ([]domain.SeatLine, error) {
	room, err := retry.Read(ctx, func() (*domain.Room, error) {
		return l.catalog.GetRoom(ctx, schedule.RoomID)
	})
	if err != nil {
		return nil, err
	}

	lines := make([]domain.SeatLine, 0, len(codes))
	for _, code := range codes {
		seat, ok := room.Seat(code)
		if !ok {
			return nil, &domain.ValidationError{Field: "seats", Reason: fmt.Sprintf("seat %s does not exist in room %d", code, room.ID)}
		}

		lines = append(lines, domain.SeatLine{
			Code:  seat.Code,
			Class: seat.Class,
			Price: schedule.Price.Add(seat.Surcharge),
		})
	}

	return lines, nil
}

func (l *Ledger) comboLines(ctx context.Context, requests []ComboRequest) ([]domain.ComboLine, error) {
	if len(requests) == 0 {
		return nil, nil
	}

	ids := make([]int, len(requests))
	for i, r := range requests {
		ids[i] = r.ComboID
	}

	combos, err := retry.Read(ctx, func() ([]domain.Combo, error) {
		return l.catalog.GetCombos(ctx, ids)
	})
	if err != nil {
		return nil, err
	}

	lines := make([]domain.ComboLine, len(requests))
	for i, c := range combos {
		if !c.Active {
			return nil, &domain.ValidationError{Field: "combos", Reason: fmt.Sprintf("combo %d is not available", c.ID)}
		}

		lines[i] = domain.ComboLine{
			ComboID:  c.ID,
			Name:     c.Name,
			Quantity: requests[i].Quantity,
			Price:    c.Price,
		}
	}

	return lines, nil
}

func (l *Ledger) voucher(ctx context.Context, code string, now time.Time) (*domain.AppliedVoucher, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil
	}

	v, err := retry.Read(ctx, func() (*domain.Voucher, error) {
		return l.catalog.GetVoucher(ctx, code)
	})
	if errors.Is(err, domain.ErrNotFound) {
		return nil, &domain.InvalidVoucherError{Code: code, Reason: "does not exist"}
	}
	if err != nil {
		return nil, err
	}

	if !v.ValidAt(now) {
		return nil, &domain.InvalidVoucherError{Code: v.Code, Reason: "is expired or not yet valid"}
	}

	return v.Snapshot(), nil
}

// price is the only place totals are computed; tax and fee come from policy
// and go through the pricing engine unchanged.
func (l *Ledger) price(seats []domain.SeatLine, combos []domain.ComboLine, voucher *domain.AppliedVoucher) (pricing.Breakdown, error) {
	subtotal := pricing.Subtotal(seats, combos)

	discount, err := pricing.Discount(subtotal, voucher)
	if err != nil {
		return pricing.Breakdown{}, err
	}

	return pricing.Calculate(pricing.Input{
		Seats:      seats,
		Combos:     combos,
		Voucher:    voucher,
		Tax:        l.policy.Tax(subtotal.Sub(discount)),
		ServiceFee: l.policy.ServiceFee(len(seats)),
	})
}

func (l *Ledger) GetReservation(ctx context.Context, id int) (*domain.Reservation, error) {
	return retry.Read(ctx, func() (*domain.Reservation, error) {
		return l.reservations.GetById(ctx, id)
	})
}

// GetUserReservation hides reservations of other users behind NotFound.
func (l *Ledger) GetUserReservation(ctx context.Context, id, userID int) (*domain.Reservation, error) {
	r, err := l.GetReservation(ctx, id)
	if err != nil {
		return nil, err
	}

	if r.UserID != userID {
		return nil, &domain.NotFoundError{Resource: "reservation", ID: id}
	}

	return r, nil
}

func (l *Ledger) ListUserReservations(ctx context.Context, userID int, pagination domain.Pagination) ([]domain.Reservation, *domain.Metadata, error) {
	type page struct {
		reservations []domain.Reservation
		metadata     *domain.Metadata
	}

	p, err := retry.Read(ctx, func() (page, error) {
		reservations, metadata, err := l.reservations.ListByUser(ctx, userID, pagination)
		return page{reservations, metadata}, err
	})
	if err != nil {
		return nil, nil, err
	}

	return p.reservations, p.metadata, nil
}

// transition wraps the repository compare-and-swap and names the attempted
// target status in state errors.
func (l *Ledger) transition(
	ctx context.Context,
	id int,
	from, to domain.ReservationStatus,
	mutate func(*domain.Reservation) error) (*domain.Reservation, error) {

	updated, err := l.reservations.Transition(ctx, id, from, mutate)

	var stateErr *domain.InvalidStateError
	if errors.As(err, &stateErr) && stateErr.To == "" {
		stateErr.To = to
	}

	return updated, err
}

func (l *Ledger) publish(ctx context.Context, eventType domain.EventType, r *domain.Reservation) {
	if l.events == nil {
		return
	}

	err := l.events.Publish(ctx, domain.NewReservationEvent(eventType, r, l.now()))
	if err != nil {
		l.logger.Error("failed to publish reservation event",
			"type", eventType,
			"reservation_id", r.ID,
			"error", err)
	}
}

// notify mails the contact address in the background. Wait blocks until all
// pending notifications finish.
func (l *Ledger) notify(r *domain.Reservation, templateFile string, data map[string]any) {
	if l.mailer == nil || r.ContactEmail == nil {
		return
	}

	recipient := *r.ContactEmail
	logger := l.logger.With("reservation_id", r.ID, "template", templateFile)

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer func() {
			if err := recover(); err != nil {
				logger.Error("panic occurred during sending reservation mail", "panic", err)
			}
		}()

		err := l.mailer.Send(recipient, templateFile, data)
		if err != nil {
			logger.Error("failed to send reservation email", "error", err)
			return
		}

		logger.Info("reservation email sent")
	}()
}

func (l *Ledger) Wait() {
	l.wg.Wait()
}
