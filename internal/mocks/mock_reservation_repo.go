package mocks

import (
	"context"
	"time"

	"github.com/metinatakli/showtime-booking/internal/domain"
	"github.com/stretchr/testify/mock"
)

type MockReservationRepo struct {
	mock.Mock
}

func (m *MockReservationRepo) Create(ctx context.Context, reservation *domain.Reservation, now time.Time) error {
	args := m.Called(ctx, reservation, now)
	return args.Error(0)
}

func (m *MockReservationRepo) GetById(ctx context.Context, id int) (*domain.Reservation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Reservation), args.Error(1)
}

func (m *MockReservationRepo) ListByUser(
	ctx context.Context,
	userID int,
	pagination domain.Pagination) ([]domain.Reservation, *domain.Metadata, error) {

	args := m.Called(ctx, userID, pagination)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).([]domain.Reservation), args.Get(1).(*domain.Metadata), args.Error(2)
}

func (m *MockReservationRepo) SeatStates(ctx context.Context, scheduleID int, now time.Time) (map[string]domain.SeatState, error) {
	args := m.Called(ctx, scheduleID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]domain.SeatState), args.Error(1)
}

// Transition runs mutate against the reservation registered as the first
// return value, so callers observe the same effects as with a real store.
func (m *MockReservationRepo) Transition(
	ctx context.Context,
	id int,
	from domain.ReservationStatus,
	mutate func(*domain.Reservation) error) (*domain.Reservation, error) {

	args := m.Called(ctx, id, from, mock.Anything)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	if args.Error(1) != nil {
		return nil, args.Error(1)
	}

	r := args.Get(0).(*domain.Reservation).Clone()
	err := mutate(r)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (m *MockReservationRepo) ExpireStale(ctx context.Context, now time.Time) ([]domain.Reservation, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Reservation), args.Error(1)
}

func (m *MockReservationRepo) PurgeTerminal(ctx context.Context, before time.Time) (int, error) {
	args := m.Called(ctx, before)
	return args.Int(0), args.Error(1)
}

func (m *MockReservationRepo) RetireSchedule(ctx context.Context, scheduleID int, remove func(context.Context) error) error {
	args := m.Called(ctx, scheduleID, remove)
	return args.Error(0)
}
