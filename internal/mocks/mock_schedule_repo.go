package mocks

import (
	"context"
	"time"

	"github.com/metinatakli/showtime-booking/internal/domain"
	"github.com/stretchr/testify/mock"
)

type MockScheduleRepo struct {
	mock.Mock
}

func (m *MockScheduleRepo) Create(ctx context.Context, schedule *domain.Schedule) error {
	args := m.Called(ctx, schedule)
	return args.Error(0)
}

func (m *MockScheduleRepo) Update(ctx context.Context, schedule *domain.Schedule) error {
	args := m.Called(ctx, schedule)
	return args.Error(0)
}

func (m *MockScheduleRepo) GetById(ctx context.Context, id int) (*domain.Schedule, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Schedule), args.Error(1)
}

func (m *MockScheduleRepo) Delete(ctx context.Context, id int) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockScheduleRepo) ListByRoom(ctx context.Context, roomID int, from, to time.Time) ([]domain.Schedule, error) {
	args := m.Called(ctx, roomID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Schedule), args.Error(1)
}

func (m *MockScheduleRepo) List(
	ctx context.Context,
	filter domain.ScheduleFilter,
	pagination domain.Pagination) ([]domain.Schedule, *domain.Metadata, error) {

	args := m.Called(ctx, filter, pagination)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).([]domain.Schedule), args.Get(1).(*domain.Metadata), args.Error(2)
}
