package mocks

import (
	"context"

	"github.com/metinatakli/showtime-booking/internal/domain"
	"github.com/stretchr/testify/mock"
)

type MockCatalogRepo struct {
	mock.Mock
}

func (m *MockCatalogRepo) GetMovie(ctx context.Context, id int) (*domain.Movie, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Movie), args.Error(1)
}

func (m *MockCatalogRepo) GetTheater(ctx context.Context, id int) (*domain.Theater, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Theater), args.Error(1)
}

func (m *MockCatalogRepo) GetRoom(ctx context.Context, id int) (*domain.Room, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Room), args.Error(1)
}

func (m *MockCatalogRepo) GetCombos(ctx context.Context, ids []int) ([]domain.Combo, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Combo), args.Error(1)
}

func (m *MockCatalogRepo) GetVoucher(ctx context.Context, code string) (*domain.Voucher, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Voucher), args.Error(1)
}
