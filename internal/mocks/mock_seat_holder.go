package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

type MockSeatHolder struct {
	mock.Mock
}

func (m *MockSeatHolder) Hold(ctx context.Context, scheduleID int, codes []string, token string, ttl time.Duration) ([]string, error) {
	args := m.Called(ctx, scheduleID, codes, token, ttl)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockSeatHolder) Release(ctx context.Context, scheduleID int, codes []string, token string) error {
	args := m.Called(ctx, scheduleID, codes, token)
	return args.Error(0)
}
