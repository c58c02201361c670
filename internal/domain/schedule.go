package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type ScheduleAttributes struct {
	Is3D      bool
	Subtitled bool
	Dubbed    bool
}

type Schedule struct {
	ID         int
	MovieID    int
	TheaterID  int
	RoomID     int
	StartTime  time.Time
	EndTime    time.Time
	Price      decimal.Decimal
	Attributes ScheduleAttributes
	Active     bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Overlaps uses half-open intervals, so schedules that only touch do not overlap.
func (s Schedule) Overlaps(start, end time.Time) bool {
	return s.StartTime.Before(end) && s.EndTime.After(start)
}

type SchedulePatch struct {
	MovieID    *int
	TheaterID  *int
	RoomID     *int
	StartTime  *time.Time
	EndTime    *time.Time
	Price      *decimal.Decimal
	Attributes *ScheduleAttributes
	Active     *bool
}

type ScheduleFilter struct {
	MovieID    *int
	TheaterID  *int
	RoomID     *int
	Date       *time.Time
	ActiveOnly bool
}

type ScheduleRepository interface {
	// Create and Update fail with *ConflictError when an active schedule on the
	// same room overlaps the new interval.
	Create(ctx context.Context, schedule *Schedule) error
	Update(ctx context.Context, schedule *Schedule) error
	GetById(ctx context.Context, id int) (*Schedule, error)
	Delete(ctx context.Context, id int) error
	// ListByRoom returns active schedules of the room intersecting [from, to),
	// ordered by start time.
	ListByRoom(ctx context.Context, roomID int, from, to time.Time) ([]Schedule, error)
	List(ctx context.Context, filter ScheduleFilter, pagination Pagination) ([]Schedule, *Metadata, error)
}
