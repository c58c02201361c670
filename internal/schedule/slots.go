package schedule

import (
	"context"
	"time"

	"github.com/metinatakli/showtime-booking/internal/domain"
	"github.com/metinatakli/showtime-booking/internal/retry"
)

type Slot struct {
	StartTime time.Time
	EndTime   time.Time
}

// FindAvailableSlots steps candidate slots of the given duration across the
// operating window of date and drops every candidate that intersects an active
// schedule in the room. No slot ends after closing time.
func (m *Manager) FindAvailableSlots(ctx context.Context, roomID int, date time.Time, duration time.Duration) ([]Slot, error) {
	if duration <= 0 {
		return nil, &domain.ValidationError{Field: "duration", Reason: "must be positive"}
	}

	_, err := retry.Read(ctx, func() (*domain.Room, error) {
		return m.catalog.GetRoom(ctx, roomID)
	})
	if err != nil {
		return nil, err
	}

	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	open := day.Add(m.cfg.OpenAt)
	closing := day.Add(m.cfg.CloseAt)

	existing, err := retry.Read(ctx, func() ([]domain.Schedule, error) {
		return m.schedules.ListByRoom(ctx, roomID, open, closing)
	})
	if err != nil {
		return nil, err
	}

	return sweepSlots(open, closing, duration, m.cfg.Granularity, existing), nil
}

// sweepSlots expects existing to be sorted by start time and mutually
// non-overlapping, which makes it sorted by end time as well.
func sweepSlots(open, closing time.Time, duration, step time.Duration, existing []domain.Schedule) []Slot {
	slots := []Slot{}
	first := 0

	if step <= 0 {
		step = duration
	}

	for start := open; !start.Add(duration).After(closing); start = start.Add(step) {
		end := start.Add(duration)

		for first < len(existing) && !existing[first].EndTime.After(start) {
			first++
		}

		free := true
		for i := first; i < len(existing) && existing[i].StartTime.Before(end); i++ {
			if existing[i].Overlaps(start, end) {
				free = false
				break
			}
		}

		if free {
			slots = append(slots, Slot{StartTime: start, EndTime: end})
		}
	}

	return slots
}
