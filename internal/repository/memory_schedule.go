package repository

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/metinatakli/showtime-booking/internal/domain"
)

// MemoryScheduleRepository keeps schedules in process. Deletes are soft: the
// schedule stays in the map as an inactive tombstone hidden from reads.
type MemoryScheduleRepository struct {
	mu        sync.RWMutex
	nextID    int
	schedules map[int]domain.Schedule
	deleted   map[int]bool
}

func NewMemoryScheduleRepository() *MemoryScheduleRepository {
	return &MemoryScheduleRepository{
		schedules: make(map[int]domain.Schedule),
		deleted:   make(map[int]bool),
	}
}

func (m *MemoryScheduleRepository) Create(ctx context.Context, schedule *domain.Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.overlapLocked(schedule); err != nil {
		return err
	}

	m.nextID++
	now := time.Now().UTC()
	schedule.ID = m.nextID
	schedule.CreatedAt = now
	schedule.UpdatedAt = now
	m.schedules[schedule.ID] = *schedule

	return nil
}

func (m *MemoryScheduleRepository) Update(ctx context.Context, schedule *domain.Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.schedules[schedule.ID]; !ok || m.deleted[schedule.ID] {
		return &domain.NotFoundError{Resource: "schedule", ID: schedule.ID}
	}

	if err := m.overlapLocked(schedule); err != nil {
		return err
	}

	schedule.UpdatedAt = time.Now().UTC()
	m.schedules[schedule.ID] = *schedule

	return nil
}

func (m *MemoryScheduleRepository) overlapLocked(schedule *domain.Schedule) error {
	if !schedule.Active {
		return nil
	}

	for id, other := range m.schedules {
		if id == schedule.ID || m.deleted[id] || !other.Active || other.RoomID != schedule.RoomID {
			continue
		}

		if other.Overlaps(schedule.StartTime, schedule.EndTime) {
			return &domain.ConflictError{Reason: "room is already booked for an overlapping schedule", ScheduleID: id}
		}
	}

	return nil
}

func (m *MemoryScheduleRepository) GetById(ctx context.Context, id int) (*domain.Schedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.schedules[id]
	if !ok || m.deleted[id] {
		return nil, &domain.NotFoundError{Resource: "schedule", ID: id}
	}

	return &s, nil
}

func (m *MemoryScheduleRepository) Delete(ctx context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.schedules[id]
	if !ok || m.deleted[id] {
		return &domain.NotFoundError{Resource: "schedule", ID: id}
	}

	s.Active = false
	s.UpdatedAt = time.Now().UTC()
	m.schedules[id] = s
	m.deleted[id] = true

	return nil
}

func (m *MemoryScheduleRepository) ListByRoom(ctx context.Context, roomID int, from, to time.Time) ([]domain.Schedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []domain.Schedule
	for id, s := range m.schedules {
		if m.deleted[id] || !s.Active || s.RoomID != roomID {
			continue
		}

		if s.Overlaps(from, to) {
			result = append(result, s)
		}
	}

	sortSchedules(result)

	return result, nil
}

func (m *MemoryScheduleRepository) List(ctx context.Context, filter domain.ScheduleFilter, pagination domain.Pagination) ([]domain.Schedule, *domain.Metadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []domain.Schedule
	for id, s := range m.schedules {
		if m.deleted[id] || !matchesFilter(s, filter) {
			continue
		}
		matched = append(matched, s)
	}

	sortSchedules(matched)

	return paginate(matched, pagination), domain.NewMetadata(len(matched), pagination), nil
}

func matchesFilter(s domain.Schedule, f domain.ScheduleFilter) bool {
	if f.ActiveOnly && !s.Active {
		return false
	}
	if f.MovieID != nil && s.MovieID != *f.MovieID {
		return false
	}
	if f.TheaterID != nil && s.TheaterID != *f.TheaterID {
		return false
	}
	if f.RoomID != nil && s.RoomID != *f.RoomID {
		return false
	}
	if f.Date != nil {
		day := time.Date(f.Date.Year(), f.Date.Month(), f.Date.Day(), 0, 0, 0, 0, f.Date.Location())
		if s.StartTime.Before(day) || !s.StartTime.Before(day.AddDate(0, 0, 1)) {
			return false
		}
	}

	return true
}

func sortSchedules(s []domain.Schedule) {
	slices.SortFunc(s, func(a, b domain.Schedule) int {
		if c := a.StartTime.Compare(b.StartTime); c != 0 {
			return c
		}
		return a.ID - b.ID
	})
}

func paginate[T any](items []T, p domain.Pagination) []T {
	start, end := p.Bounds(len(items))
	return items[start:end:end]
}
