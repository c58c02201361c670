package schedule

import (
	"context"
	"log/slog"
	"time"

	"github.com/metinatakli/showtime-booking/internal/domain"
	"github.com/metinatakli/showtime-booking/internal/retry"
	"github.com/shopspring/decimal"
)

type Config struct {
	// OpenAt and CloseAt are offsets from midnight in the room's location.
	OpenAt      time.Duration
	CloseAt     time.Duration
	Granularity time.Duration
}

func DefaultConfig() Config {
	return Config{
		OpenAt:      9 * time.Hour,
		CloseAt:     23 * time.Hour,
		Granularity: 30 * time.Minute,
	}
}

type Manager struct {
	schedules    domain.ScheduleRepository
	catalog      domain.CatalogRepository
	reservations domain.ReservationRepository
	cfg          Config
	logger       *slog.Logger
}

func NewManager(
	schedules domain.ScheduleRepository,
	catalog domain.CatalogRepository,
	reservations domain.ReservationRepository,
	cfg Config,
	logger *slog.Logger,
) *Manager {
	return &Manager{
		schedules:    schedules,
		catalog:      catalog,
		reservations: reservations,
		cfg:          cfg,
		logger:       logger,
	}
}

type CreateInput struct {
	MovieID    int
	TheaterID  int
	RoomID     int
	StartTime  time.Time
	EndTime    time.Time
	Price      decimal.Decimal
	Attributes domain.ScheduleAttributes
}

func (m *Manager) Create(ctx context.Context, in CreateInput) (*domain.Schedule, error) {
	schedule := &domain.Schedule{
		MovieID:    in.MovieID,
		TheaterID:  in.TheaterID,
		RoomID:     in.RoomID,
		StartTime:  in.StartTime,
		EndTime:    in.EndTime,
		Price:      in.Price,
		Attributes: in.Attributes,
		Active:     true,
	}

	err := m.validate(ctx, schedule)
	if err != nil {
		return nil, err
	}

	err = m.checkOverlap(ctx, schedule)
	if err != nil {
		return nil, err
	}

	err = m.schedules.Create(ctx, schedule)
	if err != nil {
		return nil, err
	}

	m.logger.Info("schedule created",
		"schedule_id", schedule.ID,
		"room_id", schedule.RoomID,
		"start", schedule.StartTime,
		"end", schedule.EndTime)

	return schedule, nil
}

func (m *Manager) Update(ctx context.Context, id int, patch domain.SchedulePatch) (*domain.Schedule, error) {
	schedule, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.MovieID != nil {
		schedule.MovieID = *patch.MovieID
	}
	if patch.TheaterID != nil {
		schedule.TheaterID = *patch.TheaterID
	}
	if patch.RoomID != nil {
		schedule.RoomID = *patch.RoomID
	}
	if patch.StartTime != nil {
		schedule.StartTime = *patch.StartTime
	}
	if patch.EndTime != nil {
		schedule.EndTime = *patch.EndTime
	}
	if patch.Price != nil {
		schedule.Price = *patch.Price
	}
	if patch.Attributes != nil {
		schedule.Attributes = *patch.Attributes
	}
	if patch.Active != nil {
		schedule.Active = *patch.Active
	}

	err = m.validate(ctx, schedule)
	if err != nil {
		return nil, err
	}

	err = m.checkOverlap(ctx, schedule)
	if err != nil {
		return nil, err
	}

	err = m.schedules.Update(ctx, schedule)
	if err != nil {
		return nil, err
	}

	m.logger.Info("schedule updated", "schedule_id", schedule.ID)

	return schedule, nil
}

// Delete refuses to remove a schedule that pending or confirmed reservations
// still reference; those must be cancelled first.
func (m *Manager) Delete(ctx context.Context, id int) error {
	_, err := m.Get(ctx, id)
	if err != nil {
		return err
	}

	err = m.reservations.RetireSchedule(ctx, id, func(ctx context.Context) error {
		return m.schedules.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	m.logger.Info("schedule deleted", "schedule_id", id)

	return nil
}

func (m *Manager) Get(ctx context.Context, id int) (*domain.Schedule, error) {
	return retry.Read(ctx, func() (*domain.Schedule, error) {
		return m.schedules.GetById(ctx, id)
	})
}

func (m *Manager) List(ctx context.Context, filter domain.ScheduleFilter, pagination domain.Pagination) ([]domain.Schedule, *domain.Metadata, error) {
	type page struct {
		schedules []domain.Schedule
		metadata  *domain.Metadata
	}

	p, err := retry.Read(ctx, func() (page, error) {
		schedules, metadata, err := m.schedules.List(ctx, filter, pagination)
		return page{schedules, metadata}, err
	})
	if err != nil {
		return nil, nil, err
	}

	return p.schedules, p.metadata, nil
}

func (m *Manager) validate(ctx context.Context, s *domain.Schedule) error {
	if !s.StartTime.Before(s.EndTime) {
		return &domain.ValidationError{Field: "endTime", Reason: "must be after startTime"}
	}

	if s.Price.IsNegative() {
		return &domain.ValidationError{Field: "price", Reason: "must not be negative"}
	}

	_, err := retry.Read(ctx, func() (*domain.Movie, error) {
		return m.catalog.GetMovie(ctx, s.MovieID)
	})
	if err != nil {
		return err
	}

	_, err = retry.Read(ctx, func() (*domain.Theater, error) {
		return m.catalog.GetTheater(ctx, s.TheaterID)
	})
	if err != nil {
		return err
	}

	room, err := retry.Read(ctx, func() (*domain.Room, error) {
		return m.catalog.GetRoom(ctx, s.RoomID)
	})
	if err != nil {
		return err
	}

	if room.TheaterID != s.TheaterID {
		return &domain.ValidationError{Field: "roomId", Reason: "does not belong to the theater"}
	}

	return nil
}

// checkOverlap looks for another active schedule in the same room whose
// interval intersects s. The repository enforces the same rule on write, so
// this only exists to report the conflicting schedule id.
func (m *Manager) checkOverlap(ctx context.Context, s *domain.Schedule) error {
	if !s.Active {
		return nil
	}

	existing, err := m.schedules.ListByRoom(ctx, s.RoomID, s.StartTime, s.EndTime)
	if err != nil {
		return err
	}

	for _, other := range existing {
		if other.ID == s.ID {
			continue
		}

		if other.Overlaps(s.StartTime, s.EndTime) {
			return &domain.ConflictError{Reason: "room is already booked for an overlapping schedule", ScheduleID: other.ID}
		}
	}

	return nil
}
