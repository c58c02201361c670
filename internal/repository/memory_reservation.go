package repository

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/metinatakli/showtime-booking/internal/domain"
)

// MemoryReservationRepository serializes seat claims per schedule with a
// shard mutex. Claims on different schedules never share a lock, and no lock
// is held across I/O because there is none.
type MemoryReservationRepository struct {
	mu           sync.RWMutex
	nextID       int
	reservations map[int]*domain.Reservation

	shardsMu sync.Mutex
	shards   map[int]*scheduleShard
}

type scheduleShard struct {
	mu      sync.Mutex
	retired bool
	// holders maps a seat code to the last reservation that claimed it. The
	// entry is only authoritative while that reservation is active.
	holders map[string]int
}

func NewMemoryReservationRepository() *MemoryReservationRepository {
	return &MemoryReservationRepository{
		reservations: make(map[int]*domain.Reservation),
		shards:       make(map[int]*scheduleShard),
	}
}

func (m *MemoryReservationRepository) shard(scheduleID int) *scheduleShard {
	m.shardsMu.Lock()
	defer m.shardsMu.Unlock()

	s, ok := m.shards[scheduleID]
	if !ok {
		s = &scheduleShard{holders: make(map[string]int)}
		m.shards[scheduleID] = s
	}
	return s
}

func (m *MemoryReservationRepository) Create(ctx context.Context, reservation *domain.Reservation, now time.Time) error {
	shard := m.shard(reservation.ScheduleID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	if shard.retired {
		return &domain.NotFoundError{Resource: "schedule", ID: reservation.ScheduleID}
	}

	var conflicts []string
	for _, code := range reservation.SeatCodes() {
		holderID, ok := shard.holders[code]
		if !ok {
			continue
		}

		m.expireLapsed(holderID, now)
		if m.isActive(holderID, now) {
			conflicts = append(conflicts, code)
		}
	}

	if len(conflicts) > 0 {
		return &domain.SeatConflictError{Seats: conflicts}
	}

	m.mu.Lock()
	m.nextID++
	reservation.ID = m.nextID
	reservation.CreatedAt = now
	reservation.UpdatedAt = now
	m.reservations[reservation.ID] = reservation.Clone()
	m.mu.Unlock()

	for _, code := range reservation.SeatCodes() {
		shard.holders[code] = reservation.ID
	}

	return nil
}

// expireLapsed marks a pending reservation whose hold lapsed as expired. The
// caller holds the shard lock of its schedule.
func (m *MemoryReservationRepository) expireLapsed(id int, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.reservations[id]
	if !ok || !r.HoldExpired(now) {
		return
	}

	next := r.Clone()
	next.Status = domain.ReservationExpired
	next.UpdatedAt = now
	m.reservations[id] = next
}

func (m *MemoryReservationRepository) isActive(id int, now time.Time) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.reservations[id]
	return ok && r.Active(now)
}

func (m *MemoryReservationRepository) GetById(ctx context.Context, id int) (*domain.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.reservations[id]
	if !ok {
		return nil, &domain.NotFoundError{Resource: "reservation", ID: id}
	}

	return r.Clone(), nil
}

func (m *MemoryReservationRepository) ListByUser(ctx context.Context, userID int, pagination domain.Pagination) ([]domain.Reservation, *domain.Metadata, error) {
	m.mu.RLock()
	var matched []domain.Reservation
	for _, r := range m.reservations {
		if r.UserID == userID {
			matched = append(matched, *r.Clone())
		}
	}
	m.mu.RUnlock()

	slices.SortFunc(matched, func(a, b domain.Reservation) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return b.ID - a.ID
	})

	return paginate(matched, pagination), domain.NewMetadata(len(matched), pagination), nil
}

func (m *MemoryReservationRepository) SeatStates(ctx context.Context, scheduleID int, now time.Time) (map[string]domain.SeatState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	states := make(map[string]domain.SeatState)
	for _, r := range m.reservations {
		if r.ScheduleID != scheduleID || !r.Active(now) {
			continue
		}

		state := domain.SeatHeld
		if r.Status == domain.ReservationConfirmed {
			state = domain.SeatBooked
		}

		for _, s := range r.Seats {
			states[s.Code] = state
		}
	}

	return states, nil
}

func (m *MemoryReservationRepository) Transition(ctx context.Context, id int, from domain.ReservationStatus, mutate func(*domain.Reservation) error) (*domain.Reservation, error) {
	m.mu.Lock()

	current, ok := m.reservations[id]
	if !ok {
		m.mu.Unlock()
		return nil, &domain.NotFoundError{Resource: "reservation", ID: id}
	}

	if current.Status != from {
		m.mu.Unlock()
		return nil, &domain.InvalidStateError{ReservationID: id, From: current.Status}
	}

	next := current.Clone()
	if err := mutate(next); err != nil {
		m.mu.Unlock()
		return nil, err
	}

	m.reservations[id] = next
	m.mu.Unlock()

	if !next.Status.HoldsSeats() {
		m.release(next)
	}

	return next.Clone(), nil
}

// release drops holder entries still pointing at r. It runs after the status
// write so a concurrent claim never sees a terminal holder as active.
func (m *MemoryReservationRepository) release(r *domain.Reservation) {
	shard := m.shard(r.ScheduleID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	for _, code := range r.SeatCodes() {
		if shard.holders[code] == r.ID {
			delete(shard.holders, code)
		}
	}
}

func (m *MemoryReservationRepository) ExpireStale(ctx context.Context, now time.Time) ([]domain.Reservation, error) {
	m.mu.Lock()
	var expired []domain.Reservation
	for id, r := range m.reservations {
		if !r.HoldExpired(now) {
			continue
		}

		next := r.Clone()
		next.Status = domain.ReservationExpired
		next.UpdatedAt = now
		m.reservations[id] = next
		expired = append(expired, *next.Clone())
	}
	m.mu.Unlock()

	for i := range expired {
		m.release(&expired[i])
	}

	return expired, nil
}

func (m *MemoryReservationRepository) PurgeTerminal(ctx context.Context, before time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	purged := 0
	for id, r := range m.reservations {
		if r.Status.IsTerminal() && r.UpdatedAt.Before(before) {
			delete(m.reservations, id)
			purged++
		}
	}

	return purged, nil
}

func (m *MemoryReservationRepository) RetireSchedule(ctx context.Context, scheduleID int, remove func(context.Context) error) error {
	shard := m.shard(scheduleID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	count, err := m.CountActiveBySchedule(ctx, scheduleID)
	if err != nil {
		return err
	}
	if count > 0 {
		return &domain.ConflictError{Reason: "schedule has active reservations", ScheduleID: scheduleID}
	}

	err = remove(ctx)
	if err != nil {
		return err
	}

	shard.retired = true

	return nil
}

func (m *MemoryReservationRepository) CountActiveBySchedule(ctx context.Context, scheduleID int) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, r := range m.reservations {
		if r.ScheduleID == scheduleID && r.Status.HoldsSeats() {
			count++
		}
	}

	return count, nil
}
