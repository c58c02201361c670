package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/metinatakli/showtime-booking/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2030, time.June, 1, 12, 0, 0, 0, time.UTC)

func pending(userID, scheduleID int, expiresAt time.Time, seats ...string) *domain.Reservation {
	lines := make([]domain.SeatLine, len(seats))
	for i, code := range seats {
		lines[i] = domain.SeatLine{Code: code, Class: domain.SeatClassStandard}
	}

	return &domain.Reservation{
		UserID:     userID,
		ScheduleID: scheduleID,
		Seats:      lines,
		Status:     domain.ReservationPending,
		Payment:    domain.Payment{Status: domain.PaymentStatusPending},
		ExpiresAt:  expiresAt,
	}
}

func TestMemoryReservationCreate(t *testing.T) {
	repo := NewMemoryReservationRepository()
	ctx := context.Background()
	expires := testNow.Add(15 * time.Minute)

	first := pending(1, 1, expires, "A1", "A2")
	require.NoError(t, repo.Create(ctx, first, testNow))
	assert.Equal(t, 1, first.ID)
	assert.Equal(t, testNow, first.CreatedAt)

	err := repo.Create(ctx, pending(2, 1, expires, "A3", "A2", "A1"), testNow)

	var conflict *domain.SeatConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, []string{"A2", "A1"}, conflict.Seats)

	// same seats on another schedule are independent
	require.NoError(t, repo.Create(ctx, pending(2, 2, expires, "A1", "A2"), testNow))

	states, err := repo.SeatStates(ctx, 1, testNow)
	require.NoError(t, err)
	assert.Equal(t, map[string]domain.SeatState{"A1": domain.SeatHeld, "A2": domain.SeatHeld}, states)
}

func TestMemoryReservationCreateExpiresLapsedHolder(t *testing.T) {
	repo := NewMemoryReservationRepository()
	ctx := context.Background()

	first := pending(1, 1, testNow.Add(time.Minute), "A1", "A2")
	require.NoError(t, repo.Create(ctx, first, testNow))

	later := testNow.Add(time.Minute)
	second := pending(2, 1, later.Add(15*time.Minute), "A2", "A3")
	require.NoError(t, repo.Create(ctx, second, later))

	stored, err := repo.GetById(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationExpired, stored.Status)

	states, err := repo.SeatStates(ctx, 1, later)
	require.NoError(t, err)
	assert.Equal(t, map[string]domain.SeatState{"A2": domain.SeatHeld, "A3": domain.SeatHeld}, states)
}

// Many buyers racing for overlapping seats: every seat ends up claimed by at
// most one winner and the losers see exactly the seats they lost.
func TestMemoryReservationConcurrentClaims(t *testing.T) {
	repo := NewMemoryReservationRepository()
	ctx := context.Background()
	expires := testNow.Add(15 * time.Minute)

	const buyers = 50

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []*domain.Reservation
	)

	for i := range buyers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			seats := []string{fmt.Sprintf("A%d", i%10+1), fmt.Sprintf("A%d", (i+1)%10+1)}
			r := pending(i+1, 1, expires, seats...)

			err := repo.Create(ctx, r, testNow)
			if err != nil {
				assert.ErrorIs(t, err, domain.ErrSeatConflict)
				return
			}

			mu.Lock()
			winners = append(winners, r)
			mu.Unlock()
		}()
	}

	wg.Wait()

	owner := make(map[string]int)
	for _, r := range winners {
		for _, code := range r.SeatCodes() {
			prev, taken := owner[code]
			assert.False(t, taken, "seat %s claimed by %d and %d", code, prev, r.ID)
			owner[code] = r.ID
		}
	}

	assert.NotEmpty(t, winners)
	assert.LessOrEqual(t, len(winners), 5)

	states, err := repo.SeatStates(ctx, 1, testNow)
	require.NoError(t, err)
	assert.Len(t, states, len(owner))
}

func TestMemoryReservationTransition(t *testing.T) {
	repo := NewMemoryReservationRepository()
	ctx := context.Background()

	r := pending(1, 1, testNow.Add(15*time.Minute), "B1")
	require.NoError(t, repo.Create(ctx, r, testNow))

	confirmed, err := repo.Transition(ctx, r.ID, domain.ReservationPending, func(r *domain.Reservation) error {
		r.Status = domain.ReservationConfirmed
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationConfirmed, confirmed.Status)

	_, err = repo.Transition(ctx, r.ID, domain.ReservationPending, func(r *domain.Reservation) error {
		r.Status = domain.ReservationExpired
		return nil
	})

	var stateErr *domain.InvalidStateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, domain.ReservationConfirmed, stateErr.From)

	aborted := errors.New("abort")
	_, err = repo.Transition(ctx, r.ID, domain.ReservationConfirmed, func(r *domain.Reservation) error {
		r.Status = domain.ReservationCancelled
		return aborted
	})
	assert.ErrorIs(t, err, aborted)

	stored, err := repo.GetById(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationConfirmed, stored.Status)

	states, err := repo.SeatStates(ctx, 1, testNow.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, map[string]domain.SeatState{"B1": domain.SeatBooked}, states)

	_, err = repo.Transition(ctx, r.ID, domain.ReservationConfirmed, func(r *domain.Reservation) error {
		r.Status = domain.ReservationCancelled
		return nil
	})
	require.NoError(t, err)

	// cancelled seats are claimable again
	require.NoError(t, repo.Create(ctx, pending(2, 1, testNow.Add(time.Hour), "B1"), testNow))

	_, err = repo.Transition(ctx, 99, domain.ReservationPending, func(*domain.Reservation) error { return nil })
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemoryReservationExpireStale(t *testing.T) {
	repo := NewMemoryReservationRepository()
	ctx := context.Background()

	lapsed := pending(1, 1, testNow.Add(time.Minute), "C1")
	live := pending(1, 1, testNow.Add(time.Hour), "C2")
	require.NoError(t, repo.Create(ctx, lapsed, testNow))
	require.NoError(t, repo.Create(ctx, live, testNow))

	sweepAt := testNow.Add(2 * time.Minute)

	expired, err := repo.ExpireStale(ctx, sweepAt)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, lapsed.ID, expired[0].ID)
	assert.Equal(t, domain.ReservationExpired, expired[0].Status)

	again, err := repo.ExpireStale(ctx, sweepAt)
	require.NoError(t, err)
	assert.Empty(t, again)

	count, err := repo.CountActiveBySchedule(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	purged, err := repo.PurgeTerminal(ctx, sweepAt.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, 1, purged)

	_, err = repo.GetById(ctx, lapsed.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemoryReservationListByUser(t *testing.T) {
	repo := NewMemoryReservationRepository()
	ctx := context.Background()

	for i := range 3 {
		at := testNow.Add(time.Duration(i) * time.Minute)
		require.NoError(t, repo.Create(ctx, pending(1, 1, at.Add(time.Hour), fmt.Sprintf("D%d", i+1)), at))
	}
	require.NoError(t, repo.Create(ctx, pending(2, 1, testNow.Add(time.Hour), "E1"), testNow))

	page, metadata, err := repo.ListByUser(ctx, 1, domain.Pagination{Page: 1, PageSize: 2})
	require.NoError(t, err)

	require.Len(t, page, 2)
	assert.Equal(t, 3, page[0].ID)
	assert.Equal(t, 2, page[1].ID)
	assert.Equal(t, 3, metadata.TotalRecords)
	assert.Equal(t, 2, metadata.LastPage)
}

func TestMemoryReservationRetireSchedule(t *testing.T) {
	ctx := context.Background()
	expires := testNow.Add(15 * time.Minute)

	t.Run("refuses while a reservation is active", func(t *testing.T) {
		repo := NewMemoryReservationRepository()
		require.NoError(t, repo.Create(ctx, pending(1, 1, expires, "A1"), testNow))

		called := false
		err := repo.RetireSchedule(ctx, 1, func(context.Context) error {
			called = true
			return nil
		})

		var conflict *domain.ConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, 1, conflict.ScheduleID)
		assert.False(t, called)

		// the schedule still takes claims
		require.NoError(t, repo.Create(ctx, pending(2, 1, expires, "A2"), testNow))
	})

	t.Run("keeps the schedule open when remove fails", func(t *testing.T) {
		repo := NewMemoryReservationRepository()
		failed := errors.New("boom")

		err := repo.RetireSchedule(ctx, 1, func(context.Context) error { return failed })
		require.ErrorIs(t, err, failed)

		require.NoError(t, repo.Create(ctx, pending(1, 1, expires, "A1"), testNow))
	})

	// A claim started while the schedule is being removed waits for the
	// removal and then finds the schedule gone.
	t.Run("claims during removal are rejected", func(t *testing.T) {
		repo := NewMemoryReservationRepository()

		var (
			wg       sync.WaitGroup
			claimErr error
		)

		err := repo.RetireSchedule(ctx, 1, func(context.Context) error {
			wg.Add(1)
			go func() {
				defer wg.Done()
				claimErr = repo.Create(ctx, pending(1, 1, expires, "A1"), testNow)
			}()
			return nil
		})
		require.NoError(t, err)

		wg.Wait()
		require.ErrorIs(t, claimErr, domain.ErrNotFound)

		count, err := repo.CountActiveBySchedule(ctx, 1)
		require.NoError(t, err)
		assert.Zero(t, count)

		// other schedules are untouched
		require.NoError(t, repo.Create(ctx, pending(1, 2, expires, "A1"), testNow))
	})
}
