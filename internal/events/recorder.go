package events

import (
	"context"
	"sync"

	"github.com/metinatakli/showtime-booking/internal/domain"
)

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []domain.ReservationEvent
}

func (r *Recorder) Publish(_ context.Context, event domain.ReservationEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, event)
	return nil
}

func (r *Recorder) Events() []domain.ReservationEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]domain.ReservationEvent(nil), r.events...)
}

func (r *Recorder) Types() []domain.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()

	types := make([]domain.EventType, 0, len(r.events))
	for _, e := range r.events {
		types = append(types, e.Type)
	}
	return types
}

// Reset drops everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = nil
}
