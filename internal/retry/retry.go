// Package retry retries idempotent reads that failed at the storage boundary.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/metinatakli/showtime-booking/internal/domain"
)

const maxTries = 3

// Read runs fn until it succeeds, returns a non-persistence error, or the
// attempts run out. Only use it for operations without side effects.
func Read[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond

	return backoff.Retry(ctx, func() (T, error) {
		v, err := fn()
		if err != nil && !errors.Is(err, domain.ErrPersistence) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(maxTries))
}
