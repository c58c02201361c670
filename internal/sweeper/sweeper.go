// Package sweeper periodically expires lapsed holds and purges old terminal
// reservations.
package sweeper

import (
	"context"
	"log/slog"
	"time"
)

type Ledger interface {
	ExpireStale(ctx context.Context) (int, error)
	PurgeTerminal(ctx context.Context, before time.Time) (int, error)
	Now() time.Time
}

type Config struct {
	Interval  time.Duration
	Retention time.Duration
}

type Sweeper struct {
	ledger Ledger
	cfg    Config
	logger *slog.Logger
}

func New(ledger Ledger, cfg Config, logger *slog.Logger) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}

	return &Sweeper{
		ledger: ledger,
		cfg:    cfg,
		logger: logger,
	}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	s.logger.Info("starting expiry sweeper", "interval", s.cfg.Interval, "retention", s.cfg.Retention)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.Sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("stopped expiry sweeper")
			return nil
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep is one pass. It is safe to run concurrently with itself and with
// booking traffic.
func (s *Sweeper) Sweep(ctx context.Context) {
	expired, err := s.ledger.ExpireStale(ctx)
	if err != nil {
		s.logger.Error("failed to expire stale reservations", "error", err)
	} else if expired > 0 {
		s.logger.Info("expired stale reservations", "count", expired)
	}

	if s.cfg.Retention <= 0 {
		return
	}

	purged, err := s.ledger.PurgeTerminal(ctx, s.ledger.Now().Add(-s.cfg.Retention))
	if err != nil {
		s.logger.Error("failed to purge terminal reservations", "error", err)
		return
	}

	if purged > 0 {
		s.logger.Info("purged terminal reservations", "count", purged)
	}
}
