package integration_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/metinatakli/showtime-booking/internal/app"
	"github.com/metinatakli/showtime-booking/internal/cache"
	"github.com/metinatakli/showtime-booking/internal/events"
	"github.com/metinatakli/showtime-booking/internal/inventory"
	"github.com/metinatakli/showtime-booking/internal/ledger"
	"github.com/metinatakli/showtime-booking/internal/mailer"
	"github.com/metinatakli/showtime-booking/internal/payment"
	"github.com/metinatakli/showtime-booking/internal/repository"
	appvalidator "github.com/metinatakli/showtime-booking/internal/validator"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// clock lets tests move past hold expiry without sleeping.
type clock struct {
	mu     sync.Mutex
	offset time.Duration
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Now().Add(c.offset)
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offset += d
}

func (c *clock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offset = 0
}

type TestApp struct {
	App      *app.Application
	Services app.Services
	DB       *pgxpool.Pool
	Redis    *redis.Client
	Mailer   *mailer.MockMailer
	Payments *payment.MockPaymentProvider
	Events   *events.Recorder
	Clock    *clock
}

func newTestApp(cfg app.Config) (*TestApp, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := app.NewDatabasePool(cfg)
	if err != nil {
		return nil, err
	}

	redisClient, err := app.NewRedisClient(cfg)
	if err != nil {
		db.Close()
		return nil, err
	}

	testApp := &TestApp{
		DB:       db,
		Redis:    redisClient,
		Mailer:   mailer.NewMockMailer(),
		Payments: payment.NewMockPaymentProvider("https://example.com/success.html"),
		Events:   &events.Recorder{},
		Clock:    &clock{},
	}

	stores := app.Stores{
		Schedules:    repository.NewPostgresScheduleRepository(db),
		Catalog:      repository.NewPostgresCatalogRepository(db),
		Reservations: repository.NewPostgresReservationRepository(db),
	}

	testApp.Services = app.NewServices(
		stores,
		cache.NewRedisSeatHolds(redisClient),
		testApp.Payments,
		testApp.Events,
		testApp.Mailer,
		cfg,
		ledger.DefaultPolicy(),
		logger,
		testApp.Clock.Now,
	)

	testApp.App = app.NewApp(cfg, logger, appvalidator.NewValidator(), testApp.Services)

	return testApp, nil
}

// storeOnlyServices builds services over the same database without the redis
// holds, leaving the unique index as the only guard against double claims.
func (a *TestApp) storeOnlyServices() app.Services {
	return app.NewServices(
		app.Stores{
			Schedules:    repository.NewPostgresScheduleRepository(a.DB),
			Catalog:      repository.NewPostgresCatalogRepository(a.DB),
			Reservations: repository.NewPostgresReservationRepository(a.DB),
		},
		inventory.NoopSeatHolder{},
		a.Payments,
		a.Events,
		a.Mailer,
		app.Config{},
		ledger.DefaultPolicy(),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		a.Clock.Now,
	)
}

// reset empties every table, reseeds the catalog and drops cached holds.
func (a *TestApp) reset(t testing.TB) {
	ctx := context.Background()

	_, err := a.DB.Exec(ctx, `
		TRUNCATE reservation_combos, reservation_seats, reservations, schedules,
			vouchers, combos, room_seats, rooms, theaters, movies
		RESTART IDENTITY CASCADE`)
	require.NoError(t, err)

	require.NoError(t, a.Redis.FlushAll(ctx).Err())

	a.Services.Ledger.Wait()
	a.Clock.Reset()
	a.Events.Reset()
	a.Payments.Reset()

	seedCatalog(t, a.DB)
}

func (a *TestApp) close() {
	a.Services.Ledger.Wait()
	a.Redis.Close()
	a.DB.Close()
}
