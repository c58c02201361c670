package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/exaring/otelpgx"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/metinatakli/showtime-booking/internal/cache"
	"github.com/metinatakli/showtime-booking/internal/domain"
	"github.com/metinatakli/showtime-booking/internal/events"
	"github.com/metinatakli/showtime-booking/internal/inventory"
	"github.com/metinatakli/showtime-booking/internal/ledger"
	"github.com/metinatakli/showtime-booking/internal/mailer"
	"github.com/metinatakli/showtime-booking/internal/payment"
	"github.com/metinatakli/showtime-booking/internal/repository"
	"github.com/metinatakli/showtime-booking/internal/schedule"
	"github.com/metinatakli/showtime-booking/internal/sweeper"
	appvalidator "github.com/metinatakli/showtime-booking/internal/validator"
	"github.com/metinatakli/showtime-booking/internal/vcs"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stripe/stripe-go/v82"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"golang.org/x/sync/errgroup"
)

var (
	version = vcs.Version()
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// PaymentGateway is the payment provider as seen by the HTTP layer, which
// also has to turn provider callbacks into payment results.
type PaymentGateway interface {
	domain.PaymentProvider
	ParseWebhook(payload []byte, signature string) (*domain.PaymentResult, error)
}

type Services struct {
	Schedules *schedule.Manager
	Inventory *inventory.Inventory
	Ledger    *ledger.Ledger
	Sweeper   *sweeper.Sweeper
	Payments  PaymentGateway
	Events    domain.EventPublisher
}

type Application struct {
	config    Config
	logger    *slog.Logger
	validator *validator.Validate

	schedules *schedule.Manager
	inventory *inventory.Inventory
	ledger    *ledger.Ledger
	sweeper   *sweeper.Sweeper
	payments  PaymentGateway
	events    domain.EventPublisher
}

func NewApp(cfg Config, logger *slog.Logger, validator *validator.Validate, services Services) *Application {
	return &Application{
		config:    cfg,
		logger:    logger,
		validator: validator,
		schedules: services.Schedules,
		inventory: services.Inventory,
		ledger:    services.Ledger,
		sweeper:   services.Sweeper,
		payments:  services.Payments,
		events:    services.Events,
	}
}

func Run() error {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg, err := ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		return err
	}

	if cfg.DisplayVersion {
		fmt.Printf("Version:\t%s\n", version)
		os.Exit(0)
	}

	textHandler := slog.NewTextHandler(os.Stdout, nil)
	logger := slog.New(textHandler)

	shutdownTelemetry, err := InitTelemetry(cfg, logger)
	if err != nil {
		return err
	}
	defer shutdownTelemetry(context.Background())

	if cfg.OtelCollectorUrl != "" {
		logger = slog.New(NewMultiHandler(textHandler, otelslog.NewHandler("showtime-booking")))
	}

	stores, closeStores, err := openStores(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStores()

	var holds inventory.SeatHolder = inventory.NoopSeatHolder{}
	if cfg.Redis.URL != "" {
		redisClient, err := NewRedisClient(cfg)
		if err != nil {
			return err
		}
		defer redisClient.Close()

		holds = cache.NewRedisSeatHolds(redisClient)
	}

	var payments PaymentGateway
	if cfg.Stripe.SecretKey != "" {
		stripe.Key = cfg.Stripe.SecretKey
		payments = payment.NewStripePaymentProvider(cfg.Stripe.FailureUrl, cfg.Stripe.SuccessUrl, cfg.Stripe.WebhookSecret)
	} else {
		logger.Warn("stripe key not set, payments are simulated")
		payments = payment.NewMockPaymentProvider(cfg.Stripe.SuccessUrl)
	}

	var publisher domain.EventPublisher = events.NoopPublisher{}
	if cfg.AMQP.URL != "" {
		amqpPublisher, err := events.NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange, logger)
		if err != nil {
			return err
		}
		defer amqpPublisher.Close()

		publisher = amqpPublisher
	}

	var appMailer mailer.Mailer
	if cfg.SMTP.Username != "" {
		appMailer = mailer.NewSMTPMailer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.Sender)
	}

	policy, err := cfg.Booking.Policy()
	if err != nil {
		return err
	}

	services := NewServices(stores, holds, payments, publisher, appMailer, cfg, policy, logger, time.Now)

	app := NewApp(cfg, logger, appvalidator.NewValidator(), services)

	return app.run()
}

// Stores groups the storage implementations selected by configuration.
type Stores struct {
	Schedules    domain.ScheduleRepository
	Catalog      domain.CatalogRepository
	Reservations domain.ReservationRepository
}

func openStores(cfg Config, logger *slog.Logger) (Stores, func(), error) {
	switch cfg.Store {
	case StoreMemory:
		catalog := repository.NewMemoryCatalog()
		repository.SeedDemoCatalog(catalog, time.Now())

		logger.Info("using in-memory store with demo catalog")

		return Stores{
			Schedules:    repository.NewMemoryScheduleRepository(),
			Catalog:      catalog,
			Reservations: repository.NewMemoryReservationRepository(),
		}, func() {}, nil

	case StorePostgres:
		if cfg.MigrationsPath != "" {
			err := repository.RunMigrations(cfg.DB.DSN, cfg.MigrationsPath)
			if err != nil {
				return Stores{}, nil, err
			}
		}

		db, err := NewDatabasePool(cfg)
		if err != nil {
			return Stores{}, nil, err
		}

		return Stores{
			Schedules:    repository.NewPostgresScheduleRepository(db),
			Catalog:      repository.NewPostgresCatalogRepository(db),
			Reservations: repository.NewPostgresReservationRepository(db),
		}, db.Close, nil

	default:
		return Stores{}, nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

// NewServices wires the booking core on top of the given stores.
func NewServices(
	stores Stores,
	holds inventory.SeatHolder,
	payments PaymentGateway,
	publisher domain.EventPublisher,
	appMailer mailer.Mailer,
	cfg Config,
	policy ledger.Policy,
	logger *slog.Logger,
	now func() time.Time,
) Services {
	inv := inventory.New(stores.Schedules, stores.Catalog, stores.Reservations, holds, logger, now)

	bookingLedger := ledger.New(ledger.Dependencies{
		Schedules:    stores.Schedules,
		Catalog:      stores.Catalog,
		Reservations: stores.Reservations,
		Inventory:    inv,
		Payments:     payments,
		Events:       publisher,
		Mailer:       appMailer,
	}, policy, logger, now)

	return Services{
		Schedules: schedule.NewManager(stores.Schedules, stores.Catalog, stores.Reservations, cfg.Schedule, logger),
		Inventory: inv,
		Ledger:    bookingLedger,
		Sweeper:   sweeper.New(bookingLedger, cfg.Sweeper, logger),
		Payments:  payments,
		Events:    publisher,
	}
}

func NewRedisClient(cfg Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:            cfg.Redis.URL,
		MaxIdleConns:    cfg.Redis.MaxIdleConns,
		MaxActiveConns:  cfg.Redis.MaxOpenConns,
		ConnMaxIdleTime: cfg.Redis.MaxIdleTime,
	})

	err := errors.Join(redisotel.InstrumentTracing(rdb), redisotel.InstrumentMetrics(rdb))
	if err != nil {
		rdb.Close()
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	err = rdb.Ping(ctx).Err()
	if err != nil {
		rdb.Close()
		return nil, err
	}

	return rdb, nil
}

func NewDatabasePool(cfg Config) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(cfg.DB.DSN)
	if err != nil {
		return nil, err
	}

	config.MaxConnIdleTime = cfg.DB.MaxIdleTime
	config.MaxConns = int32(cfg.DB.MaxOpenConns)
	config.ConnConfig.Tracer = otelpgx.NewTracer()

	db, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	err = db.Ping(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func (app *Application) run() error {
	srv := &http.Server{
		Addr:         fmt.Sprintf("0.0.0.0:%d", app.config.Port),
		Handler:      app.Routes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		ErrorLog:     slog.NewLogLogger(app.logger.Handler(), slog.LevelDebug),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		app.logger.Info("starting server", "addr", srv.Addr, "env", app.config.Env, "store", app.config.Store)

		err := srv.ListenAndServe()
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return app.sweeper.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()

		app.logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		return srv.Shutdown(shutdownCtx)
	})

	err := g.Wait()

	app.ledger.Wait()

	if err != nil {
		return err
	}

	app.logger.Info("stopped server", "addr", srv.Addr)

	return nil
}
