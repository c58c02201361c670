package app

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/metinatakli/showtime-booking/internal/ledger"
	"github.com/metinatakli/showtime-booking/internal/schedule"
	"github.com/metinatakli/showtime-booking/internal/sweeper"
	"github.com/shopspring/decimal"
)

type Config struct {
	Port             int
	Env              string
	Store            string
	MigrationsPath   string
	OtelCollectorUrl string
	DisplayVersion   bool
	// ManualPaymentConfirm mounts the client-facing payment confirmation
	// route. It is only on when no real payment provider is configured.
	ManualPaymentConfirm bool

	DB       DBConfig
	Redis    RedisConfig
	SMTP     SMTPConfig
	Stripe   StripeConfig
	AMQP     AMQPConfig
	Booking  BookingConfig
	Schedule schedule.Config
	Sweeper  sweeper.Config
}

type DBConfig struct {
	DSN          string
	MaxOpenConns int
	MaxIdleTime  time.Duration
}

type RedisConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
	MaxIdleTime  time.Duration
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Sender   string
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	SuccessUrl    string
	FailureUrl    string
}

type AMQPConfig struct {
	URL      string
	Exchange string
}

type BookingConfig struct {
	HoldDuration      time.Duration
	TaxRate           string
	ServiceFeePerSeat string
	Currency          string
}

// Policy parses the money settings into a ledger policy.
func (b BookingConfig) Policy() (ledger.Policy, error) {
	policy := ledger.DefaultPolicy()

	if b.HoldDuration > 0 {
		policy.HoldDuration = b.HoldDuration
	}
	if b.Currency != "" {
		policy.Currency = b.Currency
	}

	if b.TaxRate != "" {
		rate, err := decimal.NewFromString(b.TaxRate)
		if err != nil || rate.IsNegative() {
			return ledger.Policy{}, fmt.Errorf("invalid tax rate %q", b.TaxRate)
		}
		policy.TaxRate = rate
	}

	if b.ServiceFeePerSeat != "" {
		fee, err := decimal.NewFromString(b.ServiceFeePerSeat)
		if err != nil || fee.IsNegative() {
			return ledger.Policy{}, fmt.Errorf("invalid service fee %q", b.ServiceFeePerSeat)
		}
		policy.ServiceFeePerSeat = fee
	}

	return policy, nil
}

// ParseConfig reads flags from args. Every flag defaults to the matching
// environment variable, so values from a .env file apply unless overridden.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config

	fs.IntVar(&cfg.Port, "port", envInt("PORT", 3000), "server port")
	fs.StringVar(&cfg.Env, "env", envString("ENV", "dev"), "Environment (dev|staging|prod)")
	fs.StringVar(&cfg.Store, "store", envString("STORE", StoreMemory), "Storage backend (memory|postgres)")
	fs.StringVar(&cfg.MigrationsPath, "migrations", envString("MIGRATIONS_PATH", "file://migrations"), "Migrations source applied at startup, empty to skip")
	fs.StringVar(&cfg.OtelCollectorUrl, "otel-collector-url", envString("OTEL_COLLECTOR_URL", ""), "OpenTelemetry collector gRPC endpoint")

	fs.StringVar(&cfg.DB.DSN, "db-dsn", envString("DB_DSN", ""), "PostgreSQL DSN")
	fs.IntVar(&cfg.DB.MaxOpenConns, "db-max-open-conns", envInt("DB_MAX_OPEN_CONNS", 25), "PostgreSQL max open connections")
	fs.DurationVar(&cfg.DB.MaxIdleTime, "db-max-idle-time", envDuration("DB_MAX_IDLE_TIME", 15*time.Minute), "PostgreSQL max idle time for connections")

	fs.StringVar(&cfg.Redis.URL, "redis-url", envString("REDIS_URL", ""), "Redis address for seat holds, empty to disable")
	fs.IntVar(&cfg.Redis.MaxOpenConns, "redis-max-open-conns", envInt("REDIS_MAX_OPEN_CONNS", 25), "Redis max open connections")
	fs.IntVar(&cfg.Redis.MaxIdleConns, "redis-max-idle-conns", envInt("REDIS_MAX_IDLE_CONNS", 10), "Redis max idle connections")
	fs.DurationVar(&cfg.Redis.MaxIdleTime, "redis-max-idle-time", envDuration("REDIS_MAX_IDLE_TIME", 2*time.Minute), "Redis max idle time for connections")

	fs.StringVar(&cfg.SMTP.Host, "smtp-host", envString("SMTP_HOST", "sandbox.smtp.mailtrap.io"), "SMTP host")
	fs.IntVar(&cfg.SMTP.Port, "smtp-port", envInt("SMTP_PORT", 2525), "SMTP port")
	fs.StringVar(&cfg.SMTP.Username, "smtp-username", envString("SMTP_USERNAME", ""), "SMTP username")
	fs.StringVar(&cfg.SMTP.Password, "smtp-password", envString("SMTP_PASSWORD", ""), "SMTP password")
	fs.StringVar(&cfg.SMTP.Sender, "smtp-sender", envString("SMTP_SENDER", "Showtime <no-reply@showtime.local>"), "SMTP sender")

	fs.StringVar(&cfg.Stripe.SecretKey, "stripe-key", envString("STRIPE_KEY", ""), "Stripe secret key")
	fs.StringVar(&cfg.Stripe.WebhookSecret, "stripe-webhook-secret", envString("STRIPE_WEBHOOK_SECRET", ""), "Stripe webhook secret")
	fs.StringVar(&cfg.Stripe.SuccessUrl, "stripe-success-url", envString("STRIPE_SUCCESS_URL", "https://example.com/success.html"), "Stripe payment success page")
	fs.StringVar(&cfg.Stripe.FailureUrl, "stripe-failure-url", envString("STRIPE_FAILURE_URL", "https://example.com/failure.html"), "Stripe payment failure page")

	fs.StringVar(&cfg.AMQP.URL, "amqp-url", envString("AMQP_URL", ""), "RabbitMQ URL for reservation events, empty to disable")
	fs.StringVar(&cfg.AMQP.Exchange, "amqp-exchange", envString("AMQP_EXCHANGE", "reservations"), "RabbitMQ topic exchange")

	fs.DurationVar(&cfg.Booking.HoldDuration, "hold-duration", envDuration("HOLD_DURATION", 15*time.Minute), "How long a pending reservation holds its seats")
	fs.StringVar(&cfg.Booking.TaxRate, "tax-rate", envString("TAX_RATE", "0"), "Tax rate applied to subtotal minus discount")
	fs.StringVar(&cfg.Booking.ServiceFeePerSeat, "service-fee", envString("SERVICE_FEE", "0"), "Service fee per seat")
	fs.StringVar(&cfg.Booking.Currency, "currency", envString("CURRENCY", "usd"), "ISO currency of all prices")

	defaults := schedule.DefaultConfig()
	fs.DurationVar(&cfg.Schedule.OpenAt, "open-at", envDuration("OPEN_AT", defaults.OpenAt), "Offset from midnight when rooms open")
	fs.DurationVar(&cfg.Schedule.CloseAt, "close-at", envDuration("CLOSE_AT", defaults.CloseAt), "Offset from midnight when rooms close")
	fs.DurationVar(&cfg.Schedule.Granularity, "slot-granularity", envDuration("SLOT_GRANULARITY", defaults.Granularity), "Step between proposed slot starts")

	fs.DurationVar(&cfg.Sweeper.Interval, "sweep-interval", envDuration("SWEEP_INTERVAL", 30*time.Second), "Expiry sweeper interval")
	fs.DurationVar(&cfg.Sweeper.Retention, "retention", envDuration("RETENTION", 720*time.Hour), "How long terminal reservations are kept, 0 keeps them forever")

	fs.BoolVar(&cfg.DisplayVersion, "version", false, "Display version and exit")

	err := fs.Parse(args)
	if err != nil {
		return Config{}, err
	}

	if cfg.Store != StoreMemory && cfg.Store != StorePostgres {
		return Config{}, fmt.Errorf("store must be %s or %s", StoreMemory, StorePostgres)
	}
	if cfg.Store == StorePostgres && cfg.DB.DSN == "" {
		return Config{}, fmt.Errorf("db-dsn is required for the %s store", StorePostgres)
	}
	if cfg.Schedule.OpenAt >= cfg.Schedule.CloseAt {
		return Config{}, fmt.Errorf("open-at must be before close-at")
	}

	cfg.ManualPaymentConfirm = cfg.Stripe.SecretKey == ""

	return cfg, nil
}

func envString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
