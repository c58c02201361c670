package ledger

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/metinatakli/showtime-booking/internal/ledger"

type metrics struct {
	created       metric.Int64Counter
	seatConflicts metric.Int64Counter
	transitions   metric.Int64Counter
	expired       metric.Int64Counter
}

// newMetrics registers counters on the global meter provider, which is a
// no-op until telemetry is configured.
func newMetrics() *metrics {
	meter := otel.Meter(meterName)

	created, _ := meter.Int64Counter("reservations.created",
		metric.WithDescription("Pending reservations created"))
	seatConflicts, _ := meter.Int64Counter("reservations.seat_conflicts",
		metric.WithDescription("Reservation attempts that lost a seat race"))
	transitions, _ := meter.Int64Counter("reservations.transitions",
		metric.WithDescription("Reservation status transitions"))
	expired, _ := meter.Int64Counter("reservations.expired",
		metric.WithDescription("Pending reservations expired by the sweeper"))

	return &metrics{
		created:       created,
		seatConflicts: seatConflicts,
		transitions:   transitions,
		expired:       expired,
	}
}

func (m *metrics) transition(ctx context.Context, to string) {
	m.transitions.Add(ctx, 1, metric.WithAttributes(attribute.String("status", to)))
}
