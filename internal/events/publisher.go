package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/metinatakli/showtime-booking/internal/domain"
	amqp "github.com/rabbitmq/amqp091-go"
)

const DefaultExchange = "reservations"

var ErrPublisherClosed = errors.New("event publisher is closed")

type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	IsClosed() bool
	Close() error
}

type dialFunc func() (amqpChannel, io.Closer, error)

// AMQPPublisher publishes reservation lifecycle events to a durable topic
// exchange. The routing key is the event type. A channel lost with its
// connection is redialed on the next publish.
type AMQPPublisher struct {
	exchange string
	logger   *slog.Logger
	dial     dialFunc

	mu     sync.Mutex
	conn   io.Closer
	ch     amqpChannel
	closed bool
}

func NewAMQPPublisher(url, exchange string, logger *slog.Logger) (*AMQPPublisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}

	dial := func() (amqpChannel, io.Closer, error) {
		conn, err := amqp.Dial(url)
		if err != nil {
			return nil, nil, fmt.Errorf("rabbitmq dial: %w", err)
		}

		ch, err := conn.Channel()
		if err != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("rabbitmq channel: %w", err)
		}

		err = ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil)
		if err != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("rabbitmq exchange declare: %w", err)
		}

		return ch, conn, nil
	}

	ch, conn, err := dial()
	if err != nil {
		return nil, err
	}

	return &AMQPPublisher{
		exchange: exchange,
		logger:   logger,
		dial:     dial,
		conn:     conn,
		ch:       ch,
	}, nil
}

// Publish sends without holding the publisher lock, so concurrent events go
// out in parallel over the shared channel.
func (p *AMQPPublisher) Publish(ctx context.Context, event domain.ReservationEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	ch, err := p.channel()
	if err != nil {
		return err
	}

	err = ch.PublishWithContext(ctx, p.exchange, string(event.Type), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    event.OccurredAt,
		MessageId:    fmt.Sprintf("%s-%d", event.Type, event.ReservationID),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("rabbitmq publish %s: %w", event.Type, err)
	}

	p.logger.DebugContext(ctx, "event published",
		"type", event.Type,
		"reservation_id", event.ReservationID)

	return nil
}

// channel returns the open channel, redialing when the broker dropped the
// previous one.
func (p *AMQPPublisher) channel() (amqpChannel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrPublisherClosed
	}

	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}

	p.logger.Warn("rabbitmq channel closed, redialing", "exchange", p.exchange)

	ch, conn, err := p.dial()
	if err != nil {
		return nil, err
	}

	if p.conn != nil {
		// already gone on the broker side
		_ = p.conn.Close()
	}
	p.ch, p.conn = ch, conn

	return ch, nil
}

// Connected reports whether the publisher currently holds an open channel.
func (p *AMQPPublisher) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return !p.closed && p.ch != nil && !p.ch.IsClosed()
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	var errs []error
	if p.ch != nil {
		errs = append(errs, p.ch.Close())
	}
	if p.conn != nil {
		errs = append(errs, p.conn.Close())
	}

	return errors.Join(errs...)
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, domain.ReservationEvent) error { return nil }
