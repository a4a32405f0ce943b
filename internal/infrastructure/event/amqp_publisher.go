package event

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/dropship/backend/internal/domain/order"
	"github.com/dropship/backend/internal/domain/shared"
	"github.com/dropship/backend/internal/infrastructure/config"
)

// amqpChannel is the subset of *amqp.Channel the forwarder uses
type amqpChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// ForwardedEventTypes are the order events sent to the broker
var ForwardedEventTypes = []string{
	order.EventTypeOrderCreated,
	order.EventTypeOrderStatusChanged,
	order.EventTypeFulfillmentSubmitted,
	order.EventTypeFulfillmentFailed,
}

// AMQPForwarder publishes order events to a RabbitMQ topic exchange, routed
// by event type. It is an EventHandler so it can sit on the in-memory bus.
type AMQPForwarder struct {
	conn     *amqp.Connection
	mu       sync.Mutex // amqp channels are not safe for concurrent publish
	ch       amqpChannel
	exchange string
	logger   *zap.Logger
}

// DialAMQPForwarder connects to the broker and declares the exchange and the
// fulfillment queue bound to all order events
func DialAMQPForwarder(cfg config.RabbitMQConfig, logger *zap.Logger) (*AMQPForwarder, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}
	f, err := newAMQPForwarder(ch, cfg.Exchange, cfg.Queue, logger)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	f.conn = conn
	return f, nil
}

func newAMQPForwarder(ch amqpChannel, exchange, queue string, logger *zap.Logger) (*AMQPForwarder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}
	if queue != "" {
		q, err := ch.QueueDeclare(queue, true, false, false, false, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to declare queue %s: %w", queue, err)
		}
		if err := ch.QueueBind(q.Name, "order.#", exchange, false, nil); err != nil {
			return nil, fmt.Errorf("failed to bind queue %s: %w", queue, err)
		}
	}
	return &AMQPForwarder{ch: ch, exchange: exchange, logger: logger}, nil
}

// EventTypes returns the forwarded order events
func (f *AMQPForwarder) EventTypes() []string {
	return ForwardedEventTypes
}

// Handle publishes one event as a persistent JSON message
func (f *AMQPForwarder) Handle(ctx context.Context, ev shared.DomainEvent) error {
	body, err := Encode(ev)
	if err != nil {
		return err
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.EventID().String(),
		Timestamp:    ev.OccurredAt(),
		Type:         ev.EventType(),
		Body:         body,
	}

	f.mu.Lock()
	err = f.ch.PublishWithContext(ctx, f.exchange, ev.EventType(), false, false, msg)
	f.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", ev.EventType(), err)
	}

	f.logger.Debug("event forwarded",
		zap.String("event_type", ev.EventType()),
		zap.String("aggregate_id", ev.AggregateID().String()))
	return nil
}

// Close closes the channel and the connection
func (f *AMQPForwarder) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	err := f.ch.Close()
	if f.conn != nil {
		if cerr := f.conn.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

var _ shared.EventHandler = (*AMQPForwarder)(nil)
