package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/noah-isme/course-progress-api/internal/models"
)

const publishTimeout = 5 * time.Second

// Publisher hands committed lifecycle events to downstream consumers such as
// the staking collaborator.
type Publisher interface {
	Publish(ctx context.Context, event models.EnrollmentEvent) error
	Close() error
}

type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitMQPublisher publishes persistent JSON messages to a topic exchange,
// routed by event type.
type RabbitMQPublisher struct {
	conn     *amqp.Connection
	channel  amqpChannel
	exchange string
	logger   *zap.Logger
	mu       sync.Mutex
}

// Dial connects to the broker and declares the exchange.
func Dial(url, exchange string, logger *zap.Logger) (*RabbitMQPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	p := NewRabbitMQPublisher(ch, exchange, logger)
	p.conn = conn
	return p, nil
}

// NewRabbitMQPublisher wraps an open channel.
func NewRabbitMQPublisher(ch amqpChannel, exchange string, logger *zap.Logger) *RabbitMQPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RabbitMQPublisher{channel: ch, exchange: exchange, logger: logger}
}

// Publish sends one event.
func (p *RabbitMQPublisher) Publish(ctx context.Context, event models.EnrollmentEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event.Type, err)
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.channel.PublishWithContext(publishCtx, p.exchange, string(event.Type), false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    event.OccurredAt,
		MessageId:    event.EnrollmentID + ":" + string(event.Type),
		Type:         string(event.Type),
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	p.logger.Debug("event published", zap.String("type", string(event.Type)), zap.String("enrollment_id", event.EnrollmentID))
	return nil
}

// Close releases the channel and connection.
func (p *RabbitMQPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			firstErr = err
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Noop drops every event. Used when the broker is disabled.
type Noop struct{}

// Publish implements Publisher.
func (Noop) Publish(context.Context, models.EnrollmentEvent) error { return nil }

// Close implements Publisher.
func (Noop) Close() error { return nil }
