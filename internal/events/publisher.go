// Package events publishes domain events to RabbitMQ. Publishing is best
// effort: callers log failures and carry on.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Routing keys (queue names on the default exchange)
const (
	PaymentConfirmed = "payment.confirmed"
	AllocationPaired = "allocation.paired"
)

// Publisher publishes a JSON event under a routing key
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event interface{}) error
}

// NoopPublisher discards events. Used when the broker is disabled.
type NoopPublisher struct{}

// Publish implements Publisher
func (NoopPublisher) Publish(context.Context, string, interface{}) error { return nil }

// RabbitPublisher publishes persistent JSON messages to durable queues.
// The connection is dialed lazily and re-dialed after it closes.
type RabbitPublisher struct {
	url    string
	logger *logrus.Logger

	mu       sync.Mutex
	conn     *amqp.Connection
	declared map[string]bool
}

// NewRabbitPublisher creates a publisher for the given AMQP URL
func NewRabbitPublisher(url string, logger *logrus.Logger) *RabbitPublisher {
	return &RabbitPublisher{url: url, logger: logger, declared: map[string]bool{}}
}

func (p *RabbitPublisher) connection() (*amqp.Connection, error) {
	if p.conn != nil && !p.conn.IsClosed() {
		return p.conn, nil
	}
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial failed: %w", err)
	}
	p.conn = conn
	p.declared = map[string]bool{}
	return conn, nil
}

// Publish implements Publisher
func (p *RabbitPublisher) Publish(ctx context.Context, routingKey string, event interface{}) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	conn, err := p.connection()
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq channel open failed: %w", err)
	}
	defer ch.Close()

	if !p.declared[routingKey] {
		// durable, not auto-deleted, not exclusive
		if _, err := ch.QueueDeclare(routingKey, true, false, false, false, nil); err != nil {
			return fmt.Errorf("rabbitmq queue declare failed: %w", err)
		}
		p.declared[routingKey] = true
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", routingKey, false, false, msg); err != nil {
		return fmt.Errorf("rabbitmq publish failed: %w", err)
	}

	p.logger.WithFields(logrus.Fields{
		"routing_key": routingKey,
		"bytes":       len(body),
	}).Debug("Domain event published")
	return nil
}

// Close closes the underlying connection if one is open
func (p *RabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil || p.conn.IsClosed() {
		return nil
	}
	return p.conn.Close()
}
