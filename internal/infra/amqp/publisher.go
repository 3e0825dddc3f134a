// Package amqp publishes quiz domain events to a RabbitMQ topic exchange.
package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// DefaultExchange is used when no exchange name is configured.
const DefaultExchange = "quiz.events"

// channel is the subset of *amqp091.Channel the publisher needs.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// Publisher implements app.Publisher. With an empty URL it is disabled and
// only logs what it would have sent.
type Publisher struct {
	logger   *slog.Logger
	exchange string
	enabled  bool
	now      func() time.Time

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel channel
}

func NewPublisher(url, exchange string, logger *slog.Logger) (*Publisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Publisher{logger: logger, exchange: exchange, now: time.Now}
	if url == "" {
		logger.Warn("amqp url is empty, event publishing is disabled")
		return p, nil
	}

	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	err = ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	logger.Info("event publisher ready", "exchange", exchange)
	p.conn = conn
	p.channel = ch
	p.enabled = true
	return p, nil
}

// Enabled reports whether events leave the process.
func (p *Publisher) Enabled() bool {
	return p.enabled
}

// Publish sends payload as JSON with eventType as the routing key.
func (p *Publisher) Publish(ctx context.Context, eventType string, payload any) error {
	if !p.enabled {
		p.logger.Debug("event publishing disabled, skipping", "event", eventType)
		return nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", eventType, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.channel.PublishWithContext(ctx,
		p.exchange, // exchange
		eventType,  // routing key
		false,      // mandatory
		false,      // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    p.now(),
			Body:         body,
			Headers:      amqp091.Table{"event_type": eventType},
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	p.logger.Debug("event published", "event", eventType)
	return nil
}

func (p *Publisher) Close() error {
	if !p.enabled {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			return fmt.Errorf("close channel: %w", err)
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			return fmt.Errorf("close connection: %w", err)
		}
	}
	return nil
}
