package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	ExchangeName = "myhome.events"
	ExchangeKind = "topic"
	RetryQueue   = "myhome.payment-notification-retry"

	// RetryDelayQueue has no consumer. Messages wait RetryDelay there and are
	// dead-lettered back to RetryQueue.
	RetryDelayQueue = "myhome.payment-notification-retry.delay"
	RetryDelay      = 30 * time.Second

	KeyPaymentSettled    = "payment.settled"
	KeyPaymentFailed     = "payment.failed"
	KeyPaymentUnapplied  = "payment.refund_required"
	KeyBookingPrefix     = "booking."
	KeyPayoutPrefix      = "payout."
	KeyNotificationRetry = "payment.notification.retry"
	KeyNotificationDelay = "payment.notification.delay"

	attemptHeader  = "x-attempt"
	publishTimeout = 5 * time.Second
)

// channel is the subset of *amqp.Channel the publisher needs.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type Publisher struct {
	conn    *amqp.Connection
	channel channel
}

func NewPublisher(url string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}

	if err := ch.ExchangeDeclare(ExchangeName, ExchangeKind, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("rabbitmq exchange declare: %w", err)
	}

	return &Publisher{conn: conn, channel: ch}, nil
}

// Connection is shared with consumers so one process holds one socket.
func (p *Publisher) Connection() *amqp.Connection {
	return p.conn
}

func (p *Publisher) Publish(ctx context.Context, routingKey string, payload any) error {
	return p.publish(ctx, routingKey, payload, nil)
}

func (p *Publisher) publish(ctx context.Context, routingKey string, payload any, headers amqp.Table) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := p.channel.PublishWithContext(
		ctx,
		ExchangeName,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Headers:      headers,
			Body:         body,
		},
	); err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	log.Printf("[RabbitMQ] published to %s/%s", ExchangeName, routingKey)
	return nil
}

func (p *Publisher) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
