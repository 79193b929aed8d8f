package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/netkrida/myhome-sub004/apperror"
	"github.com/netkrida/myhome-sub004/payments"
	"github.com/netkrida/myhome-sub004/services"
	amqp "github.com/rabbitmq/amqp091-go"
)

const MaxNotificationAttempts = 5

type Reconciler interface {
	Reconcile(ctx context.Context, n payments.Notification) (*services.ReconcileResult, error)
}

// retrier re-enqueues a notification that failed for a transient reason.
type retrier interface {
	PublishRetry(ctx context.Context, n payments.Notification, attempt int) error
}

// PublishRetry queues a verified gateway notification whose reconciliation
// failed for a reason other than a business rule. It reaches the consumer
// after RetryDelay.
func (p *Publisher) PublishRetry(ctx context.Context, n payments.Notification, attempt int) error {
	return p.publish(ctx, KeyNotificationDelay, n, amqp.Table{attemptHeader: int32(attempt)})
}

func delayQueueArgs() amqp.Table {
	return amqp.Table{
		"x-message-ttl":             int32(RetryDelay / time.Millisecond),
		"x-dead-letter-exchange":    ExchangeName,
		"x-dead-letter-routing-key": KeyNotificationRetry,
	}
}

type RetryConsumer struct {
	channel    *amqp.Channel
	reconciler Reconciler
	retrier    retrier
}

func NewRetryConsumer(conn *amqp.Connection, reconciler Reconciler, publisher *Publisher) (*RetryConsumer, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}

	if err := ch.ExchangeDeclare(ExchangeName, ExchangeKind, true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("rabbitmq exchange declare: %w", err)
	}

	q, err := ch.QueueDeclare(RetryQueue, true, false, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("rabbitmq queue declare: %w", err)
	}

	if err := ch.QueueBind(q.Name, KeyNotificationRetry, ExchangeName, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("rabbitmq queue bind: %w", err)
	}

	delay, err := ch.QueueDeclare(RetryDelayQueue, true, false, false, false, delayQueueArgs())
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("rabbitmq delay queue declare: %w", err)
	}

	if err := ch.QueueBind(delay.Name, KeyNotificationDelay, ExchangeName, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("rabbitmq delay queue bind: %w", err)
	}

	if err := ch.Qos(1, 0, false); err != nil {
		ch.Close()
		return nil, fmt.Errorf("rabbitmq qos: %w", err)
	}

	return &RetryConsumer{channel: ch, reconciler: reconciler, retrier: publisher}, nil
}

// Start consumes until ctx is cancelled or the channel closes.
func (c *RetryConsumer) Start(ctx context.Context) error {
	msgs, err := c.channel.Consume(
		RetryQueue,
		"",
		false, // ack after reconciling
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("rabbitmq consume: %w", err)
	}

	log.Printf("[RabbitMQ] consuming from queue: %s", RetryQueue)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					log.Println("[RetryConsumer] channel closed, stopping consumer")
					return
				}
				c.handleMessage(ctx, msg)
			}
		}
	}()
	return nil
}

func attemptOf(msg amqp.Delivery) int {
	switch v := msg.Headers[attemptHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	}
	return 1
}

// permanent errors will fail the same way on every retry.
func permanent(err error) bool {
	switch apperror.KindOf(err) {
	case apperror.KindValidation, apperror.KindNotFound, apperror.KindForbidden, apperror.KindBusinessRule:
		return true
	}
	return false
}

func (c *RetryConsumer) handleMessage(ctx context.Context, msg amqp.Delivery) {
	var n payments.Notification
	if err := json.Unmarshal(msg.Body, &n); err != nil {
		log.Printf("[RetryConsumer] failed to unmarshal: %v", err)
		msg.Nack(false, false)
		return
	}

	attempt := attemptOf(msg)
	res, err := c.reconciler.Reconcile(ctx, n)
	switch {
	case err == nil:
		log.Printf("[RetryConsumer] reconciled order %s on attempt %d (status %s)", n.OrderID, attempt, res.Payment.Status)
		msg.Ack(false)
	case permanent(err):
		log.Printf("[RetryConsumer] dropping order %s: %v", n.OrderID, err)
		msg.Nack(false, false)
	case attempt >= MaxNotificationAttempts:
		log.Printf("🔥 [RetryConsumer] giving up on order %s after %d attempts: %v", n.OrderID, attempt, err)
		msg.Nack(false, false)
	default:
		if pubErr := c.retrier.PublishRetry(ctx, n, attempt+1); pubErr != nil {
			log.Printf("[RetryConsumer] could not re-enqueue order %s: %v", n.OrderID, pubErr)
			msg.Nack(false, true)
			return
		}
		msg.Ack(false)
	}
}

func (c *RetryConsumer) Close() {
	if c.channel != nil {
		c.channel.Close()
	}
}
