package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

func SendImmediateMessage(ctx context.Context, ch *amqp.Channel, queueName string, message any) error {
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	err = ch.PublishWithContext(
		ctx,
		"",
		queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message to queue %s: %w", queueName, err)
	}

	return nil
}

// SendTimeoutMessage publishes to a delay queue. The message reaches the
// consumer side only after the queue's TTL dead-letters it.
func SendTimeoutMessage(ctx context.Context, ch *amqp.Channel, delayQueueName string, message any) error {
	return SendImmediateMessage(ctx, ch, delayQueueName, message)
}

// Publisher publishes booking messages over a single channel.
type Publisher struct {
	conn *amqp.Connection

	mu sync.Mutex
	ch *amqp.Channel
}

func NewPublisher(conn *amqp.Connection) (*Publisher, error) {
	ch, err := NewChannel(conn)
	if err != nil {
		return nil, err
	}
	return &Publisher{conn: conn, ch: ch}, nil
}

func (p *Publisher) SchedulePaymentExpiry(ctx context.Context, msg PaymentExpiryMessage) error {
	return p.publish(ctx, func(ch *amqp.Channel) error {
		return SendTimeoutMessage(ctx, ch, PaymentExpiryDelayQueue, msg)
	})
}

func (p *Publisher) PublishOrderPaid(ctx context.Context, msg OrderPaidMessage) error {
	return p.publish(ctx, func(ch *amqp.Channel) error {
		return SendImmediateMessage(ctx, ch, OrderPaidQueue, msg)
	})
}

func (p *Publisher) publish(ctx context.Context, send func(ch *amqp.Channel) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	// reopen the channel if the broker closed it after an earlier error
	if p.ch == nil || p.ch.IsClosed() {
		ch, err := NewChannel(p.conn)
		if err != nil {
			return err
		}
		p.ch = ch
	}
	return send(p.ch)
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil {
		return nil
	}
	return p.ch.Close()
}
