package workflow

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/qs-lzh/seat-booking/internal/mq"
)

// TicketNotifier hands issued ticket tokens to the customer.
type TicketNotifier interface {
	NotifyTicketsIssued(ctx context.Context, msg mq.OrderPaidMessage) error
}

// LogNotifier records issued tickets in the log in place of a delivery
// channel.
type LogNotifier struct {
	Logger *zap.Logger
}

func (n LogNotifier) NotifyTicketsIssued(ctx context.Context, msg mq.OrderPaidMessage) error {
	n.Logger.Info("tickets issued",
		zap.String("order_id", msg.OrderID),
		zap.String("customer_email", msg.CustomerEmail),
		zap.Int("tickets", len(msg.Tickets)))
	return nil
}

type OrderWorkflow struct {
	notifier TicketNotifier
	logger   *zap.Logger
}

func NewOrderWorkflow(notifier TicketNotifier, logger *zap.Logger) *OrderWorkflow {
	return &OrderWorkflow{
		notifier: notifier,
		logger:   logger,
	}
}

func (w *OrderWorkflow) Start(mqConn *amqp.Connection) error {
	if err := w.ConsumeOrderPaid(mqConn); err != nil {
		return err
	}
	return nil
}

func (w *OrderWorkflow) ConsumeOrderPaid(conn *amqp.Connection) error {
	ch, err := mq.NewChannel(conn)
	if err != nil {
		return err
	}

	msgs, err := ch.Consume(mq.OrderPaidQueue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	go func() {
		for msg := range msgs {
			if err := w.handleOrderPaid(msg); err != nil {
				w.logger.Error("failed to handle order paid", zap.Error(err))
			}
		}
	}()

	return nil
}

func (w *OrderWorkflow) handleOrderPaid(msg amqp.Delivery) error {
	var message mq.OrderPaidMessage
	if err := json.Unmarshal(msg.Body, &message); err != nil {
		msg.Nack(false, false)
		return err
	}

	if err := w.notifier.NotifyTicketsIssued(context.Background(), message); err != nil {
		msg.Nack(false, true)
		return err
	}

	msg.Ack(false)

	return nil
}
