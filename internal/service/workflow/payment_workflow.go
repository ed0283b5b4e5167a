package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/qs-lzh/seat-booking/internal/mq"
	"github.com/qs-lzh/seat-booking/internal/service"
	"github.com/qs-lzh/seat-booking/internal/service/domain"
)

const sweepBatch = 100

// PaymentWorkflow expires payments whose deadline passed and sweeps expired
// seat claims.
type PaymentWorkflow struct {
	paymentService     domain.PaymentService
	reservationService domain.ReservationService
	logger             *zap.Logger
	sweepInterval      time.Duration
}

func NewPaymentWorkflow(paymentService domain.PaymentService, reservationService domain.ReservationService, logger *zap.Logger, sweepInterval time.Duration) *PaymentWorkflow {
	return &PaymentWorkflow{
		paymentService:     paymentService,
		reservationService: reservationService,
		logger:             logger,
		sweepInterval:      sweepInterval,
	}
}

func (w *PaymentWorkflow) Start(mqConn *amqp.Connection) error {
	return w.ConsumePaymentExpiry(mqConn)
}

func (w *PaymentWorkflow) ConsumePaymentExpiry(mqConn *amqp.Connection) error {
	ch, err := mq.NewChannel(mqConn)
	if err != nil {
		return err
	}

	msgs, err := ch.Consume(mq.PaymentExpiryQueue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	go func() {
		for msg := range msgs {
			w.handlePaymentExpiry(msg)
		}
	}()

	return nil
}

func (w *PaymentWorkflow) handlePaymentExpiry(msg amqp.Delivery) {
	var message mq.PaymentExpiryMessage
	if err := json.Unmarshal(msg.Body, &message); err != nil {
		w.logger.Error("dropping malformed payment expiry message", zap.Error(err))
		msg.Nack(false, false)
		return
	}

	err := w.paymentService.Expire(context.Background(), message.IntentID)
	switch {
	case err == nil, errors.Is(err, service.ErrNotFound):
		msg.Ack(false)
	case errors.Is(err, service.ErrConflict), errors.Is(err, service.ErrInvalid):
		w.logger.Error("payment expiry rejected", zap.String("intent_id", message.IntentID), zap.Error(err))
		msg.Nack(false, false)
	default:
		w.logger.Warn("payment expiry failed, requeueing", zap.String("intent_id", message.IntentID), zap.Error(err))
		msg.Nack(false, true)
	}
}

// RunSweeper sweeps on every tick until ctx is done.
func (w *PaymentWorkflow) RunSweeper(ctx context.Context) {
	if w.sweepInterval <= 0 {
		w.logger.Warn("sweeper disabled", zap.Duration("interval", w.sweepInterval))
		return
	}
	ticker := time.NewTicker(w.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep deletes expired seat claims and expires overdue payment intents.
func (w *PaymentWorkflow) Sweep(ctx context.Context) (claims, intents int) {
	claims, err := w.reservationService.SweepExpired(ctx)
	if err != nil {
		w.logger.Error("claim sweep failed", zap.Error(err))
	}
	intents, err = w.paymentService.ExpireDue(ctx, sweepBatch)
	if err != nil {
		w.logger.Error("payment sweep failed", zap.Error(err))
	}
	if claims > 0 || intents > 0 {
		w.logger.Info("sweep finished", zap.Int("claims", claims), zap.Int("intents", intents))
	}
	return claims, intents
}
