package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/qs-lzh/seat-booking/internal/clock"
	"github.com/qs-lzh/seat-booking/internal/gateway"
	"github.com/qs-lzh/seat-booking/internal/model"
	"github.com/qs-lzh/seat-booking/internal/mq"
	"github.com/qs-lzh/seat-booking/internal/repository"
	"github.com/qs-lzh/seat-booking/internal/service"
)

const (
	DefaultPaymentDeadline = 15 * time.Minute
	DefaultPaymentMethod   = "card"
)

type PaymentService interface {
	Open(ctx context.Context, order *model.Order, method string) (*model.PaymentIntent, error)
	OnCallback(ctx context.Context, cb gateway.Callback) error
	Expire(ctx context.Context, intentID string) error
	ExpireDue(ctx context.Context, limit int) (int, error)
}

type PaymentConfig struct {
	Deadline      time.Duration
	ReturnURL     string
	CancelURL     string
	RetryAttempts int
	RetryBackoff  time.Duration
}

type paymentService struct {
	db           *gorm.DB
	paymentRepo  repository.PaymentRepo
	orderService OrderService
	gateway      gateway.Client
	signer       *gateway.Signer
	scheduler    ExpiryScheduler
	publisher    OrderEventPublisher
	cache        SeatMapCache
	clock        clock.Clock
	logger       *zap.Logger
	cfg          PaymentConfig
}

var _ PaymentService = (*paymentService)(nil)

func NewPaymentService(
	db *gorm.DB,
	paymentRepo repository.PaymentRepo,
	orderService OrderService,
	gw gateway.Client,
	signer *gateway.Signer,
	scheduler ExpiryScheduler,
	publisher OrderEventPublisher,
	seatCache SeatMapCache,
	clk clock.Clock,
	logger *zap.Logger,
	cfg PaymentConfig,
) *paymentService {
	if cfg.Deadline <= 0 {
		cfg.Deadline = DefaultPaymentDeadline
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 50 * time.Millisecond
	}
	return &paymentService{
		db:           db,
		paymentRepo:  paymentRepo,
		orderService: orderService,
		gateway:      gw,
		signer:       signer,
		scheduler:    scheduler,
		publisher:    publisher,
		cache:        seatCache,
		clock:        clk,
		logger:       logger,
		cfg:          cfg,
	}
}

// Open starts a payment for a pending order and returns the INITIATED
// intent carrying the gateway redirect.
func (s *paymentService) Open(ctx context.Context, order *model.Order, method string) (*model.PaymentIntent, error) {
	if order.Status != model.OrderPending {
		return nil, fmt.Errorf("order %s is %s: %w", order.ID, order.Status, service.ErrInvalid)
	}
	if method == "" {
		method = DefaultPaymentMethod
	}

	resp, err := s.gateway.OpenIntent(ctx, gateway.OpenRequest{
		OrderID:   order.ID,
		Amount:    order.TotalPrice,
		Method:    method,
		ReturnURL: s.cfg.ReturnURL,
		CancelURL: s.cfg.CancelURL,
	})
	if err != nil {
		return nil, fmt.Errorf("open gateway intent: %w", err)
	}

	now := s.clock.Now()
	intent := &model.PaymentIntent{
		ID:          uuid.NewString(),
		OrderID:     order.ID,
		GatewayRef:  resp.GatewayRef,
		Amount:      order.TotalPrice,
		Method:      method,
		Status:      model.PaymentInitiated,
		RedirectURL: resp.RedirectURL,
		Deadline:    now.Add(s.cfg.Deadline),
	}
	if err := s.paymentRepo.Create(ctx, intent); err != nil {
		return nil, fmt.Errorf("save payment intent: %w", err)
	}

	if s.scheduler != nil {
		msg := mq.PaymentExpiryMessage{IntentID: intent.ID, Deadline: intent.Deadline}
		if err := s.scheduler.SchedulePaymentExpiry(ctx, msg); err != nil {
			// the sweeper still expires the intent
			s.logger.Warn("failed to schedule payment expiry", zap.String("intent_id", intent.ID), zap.Error(err))
		}
	}

	s.logger.Info("payment intent opened",
		zap.String("intent_id", intent.ID),
		zap.String("order_id", order.ID),
		zap.String("gateway_ref", intent.GatewayRef),
		zap.Int64("amount", int64(intent.Amount)))
	return intent, nil
}

// OnCallback applies a gateway notification. Redelivered callbacks for an
// intent that already reached a terminal state are acknowledged without
// side effects.
func (s *paymentService) OnCallback(ctx context.Context, cb gateway.Callback) error {
	if !s.signer.VerifyCallback(cb) {
		s.logger.Warn("rejected payment callback: invalid signature",
			zap.String("gateway_ref", cb.GatewayRef),
			zap.String("outcome", string(cb.Outcome)))
		return service.ErrInvalidSignature
	}

	intent, err := s.paymentRepo.GetByGatewayRef(ctx, cb.GatewayRef)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return service.ErrIntentNotFound
		}
		return err
	}

	if cb.Amount != intent.Amount {
		s.logger.Warn("rejected payment callback: amount mismatch",
			zap.String("intent_id", intent.ID),
			zap.Int64("expected", int64(intent.Amount)),
			zap.Int64("received", int64(cb.Amount)))
		return service.ErrAmountMismatch
	}

	if intent.Status.Terminal() {
		if cb.Outcome == gateway.OutcomePaid && intent.Status != model.PaymentPaid {
			s.logger.Warn("payment confirmed after intent closed",
				zap.String("intent_id", intent.ID),
				zap.String("status", string(intent.Status)))
		} else {
			s.logger.Info("duplicate payment callback", zap.String("intent_id", intent.ID))
		}
		return nil
	}

	switch cb.Outcome {
	case gateway.OutcomePaid:
		return s.markPaid(ctx, intent)
	case gateway.OutcomeFailed:
		reason := cb.Reason
		if reason == "" {
			reason = "payment failed at gateway"
		}
		return s.compensate(ctx, intent, func(tx *gorm.DB, now time.Time) (bool, error) {
			return s.paymentRepo.WithTx(tx).Complete(ctx, intent.ID, model.PaymentFailed, reason, now)
		}, reason)
	default:
		return fmt.Errorf("unknown payment outcome %q: %w", cb.Outcome, service.ErrInvalid)
	}
}

func (s *paymentService) markPaid(ctx context.Context, intent *model.PaymentIntent) error {
	var paid *model.Order
	err := retry(ctx, s.cfg.RetryAttempts, s.cfg.RetryBackoff, func() error {
		paid = nil
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			applied, err := s.paymentRepo.WithTx(tx).Complete(ctx, intent.ID, model.PaymentPaid, "", s.clock.Now())
			if err != nil || !applied {
				return err
			}
			paid, err = s.orderService.MarkPaidTx(ctx, tx, intent.OrderID)
			return err
		})
	})
	if err != nil {
		s.logger.Error("failed to settle paid intent", zap.String("intent_id", intent.ID), zap.Error(err))
		return err
	}
	if paid == nil {
		// another delivery of the same callback won the transition
		return nil
	}

	s.logger.Info("order paid", zap.String("order_id", paid.ID), zap.String("intent_id", intent.ID))
	invalidateSeatMap(ctx, s.cache, s.logger, paid.ShowtimeID)
	s.publishPaid(ctx, paid)
	return nil
}

func (s *paymentService) publishPaid(ctx context.Context, order *model.Order) {
	if s.publisher == nil {
		return
	}
	msg := mq.OrderPaidMessage{
		OrderID:       order.ID,
		ShowtimeID:    order.ShowtimeID,
		CustomerName:  order.CustomerName,
		CustomerEmail: order.CustomerEmail,
	}
	for _, t := range order.Tickets {
		msg.Tickets = append(msg.Tickets, mq.PaidTicket{TicketID: t.ID, SeatID: t.SeatID, Token: t.Token})
	}
	if err := s.publisher.PublishOrderPaid(ctx, msg); err != nil {
		s.logger.Error("failed to publish order paid", zap.String("order_id", order.ID), zap.Error(err))
	}
}

// compensate closes the intent with transition and cancels its order in the
// same transaction, retrying transient failures.
func (s *paymentService) compensate(ctx context.Context, intent *model.PaymentIntent, transition func(tx *gorm.DB, now time.Time) (bool, error), reason string) error {
	var cancelled *model.Order
	err := retry(ctx, s.cfg.RetryAttempts, s.cfg.RetryBackoff, func() error {
		cancelled = nil
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			applied, err := transition(tx, s.clock.Now())
			if err != nil || !applied {
				return err
			}
			cancelled, err = s.orderService.CancelTx(ctx, tx, intent.OrderID, reason)
			return err
		})
	})
	if err != nil {
		s.logger.Error("payment compensation failed", zap.String("intent_id", intent.ID), zap.Error(err))
		return err
	}
	if cancelled != nil {
		s.logger.Info("payment closed without capture",
			zap.String("intent_id", intent.ID),
			zap.String("order_id", cancelled.ID),
			zap.String("reason", reason))
		invalidateSeatMap(ctx, s.cache, s.logger, cancelled.ShowtimeID)
	}
	return nil
}

// Expire closes an INITIATED intent whose deadline has passed and cancels
// its order. Calls before the deadline, and for closed intents, do nothing.
func (s *paymentService) Expire(ctx context.Context, intentID string) error {
	intent, err := s.paymentRepo.GetByID(ctx, intentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return service.ErrIntentNotFound
		}
		return err
	}
	if intent.Status.Terminal() || s.clock.Now().Before(intent.Deadline) {
		return nil
	}
	return s.compensate(ctx, intent, func(tx *gorm.DB, now time.Time) (bool, error) {
		return s.paymentRepo.WithTx(tx).Expire(ctx, intent.ID, now)
	}, "payment deadline passed")
}

// ExpireDue expires up to limit overdue intents and returns how many were
// processed.
func (s *paymentService) ExpireDue(ctx context.Context, limit int) (int, error) {
	due, err := s.paymentRepo.ListDue(ctx, s.clock.Now(), limit)
	if err != nil {
		return 0, err
	}
	var errs []error
	expired := 0
	for _, intent := range due {
		if err := s.Expire(ctx, intent.ID); err != nil {
			errs = append(errs, fmt.Errorf("intent %s: %w", intent.ID, err))
			continue
		}
		expired++
	}
	return expired, errors.Join(errs...)
}
