package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/qs-lzh/seat-booking/internal/clock"
	"github.com/qs-lzh/seat-booking/internal/model"
	"github.com/qs-lzh/seat-booking/internal/pricing"
	"github.com/qs-lzh/seat-booking/internal/repository"
	"github.com/qs-lzh/seat-booking/internal/service"
)

type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type MaterializeInput struct {
	Handle   *ReservationHandle
	Discount *pricing.DiscountOutcome
	Customer Customer
	Total    pricing.Total
}

type OrderService interface {
	Materialize(ctx context.Context, in MaterializeInput) (*model.Order, error)
	Cancel(ctx context.Context, orderID, reason string) error
	CancelTx(ctx context.Context, tx *gorm.DB, orderID, reason string) (*model.Order, error)
	MarkPaidTx(ctx context.Context, tx *gorm.DB, orderID string) (*model.Order, error)
	GetOrder(ctx context.Context, orderID string) (*model.Order, error)
	ListByHolder(ctx context.Context, holderToken string) ([]model.Order, error)
}

type orderService struct {
	db         *gorm.DB
	orderRepo  repository.OrderRepo
	ticketRepo repository.TicketRepo
	claimRepo  repository.ClaimRepo
	couponRepo repository.CouponRepo
	cache      SeatMapCache
	clock      clock.Clock
	logger     *zap.Logger
}

var _ OrderService = (*orderService)(nil)

func NewOrderService(
	db *gorm.DB,
	orderRepo repository.OrderRepo,
	ticketRepo repository.TicketRepo,
	claimRepo repository.ClaimRepo,
	couponRepo repository.CouponRepo,
	seatCache SeatMapCache,
	clk clock.Clock,
	logger *zap.Logger,
) *orderService {
	return &orderService{
		db:         db,
		orderRepo:  orderRepo,
		ticketRepo: ticketRepo,
		claimRepo:  claimRepo,
		couponRepo: couponRepo,
		cache:      seatCache,
		clock:      clk,
		logger:     logger,
	}
}

// Materialize turns the live claims of a reservation into a pending order
// with one ticket per seat. Claims, coupon usage and the new rows change in
// one transaction, so a failure leaves everything as it was.
func (s *orderService) Materialize(ctx context.Context, in MaterializeInput) (*model.Order, error) {
	handle := in.Handle
	if handle == nil || len(in.Total.Lines) != len(handle.SeatIDs) {
		return nil, fmt.Errorf("priced seats do not match the reservation: %w", service.ErrInvalid)
	}

	order := &model.Order{
		ID:             uuid.NewString(),
		ShowtimeID:     handle.ShowtimeID,
		HolderToken:    handle.HolderToken,
		CustomerName:   in.Customer.Name,
		CustomerEmail:  in.Customer.Email,
		CustomerPhone:  in.Customer.Phone,
		Subtotal:       in.Total.Subtotal,
		DiscountAmount: in.Total.Discount,
		TotalPrice:     in.Total.Total,
		Status:         model.OrderPending,
		CreatedAt:      s.clock.Now(),
	}
	if d := in.Discount; d != nil {
		id := d.SourceID
		switch d.Source {
		case pricing.SourceCoupon:
			order.CouponID = &id
		case pricing.SourceEvent:
			order.EventID = &id
		}
	}
	for _, line := range in.Total.Lines {
		token, err := newToken()
		if err != nil {
			return nil, fmt.Errorf("generate ticket token: %w", err)
		}
		order.Tickets = append(order.Tickets, model.Ticket{
			ID:         uuid.NewString(),
			ShowtimeID: handle.ShowtimeID,
			SeatID:     line.SeatID,
			Price:      line.Price,
			Token:      token,
			Status:     model.TicketPending,
		})
	}

	now := s.clock.Now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		consumed, err := s.claimRepo.WithTx(tx).ConsumeLive(ctx, handle.ID, now)
		if err != nil {
			return err
		}
		if consumed != len(handle.SeatIDs) {
			return service.ErrExpiredReservation
		}

		if order.CouponID != nil {
			if err := s.couponRepo.WithTx(tx).Redeem(ctx, *order.CouponID, order.ID, now); err != nil {
				if errors.Is(err, repository.ErrNotApplied) {
					return service.ErrCouponExhausted
				}
				return fmt.Errorf("redeem coupon: %w", err)
			}
		}

		if err := s.orderRepo.WithTx(tx).Create(ctx, order); err != nil {
			if repository.IsUniqueViolation(err) {
				s.logger.Warn("live ticket collision",
					zap.Uint("showtime_id", handle.ShowtimeID),
					zap.String("constraint", repository.ConstraintName(err)))
				return service.NewSeatConflictError(handle.ShowtimeID, handle.SeatIDs)
			}
			return fmt.Errorf("create order: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order materialized",
		zap.String("order_id", order.ID),
		zap.String("handle_id", handle.ID),
		zap.Int64("total", int64(order.TotalPrice)))
	invalidateSeatMap(ctx, s.cache, s.logger, order.ShowtimeID)
	return order, nil
}

func (s *orderService) Cancel(ctx context.Context, orderID, reason string) error {
	var order *model.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		order, err = s.CancelTx(ctx, tx, orderID, reason)
		return err
	})
	if err != nil {
		return err
	}
	invalidateSeatMap(ctx, s.cache, s.logger, order.ShowtimeID)
	return nil
}

// CancelTx cancels a pending order and its tickets and gives back its coupon
// use. The order's claims were consumed when it was materialized, so other
// holds of the same holder are left alone. Cancelling an already cancelled
// order changes nothing; a paid order cannot be cancelled.
func (s *orderService) CancelTx(ctx context.Context, tx *gorm.DB, orderID, reason string) (*model.Order, error) {
	orders := s.orderRepo.WithTx(tx)
	order, err := orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("order %s: %w", orderID, service.ErrNotFound)
		}
		return nil, err
	}

	switch order.Status {
	case model.OrderPaid:
		return nil, fmt.Errorf("order %s is already paid: %w", orderID, service.ErrConflict)
	case model.OrderCancelled:
		return order, nil
	}

	if _, err := orders.Transition(ctx, orderID, []model.OrderStatus{model.OrderPending}, model.OrderCancelled); err != nil {
		return nil, fmt.Errorf("cancel order: %w", err)
	}
	if _, err := s.ticketRepo.WithTx(tx).SetStatusByOrder(ctx, orderID,
		[]model.TicketStatus{model.TicketPending, model.TicketPaid}, model.TicketCancelled); err != nil {
		return nil, fmt.Errorf("cancel tickets: %w", err)
	}
	restored, err := s.couponRepo.WithTx(tx).Restore(ctx, orderID, s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("restore coupon: %w", err)
	}

	s.logger.Info("order cancelled",
		zap.String("order_id", orderID),
		zap.String("reason", reason),
		zap.Bool("coupon_restored", restored))
	order.Status = model.OrderCancelled
	for i := range order.Tickets {
		order.Tickets[i].Status = model.TicketCancelled
	}
	return order, nil
}

// MarkPaidTx moves a pending order and its tickets to PAID. It is a no-op
// for an order that is already paid.
func (s *orderService) MarkPaidTx(ctx context.Context, tx *gorm.DB, orderID string) (*model.Order, error) {
	orders := s.orderRepo.WithTx(tx)
	n, err := orders.Transition(ctx, orderID, []model.OrderStatus{model.OrderPending}, model.OrderPaid)
	if err != nil {
		return nil, fmt.Errorf("mark order paid: %w", err)
	}
	if n > 0 {
		if _, err := s.ticketRepo.WithTx(tx).SetStatusByOrder(ctx, orderID,
			[]model.TicketStatus{model.TicketPending}, model.TicketPaid); err != nil {
			return nil, fmt.Errorf("mark tickets paid: %w", err)
		}
	}

	order, err := orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("order %s: %w", orderID, service.ErrNotFound)
		}
		return nil, err
	}
	if order.Status != model.OrderPaid {
		return nil, fmt.Errorf("order %s is %s: %w", orderID, order.Status, service.ErrConflict)
	}
	return order, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID string) (*model.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, service.ErrNotFound
		}
		return nil, err
	}
	return order, nil
}

// ListByHolder returns the holder's orders, newest first.
func (s *orderService) ListByHolder(ctx context.Context, holderToken string) ([]model.Order, error) {
	if holderToken == "" {
		return nil, service.ErrInvalidHolder
	}
	return s.orderRepo.GetByHolder(ctx, holderToken)
}
