package workflow

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/qs-lzh/seat-booking/internal/clock"
	"github.com/qs-lzh/seat-booking/internal/model"
	"github.com/qs-lzh/seat-booking/internal/pricing"
	"github.com/qs-lzh/seat-booking/internal/service"
	"github.com/qs-lzh/seat-booking/internal/service/domain"
)

type BookingRequest struct {
	ShowtimeID    uint
	SeatIDs       []uint
	HolderToken   string
	Customer      domain.Customer
	CouponCode    string
	EventCode     string
	PaymentMethod string
}

type BookingResult struct {
	Order       *model.Order
	Intent      *model.PaymentIntent
	RedirectURL string
	Total       pricing.Total
	Discount    *pricing.DiscountOutcome
}

// BookingWorkflow takes a booking from seat selection to an open payment.
type BookingWorkflow struct {
	reservations domain.ReservationService
	catalog      domain.CatalogService
	discounts    domain.DiscountService
	orders       domain.OrderService
	payments     domain.PaymentService
	clock        clock.Clock
	logger       *zap.Logger
}

func NewBookingWorkflow(
	reservations domain.ReservationService,
	catalog domain.CatalogService,
	discounts domain.DiscountService,
	orders domain.OrderService,
	payments domain.PaymentService,
	clk clock.Clock,
	logger *zap.Logger,
) *BookingWorkflow {
	return &BookingWorkflow{
		reservations: reservations,
		catalog:      catalog,
		discounts:    discounts,
		orders:       orders,
		payments:     payments,
		clock:        clk,
		logger:       logger,
	}
}

// Book reserves the seats, prices them with the selected discount, creates
// the pending order and opens its payment. Whatever was acquired before a
// failing step is given back before the error is returned.
func (w *BookingWorkflow) Book(ctx context.Context, req BookingRequest) (*BookingResult, error) {
	if err := validateCustomer(req.Customer); err != nil {
		return nil, err
	}

	handle, err := w.reservations.Reserve(ctx, req.ShowtimeID, req.SeatIDs, req.HolderToken, 0)
	if err != nil {
		return nil, err
	}

	total, discount, err := w.price(ctx, handle, req)
	if err != nil {
		w.release(ctx, handle)
		return nil, err
	}
	// Materialize consumes the claims under the same check; this one stops
	// a hold that lapsed while pricing before any order row is written.
	if err := w.reservations.Confirm(ctx, handle); err != nil {
		w.release(ctx, handle)
		return nil, err
	}

	order, err := w.orders.Materialize(ctx, domain.MaterializeInput{
		Handle:   handle,
		Discount: discount,
		Customer: req.Customer,
		Total:    total,
	})
	if err != nil {
		w.release(ctx, handle)
		return nil, err
	}

	intent, err := w.payments.Open(ctx, order, req.PaymentMethod)
	if err != nil {
		// compensation must run even if the caller went away
		cctx := context.WithoutCancel(ctx)
		if cerr := w.orders.Cancel(cctx, order.ID, "payment could not be opened"); cerr != nil {
			w.logger.Error("failed to cancel order after payment open failure",
				zap.String("order_id", order.ID), zap.Error(cerr))
		}
		return nil, err
	}

	w.logger.Info("booking created",
		zap.String("order_id", order.ID),
		zap.String("intent_id", intent.ID),
		zap.Uint("showtime_id", req.ShowtimeID))
	return &BookingResult{
		Order:       order,
		Intent:      intent,
		RedirectURL: intent.RedirectURL,
		Total:       total,
		Discount:    discount,
	}, nil
}

func (w *BookingWorkflow) price(ctx context.Context, handle *domain.ReservationHandle, req BookingRequest) (pricing.Total, *pricing.DiscountOutcome, error) {
	showtime, err := w.catalog.GetShowtimeByID(ctx, handle.ShowtimeID)
	if err != nil {
		return pricing.Total{}, nil, fmt.Errorf("showtime %d: %w", handle.ShowtimeID, err)
	}
	seats, err := w.catalog.GetSeats(ctx, handle.SeatIDs)
	if err != nil {
		return pricing.Total{}, nil, err
	}
	priced := make([]pricing.PricedSeat, len(seats))
	for i, seat := range seats {
		priced[i] = pricing.PricedSeat{SeatID: seat.ID, Type: seat.Type}
	}

	subtotal := pricing.Subtotal(showtime.BasePrice, priced)
	discount, err := w.discounts.ValidateSelection(ctx, req.CouponCode, req.EventCode, subtotal, w.clock.Now())
	if err != nil {
		return pricing.Total{}, nil, err
	}
	return pricing.Price(showtime.BasePrice, priced, discount), discount, nil
}

func (w *BookingWorkflow) release(ctx context.Context, handle *domain.ReservationHandle) {
	if err := w.reservations.Release(context.WithoutCancel(ctx), handle); err != nil {
		w.logger.Error("failed to release seats", zap.String("handle_id", handle.ID), zap.Error(err))
	}
}

func validateCustomer(c domain.Customer) error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("customer name is required: %w", service.ErrInvalid)
	}
	if !strings.Contains(c.Email, "@") {
		return fmt.Errorf("customer email is invalid: %w", service.ErrInvalid)
	}
	return nil
}
