package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs-lzh/seat-booking/internal/gateway"
	"github.com/qs-lzh/seat-booking/internal/model"
	"github.com/qs-lzh/seat-booking/internal/pricing"
	"github.com/qs-lzh/seat-booking/internal/service"
	"github.com/qs-lzh/seat-booking/internal/service/domain"
	"github.com/qs-lzh/seat-booking/internal/service/domain/domaintest"
)

func newBookingWorkflow(f *domaintest.Fixture) *BookingWorkflow {
	return NewBookingWorkflow(f.Reservations, f.Catalog, f.Discounts, f.Orders, f.Payments, f.Clock, f.Logger)
}

func bookingRequest(f *domaintest.Fixture, holder string, labels ...string) BookingRequest {
	return BookingRequest{
		ShowtimeID:  f.Showtime.ID,
		SeatIDs:     f.SeatIDs(labels...),
		HolderToken: holder,
		Customer:    domain.Customer{Name: "Ada", Email: "ada@example.com", Phone: "555-0100"},
	}
}

func TestBook(t *testing.T) {
	f := domaintest.New(t)
	w := newBookingWorkflow(f)
	req := bookingRequest(f, "alice", "A1", "A2")
	req.CouponCode = domaintest.CouponSave10

	result, err := w.Book(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, pricing.Money(200_000), result.Total.Subtotal)
	assert.Equal(t, pricing.Money(15_000), result.Total.Discount)
	assert.Equal(t, pricing.Money(185_000), result.Total.Total)
	require.NotNil(t, result.Discount)
	assert.Equal(t, domaintest.CouponSave10, result.Discount.Code)

	assert.Equal(t, model.OrderPending, result.Order.Status)
	assert.Len(t, result.Order.Tickets, 2)
	assert.Equal(t, model.PaymentInitiated, result.Intent.Status)
	assert.Equal(t, result.Order.TotalPrice, result.Intent.Amount)
	assert.Equal(t, result.Intent.RedirectURL, result.RedirectURL)
	assert.Equal(t, "555-0100", f.Order(t, result.Order.ID).CustomerPhone)
}

func TestBook_MixedSeatTypesWithEvent(t *testing.T) {
	f := domaintest.New(t)
	w := newBookingWorkflow(f)
	req := bookingRequest(f, "alice", "A1", "V1", "C1")
	req.EventCode = domaintest.EventSummer

	result, err := w.Book(context.Background(), req)
	require.NoError(t, err)

	// 100,000 + 150,000 + 200,000, twenty percent off
	assert.Equal(t, pricing.Money(450_000), result.Total.Subtotal)
	assert.Equal(t, pricing.Money(90_000), result.Total.Discount)
	assert.Equal(t, pricing.Money(360_000), result.Total.Total)
	require.NotNil(t, result.Order.EventID)
	assert.Nil(t, result.Order.CouponID)
}

func TestBook_InvalidCustomer(t *testing.T) {
	f := domaintest.New(t)
	w := newBookingWorkflow(f)
	req := bookingRequest(f, "alice", "A1")
	req.Customer.Email = "not-an-email"

	_, err := w.Book(context.Background(), req)

	assert.ErrorIs(t, err, service.ErrInvalid)
	assert.Empty(t, f.Claims(t))
}

func TestBook_DiscountRejectedReleasesSeats(t *testing.T) {
	tests := []struct {
		name   string
		coupon string
		event  string
		want   error
	}{
		{"expired coupon", domaintest.CouponExpired, "", service.ErrDiscountOutOfWindow},
		{"coupon and event", domaintest.CouponSave10, domaintest.EventSummer, service.ErrConflictingDiscounts},
		{"unknown event", "", "NOPE", service.ErrDiscountNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := domaintest.New(t)
			w := newBookingWorkflow(f)
			req := bookingRequest(f, "alice", "A1", "A2")
			req.CouponCode, req.EventCode = tt.coupon, tt.event

			_, err := w.Book(context.Background(), req)

			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, f.Claims(t))
			_, err = f.Reservations.Reserve(context.Background(), f.Showtime.ID, f.SeatIDs("A1", "A2"), "bob", 0)
			assert.NoError(t, err)
		})
	}
}

func TestBook_GatewayFailureCancelsOrder(t *testing.T) {
	f := domaintest.New(t)
	w := newBookingWorkflow(f)
	f.Gateway.Err = gateway.ErrGatewayRejected
	req := bookingRequest(f, "alice", "A1", "A2")
	req.CouponCode = domaintest.CouponSave10

	_, err := w.Book(context.Background(), req)
	require.ErrorIs(t, err, gateway.ErrGatewayRejected)

	var orders []model.Order
	require.NoError(t, f.DB.Find(&orders).Error)
	require.Len(t, orders, 1)
	assert.Equal(t, model.OrderCancelled, orders[0].Status)
	assert.Equal(t, 0, f.Coupon(t, domaintest.CouponSave10).UsedQuantity)

	f.Gateway.Err = nil
	_, err = w.Book(context.Background(), bookingRequest(f, "bob", "A1", "A2"))
	assert.NoError(t, err, "seats of the cancelled order are bookable")
}

// lapsingReservations lets every hold run out right after it is taken.
type lapsingReservations struct {
	domain.ReservationService
	f        *domaintest.Fixture
	confirms int
}

func (r *lapsingReservations) Reserve(ctx context.Context, showtimeID uint, seatIDs []uint, holderToken string, ttl time.Duration) (*domain.ReservationHandle, error) {
	handle, err := r.ReservationService.Reserve(ctx, showtimeID, seatIDs, holderToken, ttl)
	r.f.Clock.Advance(domaintest.HoldTTL + time.Second)
	return handle, err
}

func (r *lapsingReservations) Confirm(ctx context.Context, handle *domain.ReservationHandle) error {
	r.confirms++
	return r.ReservationService.Confirm(ctx, handle)
}

func TestBook_HoldLapsedBeforeOrder(t *testing.T) {
	f := domaintest.New(t)
	reservations := &lapsingReservations{ReservationService: f.Reservations, f: f}
	w := NewBookingWorkflow(reservations, f.Catalog, f.Discounts, f.Orders, f.Payments, f.Clock, f.Logger)

	_, err := w.Book(context.Background(), bookingRequest(f, "alice", "A1", "A2"))

	assert.ErrorIs(t, err, service.ErrExpired)
	assert.Equal(t, 1, reservations.confirms)
	var orders []model.Order
	require.NoError(t, f.DB.Find(&orders).Error)
	assert.Empty(t, orders)
	assert.Empty(t, f.Claims(t))
}

func TestBook_SeatTaken(t *testing.T) {
	f := domaintest.New(t)
	w := newBookingWorkflow(f)
	_, err := w.Book(context.Background(), bookingRequest(f, "alice", "A1"))
	require.NoError(t, err)

	_, err = w.Book(context.Background(), bookingRequest(f, "bob", "A1", "A2"))

	var conflict *service.SeatConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, f.SeatIDs("A1"), conflict.SeatIDs)
	assert.Empty(t, f.Claims(t))
}
