package domain_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs-lzh/seat-booking/internal/model"
	"github.com/qs-lzh/seat-booking/internal/pricing"
	"github.com/qs-lzh/seat-booking/internal/service"
	"github.com/qs-lzh/seat-booking/internal/service/domain"
	"github.com/qs-lzh/seat-booking/internal/service/domain/domaintest"
)

// priceHandle prices the seats of handle with the given coupon.
func priceHandle(t *testing.T, f *domaintest.Fixture, handle *domain.ReservationHandle, couponCode string) domain.MaterializeInput {
	t.Helper()
	ctx := context.Background()
	seats, err := f.Catalog.GetSeats(ctx, handle.SeatIDs)
	require.NoError(t, err)
	priced := make([]pricing.PricedSeat, len(seats))
	for i, s := range seats {
		priced[i] = pricing.PricedSeat{SeatID: s.ID, Type: s.Type}
	}
	outcome, err := f.Discounts.ValidateSelection(ctx, couponCode, "", pricing.Subtotal(domaintest.BasePrice, priced), f.Clock.Now())
	require.NoError(t, err)
	return domain.MaterializeInput{
		Handle:   handle,
		Discount: outcome,
		Customer: domain.Customer{Name: "Ada", Email: "ada@example.com"},
		Total:    pricing.Price(domaintest.BasePrice, priced, outcome),
	}
}

func TestMaterialize(t *testing.T) {
	f := domaintest.New(t)
	ctx := context.Background()
	handle, err := f.Reservations.Reserve(ctx, f.Showtime.ID, f.SeatIDs("A1", "A2"), "alice", 0)
	require.NoError(t, err)

	order, err := f.Orders.Materialize(ctx, priceHandle(t, f, handle, domaintest.CouponSave10))
	require.NoError(t, err)

	got := f.Order(t, order.ID)
	assert.Equal(t, model.OrderPending, got.Status)
	assert.Equal(t, pricing.Money(200_000), got.Subtotal)
	assert.Equal(t, pricing.Money(15_000), got.DiscountAmount)
	assert.Equal(t, pricing.Money(185_000), got.TotalPrice)
	require.NotNil(t, got.CouponID)
	assert.Equal(t, f.Coupons[domaintest.CouponSave10].ID, *got.CouponID)

	require.Len(t, got.Tickets, 2)
	var sum pricing.Money
	tokens := make(map[string]struct{})
	for _, ticket := range got.Tickets {
		assert.Equal(t, model.TicketPending, ticket.Status)
		assert.Len(t, ticket.Token, 64)
		tokens[ticket.Token] = struct{}{}
		sum += ticket.Price
	}
	assert.Len(t, tokens, 2)
	assert.Equal(t, got.TotalPrice, sum)

	assert.Empty(t, f.Claims(t), "claims are consumed by the order")
	coupon := f.Coupon(t, domaintest.CouponSave10)
	assert.Equal(t, 1, coupon.UsedQuantity)
	assert.Equal(t, 4, coupon.RemainingQuantity)
}

func TestMaterialize_ExpiredReservation(t *testing.T) {
	f := domaintest.New(t)
	ctx := context.Background()
	handle, err := f.Reservations.Reserve(ctx, f.Showtime.ID, f.SeatIDs("A1", "A2"), "alice", time.Minute)
	require.NoError(t, err)
	in := priceHandle(t, f, handle, domaintest.CouponSave10)

	f.Clock.Advance(2 * time.Minute)
	_, err = f.Orders.Materialize(ctx, in)

	assert.ErrorIs(t, err, service.ErrExpiredReservation)
	var orders int64
	require.NoError(t, f.DB.Model(&model.Order{}).Count(&orders).Error)
	assert.Zero(t, orders)
	assert.Equal(t, 0, f.Coupon(t, domaintest.CouponSave10).UsedQuantity)
}

func TestMaterialize_CouponRunsOutAfterValidation(t *testing.T) {
	f := domaintest.New(t)
	ctx := context.Background()
	handle, err := f.Reservations.Reserve(ctx, f.Showtime.ID, f.SeatIDs("A1", "A2"), "alice", 0)
	require.NoError(t, err)
	in := priceHandle(t, f, handle, domaintest.CouponSave10)

	require.NoError(t, f.DB.Model(&model.Coupon{}).
		Where("code = ?", domaintest.CouponSave10).
		Update("used_quantity", 5).Error)
	_, err = f.Orders.Materialize(ctx, in)

	assert.ErrorIs(t, err, service.ErrCouponExhausted)
	assert.Len(t, f.Claims(t), 2, "claims survive a rolled back materialization")
	assert.NoError(t, f.Reservations.Confirm(ctx, handle))
}

func TestMaterialize_MismatchedPricing(t *testing.T) {
	f := domaintest.New(t)
	ctx := context.Background()
	handle, err := f.Reservations.Reserve(ctx, f.Showtime.ID, f.SeatIDs("A1", "A2"), "alice", 0)
	require.NoError(t, err)
	in := priceHandle(t, f, handle, "")
	in.Total.Lines = in.Total.Lines[:1]

	_, err = f.Orders.Materialize(ctx, in)

	assert.ErrorIs(t, err, service.ErrInvalid)
}

// More buyers than coupon uses race to materialize; exactly as many orders
// as the coupon allows carry it.
func TestMaterialize_CouponNeverOversubscribed(t *testing.T) {
	f := domaintest.New(t)
	ctx := context.Background()
	labels := []string{"A1", "A2", "A3", "A4", "V1", "C1"}

	require.NoError(t, f.DB.Model(&model.Coupon{}).
		Where("code = ?", domaintest.CouponFlat).
		Updates(map[string]any{"total_quantity": 3, "remaining_quantity": 3}).Error)

	inputs := make([]domain.MaterializeInput, len(labels))
	for i, label := range labels {
		handle, err := f.Reservations.Reserve(ctx, f.Showtime.ID, f.SeatIDs(label), fmt.Sprintf("holder-%d", i), 0)
		require.NoError(t, err)
		inputs[i] = priceHandle(t, f, handle, domaintest.CouponFlat)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		created   int
		exhausted int
	)
	for _, in := range inputs {
		wg.Add(1)
		go func(in domain.MaterializeInput) {
			defer wg.Done()
			_, err := f.Orders.Materialize(ctx, in)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, service.ErrCouponExhausted):
				exhausted++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(in)
	}
	wg.Wait()

	assert.Equal(t, 3, created)
	assert.Equal(t, len(labels)-3, exhausted)
	coupon := f.Coupon(t, domaintest.CouponFlat)
	assert.Equal(t, 3, coupon.UsedQuantity)
	assert.Equal(t, 0, coupon.RemainingQuantity)
}

func TestCancel_RestoresCouponOnce(t *testing.T) {
	f := domaintest.New(t)
	ctx := context.Background()
	order := f.PendingOrder(t, "alice", domaintest.CouponSave10, "A1", "A2")
	require.Equal(t, 1, f.Coupon(t, domaintest.CouponSave10).UsedQuantity)

	require.NoError(t, f.Orders.Cancel(ctx, order.ID, "customer changed their mind"))
	require.NoError(t, f.Orders.Cancel(ctx, order.ID, "again"))

	got := f.Order(t, order.ID)
	assert.Equal(t, model.OrderCancelled, got.Status)
	for _, ticket := range got.Tickets {
		assert.Equal(t, model.TicketCancelled, ticket.Status)
	}
	coupon := f.Coupon(t, domaintest.CouponSave10)
	assert.Equal(t, 0, coupon.UsedQuantity)
	assert.Equal(t, 5, coupon.RemainingQuantity)

	_, err := f.Reservations.Reserve(ctx, f.Showtime.ID, f.SeatIDs("A1", "A2"), "bob", 0)
	assert.NoError(t, err, "cancelled seats are free again")
}

func TestCancel_PaidOrderRefused(t *testing.T) {
	f := domaintest.New(t)
	ctx := context.Background()
	order := f.PendingOrder(t, "alice", "", "A1")
	require.NoError(t, f.DB.Model(&model.Order{}).Where("id = ?", order.ID).Update("status", model.OrderPaid).Error)

	err := f.Orders.Cancel(ctx, order.ID, "too late")

	assert.ErrorIs(t, err, service.ErrConflict)
}

func TestGetOrder_NotFound(t *testing.T) {
	f := domaintest.New(t)

	_, err := f.Orders.GetOrder(context.Background(), "missing")

	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestListByHolder(t *testing.T) {
	f := domaintest.New(t)
	ctx := context.Background()
	first := f.PendingOrder(t, "alice", "", "A1")
	f.Clock.Advance(time.Second)
	second := f.PendingOrder(t, "alice", "", "A2")
	f.PendingOrder(t, "bob", "", "A3")

	orders, err := f.Orders.ListByHolder(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, second.ID, orders[0].ID)
	assert.Equal(t, first.ID, orders[1].ID)

	_, err = f.Orders.ListByHolder(ctx, "")
	assert.ErrorIs(t, err, service.ErrInvalidHolder)
}
