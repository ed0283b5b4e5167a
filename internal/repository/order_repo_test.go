package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/qs-lzh/seat-booking/internal/database/dbtest"
	"github.com/qs-lzh/seat-booking/internal/model"
)

func newOrder(holder string, seatIDs ...uint) *model.Order {
	order := &model.Order{
		ID:            uuid.NewString(),
		ShowtimeID:    1,
		HolderToken:   holder,
		CustomerName:  "Ada",
		CustomerEmail: "ada@example.com",
		Status:        model.OrderPending,
	}
	for _, seatID := range seatIDs {
		order.Tickets = append(order.Tickets, model.Ticket{
			ID:         uuid.NewString(),
			ShowtimeID: 1,
			SeatID:     seatID,
			Price:      100_000,
			Token:      fmt.Sprintf("%s-%d", order.ID, seatID),
			Status:     model.TicketPending,
		})
		order.Subtotal += 100_000
	}
	order.TotalPrice = order.Subtotal
	return order
}

func TestOrderCreate_WithTickets(t *testing.T) {
	repo := NewOrderRepoGorm(dbtest.New(t))
	ctx := context.Background()
	order := newOrder("alice", 3, 1, 2)

	require.NoError(t, repo.Create(ctx, order))

	got, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderPending, got.Status)
	require.Len(t, got.Tickets, 3)
	for i, ticket := range got.Tickets {
		assert.Equal(t, uint(i+1), ticket.SeatID)
		assert.Equal(t, order.ID, ticket.OrderID)
	}
}

func TestOrderCreate_LiveSeatIsUnique(t *testing.T) {
	db := dbtest.New(t)
	orders := NewOrderRepoGorm(db)
	tickets := NewTicketRepoGorm(db)
	ctx := context.Background()

	first := newOrder("alice", 1)
	require.NoError(t, orders.Create(ctx, first))

	err := db.Transaction(func(tx *gorm.DB) error {
		return orders.WithTx(tx).Create(ctx, newOrder("bob", 1))
	})
	assert.True(t, IsUniqueViolation(err), "got %v", err)

	_, err = tickets.SetStatusByOrder(ctx, first.ID, []model.TicketStatus{model.TicketPending}, model.TicketCancelled)
	require.NoError(t, err)

	assert.NoError(t, orders.Create(ctx, newOrder("bob", 1)))
}

func TestOrderTransition(t *testing.T) {
	repo := NewOrderRepoGorm(dbtest.New(t))
	ctx := context.Background()
	order := newOrder("alice", 1)
	require.NoError(t, repo.Create(ctx, order))

	n, err := repo.Transition(ctx, order.ID, []model.OrderStatus{model.OrderPending}, model.OrderPaid)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = repo.Transition(ctx, order.ID, []model.OrderStatus{model.OrderPending}, model.OrderCancelled)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	got, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderPaid, got.Status)
}

func TestOrderGetByHolder(t *testing.T) {
	repo := NewOrderRepoGorm(dbtest.New(t))
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newOrder("alice", 1)))
	require.NoError(t, repo.Create(ctx, newOrder("alice", 2)))
	require.NoError(t, repo.Create(ctx, newOrder("bob", 3)))

	orders, err := repo.GetByHolder(ctx, "alice")

	require.NoError(t, err)
	assert.Len(t, orders, 2)
}

func TestLiveSeatIDs(t *testing.T) {
	db := dbtest.New(t)
	orders := NewOrderRepoGorm(db)
	tickets := NewTicketRepoGorm(db)
	ctx := context.Background()

	live := newOrder("alice", 1, 2)
	cancelled := newOrder("bob", 3)
	require.NoError(t, orders.Create(ctx, live))
	require.NoError(t, orders.Create(ctx, cancelled))
	_, err := tickets.SetStatusByOrder(ctx, cancelled.ID, []model.TicketStatus{model.TicketPending}, model.TicketCancelled)
	require.NoError(t, err)

	ids, err := tickets.LiveSeatIDs(ctx, 1, []uint{2, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, []uint{2}, ids)

	ids, err = tickets.LiveSeatIDs(ctx, 1, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{1, 2}, ids)
}

func TestTicketCheckIn_OnlyPaidOnce(t *testing.T) {
	db := dbtest.New(t)
	orders := NewOrderRepoGorm(db)
	tickets := NewTicketRepoGorm(db)
	ctx := context.Background()

	order := newOrder("alice", 1)
	require.NoError(t, orders.Create(ctx, order))
	token := order.Tickets[0].Token

	n, err := tickets.CheckIn(ctx, token, t0)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "pending ticket must not check in")

	_, err = tickets.SetStatusByOrder(ctx, order.ID, []model.TicketStatus{model.TicketPending}, model.TicketPaid)
	require.NoError(t, err)

	n, err = tickets.CheckIn(ctx, token, t0.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = tickets.CheckIn(ctx, token, t0.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	got, err := tickets.GetByToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, model.TicketUsed, got.Status)
	assert.True(t, got.Used)
	require.NotNil(t, got.UsedAt)
	assert.True(t, got.UsedAt.Equal(t0.Add(time.Minute)))
}
