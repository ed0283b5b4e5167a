package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/qs-lzh/seat-booking/internal/mq"
)

type recordingNotifier struct {
	err  error
	sent []mq.OrderPaidMessage
}

func (n *recordingNotifier) NotifyTicketsIssued(ctx context.Context, msg mq.OrderPaidMessage) error {
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, msg)
	return nil
}

func paidMessage() mq.OrderPaidMessage {
	return mq.OrderPaidMessage{
		OrderID:       "order-1",
		ShowtimeID:    1,
		CustomerName:  "Ada",
		CustomerEmail: "ada@example.com",
		Tickets:       []mq.PaidTicket{{TicketID: "t-1", SeatID: 1, Token: "tok"}},
	}
}

func TestHandleOrderPaid(t *testing.T) {
	notifier := &recordingNotifier{}
	w := NewOrderWorkflow(notifier, zap.NewNop())
	ack := &recordingAck{}

	require.NoError(t, w.handleOrderPaid(delivery(t, ack, paidMessage())))

	assert.Equal(t, 1, ack.acked)
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, paidMessage(), notifier.sent[0])
}

func TestHandleOrderPaid_NotifierFailureRequeues(t *testing.T) {
	w := NewOrderWorkflow(&recordingNotifier{err: errors.New("smtp unavailable")}, zap.NewNop())
	ack := &recordingAck{}

	assert.Error(t, w.handleOrderPaid(delivery(t, ack, paidMessage())))

	assert.Equal(t, 1, ack.nacked)
	assert.True(t, ack.requeued)
}

func TestHandleOrderPaid_MalformedDropped(t *testing.T) {
	notifier := &recordingNotifier{}
	w := NewOrderWorkflow(notifier, zap.NewNop())
	ack := &recordingAck{}

	assert.Error(t, w.handleOrderPaid(delivery(t, ack, []byte("nope"))))

	assert.Equal(t, 1, ack.nacked)
	assert.False(t, ack.requeued)
	assert.Empty(t, notifier.sent)
}

func TestLogNotifier(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	n := LogNotifier{Logger: zap.New(core)}

	require.NoError(t, n.NotifyTicketsIssued(context.Background(), paidMessage()))

	entries := logs.FilterMessage("tickets issued").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "order-1", entries[0].ContextMap()["order_id"])
	assert.Equal(t, int64(1), entries[0].ContextMap()["tickets"])
}
