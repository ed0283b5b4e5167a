package mq

import "time"

// Queue names and message definitions

// delay queue from payment service to itself
// one message per payment intent, dead-lettered into the expiry queue once
// the payment deadline has passed
const (
	PaymentExpiryDelayQueue = "payment.intent.expire.delay"
	PaymentExpiryQueue      = "payment.intent.expire.immediate"
	PaymentExpiryExchange   = "payment.expire.exchange"
	PaymentExpiryRoutingKey = "payment.expire"
)

type PaymentExpiryMessage struct {
	IntentID string    `json:"intent_id"`
	Deadline time.Time `json:"deadline"`
}

// immediate queue from payment service to order workflow
// deliver message once an order is paid so its tickets can be handed out
const (
	OrderPaidQueue = "order.paid.immediate"
)

type OrderPaidMessage struct {
	OrderID       string       `json:"order_id"`
	ShowtimeID    uint         `json:"showtime_id"`
	CustomerName  string       `json:"customer_name"`
	CustomerEmail string       `json:"customer_email"`
	Tickets       []PaidTicket `json:"tickets"`
}

type PaidTicket struct {
	TicketID string `json:"ticket_id"`
	SeatID   uint   `json:"seat_id"`
	Token    string `json:"token"`
}
