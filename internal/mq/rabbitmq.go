package mq

import (
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// InitQueues declares every queue the service uses. paymentDeadline is the
// TTL of the payment expiry delay queue.
func InitQueues(mqConn *amqp.Connection, paymentDeadline time.Duration) error {
	ch, err := NewChannel(mqConn)
	if err != nil {
		return err
	}
	defer ch.Close()

	// setup all needed queues(list in constants)
	if err := SetupDelayQueue(ch, PaymentExpiryDelayQueue, PaymentExpiryExchange,
		PaymentExpiryQueue, PaymentExpiryRoutingKey, paymentDeadline); err != nil {
		return err
	}
	if err := SetupImmediateQueue(ch, OrderPaidQueue); err != nil {
		return err
	}

	return nil
}

func NewMQConn(url string) (*amqp.Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func NewChannel(conn *amqp.Connection) (*amqp.Channel, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func SetupImmediateQueue(ch *amqp.Channel, immediateQueueName string) error {
	_, err := ch.QueueDeclare(immediateQueueName, true, false, false, false, nil)
	return err
}

// the delay queue consists three part: delay queue, timeout exchange, timeout queue
// produce to the delay queue, and consume from the timeout queue
func SetupDelayQueue(ch *amqp.Channel, delayQueueName, timeoutExchangeName, timeoutQueueName, timeoutRoutingKey string, ttl time.Duration) error {
	delayArgs := amqp.Table{
		"x-message-ttl":             int32(ttl.Milliseconds()),
		"x-dead-letter-exchange":    timeoutExchangeName,
		"x-dead-letter-routing-key": timeoutRoutingKey,
	}

	if _, err := ch.QueueDeclare(
		delayQueueName, true, false, false, false, delayArgs); err != nil {
		return err
	}

	if err := ch.ExchangeDeclare(timeoutExchangeName, "direct", true, false, false, false, nil); err != nil {
		return err
	}

	if _, err := ch.QueueDeclare(timeoutQueueName, true, false, false, false, nil); err != nil {
		return err
	}

	return ch.QueueBind(timeoutQueueName, timeoutRoutingKey, timeoutExchangeName, false, nil)
}
