package queue

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/event-booking/internal/logger"
)

// Publisher sends domain events to RabbitMQ.  It dials per message; the
// volume of confirmations does not warrant a pooled channel.
type Publisher struct {
	url string
}

// NewPublisher returns a Publisher for the broker at url.
func NewPublisher(url string) *Publisher { return &Publisher{url: url} }

// PublishBookingConfirmed publishes ev to the "booking.confirmed" queue.
// Any error is logged and returned so the caller can choose to ignore it.
// Messages are marked as persistent.
func (p *Publisher) PublishBookingConfirmed(ctx context.Context, ev BookingConfirmedEvent) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		logger.Warnf(ctx, "rabbitmq: dial failed: %v", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		logger.Warnf(ctx, "rabbitmq: channel open failed: %v", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	// Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(
		BookingConfirmedQueue, // name
		true,                  // durable
		false,                 // autoDelete
		false,                 // exclusive
		false,                 // noWait
		nil,                   // args
	); err != nil {
		logger.Warnf(ctx, "rabbitmq: queue declare failed: %v", err)
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	pub := amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent, // store on disk
		Timestamp:     time.Now().UTC(),
		CorrelationId: logger.RequestID(ctx),
		Body:          body,
	}
	if err := ch.PublishWithContext(ctx, "", BookingConfirmedQueue, false, false, pub); err != nil {
		logger.Warnf(ctx, "rabbitmq: publish failed: %v", err)
		return err
	}
	logger.Debugf(ctx, "rabbitmq: published booking %d", ev.BookingID)
	return nil
}
