// Package queue_publisher provides functions to publish domain events to
// RabbitMQ.  Errors are logged and returned so callers can ignore failures
// without interrupting the main request flow: event delivery is best effort
// and never gates a booking transition.
package queue_publisher

import (
	"context"
	"encoding/json"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	q "github.com/iliyamo/cinema-ticket-booking/internal/queue"
)

// Publisher publishes booking lifecycle events.  It satisfies the
// lifecycle manager's Events interface.  Each publish dials the broker,
// declares the durable queue (idempotent) and sends one persistent
// message; connections are not pooled since transitions are low volume.
type Publisher struct {
	url string
}

// NewPublisher builds a Publisher for the broker URL resolved from the
// environment.
func NewPublisher() *Publisher {
	return &Publisher{url: q.BrokerURL()}
}

// BookingConfirmed publishes a BookingConfirmedEvent to booking.confirmed.
func (p *Publisher) BookingConfirmed(ctx context.Context, ev q.BookingConfirmedEvent) {
	if err := p.publish(ctx, "booking.confirmed", ev); err != nil {
		log.Printf("rabbitmq: publish booking.confirmed booking=%d: %v", ev.BookingID, err)
	}
}

// BookingRefunded publishes a BookingRefundedEvent to booking.refunded.
func (p *Publisher) BookingRefunded(ctx context.Context, ev q.BookingRefundedEvent) {
	if err := p.publish(ctx, "booking.refunded", ev); err != nil {
		log.Printf("rabbitmq: publish booking.refunded booking=%d: %v", ev.BookingID, err)
	}
}

// publish sends one JSON message to the named durable queue via the
// default exchange.
func (p *Publisher) publish(ctx context.Context, queue string, event interface{}) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	// Ensure the queue exists (idempotent).  Durable so messages survive
	// broker restarts.
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	return ch.PublishWithContext(ctx, "", queue, false, false, pub)
}
