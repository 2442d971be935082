package notify

import (
	"context"
	"encoding/json"
	"fmt"

	interfaces "studio-booking/internal/interfaces/infrastructure"
	"studio-booking/pkg/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	ExchangeName = "bookings"
	ExchangeKind = "topic"
)

// AMQPPublisher delivers notifications to a RabbitMQ topic exchange.
// Routing keys follow the job type: booking.confirmed, booking.waitlisted,
// booking.canceled, waitlist.promoted.
type AMQPPublisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

func NewAMQPPublisher(url string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}

	if err := ch.ExchangeDeclare(ExchangeName, ExchangeKind, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("rabbitmq exchange declare: %w", err)
	}

	return &AMQPPublisher{conn: conn, channel: ch}, nil
}

func (p *AMQPPublisher) Send(ctx context.Context, job interfaces.NotificationJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	key := routingKey(job.Type)
	if err := p.channel.PublishWithContext(
		ctx,
		ExchangeName,
		key,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}

	logger.Debug("Published notification to %s/%s for booking %s", ExchangeName, key, job.BookingID)
	return nil
}

func (p *AMQPPublisher) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}

func routingKey(t interfaces.NotificationType) string {
	switch t {
	case interfaces.NotifyBookingConfirmed:
		return "booking.confirmed"
	case interfaces.NotifyBookingWaitlisted:
		return "booking.waitlisted"
	case interfaces.NotifyBookingCanceled:
		return "booking.canceled"
	case interfaces.NotifyWaitlistPromoted:
		return "waitlist.promoted"
	default:
		return "booking.event"
	}
}

var _ interfaces.NotificationSender = (*AMQPPublisher)(nil)
