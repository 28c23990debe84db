package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/rechargetravels/service-booking/internal/application"
)

type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPNotifier publishes lifecycle notifications to a RabbitMQ topic exchange.
// The routing key is the notification type, e.g. payment.refunded.
type AMQPNotifier struct {
	conn     *amqp.Connection
	ch       amqpChannel
	exchange string
	logger   *zap.Logger
}

// NewAMQPNotifier dials RabbitMQ and declares the exchange.
func NewAMQPNotifier(url, exchange string, logger *zap.Logger) (*AMQPNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	logger.Info("rabbitmq notifier ready", zap.String("exchange", exchange))
	return &AMQPNotifier{conn: conn, ch: ch, exchange: exchange, logger: logger}, nil
}

// Notify implements application.Notifier.
func (n *AMQPNotifier) Notify(ctx context.Context, note application.Notification) error {
	event, err := toCloudEvent(note)
	if err != nil {
		return err
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal cloud event: %w", err)
	}

	err = n.ch.PublishWithContext(ctx, n.exchange, note.Type, false, false, amqp.Publishing{
		ContentType:  "application/cloudevents+json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID,
		Type:         event.Type,
		Timestamp:    time.Now().UTC(),
		Headers:      amqp.Table{"subject": event.Subject},
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", note.Type, err)
	}
	return nil
}

// Close closes the channel and connection.
func (n *AMQPNotifier) Close() error {
	if n.ch != nil {
		_ = n.ch.Close()
	}
	if n.conn != nil {
		return n.conn.Close()
	}
	return nil
}
