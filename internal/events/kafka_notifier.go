package events

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rechargetravels/service-booking/internal/application"
	"github.com/rechargetravels/service-booking/pkg/kafka"
)

type eventPublisher interface {
	PublishEvent(ctx context.Context, topic string, event kafka.CloudEvent) error
}

// KafkaNotifier publishes lifecycle notifications as CloudEvents. Booking
// events go to booking.events, payment events to payment.events; both are
// keyed by booking so a booking's history stays ordered.
type KafkaNotifier struct {
	publisher eventPublisher
	logger    *zap.Logger
}

// NewKafkaNotifier creates a new KafkaNotifier.
func NewKafkaNotifier(publisher eventPublisher, logger *zap.Logger) *KafkaNotifier {
	return &KafkaNotifier{publisher: publisher, logger: logger}
}

// Notify implements application.Notifier.
func (n *KafkaNotifier) Notify(ctx context.Context, note application.Notification) error {
	event, err := toCloudEvent(note)
	if err != nil {
		return err
	}

	topic := TopicBookingEvents
	if note.IsPaymentEvent() {
		topic = TopicPaymentEvents
	}
	if err := n.publisher.PublishEvent(ctx, topic, event); err != nil {
		return fmt.Errorf("failed to publish %s: %w", note.Type, err)
	}
	return nil
}

func toCloudEvent(note application.Notification) (kafka.CloudEvent, error) {
	event, err := kafka.NewCloudEvent(EventSource, note.Type, note)
	if err != nil {
		return kafka.CloudEvent{}, err
	}
	event.Subject = note.Key()
	return event, nil
}
