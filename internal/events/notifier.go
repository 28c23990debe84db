package events

import (
	"go.uber.org/zap"

	"github.com/rechargetravels/service-booking/internal/application"
	"github.com/rechargetravels/service-booking/internal/config"
	"github.com/rechargetravels/service-booking/pkg/kafka"
)

// NewNotifier builds the notifier for the configured transport. The returned
// func releases the transport's connections.
func NewNotifier(cfg *config.ServiceConfig, logger *zap.Logger) (application.Notifier, func(), error) {
	switch cfg.NotifyTransport {
	case config.TransportKafka:
		producer := kafka.NewProducer(cfg.KafkaConfig.Brokers, logger)
		return NewKafkaNotifier(producer, logger), func() { _ = producer.Close() }, nil
	case config.TransportRabbitMQ:
		n, err := NewAMQPNotifier(cfg.RabbitMQConfig.URL, cfg.RabbitMQConfig.Exchange, logger)
		if err != nil {
			return nil, nil, err
		}
		return n, func() { _ = n.Close() }, nil
	default:
		return NewNoopNotifier(logger), func() {}, nil
	}
}
