package events

import (
	"context"
	"errors"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/rechargetravels/service-booking/internal/application"
	"github.com/rechargetravels/service-booking/internal/gateway"
	"github.com/rechargetravels/service-booking/pkg/domain"
	"github.com/rechargetravels/service-booking/pkg/kafka"
)

type callbackApplier interface {
	ApplyGatewayCallback(ctx context.Context, cb application.GatewayCallback) (*application.PaymentDTO, error)
}

type notificationVerifier interface {
	Verify(n gateway.Notification) error
}

// GatewayCallbackConsumer applies gateway notifications relayed onto the
// payment.gateway.callbacks topic, for deployments where the gateway posts to
// an edge function instead of this service.
type GatewayCallbackConsumer struct {
	consumer *kafka.Consumer
	verifier notificationVerifier
	service  callbackApplier
	logger   *zap.Logger
}

// NewGatewayCallbackConsumer creates a new GatewayCallbackConsumer.
func NewGatewayCallbackConsumer(
	brokers []string,
	groupID string,
	verifier notificationVerifier,
	service callbackApplier,
	logger *zap.Logger,
) *GatewayCallbackConsumer {
	return &GatewayCallbackConsumer{
		consumer: kafka.NewConsumer(brokers, groupID, TopicGatewayCallbacks, logger),
		verifier: verifier,
		service:  service,
		logger:   logger,
	}
}

// Start begins consuming. This blocks until the context is cancelled.
func (c *GatewayCallbackConsumer) Start(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.handleMessage)
}

// Close closes the underlying Kafka consumer.
func (c *GatewayCallbackConsumer) Close() error {
	return c.consumer.Close()
}

func (c *GatewayCallbackConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	event, err := kafka.ParseCloudEvent(msg.Value)
	if err != nil {
		c.logger.Error("failed to parse cloud event from callback topic",
			zap.Error(err),
			zap.String("raw", string(msg.Value)),
		)
		return nil // Don't retry malformed messages
	}
	if event.Type != GatewayNotificationType {
		c.logger.Debug("ignoring unhandled callback event type", zap.String("type", event.Type))
		return nil
	}

	var n gateway.Notification
	if err := event.ParseData(&n); err != nil {
		c.logger.Error("failed to parse gateway notification", zap.Error(err))
		return nil
	}
	if err := c.verifier.Verify(n); err != nil {
		c.logger.Warn("rejected gateway notification",
			zap.String("order_id", n.OrderID),
			zap.Error(err),
		)
		return nil
	}
	cb, err := n.Callback()
	if err != nil {
		c.logger.Warn("unusable gateway notification",
			zap.String("order_id", n.OrderID),
			zap.Error(err),
		)
		return nil
	}

	rec, err := c.service.ApplyGatewayCallback(ctx, cb)
	if err != nil {
		var de *domain.DomainError
		if errors.As(err, &de) && !domain.IsConflict(err) {
			// redelivery cannot change a business rejection
			c.logger.Warn("gateway callback rejected",
				zap.String("order_id", n.OrderID),
				zap.String("code", string(de.Code)),
				zap.Error(err),
			)
			return nil
		}
		return err
	}

	c.logger.Info("gateway callback applied",
		zap.String("order_id", n.OrderID),
		zap.String("payment_id", rec.ID.String()),
		zap.String("status", rec.Status),
	)
	return nil
}
