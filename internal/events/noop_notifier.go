package events

import (
	"context"

	"go.uber.org/zap"

	"github.com/rechargetravels/service-booking/internal/application"
)

// NoopNotifier drops notifications, logging them at debug level.
type NoopNotifier struct {
	logger *zap.Logger
}

func NewNoopNotifier(logger *zap.Logger) *NoopNotifier {
	return &NoopNotifier{logger: logger}
}

func (n *NoopNotifier) Notify(_ context.Context, note application.Notification) error {
	n.logger.Debug("notification dropped",
		zap.String("type", note.Type),
		zap.String("booking_id", note.BookingID.String()),
	)
	return nil
}
