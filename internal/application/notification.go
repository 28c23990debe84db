package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	bookingDomain "github.com/rechargetravels/service-booking/internal/domain/booking"
	paymentDomain "github.com/rechargetravels/service-booking/internal/domain/payment"
)

// Notification types.
const (
	EventBookingCreated   = "booking.created"
	EventBookingConfirmed = "booking.confirmed"
	EventBookingStarted   = "booking.started"
	EventBookingCompleted = "booking.completed"
	EventBookingCancelled = "booking.cancelled"
	EventBookingPurged    = "booking.purged"

	EventPaymentCreated         = "payment.created"
	EventPaymentPaid            = "payment.paid"
	EventPaymentFailed          = "payment.failed"
	EventPaymentRefunded        = "payment.refunded"
	EventPaymentRefundCompleted = "payment.refund_completed"
)

// Notification is a fact about a booking or payment worth telling the
// outside world about.
type Notification struct {
	Type          string     `json:"type"`
	BookingID     uuid.UUID  `json:"booking_id"`
	Reference     string     `json:"reference,omitempty"`
	Domain        string     `json:"domain,omitempty"`
	BookingStatus string     `json:"booking_status,omitempty"`
	PaymentID     *uuid.UUID `json:"payment_id,omitempty"`
	PaymentStatus string     `json:"payment_status,omitempty"`
	Method        string     `json:"method,omitempty"`
	Amount        string     `json:"amount,omitempty"`
	Currency      string     `json:"currency,omitempty"`
	Email         string     `json:"email,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	OccurredAt    time.Time  `json:"occurred_at"`
}

// IsPaymentEvent reports whether the notification concerns a payment record.
func (n Notification) IsPaymentEvent() bool {
	return n.PaymentID != nil
}

// Key returns the partitioning key: the booking, so one booking's events stay ordered.
func (n Notification) Key() string {
	return n.BookingID.String()
}

func bookingNotification(eventType string, bk *bookingDomain.Booking) Notification {
	return Notification{
		Type:          eventType,
		BookingID:     bk.ID(),
		Reference:     bk.Reference(),
		Domain:        string(bk.Domain()),
		BookingStatus: string(bk.Status()),
		Email:         bk.Contact().Email,
		Reason:        bk.CancelReason(),
		OccurredAt:    time.Now().UTC(),
	}
}

func paymentNotification(eventType string, rec *paymentDomain.PaymentRecord) Notification {
	id := rec.ID()
	n := Notification{
		Type:          eventType,
		BookingID:     rec.BookingID(),
		PaymentID:     &id,
		PaymentStatus: string(rec.Status()),
		Method:        string(rec.Method()),
		Amount:        rec.Amount().StringFixed(2),
		Currency:      rec.Currency(),
		Reason:        rec.FailureReason(),
		OccurredAt:    time.Now().UTC(),
	}
	if rf := rec.Obligation(); rf != nil && eventType != EventPaymentFailed {
		n.Reason = rf.Reason
	}
	return n
}

// dispatch hands notifications to the notifier after the state change has
// committed. Failures are logged and otherwise ignored.
func dispatch(ctx context.Context, notifier Notifier, logger *zap.Logger, notes []Notification) {
	if notifier == nil {
		return
	}
	for _, n := range notes {
		if err := notifier.Notify(ctx, n); err != nil {
			logger.Warn("failed to dispatch notification",
				zap.String("type", n.Type),
				zap.String("booking_id", n.BookingID.String()),
				zap.Error(err),
			)
		}
	}
}
