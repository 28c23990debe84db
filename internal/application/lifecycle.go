package application

import (
	"context"
	"fmt"
	"strings"

	bookingDomain "github.com/rechargetravels/service-booking/internal/domain/booking"
	paymentDomain "github.com/rechargetravels/service-booking/internal/domain/payment"
	"github.com/rechargetravels/service-booking/pkg/domain"
)

const refundReasonLateSettlement = "payment settled after booking was cancelled"

// lifecycle holds the state transitions shared by the booking, payment and
// reconciliation services. Every method must run inside a transaction; the
// returned notifications are dispatched by the caller after commit.
type lifecycle struct {
	bookings bookingDomain.BookingRepository
	payments paymentDomain.PaymentRepository
}

func (l *lifecycle) saveBooking(ctx context.Context, bk *bookingDomain.Booking) error {
	bk.IncrementVersion()
	return l.bookings.Update(ctx, bk)
}

func (l *lifecycle) savePayment(ctx context.Context, rec *paymentDomain.PaymentRecord) error {
	rec.IncrementVersion()
	return l.payments.Update(ctx, rec)
}

// confirm moves a pending booking to confirmed. Bookings already past pending
// keep their status but still take a conditional write, so any other decision
// made on the same booking snapshot fails with Conflict.
func (l *lifecycle) confirm(ctx context.Context, bk *bookingDomain.Booking) ([]Notification, error) {
	if bk.Status() != bookingDomain.StatusPending {
		return nil, l.saveBooking(ctx, bk)
	}
	if err := bk.Confirm(); err != nil {
		return nil, err
	}
	if err := l.saveBooking(ctx, bk); err != nil {
		return nil, err
	}
	return []Notification{bookingNotification(EventBookingConfirmed, bk)}, nil
}

// settle marks rec as settled and derives the booking state from it: a
// pending booking is confirmed, a cancelled booking turns the money straight
// into a refund obligation. The booking row is always written, which orders
// settle against a concurrent cancel.
func (l *lifecycle) settle(ctx context.Context, rec *paymentDomain.PaymentRecord, externalTransactionID string) (*bookingDomain.Booking, []Notification, error) {
	bk, err := l.bookings.FindByID(ctx, rec.BookingID())
	if err != nil {
		return nil, nil, err
	}

	if err := rec.MarkSettled(externalTransactionID); err != nil {
		return nil, nil, err
	}
	notes := []Notification{paymentNotification(EventPaymentPaid, rec)}

	if bk.Status() == bookingDomain.StatusCancelled {
		if err := rec.Refund(refundReasonLateSettlement); err != nil {
			return nil, nil, err
		}
		notes = append(notes, paymentNotification(EventPaymentRefunded, rec))
	}
	confirmed, err := l.confirm(ctx, bk)
	if err != nil {
		return nil, nil, err
	}
	if err := l.savePayment(ctx, rec); err != nil {
		return nil, nil, err
	}
	return bk, append(notes, confirmed...), nil
}

// cancel cancels the booking and records a refund obligation for every
// settled payment. Pay-on-pickup promises are failed since nothing will be
// collected; online and bank payments still in flight are left to
// reconciliation, which refunds them if they settle later.
func (l *lifecycle) cancel(ctx context.Context, bk *bookingDomain.Booking, reason string) ([]Notification, error) {
	if err := bk.Cancel(reason); err != nil {
		return nil, err
	}

	records, err := l.payments.FindByBookingID(ctx, bk.ID())
	if err != nil {
		return nil, err
	}
	// The booking write goes first: a settlement that landed after the read
	// above has bumped the version, and the whole cancel is retried.
	if err := l.saveBooking(ctx, bk); err != nil {
		return nil, err
	}

	var notes []Notification
	for _, rec := range records {
		switch {
		case rec.Status().IsSettled():
			if err := rec.Refund(reason); err != nil {
				return nil, err
			}
			notes = append(notes, paymentNotification(EventPaymentRefunded, rec))
		case rec.Method() == paymentDomain.MethodCashOnPickup && rec.Status() == paymentDomain.StatusPending:
			if err := rec.MarkFailed("booking cancelled"); err != nil {
				return nil, err
			}
			notes = append(notes, paymentNotification(EventPaymentFailed, rec))
		default:
			continue
		}
		if err := l.savePayment(ctx, rec); err != nil {
			return nil, fmt.Errorf("failed to record refund for payment %s: %w", rec.ID(), err)
		}
	}
	return append([]Notification{bookingNotification(EventBookingCancelled, bk)}, notes...), nil
}

// canAdminConfirm reports whether an admin may confirm a pending booking: it
// must hold settled money or a pay-on-pickup promise.
func canAdminConfirm(records []*paymentDomain.PaymentRecord) bool {
	for _, rec := range records {
		if rec.Status().IsSettled() {
			return true
		}
		if rec.Method() == paymentDomain.MethodCashOnPickup && rec.Status() == paymentDomain.StatusPending {
			return true
		}
	}
	return false
}

// checkContact guards customer access to a guest booking.
func checkContact(bk *bookingDomain.Booking, email string) error {
	if strings.TrimSpace(email) == "" {
		return domain.NewValidationError("contact email is required")
	}
	if !bk.Contact().Matches(email) {
		return domain.NewForbiddenError("email does not match the booking contact")
	}
	return nil
}

func errConfirmWithoutPayment() error {
	return &domain.DomainError{
		Code:    domain.CodeInvalidTransition,
		Message: "booking has no settled or pay-on-pickup payment",
		Rule:    "pending -> confirmed requires a settled or pay-on-pickup payment",
	}
}

func errPaymentNotAccepted(bk *bookingDomain.Booking) error {
	return &domain.DomainError{
		Code:    domain.CodeInvalidTransition,
		Message: fmt.Sprintf("booking %s is %s and cannot take payments", bk.Reference(), bk.Status()),
		Rule:    "payments are accepted only while a booking is pending or confirmed",
	}
}
