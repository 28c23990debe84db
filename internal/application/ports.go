package application

import (
	"context"

	"github.com/google/uuid"

	bookingDomain "github.com/rechargetravels/service-booking/internal/domain/booking"
	paymentDomain "github.com/rechargetravels/service-booking/internal/domain/payment"
)

// Transactor runs fn inside a single database transaction.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Notifier dispatches lifecycle notifications. Delivery is best effort.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// IdentityResolver maps a booking contact to a customer identity.
type IdentityResolver interface {
	Resolve(ctx context.Context, contact bookingDomain.Contact) (uuid.UUID, error)
}

// CheckoutGateway builds the hosted-checkout redirect for a gateway payment.
type CheckoutGateway interface {
	Checkout(ctx context.Context, rec *paymentDomain.PaymentRecord, bk *bookingDomain.Booking) (*paymentDomain.Redirect, error)
}
