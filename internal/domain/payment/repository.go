package payment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// PaymentRepository defines the persistence contract for payment records.
// Records are never deleted.
type PaymentRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*PaymentRecord, error)
	FindByReference(ctx context.Context, reference string) (*PaymentRecord, error)

	// FindByBookingID returns every record for the booking, oldest first.
	FindByBookingID(ctx context.Context, bookingID uuid.UUID) ([]*PaymentRecord, error)

	// FindByStatus lists records by method and status, oldest first.
	FindByStatus(ctx context.Context, method Method, status PaymentStatus, page, limit int) ([]*PaymentRecord, int64, error)

	// FindStaleProcessing returns processing records created before cutoff.
	FindStaleProcessing(ctx context.Context, cutoff time.Time, limit int) ([]*PaymentRecord, error)

	Save(ctx context.Context, record *PaymentRecord) error

	// Update persists changes with optimistic locking on the version read.
	Update(ctx context.Context, record *PaymentRecord) error
}
