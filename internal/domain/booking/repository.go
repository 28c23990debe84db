package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ListFilter narrows an admin booking listing.
type ListFilter struct {
	Domain *Domain
	Status *BookingStatus
	From   *time.Time
	To     *time.Time
	Query  string
	Page   int
	Limit  int
}

// BookingRepository defines the persistence contract for booking aggregates.
// Every lookup is scoped to one domain partition except FindByID and Stats.
type BookingRepository interface {
	// FindByID retrieves a booking by its unique identifier.
	FindByID(ctx context.Context, id uuid.UUID) (*Booking, error)

	// FindByReference retrieves a booking by reference within its domain.
	FindByReference(ctx context.Context, d Domain, reference string) (*Booking, error)

	// List retrieves bookings matching the filter, newest first.
	List(ctx context.Context, filter ListFilter) ([]*Booking, int64, error)

	// CountByDomainAndStatus returns booking counts keyed by domain then status.
	CountByDomainAndStatus(ctx context.Context) (map[Domain]map[BookingStatus]int64, error)

	// Save persists a new booking. Returns ErrDuplicateReference on a reference collision.
	Save(ctx context.Context, booking *Booking) error

	// Update persists changes with optimistic locking on the version read.
	Update(ctx context.Context, booking *Booking) error

	// Delete physically removes a booking.
	Delete(ctx context.Context, id uuid.UUID) error
}
