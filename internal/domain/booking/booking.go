package booking

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rechargetravels/service-booking/pkg/domain"
)

// Booking is the aggregate root for the booking domain.
type Booking struct {
	id         uuid.UUID
	domain     Domain
	reference  string
	status     BookingStatus
	customerID *uuid.UUID
	contact    Contact
	payload    Payload

	amountDue decimal.Decimal
	currency  string
	notes     string

	confirmedAt  *time.Time
	startedAt    *time.Time
	completedAt  *time.Time
	cancelledAt  *time.Time
	cancelReason string

	version   int64
	createdAt time.Time
	updatedAt time.Time
}

// NewBooking creates a new Booking aggregate with status=pending and a freshly
// generated reference.
func NewBooking(
	d Domain,
	contact Contact,
	payload Payload,
	amountDue decimal.Decimal,
	currency string,
	notes string,
) (*Booking, error) {
	if !d.IsValid() {
		return nil, domain.NewValidationError("invalid booking domain: " + string(d))
	}
	contact = contact.Normalize()
	if err := contact.Validate(); err != nil {
		return nil, err
	}
	if err := payload.ValidateFor(d); err != nil {
		return nil, err
	}
	if !amountDue.IsPositive() {
		return nil, domain.NewValidationError("amount due must be positive")
	}
	if currency == "" {
		return nil, domain.NewValidationError("currency is required")
	}

	reference, err := GenerateReference(d.Prefix())
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &Booking{
		id:        uuid.New(),
		domain:    d,
		reference: reference,
		status:    StatusPending,
		contact:   contact,
		payload:   payload.Clone(),
		amountDue: amountDue.Round(2),
		currency:  currency,
		notes:     notes,
		version:   1,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// ReconstructBooking rebuilds a Booking from persistence data (no validation).
func ReconstructBooking(
	id uuid.UUID,
	d Domain,
	reference string,
	status BookingStatus,
	customerID *uuid.UUID,
	contact Contact,
	payload Payload,
	amountDue decimal.Decimal,
	currency string,
	notes string,
	confirmedAt *time.Time,
	startedAt *time.Time,
	completedAt *time.Time,
	cancelledAt *time.Time,
	cancelReason string,
	version int64,
	createdAt time.Time,
	updatedAt time.Time,
) *Booking {
	return &Booking{
		id:           id,
		domain:       d,
		reference:    reference,
		status:       status,
		customerID:   customerID,
		contact:      contact,
		payload:      payload,
		amountDue:    amountDue,
		currency:     currency,
		notes:        notes,
		confirmedAt:  confirmedAt,
		startedAt:    startedAt,
		completedAt:  completedAt,
		cancelledAt:  cancelledAt,
		cancelReason: cancelReason,
		version:      version,
		createdAt:    createdAt,
		updatedAt:    updatedAt,
	}
}

// --- Getters ---

func (b *Booking) ID() uuid.UUID              { return b.id }
func (b *Booking) Domain() Domain             { return b.domain }
func (b *Booking) Reference() string          { return b.reference }
func (b *Booking) Status() BookingStatus      { return b.status }
func (b *Booking) CustomerID() *uuid.UUID     { return b.customerID }
func (b *Booking) Contact() Contact           { return b.contact }
func (b *Booking) Payload() Payload           { return b.payload }
func (b *Booking) AmountDue() decimal.Decimal { return b.amountDue }
func (b *Booking) Currency() string           { return b.currency }
func (b *Booking) Notes() string              { return b.notes }
func (b *Booking) ConfirmedAt() *time.Time    { return b.confirmedAt }
func (b *Booking) StartedAt() *time.Time      { return b.startedAt }
func (b *Booking) CompletedAt() *time.Time    { return b.completedAt }
func (b *Booking) CancelledAt() *time.Time    { return b.cancelledAt }
func (b *Booking) CancelReason() string       { return b.cancelReason }

// Version returns the entity version for optimistic locking.
func (b *Booking) Version() int64       { return b.version }
func (b *Booking) CreatedAt() time.Time { return b.createdAt }
func (b *Booking) UpdatedAt() time.Time { return b.updatedAt }

// --- Behavior ---

// AttachCustomer links the booking to a resolved customer identity.
func (b *Booking) AttachCustomer(customerID uuid.UUID) {
	b.customerID = &customerID
}

// Confirm transitions the booking from pending to confirmed.
func (b *Booking) Confirm() error {
	if err := b.guard(StatusConfirmed); err != nil {
		return err
	}
	now := time.Now().UTC()
	b.status = StatusConfirmed
	b.confirmedAt = &now
	b.updatedAt = now
	return nil
}

// Start transitions the booking from confirmed to in-progress.
func (b *Booking) Start() error {
	if err := b.guard(StatusInProgress); err != nil {
		return err
	}
	now := time.Now().UTC()
	b.status = StatusInProgress
	b.startedAt = &now
	b.updatedAt = now
	return nil
}

// Complete transitions the booking from in-progress to completed.
func (b *Booking) Complete() error {
	if err := b.guard(StatusCompleted); err != nil {
		return err
	}
	now := time.Now().UTC()
	b.status = StatusCompleted
	b.completedAt = &now
	b.updatedAt = now
	return nil
}

// Cancel transitions the booking to cancelled from pending or confirmed.
func (b *Booking) Cancel(reason string) error {
	if err := b.guard(StatusCancelled); err != nil {
		return err
	}
	now := time.Now().UTC()
	b.status = StatusCancelled
	b.cancelReason = reason
	b.cancelledAt = &now
	b.updatedAt = now
	return nil
}

// TransitionTo applies the named target status through the same guarded
// methods used by the lifecycle operations.
func (b *Booking) TransitionTo(target BookingStatus, reason string) error {
	switch target {
	case StatusConfirmed:
		return b.Confirm()
	case StatusInProgress:
		return b.Start()
	case StatusCompleted:
		return b.Complete()
	case StatusCancelled:
		return b.Cancel(reason)
	default:
		return domain.NewInvalidTransitionError("booking", string(b.status), string(target))
	}
}

// IncrementVersion bumps the version for optimistic locking.
func (b *Booking) IncrementVersion() {
	b.version++
	b.updatedAt = time.Now().UTC()
}

func (b *Booking) guard(target BookingStatus) error {
	if !b.status.CanTransitionTo(target) {
		return domain.NewInvalidTransitionError("booking", string(b.status), string(target))
	}
	return nil
}
