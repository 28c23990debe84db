package payment

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rechargetravels/service-booking/internal/domain/booking"
	"github.com/rechargetravels/service-booking/pkg/domain"
)

// ReferencePrefix prefixes payment references; gateways see it as the order id.
const ReferencePrefix = "PAY"

// Refund obligation states.
const (
	RefundPending   = "pending"
	RefundProcessed = "processed"
)

// RefundObligation records money owed back to the customer after a settled
// payment was refunded.
type RefundObligation struct {
	Status        string          `json:"status"`
	Amount        decimal.Decimal `json:"amount"`
	Reason        string          `json:"reason"`
	RequestedAt   time.Time       `json:"requestedAt"`
	ProcessedAt   *time.Time      `json:"processedAt,omitempty"`
	TransactionID string          `json:"transactionId,omitempty"`
}

// IsPending returns true while the refund has not been paid out.
func (r *RefundObligation) IsPending() bool {
	return r != nil && r.Status == RefundPending
}

// PaymentRecord is the aggregate root for a single payment attempt.
type PaymentRecord struct {
	id           uuid.UUID
	bookingID    uuid.UUID
	reference    string
	method       Method
	paymentType  PaymentType
	status       PaymentStatus
	amount       decimal.Decimal
	currency     string
	platformFee  decimal.Decimal
	ownerPayout  decimal.Decimal
	methodFields MethodFields

	failureReason string
	settledAt     *time.Time
	refund        *RefundObligation

	version   int64
	createdAt time.Time
	updatedAt time.Time
}

// NewPaymentRecord creates a record in the method's initial status.
func NewPaymentRecord(
	bookingID uuid.UUID,
	method Method,
	paymentType PaymentType,
	amount decimal.Decimal,
	currency string,
	split FeeSplit,
	fields MethodFields,
) (*PaymentRecord, error) {
	if bookingID == uuid.Nil {
		return nil, domain.NewValidationError("booking ID is required")
	}
	if !method.IsValid() {
		return nil, domain.NewValidationError("invalid payment method: " + string(method))
	}
	if !paymentType.IsValid() {
		return nil, domain.NewValidationError("invalid payment type: " + string(paymentType))
	}
	if !amount.IsPositive() {
		return nil, domain.NewValidationError("amount must be positive")
	}
	if !split.PlatformFee.Add(split.OwnerPayout).Equal(amount) {
		return nil, domain.NewValidationError("fee split does not add up to the amount")
	}

	reference, err := booking.GenerateReference(ReferencePrefix)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &PaymentRecord{
		id:           uuid.New(),
		bookingID:    bookingID,
		reference:    reference,
		method:       method,
		paymentType:  paymentType,
		status:       method.InitialStatus(),
		amount:       amount,
		currency:     currency,
		platformFee:  split.PlatformFee,
		ownerPayout:  split.OwnerPayout,
		methodFields: fields,
		version:      1,
		createdAt:    now,
		updatedAt:    now,
	}, nil
}

// ReconstructPaymentRecord rebuilds a PaymentRecord from persistence data (no validation).
func ReconstructPaymentRecord(
	id, bookingID uuid.UUID,
	reference string,
	method Method,
	paymentType PaymentType,
	status PaymentStatus,
	amount decimal.Decimal,
	currency string,
	platformFee, ownerPayout decimal.Decimal,
	fields MethodFields,
	failureReason string,
	settledAt *time.Time,
	refund *RefundObligation,
	version int64,
	createdAt, updatedAt time.Time,
) *PaymentRecord {
	return &PaymentRecord{
		id:            id,
		bookingID:     bookingID,
		reference:     reference,
		method:        method,
		paymentType:   paymentType,
		status:        status,
		amount:        amount,
		currency:      currency,
		platformFee:   platformFee,
		ownerPayout:   ownerPayout,
		methodFields:  fields,
		failureReason: failureReason,
		settledAt:     settledAt,
		refund:        refund,
		version:       version,
		createdAt:     createdAt,
		updatedAt:     updatedAt,
	}
}

// --- Getters ---

func (p *PaymentRecord) ID() uuid.UUID                 { return p.id }
func (p *PaymentRecord) BookingID() uuid.UUID          { return p.bookingID }
func (p *PaymentRecord) Reference() string             { return p.reference }
func (p *PaymentRecord) Method() Method                { return p.method }
func (p *PaymentRecord) PaymentType() PaymentType      { return p.paymentType }
func (p *PaymentRecord) Status() PaymentStatus         { return p.status }
func (p *PaymentRecord) Amount() decimal.Decimal       { return p.amount }
func (p *PaymentRecord) Currency() string              { return p.currency }
func (p *PaymentRecord) PlatformFee() decimal.Decimal  { return p.platformFee }
func (p *PaymentRecord) OwnerPayout() decimal.Decimal  { return p.ownerPayout }
func (p *PaymentRecord) MethodFields() MethodFields    { return p.methodFields }
func (p *PaymentRecord) FailureReason() string         { return p.failureReason }
func (p *PaymentRecord) SettledAt() *time.Time         { return p.settledAt }
func (p *PaymentRecord) Obligation() *RefundObligation { return p.refund }
func (p *PaymentRecord) Version() int64                { return p.version }
func (p *PaymentRecord) CreatedAt() time.Time          { return p.createdAt }
func (p *PaymentRecord) UpdatedAt() time.Time          { return p.updatedAt }

// --- Behavior ---

// MarkSettled records a successful payment. Deposits land in deposit_paid,
// everything else in paid.
func (p *PaymentRecord) MarkSettled(externalTransactionID string) error {
	target := p.paymentType.SettledStatus()
	if !p.status.CanTransitionTo(target) {
		return domain.NewInvalidTransitionError("payment", string(p.status), string(target))
	}
	now := time.Now().UTC()
	p.status = target
	p.settledAt = &now
	if externalTransactionID != "" {
		p.methodFields.ExternalTransactionID = externalTransactionID
	}
	p.updatedAt = now
	return nil
}

// MarkFailed records a failed or expired attempt.
func (p *PaymentRecord) MarkFailed(reason string) error {
	if !p.status.CanTransitionTo(StatusFailed) {
		return domain.NewInvalidTransitionError("payment", string(p.status), string(StatusFailed))
	}
	p.status = StatusFailed
	p.failureReason = reason
	p.updatedAt = time.Now().UTC()
	return nil
}

// Refund moves a settled record to refunded and opens a pending refund obligation.
func (p *PaymentRecord) Refund(reason string) error {
	if !p.status.CanTransitionTo(StatusRefunded) {
		return domain.NewInvalidTransitionError("payment", string(p.status), string(StatusRefunded))
	}
	now := time.Now().UTC()
	p.status = StatusRefunded
	p.refund = &RefundObligation{
		Status:      RefundPending,
		Amount:      p.amount,
		Reason:      reason,
		RequestedAt: now,
	}
	p.updatedAt = now
	return nil
}

// CompleteRefund marks the refund obligation as paid out.
func (p *PaymentRecord) CompleteRefund(transactionID string) error {
	if p.refund == nil {
		return domain.NewInvalidTransitionError("refund", "none", RefundProcessed)
	}
	if p.refund.Status == RefundProcessed {
		return domain.NewAlreadyDecidedError("refund already processed")
	}
	now := time.Now().UTC()
	p.refund.Status = RefundProcessed
	p.refund.ProcessedAt = &now
	p.refund.TransactionID = transactionID
	p.updatedAt = now
	return nil
}

// SetMethodFields replaces the method-specific data.
func (p *PaymentRecord) SetMethodFields(fields MethodFields) {
	p.methodFields = fields
	p.updatedAt = time.Now().UTC()
}

// IncrementVersion bumps the version for optimistic locking.
func (p *PaymentRecord) IncrementVersion() {
	p.version++
	p.updatedAt = time.Now().UTC()
}

// Authoritative returns the most recent non-failed record, or nil.
func Authoritative(records []*PaymentRecord) *PaymentRecord {
	sorted := append([]*PaymentRecord(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].createdAt.After(sorted[j].createdAt)
	})
	for _, r := range sorted {
		if r.status != StatusFailed {
			return r
		}
	}
	return nil
}

// HasInFlight reports whether any record still awaits a decision.
func HasInFlight(records []*PaymentRecord) bool {
	for _, r := range records {
		if r.status.IsInFlight() {
			return true
		}
	}
	return false
}
