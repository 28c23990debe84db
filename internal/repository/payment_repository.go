package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	paymentDomain "github.com/rechargetravels/service-booking/internal/domain/payment"
	"github.com/rechargetravels/service-booking/pkg/domain"
)

// PaymentModel is the GORM model for the payments table.
type PaymentModel struct {
	ID            uuid.UUID                                    `gorm:"type:uuid;primaryKey"`
	BookingID     uuid.UUID                                    `gorm:"type:uuid;not null;index"`
	Reference     string                                       `gorm:"not null;size:32;uniqueIndex"`
	Method        string                                       `gorm:"not null;size:20;index:idx_payments_method_status,priority:1"`
	PaymentType   string                                       `gorm:"not null;size:10"`
	Status        string                                       `gorm:"not null;size:20;index:idx_payments_method_status,priority:2"`
	Amount        decimal.Decimal                              `gorm:"type:numeric(14,2);not null"`
	Currency      string                                       `gorm:"not null;size:3"`
	PlatformFee   decimal.Decimal                              `gorm:"type:numeric(14,2);not null"`
	OwnerPayout   decimal.Decimal                              `gorm:"type:numeric(14,2);not null"`
	MethodFields  datatypes.JSONType[paymentDomain.MethodFields] `gorm:"type:jsonb;not null"`
	FailureReason string                                       `gorm:"size:500"`
	SettledAt     *time.Time

	RefundStatus        string              `gorm:"size:20;index"`
	RefundAmount        decimal.NullDecimal `gorm:"type:numeric(14,2)"`
	RefundReason        string              `gorm:"size:500"`
	RefundRequestedAt   *time.Time
	RefundProcessedAt   *time.Time
	RefundTransactionID string `gorm:"size:100"`

	Version   int64     `gorm:"not null;default:1"`
	CreatedAt time.Time `gorm:"not null;index"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (PaymentModel) TableName() string {
	return "payments"
}

// GormPaymentRepository is the GORM-based implementation of PaymentRepository.
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a new GormPaymentRepository.
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

func (r *GormPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*paymentDomain.PaymentRecord, error) {
	var model PaymentModel
	if err := conn(ctx, r.db).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Payment", id.String())
		}
		return nil, fmt.Errorf("failed to find payment by ID: %w", err)
	}
	return toDomainPayment(&model)
}

func (r *GormPaymentRepository) FindByReference(ctx context.Context, reference string) (*paymentDomain.PaymentRecord, error) {
	var model PaymentModel
	if err := conn(ctx, r.db).Where("reference = ?", reference).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Payment", reference)
		}
		return nil, fmt.Errorf("failed to find payment by reference: %w", err)
	}
	return toDomainPayment(&model)
}

// FindByBookingID returns every record for the booking, oldest first.
func (r *GormPaymentRepository) FindByBookingID(ctx context.Context, bookingID uuid.UUID) ([]*paymentDomain.PaymentRecord, error) {
	var models []PaymentModel
	if err := conn(ctx, r.db).
		Where("booking_id = ?", bookingID).
		Order("created_at ASC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to find booking payments: %w", err)
	}
	return toDomainPayments(models)
}

// FindByStatus lists records by method and status, oldest first.
func (r *GormPaymentRepository) FindByStatus(ctx context.Context, method paymentDomain.Method, status paymentDomain.PaymentStatus, page, limit int) ([]*paymentDomain.PaymentRecord, int64, error) {
	scope := func(q *gorm.DB) *gorm.DB {
		return q.Where("method = ? AND status = ?", string(method), string(status))
	}

	var total int64
	if err := scope(conn(ctx, r.db).Model(&PaymentModel{})).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count payments: %w", err)
	}

	var models []PaymentModel
	if err := scope(conn(ctx, r.db)).
		Order("created_at ASC").
		Offset(offset(page, limit)).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list payments: %w", err)
	}

	records, err := toDomainPayments(models)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// FindStaleProcessing returns processing records created before cutoff.
func (r *GormPaymentRepository) FindStaleProcessing(ctx context.Context, cutoff time.Time, limit int) ([]*paymentDomain.PaymentRecord, error) {
	var models []PaymentModel
	if err := conn(ctx, r.db).
		Where("status = ? AND created_at < ?", string(paymentDomain.StatusProcessing), cutoff.UTC()).
		Order("created_at ASC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to find stale payments: %w", err)
	}
	return toDomainPayments(models)
}

func (r *GormPaymentRepository) Save(ctx context.Context, rec *paymentDomain.PaymentRecord) error {
	model := toPaymentModel(rec)
	if err := conn(ctx, r.db).Create(model).Error; err != nil {
		if isDuplicateKey(err) {
			return domain.NewConflictError("payment reference already exists")
		}
		return fmt.Errorf("failed to save payment: %w", err)
	}
	return nil
}

// Update persists changes with optimistic locking on the version read.
func (r *GormPaymentRepository) Update(ctx context.Context, rec *paymentDomain.PaymentRecord) error {
	model := toPaymentModel(rec)

	expectedVersion := rec.Version() - 1
	result := conn(ctx, r.db).
		Model(&PaymentModel{}).
		Where("id = ? AND version = ?", model.ID, expectedVersion).
		Updates(map[string]interface{}{
			"status":                model.Status,
			"method_fields":         model.MethodFields,
			"failure_reason":        model.FailureReason,
			"settled_at":            model.SettledAt,
			"refund_status":         model.RefundStatus,
			"refund_amount":         model.RefundAmount,
			"refund_reason":         model.RefundReason,
			"refund_requested_at":   model.RefundRequestedAt,
			"refund_processed_at":   model.RefundProcessedAt,
			"refund_transaction_id": model.RefundTransactionID,
			"version":               model.Version,
			"updated_at":            model.UpdatedAt,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update payment: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewConflictError("payment was modified by another transaction")
	}
	return nil
}

// --- Conversion Helpers ---

func toPaymentModel(p *paymentDomain.PaymentRecord) *PaymentModel {
	m := &PaymentModel{
		ID:            p.ID(),
		BookingID:     p.BookingID(),
		Reference:     p.Reference(),
		Method:        string(p.Method()),
		PaymentType:   string(p.PaymentType()),
		Status:        string(p.Status()),
		Amount:        p.Amount(),
		Currency:      p.Currency(),
		PlatformFee:   p.PlatformFee(),
		OwnerPayout:   p.OwnerPayout(),
		MethodFields:  datatypes.NewJSONType(p.MethodFields()),
		FailureReason: p.FailureReason(),
		SettledAt:     p.SettledAt(),
		Version:       p.Version(),
		CreatedAt:     p.CreatedAt(),
		UpdatedAt:     p.UpdatedAt(),
	}
	if rf := p.Obligation(); rf != nil {
		requestedAt := rf.RequestedAt
		m.RefundStatus = rf.Status
		m.RefundAmount = decimal.NewNullDecimal(rf.Amount)
		m.RefundReason = rf.Reason
		m.RefundRequestedAt = &requestedAt
		m.RefundProcessedAt = rf.ProcessedAt
		m.RefundTransactionID = rf.TransactionID
	}
	return m
}

func toDomainPayment(m *PaymentModel) (*paymentDomain.PaymentRecord, error) {
	method, err := paymentDomain.ParseMethod(m.Method)
	if err != nil {
		return nil, err
	}
	paymentType, err := paymentDomain.ParsePaymentType(m.PaymentType)
	if err != nil {
		return nil, err
	}
	status, err := paymentDomain.ParsePaymentStatus(m.Status)
	if err != nil {
		return nil, err
	}

	var refund *paymentDomain.RefundObligation
	if m.RefundStatus != "" {
		refund = &paymentDomain.RefundObligation{
			Status:        m.RefundStatus,
			Amount:        m.RefundAmount.Decimal,
			Reason:        m.RefundReason,
			ProcessedAt:   m.RefundProcessedAt,
			TransactionID: m.RefundTransactionID,
		}
		if m.RefundRequestedAt != nil {
			refund.RequestedAt = *m.RefundRequestedAt
		}
	}

	return paymentDomain.ReconstructPaymentRecord(
		m.ID,
		m.BookingID,
		m.Reference,
		method,
		paymentType,
		status,
		m.Amount,
		m.Currency,
		m.PlatformFee,
		m.OwnerPayout,
		m.MethodFields.Data(),
		m.FailureReason,
		m.SettledAt,
		refund,
		m.Version,
		m.CreatedAt,
		m.UpdatedAt,
	), nil
}

func toDomainPayments(models []PaymentModel) ([]*paymentDomain.PaymentRecord, error) {
	records := make([]*paymentDomain.PaymentRecord, len(models))
	for i := range models {
		rec, err := toDomainPayment(&models[i])
		if err != nil {
			return nil, err
		}
		records[i] = rec
	}
	return records, nil
}
