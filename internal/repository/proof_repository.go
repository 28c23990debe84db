package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	proofDomain "github.com/rechargetravels/service-booking/internal/domain/proof"
)

// ProofModel is the GORM model for the payment_proofs table.
type ProofModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	PaymentID  uuid.UUID `gorm:"type:uuid;not null;index"`
	BookingID  uuid.UUID `gorm:"type:uuid;not null;index"`
	Kind       string    `gorm:"type:varchar(30);not null"`
	URL        string    `gorm:"type:text;not null"`
	Note       string    `gorm:"type:text"`
	UploadedAt time.Time `gorm:"not null"`
}

// TableName sets the table name.
func (ProofModel) TableName() string { return "payment_proofs" }

// GormProofRepository implements proof.Repository using GORM.
type GormProofRepository struct {
	db *gorm.DB
}

// NewGormProofRepository creates a new GormProofRepository.
func NewGormProofRepository(db *gorm.DB) *GormProofRepository {
	return &GormProofRepository{db: db}
}

// Save persists a new proof artifact.
func (r *GormProofRepository) Save(ctx context.Context, a *proofDomain.Artifact) error {
	model := ProofModel{
		ID:         a.ID(),
		PaymentID:  a.PaymentID(),
		BookingID:  a.BookingID(),
		Kind:       string(a.Kind()),
		URL:        a.URL(),
		Note:       a.Note(),
		UploadedAt: a.UploadedAt(),
	}
	if err := conn(ctx, r.db).Create(&model).Error; err != nil {
		return fmt.Errorf("failed to save proof: %w", err)
	}
	return nil
}

// FindByPaymentID returns all proofs for a payment in upload order.
func (r *GormProofRepository) FindByPaymentID(ctx context.Context, paymentID uuid.UUID) ([]*proofDomain.Artifact, error) {
	var models []ProofModel
	if err := conn(ctx, r.db).Where("payment_id = ?", paymentID).Order("uploaded_at ASC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to find proofs: %w", err)
	}

	artifacts := make([]*proofDomain.Artifact, len(models))
	for i, m := range models {
		artifacts[i] = proofDomain.Reconstruct(m.ID, m.PaymentID, m.BookingID, proofDomain.Kind(m.Kind), m.URL, m.Note, m.UploadedAt)
	}
	return artifacts, nil
}
