package proof

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines persistence operations for proof artifacts.
type Repository interface {
	Save(ctx context.Context, artifact *Artifact) error
	FindByPaymentID(ctx context.Context, paymentID uuid.UUID) ([]*Artifact, error)
}
