package proof

import (
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// Kind is the type of proof-of-payment artifact.
type Kind string

const (
	KindBankSlip      Kind = "bank_slip"
	KindTransferNote  Kind = "transfer_confirmation"
	KindPickupReceipt Kind = "pickup_receipt"
)

// IsValid returns true if the kind is recognized.
func (k Kind) IsValid() bool {
	return k == KindBankSlip || k == KindTransferNote || k == KindPickupReceipt
}

// Artifact is a pointer to an uploaded proof of payment.
type Artifact struct {
	id         uuid.UUID
	paymentID  uuid.UUID
	bookingID  uuid.UUID
	kind       Kind
	url        string
	note       string
	uploadedAt time.Time
}

// NewArtifact creates a proof artifact. The URL must be absolute.
func NewArtifact(paymentID, bookingID uuid.UUID, kind Kind, rawURL, note string) (*Artifact, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("invalid proof kind: %s", kind)
	}
	if rawURL == "" {
		return nil, fmt.Errorf("proof URL is required")
	}
	if u, err := url.Parse(rawURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("proof URL must be absolute: %s", rawURL)
	}

	return &Artifact{
		id:         uuid.New(),
		paymentID:  paymentID,
		bookingID:  bookingID,
		kind:       kind,
		url:        rawURL,
		note:       note,
		uploadedAt: time.Now().UTC(),
	}, nil
}

// Reconstruct rebuilds an Artifact from persistence.
func Reconstruct(id, paymentID, bookingID uuid.UUID, kind Kind, rawURL, note string, uploadedAt time.Time) *Artifact {
	return &Artifact{
		id:         id,
		paymentID:  paymentID,
		bookingID:  bookingID,
		kind:       kind,
		url:        rawURL,
		note:       note,
		uploadedAt: uploadedAt,
	}
}

// Getters.
func (a *Artifact) ID() uuid.UUID         { return a.id }
func (a *Artifact) PaymentID() uuid.UUID  { return a.paymentID }
func (a *Artifact) BookingID() uuid.UUID  { return a.bookingID }
func (a *Artifact) Kind() Kind            { return a.kind }
func (a *Artifact) URL() string           { return a.url }
func (a *Artifact) Note() string          { return a.note }
func (a *Artifact) UploadedAt() time.Time { return a.uploadedAt }
