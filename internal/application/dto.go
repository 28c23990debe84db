package application

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	bookingDomain "github.com/rechargetravels/service-booking/internal/domain/booking"
	paymentDomain "github.com/rechargetravels/service-booking/internal/domain/payment"
	proofDomain "github.com/rechargetravels/service-booking/internal/domain/proof"
)

// ContactDTO is the customer contact as submitted and returned by the API.
type ContactDTO struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required"`
	Phone string `json:"phone" binding:"required"`
}

// CreateBookingRequest holds the data needed to create a new booking.
type CreateBookingRequest struct {
	Domain    string          `json:"domain" binding:"required"`
	Contact   ContactDTO      `json:"contact" binding:"required"`
	Payload   map[string]any  `json:"payload" binding:"required"`
	AmountDue decimal.Decimal `json:"amount_due"`
	Notes     string          `json:"notes"`
}

// BookingDTO is the response representation of a booking.
type BookingDTO struct {
	ID           uuid.UUID       `json:"id"`
	Domain       string          `json:"domain"`
	Reference    string          `json:"reference"`
	Status       string          `json:"status"`
	CustomerID   *uuid.UUID      `json:"customer_id,omitempty"`
	Contact      ContactDTO      `json:"contact"`
	Payload      map[string]any  `json:"payload"`
	AmountDue    decimal.Decimal `json:"amount_due"`
	Currency     string          `json:"currency"`
	Notes        string          `json:"notes,omitempty"`
	ConfirmedAt  *time.Time      `json:"confirmed_at,omitempty"`
	StartedAt    *time.Time      `json:"started_at,omitempty"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
	CancelledAt  *time.Time      `json:"cancelled_at,omitempty"`
	CancelReason string          `json:"cancel_reason,omitempty"`
	Version      int64           `json:"version"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// BookingDetailDTO is a booking with its payment history and derived payment state.
type BookingDetailDTO struct {
	BookingDTO
	PaymentStatus string       `json:"payment_status,omitempty"`
	AmountSettled string       `json:"amount_settled"`
	Payments      []PaymentDTO `json:"payments"`
}

// ListBookingsQuery filters an admin listing. Empty strings mean "any".
type ListBookingsQuery struct {
	Domain string
	Status string
	From   *time.Time
	To     *time.Time
	Query  string
	Page   int
	Limit  int
}

// UpdateStatusRequest is an admin status override.
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason"`
}

// CancelBookingRequest is a customer cancellation; the e-mail must match the booking contact.
type CancelBookingRequest struct {
	Email  string `json:"email" binding:"required"`
	Reason string `json:"reason"`
}

// BookingStatsDTO holds aggregate booking statistics (admin).
type BookingStatsDTO struct {
	TotalBookings int64                       `json:"total_bookings"`
	ByStatus      map[string]int64            `json:"by_status"`
	ByDomain      map[string]map[string]int64 `json:"by_domain"`
}

// CreatePaymentRequest holds a payment intent for a booking.
type CreatePaymentRequest struct {
	Method        string          `json:"method" binding:"required"`
	PaymentType   string          `json:"payment_type"`
	Amount        decimal.Decimal `json:"amount"`
	BankReference string          `json:"bank_reference"`
	ProofURL      string          `json:"proof_url"`
	PayerName     string          `json:"payer_name"`
	Note          string          `json:"note"`
}

// RefundDTO is the refund obligation attached to a refunded payment.
type RefundDTO struct {
	Status        string          `json:"status"`
	Amount        decimal.Decimal `json:"amount"`
	Reason        string          `json:"reason"`
	RequestedAt   time.Time       `json:"requested_at"`
	ProcessedAt   *time.Time      `json:"processed_at,omitempty"`
	TransactionID string          `json:"transaction_id,omitempty"`
}

// PaymentDTO is the response representation of a payment record.
type PaymentDTO struct {
	ID            uuid.UUID                  `json:"id"`
	BookingID     uuid.UUID                  `json:"booking_id"`
	Reference     string                     `json:"reference"`
	Method        string                     `json:"method"`
	PaymentType   string                     `json:"payment_type"`
	Status        string                     `json:"status"`
	Amount        decimal.Decimal            `json:"amount"`
	Currency      string                     `json:"currency"`
	PlatformFee   decimal.Decimal            `json:"platform_fee"`
	OwnerPayout   decimal.Decimal            `json:"owner_payout"`
	MethodFields  paymentDomain.MethodFields `json:"method_fields"`
	FailureReason string                     `json:"failure_reason,omitempty"`
	SettledAt     *time.Time                 `json:"settled_at,omitempty"`
	Refund        *RefundDTO                 `json:"refund,omitempty"`
	Version       int64                      `json:"version"`
	CreatedAt     time.Time                  `json:"created_at"`
	UpdatedAt     time.Time                  `json:"updated_at"`
}

// BankInstructionsDTO tells the customer where to send a bank transfer.
type BankInstructionsDTO struct {
	BankName          string          `json:"bank_name"`
	AccountName       string          `json:"account_name"`
	AccountNumber     string          `json:"account_number"`
	Branch            string          `json:"branch,omitempty"`
	SwiftCode         string          `json:"swift_code,omitempty"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	TransferReference string          `json:"transfer_reference"`
}

// CreatePaymentResult is the payment record plus the method-specific next step.
type CreatePaymentResult struct {
	Payment          PaymentDTO              `json:"payment"`
	BookingStatus    string                  `json:"booking_status"`
	Redirect         *paymentDomain.Redirect `json:"redirect,omitempty"`
	BankInstructions *BankInstructionsDTO    `json:"bank_instructions,omitempty"`
}

// VerifyBankTransferRequest is an admin decision on a bank transfer.
type VerifyBankTransferRequest struct {
	Approve *bool  `json:"approve" binding:"required"`
	Reason  string `json:"reason"`
}

// CompleteRefundRequest records the payout of a refund obligation.
type CompleteRefundRequest struct {
	TransactionID string `json:"transaction_id" binding:"required"`
}

// ProofDTO is the response representation of a proof artifact.
type ProofDTO struct {
	ID         uuid.UUID `json:"id"`
	PaymentID  uuid.UUID `json:"payment_id"`
	BookingID  uuid.UUID `json:"booking_id"`
	Kind       string    `json:"kind"`
	URL        string    `json:"url"`
	Note       string    `json:"note,omitempty"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// --- Converters ---

func toBookingDTO(bk *bookingDomain.Booking) BookingDTO {
	c := bk.Contact()
	return BookingDTO{
		ID:           bk.ID(),
		Domain:       string(bk.Domain()),
		Reference:    bk.Reference(),
		Status:       string(bk.Status()),
		CustomerID:   bk.CustomerID(),
		Contact:      ContactDTO{Name: c.Name, Email: c.Email, Phone: c.Phone},
		Payload:      bk.Payload(),
		AmountDue:    bk.AmountDue(),
		Currency:     bk.Currency(),
		Notes:        bk.Notes(),
		ConfirmedAt:  bk.ConfirmedAt(),
		StartedAt:    bk.StartedAt(),
		CompletedAt:  bk.CompletedAt(),
		CancelledAt:  bk.CancelledAt(),
		CancelReason: bk.CancelReason(),
		Version:      bk.Version(),
		CreatedAt:    bk.CreatedAt(),
		UpdatedAt:    bk.UpdatedAt(),
	}
}

func toPaymentDTO(p *paymentDomain.PaymentRecord) PaymentDTO {
	dto := PaymentDTO{
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
		MethodFields:  p.MethodFields(),
		FailureReason: p.FailureReason(),
		SettledAt:     p.SettledAt(),
		Version:       p.Version(),
		CreatedAt:     p.CreatedAt(),
		UpdatedAt:     p.UpdatedAt(),
	}
	if rf := p.Obligation(); rf != nil {
		dto.Refund = &RefundDTO{
			Status:        rf.Status,
			Amount:        rf.Amount,
			Reason:        rf.Reason,
			RequestedAt:   rf.RequestedAt,
			ProcessedAt:   rf.ProcessedAt,
			TransactionID: rf.TransactionID,
		}
	}
	return dto
}

func toPaymentDTOs(records []*paymentDomain.PaymentRecord) []PaymentDTO {
	dtos := make([]PaymentDTO, len(records))
	for i, r := range records {
		dtos[i] = toPaymentDTO(r)
	}
	return dtos
}

func toProofDTO(a *proofDomain.Artifact) ProofDTO {
	return ProofDTO{
		ID:         a.ID(),
		PaymentID:  a.PaymentID(),
		BookingID:  a.BookingID(),
		Kind:       string(a.Kind()),
		URL:        a.URL(),
		Note:       a.Note(),
		UploadedAt: a.UploadedAt(),
	}
}
