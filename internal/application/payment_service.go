package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	bookingDomain "github.com/rechargetravels/service-booking/internal/domain/booking"
	paymentDomain "github.com/rechargetravels/service-booking/internal/domain/payment"
	proofDomain "github.com/rechargetravels/service-booking/internal/domain/proof"
	"github.com/rechargetravels/service-booking/pkg/domain"
)

// BankAccount is the receiving account quoted in bank transfer instructions.
type BankAccount struct {
	BankName      string
	AccountName   string
	AccountNumber string
	Branch        string
	SwiftCode     string
}

// PaymentPolicy holds the money rules the router applies.
type PaymentPolicy struct {
	Fees            paymentDomain.FeeStrategy
	DepositPercent  decimal.Decimal
	MinimumAmount   decimal.Decimal
	Bank            BankAccount
	ConflictRetries int
}

// PaymentService is the payment method router: it validates payment intents,
// records them with their fee split and returns the method-specific next step.
type PaymentService struct {
	lifecycle
	proofs   proofDomain.Repository
	gateway  CheckoutGateway
	tx       Transactor
	notifier Notifier
	policy   PaymentPolicy
	logger   *zap.Logger
}

// NewPaymentService creates a new PaymentService.
func NewPaymentService(
	bookings bookingDomain.BookingRepository,
	payments paymentDomain.PaymentRepository,
	proofs proofDomain.Repository,
	gateway CheckoutGateway,
	tx Transactor,
	notifier Notifier,
	policy PaymentPolicy,
	logger *zap.Logger,
) *PaymentService {
	return &PaymentService{
		lifecycle: lifecycle{bookings: bookings, payments: payments},
		proofs:    proofs,
		gateway:   gateway,
		tx:        tx,
		notifier:  notifier,
		policy:    policy,
		logger:    logger,
	}
}

// CreatePayment records a payment intent for a booking.
//
//   - gateway: record processing, returns the hosted-checkout redirect
//   - bank_transfer: needs a bank reference and proof, record processing,
//     returns transfer instructions; waits for admin verification
//   - cash_on_pickup: record pending, booking confirmed immediately
func (s *PaymentService) CreatePayment(ctx context.Context, bookingID uuid.UUID, req CreatePaymentRequest) (*CreatePaymentResult, error) {
	ctx, span := tracer.Start(ctx, "PaymentService.CreatePayment")
	defer span.End()

	method, err := paymentDomain.ParseMethod(req.Method)
	if err != nil {
		return nil, domain.NewValidationError(err.Error())
	}
	paymentType, err := paymentDomain.ParsePaymentType(req.PaymentType)
	if err != nil {
		return nil, domain.NewValidationError(err.Error())
	}
	span.SetAttributes(
		attribute.String("payment.method", string(method)),
		attribute.String("payment.type", string(paymentType)),
	)

	fields := paymentDomain.MethodFields{
		BankReference: strings.TrimSpace(req.BankReference),
		ProofURL:      strings.TrimSpace(req.ProofURL),
		PayerName:     strings.TrimSpace(req.PayerName),
	}
	if method == paymentDomain.MethodBankTransfer {
		if fields.BankReference == "" {
			return nil, domain.NewMissingProofError("bank reference is required for bank transfers")
		}
		if fields.ProofURL == "" {
			return nil, domain.NewMissingProofError("proof of payment is required for bank transfers")
		}
	}
	if !req.Amount.IsPositive() || req.Amount.LessThan(s.policy.MinimumAmount) {
		return nil, domain.NewValidationError(fmt.Sprintf("amount must be at least %s", s.policy.MinimumAmount.StringFixed(2)))
	}

	var (
		bk       *bookingDomain.Booking
		rec      *paymentDomain.PaymentRecord
		redirect *paymentDomain.Redirect
		notes    []Notification
	)
	err = retryOnConflict(ctx, s.policy.ConflictRetries, func() error {
		notes = nil
		return s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
			var err error
			bk, err = s.bookings.FindByID(ctx, bookingID)
			if err != nil {
				return err
			}
			if !bk.Status().AcceptsPayment() {
				return errPaymentNotAccepted(bk)
			}

			records, err := s.payments.FindByBookingID(ctx, bookingID)
			if err != nil {
				return err
			}
			if err := s.checkPayable(bk, paymentType, req.Amount, records); err != nil {
				return err
			}

			split, err := s.policy.Fees.Split(req.Amount, method)
			if err != nil {
				return err
			}
			rec, err = paymentDomain.NewPaymentRecord(bookingID, method, paymentType, req.Amount, bk.Currency(), split, fields)
			if err != nil {
				return err
			}

			var artifact *proofDomain.Artifact
			switch method {
			case paymentDomain.MethodGateway:
				if redirect, err = s.gateway.Checkout(ctx, rec, bk); err != nil {
					return fmt.Errorf("failed to build checkout: %w", err)
				}
			case paymentDomain.MethodBankTransfer:
				artifact, err = proofDomain.NewArtifact(rec.ID(), bookingID, proofDomain.KindBankSlip, fields.ProofURL, req.Note)
				if err != nil {
					return domain.NewMissingProofError(err.Error())
				}
			}

			// The booking write is conditional on the version read above, so
			// two creations racing past checkPayable cannot both commit.
			var confirmed []Notification
			if method == paymentDomain.MethodCashOnPickup {
				confirmed, err = s.confirm(ctx, bk)
			} else {
				err = s.saveBooking(ctx, bk)
			}
			if err != nil {
				return err
			}

			if err := s.payments.Save(ctx, rec); err != nil {
				return err
			}
			notes = append(notes, paymentNotification(EventPaymentCreated, rec))
			notes = append(notes, confirmed...)

			if artifact != nil {
				if err := s.proofs.Save(ctx, artifact); err != nil {
					return err
				}
			}
			return nil
		})
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.logger.Info("payment created",
		zap.String("payment_id", rec.ID().String()),
		zap.String("booking_id", bookingID.String()),
		zap.String("method", string(method)),
		zap.String("status", string(rec.Status())),
		zap.String("amount", rec.Amount().StringFixed(2)),
	)
	dispatch(ctx, s.notifier, s.logger, notes)

	result := &CreatePaymentResult{
		Payment:       toPaymentDTO(rec),
		BookingStatus: string(bk.Status()),
		Redirect:      redirect,
	}
	if method == paymentDomain.MethodBankTransfer {
		result.BankInstructions = s.bankInstructions(bk, rec)
	}
	return result, nil
}

// checkPayable enforces one in-flight record per booking and the amount the
// payment type calls for.
func (s *PaymentService) checkPayable(bk *bookingDomain.Booking, paymentType paymentDomain.PaymentType, amount decimal.Decimal, records []*paymentDomain.PaymentRecord) error {
	if paymentDomain.HasInFlight(records) {
		return domain.NewValidationError("booking already has a payment awaiting confirmation")
	}

	settled := paymentDomain.SettledTotal(records)
	if !settled.LessThan(bk.AmountDue()) {
		return domain.NewValidationError("booking is already fully paid")
	}
	switch paymentType {
	case paymentDomain.TypeDeposit:
		if settled.IsPositive() {
			return domain.NewValidationError("a deposit can only be the first payment")
		}
	case paymentDomain.TypeBalance:
		if !settled.IsPositive() {
			return domain.NewValidationError("no deposit has been paid; pay in full instead")
		}
	case paymentDomain.TypeFull:
		if settled.IsPositive() {
			return domain.NewValidationError("a deposit has been paid; pay the balance instead")
		}
	}

	expected := paymentDomain.ExpectedAmount(paymentType, bk.AmountDue(), s.policy.DepositPercent, records)
	if !amount.Equal(expected) {
		return domain.NewAmountMismatchError(expected.StringFixed(2), amount.StringFixed(2))
	}
	return nil
}

func (s *PaymentService) bankInstructions(bk *bookingDomain.Booking, rec *paymentDomain.PaymentRecord) *BankInstructionsDTO {
	return &BankInstructionsDTO{
		BankName:          s.policy.Bank.BankName,
		AccountName:       s.policy.Bank.AccountName,
		AccountNumber:     s.policy.Bank.AccountNumber,
		Branch:            s.policy.Bank.Branch,
		SwiftCode:         s.policy.Bank.SwiftCode,
		Amount:            rec.Amount(),
		Currency:          rec.Currency(),
		TransferReference: bk.Reference(),
	}
}

// GetPayment retrieves a single payment record.
func (s *PaymentService) GetPayment(ctx context.Context, paymentID uuid.UUID) (*PaymentDTO, error) {
	rec, err := s.payments.FindByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	result := toPaymentDTO(rec)
	return &result, nil
}

// ListBookingPayments returns every payment record of a booking, oldest first.
func (s *PaymentService) ListBookingPayments(ctx context.Context, bookingID uuid.UUID) ([]PaymentDTO, error) {
	if _, err := s.bookings.FindByID(ctx, bookingID); err != nil {
		return nil, err
	}
	records, err := s.payments.FindByBookingID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	return toPaymentDTOs(records), nil
}

// GetPaymentForContact returns a payment to the contact of its booking.
func (s *PaymentService) GetPaymentForContact(ctx context.Context, paymentID uuid.UUID, email string) (*PaymentDTO, error) {
	rec, err := s.payments.FindByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	bk, err := s.bookings.FindByID(ctx, rec.BookingID())
	if err != nil {
		return nil, err
	}
	if err := checkContact(bk, email); err != nil {
		return nil, err
	}
	result := toPaymentDTO(rec)
	return &result, nil
}

// ListBookingPaymentsForContact is the customer view of ListBookingPayments.
func (s *PaymentService) ListBookingPaymentsForContact(ctx context.Context, bookingID uuid.UUID, email string) ([]PaymentDTO, error) {
	bk, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := checkContact(bk, email); err != nil {
		return nil, err
	}
	records, err := s.payments.FindByBookingID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	return toPaymentDTOs(records), nil
}

// ListPendingBankTransfers returns bank transfers awaiting verification, oldest first (admin).
func (s *PaymentService) ListPendingBankTransfers(ctx context.Context, page, limit int) (*domain.PaginatedResult[PaymentDTO], error) {
	page, limit = normalizePage(page, limit)
	records, total, err := s.payments.FindByStatus(ctx, paymentDomain.MethodBankTransfer, paymentDomain.StatusProcessing, page, limit)
	if err != nil {
		return nil, err
	}
	result := domain.NewPaginatedResult(toPaymentDTOs(records), total, page, limit)
	return &result, nil
}

// ListProofs returns the proof artifacts attached to a payment (admin).
func (s *PaymentService) ListProofs(ctx context.Context, paymentID uuid.UUID) ([]ProofDTO, error) {
	if _, err := s.payments.FindByID(ctx, paymentID); err != nil {
		return nil, err
	}
	artifacts, err := s.proofs.FindByPaymentID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	dtos := make([]ProofDTO, len(artifacts))
	for i, a := range artifacts {
		dtos[i] = toProofDTO(a)
	}
	return dtos, nil
}

// RecordPickupCollection settles a pay-on-pickup record once the money has
// been collected (admin).
func (s *PaymentService) RecordPickupCollection(ctx context.Context, paymentID uuid.UUID, collectedBy string) (*PaymentDTO, error) {
	var (
		rec   *paymentDomain.PaymentRecord
		notes []Notification
	)
	err := retryOnConflict(ctx, s.policy.ConflictRetries, func() error {
		return s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
			var err error
			rec, err = s.payments.FindByID(ctx, paymentID)
			if err != nil {
				return err
			}
			if rec.Method() != paymentDomain.MethodCashOnPickup {
				return domain.NewValidationError("only pay-on-pickup payments can be collected")
			}
			if rec.Status() != paymentDomain.StatusPending {
				return domain.NewAlreadyDecidedError("payment is already "+string(rec.Status())).WithSnapshot(toPaymentDTO(rec))
			}

			fields := rec.MethodFields()
			fields.CollectedBy = collectedBy
			rec.SetMethodFields(fields)

			_, notes, err = s.settle(ctx, rec, "")
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("pickup payment collected",
		zap.String("payment_id", paymentID.String()),
		zap.String("collected_by", collectedBy),
	)
	dispatch(ctx, s.notifier, s.logger, notes)

	result := toPaymentDTO(rec)
	return &result, nil
}

// CompleteRefund marks a pending refund obligation as paid out (admin).
func (s *PaymentService) CompleteRefund(ctx context.Context, paymentID uuid.UUID, req CompleteRefundRequest) (*PaymentDTO, error) {
	var rec *paymentDomain.PaymentRecord
	err := retryOnConflict(ctx, s.policy.ConflictRetries, func() error {
		return s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
			var err error
			rec, err = s.payments.FindByID(ctx, paymentID)
			if err != nil {
				return err
			}
			if err := rec.CompleteRefund(strings.TrimSpace(req.TransactionID)); err != nil {
				return withSnapshot(err, toPaymentDTO(rec))
			}
			return s.savePayment(ctx, rec)
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("refund completed",
		zap.String("payment_id", paymentID.String()),
		zap.String("transaction_id", req.TransactionID),
	)
	dispatch(ctx, s.notifier, s.logger, []Notification{paymentNotification(EventPaymentRefundCompleted, rec)})

	result := toPaymentDTO(rec)
	return &result, nil
}
