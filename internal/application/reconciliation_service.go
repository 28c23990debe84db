package application

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	bookingDomain "github.com/rechargetravels/service-booking/internal/domain/booking"
	paymentDomain "github.com/rechargetravels/service-booking/internal/domain/payment"
	"github.com/rechargetravels/service-booking/pkg/domain"
)

const (
	expiryReason      = "payment expired without confirmation"
	rejectReason      = "bank transfer rejected"
	expiryBatchSize   = 100
	gatewayFailPrefix = "gateway reported "
)

// GatewayCallback is an authenticity-verified result from the payment gateway.
// Ref is the payment reference sent as the order id, or the payment id.
type GatewayCallback struct {
	Ref           string
	TransactionID string
	Outcome       paymentDomain.Outcome
	Amount        *decimal.Decimal
	Currency      string
}

// ReconciliationService applies asynchronous payment decisions: gateway
// callbacks, admin bank transfer verification and expiry of abandoned attempts.
type ReconciliationService struct {
	lifecycle
	tx       Transactor
	notifier Notifier
	expiry   time.Duration
	retries  int
	logger   *zap.Logger
}

// NewReconciliationService creates a new ReconciliationService.
func NewReconciliationService(
	bookings bookingDomain.BookingRepository,
	payments paymentDomain.PaymentRepository,
	tx Transactor,
	notifier Notifier,
	expiry time.Duration,
	conflictRetries int,
	logger *zap.Logger,
) *ReconciliationService {
	return &ReconciliationService{
		lifecycle: lifecycle{bookings: bookings, payments: payments},
		tx:        tx,
		notifier:  notifier,
		expiry:    expiry,
		retries:   conflictRetries,
		logger:    logger,
	}
}

// ApplyGatewayCallback resolves the payment a gateway callback refers to and
// applies its outcome. Amount and currency are only checked while the record
// is undecided; a late callback for a decided record returns it unchanged.
func (s *ReconciliationService) ApplyGatewayCallback(ctx context.Context, cb GatewayCallback) (*PaymentDTO, error) {
	rec, err := s.resolve(ctx, cb.Ref)
	if err != nil {
		return nil, err
	}
	if rec.Status().IsDecided() {
		return s.ApplyGatewayResult(ctx, rec.ID(), cb.TransactionID, cb.Outcome)
	}
	if cb.Amount != nil && !cb.Amount.Equal(rec.Amount()) {
		s.logger.Warn("gateway callback amount does not match payment",
			zap.String("payment_id", rec.ID().String()),
			zap.String("expected", rec.Amount().StringFixed(2)),
			zap.String("got", cb.Amount.StringFixed(2)),
		)
		return nil, domain.NewAmountMismatchError(rec.Amount().StringFixed(2), cb.Amount.StringFixed(2))
	}
	if cb.Currency != "" && !strings.EqualFold(cb.Currency, rec.Currency()) {
		return nil, domain.NewValidationError("callback currency " + cb.Currency + " does not match payment currency " + rec.Currency())
	}
	return s.ApplyGatewayResult(ctx, rec.ID(), cb.TransactionID, cb.Outcome)
}

func (s *ReconciliationService) resolve(ctx context.Context, ref string) (*paymentDomain.PaymentRecord, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, domain.NewValidationError("callback carries no payment reference")
	}
	if id, err := uuid.Parse(ref); err == nil {
		return s.payments.FindByID(ctx, id)
	}
	return s.payments.FindByReference(ctx, strings.ToUpper(ref))
}

// ApplyGatewayResult records the gateway's decision on a payment. A record
// that is already decided is returned unchanged, so duplicated or reordered
// callbacks are harmless.
func (s *ReconciliationService) ApplyGatewayResult(ctx context.Context, paymentID uuid.UUID, externalTransactionID string, outcome paymentDomain.Outcome) (*PaymentDTO, error) {
	ctx, span := tracer.Start(ctx, "ReconciliationService.ApplyGatewayResult")
	defer span.End()
	span.SetAttributes(
		attribute.String("payment.id", paymentID.String()),
		attribute.String("gateway.outcome", string(outcome)),
	)

	if !outcome.IsValid() {
		return nil, domain.NewValidationError("invalid gateway outcome: " + string(outcome))
	}

	var (
		rec     *paymentDomain.PaymentRecord
		notes   []Notification
		applied bool
	)
	err := retryOnConflict(ctx, s.retries, func() error {
		notes, applied = nil, false
		return s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
			var err error
			rec, err = s.payments.FindByID(ctx, paymentID)
			if err != nil {
				return err
			}
			if rec.Method() != paymentDomain.MethodGateway {
				return domain.NewValidationError("payment " + rec.Reference() + " is not a gateway payment")
			}
			if rec.Status().IsDecided() || !outcome.IsFinal() {
				return nil
			}

			if outcome == paymentDomain.OutcomeSuccess {
				_, notes, err = s.settle(ctx, rec, externalTransactionID)
				applied = err == nil
				return err
			}

			if err := rec.MarkFailed(gatewayFailPrefix + string(outcome)); err != nil {
				return err
			}
			if externalTransactionID != "" {
				fields := rec.MethodFields()
				fields.ExternalTransactionID = externalTransactionID
				rec.SetMethodFields(fields)
			}
			if err := s.savePayment(ctx, rec); err != nil {
				return err
			}
			notes = []Notification{paymentNotification(EventPaymentFailed, rec)}
			applied = true
			return nil
		})
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if applied {
		s.logger.Info("gateway result applied",
			zap.String("payment_id", paymentID.String()),
			zap.String("outcome", string(outcome)),
			zap.String("status", string(rec.Status())),
		)
		dispatch(ctx, s.notifier, s.logger, notes)
	} else {
		s.logger.Debug("gateway result ignored",
			zap.String("payment_id", paymentID.String()),
			zap.String("outcome", string(outcome)),
			zap.String("status", string(rec.Status())),
		)
	}

	result := toPaymentDTO(rec)
	return &result, nil
}

// VerifyBankTransfer records an admin decision on a bank transfer. Only a
// processing transfer can be decided; deciding it again is AlreadyDecided.
func (s *ReconciliationService) VerifyBankTransfer(ctx context.Context, paymentID uuid.UUID, req VerifyBankTransferRequest, verifiedBy string) (*PaymentDTO, error) {
	ctx, span := tracer.Start(ctx, "ReconciliationService.VerifyBankTransfer")
	defer span.End()

	if req.Approve == nil {
		return nil, domain.NewValidationError("decision is required")
	}
	approve := *req.Approve
	span.SetAttributes(attribute.Bool("bank_transfer.approved", approve))

	var (
		rec   *paymentDomain.PaymentRecord
		notes []Notification
	)
	err := retryOnConflict(ctx, s.retries, func() error {
		notes = nil
		return s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
			var err error
			rec, err = s.payments.FindByID(ctx, paymentID)
			if err != nil {
				return err
			}
			if rec.Method() != paymentDomain.MethodBankTransfer {
				return domain.NewValidationError("payment " + rec.Reference() + " is not a bank transfer")
			}
			if rec.Status() != paymentDomain.StatusProcessing {
				return domain.NewAlreadyDecidedError("bank transfer is already " + string(rec.Status())).
					WithSnapshot(toPaymentDTO(rec))
			}

			fields := rec.MethodFields()
			fields.VerifiedBy = verifiedBy
			rec.SetMethodFields(fields)

			if approve {
				_, notes, err = s.settle(ctx, rec, "")
				return err
			}

			reason := strings.TrimSpace(req.Reason)
			if reason == "" {
				reason = rejectReason
			}
			if err := rec.MarkFailed(reason); err != nil {
				return err
			}
			if err := s.savePayment(ctx, rec); err != nil {
				return err
			}
			notes = []Notification{paymentNotification(EventPaymentFailed, rec)}
			return nil
		})
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.logger.Info("bank transfer verified",
		zap.String("payment_id", paymentID.String()),
		zap.Bool("approved", approve),
		zap.String("verified_by", verifiedBy),
	)
	dispatch(ctx, s.notifier, s.logger, notes)

	result := toPaymentDTO(rec)
	return &result, nil
}

// ExpireStale fails processing records created more than the expiry window
// before now. Records decided concurrently are skipped. Returns the number
// of records expired.
func (s *ReconciliationService) ExpireStale(ctx context.Context, now time.Time) (int, error) {
	ctx, span := tracer.Start(ctx, "ReconciliationService.ExpireStale")
	defer span.End()

	cutoff := now.Add(-s.expiry)
	expired := 0
	seen := make(map[uuid.UUID]struct{})

	for {
		stale, err := s.payments.FindStaleProcessing(ctx, cutoff, expiryBatchSize)
		if err != nil {
			return expired, err
		}

		progressed := false
		for _, candidate := range stale {
			if _, ok := seen[candidate.ID()]; ok {
				continue
			}
			seen[candidate.ID()] = struct{}{}
			progressed = true

			ok, err := s.expire(ctx, candidate.ID())
			if err != nil {
				s.logger.Warn("failed to expire payment",
					zap.String("payment_id", candidate.ID().String()),
					zap.Error(err),
				)
				continue
			}
			if ok {
				expired++
			}
		}
		if !progressed || len(stale) < expiryBatchSize {
			break
		}
		if err := ctx.Err(); err != nil {
			return expired, err
		}
	}

	span.SetAttributes(attribute.Int("payments.expired", expired))
	if expired > 0 {
		s.logger.Info("expired stale payments", zap.Int("count", expired), zap.Time("cutoff", cutoff))
	}
	return expired, nil
}

func (s *ReconciliationService) expire(ctx context.Context, paymentID uuid.UUID) (bool, error) {
	var (
		rec     *paymentDomain.PaymentRecord
		expired bool
	)
	err := retryOnConflict(ctx, s.retries, func() error {
		expired = false
		return s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
			var err error
			rec, err = s.payments.FindByID(ctx, paymentID)
			if err != nil {
				return err
			}
			// a late callback or admin decision got there first
			if rec.Status() != paymentDomain.StatusProcessing {
				return nil
			}
			if err := rec.MarkFailed(expiryReason); err != nil {
				return err
			}
			if err := s.savePayment(ctx, rec); err != nil {
				return err
			}
			expired = true
			return nil
		})
	})
	if err != nil || !expired {
		return false, err
	}
	dispatch(ctx, s.notifier, s.logger, []Notification{paymentNotification(EventPaymentFailed, rec)})
	return true, nil
}
