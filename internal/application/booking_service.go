package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	bookingDomain "github.com/rechargetravels/service-booking/internal/domain/booking"
	paymentDomain "github.com/rechargetravels/service-booking/internal/domain/payment"
	"github.com/rechargetravels/service-booking/pkg/domain"
)

var tracer = otel.Tracer("github.com/rechargetravels/service-booking/internal/application")

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// BookingOptions tunes the booking service.
type BookingOptions struct {
	Currency          string
	ReferenceAttempts int
	ConflictRetries   int
}

// BookingService is the booking lifecycle manager: it creates bookings,
// drives their status machine and serves the admin queries.
type BookingService struct {
	lifecycle
	tx       Transactor
	identity IdentityResolver
	notifier Notifier
	opts     BookingOptions
	logger   *zap.Logger
}

// NewBookingService creates a new BookingService.
func NewBookingService(
	bookings bookingDomain.BookingRepository,
	payments paymentDomain.PaymentRepository,
	tx Transactor,
	identity IdentityResolver,
	notifier Notifier,
	opts BookingOptions,
	logger *zap.Logger,
) *BookingService {
	if opts.Currency == "" {
		opts.Currency = domain.CurrencyLKR
	}
	return &BookingService{
		lifecycle: lifecycle{bookings: bookings, payments: payments},
		tx:        tx,
		identity:  identity,
		notifier:  notifier,
		opts:      opts,
		logger:    logger,
	}
}

// CreateBooking validates the request, resolves the customer identity and
// persists a pending booking under a fresh reference. A reference collision
// regenerates the reference; running out of attempts is fatal.
func (s *BookingService) CreateBooking(ctx context.Context, req CreateBookingRequest) (*BookingDTO, error) {
	ctx, span := tracer.Start(ctx, "BookingService.CreateBooking")
	defer span.End()

	d, err := bookingDomain.ParseDomain(req.Domain)
	if err != nil {
		return nil, domain.NewValidationError(err.Error())
	}
	span.SetAttributes(attribute.String("booking.domain", string(d)))

	contact := bookingDomain.Contact{Name: req.Contact.Name, Email: req.Contact.Email, Phone: req.Contact.Phone}.Normalize()
	if err := contact.Validate(); err != nil {
		return nil, err
	}
	payload := bookingDomain.Payload(req.Payload)
	if err := payload.ValidateFor(d); err != nil {
		return nil, err
	}

	customerID := s.resolveCustomer(ctx, contact)

	attempts := s.opts.ReferenceAttempts
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 1; attempt <= attempts; attempt++ {
		bk, err := bookingDomain.NewBooking(d, contact, payload, req.AmountDue, s.opts.Currency, req.Notes)
		if err != nil {
			return nil, err
		}
		if customerID != uuid.Nil {
			bk.AttachCustomer(customerID)
		}

		err = s.bookings.Save(ctx, bk)
		if errors.Is(err, bookingDomain.ErrDuplicateReference) {
			s.logger.Warn("booking reference collision, regenerating",
				zap.String("reference", bk.Reference()),
				zap.Int("attempt", attempt),
			)
			continue
		}
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to save booking: %w", err)
		}

		s.logger.Info("booking created",
			zap.String("booking_id", bk.ID().String()),
			zap.String("reference", bk.Reference()),
			zap.String("domain", string(d)),
		)
		dispatch(ctx, s.notifier, s.logger, []Notification{bookingNotification(EventBookingCreated, bk)})

		result := toBookingDTO(bk)
		return &result, nil
	}

	err = domain.NewReferenceExhaustedError(d.Prefix(), attempts)
	span.RecordError(err)
	s.logger.Error("booking reference space exhausted",
		zap.Bool("alert", true),
		zap.String("prefix", d.Prefix()),
		zap.Int("attempts", attempts),
	)
	return nil, err
}

func (s *BookingService) resolveCustomer(ctx context.Context, contact bookingDomain.Contact) uuid.UUID {
	if s.identity == nil {
		return uuid.Nil
	}
	id, err := s.identity.Resolve(ctx, contact)
	if err != nil {
		s.logger.Warn("identity resolution failed, keeping raw contact",
			zap.String("email", contact.Email),
			zap.Error(err),
		)
		return uuid.Nil
	}
	return id
}

// GetBooking retrieves a single booking by ID.
func (s *BookingService) GetBooking(ctx context.Context, bookingID uuid.UUID) (*BookingDTO, error) {
	bk, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	result := toBookingDTO(bk)
	return &result, nil
}

// GetBookingByReference retrieves a booking by its reference. The domain
// partition is taken from the reference prefix.
func (s *BookingService) GetBookingByReference(ctx context.Context, reference string) (*BookingDTO, error) {
	bk, err := s.findByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	result := toBookingDTO(bk)
	return &result, nil
}

// GetBookingForContact is the customer view of GetBooking: the contact e-mail
// is required and must match the booking.
func (s *BookingService) GetBookingForContact(ctx context.Context, bookingID uuid.UUID, email string) (*BookingDTO, error) {
	bk, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := checkContact(bk, email); err != nil {
		return nil, err
	}
	result := toBookingDTO(bk)
	return &result, nil
}

// GetBookingByReferenceForContact is the customer view of GetBookingByReference.
func (s *BookingService) GetBookingByReferenceForContact(ctx context.Context, reference, email string) (*BookingDTO, error) {
	bk, err := s.findByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if err := checkContact(bk, email); err != nil {
		return nil, err
	}
	result := toBookingDTO(bk)
	return &result, nil
}

func (s *BookingService) findByReference(ctx context.Context, reference string) (*bookingDomain.Booking, error) {
	reference = strings.ToUpper(strings.TrimSpace(reference))
	for _, d := range bookingDomain.AllDomains() {
		if bookingDomain.HasPrefix(reference, d.Prefix()) {
			return s.bookings.FindByReference(ctx, d, reference)
		}
	}
	return nil, domain.NewNotFoundError("Booking", reference)
}

// GetBookingDetail returns a booking with its payments and derived payment state (admin).
func (s *BookingService) GetBookingDetail(ctx context.Context, bookingID uuid.UUID) (*BookingDetailDTO, error) {
	bk, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	records, err := s.payments.FindByBookingID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	detail := &BookingDetailDTO{
		BookingDTO:    toBookingDTO(bk),
		AmountSettled: paymentDomain.SettledTotal(records).StringFixed(2),
		Payments:      toPaymentDTOs(records),
	}
	if auth := paymentDomain.Authoritative(records); auth != nil {
		detail.PaymentStatus = string(auth.Status())
	}
	return detail, nil
}

// ListBookings returns a filtered, paginated listing (admin).
func (s *BookingService) ListBookings(ctx context.Context, q ListBookingsQuery) (*domain.PaginatedResult[BookingDTO], error) {
	filter := bookingDomain.ListFilter{From: q.From, To: q.To, Query: q.Query}
	filter.Page, filter.Limit = normalizePage(q.Page, q.Limit)

	if q.Domain != "" {
		d, err := bookingDomain.ParseDomain(q.Domain)
		if err != nil {
			return nil, domain.NewValidationError(err.Error())
		}
		filter.Domain = &d
	}
	if q.Status != "" {
		st, err := bookingDomain.ParseBookingStatus(q.Status)
		if err != nil {
			return nil, domain.NewValidationError(err.Error())
		}
		filter.Status = &st
	}
	if q.From != nil && q.To != nil && q.To.Before(*q.From) {
		return nil, domain.NewValidationError("date range end is before its start")
	}

	bookings, total, err := s.bookings.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}

	dtos := make([]BookingDTO, len(bookings))
	for i, bk := range bookings {
		dtos[i] = toBookingDTO(bk)
	}
	result := domain.NewPaginatedResult(dtos, total, filter.Page, filter.Limit)
	return &result, nil
}

// UpdateStatus applies an admin status override through the same state
// machine as every other transition. Confirming a pending booking needs a
// settled or pay-on-pickup payment; cancelling records refund obligations.
func (s *BookingService) UpdateStatus(ctx context.Context, bookingID uuid.UUID, req UpdateStatusRequest) (*BookingDTO, error) {
	ctx, span := tracer.Start(ctx, "BookingService.UpdateStatus")
	defer span.End()

	target, err := bookingDomain.ParseBookingStatus(req.Status)
	if err != nil {
		return nil, domain.NewValidationError(err.Error())
	}

	var (
		bk    *bookingDomain.Booking
		notes []Notification
	)
	err = retryOnConflict(ctx, s.opts.ConflictRetries, func() error {
		return s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
			var err error
			bk, err = s.bookings.FindByID(ctx, bookingID)
			if err != nil {
				return err
			}
			notes, err = s.transition(ctx, bk, target, req.Reason)
			if err != nil {
				return withSnapshot(err, toBookingDTO(bk))
			}
			return nil
		})
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.logger.Info("booking status updated",
		zap.String("booking_id", bookingID.String()),
		zap.String("status", string(bk.Status())),
	)
	dispatch(ctx, s.notifier, s.logger, notes)

	result := toBookingDTO(bk)
	return &result, nil
}

func (s *BookingService) transition(ctx context.Context, bk *bookingDomain.Booking, target bookingDomain.BookingStatus, reason string) ([]Notification, error) {
	switch target {
	case bookingDomain.StatusCancelled:
		return s.cancel(ctx, bk, reason)

	case bookingDomain.StatusConfirmed:
		if bk.Status() == bookingDomain.StatusPending {
			records, err := s.payments.FindByBookingID(ctx, bk.ID())
			if err != nil {
				return nil, err
			}
			if !canAdminConfirm(records) {
				return nil, errConfirmWithoutPayment()
			}
		}
	}

	if err := bk.TransitionTo(target, reason); err != nil {
		return nil, err
	}
	if err := s.saveBooking(ctx, bk); err != nil {
		return nil, err
	}
	return []Notification{bookingNotification(transitionEvent(target), bk)}, nil
}

func transitionEvent(target bookingDomain.BookingStatus) string {
	switch target {
	case bookingDomain.StatusConfirmed:
		return EventBookingConfirmed
	case bookingDomain.StatusInProgress:
		return EventBookingStarted
	case bookingDomain.StatusCompleted:
		return EventBookingCompleted
	default:
		return EventBookingCancelled
	}
}

// CancelBooking cancels a booking on the customer's behalf. The e-mail must
// match the booking contact.
func (s *BookingService) CancelBooking(ctx context.Context, bookingID uuid.UUID, req CancelBookingRequest) (*BookingDTO, error) {
	ctx, span := tracer.Start(ctx, "BookingService.CancelBooking")
	defer span.End()

	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = "cancelled by customer"
	}

	var (
		bk    *bookingDomain.Booking
		notes []Notification
	)
	err := retryOnConflict(ctx, s.opts.ConflictRetries, func() error {
		return s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
			var err error
			bk, err = s.bookings.FindByID(ctx, bookingID)
			if err != nil {
				return err
			}
			if err := checkContact(bk, req.Email); err != nil {
				return err
			}
			notes, err = s.cancel(ctx, bk, reason)
			return err
		})
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.logger.Info("booking cancelled by customer",
		zap.String("booking_id", bookingID.String()),
		zap.Int("refund_obligations", countType(notes, EventPaymentRefunded)),
	)
	dispatch(ctx, s.notifier, s.logger, notes)

	result := toBookingDTO(bk)
	return &result, nil
}

// PurgeBooking physically deletes a cancelled booking (admin). Payment
// records are kept as the audit trail.
func (s *BookingService) PurgeBooking(ctx context.Context, bookingID uuid.UUID) error {
	var bk *bookingDomain.Booking
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		bk, err = s.bookings.FindByID(ctx, bookingID)
		if err != nil {
			return err
		}
		if bk.Status() != bookingDomain.StatusCancelled {
			de := &domain.DomainError{
				Code:    domain.CodeInvalidTransition,
				Message: fmt.Sprintf("booking %s is %s", bk.Reference(), bk.Status()),
				Rule:    "only cancelled bookings can be purged",
			}
			return de.WithSnapshot(toBookingDTO(bk))
		}
		return s.bookings.Delete(ctx, bookingID)
	})
	if err != nil {
		return err
	}

	s.logger.Warn("booking purged",
		zap.String("booking_id", bookingID.String()),
		zap.String("reference", bk.Reference()),
	)
	dispatch(ctx, s.notifier, s.logger, []Notification{bookingNotification(EventBookingPurged, bk)})
	return nil
}

// GetBookingStats returns booking counts by domain and status (admin).
func (s *BookingService) GetBookingStats(ctx context.Context) (*BookingStatsDTO, error) {
	counts, err := s.bookings.CountByDomainAndStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking stats: %w", err)
	}

	stats := &BookingStatsDTO{
		ByStatus: make(map[string]int64),
		ByDomain: make(map[string]map[string]int64),
	}
	for d, byStatus := range counts {
		perDomain := make(map[string]int64)
		for st, n := range byStatus {
			perDomain[string(st)] = n
			stats.ByStatus[string(st)] += n
			stats.TotalBookings += n
		}
		stats.ByDomain[string(d)] = perDomain
	}
	return stats, nil
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}

func countType(notes []Notification, eventType string) int {
	n := 0
	for _, note := range notes {
		if note.Type == eventType {
			n++
		}
	}
	return n
}
