package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	bookingDomain "github.com/rechargetravels/service-booking/internal/domain/booking"
	paymentDomain "github.com/rechargetravels/service-booking/internal/domain/payment"
	"github.com/rechargetravels/service-booking/internal/repository"
	"github.com/rechargetravels/service-booking/internal/testutil"
)

type recordingNotifier struct {
	mu    sync.Mutex
	notes []Notification
}

func (n *recordingNotifier) Notify(_ context.Context, note Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes = append(n.notes, note)
	return nil
}

func (n *recordingNotifier) count(eventType string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return countType(n.notes, eventType)
}

type fakeGateway struct{}

func (fakeGateway) Checkout(_ context.Context, rec *paymentDomain.PaymentRecord, bk *bookingDomain.Booking) (*paymentDomain.Redirect, error) {
	return &paymentDomain.Redirect{
		ActionURL: "https://sandbox.gateway.test/pay/checkout",
		Method:    "POST",
		Params: map[string]string{
			"order_id": rec.Reference(),
			"amount":   rec.Amount().StringFixed(2),
			"items":    bk.Reference(),
		},
	}, nil
}

type harness struct {
	bookings *BookingService
	payments *PaymentService
	recon    *ReconciliationService
	notifier *recordingNotifier
	bookRepo *repository.GormBookingRepository
	payRepo  *repository.GormPaymentRepository
}

func newHarness(t testing.TB) *harness {
	t.Helper()

	db := testutil.NewDB(t)
	bookRepo := repository.NewGormBookingRepository(db)
	payRepo := repository.NewGormPaymentRepository(db)
	proofRepo := repository.NewGormProofRepository(db)
	tx := repository.NewTransactor(db)
	notifier := &recordingNotifier{}
	logger := zap.NewNop()

	return &harness{
		bookings: NewBookingService(bookRepo, payRepo, tx, repository.NewGormCustomerResolver(db), notifier,
			BookingOptions{Currency: "LKR", ReferenceAttempts: 5, ConflictRetries: 3}, logger),
		payments: NewPaymentService(bookRepo, payRepo, proofRepo, fakeGateway{}, tx, notifier, PaymentPolicy{
			Fees:            paymentDomain.NewPercentageFeeStrategy(decimal.NewFromInt(15), decimal.NewFromInt(10)),
			DepositPercent:  decimal.NewFromInt(30),
			MinimumAmount:   decimal.NewFromInt(1),
			ConflictRetries: 3,
			Bank: BankAccount{
				BankName:      "Commercial Bank",
				AccountName:   "Recharge Travels",
				AccountNumber: "8001234567",
			},
		}, logger),
		recon:    NewReconciliationService(bookRepo, payRepo, tx, notifier, 24*time.Hour, 3, logger),
		notifier: notifier,
		bookRepo: bookRepo,
		payRepo:  payRepo,
	}
}

func trainRequest(amount string) CreateBookingRequest {
	return CreateBookingRequest{
		Domain: string(bookingDomain.DomainTrain),
		Contact: ContactDTO{
			Name:  "Nimal Perera",
			Email: "Nimal@Example.com",
			Phone: "+94771234567",
		},
		Payload: map[string]any{
			"routeId":          "colombo-kandy",
			"departureStation": "Colombo Fort",
			"arrivalStation":   "Kandy",
			"travelDate":       "2026-12-01",
			"passengers":       2,
			"ticketClass":      "first",
		},
		AmountDue: decimal.RequireFromString(amount),
	}
}

func (h *harness) createTrainBooking(t testing.TB, amount string) *BookingDTO {
	t.Helper()
	bk, err := h.bookings.CreateBooking(context.Background(), trainRequest(amount))
	require.NoError(t, err)
	return bk
}

func (h *harness) pay(t testing.TB, bookingID uuid.UUID, method paymentDomain.Method, amount string) *CreatePaymentResult {
	t.Helper()
	req := CreatePaymentRequest{Method: string(method), Amount: decimal.RequireFromString(amount)}
	if method == paymentDomain.MethodBankTransfer {
		req.BankReference = "CBK-778812"
		req.ProofURL = "https://files.example.com/slips/778812.jpg"
	}
	res, err := h.payments.CreatePayment(context.Background(), bookingID, req)
	require.NoError(t, err)
	return res
}

func (h *harness) bookingStatus(t testing.TB, id uuid.UUID) bookingDomain.BookingStatus {
	t.Helper()
	bk, err := h.bookRepo.FindByID(context.Background(), id)
	require.NoError(t, err)
	return bk.Status()
}
