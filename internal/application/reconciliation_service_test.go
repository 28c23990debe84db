package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bookingDomain "github.com/rechargetravels/service-booking/internal/domain/booking"
	paymentDomain "github.com/rechargetravels/service-booking/internal/domain/payment"
	"github.com/rechargetravels/service-booking/pkg/domain"
)

// Scenario C: approve a bank transfer once; deciding it again is rejected.
func TestVerifyBankTransfer_Approve(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	bk := h.createTrainBooking(t, "5000")
	res := h.pay(t, bk.ID, paymentDomain.MethodBankTransfer, "5000")

	approve := true
	got, err := h.recon.VerifyBankTransfer(ctx, res.Payment.ID, VerifyBankTransferRequest{Approve: &approve}, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, string(paymentDomain.StatusPaid), got.Status)
	assert.Equal(t, "admin-1", got.MethodFields.VerifiedBy)
	assert.Equal(t, bookingDomain.StatusConfirmed, h.bookingStatus(t, bk.ID))

	_, err = h.recon.VerifyBankTransfer(ctx, res.Payment.ID, VerifyBankTransferRequest{Approve: &approve}, "admin-2")
	var de *domain.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, domain.CodeAlreadyDecided, de.Code)
	snapshot, ok := de.Snapshot.(PaymentDTO)
	require.True(t, ok)
	assert.Equal(t, "admin-1", snapshot.MethodFields.VerifiedBy)
	assert.Equal(t, 1, h.notifier.count(EventBookingConfirmed))
}

func TestVerifyBankTransfer_Reject(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	bk := h.createTrainBooking(t, "5000")
	res := h.pay(t, bk.ID, paymentDomain.MethodBankTransfer, "5000")

	_, err := h.recon.VerifyBankTransfer(ctx, res.Payment.ID, VerifyBankTransferRequest{}, "admin-1")
	assert.True(t, domain.IsValidation(err), "a decision is required")

	reject := false
	got, err := h.recon.VerifyBankTransfer(ctx, res.Payment.ID, VerifyBankTransferRequest{Approve: &reject, Reason: "slip unreadable"}, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, string(paymentDomain.StatusFailed), got.Status)
	assert.Equal(t, "slip unreadable", got.FailureReason)
	assert.Equal(t, bookingDomain.StatusPending, h.bookingStatus(t, bk.ID))

	_, err = h.recon.VerifyBankTransfer(ctx, res.Payment.ID, VerifyBankTransferRequest{Approve: &reject}, "admin-1")
	assert.True(t, domain.IsCode(err, domain.CodeAlreadyDecided))

	h.pay(t, bk.ID, paymentDomain.MethodBankTransfer, "5000")
}

func TestVerifyBankTransfer_WrongMethod(t *testing.T) {
	h := newHarness(t)
	bk := h.createTrainBooking(t, "5000")
	res := h.pay(t, bk.ID, paymentDomain.MethodGateway, "5000")

	approve := true
	_, err := h.recon.VerifyBankTransfer(context.Background(), res.Payment.ID, VerifyBankTransferRequest{Approve: &approve}, "admin-1")
	assert.True(t, domain.IsValidation(err))
}

// Scenario D: a duplicated success callback confirms the booking exactly once.
func TestApplyGatewayCallback_Idempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	bk := h.createTrainBooking(t, "3200")
	res := h.pay(t, bk.ID, paymentDomain.MethodGateway, "3200")

	amount := decimal.NewFromInt(3200)
	cb := GatewayCallback{Ref: res.Payment.Reference, TransactionID: "320012345", Outcome: paymentDomain.OutcomeSuccess, Amount: &amount, Currency: "LKR"}

	first, err := h.recon.ApplyGatewayCallback(ctx, cb)
	require.NoError(t, err)
	second, err := h.recon.ApplyGatewayCallback(ctx, cb)
	require.NoError(t, err)

	assert.Equal(t, string(paymentDomain.StatusPaid), first.Status)
	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.Version, second.Version, "the duplicate wrote nothing")
	assert.Equal(t, "320012345", second.MethodFields.ExternalTransactionID)
	assert.Equal(t, bookingDomain.StatusConfirmed, h.bookingStatus(t, bk.ID))
	assert.Equal(t, 1, h.notifier.count(EventBookingConfirmed))
	assert.Equal(t, 1, h.notifier.count(EventPaymentPaid))

	failed := cb
	failed.Outcome = paymentDomain.OutcomeFailed
	third, err := h.recon.ApplyGatewayCallback(ctx, failed)
	require.NoError(t, err, "a late contradicting callback is a no-op, not an error")
	assert.Equal(t, string(paymentDomain.StatusPaid), third.Status)

	other := decimal.NewFromInt(10)
	late := cb
	late.Amount, late.Currency = &other, "USD"
	fourth, err := h.recon.ApplyGatewayCallback(ctx, late)
	require.NoError(t, err, "a decided record is not re-validated against late callbacks")
	assert.Equal(t, first.Version, fourth.Version)
	assert.Equal(t, 1, h.notifier.count(EventPaymentPaid))
}

func TestApplyGatewayCallback_Concurrent(t *testing.T) {
	h := newHarness(t)
	bk := h.createTrainBooking(t, "900")
	res := h.pay(t, bk.ID, paymentDomain.MethodGateway, "900")

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcome := paymentDomain.OutcomeSuccess
			if i%4 == 3 {
				outcome = paymentDomain.OutcomeFailed
			}
			_, err := h.recon.ApplyGatewayCallback(context.Background(), GatewayCallback{Ref: res.Payment.ID.String(), Outcome: outcome})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	rec, err := h.payRepo.FindByID(context.Background(), res.Payment.ID)
	require.NoError(t, err)
	assert.True(t, rec.Status().IsDecided())
	assert.Equal(t, 1, h.notifier.count(EventPaymentPaid)+h.notifier.count(EventPaymentFailed), "exactly one decision wins")
	assert.LessOrEqual(t, h.notifier.count(EventBookingConfirmed), 1)
}

func TestApplyGatewayCallback_Rejections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	bk := h.createTrainBooking(t, "1000")
	res := h.pay(t, bk.ID, paymentDomain.MethodGateway, "1000")

	wrong := decimal.NewFromInt(10)
	_, err := h.recon.ApplyGatewayCallback(ctx, GatewayCallback{Ref: res.Payment.Reference, Outcome: paymentDomain.OutcomeSuccess, Amount: &wrong})
	assert.True(t, domain.IsCode(err, domain.CodeAmountMismatch))

	_, err = h.recon.ApplyGatewayCallback(ctx, GatewayCallback{Ref: "PAY-NOPE", Outcome: paymentDomain.OutcomeSuccess})
	assert.True(t, domain.IsNotFound(err))

	got, err := h.recon.ApplyGatewayCallback(ctx, GatewayCallback{Ref: res.Payment.Reference, Outcome: paymentDomain.OutcomePending})
	require.NoError(t, err)
	assert.Equal(t, string(paymentDomain.StatusProcessing), got.Status, "pending outcome changes nothing")

	got, err = h.recon.ApplyGatewayCallback(ctx, GatewayCallback{Ref: res.Payment.Reference, Outcome: paymentDomain.OutcomeCancelled})
	require.NoError(t, err)
	assert.Equal(t, string(paymentDomain.StatusFailed), got.Status)
	assert.Equal(t, "gateway reported cancelled", got.FailureReason)
	assert.Equal(t, bookingDomain.StatusPending, h.bookingStatus(t, bk.ID))
}

func TestApplyGatewayResult_AfterCancellationRefunds(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	bk := h.createTrainBooking(t, "1000")
	res := h.pay(t, bk.ID, paymentDomain.MethodGateway, "1000")

	_, err := h.bookings.UpdateStatus(ctx, bk.ID, UpdateStatusRequest{Status: "cancelled"})
	require.NoError(t, err)

	got, err := h.recon.ApplyGatewayResult(ctx, res.Payment.ID, "GW-LATE", paymentDomain.OutcomeSuccess)
	require.NoError(t, err)
	assert.Equal(t, string(paymentDomain.StatusRefunded), got.Status)
	require.NotNil(t, got.Refund)
	assert.Equal(t, paymentDomain.RefundPending, got.Refund.Status)
	assert.Equal(t, bookingDomain.StatusCancelled, h.bookingStatus(t, bk.ID), "no resurrection")
}

func TestExpireStale(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	bk := h.createTrainBooking(t, "1000")
	res := h.pay(t, bk.ID, paymentDomain.MethodGateway, "1000")
	other := h.createTrainBooking(t, "1000")
	cash := h.pay(t, other.ID, paymentDomain.MethodCashOnPickup, "1000")

	n, err := h.recon.ExpireStale(ctx, time.Now())
	require.NoError(t, err)
	assert.Zero(t, n, "inside the window")

	n, err = h.recon.ExpireStale(ctx, time.Now().Add(25*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rec, err := h.payRepo.FindByID(ctx, res.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, paymentDomain.StatusFailed, rec.Status())
	assert.Equal(t, expiryReason, rec.FailureReason())
	assert.Equal(t, bookingDomain.StatusPending, h.bookingStatus(t, bk.ID))

	cashRec, err := h.payRepo.FindByID(ctx, cash.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, paymentDomain.StatusPending, cashRec.Status(), "pickup promises do not expire")

	late, err := h.recon.ApplyGatewayResult(ctx, res.Payment.ID, "GW-LATE", paymentDomain.OutcomeSuccess)
	require.NoError(t, err)
	assert.Equal(t, string(paymentDomain.StatusFailed), late.Status)
}
