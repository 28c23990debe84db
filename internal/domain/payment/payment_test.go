package payment

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rechargetravels/service-booking/pkg/domain"
)

var fees = NewPercentageFeeStrategy(decimal.NewFromInt(15), decimal.NewFromInt(10))

func newRecord(t *testing.T, method Method, pt PaymentType, amount string) *PaymentRecord {
	t.Helper()
	amt := decimal.RequireFromString(amount)
	split, err := fees.Split(amt, method)
	require.NoError(t, err)
	rec, err := NewPaymentRecord(uuid.New(), method, pt, amt, "LKR", split, MethodFields{})
	require.NoError(t, err)
	return rec
}

func TestFeeSplit_AlwaysAddsUp(t *testing.T) {
	amounts := []string{"0.01", "0.07", "1", "33.33", "99.99", "12345.67", "1000000.01", "7.777"}
	for _, a := range amounts {
		for _, m := range []Method{MethodGateway, MethodBankTransfer, MethodCashOnPickup} {
			amt := decimal.RequireFromString(a)
			split, err := fees.Split(amt, m)
			require.NoError(t, err)
			assert.True(t, split.PlatformFee.Add(split.OwnerPayout).Equal(amt), "%s via %s", a, m)
			assert.LessOrEqual(t, int(-split.PlatformFee.Exponent()), 2)
		}
	}
}

func TestFeeSplit_PerMethod(t *testing.T) {
	split, err := fees.Split(decimal.NewFromInt(1000), MethodGateway)
	require.NoError(t, err)
	assert.Equal(t, "150", split.PlatformFee.String())
	assert.Equal(t, "850", split.OwnerPayout.String())

	split, err = fees.Split(decimal.NewFromInt(1000), MethodCashOnPickup)
	require.NoError(t, err)
	assert.Equal(t, "100", split.PlatformFee.String())

	_, err = fees.Split(decimal.NewFromInt(1), Method("crypto"))
	assert.Error(t, err)
}

func TestExpectedAmount(t *testing.T) {
	due := decimal.RequireFromString("10000.50")
	pct := decimal.NewFromInt(30)

	assert.Equal(t, "3000.15", ExpectedAmount(TypeDeposit, due, pct, nil).String())
	assert.True(t, ExpectedAmount(TypeFull, due, pct, nil).Equal(due))

	deposit := newRecord(t, MethodGateway, TypeDeposit, "3000.15")
	require.NoError(t, deposit.MarkSettled("tx-1"))
	failed := newRecord(t, MethodGateway, TypeBalance, "7000.35")
	require.NoError(t, failed.MarkFailed("declined"))

	balance := ExpectedAmount(TypeBalance, due, pct, []*PaymentRecord{deposit, failed})
	assert.Equal(t, "7000.35", balance.String())
}

func TestNewPaymentRecord_InitialStatus(t *testing.T) {
	assert.Equal(t, StatusProcessing, newRecord(t, MethodGateway, TypeFull, "100").Status())
	assert.Equal(t, StatusProcessing, newRecord(t, MethodBankTransfer, TypeFull, "100").Status())
	assert.Equal(t, StatusPending, newRecord(t, MethodCashOnPickup, TypeFull, "100").Status())
}

func TestNewPaymentRecord_RejectsBrokenSplit(t *testing.T) {
	split := FeeSplit{PlatformFee: decimal.NewFromInt(10), OwnerPayout: decimal.NewFromInt(10)}
	_, err := NewPaymentRecord(uuid.New(), MethodGateway, TypeFull, decimal.NewFromInt(100), "LKR", split, MethodFields{})
	assert.True(t, domain.IsValidation(err))
}

func TestPaymentRecord_SettleAndRefund(t *testing.T) {
	rec := newRecord(t, MethodGateway, TypeFull, "500")

	require.NoError(t, rec.MarkSettled("ext-123"))
	assert.Equal(t, StatusPaid, rec.Status())
	assert.Equal(t, "ext-123", rec.MethodFields().ExternalTransactionID)
	assert.NotNil(t, rec.SettledAt())

	err := rec.MarkFailed("late failure")
	assert.True(t, domain.IsCode(err, domain.CodeInvalidTransition))

	require.NoError(t, rec.Refund("booking cancelled"))
	assert.Equal(t, StatusRefunded, rec.Status())
	require.True(t, rec.Obligation().IsPending())
	assert.True(t, rec.Obligation().Amount.Equal(decimal.NewFromInt(500)))

	require.NoError(t, rec.CompleteRefund("rf-1"))
	assert.Equal(t, RefundProcessed, rec.Obligation().Status)
	assert.Equal(t, StatusRefunded, rec.Status())

	err = rec.CompleteRefund("rf-2")
	assert.True(t, domain.IsCode(err, domain.CodeAlreadyDecided))
}

func TestPaymentRecord_DepositSettlesAsDepositPaid(t *testing.T) {
	rec := newRecord(t, MethodBankTransfer, TypeDeposit, "300")
	require.NoError(t, rec.MarkSettled(""))
	assert.Equal(t, StatusDepositPaid, rec.Status())
	assert.True(t, rec.Status().IsSettled())
}

func TestPaymentRecord_FailedIsTerminal(t *testing.T) {
	rec := newRecord(t, MethodGateway, TypeFull, "100")
	require.NoError(t, rec.MarkFailed("expired"))
	assert.True(t, rec.Status().IsDecided())
	assert.Error(t, rec.MarkSettled("x"))
	assert.Error(t, rec.Refund("x"))
	assert.True(t, domain.IsCode(rec.CompleteRefund("x"), domain.CodeInvalidTransition))
}

func TestAuthoritative(t *testing.T) {
	base := time.Now().UTC()
	mk := func(status PaymentStatus, offset time.Duration) *PaymentRecord {
		return ReconstructPaymentRecord(uuid.New(), uuid.New(), "PAY-X", MethodGateway, TypeFull, status,
			decimal.NewFromInt(1), "LKR", decimal.Zero, decimal.NewFromInt(1), MethodFields{}, "", nil, nil, 1,
			base.Add(offset), base.Add(offset))
	}

	older := mk(StatusPaid, 0)
	newestFailed := mk(StatusFailed, 2*time.Minute)
	middle := mk(StatusProcessing, time.Minute)

	assert.Equal(t, middle, Authoritative([]*PaymentRecord{older, newestFailed, middle}))
	assert.Nil(t, Authoritative([]*PaymentRecord{newestFailed}))
	assert.Nil(t, Authoritative(nil))
	assert.True(t, HasInFlight([]*PaymentRecord{older, middle}))
	assert.False(t, HasInFlight([]*PaymentRecord{older, newestFailed}))
}
