package gateway

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rechargetravels/service-booking/internal/config"
	bookingDomain "github.com/rechargetravels/service-booking/internal/domain/booking"
	paymentDomain "github.com/rechargetravels/service-booking/internal/domain/payment"
)

func testConfig() config.GatewayConfig {
	return config.GatewayConfig{
		MerchantID: "1221149",
		Secret:     "MzE2NjQ5NjQ0MjQ1NjEyMTQ1",
		Sandbox:    true,
		ReturnURL:  "https://rechargetravels.test/payment/return",
		CancelURL:  "https://rechargetravels.test/payment/cancel",
		NotifyURL:  "https://api.rechargetravels.test/api/v1/payments/gateway/notify",
	}
}

func testRecord(t *testing.T) (*paymentDomain.PaymentRecord, *bookingDomain.Booking) {
	t.Helper()
	bk, err := bookingDomain.NewBooking(
		bookingDomain.DomainVehicleRental,
		bookingDomain.Contact{Name: "Kasun Fernando Jayasuriya", Email: "kasun@example.com", Phone: "+94712223344"},
		bookingDomain.Payload{"vehicleId": "v-1", "pickupDate": "2026-11-01", "returnDate": "2026-11-04"},
		decimal.NewFromInt(24000),
		"LKR",
		"",
	)
	require.NoError(t, err)

	fees := paymentDomain.NewPercentageFeeStrategy(decimal.NewFromInt(15), decimal.NewFromInt(15))
	split, err := fees.Split(bk.AmountDue(), paymentDomain.MethodGateway)
	require.NoError(t, err)
	rec, err := paymentDomain.NewPaymentRecord(bk.ID(), paymentDomain.MethodGateway, paymentDomain.TypeFull, bk.AmountDue(), "LKR", split, paymentDomain.MethodFields{})
	require.NoError(t, err)
	return rec, bk
}

func TestMD5Upper(t *testing.T) {
	assert.Equal(t, "D41D8CD98F00B204E9800998ECF8427E", md5Upper(""))
}

func TestCheckout_Redirect(t *testing.T) {
	c := NewCheckout(testConfig())
	rec, bk := testRecord(t)

	redirect, err := c.Checkout(context.Background(), rec, bk)
	require.NoError(t, err)

	assert.Equal(t, sandboxCheckoutURL, redirect.ActionURL)
	assert.Equal(t, "POST", redirect.Method)
	p := redirect.Params
	assert.Equal(t, rec.Reference(), p["order_id"])
	assert.Equal(t, "24000.00", p["amount"])
	assert.Equal(t, "LKR", p["currency"])
	assert.Equal(t, "Kasun", p["first_name"])
	assert.Equal(t, "Fernando Jayasuriya", p["last_name"])
	assert.Equal(t, bk.ID().String(), p["custom_1"])
	assert.Equal(t, c.RequestHash(rec.Reference(), "24000.00", "LKR"), p["hash"])
	assert.Len(t, p["hash"], 32)
}

func TestCheckout_LiveURLAndCredentials(t *testing.T) {
	cfg := testConfig()
	cfg.Sandbox = false
	assert.Equal(t, liveCheckoutURL, NewCheckout(cfg).ActionURL())

	cfg.Secret = ""
	rec, bk := testRecord(t)
	_, err := NewCheckout(cfg).Checkout(context.Background(), rec, bk)
	assert.Error(t, err)
}

func signedNotification(c *Checkout, status string) Notification {
	n := Notification{
		MerchantID: "1221149",
		OrderID:    "PAY-MGX2K1AB-7QZ",
		PaymentID:  "320025071278",
		Amount:     "24000.00",
		Currency:   "LKR",
		StatusCode: status,
	}
	n.MD5Sig = c.NotificationHash(n)
	return n
}

func TestVerify(t *testing.T) {
	c := NewCheckout(testConfig())

	n := signedNotification(c, "2")
	require.NoError(t, c.Verify(n))

	lower := n
	lower.MD5Sig = strings.ToLower(n.MD5Sig)
	assert.NoError(t, c.Verify(lower), "signature comparison ignores case")

	tampered := n
	tampered.Amount = "1.00"
	assert.ErrorIs(t, c.Verify(tampered), ErrInvalidSignature)

	flipped := n
	flipped.StatusCode = "-2"
	assert.ErrorIs(t, c.Verify(flipped), ErrInvalidSignature)

	foreign := n
	foreign.MerchantID = "999"
	assert.ErrorIs(t, c.Verify(foreign), ErrUnknownMerchant)
}

func TestNotification_Outcome(t *testing.T) {
	tests := []struct {
		code string
		want paymentDomain.Outcome
	}{
		{"2", paymentDomain.OutcomeSuccess},
		{"0", paymentDomain.OutcomePending},
		{"-1", paymentDomain.OutcomeCancelled},
		{"-2", paymentDomain.OutcomeFailed},
		{"-3", paymentDomain.OutcomeChargedBack},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			got, err := Notification{StatusCode: tt.code}.Outcome()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := Notification{StatusCode: "7"}.Outcome()
	assert.ErrorIs(t, err, ErrUnknownStatus)
}

func TestNotification_Callback(t *testing.T) {
	c := NewCheckout(testConfig())
	cb, err := signedNotification(c, "2").Callback()
	require.NoError(t, err)

	assert.Equal(t, "PAY-MGX2K1AB-7QZ", cb.Ref)
	assert.Equal(t, "320025071278", cb.TransactionID)
	assert.Equal(t, paymentDomain.OutcomeSuccess, cb.Outcome)
	require.NotNil(t, cb.Amount)
	assert.True(t, cb.Amount.Equal(decimal.NewFromInt(24000)))

	bad := signedNotification(c, "2")
	bad.Amount = "lots"
	_, err = bad.Callback()
	assert.Error(t, err)
}

func TestSplitName(t *testing.T) {
	first, last := splitName("  Madonna ")
	assert.Equal(t, "Madonna", first)
	assert.Empty(t, last)

	first, last = splitName("")
	assert.Empty(t, first)
	assert.Empty(t, last)
}
