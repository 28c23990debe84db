// Package gateway builds hosted-checkout redirects for online payments and
// authenticates the gateway's server-to-server notifications.
package gateway

import (
	"context"
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rechargetravels/service-booking/internal/application"
	"github.com/rechargetravels/service-booking/internal/config"
	bookingDomain "github.com/rechargetravels/service-booking/internal/domain/booking"
	paymentDomain "github.com/rechargetravels/service-booking/internal/domain/payment"
)

const (
	liveCheckoutURL    = "https://www.payhere.lk/pay/checkout"
	sandboxCheckoutURL = "https://sandbox.payhere.lk/pay/checkout"
)

var (
	ErrInvalidSignature = errors.New("gateway notification signature mismatch")
	ErrUnknownMerchant  = errors.New("gateway notification for another merchant")
	ErrUnknownStatus    = errors.New("unknown gateway status code")
)

// Checkout signs hosted-checkout requests for one merchant account.
type Checkout struct {
	cfg config.GatewayConfig
}

// NewCheckout creates a new Checkout.
func NewCheckout(cfg config.GatewayConfig) *Checkout {
	return &Checkout{cfg: cfg}
}

// ActionURL is the hosted checkout page the customer's browser posts to.
func (c *Checkout) ActionURL() string {
	if c.cfg.Sandbox {
		return sandboxCheckoutURL
	}
	return liveCheckoutURL
}

// Checkout builds the redirect descriptor for a gateway payment. The payment
// reference is the order id the gateway echoes back in its notification.
func (c *Checkout) Checkout(_ context.Context, rec *paymentDomain.PaymentRecord, bk *bookingDomain.Booking) (*paymentDomain.Redirect, error) {
	if c.cfg.MerchantID == "" || c.cfg.Secret == "" {
		return nil, errors.New("gateway merchant credentials are not configured")
	}

	amount := FormatAmount(rec.Amount())
	first, last := splitName(bk.Contact().Name)

	return &paymentDomain.Redirect{
		ActionURL: c.ActionURL(),
		Method:    "POST",
		Params: map[string]string{
			"merchant_id": c.cfg.MerchantID,
			"return_url":  c.cfg.ReturnURL,
			"cancel_url":  c.cfg.CancelURL,
			"notify_url":  c.cfg.NotifyURL,
			"order_id":    rec.Reference(),
			"items":       fmt.Sprintf("%s booking %s", bk.Domain(), bk.Reference()),
			"currency":    rec.Currency(),
			"amount":      amount,
			"first_name":  first,
			"last_name":   last,
			"email":       bk.Contact().Email,
			"phone":       bk.Contact().Phone,
			"address":     "",
			"city":        "Colombo",
			"country":     "Sri Lanka",
			"custom_1":    bk.ID().String(),
			"custom_2":    string(rec.PaymentType()),
			"hash":        c.RequestHash(rec.Reference(), amount, rec.Currency()),
		},
	}, nil
}

// RequestHash is UPPER(MD5(merchant + order + amount + currency + UPPER(MD5(secret)))).
func (c *Checkout) RequestHash(orderID, amount, currency string) string {
	return md5Upper(c.cfg.MerchantID + orderID + amount + currency + md5Upper(c.cfg.Secret))
}

// NotificationHash is the signature the gateway puts on a notification.
func (c *Checkout) NotificationHash(n Notification) string {
	return md5Upper(n.MerchantID + n.OrderID + n.Amount + n.Currency + n.StatusCode + md5Upper(c.cfg.Secret))
}

// Verify authenticates a notification.
func (c *Checkout) Verify(n Notification) error {
	if n.MerchantID != c.cfg.MerchantID {
		return ErrUnknownMerchant
	}
	expected := c.NotificationHash(n)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToUpper(n.MD5Sig))) != 1 {
		return ErrInvalidSignature
	}
	return nil
}

// Notification is the gateway's server-to-server payment notification. It
// arrives form-encoded on the webhook and as JSON on the callback topic.
type Notification struct {
	MerchantID    string `form:"merchant_id" json:"merchant_id" binding:"required"`
	OrderID       string `form:"order_id" json:"order_id" binding:"required"`
	PaymentID     string `form:"payment_id" json:"payment_id"`
	Amount        string `form:"payhere_amount" json:"payhere_amount" binding:"required"`
	Currency      string `form:"payhere_currency" json:"payhere_currency" binding:"required"`
	StatusCode    string `form:"status_code" json:"status_code" binding:"required"`
	MD5Sig        string `form:"md5sig" json:"md5sig" binding:"required"`
	StatusMessage string `form:"status_message" json:"status_message"`
	Method        string `form:"method" json:"method"`
}

// Outcome maps the gateway status code.
func (n Notification) Outcome() (paymentDomain.Outcome, error) {
	switch strings.TrimSpace(n.StatusCode) {
	case "2":
		return paymentDomain.OutcomeSuccess, nil
	case "0":
		return paymentDomain.OutcomePending, nil
	case "-1":
		return paymentDomain.OutcomeCancelled, nil
	case "-2":
		return paymentDomain.OutcomeFailed, nil
	case "-3":
		return paymentDomain.OutcomeChargedBack, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, n.StatusCode)
}

// Callback converts a verified notification into a reconciliation input.
func (n Notification) Callback() (application.GatewayCallback, error) {
	outcome, err := n.Outcome()
	if err != nil {
		return application.GatewayCallback{}, err
	}
	amount, err := decimal.NewFromString(n.Amount)
	if err != nil {
		return application.GatewayCallback{}, fmt.Errorf("invalid notification amount %q: %w", n.Amount, err)
	}
	return application.GatewayCallback{
		Ref:           n.OrderID,
		TransactionID: n.PaymentID,
		Outcome:       outcome,
		Amount:        &amount,
		Currency:      n.Currency,
	}, nil
}

// FormatAmount renders an amount the way the gateway signs it.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func md5Upper(s string) string {
	sum := md5.Sum([]byte(s))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

func splitName(full string) (string, string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}
