//go:build integration

package main_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rechargetravels/service-booking/internal/application"
	paymentDomain "github.com/rechargetravels/service-booking/internal/domain/payment"
	bookingEvents "github.com/rechargetravels/service-booking/internal/events"
	"github.com/rechargetravels/service-booking/internal/gateway"
	"github.com/rechargetravels/service-booking/internal/repository"
	"github.com/rechargetravels/service-booking/pkg/database"
	"github.com/rechargetravels/service-booking/pkg/domain"
)

// TestGatewayCallbackTopic_ConfirmsBooking verifies that a signed gateway
// notification relayed onto payment.gateway.callbacks settles the payment,
// confirms the booking and announces both on the outbound topics.
func TestGatewayCallbackTopic_ConfirmsBooking(t *testing.T) {
	infra := setupContainers(t)
	defer infra.Cleanup()

	stack := setupBookingStack(t, infra.DB, infra.KafkaBrokers)
	defer stack.CleanupProducer()
	defer func() { _ = stack.Consumer.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bk, err := stack.Bookings.CreateBooking(ctx, trainBooking("7500.50"))
	require.NoError(t, err)
	res, err := stack.Payments.CreatePayment(ctx, bk.ID, application.CreatePaymentRequest{
		Method: "gateway",
		Amount: decimal.RequireFromString("7500.50"),
	})
	require.NoError(t, err)
	require.NotNil(t, res.Redirect)

	go func() { _ = stack.Consumer.Start(ctx) }()
	time.Sleep(3 * time.Second) // Wait for consumer group join.

	n := gateway.Notification{
		MerchantID: testMerchant,
		OrderID:    res.Payment.Reference,
		PaymentID:  "320025999001",
		Amount:     "7500.50",
		Currency:   "LKR",
		StatusCode: "2",
	}
	n.MD5Sig = stack.Checkout.NotificationHash(n)
	publishTestEvent(t, infra.KafkaBrokers, bookingEvents.TopicGatewayCallbacks,
		"payment-edge", bookingEvents.GatewayNotificationType, n)

	model := waitForBookingStatus(t, infra.DB, bk.ID, "confirmed", 15*time.Second)
	assert.NotNil(t, model.ConfirmedAt)

	pay, err := stack.Payments.GetPayment(ctx, res.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, "paid", pay.Status)
	assert.Equal(t, "320025999001", pay.MethodFields.ExternalTransactionID)
	assert.True(t, pay.PlatformFee.Add(pay.OwnerPayout).Equal(pay.Amount))

	ce := consumeOneEvent(t, infra.KafkaBrokers, bookingEvents.TopicBookingEvents,
		application.EventBookingConfirmed, bk.ID.String(), 15*time.Second)
	var confirmed application.Notification
	require.NoError(t, ce.ParseData(&confirmed))
	assert.Equal(t, bk.Reference, confirmed.Reference)

	ce = consumeOneEvent(t, infra.KafkaBrokers, bookingEvents.TopicPaymentEvents,
		application.EventPaymentPaid, bk.ID.String(), 15*time.Second)
	var paid application.Notification
	require.NoError(t, ce.ParseData(&paid))
	require.NotNil(t, paid.PaymentID)
	assert.Equal(t, res.Payment.ID, *paid.PaymentID)
}

// TestConcurrentCallbacks_SingleDecision races duplicate callbacks against
// Postgres row versions: exactly one settles the payment.
func TestConcurrentCallbacks_SingleDecision(t *testing.T) {
	infra := setupContainers(t)
	defer infra.Cleanup()

	stack := setupBookingStack(t, infra.DB, infra.KafkaBrokers)
	defer stack.CleanupProducer()
	ctx := context.Background()

	bk, err := stack.Bookings.CreateBooking(ctx, trainBooking("4200"))
	require.NoError(t, err)
	res, err := stack.Payments.CreatePayment(ctx, bk.ID, application.CreatePaymentRequest{
		Method: "gateway",
		Amount: decimal.NewFromInt(4200),
	})
	require.NoError(t, err)

	amount := decimal.NewFromInt(4200)
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := stack.Recon.ApplyGatewayCallback(ctx, application.GatewayCallback{
				Ref:           res.Payment.Reference,
				TransactionID: "320025999002",
				Outcome:       paymentDomain.OutcomeSuccess,
				Amount:        &amount,
				Currency:      "LKR",
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			assert.True(t, domain.IsConflict(err), "only version conflicts may surface: %v", err)
		}
	}

	pay, err := stack.Payments.GetPayment(ctx, res.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, "paid", pay.Status)
	waitForBookingStatus(t, infra.DB, bk.ID, "confirmed", 5*time.Second)

	var settled int64
	require.NoError(t, infra.DB.Model(&repository.PaymentModel{}).
		Where("booking_id = ? AND status = ?", bk.ID, "paid").
		Count(&settled).Error)
	assert.EqualValues(t, 1, settled)
}

// TestMigrations_RoundTrip rolls the schema back and re-applies it.
func TestMigrations_RoundTrip(t *testing.T) {
	infra := setupContainers(t)
	defer infra.Cleanup()
	logger := zap.NewNop()
	url := infra.DBConfig.DatabaseURL()

	require.NoError(t, database.RollbackMigrations(url, "migrations", 1, logger))
	assert.False(t, infra.DB.Migrator().HasTable("bookings"))

	require.NoError(t, database.RunMigrations(url, "migrations", logger))
	for _, table := range []string{"bookings", "payments", "payment_proofs", "customers"} {
		assert.True(t, infra.DB.Migrator().HasTable(table), table)
	}
	assert.True(t, infra.DB.Migrator().HasIndex(&repository.BookingModel{}, "idx_bookings_domain_reference"))
}
