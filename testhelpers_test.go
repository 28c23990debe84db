//go:build integration

package main_test

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkamodule "github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/rechargetravels/service-booking/internal/application"
	"github.com/rechargetravels/service-booking/internal/config"
	paymentDomain "github.com/rechargetravels/service-booking/internal/domain/payment"
	bookingEvents "github.com/rechargetravels/service-booking/internal/events"
	"github.com/rechargetravels/service-booking/internal/gateway"
	"github.com/rechargetravels/service-booking/internal/repository"
	"github.com/rechargetravels/service-booking/pkg/database"
	"github.com/rechargetravels/service-booking/pkg/kafka"
)

const (
	testMerchant = "1221149"
	testSecret   = "integration-secret"
)

// testInfra holds shared test infrastructure.
type testInfra struct {
	DB           *gorm.DB
	DBConfig     database.PostgresConfig
	KafkaBrokers []string
	Cleanup      func()
}

// bookingStack holds wired-up service components.
type bookingStack struct {
	Bookings        *application.BookingService
	Payments        *application.PaymentService
	Recon           *application.ReconciliationService
	Checkout        *gateway.Checkout
	Consumer        *bookingEvents.GatewayCallbackConsumer
	CleanupProducer func()
}

// setupContainers starts PostgreSQL and Kafka testcontainers, applies the SQL
// migrations and returns a connected GORM DB.
func setupContainers(t *testing.T) *testInfra {
	t.Helper()
	ctx := context.Background()
	logger := zap.NewNop()

	pgReq := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "test_booking",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: pgReq,
		Started:          true,
	})
	require.NoError(t, err, "failed to start PostgreSQL container")

	pgHost, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	pgPort, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dbCfg := database.PostgresConfig{
		Host:     pgHost,
		Port:     pgPort.Port(),
		User:     "test",
		Password: "test",
		DBName:   "test_booking",
		SSLMode:  "disable",
	}

	// Poll until GORM can actually connect and ping.
	var db *gorm.DB
	require.Eventually(t, func() bool {
		var err error
		db, err = database.Connect(dbCfg, logger)
		return err == nil
	}, 30*time.Second, 1*time.Second, "PostgreSQL not ready for connections")

	require.NoError(t, database.RunMigrations(dbCfg.DatabaseURL(), "migrations", logger))

	// Start Kafka container using confluent-local (supports KRaft natively).
	kafkaContainer, err := kafkamodule.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err, "failed to start Kafka container")

	kafkaBrokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err, "failed to get Kafka brokers")

	createTopics(t, kafkaBrokers,
		bookingEvents.TopicBookingEvents,
		bookingEvents.TopicPaymentEvents,
		bookingEvents.TopicGatewayCallbacks,
	)

	cleanup := func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Kafka container: %v", err)
		}
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate PostgreSQL container: %v", err)
		}
	}

	return &testInfra{
		DB:           db,
		DBConfig:     dbCfg,
		KafkaBrokers: kafkaBrokers,
		Cleanup:      cleanup,
	}
}

// setupBookingStack wires the services against Postgres with Kafka notifications.
func setupBookingStack(t *testing.T, db *gorm.DB, brokers []string) *bookingStack {
	t.Helper()
	logger, _ := zap.NewDevelopment()

	bookingRepo := repository.NewGormBookingRepository(db)
	paymentRepo := repository.NewGormPaymentRepository(db)
	tx := repository.NewTransactor(db)
	producer := kafka.NewProducer(brokers, logger)
	notifier := bookingEvents.NewKafkaNotifier(producer, logger)
	checkout := gateway.NewCheckout(config.GatewayConfig{
		MerchantID: testMerchant,
		Secret:     testSecret,
		Sandbox:    true,
	})

	bookings := application.NewBookingService(bookingRepo, paymentRepo, tx, repository.NewGormCustomerResolver(db), notifier,
		application.BookingOptions{ReferenceAttempts: 5, ConflictRetries: 5}, logger)
	payments := application.NewPaymentService(bookingRepo, paymentRepo, repository.NewGormProofRepository(db), checkout, tx, notifier,
		application.PaymentPolicy{
			Fees:            paymentDomain.NewPercentageFeeStrategy(decimal.NewFromInt(15), decimal.NewFromInt(15)),
			DepositPercent:  decimal.NewFromInt(30),
			MinimumAmount:   decimal.NewFromInt(1),
			ConflictRetries: 5,
		}, logger)
	recon := application.NewReconciliationService(bookingRepo, paymentRepo, tx, notifier, 24*time.Hour, 5, logger)

	groupID := fmt.Sprintf("test-callbacks-%s", uuid.New().String()[:8])
	consumer := bookingEvents.NewGatewayCallbackConsumer(brokers, groupID, checkout, recon, logger)

	return &bookingStack{
		Bookings:        bookings,
		Payments:        payments,
		Recon:           recon,
		Checkout:        checkout,
		Consumer:        consumer,
		CleanupProducer: func() { _ = producer.Close() },
	}
}

func trainBooking(amount string) application.CreateBookingRequest {
	return application.CreateBookingRequest{
		Domain: "train",
		Contact: application.ContactDTO{
			Name:  "Kasun Silva",
			Email: "kasun@example.com",
			Phone: "+94712345678",
		},
		Payload: map[string]any{
			"routeId":          "colombo-badulla",
			"departureStation": "Colombo Fort",
			"arrivalStation":   "Ella",
			"travelDate":       "2026-12-20",
			"passengers":       3,
			"ticketClass":      "second",
		},
		AmountDue: decimal.RequireFromString(amount),
	}
}

// publishTestEvent publishes a CloudEvent to Kafka.
func publishTestEvent(t *testing.T, brokers []string, topic, source, eventType string, data any) {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	producer := kafka.NewProducer(brokers, logger)
	defer func() { _ = producer.Close() }()

	ce, err := kafka.NewCloudEvent(source, eventType, data)
	require.NoError(t, err, "failed to create cloud event")

	err = producer.PublishEvent(context.Background(), topic, ce)
	require.NoError(t, err, "failed to publish event")
}

// waitForBookingStatus polls the bookings table until the status matches.
func waitForBookingStatus(t *testing.T, db *gorm.DB, bookingID uuid.UUID, expectedStatus string, timeout time.Duration) repository.BookingModel {
	t.Helper()
	var result repository.BookingModel
	require.Eventually(t, func() bool {
		var model repository.BookingModel
		err := db.Where("id = ?", bookingID).First(&model).Error
		if err != nil {
			return false
		}
		if model.Status == expectedStatus {
			result = model
			return true
		}
		return false
	}, timeout, 200*time.Millisecond, "booking did not transition to %s", expectedStatus)
	return result
}

// consumeOneEvent reads from a Kafka topic until it finds an event of the
// expected type for the given subject.
func consumeOneEvent(t *testing.T, brokers []string, topic, expectedType, subject string, timeout time.Duration) kafka.CloudEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	groupID := fmt.Sprintf("test-assert-%s", uuid.New().String()[:8])
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafkago.FirstOffset,
	})
	defer func() { _ = reader.Close() }()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				t.Fatalf("timed out waiting for event type %q on topic %q", expectedType, topic)
			}
			continue
		}
		ce, err := kafka.ParseCloudEvent(msg.Value)
		if err != nil {
			continue
		}
		if ce.Type == expectedType && ce.Subject == subject {
			return ce
		}
	}
}

// createTopics pre-creates Kafka topics so producers don't fail with "Unknown Topic".
func createTopics(t *testing.T, brokers []string, topics ...string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", brokers[0])
	require.NoError(t, err, "failed to dial Kafka for topic creation")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err, "failed to get Kafka controller")

	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, fmt.Sprintf("%d", controller.Port)))
	require.NoError(t, err, "failed to connect to Kafka controller")
	defer controllerConn.Close()

	topicConfigs := make([]kafkago.TopicConfig, len(topics))
	for i, topic := range topics {
		topicConfigs[i] = kafkago.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		}
	}
	err = controllerConn.CreateTopics(topicConfigs...)
	require.NoError(t, err, "failed to create Kafka topics")

	// Give Kafka a moment to propagate topic metadata.
	time.Sleep(1 * time.Second)
}
