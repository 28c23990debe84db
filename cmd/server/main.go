package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rechargetravels/service-booking/internal/application"
	"github.com/rechargetravels/service-booking/internal/config"
	paymentDomain "github.com/rechargetravels/service-booking/internal/domain/payment"
	"github.com/rechargetravels/service-booking/internal/events"
	"github.com/rechargetravels/service-booking/internal/gateway"
	"github.com/rechargetravels/service-booking/internal/handler"
	"github.com/rechargetravels/service-booking/internal/repository"
	"github.com/rechargetravels/service-booking/internal/worker"
	"github.com/rechargetravels/service-booking/pkg/auth"
	"github.com/rechargetravels/service-booking/pkg/database"
	"github.com/rechargetravels/service-booking/pkg/health"
	"github.com/rechargetravels/service-booking/pkg/logger"
	"github.com/rechargetravels/service-booking/pkg/middleware"
	"github.com/rechargetravels/service-booking/pkg/tracing"
)

const (
	serviceName    = "service-booking"
	serviceVersion = "1.0.0"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewNamed(cfg.AppEnv, serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting service-booking",
		zap.String("port", cfg.Port),
		zap.String("env", cfg.AppEnv),
		zap.String("notify_transport", cfg.NotifyTransport),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.Init(ctx, serviceName, serviceVersion, cfg.AppEnv, cfg.OTelEndpoint)
	if err != nil {
		log.Fatal("failed to initialize tracing", zap.Error(err))
	}

	// Connect to database
	db, err := database.Connect(cfg.DBConfig, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	// Run database migrations
	if cfg.IsDevelopment() {
		if err := db.AutoMigrate(repository.Models()...); err != nil {
			log.Fatal("failed to run auto-migration", zap.Error(err))
		}
		log.Info("database migration completed (dev auto-migrate)")
	} else {
		if err := database.RunMigrations(cfg.DBConfig.DatabaseURL(), cfg.MigrationsDir, log); err != nil {
			log.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	jwtManager := auth.NewJWTManager(cfg.JWTConfig.Secret, cfg.JWTConfig.AccessTTL)

	notifier, closeNotifier, err := events.NewNotifier(cfg, log)
	if err != nil {
		log.Fatal("failed to initialize notifier", zap.Error(err))
	}
	defer closeNotifier()

	// Initialize repositories
	bookingRepo := repository.NewGormBookingRepository(db)
	paymentRepo := repository.NewGormPaymentRepository(db)
	proofRepo := repository.NewGormProofRepository(db)
	customers := repository.NewGormCustomerResolver(db)
	tx := repository.NewTransactor(db)

	checkout := gateway.NewCheckout(cfg.Gateway)

	// Initialize application services
	bookingService := application.NewBookingService(
		bookingRepo,
		paymentRepo,
		tx,
		customers,
		notifier,
		application.BookingOptions{
			Currency:          cfg.Payment.Currency,
			ReferenceAttempts: cfg.Payment.ReferenceAttempts,
			ConflictRetries:   cfg.Payment.ConflictRetries,
		},
		log,
	)
	paymentService := application.NewPaymentService(
		bookingRepo,
		paymentRepo,
		proofRepo,
		checkout,
		tx,
		notifier,
		application.PaymentPolicy{
			Fees:            paymentDomain.NewPercentageFeeStrategy(cfg.Payment.PlatformFeePercent, cfg.Payment.CashFeePercent),
			DepositPercent:  cfg.Payment.DepositPercent,
			MinimumAmount:   cfg.Payment.MinimumAmount,
			ConflictRetries: cfg.Payment.ConflictRetries,
			Bank: application.BankAccount{
				BankName:      cfg.Bank.BankName,
				AccountName:   cfg.Bank.AccountName,
				AccountNumber: cfg.Bank.AccountNumber,
				Branch:        cfg.Bank.Branch,
				SwiftCode:     cfg.Bank.SwiftCode,
			},
		},
		log,
	)
	reconService := application.NewReconciliationService(
		bookingRepo,
		paymentRepo,
		tx,
		notifier,
		cfg.Payment.Expiry,
		cfg.Payment.ConflictRetries,
		log,
	)

	// Gateway callbacks relayed through Kafka
	if cfg.NotifyTransport == config.TransportKafka {
		groupID := cfg.KafkaConfig.GroupPrefix + "-gateway-callbacks"
		callbackConsumer := events.NewGatewayCallbackConsumer(
			cfg.KafkaConfig.Brokers,
			groupID,
			checkout,
			reconService,
			log,
		)
		defer func() { _ = callbackConsumer.Close() }()

		go func() {
			log.Info("starting gateway callback consumer")
			if err := callbackConsumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("gateway callback consumer error", zap.Error(err))
			}
		}()
	}

	// Expire abandoned gateway and bank transfer payments
	sweeper := worker.NewSweeper(reconService, cfg.Payment.SweepInterval, log)
	go sweeper.Run(ctx)

	// Setup Gin router
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Apply global middleware
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.LoggerMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))
	router.Use(middleware.SecurityHeadersMiddleware())

	// Register health check routes
	health.NewHandler(db, serviceName).RegisterRoutes(router)

	// Register routes
	handler.NewBookingHandler(bookingService, paymentService).RegisterRoutes(&router.RouterGroup)
	handler.NewGatewayHandler(checkout, reconService, log).RegisterRoutes(&router.RouterGroup)
	handler.NewAdminHandler(bookingService, paymentService, reconService).RegisterRoutes(&router.RouterGroup, jwtManager)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info("HTTP server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down service-booking...")

	// Stop the consumer and sweeper
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server forced shutdown", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warn("tracer shutdown failed", zap.Error(err))
	}

	log.Info("service-booking stopped")
}
