package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rechargetravels/service-booking/internal/application"
	"github.com/rechargetravels/service-booking/internal/domain/booking"
	"github.com/rechargetravels/service-booking/internal/events"
	"github.com/rechargetravels/service-booking/internal/repository"
	"github.com/rechargetravels/service-booking/internal/worker"
	"github.com/rechargetravels/service-booking/pkg/auth"
	"github.com/rechargetravels/service-booking/pkg/database"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := env("migrate")
			if err != nil {
				return err
			}
			return database.RunMigrations(cfg.DBConfig.DatabaseURL(), cfg.MigrationsDir, log)
		},
	})

	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, _ := cmd.Flags().GetInt("steps")
			if steps < 1 {
				return fmt.Errorf("--steps must be at least 1")
			}
			cfg, log, err := env("migrate")
			if err != nil {
				return err
			}
			return database.RollbackMigrations(cfg.DBConfig.DatabaseURL(), cfg.MigrationsDir, steps, log)
		},
	}
	down.Flags().Int("steps", 1, "Number of migrations to roll back")
	cmd.AddCommand(down)

	return cmd
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Expire stale processing payments once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := env("sweep")
			if err != nil {
				return err
			}
			db, closeDB, err := connect(cfg, log)
			if err != nil {
				return err
			}
			defer closeDB()

			notifier, closeNotifier, err := events.NewNotifier(cfg, log)
			if err != nil {
				return err
			}
			defer closeNotifier()

			recon := application.NewReconciliationService(
				repository.NewGormBookingRepository(db),
				repository.NewGormPaymentRepository(db),
				repository.NewTransactor(db),
				notifier,
				cfg.Payment.Expiry,
				cfg.Payment.ConflictRetries,
				log,
			)
			n := worker.NewSweeper(recon, cfg.Payment.SweepInterval, log).RunOnce(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "expired %d payment(s)\n", n)
			return nil
		},
	}
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token for the admin API",
		RunE: func(cmd *cobra.Command, args []string) error {
			roleFlag, _ := cmd.Flags().GetString("role")
			subject, _ := cmd.Flags().GetString("subject")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			role := auth.Role(roleFlag)
			if role != auth.RoleAdmin && role != auth.RoleCustomer {
				return fmt.Errorf("unknown role %q", roleFlag)
			}
			userID := uuid.New()
			if subject != "" {
				parsed, err := uuid.Parse(subject)
				if err != nil {
					return fmt.Errorf("invalid --subject: %w", err)
				}
				userID = parsed
			}

			cfg, _, err := env("token")
			if err != nil {
				return err
			}
			if ttl <= 0 {
				ttl = cfg.JWTConfig.AccessTTL
			}
			token, err := auth.NewJWTManager(cfg.JWTConfig.Secret, ttl).GenerateAccessToken(userID, role)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().String("role", string(auth.RoleAdmin), "Token role (admin, customer)")
	cmd.Flags().String("subject", "", "User ID to embed; random when empty")
	cmd.Flags().Duration("ttl", 0, "Token lifetime; defaults to BOOKING_JWT_ACCESS_TTL")

	return cmd
}

func referenceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reference [domain]",
		Short: "Generate sample booking references for a domain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := booking.ParseDomain(args[0])
			if err != nil {
				return err
			}
			count, _ := cmd.Flags().GetInt("count")
			for i := 0; i < count; i++ {
				ref, err := booking.GenerateReference(d.Prefix())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), ref)
			}
			return nil
		},
	}

	cmd.Flags().IntP("count", "n", 1, "Number of references")

	return cmd
}

func purgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge [booking-id]",
		Short: "Permanently delete a cancelled booking",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bookingID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid booking ID: %w", err)
			}

			cfg, log, err := env("purge")
			if err != nil {
				return err
			}
			db, closeDB, err := connect(cfg, log)
			if err != nil {
				return err
			}
			defer closeDB()

			notifier, closeNotifier, err := events.NewNotifier(cfg, log)
			if err != nil {
				return err
			}
			defer closeNotifier()

			svc := application.NewBookingService(
				repository.NewGormBookingRepository(db),
				repository.NewGormPaymentRepository(db),
				repository.NewTransactor(db),
				repository.NewGormCustomerResolver(db),
				notifier,
				application.BookingOptions{
					Currency:          cfg.Payment.Currency,
					ReferenceAttempts: cfg.Payment.ReferenceAttempts,
					ConflictRetries:   cfg.Payment.ConflictRetries,
				},
				log,
			)
			start := time.Now()
			if err := svc.PurgeBooking(cmd.Context(), bookingID); err != nil {
				return err
			}
			log.Info("purge complete", zap.Duration("took", time.Since(start)))
			fmt.Fprintf(cmd.OutOrStdout(), "purged %s\n", bookingID)
			return nil
		},
	}
}
