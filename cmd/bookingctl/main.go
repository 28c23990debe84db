// Command bookingctl is the operator tool for the booking service: schema
// migrations, one-off expiry sweeps, admin tokens and booking purges.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/rechargetravels/service-booking/internal/config"
	"github.com/rechargetravels/service-booking/pkg/database"
	"github.com/rechargetravels/service-booking/pkg/logger"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "bookingctl",
		Short:         "Operator tool for the booking and payment service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(referenceCmd())
	rootCmd.AddCommand(purgeCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

// env loads the service configuration and a logger named after the command.
func env(name string) (*config.ServiceConfig, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.NewNamed(cfg.AppEnv, "bookingctl."+name)
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}
	return cfg, log, nil
}

func connect(cfg *config.ServiceConfig, log *zap.Logger) (*gorm.DB, func(), error) {
	db, err := database.Connect(cfg.DBConfig, log)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return db, closeDB, nil
}
