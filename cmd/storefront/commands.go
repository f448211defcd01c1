package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/mytheresa/storefront/app/server"
	"github.com/mytheresa/storefront/config"
	"github.com/mytheresa/storefront/database"
	"github.com/mytheresa/storefront/models"
)

var (
	migrateOnStart bool

	adminEmail    string
	adminPassword string
	staffEmail    string
	staffPassword string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE:  runMigrate,
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load demo catalog data and back-office accounts into an empty database",
	RunE:  runSeed,
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, seedCmd)

	serveCmd.Flags().BoolVar(&migrateOnStart, "migrate", false, "Run schema migration before serving")

	seedCmd.Flags().StringVar(&adminEmail, "admin-email", "admin@example.com", "Email of the seeded admin")
	seedCmd.Flags().StringVar(&adminPassword, "admin-password", "", "Password of the seeded admin (required)")
	seedCmd.Flags().StringVar(&staffEmail, "staff-email", "cashier@example.com", "Email of the seeded cashier")
	seedCmd.Flags().StringVar(&staffPassword, "staff-password", "", "Password of the seeded cashier, skipped when empty")
	_ = seedCmd.MarkFlagRequired("admin-password")
}

// bootstrap loads configuration, builds the logger and opens the database.
func bootstrap() (*config.Config, *logrus.Logger, *gorm.DB, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger := cfg.NewLogger()
	db, err := database.Open(cfg, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, logger, db, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, db, err := bootstrap()
	if err != nil {
		return err
	}
	defer database.Close(db)

	if migrateOnStart {
		if err := database.Migrate(db); err != nil {
			return err
		}
		logger.Info("schema migrated")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.New(cfg, logger, db).Run(ctx); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	_, logger, db, err := bootstrap()
	if err != nil {
		return err
	}
	defer database.Close(db)

	if err := database.Migrate(db); err != nil {
		return err
	}
	logger.Info("schema migrated")
	return nil
}

func runSeed(cmd *cobra.Command, args []string) error {
	_, logger, db, err := bootstrap()
	if err != nil {
		return err
	}
	defer database.Close(db)

	accounts := []database.Account{{Name: "Administrator", Email: adminEmail, Password: adminPassword, Role: models.RoleAdmin}}
	if staffPassword != "" {
		accounts = append(accounts, database.Account{Name: "Cashier", Email: staffEmail, Password: staffPassword, Role: models.RoleStaff})
	}

	seeded, err := database.Seed(cmd.Context(), db, accounts...)
	if err != nil {
		return err
	}
	if !seeded {
		logger.Warn("database already has users, nothing seeded")
		return nil
	}
	logger.WithField("admin_email", adminEmail).Info("database seeded")
	return nil
}
