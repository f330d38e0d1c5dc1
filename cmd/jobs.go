package cmd

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vibast-solutions/ms-go-client-billing/app/repository"
	"github.com/vibast-solutions/ms-go-client-billing/app/service"
	"github.com/vibast-solutions/ms-go-client-billing/config"

	_ "github.com/go-sql-driver/mysql"
)

var (
	expirePeriodsWorker  bool
	overdueIntentsWorker bool
)

var expirePeriodsCmd = &cobra.Command{
	Use:   "expire-periods",
	Short: "Drop the current flag from billing periods past their expiration",
	Run: func(_ *cobra.Command, _ []string) {
		runCommand(
			"expire_periods",
			expirePeriodsWorker,
			func(cfg *config.Config) time.Duration { return cfg.Jobs.PeriodExpirationInterval },
			func(s *service.MaintenanceService, ctx context.Context) error {
				return s.RunPeriodExpirationBatch(ctx)
			},
		)
	},
}

var overdueIntentsCmd = &cobra.Command{
	Use:   "overdue-intents",
	Short: "Mark pending payment intents past their due date as overdue",
	Run: func(_ *cobra.Command, _ []string) {
		runCommand(
			"overdue_intents",
			overdueIntentsWorker,
			func(cfg *config.Config) time.Duration { return cfg.Jobs.OverdueIntentInterval },
			func(s *service.MaintenanceService, ctx context.Context) error {
				return s.RunOverdueIntentBatch(ctx)
			},
		)
	},
}

func init() {
	rootCmd.AddCommand(expirePeriodsCmd)
	rootCmd.AddCommand(overdueIntentsCmd)

	expirePeriodsCmd.Flags().BoolVar(&expirePeriodsWorker, "worker", false, "Run continuously using configured interval")
	overdueIntentsCmd.Flags().BoolVar(&overdueIntentsWorker, "worker", false, "Run continuously using configured interval")
}

func runCommand(
	name string,
	worker bool,
	intervalResolver func(cfg *config.Config) time.Duration,
	fn func(s *service.MaintenanceService, ctx context.Context) error,
) {
	cfg, maintenanceService, cleanup := mustCreateMaintenanceService()
	defer cleanup()

	if worker {
		runWorker(name, intervalResolver(cfg), maintenanceService, fn)
		return
	}

	ctx := context.Background()
	runJob(name, func() error { return fn(maintenanceService, ctx) })
}

func runWorker(
	name string,
	interval time.Duration,
	maintenanceService *service.MaintenanceService,
	fn func(s *service.MaintenanceService, ctx context.Context) error,
) {
	if interval <= 0 {
		logrus.WithField("job", name).Fatal("invalid worker interval")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runJob(name, func() error { return fn(maintenanceService, ctx) })

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	for {
		select {
		case <-quit:
			logrus.WithField("job", name).Info("Worker shutdown requested")
			return
		case <-ticker.C:
			runJob(name, func() error { return fn(maintenanceService, ctx) })
		}
	}
}

func mustCreateMaintenanceService() (*config.Config, *service.MaintenanceService, func()) {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}

	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		logrus.WithError(err).Fatal("Failed to ping database")
	}

	periodRepo := repository.NewPeriodRepository(db)
	intentRepo := repository.NewPaymentIntentRepository(db)
	maintenanceService := service.NewMaintenanceService(periodRepo, intentRepo)

	cleanup := func() {
		if err := db.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close database")
		}
	}

	return cfg, maintenanceService, cleanup
}

func runJob(name string, fn func() error) {
	start := time.Now()
	err := fn()
	latency := time.Since(start)
	if err != nil {
		logrus.WithError(err).WithField("job", name).WithField("latency", latency.String()).Error("job_failed")
		return
	}
	logrus.WithField("job", name).WithField("latency", latency.String()).Info("job_completed")
}
