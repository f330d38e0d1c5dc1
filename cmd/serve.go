package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/vibast-solutions/ms-go-client-billing/app/controller"
	"github.com/vibast-solutions/ms-go-client-billing/app/gateway"
	"github.com/vibast-solutions/ms-go-client-billing/app/reconcile"
	"github.com/vibast-solutions/ms-go-client-billing/app/repository"
	"github.com/vibast-solutions/ms-go-client-billing/app/service"
	"github.com/vibast-solutions/ms-go-client-billing/config"

	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  "Start the HTTP (Echo) server for the client billing service.",
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) {
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
	defer db.Close()

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		logrus.WithError(err).Fatal("Failed to ping database")
	}

	planRepo := repository.NewPlanRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	periodRepo := repository.NewPeriodRepository(db)
	intentRepo := repository.NewPaymentIntentRepository(db)

	ledgerService := service.NewLedgerService(planRepo, enrollmentRepo, periodRepo, intentRepo)
	catalogService := service.NewCatalogService(planRepo, ledgerService)
	registryService := service.NewRegistryService(intentRepo)
	gatewayService := gateway.NewHTTPService(cfg.Gateway.BaseURL, cfg.Gateway.APIKey, cfg.Gateway.Timeout)
	watcher := reconcile.NewWatcher(intentRepo, ledgerService, cfg.Billing.PollInterval, cfg.Billing.PollMaxAttempts)
	orchestratorService := service.NewOrchestratorService(
		planRepo, enrollmentRepo, periodRepo, intentRepo,
		ledgerService, registryService, gatewayService, watcher, cfg.Billing,
	)
	callbackService := service.NewCallbackService(intentRepo, periodRepo, ledgerService)
	billingController := controller.NewBillingController(
		catalogService, ledgerService, registryService, orchestratorService, callbackService,
	)

	e := setupHTTPServer(billingController, cfg.App.APIKey)

	go func() {
		httpAddr := net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port)
		logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
		if err := e.Start(httpAddr); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("HTTP shutdown error")
	}
	watcher.Shutdown()

	logrus.Info("Server stopped")
}

func setupHTTPServer(billingController *controller.BillingController, apiKey string) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogRequestID: true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"remote_ip":  v.RemoteIP,
				"host":       v.Host,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"latency_ns": v.Latency.Nanoseconds(),
				"user_agent": v.UserAgent,
			}
			entry := logrus.WithFields(fields)
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("http_request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(echomiddleware.RequestIDWithConfig(echomiddleware.RequestIDConfig{
		Generator: func() string {
			return fmt.Sprintf("rest-%s", uuid.New().String())
		},
	}))
	e.Use(requireAPIKey(apiKey))

	e.GET("/health", billingController.Health)

	plans := e.Group("/plans")
	plans.GET("", billingController.ListPlans)
	plans.GET("/eligible", billingController.ListEligiblePlans)

	clients := e.Group("/clients/:client_id")
	clients.GET("/period", billingController.GetCurrentPeriod)
	clients.GET("/periods/reactivatable", billingController.ListReactivatablePeriods)
	clients.GET("/payments/pending", billingController.ListPendingPayments)
	clients.POST("/plan", billingController.SelectPlan)
	clients.POST("/periods/:id/reactivate", billingController.ReactivatePeriod)

	webhooks := e.Group("/webhooks")
	webhooks.POST("/payment-callback", billingController.PaymentCallback)

	return e
}

// requireAPIKey gates every route except the health probe behind the
// shared service key. An empty configured key disables the check.
func requireAPIKey(apiKey string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if apiKey == "" || ctx.Path() == "/health" {
				return next(ctx)
			}
			if ctx.Request().Header.Get("X-API-Key") != apiKey {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid api key")
			}
			return next(ctx)
		}
	}
}
