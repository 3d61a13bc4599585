package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vfarias/evapay/internal"
	"github.com/vfarias/evapay/internal/billing"
	"github.com/vfarias/evapay/internal/handler"
	"github.com/vfarias/evapay/internal/metrics"
	"github.com/vfarias/evapay/internal/middleware"
	"github.com/vfarias/evapay/internal/repository"
	"github.com/vfarias/evapay/internal/service"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize database connection
	db, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	// Run migrations
	if err := internal.RunMigrations(db); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database ready")

	// Initialize repository
	repo := repository.New(db)

	// Initialize the Stripe client once for the process lifetime and
	// inject it into each component.
	billingService := billing.NewStripeService(cfg.StripeSecretKey, cfg.StripeWebhookSecret)

	// Initialize services
	checkoutService := service.NewCheckoutService(billingService, logger)
	entitlementService := service.NewEntitlementService(repo, logger)

	// Initialize handlers
	checkoutHandler := handler.NewCheckoutHandler(checkoutService, logger)
	webhookHandler := handler.NewWebhookHandler(billingService, entitlementService, logger)
	entitlementHandler := handler.NewEntitlementHandler(entitlementService, logger)

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Metrics (optionally behind basic auth)
	metricsAuth := middleware.NewMetricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword)
	mux.Handle("GET /metrics", metricsAuth.Handler(promhttp.Handler()))

	// Checkout creation is public and creates provider-side objects, so
	// it sits behind a per-IP rate limit.
	checkoutLimiter := middleware.NewRateLimiter(30, time.Minute, logger)
	checkoutLimit := middleware.NewRateLimitMiddleware(checkoutLimiter, logger)
	checkoutMux := http.NewServeMux()
	checkoutHandler.RegisterRoutes(checkoutMux)
	mux.Handle("/api/payment-intent", checkoutLimit.Limit(checkoutMux))

	// Entitlement reads
	entitlementHandler.RegisterRoutes(mux)

	// Stripe webhooks (public; authenticated by signature)
	webhookHandler.RegisterRoutes(mux)

	// Wrap the full mux with request logging and metrics
	loggingMw := middleware.NewRequestLoggingMiddleware(logger)
	root := loggingMw.Handler(metrics.Middleware(mux))

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: root,
	}

	// Channel to listen for interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
		}
	}()

	// Wait for interrupt signal
	<-sigChan
	logger.Info("Shutdown signal received, initiating graceful shutdown...")

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	logger.Info("Graceful shutdown complete")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
