package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/crewflow/crewflow-platform/internal/payroll"
	"github.com/crewflow/crewflow-platform/internal/services"
	"github.com/crewflow/crewflow-platform/pkg/actor"
	"github.com/crewflow/crewflow-platform/pkg/config"
	"github.com/crewflow/crewflow-platform/pkg/database"
	"github.com/crewflow/crewflow-platform/pkg/gatewayclient"
	"github.com/crewflow/crewflow-platform/pkg/httputil"
	"github.com/crewflow/crewflow-platform/pkg/logger"
	"github.com/crewflow/crewflow-platform/pkg/messaging"
	"github.com/crewflow/crewflow-platform/pkg/tenant"
)

func main() {
	// Load configuration
	cfg, err := config.Load("payroll-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New("payroll-service", cfg.Server.Environment)
	log.Info().Msg("starting Payroll Service")

	// Connect to database
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Connect to RabbitMQ
	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	// Initialize event publisher
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangePayrollEvents, "payroll-service", log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}

	// Tenant resolution: in-memory first, file store as the persistent
	// fallback so a restart keeps the last known tenant
	resolver := tenant.NewResolver(log,
		tenant.NewMemoryStore(),
		tenant.NewFileStore(cfg.Store.Path),
	)

	// Core backend client
	client := gatewayclient.New(cfg.Upstream.BaseURL, resolver, log)

	// Keep the response cache coherent with platform events
	consumer, err := messaging.NewConsumer(rmq, "payroll-service.cache-invalidation", log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event consumer")
	}
	invalidator := services.NewCacheInvalidator(client, log)
	if err := invalidator.RegisterHandlers(consumer); err != nil {
		log.Fatal().Err(err).Msg("failed to register cache invalidation handlers")
	}

	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	defer stopConsumer()
	if err := consumer.Start(consumerCtx); err != nil {
		log.Fatal().Err(err).Msg("failed to start event consumer")
	}

	// Initialize service and handler
	repo := payroll.NewRepository(db)
	payrollService := payroll.NewService(repo, client, publisher, log)
	payrollHandler := payroll.NewHandler(payrollService, log)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(httputil.TenantMiddleware)
	r.Use(actorMiddleware)

	// Health check (no tenant required - handled by middleware)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"service":  "payroll-service",
			"database": db.Health(r.Context()),
			"rabbitmq": rmq.Health(),
		})
	})

	// API routes (tenant required)
	payrollHandler.RegisterRoutes(r)

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

// actorMiddleware turns the gateway's user headers into the request
// actor. Without them the request acts as the system actor.
func actorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("X-User-ID")
		if userID == "" {
			next.ServeHTTP(w, r)
			return
		}

		ctx := actor.WithActor(r.Context(), &actor.Actor{
			ID:       userID,
			Email:    r.Header.Get("X-User-Email"),
			RoleName: r.Header.Get("X-User-Role"),
			TenantID: r.Header.Get(tenant.HeaderTenantID),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
