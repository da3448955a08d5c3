package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/crewflow/crewflow-platform/internal/gateway"
	"github.com/crewflow/crewflow-platform/pkg/config"
	"github.com/crewflow/crewflow-platform/pkg/httputil"
	"github.com/crewflow/crewflow-platform/pkg/logger"
	"github.com/crewflow/crewflow-platform/pkg/messaging"
)

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation("api-gateway")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New("api-gateway", cfg.Server.Environment)
	log.Info().Msg("starting API Gateway")

	// Create router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS - supports subdomain-based multi-tenancy
	r.Use(cors.Handler(cors.Options{
		AllowOriginFunc: func(r *http.Request, origin string) bool {
			// Allow localhost variations (development)
			if origin == "http://localhost:3000" || origin == "http://localhost:5173" {
				return true
			}
			// Allow *.localhost:3000 subdomains for development
			if strings.HasSuffix(origin, ".localhost:3000") {
				return true
			}
			// Allow *.crewflow.io for production
			if strings.HasSuffix(origin, ".crewflow.io") {
				return true
			}
			if origin == "https://crewflow.io" {
				return true
			}
			return false
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-Switch-Tenant"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Tenant switch notifications are best effort: the gateway keeps
	// serving traffic when the broker is unreachable
	var proxyOpts []gateway.ProxyOption
	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Warn().Err(err).Msg("rabbitmq unavailable, tenant switch events disabled")
	} else {
		defer rmq.Close()
		publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeTenantEvents, "api-gateway", log)
		if err != nil {
			log.Warn().Err(err).Msg("failed to create event publisher, tenant switch events disabled")
		} else {
			proxyOpts = append(proxyOpts, gateway.WithEventPublisher(publisher))
		}
	}

	// Create proxy handler
	proxy := gateway.NewProxy(cfg, log, proxyOpts...)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]string{
			"status":  "healthy",
			"service": "api-gateway",
		})
	})

	// Session bootstrap and profile are reachable before a tenant is
	// chosen; the token alone authenticates them
	r.Group(func(r chi.Router) {
		r.Use(proxy.AuthMiddleware)
		r.Get("/api/session", proxy.ForwardToCore)
		r.Get("/api/profile", proxy.ForwardToCore)
		r.Get("/api/profile/*", proxy.ForwardToCore)
		r.Put("/api/profile/*", proxy.ForwardToCore)
	})

	// Tenant-scoped routes
	r.Group(func(r chi.Router) {
		r.Use(proxy.AuthMiddleware)
		r.Use(proxy.TenantSwitchMiddleware)

		// Payroll run orchestration
		r.Mount("/api/payroll", http.HandlerFunc(proxy.ForwardToPayroll))

		// Everything else goes to the core backend
		r.Mount("/api", http.HandlerFunc(proxy.ForwardToCore))
	})

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
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
