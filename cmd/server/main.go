package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/DukeRupert/inkwell/internal"
	"github.com/DukeRupert/inkwell/internal/api"
	"github.com/DukeRupert/inkwell/internal/csrf"
	"github.com/DukeRupert/inkwell/internal/handler"
	"github.com/DukeRupert/inkwell/internal/livestats"
	"github.com/DukeRupert/inkwell/internal/metrics"
	"github.com/DukeRupert/inkwell/internal/middleware"
	"github.com/DukeRupert/inkwell/internal/session"
	"github.com/DukeRupert/inkwell/web"
)

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)
	isSecure := cfg.IsSecure()

	// Session cookies
	opts := session.Options{Secure: isSecure}
	if cfg.SessionSigningKey != "" {
		signer, err := session.NewSigner(cfg.SessionSigningKey)
		if err != nil {
			return fmt.Errorf("session signer initialization failed: %w", err)
		}
		opts.Signer = signer
	} else {
		logger.Warn("SESSION_SIGNING_KEY not set, admin flag cookie is unsigned")
	}

	// Blog API transport, shared by every request
	gateway := api.NewGateway(api.GatewayConfig{
		BaseURL: cfg.APIURL,
		Timeout: cfg.APITimeout,
		Logger:  logger,
	})

	// Initialize template renderer
	renderer, err := handler.NewRenderer(handler.RendererConfig{
		FS:           web.Templates(),
		TemplatesDir: "web/templates",
		Logger:       logger,
		IsDev:        cfg.Env == "development",
	})
	if err != nil {
		return fmt.Errorf("renderer initialization failed: %w", err)
	}
	logger.Info("Templates loaded", "count", len(renderer.ListTemplates()))

	relay := livestats.NewRelay(livestats.Config{
		URL:            cfg.WSURL,
		PingInterval:   cfg.StatsPingInterval,
		ReconnectDelay: cfg.StatsReconnectDelay,
		Logger:         logger,
	})

	// Initialize middleware
	sessionMw := middleware.NewSessionMiddleware(gateway, opts, logger)
	limiter := middleware.NewAuthRateLimiter(ctx, cfg.LoginRateLimit, cfg.LoginRateWindow, logger)

	page := middleware.Stack(
		csrf.Protect(isSecure, logger),
		sessionMw.WithStore,
		middleware.RouteGuard,
		sessionMw.LoadSession,
	)
	admin := middleware.Stack(page, sessionMw.RequireAdmin)

	// Initialize handlers
	authHandler := handler.NewAuthHandler(renderer, logger)
	blogHandler := handler.NewBlogHandler(renderer, logger, cfg.PostsPerPage)
	adminHandler := handler.NewAdminHandler(renderer, logger, relay)

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	// Static files
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(web.Static())))

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Prometheus metrics
	metricsAuth := middleware.NewMetricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword)
	mux.Handle("GET /metrics", metricsAuth.Handler(promhttp.Handler()))
	if cfg.MetricsUsername == "" || cfg.MetricsPassword == "" {
		logger.Warn("metrics endpoint is unprotected, set METRICS_USERNAME and METRICS_PASSWORD")
	}

	authHandler.RegisterRoutes(mux, page, limiter.LimitLogin, limiter.LimitRegister)
	blogHandler.RegisterRoutes(mux, page, sessionMw.RequireUser)
	adminHandler.RegisterRoutes(mux, admin)

	// Global middleware, outermost first
	root := middleware.Stack(
		middleware.NewRequestLoggingMiddleware(logger).Handler,
		metrics.Middleware,
		middleware.NewSecurityHeadersMiddleware(isSecure).Handler,
	)(mux)

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env, "api", cfg.APIURL)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for interrupt signal or a listener failure
	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}
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
