package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/DukeRupert/soilsheet/internal"
	"github.com/DukeRupert/soilsheet/internal/catalog"
	"github.com/DukeRupert/soilsheet/internal/csrf"
	"github.com/DukeRupert/soilsheet/internal/email"
	"github.com/DukeRupert/soilsheet/internal/handler"
	"github.com/DukeRupert/soilsheet/internal/metrics"
	"github.com/DukeRupert/soilsheet/internal/middleware"
	"github.com/DukeRupert/soilsheet/internal/report"
	"github.com/DukeRupert/soilsheet/internal/service"
	"github.com/DukeRupert/soilsheet/internal/session"
	"github.com/DukeRupert/soilsheet/internal/storage"
	"github.com/DukeRupert/soilsheet/internal/submission"
	"github.com/DukeRupert/soilsheet/web"
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
	isSecure := !cfg.IsDevelopment()

	// Initialize storage
	store, err := newStorage(cfg, logger)
	if err != nil {
		return fmt.Errorf("storage initialization failed: %w", err)
	}
	logger.Info("Storage ready", "provider", cfg.StorageProvider)

	// Initialize delivery
	deliverer, err := newDeliverer(cfg, logger)
	if err != nil {
		return fmt.Errorf("delivery initialization failed: %w", err)
	}
	logger.Info("Delivery ready", "provider", cfg.DeliveryProvider)

	// Initialize template renderer
	rendererCfg := handler.RendererConfig{FS: web.Templates(), Logger: logger}
	if cfg.IsDevelopment() {
		if _, err := os.Stat("web/templates"); err == nil {
			rendererCfg.ReloadDir = "web/templates"
		}
	}
	renderer, err := handler.NewRenderer(rendererCfg)
	if err != nil {
		return fmt.Errorf("renderer initialization failed: %w", err)
	}
	logger.Info("Templates loaded", "pages", len(renderer.Pages()))

	// Initialize services
	uploads := service.NewUploadService(store, service.NewImagingProcessor(), service.UploadConfig{
		MaxAttachmentSize: cfg.UploadMaxBytes,
		PlanMaxDimension:  cfg.PlanMaxDimension,
	}, logger)

	sessions := session.NewManager(session.Config{
		TTL:          cfg.SessionTTL,
		SecureCookie: isSecure,
		Catalog:      catalog.Default(),
		Generator:    report.Generate,
		NewPipeline: func() *submission.Pipeline {
			return submission.NewPipeline(deliverer, logger, submission.Config{})
		},
	}, logger)

	// Initialize middleware
	sessionMw := middleware.NewFormSessionMiddleware(sessions, logger)
	limiter := middleware.NewFormRateLimiter(cfg.SubmitRateLimit, logger)
	metricsAuth := middleware.NewMetricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword, logger)
	securityMw := middleware.NewSecurityHeadersMiddleware(isSecure, imageOrigins(cfg)...)
	loggingMw := middleware.NewRequestLoggingMiddleware(logger)

	// Initialize handlers
	formHandler := handler.NewFormHandler(renderer, sessions, logger, isSecure, cfg.UploadMaxBytes)
	uploadHandler := handler.NewUploadHandler(renderer, uploads, logger, cfg.UploadMaxBytes)
	submitHandler := handler.NewSubmitHandler(renderer, logger)

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	// Static files
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(web.Static())))

	// Health check and metrics
	mux.HandleFunc("GET /health", handler.Health)
	mux.Handle("GET /metrics", metricsAuth.Handler(promhttp.Handler()))

	// Stored files are served by the app only for local storage
	if cfg.StorageProvider == storage.ProviderLocal {
		handler.NewFileHandler(store, logger).RegisterRoutes(mux)
	}

	formHandler.RegisterRoutes(mux, sessionMw.WithSession)
	uploadHandler.RegisterRoutes(mux, sessionMw.WithSession, limiter.LimitUpload)
	submitHandler.RegisterRoutes(mux, sessionMw.WithSession, limiter.LimitSubmit)

	app := middleware.Stack(
		loggingMw.Handler,
		metrics.Middleware,
		securityMw.Handler,
		csrf.Protect(logger),
	)(mux)

	// ==========================================================================
	// Background work
	// ==========================================================================

	go sessions.Run(ctx)
	go limiter.Run(ctx)

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           app,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}
	logger.Info("Shutdown signal received, initiating graceful shutdown...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	logger.Info("Graceful shutdown complete")
	return nil
}

func newStorage(cfg *internal.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.StorageProvider == storage.ProviderR2 {
		return storage.NewR2Storage(storage.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicURL:       cfg.R2PublicURL,
		}, logger)
	}
	return storage.NewLocalStorage(storage.LocalConfig{
		BasePath: cfg.LocalStoragePath,
		BaseURL:  cfg.LocalStorageURL,
	}, logger)
}

func newDeliverer(cfg *internal.Config, logger *slog.Logger) (submission.Deliverer, error) {
	if cfg.DeliveryProvider == "smtp" {
		return email.NewSMTPDeliverer(email.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			FromName: cfg.SMTPFromName,
		}, logger), nil
	}
	return email.NewWebhookDeliverer(email.WebhookConfig{
		URL:     cfg.WebhookURL,
		Timeout: cfg.WebhookTimeout,
	}, logger)
}

// imageOrigins lists the origins plan images and attachments are served from.
// Presigned R2 links have no fixed origin, so none is returned for them.
func imageOrigins(cfg *internal.Config) []string {
	raw := cfg.LocalStorageURL
	if cfg.StorageProvider == storage.ProviderR2 {
		raw = cfg.R2PublicURL
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil
	}
	return []string{u.Scheme + "://" + u.Host}
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
