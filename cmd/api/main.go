package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/wolfman30/landing-leads/cmd/mainconfig"
	"github.com/wolfman30/landing-leads/internal/api/router"
	"github.com/wolfman30/landing-leads/internal/app/bootstrap"
	appconfig "github.com/wolfman30/landing-leads/internal/config"
	httpmiddleware "github.com/wolfman30/landing-leads/internal/http/middleware"
	"github.com/wolfman30/landing-leads/internal/intake"
	"github.com/wolfman30/landing-leads/internal/observability/metrics"
	"github.com/wolfman30/landing-leads/internal/observability/tracing"
	"github.com/wolfman30/landing-leads/internal/submission"
	"github.com/wolfman30/landing-leads/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting landing-leads relay",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()
	shutdownTracing, err := tracing.Init(ctx, bootstrap.TracingConfig(cfg), logger)
	if err != nil {
		logger.Error("failed to set up tracing", "error", err)
		os.Exit(1)
	}

	var deadLetter submission.DeadLetter
	dlq, err := mainconfig.NewDeadLetterQueue(ctx, cfg)
	if err != nil {
		logger.Error("failed to set up dead-letter queue", "error", err)
		os.Exit(1)
	}
	if dlq != nil {
		deadLetter = dlq
		logger.Info("dead-letter queue enabled", "queue_url", cfg.LeadsDLQURL)
	}
	alertEmail, err := mainconfig.NewAlertEmailSender(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to set up alert email", "error", err)
		os.Exit(1)
	}
	if deadLetter, err = bootstrap.BuildDeadLetter(deadLetter, alertEmail, cfg, logger); err != nil {
		logger.Error("failed to set up dead letter", "error", err)
		os.Exit(1)
	}
	if alertEmail != nil {
		logger.Info("operator alerts enabled", "to", cfg.AlertEmailTo, "provider", cfg.EmailProvider)
	}

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer redisClient.Close()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	handler, svc, err := newHandler(cfg, logger, reg, deadLetter, bootstrap.BuildDuplicateGuard(redisClient, cfg))
	if err != nil {
		logger.Error("failed to build relay", "error", err)
		os.Exit(1)
	}

	if cfg.HealthCheckOnStart {
		go func() {
			checkCtx, cancel := context.WithTimeout(ctx, cfg.WebhookTimeout)
			defer cancel()
			report := svc.CheckHealth(checkCtx)
			if report.Warning != "" {
				logger.Warn("webhook health check on start", "warning", report.Warning)
				return
			}
			logger.Info("webhook reachable", "healthy", report.Healthy)
		}()
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout(svc.Policy()),
		IdleTimeout:  60 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := serve(sigCtx, srv, logger, 30*time.Second); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	if err := shutdownTracing(context.Background()); err != nil {
		logger.Warn("tracer shutdown failed", "error", err)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// serve runs srv until ctx is done, then drains it within grace.
func serve(ctx context.Context, srv *http.Server, logger *logging.Logger, grace time.Duration) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// newHandler wires metrics, the submission service and the router.
func newHandler(cfg *appconfig.Config, logger *logging.Logger, reg *prometheus.Registry, deadLetter submission.DeadLetter, guard intake.DuplicateGuard) (http.Handler, *submission.Service, error) {
	leadMetrics := metrics.NewLeadMetrics(reg)
	svc, err := bootstrap.BuildSubmissionService(cfg, logger, leadMetrics, deadLetter)
	if err != nil {
		return nil, nil, err
	}
	r := router.New(&router.Config{
		Logger:             logger,
		LeadsHandler:       intake.NewHandler(svc, guard, logger, leadMetrics),
		MetricsHandler:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		CORS: httpmiddleware.CORSOptions{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			AllowedHeaders: cfg.CORSAllowedHeaders,
			MaxAge:         cfg.CORSMaxAge,
		},
		RateLimitRPS:       cfg.RateLimitRPS,
		RateLimitBurst:     cfg.RateLimitBurst,
	})
	return r, svc, nil
}

// writeTimeout leaves room for every attempt, backoff and the fallback
// switch of a single lead.
func writeTimeout(p submission.Policy) time.Duration {
	return p.MaxDuration() + 5*time.Second
}
