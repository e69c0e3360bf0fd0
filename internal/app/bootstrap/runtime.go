package bootstrap

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/landing-leads/internal/config"
	"github.com/wolfman30/landing-leads/internal/intake"
	"github.com/wolfman30/landing-leads/internal/notify"
	"github.com/wolfman30/landing-leads/internal/observability/metrics"
	"github.com/wolfman30/landing-leads/internal/observability/tracing"
	"github.com/wolfman30/landing-leads/internal/submission"
	"github.com/wolfman30/landing-leads/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available, duplicate guard disabled", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildDuplicateGuard returns the Redis duplicate guard, or nil when Redis
// or the window is not configured.
func BuildDuplicateGuard(client *redis.Client, cfg *appconfig.Config) intake.DuplicateGuard {
	if client == nil || cfg == nil {
		return nil
	}
	if guard := intake.NewRedisGuard(client, cfg.DuplicateWindow); guard != nil {
		return guard
	}
	return nil
}

// SubmissionConfig maps the webhook settings onto the orchestrator config.
func SubmissionConfig(cfg *appconfig.Config) submission.Config {
	return submission.Config{
		EndpointURL:     cfg.WebhookURL,
		Timeout:         cfg.WebhookTimeout,
		MaxRetries:      cfg.WebhookMaxRetries,
		RetryBackoff:    cfg.WebhookRetryBackoff,
		FallbackEnabled: cfg.WebhookFallbackEnabled,
		RetryStatuses:   cfg.WebhookRetryStatuses,
	}
}

// TracingConfig maps the OTel settings onto the exporter config.
func TracingConfig(cfg *appconfig.Config) tracing.Config {
	return tracing.Config{
		Enabled:     cfg.OTelEnabled,
		Environment: cfg.Env,
		Endpoint:    cfg.OTelEndpoint,
		Insecure:    cfg.OTelInsecure,
		Headers:     cfg.OTelHeaders,
		SampleRatio: cfg.OTelSampleRatio,
	}
}

// BuildSubmissionService wires the orchestrator from config. deadLetter may
// be nil.
func BuildSubmissionService(cfg *appconfig.Config, logger *logging.Logger, m *metrics.LeadMetrics, deadLetter submission.DeadLetter) (*submission.Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if strings.TrimSpace(cfg.WebhookURL) == "" {
		return nil, fmt.Errorf("bootstrap: WEBHOOK_URL is required")
	}
	opts := []submission.Option{
		submission.WithLogger(logger),
		submission.WithMetrics(m),
	}
	if deadLetter != nil {
		opts = append(opts, submission.WithDeadLetter(deadLetter))
	}
	svc, err := submission.NewService(SubmissionConfig(cfg), opts...)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: build submission service: %w", err)
	}
	return svc, nil
}

// BuildDeadLetter combines the queue and the operator alert email. Either may
// be nil; the result is nil when both are.
func BuildDeadLetter(queue submission.DeadLetter, email notify.EmailSender, cfg *appconfig.Config, logger *logging.Logger) (submission.DeadLetter, error) {
	if email == nil || cfg == nil || cfg.AlertEmailTo == "" {
		return queue, nil
	}
	alerts, err := notify.NewDeadLetterAlerts(queue, email, cfg.AlertEmailTo, logger)
	if err != nil {
		return nil, err
	}
	return alerts, nil
}
