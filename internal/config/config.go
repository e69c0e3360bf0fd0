package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	// Webhook (Google Apps Script web app) delivery
	WebhookURL             string
	WebhookTimeout         time.Duration
	WebhookMaxRetries      int
	WebhookRetryBackoff    time.Duration
	WebhookFallbackEnabled bool
	WebhookRetryStatuses   []int
	HealthCheckOnStart     bool

	// Intake relay
	CORSAllowedOrigins []string
	CORSAllowedHeaders []string
	CORSMaxAge         time.Duration
	RateLimitRPS       float64
	RateLimitBurst     int
	RedisAddr          string
	RedisPassword      string
	RedisTLS           bool
	DuplicateWindow    time.Duration

	// Dead-letter queue
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	LeadsDLQURL         string

	// Operator alerts for undeliverable leads
	AlertEmailTo      string
	EmailProvider     string
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string

	// Tracing
	OTelEnabled     bool
	OTelEndpoint    string
	OTelInsecure    bool
	OTelHeaders     map[string]string
	OTelSampleRatio float64
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		WebhookURL:             strings.TrimSpace(getEnv("WEBHOOK_URL", "")),
		WebhookTimeout:         getEnvAsDuration("WEBHOOK_TIMEOUT", 10*time.Second),
		WebhookMaxRetries:      getEnvAsInt("WEBHOOK_MAX_RETRIES", 2),
		WebhookRetryBackoff:    getEnvAsDuration("WEBHOOK_RETRY_BACKOFF", time.Second),
		WebhookFallbackEnabled: getEnvAsBool("WEBHOOK_FALLBACK_ENABLED", true),
		WebhookRetryStatuses:   getEnvAsIntList("WEBHOOK_RETRY_STATUSES"),
		HealthCheckOnStart:     getEnvAsBool("HEALTH_CHECK_ON_START", true),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
		CORSAllowedHeaders: getEnvAsList("CORS_ALLOWED_HEADERS"),
		CORSMaxAge:         getEnvAsDuration("CORS_MAX_AGE", 10*time.Minute),
		RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 1),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 5),
		RedisAddr:          getEnv("REDIS_ADDR", ""),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisTLS:           getEnvAsBool("REDIS_TLS", false),
		DuplicateWindow:    getEnvAsDuration("DUPLICATE_WINDOW", 10*time.Minute),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		LeadsDLQURL:         getEnv("LEADS_DLQ_URL", ""),

		AlertEmailTo:      strings.TrimSpace(getEnv("ALERT_EMAIL_TO", "")),
		EmailProvider:     strings.ToLower(getEnv("EMAIL_PROVIDER", "sendgrid")),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Landing Leads"),

		OTelEnabled:     getEnvAsBool("OTEL_ENABLED", false),
		OTelEndpoint:    strings.TrimSpace(getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "")),
		OTelInsecure:    getEnvAsBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		OTelHeaders:     getEnvAsMap("OTEL_EXPORTER_OTLP_HEADERS"),
		OTelSampleRatio: getEnvAsFloat("OTEL_SAMPLER_RATIO", 0.1),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated variable, dropping blanks.
func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnvAsIntList parses a comma-separated list of ints, skipping bad entries.
func getEnvAsIntList(key string) []int {
	var out []int
	for _, part := range getEnvAsList(key) {
		if value, err := strconv.Atoi(part); err == nil {
			out = append(out, value)
		}
	}
	return out
}

// getEnvAsMap parses "k1=v1,k2=v2", skipping pairs without a key or value.
func getEnvAsMap(key string) map[string]string {
	out := map[string]string{}
	for _, part := range getEnvAsList(key) {
		k, v, ok := strings.Cut(part, "=")
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if !ok || k == "" || v == "" {
			continue
		}
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
