package submission

import (
	"net/http"
	"time"

	"github.com/wolfman30/landing-leads/internal/webhook"
)

const (
	DefaultTimeout      = 10 * time.Second
	DefaultMaxRetries   = 2
	DefaultRetryBackoff = time.Second
)

// Policy bounds how hard the controller tries to deliver one lead.
type Policy struct {
	// Timeout caps every single attempt.
	Timeout time.Duration
	// MaxRetries is the number of retries per transport mode after the first
	// attempt in that mode.
	MaxRetries int
	// RetryBackoff is multiplied by the retry number before each retry.
	RetryBackoff time.Duration
	// FallbackEnabled allows the one-way switch to webhook.ModeFallback when a
	// primary response cannot be read.
	FallbackEnabled bool
	// RetryStatus reports whether an HTTP status is transient. Nil means
	// TransientStatus.
	RetryStatus func(status int) bool
}

// DefaultPolicy mirrors the landing page defaults: 10s per attempt, two
// retries, one second backoff step, fallback on.
func DefaultPolicy() Policy {
	return Policy{
		Timeout:         DefaultTimeout,
		MaxRetries:      DefaultMaxRetries,
		RetryBackoff:    DefaultRetryBackoff,
		FallbackEnabled: true,
		RetryStatus:     TransientStatus,
	}
}

// TransientStatus treats 429 and every 5xx as worth retrying.
func TransientStatus(status int) bool {
	if status == http.StatusTooManyRequests {
		return true
	}
	return status >= 500 && status <= 599
}

// RetryStatuses builds a RetryStatus func from an explicit allowlist.
func RetryStatuses(codes ...int) func(int) bool {
	allowed := make(map[int]struct{}, len(codes))
	for _, code := range codes {
		allowed[code] = struct{}{}
	}
	return func(status int) bool {
		_, ok := allowed[status]
		return ok
	}
}

// MaxDuration is the longest one lead can spend in the controller: every
// attempt in both modes timing out plus all backoff waits.
func (p Policy) MaxDuration() time.Duration {
	var backoff time.Duration
	for i := 1; i <= p.MaxRetries; i++ {
		backoff += p.RetryBackoff * time.Duration(i)
	}
	modes := time.Duration(1)
	if p.FallbackEnabled {
		modes = 2
	}
	return modes * (time.Duration(p.MaxRetries+1)*p.Timeout + backoff)
}

func (p Policy) withDefaults() Policy {
	if p.Timeout <= 0 {
		p.Timeout = DefaultTimeout
	}
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.RetryBackoff < 0 {
		p.RetryBackoff = 0
	}
	if p.RetryStatus == nil {
		p.RetryStatus = TransientStatus
	}
	return p
}

// retryable decides whether err is worth another attempt in the same mode.
// Unknown failures get a single retry.
func (p Policy) retryable(err error, unknownRetried bool) bool {
	switch webhook.KindOf(err) {
	case webhook.KindNetwork, webhook.KindTimeout:
		return true
	case webhook.KindHTTPStatus:
		return p.RetryStatus(webhook.StatusCodeOf(err))
	case webhook.KindUnknown:
		return !unknownRetried
	default:
		return false
	}
}

// Config is the orchestrator's explicit configuration.
type Config struct {
	EndpointURL     string
	Timeout         time.Duration
	MaxRetries      int
	RetryBackoff    time.Duration
	FallbackEnabled bool
	// RetryStatuses overrides TransientStatus when non-empty.
	RetryStatuses []int
}

// DefaultConfig returns the defaults for the given endpoint.
func DefaultConfig(endpointURL string) Config {
	return Config{
		EndpointURL:     endpointURL,
		Timeout:         DefaultTimeout,
		MaxRetries:      DefaultMaxRetries,
		RetryBackoff:    DefaultRetryBackoff,
		FallbackEnabled: true,
	}
}

// Policy derives the retry policy from the configuration.
func (c Config) Policy() Policy {
	p := Policy{
		Timeout:         c.Timeout,
		MaxRetries:      c.MaxRetries,
		RetryBackoff:    c.RetryBackoff,
		FallbackEnabled: c.FallbackEnabled,
	}
	if len(c.RetryStatuses) > 0 {
		p.RetryStatus = RetryStatuses(c.RetryStatuses...)
	}
	return p.withDefaults()
}
