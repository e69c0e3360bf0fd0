package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wolfman30/landing-leads/internal/leads"
	"github.com/wolfman30/landing-leads/pkg/logging"
)

const (
	defaultUserAgent = "landing-leads/0.1"
	defaultTimeout   = 10 * time.Second
	maxResponseBytes = 1 << 20
	maxDrainBytes    = 64 << 10
	formContentType  = "application/x-www-form-urlencoded"
)

// Mode selects how a submission is dispatched.
type Mode string

const (
	// ModePrimary sends the lead and reads the JSON envelope back.
	ModePrimary Mode = "primary-cors"
	// ModeFallback sends the lead without reading the response. Success only
	// means the request was dispatched; the server may still have refused it.
	ModeFallback Mode = "no-cors-fallback"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModePrimary || m == ModeFallback
}

// Config controls how the webhook client behaves.
type Config struct {
	EndpointURL string
	// Timeout applies to calls that do not pass their own.
	Timeout    time.Duration
	HTTPClient *http.Client
	UserAgent  string
	Logger     *logging.Logger
}

// SendOptions are per-attempt settings.
type SendOptions struct {
	Mode    Mode
	Timeout time.Duration
}

// Response is the webhook's JSON envelope {ok, message, data}.
type Response struct {
	OK      bool            `json:"ok"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	// StatusCode is 0 for opaque responses.
	StatusCode int  `json:"-"`
	Opaque     bool `json:"-"`
}

// HealthStatus is the outcome of a GET against the endpoint.
type HealthStatus struct {
	Healthy    bool            `json:"healthy"`
	StatusCode int             `json:"status_code"`
	Message    string          `json:"message,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// Client submits leads to the remote webhook.
type Client struct {
	endpoint   string
	timeout    time.Duration
	httpClient *http.Client
	// primaryClient shares httpClient's transport but refuses redirects to
	// another origin.
	primaryClient *http.Client
	userAgent  string
	logger     *logging.Logger
}

// New creates a configured Client with sane defaults.
func New(cfg Config) (*Client, error) {
	endpoint := strings.TrimSpace(cfg.EndpointURL)
	if endpoint == "" {
		return nil, errMissingEndpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("webhook: invalid endpoint URL %q", endpoint)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		endpoint:      endpoint,
		timeout:       timeout,
		httpClient:    httpClient,
		primaryClient: sameOriginClient(httpClient),
		userAgent:     userAgent,
		logger:        logger,
	}, nil
}

// sameOriginClient copies base with a redirect policy that stops at the first
// hop to a different scheme or host.
func sameOriginClient(base *http.Client) *http.Client {
	c := *base
	next := base.CheckRedirect
	c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) > 0 {
			first := via[0].URL
			if req.URL.Scheme != first.Scheme || req.URL.Host != first.Host {
				return fmt.Errorf("%w: %s", errCrossOriginRedirect, req.URL.Host)
			}
		}
		if next != nil {
			return next(req, via)
		}
		if len(via) >= 10 {
			return errors.New("stopped after 10 redirects")
		}
		return nil
	}
	return &c
}

// Endpoint returns the configured webhook URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Send performs one submission attempt. The attempt is bounded by
// opts.Timeout; expiry yields a KindTimeout error.
func (c *Client) Send(ctx context.Context, rec leads.Record, opts SendOptions) (*Response, error) {
	mode := opts.Mode
	if mode == "" {
		mode = ModePrimary
	}
	if !mode.Valid() {
		return nil, &Error{Kind: KindUnknown, Mode: mode, Err: fmt.Errorf("unsupported mode %q", mode)}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, c.endpoint, strings.NewReader(rec.Encode()))
	if err != nil {
		return nil, &Error{Kind: KindUnknown, Mode: mode, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", formContentType)
	req.Header.Set("User-Agent", c.userAgent)
	if mode == ModePrimary {
		req.Header.Set("Accept", "application/json")
	}

	httpClient := c.httpClient
	if mode == ModePrimary {
		httpClient = c.primaryClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		if errors.Is(err, errCrossOriginRedirect) && ctx.Err() == nil {
			return nil, &Error{Kind: KindCrossOrigin, Mode: mode, Err: err}
		}
		return nil, classify(ctx, attemptCtx, mode, err)
	}
	defer resp.Body.Close()

	if mode == ModeFallback {
		// The response is opaque in this mode: dispatching is all we know.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))
		c.logger.Debug("webhook: lead dispatched without reading response", "status", resp.StatusCode)
		return &Response{
			OK:      true,
			Message: "submitted (no-cors mode)",
			Data:    json.RawMessage(`{"no_cors":true}`),
			Opaque:  true,
		}, nil
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))
		return nil, &Error{Kind: KindHTTPStatus, Mode: mode, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, classify(ctx, attemptCtx, mode, err)
	}
	env, err := decodeEnvelope(body)
	if err != nil {
		return nil, &Error{Kind: KindCrossOrigin, Mode: mode, StatusCode: resp.StatusCode, Err: err}
	}
	env.StatusCode = resp.StatusCode
	if !env.OK {
		return nil, &Error{Kind: KindRejected, Mode: mode, StatusCode: resp.StatusCode, Message: env.Message}
	}
	return env, nil
}

// Health issues a GET against the endpoint. Transport failures are returned
// as errors; a reachable endpoint that does not answer {ok:true} is reported
// as unhealthy without an error.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	status, body, err := c.get(ctx)
	if err != nil {
		return HealthStatus{}, err
	}
	health := HealthStatus{StatusCode: status}
	if status < 200 || status >= 300 {
		health.Message = fmt.Sprintf("unexpected status %d", status)
		return health, nil
	}
	env, err := decodeEnvelope(body)
	if err != nil {
		health.Message = err.Error()
		return health, nil
	}
	health.Healthy = env.OK
	health.Message = env.Message
	health.Data = env.Data
	return health, nil
}

// Stats returns data.stats from the endpoint's GET response, or nil when the
// endpoint does not publish any.
func (c *Client) Stats(ctx context.Context) (json.RawMessage, error) {
	status, body, err := c.get(ctx)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, &Error{Kind: KindHTTPStatus, Mode: ModePrimary, StatusCode: status}
	}
	env, err := decodeEnvelope(body)
	if err != nil {
		return nil, &Error{Kind: KindCrossOrigin, Mode: ModePrimary, StatusCode: status, Err: err}
	}
	if len(env.Data) == 0 {
		return nil, nil
	}
	var data struct {
		Stats json.RawMessage `json:"stats"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, nil
	}
	if len(data.Stats) == 0 || string(data.Stats) == "null" {
		return nil, nil
	}
	return data.Stats, nil
}

// PreflightResult holds the CORS headers answered to an OPTIONS request.
type PreflightResult struct {
	StatusCode   int    `json:"status_code"`
	AllowOrigin  string `json:"allow_origin,omitempty"`
	AllowMethods string `json:"allow_methods,omitempty"`
	AllowHeaders string `json:"allow_headers,omitempty"`
}

// Preflight sends a CORS preflight for a POST from origin.
func (c *Client) Preflight(ctx context.Context, origin string) (PreflightResult, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodOptions, c.endpoint, nil)
	if err != nil {
		return PreflightResult{}, &Error{Kind: KindUnknown, Mode: ModePrimary, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("User-Agent", c.userAgent)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return PreflightResult{}, classify(ctx, reqCtx, ModePrimary, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))
	return PreflightResult{
		StatusCode:   resp.StatusCode,
		AllowOrigin:  resp.Header.Get("Access-Control-Allow-Origin"),
		AllowMethods: resp.Header.Get("Access-Control-Allow-Methods"),
		AllowHeaders: resp.Header.Get("Access-Control-Allow-Headers"),
	}, nil
}

func (c *Client) get(ctx context.Context) (int, []byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return 0, nil, &Error{Kind: KindUnknown, Mode: ModePrimary, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, classify(ctx, reqCtx, ModePrimary, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, classify(ctx, reqCtx, ModePrimary, err)
	}
	return resp.StatusCode, body, nil
}

func decodeEnvelope(body []byte) (*Response, error) {
	var raw struct {
		OK      *bool           `json:"ok"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", errUnreadableResponse, err)
	}
	if raw.OK == nil {
		return nil, fmt.Errorf("%w: missing ok field", errUnreadableResponse)
	}
	return &Response{OK: *raw.OK, Message: raw.Message, Data: raw.Data}, nil
}

// classify turns a transport error into a typed Error. parent is the
// caller's context, attempt the per-attempt timeout context derived from it.
func classify(parent, attempt context.Context, mode Mode, err error) *Error {
	if parent.Err() != nil {
		return &Error{Kind: KindCanceled, Mode: mode, Err: parent.Err()}
	}
	if errors.Is(attempt.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Mode: mode, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: KindTimeout, Mode: mode, Err: err}
	}
	var urlErr *url.Error
	var opErr *net.OpError
	if errors.As(err, &urlErr) || errors.As(err, &opErr) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &Error{Kind: KindNetwork, Mode: mode, Err: err}
	}
	return &Error{Kind: KindUnknown, Mode: mode, Err: err}
}
