package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	appconfig "github.com/wolfman30/landing-leads/internal/config"
	"github.com/wolfman30/landing-leads/internal/submission"
	"github.com/wolfman30/landing-leads/pkg/logging"
)

func TestNewHandlerRelaysLeads(t *testing.T) {
	var posts atomic.Int32
	webhook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodPost {
			posts.Add(1)
			_, _ = w.Write([]byte(`{"ok":true,"message":"saved"}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true,"message":"up"}`))
	}))
	defer webhook.Close()

	cfg := &appconfig.Config{
		WebhookURL:             webhook.URL,
		WebhookTimeout:         time.Second,
		WebhookMaxRetries:      2,
		WebhookRetryBackoff:    time.Millisecond,
		WebhookFallbackEnabled: true,
	}
	handler, svc, err := newHandler(cfg, logging.Discard(), prometheus.NewRegistry(), nil, nil)
	if err != nil {
		t.Fatalf("newHandler: %v", err)
	}
	if svc == nil {
		t.Fatalf("expected submission service")
	}

	form := url.Values{"name": {"Ann"}, "email": {"ann@example.com"}}
	req := httptest.NewRequest(http.MethodPost, "/leads", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if posts.Load() != 1 {
		t.Fatalf("expected one webhook post, got %d", posts.Load())
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rr.Body.String(), "landing_leads_submissions_total") {
		t.Fatalf("expected submission metrics to be exported")
	}
}

func TestNewHandlerRequiresWebhookURL(t *testing.T) {
	if _, _, err := newHandler(&appconfig.Config{}, logging.Discard(), prometheus.NewRegistry(), nil, nil); err == nil {
		t.Fatalf("expected error without WEBHOOK_URL")
	}
}

func TestWriteTimeoutCoversRetries(t *testing.T) {
	got := writeTimeout(submission.DefaultPolicy())
	// 6 attempts of 10s, 2x(1s+2s) backoff, 5s slack.
	if got != 71*time.Second {
		t.Fatalf("unexpected write timeout %s", got)
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	srv := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, srv, logging.Discard(), time.Second) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("serve did not return after cancel")
	}
}

func TestServeReportsListenError(t *testing.T) {
	srv := &http.Server{Addr: "not-an-address", Handler: http.NotFoundHandler()}
	err := serve(context.Background(), srv, logging.Discard(), time.Second)
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		t.Fatalf("expected listen error, got %v", err)
	}
}
