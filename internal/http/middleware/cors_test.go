package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if called != nil {
			*called = true
		}
		w.WriteHeader(http.StatusOK)
	})
}

func preflight(origin, method, headers string) *http.Request {
	req := httptest.NewRequest(http.MethodOptions, "/leads", nil)
	req.Header.Set("Origin", origin)
	req.Header.Set("Access-Control-Request-Method", method)
	if headers != "" {
		req.Header.Set("Access-Control-Request-Headers", headers)
	}
	return req
}

func TestCORSAllowsListedOrigin(t *testing.T) {
	called := false
	mw := CORS(CORSOptions{AllowedOrigins: []string{"https://landing.example/"}})
	req := httptest.NewRequest(http.MethodPost, "/leads", nil)
	req.Header.Set("Origin", "https://landing.example")
	rec := httptest.NewRecorder()

	mw(okHandler(&called)).ServeHTTP(rec, req)

	if !called {
		t.Fatalf("expected handler to be called")
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://landing.example" {
		t.Fatalf("expected allow origin header, got %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Headers"); got != "" {
		t.Fatalf("allow headers belong on preflights only, got %q", got)
	}
}

func TestCORSDeniesUnknownOrigin(t *testing.T) {
	mw := CORS(CORSOptions{AllowedOrigins: []string{"https://landing.example"}})
	req := httptest.NewRequest(http.MethodPost, "/leads", nil)
	req.Header.Set("Origin", "https://unknown.example")
	rec := httptest.NewRecorder()

	mw(okHandler(nil)).ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected no allow origin header, got %q", got)
	}
	if rec.Header().Get("Vary") != "Origin" {
		t.Fatalf("expected Vary: Origin on every response")
	}
}

func TestCORSAllowsAnyOrigin(t *testing.T) {
	mw := CORS(CORSOptions{AllowedOrigins: []string{"*"}})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://random.example")
	rec := httptest.NewRecorder()

	mw(okHandler(nil)).ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://random.example" {
		t.Fatalf("expected allow origin header, got %q", got)
	}
}

func TestCORSHandlesPreflight(t *testing.T) {
	called := false
	mw := CORS(CORSOptions{AllowedOrigins: []string{"https://landing.example"}})
	rec := httptest.NewRecorder()

	mw(okHandler(&called)).ServeHTTP(rec, preflight("https://landing.example", "POST", "content-type"))

	if called {
		t.Fatalf("expected handler to not be called on preflight")
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Headers"); got != "Content-Type, X-Request-Id" {
		t.Fatalf("unexpected default allow headers %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); got != "GET, POST" {
		t.Fatalf("unexpected allow methods %q", got)
	}
	if got := rec.Header().Get("Access-Control-Max-Age"); got != "600" {
		t.Fatalf("unexpected default max age %q", got)
	}
}

func TestCORSPreflightUsesConfiguredHeaders(t *testing.T) {
	mw := CORS(CORSOptions{
		AllowedOrigins: []string{"https://landing.example"},
		AllowedHeaders: []string{"content-type", " x-campaign-id ", "Content-Type"},
		MaxAge:         time.Hour,
	})

	rec := httptest.NewRecorder()
	mw(okHandler(nil)).ServeHTTP(rec, preflight("https://landing.example", "POST", "Content-Type, X-Campaign-Id"))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected configured headers to pass, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Headers"); got != "Content-Type, X-Campaign-Id" {
		t.Fatalf("unexpected allow headers %q", got)
	}
	if got := rec.Header().Get("Access-Control-Max-Age"); got != "3600" {
		t.Fatalf("unexpected max age %q", got)
	}

	rec = httptest.NewRecorder()
	mw(okHandler(nil)).ServeHTTP(rec, preflight("https://landing.example", "POST", "X-Request-ID"))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected header outside the list to be refused, got %d", rec.Code)
	}
}

func TestCORSRefusesPreflight(t *testing.T) {
	cases := []struct {
		name    string
		origin  string
		method  string
		headers string
	}{
		{"foreign origin", "https://unknown.example", "POST", ""},
		{"method", "https://landing.example", "DELETE", ""},
		{"header", "https://landing.example", "POST", "Authorization"},
	}
	mw := CORS(CORSOptions{AllowedOrigins: []string{"https://landing.example"}})
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			called := false
			rec := httptest.NewRecorder()
			mw(okHandler(&called)).ServeHTTP(rec, preflight(tc.origin, tc.method, tc.headers))
			if called {
				t.Fatalf("preflight reached the handler")
			}
			if rec.Code != http.StatusForbidden {
				t.Fatalf("expected 403, got %d", rec.Code)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
				t.Fatalf("expected no allow origin, got %q", got)
			}
		})
	}
}
