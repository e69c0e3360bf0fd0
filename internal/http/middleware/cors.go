package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// DefaultCORSHeaders are the request headers a landing page may send.
var DefaultCORSHeaders = []string{"Content-Type", "X-Request-ID"}

const defaultCORSMaxAge = 10 * time.Minute

// CORSOptions configures the allowlist. "*" in AllowedOrigins echoes any
// Origin back.
type CORSOptions struct {
	AllowedOrigins []string
	AllowedHeaders []string
	MaxAge         time.Duration
}

type corsPolicy struct {
	allowAny bool
	origins  map[string]struct{}
	headers  map[string]struct{}

	allowHeaders string
	maxAge       string
}

func newCORSPolicy(opts CORSOptions) corsPolicy {
	p := corsPolicy{
		origins: map[string]struct{}{},
		headers: map[string]struct{}{},
	}
	for _, origin := range opts.AllowedOrigins {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		switch origin {
		case "":
		case "*":
			p.allowAny = true
		default:
			p.origins[origin] = struct{}{}
		}
	}

	headers := opts.AllowedHeaders
	if len(headers) == 0 {
		headers = DefaultCORSHeaders
	}
	names := make([]string, 0, len(headers))
	for _, h := range headers {
		h = http.CanonicalHeaderKey(strings.TrimSpace(h))
		if h == "" {
			continue
		}
		if _, dup := p.headers[h]; dup {
			continue
		}
		p.headers[h] = struct{}{}
		names = append(names, h)
	}
	p.allowHeaders = strings.Join(names, ", ")

	maxAge := opts.MaxAge
	if maxAge <= 0 {
		maxAge = defaultCORSMaxAge
	}
	p.maxAge = strconv.Itoa(int(maxAge / time.Second))
	return p
}

func (p corsPolicy) originAllowed(origin string) bool {
	if origin == "" {
		return false
	}
	if p.allowAny {
		return true
	}
	_, ok := p.origins[origin]
	return ok
}

// preflightAllowed checks the requested method and every requested header.
func (p corsPolicy) preflightAllowed(r *http.Request) bool {
	switch r.Header.Get("Access-Control-Request-Method") {
	case http.MethodGet, http.MethodPost:
	default:
		return false
	}
	for _, line := range r.Header.Values("Access-Control-Request-Headers") {
		for _, h := range strings.Split(line, ",") {
			h = http.CanonicalHeaderKey(strings.TrimSpace(h))
			if h == "" {
				continue
			}
			if _, ok := p.headers[h]; !ok {
				return false
			}
		}
	}
	return true
}

// CORS answers preflights for the lead endpoints and tags allowed responses.
// A preflight for a foreign origin, method or header gets 403 with no
// Access-Control headers.
func CORS(opts CORSOptions) func(http.Handler) http.Handler {
	policy := newCORSPolicy(opts)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			w.Header().Add("Vary", "Origin")
			allowed := policy.originAllowed(origin)

			if r.Method == http.MethodOptions && origin != "" && r.Header.Get("Access-Control-Request-Method") != "" {
				w.Header().Add("Vary", "Access-Control-Request-Method")
				w.Header().Add("Vary", "Access-Control-Request-Headers")
				if !allowed || !policy.preflightAllowed(r) {
					w.WriteHeader(http.StatusForbidden)
					return
				}
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST")
				w.Header().Set("Access-Control-Allow-Headers", policy.allowHeaders)
				w.Header().Set("Access-Control-Max-Age", policy.maxAge)
				w.WriteHeader(http.StatusNoContent)
				return
			}

			if allowed {
				w.Header().Set("Access-Control-Allow-Origin", origin)
			}
			next.ServeHTTP(w, r)
		})
	}
}
