package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	httpmiddleware "github.com/wolfman30/landing-leads/internal/http/middleware"
	"github.com/wolfman30/landing-leads/internal/intake"
	"github.com/wolfman30/landing-leads/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	LeadsHandler       *intake.Handler
	MetricsHandler     http.Handler
	CORS               httpmiddleware.CORSOptions

	// Per-IP limit for lead posts; RateLimitRPS <= 0 disables it.
	RateLimitRPS   float64
	RateLimitBurst int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORS.AllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORS))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	if cfg.LeadsHandler != nil {
		r.Get("/health", cfg.LeadsHandler.Health)
		r.With(httpmiddleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst)).Post("/leads", cfg.LeadsHandler.SubmitLead)
	}
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	return otelhttp.NewHandler(r, "landing-leads",
		otelhttp.WithSpanNameFormatter(func(_ string, req *http.Request) string {
			return req.Method + " " + req.URL.Path
		}),
	)
}
