package routes

import (
	"net/http"
	"time"

	"github.com/swingfinder/festival-finder/internal/api/handlers"
	"github.com/swingfinder/festival-finder/internal/api/middleware"
	"github.com/swingfinder/festival-finder/internal/infrastructure/observability"
)

// Options tunes the middleware chain
type Options struct {
	AllowedOrigins []string
	// SearchMaxAge is advertised in Cache-Control for search responses.
	SearchMaxAge time.Duration
	// RateLimiter is optional; nil disables per-client limiting.
	RateLimiter *middleware.RateLimiter
	Metrics     *observability.Metrics
}

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	searchHandler    *handlers.EventSearchHandler
	analyticsHandler *handlers.AnalyticsHandler
	healthHandler    *handlers.HealthHandler

	opts Options
}

// NewRouter creates a new router
func NewRouter(
	searchHandler *handlers.EventSearchHandler,
	analyticsHandler *handlers.AnalyticsHandler,
	healthHandler *handlers.HealthHandler,
	opts Options,
) *Router {
	return &Router{
		mux:              http.NewServeMux(),
		searchHandler:    searchHandler,
		analyticsHandler: analyticsHandler,
		healthHandler:    healthHandler,
		opts:             opts,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	// Health checks
	r.mux.HandleFunc("GET /health", r.healthHandler.Live)
	r.mux.HandleFunc("GET /health/ready", r.healthHandler.Ready)

	// Event search
	r.mux.HandleFunc("GET /api/search/events", r.searchHandler.SearchEvents)

	// Analytics
	if r.analyticsHandler != nil {
		r.mux.HandleFunc("GET /api/analytics/zero-result-queries", r.analyticsHandler.ZeroResultQueries)
	}

	// Apply middleware in reverse order (last middleware wraps first)
	var handler http.Handler = r.mux
	handler = middleware.ResponseOptimization(r.opts.SearchMaxAge)(handler)
	if r.opts.RateLimiter != nil {
		handler = middleware.RateLimitMiddleware(r.opts.RateLimiter)(handler)
	}
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.ObservabilityMiddleware(r.opts.Metrics)(handler)

	// CORS wraps everything so rejected and failed responses carry headers too
	handler = middleware.CORSMiddleware(r.opts.AllowedOrigins)(handler)

	return handler
}
