package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/coaching-platform/internal/availability"
	httpmiddleware "github.com/wolfman30/coaching-platform/internal/http/middleware"
	"github.com/wolfman30/coaching-platform/internal/slots"
	"github.com/wolfman30/coaching-platform/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger              *logging.Logger
	SlotsHandler        *slots.Handler
	AvailabilityHandler *availability.Handler
	MetricsHandler      http.Handler
	CORSAllowedOrigins  []string
	CoachAuthSecret     string
	// RateLimiter guards the public coach routes when set.
	RateLimiter    *httpmiddleware.RateLimiter
	RequestTimeout time.Duration
	// Ready reports dependency health for /health; nil means always healthy.
	Ready func(ctx context.Context) error
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}

	r.Get("/health", healthHandler(cfg.Ready))
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/coaches/{coachID}", func(coach chi.Router) {
		if cfg.RateLimiter != nil {
			coach.Use(cfg.RateLimiter.Middleware)
		}
		if cfg.SlotsHandler != nil {
			cfg.SlotsHandler.Routes(coach)
		}
		if cfg.AvailabilityHandler != nil {
			cfg.AvailabilityHandler.ReadRoutes(coach)
			coach.Group(func(owner chi.Router) {
				owner.Use(httpmiddleware.CoachJWT(cfg.CoachAuthSecret, "coachID"))
				cfg.AvailabilityHandler.WriteRoutes(owner)
			})
		}
	})

	return r
}

func healthHandler(ready func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := ready(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(w).Encode(map[string]string{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}
