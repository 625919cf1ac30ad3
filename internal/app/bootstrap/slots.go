package bootstrap

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/coaching-platform/internal/availability"
	appconfig "github.com/wolfman30/coaching-platform/internal/config"
	"github.com/wolfman30/coaching-platform/internal/observability/metrics"
	"github.com/wolfman30/coaching-platform/internal/slots"
	"github.com/wolfman30/coaching-platform/pkg/logging"
)

// Components is the wired slot runtime.
type Components struct {
	Engine       *slots.Engine
	Availability *availability.Service
	Cache        *availability.Cache
	Metrics      *metrics.SlotMetrics
}

// Sources bundles the adapters the runtime reads from.
type Sources struct {
	Profiles availability.ProfileStore
	Sessions slots.SessionSource
	Redis    *redis.Client
}

// BuildSlotRuntime wires the cache, engine and availability service.
// Engine reads go through the Redis cache; service writes go to the store and
// invalidate the cache.
func BuildSlotRuntime(cfg *appconfig.Config, src Sources, reg prometheus.Registerer, logger *logging.Logger, now func() time.Time) *Components {
	if logger == nil {
		logger = logging.Default()
	}
	if now == nil {
		now = time.Now
	}
	var ttl time.Duration
	lookahead, maxRange := 0, 0
	if cfg != nil {
		ttl = cfg.AvailabilityCacheTTL
		lookahead = cfg.StatusLookaheadDays
		maxRange = cfg.MaxRangeDays
	}

	cache := availability.NewCache(src.Redis, src.Profiles, ttl, logger)
	slotMetrics := metrics.NewSlotMetrics(reg)
	engine := slots.NewEngine(slots.Config{
		Availability:        cache,
		Sessions:            src.Sessions,
		Logger:              logger,
		Metrics:             slotMetrics,
		Now:                 now,
		StatusLookaheadDays: lookahead,
		MaxRangeDays:        maxRange,
	})
	service := availability.NewService(availability.ServiceConfig{
		Store:  src.Profiles,
		Reader: cache,
		Cache:  cache,
		Logger: logger,
		Now:    now,
	})
	return &Components{Engine: engine, Availability: service, Cache: cache, Metrics: slotMetrics}
}
