package availability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/coaching-platform/pkg/logging"
)

// Loader fetches a coach profile from a backing source.
type Loader interface {
	LoadAvailability(ctx context.Context, coachID string) (*CoachAvailability, error)
}

// Cache is a Redis read-through cache in front of a Loader. Redis failures
// degrade to reading the backing source; missing profiles are never cached.
type Cache struct {
	redis  *redis.Client
	next   Loader
	ttl    time.Duration
	logger *logging.Logger
	tracer trace.Tracer
}

// NewCache wraps next with a Redis cache. A non-positive ttl disables caching.
func NewCache(redisClient *redis.Client, next Loader, ttl time.Duration, logger *logging.Logger) *Cache {
	if next == nil {
		panic("availability: cache requires a backing loader")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Cache{
		redis:  redisClient,
		next:   next,
		ttl:    ttl,
		logger: logger,
		tracer: otel.Tracer("coaching.internal.availability.cache"),
	}
}

func (c *Cache) key(coachID string) string {
	return fmt.Sprintf("coach:availability:%s", coachID)
}

func (c *Cache) enabled() bool {
	return c.redis != nil && c.ttl > 0
}

// LoadAvailability serves the profile from Redis, falling back to the backing loader.
func (c *Cache) LoadAvailability(ctx context.Context, coachID string) (*CoachAvailability, error) {
	ctx, span := c.tracer.Start(ctx, "availability.cache.load")
	defer span.End()
	span.SetAttributes(attribute.String("coaching.coach_id", coachID))

	if c.enabled() {
		data, err := c.redis.Get(ctx, c.key(coachID)).Bytes()
		switch {
		case err == nil:
			var a CoachAvailability
			jsonErr := json.Unmarshal(data, &a)
			if jsonErr == nil {
				span.SetAttributes(attribute.Bool("coaching.cache_hit", true))
				return &a, nil
			}
			c.logger.Warn("discarding undecodable cached profile", "coach_id", coachID, "error", jsonErr)
		case errors.Is(err, redis.Nil):
		default:
			span.RecordError(err)
			c.logger.Warn("availability cache read failed", "coach_id", coachID, "error", err)
		}
	}

	a, err := c.next.LoadAvailability(ctx, coachID)
	if err != nil {
		return nil, err
	}
	if c.enabled() {
		if data, err := json.Marshal(a); err == nil {
			if err := c.redis.Set(ctx, c.key(coachID), data, c.ttl).Err(); err != nil {
				span.RecordError(err)
				c.logger.Warn("availability cache write failed", "coach_id", coachID, "error", err)
			}
		}
	}
	return a, nil
}

// Invalidate drops the cached profile for a coach.
func (c *Cache) Invalidate(ctx context.Context, coachID string) error {
	if c.redis == nil {
		return nil
	}
	if err := c.redis.Del(ctx, c.key(coachID)).Err(); err != nil {
		return fmt.Errorf("availability: invalidate cache: %w", err)
	}
	return nil
}
