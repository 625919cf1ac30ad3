package availability

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/wolfman30/coaching-platform/pkg/logging"
)

// ProfileStore is the persistence surface the Service writes through.
type ProfileStore interface {
	Loader
	Save(ctx context.Context, a *CoachAvailability, updatedAt, expected time.Time) error
	Create(ctx context.Context, a *CoachAvailability, updatedAt time.Time) error
}

// Invalidator drops cached copies of a profile after a write.
type Invalidator interface {
	Invalidate(ctx context.Context, coachID string) error
}

// Service applies coach-initiated edits to availability profiles.
type Service struct {
	store  ProfileStore
	reader Loader
	cache  Invalidator
	logger *logging.Logger
	now    func() time.Time
}

// ServiceConfig wires a Service.
type ServiceConfig struct {
	Store ProfileStore
	// Reader serves GET requests; defaults to Store. Usually the Redis Cache.
	Reader Loader
	Cache  Invalidator
	Logger *logging.Logger
	Now    func() time.Time
}

// NewService constructs an availability service.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Store == nil {
		panic("availability: store required")
	}
	if cfg.Reader == nil {
		cfg.Reader = cfg.Store
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		store:  cfg.Store,
		reader: cfg.Reader,
		cache:  cfg.Cache,
		logger: cfg.Logger,
		now:    cfg.Now,
	}
}

// Get returns the stored profile for a coach.
func (s *Service) Get(ctx context.Context, coachID string) (*CoachAvailability, error) {
	return s.reader.LoadAvailability(ctx, strings.TrimSpace(coachID))
}

// Replace creates or fully replaces a coach profile.
func (s *Service) Replace(ctx context.Context, a *CoachAvailability) (*CoachAvailability, error) {
	if a == nil {
		return nil, fmt.Errorf("%w: profile is nil", ErrInvalid)
	}
	next := a.Clone()
	next.CoachID = strings.TrimSpace(next.CoachID)
	sortOverrides(next.DateOverrides)
	if err := next.Validate(); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if next.CreatedAt.IsZero() {
		next.CreatedAt = now
	}
	next.UpdatedAt = now
	if err := s.store.Save(ctx, next, now, time.Time{}); err != nil {
		return nil, err
	}
	s.invalidate(ctx, next.CoachID)
	s.logger.Info("availability profile replaced", "coach_id", next.CoachID)
	return next, nil
}

// ReplaceRecurring swaps the whole recurring rule set.
func (s *Service) ReplaceRecurring(ctx context.Context, coachID string, rules []RecurringRule) (*CoachAvailability, error) {
	return s.mutate(ctx, coachID, "recurring rules replaced", func(a *CoachAvailability) error {
		a.RecurringAvailability = append([]RecurringRule{}, rules...)
		return nil
	})
}

// UpsertOverride adds the override for its date, replacing any existing one.
func (s *Service) UpsertOverride(ctx context.Context, coachID string, o DateOverride) (*CoachAvailability, error) {
	if err := ValidateOverride(o); err != nil {
		return nil, err
	}
	return s.mutate(ctx, coachID, "date override saved", func(a *CoachAvailability) error {
		a.DateOverrides = slices.DeleteFunc(a.DateOverrides, func(existing DateOverride) bool {
			return existing.Date == o.Date
		})
		a.DateOverrides = append(a.DateOverrides, o)
		sortOverrides(a.DateOverrides)
		return nil
	})
}

// RemoveOverride deletes the override for date.
func (s *Service) RemoveOverride(ctx context.Context, coachID, date string) (*CoachAvailability, error) {
	return s.mutate(ctx, coachID, "date override removed", func(a *CoachAvailability) error {
		before := len(a.DateOverrides)
		a.DateOverrides = slices.DeleteFunc(a.DateOverrides, func(existing DateOverride) bool {
			return existing.Date == date
		})
		if len(a.DateOverrides) == before {
			return fmt.Errorf("%w: no override for %s", ErrNotFound, date)
		}
		return nil
	})
}

// SetCurrentlyAvailable records the coach's declared "available now" flag.
func (s *Service) SetCurrentlyAvailable(ctx context.Context, coachID string, available bool) (*CoachAvailability, error) {
	return s.mutate(ctx, coachID, "current availability toggled", func(a *CoachAvailability) error {
		a.IsCurrentlyAvailable = available
		return nil
	})
}

// mutate performs an optimistic read-modify-write. Coaches without a profile
// start from DefaultProfile, and that first write is create-only.
func (s *Service) mutate(ctx context.Context, coachID, event string, apply func(*CoachAvailability) error) (*CoachAvailability, error) {
	coachID = strings.TrimSpace(coachID)
	if coachID == "" {
		return nil, fmt.Errorf("%w: coach_id is required", ErrInvalid)
	}

	current, err := s.store.LoadAvailability(ctx, coachID)
	var expected time.Time
	created := false
	switch {
	case err == nil:
		expected = current.UpdatedAt
	case errors.Is(err, ErrNotFound):
		current = DefaultProfile(coachID)
		created = true
	default:
		return nil, err
	}

	next := current.Clone()
	if err := apply(next); err != nil {
		return nil, err
	}
	if err := next.Validate(); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if next.CreatedAt.IsZero() {
		next.CreatedAt = now
	}
	next.UpdatedAt = now
	if created {
		err = s.store.Create(ctx, next, now)
	} else {
		err = s.store.Save(ctx, next, now, expected)
	}
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, coachID)
	s.logger.Info(event, "coach_id", coachID)
	return next, nil
}

func (s *Service) invalidate(ctx context.Context, coachID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, coachID); err != nil {
		s.logger.Warn("failed to invalidate availability cache", "coach_id", coachID, "error", err)
	}
}

func sortOverrides(overrides []DateOverride) {
	slices.SortStableFunc(overrides, func(a, b DateOverride) int {
		return strings.Compare(a.Date, b.Date)
	})
}
