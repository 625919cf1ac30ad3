package availability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var storeTracer = otel.Tracer("coaching.internal.availability.store")

type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists availability profiles in Postgres.
type Store struct {
	db rowQuerier
}

// NewStore creates a store backed by a pgx pool.
func NewStore(pool *pgxpool.Pool) *Store {
	if pool == nil {
		panic("availability: pgx pool required")
	}
	return &Store{db: pool}
}

func newStoreWithQuerier(db rowQuerier) *Store {
	if db == nil {
		panic("availability: querier required")
	}
	return &Store{db: db}
}

const selectProfileSQL = `
	SELECT coach_id, timezone, recurring_availability, date_overrides,
	       buffer_before_minutes, buffer_after_minutes, buffer_between_minutes,
	       default_session_duration, allowed_durations,
	       advance_booking_days, last_minute_booking_hours,
	       auto_accept_bookings, require_approval, is_currently_available,
	       created_at, updated_at
	FROM coach_availability
	WHERE coach_id = $1
`

// LoadAvailability fetches a coach profile, returning ErrNotFound when absent.
func (s *Store) LoadAvailability(ctx context.Context, coachID string) (*CoachAvailability, error) {
	ctx, span := storeTracer.Start(ctx, "availability.load")
	defer span.End()
	span.SetAttributes(attribute.String("coaching.coach_id", coachID))

	var (
		a         CoachAvailability
		rulesJSON []byte
		overJSON  []byte
		durations []int32
	)
	err := s.db.QueryRow(ctx, selectProfileSQL, coachID).Scan(
		&a.CoachID, &a.Timezone, &rulesJSON, &overJSON,
		&a.BufferSettings.BeforeSession, &a.BufferSettings.AfterSession, &a.BufferSettings.BetweenSessions,
		&a.DefaultSessionDuration, &durations,
		&a.AdvanceBookingDays, &a.LastMinuteBookingHours,
		&a.AutoAcceptBookings, &a.RequireApproval, &a.IsCurrentlyAvailable,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, coachID)
		}
		span.RecordError(err)
		return nil, fmt.Errorf("availability: load profile: %w", err)
	}
	if len(rulesJSON) > 0 {
		if err := json.Unmarshal(rulesJSON, &a.RecurringAvailability); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("availability: decode recurring rules: %w", err)
		}
	}
	if len(overJSON) > 0 {
		if err := json.Unmarshal(overJSON, &a.DateOverrides); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("availability: decode overrides: %w", err)
		}
	}
	a.AllowedDurations = make([]int, 0, len(durations))
	for _, d := range durations {
		a.AllowedDurations = append(a.AllowedDurations, int(d))
	}
	return &a, nil
}

const upsertProfileSQL = `
	INSERT INTO coach_availability (
		coach_id, timezone, recurring_availability, date_overrides,
		buffer_before_minutes, buffer_after_minutes, buffer_between_minutes,
		default_session_duration, allowed_durations,
		advance_booking_days, last_minute_booking_hours,
		auto_accept_bookings, require_approval, is_currently_available,
		created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $15)
	ON CONFLICT (coach_id) DO UPDATE SET
		timezone = EXCLUDED.timezone,
		recurring_availability = EXCLUDED.recurring_availability,
		date_overrides = EXCLUDED.date_overrides,
		buffer_before_minutes = EXCLUDED.buffer_before_minutes,
		buffer_after_minutes = EXCLUDED.buffer_after_minutes,
		buffer_between_minutes = EXCLUDED.buffer_between_minutes,
		default_session_duration = EXCLUDED.default_session_duration,
		allowed_durations = EXCLUDED.allowed_durations,
		advance_booking_days = EXCLUDED.advance_booking_days,
		last_minute_booking_hours = EXCLUDED.last_minute_booking_hours,
		auto_accept_bookings = EXCLUDED.auto_accept_bookings,
		require_approval = EXCLUDED.require_approval,
		is_currently_available = EXCLUDED.is_currently_available,
		updated_at = EXCLUDED.updated_at
	WHERE $16::timestamptz IS NULL OR coach_availability.updated_at = $16
`

// Save upserts a profile stamped with updatedAt. When expected is non-zero the
// write only applies if the stored row still carries that updated_at, and
// ErrConflict is returned otherwise.
func (s *Store) Save(ctx context.Context, a *CoachAvailability, updatedAt, expected time.Time) error {
	ctx, span := storeTracer.Start(ctx, "availability.save")
	defer span.End()
	span.SetAttributes(attribute.String("coaching.coach_id", a.CoachID))

	args, err := profileArgs(a, updatedAt)
	if err != nil {
		return err
	}
	var expectedArg *time.Time
	if !expected.IsZero() {
		expectedArg = &expected
	}

	ct, err := s.db.Exec(ctx, upsertProfileSQL, append(args, expectedArg)...)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("availability: save profile: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrConflict, a.CoachID)
	}
	return nil
}

const insertProfileSQL = `
	INSERT INTO coach_availability (
		coach_id, timezone, recurring_availability, date_overrides,
		buffer_before_minutes, buffer_after_minutes, buffer_between_minutes,
		default_session_duration, allowed_durations,
		advance_booking_days, last_minute_booking_hours,
		auto_accept_bookings, require_approval, is_currently_available,
		created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $15)
	ON CONFLICT (coach_id) DO NOTHING
`

// Create inserts a profile that must not exist yet. A row written by a
// concurrent first edit yields ErrConflict.
func (s *Store) Create(ctx context.Context, a *CoachAvailability, updatedAt time.Time) error {
	ctx, span := storeTracer.Start(ctx, "availability.create")
	defer span.End()
	span.SetAttributes(attribute.String("coaching.coach_id", a.CoachID))

	args, err := profileArgs(a, updatedAt)
	if err != nil {
		return err
	}
	ct, err := s.db.Exec(ctx, insertProfileSQL, args...)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("availability: create profile: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrConflict, a.CoachID)
	}
	return nil
}

// profileArgs renders $1..$15 of the profile write statements.
func profileArgs(a *CoachAvailability, updatedAt time.Time) ([]any, error) {
	rulesJSON, err := json.Marshal(nonNilRules(a.RecurringAvailability))
	if err != nil {
		return nil, fmt.Errorf("availability: encode recurring rules: %w", err)
	}
	overJSON, err := json.Marshal(nonNilOverrides(a.DateOverrides))
	if err != nil {
		return nil, fmt.Errorf("availability: encode overrides: %w", err)
	}
	durations := make([]int32, 0, len(a.AllowedDurations))
	for _, d := range a.AllowedDurations {
		durations = append(durations, int32(d))
	}
	return []any{
		a.CoachID, a.Timezone, rulesJSON, overJSON,
		a.BufferSettings.BeforeSession, a.BufferSettings.AfterSession, a.BufferSettings.BetweenSessions,
		a.DefaultSessionDuration, durations,
		a.AdvanceBookingDays, a.LastMinuteBookingHours,
		a.AutoAcceptBookings, a.RequireApproval, a.IsCurrentlyAvailable,
		updatedAt,
	}, nil
}

func nonNilRules(rules []RecurringRule) []RecurringRule {
	if rules == nil {
		return []RecurringRule{}
	}
	return rules
}

func nonNilOverrides(overrides []DateOverride) []DateOverride {
	if overrides == nil {
		return []DateOverride{}
	}
	return overrides
}
