package sessions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("coaching.internal.sessions")

type rowQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository reads coaching sessions from Postgres.
type Repository struct {
	db rowQuerier
}

// NewRepository creates a repository backed by a pgx pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("sessions: pgx pool required")
	}
	return &Repository{db: pool}
}

func newRepositoryWithQuerier(db rowQuerier) *Repository {
	if db == nil {
		panic("sessions: querier required")
	}
	return &Repository{db: db}
}

const busyIntervalsSQL = `
	SELECT id::text, scheduled_at, duration_minutes, status
	FROM coaching_sessions
	WHERE coach_id = $1
	  AND status = ANY($2)
	  AND scheduled_at < $3
	  AND scheduled_at + make_interval(mins => duration_minutes) > $4
	  AND ($5 = '' OR id::text <> $5)
	ORDER BY scheduled_at, id
`

// LoadBusyIntervals returns calendar-occupying sessions of coachID that
// intersect [start, end), skipping excludeSessionID when set.
func (r *Repository) LoadBusyIntervals(ctx context.Context, coachID string, start, end time.Time, excludeSessionID string) ([]BusyInterval, error) {
	ctx, span := tracer.Start(ctx, "sessions.busy_intervals")
	defer span.End()
	span.SetAttributes(attribute.String("coaching.coach_id", coachID))

	rows, err := r.db.Query(ctx, busyIntervalsSQL, coachID, statusStrings(OccupyingStatuses()), end.UTC(), start.UTC(), excludeSessionID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("sessions: query busy intervals: %w", err)
	}
	defer rows.Close()

	var out []BusyInterval
	for rows.Next() {
		b, err := scanInterval(rows)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("sessions: iterate busy intervals: %w", err)
	}
	span.SetAttributes(attribute.Int("coaching.busy_intervals", len(out)))
	return out, nil
}

const inProgressSQL = `
	SELECT id::text, scheduled_at, duration_minutes, status
	FROM coaching_sessions
	WHERE coach_id = $1
	  AND status = 'in-progress'
	  AND scheduled_at <= $2
	ORDER BY scheduled_at DESC
	LIMIT 1
`

// LoadInProgressSession returns the session the coach is currently running,
// or nil when there is none.
func (r *Repository) LoadInProgressSession(ctx context.Context, coachID string, now time.Time) (*BusyInterval, error) {
	ctx, span := tracer.Start(ctx, "sessions.in_progress")
	defer span.End()
	span.SetAttributes(attribute.String("coaching.coach_id", coachID))

	b, err := scanInterval(r.db.QueryRow(ctx, inProgressSQL, coachID, now.UTC()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, err
	}
	return &b, nil
}

func scanInterval(row pgx.Row) (BusyInterval, error) {
	var (
		b        BusyInterval
		duration int32
		status   string
	)
	if err := row.Scan(&b.SessionID, &b.Start, &duration, &status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return BusyInterval{}, err
		}
		return BusyInterval{}, fmt.Errorf("sessions: scan session: %w", err)
	}
	b.Start = b.Start.UTC()
	b.End = b.Start.Add(time.Duration(duration) * time.Minute)
	b.Status = Status(status)
	return b, nil
}

func statusStrings(statuses []Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
