// Package slots resolves a coach's availability profile and booked sessions
// into concrete bookable slots.
package slots

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/coaching-platform/internal/availability"
	"github.com/wolfman30/coaching-platform/internal/observability/metrics"
	"github.com/wolfman30/coaching-platform/internal/sessions"
	"github.com/wolfman30/coaching-platform/pkg/logging"
)

const (
	defaultStatusLookaheadDays = 7
	defaultMaxRangeDays        = 62
)

// AvailabilitySource loads coach profiles. A missing profile must be reported
// with an error wrapping availability.ErrNotFound.
type AvailabilitySource interface {
	LoadAvailability(ctx context.Context, coachID string) (*availability.CoachAvailability, error)
}

// SessionSource loads the sessions that occupy a coach's calendar.
type SessionSource interface {
	LoadBusyIntervals(ctx context.Context, coachID string, start, end time.Time, excludeSessionID string) ([]sessions.BusyInterval, error)
	LoadInProgressSession(ctx context.Context, coachID string, now time.Time) (*sessions.BusyInterval, error)
}

// Config wires an Engine.
type Config struct {
	Availability AvailabilitySource
	Sessions     SessionSource
	Logger       *logging.Logger
	Metrics      *metrics.SlotMetrics
	Tracer       trace.Tracer
	// Now defaults to time.Now.
	Now func() time.Time
	// StatusLookaheadDays bounds the "next available slot" scan.
	StatusLookaheadDays int
	// MaxRangeDays caps the number of calendar days one query may span.
	MaxRangeDays int
}

// Engine answers slot queries. It holds no mutable state and is safe for
// concurrent use.
type Engine struct {
	availability  AvailabilitySource
	sessions      SessionSource
	logger        *logging.Logger
	metrics       *metrics.SlotMetrics
	tracer        trace.Tracer
	now           func() time.Time
	lookaheadDays int
	maxRangeDays  int
}

// NewEngine constructs an engine from cfg.
func NewEngine(cfg Config) *Engine {
	if cfg.Availability == nil || cfg.Sessions == nil {
		panic("slots: availability and session sources are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer("coaching.internal.slots")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.StatusLookaheadDays <= 0 {
		cfg.StatusLookaheadDays = defaultStatusLookaheadDays
	}
	if cfg.MaxRangeDays <= 0 {
		cfg.MaxRangeDays = defaultMaxRangeDays
	}
	return &Engine{
		availability:  cfg.Availability,
		sessions:      cfg.Sessions,
		logger:        cfg.Logger,
		metrics:       cfg.Metrics,
		tracer:        cfg.Tracer,
		now:           cfg.Now,
		lookaheadDays: cfg.StatusLookaheadDays,
		maxRangeDays:  cfg.MaxRangeDays,
	}
}

// SlotQuery selects the slots GetAvailableSlots evaluates.
type SlotQuery struct {
	CoachID string
	// StartDate and EndDate bound the query. Every calendar date between them,
	// inclusive and in the coach's timezone, is evaluated.
	StartDate time.Time
	EndDate   time.Time
	// CalendarDates makes StartDate and EndDate plain calendar dates: their
	// year, month and day are read as-is instead of converting the instants
	// into the coach's timezone, and slots are not clipped to the instants.
	CalendarDates bool
	// Duration in minutes; zero selects the coach's default.
	Duration int
	// ExcludeSessionID ignores one session, typically the one being rescheduled.
	ExcludeSessionID string
}

// SlotCheck is the answer to a point query.
type SlotCheck struct {
	IsAvailable bool   `json:"is_available"`
	Reason      string `json:"reason,omitempty"`
}

// Status summarises whether a coach can be booked right now and when next.
type Status struct {
	IsCurrentlyAvailable bool           `json:"is_currently_available"`
	NextAvailableSlot    *AvailableSlot `json:"next_available_slot,omitempty"`
	CurrentSessionEnd    *time.Time     `json:"current_session_end,omitempty"`
}

// window is a validated query ready for resolution.
type window struct {
	firstDay time.Time
	lastDay  time.Time
	// from/to clip candidate starts when the query used instants.
	from, to         time.Time
	clip             bool
	minutes          int
	excludeSessionID string
}

// GetAvailableSlots evaluates every candidate in the query range and returns
// them ordered by start time, available or not.
func (e *Engine) GetAvailableSlots(ctx context.Context, q SlotQuery) (slots []AvailableSlot, err error) {
	started := time.Now()
	ctx, span := e.tracer.Start(ctx, "slots.get_available_slots")
	defer func() {
		e.finish(span, "get_available_slots", started, err)
	}()
	span.SetAttributes(attribute.String("coaching.coach_id", q.CoachID))

	return e.availableSlots(ctx, q, e.now())
}

func (e *Engine) availableSlots(ctx context.Context, q SlotQuery, now time.Time) ([]AvailableSlot, error) {
	q.CoachID = strings.TrimSpace(q.CoachID)
	if q.CoachID == "" {
		return nil, invalidf("coach id is required")
	}
	if q.StartDate.IsZero() || q.EndDate.IsZero() {
		return nil, invalidf("start and end dates are required")
	}
	if q.EndDate.Before(q.StartDate) {
		return nil, invalidf("end date %s is before start date %s", q.EndDate.Format(time.RFC3339), q.StartDate.Format(time.RFC3339))
	}

	profile, err := e.loadProfile(ctx, q.CoachID)
	if err != nil {
		return nil, err
	}
	minutes, err := resolveDuration(profile, q.Duration)
	if err != nil {
		return nil, err
	}

	loc := profile.Location()
	w := window{
		firstDay:         calendarDay(q.StartDate, loc, q.CalendarDates),
		lastDay:          calendarDay(q.EndDate, loc, q.CalendarDates),
		from:             q.StartDate,
		to:               q.EndDate,
		clip:             !q.CalendarDates,
		minutes:          minutes,
		excludeSessionID: strings.TrimSpace(q.ExcludeSessionID),
	}
	if days := daySpan(w.firstDay, w.lastDay); days > e.maxRangeDays {
		return nil, invalidf("range spans %d days, limit is %d", days, e.maxRangeDays)
	}
	return e.resolve(ctx, profile, w, now)
}

// IsSlotAvailable reports whether the exact slot [start, start+duration) is
// bookable. A slot that was never generated yields ErrNotFound.
func (e *Engine) IsSlotAvailable(ctx context.Context, coachID string, start time.Time, duration int, excludeSessionID string) (check SlotCheck, err error) {
	started := time.Now()
	ctx, span := e.tracer.Start(ctx, "slots.is_slot_available")
	defer func() {
		e.finish(span, "is_slot_available", started, err)
	}()
	span.SetAttributes(attribute.String("coaching.coach_id", coachID))

	if duration <= 0 {
		return SlotCheck{}, invalidf("duration must be positive")
	}
	if start.IsZero() {
		return SlotCheck{}, invalidf("start time is required")
	}
	slots, err := e.availableSlots(ctx, SlotQuery{
		CoachID:          coachID,
		StartDate:        start,
		EndDate:          start.Add(time.Duration(duration) * time.Minute),
		Duration:         duration,
		ExcludeSessionID: excludeSessionID,
	}, e.now())
	if err != nil {
		return SlotCheck{}, err
	}
	for _, s := range slots {
		if s.Start.Equal(start) && s.Duration == duration {
			return SlotCheck{IsAvailable: s.IsAvailable, Reason: s.ConflictReason}, nil
		}
	}
	return SlotCheck{}, fmt.Errorf("%w: %s", ErrNotFound, ReasonNoAvailability)
}

// GetCurrentAvailabilityStatus reports the coach's declared availability, the
// first open slot within the lookahead window and the end of any running session.
func (e *Engine) GetCurrentAvailabilityStatus(ctx context.Context, coachID string) (status Status, err error) {
	started := time.Now()
	ctx, span := e.tracer.Start(ctx, "slots.current_status")
	defer func() {
		e.finish(span, "current_status", started, err)
	}()
	span.SetAttributes(attribute.String("coaching.coach_id", coachID))

	coachID = strings.TrimSpace(coachID)
	if coachID == "" {
		return Status{}, invalidf("coach id is required")
	}
	profile, err := e.loadProfile(ctx, coachID)
	if err != nil {
		return Status{}, err
	}
	minutes, err := resolveDuration(profile, 0)
	if err != nil {
		return Status{}, err
	}

	now := e.now()
	loc := profile.Location()
	horizon := now.AddDate(0, 0, e.lookaheadDays)
	slots, err := e.resolve(ctx, profile, window{
		firstDay: calendarDay(now, loc, false),
		lastDay:  calendarDay(horizon, loc, false),
		from:     now,
		to:       horizon,
		clip:     true,
		minutes:  minutes,
	}, now)
	if err != nil {
		return Status{}, err
	}

	status.IsCurrentlyAvailable = profile.IsCurrentlyAvailable
	for i := range slots {
		if slots[i].IsAvailable && slots[i].Start.After(now) {
			next := slots[i]
			status.NextAvailableSlot = &next
			break
		}
	}

	current, err := e.sessions.LoadInProgressSession(ctx, coachID, now)
	if err != nil {
		return Status{}, &AdapterError{Op: "load in-progress session", Err: err}
	}
	if current != nil {
		end := current.End
		status.CurrentSessionEnd = &end
	}
	return status, nil
}

// resolve runs generator, conflict resolver and booking window over w.
func (e *Engine) resolve(ctx context.Context, profile *availability.CoachAvailability, w window, now time.Time) ([]AvailableSlot, error) {
	loc := profile.Location()
	policy := PolicyFor(profile)
	gen := newGenerator(profile)
	duration := time.Duration(w.minutes) * time.Minute

	busyFrom := w.firstDay.Add(-policy.BufferAfter)
	busyTo := nextDay(w.lastDay, loc).Add(policy.BufferBefore)
	busy, err := e.sessions.LoadBusyIntervals(ctx, profile.CoachID, busyFrom, busyTo, w.excludeSessionID)
	if err != nil {
		return nil, &AdapterError{Op: "load busy intervals", Err: err}
	}
	if w.excludeSessionID != "" {
		busy = slices.DeleteFunc(busy, func(b sessions.BusyInterval) bool {
			return b.SessionID == w.excludeSessionID
		})
	}

	var out []AvailableSlot
	for day := w.firstDay; !day.After(w.lastDay); day = nextDay(day, loc) {
		candidates := gen.candidates(day, duration)
		if w.clip {
			candidates = slices.DeleteFunc(candidates, func(c time.Time) bool {
				return c.Before(w.from) || c.After(w.to)
			})
		}
		for _, slot := range filterConflicts(candidates, w.minutes, busy, policy) {
			out = append(out, applyBookingWindow(slot, now, policy))
		}
	}
	slices.SortStableFunc(out, func(a, b AvailableSlot) int { return a.Start.Compare(b.Start) })

	available := 0
	for _, s := range out {
		if s.IsAvailable {
			available++
		}
	}
	e.metrics.ObserveEvaluated(available, len(out)-available)
	e.logger.Debug("slots resolved",
		"coach_id", profile.CoachID,
		"first_day", w.firstDay.Format(availability.DateLayout),
		"last_day", w.lastDay.Format(availability.DateLayout),
		"duration", w.minutes,
		"busy", len(busy),
		"candidates", len(out),
		"available", available,
	)
	return out, nil
}

func (e *Engine) loadProfile(ctx context.Context, coachID string) (*availability.CoachAvailability, error) {
	profile, err := e.availability.LoadAvailability(ctx, coachID)
	if err != nil {
		if errors.Is(err, availability.ErrNotFound) {
			return nil, fmt.Errorf("%w: no availability profile for coach %s", ErrNotFound, coachID)
		}
		return nil, &AdapterError{Op: "load availability", Err: err}
	}
	if profile == nil {
		return nil, fmt.Errorf("%w: no availability profile for coach %s", ErrNotFound, coachID)
	}
	return profile, nil
}

func (e *Engine) finish(span trace.Span, operation string, started time.Time, err error) {
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, ErrAdapterFailure) {
			e.logger.Error("slot query failed", "operation", operation, "error", err)
		}
	}
	span.End()
	e.metrics.ObserveQuery(operation, statusLabel(err), time.Since(started).Seconds())
}

func statusLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidParameter):
		return "invalid"
	default:
		return "error"
	}
}

func resolveDuration(profile *availability.CoachAvailability, requested int) (int, error) {
	minutes := requested
	if minutes == 0 {
		minutes = profile.DefaultSessionDuration
		if minutes <= 0 {
			minutes = availability.DefaultSessionDuration
		}
	}
	if minutes < 0 {
		return 0, invalidf("duration must be positive")
	}
	if !profile.AllowsDuration(minutes) {
		return 0, invalidf("duration %d is not an allowed session length", minutes)
	}
	return minutes, nil
}

// calendarDay returns local midnight of t's calendar date in loc. When
// asCalendar is set t's own year, month and day are used.
func calendarDay(t time.Time, loc *time.Location, asCalendar bool) time.Time {
	if !asCalendar {
		t = t.In(loc)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func nextDay(day time.Time, loc *time.Location) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day()+1, 0, 0, 0, 0, loc)
}

func daySpan(first, last time.Time) int {
	a := time.Date(first.Year(), first.Month(), first.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(last.Year(), last.Month(), last.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours()/24) + 1
}
