package slots

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/wolfman30/coaching-platform/internal/availability"
	"github.com/wolfman30/coaching-platform/internal/sessions"
)

type fakeAvailability struct {
	profiles map[string]*availability.CoachAvailability
	err      error
}

func (f *fakeAvailability) LoadAvailability(_ context.Context, coachID string) (*availability.CoachAvailability, error) {
	if f.err != nil {
		return nil, f.err
	}
	a, ok := f.profiles[coachID]
	if !ok {
		return nil, availability.ErrNotFound
	}
	return a.Clone(), nil
}

// fakeSessions returns every stored interval regardless of the requested
// window or exclusion, so engine-side filtering is exercised.
type fakeSessions struct {
	busy       []sessions.BusyInterval
	inProgress *sessions.BusyInterval
	err        error
	calls      int
	lastStart  time.Time
	lastEnd    time.Time
}

func (f *fakeSessions) LoadBusyIntervals(_ context.Context, _ string, start, end time.Time, _ string) ([]sessions.BusyInterval, error) {
	f.calls++
	f.lastStart, f.lastEnd = start, end
	if f.err != nil {
		return nil, f.err
	}
	return append([]sessions.BusyInterval(nil), f.busy...), nil
}

func (f *fakeSessions) LoadInProgressSession(_ context.Context, _ string, _ time.Time) (*sessions.BusyInterval, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.inProgress, nil
}

var errDatabaseDown = errors.New("database down")

func newYork(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return loc
}

// mondayCoach is available Mondays 09:00-17:00 New York time with 15 minute
// buffers on both sides of a session.
func mondayCoach() *availability.CoachAvailability {
	a := availability.DefaultProfile("coach-1")
	a.Timezone = "America/New_York"
	a.RecurringAvailability = []availability.RecurringRule{
		{DayOfWeek: int(time.Monday), StartTime: "09:00", EndTime: "17:00", IsActive: true},
	}
	a.BufferSettings = availability.BufferSettings{BeforeSession: 15, AfterSession: 15}
	return a
}

func newTestEngine(profile *availability.CoachAvailability, busy *fakeSessions, now time.Time) *Engine {
	return NewEngine(Config{
		Availability: &fakeAvailability{profiles: map[string]*availability.CoachAvailability{profile.CoachID: profile}},
		Sessions:     busy,
		Now:          func() time.Time { return now },
	})
}

func localClock(loc *time.Location, year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, loc)
}

func mondayDate() time.Time {
	return time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)
}

func assertInstant(t *testing.T, want, got time.Time) {
	t.Helper()
	if !want.Equal(got) {
		t.Fatalf("expected %s, got %s", want.Format(time.RFC3339), got.Format(time.RFC3339))
	}
}
