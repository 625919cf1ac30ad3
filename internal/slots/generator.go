package slots

import (
	"slices"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/wolfman30/coaching-platform/internal/availability"
)

// weekdayTable maps time.Weekday to the rule consulted for that day. When a
// profile holds several active rules for one weekday the first one wins.
type weekdayTable [7]*availability.RecurringRule

func newWeekdayTable(rules []availability.RecurringRule) weekdayTable {
	var t weekdayTable
	for i := range rules {
		r := &rules[i]
		if !r.IsActive || r.DayOfWeek < 0 || r.DayOfWeek > 6 {
			continue
		}
		if t[r.DayOfWeek] == nil {
			t[r.DayOfWeek] = r
		}
	}
	return t
}

// generator expands one profile into candidate start instants, day by day.
type generator struct {
	profile  *availability.CoachAvailability
	loc      *time.Location
	weekdays weekdayTable
}

func newGenerator(a *availability.CoachAvailability) *generator {
	return &generator{
		profile:  a,
		loc:      a.Location(),
		weekdays: newWeekdayTable(a.RecurringAvailability),
	}
}

// candidates returns the strictly increasing start instants for the calendar
// date of day (interpreted in the coach's timezone).
func (g *generator) candidates(day time.Time, duration time.Duration) []time.Time {
	day = day.In(g.loc)
	date := day.Format(availability.DateLayout)
	if o, ok := g.profile.OverrideFor(date); ok {
		return g.overrideCandidates(day, o, duration)
	}

	rule := g.weekdays[day.Weekday()]
	if rule == nil {
		return nil
	}
	start, err := availability.ClockOn(day, rule.StartTime, g.loc)
	if err != nil {
		return nil
	}
	end, err := availability.ClockOn(day, rule.EndTime, g.loc)
	if err != nil {
		return nil
	}
	return stepCandidates(start, end, duration, g.loc)
}

// overrideCandidates treats every time slot of an available override as a
// single explicit candidate at its start time.
func (g *generator) overrideCandidates(day time.Time, o availability.DateOverride, duration time.Duration) []time.Time {
	if !o.IsAvailable {
		return nil
	}
	out := make([]time.Time, 0, len(o.TimeSlots))
	for _, ts := range o.TimeSlots {
		start, err := availability.ClockOn(day, ts.StartTime, g.loc)
		if err != nil {
			continue
		}
		end, err := availability.ClockOn(day, ts.EndTime, g.loc)
		if err != nil {
			continue
		}
		if start.Add(duration).After(end) {
			continue
		}
		out = append(out, start)
	}
	slices.SortFunc(out, func(a, b time.Time) int { return a.Compare(b) })
	return slices.CompactFunc(out, func(a, b time.Time) bool { return a.Equal(b) })
}

// stepCandidates lists instants every SlotStep from windowStart while the
// candidate plus duration still fits before windowEnd. Stepping runs in UTC
// so DST transitions inside the window keep a fixed spacing.
func stepCandidates(windowStart, windowEnd time.Time, duration time.Duration, loc *time.Location) []time.Time {
	last := windowEnd.Add(-duration)
	if last.Before(windowStart) {
		return nil
	}
	r, err := rrule.NewRRule(rrule.ROption{
		Freq:     rrule.MINUTELY,
		Interval: int(SlotStep / time.Minute),
		Dtstart:  windowStart.UTC(),
		Until:    last.UTC(),
	})
	if err != nil {
		return nil
	}
	occurrences := r.All()
	for i := range occurrences {
		occurrences[i] = occurrences[i].In(loc)
	}
	return occurrences
}
