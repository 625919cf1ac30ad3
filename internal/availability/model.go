// Package availability owns coach availability profiles: the weekly rules,
// per-date overrides and booking policy that the slot engine resolves.
package availability

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// DateLayout is the calendar-date format used for override keys.
	DateLayout = "2006-01-02"
	// ClockLayout is the local wall-clock format for rule boundaries.
	ClockLayout = "15:04"

	DefaultTimezone               = "UTC"
	DefaultSessionDuration        = 60
	DefaultAdvanceBookingDays     = 30
	DefaultLastMinuteBookingHours = 24
)

var (
	// ErrNotFound is returned when a coach has no availability profile.
	ErrNotFound = errors.New("availability: profile not found")
	// ErrInvalid wraps every validation failure.
	ErrInvalid = errors.New("availability: invalid profile")
	// ErrConflict is returned when a profile changed between read and write.
	ErrConflict = errors.New("availability: concurrent update")
)

// RecurringRule is a weekly open window. DayOfWeek follows time.Weekday (0=Sunday).
type RecurringRule struct {
	DayOfWeek int    `json:"day_of_week" yaml:"day_of_week"`
	StartTime string `json:"start_time" yaml:"start_time"`
	EndTime   string `json:"end_time" yaml:"end_time"`
	IsActive  bool   `json:"is_active" yaml:"is_active"`
}

// TimeRange is a local HH:MM span inside a date override.
type TimeRange struct {
	StartTime string `json:"start_time" yaml:"start_time"`
	EndTime   string `json:"end_time" yaml:"end_time"`
}

// DateOverride replaces recurring evaluation for a single calendar date.
type DateOverride struct {
	Date        string      `json:"date" yaml:"date"` // "2026-03-02"
	IsAvailable bool        `json:"is_available" yaml:"is_available"`
	TimeSlots   []TimeRange `json:"time_slots,omitempty" yaml:"time_slots,omitempty"`
	Reason      string      `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// BufferSettings are idle minutes enforced around existing sessions.
// BetweenSessions is stored for multi-session policies; slot resolution
// only applies BeforeSession and AfterSession.
type BufferSettings struct {
	BeforeSession   int `json:"before_session" yaml:"before_session"`
	AfterSession    int `json:"after_session" yaml:"after_session"`
	BetweenSessions int `json:"between_sessions" yaml:"between_sessions"`
}

// CoachAvailability is the declarative availability profile of one coach.
type CoachAvailability struct {
	CoachID                string          `json:"coach_id" yaml:"coach_id"`
	Timezone               string          `json:"timezone" yaml:"timezone"` // e.g. "America/New_York"
	RecurringAvailability  []RecurringRule `json:"recurring_availability" yaml:"recurring_availability"`
	DateOverrides          []DateOverride  `json:"date_overrides" yaml:"date_overrides"`
	BufferSettings         BufferSettings  `json:"buffer_settings" yaml:"buffer_settings"`
	DefaultSessionDuration int             `json:"default_session_duration" yaml:"default_session_duration"`
	AllowedDurations       []int           `json:"allowed_durations" yaml:"allowed_durations"`
	AdvanceBookingDays     int             `json:"advance_booking_days" yaml:"advance_booking_days"`
	LastMinuteBookingHours int             `json:"last_minute_booking_hours" yaml:"last_minute_booking_hours"`
	AutoAcceptBookings     bool            `json:"auto_accept_bookings" yaml:"auto_accept_bookings"`
	RequireApproval        bool            `json:"require_approval" yaml:"require_approval"`
	IsCurrentlyAvailable   bool            `json:"is_currently_available" yaml:"is_currently_available"`
	CreatedAt              time.Time       `json:"created_at" yaml:"-"`
	UpdatedAt              time.Time       `json:"updated_at" yaml:"-"`
}

// DefaultProfile returns the profile a coach starts with before editing anything.
func DefaultProfile(coachID string) *CoachAvailability {
	return &CoachAvailability{
		CoachID:                coachID,
		Timezone:               DefaultTimezone,
		RecurringAvailability:  []RecurringRule{},
		DateOverrides:          []DateOverride{},
		DefaultSessionDuration: DefaultSessionDuration,
		AllowedDurations:       []int{30, 60, 90},
		AdvanceBookingDays:     DefaultAdvanceBookingDays,
		LastMinuteBookingHours: DefaultLastMinuteBookingHours,
		AutoAcceptBookings:     true,
	}
}

// Location resolves the profile timezone, falling back to UTC.
func (a *CoachAvailability) Location() *time.Location {
	if a == nil || strings.TrimSpace(a.Timezone) == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// OverrideFor returns the override for a calendar date. If the set holds
// duplicates for one date the first entry wins.
func (a *CoachAvailability) OverrideFor(date string) (DateOverride, bool) {
	if a == nil {
		return DateOverride{}, false
	}
	for _, o := range a.DateOverrides {
		if o.Date == date {
			return o, true
		}
	}
	return DateOverride{}, false
}

// AllowsDuration reports whether minutes is bookable under the duration policy.
// An empty AllowedDurations list accepts any positive duration.
func (a *CoachAvailability) AllowsDuration(minutes int) bool {
	if minutes <= 0 {
		return false
	}
	if a == nil || len(a.AllowedDurations) == 0 {
		return true
	}
	for _, d := range a.AllowedDurations {
		if d == minutes {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers can mutate without touching shared state.
func (a *CoachAvailability) Clone() *CoachAvailability {
	if a == nil {
		return nil
	}
	cpy := *a
	cpy.RecurringAvailability = append([]RecurringRule(nil), a.RecurringAvailability...)
	cpy.AllowedDurations = append([]int(nil), a.AllowedDurations...)
	cpy.DateOverrides = make([]DateOverride, len(a.DateOverrides))
	for i, o := range a.DateOverrides {
		o.TimeSlots = append([]TimeRange(nil), o.TimeSlots...)
		cpy.DateOverrides[i] = o
	}
	return &cpy
}

// Validate checks the invariants a stored profile must satisfy.
func (a *CoachAvailability) Validate() error {
	if a == nil {
		return fmt.Errorf("%w: profile is nil", ErrInvalid)
	}
	if strings.TrimSpace(a.CoachID) == "" {
		return fmt.Errorf("%w: coach_id is required", ErrInvalid)
	}
	if _, err := time.LoadLocation(a.Timezone); err != nil || strings.TrimSpace(a.Timezone) == "" {
		return fmt.Errorf("%w: unknown timezone %q", ErrInvalid, a.Timezone)
	}
	for i, rule := range a.RecurringAvailability {
		if rule.DayOfWeek < 0 || rule.DayOfWeek > 6 {
			return fmt.Errorf("%w: recurring rule %d: day_of_week %d out of range", ErrInvalid, i, rule.DayOfWeek)
		}
		if err := validateSpan(rule.StartTime, rule.EndTime); err != nil {
			return fmt.Errorf("%w: recurring rule %d: %v", ErrInvalid, i, err)
		}
	}
	seen := make(map[string]struct{}, len(a.DateOverrides))
	for _, o := range a.DateOverrides {
		if err := ValidateOverride(o); err != nil {
			return err
		}
		if _, dup := seen[o.Date]; dup {
			return fmt.Errorf("%w: duplicate override for %s", ErrInvalid, o.Date)
		}
		seen[o.Date] = struct{}{}
	}
	b := a.BufferSettings
	if b.BeforeSession < 0 || b.AfterSession < 0 || b.BetweenSessions < 0 {
		return fmt.Errorf("%w: buffer minutes must be >= 0", ErrInvalid)
	}
	for _, d := range a.AllowedDurations {
		if d <= 0 {
			return fmt.Errorf("%w: allowed duration %d must be positive", ErrInvalid, d)
		}
	}
	if !a.AllowsDuration(a.DefaultSessionDuration) {
		return fmt.Errorf("%w: default_session_duration %d is not an allowed duration", ErrInvalid, a.DefaultSessionDuration)
	}
	if a.AdvanceBookingDays < 1 {
		return fmt.Errorf("%w: advance_booking_days must be >= 1", ErrInvalid)
	}
	if a.LastMinuteBookingHours < 0 {
		return fmt.Errorf("%w: last_minute_booking_hours must be >= 0", ErrInvalid)
	}
	return nil
}

// ValidateOverride checks a single override in isolation.
func ValidateOverride(o DateOverride) error {
	if _, err := time.Parse(DateLayout, o.Date); err != nil {
		return fmt.Errorf("%w: override date %q must be YYYY-MM-DD", ErrInvalid, o.Date)
	}
	for i, ts := range o.TimeSlots {
		if err := validateSpan(ts.StartTime, ts.EndTime); err != nil {
			return fmt.Errorf("%w: override %s slot %d: %v", ErrInvalid, o.Date, i, err)
		}
	}
	return nil
}

func validateSpan(start, end string) error {
	sh, sm, err := ParseClock(start)
	if err != nil {
		return err
	}
	eh, em, err := ParseClock(end)
	if err != nil {
		return err
	}
	if sh*60+sm >= eh*60+em {
		return fmt.Errorf("start %s must be before end %s", start, end)
	}
	return nil
}

// ParseClock parses a zero-padded 24-hour "HH:MM" value.
func ParseClock(value string) (hour, minute int, err error) {
	value = strings.TrimSpace(value)
	h, m, ok := strings.Cut(value, ":")
	if !ok || len(h) != 2 || len(m) != 2 {
		return 0, 0, fmt.Errorf("time %q must be HH:MM", value)
	}
	hour, err = strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("time %q has invalid hour", value)
	}
	minute, err = strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("time %q has invalid minute", value)
	}
	return hour, minute, nil
}

// ClockOn anchors an HH:MM value on the calendar date of day in loc.
func ClockOn(day time.Time, clock string, loc *time.Location) (time.Time, error) {
	h, m, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), h, m, 0, 0, loc), nil
}
