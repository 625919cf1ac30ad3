package slots

import (
	"time"

	"github.com/wolfman30/coaching-platform/internal/availability"
)

// Policy is the per-coach configuration the resolver and gate consume.
// It is passed by value.
type Policy struct {
	BufferBefore           time.Duration
	BufferAfter            time.Duration
	AdvanceBookingDays     int
	LastMinuteBookingHours int
}

// PolicyFor extracts the slot policy from a profile.
func PolicyFor(a *availability.CoachAvailability) Policy {
	return Policy{
		BufferBefore:           time.Duration(a.BufferSettings.BeforeSession) * time.Minute,
		BufferAfter:            time.Duration(a.BufferSettings.AfterSession) * time.Minute,
		AdvanceBookingDays:     a.AdvanceBookingDays,
		LastMinuteBookingHours: a.LastMinuteBookingHours,
	}
}

// applyBookingWindow enforces the advance and last-minute limits relative to
// now. A slot already blocked by a session conflict keeps that reason.
func applyBookingWindow(slot AvailableSlot, now time.Time, p Policy) AvailableSlot {
	hours := slot.Start.Sub(now).Hours()
	days := hours / 24

	var reason string
	switch {
	case days > float64(p.AdvanceBookingDays):
		reason = ReasonBeyondAdvance
	case hours < float64(p.LastMinuteBookingHours):
		reason = ReasonLastMinute
	}
	if reason != "" && slot.IsAvailable {
		slot.block(reason)
	}
	return slot
}
