// Package sessions reads the coach's booked sessions that constrain which
// slots are still open.
package sessions

import "time"

// Status is the lifecycle state of a coaching session.
type Status string

const (
	StatusPending     Status = "pending"
	StatusConfirmed   Status = "confirmed"
	StatusInProgress  Status = "in-progress"
	StatusRescheduled Status = "rescheduled"
	StatusCompleted   Status = "completed"
	StatusCancelled   Status = "cancelled"
	StatusNoShow      Status = "no-show"
)

// OccupiesCalendar reports whether a session in this state blocks the coach's time.
func (s Status) OccupiesCalendar() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusInProgress, StatusRescheduled:
		return true
	default:
		return false
	}
}

// OccupyingStatuses lists every status that blocks the calendar.
func OccupyingStatuses() []Status {
	return []Status{StatusPending, StatusConfirmed, StatusInProgress, StatusRescheduled}
}

// BusyInterval is the time an existing session occupies, before buffers.
type BusyInterval struct {
	SessionID string    `json:"session_id" yaml:"session_id"`
	Start     time.Time `json:"start" yaml:"start"`
	End       time.Time `json:"end" yaml:"end"`
	Status    Status    `json:"status" yaml:"status"`
}

// Overlaps reports whether [start, end) intersects the interval.
func (b BusyInterval) Overlaps(start, end time.Time) bool {
	return start.Before(b.End) && end.After(b.Start)
}
