package slots

import "time"

// SlotStep is the spacing between generated candidates inside a recurring window.
const SlotStep = 30 * time.Minute

const (
	ReasonSessionConflict = "Conflicts with existing session"
	ReasonBeyondAdvance   = "Beyond advance booking limit"
	ReasonLastMinute      = "Within last-minute booking restriction"
)

// AvailableSlot is one evaluated candidate. End is always Start plus Duration
// minutes, and an unavailable slot always carries a ConflictReason.
type AvailableSlot struct {
	Start          time.Time `json:"start" yaml:"start"`
	End            time.Time `json:"end" yaml:"end"`
	Duration       int       `json:"duration" yaml:"duration"`
	IsAvailable    bool      `json:"is_available" yaml:"is_available"`
	ConflictReason string    `json:"conflict_reason,omitempty" yaml:"conflict_reason,omitempty"`
}

func newSlot(start time.Time, minutes int) AvailableSlot {
	return AvailableSlot{
		Start:       start,
		End:         start.Add(time.Duration(minutes) * time.Minute),
		Duration:    minutes,
		IsAvailable: true,
	}
}

func (s *AvailableSlot) block(reason string) {
	s.IsAvailable = false
	s.ConflictReason = reason
}
