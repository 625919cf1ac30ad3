package slots

import (
	"time"

	"github.com/wolfman30/coaching-platform/internal/sessions"
)

// bufferedInterval is a busy interval widened by the coach's buffers.
type bufferedInterval struct {
	start time.Time
	end   time.Time
}

func bufferIntervals(busy []sessions.BusyInterval, p Policy) []bufferedInterval {
	out := make([]bufferedInterval, 0, len(busy))
	for _, b := range busy {
		out = append(out, bufferedInterval{
			start: b.Start.Add(-p.BufferBefore),
			end:   b.End.Add(p.BufferAfter),
		})
	}
	return out
}

// filterConflicts turns candidates into slots, blocking any whose span
// overlaps a buffered busy interval. Touching endpoints do not overlap.
func filterConflicts(candidates []time.Time, minutes int, busy []sessions.BusyInterval, p Policy) []AvailableSlot {
	buffered := bufferIntervals(busy, p)
	out := make([]AvailableSlot, 0, len(candidates))
	for _, c := range candidates {
		slot := newSlot(c, minutes)
		for _, b := range buffered {
			if slot.Start.Before(b.end) && slot.End.After(b.start) {
				slot.block(ReasonSessionConflict)
				break
			}
		}
		out = append(out, slot)
	}
	return out
}
