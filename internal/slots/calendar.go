package slots

import (
	"fmt"
	"io"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/google/uuid"
)

const calendarProductID = "-//coaching-platform//slots//EN"

// BuildCalendar renders the open slots of a coach as an iCalendar feed.
// Unavailable slots are left out. Event UIDs are stable for a given coach,
// start and duration so subscribers update rather than duplicate events.
func BuildCalendar(coachID string, slots []AvailableSlot, stamp time.Time) *ics.Calendar {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(calendarProductID)
	cal.SetXWRCalName(fmt.Sprintf("Open slots for %s", coachID))

	for _, s := range slots {
		if !s.IsAvailable {
			continue
		}
		event := cal.AddEvent(slotUID(coachID, s))
		event.SetDtStampTime(stamp.UTC())
		event.SetStartAt(s.Start.UTC())
		event.SetEndAt(s.End.UTC())
		event.SetSummary(fmt.Sprintf("Open coaching slot (%d min)", s.Duration))
	}
	return cal
}

// WriteCalendar serialises BuildCalendar's output to w.
func WriteCalendar(w io.Writer, coachID string, slots []AvailableSlot, stamp time.Time) error {
	_, err := io.WriteString(w, BuildCalendar(coachID, slots, stamp).Serialize())
	return err
}

func slotUID(coachID string, s AvailableSlot) string {
	name := fmt.Sprintf("%s/%s/%d", coachID, s.Start.UTC().Format(time.RFC3339), s.Duration)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}
