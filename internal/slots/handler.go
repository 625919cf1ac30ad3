package slots

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/coaching-platform/internal/availability"
	"github.com/wolfman30/coaching-platform/pkg/logging"
)

// Handler exposes the engine over HTTP.
type Handler struct {
	engine *Engine
	logger *logging.Logger
	now    func() time.Time
}

// NewHandler creates a slot HTTP handler.
func NewHandler(engine *Engine, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{engine: engine, logger: logger, now: time.Now}
}

// Routes registers the slot routes on r. Paths are relative to /coaches/{coachID}.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/slots", h.ListSlots)
	r.Get("/slots/check", h.CheckSlot)
	r.Get("/slots.ics", h.SlotsCalendar)
	r.Get("/status", h.CurrentStatus)
}

type slotsResponse struct {
	CoachID string          `json:"coach_id"`
	Slots   []AvailableSlot `json:"slots"`
}

// ListSlots returns every evaluated slot in the range.
// GET /coaches/{coachID}/slots?start=&end=&duration=&exclude_session_id=
func (h *Handler) ListSlots(w http.ResponseWriter, r *http.Request) {
	coachID := chi.URLParam(r, "coachID")
	q, err := parseSlotQuery(r, coachID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	slots, err := h.engine.GetAvailableSlots(r.Context(), q)
	if err != nil {
		h.writeError(w, coachID, err)
		return
	}
	if slots == nil {
		slots = []AvailableSlot{}
	}
	writeJSON(w, http.StatusOK, slotsResponse{CoachID: coachID, Slots: slots})
}

// CheckSlot answers whether one exact slot is bookable.
// GET /coaches/{coachID}/slots/check?start=<RFC3339>&duration=&exclude_session_id=
func (h *Handler) CheckSlot(w http.ResponseWriter, r *http.Request) {
	coachID := chi.URLParam(r, "coachID")
	values := r.URL.Query()
	start, err := time.Parse(time.RFC3339, values.Get("start"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "start must be an RFC3339 timestamp"})
		return
	}
	duration, err := parseDuration(values.Get("duration"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	check, err := h.engine.IsSlotAvailable(r.Context(), coachID, start, duration, values.Get("exclude_session_id"))
	if err != nil {
		h.writeError(w, coachID, err)
		return
	}
	writeJSON(w, http.StatusOK, check)
}

// CurrentStatus reports the coach's live availability.
// GET /coaches/{coachID}/status
func (h *Handler) CurrentStatus(w http.ResponseWriter, r *http.Request) {
	coachID := chi.URLParam(r, "coachID")
	status, err := h.engine.GetCurrentAvailabilityStatus(r.Context(), coachID)
	if err != nil {
		h.writeError(w, coachID, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// SlotsCalendar serves the open slots in the range as text/calendar.
// GET /coaches/{coachID}/slots.ics?start=&end=&duration=
func (h *Handler) SlotsCalendar(w http.ResponseWriter, r *http.Request) {
	coachID := chi.URLParam(r, "coachID")
	q, err := parseSlotQuery(r, coachID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	slots, err := h.engine.GetAvailableSlots(r.Context(), q)
	if err != nil {
		h.writeError(w, coachID, err)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := WriteCalendar(w, coachID, slots, h.now()); err != nil {
		h.logger.Error("failed to write slot calendar", "coach_id", coachID, "error", err)
	}
}

// parseSlotQuery reads start/end as either YYYY-MM-DD dates or RFC3339
// instants. end defaults to start.
func parseSlotQuery(r *http.Request, coachID string) (SlotQuery, error) {
	values := r.URL.Query()
	rawStart := strings.TrimSpace(values.Get("start"))
	if rawStart == "" {
		return SlotQuery{}, errors.New("start is required")
	}
	rawEnd := strings.TrimSpace(values.Get("end"))
	if rawEnd == "" {
		rawEnd = rawStart
	}
	start, startIsDate, err := parseBound(rawStart)
	if err != nil {
		return SlotQuery{}, errors.New("start must be YYYY-MM-DD or RFC3339")
	}
	end, endIsDate, err := parseBound(rawEnd)
	if err != nil {
		return SlotQuery{}, errors.New("end must be YYYY-MM-DD or RFC3339")
	}
	if startIsDate != endIsDate {
		return SlotQuery{}, errors.New("start and end must use the same format")
	}
	duration, err := parseDuration(values.Get("duration"))
	if err != nil {
		return SlotQuery{}, err
	}
	return SlotQuery{
		CoachID:          coachID,
		StartDate:        start,
		EndDate:          end,
		CalendarDates:    startIsDate,
		Duration:         duration,
		ExcludeSessionID: values.Get("exclude_session_id"),
	}, nil
}

func parseBound(value string) (time.Time, bool, error) {
	if t, err := time.Parse(availability.DateLayout, value); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	return t, false, err
}

func parseDuration(value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	minutes, err := strconv.Atoi(value)
	if err != nil {
		return 0, errors.New("duration must be an integer number of minutes")
	}
	return minutes, nil
}

func (h *Handler) writeError(w http.ResponseWriter, coachID string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": clientMessage(err, ErrNotFound)})
	case errors.Is(err, ErrInvalidParameter):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": clientMessage(err, ErrInvalidParameter)})
	default:
		h.logger.WithCoach(coachID).Error("slot request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func clientMessage(err, sentinel error) string {
	msg := err.Error()
	if rest, ok := strings.CutPrefix(msg, sentinel.Error()+": "); ok {
		return rest
	}
	return msg
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
