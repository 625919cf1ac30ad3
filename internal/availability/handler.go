package availability

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	httpmiddleware "github.com/wolfman30/coaching-platform/internal/http/middleware"
	"github.com/wolfman30/coaching-platform/pkg/logging"
)

// Handler exposes the availability profile over HTTP.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates an availability HTTP handler.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// ReadRoutes registers the public read routes on r. Paths are relative to
// /coaches/{coachID}.
func (h *Handler) ReadRoutes(r chi.Router) {
	r.Get("/availability", h.GetAvailability)
}

// WriteRoutes registers the coach-authenticated mutation routes on r.
func (h *Handler) WriteRoutes(r chi.Router) {
	r.Put("/availability", h.ReplaceAvailability)
	r.Put("/availability/recurring", h.ReplaceRecurring)
	r.Put("/availability/overrides/{date}", h.UpsertOverride)
	r.Delete("/availability/overrides/{date}", h.RemoveOverride)
	r.Put("/availability/status", h.SetStatus)
}

// GetAvailability returns the coach profile.
// GET /coaches/{coachID}/availability
func (h *Handler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	coachID := chi.URLParam(r, "coachID")
	a, err := h.service.Get(r.Context(), coachID)
	if err != nil {
		h.writeError(w, coachID, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// ReplaceAvailability creates or replaces the whole profile.
// PUT /coaches/{coachID}/availability
func (h *Handler) ReplaceAvailability(w http.ResponseWriter, r *http.Request) {
	coachID := chi.URLParam(r, "coachID")
	var body CoachAvailability
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	body.CoachID = coachID
	a, err := h.service.Replace(r.Context(), &body)
	if err != nil {
		h.writeError(w, coachID, err)
		return
	}
	h.audit(r, coachID, "replace_profile")
	writeJSON(w, http.StatusOK, a)
}

type recurringRequest struct {
	RecurringAvailability []RecurringRule `json:"recurring_availability"`
}

// ReplaceRecurring swaps the weekly rules.
// PUT /coaches/{coachID}/availability/recurring
func (h *Handler) ReplaceRecurring(w http.ResponseWriter, r *http.Request) {
	coachID := chi.URLParam(r, "coachID")
	var req recurringRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	a, err := h.service.ReplaceRecurring(r.Context(), coachID, req.RecurringAvailability)
	if err != nil {
		h.writeError(w, coachID, err)
		return
	}
	h.audit(r, coachID, "replace_recurring")
	writeJSON(w, http.StatusOK, a)
}

// UpsertOverride saves the override for the date in the path.
// PUT /coaches/{coachID}/availability/overrides/{date}
func (h *Handler) UpsertOverride(w http.ResponseWriter, r *http.Request) {
	coachID := chi.URLParam(r, "coachID")
	var o DateOverride
	if err := json.NewDecoder(r.Body).Decode(&o); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	o.Date = chi.URLParam(r, "date")
	a, err := h.service.UpsertOverride(r.Context(), coachID, o)
	if err != nil {
		h.writeError(w, coachID, err)
		return
	}
	h.audit(r, coachID, "upsert_override")
	writeJSON(w, http.StatusOK, a)
}

// RemoveOverride deletes the override for the date in the path.
// DELETE /coaches/{coachID}/availability/overrides/{date}
func (h *Handler) RemoveOverride(w http.ResponseWriter, r *http.Request) {
	coachID := chi.URLParam(r, "coachID")
	a, err := h.service.RemoveOverride(r.Context(), coachID, chi.URLParam(r, "date"))
	if err != nil {
		h.writeError(w, coachID, err)
		return
	}
	h.audit(r, coachID, "remove_override")
	writeJSON(w, http.StatusOK, a)
}

type statusRequest struct {
	IsCurrentlyAvailable *bool `json:"is_currently_available"`
}

// SetStatus toggles the "available now" flag.
// PUT /coaches/{coachID}/availability/status
func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	coachID := chi.URLParam(r, "coachID")
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if req.IsCurrentlyAvailable == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "is_currently_available is required"})
		return
	}
	a, err := h.service.SetCurrentlyAvailable(r.Context(), coachID, *req.IsCurrentlyAvailable)
	if err != nil {
		h.writeError(w, coachID, err)
		return
	}
	h.audit(r, coachID, "set_status")
	writeJSON(w, http.StatusOK, a)
}

// audit records an accepted edit with the identity carried by the coach token.
func (h *Handler) audit(r *http.Request, coachID, action string) {
	attrs := []any{"action", action, "request_id", chimiddleware.GetReqID(r.Context())}
	if claims, ok := httpmiddleware.CoachClaimsFromContext(r.Context()); ok {
		attrs = append(attrs, "actor", claims.Subject, "token_id", claims.ID)
	}
	h.logger.WithCoach(coachID).Info("availability edit accepted", attrs...)
}

func (h *Handler) writeError(w http.ResponseWriter, coachID string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": trimSentinel(err, ErrNotFound)})
	case errors.Is(err, ErrInvalid):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": trimSentinel(err, ErrInvalid)})
	case errors.Is(err, ErrConflict):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "availability was modified concurrently, retry"})
	default:
		h.logger.WithCoach(coachID).Error("availability request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

// trimSentinel strips the "availability: <sentinel>: " prefix so clients see
// only the specific reason.
func trimSentinel(err, sentinel error) string {
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
