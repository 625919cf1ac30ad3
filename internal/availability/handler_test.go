package availability

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpmiddleware "github.com/wolfman30/coaching-platform/internal/http/middleware"
	"github.com/wolfman30/coaching-platform/pkg/logging"
)

func newTestRouter(store *memoryStore) http.Handler {
	svc, _ := newTestService(store)
	h := NewHandler(svc, nil)
	r := chi.NewRouter()
	r.Route("/coaches/{coachID}", func(r chi.Router) {
		h.ReadRoutes(r)
		h.WriteRoutes(r)
	})
	return r
}

func TestHandlerGetAvailability(t *testing.T) {
	store := newMemoryStore()
	store.profiles["coach-1"] = validProfile()
	router := newTestRouter(store)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/coaches/coach-1/availability", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got CoachAvailability
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "America/New_York", got.Timezone)
}

func TestHandlerGetAvailabilityNotFound(t *testing.T) {
	router := newTestRouter(newMemoryStore())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/coaches/ghost/availability", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error"`)
}

func TestHandlerReplaceUsesPathCoach(t *testing.T) {
	store := newMemoryStore()
	router := newTestRouter(store)

	body := `{"coach_id":"someone-else","timezone":"Europe/London","default_session_duration":60,"allowed_durations":[60],"advance_booking_days":14}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/coaches/coach-2/availability", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.Contains(t, store.profiles, "coach-2")
	assert.NotContains(t, store.profiles, "someone-else")
	assert.Equal(t, "Europe/London", store.profiles["coach-2"].Timezone)
}

func TestHandlerValidationErrors(t *testing.T) {
	router := newTestRouter(newMemoryStore())

	tests := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{"bad json", http.MethodPut, "/coaches/coach-1/availability", "{"},
		{"invalid rule", http.MethodPut, "/coaches/coach-1/availability/recurring", `{"recurring_availability":[{"day_of_week":9,"start_time":"09:00","end_time":"10:00","is_active":true}]}`},
		{"bad override date", http.MethodPut, "/coaches/coach-1/availability/overrides/tomorrow", `{"is_available":false}`},
		{"missing status flag", http.MethodPut, "/coaches/coach-1/availability/status", `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body)))
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestHandlerOverrideLifecycle(t *testing.T) {
	store := newMemoryStore()
	store.profiles["coach-1"] = validProfile()
	router := newTestRouter(store)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/coaches/coach-1/availability/overrides/2026-03-02",
		strings.NewReader(`{"is_available":false,"reason":"holiday"}`)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, store.profiles["coach-1"].DateOverrides, 1)
	assert.Equal(t, "holiday", store.profiles["coach-1"].DateOverrides[0].Reason)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/coaches/coach-1/availability/overrides/2026-03-02", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, store.profiles["coach-1"].DateOverrides)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/coaches/coach-1/availability/overrides/2026-03-02", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerConflictMapsTo409(t *testing.T) {
	store := newMemoryStore()
	store.profiles["coach-1"] = validProfile()
	store.saveErr = ErrConflict
	router := newTestRouter(store)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/coaches/coach-1/availability/status",
		strings.NewReader(`{"is_currently_available":true}`)))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandlerLogsAuthenticatedEditor(t *testing.T) {
	store := newMemoryStore()
	store.profiles["coach-1"] = validProfile()
	svc, _ := newTestService(store)

	var logs bytes.Buffer
	h := NewHandler(svc, logging.NewWithWriter("info", &logs))
	r := chi.NewRouter()
	r.Route("/coaches/{coachID}", func(r chi.Router) {
		r.Use(httpmiddleware.CoachJWT("test-secret", "coachID"))
		h.WriteRoutes(r)
	})

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: "coach-1",
		ID:      "tok-77",
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPut, "/coaches/coach-1/availability/status",
		strings.NewReader(`{"is_currently_available":true}`))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(logs.Bytes()), &entry))
	assert.Equal(t, "availability edit accepted", entry["msg"])
	assert.Equal(t, "set_status", entry["action"])
	assert.Equal(t, "coach-1", entry["actor"])
	assert.Equal(t, "tok-77", entry["token_id"])
	assert.Equal(t, "coach-1", entry["coach_id"])
}
