package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/wolfman30/coaching-platform/internal/availability"
	httpmiddleware "github.com/wolfman30/coaching-platform/internal/http/middleware"
	"github.com/wolfman30/coaching-platform/internal/sessions"
	"github.com/wolfman30/coaching-platform/internal/slots"
	"github.com/wolfman30/coaching-platform/pkg/logging"
)

type memoryProfiles struct {
	profiles map[string]*availability.CoachAvailability
}

func (m *memoryProfiles) LoadAvailability(_ context.Context, coachID string) (*availability.CoachAvailability, error) {
	a, ok := m.profiles[coachID]
	if !ok {
		return nil, availability.ErrNotFound
	}
	return a.Clone(), nil
}

func (m *memoryProfiles) Save(_ context.Context, a *availability.CoachAvailability, updatedAt, _ time.Time) error {
	cpy := a.Clone()
	cpy.UpdatedAt = updatedAt
	m.profiles[a.CoachID] = cpy
	return nil
}

func (m *memoryProfiles) Create(ctx context.Context, a *availability.CoachAvailability, updatedAt time.Time) error {
	if _, ok := m.profiles[a.CoachID]; ok {
		return availability.ErrConflict
	}
	return m.Save(ctx, a, updatedAt, time.Time{})
}

type noSessions struct{}

func (noSessions) LoadBusyIntervals(context.Context, string, time.Time, time.Time, string) ([]sessions.BusyInterval, error) {
	return nil, nil
}

func (noSessions) LoadInProgressSession(context.Context, string, time.Time) (*sessions.BusyInterval, error) {
	return nil, nil
}

const testSecret = "coach-secret"

func newTestRouter(t *testing.T, ready func(context.Context) error) (http.Handler, *memoryProfiles) {
	t.Helper()
	logger := logging.Default()
	profile := availability.DefaultProfile("coach-1")
	profile.RecurringAvailability = []availability.RecurringRule{
		{DayOfWeek: int(time.Monday), StartTime: "09:00", EndTime: "12:00", IsActive: true},
	}
	store := &memoryProfiles{profiles: map[string]*availability.CoachAvailability{"coach-1": profile}}
	now := func() time.Time { return time.Date(2026, 2, 25, 12, 0, 0, 0, time.UTC) }

	engine := slots.NewEngine(slots.Config{Availability: store, Sessions: noSessions{}, Logger: logger, Now: now})
	service := availability.NewService(availability.ServiceConfig{Store: store, Logger: logger, Now: now})

	return New(&Config{
		Logger:              logger,
		SlotsHandler:        slots.NewHandler(engine, logger),
		AvailabilityHandler: availability.NewHandler(service, logger),
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("# metrics"))
		}),
		CORSAllowedOrigins: []string{"https://book.example.com"},
		CoachAuthSecret:    testSecret,
		RateLimiter:        httpmiddleware.NewRateLimiter(100, 100),
		RequestTimeout:     5 * time.Second,
		Ready:              ready,
	}), store
}

func bearer(t *testing.T, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return "Bearer " + signed
}

func TestRouterHealthEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", resp["status"])
	}
}

func TestRouterHealthReportsDependencyFailure(t *testing.T) {
	router, _ := newTestRouter(t, func(context.Context) error { return errors.New("postgres unreachable") })

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status %d, got %d", http.StatusServiceUnavailable, rr.Code)
	}
}

func TestRouterMetricsEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "# metrics") {
		t.Fatalf("expected metrics handler, got %d %q", rr.Code, rr.Body.String())
	}
}

func TestRouterPublicSlotRoutes(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	for _, target := range []string{
		"/coaches/coach-1/slots?start=2026-03-02",
		"/coaches/coach-1/slots.ics?start=2026-03-02",
		"/coaches/coach-1/status",
		"/coaches/coach-1/availability",
	} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d (%s)", target, rr.Code, rr.Body.String())
		}
		if rr.Header().Get("X-Request-ID") == "" {
			t.Fatalf("%s: expected request id header", target)
		}
	}
}

func TestRouterMutationsRequireCoachToken(t *testing.T) {
	router, store := newTestRouter(t, nil)
	body := `{"is_currently_available":true}`

	req := httptest.NewRequest(http.MethodPut, "/coaches/coach-1/availability/status", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodPut, "/coaches/coach-1/availability/status", strings.NewReader(body))
	req.Header.Set("Authorization", bearer(t, "coach-2"))
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for another coach, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodPut, "/coaches/coach-1/availability/status", strings.NewReader(body))
	req.Header.Set("Authorization", bearer(t, "coach-1"))
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for own coach, got %d (%s)", rr.Code, rr.Body.String())
	}
	if !store.profiles["coach-1"].IsCurrentlyAvailable {
		t.Fatalf("expected status flag to be stored")
	}
}

func TestRouterCORSPreflight(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/coaches/coach-1/availability", nil)
	req.Header.Set("Origin", "https://book.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204 preflight, got %d", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "https://book.example.com" {
		t.Fatalf("expected CORS origin echo")
	}
}
