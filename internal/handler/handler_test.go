package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/event-planner/internal/attendance"
	"github.com/Shivanand-hulikatti/event-planner/internal/auth"
	"github.com/Shivanand-hulikatti/event-planner/internal/config"
	"github.com/Shivanand-hulikatti/event-planner/internal/repository/memory"
	"github.com/Shivanand-hulikatti/event-planner/internal/service"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type response struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Errors  []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"errors"`
}

type server struct {
	t *testing.T
	h http.Handler
}

func newServer(t *testing.T, mutate func(*config.Config)) *server {
	t.Helper()
	cfg := config.Config{Environment: "test", StoreDriver: config.StoreDriverMemory}
	if mutate != nil {
		mutate(&cfg)
	}
	db := memory.New()
	logger := zerolog.Nop()
	tokens := auth.NewJWTManager("test-secret", time.Hour, "test")
	return &server{t: t, h: NewRouter(Deps{
		Config: cfg,
		Auth:   service.NewAuthService(db.Users(), tokens, auth.NewPasswordHasher(4), logger),
		Events: service.NewEventService(db.Events(), attendance.NewManager(db.Events(), logger), logger),
		Logger: logger,
	})}
}

func (s *server) do(method, path, token string, body any) (*httptest.ResponseRecorder, response) {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	rec := httptest.NewRecorder()
	s.h.ServeHTTP(rec, req)

	var out response
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

// signup registers a user and returns a "Bearer <token>" header value.
func (s *server) signup(email string) string {
	s.t.Helper()
	rec, out := s.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": email, "password": "longenough",
	})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	var data struct {
		Token string `json:"token"`
	}
	require.NoError(s.t, json.Unmarshal(out.Data, &data))
	return "Bearer " + data.Token
}

func (s *server) createEvent(token string, body map[string]any) string {
	s.t.Helper()
	if _, ok := body["startTime"]; !ok {
		body["startTime"] = time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339)
	}
	rec, out := s.do(http.MethodPost, "/api/events", token, body)
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	var data struct {
		Event struct {
			ID string `json:"id"`
		} `json:"event"`
	}
	require.NoError(s.t, json.Unmarshal(out.Data, &data))
	return data.Event.ID
}

func TestAuthFlow(t *testing.T) {
	s := newServer(t, nil)

	rec, out := s.do(http.MethodPost, "/api/auth/register", "", map[string]string{"email": "a@x.com", "password": "short"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, out.Success)
	require.NotEmpty(t, out.Errors)
	assert.Equal(t, "password", out.Errors[0].Field)
	assert.Equal(t, "Password must be at least 6 characters", out.Errors[0].Message)

	s.signup("a@x.com")

	rec, out = s.do(http.MethodPost, "/api/auth/register", "", map[string]string{"email": "a@x.com", "password": "longenough"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Email already registered", out.Error)

	rec, out = s.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "a@x.com", "password": "wrongpass"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid email or password", out.Error)

	rec, out = s.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "a@x.com", "password": "longenough"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Login successful", out.Message)
	var session struct {
		Token string         `json:"token"`
		User  map[string]any `json:"user"`
	}
	require.NoError(t, json.Unmarshal(out.Data, &session))
	assert.NotContains(t, session.User, "passwordHash")

	// Raw tokens are accepted as well as Bearer.
	rec, out = s.do(http.MethodGet, "/api/auth/me", session.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(out.Data), `"email":"a@x.com"`)

	rec, out = s.do(http.MethodGet, "/api/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Access denied. No token provided.", out.Error)

	rec, out = s.do(http.MethodPut, "/api/auth/profile", "Bearer "+session.Token, map[string]string{"city": "Rome"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(out.Data), `"city":"Rome"`)

	rec, out = s.do(http.MethodPost, "/api/auth/logout", "Bearer "+session.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Logged out successfully", out.Message)
}

func TestMalformedBody(t *testing.T) {
	s := newServer(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":`))
	rec := httptest.NewRecorder()
	s.h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = s.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "a@x.com", "password": "x", "extra": "y"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCapacityScenario(t *testing.T) {
	s := newServer(t, nil)
	owner := s.signup("owner@x.com")
	a := s.signup("a@x.com")
	b := s.signup("b@x.com")
	id := s.createEvent(owner, map[string]any{"title": "Small", "city": "NY", "maxAttendees": 1})

	rec, out := s.do(http.MethodPost, "/api/events/"+id+"/register", a, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var res attendance.Result
	require.NoError(t, json.Unmarshal(out.Data, &res))
	assert.True(t, res.Registered)
	assert.Equal(t, 1, res.CurrentAttendees)

	rec, out = s.do(http.MethodPost, "/api/events/"+id+"/register", b, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Event is at full capacity", out.Error)

	rec, out = s.do(http.MethodPost, "/api/events/"+id+"/register", a, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "You are already registered for this event", out.Error)

	rec, out = s.do(http.MethodPost, "/api/events/"+id+"/unregister", a, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(out.Data, &res))
	assert.False(t, res.Registered)

	rec, _ = s.do(http.MethodPost, "/api/events/"+id+"/register", b, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, out = s.do(http.MethodGet, "/api/events/"+id, b, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(out.Data), `"isUserRegistered":true`)

	rec, out = s.do(http.MethodGet, "/api/events/registered", b, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(out.Data), id)
}

func TestCreateEventErrors(t *testing.T) {
	s := newServer(t, nil)
	owner := s.signup("owner@x.com")

	rec, out := s.do(http.MethodPost, "/api/events", owner, map[string]any{
		"title": "Past", "city": "NY", "startTime": time.Now().Add(-time.Hour).Format(time.RFC3339),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Start time must be in the future", out.Error)

	rec, out = s.do(http.MethodPost, "/api/events", owner, map[string]any{
		"title": "Bad", "city": "NY", "startTime": "not a date",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid start time format", out.Error)

	rec, _ = s.do(http.MethodPost, "/api/events", "", map[string]any{"title": "Anon", "city": "NY"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOwnerChecks(t *testing.T) {
	s := newServer(t, nil)
	owner := s.signup("owner@x.com")
	other := s.signup("other@x.com")
	id := s.createEvent(owner, map[string]any{"title": "Mine", "city": "NY"})

	rec, out := s.do(http.MethodPut, "/api/events/"+id, other, map[string]any{"title": "Theirs"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Not authorized to update this event", out.Error)

	rec, _ = s.do(http.MethodDelete, "/api/events/"+id, other, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, out = s.do(http.MethodPut, "/api/events/"+id, owner, map[string]any{"title": "Still mine", "description": nil})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(out.Data), `"title":"Still mine"`)

	rec, out = s.do(http.MethodDelete, "/api/events/"+id, owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Event deleted successfully", out.Message)

	rec, _ = s.do(http.MethodGet, "/api/events/"+id, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, out = s.do(http.MethodGet, "/api/events/my-events", owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(out.Data), `"isCancelled":true`)
}

func TestListEvents(t *testing.T) {
	s := newServer(t, nil)
	owner := s.signup("owner@x.com")
	s.createEvent(owner, map[string]any{"title": "Gig", "city": "New York", "category": "music"})
	s.createEvent(owner, map[string]any{"title": "Race", "city": "New York", "category": "sports"})

	rec, out := s.do(http.MethodGet, "/api/events?city=new%20york&category=music", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Events []struct {
			Title    string `json:"title"`
			Location struct {
				Type        string     `json:"type"`
				Coordinates [2]float64 `json:"coordinates"`
			} `json:"location"`
			CreatedBy struct {
				Email string `json:"email"`
			} `json:"createdBy"`
		} `json:"events"`
		Pagination struct {
			Total int `json:"total"`
			Pages int `json:"pages"`
		} `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(out.Data, &list))
	require.Len(t, list.Events, 1)
	assert.Equal(t, "Gig", list.Events[0].Title)
	assert.Equal(t, "Point", list.Events[0].Location.Type)
	assert.Equal(t, "owner@x.com", list.Events[0].CreatedBy.Email)
	assert.Equal(t, 1, list.Pagination.Total)

	rec, _ = s.do(http.MethodGet, "/api/events?limit=500", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCalendarExport(t *testing.T) {
	s := newServer(t, nil)
	owner := s.signup("owner@x.com")
	id := s.createEvent(owner, map[string]any{"title": "Launch", "city": "Oslo"})

	rec, _ := s.do(http.MethodGet, "/api/events/"+id+"/calendar.ics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/calendar"))
	assert.Contains(t, rec.Body.String(), "BEGIN:VEVENT")
	assert.Contains(t, rec.Body.String(), "SUMMARY:Launch")
}

func TestSystemRoutes(t *testing.T) {
	s := newServer(t, nil)

	rec, _ := s.do(http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var health map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health["status"])
	assert.Contains(t, health, "uptime")

	rec, out := s.do(http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Route /nope not found", out.Error)

	rec, _ = s.do(http.MethodGet, "/api", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = s.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	s := newServer(t, func(c *config.Config) { c.CORS.AllowedOrigins = []string{"https://app.example.com"} })

	req := httptest.NewRequest(http.MethodOptions, "/api/events", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	s.h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	s.h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSOpenWhitelistOmitsCredentials(t *testing.T) {
	s := newServer(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/events", nil)
	req.Header.Set("Origin", "https://anywhere.example.com")
	rec := httptest.NewRecorder()
	s.h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://anywhere.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestAuthRateLimit(t *testing.T) {
	s := newServer(t, func(c *config.Config) { c.RateLimit.AuthPerMinute = 2 })
	body := map[string]string{"email": "a@x.com", "password": "whatever1"}

	for i := 0; i < 2; i++ {
		rec, _ := s.do(http.MethodPost, "/api/auth/login", "", body)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec, out := s.do(http.MethodPost, "/api/auth/login", "", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.False(t, out.Success)
}

func TestRecovererReturnsEnvelope(t *testing.T) {
	h := Recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Internal server error")
}
