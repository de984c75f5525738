package handler

import (
	"net/http"
	"time"

	"github.com/Shivanand-hulikatti/event-planner/internal/config"
	"github.com/Shivanand-hulikatti/event-planner/internal/metrics"
	"github.com/Shivanand-hulikatti/event-planner/internal/service"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

const apiVersion = "1.0.0"

// Deps are the collaborators of the router.
type Deps struct {
	Config config.Config
	Auth   *service.AuthService
	Events *service.EventService
	Logger zerolog.Logger
	// Started is reported as the base of /health uptime.
	Started time.Time
}

// NewRouter builds the full HTTP surface.
func NewRouter(d Deps) http.Handler {
	hide := d.Config.IsProduction()
	ew := errorWriter{hideInternal: hide}
	authH := NewAuthHandler(d.Auth, hide)
	eventH := NewEventHandler(d.Events, hide)
	if d.Started.IsZero() {
		d.Started = time.Now()
	}

	required := requireAuth(d.Auth, ew)
	optional := optionalAuth(d.Auth)
	limited := RateLimit(d.Config.RateLimit.AuthPerMinute)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(Logger(d.Logger))
	r.Use(Recoverer)
	r.Use(CORS(d.Config.CORS, d.Logger))
	r.Use(metrics.Middleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeFailure(w, http.StatusNotFound, "Route "+r.URL.RequestURI()+" not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeFailure(w, http.StatusMethodNotAllowed, "Method "+r.Method+" not allowed on "+r.URL.Path)
	})

	r.Get("/health", health(d.Started))
	r.Get("/", apiInfo)
	r.Get("/api", apiCatalogue)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/auth", func(r chi.Router) {
		r.With(limited).Post("/register", authH.Register)
		r.With(limited).Post("/login", authH.Login)

		r.Group(func(r chi.Router) {
			r.Use(required)
			r.Get("/me", authH.Me)
			r.Post("/logout", authH.Logout)
			r.Put("/profile", authH.UpdateProfile)
		})
	})

	r.Route("/api/events", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(optional)
			r.Get("/", eventH.ListEvents)
			r.Get("/{id}", eventH.GetEvent)
			r.Get("/{id}/calendar.ics", eventH.Calendar)
		})

		r.Group(func(r chi.Router) {
			r.Use(required)
			// Static segments win over /{id} in chi's radix tree.
			r.Get("/my-events", eventH.MyEvents)
			r.Get("/registered", eventH.RegisteredEvents)
			r.Post("/", eventH.CreateEvent)
			r.Put("/{id}", eventH.UpdateEvent)
			r.Delete("/{id}", eventH.DeleteEvent)
			r.Post("/{id}/register", eventH.Register)
			r.Post("/{id}/unregister", eventH.Unregister)
		})
	})

	return r
}

func health(started time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
			"uptime":    time.Since(started).Seconds(),
		})
	}
}

func apiInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "Event Planner API",
		"version": apiVersion,
		"message": "API server is running. Use /api for endpoints or /health for status.",
		"endpoints": map[string]string{
			"health": "GET /health",
			"api":    "GET /api",
			"auth":   "POST /api/auth/register, POST /api/auth/login",
			"events": "GET /api/events, POST /api/events",
		},
	})
}

func apiCatalogue(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":        "Event Planner API",
		"version":     apiVersion,
		"description": "API for managing events and user authentication",
		"endpoints": map[string]map[string]string{
			"auth": {
				"POST /api/auth/register": "Register a new user",
				"POST /api/auth/login":    "Login user",
				"GET /api/auth/me":        "Get current user profile (auth required)",
				"POST /api/auth/logout":   "Logout user (auth required)",
				"PUT /api/auth/profile":   "Update user profile (auth required)",
			},
			"events": {
				"GET /api/events":                  "Get all events (with pagination & filters)",
				"GET /api/events/:id":              "Get single event by ID",
				"GET /api/events/:id/calendar.ics": "Download event as iCalendar",
				"POST /api/events":                 "Create new event (auth required)",
				"PUT /api/events/:id":              "Update event (auth required, owner only)",
				"DELETE /api/events/:id":           "Cancel event (auth required, owner only)",
				"GET /api/events/my-events":        "Get events created by current user (auth required)",
				"GET /api/events/registered":       "Get events the current user registered for (auth required)",
				"POST /api/events/:id/register":    "Register for an event (auth required)",
				"POST /api/events/:id/unregister":  "Cancel registration (auth required)",
			},
		},
	})
}
