// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"net/http"

	"github.com/Shivanand-hulikatti/event-planner/internal/calendar"
	"github.com/Shivanand-hulikatti/event-planner/internal/model"
	"github.com/Shivanand-hulikatti/event-planner/internal/service"
	"github.com/go-chi/chi/v5"
)

// EventHandler holds the HTTP handlers of the events resource.
type EventHandler struct {
	svc *service.EventService
	ew  errorWriter
}

// NewEventHandler constructs an EventHandler.
func NewEventHandler(svc *service.EventService, hideInternal bool) *EventHandler {
	return &EventHandler{svc: svc, ew: errorWriter{hideInternal: hideInternal}}
}

func listQuery(r *http.Request) service.ListQuery {
	q := r.URL.Query()
	return service.ListQuery{
		Page:     q.Get("page"),
		Limit:    q.Get("limit"),
		City:     q.Get("city"),
		Category: q.Get("category"),
		Upcoming: q.Get("upcoming"),
		Search:   q.Get("search"),
	}
}

// ListEvents handles GET /api/events
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.List(r.Context(), listQuery(r))
	if err != nil {
		h.ew.write(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", list)
}

// GetEvent handles GET /api/events/{id}
func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	detail, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"), viewerID(r.Context()))
	if err != nil {
		h.ew.write(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", detail)
}

// CreateEvent handles POST /api/events
func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req model.CreateEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.ew.write(w, r, err)
		return
	}

	ev, err := h.svc.Create(r.Context(), UserFrom(r.Context()), req)
	if err != nil {
		h.ew.write(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "Event created successfully", map[string]any{"event": ev})
}

// UpdateEvent handles PUT /api/events/{id}
func (h *EventHandler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.ew.write(w, r, err)
		return
	}

	ev, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), viewerID(r.Context()), req)
	if err != nil {
		h.ew.write(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Event updated successfully", map[string]any{"event": ev})
}

// DeleteEvent handles DELETE /api/events/{id}
// The event is cancelled, not removed.
func (h *EventHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id"), viewerID(r.Context())); err != nil {
		h.ew.write(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Event deleted successfully", nil)
}

// MyEvents handles GET /api/events/my-events
func (h *EventHandler) MyEvents(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.MyEvents(r.Context(), viewerID(r.Context()), listQuery(r))
	if err != nil {
		h.ew.write(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", list)
}

// RegisteredEvents handles GET /api/events/registered
func (h *EventHandler) RegisteredEvents(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.RegisteredEvents(r.Context(), viewerID(r.Context()), listQuery(r))
	if err != nil {
		h.ew.write(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", list)
}

// Register handles POST /api/events/{id}/register
func (h *EventHandler) Register(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Register(r.Context(), chi.URLParam(r, "id"), viewerID(r.Context()))
	if err != nil {
		h.ew.write(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Successfully registered for event", res)
}

// Unregister handles POST /api/events/{id}/unregister
func (h *EventHandler) Unregister(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Unregister(r.Context(), chi.URLParam(r, "id"), viewerID(r.Context()))
	if err != nil {
		h.ew.write(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "Successfully unregistered from event", res)
}

// Calendar handles GET /api/events/{id}/calendar.ics
func (h *EventHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	body, err := h.svc.Calendar(r.Context(), id, viewerID(r.Context()))
	if err != nil {
		h.ew.write(w, r, err)
		return
	}
	w.Header().Set("Content-Type", calendar.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="event-`+id+`.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
