package service

import (
	"context"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Shivanand-hulikatti/event-planner/internal/apperror"
	"github.com/Shivanand-hulikatti/event-planner/internal/attendance"
	"github.com/Shivanand-hulikatti/event-planner/internal/calendar"
	"github.com/Shivanand-hulikatti/event-planner/internal/model"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// EventStore is the event persistence used by EventService.
type EventStore interface {
	Create(ctx context.Context, ev *model.Event) (*model.Event, error)
	GetByID(ctx context.Context, id string) (*model.Event, error)
	IsRegistered(ctx context.Context, eventID, userID string) (bool, error)
	List(ctx context.Context, f model.EventFilter) ([]model.Event, int, error)
	ListByOwner(ctx context.Context, ownerID string, p model.Page) ([]model.Event, int, error)
	ListRegistered(ctx context.Context, userID string, p model.Page) ([]model.Event, int, error)
	Update(ctx context.Context, id string, fn func(ev *model.Event) error) (*model.Event, error)
}

// Length limits count characters, like the validator's max rule on strings
// and the varchar columns.
const (
	maxDescriptionLen = 5000
	maxAddressLen     = 500
	maxCityLen        = 100
)

var errEventNotFound = apperror.New(apperror.NotFound, "Event not found")

// ListQuery is the raw query string of a listing request.
type ListQuery struct {
	Page     string
	Limit    string
	City     string
	Category string
	Upcoming string
	Search   string
}

// EventDetail is a single-event view. IsUserRegistered is set only for
// authenticated viewers.
type EventDetail struct {
	Event            *model.Event `json:"event"`
	IsUserRegistered *bool        `json:"isUserRegistered,omitempty"`
}

// EventService implements event queries, owner mutations and attendance.
type EventService struct {
	events     EventStore
	attendance *attendance.Manager
	validate   *validator.Validate
	logger     zerolog.Logger
	now        func() time.Time
}

func NewEventService(events EventStore, attendance *attendance.Manager, logger zerolog.Logger) *EventService {
	return &EventService{
		events:     events,
		attendance: attendance,
		validate:   newValidator(),
		logger:     logger.With().Str("component", "events").Logger(),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// List returns one page of published, non-cancelled events.
func (s *EventService) List(ctx context.Context, q ListQuery) (*model.EventList, error) {
	page, err := parsePage(q.Page, q.Limit)
	if err != nil {
		return nil, err
	}

	f := model.EventFilter{Page: page, Now: s.now()}
	if city := strings.TrimSpace(q.City); city != "" {
		if utf8.RuneCountInString(city) > maxCityLen {
			return nil, fieldError("city", "City cannot exceed 100 characters")
		}
		f.City = &city
	}
	if q.Category != "" {
		c := model.Category(q.Category)
		if !c.Valid() {
			return nil, fieldError("category", "Invalid category")
		}
		f.Category = &c
	}
	if search := strings.TrimSpace(q.Search); search != "" {
		f.Search = &search
	}
	f.Upcoming = q.Upcoming == "true"

	events, total, err := s.events.List(ctx, f)
	if err != nil {
		return nil, err
	}
	return &model.EventList{Events: events, Pagination: model.NewPagination(page, total)}, nil
}

// Get returns an event visible to viewerID (empty for anonymous).
// Unpublished and cancelled events are reported as not found to everyone
// except their owner.
func (s *EventService) Get(ctx context.Context, id, viewerID string) (*EventDetail, error) {
	ev, err := s.events.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ev.VisibleTo(viewerID) {
		return nil, errEventNotFound
	}

	detail := &EventDetail{Event: ev}
	if viewerID != "" {
		registered, err := s.events.IsRegistered(ctx, id, viewerID)
		if err != nil {
			return nil, err
		}
		detail.IsUserRegistered = &registered
	}
	return detail, nil
}

// Create validates req and stores a new event owned by owner.
func (s *EventService) Create(ctx context.Context, owner *model.User, req model.CreateEventRequest) (*model.Event, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	req.City = strings.TrimSpace(req.City)
	req.Address = strings.TrimSpace(req.Address)
	if err := validate(s.validate, req); err != nil {
		return nil, err
	}

	start, err := parseTime(req.StartTime)
	if err != nil {
		return nil, fieldError("startTime", "Invalid start time format")
	}
	if !start.After(s.now()) {
		return nil, apperror.New(apperror.InvalidState, "Start time must be in the future")
	}

	var end *time.Time
	if req.EndTime != "" {
		t, err := parseTime(req.EndTime)
		if err != nil {
			return nil, fieldError("endTime", "Invalid end time format")
		}
		end = &t
	}
	if err := checkEnd(start, end); err != nil {
		return nil, err
	}

	category := req.Category
	if category == "" {
		category = model.CategoryOther
	}
	var lng, lat float64
	if req.Longitude != nil {
		lng = *req.Longitude
	}
	if req.Latitude != nil {
		lat = *req.Latitude
	}

	ev, err := s.events.Create(ctx, &model.Event{
		Title:        req.Title,
		Description:  req.Description,
		Category:     category,
		City:         req.City,
		Location:     model.NewPoint(lng, lat),
		Address:      req.Address,
		StartTime:    start,
		EndTime:      end,
		MaxAttendees: req.MaxAttendees,
		CreatedBy:    owner.Owner(),
		IsPublished:  true,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("event_id", ev.ID).Str("user_id", owner.ID).Msg("event created")
	return ev, nil
}

// Update applies the fields present in req. Only the owner may update.
func (s *EventService) Update(ctx context.Context, id, userID string, req model.UpdateEventRequest) (*model.Event, error) {
	if err := validate(s.validate, req); err != nil {
		return nil, err
	}
	patch, err := s.buildPatch(req)
	if err != nil {
		return nil, err
	}

	ev, err := s.events.Update(ctx, id, func(ev *model.Event) error {
		if !ev.IsOwnedBy(userID) {
			return apperror.New(apperror.Forbidden, "Not authorized to update this event")
		}
		return patch.apply(ev)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("event_id", id).Str("user_id", userID).Msg("event updated")
	return ev, nil
}

// Delete cancels the event. The row and its attendance records are kept.
func (s *EventService) Delete(ctx context.Context, id, userID string) error {
	_, err := s.events.Update(ctx, id, func(ev *model.Event) error {
		if !ev.IsOwnedBy(userID) {
			return apperror.New(apperror.Forbidden, "Not authorized to delete this event")
		}
		ev.IsCancelled = true
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info().Str("event_id", id).Str("user_id", userID).Msg("event cancelled")
	return nil
}

// MyEvents lists every event userID created, newest first.
func (s *EventService) MyEvents(ctx context.Context, userID string, q ListQuery) (*model.EventList, error) {
	page, err := parsePage(q.Page, q.Limit)
	if err != nil {
		return nil, err
	}
	events, total, err := s.events.ListByOwner(ctx, userID, page)
	if err != nil {
		return nil, err
	}
	return &model.EventList{Events: events, Pagination: model.NewPagination(page, total)}, nil
}

// RegisteredEvents lists the non-cancelled events userID is attending.
func (s *EventService) RegisteredEvents(ctx context.Context, userID string, q ListQuery) (*model.EventList, error) {
	page, err := parsePage(q.Page, q.Limit)
	if err != nil {
		return nil, err
	}
	events, total, err := s.events.ListRegistered(ctx, userID, page)
	if err != nil {
		return nil, err
	}
	return &model.EventList{Events: events, Pagination: model.NewPagination(page, total)}, nil
}

func (s *EventService) Register(ctx context.Context, eventID, userID string) (*attendance.Result, error) {
	return s.attendance.Register(ctx, eventID, userID)
}

func (s *EventService) Unregister(ctx context.Context, eventID, userID string) (*attendance.Result, error) {
	return s.attendance.Unregister(ctx, eventID, userID)
}

// Calendar renders the event as an iCalendar document, subject to the same
// visibility rules as Get.
func (s *EventService) Calendar(ctx context.Context, id, viewerID string) ([]byte, error) {
	ev, err := s.events.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ev.VisibleTo(viewerID) {
		return nil, errEventNotFound
	}
	return calendar.Encode(ev, s.now())
}

// eventPatch is an UpdateEventRequest with its values parsed and checked.
type eventPatch struct {
	req   model.UpdateEventRequest
	start *time.Time
	end   model.Optional[time.Time]
}

func (s *EventService) buildPatch(req model.UpdateEventRequest) (*eventPatch, error) {
	p := &eventPatch{req: req}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, fieldError("title", "Title cannot be empty")
		}
		p.req.Title = &title
	}
	if req.City != nil {
		city := strings.TrimSpace(*req.City)
		if city == "" {
			return nil, fieldError("city", "City cannot be empty")
		}
		p.req.City = &city
	}
	if req.Description.Set && !req.Description.Null {
		p.req.Description.Value = strings.TrimSpace(req.Description.Value)
		if utf8.RuneCountInString(p.req.Description.Value) > maxDescriptionLen {
			return nil, fieldError("description", "Description cannot exceed 5000 characters")
		}
	}
	if req.Address.Set && !req.Address.Null {
		p.req.Address.Value = strings.TrimSpace(req.Address.Value)
		if utf8.RuneCountInString(p.req.Address.Value) > maxAddressLen {
			return nil, fieldError("address", "Address cannot exceed 500 characters")
		}
	}
	if req.MaxAttendees.Set && !req.MaxAttendees.Null && req.MaxAttendees.Value < 1 {
		return nil, fieldError("maxAttendees", "Max attendees must be a positive integer")
	}

	if req.StartTime != nil {
		t, err := parseTime(*req.StartTime)
		if err != nil {
			return nil, fieldError("startTime", "Invalid start time format")
		}
		p.start = &t
	}
	if req.EndTime.Set {
		p.end.Set = true
		if req.EndTime.Null || strings.TrimSpace(req.EndTime.Value) == "" {
			p.end.Null = true
		} else {
			t, err := parseTime(req.EndTime.Value)
			if err != nil {
				return nil, fieldError("endTime", "Invalid end time format")
			}
			p.end.Value = t
		}
	}
	return p, nil
}

// apply overwrites the present fields of ev. A single coordinate is merged
// with the stored other one. Lowering maxAttendees below the live count
// clamps the count to the new capacity.
func (p *eventPatch) apply(ev *model.Event) error {
	r := p.req
	if r.Title != nil {
		ev.Title = *r.Title
	}
	if r.Description.Set {
		ev.Description = r.Description.Value
	}
	if r.Category != nil {
		ev.Category = *r.Category
	}
	if r.City != nil {
		ev.City = *r.City
	}
	if r.Address.Set {
		ev.Address = r.Address.Value
	}
	if r.Longitude != nil || r.Latitude != nil {
		lng, lat := ev.Location.Longitude(), ev.Location.Latitude()
		if r.Longitude != nil {
			lng = *r.Longitude
		}
		if r.Latitude != nil {
			lat = *r.Latitude
		}
		ev.Location = model.NewPoint(lng, lat)
	}
	if p.start != nil {
		ev.StartTime = *p.start
	}
	if p.end.Set {
		if p.end.Null {
			ev.EndTime = nil
		} else {
			end := p.end.Value
			ev.EndTime = &end
		}
	}
	if err := checkEnd(ev.StartTime, ev.EndTime); err != nil {
		return err
	}
	if r.MaxAttendees.Set {
		if r.MaxAttendees.Null {
			ev.MaxAttendees = nil
		} else {
			capacity := r.MaxAttendees.Value
			ev.MaxAttendees = &capacity
			if ev.CurrentAttendees > capacity {
				ev.CurrentAttendees = capacity
			}
		}
	}
	if r.IsPublished != nil {
		ev.IsPublished = *r.IsPublished
	}
	return nil
}

func checkEnd(start time.Time, end *time.Time) error {
	if end != nil && !end.After(start) {
		return fieldError("endTime", "End time must be after start time")
	}
	return nil
}

// parsePage applies the page/limit defaults and bounds.
func parsePage(pageStr, limitStr string) (model.Page, error) {
	p := model.Page{Page: model.DefaultPage, Limit: model.DefaultLimit}
	if pageStr != "" {
		n, err := strconv.Atoi(pageStr)
		if err != nil || n < 1 {
			return p, fieldError("page", "Page must be a positive integer")
		}
		p.Page = n
	}
	if limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil || n < 1 || n > model.MaxLimit {
			return p, fieldError("limit", "Limit must be between 1 and 100")
		}
		p.Limit = n
	}
	return p, nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// parseTime accepts ISO 8601 timestamps. Values without a zone are UTC.
func parseTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	var err error
	for _, layout := range timeLayouts {
		var t time.Time
		if t, err = time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, err
}
