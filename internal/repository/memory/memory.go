// Package memory is an in-process implementation of the user and event
// stores. One mutex guards the whole dataset; callers receive copies so
// nothing outside the lock aliases stored state.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Shivanand-hulikatti/event-planner/internal/apperror"
	"github.com/Shivanand-hulikatti/event-planner/internal/attendance"
	"github.com/Shivanand-hulikatti/event-planner/internal/model"
	"github.com/google/uuid"
)

var (
	errEventNotFound = apperror.New(apperror.NotFound, "Event not found")
	errUserNotFound  = apperror.New(apperror.NotFound, "User not found")
	errEmailTaken    = apperror.New(apperror.Conflict, "Email already registered")
)

// DB holds users and events.
type DB struct {
	mu      sync.Mutex
	users   map[string]*model.User
	byEmail map[string]string
	events  map[string]*model.Event
	now     func() time.Time
}

func New() *DB {
	return &DB{
		users:   make(map[string]*model.User),
		byEmail: make(map[string]string),
		events:  make(map[string]*model.Event),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Users returns the identity store view of db.
func (db *DB) Users() *UserStore { return &UserStore{db: db} }

// Events returns the event store view of db.
func (db *DB) Events() *EventStore { return &EventStore{db: db} }

type UserStore struct {
	db *DB
}

func (s *UserStore) Create(_ context.Context, user *model.User) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	user.Email = model.NormalizeEmail(user.Email)
	if _, taken := s.db.byEmail[user.Email]; taken {
		return errEmailTaken
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.db.now()
	}
	user.UpdatedAt = user.CreatedAt

	stored := *user
	s.db.users[user.ID] = &stored
	s.db.byEmail[user.Email] = user.ID
	return nil
}

func (s *UserStore) GetByID(_ context.Context, id string) (*model.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	u, ok := s.db.users[id]
	if !ok {
		return nil, errUserNotFound
	}
	out := *u
	return &out, nil
}

func (s *UserStore) GetByEmail(_ context.Context, email string) (*model.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	id, ok := s.db.byEmail[model.NormalizeEmail(email)]
	if !ok {
		return nil, errUserNotFound
	}
	out := *s.db.users[id]
	return &out, nil
}

func (s *UserStore) UpdateProfile(_ context.Context, id string, upd model.ProfileUpdate) (*model.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	u, ok := s.db.users[id]
	if !ok {
		return nil, errUserNotFound
	}
	if upd.DisplayName != nil {
		u.DisplayName = *upd.DisplayName
	}
	if upd.City != nil {
		u.City = *upd.City
	}
	u.UpdatedAt = s.db.now()
	out := *u
	return &out, nil
}

// SetActive toggles the active flag. There is no HTTP surface for it; it
// exists to deactivate accounts from tests and tooling.
func (s *UserStore) SetActive(_ context.Context, id string, active bool) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	u, ok := s.db.users[id]
	if !ok {
		return errUserNotFound
	}
	u.IsActive = active
	return nil
}

type EventStore struct {
	db *DB
}

var _ attendance.Store = (*EventStore)(nil)

func (s *EventStore) Create(_ context.Context, ev *model.Event) (*model.Event, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if _, ok := s.db.users[ev.CreatedBy.ID]; !ok {
		return nil, errUserNotFound
	}
	stored := cloneEvent(ev)
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	now := s.db.now()
	stored.CreatedAt, stored.UpdatedAt = now, now
	stored.Attendees = []model.Attendance{}
	s.db.events[stored.ID] = stored
	return s.db.view(stored, true), nil
}

func (s *EventStore) GetByID(_ context.Context, id string) (*model.Event, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	ev, ok := s.db.events[id]
	if !ok {
		return nil, errEventNotFound
	}
	return s.db.view(ev, true), nil
}

func (s *EventStore) IsRegistered(_ context.Context, eventID, userID string) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	ev, ok := s.db.events[eventID]
	if !ok {
		return false, nil
	}
	rec := ev.AttendanceOf(userID)
	return rec != nil && rec.Status == model.AttendanceRegistered, nil
}

func (s *EventStore) List(_ context.Context, f model.EventFilter) ([]model.Event, int, error) {
	return s.selectPage(f.Page, byStartTime, func(ev *model.Event) bool {
		if !ev.IsPublished || ev.IsCancelled {
			return false
		}
		if f.City != nil && !containsFold(ev.City, *f.City) {
			return false
		}
		if f.Category != nil && ev.Category != *f.Category {
			return false
		}
		if f.Upcoming && ev.StartTime.Before(f.Now) {
			return false
		}
		if f.Search != nil && !containsFold(ev.Title, *f.Search) && !containsFold(ev.Description, *f.Search) {
			return false
		}
		return true
	})
}

func (s *EventStore) ListByOwner(_ context.Context, ownerID string, p model.Page) ([]model.Event, int, error) {
	return s.selectPage(p, byCreatedDesc, func(ev *model.Event) bool {
		return ev.CreatedBy.ID == ownerID
	})
}

func (s *EventStore) ListRegistered(_ context.Context, userID string, p model.Page) ([]model.Event, int, error) {
	return s.selectPage(p, byStartTime, func(ev *model.Event) bool {
		if ev.IsCancelled {
			return false
		}
		rec := ev.AttendanceOf(userID)
		return rec != nil && rec.Status == model.AttendanceRegistered
	})
}

func (s *EventStore) Update(_ context.Context, id string, fn func(ev *model.Event) error) (*model.Event, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	stored, ok := s.db.events[id]
	if !ok {
		return nil, errEventNotFound
	}
	work := s.db.view(stored, true)
	if err := fn(work); err != nil {
		return nil, err
	}

	// Identity, owner and the roster are not writable through Update.
	work.ID = stored.ID
	work.CreatedBy = stored.CreatedBy
	work.CreatedAt = stored.CreatedAt
	work.Attendees = stored.Attendees
	work.UpdatedAt = s.db.now()
	s.db.events[id] = cloneEvent(work)
	return s.db.view(s.db.events[id], true), nil
}

// WithAttendance runs fn on a working copy while holding the store lock and
// commits the record and counter together only when fn succeeds.
func (s *EventStore) WithAttendance(_ context.Context, eventID, userID string, fn attendance.MutateFunc) (*model.Event, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	stored, ok := s.db.events[eventID]
	if !ok {
		return nil, errEventNotFound
	}
	if _, ok := s.db.users[userID]; !ok {
		return nil, errUserNotFound
	}

	work := s.db.view(stored, true)
	var rec *model.Attendance
	if existing := work.AttendanceOf(userID); existing != nil {
		cp := *existing
		rec = &cp
	}

	rec, err := fn(work, rec)
	if err != nil {
		return nil, err
	}

	next := cloneEvent(stored)
	if existing := next.AttendanceOf(userID); existing != nil {
		*existing = *rec
	} else {
		next.Attendees = append(next.Attendees, *rec)
	}
	next.CurrentAttendees = work.CurrentAttendees
	next.UpdatedAt = s.db.now()
	s.db.events[eventID] = next
	return s.db.view(next, true), nil
}

type lessFunc func(a, b *model.Event) bool

func byStartTime(a, b *model.Event) bool {
	if !a.StartTime.Equal(b.StartTime) {
		return a.StartTime.Before(b.StartTime)
	}
	return a.ID < b.ID
}

func byCreatedDesc(a, b *model.Event) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID < b.ID
}

func (s *EventStore) selectPage(p model.Page, less lessFunc, keep func(*model.Event) bool) ([]model.Event, int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	var matched []*model.Event
	for _, ev := range s.db.events {
		if keep(ev) {
			matched = append(matched, ev)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return less(matched[i], matched[j]) })

	total := len(matched)
	out := []model.Event{}
	start := p.Offset()
	if start < 0 || start >= total {
		return out, total, nil
	}
	end := min(start+p.Limit, total)
	for _, ev := range matched[start:end] {
		out = append(out, *s.db.view(ev, false))
	}
	return out, total, nil
}

// view copies ev with the owner's current public profile joined. The roster
// is included for single-event reads only. Must be called with mu held.
func (db *DB) view(ev *model.Event, withAttendees bool) *model.Event {
	out := cloneEvent(ev)
	if u, ok := db.users[ev.CreatedBy.ID]; ok {
		out.CreatedBy = u.Owner()
	}
	if !withAttendees {
		out.Attendees = nil
	}
	return out
}

func cloneEvent(ev *model.Event) *model.Event {
	out := *ev
	if ev.EndTime != nil {
		t := *ev.EndTime
		out.EndTime = &t
	}
	if ev.MaxAttendees != nil {
		n := *ev.MaxAttendees
		out.MaxAttendees = &n
	}
	if ev.Attendees != nil {
		out.Attendees = append([]model.Attendance{}, ev.Attendees...)
	}
	return &out
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
