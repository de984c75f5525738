// Package attendance implements event registration: capacity limits,
// duplicate-registration prevention, re-registration after cancellation and
// the attendee counter.
//
// The invariant kept here is that an event's CurrentAttendees equals the
// number of its attendance records with status registered and never exceeds
// MaxAttendees when that is set. Transitions are pure functions applied by the
// Store under its per-event lock, so the record change and the counter change
// are persisted together or not at all.
package attendance

import (
	"context"
	"time"

	"github.com/Shivanand-hulikatti/event-planner/internal/apperror"
	"github.com/Shivanand-hulikatti/event-planner/internal/metrics"
	"github.com/Shivanand-hulikatti/event-planner/internal/model"
	"github.com/rs/zerolog"
)

// MutateFunc receives the locked event and the caller's existing attendance
// record (nil when the user never registered). It returns the record to
// persist, having updated ev.CurrentAttendees to match. Returning an error
// aborts the mutation without writing anything.
type MutateFunc func(ev *model.Event, rec *model.Attendance) (*model.Attendance, error)

// Store persists attendance atomically per event.
//
// WithAttendance must hold an exclusive lock on the event for the duration of
// fn, fail with apperror NotFound when the event does not exist, and write the
// returned record together with ev.CurrentAttendees in one atomic step.
type Store interface {
	WithAttendance(ctx context.Context, eventID, userID string, fn MutateFunc) (*model.Event, error)
}

// Result confirms a registration state change.
type Result struct {
	EventID          string `json:"eventId"`
	Registered       bool   `json:"registered"`
	CurrentAttendees int    `json:"currentAttendees"`
	MaxAttendees     *int   `json:"maxAttendees"`
}

// Manager runs register/unregister against a Store.
type Manager struct {
	store  Store
	logger zerolog.Logger
	now    func() time.Time
}

func NewManager(store Store, logger zerolog.Logger) *Manager {
	return &Manager{
		store:  store,
		logger: logger.With().Str("component", "attendance").Logger(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Register records userID as attending eventID.
func (m *Manager) Register(ctx context.Context, eventID, userID string) (*Result, error) {
	now := m.now()
	ev, err := m.store.WithAttendance(ctx, eventID, userID, func(ev *model.Event, rec *model.Attendance) (*model.Attendance, error) {
		return Register(ev, rec, userID, now)
	})
	m.observe("register", eventID, userID, err)
	if err != nil {
		return nil, err
	}
	return &Result{EventID: ev.ID, Registered: true, CurrentAttendees: ev.CurrentAttendees, MaxAttendees: ev.MaxAttendees}, nil
}

// Unregister cancels userID's registration for eventID.
func (m *Manager) Unregister(ctx context.Context, eventID, userID string) (*Result, error) {
	ev, err := m.store.WithAttendance(ctx, eventID, userID, Unregister)
	m.observe("unregister", eventID, userID, err)
	if err != nil {
		return nil, err
	}
	return &Result{EventID: ev.ID, Registered: false, CurrentAttendees: ev.CurrentAttendees, MaxAttendees: ev.MaxAttendees}, nil
}

func (m *Manager) observe(action, eventID, userID string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = apperror.KindOf(err).String()
	}
	metrics.AttendanceTransitions.WithLabelValues(action, outcome).Inc()

	evt := m.logger.Debug()
	if err != nil && apperror.KindOf(err) == apperror.Internal {
		evt = m.logger.Error().Err(err)
	}
	evt.Str("action", action).
		Str("event_id", eventID).
		Str("user_id", userID).
		Str("outcome", outcome).
		Msg("attendance transition")
}

// Register is the register transition. A cancelled record is reused and its
// timestamp refreshed; otherwise a new record is created. Unpublished events
// do not exist for anyone but their owner.
func Register(ev *model.Event, rec *model.Attendance, userID string, now time.Time) (*model.Attendance, error) {
	if !ev.IsPublished && !ev.IsOwnedBy(userID) {
		return nil, apperror.New(apperror.NotFound, "Event not found")
	}
	if ev.IsCancelled {
		return nil, apperror.New(apperror.InvalidState, "Cannot register for a cancelled event")
	}
	if rec != nil && rec.Status == model.AttendanceRegistered {
		return nil, apperror.New(apperror.Conflict, "You are already registered for this event")
	}
	if ev.IsFull() {
		return nil, apperror.New(apperror.CapacityExceeded, "Event is at full capacity")
	}

	if rec == nil {
		rec = &model.Attendance{UserID: userID}
	}
	rec.Status = model.AttendanceRegistered
	rec.RegisteredAt = now
	ev.CurrentAttendees++
	return rec, nil
}

// Unregister is the unregister transition. The counter is floored at zero.
func Unregister(ev *model.Event, rec *model.Attendance) (*model.Attendance, error) {
	if rec == nil || rec.Status != model.AttendanceRegistered {
		return nil, apperror.New(apperror.InvalidState, "You are not registered for this event")
	}
	rec.Status = model.AttendanceCancelled
	ev.CurrentAttendees--
	if ev.CurrentAttendees < 0 {
		ev.CurrentAttendees = 0
	}
	return rec, nil
}
