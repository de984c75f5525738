package memory

import (
	"context"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/event-planner/internal/apperror"
	"github.com/Shivanand-hulikatti/event-planner/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T) (*DB, *model.User) {
	t.Helper()
	db := New()
	owner := &model.User{Email: "Owner@Example.com", PasswordHash: "x", DisplayName: "Owner", IsActive: true}
	require.NoError(t, db.Users().Create(context.Background(), owner))
	return db, owner
}

func addEvent(t *testing.T, db *DB, owner *model.User, title, city string, category model.Category, start time.Time) *model.Event {
	t.Helper()
	ev, err := db.Events().Create(context.Background(), &model.Event{
		Title:       title,
		Category:    category,
		City:        city,
		StartTime:   start,
		CreatedBy:   owner.Owner(),
		IsPublished: true,
	})
	require.NoError(t, err)
	return ev
}

func TestUserStore(t *testing.T) {
	db, owner := seed(t)
	ctx := context.Background()

	assert.Equal(t, "owner@example.com", owner.Email)

	err := db.Users().Create(ctx, &model.User{Email: "owner@EXAMPLE.com"})
	assert.ErrorIs(t, err, apperror.ErrConflict)

	got, err := db.Users().GetByEmail(ctx, " OWNER@example.com")
	require.NoError(t, err)
	assert.Equal(t, owner.ID, got.ID)

	_, err = db.Users().GetByID(ctx, "nope")
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	name := "Renamed"
	updated, err := db.Users().UpdateProfile(ctx, owner.ID, model.ProfileUpdate{DisplayName: &name})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.DisplayName)
}

func TestEventStore_OwnerProfileIsJoinedOnRead(t *testing.T) {
	db, owner := seed(t)
	ctx := context.Background()
	ev := addEvent(t, db, owner, "Talk", "Oslo", model.CategoryBusiness, time.Now().Add(time.Hour))

	name := "New name"
	_, err := db.Users().UpdateProfile(ctx, owner.ID, model.ProfileUpdate{DisplayName: &name})
	require.NoError(t, err)

	got, err := db.Events().GetByID(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, "New name", got.CreatedBy.DisplayName)
	assert.Equal(t, "owner@example.com", got.CreatedBy.Email)
}

func TestEventStore_ReturnsCopies(t *testing.T) {
	db, owner := seed(t)
	ctx := context.Background()
	ev := addEvent(t, db, owner, "Talk", "Oslo", model.CategoryBusiness, time.Now().Add(time.Hour))

	got, err := db.Events().GetByID(ctx, ev.ID)
	require.NoError(t, err)
	got.Title = "mutated"
	got.CurrentAttendees = 99

	again, err := db.Events().GetByID(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, "Talk", again.Title)
	assert.Equal(t, 0, again.CurrentAttendees)
}

func TestEventStore_ListFiltersCommute(t *testing.T) {
	db, owner := seed(t)
	ctx := context.Background()
	base := time.Now().Add(time.Hour)

	addEvent(t, db, owner, "Late NY gig", "NY", model.CategoryMusic, base.Add(2*time.Hour))
	addEvent(t, db, owner, "Early NY gig", "NY", model.CategoryMusic, base)
	addEvent(t, db, owner, "NY marathon", "NY", model.CategorySports, base)
	addEvent(t, db, owner, "LA gig", "LA", model.CategoryMusic, base)
	past := addEvent(t, db, owner, "Old NY gig", "ny", model.CategoryMusic, time.Now().Add(-time.Hour))
	_ = past

	city := "ny"
	music := model.CategoryMusic
	page := model.Page{Page: 1, Limit: 20}

	both, total, err := db.Events().List(ctx, model.EventFilter{City: &city, Category: &music, Page: page})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, "Old NY gig", both[0].Title)
	assert.Equal(t, "Early NY gig", both[1].Title)
	assert.Equal(t, "Late NY gig", both[2].Title)
	assert.Nil(t, both[0].Attendees, "listings omit the roster")

	upcoming, total, err := db.Events().List(ctx, model.EventFilter{
		City: &city, Category: &music, Upcoming: true, Now: time.Now(), Page: page,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, "Early NY gig", upcoming[0].Title)

	search := "MARATHON"
	found, total, err := db.Events().List(ctx, model.EventFilter{Search: &search, Page: page})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "NY marathon", found[0].Title)

	paged, total, err := db.Events().List(ctx, model.EventFilter{Page: model.Page{Page: 3, Limit: 2}})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, paged, 1)

	beyond, _, err := db.Events().List(ctx, model.EventFilter{Page: model.Page{Page: 9, Limit: 2}})
	require.NoError(t, err)
	assert.NotNil(t, beyond)
	assert.Empty(t, beyond)
}

func TestEventStore_UpdateKeepsOwnerAndRoster(t *testing.T) {
	db, owner := seed(t)
	ctx := context.Background()
	ev := addEvent(t, db, owner, "Talk", "Oslo", model.CategoryBusiness, time.Now().Add(time.Hour))

	updated, err := db.Events().Update(ctx, ev.ID, func(e *model.Event) error {
		e.Title = "Renamed"
		e.CreatedBy = model.Owner{ID: "someone-else"}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Title)
	assert.Equal(t, owner.ID, updated.CreatedBy.ID)

	_, err = db.Events().Update(ctx, "missing", func(*model.Event) error { return nil })
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestEventStore_WithAttendanceDiscardsOnError(t *testing.T) {
	db, owner := seed(t)
	ctx := context.Background()
	ev := addEvent(t, db, owner, "Talk", "Oslo", model.CategoryBusiness, time.Now().Add(time.Hour))

	_, err := db.Events().WithAttendance(ctx, ev.ID, owner.ID, func(e *model.Event, rec *model.Attendance) (*model.Attendance, error) {
		e.CurrentAttendees = 7
		return nil, apperror.New(apperror.InvalidState, "nope")
	})
	assert.ErrorIs(t, err, apperror.ErrInvalidState)

	got, err := db.Events().GetByID(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.CurrentAttendees)
	assert.Empty(t, got.Attendees)
}
