// Package model defines the core domain types for the event planner.
package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Category is one of the fixed event categories.
type Category string

const (
	CategoryMusic      Category = "music"
	CategorySports     Category = "sports"
	CategoryArts       Category = "arts"
	CategoryFood       Category = "food"
	CategoryTechnology Category = "technology"
	CategoryBusiness   Category = "business"
	CategorySocial     Category = "social"
	CategoryOutdoor    Category = "outdoor"
	CategoryOther      Category = "other"
)

// Categories lists every accepted category in display order.
var Categories = []Category{
	CategoryMusic, CategorySports, CategoryArts, CategoryFood, CategoryTechnology,
	CategoryBusiness, CategorySocial, CategoryOutdoor, CategoryOther,
}

// Valid reports whether c is one of Categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Location is a GeoJSON point. Coordinates are [longitude, latitude].
type Location struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

func NewPoint(longitude, latitude float64) Location {
	return Location{Type: "Point", Coordinates: [2]float64{longitude, latitude}}
}

func (l Location) Longitude() float64 { return l.Coordinates[0] }
func (l Location) Latitude() float64  { return l.Coordinates[1] }

// Validate checks the coordinate ranges.
func (l Location) Validate() error {
	if l.Longitude() < -180 || l.Longitude() > 180 || l.Latitude() < -90 || l.Latitude() > 90 {
		return fmt.Errorf("invalid coordinates [%v, %v]", l.Longitude(), l.Latitude())
	}
	return nil
}

// AttendanceStatus is the state of one user's attendance record.
type AttendanceStatus string

const (
	AttendanceRegistered AttendanceStatus = "registered"
	AttendanceCancelled  AttendanceStatus = "cancelled"
)

// Attendance is a user's registration state for one event. There is at most
// one record per (event, user); cancelling and re-registering reuse it.
type Attendance struct {
	UserID       string           `json:"user"`
	Status       AttendanceStatus `json:"status"`
	RegisteredAt time.Time        `json:"registeredAt"`
}

// Owner is the public profile of an event's creator.
type Owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	City        string `json:"city"`
}

// Event is the event aggregate, including its attendance roster.
type Event struct {
	ID               string       `json:"id"`
	Title            string       `json:"title"`
	Description      string       `json:"description"`
	Category         Category     `json:"category"`
	City             string       `json:"city"`
	Location         Location     `json:"location"`
	Address          string       `json:"address"`
	StartTime        time.Time    `json:"startTime"`
	EndTime          *time.Time   `json:"endTime"`
	MaxAttendees     *int         `json:"maxAttendees"`
	CurrentAttendees int          `json:"currentAttendees"`
	CreatedBy        Owner        `json:"createdBy"`
	IsPublished      bool         `json:"isPublished"`
	IsCancelled      bool         `json:"isCancelled"`
	Attendees        []Attendance `json:"attendees,omitempty"`
	CreatedAt        time.Time    `json:"createdAt"`
	UpdatedAt        time.Time    `json:"updatedAt"`
}

// MarshalJSON adds the derived duration (milliseconds) when an end time is set.
func (e Event) MarshalJSON() ([]byte, error) {
	type plain Event
	var duration *int64
	if d, ok := e.Duration(); ok {
		ms := d.Milliseconds()
		duration = &ms
	}
	return json.Marshal(struct {
		plain
		Duration *int64 `json:"duration"`
	}{plain: plain(e), Duration: duration})
}

// Duration returns EndTime - StartTime when an end time is set.
func (e *Event) Duration() (time.Duration, bool) {
	if e.EndTime == nil {
		return 0, false
	}
	return e.EndTime.Sub(e.StartTime), true
}

// Remaining returns the number of free places, or false for unlimited events.
func (e *Event) Remaining() (int, bool) {
	if e.MaxAttendees == nil {
		return 0, false
	}
	left := *e.MaxAttendees - e.CurrentAttendees
	if left < 0 {
		left = 0
	}
	return left, true
}

// IsFull returns true when the capacity is set and reached.
func (e *Event) IsFull() bool {
	return e.MaxAttendees != nil && e.CurrentAttendees >= *e.MaxAttendees
}

// IsOwnedBy reports whether userID created the event.
func (e *Event) IsOwnedBy(userID string) bool {
	return userID != "" && e.CreatedBy.ID == userID
}

// VisibleTo reports whether viewerID may read the event. Unpublished and
// cancelled events are visible to their owner only.
func (e *Event) VisibleTo(viewerID string) bool {
	if e.IsPublished && !e.IsCancelled {
		return true
	}
	return e.IsOwnedBy(viewerID)
}

// AttendanceOf returns the user's attendance record, if any.
func (e *Event) AttendanceOf(userID string) *Attendance {
	for i := range e.Attendees {
		if e.Attendees[i].UserID == userID {
			return &e.Attendees[i]
		}
	}
	return nil
}

// RegisteredCount counts records with status registered.
func (e *Event) RegisteredCount() int {
	n := 0
	for _, a := range e.Attendees {
		if a.Status == AttendanceRegistered {
			n++
		}
	}
	return n
}
