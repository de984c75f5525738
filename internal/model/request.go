package model

import (
	"bytes"
	"encoding/json"
	"math"
	"time"
)

// Optional distinguishes an absent JSON field (Set=false) from an explicit
// null (Set=true, Null=true) and a value.
type Optional[T any] struct {
	Set   bool
	Null  bool
	Value T
}

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Null = true
		return nil
	}
	return json.Unmarshal(data, &o.Value)
}

// Some returns a set, non-null Optional.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: v}
}

// RegisterUserRequest is the payload of POST /api/auth/register.
type RegisterUserRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=6"`
	DisplayName string `json:"displayName" validate:"max=50"`
	City        string `json:"city" validate:"max=100"`
}

// LoginRequest is the payload of POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// UpdateProfileRequest is the payload of PUT /api/auth/profile.
type UpdateProfileRequest struct {
	DisplayName *string `json:"displayName" validate:"omitempty,max=50"`
	City        *string `json:"city" validate:"omitempty,max=100"`
}

// CreateEventRequest is the payload of POST /api/events. Times are ISO 8601
// strings so malformed values can be reported as validation errors.
type CreateEventRequest struct {
	Title        string   `json:"title" validate:"required,max=200"`
	Description  string   `json:"description" validate:"max=5000"`
	Category     Category `json:"category" validate:"omitempty,category"`
	City         string   `json:"city" validate:"required,max=100"`
	Address      string   `json:"address" validate:"max=500"`
	Latitude     *float64 `json:"latitude" validate:"omitempty,min=-90,max=90"`
	Longitude    *float64 `json:"longitude" validate:"omitempty,min=-180,max=180"`
	StartTime    string   `json:"startTime" validate:"required"`
	EndTime      string   `json:"endTime"`
	MaxAttendees *int     `json:"maxAttendees" validate:"omitempty,min=1"`
}

// UpdateEventRequest is the payload of PUT /api/events/{id}. Every field is
// optional; only the ones present overwrite the stored event.
type UpdateEventRequest struct {
	Title        *string          `json:"title" validate:"omitempty,max=200"`
	Description  Optional[string] `json:"description"`
	Category     *Category        `json:"category" validate:"omitempty,category"`
	City         *string          `json:"city" validate:"omitempty,max=100"`
	Address      Optional[string] `json:"address"`
	Latitude     *float64         `json:"latitude" validate:"omitempty,min=-90,max=90"`
	Longitude    *float64         `json:"longitude" validate:"omitempty,min=-180,max=180"`
	StartTime    *string          `json:"startTime"`
	EndTime      Optional[string] `json:"endTime"`
	MaxAttendees Optional[int]    `json:"maxAttendees"`
	IsPublished  *bool            `json:"isPublished"`
}

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
)

// Page selects a slice of a sorted listing.
type Page struct {
	Page  int
	Limit int
}

func (p Page) Offset() int { return (p.Page - 1) * p.Limit }

// EventFilter selects events for the public listing. Nil fields are not
// applied; all applied filters are ANDed.
type EventFilter struct {
	City     *string
	Category *Category
	Upcoming bool
	Search   *string
	// Now is the reference instant for Upcoming.
	Now  time.Time
	Page Page
}

// Pagination is the listing metadata returned with every page.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

func NewPagination(p Page, total int) Pagination {
	pages := 0
	if p.Limit > 0 {
		pages = int(math.Ceil(float64(total) / float64(p.Limit)))
	}
	return Pagination{Page: p.Page, Limit: p.Limit, Total: total, Pages: pages}
}

// EventList is one page of events.
type EventList struct {
	Events     []Event    `json:"events"`
	Pagination Pagination `json:"pagination"`
}
