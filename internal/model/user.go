package model

import (
	"strings"
	"time"
)

// User is an account. PasswordHash is never serialised.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	DisplayName  string    `json:"displayName"`
	City         string    `json:"city"`
	IsActive     bool      `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// NormalizeEmail trims and lowercases an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Owner returns the public profile shown on events the user created.
func (u *User) Owner() Owner {
	return Owner{ID: u.ID, DisplayName: u.DisplayName, Email: u.Email, City: u.City}
}

// ProfileUpdate carries the optional fields of a profile change.
type ProfileUpdate struct {
	DisplayName *string
	City        *string
}
