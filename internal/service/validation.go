package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/Shivanand-hulikatti/event-planner/internal/apperror"
	"github.com/Shivanand-hulikatti/event-planner/internal/model"
	"github.com/go-playground/validator/v10"
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report json names so field errors match the request body.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return model.Category(fl.Field().String()).Valid()
	})
	return v
}

// validate runs struct validation and converts failures into a Validation
// error listing every rejected field.
func validate(v *validator.Validate, req any) error {
	err := v.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate request: %w", err)
	}

	fields := make([]apperror.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, apperror.FieldError{Field: fe.Field(), Message: fieldMessage(fe)})
	}
	return apperror.WithFields("Validation failed", fields)
}

// fieldMessages holds the client-facing message per "field.tag". Pairs not
// listed fall back to a generic message built from the tag.
var fieldMessages = map[string]string{
	"email.required":     "Please enter a valid email",
	"email.email":        "Please enter a valid email",
	"password.required":  "Password is required",
	"password.min":       "Password must be at least 6 characters",
	"displayName.max":    "Display name cannot exceed 50 characters",
	"title.required":     "Event title is required",
	"title.max":          "Title cannot exceed 200 characters",
	"description.max":    "Description cannot exceed 5000 characters",
	"category.category":  "Invalid category",
	"city.required":      "City is required",
	"city.max":           "City cannot exceed 100 characters",
	"address.max":        "Address cannot exceed 500 characters",
	"latitude.min":       "Latitude must be between -90 and 90",
	"latitude.max":       "Latitude must be between -90 and 90",
	"longitude.min":      "Longitude must be between -180 and 180",
	"longitude.max":      "Longitude must be between -180 and 180",
	"startTime.required": "Start time is required",
	"maxAttendees.min":   "Max attendees must be a positive integer",
}

func fieldMessage(fe validator.FieldError) string {
	if msg, ok := fieldMessages[fe.Field()+"."+fe.Tag()]; ok {
		return msg
	}
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return "Please enter a valid email"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s cannot exceed %s characters", fe.Field(), fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "category":
		return "Invalid category"
	default:
		return fe.Field() + " is invalid"
	}
}

// fieldError builds a single-field Validation error.
func fieldError(field, msg string) error {
	return apperror.WithFields(msg, []apperror.FieldError{{Field: field, Message: msg}})
}
