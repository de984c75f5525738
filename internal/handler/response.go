package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/Shivanand-hulikatti/event-planner/internal/apperror"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 20

// envelope is the body of every JSON response.
type envelope struct {
	Success bool                  `json:"success"`
	Message string                `json:"message,omitempty"`
	Data    any                   `json:"data,omitempty"`
	Error   string                `json:"error,omitempty"`
	Errors  []apperror.FieldError `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, envelope{Success: true, Message: message, Data: data})
}

// errorWriter renders errors through the taxonomy. hideInternal replaces the
// message of unclassified errors.
type errorWriter struct {
	hideInternal bool
}

func (ew errorWriter) write(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperror.KindOf(err)
	status := apperror.Status(kind)
	logger := zerolog.Ctx(r.Context())

	msg := apperror.Message(err)
	if kind == apperror.Internal {
		logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		if !ew.hideInternal {
			msg = err.Error()
		} else {
			msg = "Internal server error"
		}
	} else {
		logger.Debug().Str("kind", kind.String()).Str("error", msg).Msg("request rejected")
	}

	writeJSON(w, status, envelope{Success: false, Error: msg, Errors: apperror.Fields(err)})
}

func writeFailure(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{Success: false, Error: msg})
}

// decodeJSON reads a single JSON object from the body into dst. Malformed
// bodies become Validation errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return apperror.New(apperror.Validation, "Request body is required")
		case errors.As(err, &maxErr):
			return apperror.New(apperror.Validation, "Request body too large")
		default:
			return apperror.Wrap(apperror.Validation, fmt.Sprintf("Invalid request body: %v", err), err)
		}
	}
	if dec.More() {
		return apperror.New(apperror.Validation, "Request body must contain a single JSON object")
	}
	return nil
}
