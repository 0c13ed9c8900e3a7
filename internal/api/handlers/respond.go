package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Togather-Foundation/eventhost/internal/api/problem"
	"github.com/Togather-Foundation/eventhost/internal/domain/events"
	"github.com/Togather-Foundation/eventhost/internal/domain/ids"
	"github.com/Togather-Foundation/eventhost/internal/domain/registrations"
	"github.com/Togather-Foundation/eventhost/internal/domain/users"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// decodeJSON reads a single JSON object, rejecting unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

// writeDecodeError answers a body that could not be decoded.
func writeDecodeError(w http.ResponseWriter, r *http.Request, err error, env string) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		problem.Write(w, r, http.StatusRequestEntityTooLarge, problem.TypeValidation, "Request body too large", err, env)
		return
	}
	problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request", fmt.Errorf("malformed JSON: %w", err), env)
}

func pathParam(r *http.Request, key string) string {
	if r == nil {
		return ""
	}
	return r.PathValue(key)
}

// eventIDParam validates the {id} segment. Anything that is not a ULID cannot
// name an event, so it is answered with 404.
func eventIDParam(w http.ResponseWriter, r *http.Request, env string) (string, bool) {
	value := strings.TrimSpace(pathParam(r, "id"))
	if err := ids.ValidateULID(value); err != nil {
		problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "Event not found", events.ErrNotFound, env)
		return "", false
	}
	return ids.Normalize(value), true
}

// writeError maps domain errors onto problem responses.
func writeError(w http.ResponseWriter, r *http.Request, err error, env string) {
	var (
		eventErr events.ValidationError
		userErr  users.ValidationError
		capErr   events.CapacityError
	)

	switch {
	case errors.As(err, &eventErr):
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request", err, env,
			problem.WithFieldError(eventErr.Field, eventErr.Message))
	case errors.As(err, &userErr):
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request", err, env,
			problem.WithFieldError(userErr.Field, userErr.Message))
	case errors.Is(err, users.ErrPasswordTooShort), errors.Is(err, users.ErrPasswordTooLong):
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request", err, env,
			problem.WithFieldError("password", err.Error()))
	case errors.As(err, &capErr):
		problem.Write(w, r, http.StatusConflict, problem.TypeCapacity, "Capacity below registrations", err, env)
	case errors.Is(err, events.ErrCapacityBelowRegistrations):
		problem.Write(w, r, http.StatusConflict, problem.TypeCapacity, "Capacity below registrations", err, env)
	case errors.Is(err, events.ErrNotFound), errors.Is(err, registrations.ErrEventNotFound):
		problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "Event not found", err, env)
	case errors.Is(err, users.ErrUserNotFound):
		problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "User not found", err, env)
	case errors.Is(err, events.ErrForbidden):
		problem.Write(w, r, http.StatusForbidden, problem.TypeForbidden, "Forbidden", err, env)
	case errors.Is(err, registrations.ErrAlreadyRegistered):
		problem.Write(w, r, http.StatusConflict, problem.TypeAlreadyRegistered, "Already registered", err, env)
	case errors.Is(err, registrations.ErrNotRegistered):
		problem.Write(w, r, http.StatusConflict, problem.TypeNotRegistered, "Not registered", err, env)
	case errors.Is(err, registrations.ErrEventFull):
		problem.Write(w, r, http.StatusConflict, problem.TypeEventFull, "Event full", err, env)
	case errors.Is(err, users.ErrEmailTaken):
		problem.Write(w, r, http.StatusConflict, problem.TypeEmailTaken, "Email already registered", err, env)
	case errors.Is(err, users.ErrInvalidCredentials):
		problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Invalid credentials", err, env)
	default:
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeServerError, "Server error", err, env)
	}
}
