package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/Togather-Foundation/eventhost/internal/api/middleware"
	"github.com/Togather-Foundation/eventhost/internal/domain/events"
	"github.com/Togather-Foundation/eventhost/internal/domain/ids"
	"github.com/Togather-Foundation/eventhost/internal/domain/registrations"
	"github.com/Togather-Foundation/eventhost/internal/email"
	"github.com/rs/zerolog"
)

const notifyTimeout = 10 * time.Second

// RegistrationNotifier is told about committed seat changes. Failures never
// undo the registration.
type RegistrationNotifier interface {
	RegistrationConfirmed(ctx context.Context, n email.Notice) error
	RegistrationCancelled(ctx context.Context, n email.Notice) error
}

type RegistrationsHandler struct {
	Registrations *registrations.Service
	Events        *events.Service
	Notifier      RegistrationNotifier
	Env           string
	BaseURL       string
}

func NewRegistrationsHandler(service *registrations.Service, eventsService *events.Service, notifier RegistrationNotifier, env, baseURL string) *RegistrationsHandler {
	return &RegistrationsHandler{
		Registrations: service,
		Events:        eventsService,
		Notifier:      notifier,
		Env:           env,
		BaseURL:       baseURL,
	}
}

// Register claims a seat for the signed-in user.
func (h *RegistrationsHandler) Register(w http.ResponseWriter, r *http.Request) {
	id, ok := eventIDParam(w, r, h.Env)
	if !ok {
		return
	}
	session, _ := middleware.SessionFromContext(r.Context())

	result, err := h.Registrations.Register(r.Context(), session.UserID, id)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	if h.Notifier != nil {
		h.notify(r, session, id, h.Notifier.RegistrationConfirmed)
	}
	writeJSON(w, http.StatusCreated, newRegistrationView(result, "Successfully registered for the event"))
}

// Unregister releases the signed-in user's seat.
func (h *RegistrationsHandler) Unregister(w http.ResponseWriter, r *http.Request) {
	id, ok := eventIDParam(w, r, h.Env)
	if !ok {
		return
	}
	session, _ := middleware.SessionFromContext(r.Context())

	result, err := h.Registrations.Unregister(r.Context(), session.UserID, id)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	if h.Notifier != nil {
		h.notify(r, session, id, h.Notifier.RegistrationCancelled)
	}
	writeJSON(w, http.StatusOK, newRegistrationView(result, "Successfully unregistered from the event"))
}

func (h *RegistrationsHandler) notify(r *http.Request, session middleware.Session, eventID string, send func(context.Context, email.Notice) error) {
	logger := zerolog.Ctx(r.Context())
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), notifyTimeout)
	defer cancel()

	event, err := h.Events.Get(ctx, eventID)
	if err != nil {
		logger.Warn().Err(err).Str("event_id", eventID).Msg("registration email skipped")
		return
	}
	link, _ := ids.BuildResourceURI(h.BaseURL, "api/v1/events", event.ID)
	notice := email.Notice{
		To:            session.Email,
		Name:          session.Name,
		EventID:       event.ID,
		EventTitle:    event.Title,
		EventDate:     event.Date.Format(events.DateLayout),
		EventLocation: event.Location,
		EventURL:      link,
	}
	if err := send(ctx, notice); err != nil {
		logger.Warn().Err(err).Str("event_id", eventID).Msg("registration email failed")
	}
}
