package handlers

import (
	"net/http"

	"github.com/Togather-Foundation/eventhost/internal/api/middleware"
	"github.com/Togather-Foundation/eventhost/internal/domain/events"
	"github.com/Togather-Foundation/eventhost/internal/domain/ids"
	"github.com/Togather-Foundation/eventhost/internal/domain/registrations"
	"golang.org/x/sync/errgroup"
)

type EventsHandler struct {
	Events        *events.Service
	Registrations *registrations.Service
	Env           string
	BaseURL       string
}

func NewEventsHandler(eventsService *events.Service, registrationsService *registrations.Service, env, baseURL string) *EventsHandler {
	return &EventsHandler{Events: eventsService, Registrations: registrationsService, Env: env, BaseURL: baseURL}
}

type eventRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Date        string `json:"date"`
	Location    string `json:"location"`
	Organizer   string `json:"organizer"`
	Category    string `json:"category"`
	Capacity    int    `json:"capacity"`
}

func (req eventRequest) input() events.Input {
	return events.Input{
		Title:       req.Title,
		Description: req.Description,
		Date:        req.Date,
		Location:    req.Location,
		Organizer:   req.Organizer,
		Category:    req.Category,
		Capacity:    req.Capacity,
	}
}

func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.Events.List(r.Context())
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, newEventList(list))
}

func (h *EventsHandler) Create(w http.ResponseWriter, r *http.Request) {
	session, _ := middleware.SessionFromContext(r.Context())

	var req eventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, r, err, h.Env)
		return
	}

	event, err := h.Events.Create(r.Context(), session.UserID, req.input())
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	event.CreatorName = session.Name
	event.CreatorEmail = session.Email

	if location, err := ids.BuildResourceURI(h.BaseURL, "api/v1/events", event.ID); err == nil {
		w.Header().Set("Location", location)
	}
	writeJSON(w, http.StatusCreated, newEventView(*event))
}

// Get returns the event with its attendees and, for a signed-in caller,
// whether they are registered or the creator.
func (h *EventsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := eventIDParam(w, r, h.Env)
	if !ok {
		return
	}

	event, err := h.Events.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	view := eventDetailView{Event: newEventView(*event)}
	session, signedIn := middleware.SessionFromContext(r.Context())

	g, gctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		attendees, err := h.Registrations.Attendees(gctx, id)
		if err != nil {
			return err
		}
		view.Attendees = newAttendeeViews(attendees)
		return nil
	})
	if signedIn {
		view.IsCreator = event.CreatorID == session.UserID
		g.Go(func() error {
			registered, err := h.Registrations.IsRegistered(gctx, session.UserID, id)
			if err != nil {
				return err
			}
			view.IsRegistered = registered
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

func (h *EventsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := eventIDParam(w, r, h.Env)
	if !ok {
		return
	}
	session, _ := middleware.SessionFromContext(r.Context())

	var req eventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, r, err, h.Env)
		return
	}

	event, err := h.Events.Update(r.Context(), id, session.UserID, req.input())
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, newEventView(*event))
}

func (h *EventsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := eventIDParam(w, r, h.Env)
	if !ok {
		return
	}
	session, _ := middleware.SessionFromContext(r.Context())

	if err := h.Events.Delete(r.Context(), id, session.UserID); err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
