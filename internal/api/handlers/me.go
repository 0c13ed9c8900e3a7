package handlers

import (
	"net/http"

	"github.com/Togather-Foundation/eventhost/internal/api/middleware"
	"github.com/Togather-Foundation/eventhost/internal/domain/events"
	"github.com/Togather-Foundation/eventhost/internal/domain/registrations"
	"golang.org/x/sync/errgroup"
)

// MeHandler serves the signed-in user's own views.
type MeHandler struct {
	Events        *events.Service
	Registrations *registrations.Service
	Env           string
}

func NewMeHandler(eventsService *events.Service, registrationsService *registrations.Service, env string) *MeHandler {
	return &MeHandler{Events: eventsService, Registrations: registrationsService, Env: env}
}

type dashboardView struct {
	TotalEvents    int `json:"total_events"`
	UpcomingEvents int `json:"upcoming_events"`
	Registrations  int `json:"registrations"`
}

// CreatedEvents lists the events the user created.
func (h *MeHandler) CreatedEvents(w http.ResponseWriter, r *http.Request) {
	session, _ := middleware.SessionFromContext(r.Context())
	list, err := h.Events.ListByCreator(r.Context(), session.UserID)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, newEventList(list))
}

// RegisteredEvents lists the events the user registered for.
func (h *MeHandler) RegisteredEvents(w http.ResponseWriter, r *http.Request) {
	session, _ := middleware.SessionFromContext(r.Context())
	list, err := h.Registrations.EventsFor(r.Context(), session.UserID)
	if err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, newEventList(list))
}

func (h *MeHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	session, _ := middleware.SessionFromContext(r.Context())

	var view dashboardView
	g, gctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		dash, err := h.Events.Dashboard(gctx, session.UserID)
		if err != nil {
			return err
		}
		view.TotalEvents = dash.TotalEvents
		view.UpcomingEvents = dash.UpcomingEvents
		return nil
	})
	g.Go(func() error {
		count, err := h.Registrations.CountFor(gctx, session.UserID)
		if err != nil {
			return err
		}
		view.Registrations = count
		return nil
	})
	if err := g.Wait(); err != nil {
		writeError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
