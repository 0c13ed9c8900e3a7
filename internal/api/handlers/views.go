package handlers

import (
	"time"

	"github.com/Togather-Foundation/eventhost/internal/domain/events"
	"github.com/Togather-Foundation/eventhost/internal/domain/registrations"
	"github.com/Togather-Foundation/eventhost/internal/domain/users"
)

type userView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type creatorView struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

type eventView struct {
	ID            string      `json:"id"`
	Title         string      `json:"title"`
	Description   string      `json:"description"`
	Date          string      `json:"date"`
	Location      string      `json:"location"`
	Organizer     string      `json:"organizer"`
	Category      string      `json:"category"`
	Capacity      int         `json:"capacity"`
	Registrations int         `json:"registrations"`
	SeatsLeft     int         `json:"seats_left"`
	Full          bool        `json:"full"`
	Creator       creatorView `json:"creator"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

type attendeeView struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	RegisteredAt time.Time `json:"registered_at"`
}

type eventDetailView struct {
	Event        eventView      `json:"event"`
	Attendees    []attendeeView `json:"attendees"`
	IsRegistered bool           `json:"is_registered"`
	IsCreator    bool           `json:"is_creator"`
}

type registrationView struct {
	EventID       string `json:"event_id"`
	Registrations int    `json:"registrations"`
	Capacity      int    `json:"capacity"`
	SeatsLeft     int    `json:"seats_left"`
	Message       string `json:"message"`
}

type listView[T any] struct {
	Items []T `json:"items"`
}

func newUserView(u *users.User) userView {
	return userView{ID: u.ID, Name: u.Name, Email: u.Email}
}

func newEventView(e events.Event) eventView {
	return eventView{
		ID:            e.ID,
		Title:         e.Title,
		Description:   e.Description,
		Date:          e.Date.Format(events.DateLayout),
		Location:      e.Location,
		Organizer:     e.Organizer,
		Category:      string(e.Category),
		Capacity:      e.Capacity,
		Registrations: e.Registrations,
		SeatsLeft:     e.SeatsLeft(),
		Full:          e.IsFull(),
		Creator:       creatorView{ID: e.CreatorID, Name: e.CreatorName, Email: e.CreatorEmail},
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}

func newEventList(list []events.Event) listView[eventView] {
	items := make([]eventView, 0, len(list))
	for _, e := range list {
		items = append(items, newEventView(e))
	}
	return listView[eventView]{Items: items}
}

func newAttendeeViews(list []registrations.Attendee) []attendeeView {
	out := make([]attendeeView, 0, len(list))
	for _, a := range list {
		out = append(out, attendeeView{ID: a.UserID, Name: a.Name, Email: a.Email, RegisteredAt: a.RegisteredAt})
	}
	return out
}

func newRegistrationView(result registrations.Result, message string) registrationView {
	return registrationView{
		EventID:       result.EventID,
		Registrations: result.Registrations,
		Capacity:      result.Capacity,
		SeatsLeft:     result.SeatsLeft(),
		Message:       message,
	}
}
