package registrations

import (
	"context"
	"errors"
	"time"

	"github.com/Togather-Foundation/eventhost/internal/domain/events"
)

var (
	ErrEventNotFound     = errors.New("event not found")
	ErrAlreadyRegistered = errors.New("already registered for this event")
	ErrNotRegistered     = errors.New("not registered for this event")
	ErrEventFull         = errors.New("event is full")

	// ErrInternalConsistency means a registration row existed while the
	// event counter was already zero. The transaction is rolled back.
	ErrInternalConsistency = errors.New("registration counter out of sync")

	// ErrTransient marks store failures worth retrying: serialization
	// failures, deadlocks and busy databases. Stores wrap it.
	ErrTransient = errors.New("transient storage conflict")
)

// Counters is the seat accounting snapshot of one event.
type Counters struct {
	Capacity      int
	Registrations int
}

// Attendee is a registered user as shown on the event page.
type Attendee struct {
	UserID       string
	Name         string
	Email        string
	RegisteredAt time.Time
}

// Tx is the set of statements run inside one accounting transaction.
type Tx interface {
	// EventCounters returns ErrEventNotFound when the event is missing.
	EventCounters(ctx context.Context, eventID string) (Counters, error)
	IsRegistered(ctx context.Context, userID, eventID string) (bool, error)
	// InsertRegistration maps a primary key violation to ErrAlreadyRegistered.
	InsertRegistration(ctx context.Context, userID, eventID string, at time.Time) error
	// IncrementRegistrations bumps the counter only while it is below
	// capacity. ok is false when the guard matched no row.
	IncrementRegistrations(ctx context.Context, eventID string) (after Counters, ok bool, err error)
	DeleteRegistration(ctx context.Context, userID, eventID string) (bool, error)
	// DecrementRegistrations lowers the counter only while it is above zero.
	DecrementRegistrations(ctx context.Context, eventID string) (after Counters, ok bool, err error)
}

// Store runs accounting transactions and the read-side queries.
type Store interface {
	// WithTx commits when fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	IsRegistered(ctx context.Context, userID, eventID string) (bool, error)
	// Attendees lists registered users, most recent first.
	Attendees(ctx context.Context, eventID string) ([]Attendee, error)
	// EventsFor lists events the user registered for, by date ascending.
	EventsFor(ctx context.Context, userID string) ([]events.Event, error)
	CountFor(ctx context.Context, userID string) (int, error)
}
