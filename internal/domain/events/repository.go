package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrNotFound = errors.New("event not found")

// ErrForbidden is returned when someone other than the creator mutates an event.
var ErrForbidden = errors.New("only the event creator may modify this event")

// ErrCapacityBelowRegistrations rejects shrinking capacity under the number of
// seats already claimed.
var ErrCapacityBelowRegistrations = errors.New("capacity cannot be less than current registrations")

// DateLayout is the calendar-date wire and storage format.
const DateLayout = "2006-01-02"

type Category string

const (
	CategoryConference Category = "Conference"
	CategoryWorkshop   Category = "Workshop"
	CategorySeminar    Category = "Seminar"
	CategoryCultural   Category = "Cultural"
	CategorySports     Category = "Sports"
	CategoryOther      Category = "Other"
)

// Categories lists every accepted category in display order.
var Categories = []Category{
	CategoryConference,
	CategoryWorkshop,
	CategorySeminar,
	CategoryCultural,
	CategorySports,
	CategoryOther,
}

// ParseCategory matches value case-insensitively against Categories.
func ParseCategory(value string) (Category, error) {
	value = strings.TrimSpace(value)
	for _, c := range Categories {
		if strings.EqualFold(string(c), value) {
			return c, nil
		}
	}
	return "", fmt.Errorf("unsupported category %q", value)
}

type Event struct {
	ID            string
	Title         string
	Description   string
	Date          time.Time
	Location      string
	Organizer     string
	Category      Category
	Capacity      int
	Registrations int
	CreatorID     string
	CreatorName   string
	CreatorEmail  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// SeatsLeft is the remaining capacity; never negative.
func (e Event) SeatsLeft() int {
	if left := e.Capacity - e.Registrations; left > 0 {
		return left
	}
	return 0
}

func (e Event) IsFull() bool {
	return e.Registrations >= e.Capacity
}

// Record is the validated, sanitized row written by Create and Update.
// Update ignores ID and CreatorID.
type Record struct {
	ID          string
	Title       string
	Description string
	Date        time.Time
	Location    string
	Organizer   string
	Category    Category
	Capacity    int
	CreatorID   string
}

type Repository interface {
	Create(ctx context.Context, record Record) (*Event, error)
	GetByID(ctx context.Context, id string) (*Event, error)
	List(ctx context.Context) ([]Event, error)
	ListByCreator(ctx context.Context, creatorID string) ([]Event, error)
	// Update must refuse (ErrCapacityBelowRegistrations) when record.Capacity
	// is below the stored registrations at write time.
	Update(ctx context.Context, id string, record Record) (*Event, error)
	Delete(ctx context.Context, id string) error
	CountByCreator(ctx context.Context, creatorID string) (int, error)
	CountUpcomingByCreator(ctx context.Context, creatorID string, today time.Time) (int, error)
}
