package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Togather-Foundation/eventhost/internal/domain/ids"
	"github.com/Togather-Foundation/eventhost/internal/sanitize"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type Service struct {
	repo   Repository
	logger zerolog.Logger
	now    func() time.Time
}

type Option func(*Service)

// WithClock replaces time.Now, used to decide which events are upcoming.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(repo Repository, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		logger: logger.With().Str("component", "events").Logger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Input is the user-supplied event form. Date uses DateLayout.
type Input struct {
	Title       string
	Description string
	Date        string
	Location    string
	Organizer   string
	Category    string
	Capacity    int
}

// Dashboard summarizes a creator's events.
type Dashboard struct {
	TotalEvents    int
	UpcomingEvents int
}

func (s *Service) Create(ctx context.Context, creatorID string, input Input) (*Event, error) {
	record, err := buildRecord(input)
	if err != nil {
		return nil, err
	}

	id, err := ids.NewULID()
	if err != nil {
		return nil, fmt.Errorf("generate event id: %w", err)
	}
	record.ID = id
	record.CreatorID = creatorID

	event, err := s.repo.Create(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	s.logger.Info().Str("event_id", event.ID).Str("creator_id", creatorID).Int("capacity", event.Capacity).Msg("event created")
	return event, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Event, error) {
	return s.repo.GetByID(ctx, ids.Normalize(id))
}

func (s *Service) List(ctx context.Context) ([]Event, error) {
	return s.repo.List(ctx)
}

func (s *Service) ListByCreator(ctx context.Context, creatorID string) ([]Event, error) {
	return s.repo.ListByCreator(ctx, creatorID)
}

// Update rewrites an event's details on behalf of actorID, who must be its
// creator. Capacity may not drop below the current registration count.
func (s *Service) Update(ctx context.Context, id, actorID string, input Input) (*Event, error) {
	id = ids.Normalize(id)
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.CreatorID != actorID {
		return nil, ErrForbidden
	}

	record, err := buildRecord(input)
	if err != nil {
		return nil, err
	}
	if record.Capacity < existing.Registrations {
		return nil, CapacityError{Capacity: record.Capacity, Registrations: existing.Registrations}
	}

	updated, err := s.repo.Update(ctx, id, record)
	if err != nil {
		if errors.Is(err, ErrCapacityBelowRegistrations) {
			// A registration landed between the read above and the write.
			current, getErr := s.repo.GetByID(ctx, id)
			if getErr != nil {
				return nil, err
			}
			return nil, CapacityError{Capacity: record.Capacity, Registrations: current.Registrations}
		}
		return nil, err
	}
	s.logger.Info().Str("event_id", id).Int("capacity", updated.Capacity).Msg("event updated")
	return updated, nil
}

// Delete removes an event and, through the foreign key cascade, its registrations.
func (s *Service) Delete(ctx context.Context, id, actorID string) error {
	id = ids.Normalize(id)
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if existing.CreatorID != actorID {
		return ErrForbidden
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("event_id", id).Int("registrations_dropped", existing.Registrations).Msg("event deleted")
	return nil
}

func (s *Service) CountByCreator(ctx context.Context, creatorID string) (int, error) {
	return s.repo.CountByCreator(ctx, creatorID)
}

// CountUpcomingByCreator counts the creator's events dated today or later.
func (s *Service) CountUpcomingByCreator(ctx context.Context, creatorID string) (int, error) {
	return s.repo.CountUpcomingByCreator(ctx, creatorID, s.today())
}

// Dashboard loads both creator counts concurrently.
func (s *Service) Dashboard(ctx context.Context, creatorID string) (Dashboard, error) {
	var dash Dashboard
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		total, err := s.repo.CountByCreator(gctx, creatorID)
		if err != nil {
			return fmt.Errorf("count events: %w", err)
		}
		dash.TotalEvents = total
		return nil
	})
	g.Go(func() error {
		upcoming, err := s.repo.CountUpcomingByCreator(gctx, creatorID, s.today())
		if err != nil {
			return fmt.Errorf("count upcoming events: %w", err)
		}
		dash.UpcomingEvents = upcoming
		return nil
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}
	return dash, nil
}

func (s *Service) today() time.Time {
	now := s.now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func buildRecord(input Input) (Record, error) {
	record := Record{
		Title:       sanitize.Text(input.Title),
		Description: sanitize.HTML(input.Description),
		Location:    sanitize.Text(input.Location),
		Organizer:   sanitize.Text(input.Organizer),
		Capacity:    input.Capacity,
	}

	required := []struct {
		field string
		value string
	}{
		{"title", record.Title},
		{"description", record.Description},
		{"date", strings.TrimSpace(input.Date)},
		{"location", record.Location},
		{"organizer", record.Organizer},
		{"category", strings.TrimSpace(input.Category)},
	}
	for _, r := range required {
		if r.value == "" {
			return Record{}, ValidationError{Field: r.field, Message: "is required"}
		}
	}

	date, err := ParseDate(input.Date)
	if err != nil {
		return Record{}, err
	}
	record.Date = date

	category, err := ParseCategory(input.Category)
	if err != nil {
		return Record{}, ValidationError{Field: "category", Message: "must be one of Conference, Workshop, Seminar, Cultural, Sports, Other"}
	}
	record.Category = category

	if record.Capacity < 1 {
		return Record{}, ValidationError{Field: "capacity", Message: "must be at least 1"}
	}
	return record, nil
}

// ParseDate parses a DateLayout calendar date into midnight UTC.
func ParseDate(value string) (time.Time, error) {
	parsed, err := time.Parse(DateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, ValidationError{Field: "date", Message: "must be a YYYY-MM-DD date"}
	}
	return parsed, nil
}
