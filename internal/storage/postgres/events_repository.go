package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Togather-Foundation/eventhost/internal/domain/events"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type EventRepository struct {
	pool *pgxpool.Pool
}

const eventSelect = `
SELECT e.id, e.title, e.description, e.date, e.location, e.organizer, e.category,
       e.capacity, e.registrations, e.creator_id, u.name, u.email, e.created_at, e.updated_at
  FROM events e
  JOIN users u ON u.id = e.creator_id`

func (r *EventRepository) Create(ctx context.Context, record events.Record) (*events.Event, error) {
	_, err := r.pool.Exec(ctx, `
INSERT INTO events (id, title, description, date, location, organizer, category, capacity, creator_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		record.ID, record.Title, record.Description, pgDate(record.Date), record.Location,
		record.Organizer, string(record.Category), record.Capacity, record.CreatorID,
	)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	return r.GetByID(ctx, record.ID)
}

func (r *EventRepository) GetByID(ctx context.Context, id string) (*events.Event, error) {
	row := r.pool.QueryRow(ctx, eventSelect+` WHERE e.id = $1`, id)
	event, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, events.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return &event, nil
}

func (r *EventRepository) List(ctx context.Context) ([]events.Event, error) {
	return queryEvents(ctx, r.pool, eventSelect+` ORDER BY e.date ASC, e.created_at ASC`)
}

func (r *EventRepository) ListByCreator(ctx context.Context, creatorID string) ([]events.Event, error) {
	return queryEvents(ctx, r.pool, eventSelect+` WHERE e.creator_id = $1 ORDER BY e.date ASC, e.created_at ASC`, creatorID)
}

// Update refuses a capacity below the registrations present at write time.
func (r *EventRepository) Update(ctx context.Context, id string, record events.Record) (*events.Event, error) {
	tag, err := r.pool.Exec(ctx, `
UPDATE events
   SET title = $2, description = $3, date = $4, location = $5, organizer = $6,
       category = $7, capacity = $8, updated_at = now()
 WHERE id = $1 AND $8 >= registrations`,
		id, record.Title, record.Description, pgDate(record.Date), record.Location,
		record.Organizer, string(record.Category), record.Capacity,
	)
	if err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM events WHERE id = $1)`, id).Scan(&exists); err != nil {
			return nil, fmt.Errorf("check event: %w", err)
		}
		if !exists {
			return nil, events.ErrNotFound
		}
		return nil, events.ErrCapacityBelowRegistrations
	}
	return r.GetByID(ctx, id)
}

func (r *EventRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return events.ErrNotFound
	}
	return nil
}

func (r *EventRepository) CountByCreator(ctx context.Context, creatorID string) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM events WHERE creator_id = $1`, creatorID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return count, nil
}

func (r *EventRepository) CountUpcomingByCreator(ctx context.Context, creatorID string, today time.Time) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM events WHERE creator_id = $1 AND date >= $2`,
		creatorID, pgDate(today),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count upcoming events: %w", err)
	}
	return count, nil
}

func queryEvents(ctx context.Context, q queryer, sql string, args ...any) ([]events.Event, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	list := make([]events.Event, 0)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		list = append(list, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return list, nil
}

func scanEvent(row pgx.Row) (events.Event, error) {
	var (
		event    events.Event
		date     pgtype.Date
		category string
	)
	err := row.Scan(
		&event.ID, &event.Title, &event.Description, &date, &event.Location, &event.Organizer, &category,
		&event.Capacity, &event.Registrations, &event.CreatorID, &event.CreatorName, &event.CreatorEmail,
		&event.CreatedAt, &event.UpdatedAt,
	)
	if err != nil {
		return events.Event{}, err
	}
	event.Date = date.Time
	event.Category = events.Category(category)
	return event, nil
}

func pgDate(t time.Time) pgtype.Date {
	return pgtype.Date{Time: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), Valid: true}
}
