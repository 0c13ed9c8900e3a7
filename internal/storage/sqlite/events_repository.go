package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Togather-Foundation/eventhost/internal/domain/events"
)

type EventRepository struct {
	db *sql.DB
}

const eventSelect = `
SELECT e.id, e.title, e.description, e.date, e.location, e.organizer, e.category,
       e.capacity, e.registrations, e.creator_id, u.name, u.email, e.created_at, e.updated_at
  FROM events e
  JOIN users u ON u.id = e.creator_id`

func (r *EventRepository) Create(ctx context.Context, record events.Record) (*events.Event, error) {
	now := formatTime(time.Now())
	_, err := r.db.ExecContext(ctx, `
INSERT INTO events (id, title, description, date, location, organizer, category, capacity, creator_id, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.Title, record.Description, record.Date.Format(events.DateLayout), record.Location,
		record.Organizer, string(record.Category), record.Capacity, record.CreatorID, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	return r.GetByID(ctx, record.ID)
}

func (r *EventRepository) GetByID(ctx context.Context, id string) (*events.Event, error) {
	event, err := scanEvent(r.db.QueryRowContext(ctx, eventSelect+` WHERE e.id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, events.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return &event, nil
}

func (r *EventRepository) List(ctx context.Context) ([]events.Event, error) {
	return queryEvents(ctx, r.db, eventSelect+` ORDER BY e.date ASC, e.created_at ASC`)
}

func (r *EventRepository) ListByCreator(ctx context.Context, creatorID string) ([]events.Event, error) {
	return queryEvents(ctx, r.db, eventSelect+` WHERE e.creator_id = ? ORDER BY e.date ASC, e.created_at ASC`, creatorID)
}

// Update refuses a capacity below the registrations present at write time.
func (r *EventRepository) Update(ctx context.Context, id string, record events.Record) (*events.Event, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE events
   SET title = ?, description = ?, date = ?, location = ?, organizer = ?,
       category = ?, capacity = ?, updated_at = ?
 WHERE id = ? AND ? >= registrations`,
		record.Title, record.Description, record.Date.Format(events.DateLayout), record.Location, record.Organizer,
		string(record.Category), record.Capacity, formatTime(time.Now()), id, record.Capacity,
	)
	if err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}
	if affected == 0 {
		var exists bool
		if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM events WHERE id = ?)`, id).Scan(&exists); err != nil {
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
	res, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if affected == 0 {
		return events.ErrNotFound
	}
	return nil
}

func (r *EventRepository) CountByCreator(ctx context.Context, creatorID string) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM events WHERE creator_id = ?`, creatorID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return count, nil
}

func (r *EventRepository) CountUpcomingByCreator(ctx context.Context, creatorID string, today time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM events WHERE creator_id = ? AND date >= ?`,
		creatorID, today.Format(events.DateLayout),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count upcoming events: %w", err)
	}
	return count, nil
}

func queryEvents(ctx context.Context, q queryer, query string, args ...any) ([]events.Event, error) {
	rows, err := q.QueryContext(ctx, query, args...)
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

func scanEvent(row scanner) (events.Event, error) {
	var (
		event                events.Event
		date, category       string
		createdAt, updatedAt string
	)
	err := row.Scan(
		&event.ID, &event.Title, &event.Description, &date, &event.Location, &event.Organizer, &category,
		&event.Capacity, &event.Registrations, &event.CreatorID, &event.CreatorName, &event.CreatorEmail,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return events.Event{}, err
	}
	if event.Date, err = time.Parse(events.DateLayout, date); err != nil {
		return events.Event{}, fmt.Errorf("parse date %q: %w", date, err)
	}
	if event.CreatedAt, err = parseTime(createdAt); err != nil {
		return events.Event{}, err
	}
	if event.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return events.Event{}, err
	}
	event.Category = events.Category(category)
	return event, nil
}
