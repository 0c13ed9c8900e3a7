package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Togather-Foundation/eventhost/internal/domain/events"
	"github.com/Togather-Foundation/eventhost/internal/domain/registrations"
	"github.com/Togather-Foundation/eventhost/internal/metrics"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RegistrationStore runs accounting transactions at READ COMMITTED. The
// guarded UPDATE statements re-check their predicate after waiting on a row
// lock, so concurrent registrations cannot overshoot capacity.
type RegistrationStore struct {
	pool *pgxpool.Pool
}

func (s *RegistrationStore) WithTx(ctx context.Context, fn func(tx registrations.Tx) error) error {
	start := time.Now()
	var dbErr error
	defer func() { metrics.RecordQuery("registration_tx", start, dbErr) }()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		dbErr = classify(fmt.Errorf("begin tx: %w", err))
		return dbErr
	}

	// Errors from fn are accounting outcomes, not database failures.
	if err := fn(&registrationTx{tx: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		dbErr = classify(fmt.Errorf("commit tx: %w", err))
		return dbErr
	}
	return nil
}

func (s *RegistrationStore) IsRegistered(ctx context.Context, userID, eventID string) (bool, error) {
	return isRegistered(ctx, s.pool, userID, eventID)
}

func (s *RegistrationStore) Attendees(ctx context.Context, eventID string) ([]registrations.Attendee, error) {
	rows, err := s.pool.Query(ctx, `
SELECT u.id, u.name, u.email, r.registered_at
  FROM event_registrations r
  JOIN users u ON u.id = r.user_id
 WHERE r.event_id = $1
 ORDER BY r.registered_at DESC, u.id`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list attendees: %w", err)
	}
	defer rows.Close()

	attendees := make([]registrations.Attendee, 0)
	for rows.Next() {
		var a registrations.Attendee
		if err := rows.Scan(&a.UserID, &a.Name, &a.Email, &a.RegisteredAt); err != nil {
			return nil, fmt.Errorf("scan attendee: %w", err)
		}
		attendees = append(attendees, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendees: %w", err)
	}
	return attendees, nil
}

func (s *RegistrationStore) EventsFor(ctx context.Context, userID string) ([]events.Event, error) {
	return queryEvents(ctx, s.pool, eventSelect+`
  JOIN event_registrations r ON r.event_id = e.id
 WHERE r.user_id = $1
 ORDER BY e.date ASC, e.created_at ASC`, userID)
}

func (s *RegistrationStore) CountFor(ctx context.Context, userID string) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM event_registrations WHERE user_id = $1`, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count registrations: %w", err)
	}
	return count, nil
}

type registrationTx struct {
	tx pgx.Tx
}

func (t *registrationTx) EventCounters(ctx context.Context, eventID string) (registrations.Counters, error) {
	var c registrations.Counters
	err := t.tx.QueryRow(ctx, `SELECT capacity, registrations FROM events WHERE id = $1`, eventID).
		Scan(&c.Capacity, &c.Registrations)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return registrations.Counters{}, registrations.ErrEventNotFound
		}
		return registrations.Counters{}, classify(fmt.Errorf("load event counters: %w", err))
	}
	return c, nil
}

func (t *registrationTx) IsRegistered(ctx context.Context, userID, eventID string) (bool, error) {
	registered, err := isRegistered(ctx, t.tx, userID, eventID)
	return registered, classify(err)
}

func (t *registrationTx) InsertRegistration(ctx context.Context, userID, eventID string, at time.Time) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO event_registrations (user_id, event_id, registered_at) VALUES ($1, $2, $3)`,
		userID, eventID, at,
	)
	if err == nil {
		return nil
	}
	switch code, constraint := pgErrorCode(err); {
	case code == codeUniqueViolation:
		return registrations.ErrAlreadyRegistered
	case code == codeForeignKeyViolation && constraint == "event_registrations_event_fk":
		return registrations.ErrEventNotFound
	}
	return classify(fmt.Errorf("insert registration: %w", err))
}

func (t *registrationTx) IncrementRegistrations(ctx context.Context, eventID string) (registrations.Counters, bool, error) {
	return t.adjust(ctx, `
UPDATE events SET registrations = registrations + 1
 WHERE id = $1 AND registrations < capacity
RETURNING capacity, registrations`, eventID)
}

func (t *registrationTx) DeleteRegistration(ctx context.Context, userID, eventID string) (bool, error) {
	tag, err := t.tx.Exec(ctx, `DELETE FROM event_registrations WHERE user_id = $1 AND event_id = $2`, userID, eventID)
	if err != nil {
		return false, classify(fmt.Errorf("delete registration: %w", err))
	}
	return tag.RowsAffected() == 1, nil
}

func (t *registrationTx) DecrementRegistrations(ctx context.Context, eventID string) (registrations.Counters, bool, error) {
	return t.adjust(ctx, `
UPDATE events SET registrations = registrations - 1
 WHERE id = $1 AND registrations > 0
RETURNING capacity, registrations`, eventID)
}

func (t *registrationTx) adjust(ctx context.Context, sql, eventID string) (registrations.Counters, bool, error) {
	var c registrations.Counters
	err := t.tx.QueryRow(ctx, sql, eventID).Scan(&c.Capacity, &c.Registrations)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return registrations.Counters{}, false, nil
		}
		return registrations.Counters{}, false, classify(err)
	}
	return c, true, nil
}

func isRegistered(ctx context.Context, q queryer, userID, eventID string) (bool, error) {
	var registered bool
	err := q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM event_registrations WHERE user_id = $1 AND event_id = $2)`,
		userID, eventID,
	).Scan(&registered)
	if err != nil {
		return false, fmt.Errorf("check registration: %w", err)
	}
	return registered, nil
}
