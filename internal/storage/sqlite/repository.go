package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Togather-Foundation/eventhost/internal/domain/events"
	"github.com/Togather-Foundation/eventhost/internal/domain/registrations"
	"github.com/Togather-Foundation/eventhost/internal/domain/users"
	"github.com/Togather-Foundation/eventhost/internal/storage"
)

var _ storage.Repository = (*Repository)(nil)

// Repository implements storage.Repository on SQLite.
type Repository struct {
	db *sql.DB

	users         *UserRepository
	events        *EventRepository
	registrations *RegistrationStore
}

func NewRepository(db *sql.DB) (*Repository, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	return &Repository{
		db:            db,
		users:         &UserRepository{db: db},
		events:        &EventRepository{db: db},
		registrations: &RegistrationStore{db: db},
	}, nil
}

// OpenRepository opens path, applies migrations and wraps the handle.
func OpenRepository(ctx context.Context, path string) (*Repository, error) {
	db, err := Open(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := MigrateUp(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return NewRepository(db)
}

func (r *Repository) Users() users.Repository {
	return r.users
}

func (r *Repository) Events() events.Repository {
	return r.events
}

func (r *Repository) Registrations() registrations.Store {
	return r.registrations
}

// DB exposes the handle for pool metrics.
func (r *Repository) DB() *sql.DB {
	return r.db
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) Close() error {
	return r.db.Close()
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type scanner interface {
	Scan(dest ...any) error
}
