package storage

import (
	"context"

	"github.com/Togather-Foundation/eventhost/internal/domain/events"
	"github.com/Togather-Foundation/eventhost/internal/domain/registrations"
	"github.com/Togather-Foundation/eventhost/internal/domain/users"
)

// Repository groups data access by domain. PostgreSQL and SQLite both
// implement it.
type Repository interface {
	Users() users.Repository
	Events() events.Repository
	Registrations() registrations.Store

	Ping(ctx context.Context) error
	Close() error
}
