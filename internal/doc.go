// Package internal holds the eventhost server internals.
//
// The tree is organized by responsibility:
//   - api: HTTP routing, middleware, handlers and problem responses
//   - domain: users, events and registration accounting
//   - storage: PostgreSQL and SQLite repositories plus embedded migrations
//   - auth, audit, config, email, metrics, sanitize, telemetry, validation:
//     shared infrastructure
//
// Code in internal/ is not meant for external import.
package internal
