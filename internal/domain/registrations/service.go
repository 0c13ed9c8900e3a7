package registrations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Togather-Foundation/eventhost/internal/audit"
	"github.com/Togather-Foundation/eventhost/internal/domain/events"
	"github.com/Togather-Foundation/eventhost/internal/domain/ids"
	"github.com/Togather-Foundation/eventhost/internal/metrics"
	"github.com/Togather-Foundation/eventhost/internal/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	opRegister   = "register"
	opUnregister = "unregister"
)

// Result describes the committed counter after a register or unregister.
type Result struct {
	EventID       string
	UserID        string
	Registrations int
	Capacity      int
}

// SeatsLeft is the remaining capacity after the operation.
func (r Result) SeatsLeft() int {
	return r.Capacity - r.Registrations
}

// Service owns every mutation of event registrations and their seat counter.
type Service struct {
	store       Store
	logger      zerolog.Logger
	auditLogger *audit.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

type Option func(*Service)

func WithAuditLogger(l *audit.Logger) Option {
	return func(s *Service) {
		s.auditLogger = l
	}
}

// WithClock sets the source of registered_at timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(store Store, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: logger.With().Str("component", "registrations").Logger(),
		tracer: telemetry.GetTracer("eventhost/registrations"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register claims one seat of eventID for userID.
func (s *Service) Register(ctx context.Context, userID, eventID string) (Result, error) {
	eventID = ids.Normalize(eventID)
	ctx, span := s.startSpan(ctx, "registrations.Register", userID, eventID)
	defer span.End()

	start := time.Now()
	var result Result
	err := s.inTx(ctx, opRegister, func(tx Tx) error {
		counters, err := tx.EventCounters(ctx, eventID)
		if err != nil {
			return err
		}
		registered, err := tx.IsRegistered(ctx, userID, eventID)
		if err != nil {
			return fmt.Errorf("check registration: %w", err)
		}
		if registered {
			return ErrAlreadyRegistered
		}
		if counters.Registrations >= counters.Capacity {
			return ErrEventFull
		}
		if err := tx.InsertRegistration(ctx, userID, eventID, s.now().UTC()); err != nil {
			return err
		}
		after, ok, err := tx.IncrementRegistrations(ctx, eventID)
		if err != nil {
			return fmt.Errorf("increment registrations: %w", err)
		}
		if !ok {
			// Another transaction took the last seat after our read.
			return ErrEventFull
		}
		result = Result{EventID: eventID, UserID: userID, Registrations: after.Registrations, Capacity: after.Capacity}
		return nil
	})
	s.finish(span, opRegister, start, err)
	if err != nil {
		return Result{}, err
	}

	s.logger.Info().
		Str("event_id", eventID).
		Str("user_id", userID).
		Int("registrations", result.Registrations).
		Int("capacity", result.Capacity).
		Msg("registered")
	return result, nil
}

// Unregister releases the seat userID holds on eventID.
func (s *Service) Unregister(ctx context.Context, userID, eventID string) (Result, error) {
	eventID = ids.Normalize(eventID)
	ctx, span := s.startSpan(ctx, "registrations.Unregister", userID, eventID)
	defer span.End()

	start := time.Now()
	var result Result
	err := s.inTx(ctx, opUnregister, func(tx Tx) error {
		if _, err := tx.EventCounters(ctx, eventID); err != nil {
			return err
		}
		deleted, err := tx.DeleteRegistration(ctx, userID, eventID)
		if err != nil {
			return fmt.Errorf("delete registration: %w", err)
		}
		if !deleted {
			return ErrNotRegistered
		}
		after, ok, err := tx.DecrementRegistrations(ctx, eventID)
		if err != nil {
			return fmt.Errorf("decrement registrations: %w", err)
		}
		if !ok {
			return ErrInternalConsistency
		}
		result = Result{EventID: eventID, UserID: userID, Registrations: after.Registrations, Capacity: after.Capacity}
		return nil
	})
	s.finish(span, opUnregister, start, err)
	if err != nil {
		if errors.Is(err, ErrInternalConsistency) {
			s.reportViolation(userID, eventID)
		}
		return Result{}, err
	}

	s.logger.Info().
		Str("event_id", eventID).
		Str("user_id", userID).
		Int("registrations", result.Registrations).
		Msg("unregistered")
	return result, nil
}

func (s *Service) IsRegistered(ctx context.Context, userID, eventID string) (bool, error) {
	return s.store.IsRegistered(ctx, userID, ids.Normalize(eventID))
}

// Attendees lists the users registered for eventID, most recent first.
func (s *Service) Attendees(ctx context.Context, eventID string) ([]Attendee, error) {
	return s.store.Attendees(ctx, ids.Normalize(eventID))
}

// EventsFor lists the events userID is registered for, soonest first.
func (s *Service) EventsFor(ctx context.Context, userID string) ([]events.Event, error) {
	return s.store.EventsFor(ctx, userID)
}

func (s *Service) CountFor(ctx context.Context, userID string) (int, error) {
	return s.store.CountFor(ctx, userID)
}

// inTx runs fn in a transaction and retries exactly once when the store
// reports a transient conflict.
func (s *Service) inTx(ctx context.Context, op string, fn func(Tx) error) error {
	err := s.store.WithTx(ctx, fn)
	if err == nil || !errors.Is(err, ErrTransient) {
		return err
	}

	metrics.RegistrationRetries.WithLabelValues(op).Inc()
	s.logger.Warn().Err(err).Str("operation", op).Msg("transient conflict, retrying")
	return s.store.WithTx(ctx, fn)
}

func (s *Service) startSpan(ctx context.Context, name, userID, eventID string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("event.id", eventID),
		attribute.String("user.id", userID),
	))
}

func (s *Service) finish(span trace.Span, op string, start time.Time, err error) {
	outcome := outcomeOf(err)
	metrics.RegistrationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	metrics.RegistrationOperations.WithLabelValues(op, outcome).Inc()

	span.SetAttributes(attribute.String("registration.outcome", outcome))
	if err == nil {
		return
	}
	span.RecordError(err)
	if outcome == "error" || outcome == "inconsistent" {
		span.SetStatus(codes.Error, err.Error())
	}
}

func (s *Service) reportViolation(userID, eventID string) {
	metrics.AccountingInvariantViolations.Inc()
	s.logger.Error().
		Str("event_id", eventID).
		Str("user_id", userID).
		Msg("registration counter already zero while a registration row existed")
	s.auditLogger.LogViolation("registration.unregister", "event", eventID, map[string]string{
		"user_id": userID,
		"reason":  "counter_underflow",
	})
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrEventNotFound):
		return "event_not_found"
	case errors.Is(err, ErrAlreadyRegistered):
		return "already_registered"
	case errors.Is(err, ErrNotRegistered):
		return "not_registered"
	case errors.Is(err, ErrEventFull):
		return "full"
	case errors.Is(err, ErrInternalConsistency):
		return "inconsistent"
	default:
		return "error"
	}
}
