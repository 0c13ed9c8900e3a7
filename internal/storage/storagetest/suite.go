// Package storagetest holds behaviour tests shared by every storage backend.
package storagetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Togather-Foundation/eventhost/internal/domain/events"
	"github.com/Togather-Foundation/eventhost/internal/domain/ids"
	"github.com/Togather-Foundation/eventhost/internal/domain/registrations"
	"github.com/Togather-Foundation/eventhost/internal/domain/users"
	"github.com/Togather-Foundation/eventhost/internal/storage"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty, migrated repository.
type Factory func(t *testing.T) storage.Repository

// Run exercises repo against the users, events and accounting contracts.
func Run(t *testing.T, newRepo Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, repo storage.Repository)
	}{
		{"UsersCreateAndLookup", testUsersCreateAndLookup},
		{"UsersDuplicateEmail", testUsersDuplicateEmail},
		{"EventsCRUD", testEventsCRUD},
		{"EventsOrderingAndCounts", testEventsOrderingAndCounts},
		{"EventsUpdateCapacityGuard", testEventsUpdateCapacityGuard},
		{"EventDeleteCascadesRegistrations", testEventDeleteCascades},
		{"DoubleRegister", testDoubleRegister},
		{"UnregisterWithoutRegister", testUnregisterWithoutRegister},
		{"RoundTrip", testRoundTrip},
		{"EndToEndScenario", testEndToEnd},
		{"UnknownEvent", testUnknownEvent},
		{"ConcurrentLastSeat", testConcurrentLastSeat},
		{"ConcurrentManyUsers", testConcurrentManyUsers},
		{"ConcurrentSameUser", testConcurrentSameUser},
		{"ReadHelpers", testReadHelpers},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newRepo(t))
		})
	}
}

func newUser(t *testing.T, repo storage.Repository, name string) *users.User {
	t.Helper()
	id, err := ids.NewULID()
	require.NoError(t, err)
	user, err := repo.Users().Create(context.Background(), users.NewUser{
		ID:           id,
		Name:         name,
		Email:        fmt.Sprintf("%s-%s@example.com", name, id),
		PasswordHash: "not-a-real-hash",
	})
	require.NoError(t, err)
	return user
}

func newEvent(t *testing.T, repo storage.Repository, creator *users.User, date string, capacity int) *events.Event {
	t.Helper()
	id, err := ids.NewULID()
	require.NoError(t, err)
	day, err := events.ParseDate(date)
	require.NoError(t, err)
	event, err := repo.Events().Create(context.Background(), events.Record{
		ID:          id,
		Title:       "Event " + date,
		Description: "Details",
		Date:        day,
		Location:    "Hall A",
		Organizer:   "Org",
		Category:    events.CategoryConference,
		Capacity:    capacity,
		CreatorID:   creator.ID,
	})
	require.NoError(t, err)
	return event
}

func accounting(repo storage.Repository) *registrations.Service {
	return registrations.NewService(repo.Registrations(), zerolog.Nop())
}

// requireConsistent checks the counter against the registration rows.
func requireConsistent(t *testing.T, repo storage.Repository, eventID string, want int) {
	t.Helper()
	ctx := context.Background()
	event, err := repo.Events().GetByID(ctx, eventID)
	require.NoError(t, err)
	attendees, err := repo.Registrations().Attendees(ctx, eventID)
	require.NoError(t, err)

	require.Equal(t, want, event.Registrations, "counter")
	require.Len(t, attendees, want, "registration rows")
	require.GreaterOrEqual(t, event.Registrations, 0)
	require.LessOrEqual(t, event.Registrations, event.Capacity)
}

func testUsersCreateAndLookup(t *testing.T, repo storage.Repository) {
	ctx := context.Background()
	user := newUser(t, repo, "ada")
	require.False(t, user.CreatedAt.IsZero())

	byID, err := repo.Users().GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, user.Email, byID.Email)
	require.Equal(t, "not-a-real-hash", byID.PasswordHash)

	byEmail, err := repo.Users().GetByEmail(ctx, user.Email)
	require.NoError(t, err)
	require.Equal(t, user.ID, byEmail.ID)

	_, err = repo.Users().GetByID(ctx, "01HQZX3Y4K6F7G8H9J0K1M2N3P")
	require.ErrorIs(t, err, users.ErrUserNotFound)
	_, err = repo.Users().GetByEmail(ctx, "nobody@example.com")
	require.ErrorIs(t, err, users.ErrUserNotFound)
}

func testUsersDuplicateEmail(t *testing.T, repo storage.Repository) {
	ctx := context.Background()
	_, err := repo.Users().Create(ctx, users.NewUser{ID: "01HQZX3Y4K6F7G8H9J0K1M2AAA", Name: "A", Email: "dup@example.com", PasswordHash: "x"})
	require.NoError(t, err)

	_, err = repo.Users().Create(ctx, users.NewUser{ID: "01HQZX3Y4K6F7G8H9J0K1M2BBB", Name: "B", Email: "DUP@example.com", PasswordHash: "x"})
	require.ErrorIs(t, err, users.ErrEmailTaken)
}

func testEventsCRUD(t *testing.T, repo storage.Repository) {
	ctx := context.Background()
	creator := newUser(t, repo, "creator")
	event := newEvent(t, repo, creator, "2026-11-20", 5)

	require.Equal(t, 0, event.Registrations)
	require.Equal(t, creator.Name, event.CreatorName)
	require.Equal(t, creator.Email, event.CreatorEmail)
	require.Equal(t, "2026-11-20", event.Date.Format(events.DateLayout))
	require.Equal(t, events.CategoryConference, event.Category)

	day, err := events.ParseDate("2026-12-01")
	require.NoError(t, err)
	updated, err := repo.Events().Update(ctx, event.ID, events.Record{
		Title:       "Renamed",
		Description: "New details",
		Date:        day,
		Location:    "Hall B",
		Organizer:   "Org 2",
		Category:    events.CategorySports,
		Capacity:    8,
	})
	require.NoError(t, err)
	require.Equal(t, "Renamed", updated.Title)
	require.Equal(t, 8, updated.Capacity)
	require.Equal(t, events.CategorySports, updated.Category)
	require.Equal(t, "2026-12-01", updated.Date.Format(events.DateLayout))
	require.Equal(t, creator.ID, updated.CreatorID)

	_, err = repo.Events().Update(ctx, "01HQZX3Y4K6F7G8H9J0K1M2N3P", events.Record{Capacity: 1, Date: day, Category: events.CategoryOther})
	require.ErrorIs(t, err, events.ErrNotFound)

	require.NoError(t, repo.Events().Delete(ctx, event.ID))
	_, err = repo.Events().GetByID(ctx, event.ID)
	require.ErrorIs(t, err, events.ErrNotFound)
	require.ErrorIs(t, repo.Events().Delete(ctx, event.ID), events.ErrNotFound)
}

func testEventsOrderingAndCounts(t *testing.T, repo storage.Repository) {
	ctx := context.Background()
	creator := newUser(t, repo, "creator")
	other := newUser(t, repo, "other")

	newEvent(t, repo, creator, "2026-12-24", 5)
	newEvent(t, repo, creator, "2026-01-10", 5)
	newEvent(t, repo, creator, "2026-10-19", 5)
	newEvent(t, repo, other, "2026-06-01", 5)

	mine, err := repo.Events().ListByCreator(ctx, creator.ID)
	require.NoError(t, err)
	require.Len(t, mine, 3)
	require.Equal(t, "2026-01-10", mine[0].Date.Format(events.DateLayout))
	require.Equal(t, "2026-10-19", mine[1].Date.Format(events.DateLayout))
	require.Equal(t, "2026-12-24", mine[2].Date.Format(events.DateLayout))

	all, err := repo.Events().List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 4)
	require.Equal(t, "2026-06-01", all[1].Date.Format(events.DateLayout))
	require.Equal(t, other.Name, all[1].CreatorName)

	total, err := repo.Events().CountByCreator(ctx, creator.ID)
	require.NoError(t, err)
	require.Equal(t, 3, total)

	today := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	upcoming, err := repo.Events().CountUpcomingByCreator(ctx, creator.ID, today)
	require.NoError(t, err)
	require.Equal(t, 2, upcoming)

	none, err := repo.Events().ListByCreator(ctx, "01HQZX3Y4K6F7G8H9J0K1M2N3P")
	require.NoError(t, err)
	require.Empty(t, none)
}

func testEventsUpdateCapacityGuard(t *testing.T, repo storage.Repository) {
	ctx := context.Background()
	creator := newUser(t, repo, "creator")
	event := newEvent(t, repo, creator, "2026-11-20", 5)
	svc := accounting(repo)

	for i := range 3 {
		_, err := svc.Register(ctx, newUser(t, repo, fmt.Sprintf("u%d", i)).ID, event.ID)
		require.NoError(t, err)
	}

	record := events.Record{
		Title:       event.Title,
		Description: event.Description,
		Date:        event.Date,
		Location:    event.Location,
		Organizer:   event.Organizer,
		Category:    event.Category,
		Capacity:    2,
	}
	_, err := repo.Events().Update(ctx, event.ID, record)
	require.ErrorIs(t, err, events.ErrCapacityBelowRegistrations)

	unchanged, err := repo.Events().GetByID(ctx, event.ID)
	require.NoError(t, err)
	require.Equal(t, 5, unchanged.Capacity)

	record.Capacity = 3
	updated, err := repo.Events().Update(ctx, event.ID, record)
	require.NoError(t, err)
	require.Equal(t, 3, updated.Capacity)

	_, err = svc.Register(ctx, newUser(t, repo, "late").ID, event.ID)
	require.ErrorIs(t, err, registrations.ErrEventFull)
	requireConsistent(t, repo, event.ID, 3)
}

func testEventDeleteCascades(t *testing.T, repo storage.Repository) {
	ctx := context.Background()
	creator := newUser(t, repo, "creator")
	attendee := newUser(t, repo, "attendee")
	event := newEvent(t, repo, creator, "2026-11-20", 5)
	svc := accounting(repo)

	_, err := svc.Register(ctx, attendee.ID, event.ID)
	require.NoError(t, err)
	require.NoError(t, repo.Events().Delete(ctx, event.ID))

	registered, err := svc.IsRegistered(ctx, attendee.ID, event.ID)
	require.NoError(t, err)
	require.False(t, registered)

	count, err := svc.CountFor(ctx, attendee.ID)
	require.NoError(t, err)
	require.Zero(t, count)
}

func testDoubleRegister(t *testing.T, repo storage.Repository) {
	ctx := context.Background()
	creator := newUser(t, repo, "creator")
	u := newUser(t, repo, "u")
	event := newEvent(t, repo, creator, "2026-11-20", 5)
	svc := accounting(repo)

	first, err := svc.Register(ctx, u.ID, event.ID)
	require.NoError(t, err)
	require.Equal(t, 1, first.Registrations)

	_, err = svc.Register(ctx, u.ID, event.ID)
	require.ErrorIs(t, err, registrations.ErrAlreadyRegistered)
	requireConsistent(t, repo, event.ID, 1)
}

func testUnregisterWithoutRegister(t *testing.T, repo storage.Repository) {
	ctx := context.Background()
	creator := newUser(t, repo, "creator")
	u := newUser(t, repo, "u")
	other := newUser(t, repo, "other")
	event := newEvent(t, repo, creator, "2026-11-20", 5)
	svc := accounting(repo)

	_, err := svc.Register(ctx, other.ID, event.ID)
	require.NoError(t, err)

	_, err = svc.Unregister(ctx, u.ID, event.ID)
	require.ErrorIs(t, err, registrations.ErrNotRegistered)
	requireConsistent(t, repo, event.ID, 1)
}

func testRoundTrip(t *testing.T, repo storage.Repository) {
	ctx := context.Background()
	creator := newUser(t, repo, "creator")
	u := newUser(t, repo, "u")
	event := newEvent(t, repo, creator, "2026-11-20", 3)
	svc := accounting(repo)

	first, err := svc.Register(ctx, u.ID, event.ID)
	require.NoError(t, err)
	afterFirst, err := svc.Attendees(ctx, event.ID)
	require.NoError(t, err)

	_, err = svc.Unregister(ctx, u.ID, event.ID)
	require.NoError(t, err)
	requireConsistent(t, repo, event.ID, 0)

	again, err := svc.Register(ctx, u.ID, event.ID)
	require.NoError(t, err)
	require.Equal(t, first, again)

	afterAgain, err := svc.Attendees(ctx, event.ID)
	require.NoError(t, err)
	require.Len(t, afterAgain, len(afterFirst))
	require.Equal(t, afterFirst[0].UserID, afterAgain[0].UserID)
	requireConsistent(t, repo, event.ID, 1)
}

func testEndToEnd(t *testing.T, repo storage.Repository) {
	ctx := context.Background()
	creator := newUser(t, repo, "creator")
	u1 := newUser(t, repo, "u1")
	u2 := newUser(t, repo, "u2")
	u3 := newUser(t, repo, "u3")
	event := newEvent(t, repo, creator, "2026-11-20", 2)
	svc := accounting(repo)

	r, err := svc.Register(ctx, u1.ID, event.ID)
	require.NoError(t, err)
	require.Equal(t, 1, r.Registrations)

	r, err = svc.Register(ctx, u2.ID, event.ID)
	require.NoError(t, err)
	require.Equal(t, 2, r.Registrations)

	_, err = svc.Register(ctx, u3.ID, event.ID)
	require.ErrorIs(t, err, registrations.ErrEventFull)
	requireConsistent(t, repo, event.ID, 2)

	r, err = svc.Unregister(ctx, u1.ID, event.ID)
	require.NoError(t, err)
	require.Equal(t, 1, r.Registrations)

	r, err = svc.Register(ctx, u3.ID, event.ID)
	require.NoError(t, err)
	require.Equal(t, 2, r.Registrations)
	require.Equal(t, 2, r.Capacity)
	requireConsistent(t, repo, event.ID, 2)
}

func testUnknownEvent(t *testing.T, repo storage.Repository) {
	ctx := context.Background()
	u := newUser(t, repo, "u")
	svc := accounting(repo)

	_, err := svc.Register(ctx, u.ID, "01HQZX3Y4K6F7G8H9J0K1M2N3P")
	require.ErrorIs(t, err, registrations.ErrEventNotFound)
	_, err = svc.Unregister(ctx, u.ID, "01HQZX3Y4K6F7G8H9J0K1M2N3P")
	require.ErrorIs(t, err, registrations.ErrEventNotFound)
}

func testConcurrentLastSeat(t *testing.T, repo storage.Repository) {
	ctx := context.Background()
	creator := newUser(t, repo, "creator")
	u1 := newUser(t, repo, "u1")
	u2 := newUser(t, repo, "u2")
	event := newEvent(t, repo, creator, "2026-11-20", 1)
	svc := accounting(repo)

	errs := raceRegister(ctx, svc, event.ID, u1.ID, u2.ID)

	var ok, full int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, registrations.ErrEventFull):
			full++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, ok)
	require.Equal(t, 1, full)
	requireConsistent(t, repo, event.ID, 1)
}

func testConcurrentManyUsers(t *testing.T, repo storage.Repository) {
	ctx := context.Background()
	creator := newUser(t, repo, "creator")
	event := newEvent(t, repo, creator, "2026-11-20", 3)
	svc := accounting(repo)

	userIDs := make([]string, 10)
	for i := range userIDs {
		userIDs[i] = newUser(t, repo, fmt.Sprintf("u%d", i)).ID
	}

	errs := raceRegister(ctx, svc, event.ID, userIDs...)
	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		require.ErrorIs(t, err, registrations.ErrEventFull)
	}
	require.Equal(t, 3, ok)
	requireConsistent(t, repo, event.ID, 3)
}

func testConcurrentSameUser(t *testing.T, repo storage.Repository) {
	ctx := context.Background()
	creator := newUser(t, repo, "creator")
	u := newUser(t, repo, "u")
	event := newEvent(t, repo, creator, "2026-11-20", 5)
	svc := accounting(repo)

	errs := raceRegister(ctx, svc, event.ID, u.ID, u.ID, u.ID)
	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		require.ErrorIs(t, err, registrations.ErrAlreadyRegistered)
	}
	require.Equal(t, 1, ok)
	requireConsistent(t, repo, event.ID, 1)
}

func raceRegister(ctx context.Context, svc *registrations.Service, eventID string, userIDs ...string) []error {
	errs := make([]error, len(userIDs))
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i, userID := range userIDs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, errs[i] = svc.Register(ctx, userID, eventID)
		}()
	}
	close(start)
	wg.Wait()
	return errs
}

func testReadHelpers(t *testing.T, repo storage.Repository) {
	ctx := context.Background()
	creator := newUser(t, repo, "creator")
	u1 := newUser(t, repo, "u1")
	u2 := newUser(t, repo, "u2")
	later := newEvent(t, repo, creator, "2026-12-01", 5)
	sooner := newEvent(t, repo, creator, "2026-11-01", 5)

	clock := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	svc := registrations.NewService(repo.Registrations(), zerolog.Nop(), registrations.WithClock(func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}))

	_, err := svc.Register(ctx, u1.ID, later.ID)
	require.NoError(t, err)
	_, err = svc.Register(ctx, u2.ID, later.ID)
	require.NoError(t, err)
	_, err = svc.Register(ctx, u1.ID, sooner.ID)
	require.NoError(t, err)

	attendees, err := svc.Attendees(ctx, later.ID)
	require.NoError(t, err)
	require.Len(t, attendees, 2)
	require.Equal(t, u2.ID, attendees[0].UserID)
	require.Equal(t, u2.Name, attendees[0].Name)
	require.Equal(t, u2.Email, attendees[0].Email)
	require.True(t, attendees[0].RegisteredAt.After(attendees[1].RegisteredAt))

	mine, err := svc.EventsFor(ctx, u1.ID)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	require.Equal(t, sooner.ID, mine[0].ID)
	require.Equal(t, later.ID, mine[1].ID)
	require.Equal(t, creator.Name, mine[0].CreatorName)
	require.Equal(t, 2, mine[1].Registrations)

	count, err := svc.CountFor(ctx, u1.ID)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	registered, err := svc.IsRegistered(ctx, u2.ID, sooner.ID)
	require.NoError(t, err)
	require.False(t, registered)
}
