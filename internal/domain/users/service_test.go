package users

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type memoryRepo struct {
	mu      sync.Mutex
	byID    map[string]*User
	failGet error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{byID: make(map[string]*User)}
}

func (m *memoryRepo) Create(_ context.Context, params NewUser) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == params.Email {
			return nil, ErrEmailTaken
		}
	}
	now := time.Now().UTC()
	user := &User{
		ID:           params.ID,
		Name:         params.Name,
		Email:        params.Email,
		PasswordHash: params.PasswordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.byID[user.ID] = user
	return user, nil
}

func (m *memoryRepo) GetByID(_ context.Context, id string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byID[id]; ok {
		return u, nil
	}
	return nil, ErrUserNotFound
}

func (m *memoryRepo) GetByEmail(_ context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet != nil {
		return nil, m.failGet
	}
	for _, u := range m.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, ErrUserNotFound
}

func newTestService(repo Repository) *Service {
	return NewService(repo, zerolog.Nop(), WithBcryptCost(bcrypt.MinCost))
}

func TestCreate_HashesPasswordAndNormalizesEmail(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newMemoryRepo())

	user, err := svc.Create(ctx, CreateParams{Name: " Ada <b>Lovelace</b> ", Email: "  Ada@Example.COM ", Password: "secret1"})
	require.NoError(t, err)
	require.NotEmpty(t, user.ID)
	require.Equal(t, "Ada Lovelace", user.Name)
	require.Equal(t, "ada@example.com", user.Email)
	require.NotEqual(t, "secret1", user.PasswordHash)
	require.True(t, svc.VerifyCredential("secret1", user.PasswordHash))
	require.False(t, svc.VerifyCredential("wrong", user.PasswordHash))
}

func TestCreate_RejectsDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newMemoryRepo())

	_, err := svc.Create(ctx, CreateParams{Name: "Ada", Email: "ada@example.com", Password: "secret1"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateParams{Name: "Imposter", Email: "ADA@example.com", Password: "secret2"})
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestCreate_Validation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newMemoryRepo())

	tests := []struct {
		name   string
		params CreateParams
		field  string
		target error
	}{
		{name: "missing name", params: CreateParams{Email: "a@example.com", Password: "secret1"}, field: "name"},
		{name: "bad email", params: CreateParams{Name: "A", Email: "not-an-email", Password: "secret1"}, field: "email"},
		{name: "missing password", params: CreateParams{Name: "A", Email: "a@example.com"}, field: "password"},
		{name: "short password", params: CreateParams{Name: "A", Email: "a@example.com", Password: "12345"}, target: ErrPasswordTooShort},
		{name: "long password", params: CreateParams{Name: "A", Email: "a@example.com", Password: strings.Repeat("x", 73)}, target: ErrPasswordTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.params)
			require.Error(t, err)
			if tt.target != nil {
				require.ErrorIs(t, err, tt.target)
				return
			}
			var verr ValidationError
			require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
			require.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestCreate_PropagatesLookupFailure(t *testing.T) {
	repo := newMemoryRepo()
	repo.failGet = errors.New("connection reset")
	svc := newTestService(repo)

	_, err := svc.Create(context.Background(), CreateParams{Name: "Ada", Email: "ada@example.com", Password: "secret1"})
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrEmailTaken)
	require.Contains(t, err.Error(), "connection reset")
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newMemoryRepo())

	created, err := svc.Create(ctx, CreateParams{Name: "Ada", Email: "ada@example.com", Password: "secret1"})
	require.NoError(t, err)

	user, err := svc.Authenticate(ctx, "ADA@example.com", "secret1")
	require.NoError(t, err)
	require.Equal(t, created.ID, user.ID)

	_, err = svc.Authenticate(ctx, "ada@example.com", "nope")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "ghost@example.com", "secret1")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestFindByID(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newMemoryRepo())

	created, err := svc.Create(ctx, CreateParams{Name: "Ada", Email: "ada@example.com", Password: "secret1"})
	require.NoError(t, err)

	found, err := svc.FindByID(ctx, strings.ToLower(created.ID))
	require.NoError(t, err)
	require.Equal(t, created.Email, found.Email)

	_, err = svc.FindByID(ctx, "01HQZX3Y4K6F7G8H9J0K1M2N3P")
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestVerifyCredential_EmptyHash(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	require.False(t, svc.VerifyCredential("anything", ""))
}
