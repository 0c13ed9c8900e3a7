package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/Togather-Foundation/eventhost/internal/domain/registrations"
	"github.com/Togather-Foundation/eventhost/internal/storage"
	"github.com/Togather-Foundation/eventhost/internal/storage/storagetest"
	"github.com/stretchr/testify/require"
	msqlite "modernc.org/sqlite"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	repo, err := OpenRepository(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestRepositorySuite(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Repository {
		return newTestRepository(t)
	})
}

func TestRepositorySuite_File(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Repository {
		repo, err := OpenRepository(context.Background(), filepath.Join(t.TempDir(), "eventhost.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = repo.Close() })
		return repo
	})
}

func TestCheckConstraintBacksCounter(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	_, err := repo.DB().ExecContext(ctx, `INSERT INTO users (id, name, email, password_hash, created_at, updated_at)
VALUES ('U1', 'A', 'a@example.com', 'x', '2026-01-01T00:00:00.000000000Z', '2026-01-01T00:00:00.000000000Z')`)
	require.NoError(t, err)
	_, err = repo.DB().ExecContext(ctx, `INSERT INTO events (id, title, description, date, location, organizer, category, capacity, creator_id, created_at, updated_at)
VALUES ('E1', 't', 'd', '2026-11-20', 'l', 'o', 'Other', 1, 'U1', '2026-01-01T00:00:00.000000000Z', '2026-01-01T00:00:00.000000000Z')`)
	require.NoError(t, err)

	_, err = repo.DB().ExecContext(ctx, `UPDATE events SET registrations = 2 WHERE id = 'E1'`)
	require.Error(t, err)
	_, err = repo.DB().ExecContext(ctx, `UPDATE events SET registrations = -1 WHERE id = 'E1'`)
	require.Error(t, err)
}

func TestMigrateDownAndUp(t *testing.T) {
	repo := newTestRepository(t)

	version, dirty, err := MigrationVersion(repo.DB())
	require.NoError(t, err)
	require.False(t, dirty)
	require.Equal(t, uint(1), version)

	require.NoError(t, MigrateDown(repo.DB(), 1))
	_, err = repo.Users().GetByEmail(context.Background(), "a@example.com")
	require.Error(t, err)

	require.NoError(t, MigrateUp(repo.DB()))
	require.NoError(t, MigrateUp(repo.DB()))
	require.Error(t, MigrateDown(repo.DB(), 0))
}

func TestMigrateForce(t *testing.T) {
	repo := newTestRepository(t)

	_, err := repo.DB().Exec(`UPDATE schema_migrations SET dirty = 1`)
	require.NoError(t, err)
	_, dirty, err := MigrationVersion(repo.DB())
	require.NoError(t, err)
	require.True(t, dirty)

	require.NoError(t, MigrateForce(repo.DB(), 1))
	version, dirty, err := MigrationVersion(repo.DB())
	require.NoError(t, err)
	require.False(t, dirty)
	require.Equal(t, uint(1), version)
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(context.Background(), "  ")
	require.Error(t, err)
}

func TestClassify(t *testing.T) {
	require.NoError(t, classify(nil))

	plain := fmt.Errorf("boom")
	require.Same(t, plain, classify(plain))
	require.NotErrorIs(t, classify(&msqlite.Error{}), registrations.ErrTransient)
}
