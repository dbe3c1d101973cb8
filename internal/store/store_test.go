package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/jobsync/internal/store"
	"github.com/kiranshivaraju/jobsync/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestDB spins up a Postgres container, runs migrations, and returns a pool.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("jobsync_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	require.NoError(t, store.RunMigrations(pool))

	return pool
}

func sampleSnapshot(owner string, fetched time.Time) models.Snapshot {
	return models.Snapshot{
		IdentityKey: "standard:" + owner,
		OwnerEmail:  owner,
		Records: []models.JobRecord{
			{
				JobID:         "j1",
				JobTitle:      "Backend Engineer",
				CompanyName:   "Acme",
				CurrentStatus: models.StatusApplied,
				DateAdded:     "3/1/2024, 12:00:00 PM",
				CreatedAt:     models.NewTimestamp(fetched),
				Attachments:   []string{"https://cdn.example.com/a.png"},
			},
			{
				JobID:         "j2",
				JobTitle:      "SRE",
				CompanyName:   "Globex",
				CurrentStatus: models.StatusSaved,
			},
		},
		FetchedAt: fetched,
	}
}

// --- Snapshot Tests ---

func TestSnapshot_SaveAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	fetched := time.Now().UTC().Truncate(time.Microsecond)

	require.NoError(t, s.SaveSnapshot(ctx, sampleSnapshot("ann@example.com", fetched)))

	got, err := s.GetSnapshot(ctx, "ann@example.com")
	require.NoError(t, err)
	assert.Equal(t, "standard:ann@example.com", got.IdentityKey)
	assert.True(t, fetched.Equal(got.FetchedAt))
	require.Len(t, got.Records, 2)
	assert.Equal(t, models.StatusApplied, got.Records[0].CurrentStatus)
	assert.Equal(t, []string{"https://cdn.example.com/a.png"}, got.Records[0].Attachments)
}

func TestSnapshot_OwnerIsCaseInsensitive(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	require.NoError(t, s.SaveSnapshot(ctx, sampleSnapshot("Ann@Example.com", time.Now().UTC())))

	_, found, err := s.LoadSnapshot(ctx, "ann@example.COM")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestSnapshot_UpsertReplaces(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	require.NoError(t, s.SaveSnapshot(ctx, sampleSnapshot("ann@example.com", now)))

	next := sampleSnapshot("ann@example.com", now.Add(time.Minute))
	next.IdentityKey = "operations:ann@example.com"
	next.Records = nil
	require.NoError(t, s.SaveSnapshot(ctx, next))

	got, err := s.GetSnapshot(ctx, "ann@example.com")
	require.NoError(t, err)
	assert.Equal(t, "operations:ann@example.com", got.IdentityKey)
	assert.Empty(t, got.Records)
	assert.True(t, now.Add(time.Minute).Equal(got.FetchedAt))
}

func TestSnapshot_GetNotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	_, err := s.GetSnapshot(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, store.ErrNotFound)

	snap, found, err := s.LoadSnapshot(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, snap)
}

func TestSnapshot_Delete(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	require.NoError(t, s.SaveSnapshot(ctx, sampleSnapshot("ann@example.com", time.Now().UTC())))
	require.NoError(t, s.DeleteSnapshot(ctx, "ann@example.com"))

	_, err := s.GetSnapshot(ctx, "ann@example.com")
	assert.ErrorIs(t, err, store.ErrNotFound)

	assert.NoError(t, s.DeleteSnapshot(ctx, "ann@example.com"), "deleting twice is fine")
}

func TestSnapshot_Purge(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	require.NoError(t, s.SaveSnapshot(ctx, sampleSnapshot("old@example.com", time.Now().UTC())))
	_, err := pool.Exec(ctx,
		`UPDATE session_snapshots SET updated_at = NOW() - INTERVAL '2 days' WHERE owner_email = 'old@example.com'`)
	require.NoError(t, err)
	require.NoError(t, s.SaveSnapshot(ctx, sampleSnapshot("new@example.com", time.Now().UTC())))

	n, err := s.PurgeSnapshots(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, found, err := s.LoadSnapshot(ctx, "new@example.com")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestRunMigrations_Idempotent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	assert.NoError(t, store.RunMigrations(pool))
}

// --- Ping Test ---

func TestPing(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	err := s.Ping(context.Background())
	assert.NoError(t, err)
}
