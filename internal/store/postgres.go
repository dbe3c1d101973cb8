package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/jobsync/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func ownerKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// --- Session Snapshots ---

func (s *PostgresStore) SaveSnapshot(ctx context.Context, snap models.Snapshot) error {
	records := snap.Records
	if records == nil {
		records = []models.JobRecord{}
	}
	payload, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode snapshot records: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO session_snapshots (owner_email, identity_key, records, fetched_at, updated_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 ON CONFLICT (owner_email) DO UPDATE SET
		   identity_key = EXCLUDED.identity_key,
		   records = EXCLUDED.records,
		   fetched_at = EXCLUDED.fetched_at,
		   updated_at = NOW()`,
		ownerKey(snap.OwnerEmail), snap.IdentityKey, payload, snap.FetchedAt)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetSnapshot(ctx context.Context, ownerEmail string) (*models.Snapshot, error) {
	var (
		snap    models.Snapshot
		payload []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT owner_email, identity_key, records, fetched_at FROM session_snapshots WHERE owner_email = $1`,
		ownerKey(ownerEmail),
	).Scan(&snap.OwnerEmail, &snap.IdentityKey, &payload, &snap.FetchedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	if err := json.Unmarshal(payload, &snap.Records); err != nil {
		return nil, fmt.Errorf("decode snapshot records: %w", err)
	}
	return &snap, nil
}

// LoadSnapshot is GetSnapshot with a found flag instead of ErrNotFound.
func (s *PostgresStore) LoadSnapshot(ctx context.Context, ownerEmail string) (*models.Snapshot, bool, error) {
	snap, err := s.GetSnapshot(ctx, ownerEmail)
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return snap, true, nil
}

// DeleteSnapshot removes the owner's snapshot. Deleting a missing snapshot is not an error.
func (s *PostgresStore) DeleteSnapshot(ctx context.Context, ownerEmail string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM session_snapshots WHERE owner_email = $1`, ownerKey(ownerEmail))
	if err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

// PurgeSnapshots deletes snapshots not written since olderThan and returns how many went.
func (s *PostgresStore) PurgeSnapshots(ctx context.Context, olderThan time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM session_snapshots WHERE updated_at < $1`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("purge snapshots: %w", err)
	}
	return tag.RowsAffected(), nil
}

var _ Store = (*PostgresStore)(nil)
