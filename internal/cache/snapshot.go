package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kiranshivaraju/jobsync/pkg/models"
)

// SnapshotStore keeps session snapshots as JSON documents in a Cache.
type SnapshotStore struct {
	cache Cache
	ttl   time.Duration
}

// NewSnapshotStore creates a SnapshotStore. A zero ttl keeps snapshots until they are deleted.
func NewSnapshotStore(c Cache, ttl time.Duration) *SnapshotStore {
	return &SnapshotStore{cache: c, ttl: ttl}
}

func (s *SnapshotStore) SaveSnapshot(ctx context.Context, snap models.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := s.cache.Set(ctx, SnapshotKey(snap.OwnerEmail), data, s.ttl); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (s *SnapshotStore) LoadSnapshot(ctx context.Context, ownerEmail string) (*models.Snapshot, bool, error) {
	data, found, err := s.cache.Get(ctx, SnapshotKey(ownerEmail))
	if err != nil {
		return nil, false, fmt.Errorf("load snapshot: %w", err)
	}
	if !found {
		return nil, false, nil
	}

	var snap models.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, false, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, true, nil
}

func (s *SnapshotStore) DeleteSnapshot(ctx context.Context, ownerEmail string) error {
	if err := s.cache.Delete(ctx, SnapshotKey(ownerEmail)); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}
