package store

import (
	"context"
	"errors"
	"time"

	"github.com/kiranshivaraju/jobsync/pkg/models"
)

var ErrNotFound = errors.New("resource not found")

// Store is the data access interface for persisted session snapshots.
type Store interface {
	Ping(ctx context.Context) error

	SaveSnapshot(ctx context.Context, snap models.Snapshot) error
	GetSnapshot(ctx context.Context, ownerEmail string) (*models.Snapshot, error)
	LoadSnapshot(ctx context.Context, ownerEmail string) (*models.Snapshot, bool, error)
	DeleteSnapshot(ctx context.Context, ownerEmail string) error
	PurgeSnapshots(ctx context.Context, olderThan time.Time) (int64, error)
}
