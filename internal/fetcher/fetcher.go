// Package fetcher decides whether the active identity's job collection is served from the
// session cache or fetched again from the jobs backend.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kiranshivaraju/jobsync/internal/backend"
	"github.com/kiranshivaraju/jobsync/internal/session"
	"github.com/kiranshivaraju/jobsync/pkg/models"
	"golang.org/x/sync/singleflight"
)

// ErrOwnerInactive is returned when the identity changed while a fetch was in flight.
var ErrOwnerInactive = errors.New("owner is no longer the active identity")

// Orchestrator loads one owner's collection. It is built per identity with the backend
// strategy matching the identity's role.
type Orchestrator struct {
	id      models.Identity
	key     string
	backend backend.JobsBackend
	store   *session.Store
	maxAge  time.Duration
	logger  *slog.Logger

	group singleflight.Group
}

// New creates an Orchestrator.
func New(id models.Identity, b backend.JobsBackend, store *session.Store, maxAge time.Duration, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		id:      id,
		key:     id.Key(),
		backend: b,
		store:   store,
		maxAge:  maxAge,
		logger:  logger,
	}
}

// Owner returns the email whose collection this orchestrator loads.
func (o *Orchestrator) Owner() string {
	return o.id.Email
}

// Load serves the cached entry when it is fresh and fetches otherwise.
func (o *Orchestrator) Load(ctx context.Context) (models.SessionEntry, error) {
	if !o.store.IsStale(o.key, o.maxAge) {
		if entry, ok := o.store.Get(o.key); ok {
			o.logger.Debug("serving jobs from session cache", "owner", o.id.Email, "records", len(entry.Records))
			return entry, nil
		}
	}
	return o.Refresh(ctx)
}

// Refresh always fetches. Concurrent callers share one request. On failure the previous
// entry, if any, is left in place.
func (o *Orchestrator) Refresh(ctx context.Context) (models.SessionEntry, error) {
	ch := o.group.DoChan(o.key, func() (any, error) {
		return nil, o.fetch(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return models.SessionEntry{}, res.Err
		}
	case <-ctx.Done():
		return models.SessionEntry{}, ctx.Err()
	}

	entry, ok := o.store.Get(o.key)
	if !ok {
		return models.SessionEntry{}, ErrOwnerInactive
	}
	return entry, nil
}

func (o *Orchestrator) fetch(ctx context.Context) error {
	o.store.SetLoading(o.key, true)
	defer o.store.SetLoading(o.key, false)

	gen := o.store.Generation(o.key)
	start := time.Now()

	records, err := o.backend.FetchAll(ctx, o.id.Email)
	if err != nil {
		o.logger.Warn("fetching jobs failed",
			"owner", o.id.Email,
			"backend", o.backend.Name(),
			"error", err,
		)
		return fmt.Errorf("fetch jobs: %w", err)
	}

	if !o.store.SetIfCurrent(o.key, records, gen) {
		o.logger.Info("discarding fetch overtaken by a newer update or identity change", "owner", o.id.Email)
	}

	o.logger.Info("jobs fetched",
		"owner", o.id.Email,
		"backend", o.backend.Name(),
		"records", len(records),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}
