// Package session holds the in-memory job collection of the active identity.
//
// The Store is the single source of truth the rest of the engine reads from. Other components
// only propose changes through Set and Mutate. It serves exactly one identity at a time and
// every call names that identity by its key (models.Identity.Key), so the same email under
// another role is another identity. Calls naming any other key are ignored, so a late response
// for a previous identity can never repopulate the cache.
package session

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/kiranshivaraju/jobsync/pkg/models"
)

const persistTimeout = 5 * time.Second

// SnapshotStore persists the cache so it survives an agent restart.
// Implementations must be safe for concurrent use.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap models.Snapshot) error
	LoadSnapshot(ctx context.Context, ownerEmail string) (*models.Snapshot, bool, error)
	DeleteSnapshot(ctx context.Context, ownerEmail string) error
}

type entry struct {
	records   []models.JobRecord
	fetchedAt time.Time
	setGen    uint64
}

// Store is the session cache.
type Store struct {
	mu       sync.RWMutex
	identity *models.Identity
	entry    *entry
	loading  bool
	setGen   uint64

	clock  clockwork.Clock
	snaps  SnapshotStore
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces the wall clock, used by tests to control staleness.
func WithClock(c clockwork.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// WithSnapshots enables persistence of the cache.
func WithSnapshots(ss SnapshotStore) Option {
	return func(s *Store) { s.snaps = ss }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// NewStore creates an empty Store with no active identity.
func NewStore(opts ...Option) *Store {
	s := &Store{
		clock:  clockwork.NewRealClock(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func sameKey(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// Init makes id the active identity. Switching to a different identity (another email, or the
// same email under another role) drops the previous view and its persisted snapshot. The new
// identity's snapshot, if one was taken under the same identity, primes the cache with its
// original fetch time so staleness still applies. Switching also advances the generation, so a
// fetch started under the previous identity fails SetIfCurrent.
func (s *Store) Init(ctx context.Context, id models.Identity) {
	s.mu.Lock()
	var previous string
	if s.identity != nil && s.identity.Key() == id.Key() {
		s.mu.Unlock()
		return
	}
	if s.identity != nil {
		previous = s.identity.Email
	}
	cp := id
	s.identity = &cp
	s.entry = nil
	s.loading = false
	s.setGen++
	s.mu.Unlock()

	if s.snaps == nil {
		return
	}

	if previous != "" {
		s.deleteSnapshot(ctx, previous)
	}

	lctx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()
	snap, found, err := s.snaps.LoadSnapshot(lctx, id.Email)
	if err != nil {
		s.logger.Warn("loading session snapshot failed", "owner", id.Email, "error", err)
		return
	}
	if !found {
		return
	}
	if snap.IdentityKey != id.Key() {
		s.logger.Info("discarding snapshot taken under another identity", "owner", id.Email)
		s.deleteSnapshot(ctx, id.Email)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil || s.identity.Key() != id.Key() || s.entry != nil {
		return
	}
	s.setGen++
	s.entry = &entry{
		records:   models.CloneRecords(snap.Records),
		fetchedAt: snap.FetchedAt,
		setGen:    s.setGen,
	}
	s.logger.Info("session primed from snapshot", "owner", id.Email, "records", len(snap.Records))
}

// Teardown forgets the identity and its cache, including the persisted snapshot.
func (s *Store) Teardown(ctx context.Context) {
	s.mu.Lock()
	var owner string
	if s.identity != nil {
		owner = s.identity.Email
	}
	s.identity = nil
	s.entry = nil
	s.loading = false
	s.setGen++
	s.mu.Unlock()

	if owner != "" && s.snaps != nil {
		s.deleteSnapshot(ctx, owner)
	}
}

// Identity returns the active identity.
func (s *Store) Identity() (models.Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return models.Identity{}, false
	}
	return *s.identity, true
}

// isActive must be called with mu held.
func (s *Store) isActive(key string) bool {
	return s.identity != nil && sameKey(s.identity.Key(), key)
}

// Get returns a copy of the entry of the identity named by key.
func (s *Store) Get(key string) (models.SessionEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.isActive(key) || s.entry == nil {
		return models.SessionEntry{}, false
	}
	return models.SessionEntry{
		OwnerEmail: s.identity.Email,
		Records:    models.CloneRecords(s.entry.records),
		FetchedAt:  s.entry.fetchedAt,
		IsLoading:  s.loading,
	}, true
}

// Find returns one record of the active collection.
func (s *Store) Find(key, jobID string) (models.JobRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.isActive(key) || s.entry == nil {
		return models.JobRecord{}, false
	}
	for _, r := range s.entry.records {
		if r.JobID == jobID {
			return models.CloneRecords([]models.JobRecord{r})[0], true
		}
	}
	return models.JobRecord{}, false
}

// Set replaces the whole collection and stamps the fetch time.
func (s *Store) Set(key string, records []models.JobRecord) {
	s.mu.Lock()
	if !s.isActive(key) {
		s.mu.Unlock()
		s.logger.Debug("ignoring set for inactive identity", "identity", key)
		return
	}
	s.install(records)
	s.mu.Unlock()
	s.persist(key)
}

// Generation returns a token identifying the most recent Set or identity change. Pair it with
// SetIfCurrent to drop a response that was overtaken while in flight.
func (s *Store) Generation(key string) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.isActive(key) {
		return 0
	}
	return s.setGen
}

// SetIfCurrent behaves like Set unless another Set happened after gen was read.
// It reports whether the records were installed.
func (s *Store) SetIfCurrent(key string, records []models.JobRecord, gen uint64) bool {
	s.mu.Lock()
	if !s.isActive(key) || s.setGen != gen {
		s.mu.Unlock()
		return false
	}
	s.install(records)
	s.mu.Unlock()
	s.persist(key)
	return true
}

// install must be called with mu held.
func (s *Store) install(records []models.JobRecord) {
	s.setGen++
	s.entry = &entry{
		records:   models.CloneRecords(records),
		fetchedAt: s.clock.Now(),
		setGen:    s.setGen,
	}
	if s.entry.records == nil {
		s.entry.records = []models.JobRecord{}
	}
	s.loading = false
}

// Mutate applies a local transformation to the collection without any network call.
// It is a no-op when there is no entry. fn receives a private copy.
func (s *Store) Mutate(key string, fn func([]models.JobRecord) []models.JobRecord) {
	s.mu.Lock()
	if !s.isActive(key) || s.entry == nil {
		s.mu.Unlock()
		return
	}
	s.entry.records = fn(models.CloneRecords(s.entry.records))
	s.mu.Unlock()
	s.persist(key)
}

// SetLoading flags a fetch in flight. It never creates an entry.
func (s *Store) SetLoading(key string, loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isActive(key) {
		s.loading = loading
	}
}

// IsStale reports whether the collection must be fetched again: no entry, entry older than
// maxAge, or key not naming the active identity.
func (s *Store) IsStale(key string, maxAge time.Duration) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.isActive(key) || s.entry == nil {
		return true
	}
	return s.clock.Since(s.entry.fetchedAt) > maxAge
}

func (s *Store) persist(key string) {
	if s.snaps == nil {
		return
	}

	s.mu.RLock()
	if !s.isActive(key) || s.entry == nil {
		s.mu.RUnlock()
		return
	}
	snap := models.Snapshot{
		IdentityKey: s.identity.Key(),
		OwnerEmail:  s.identity.Email,
		Records:     models.CloneRecords(s.entry.records),
		FetchedAt:   s.entry.fetchedAt,
	}
	s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := s.snaps.SaveSnapshot(ctx, snap); err != nil {
		s.logger.Warn("saving session snapshot failed", "owner", snap.OwnerEmail, "error", err)
	}
}

func (s *Store) deleteSnapshot(ctx context.Context, owner string) {
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := s.snaps.DeleteSnapshot(dctx, owner); err != nil {
		s.logger.Warn("deleting session snapshot failed", "owner", owner, "error", err)
	}
}
