// Package tracker wires the synchronization engine together for the active identity.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/kiranshivaraju/jobsync/internal/attachment"
	"github.com/kiranshivaraju/jobsync/internal/authgate"
	"github.com/kiranshivaraju/jobsync/internal/backend"
	"github.com/kiranshivaraju/jobsync/internal/board"
	"github.com/kiranshivaraju/jobsync/internal/creation"
	"github.com/kiranshivaraju/jobsync/internal/credential"
	"github.com/kiranshivaraju/jobsync/internal/fetcher"
	"github.com/kiranshivaraju/jobsync/internal/session"
	"github.com/kiranshivaraju/jobsync/pkg/models"
)

var (
	ErrNoSession       = errors.New("no active session")
	ErrInvalidIdentity = errors.New("invalid identity")
)

// BackendFactory builds the raw backend strategy for an identity.
type BackendFactory func(id models.Identity, tokens backend.TokenSource) (backend.JobsBackend, error)

// Options configures an Engine.
type Options struct {
	Backend           backend.Options
	RefreshURL        string
	CacheMaxAge       time.Duration
	OptimisticDelay   time.Duration
	UploadConcurrency int

	Confirmer board.Confirmer
	// Uploader may be nil when object storage is not configured.
	Uploader  attachment.Uploader
	Snapshots session.SnapshotStore

	// Refresher and Backends override the HTTP implementations.
	Refresher credential.Refresher
	Backends  BackendFactory

	Clock  clockwork.Clock
	Logger *slog.Logger
}

// Session is the engine bound to one identity.
type Session struct {
	Identity models.Identity
	Backend  backend.JobsBackend
	Store    *session.Store
	Fetcher  *fetcher.Orchestrator
	Board    *board.Board
	Creator  *creation.Creator
	Attacher *attachment.Attacher
}

// Owner is the email whose collection the session tracks.
func (s *Session) Owner() string {
	return s.Identity.Email
}

// Find returns one cached record of the session's collection.
func (s *Session) Find(jobID string) (models.JobRecord, bool) {
	return s.Store.Find(s.Identity.Key(), jobID)
}

// Engine owns the session cache and the credential, and swaps the per-identity Session on
// login and logout.
type Engine struct {
	opts   Options
	store  *session.Store
	creds  *credential.Store
	logger *slog.Logger

	mu      sync.RWMutex
	current *Session
}

// New creates an Engine with no active identity.
func New(opts Options) *Engine {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.CacheMaxAge <= 0 {
		opts.CacheMaxAge = 5 * time.Minute
	}
	if opts.Backends == nil {
		opts.Backends = func(id models.Identity, tokens backend.TokenSource) (backend.JobsBackend, error) {
			return backend.ForIdentity(id, opts.Backend, tokens)
		}
	}

	creds := credential.NewStore()
	if opts.Refresher == nil {
		opts.Refresher = credential.NewHTTPRefresher(opts.RefreshURL, creds, opts.Backend.Timeout)
	}

	storeOpts := []session.Option{session.WithClock(opts.Clock), session.WithLogger(opts.Logger)}
	if opts.Snapshots != nil {
		storeOpts = append(storeOpts, session.WithSnapshots(opts.Snapshots))
	}

	return &Engine{
		opts:   opts,
		store:  session.NewStore(storeOpts...),
		creds:  creds,
		logger: opts.Logger,
	}
}

// Store exposes the session cache for read-only callers.
func (e *Engine) Store() *session.Store {
	return e.store
}

// Credentials exposes the shared credential holder.
func (e *Engine) Credentials() *credential.Store {
	return e.creds
}

// Login makes id the active identity. Logging in again as the same identity only replaces
// the credential and keeps the cache.
func (e *Engine) Login(ctx context.Context, id models.Identity) (*Session, error) {
	if err := id.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIdentity, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current != nil && e.current.Identity.Key() == id.Key() {
		e.creds.Set(id.Email, id.Token)
		e.current.Identity = id
		return e.current, nil
	}

	e.creds.Set(id.Email, id.Token)
	raw, err := e.opts.Backends(id, e.creds)
	if err != nil {
		e.creds.Clear()
		return nil, fmt.Errorf("select backend: %w", err)
	}

	key := id.Key()
	gate := authgate.New(e.opts.Refresher, func(ctx context.Context) { e.onReauth(ctx, key) }, e.logger)
	guarded := gate.Wrap(raw)

	e.store.Init(ctx, id)

	owner := id.Email
	logger := e.logger.With("owner", owner, "role", id.Role)
	attacher := attachment.NewAttacher(e.opts.Uploader, guarded, e.store, e.opts.UploadConcurrency, logger)

	creatorOpts := []creation.Option{
		creation.WithClock(e.opts.Clock),
		creation.WithDelay(e.opts.OptimisticDelay),
		creation.WithLogger(logger),
	}
	if e.opts.Uploader != nil {
		creatorOpts = append(creatorOpts, creation.WithAttacher(attacher))
	}

	s := &Session{
		Identity: id,
		Backend:  guarded,
		Store:    e.store,
		Fetcher:  fetcher.New(id, guarded, e.store, e.opts.CacheMaxAge, logger),
		Board:    board.New(id, guarded, e.store, nil, e.opts.Confirmer, logger),
		Creator:  creation.New(id, guarded, e.store, creatorOpts...),
		Attacher: attacher,
	}
	e.current = s

	e.logger.Info("identity active", "owner", owner, "role", id.Role, "backend", raw.Name())
	return s, nil
}

// Logout clears the credential and tears the session cache down, snapshot included.
func (e *Engine) Logout(ctx context.Context) {
	e.mu.Lock()
	prev := e.current
	e.current = nil
	e.mu.Unlock()

	e.creds.Clear()
	e.store.Teardown(ctx)

	if prev != nil {
		e.logger.Info("identity cleared", "owner", prev.Owner())
	}
}

// onReauth logs out only if key is still the active identity; a late failure from a
// previous session must not end the current one.
func (e *Engine) onReauth(ctx context.Context, key string) {
	e.mu.RLock()
	active := e.current != nil && e.current.Identity.Key() == key
	e.mu.RUnlock()
	if !active {
		return
	}
	e.logger.Warn("credential could not be refreshed, logging out", "identity", key)
	e.Logout(ctx)
}

// Current returns the active session.
func (e *Engine) Current() (*Session, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.current == nil {
		return nil, ErrNoSession
	}
	return e.current, nil
}

// Wait blocks until background work of the active session has drained.
func (e *Engine) Wait() {
	e.mu.RLock()
	s := e.current
	e.mu.RUnlock()
	if s == nil {
		return
	}
	s.Creator.Wait()
	s.Attacher.Wait()
}
