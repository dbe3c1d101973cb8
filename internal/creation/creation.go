// Package creation adds a job with an optimistic local insert racing the server round trip.
//
// Create arms a timer when it sends the request. If the server answers first, the form closes
// on the server's verdict. If the timer fires first, the optimistic record goes to the head of
// the cached collection and the form closes right away; the server's answer is reconciled
// whenever it lands. A duplicate rejection always wins: it either keeps the form open or rolls
// the optimistic record back out.
package creation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/kiranshivaraju/jobsync/internal/authgate"
	"github.com/kiranshivaraju/jobsync/internal/backend"
	"github.com/kiranshivaraju/jobsync/internal/session"
	"github.com/kiranshivaraju/jobsync/pkg/models"
)

// DefaultDelay is how long the form waits for the server before inserting optimistically.
const DefaultDelay = 2500 * time.Millisecond

var ErrInvalidDraft = errors.New("invalid draft")

// Outcome tells the form what happened. The form closes whenever Create returns a nil error.
type Outcome struct {
	JobID string
	// Optimistic is true when the timer closed the form before the server answered.
	Optimistic bool
	Record     models.JobRecord
	// SyncErr is the request failure that arrived before the timer fired. The optimistic
	// record stands anyway until the next full fetch reconciles it.
	SyncErr error
}

// AttachmentStarter launches the background upload of pasted images.
type AttachmentStarter interface {
	Start(ctx context.Context, id models.Identity, jobID string, images []models.Image)
}

// Creator creates jobs for one identity.
type Creator struct {
	id       models.Identity
	key      string
	backend  backend.JobsBackend
	store    *session.Store
	attacher AttachmentStarter
	clock    clockwork.Clock
	delay    time.Duration
	logger   *slog.Logger

	inflight sync.WaitGroup
}

// Option configures a Creator.
type Option func(*Creator)

func WithClock(c clockwork.Clock) Option {
	return func(cr *Creator) { cr.clock = c }
}

func WithDelay(d time.Duration) Option {
	return func(cr *Creator) {
		if d > 0 {
			cr.delay = d
		}
	}
}

func WithAttacher(a AttachmentStarter) Option {
	return func(cr *Creator) { cr.attacher = a }
}

func WithLogger(l *slog.Logger) Option {
	return func(cr *Creator) { cr.logger = l }
}

// New creates a Creator.
func New(id models.Identity, b backend.JobsBackend, store *session.Store, opts ...Option) *Creator {
	c := &Creator{
		id:      id,
		key:     id.Key(),
		backend: b,
		store:   store,
		clock:   clockwork.NewRealClock(),
		delay:   DefaultDelay,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type result struct {
	outcome Outcome
	err     error
}

// attempt is the shared state of one Create call. Every racing callback takes mu and checks
// the flags before touching the cache.
type attempt struct {
	mu sync.Mutex
	// closed is set once Create's answer is decided.
	closed bool
	// timerDone is set once the timer fired or was stopped.
	timerDone bool
	inserted  bool
	syncErr   error

	timer  clockwork.Timer
	record models.JobRecord
	result chan result
}

// stopTimer must be called with mu held.
func (a *attempt) stopTimer() {
	if !a.timerDone {
		a.timerDone = true
		a.timer.Stop()
	}
}

// finish posts r unless an answer was already given. It must be called with mu held.
func (a *attempt) finish(r result) {
	if a.closed {
		return
	}
	a.closed = true
	a.result <- r
}

// Create submits draft and returns as soon as the form may close or must stay open.
// Duplicate rejections surface as backend.ErrDuplicateJob.
func (c *Creator) Create(ctx context.Context, draft models.Draft) (Outcome, error) {
	if err := draft.Validate(); err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrInvalidDraft, err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return Outcome{}, fmt.Errorf("generate job id: %w", err)
	}
	now := c.clock.Now()

	rec := models.JobRecord{
		JobID:          id.String(),
		JobTitle:       draft.JobTitle,
		CompanyName:    draft.CompanyName,
		JobDescription: draft.JobDescription,
		JobLink:        draft.JobLink,
		CurrentStatus:  models.StatusSaved,
		DateAdded:      now.Format(models.DisplayLayout),
		CreatedAt:      models.NewTimestamp(now),
		UpdatedAt:      models.NewTimestamp(now),
		UserID:         c.id.Email,
	}

	att := &attempt{record: rec, result: make(chan result, 1)}

	att.mu.Lock()
	att.timer = c.clock.AfterFunc(c.delay, func() { c.onTimer(att) })
	att.mu.Unlock()

	c.inflight.Add(1)
	go c.send(context.WithoutCancel(ctx), att, draft.Images)

	select {
	case r := <-att.result:
		return r.outcome, r.err
	case <-ctx.Done():
		att.mu.Lock()
		if att.closed {
			att.mu.Unlock()
			r := <-att.result
			return r.outcome, r.err
		}
		att.closed = true
		att.stopTimer()
		att.mu.Unlock()
		c.logger.Info("job creation abandoned by caller", "owner", c.id.Email, "job_id", rec.JobID)
		return Outcome{JobID: rec.JobID}, ctx.Err()
	}
}

// Wait blocks until every request started by Create has been reconciled.
func (c *Creator) Wait() {
	c.inflight.Wait()
}

func (c *Creator) onTimer(att *attempt) {
	att.mu.Lock()
	defer att.mu.Unlock()
	if att.timerDone {
		return
	}
	att.timerDone = true
	att.inserted = true

	rec := att.record
	models.Touch(&rec, c.clock.Now())
	c.store.Mutate(c.key, func(records []models.JobRecord) []models.JobRecord {
		for _, r := range records {
			if r.JobID == rec.JobID {
				return records
			}
		}
		return append([]models.JobRecord{rec}, records...)
	})
	c.logger.Info("optimistic insert", "owner", c.id.Email, "job_id", rec.JobID, "sync_error", att.syncErr)

	att.finish(result{outcome: Outcome{
		JobID:      rec.JobID,
		Optimistic: true,
		Record:     rec,
		SyncErr:    att.syncErr,
	}})
}

func (c *Creator) send(ctx context.Context, att *attempt, images []models.Image) {
	defer c.inflight.Done()

	rec := att.record
	records, err := c.backend.AddJob(ctx, backend.AddJobRequest{Email: c.id.Email, Record: rec})

	att.mu.Lock()
	defer att.mu.Unlock()

	switch {
	case err == nil:
		att.stopTimer()
		c.store.Set(c.key, records)
		att.finish(result{outcome: Outcome{JobID: rec.JobID, Record: rec}})
		c.logger.Info("job created", "owner", c.id.Email, "job_id", rec.JobID, "after_optimistic_insert", att.inserted)
		if c.attacher != nil && len(images) > 0 {
			c.attacher.Start(ctx, c.id, rec.JobID, images)
		}

	case errors.Is(err, backend.ErrDuplicateJob):
		att.stopTimer()
		if att.inserted {
			c.store.Mutate(c.key, func(records []models.JobRecord) []models.JobRecord {
				out := records[:0]
				for _, r := range records {
					if r.JobID != rec.JobID {
						out = append(out, r)
					}
				}
				return out
			})
			c.logger.Warn("duplicate rejected after optimistic insert, rolled back", "owner", c.id.Email, "job_id", rec.JobID)
			return
		}
		att.finish(result{outcome: Outcome{JobID: rec.JobID}, err: fmt.Errorf("create job: %w", err)})

	case errors.Is(err, authgate.ErrReauthRequired):
		att.stopTimer()
		att.finish(result{outcome: Outcome{JobID: rec.JobID}, err: err})

	default:
		if !att.timerDone {
			att.syncErr = err
			c.logger.Warn("create request failed, optimistic insert will stand", "owner", c.id.Email, "job_id", rec.JobID, "error", err)
			return
		}
		c.logger.Warn("create request failed after the form closed", "owner", c.id.Email, "job_id", rec.JobID, "error", err)
	}
}
