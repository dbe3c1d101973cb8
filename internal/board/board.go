// Package board is the kanban status state machine over the session cache.
//
// Moving a job out of saved into the active pipeline is gated on an artifact (resume or
// attachment) existing for it. A gated drop parks in a one-slot pending buffer until the
// artifact shows up or the user dismisses the collection surface. Every applied change
// replaces the cached collection with the list the server returns.
package board

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kiranshivaraju/jobsync/internal/backend"
	"github.com/kiranshivaraju/jobsync/internal/session"
	"github.com/kiranshivaraju/jobsync/pkg/models"
)

// DropResult says what a drop did.
type DropResult int

const (
	DropIgnored DropResult = iota
	DropPending
	DropApplied
)

func (r DropResult) String() string {
	switch r {
	case DropPending:
		return "pending"
	case DropApplied:
		return "applied"
	default:
		return "ignored"
	}
}

// ArtifactChecker reports whether an artifact already exists for a job.
type ArtifactChecker interface {
	HasArtifact(ctx context.Context, jobID string) (bool, error)
}

// CachedArtifacts treats a job as having an artifact once the cached record lists at least one
// attachment URL. Key is the identity key the cache is read under.
type CachedArtifacts struct {
	Store *session.Store
	Key   string
}

func (c CachedArtifacts) HasArtifact(_ context.Context, jobID string) (bool, error) {
	rec, ok := c.Store.Find(c.Key, jobID)
	if !ok {
		return false, nil
	}
	return rec.HasAttachments(), nil
}

// Column is one board column.
type Column struct {
	Status  models.Status      `json:"status"`
	Records []models.JobRecord `json:"records"`
}

// Board applies status transitions for one identity.
type Board struct {
	owner     string
	key       string
	backend   backend.JobsBackend
	store     *session.Store
	artifacts ArtifactChecker
	confirmer Confirmer
	logger    *slog.Logger

	mu      sync.Mutex
	pending *models.PendingTransition
}

// New creates a Board. A nil artifacts checker falls back to CachedArtifacts.
func New(id models.Identity, b backend.JobsBackend, store *session.Store, artifacts ArtifactChecker, confirmer Confirmer, logger *slog.Logger) *Board {
	if logger == nil {
		logger = slog.Default()
	}
	if artifacts == nil {
		artifacts = CachedArtifacts{Store: store, Key: id.Key()}
	}
	return &Board{
		owner:     id.Email,
		key:       id.Key(),
		backend:   b,
		store:     store,
		artifacts: artifacts,
		confirmer: confirmer,
		logger:    logger,
	}
}

// Drop handles a card dropped onto target.
func (b *Board) Drop(ctx context.Context, jobID string, target models.Status) (DropResult, error) {
	if !target.Valid() {
		return DropIgnored, fmt.Errorf("%w: %q", ErrInvalidStatus, target)
	}

	rec, ok := b.store.Find(b.key, jobID)
	if !ok {
		b.logger.Debug("drop for unknown job ignored", "owner", b.owner, "job_id", jobID)
		return DropIgnored, nil
	}

	current := rec.CurrentStatus
	switch {
	case current == target:
		return DropIgnored, nil
	case current == models.StatusDeleted:
		return DropIgnored, fmt.Errorf("%w: job %s is deleted", ErrInvalidTransition, jobID)
	case target == models.StatusDeleted:
		return DropIgnored, ErrConfirmationRequired
	}

	if current == models.StatusSaved && target.IsActivePipeline() {
		has, err := b.artifacts.HasArtifact(ctx, jobID)
		if err != nil {
			return DropIgnored, fmt.Errorf("check artifact: %w", err)
		}
		if !has {
			b.park(models.PendingTransition{JobID: jobID, TargetStatus: target})
			return DropPending, nil
		}
	}

	if err := b.apply(ctx, jobID, target); err != nil {
		return DropIgnored, err
	}
	return DropApplied, nil
}

// park stores p in the pending slot, replacing whatever was there.
func (b *Board) park(p models.PendingTransition) {
	b.mu.Lock()
	prev := b.pending
	b.pending = &p
	b.mu.Unlock()

	if prev != nil && *prev != p {
		b.logger.Info("pending transition replaced",
			"owner", b.owner,
			"job_id", p.JobID,
			"target", p.TargetStatus,
			"replaced_job_id", prev.JobID,
		)
		return
	}
	b.logger.Info("transition pending until an artifact exists", "owner", b.owner, "job_id", p.JobID, "target", p.TargetStatus)
}

func (b *Board) apply(ctx context.Context, jobID string, target models.Status) error {
	records, err := b.backend.UpdateStatus(ctx, b.owner, jobID, target)
	if err != nil {
		b.logger.Warn("status update failed", "owner", b.owner, "job_id", jobID, "target", target, "error", err)
		return fmt.Errorf("update status: %w", err)
	}
	b.store.Set(b.key, records)
	b.logger.Info("status applied", "owner", b.owner, "job_id", jobID, "status", target)
	return nil
}

// Pending returns the transition waiting for an artifact.
func (b *Board) Pending() (models.PendingTransition, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pending == nil {
		return models.PendingTransition{}, false
	}
	return *b.pending, true
}

// resolve applies p and clears the slot if it still holds p. The slot is kept when the apply
// fails so the user can retry.
func (b *Board) resolve(ctx context.Context, p models.PendingTransition) error {
	if err := b.apply(ctx, p.JobID, p.TargetStatus); err != nil {
		return err
	}
	b.mu.Lock()
	if b.pending != nil && *b.pending == p {
		b.pending = nil
	}
	b.mu.Unlock()
	return nil
}

// ArtifactFound is called by the collection surface after its local existence check. It
// applies the pending transition when the artifact really exists.
func (b *Board) ArtifactFound(ctx context.Context) (models.PendingTransition, error) {
	p, ok := b.Pending()
	if !ok {
		return models.PendingTransition{}, ErrNoPending
	}

	has, err := b.artifacts.HasArtifact(ctx, p.JobID)
	if err != nil {
		return p, fmt.Errorf("check artifact: %w", err)
	}
	if !has {
		return p, ErrArtifactMissing
	}
	return p, b.resolve(ctx, p)
}

// UploadCompleted records url on the job and, when the pending slot is waiting on that job,
// applies the pending transition. A callback for another job only attaches the url.
func (b *Board) UploadCompleted(ctx context.Context, jobID, url string) (DropResult, error) {
	rec, ok := b.store.Find(b.key, jobID)
	if !ok {
		return DropIgnored, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}

	urls := append(rec.Attachments, url)
	records, err := b.backend.EditJob(ctx, b.owner, jobID, models.JobEdit{AttachmentURLs: urls})
	if err != nil {
		return DropIgnored, fmt.Errorf("attach upload: %w", err)
	}
	b.store.Set(b.key, records)

	p, ok := b.Pending()
	if !ok || p.JobID != jobID {
		b.logger.Info("upload attached without a matching pending transition", "owner", b.owner, "job_id", jobID)
		return DropIgnored, nil
	}
	if err := b.resolve(ctx, p); err != nil {
		return DropIgnored, err
	}
	return DropApplied, nil
}

// Dismiss discards the pending transition. The job stays saved.
func (b *Board) Dismiss() (models.PendingTransition, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pending == nil {
		return models.PendingTransition{}, false
	}
	p := *b.pending
	b.pending = nil
	b.logger.Info("pending transition dismissed", "owner", b.owner, "job_id", p.JobID)
	return p, true
}

// Delete moves a job to deleted once code matches the shared confirmation code.
func (b *Board) Delete(ctx context.Context, jobID, code string) error {
	rec, ok := b.store.Find(b.key, jobID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	if rec.CurrentStatus == models.StatusDeleted {
		return fmt.Errorf("%w: job %s is already deleted", ErrInvalidTransition, jobID)
	}
	if b.confirmer == nil || !b.confirmer.Confirm(code) {
		return ErrConfirmationMismatch
	}

	records, err := b.backend.DeleteJob(ctx, b.owner, jobID)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	b.store.Set(b.key, records)

	b.mu.Lock()
	if b.pending != nil && b.pending.JobID == jobID {
		b.pending = nil
	}
	b.mu.Unlock()

	b.logger.Info("job deleted", "owner", b.owner, "job_id", jobID)
	return nil
}

// Edit changes descriptive fields or attachment URLs of a job.
func (b *Board) Edit(ctx context.Context, jobID string, edit models.JobEdit) error {
	if edit.IsEmpty() {
		return ErrEmptyEdit
	}
	if _, ok := b.store.Find(b.key, jobID); !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}

	records, err := b.backend.EditJob(ctx, b.owner, jobID, edit)
	if err != nil {
		return fmt.Errorf("edit job: %w", err)
	}
	b.store.Set(b.key, records)
	return nil
}

// Columns groups the cached collection into board columns, most recently touched first.
// Deleted jobs are left out. q filters by title or company.
func (b *Board) Columns(q string) []Column {
	entry, _ := b.store.Get(b.key)

	byStatus := make(map[models.Status][]models.JobRecord, len(models.BoardStatuses))
	for _, r := range entry.Records {
		if r.CurrentStatus == models.StatusDeleted || !r.Matches(q) {
			continue
		}
		byStatus[r.CurrentStatus] = append(byStatus[r.CurrentStatus], r)
	}

	cols := make([]Column, 0, len(models.BoardStatuses))
	for _, st := range models.BoardStatuses {
		recs := byStatus[st]
		if recs == nil {
			recs = []models.JobRecord{}
		}
		models.SortByRecent(recs)
		cols = append(cols, Column{Status: st, Records: recs})
	}
	return cols
}
