package authgate

import (
	"context"

	"github.com/kiranshivaraju/jobsync/internal/backend"
	"github.com/kiranshivaraju/jobsync/pkg/models"
)

type guardedBackend struct {
	gate *Gate
	next backend.JobsBackend
}

func (b *guardedBackend) Name() string { return b.next.Name() }

func (b *guardedBackend) FetchAll(ctx context.Context, email string) ([]models.JobRecord, error) {
	return Guard(ctx, b.gate, func(ctx context.Context) ([]models.JobRecord, error) {
		return b.next.FetchAll(ctx, email)
	})
}

func (b *guardedBackend) AddJob(ctx context.Context, req backend.AddJobRequest) ([]models.JobRecord, error) {
	return Guard(ctx, b.gate, func(ctx context.Context) ([]models.JobRecord, error) {
		return b.next.AddJob(ctx, req)
	})
}

func (b *guardedBackend) UpdateStatus(ctx context.Context, email, jobID string, status models.Status) ([]models.JobRecord, error) {
	return Guard(ctx, b.gate, func(ctx context.Context) ([]models.JobRecord, error) {
		return b.next.UpdateStatus(ctx, email, jobID, status)
	})
}

func (b *guardedBackend) EditJob(ctx context.Context, email, jobID string, edit models.JobEdit) ([]models.JobRecord, error) {
	return Guard(ctx, b.gate, func(ctx context.Context) ([]models.JobRecord, error) {
		return b.next.EditJob(ctx, email, jobID, edit)
	})
}

func (b *guardedBackend) DeleteJob(ctx context.Context, email, jobID string) ([]models.JobRecord, error) {
	return Guard(ctx, b.gate, func(ctx context.Context) ([]models.JobRecord, error) {
		return b.next.DeleteJob(ctx, email, jobID)
	})
}

var _ backend.JobsBackend = (*guardedBackend)(nil)
