package backend

import (
	"context"
	"net/http"

	"github.com/kiranshivaraju/jobsync/pkg/models"
)

const (
	actionUpdateStatus = "UpdateStatus"
	actionEdit         = "edit"
	actionDelete       = "delete"
)

// StandardBackend is the surface used by a logged-in user holding a bearer token.
type StandardBackend struct {
	t      *transport
	tokens TokenSource
}

// NewStandardBackend creates a StandardBackend.
func NewStandardBackend(opts Options, tokens TokenSource) *StandardBackend {
	return &StandardBackend{t: newTransport(opts), tokens: tokens}
}

func (b *StandardBackend) Name() string { return "standard" }

func (b *StandardBackend) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + b.tokens.Token()}
}

func (b *StandardBackend) FetchAll(ctx context.Context, email string) ([]models.JobRecord, error) {
	env, err := b.t.do(ctx, http.MethodPost, "/getalljobs", map[string]any{
		"email": email,
	}, b.headers())
	if err != nil {
		return nil, err
	}
	return nonNil(env.AllJobs), nil
}

func (b *StandardBackend) AddJob(ctx context.Context, req AddJobRequest) ([]models.JobRecord, error) {
	env, err := b.t.do(ctx, http.MethodPost, "/addjob", map[string]any{
		"jobDetails":  req.Record,
		"userDetails": userDetails{Email: req.Email},
		"token":       b.tokens.Token(),
	}, b.headers())
	if err != nil {
		return nil, err
	}
	return nonNil(env.NewJobList), nil
}

func (b *StandardBackend) UpdateStatus(ctx context.Context, email, jobID string, status models.Status) ([]models.JobRecord, error) {
	return b.updateChanges(ctx, map[string]any{
		"action":      actionUpdateStatus,
		"jobID":       jobID,
		"status":      status,
		"userDetails": userDetails{Email: email},
	})
}

func (b *StandardBackend) EditJob(ctx context.Context, email, jobID string, edit models.JobEdit) ([]models.JobRecord, error) {
	return b.updateChanges(ctx, map[string]any{
		"action":         actionEdit,
		"jobID":          jobID,
		"jobDetails":     edit,
		"attachmentUrls": edit.AttachmentURLs,
		"userDetails":    userDetails{Email: email},
	})
}

func (b *StandardBackend) DeleteJob(ctx context.Context, email, jobID string) ([]models.JobRecord, error) {
	return b.updateChanges(ctx, map[string]any{
		"action":      actionDelete,
		"jobID":       jobID,
		"userDetails": userDetails{Email: email},
	})
}

func (b *StandardBackend) updateChanges(ctx context.Context, body map[string]any) ([]models.JobRecord, error) {
	body["token"] = b.tokens.Token()
	env, err := b.t.do(ctx, http.MethodPut, "/updatechanges", body, b.headers())
	if err != nil {
		return nil, err
	}
	return nonNil(env.UpdatedJobs), nil
}

// Compile-time check that StandardBackend implements JobsBackend.
var _ JobsBackend = (*StandardBackend)(nil)
