// Package backend talks to the jobs server of record. Two surfaces exist: the standard one
// used with a bearer token and the operations one used by internal operators.
package backend

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/kiranshivaraju/jobsync/pkg/models"
)

// JobsBackend is the strategy interface over the two server surfaces. Every mutating call
// returns the server's authoritative post-mutation collection.
type JobsBackend interface {
	FetchAll(ctx context.Context, email string) ([]models.JobRecord, error)
	AddJob(ctx context.Context, req AddJobRequest) ([]models.JobRecord, error)
	UpdateStatus(ctx context.Context, email, jobID string, status models.Status) ([]models.JobRecord, error)
	EditJob(ctx context.Context, email, jobID string, edit models.JobEdit) ([]models.JobRecord, error)
	DeleteJob(ctx context.Context, email, jobID string) ([]models.JobRecord, error)
	Name() string
}

// AddJobRequest is the minimal create payload. Attachments are never sent here; they are
// patched on afterwards.
type AddJobRequest struct {
	Email  string
	Record models.JobRecord
}

// TokenSource yields the current bearer token. It is read on every request so a refresh
// between two attempts is picked up.
type TokenSource interface {
	Token() string
}

// Options configures the HTTP transport shared by both surfaces.
type Options struct {
	BaseURL string
	Timeout time.Duration
	Client  *http.Client
}

func (o Options) httpClient() *http.Client {
	if o.Client != nil {
		return o.Client
	}
	return &http.Client{Timeout: o.Timeout}
}

// ForIdentity picks the surface matching the identity's role.
func ForIdentity(id models.Identity, opts Options, tokens TokenSource) (JobsBackend, error) {
	switch id.Role {
	case models.RoleStandard:
		return NewStandardBackend(opts, tokens), nil
	case models.RoleOperations:
		return NewOperationsBackend(opts, id.OperatorEmail), nil
	default:
		return nil, fmt.Errorf("unknown role %q", id.Role)
	}
}
