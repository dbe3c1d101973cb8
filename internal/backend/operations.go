package backend

import (
	"context"
	"fmt"
	"net/http"

	"github.com/kiranshivaraju/jobsync/pkg/models"
)

// OperationsBackend is the parallel surface an internal operator uses to manage another
// user's collection. It carries no bearer token.
type OperationsBackend struct {
	t        *transport
	operator string
}

// NewOperationsBackend creates an OperationsBackend acting on behalf of operatorEmail.
func NewOperationsBackend(opts Options, operatorEmail string) *OperationsBackend {
	return &OperationsBackend{t: newTransport(opts), operator: operatorEmail}
}

func (b *OperationsBackend) Name() string { return "operations" }

func (b *OperationsBackend) headers() map[string]string {
	return map[string]string{"X-Operator-Email": b.operator}
}

func (b *OperationsBackend) FetchAll(ctx context.Context, email string) ([]models.JobRecord, error) {
	env, err := b.t.do(ctx, http.MethodPost, "/operations/alljobs", map[string]any{
		"email": email,
	}, b.headers())
	if err != nil {
		return nil, err
	}
	return nonNil(env.AllJobs), nil
}

// AddJob is not offered on the operations surface.
func (b *OperationsBackend) AddJob(_ context.Context, _ AddJobRequest) ([]models.JobRecord, error) {
	return nil, fmt.Errorf("%w: add job as operator", ErrUnsupported)
}

func (b *OperationsBackend) UpdateStatus(ctx context.Context, email, jobID string, status models.Status) ([]models.JobRecord, error) {
	return b.jobs(ctx, map[string]any{
		"action":      actionUpdateStatus,
		"jobID":       jobID,
		"status":      status,
		"userDetails": userDetails{Email: email},
	})
}

func (b *OperationsBackend) EditJob(ctx context.Context, email, jobID string, edit models.JobEdit) ([]models.JobRecord, error) {
	return b.jobs(ctx, map[string]any{
		"action":         actionEdit,
		"jobID":          jobID,
		"jobDetails":     edit,
		"attachmentUrls": edit.AttachmentURLs,
		"userDetails":    userDetails{Email: email},
	})
}

func (b *OperationsBackend) DeleteJob(ctx context.Context, email, jobID string) ([]models.JobRecord, error) {
	return b.jobs(ctx, map[string]any{
		"action":      actionDelete,
		"jobID":       jobID,
		"userDetails": userDetails{Email: email},
	})
}

func (b *OperationsBackend) jobs(ctx context.Context, body map[string]any) ([]models.JobRecord, error) {
	env, err := b.t.do(ctx, http.MethodPut, "/operations/jobs", body, b.headers())
	if err != nil {
		return nil, err
	}
	return nonNil(env.UpdatedJobs), nil
}

// Compile-time check that OperationsBackend implements JobsBackend.
var _ JobsBackend = (*OperationsBackend)(nil)
