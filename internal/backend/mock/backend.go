package mock

import (
	"context"
	"sync"

	"github.com/kiranshivaraju/jobsync/internal/backend"
	"github.com/kiranshivaraju/jobsync/pkg/models"
)

// Backend satisfies backend.JobsBackend for testing. Unset funcs return an empty list.
type Backend struct {
	BackendName      string
	FetchAllFunc     func(ctx context.Context, email string) ([]models.JobRecord, error)
	AddJobFunc       func(ctx context.Context, req backend.AddJobRequest) ([]models.JobRecord, error)
	UpdateStatusFunc func(ctx context.Context, email, jobID string, status models.Status) ([]models.JobRecord, error)
	EditJobFunc      func(ctx context.Context, email, jobID string, edit models.JobEdit) ([]models.JobRecord, error)
	DeleteJobFunc    func(ctx context.Context, email, jobID string) ([]models.JobRecord, error)

	mu    sync.Mutex
	calls map[string]int
}

func (m *Backend) record(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = map[string]int{}
	}
	m.calls[op]++
}

// Calls returns how many times op ("FetchAll", "AddJob", ...) was invoked.
func (m *Backend) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

func (m *Backend) Name() string {
	if m.BackendName == "" {
		return "mock"
	}
	return m.BackendName
}

func (m *Backend) FetchAll(ctx context.Context, email string) ([]models.JobRecord, error) {
	m.record("FetchAll")
	if m.FetchAllFunc != nil {
		return m.FetchAllFunc(ctx, email)
	}
	return []models.JobRecord{}, nil
}

func (m *Backend) AddJob(ctx context.Context, req backend.AddJobRequest) ([]models.JobRecord, error) {
	m.record("AddJob")
	if m.AddJobFunc != nil {
		return m.AddJobFunc(ctx, req)
	}
	return []models.JobRecord{}, nil
}

func (m *Backend) UpdateStatus(ctx context.Context, email, jobID string, status models.Status) ([]models.JobRecord, error) {
	m.record("UpdateStatus")
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, email, jobID, status)
	}
	return []models.JobRecord{}, nil
}

func (m *Backend) EditJob(ctx context.Context, email, jobID string, edit models.JobEdit) ([]models.JobRecord, error) {
	m.record("EditJob")
	if m.EditJobFunc != nil {
		return m.EditJobFunc(ctx, email, jobID, edit)
	}
	return []models.JobRecord{}, nil
}

func (m *Backend) DeleteJob(ctx context.Context, email, jobID string) ([]models.JobRecord, error) {
	m.record("DeleteJob")
	if m.DeleteJobFunc != nil {
		return m.DeleteJobFunc(ctx, email, jobID)
	}
	return []models.JobRecord{}, nil
}

// Compile-time check that Backend implements JobsBackend.
var _ backend.JobsBackend = (*Backend)(nil)
