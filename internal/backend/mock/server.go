package mock

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/kiranshivaraju/jobsync/internal/backend"
	"github.com/kiranshivaraju/jobsync/pkg/models"
)

// Server is an in-memory jobs collection that answers like the real backend: every mutation
// returns the full post-mutation list. A job whose link matches an existing one is a duplicate.
type Server struct {
	mu   sync.Mutex
	jobs []models.JobRecord
}

// NewServer creates a Server holding jobs.
func NewServer(jobs ...models.JobRecord) *Server {
	return &Server{jobs: models.CloneRecords(jobs)}
}

// Jobs returns a copy of the authoritative collection.
func (s *Server) Jobs() []models.JobRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.CloneRecords(s.jobs)
}

// Backend returns a Backend whose funcs operate on s.
func (s *Server) Backend() *Backend {
	return &Backend{
		FetchAllFunc: func(context.Context, string) ([]models.JobRecord, error) {
			return s.Jobs(), nil
		},
		AddJobFunc: func(_ context.Context, req backend.AddJobRequest) ([]models.JobRecord, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			link := strings.TrimSpace(req.Record.JobLink)
			for _, j := range s.jobs {
				if link != "" && strings.EqualFold(j.JobLink, link) {
					return nil, fmt.Errorf("%w: %s", backend.ErrDuplicateJob, link)
				}
			}
			s.jobs = append(s.jobs, req.Record)
			return models.CloneRecords(s.jobs), nil
		},
		UpdateStatusFunc: func(_ context.Context, _ string, jobID string, st models.Status) ([]models.JobRecord, error) {
			return s.update(jobID, func(j *models.JobRecord) {
				j.CurrentStatus = st
				j.Timeline = append(j.Timeline, models.TimelineEntry{Status: st})
			})
		},
		EditJobFunc: func(_ context.Context, _ string, jobID string, edit models.JobEdit) ([]models.JobRecord, error) {
			return s.update(jobID, func(j *models.JobRecord) {
				if edit.JobTitle != nil {
					j.JobTitle = *edit.JobTitle
				}
				if edit.CompanyName != nil {
					j.CompanyName = *edit.CompanyName
				}
				if edit.JobDescription != nil {
					j.JobDescription = *edit.JobDescription
				}
				if edit.JobLink != nil {
					j.JobLink = *edit.JobLink
				}
				if edit.AttachmentURLs != nil {
					j.Attachments = append([]string(nil), edit.AttachmentURLs...)
				}
			})
		},
		DeleteJobFunc: func(_ context.Context, _ string, jobID string) ([]models.JobRecord, error) {
			return s.update(jobID, func(j *models.JobRecord) {
				j.CurrentStatus = models.StatusDeleted
			})
		},
	}
}

func (s *Server) update(jobID string, fn func(*models.JobRecord)) ([]models.JobRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.jobs {
		if s.jobs[i].JobID == jobID {
			fn(&s.jobs[i])
			return models.CloneRecords(s.jobs), nil
		}
	}
	return nil, fmt.Errorf("%w: job %s not found", backend.ErrRequestFailed, jobID)
}
