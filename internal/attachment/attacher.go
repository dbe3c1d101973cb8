package attachment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kiranshivaraju/jobsync/internal/backend"
	"github.com/kiranshivaraju/jobsync/internal/session"
	"github.com/kiranshivaraju/jobsync/pkg/models"
	"golang.org/x/sync/errgroup"
)

// ErrNothingUploaded means every image failed to upload.
var ErrNothingUploaded = errors.New("no image was uploaded")

const backgroundTimeout = 5 * time.Minute

// Attacher uploads pasted images for a freshly created job and then records the URLs on it.
type Attacher struct {
	uploader    Uploader
	backend     backend.JobsBackend
	store       *session.Store
	concurrency int
	logger      *slog.Logger

	wg sync.WaitGroup
}

// NewAttacher creates an Attacher. concurrency bounds parallel uploads.
func NewAttacher(uploader Uploader, b backend.JobsBackend, store *session.Store, concurrency int, logger *slog.Logger) *Attacher {
	if logger == nil {
		logger = slog.Default()
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Attacher{
		uploader:    uploader,
		backend:     b,
		store:       store,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Start runs Attach in the background, detached from ctx cancellation. Failures are logged.
func (a *Attacher) Start(ctx context.Context, id models.Identity, jobID string, images []models.Image) {
	if len(images) == 0 {
		return
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), backgroundTimeout)
		defer cancel()
		if err := a.Attach(bctx, id, jobID, images); err != nil {
			a.logger.Warn("background attachment failed", "owner", id.Email, "job_id", jobID, "error", err)
		}
	}()
}

// Wait blocks until every background task started so far has finished.
func (a *Attacher) Wait() {
	a.wg.Wait()
}

// Attach uploads images concurrently and records the URLs of those that made it in one edit.
// A failed image is logged and skipped.
func (a *Attacher) Attach(ctx context.Context, id models.Identity, jobID string, images []models.Image) error {
	if len(images) == 0 {
		return nil
	}
	if a.uploader == nil {
		return ErrUploadsDisabled
	}

	urls := make([]string, len(images))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, img := range images {
		g.Go(func() error {
			url, err := a.uploader.Upload(gctx, img)
			if err != nil {
				a.logger.Warn("image upload failed", "job_id", jobID, "image", img.Name, "error", err)
				return nil
			}
			urls[i] = url
			return nil
		})
	}
	_ = g.Wait()

	uploaded := make([]string, 0, len(urls))
	for _, u := range urls {
		if u != "" {
			uploaded = append(uploaded, u)
		}
	}
	if len(uploaded) == 0 {
		return ErrNothingUploaded
	}

	var existing []string
	if rec, ok := a.store.Find(id.Key(), jobID); ok {
		existing = rec.Attachments
	}

	records, err := a.backend.EditJob(ctx, id.Email, jobID, models.JobEdit{AttachmentURLs: append(existing, uploaded...)})
	if err != nil {
		return fmt.Errorf("record attachments: %w", err)
	}
	a.store.Set(id.Key(), records)

	a.logger.Info("attachments recorded", "owner", id.Email, "job_id", jobID, "count", len(uploaded), "failed", len(images)-len(uploaded))
	return nil
}
