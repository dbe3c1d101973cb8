package handler

import (
	"fmt"
	"io"
	"net/http"

	"github.com/kiranshivaraju/jobsync/internal/api/response"
	"github.com/kiranshivaraju/jobsync/internal/attachment"
	"github.com/kiranshivaraju/jobsync/internal/board"
	"github.com/kiranshivaraju/jobsync/pkg/models"
)

// DefaultMaxUploadBytes bounds one uploaded artifact.
const DefaultMaxUploadBytes = 10 << 20

// NewPendingHandler returns an http.HandlerFunc for GET /api/v1/pending.
func NewPendingHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := sessionFrom(w, r)
		if !ok {
			return
		}
		p, ok := s.Board.Pending()
		if !ok {
			writeError(w, r, board.ErrNoPending)
			return
		}
		response.JSON(w, p)
	}
}

// NewArtifactFoundHandler returns an http.HandlerFunc for POST /api/v1/pending/artifact. The
// collection surface calls it once its own existence check found an artifact.
func NewArtifactFoundHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := sessionFrom(w, r)
		if !ok {
			return
		}
		p, err := s.Board.ArtifactFound(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		rec, _ := s.Find(p.JobID)
		response.JSON(w, dropResponse{Result: board.DropApplied.String(), Record: &rec})
	}
}

// NewDismissPendingHandler returns an http.HandlerFunc for DELETE /api/v1/pending.
func NewDismissPendingHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := sessionFrom(w, r)
		if !ok {
			return
		}
		if _, ok := s.Board.Dismiss(); !ok {
			writeError(w, r, board.ErrNoPending)
			return
		}
		response.NoContent(w)
	}
}

// NewUploadHandler returns an http.HandlerFunc for POST /api/v1/pending/upload.
//
// The multipart form carries the artifact in "file" and, optionally, the job in "jobID".
// Without a jobID the upload goes to the job of the pending transition.
func NewUploadHandler(uploader attachment.Uploader, maxBytes int64) http.HandlerFunc {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := sessionFrom(w, r)
		if !ok {
			return
		}
		if uploader == nil {
			writeError(w, r, attachment.ErrUploadsDisabled)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxBytes+1<<20)
		if err := r.ParseMultipartForm(maxBytes); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid multipart body", nil)
			return
		}

		jobID := r.FormValue("jobID")
		if jobID == "" {
			p, ok := s.Board.Pending()
			if !ok {
				writeError(w, r, board.ErrNoPending)
				return
			}
			jobID = p.JobID
		}
		if _, found := s.Find(jobID); !found {
			writeError(w, r, fmt.Errorf("%w: %s", board.ErrJobNotFound, jobID))
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "file is required", nil)
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Could not read file", nil)
			return
		}

		url, err := uploader.Upload(r.Context(), models.Image{
			Name:        header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Data:        data,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}

		result, err := s.Board.UploadCompleted(r.Context(), jobID, url)
		if err != nil {
			writeError(w, r, err)
			return
		}

		body := uploadResponse{URL: url, Result: result.String()}
		if rec, ok := s.Find(jobID); ok {
			body.Record = &rec
		}
		response.JSON(w, body)
	}
}

type uploadResponse struct {
	URL    string            `json:"url"`
	Result string            `json:"result"`
	Record *models.JobRecord `json:"record,omitempty"`
}
