package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/kiranshivaraju/jobsync/internal/api/response"
	"github.com/kiranshivaraju/jobsync/internal/board"
	"github.com/kiranshivaraju/jobsync/pkg/models"
)

// NewListJobsHandler returns an http.HandlerFunc for GET /api/v1/jobs.
//
// Query parameters: refresh=true forces a fetch, q filters by title or company,
// include_deleted=true keeps deleted jobs in the list.
func NewListJobsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := sessionFrom(w, r)
		if !ok {
			return
		}

		refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))
		includeDeleted, _ := strconv.ParseBool(r.URL.Query().Get("include_deleted"))
		q := r.URL.Query().Get("q")

		load := s.Fetcher.Load
		if refresh {
			load = s.Fetcher.Refresh
		}
		entry, err := load(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}

		records := make([]models.JobRecord, 0, len(entry.Records))
		for _, rec := range entry.Records {
			if rec.CurrentStatus == models.StatusDeleted && !includeDeleted {
				continue
			}
			if rec.Matches(q) {
				records = append(records, rec)
			}
		}
		models.SortByRecent(records)

		response.Collection(w, records, response.CollectionMeta{
			Total:     len(records),
			FetchedAt: entry.FetchedAt.UTC(),
			Loading:   entry.IsLoading,
		})
	}
}

// NewGetJobHandler returns an http.HandlerFunc for GET /api/v1/jobs/{jobID}.
func NewGetJobHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := sessionFrom(w, r)
		if !ok {
			return
		}
		if _, err := s.Fetcher.Load(r.Context()); err != nil {
			writeError(w, r, err)
			return
		}

		jobID := chi.URLParam(r, "jobID")
		rec, found := s.Find(jobID)
		if !found {
			writeError(w, r, fmt.Errorf("%w: %s", board.ErrJobNotFound, jobID))
			return
		}
		response.JSON(w, jobResponse{Job: rec, Attachments: rec.AttachmentsNewestFirst()})
	}
}

type jobResponse struct {
	Job         models.JobRecord `json:"job"`
	Attachments []string         `json:"attachments"`
}

// NewBoardHandler returns an http.HandlerFunc for GET /api/v1/board.
func NewBoardHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := sessionFrom(w, r)
		if !ok {
			return
		}
		if _, err := s.Fetcher.Load(r.Context()); err != nil {
			writeError(w, r, err)
			return
		}

		columns := s.Board.Columns(r.URL.Query().Get("q"))
		pending, hasPending := s.Board.Pending()

		out := boardResponse{Columns: columns}
		if hasPending {
			out.Pending = &pending
		}
		response.JSON(w, out)
	}
}

type boardResponse struct {
	Columns []board.Column            `json:"columns"`
	Pending *models.PendingTransition `json:"pending,omitempty"`
}

type createResponse struct {
	JobID      string           `json:"jobID"`
	Optimistic bool             `json:"optimistic"`
	Record     models.JobRecord `json:"record"`
	SyncError  string           `json:"syncError,omitempty"`
}

// NewCreateJobHandler returns an http.HandlerFunc for POST /api/v1/jobs.
//
// 201 means the server confirmed the job, 202 means the optimistic record was shown before the
// server answered.
func NewCreateJobHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := sessionFrom(w, r)
		if !ok {
			return
		}

		var draft models.Draft
		if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		out, err := s.Creator.Create(r.Context(), draft)
		if err != nil {
			writeError(w, r, err)
			return
		}

		body := createResponse{JobID: out.JobID, Optimistic: out.Optimistic, Record: out.Record}
		if out.SyncErr != nil {
			body.SyncError = out.SyncErr.Error()
		}
		if out.Optimistic {
			response.Accepted(w, body)
			return
		}
		response.Created(w, body)
	}
}

// NewEditJobHandler returns an http.HandlerFunc for PATCH /api/v1/jobs/{jobID}.
func NewEditJobHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := sessionFrom(w, r)
		if !ok {
			return
		}

		var edit models.JobEdit
		if err := json.NewDecoder(r.Body).Decode(&edit); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		jobID := chi.URLParam(r, "jobID")
		if err := s.Board.Edit(r.Context(), jobID, edit); err != nil {
			writeError(w, r, err)
			return
		}
		rec, _ := s.Find(jobID)
		response.JSON(w, rec)
	}
}

type dropResponse struct {
	Result  string                    `json:"result"`
	Record  *models.JobRecord         `json:"record,omitempty"`
	Pending *models.PendingTransition `json:"pending,omitempty"`
}

// NewDropHandler returns an http.HandlerFunc for POST /api/v1/jobs/{jobID}/drop.
func NewDropHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := sessionFrom(w, r)
		if !ok {
			return
		}

		var req struct {
			Status string `json:"status"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		target, err := models.ParseStatus(req.Status)
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: %v", board.ErrInvalidStatus, err))
			return
		}

		jobID := chi.URLParam(r, "jobID")
		result, err := s.Board.Drop(r.Context(), jobID, target)
		if err != nil {
			writeError(w, r, err)
			return
		}

		body := dropResponse{Result: result.String()}
		switch result {
		case board.DropPending:
			if p, ok := s.Board.Pending(); ok {
				body.Pending = &p
			}
			response.Accepted(w, body)
			return
		case board.DropApplied:
			if rec, ok := s.Find(jobID); ok {
				body.Record = &rec
			}
		}
		response.JSON(w, body)
	}
}

// NewDeleteJobHandler returns an http.HandlerFunc for DELETE /api/v1/jobs/{jobID}.
func NewDeleteJobHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := sessionFrom(w, r)
		if !ok {
			return
		}

		var req struct {
			ConfirmationCode string `json:"confirmationCode"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if req.ConfirmationCode == "" {
			writeError(w, r, board.ErrConfirmationRequired)
			return
		}

		if err := s.Board.Delete(r.Context(), chi.URLParam(r, "jobID"), req.ConfirmationCode); err != nil {
			writeError(w, r, err)
			return
		}
		response.NoContent(w)
	}
}
