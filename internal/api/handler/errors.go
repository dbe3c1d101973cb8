package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	mw "github.com/kiranshivaraju/jobsync/internal/api/middleware"
	"github.com/kiranshivaraju/jobsync/internal/api/response"
	"github.com/kiranshivaraju/jobsync/internal/attachment"
	"github.com/kiranshivaraju/jobsync/internal/authgate"
	"github.com/kiranshivaraju/jobsync/internal/backend"
	"github.com/kiranshivaraju/jobsync/internal/board"
	"github.com/kiranshivaraju/jobsync/internal/creation"
	"github.com/kiranshivaraju/jobsync/internal/fetcher"
	"github.com/kiranshivaraju/jobsync/internal/tracker"
)

type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

// errorMappings is checked in order; the first match wins.
var errorMappings = []errorMapping{
	{tracker.ErrNoSession, http.StatusUnauthorized, "NO_SESSION", "No identity is logged in"},
	{tracker.ErrInvalidIdentity, http.StatusBadRequest, "INVALID_REQUEST", ""},
	{authgate.ErrReauthRequired, http.StatusUnauthorized, "REAUTH_REQUIRED", "Session expired, please log in again"},
	{fetcher.ErrOwnerInactive, http.StatusConflict, "SESSION_CHANGED", "The active identity changed during the request"},

	{creation.ErrInvalidDraft, http.StatusBadRequest, "INVALID_REQUEST", ""},
	{board.ErrInvalidStatus, http.StatusBadRequest, "INVALID_STATUS", ""},
	{board.ErrEmptyEdit, http.StatusBadRequest, "INVALID_REQUEST", "Edit changes nothing"},
	{board.ErrJobNotFound, http.StatusNotFound, "JOB_NOT_FOUND", "Job not found"},
	{board.ErrNoPending, http.StatusNotFound, "NO_PENDING_TRANSITION", "No transition is waiting for an artifact"},
	{board.ErrInvalidTransition, http.StatusConflict, "INVALID_TRANSITION", ""},
	{board.ErrConfirmationRequired, http.StatusConflict, "CONFIRMATION_REQUIRED", "Deleting a job requires a confirmation code"},
	{board.ErrArtifactMissing, http.StatusConflict, "ARTIFACT_MISSING", "No artifact exists for the job yet"},
	{board.ErrConfirmationMismatch, http.StatusForbidden, "CONFIRMATION_MISMATCH", "Confirmation code does not match"},

	{attachment.ErrEmptyFile, http.StatusBadRequest, "INVALID_REQUEST", "file is empty"},
	{attachment.ErrUploadsDisabled, http.StatusServiceUnavailable, "UPLOADS_DISABLED", "Object storage uploads are not configured"},
	{attachment.ErrUploadFailed, http.StatusBadGateway, "UPLOAD_FAILED", "Object storage rejected the upload"},

	{backend.ErrDuplicateJob, http.StatusConflict, "DUPLICATE_JOB", "Job already exists"},
	{backend.ErrUnsupported, http.StatusUnprocessableEntity, "UNSUPPORTED_OPERATION", "Operation not supported for this role"},
	{backend.ErrTimeout, http.StatusGatewayTimeout, "BACKEND_TIMEOUT", "The jobs backend took too long to answer"},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, "BACKEND_TIMEOUT", "The jobs backend took too long to answer"},
	{backend.ErrUnreachable, http.StatusBadGateway, "BACKEND_UNAVAILABLE", "The jobs backend is not reachable"},
	{backend.ErrRequestFailed, http.StatusBadGateway, "BACKEND_ERROR", "The jobs backend rejected the request"},
	{backend.ErrDecode, http.StatusBadGateway, "BACKEND_ERROR", "The jobs backend sent an invalid response"},
}

// writeError maps an engine error to its HTTP status and error code. An empty mapping message
// uses the error text.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			msg := m.message
			if msg == "" {
				msg = err.Error()
			}
			response.Error(w, m.status, m.code, msg, nil)
			return
		}
	}

	slog.Error("unhandled error",
		"request_id", mw.GetRequestID(r),
		"method", r.Method,
		"path", r.URL.Path,
		"error", err,
	)
	response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
}

// sessionFrom returns the session installed by RequireSession, writing 401 when absent.
func sessionFrom(w http.ResponseWriter, r *http.Request) (*tracker.Session, bool) {
	s, ok := mw.GetSession(r)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "NO_SESSION", "No identity is logged in", nil)
		return nil, false
	}
	return s, true
}
