package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/kiranshivaraju/jobsync/internal/api/middleware"
	"github.com/kiranshivaraju/jobsync/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Sessions  mw.SessionSource
	RateLimit *mw.RateLimit

	HealthHandler http.HandlerFunc

	LoginHandler          http.HandlerFunc
	CurrentSessionHandler http.HandlerFunc
	LogoutHandler         http.HandlerFunc

	ListJobsHandler  http.HandlerFunc
	GetJobHandler    http.HandlerFunc
	CreateJobHandler http.HandlerFunc
	EditJobHandler   http.HandlerFunc
	DropHandler      http.HandlerFunc
	DeleteJobHandler http.HandlerFunc
	BoardHandler     http.HandlerFunc

	PendingHandler        http.HandlerFunc
	ArtifactFoundHandler  http.HandlerFunc
	UploadHandler         http.HandlerFunc
	DismissPendingHandler http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	r.Post("/api/v1/session", orNotImplemented(deps.LoginHandler))
	r.Get("/api/v1/session", orNotImplemented(deps.CurrentSessionHandler))
	r.Delete("/api/v1/session", orNotImplemented(deps.LogoutHandler))

	// Routes bound to the active identity
	r.Group(func(r chi.Router) {
		r.Use(mw.RequireSession(deps.Sessions))
		r.Use(deps.RateLimit.Limit)

		r.Get("/api/v1/jobs", orNotImplemented(deps.ListJobsHandler))
		r.Post("/api/v1/jobs", orNotImplemented(deps.CreateJobHandler))
		r.Get("/api/v1/jobs/{jobID}", orNotImplemented(deps.GetJobHandler))
		r.Patch("/api/v1/jobs/{jobID}", orNotImplemented(deps.EditJobHandler))
		r.Delete("/api/v1/jobs/{jobID}", orNotImplemented(deps.DeleteJobHandler))
		r.Post("/api/v1/jobs/{jobID}/drop", orNotImplemented(deps.DropHandler))

		r.Get("/api/v1/board", orNotImplemented(deps.BoardHandler))

		r.Get("/api/v1/pending", orNotImplemented(deps.PendingHandler))
		r.Delete("/api/v1/pending", orNotImplemented(deps.DismissPendingHandler))
		r.Post("/api/v1/pending/artifact", orNotImplemented(deps.ArtifactFoundHandler))
		r.Post("/api/v1/pending/upload", orNotImplemented(deps.UploadHandler))
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
