package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/kiranshivaraju/jobsync/internal/api/response"
	"github.com/kiranshivaraju/jobsync/internal/tracker"
	"github.com/kiranshivaraju/jobsync/pkg/models"
)

// SessionManager switches the active identity.
type SessionManager interface {
	Login(ctx context.Context, id models.Identity) (*tracker.Session, error)
	Logout(ctx context.Context)
	Current() (*tracker.Session, error)
}

type sessionResponse struct {
	Email         string      `json:"email"`
	Role          models.Role `json:"role"`
	OperatorEmail string      `json:"operatorEmail,omitempty"`
	Backend       string      `json:"backend"`
}

func toSessionResponse(s *tracker.Session) sessionResponse {
	return sessionResponse{
		Email:         s.Identity.Email,
		Role:          s.Identity.Role,
		OperatorEmail: s.Identity.OperatorEmail,
		Backend:       s.Backend.Name(),
	}
}

// NewLoginHandler returns an http.HandlerFunc for POST /api/v1/session.
func NewLoginHandler(sm SessionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email         string `json:"email"`
			Role          string `json:"role"`
			Token         string `json:"token"`
			OperatorEmail string `json:"operatorEmail"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		role := models.Role(strings.ToLower(strings.TrimSpace(req.Role)))
		if role == "" {
			role = models.RoleStandard
		}

		s, err := sm.Login(r.Context(), models.Identity{
			Email:         strings.TrimSpace(req.Email),
			Role:          role,
			Token:         req.Token,
			OperatorEmail: strings.TrimSpace(req.OperatorEmail),
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.JSON(w, toSessionResponse(s))
	}
}

// NewCurrentSessionHandler returns an http.HandlerFunc for GET /api/v1/session.
func NewCurrentSessionHandler(sm SessionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := sm.Current()
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.JSON(w, toSessionResponse(s))
	}
}

// NewLogoutHandler returns an http.HandlerFunc for DELETE /api/v1/session.
func NewLogoutHandler(sm SessionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sm.Logout(r.Context())
		response.NoContent(w)
	}
}
