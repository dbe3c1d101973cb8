package middleware

import (
	"net/http"

	"github.com/kiranshivaraju/jobsync/internal/api/response"
	"github.com/kiranshivaraju/jobsync/internal/tracker"
)

// SessionSource yields the active session, or tracker.ErrNoSession.
type SessionSource interface {
	Current() (*tracker.Session, error)
}

// RequireSession rejects requests while no identity is logged in and otherwise puts the
// active session in the request context.
func RequireSession(src SessionSource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, err := src.Current()
			if err != nil {
				response.Error(w, http.StatusUnauthorized,
					"NO_SESSION", "No identity is logged in", nil)
				return
			}
			next.ServeHTTP(w, r.WithContext(SetSession(r.Context(), s)))
		})
	}
}
