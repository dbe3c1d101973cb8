package middleware

import (
	"context"
	"net/http"

	"github.com/kiranshivaraju/jobsync/internal/tracker"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	sessionKey   contextKey = "session"
)

func setRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// GetRequestID returns the id assigned by RequestID.
func GetRequestID(r *http.Request) string {
	id, _ := r.Context().Value(requestIDKey).(string)
	return id
}

// SetSession stores the active session in ctx.
func SetSession(ctx context.Context, s *tracker.Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// GetSession returns the session installed by RequireSession.
func GetSession(r *http.Request) (*tracker.Session, bool) {
	s, ok := r.Context().Value(sessionKey).(*tracker.Session)
	return s, ok && s != nil
}
