// Package authgate replays a backend request once after silently refreshing an expired
// credential.
package authgate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kiranshivaraju/jobsync/internal/backend"
	"github.com/kiranshivaraju/jobsync/internal/credential"
)

// ErrReauthRequired means the credential could not be refreshed. Identity state has already
// been cleared; the caller should send the user to the login screen.
var ErrReauthRequired = errors.New("re-authentication required")

// Gate guards requests against credential expiry.
type Gate struct {
	refresher credential.Refresher
	onReauth  func(ctx context.Context)
	logger    *slog.Logger
}

// New creates a Gate. onReauth runs when a refresh fails and must clear all local identity
// state; it may be nil.
func New(refresher credential.Refresher, onReauth func(ctx context.Context), logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{refresher: refresher, onReauth: onReauth, logger: logger}
}

// Guard calls fn and, if it reports an invalid credential, refreshes once and calls fn one
// more time. fn is never invoked more than twice. The refresh is detached from ctx
// cancellation once started.
func Guard[T any](ctx context.Context, g *Gate, fn func(ctx context.Context) (T, error)) (T, error) {
	res, err := fn(ctx)
	if !errors.Is(err, backend.ErrCredentialInvalid) {
		return res, err
	}

	g.logger.Info("credential rejected, attempting refresh", "error", err)

	detached := context.WithoutCancel(ctx)
	if rerr := g.refresher.Refresh(detached); rerr != nil {
		g.logger.Warn("credential refresh failed, clearing identity", "error", rerr)
		if g.onReauth != nil {
			g.onReauth(detached)
		}
		var zero T
		return zero, fmt.Errorf("%w: %v", ErrReauthRequired, rerr)
	}

	g.logger.Info("credential refreshed, replaying request")
	return fn(ctx)
}

// Wrap returns a JobsBackend whose every call goes through the gate.
func (g *Gate) Wrap(b backend.JobsBackend) backend.JobsBackend {
	return &guardedBackend{gate: g, next: b}
}
