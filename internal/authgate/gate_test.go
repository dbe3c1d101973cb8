package authgate_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/kiranshivaraju/jobsync/internal/authgate"
	"github.com/kiranshivaraju/jobsync/internal/backend"
	"github.com/kiranshivaraju/jobsync/internal/backend/mock"
	"github.com/kiranshivaraju/jobsync/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- helpers ---

type stubRefresher struct {
	err   error
	calls atomic.Int32
	onRun func()
}

func (r *stubRefresher) Refresh(_ context.Context) error {
	r.calls.Add(1)
	if r.onRun != nil {
		r.onRun()
	}
	return r.err
}

var errCredential = fmt.Errorf("%w: Invalid token or expired", backend.ErrCredentialInvalid)

func newGate(r *stubRefresher, reauth *atomic.Int32) *authgate.Gate {
	return authgate.New(r, func(context.Context) {
		if reauth != nil {
			reauth.Add(1)
		}
	}, nil)
}

// --- Guard ---

func TestGuard_PassThroughOnSuccess(t *testing.T) {
	r := &stubRefresher{}
	calls := 0
	got, err := authgate.Guard(context.Background(), newGate(r, nil), func(context.Context) (string, error) {
		calls++
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 1, calls)
	assert.Equal(t, int32(0), r.calls.Load())
}

func TestGuard_OtherErrorsUntouched(t *testing.T) {
	r := &stubRefresher{}
	calls := 0
	_, err := authgate.Guard(context.Background(), newGate(r, nil), func(context.Context) (int, error) {
		calls++
		return 0, backend.ErrDuplicateJob
	})

	assert.ErrorIs(t, err, backend.ErrDuplicateJob)
	assert.Equal(t, 1, calls)
	assert.Equal(t, int32(0), r.calls.Load())
}

func TestGuard_RefreshThenReplayOnce(t *testing.T) {
	r := &stubRefresher{}
	calls := 0
	got, err := authgate.Guard(context.Background(), newGate(r, nil), func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errCredential
		}
		return "after-refresh", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "after-refresh", got)
	assert.Equal(t, 2, calls)
	assert.Equal(t, int32(1), r.calls.Load())
}

func TestGuard_AtMostTwoInvocations(t *testing.T) {
	r := &stubRefresher{}
	calls := 0
	_, err := authgate.Guard(context.Background(), newGate(r, nil), func(context.Context) (string, error) {
		calls++
		return "", errCredential
	})

	assert.ErrorIs(t, err, backend.ErrCredentialInvalid, "second result is returned as-is")
	assert.Equal(t, 2, calls)
	assert.Equal(t, int32(1), r.calls.Load())
}

func TestGuard_RefreshFailureIsTerminal(t *testing.T) {
	r := &stubRefresher{err: errors.New("refresh endpoint said no")}
	var reauth atomic.Int32
	calls := 0
	_, err := authgate.Guard(context.Background(), newGate(r, &reauth), func(context.Context) (string, error) {
		calls++
		return "", errCredential
	})

	assert.ErrorIs(t, err, authgate.ErrReauthRequired)
	assert.Equal(t, 1, calls, "no replay after a failed refresh")
	assert.Equal(t, int32(1), reauth.Load())
}

func TestGuard_RefreshNotCanceledByCaller(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var refreshCtxErr error
	r := &stubRefresher{}
	r.onRun = func() { cancel() }

	refresher := refresherFunc(func(rctx context.Context) error {
		r.Refresh(rctx)
		refreshCtxErr = rctx.Err()
		return nil
	})
	g := authgate.New(refresher, nil, nil)

	authgate.Guard(ctx, g, func(context.Context) (string, error) {
		return "", errCredential
	})
	assert.NoError(t, refreshCtxErr)
}

type refresherFunc func(ctx context.Context) error

func (f refresherFunc) Refresh(ctx context.Context) error { return f(ctx) }

// --- Wrap ---

func TestWrap_GuardsEveryCall(t *testing.T) {
	fetches := 0
	mb := &mock.Backend{
		FetchAllFunc: func(context.Context, string) ([]models.JobRecord, error) {
			fetches++
			if fetches == 1 {
				return nil, errCredential
			}
			return []models.JobRecord{{JobID: "j1"}}, nil
		},
		UpdateStatusFunc: func(context.Context, string, string, models.Status) ([]models.JobRecord, error) {
			return nil, errCredential
		},
	}
	r := &stubRefresher{}
	b := newGate(r, nil).Wrap(mb)

	jobs, err := b.FetchAll(context.Background(), "ann@example.com")
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
	assert.Equal(t, 2, mb.Calls("FetchAll"))

	_, err = b.UpdateStatus(context.Background(), "ann@example.com", "j1", models.StatusApplied)
	assert.ErrorIs(t, err, backend.ErrCredentialInvalid)
	assert.Equal(t, 2, mb.Calls("UpdateStatus"))
	assert.Equal(t, "mock", b.Name())
}
