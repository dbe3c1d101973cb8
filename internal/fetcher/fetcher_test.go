package fetcher_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/kiranshivaraju/jobsync/internal/backend"
	"github.com/kiranshivaraju/jobsync/internal/backend/mock"
	"github.com/kiranshivaraju/jobsync/internal/fetcher"
	"github.com/kiranshivaraju/jobsync/internal/session"
	"github.com/kiranshivaraju/jobsync/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const owner = "ann@example.com"

var ann = models.Identity{Email: owner, Role: models.RoleStandard, Token: "t"}

func setup(t *testing.T, mb *mock.Backend) (*fetcher.Orchestrator, *session.Store, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	store := session.NewStore(session.WithClock(clock))
	store.Init(context.Background(), ann)
	return fetcher.New(ann, mb, store, 5*time.Minute, nil), store, clock
}

func serverJobs(ids ...string) []models.JobRecord {
	out := make([]models.JobRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.JobRecord{JobID: id, CurrentStatus: models.StatusSaved, UserID: owner})
	}
	return out
}

func TestLoad_EmptyCacheFetches(t *testing.T) {
	mb := &mock.Backend{
		FetchAllFunc: func(_ context.Context, email string) ([]models.JobRecord, error) {
			assert.Equal(t, owner, email)
			return serverJobs("j1", "j2"), nil
		},
	}
	o, _, _ := setup(t, mb)

	entry, err := o.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, entry.Records, 2)
	assert.False(t, entry.IsLoading)
	assert.Equal(t, 1, mb.Calls("FetchAll"))
}

func TestLoad_StaleEntryFetchesOnceFreshEntryReused(t *testing.T) {
	mb := &mock.Backend{
		FetchAllFunc: func(context.Context, string) ([]models.JobRecord, error) {
			return serverJobs("fresh"), nil
		},
	}
	o, store, clock := setup(t, mb)
	store.Set(ann.Key(), serverJobs("cached"))
	clock.Advance(6 * time.Minute)

	entry, err := o.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh", entry.Records[0].JobID)
	assert.Equal(t, 1, mb.Calls("FetchAll"), "stale entry triggers exactly one fetch")

	clock.Advance(time.Minute)
	again, err := o.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, mb.Calls("FetchAll"), "fresh entry is served without a fetch")
	assert.Equal(t, entry, again, "entry reused verbatim")
}

func TestRefresh_AlwaysFetches(t *testing.T) {
	mb := &mock.Backend{}
	o, store, _ := setup(t, mb)
	store.Set(ann.Key(), serverJobs("cached"))

	_, err := o.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, mb.Calls("FetchAll"))
}

func TestLoad_FailureKeepsPriorEntry(t *testing.T) {
	mb := &mock.Backend{
		FetchAllFunc: func(context.Context, string) ([]models.JobRecord, error) {
			return nil, backend.ErrUnreachable
		},
	}
	o, store, clock := setup(t, mb)
	store.Set(ann.Key(), serverJobs("last-known-good"))
	clock.Advance(10 * time.Minute)

	_, err := o.Load(context.Background())
	assert.ErrorIs(t, err, backend.ErrUnreachable)

	entry, ok := store.Get(ann.Key())
	require.True(t, ok)
	assert.Equal(t, "last-known-good", entry.Records[0].JobID)
	assert.False(t, entry.IsLoading)
}

func TestLoad_FailureCreatesNoEntry(t *testing.T) {
	mb := &mock.Backend{
		FetchAllFunc: func(context.Context, string) ([]models.JobRecord, error) {
			return nil, backend.ErrTimeout
		},
	}
	o, store, _ := setup(t, mb)

	_, err := o.Load(context.Background())
	assert.ErrorIs(t, err, backend.ErrTimeout)

	_, ok := store.Get(ann.Key())
	assert.False(t, ok)
}

func TestRefresh_OvertakenResponseDiscarded(t *testing.T) {
	var store *session.Store
	mb := &mock.Backend{
		FetchAllFunc: func(context.Context, string) ([]models.JobRecord, error) {
			store.Set(ann.Key(), serverJobs("from-status-apply"))
			return serverJobs("older-fetch"), nil
		},
	}
	o, s, _ := setup(t, mb)
	store = s

	entry, err := o.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "from-status-apply", entry.Records[0].JobID)
}

func TestRefresh_IdentityChangedMidFetch(t *testing.T) {
	var store *session.Store
	mb := &mock.Backend{
		FetchAllFunc: func(context.Context, string) ([]models.JobRecord, error) {
			store.Init(context.Background(), models.Identity{Email: "bob@example.com", Role: models.RoleStandard, Token: "t"})
			return serverJobs("ann-job"), nil
		},
	}
	o, s, _ := setup(t, mb)
	store = s

	_, err := o.Refresh(context.Background())
	assert.ErrorIs(t, err, fetcher.ErrOwnerInactive)

	bob := models.Identity{Email: "bob@example.com", Role: models.RoleStandard, Token: "t"}
	_, ok := store.Get(bob.Key())
	assert.False(t, ok, "late response never lands in the new identity's cache")
}

func TestRefresh_RoleSwitchMidFetch(t *testing.T) {
	annOps := models.Identity{Email: owner, Role: models.RoleOperations, OperatorEmail: "ops@example.com"}
	started := make(chan struct{})
	release := make(chan struct{})
	mb := &mock.Backend{
		FetchAllFunc: func(context.Context, string) ([]models.JobRecord, error) {
			close(started)
			<-release
			return serverJobs("from-standard"), nil
		},
	}
	o, store, _ := setup(t, mb)

	errCh := make(chan error, 1)
	go func() {
		_, err := o.Refresh(context.Background())
		errCh <- err
	}()
	<-started

	store.Init(context.Background(), annOps)
	close(release)

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, fetcher.ErrOwnerInactive)
	case <-time.After(2 * time.Second):
		t.Fatal("Refresh did not return")
	}

	_, ok := store.Get(annOps.Key())
	assert.False(t, ok, "standard-role response never lands in the operations view")
	assert.True(t, store.IsStale(annOps.Key(), time.Hour))
}

func TestRefresh_ConcurrentCallersShareOneFetch(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	mb := &mock.Backend{
		FetchAllFunc: func(context.Context, string) ([]models.JobRecord, error) {
			once.Do(func() { close(started) })
			<-release
			return serverJobs("j1"), nil
		},
	}
	o, _, _ := setup(t, mb)

	var wg sync.WaitGroup
	errs := make([]error, 3)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, errs[0] = o.Refresh(context.Background())
	}()
	<-started

	for i := 1; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = o.Load(context.Background())
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, mb.Calls("FetchAll"))
}

func TestRefresh_CallerCancellation(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	mb := &mock.Backend{
		FetchAllFunc: func(context.Context, string) ([]models.JobRecord, error) {
			<-release
			return nil, errors.New("never reached")
		},
	}
	o, _, _ := setup(t, mb)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := o.Refresh(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
