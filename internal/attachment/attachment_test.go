package attachment_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kiranshivaraju/jobsync/internal/attachment"
	"github.com/kiranshivaraju/jobsync/internal/backend/mock"
	"github.com/kiranshivaraju/jobsync/internal/config"
	"github.com/kiranshivaraju/jobsync/internal/session"
	"github.com/kiranshivaraju/jobsync/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const owner = "ann@example.com"

var ann = models.Identity{Email: owner, Role: models.RoleStandard, Token: "t"}

func cloudinaryConfig(baseURL string) config.CloudinaryConfig {
	return config.CloudinaryConfig{
		BaseURL:      baseURL,
		CloudName:    "demo",
		UploadPreset: "unsigned_jobs",
		Timeout:      5 * time.Second,
	}
}

var png = models.Image{Name: "shot.png", ContentType: "image/png", Data: []byte("\x89PNG fake image")}

// --- CloudinaryUploader ---

func TestCloudinaryUploader_Success(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1_1/demo/auto/upload", r.URL.Path)

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "unsigned_jobs", r.FormValue("upload_preset"))

		file, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "shot.png", hdr.Filename)
		assert.Equal(t, "image/png", hdr.Header.Get("Content-Type"))
		data, _ := io.ReadAll(file)
		assert.Equal(t, png.Data, data)

		json.NewEncoder(w).Encode(map[string]string{"secure_url": "https://res.cloudinary.com/demo/shot.png"})
	}))
	defer ts.Close()

	u, err := attachment.NewCloudinaryUploader(cloudinaryConfig(ts.URL))
	require.NoError(t, err)

	url, err := u.Upload(context.Background(), png)
	require.NoError(t, err)
	assert.Equal(t, "https://res.cloudinary.com/demo/shot.png", url)
}

func TestCloudinaryUploader_ErrorBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"Upload preset not found"}}`))
	}))
	defer ts.Close()

	u, err := attachment.NewCloudinaryUploader(cloudinaryConfig(ts.URL))
	require.NoError(t, err)

	_, err = u.Upload(context.Background(), png)
	assert.ErrorIs(t, err, attachment.ErrUploadFailed)
	assert.Contains(t, err.Error(), "Upload preset not found")
}

func TestCloudinaryUploader_MissingURL(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	u, err := attachment.NewCloudinaryUploader(cloudinaryConfig(ts.URL))
	require.NoError(t, err)

	_, err = u.Upload(context.Background(), png)
	assert.ErrorIs(t, err, attachment.ErrUploadFailed)
}

func TestCloudinaryUploader_EmptyFile(t *testing.T) {
	u, err := attachment.NewCloudinaryUploader(cloudinaryConfig("http://127.0.0.1:1"))
	require.NoError(t, err)

	_, err = u.Upload(context.Background(), models.Image{Name: "empty.png"})
	assert.ErrorIs(t, err, attachment.ErrEmptyFile)
}

func TestNewCloudinaryUploader_Disabled(t *testing.T) {
	_, err := attachment.NewCloudinaryUploader(config.CloudinaryConfig{BaseURL: "https://api.cloudinary.com"})
	assert.ErrorIs(t, err, attachment.ErrUploadsDisabled)
}

// --- Attacher ---

type fakeUploader struct {
	mu       sync.Mutex
	inFlight atomic.Int32
	peak     int32
	fail     map[string]bool
}

func (f *fakeUploader) Upload(_ context.Context, img models.Image) (string, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	f.mu.Lock()
	if n > f.peak {
		f.peak = n
	}
	f.mu.Unlock()
	time.Sleep(10 * time.Millisecond)
	if f.fail[img.Name] {
		return "", errors.New("storage rejected file")
	}
	return "https://cdn.example.com/" + img.Name, nil
}

func seededStore(t *testing.T, records ...models.JobRecord) *session.Store {
	t.Helper()
	s := session.NewStore()
	s.Init(context.Background(), ann)
	s.Set(ann.Key(), records)
	return s
}

func images(names ...string) []models.Image {
	out := make([]models.Image, 0, len(names))
	for _, n := range names {
		out = append(out, models.Image{Name: n, ContentType: "image/png", Data: []byte(n)})
	}
	return out
}

func TestAttach_RecordsSuccessfulUploads(t *testing.T) {
	store := seededStore(t, models.JobRecord{JobID: "j1", Attachments: []string{"https://cdn.example.com/old.png"}})

	var gotEdit models.JobEdit
	mb := &mock.Backend{
		EditJobFunc: func(_ context.Context, email, jobID string, edit models.JobEdit) ([]models.JobRecord, error) {
			assert.Equal(t, owner, email)
			assert.Equal(t, "j1", jobID)
			gotEdit = edit
			return []models.JobRecord{{JobID: "j1", Attachments: edit.AttachmentURLs}}, nil
		},
	}
	up := &fakeUploader{fail: map[string]bool{"b.png": true}}
	a := attachment.NewAttacher(up, mb, store, 2, nil)

	err := a.Attach(context.Background(), ann, "j1", images("a.png", "b.png", "c.png"))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"https://cdn.example.com/old.png",
		"https://cdn.example.com/a.png",
		"https://cdn.example.com/c.png",
	}, gotEdit.AttachmentURLs, "existing URLs kept, failed image skipped, order preserved")

	r, _ := store.Find(ann.Key(), "j1")
	assert.Len(t, r.Attachments, 3)
	assert.LessOrEqual(t, up.peak, int32(2))
}

func TestAttach_NothingUploaded(t *testing.T) {
	store := seededStore(t, models.JobRecord{JobID: "j1"})
	mb := &mock.Backend{}
	a := attachment.NewAttacher(&fakeUploader{fail: map[string]bool{"a.png": true}}, mb, store, 1, nil)

	err := a.Attach(context.Background(), ann, "j1", images("a.png"))
	assert.ErrorIs(t, err, attachment.ErrNothingUploaded)
	assert.Equal(t, 0, mb.Calls("EditJob"))
}

func TestAttach_NoUploaderConfigured(t *testing.T) {
	a := attachment.NewAttacher(nil, &mock.Backend{}, seededStore(t), 1, nil)
	assert.ErrorIs(t, a.Attach(context.Background(), ann, "j1", images("a.png")), attachment.ErrUploadsDisabled)
}

func TestStart_DetachedFromCaller(t *testing.T) {
	store := seededStore(t, models.JobRecord{JobID: "j1"})
	mb := &mock.Backend{
		EditJobFunc: func(_ context.Context, _, _ string, edit models.JobEdit) ([]models.JobRecord, error) {
			return []models.JobRecord{{JobID: "j1", Attachments: edit.AttachmentURLs}}, nil
		},
	}
	a := attachment.NewAttacher(&fakeUploader{}, mb, store, 1, nil)

	ctx, cancel := context.WithCancel(context.Background())
	a.Start(ctx, ann, "j1", images("a.png"))
	cancel()
	a.Wait()

	r, _ := store.Find(ann.Key(), "j1")
	assert.Equal(t, []string{"https://cdn.example.com/a.png"}, r.Attachments)
}

func TestStart_FailureIsSwallowed(t *testing.T) {
	store := seededStore(t, models.JobRecord{JobID: "j1"})
	a := attachment.NewAttacher(&fakeUploader{fail: map[string]bool{"a.png": true}}, &mock.Backend{}, store, 1, nil)

	a.Start(context.Background(), ann, "j1", images("a.png"))
	a.Wait()

	r, ok := store.Find(ann.Key(), "j1")
	require.True(t, ok, "job stays visible")
	assert.Empty(t, r.Attachments)
}
