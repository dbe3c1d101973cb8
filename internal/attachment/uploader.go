// Package attachment uploads files to object storage and records their URLs on jobs.
package attachment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/kiranshivaraju/jobsync/internal/config"
	"github.com/kiranshivaraju/jobsync/pkg/models"
)

var (
	ErrUploadsDisabled = errors.New("object storage uploads are not configured")
	ErrUploadFailed    = errors.New("upload failed")
	ErrEmptyFile       = errors.New("file is empty")
)

// Uploader stores one file and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, img models.Image) (string, error)
}

// CloudinaryUploader uses Cloudinary's unsigned upload API.
type CloudinaryUploader struct {
	endpoint string
	preset   string
	client   *http.Client
}

// NewCloudinaryUploader returns an Uploader for cfg, or ErrUploadsDisabled when the cloud name
// or upload preset is missing.
func NewCloudinaryUploader(cfg config.CloudinaryConfig) (*CloudinaryUploader, error) {
	if !cfg.UploadsEnabled() {
		return nil, ErrUploadsDisabled
	}
	return &CloudinaryUploader{
		endpoint: fmt.Sprintf("%s/v1_1/%s/auto/upload", strings.TrimRight(cfg.BaseURL, "/"), cfg.CloudName),
		preset:   cfg.UploadPreset,
		client:   &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type uploadResponse struct {
	SecureURL string `json:"secure_url"`
	Error     *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (u *CloudinaryUploader) Upload(ctx context.Context, img models.Image) (string, error) {
	if len(img.Data) == 0 {
		return "", ErrEmptyFile
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	contentType := img.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(img.Data)
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, fileName(img)))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return "", fmt.Errorf("create file part: %w", err)
	}
	if _, err := part.Write(img.Data); err != nil {
		return "", fmt.Errorf("write file part: %w", err)
	}
	if err := mw.WriteField("upload_preset", u.preset); err != nil {
		return "", fmt.Errorf("write preset field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint, &buf)
	if err != nil {
		return "", fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := u.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read upload response: %w", err)
	}

	var out uploadResponse
	decodeErr := json.Unmarshal(raw, &out)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(raw))
		if decodeErr == nil && out.Error != nil && out.Error.Message != "" {
			msg = out.Error.Message
		}
		return "", fmt.Errorf("%w: status %d: %s", ErrUploadFailed, resp.StatusCode, msg)
	}
	if decodeErr != nil {
		return "", fmt.Errorf("decode upload response: %w", decodeErr)
	}
	if out.SecureURL == "" {
		return "", fmt.Errorf("%w: response carried no secure_url", ErrUploadFailed)
	}
	return out.SecureURL, nil
}

func fileName(img models.Image) string {
	if img.Name != "" {
		return img.Name
	}
	return fmt.Sprintf("paste-%d", time.Now().UnixNano())
}
