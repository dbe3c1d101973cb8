package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/kiranshivaraju/jobsync/pkg/models"
)

// envelope is the union of every response body shape the server uses.
type envelope struct {
	Message     string             `json:"message"`
	AllJobs     []models.JobRecord `json:"allJobs"`
	NewJobList  []models.JobRecord `json:"NewJobList"`
	UpdatedJobs []models.JobRecord `json:"updatedJobs"`
}

type userDetails struct {
	Email string `json:"email"`
}

// transport performs one JSON round trip and classifies the outcome.
type transport struct {
	baseURL string
	client  *http.Client
}

func newTransport(opts Options) *transport {
	return &transport{baseURL: opts.BaseURL, client: opts.httpClient()}
}

func (t *transport) do(ctx context.Context, method, path string, body any, headers map[string]string) (*envelope, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyError(err)
	}

	return classifyResponse(resp.StatusCode, raw)
}

// classifyResponse maps a status code and body onto the typed error kinds.
// Credential sentinels win over the status code because the server sends them with 200 too.
func classifyResponse(status int, raw []byte) (*envelope, error) {
	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if decodeErr == nil && IsCredentialSentinel(env.Message) {
		return nil, fmt.Errorf("%w: %s", ErrCredentialInvalid, env.Message)
	}

	if status < 200 || status > 299 {
		if decodeErr == nil && env.Message == duplicateJobMessage {
			return nil, ErrDuplicateJob
		}
		msg := env.Message
		if decodeErr != nil || msg == "" {
			msg = http.StatusText(status)
		}
		return nil, fmt.Errorf("%w: status %d: %s", ErrRequestFailed, status, msg)
	}

	if decodeErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, decodeErr)
	}
	return &env, nil
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	return fmt.Errorf("%w: %v", ErrUnreachable, err)
}

// nonNil keeps an empty server list distinct from "no list at all" for callers that
// replace the cache wholesale.
func nonNil(records []models.JobRecord) []models.JobRecord {
	if records == nil {
		return []models.JobRecord{}
	}
	return records
}
