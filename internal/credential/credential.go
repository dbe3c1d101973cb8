// Package credential holds the ambient bearer token and knows how to refresh it.
package credential

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
)

var (
	ErrNoCredential    = errors.New("no credential to refresh")
	ErrRefreshRejected = errors.New("credential refresh rejected")
)

// Store is the shared, mutable credential. Backends read it on every request.
type Store struct {
	mu    sync.RWMutex
	email string
	token string
}

// NewStore creates an empty credential Store.
func NewStore() *Store {
	return &Store{}
}

// Set installs the credential for email.
func (s *Store) Set(email, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.email = email
	s.token = token
}

// Token returns the current bearer token.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Email returns the email the credential belongs to.
func (s *Store) Email() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.email
}

// Clear forgets the credential.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.email = ""
	s.token = ""
}

// Refresher obtains a fresh credential and installs it in the shared Store.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// HTTPRefresher calls the authentication collaborator's refresh endpoint.
type HTTPRefresher struct {
	url    string
	store  *Store
	client *http.Client
}

// NewHTTPRefresher creates a refresher posting to url.
func NewHTTPRefresher(url string, store *Store, timeout time.Duration) *HTTPRefresher {
	return &HTTPRefresher{
		url:    url,
		store:  store,
		client: &http.Client{Timeout: timeout},
	}
}

type refreshResponse struct {
	Token   string `json:"token"`
	Message string `json:"message"`
}

// Refresh exchanges the current token for a new one. Any non-2xx answer, or a 2xx answer
// without a token, is a rejection.
func (r *HTTPRefresher) Refresh(ctx context.Context) error {
	email, token := r.store.Email(), r.store.Token()
	if email == "" || token == "" {
		return ErrNoCredential
	}

	payload, err := json.Marshal(map[string]string{"email": email})
	if err != nil {
		return fmt.Errorf("encoding refresh request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("refresh request: %w", err)
	}
	defer resp.Body.Close()

	var body refreshResponse
	_ = json.NewDecoder(resp.Body).Decode(&body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status %d: %s", ErrRefreshRejected, resp.StatusCode, body.Message)
	}
	if body.Token == "" {
		return fmt.Errorf("%w: response carried no token", ErrRefreshRejected)
	}

	r.store.Set(email, body.Token)
	return nil
}

// Compile-time check that HTTPRefresher implements Refresher.
var _ Refresher = (*HTTPRefresher)(nil)
