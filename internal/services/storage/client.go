// Package storage talks to the object storage service that holds original
// and processed image bytes. Records carry opaque storage references;
// payloads only move through here.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"gloss/internal/config"
	"gloss/internal/services"
)

// Store uploads originals and fetches payloads by reference.
type Store interface {
	// PutOriginal uploads one original image and returns its storage
	// reference.
	PutOriginal(ctx context.Context, name string, payload io.Reader) (string, error)
	// Fetch streams the payload behind a reference. The caller closes the
	// returned reader.
	Fetch(ctx context.Context, ref string) (io.ReadCloser, error)
}

// HTTPDoer describes the HTTP client used by the storage service.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type httpStore struct {
	baseURL string
	apiKey  string
	client  HTTPDoer
}

// NewConfiguredStore returns a Store bound to the configured storage
// endpoint using the default HTTP client.
func NewConfiguredStore(cfg *config.Config) Store {
	return NewHTTPStore(cfg.Storage.BaseURL, cfg.Storage.APIKey, http.DefaultClient)
}

// NewHTTPStore constructs an HTTP-backed Store.
func NewHTTPStore(baseURL, apiKey string, client HTTPDoer) Store {
	return &httpStore{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  strings.TrimSpace(apiKey),
		client:  client,
	}
}

type putResponse struct {
	Ref string `json:"ref"`
}

func (s *httpStore) PutOriginal(ctx context.Context, name string, payload io.Reader) (string, error) {
	if payload == nil {
		return "", services.Wrap(services.ErrInvalidInput, "storage", "put", "payload is required", nil)
	}
	data, err := io.ReadAll(payload)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "storage", "put", "read payload", err)
	}
	if len(data) == 0 {
		return "", services.Wrap(services.ErrInvalidInput, "storage", "put", "payload is empty", nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/objects", bytes.NewReader(data))
	if err != nil {
		return "", services.Wrap(services.ErrPermanent, "storage", "put", "build request", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	if name = strings.TrimSpace(name); name != "" {
		req.Header.Set("X-Object-Name", name)
	}
	s.authorize(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "storage", "put", "request failed", err)
	}
	defer resp.Body.Close()

	if err := services.ClassifyHTTPStatus("storage", "put", resp); err != nil {
		return "", err
	}

	var decoded putResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", services.Wrap(services.ErrTransient, "storage", "put", "decode response", err)
	}
	if decoded.Ref == "" {
		return "", services.Wrap(services.ErrPermanent, "storage", "put", "response missing ref", nil)
	}
	return decoded.Ref, nil
}

func (s *httpStore) Fetch(ctx context.Context, ref string) (io.ReadCloser, error) {
	if strings.TrimSpace(ref) == "" {
		return nil, services.Wrap(services.ErrInvalidInput, "storage", "fetch", "ref is required", nil)
	}
	fetchURL := s.baseURL + "/v1/objects?ref=" + url.QueryEscape(ref)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrPermanent, "storage", "fetch", "build request", err)
	}
	s.authorize(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "storage", "fetch", "request failed", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, services.Wrap(services.ErrNotFound, "storage", "fetch", "object "+ref, nil)
	}
	if err := services.ClassifyHTTPStatus("storage", "fetch", resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp.Body, nil
}

func (s *httpStore) authorize(req *http.Request) {
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}
}
