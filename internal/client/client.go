// Package client wraps the daemon's HTTP API for CLI use.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"gloss/internal/api"
	"gloss/internal/config"
	"gloss/internal/services"
)

// Client talks to a running gloss daemon.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New constructs a client for the configured API bind address.
func New(cfg *config.Config) *Client {
	return NewWithAddress(cfg.Paths.APIBind, cfg.Paths.APIToken)
}

// NewWithAddress constructs a client for an explicit host:port.
func NewWithAddress(addr, token string) *Client {
	base := strings.TrimSpace(addr)
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &Client{
		baseURL: strings.TrimRight(base, "/"),
		token:   strings.TrimSpace(token),
		http:    &http.Client{Timeout: 5 * time.Minute},
	}
}

// Status fetches daemon health.
func (c *Client) Status(ctx context.Context) (*api.DaemonStatus, error) {
	var out api.DaemonStatus
	if err := c.call(ctx, http.MethodGet, "/api/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Submit uploads a new batch, replacing any prior one.
func (c *Client) Submit(ctx context.Context, req api.SubmitRequest) (string, error) {
	var out api.SubmitResponse
	if err := c.call(ctx, http.MethodPost, "/api/batch", req, &out); err != nil {
		return "", err
	}
	return out.BatchID, nil
}

// Batch fetches the active batch snapshot, or nil when none exists.
func (c *Client) Batch(ctx context.Context) (*api.Batch, error) {
	var out api.BatchResponse
	if err := c.call(ctx, http.MethodGet, "/api/batch", nil, &out); err != nil {
		return nil, err
	}
	return out.Batch, nil
}

// Progress fetches the completion read model, or nil when no batch exists.
func (c *Client) Progress(ctx context.Context) (*api.Progress, error) {
	var out api.ProgressResponse
	if err := c.call(ctx, http.MethodGet, "/api/progress", nil, &out); err != nil {
		return nil, err
	}
	return out.Progress, nil
}

// Retouch applies one instruction to a completed image.
func (c *Client) Retouch(ctx context.Context, imageID, instruction string) (*api.Image, error) {
	var out api.RetouchResponse
	path := "/api/images/" + imageID + "/retouch"
	if err := c.call(ctx, http.MethodPost, path, api.RetouchRequest{Instruction: instruction}, &out); err != nil {
		return nil, err
	}
	return &out.Image, nil
}

// Requeue returns one failed image to the queue.
func (c *Client) Requeue(ctx context.Context, imageID string) error {
	return c.call(ctx, http.MethodPost, "/api/images/"+imageID+"/requeue", nil, nil)
}

// ExportArchive packages completed images into a local zip.
func (c *Client) ExportArchive(ctx context.Context) (string, error) {
	var out api.ExportArchiveResponse
	if err := c.call(ctx, http.MethodPost, "/api/export/archive", nil, &out); err != nil {
		return "", err
	}
	return out.ArchivePath, nil
}

// ExportDam delivers completed images to the DAM target.
func (c *Client) ExportDam(ctx context.Context, conn api.DamConnection) (*api.ExportReport, error) {
	var out api.ExportDamResponse
	if err := c.call(ctx, http.MethodPost, "/api/export/dam", api.ExportDamRequest{Connection: conn}, &out); err != nil {
		return nil, err
	}
	return &out.Report, nil
}

// SetSummary replaces the batch summary text.
func (c *Client) SetSummary(ctx context.Context, text string) error {
	return c.call(ctx, http.MethodPost, "/api/summary", api.SummaryRequest{Summary: text}, nil)
}

// Reset discards the active batch.
func (c *Client) Reset(ctx context.Context) error {
	return c.call(ctx, http.MethodPost, "/api/reset", nil, nil)
}

func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("daemon unreachable at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// decodeError rebuilds a taxonomy-tagged error from the daemon's uniform
// error body so CLI callers can branch on kind with errors.Is.
func decodeError(resp *http.Response) error {
	var body api.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Error == "" {
		body.Error = fmt.Sprintf("daemon returned status %d", resp.StatusCode)
	}
	marker := markerFor(body.Kind, resp.StatusCode)
	return services.Wrap(marker, "", "", body.Error, nil)
}

func markerFor(kind string, status int) error {
	switch kind {
	case services.KindInvalidInput:
		return services.ErrInvalidInput
	case services.KindNotFound:
		return services.ErrNotFound
	case services.KindConflict:
		return services.ErrConflict
	case services.KindInvalidState:
		return services.ErrInvalidState
	case services.KindPermanent:
		return services.ErrPermanent
	case services.KindTransient:
		return services.ErrTransient
	}
	switch status {
	case http.StatusBadRequest:
		return services.ErrInvalidInput
	case http.StatusNotFound:
		return services.ErrNotFound
	case http.StatusConflict:
		return services.ErrConflict
	default:
		return services.ErrTransient
	}
}
