// Package ai calls the image enhancement service that turns originals into
// processed results.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"gloss/internal/config"
	"gloss/internal/services"
)

// Processor runs enhancement and retouch requests against the AI backend.
type Processor interface {
	// Process enhances one original according to the batch instructions and
	// returns the reference of the produced image.
	Process(ctx context.Context, originalRef, instructions string) (string, error)
	// Retouch applies one instruction to an already processed image and
	// returns the reference of the new version.
	Retouch(ctx context.Context, processedRef, instruction string) (string, error)
}

// HTTPDoer describes the HTTP client used by the AI service.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type httpProcessor struct {
	baseURL string
	apiKey  string
	model   string
	client  HTTPDoer
}

// NewConfiguredProcessor returns a Processor bound to the configured AI
// endpoint using the default HTTP client.
func NewConfiguredProcessor(cfg *config.Config) Processor {
	return NewHTTPProcessor(cfg.AI.BaseURL, cfg.AI.APIKey, cfg.AI.Model, http.DefaultClient)
}

// NewHTTPProcessor constructs an HTTP-backed Processor.
func NewHTTPProcessor(baseURL, apiKey, model string, client HTTPDoer) Processor {
	return &httpProcessor{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  strings.TrimSpace(apiKey),
		model:   strings.TrimSpace(model),
		client:  client,
	}
}

type processRequest struct {
	Model        string `json:"model"`
	OriginalRef  string `json:"original_ref,omitempty"`
	ProcessedRef string `json:"processed_ref,omitempty"`
	Instructions string `json:"instructions"`
}

type processResponse struct {
	ProcessedRef string `json:"processed_ref"`
	Error        string `json:"error,omitempty"`
}

func (p *httpProcessor) Process(ctx context.Context, originalRef, instructions string) (string, error) {
	if strings.TrimSpace(originalRef) == "" {
		return "", services.Wrap(services.ErrInvalidInput, "ai", "process", "original ref is required", nil)
	}
	return p.call(ctx, "process", p.baseURL+"/v1/process", processRequest{
		Model:        p.model,
		OriginalRef:  originalRef,
		Instructions: instructions,
	})
}

func (p *httpProcessor) Retouch(ctx context.Context, processedRef, instruction string) (string, error) {
	if strings.TrimSpace(processedRef) == "" {
		return "", services.Wrap(services.ErrInvalidInput, "ai", "retouch", "processed ref is required", nil)
	}
	return p.call(ctx, "retouch", p.baseURL+"/v1/retouch", processRequest{
		Model:        p.model,
		ProcessedRef: processedRef,
		Instructions: instruction,
	})
}

func (p *httpProcessor) call(ctx context.Context, operation, url string, payload processRequest) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", services.Wrap(services.ErrPermanent, "ai", operation, "encode request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", services.Wrap(services.ErrPermanent, "ai", operation, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "ai", operation, "request failed", err)
	}
	defer resp.Body.Close()

	if err := services.ClassifyHTTPStatus("ai", operation, resp); err != nil {
		return "", err
	}

	var decoded processResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", services.Wrap(services.ErrTransient, "ai", operation, "decode response", err)
	}
	if decoded.ProcessedRef == "" {
		return "", services.Wrap(services.ErrPermanent, "ai", operation, "response missing processed ref", nil)
	}
	return decoded.ProcessedRef, nil
}
