// Package dam publishes processed images to the configured digital asset
// management provider.
package dam

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"gloss/internal/config"
	"gloss/internal/services"
)

// PublishRequest describes one asset delivery.
type PublishRequest struct {
	Ref        string
	TargetPath string
	Visibility string
	Metadata   map[string]string
}

// Publisher delivers processed images to the DAM.
type Publisher interface {
	// Publish sends one processed image and returns the remote asset
	// reference assigned by the provider.
	Publish(ctx context.Context, req PublishRequest) (string, error)
}

// HTTPDoer describes the HTTP client used by the DAM service.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type httpPublisher struct {
	provider       string
	apiURL         string
	credentialsRef string
	client         HTTPDoer
}

// NewConfiguredPublisher returns a Publisher bound to the configured DAM
// endpoint using the default HTTP client.
func NewConfiguredPublisher(cfg *config.Config) Publisher {
	return NewHTTPPublisher(cfg.Dam.Provider, cfg.Dam.APIURL, cfg.Dam.CredentialsRef, http.DefaultClient)
}

// NewHTTPPublisher constructs an HTTP-backed Publisher.
func NewHTTPPublisher(provider, apiURL, credentialsRef string, client HTTPDoer) Publisher {
	return &httpPublisher{
		provider:       strings.TrimSpace(provider),
		apiURL:         strings.TrimRight(strings.TrimSpace(apiURL), "/"),
		credentialsRef: strings.TrimSpace(credentialsRef),
		client:         client,
	}
}

type publishPayload struct {
	Provider   string            `json:"provider"`
	Ref        string            `json:"ref"`
	TargetPath string            `json:"target_path"`
	Visibility string            `json:"visibility,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

type publishResponse struct {
	AssetID string `json:"asset_id"`
}

func (p *httpPublisher) Publish(ctx context.Context, req PublishRequest) (string, error) {
	if strings.TrimSpace(req.Ref) == "" {
		return "", services.Wrap(services.ErrInvalidInput, "dam", "publish", "ref is required", nil)
	}
	if strings.TrimSpace(req.TargetPath) == "" {
		return "", services.Wrap(services.ErrInvalidInput, "dam", "publish", "target path is required", nil)
	}

	body, err := json.Marshal(publishPayload{
		Provider:   p.provider,
		Ref:        req.Ref,
		TargetPath: req.TargetPath,
		Visibility: req.Visibility,
		Metadata:   req.Metadata,
	})
	if err != nil {
		return "", services.Wrap(services.ErrPermanent, "dam", "publish", "encode request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL+"/v1/assets", bytes.NewReader(body))
	if err != nil {
		return "", services.Wrap(services.ErrPermanent, "dam", "publish", "build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.credentialsRef != "" {
		httpReq.Header.Set("X-Credentials-Ref", p.credentialsRef)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "dam", "publish", "request failed", err)
	}
	defer resp.Body.Close()

	if err := services.ClassifyHTTPStatus("dam", "publish", resp); err != nil {
		return "", err
	}

	var decoded publishResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", services.Wrap(services.ErrTransient, "dam", "publish", "decode response", err)
	}
	if decoded.AssetID == "" {
		return "", services.Wrap(services.ErrPermanent, "dam", "publish", "response missing asset id", nil)
	}
	return decoded.AssetID, nil
}
