package ai_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"gloss/internal/services"
	"gloss/internal/services/ai"
)

type doerFunc func(req *http.Request) (*http.Response, error)

func (f doerFunc) Do(req *http.Request) (*http.Response, error) { return f(req) }

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func TestProcessSuccess(t *testing.T) {
	var captured *http.Request
	processor := ai.NewHTTPProcessor("http://ai.local/", "key", "gloss-enhance-1", doerFunc(func(req *http.Request) (*http.Response, error) {
		captured = req
		return jsonResponse(http.StatusOK, `{"processed_ref":"proc/abc"}`), nil
	}))

	ref, err := processor.Process(context.Background(), "orig/abc", "warm tones")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if ref != "proc/abc" {
		t.Fatalf("ref = %q", ref)
	}
	if captured.URL.String() != "http://ai.local/v1/process" {
		t.Fatalf("url = %s", captured.URL)
	}
	if got := captured.Header.Get("Authorization"); got != "Bearer key" {
		t.Fatalf("authorization = %q", got)
	}
}

func TestProcessStatusClassification(t *testing.T) {
	cases := []struct {
		name   string
		status int
		marker error
	}{
		{"server error is transient", http.StatusServiceUnavailable, services.ErrTransient},
		{"throttling is transient", http.StatusTooManyRequests, services.ErrTransient},
		{"rejection is permanent", http.StatusBadRequest, services.ErrPermanent},
		{"unauthorized is permanent", http.StatusUnauthorized, services.ErrPermanent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			processor := ai.NewHTTPProcessor("http://ai.local", "", "m", doerFunc(func(*http.Request) (*http.Response, error) {
				return jsonResponse(tc.status, `{"error":"nope"}`), nil
			}))
			_, err := processor.Process(context.Background(), "orig/x", "fix")
			if !errors.Is(err, tc.marker) {
				t.Fatalf("status %d: got %v, want marker %v", tc.status, err, tc.marker)
			}
		})
	}
}

func TestProcessNetworkErrorIsTransient(t *testing.T) {
	processor := ai.NewHTTPProcessor("http://ai.local", "", "m", doerFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	}))
	_, err := processor.Process(context.Background(), "orig/x", "fix")
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("network error should be transient, got %v", err)
	}
}

func TestProcessRequiresOriginalRef(t *testing.T) {
	processor := ai.NewHTTPProcessor("http://ai.local", "", "m", doerFunc(func(*http.Request) (*http.Response, error) {
		t.Fatal("request should not be sent")
		return nil, nil
	}))
	_, err := processor.Process(context.Background(), "  ", "fix")
	if !errors.Is(err, services.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestRetouchHitsRetouchEndpoint(t *testing.T) {
	processor := ai.NewHTTPProcessor("http://ai.local", "", "m", doerFunc(func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/v1/retouch" {
			t.Fatalf("path = %s", req.URL.Path)
		}
		return jsonResponse(http.StatusOK, `{"processed_ref":"proc/v2"}`), nil
	}))
	ref, err := processor.Retouch(context.Background(), "proc/v1", "remove blemish")
	if err != nil {
		t.Fatalf("Retouch: %v", err)
	}
	if ref != "proc/v2" {
		t.Fatalf("ref = %q", ref)
	}
}

func TestProcessMissingRefInResponseIsPermanent(t *testing.T) {
	processor := ai.NewHTTPProcessor("http://ai.local", "", "m", doerFunc(func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{}`), nil
	}))
	_, err := processor.Process(context.Background(), "orig/x", "fix")
	if !errors.Is(err, services.ErrPermanent) {
		t.Fatalf("expected permanent, got %v", err)
	}
}
