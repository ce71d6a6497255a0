package services

import (
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ClassifyHTTPStatus maps a non-success HTTP response to the error taxonomy.
// Server errors and throttling are transient; everything else the remote
// explicitly rejected is permanent. Success responses return nil.
func ClassifyHTTPStatus(component, operation string, resp *http.Response) error {
	if resp.StatusCode < http.StatusMultipleChoices {
		return nil
	}
	message := fmt.Sprintf("status %d", resp.StatusCode)
	if snippet := readBodySnippet(resp.Body); snippet != "" {
		message = fmt.Sprintf("status %d: %s", resp.StatusCode, snippet)
	}
	marker := ErrPermanent
	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		marker = ErrTransient
	case resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode == http.StatusRequestTimeout:
		marker = ErrTransient
	}
	return Wrap(marker, component, operation, message, nil)
}

func readBodySnippet(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 512))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
