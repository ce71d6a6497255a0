package main

import (
	"io"
	"strings"
	"testing"
)

func TestStatusLabelPlain(t *testing.T) {
	tests := []struct {
		status string
		want   string
	}{
		{"completed", "Completed"},
		{"failed", "Failed"},
		{"processing", "Processing"},
		{"queued", "Queued"},
		{"pending", "Pending"},
	}
	for _, tt := range tests {
		if got := statusLabel(tt.status, false); got != tt.want {
			t.Errorf("statusLabel(%q, false) = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestStatusLabelColorized(t *testing.T) {
	got := statusLabel("completed", true)
	if !strings.HasPrefix(got, ansiGreen) || !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected green wrapping, got %q", got)
	}
	got = statusLabel("failed", true)
	if !strings.HasPrefix(got, ansiRed) {
		t.Fatalf("expected red wrapping, got %q", got)
	}
	// Unknown statuses pass through uncolored.
	if got := statusLabel("archived", true); got != "Archived" {
		t.Fatalf("unexpected label for unknown status: %q", got)
	}
}

func TestShouldColorizeNonFileWriter(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatal("expected false for non-file writer")
	}
}

func TestRenderTablePadsShortRows(t *testing.T) {
	out := renderTable(
		[]string{"ID", "Name", "Attempts"},
		[][]string{
			{"abc12345", "a.jpg", "2"},
			{"def67890"},
		},
		2,
	)
	for _, want := range []string{"ID", "Name", "Attempts", "abc12345", "a.jpg", "def67890"} {
		if !strings.Contains(out, want) {
			t.Errorf("table output missing %q:\n%s", want, out)
		}
	}

	lines := strings.Split(out, "\n")
	if len(lines) < 5 {
		t.Fatalf("unexpected table shape:\n%s", out)
	}
	width := len([]rune(lines[0]))
	for _, line := range lines[1:] {
		if len([]rune(line)) != width {
			t.Fatalf("ragged table row %q:\n%s", line, out)
		}
	}
}

func TestRenderTableEmptyHeaders(t *testing.T) {
	if out := renderTable(nil, nil); out != "" {
		t.Fatalf("expected empty output, got %q", out)
	}
}

func TestShortID(t *testing.T) {
	if got := shortID("0123456789abcdef"); got != "01234567" {
		t.Fatalf("shortID = %q", got)
	}
	if got := shortID("abc"); got != "abc" {
		t.Fatalf("shortID = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("truncate = %q", got)
	}
	long := strings.Repeat("x", 20) + " tail"
	got := truncate(long, 20)
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("expected ellipsis, got %q", got)
	}
	if len(got) > 23 {
		t.Fatalf("truncated string too long: %q", got)
	}
}
