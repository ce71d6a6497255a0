package logging_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"gloss/internal/logging"
	"gloss/internal/services"
)

func annotatedContext() context.Context {
	ctx := services.WithBatchID(context.Background(), "batch-1")
	ctx = services.WithImageID(ctx, "image-2")
	return services.WithRequestID(ctx, "req-3")
}

func TestContextFieldsExtractsIdentifiers(t *testing.T) {
	fields := logging.ContextFields(annotatedContext())
	if len(fields) != 3 {
		t.Fatalf("expected 3 fields, got %d: %v", len(fields), fields)
	}

	got := make(map[string]string, len(fields))
	for _, attr := range fields {
		got[attr.Key] = attr.Value.String()
	}
	want := map[string]string{
		logging.FieldBatchID:       "batch-1",
		logging.FieldImageID:       "image-2",
		logging.FieldCorrelationID: "req-3",
	}
	for key, value := range want {
		if got[key] != value {
			t.Errorf("field %s = %q, want %q", key, got[key], value)
		}
	}
}

func TestContextFieldsEmptyContext(t *testing.T) {
	if fields := logging.ContextFields(context.Background()); len(fields) != 0 {
		t.Fatalf("expected no fields, got %v", fields)
	}
}

func TestWithContextAnnotatesRecords(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	logging.WithContext(annotatedContext(), logger).Info("processing image")

	output := buf.String()
	for _, want := range []string{
		logging.FieldBatchID + "=batch-1",
		logging.FieldImageID + "=image-2",
		logging.FieldCorrelationID + "=req-3",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("log output missing %q: %s", want, output)
		}
	}
}

func TestWithContextUnannotatedReturnsSameLogger(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	if got := logging.WithContext(context.Background(), logger); got != logger {
		t.Fatal("expected the original logger when context carries no identifiers")
	}
}

func TestNewComponentLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	logging.NewComponentLogger(logger, "upload").Info("batch created")
	if !strings.Contains(buf.String(), logging.FieldComponent+"=upload") {
		t.Fatalf("missing component attribute: %s", buf.String())
	}

	// A nil base falls back to a no-op logger.
	logging.NewComponentLogger(nil, "upload").Info("dropped")
}
