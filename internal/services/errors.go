package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Sentinel markers for the engine error taxonomy. Components wrap failures
// with one of these so callers can classify without inspecting messages.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrTransient    = errors.New("transient failure")
	ErrPermanent    = errors.New("permanent failure")
)

// Kind names, stable across the API surface and the image error_kind column.
const (
	KindInvalidInput = "invalid_input"
	KindNotFound     = "not_found"
	KindConflict     = "conflict"
	KindInvalidState = "invalid_state"
	KindTransient    = "transient"
	KindPermanent    = "permanent"
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind maps an error to its taxonomy name. Unclassified errors are treated as
// transient: an external collaborator failed in a way worth retrying.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrInvalidState):
		return KindInvalidState
	case errors.Is(err, ErrPermanent):
		return KindPermanent
	case errors.Is(err, context.DeadlineExceeded):
		return KindTransient
	default:
		return KindTransient
	}
}

// Retryable reports whether the engine may retry the failed operation
// automatically. Only transient failures qualify; everything else needs a
// corrected request or explicit user action.
func Retryable(err error) bool {
	return Kind(err) == KindTransient
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
