package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation    = errors.New("validation error")
	ErrRecognition   = errors.New("recognition error")
	ErrCancelled     = errors.New("cancelled")
	ErrFsWatch       = errors.New("watch folder error")
	ErrExport        = errors.New("export error")
	ErrNotFound      = errors.New("not found")
	ErrConfiguration = errors.New("configuration error")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrRecognition
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind names the taxonomy bucket an error falls into.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindRecognition   Kind = "recognition"
	KindCancelled     Kind = "cancelled"
	KindFsWatch       Kind = "fs_watch"
	KindExport        Kind = "export"
	KindNotFound      Kind = "not_found"
	KindConfiguration Kind = "configuration"
	KindUnknown       Kind = "unknown"
)

// ErrorDetails is the classified view of an error surfaced to clients and logs.
type ErrorDetails struct {
	Kind    Kind
	Message string
}

// Details classifies err against the sentinel markers.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	return ErrorDetails{Kind: classify(err), Message: strings.TrimSpace(err.Error())}
}

// IsCancellation reports whether err stems from a cancelled context or an
// explicit cancellation marker.
func IsCancellation(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled)
}

func classify(err error) Kind {
	switch {
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case IsCancellation(err):
		return KindCancelled
	case errors.Is(err, ErrFsWatch):
		return KindFsWatch
	case errors.Is(err, ErrExport):
		return KindExport
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrRecognition):
		return KindRecognition
	default:
		return KindUnknown
	}
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
