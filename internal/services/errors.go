package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUpstreamNotReady marks a provider 404/403 while an asset is still
	// processing. Waiters consume it; it never reaches the job boundary.
	ErrUpstreamNotReady = errors.New("upstream not ready")
	ErrUpstreamTimeout  = errors.New("upstream timeout")
	ErrUpstreamRequest  = errors.New("upstream request failed")
	ErrModeration       = errors.New("moderation service failure")
	ErrValidation       = errors.New("validation error")
	ErrConfiguration    = errors.New("configuration error")
	ErrTransient        = errors.New("transient failure")
)

var markerKinds = []struct {
	marker error
	kind   string
}{
	{ErrUpstreamNotReady, "upstream_not_ready"},
	{ErrUpstreamTimeout, "upstream_timeout"},
	{ErrUpstreamRequest, "upstream_request"},
	{ErrModeration, "moderation"},
	{ErrValidation, "validation"},
	{ErrConfiguration, "configuration"},
	{ErrTransient, "transient"},
}

// ServiceError carries the marker and stage context attached by Wrap.
type ServiceError struct {
	Marker    error
	Stage     string
	Operation string
	Message   string
	Err       error
}

func (e *ServiceError) Error() string {
	detail := buildDetail(e.Stage, e.Operation, e.Message)
	if e.Err != nil {
		return fmt.Sprintf("%v: %s: %v", e.Marker, detail, e.Err)
	}
	return fmt.Sprintf("%v: %s", e.Marker, detail)
}

func (e *ServiceError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Marker}
	}
	return []error{e.Marker, e.Err}
}

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	if marker == nil {
		marker = ErrTransient
	}
	return &ServiceError{
		Marker:    marker,
		Stage:     strings.TrimSpace(stage),
		Operation: strings.TrimSpace(operation),
		Message:   strings.TrimSpace(message),
		Err:       err,
	}
}

// ErrorDetails is the structured view of a job failure used in logs and the
// persisted job record.
type ErrorDetails struct {
	Kind      string
	Stage     string
	Operation string
	Message   string
}

// Details extracts the marker kind and stage context from err. Errors that were
// never wrapped report kind "unknown" and their full text as the message.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	details := ErrorDetails{Kind: Kind(err), Message: err.Error()}
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		details.Stage = svcErr.Stage
		details.Operation = svcErr.Operation
		if svcErr.Message != "" {
			details.Message = svcErr.Message
		}
		if svcErr.Err != nil {
			if details.Message != "" && svcErr.Message != "" {
				details.Message = svcErr.Message + ": " + svcErr.Err.Error()
			} else {
				details.Message = svcErr.Err.Error()
			}
		}
	}
	return details
}

// Kind returns the short name of the first marker err carries.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	for _, entry := range markerKinds {
		if errors.Is(err, entry.marker) {
			return entry.kind
		}
	}
	return "unknown"
}

// Retryable reports whether a failed job should be rescheduled. Validation and
// configuration failures will fail the same way on every attempt.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, ErrConfiguration):
		return false
	default:
		return true
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	for _, part := range []string{stage, operation, message} {
		if part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
