// Package adapter defines the boundary for request completion notifications.
//
// Adapters publish one event per parsed request to a downstream system
// after its manifest is written. Publish failures never change the parse
// outcome.
package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/justapithecus/partflow/metrics"
)

// EventTypeRequestCompleted is the event_type of RequestCompletedEvent.
const EventTypeRequestCompleted = "request_completed"

// DefaultBackoff is the base delay between publish attempts.
const DefaultBackoff = 500 * time.Millisecond

// RequestCompletedEvent is the payload published when a request terminates.
type RequestCompletedEvent struct {
	Version       string `json:"version"`
	EventType     string `json:"event_type"` // always "request_completed"
	RequestID     string `json:"request_id"`
	Day           string `json:"day"`
	Outcome       string `json:"outcome"` // success, error, aborted
	Message       string `json:"message,omitempty"`
	ErrorKind     string `json:"error_kind,omitempty"`
	ManifestPath  string `json:"manifest_path,omitempty"`
	Storage       string `json:"storage"`
	Timestamp     string `json:"timestamp"` // RFC 3339
	FieldCount    int    `json:"field_count"`
	FileCount     int    `json:"file_count"`
	FileBytes     int64  `json:"file_bytes"`
	BytesReceived int64  `json:"bytes_received"`
	DurationMs    int64  `json:"duration_ms"`
}

// Adapter publishes request completion events to a downstream system.
type Adapter interface {
	// Publish sends the event. Must respect context cancellation.
	Publish(ctx context.Context, event *RequestCompletedEvent) error

	// Close releases adapter resources.
	Close() error
}

// Retry calls fn up to attempts times with exponential backoff starting
// at base. It stops early when fn's error satisfies permanent.
func Retry(ctx context.Context, name string, attempts int, base time.Duration, permanent func(error) bool, fn func(context.Context) error) error {
	if base <= 0 {
		base = DefaultBackoff
	}

	var lastErr error
	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: context canceled: %w", name, err)
		}
		if i > 0 {
			backoff := time.Duration(1<<uint(i-1)) * base
			select {
			case <-ctx.Done():
				return fmt.Errorf("%s: context canceled during backoff: %w", name, ctx.Err())
			case <-time.After(backoff):
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if permanent != nil && permanent(lastErr) {
			return fmt.Errorf("%s: non-retriable error: %w", name, lastErr)
		}
	}
	return fmt.Errorf("%s: failed after %d attempts: %w", name, attempts, lastErr)
}

// Instrumented counts publish outcomes on a collector.
type Instrumented struct {
	inner     Adapter
	collector *metrics.Collector
}

// NewInstrumented wraps inner.
func NewInstrumented(inner Adapter, collector *metrics.Collector) *Instrumented {
	return &Instrumented{inner: inner, collector: collector}
}

// Publish implements Adapter.
func (a *Instrumented) Publish(ctx context.Context, event *RequestCompletedEvent) error {
	if err := a.inner.Publish(ctx, event); err != nil {
		a.collector.IncAdapterPublishFailure()
		return err
	}
	a.collector.IncAdapterPublishSuccess()
	return nil
}

// Close implements Adapter.
func (a *Instrumented) Close() error {
	return a.inner.Close()
}

var _ Adapter = (*Instrumented)(nil)
