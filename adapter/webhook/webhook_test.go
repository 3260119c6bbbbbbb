package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/justapithecus/partflow/adapter"
	"github.com/justapithecus/partflow/iox"
	"github.com/justapithecus/partflow/metrics"
)

func testEvent() *adapter.RequestCompletedEvent {
	return &adapter.RequestCompletedEvent{
		Version:       "0.3.0",
		EventType:     adapter.EventTypeRequestCompleted,
		RequestID:     "req-001",
		Day:           "2026-02-07",
		Outcome:       "error",
		Message:       "maxPartsSize exceeded, received 1025 bytes of part data",
		ErrorKind:     "max_parts_size_exceeded",
		Storage:       "memory",
		Timestamp:     "2026-02-07T12:00:00Z",
		FieldCount:    1,
		BytesReceived: 1200,
		DurationMs:    3,
	}
}

const fastBackoff = time.Millisecond

func TestPublish_Success(t *testing.T) {
	var received adapter.RequestCompletedEvent
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content-type = %s, want application/json", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &received); err != nil {
			t.Errorf("unmarshal: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	a, err := New(Config{URL: ts.URL})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer iox.DiscardClose(a)

	if err := a.Publish(t.Context(), testEvent()); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if received.RequestID != "req-001" || received.ErrorKind != "max_parts_size_exceeded" {
		t.Errorf("received = %+v", received)
	}
}

func TestPublish_CustomHeaders(t *testing.T) {
	var auth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	a, err := New(Config{URL: ts.URL, Headers: map[string]string{"Authorization": "Bearer secret"}})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer iox.DiscardClose(a)

	if err := a.Publish(t.Context(), testEvent()); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if auth != "Bearer secret" {
		t.Errorf("Authorization = %q", auth)
	}
}

func TestPublish_EventHeadersStableAcrossRetries(t *testing.T) {
	var attempts atomic.Int32
	var mu sync.Mutex
	var keys []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(EventHeader) != adapter.EventTypeRequestCompleted {
			t.Errorf("%s = %q", EventHeader, r.Header.Get(EventHeader))
		}
		mu.Lock()
		keys = append(keys, r.Header.Get(IdempotencyHeader))
		mu.Unlock()
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	a, err := New(Config{URL: ts.URL, Retries: 1, Backoff: fastBackoff})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer iox.DiscardClose(a)

	if err := a.Publish(t.Context(), testEvent()); err != nil {
		t.Fatalf("publish: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(keys) != 2 || keys[0] != "req-001" || keys[1] != "req-001" {
		t.Errorf("idempotency keys = %v, want req-001 twice", keys)
	}
}

func TestPublish_Retries(t *testing.T) {
	tests := []struct {
		name         string
		failures     int32
		status       int
		retries      int
		wantErr      bool
		wantAttempts int32
	}{
		{"succeeds after 5xx", 2, http.StatusInternalServerError, 3, false, 3},
		{"exhausts retries", 100, http.StatusBadGateway, 2, true, 3},
		{"4xx fails immediately", 100, http.StatusBadRequest, 3, true, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var attempts atomic.Int32
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				if attempts.Add(1) <= tt.failures {
					w.WriteHeader(tt.status)
					return
				}
				w.WriteHeader(http.StatusOK)
			}))
			defer ts.Close()

			a, err := New(Config{URL: ts.URL, Retries: tt.retries, Backoff: fastBackoff})
			if err != nil {
				t.Fatalf("new: %v", err)
			}
			defer iox.DiscardClose(a)

			err = a.Publish(t.Context(), testEvent())
			if (err != nil) != tt.wantErr {
				t.Fatalf("publish error = %v, wantErr %v", err, tt.wantErr)
			}
			if got := attempts.Load(); got != tt.wantAttempts {
				t.Errorf("attempts = %d, want %d", got, tt.wantAttempts)
			}
			if tt.wantErr {
				var statusErr *StatusError
				if !errors.As(err, &statusErr) || statusErr.Code != tt.status {
					t.Errorf("error = %v, want StatusError %d", err, tt.status)
				}
			}
		})
	}
}

func TestPublish_ContextCanceled(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()
	defer close(release)

	a, err := New(Config{URL: ts.URL, Timeout: 10 * time.Second})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer iox.DiscardClose(a)

	ctx, cancel := context.WithTimeout(t.Context(), 100*time.Millisecond)
	defer cancel()

	if err := a.Publish(ctx, testEvent()); err == nil {
		t.Fatal("expected error on canceled context")
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("expected error for empty URL")
	}
	if _, err := New(Config{URL: "http://x", Retries: -1}); err == nil {
		t.Error("expected error for negative retries")
	}

	a, err := New(Config{URL: "http://x"})
	if err != nil {
		t.Fatal(err)
	}
	if a.config.Timeout != DefaultTimeout {
		t.Errorf("timeout = %v, want %v", a.config.Timeout, DefaultTimeout)
	}
}

func TestInstrumented_CountsOutcomes(t *testing.T) {
	var fail atomic.Bool
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	inner, err := New(Config{URL: ts.URL})
	if err != nil {
		t.Fatal(err)
	}
	collector := metrics.NewCollector("memory", "serve")
	a := adapter.NewInstrumented(inner, collector)
	defer iox.DiscardClose(a)

	if err := a.Publish(t.Context(), testEvent()); err != nil {
		t.Fatal(err)
	}
	fail.Store(true)
	if err := a.Publish(t.Context(), testEvent()); err == nil {
		t.Fatal("expected 403 error")
	}

	snap := collector.Snapshot()
	if snap.AdapterPublishSuccess != 1 || snap.AdapterPublishFailure != 1 {
		t.Errorf("publishes success=%d failure=%d", snap.AdapterPublishSuccess, snap.AdapterPublishFailure)
	}
}
