package transport

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/justapithecus/partflow/ingest"
)

const body = "--b\r\n" +
	"Content-Disposition: form-data; name=\"foo\"\r\n" +
	"\r\n" +
	"bar\r\n" +
	"--b--\r\n"

func headers() map[string]string {
	return map[string]string{
		"Content-Type":   "multipart/form-data; boundary=b",
		"Content-Length": strconv.Itoa(len(body)),
	}
}

func TestReader_Collect(t *testing.T) {
	for _, size := range []int{0, 1, 5, 1024} {
		src := NewReader(headers(), strings.NewReader(body), Options{ChunkSize: size})
		fields, err := ingest.Collect(t.Context(), src, ingest.Config{})
		if err != nil {
			t.Fatalf("chunk %d: %v", size, err)
		}
		if string(fields["foo"]) != "bar" {
			t.Errorf("chunk %d: fields = %v", size, fields)
		}
	}
}

func TestReader_HeadersLowerCased(t *testing.T) {
	src := NewReader(headers(), strings.NewReader(""), Options{})
	h := src.Headers()
	if h["content-type"] != "multipart/form-data; boundary=b" || h["content-length"] != strconv.Itoa(len(body)) {
		t.Errorf("headers = %v", h)
	}
}

func TestReader_UnexpectedEOFAborts(t *testing.T) {
	r := io.MultiReader(strings.NewReader(body[:20]), iotest.ErrReader(io.ErrUnexpectedEOF))
	src := NewReader(headers(), r, Options{})

	var aborted bool
	p := ingest.NewParser(ingest.Config{}, ingest.Handlers{OnAborted: func() { aborted = true }})
	err := p.Parse(t.Context(), src)
	if !errors.Is(err, ingest.ErrRequestAborted) {
		t.Fatalf("error = %v, want ErrRequestAborted", err)
	}
	if !aborted {
		t.Error("OnAborted not called")
	}
}

func TestReader_ReadErrorPassesThrough(t *testing.T) {
	boom := errors.New("disk on fire")
	r := io.MultiReader(strings.NewReader(body[:20]), iotest.ErrReader(boom))
	src := NewReader(headers(), r, Options{})

	_, err := ingest.Collect(t.Context(), src, ingest.Config{})
	if err != boom {
		t.Fatalf("error = %v, want read error unchanged", err)
	}
}

func TestReader_TruncatedBody(t *testing.T) {
	src := NewReader(headers(), strings.NewReader(body[:30]), Options{})
	_, err := ingest.Collect(t.Context(), src, ingest.Config{})
	if err == nil {
		t.Fatal("expected error for body without close delimiter")
	}
}

func TestReader_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	src := NewReader(headers(), strings.NewReader(body), Options{})
	_, err := ingest.Collect(ctx, src, ingest.Config{})
	if !errors.Is(err, ingest.ErrRequestAborted) {
		t.Fatalf("error = %v, want ErrRequestAborted", err)
	}
}

func TestReader_PauseBlocksUntilResume(t *testing.T) {
	src := NewReader(headers(), iotest.OneByteReader(strings.NewReader(body)), Options{})

	resumed := make(chan struct{})
	var pausedAt, fieldsAfterPause int64
	var p *ingest.Parser
	p = ingest.NewParser(ingest.Config{}, ingest.Handlers{
		OnProgress: func(received, _ int64) {
			if received == 10 {
				if !p.Pause() {
					t.Error("Pause failed")
				}
				pausedAt = received
				go func() {
					time.Sleep(20 * time.Millisecond)
					close(resumed)
					_ = src.Resume()
				}()
			}
		},
		OnField: func(ingest.Field) error {
			select {
			case <-resumed:
			default:
				t.Error("field delivered while paused")
			}
			fieldsAfterPause++
			return nil
		},
	})
	if err := p.Parse(t.Context(), src); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if pausedAt != 10 || fieldsAfterPause != 1 {
		t.Errorf("pausedAt=%d fields=%d", pausedAt, fieldsAfterPause)
	}
}

func TestReader_PauseAfterRun(t *testing.T) {
	src := NewReader(headers(), strings.NewReader(body), Options{})
	if _, err := ingest.Collect(t.Context(), src, ingest.Config{}); err != nil {
		t.Fatal(err)
	}
	if err := src.Pause(); !errors.Is(err, ErrClosed) {
		t.Errorf("Pause = %v, want ErrClosed", err)
	}
	if err := src.Resume(); !errors.Is(err, ErrClosed) {
		t.Errorf("Resume = %v, want ErrClosed", err)
	}
}

func TestNewRequest_Headers(t *testing.T) {
	tests := []struct {
		name        string
		setup       func() *Reader
		wantLength  string
		wantChunked bool
	}{
		{
			name: "known length",
			setup: func() *Reader {
				req := httptest.NewRequest("POST", "/upload", strings.NewReader(body))
				req.Header.Set("Content-Type", "multipart/form-data; boundary=b")
				return NewRequest(req, Options{})
			},
			wantLength: strconv.Itoa(len(body)),
		},
		{
			name: "chunked",
			setup: func() *Reader {
				req := httptest.NewRequest("POST", "/upload", io.NopCloser(strings.NewReader(body)))
				req.ContentLength = -1
				req.TransferEncoding = []string{"chunked"}
				return NewRequest(req, Options{})
			},
			wantChunked: true,
		},
		{
			name: "unknown length without transfer-encoding",
			setup: func() *Reader {
				req := httptest.NewRequest("POST", "/upload", io.NopCloser(strings.NewReader(body)))
				req.ContentLength = -1
				return NewRequest(req, Options{})
			},
			wantChunked: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := tt.setup().Headers()
			if got := h["content-length"]; got != tt.wantLength {
				t.Errorf("content-length = %q, want %q", got, tt.wantLength)
			}
			if _, ok := h["transfer-encoding"]; ok != tt.wantChunked {
				t.Errorf("transfer-encoding present = %v, want %v", ok, tt.wantChunked)
			}
		})
	}
}

func TestNewRequest_Parse(t *testing.T) {
	req := httptest.NewRequest("POST", "/upload", strings.NewReader(body))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=b")

	fields, err := ingest.Collect(req.Context(), NewRequest(req, Options{ChunkSize: 8}), ingest.Config{})
	if err != nil {
		t.Fatal(err)
	}
	if string(fields["foo"]) != "bar" {
		t.Errorf("fields = %v", fields)
	}
}
