// Package transport adapts byte streams to ingest.Source.
//
// A Reader pumps any io.Reader into an ingest.Receiver in fixed-size
// chunks, honoring Pause/Resume through a gate checked between reads.
// NewRequest builds a Reader from an incoming HTTP request.
package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/justapithecus/partflow/ingest"
	"github.com/justapithecus/partflow/iox"
)

// DefaultChunkSize is the read buffer size used when Options.ChunkSize is 0.
const DefaultChunkSize = 64 << 10

// ErrClosed is returned by Pause and Resume once the body was consumed.
var ErrClosed = errors.New("transport closed")

// Options configures a Reader.
type Options struct {
	// ChunkSize is the maximum number of bytes per Write.
	ChunkSize int
}

// Reader is an ingest.Source over an io.Reader.
type Reader struct {
	headers   ingest.Headers
	body      io.Reader
	chunkSize int
	gate      *iox.Gate
}

var _ ingest.Source = (*Reader)(nil)

// NewReader creates a source delivering body with the given headers.
// Header names are lower-cased.
func NewReader(headers map[string]string, body io.Reader, opts Options) *Reader {
	size := opts.ChunkSize
	if size <= 0 {
		size = DefaultChunkSize
	}
	return &Reader{
		headers:   ingest.NormalizeHeaders(headers),
		body:      body,
		chunkSize: size,
		gate:      iox.NewGate(),
	}
}

// NewRequest creates a source for an HTTP request body.
//
// net/http moves Content-Length and Transfer-Encoding out of the header
// map, so both are restored from the request fields. A body of unknown
// length without a transfer-encoding (HTTP/2) is reported as chunked.
func NewRequest(req *http.Request, opts Options) *Reader {
	headers := make(map[string]string, len(req.Header)+2)
	for k, v := range req.Header {
		headers[strings.ToLower(k)] = strings.Join(v, ", ")
	}
	switch {
	case len(req.TransferEncoding) > 0:
		headers["transfer-encoding"] = strings.Join(req.TransferEncoding, ", ")
		delete(headers, "content-length")
	case req.ContentLength >= 0:
		headers["content-length"] = strconv.FormatInt(req.ContentLength, 10)
	default:
		headers["transfer-encoding"] = "chunked"
	}

	var body io.Reader = http.NoBody
	if req.Body != nil {
		body = req.Body
	}
	return NewReader(headers, body, opts)
}

// Headers implements ingest.Source.
func (r *Reader) Headers() ingest.Headers {
	return r.headers
}

// Pause implements ingest.Flow.
func (r *Reader) Pause() error {
	return gateErr(r.gate.Pause())
}

// Resume implements ingest.Flow.
func (r *Reader) Resume() error {
	return gateErr(r.gate.Resume())
}

// Run implements ingest.Source. Context cancellation and a truncated body
// (io.ErrUnexpectedEOF) abort the request; other read errors are passed
// to the receiver unchanged.
func (r *Reader) Run(ctx context.Context, recv ingest.Receiver) error {
	defer r.gate.Close()

	buf := make([]byte, r.chunkSize)
	for {
		if err := r.gate.Wait(ctx); err != nil {
			recv.Abort()
			return nil
		}

		n, err := r.body.Read(buf)
		if n > 0 {
			if _, werr := recv.Write(buf[:n]); werr != nil {
				return nil
			}
		}

		switch {
		case err == nil:
			continue
		case errors.Is(err, io.EOF):
			_ = recv.End()
			return nil
		case errors.Is(err, io.ErrUnexpectedEOF), ctx.Err() != nil:
			recv.Abort()
			return nil
		default:
			recv.Fail(err)
			return nil
		}
	}
}

func gateErr(err error) error {
	if errors.Is(err, iox.ErrGateClosed) {
		return ErrClosed
	}
	return err
}
