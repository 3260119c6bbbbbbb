// Package server exposes the parser over HTTP.
//
// Routes:
//   - POST /upload: parse a multipart body, store its files, return the
//     request report as JSON
//   - GET /metrics: Prometheus exposition of the metrics collector
//   - GET /health: liveness
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/justapithecus/partflow/adapter"
	"github.com/justapithecus/partflow/ingest"
	"github.com/justapithecus/partflow/lode"
	"github.com/justapithecus/partflow/log"
	"github.com/justapithecus/partflow/metrics"
	"github.com/justapithecus/partflow/runtime"
	"github.com/justapithecus/partflow/transport"
	"github.com/justapithecus/partflow/types"
)

// RequestIDHeader carries a caller-supplied request id in, and the
// effective request id out.
const RequestIDHeader = "X-Request-Id"

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 10 * time.Second

// Config configures a Server.
type Config struct {
	// Parser configures every request's parser.
	Parser ingest.Config
	// ChunkSize is the body read size (0 = transport default).
	ChunkSize int
	// MaxBodySize rejects larger bodies (0 = unlimited).
	MaxBodySize int64
	// ReadTimeout is the http.Server read timeout (0 = none).
	ReadTimeout time.Duration

	Store      *lode.FileStore
	FieldsOnly bool
	Catalog    *lode.Catalog
	Adapter    adapter.Adapter

	Logger    *log.Logger
	Collector *metrics.Collector
}

// Server handles uploads.
type Server struct {
	cfg    Config
	logger *log.Logger
	mux    *http.ServeMux
}

// New creates a server. The collector is registered on a private
// Prometheus registry.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Nop()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(metrics.NewExporter(cfg.Collector))

	s := &Server{cfg: cfg, logger: logger, mux: http.NewServeMux()}
	s.mux.HandleFunc("POST /upload", s.handleUpload)
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	s.mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": types.Version})
	})
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:        addr,
		Handler:     s.mux,
		ReadTimeout: s.cfg.ReadTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", map[string]any{"addr": addr})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	meta := types.NewRequestMeta(r.RemoteAddr)
	if id := r.Header.Get(RequestIDHeader); id != "" {
		meta.RequestID = id
	}

	if s.cfg.MaxBodySize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodySize)
	}

	o, err := runtime.NewRequestOrchestrator(&runtime.RequestConfig{
		Meta:       meta,
		Parser:     s.cfg.Parser,
		Store:      s.cfg.Store,
		FieldsOnly: s.cfg.FieldsOnly,
		Catalog:    s.cfg.Catalog,
		Adapter:    s.cfg.Adapter,
		Logger:     s.logger.ForRequest(meta),
		Collector:  s.cfg.Collector,
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	src := transport.NewRequest(r, transport.Options{ChunkSize: s.cfg.ChunkSize})
	result := o.Execute(r.Context(), src)
	code := runtime.ExitCode(result)

	w.Header().Set(RequestIDHeader, meta.RequestID)
	writeJSON(w, httpStatus(result, code), runtime.BuildRequestReport(result, nil, code))
}

// httpStatus maps a request result to a response status. An adapter
// failure alone does not fail the upload.
func httpStatus(result *runtime.RequestResult, code int) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(result.Err, &maxBytes), errors.Is(result.Err, ingest.ErrMaxPartsSizeExceeded):
		return http.StatusRequestEntityTooLarge
	case errors.Is(result.Err, ingest.ErrBadContentType):
		return http.StatusUnsupportedMediaType
	}

	switch code {
	case runtime.ExitParseError, runtime.ExitAborted:
		return http.StatusBadRequest
	case runtime.ExitStorageFailure:
		if result.Err == nil && result.StorageErr == nil {
			return http.StatusOK
		}
		return http.StatusInternalServerError
	default:
		return http.StatusOK
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
