// Package runtime orchestrates one multipart request end to end: parse,
// store file parts, write the manifest and catalog entry, publish the
// completion event.
package runtime

import (
	"context"
	"errors"
	"time"

	"github.com/justapithecus/partflow/adapter"
	"github.com/justapithecus/partflow/ingest"
	"github.com/justapithecus/partflow/lode"
	"github.com/justapithecus/partflow/log"
	"github.com/justapithecus/partflow/metrics"
	"github.com/justapithecus/partflow/types"
)

// finalizeTimeout bounds manifest, catalog and adapter writes after the
// parse terminated.
const finalizeTimeout = 30 * time.Second

// RequestConfig configures a single request.
type RequestConfig struct {
	// Meta is the request identity. Required.
	Meta *types.RequestMeta
	// Parser configures the parser. Logger and Collector default to the
	// orchestrator's.
	Parser ingest.Config
	// Store receives file parts and the manifest. If nil, file parts are
	// drained and nothing is written.
	Store *lode.FileStore
	// FieldsOnly drains file parts even when Store is set.
	FieldsOnly bool
	// Catalog, if set, receives one entry per written manifest.
	Catalog *lode.Catalog
	// Adapter, if set, receives the request_completed event.
	Adapter adapter.Adapter
	// Observers are chained after the storage sink. They must not
	// register Part callbacks.
	Observers ingest.Handlers
	// Logger defaults to a request logger on stderr.
	Logger *log.Logger
	// Collector is nil-safe.
	Collector *metrics.Collector
}

// RequestResult is the result of a request.
type RequestResult struct {
	Meta     *types.RequestMeta
	Outcome  types.Outcome
	Duration time.Duration

	// Err is the error latched by the parser, nil on success.
	Err error
	// ErrorKind is the short classification of Err.
	ErrorKind string

	BytesReceived int64
	BytesExpected int64
	Fields        []types.FieldRecord
	Files         []types.FileRecord

	// ManifestPath is empty when no manifest was written.
	ManifestPath string
	// StorageErr is a manifest or catalog write failure.
	StorageErr error
	// AdapterErr is an event publish failure.
	AdapterErr error
}

// RequestOrchestrator runs one request.
type RequestOrchestrator struct {
	config *RequestConfig
	logger *log.Logger
}

// NewRequestOrchestrator creates a request orchestrator.
func NewRequestOrchestrator(config *RequestConfig) (*RequestOrchestrator, error) {
	if config.Meta == nil || config.Meta.RequestID == "" {
		return nil, errors.New("request metadata requires a request id")
	}

	logger := config.Logger
	if logger == nil {
		logger = log.NewLogger(config.Meta)
	}

	return &RequestOrchestrator{
		config: config,
		logger: logger,
	}, nil
}

// Execute parses src to completion and finalizes the request.
//
// Execution flow:
//  1. Parse, streaming file parts into the store
//  2. Determine outcome
//  3. Write the manifest and catalog entry (also on failure)
//  4. Publish the completion event
//
// Finalization runs with a fresh deadline so a canceled request still
// leaves a manifest behind.
func (r *RequestOrchestrator) Execute(ctx context.Context, src ingest.Source) *RequestResult {
	start := time.Now()
	cfg := r.config

	var sinkOpts []lode.SinkOption
	if cfg.FieldsOnly {
		sinkOpts = append(sinkOpts, lode.WithFieldsOnly())
	}
	sink := lode.NewSink(ctx, cfg.Store, cfg.Meta, r.logger, sinkOpts...)

	parserCfg := cfg.Parser
	if parserCfg.Logger == nil {
		parserCfg.Logger = r.logger
	}
	if parserCfg.Collector == nil {
		parserCfg.Collector = cfg.Collector
	}

	p := ingest.NewParser(parserCfg, ingest.Chain(sink.Handlers(), cfg.Observers))
	err := p.Parse(ctx, src)

	result := &RequestResult{
		Meta:          cfg.Meta,
		Outcome:       DetermineOutcome(err),
		Err:           err,
		ErrorKind:     errorKind(err),
		BytesReceived: p.BytesReceived(),
		BytesExpected: p.BytesExpected(),
		Fields:        sink.Fields(),
		Files:         sink.Files(),
	}

	finCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()

	manifest := sink.Manifest(result.Outcome, result.BytesReceived, result.BytesExpected)
	path, serr := sink.Finish(finCtx, manifest, cfg.Catalog)
	result.ManifestPath = path
	if serr != nil {
		result.StorageErr = serr
		r.logger.Error("manifest write failed", map[string]any{
			"error": serr.Error(),
		})
	}

	result.Duration = time.Since(start)

	if cfg.Adapter != nil {
		event := BuildEvent(result, r.storageBackend())
		if aerr := cfg.Adapter.Publish(finCtx, event); aerr != nil {
			result.AdapterErr = aerr
			r.logger.Warn("adapter publish failed", map[string]any{
				"error": aerr.Error(),
			})
		}
	}

	r.logger.Info("request completed", map[string]any{
		"outcome":  result.Outcome.Status,
		"fields":   len(result.Fields),
		"files":    len(result.Files),
		"manifest": result.ManifestPath,
		"duration": result.Duration.String(),
	})
	return result
}

// errorKind classifies a parse error; storage errors latched from a file
// write are reported as "storage".
func errorKind(err error) string {
	if lode.IsStorageError(err) {
		return "storage"
	}
	return ingest.KindName(err)
}

func (r *RequestOrchestrator) storageBackend() string {
	if r.config.Store == nil || r.config.FieldsOnly {
		return "none"
	}
	return r.config.Store.Backend()
}

// BuildEvent builds the request_completed event of a result.
func BuildEvent(result *RequestResult, storage string) *adapter.RequestCompletedEvent {
	var fileBytes int64
	for _, f := range result.Files {
		fileBytes += f.Size
	}
	return &adapter.RequestCompletedEvent{
		Version:       types.Version,
		EventType:     adapter.EventTypeRequestCompleted,
		RequestID:     result.Meta.RequestID,
		Day:           result.Meta.Day(),
		Outcome:       string(result.Outcome.Status),
		Message:       result.Outcome.Message,
		ErrorKind:     result.ErrorKind,
		ManifestPath:  result.ManifestPath,
		Storage:       storage,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		FieldCount:    len(result.Fields),
		FileCount:     len(result.Files),
		FileBytes:     fileBytes,
		BytesReceived: result.BytesReceived,
		DurationMs:    result.Duration.Milliseconds(),
	}
}
