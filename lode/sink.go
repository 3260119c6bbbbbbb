package lode

import (
	"context"
	"errors"
	"time"

	"github.com/justapithecus/partflow/ingest"
	"github.com/justapithecus/partflow/log"
	"github.com/justapithecus/partflow/types"
)

// errPartAborted cancels an in-flight file write when the parse fails.
var errPartAborted = errors.New("part aborted")

// Sink streams the file parts of one request into a FileStore and records
// the completed fields. Its handlers run on the parser goroutine.
type Sink struct {
	ctx    context.Context
	store  *FileStore
	meta   *types.RequestMeta
	logger *log.Logger

	fieldsOnly bool
	index      int
	current    *FileWriter
	fields     []types.FieldRecord
	files      []types.FileRecord
}

// SinkOption configures a Sink.
type SinkOption func(*Sink)

// WithFieldsOnly makes the sink drain file parts without storing them.
func WithFieldsOnly() SinkOption {
	return func(s *Sink) { s.fieldsOnly = true }
}

// NewSink creates a sink for a request. A nil store behaves like
// WithFieldsOnly.
func NewSink(ctx context.Context, store *FileStore, meta *types.RequestMeta, logger *log.Logger, opts ...SinkOption) *Sink {
	if logger == nil {
		logger = log.Nop()
	}
	s := &Sink{
		ctx:        ctx,
		store:      store,
		meta:       meta,
		logger:     logger,
		fieldsOnly: store == nil,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handlers returns the parser callbacks of the sink.
func (s *Sink) Handlers() ingest.Handlers {
	return ingest.Handlers{
		OnField:   s.onField,
		OnFile:    s.onFile,
		OnError:   func(error) { s.abortCurrent() },
		OnAborted: s.abortCurrent,
	}
}

func (s *Sink) onField(f ingest.Field) error {
	s.fields = append(s.fields, types.FieldRecord{
		Name:  f.Name,
		Value: string(f.Value),
		Size:  len(f.Value),
	})
	return nil
}

func (s *Sink) onFile(p *ingest.Part) error {
	index := s.index
	s.index++

	if s.fieldsOnly {
		p.OnEnd(func() error {
			s.files = append(s.files, types.FileRecord{
				Name:     p.Name,
				Filename: p.Filename,
				Mime:     p.Mime,
				Size:     p.Size(),
			})
			return nil
		})
		return nil
	}

	path := FilePath(s.meta, index, p.Filename)
	w, err := s.store.Create(s.ctx, path)
	if err != nil {
		return err
	}
	s.current = w
	s.logger.Debug("storing file part", map[string]any{"name": p.Name, "filename": p.Filename, "path": path})

	p.OnData(func(b []byte) error {
		_, err := w.Write(b)
		return err
	})
	p.OnEnd(func() error {
		s.current = nil
		if err := w.Close(); err != nil {
			return err
		}
		s.files = append(s.files, types.FileRecord{
			Name:     p.Name,
			Filename: p.Filename,
			Mime:     p.Mime,
			Path:     path,
			Size:     w.Size(),
		})
		return nil
	})
	return nil
}

func (s *Sink) abortCurrent() {
	if s.current == nil {
		return
	}
	s.logger.Warn("file part aborted", map[string]any{"path": s.current.Path()})
	s.current.Abort(errPartAborted)
	s.current = nil
}

// Fields returns the completed fields in arrival order.
func (s *Sink) Fields() []types.FieldRecord {
	return s.fields
}

// Files returns the completed file parts in arrival order.
func (s *Sink) Files() []types.FileRecord {
	return s.files
}

// Manifest builds the request manifest for an outcome.
func (s *Sink) Manifest(outcome types.Outcome, received, expected int64) *Manifest {
	return &Manifest{
		ManifestVersion: types.ManifestVersion,
		Version:         types.Version,
		Request:         *s.meta,
		CompletedAt:     time.Now().UTC(),
		Outcome:         outcome,
		BytesReceived:   received,
		BytesExpected:   expected,
		Fields:          s.fields,
		Files:           s.files,
	}
}

// Finish writes the manifest and, when catalog is non-nil, appends the
// catalog entry. It returns the manifest path. A fields-only sink writes
// nothing.
func (s *Sink) Finish(ctx context.Context, m *Manifest, catalog *Catalog) (string, error) {
	if s.fieldsOnly {
		return "", nil
	}
	p, err := s.store.PutManifest(ctx, m)
	if err != nil {
		return "", err
	}
	if catalog != nil {
		if err := catalog.Record(ctx, m, p); err != nil {
			return p, err
		}
	}
	return p, nil
}
