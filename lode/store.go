package lode

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/justapithecus/lode/lode"

	"github.com/justapithecus/partflow/iox"
	"github.com/justapithecus/partflow/log"
	"github.com/justapithecus/partflow/metrics"
	"github.com/justapithecus/partflow/types"
)

// Storage backend names.
const (
	BackendFS     = "fs"
	BackendS3     = "s3"
	BackendMemory = "memory"
)

// RequestsPrefix is the root of all per-request objects.
const RequestsPrefix = "requests"

// FileStore persists file parts and manifests at Hive-partitioned paths:
//
//	requests/day=<YYYY-MM-DD>/request_id=<id>/files/<nnn>-<filename>
//	requests/day=<YYYY-MM-DD>/request_id=<id>/manifest.<json|msgpack>
//
// The underlying lode.Store is created lazily on first use.
type FileStore struct {
	factory   lode.StoreFactory
	backend   string
	codec     ManifestCodec
	logger    *log.Logger
	collector *metrics.Collector

	storeOnce sync.Once
	store     lode.Store
	storeErr  error
}

// Option configures a FileStore.
type Option func(*FileStore)

// WithManifestCodec sets the manifest encoding (default JSON).
func WithManifestCodec(c ManifestCodec) Option {
	return func(s *FileStore) { s.codec = c }
}

// WithLogger sets the store logger.
func WithLogger(l *log.Logger) Option {
	return func(s *FileStore) { s.logger = l }
}

// WithCollector records storage write outcomes.
func WithCollector(c *metrics.Collector) Option {
	return func(s *FileStore) { s.collector = c }
}

// NewFileStore creates a FileStore over a store factory.
func NewFileStore(backend string, factory lode.StoreFactory, opts ...Option) *FileStore {
	s := &FileStore{
		factory: factory,
		backend: backend,
		codec:   CodecJSON,
		logger:  log.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewFSFileStore creates a filesystem-backed FileStore rooted at root.
// The root directory is created if missing.
func NewFSFileStore(root string, opts ...Option) (*FileStore, error) {
	if root == "" {
		return nil, NewStorageError(ErrNotFound, "init", BackendFS, fmt.Errorf("storage path is required"))
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, WrapInitError(err, root)
	}
	return NewFileStore(BackendFS, lode.NewFSFactory(root), opts...), nil
}

// NewMemoryFileStore creates a FileStore over a single in-memory store.
func NewMemoryFileStore(opts ...Option) *FileStore {
	store := lode.NewMemory()
	return NewFileStore(BackendMemory, func() (lode.Store, error) { return store, nil }, opts...)
}

// Backend returns the backend name.
func (s *FileStore) Backend() string {
	return s.backend
}

// Factory returns the store factory, for datasets sharing the backend.
func (s *FileStore) Factory() lode.StoreFactory {
	return s.factory
}

// Codec returns the manifest codec.
func (s *FileStore) Codec() ManifestCodec {
	return s.codec
}

func (s *FileStore) getOrCreateStore() (lode.Store, error) {
	s.storeOnce.Do(func() {
		s.store, s.storeErr = s.factory()
		s.storeErr = WrapInitError(s.storeErr, s.backend)
	})
	return s.store, s.storeErr
}

// RequestPrefix returns the partition prefix of a request.
func RequestPrefix(meta *types.RequestMeta) string {
	return fmt.Sprintf("%s/day=%s/request_id=%s", RequestsPrefix, meta.Day(), meta.RequestID)
}

// FilePath returns the object path of the index-th file part of a request.
func FilePath(meta *types.RequestMeta, index int, filename string) string {
	return fmt.Sprintf("%s/files/%03d-%s", RequestPrefix(meta), index, SanitizeFilename(filename))
}

// ManifestPath returns the manifest object path of a request.
func (s *FileStore) ManifestPath(meta *types.RequestMeta) string {
	return RequestPrefix(meta) + "/manifest." + s.codec.Ext()
}

// SanitizeFilename reduces a client-supplied filename to a single safe path
// segment. Directory components and control characters are dropped.
func SanitizeFilename(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." {
		return "file"
	}
	return name
}

// Create starts streaming a new object at p. The returned writer must be
// closed or aborted; nothing is visible at p until Close succeeds.
func (s *FileStore) Create(ctx context.Context, p string) (*FileWriter, error) {
	store, err := s.getOrCreateStore()
	if err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()
	w := &FileWriter{
		path:  p,
		pw:    pw,
		done:  make(chan error, 1),
		store: s,
	}
	go func() {
		err := store.Put(ctx, p, pr)
		if err != nil {
			pr.CloseWithError(err)
		} else {
			_ = pr.Close()
		}
		w.done <- err
	}()
	return w, nil
}

// Put writes a complete object.
func (s *FileStore) Put(ctx context.Context, p string, r io.Reader) error {
	store, err := s.getOrCreateStore()
	if err != nil {
		return err
	}
	if err := store.Put(ctx, p, r); err != nil {
		s.collector.IncStorageWriteFailure()
		return WrapWriteError(err, p)
	}
	s.collector.IncStorageWriteSuccess()
	return nil
}

// Open reads an object.
func (s *FileStore) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	store, err := s.getOrCreateStore()
	if err != nil {
		return nil, err
	}
	rc, err := store.Get(ctx, p)
	if err != nil {
		return nil, WrapReadError(err, p)
	}
	return rc, nil
}

// List returns object paths under prefix.
func (s *FileStore) List(ctx context.Context, prefix string) ([]string, error) {
	store, err := s.getOrCreateStore()
	if err != nil {
		return nil, err
	}
	paths, err := store.List(ctx, prefix)
	if err != nil {
		return nil, WrapListError(err, prefix)
	}
	return paths, nil
}

// PutManifest encodes m with the store codec and writes it to the
// request's manifest path, which is returned.
func (s *FileStore) PutManifest(ctx context.Context, m *Manifest) (string, error) {
	data, err := s.codec.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode manifest: %w", err)
	}
	p := s.ManifestPath(&m.Request)
	if err := s.Put(ctx, p, bytes.NewReader(data)); err != nil {
		return "", err
	}
	s.logger.Debug("manifest written", map[string]any{"path": p, "codec": string(s.codec)})
	return p, nil
}

// ReadManifest reads a manifest, choosing the codec by file extension.
func (s *FileStore) ReadManifest(ctx context.Context, p string) (*Manifest, error) {
	codec, err := ParseManifestCodec(strings.TrimPrefix(path.Ext(p), "."))
	if err != nil {
		return nil, err
	}
	rc, err := s.Open(ctx, p)
	if err != nil {
		return nil, err
	}
	defer iox.DiscardClose(rc)

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, WrapReadError(err, p)
	}
	var m Manifest
	if err := codec.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest %s: %w", p, err)
	}
	return &m, nil
}
