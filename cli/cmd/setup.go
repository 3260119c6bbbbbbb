package cmd

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap/zapcore"

	"github.com/justapithecus/partflow/adapter"
	"github.com/justapithecus/partflow/adapter/redis"
	"github.com/justapithecus/partflow/adapter/webhook"
	"github.com/justapithecus/partflow/cli/config"
	"github.com/justapithecus/partflow/ingest"
	"github.com/justapithecus/partflow/lode"
	"github.com/justapithecus/partflow/log"
	"github.com/justapithecus/partflow/metrics"
)

// parserChoice holds resolved parser configuration.
type parserChoice struct {
	maxPartsSize int64
	encoding     string
	chunkSize    int
	hash         bool
	multiples    bool
	fieldsOnly   bool
}

// storageChoice holds resolved storage configuration.
type storageChoice struct {
	backend   string // "fs", "s3" or "memory"
	path      string // fs: directory, s3: bucket/prefix
	region    string
	endpoint  string
	pathStyle bool
	codec     string
	catalog   bool
}

// adapterChoice holds resolved adapter configuration.
type adapterChoice struct {
	kind    string // "", "webhook" or "redis"
	url     string
	channel string
	stream  string
	headers map[string]string
	timeout time.Duration
	retries int
}

func resolveParser(c *cli.Context, cfg *config.Config) (parserChoice, error) {
	maxParts, err := resolveSize(c, "max-parts-size", configVal(cfg, func(c *config.Config) config.Size { return c.Parser.MaxPartsSize }))
	if err != nil {
		return parserChoice{}, err
	}
	chunk, err := resolveSize(c, "chunk-size", configVal(cfg, func(c *config.Config) config.Size { return c.Parser.ChunkSize }))
	if err != nil {
		return parserChoice{}, err
	}
	return parserChoice{
		maxPartsSize: maxParts,
		encoding:     resolveString(c, "encoding", configVal(cfg, func(c *config.Config) string { return c.Parser.Encoding })),
		chunkSize:    int(chunk),
		hash:         configVal(cfg, func(c *config.Config) bool { return c.Parser.Hash }),
		multiples:    configVal(cfg, func(c *config.Config) bool { return c.Parser.Multiples }),
		fieldsOnly:   c.Bool("fields-only"),
	}, nil
}

func (p parserChoice) config() ingest.Config {
	return ingest.Config{
		MaxPartsSize: p.maxPartsSize,
		Encoding:     p.encoding,
		Hash:         p.hash,
		Multiples:    p.multiples,
	}
}

func resolveStorage(c *cli.Context, cfg *config.Config) storageChoice {
	return storageChoice{
		backend:   resolveString(c, "storage-backend", configVal(cfg, func(c *config.Config) string { return c.Storage.Backend })),
		path:      resolveString(c, "storage-path", configVal(cfg, func(c *config.Config) string { return c.Storage.Path })),
		region:    resolveString(c, "storage-region", configVal(cfg, func(c *config.Config) string { return c.Storage.Region })),
		endpoint:  resolveString(c, "storage-endpoint", configVal(cfg, func(c *config.Config) string { return c.Storage.Endpoint })),
		pathStyle: resolveBool(c, "storage-s3-path-style", configVal(cfg, func(c *config.Config) bool { return c.Storage.S3PathStyle })),
		codec:     resolveString(c, "manifest-codec", configVal(cfg, func(c *config.Config) string { return c.Storage.ManifestCodec })),
		catalog:   resolveBool(c, "catalog", configVal(cfg, func(c *config.Config) bool { return c.Storage.Catalog })),
	}
}

func resolveAdapter(c *cli.Context, cfg *config.Config) (adapterChoice, error) {
	headers := maps.Clone(configVal(cfg, func(c *config.Config) map[string]string { return c.Adapter.Headers }))
	if headers == nil {
		headers = map[string]string{}
	}
	flagHeaders, err := parseKeyValues("adapter-header", c.StringSlice("adapter-header"))
	if err != nil {
		return adapterChoice{}, err
	}
	maps.Copy(headers, flagHeaders)

	choice := adapterChoice{
		kind:    resolveString(c, "adapter", configVal(cfg, func(c *config.Config) string { return c.Adapter.Type })),
		url:     resolveString(c, "adapter-url", configVal(cfg, func(c *config.Config) string { return c.Adapter.URL })),
		channel: resolveString(c, "adapter-channel", configVal(cfg, func(c *config.Config) string { return c.Adapter.Channel })),
		stream:  resolveString(c, "adapter-stream", configVal(cfg, func(c *config.Config) string { return c.Adapter.Stream })),
		headers: headers,
		timeout: resolveDuration(c, "adapter-timeout", configVal(cfg, func(c *config.Config) time.Duration { return c.Adapter.Timeout.Duration })),
		retries: resolveInt(c, "adapter-retries", configVal(cfg, func(c *config.Config) *int { return c.Adapter.Retries })),
	}
	if choice.kind != "" && choice.url == "" {
		return adapterChoice{}, fmt.Errorf("--adapter-url is required for %s adapter", choice.kind)
	}
	return choice, nil
}

func resolveLogLevel(c *cli.Context, cfg *config.Config) (zapcore.Level, error) {
	return log.ParseLevel(resolveString(c, "log-level", configVal(cfg, func(c *config.Config) string { return c.Log.Level })))
}

// buildStore creates the file store for a storage choice.
func buildStore(ctx context.Context, choice storageChoice, logger *log.Logger, collector *metrics.Collector) (*lode.FileStore, error) {
	codec, err := lode.ParseManifestCodec(choice.codec)
	if err != nil {
		return nil, err
	}
	opts := []lode.Option{
		lode.WithManifestCodec(codec),
		lode.WithLogger(logger),
		lode.WithCollector(collector),
	}

	switch choice.backend {
	case lode.BackendFS, "":
		if choice.path == "" {
			return nil, errors.New("--storage-path is required for the fs backend (or use --fields-only)")
		}
		return lode.NewFSFileStore(choice.path, opts...)
	case lode.BackendS3:
		bucket, prefix := lode.ParseS3Path(choice.path)
		return lode.NewS3FileStore(ctx, lode.S3Config{
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       choice.region,
			Endpoint:     choice.endpoint,
			UsePathStyle: choice.pathStyle,
		}, opts...)
	case lode.BackendMemory:
		return lode.NewMemoryFileStore(opts...), nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %s (must be fs, s3 or memory)", choice.backend)
	}
}

// buildCatalog opens the request catalog when enabled.
func buildCatalog(choice storageChoice, store *lode.FileStore) (*lode.Catalog, error) {
	if !choice.catalog || store == nil {
		return nil, nil
	}
	return lode.NewCatalog(store.Factory())
}

// buildAdapter creates the configured adapter wrapped with publish
// metrics, or nil when none is configured.
func buildAdapter(choice adapterChoice, collector *metrics.Collector) (adapter.Adapter, error) {
	var inner adapter.Adapter
	switch choice.kind {
	case "":
		return nil, nil
	case "webhook":
		a, err := webhook.New(webhook.Config{
			URL:     choice.url,
			Headers: choice.headers,
			Timeout: choice.timeout,
			Retries: choice.retries,
		})
		if err != nil {
			return nil, err
		}
		inner = a
	case "redis":
		a, err := redis.New(redis.Config{
			URL:     choice.url,
			Channel: choice.channel,
			Stream:  choice.stream,
			Timeout: choice.timeout,
			Retries: choice.retries,
		})
		if err != nil {
			return nil, err
		}
		inner = a
	default:
		return nil, fmt.Errorf("unknown adapter: %s (must be webhook or redis)", choice.kind)
	}
	return adapter.NewInstrumented(inner, collector), nil
}
