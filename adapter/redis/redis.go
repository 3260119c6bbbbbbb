// Package redis delivers request completion events to Redis.
//
// By default each event is PUBLISHed on a pub/sub channel, which only
// reaches subscribers connected at that moment. With Config.Stream set,
// events are appended to a stream with XADD instead so consumers can
// replay them.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/justapithecus/partflow/adapter"
)

// DefaultChannel is the default pub/sub channel name.
const DefaultChannel = "partflow:request_completed"

// DefaultTimeout is the default per-publish timeout.
const DefaultTimeout = 5 * time.Second

// DefaultRetries is the default number of retry attempts.
const DefaultRetries = 3

// Config configures the Redis pub/sub adapter.
type Config struct {
	// URL is the Redis connection URL (required).
	// Format: redis://[:password@]host:port[/db]
	URL string
	// Channel is the pub/sub channel name (default partflow:request_completed).
	Channel string
	// Timeout is the per-publish timeout (default 5s).
	Timeout time.Duration
	// Retries is the number of retry attempts on failure.
	Retries int
	// Backoff is the base retry delay (default 500ms).
	Backoff time.Duration
	// Stream, when set, selects XADD to this stream key instead of PUBLISH.
	Stream string
	// StreamMaxLen approximately caps the stream length (0 = uncapped).
	StreamMaxLen int64
}

// Adapter delivers request completion events via PUBLISH or XADD.
type Adapter struct {
	config Config
	client *goredis.Client
}

// New creates a Redis pub/sub adapter. The URL is required.
func New(cfg Config) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis adapter requires a URL")
	}

	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis adapter: invalid URL: %w", err)
	}

	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}
	if cfg.StreamMaxLen < 0 {
		return nil, fmt.Errorf("stream max length must be >= 0, got %d", cfg.StreamMaxLen)
	}

	return &Adapter{
		config: cfg,
		client: goredis.NewClient(opts),
	}, nil
}

// Publish sends the event as JSON to the configured channel or stream.
func (a *Adapter) Publish(ctx context.Context, event *adapter.RequestCompletedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("redis: marshal event: %w", err)
	}

	send := a.publish
	if a.config.Stream != "" {
		send = a.append
	}
	return adapter.Retry(ctx, "redis", 1+a.config.Retries, a.config.Backoff, nil,
		func(ctx context.Context) error {
			sendCtx, cancel := context.WithTimeout(ctx, a.config.Timeout)
			defer cancel()
			return send(sendCtx, event, body)
		})
}

func (a *Adapter) publish(ctx context.Context, _ *adapter.RequestCompletedEvent, body []byte) error {
	return a.client.Publish(ctx, a.config.Channel, body).Err()
}

// append adds one stream entry. request_id and outcome are duplicated
// outside the JSON body so consumers can filter without decoding it.
func (a *Adapter) append(ctx context.Context, event *adapter.RequestCompletedEvent, body []byte) error {
	args := &goredis.XAddArgs{
		Stream: a.config.Stream,
		Values: map[string]any{
			"request_id": event.RequestID,
			"outcome":    event.Outcome,
			"event":      string(body),
		},
	}
	if a.config.StreamMaxLen > 0 {
		args.MaxLen = a.config.StreamMaxLen
		args.Approx = true
	}
	return a.client.XAdd(ctx, args).Err()
}

// Close releases adapter resources.
func (a *Adapter) Close() error {
	return a.client.Close()
}

var _ adapter.Adapter = (*Adapter)(nil)
