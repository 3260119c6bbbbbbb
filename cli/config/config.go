package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/justapithecus/partflow/log"
)

// Config represents a partflow.yaml configuration file.
// All values are optional and act as defaults for command flags.
// CLI flags always override config values.
type Config struct {
	Parser  ParserConfig  `yaml:"parser"`
	Storage StorageConfig `yaml:"storage"`
	Server  ServerConfig  `yaml:"server"`
	Adapter AdapterConfig `yaml:"adapter"`
	Log     LogConfig     `yaml:"log"`
}

// ParserConfig holds parser defaults.
type ParserConfig struct {
	MaxPartsSize Size   `yaml:"max_parts_size"`
	Encoding     string `yaml:"encoding"`
	ChunkSize    Size   `yaml:"chunk_size"`
	Hash         bool   `yaml:"hash"`
	Multiples    bool   `yaml:"multiples"`
}

// StorageConfig holds storage defaults.
type StorageConfig struct {
	Backend       string `yaml:"backend"`
	Path          string `yaml:"path"`
	Region        string `yaml:"region"`
	Endpoint      string `yaml:"endpoint"`
	S3PathStyle   bool   `yaml:"s3_path_style"`
	ManifestCodec string `yaml:"manifest_codec"`
	Catalog       bool   `yaml:"catalog"`
}

// ServerConfig holds serve defaults.
type ServerConfig struct {
	Addr        string   `yaml:"addr"`
	ReadTimeout Duration `yaml:"read_timeout"`
	MaxBodySize Size     `yaml:"max_body_size"`
}

// AdapterConfig holds adapter defaults.
type AdapterConfig struct {
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Stream  string            `yaml:"stream,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// LogConfig holds logging defaults.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Validate checks enumerated values. Empty values are allowed and fall
// back to flag defaults.
func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Backend {
	case "", "fs", "s3", "memory":
	default:
		errs = append(errs, fmt.Errorf("storage.backend: unknown backend %q (must be fs, s3 or memory)", c.Storage.Backend))
	}
	switch c.Storage.ManifestCodec {
	case "", "json", "msgpack":
	default:
		errs = append(errs, fmt.Errorf("storage.manifest_codec: unknown codec %q (must be json or msgpack)", c.Storage.ManifestCodec))
	}
	switch c.Adapter.Type {
	case "", "webhook", "redis":
	default:
		errs = append(errs, fmt.Errorf("adapter.type: unknown adapter %q (must be webhook or redis)", c.Adapter.Type))
	}
	if c.Adapter.Type != "" && c.Adapter.URL == "" {
		errs = append(errs, fmt.Errorf("adapter.url: required for %s adapter", c.Adapter.Type))
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	return errors.Join(errs...)
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// Size is a byte count accepting plain integers or human-readable
// strings such as "10MB" or "64 KiB".
type Size int64

// UnmarshalYAML parses a byte size.
func (s *Size) UnmarshalYAML(unmarshal func(any) error) error {
	var str string
	if err := unmarshal(&str); err != nil {
		return err
	}
	if str == "" {
		return nil
	}
	n, err := humanize.ParseBytes(str)
	if err != nil {
		return fmt.Errorf("invalid size %q: %w", str, err)
	}
	*s = Size(n)
	return nil
}

// Int64 returns the size in bytes.
func (s Size) Int64() int64 {
	return int64(s)
}
