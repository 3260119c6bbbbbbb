// Package cmd provides CLI commands for the partflow binary.
package cmd

import "github.com/urfave/cli/v2"

// Shared flags for read-only commands.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// TUIFlag enables the Bubble Tea progress view.
	// Only valid for ingest.
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Show an interactive progress view (ingest only)",
	}

	// ConfigFlag points at a partflow.yaml file.
	ConfigFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to partflow.yaml (flags override config values)",
		EnvVars: []string{"PARTFLOW_CONFIG"},
	}

	// LogLevelFlag sets the minimum log level.
	LogLevelFlag = &cli.StringFlag{
		Name:  "log-level",
		Usage: "Log level: debug, info, warn, error",
		Value: "info",
	}
)

// ReadOnlyFlags returns the shared flags for all read-only commands.
// Includes --tui so that unsupported commands can provide explicit error messages
// instead of generic "flag not defined" errors.
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{
		FormatFlag,
		TUIFlag,
	}
}

// ParserFlags configure the multipart parser.
func ParserFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "max-parts-size",
			Usage: "Cumulative size limit of field parts, e.g. 10MB (0 = unlimited)",
		},
		&cli.StringFlag{
			Name:  "encoding",
			Usage: "Charset of part headers and field text",
			Value: "utf-8",
		},
		&cli.StringFlag{
			Name:  "chunk-size",
			Usage: "Body read size, e.g. 64KiB",
		},
		&cli.BoolFlag{
			Name:  "fields-only",
			Usage: "Drain file parts instead of storing them",
		},
	}
}

// StorageFlags configure where file parts and manifests are written.
func StorageFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "storage-backend",
			Usage: "Storage backend: fs, s3 or memory",
			Value: "fs",
		},
		&cli.StringFlag{
			Name:  "storage-path",
			Usage: "Storage path (fs: directory, s3: bucket/prefix)",
		},
		&cli.StringFlag{
			Name:  "storage-region",
			Usage: "AWS region for S3 backend (optional, uses default chain)",
		},
		&cli.StringFlag{
			Name:  "storage-endpoint",
			Usage: "Custom S3 endpoint (MinIO, R2)",
		},
		&cli.BoolFlag{
			Name:  "storage-s3-path-style",
			Usage: "Use path-style S3 addressing",
		},
		&cli.StringFlag{
			Name:  "manifest-codec",
			Usage: "Manifest encoding: json or msgpack",
			Value: "json",
		},
		&cli.BoolFlag{
			Name:  "catalog",
			Usage: "Append each request to the request catalog",
		},
	}
}

// AdapterFlags configure the completion event adapter.
func AdapterFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "adapter",
			Usage: "Completion event adapter: webhook or redis",
		},
		&cli.StringFlag{
			Name:  "adapter-url",
			Usage: "Webhook endpoint or Redis URL",
		},
		&cli.StringFlag{
			Name:  "adapter-channel",
			Usage: "Redis pub/sub channel",
		},
		&cli.StringFlag{
			Name:  "adapter-stream",
			Usage: "Redis stream key; events are appended with XADD instead of published",
		},
		&cli.StringSliceFlag{
			Name:  "adapter-header",
			Usage: "Webhook header as key=value (repeatable)",
		},
		&cli.DurationFlag{
			Name:  "adapter-timeout",
			Usage: "Per-publish timeout",
		},
		&cli.IntFlag{
			Name:  "adapter-retries",
			Usage: "Publish retry attempts",
			Value: 3,
		},
	}
}
