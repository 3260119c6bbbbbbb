package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"

	"github.com/justapithecus/partflow/cli/config"
)

// loadConfig loads --config, or returns nil when it is not set.
func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String("config")
	if path == "" {
		return nil, nil
	}
	return config.Load(path)
}

// configVal reads a value from an optional config.
func configVal[T any](cfg *config.Config, get func(*config.Config) T) T {
	var zero T
	if cfg == nil {
		return zero
	}
	return get(cfg)
}

// resolveString returns the flag value when set explicitly, else the
// config value when non-empty, else the flag default.
func resolveString(c *cli.Context, name, configValue string) string {
	if c.IsSet(name) || configValue == "" {
		return c.String(name)
	}
	return configValue
}

// resolveInt follows resolveString; a nil config value falls back to the
// flag default.
func resolveInt(c *cli.Context, name string, configValue *int) int {
	if c.IsSet(name) || configValue == nil {
		return c.Int(name)
	}
	return *configValue
}

// resolveBool is true when either the flag or the config enables it.
func resolveBool(c *cli.Context, name string, configValue bool) bool {
	if c.IsSet(name) {
		return c.Bool(name)
	}
	return configValue || c.Bool(name)
}

// resolveDuration follows resolveString.
func resolveDuration(c *cli.Context, name string, configValue time.Duration) time.Duration {
	if c.IsSet(name) || configValue == 0 {
		return c.Duration(name)
	}
	return configValue
}

// resolveSize parses a human-readable size flag ("10MB", "64KiB"),
// falling back to the config value.
func resolveSize(c *cli.Context, name string, configValue config.Size) (int64, error) {
	if !c.IsSet(name) && configValue != 0 {
		return configValue.Int64(), nil
	}
	s := c.String(name)
	if s == "" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("--%s: invalid size %q: %w", name, s, err)
	}
	return int64(n), nil
}

// parseKeyValues parses repeated key=value flags.
func parseKeyValues(flag string, values []string) (map[string]string, error) {
	out := make(map[string]string, len(values))
	for _, kv := range values {
		k, v, ok := strings.Cut(kv, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("--%s: expected key=value, got %q", flag, kv)
		}
		out[k] = strings.TrimSpace(v)
	}
	return out, nil
}
