package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/partflow/cli/reader"
	"github.com/justapithecus/partflow/cli/render"
	"github.com/justapithecus/partflow/log"
)

// listWarningThreshold is the number of items above which we warn about using --limit.
const listWarningThreshold = 100

// isStderrTTY returns true if stderr is a TTY.
func isStderrTTY() bool {
	return render.IsTTY(os.Stderr)
}

// RequestsCommand returns the requests command with subcommands.
// All subcommands are read-only.
func RequestsCommand() *cli.Command {
	return &cli.Command{
		Name:  "requests",
		Usage: "Inspect stored requests (list, show, stats)",
		Subcommands: []*cli.Command{
			requestsListCommand(),
			requestsShowCommand(),
			requestsStatsCommand(),
		},
	}
}

func readFlags(extra ...cli.Flag) []cli.Flag {
	flags := append([]cli.Flag{ConfigFlag}, ReadOnlyFlags()...)
	flags = append(flags, StorageFlags()...)
	return append(flags, extra...)
}

func requestsListCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List stored requests, newest first",
		Flags: readFlags(
			&cli.StringFlag{
				Name:  "day",
				Usage: "Restrict to one day (YYYY-MM-DD)",
			},
			&cli.StringFlag{
				Name:  "status",
				Usage: "Filter by outcome: success, error, aborted",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of requests to return (0 = no limit)",
			},
		),
		Action: requestsListAction,
	}
}

func requestsListAction(c *cli.Context) error {
	r, rd, err := readSetup(c, "list")
	if err != nil {
		return err
	}

	opts := reader.ListRequestsOptions{
		Day:    c.String("day"),
		Status: c.String("status"),
		Limit:  c.Int("limit"),
	}
	items, err := rd.ListRequests(c.Context, opts)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to list requests: %v", err), 1)
	}

	// Warn if output is large and --limit was not specified (TTY only to avoid noise in pipelines)
	if len(items) > listWarningThreshold && opts.Limit == 0 && isStderrTTY() {
		fmt.Fprintf(os.Stderr, "Warning: returning %d results. Consider using --limit to reduce output.\n\n", len(items))
	}

	if items == nil {
		items = []reader.ListRequestItem{}
	}
	return r.Render(items)
}

func requestsShowCommand() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show the manifest of one request",
		ArgsUsage: "<request-id>",
		Flags: readFlags(
			&cli.StringFlag{
				Name:     "day",
				Usage:    "Day the request was received (YYYY-MM-DD)",
				Required: true,
			},
		),
		Action: requestsShowAction,
	}
}

func requestsShowAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: partflow requests show --day YYYY-MM-DD <request-id>", 1)
	}
	r, rd, err := readSetup(c, "show")
	if err != nil {
		return err
	}

	resp, err := rd.ShowRequest(c.Context, c.String("day"), c.Args().First())
	if errors.Is(err, reader.ErrRequestNotFound) {
		return cli.Exit(err.Error(), 1)
	}
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to read request: %v", err), 1)
	}
	return r.Render(resp)
}

func requestsStatsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Aggregate stored requests by outcome",
		Flags: readFlags(
			&cli.StringFlag{
				Name:  "day",
				Usage: "Restrict to one day (YYYY-MM-DD)",
			},
		),
		Action: requestsStatsAction,
	}
}

func requestsStatsAction(c *cli.Context) error {
	r, rd, err := readSetup(c, "stats")
	if err != nil {
		return err
	}
	stats, err := rd.StatsRequests(c.Context, c.String("day"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to aggregate requests: %v", err), 1)
	}
	return r.Render(stats)
}

// readSetup resolves the renderer and a reader over the configured
// storage for a read-only subcommand.
func readSetup(c *cli.Context, name string) (*render.Renderer, reader.Reader, error) {
	r, err := render.NewRenderer(c)
	if err != nil {
		return nil, nil, err
	}

	// TUI not supported for requests commands
	if c.Bool("tui") {
		return nil, nil, cli.Exit(fmt.Sprintf("--tui is not supported for requests %s", name), 1)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, cli.Exit(err.Error(), 1)
	}
	storage := resolveStorage(c, cfg)
	if storage.backend == "memory" {
		return nil, nil, cli.Exit("the memory backend does not persist requests", 1)
	}

	store, err := buildStore(c.Context, storage, log.Nop(), nil)
	if err != nil {
		return nil, nil, cli.Exit(fmt.Sprintf("failed to open storage: %v", err), 1)
	}
	catalog, err := buildCatalog(storage, store)
	if err != nil {
		return nil, nil, cli.Exit(fmt.Sprintf("failed to open catalog: %v", err), 1)
	}
	return r, reader.NewStoreReader(store, catalog), nil
}
