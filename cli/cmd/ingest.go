package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/partflow/cli/render"
	"github.com/justapithecus/partflow/cli/tui"
	"github.com/justapithecus/partflow/ingest"
	"github.com/justapithecus/partflow/iox"
	"github.com/justapithecus/partflow/lode"
	"github.com/justapithecus/partflow/log"
	"github.com/justapithecus/partflow/metrics"
	"github.com/justapithecus/partflow/runtime"
	"github.com/justapithecus/partflow/transport"
	"github.com/justapithecus/partflow/types"
)

// IngestCommand returns the ingest command.
// It parses one raw multipart body from a file or stdin.
func IngestCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:     "input",
			Aliases:  []string{"i"},
			Usage:    "Raw request body file, or - for stdin",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "content-type",
			Usage: "Request content-type, e.g. multipart/form-data; boundary=X",
		},
		&cli.Int64Flag{
			Name:  "content-length",
			Usage: "Declared body length (default: input file size, unknown for stdin)",
			Value: -1,
		},
		&cli.StringSliceFlag{
			Name:  "header",
			Usage: "Additional request header as key=value (repeatable)",
		},
		&cli.StringFlag{
			Name:  "request-id",
			Usage: "Request ID (default: random UUID)",
		},
		&cli.StringFlag{
			Name:  "report",
			Usage: "Write the JSON request report to a file (- for stderr)",
		},
		&cli.BoolFlag{
			Name:  "quiet",
			Usage: "Suppress result output",
		},
		ConfigFlag,
		LogLevelFlag,
	}
	flags = append(flags, ReadOnlyFlags()...)
	flags = append(flags, ParserFlags()...)
	flags = append(flags, StorageFlags()...)
	flags = append(flags, AdapterFlags()...)

	return &cli.Command{
		Name:   "ingest",
		Usage:  "Parse a raw multipart body and store its file parts",
		Flags:  flags,
		Action: ingestAction,
	}
}

func ingestAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitStorageFailure)
	}
	parser, err := resolveParser(c, cfg)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitStorageFailure)
	}
	storage := resolveStorage(c, cfg)
	adapterCfg, err := resolveAdapter(c, cfg)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitStorageFailure)
	}
	level, err := resolveLogLevel(c, cfg)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitStorageFailure)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	body, size, closeBody, err := openInput(c)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitParseError)
	}
	defer closeBody()

	headers, err := requestHeaders(c, size)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitParseError)
	}

	meta := types.NewRequestMeta("")
	if id := c.String("request-id"); id != "" {
		meta.RequestID = id
	}
	logger := log.NewLoggerWithLevel(meta, c.App.ErrWriter, level)
	defer iox.DiscardErr(logger.Sync)

	backend := storage.backend
	if parser.fieldsOnly {
		backend = "none"
	}
	collector := metrics.NewCollector(backend, "ingest")

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var store *lode.FileStore
	if !parser.fieldsOnly {
		store, err = buildStore(ctx, storage, logger, collector)
		if err != nil {
			return cli.Exit(fmt.Sprintf("failed to open storage: %v", err), runtime.ExitStorageFailure)
		}
	}
	catalog, err := buildCatalog(storage, store)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to open catalog: %v", err), runtime.ExitStorageFailure)
	}
	pub, err := buildAdapter(adapterCfg, collector)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to create adapter: %v", err), runtime.ExitStorageFailure)
	}
	if pub != nil {
		defer iox.DiscardClose(pub)
	}

	var progress *tui.Progress
	var observers ingest.Handlers
	if c.Bool("tui") {
		progress = tui.NewProgress(tui.Options{
			Title:       "partflow ingest " + meta.RequestID,
			Output:      c.App.ErrWriter,
			Interactive: c.String("input") != "-",
			OnQuit:      cancel,
		})
		progress.Start()
		observers = progress.Handlers()
	}

	orchestrator, err := runtime.NewRequestOrchestrator(&runtime.RequestConfig{
		Meta:       meta,
		Parser:     parser.config(),
		Store:      store,
		FieldsOnly: parser.fieldsOnly,
		Catalog:    catalog,
		Adapter:    pub,
		Observers:  observers,
		Logger:     logger,
		Collector:  collector,
	})
	if err != nil {
		return fmt.Errorf("failed to create orchestrator: %w", err)
	}

	src := transport.NewReader(headers, body, transport.Options{ChunkSize: parser.chunkSize})
	result := orchestrator.Execute(ctx, src)

	if progress != nil {
		if err := progress.Finish(string(result.Outcome.Status), result.Err); err != nil {
			logger.Warn("progress view failed", map[string]any{"error": err.Error()})
		}
	}

	code := runtime.ExitCode(result)
	snap := collector.Snapshot()
	report := runtime.BuildRequestReport(result, &snap, code)

	if path := c.String("report"); path != "" {
		if err := runtime.WriteRequestReport(report, path); err != nil {
			logger.Error("failed to write report", map[string]any{"error": err.Error()})
		}
	}

	if !c.Bool("quiet") {
		if err := r.Render(report); err != nil {
			return err
		}
	}

	return cli.Exit("", code)
}

// openInput opens --input. size is -1 when unknown.
func openInput(c *cli.Context) (body io.Reader, size int64, closeFn func(), err error) {
	input := c.String("input")
	if input == "-" {
		var in io.Reader = os.Stdin
		if c.App.Reader != nil {
			in = c.App.Reader
		}
		return in, -1, func() {}, nil
	}

	f, err := os.Open(filepath.Clean(input))
	if err != nil {
		return nil, 0, nil, fmt.Errorf("cannot open input: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		iox.DiscardClose(f)
		return nil, 0, nil, fmt.Errorf("cannot stat input: %w", err)
	}
	return f, info.Size(), iox.CloseFunc(f), nil
}

// requestHeaders builds the request header map from --header,
// --content-type and --content-length. Explicit flags win over --header.
// size is the input size, -1 when unknown.
func requestHeaders(c *cli.Context, size int64) (map[string]string, error) {
	headers, err := parseKeyValues("header", c.StringSlice("header"))
	if err != nil {
		return nil, err
	}
	headers = ingest.NormalizeHeaders(headers)

	if ct := c.String("content-type"); ct != "" {
		headers["content-type"] = ct
	}
	switch {
	case c.IsSet("content-length"):
		headers["content-length"] = strconv.FormatInt(c.Int64("content-length"), 10)
	case headers["content-length"] != "":
	case size >= 0:
		headers["content-length"] = strconv.FormatInt(size, 10)
	case headers["transfer-encoding"] == "":
		// Unknown length: stream like a chunked HTTP body.
		headers["transfer-encoding"] = "chunked"
	}
	return headers, nil
}
