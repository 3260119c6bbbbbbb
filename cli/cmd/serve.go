package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/partflow/cli/config"
	"github.com/justapithecus/partflow/iox"
	"github.com/justapithecus/partflow/lode"
	"github.com/justapithecus/partflow/log"
	"github.com/justapithecus/partflow/metrics"
	"github.com/justapithecus/partflow/server"
)

// ServeCommand returns the serve command.
func ServeCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:  "addr",
			Usage: "Listen address",
			Value: ":8080",
		},
		&cli.DurationFlag{
			Name:  "read-timeout",
			Usage: "HTTP read timeout (0 = none)",
		},
		&cli.StringFlag{
			Name:  "max-body-size",
			Usage: "Reject request bodies larger than this, e.g. 1GB (0 = unlimited)",
		},
		ConfigFlag,
		LogLevelFlag,
	}
	flags = append(flags, ParserFlags()...)
	flags = append(flags, StorageFlags()...)
	flags = append(flags, AdapterFlags()...)

	return &cli.Command{
		Name:   "serve",
		Usage:  "Accept multipart uploads over HTTP",
		Flags:  flags,
		Action: serveAction,
	}
}

func serveAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	parser, err := resolveParser(c, cfg)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	storage := resolveStorage(c, cfg)
	adapterCfg, err := resolveAdapter(c, cfg)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	level, err := resolveLogLevel(c, cfg)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	maxBody, err := resolveSize(c, "max-body-size", configVal(cfg, func(c *config.Config) config.Size { return c.Server.MaxBodySize }))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	addr := resolveString(c, "addr", configVal(cfg, func(c *config.Config) string { return c.Server.Addr }))
	readTimeout := resolveDuration(c, "read-timeout", configVal(cfg, func(c *config.Config) config.Duration { return c.Server.ReadTimeout }).Duration)

	logger := log.NewLoggerWithLevel(nil, c.App.ErrWriter, level)
	defer iox.DiscardErr(logger.Sync)

	backend := storage.backend
	if parser.fieldsOnly {
		backend = "none"
	}
	collector := metrics.NewCollector(backend, "serve")

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store *lode.FileStore
	if !parser.fieldsOnly {
		store, err = buildStore(ctx, storage, logger, collector)
		if err != nil {
			return cli.Exit(fmt.Sprintf("failed to open storage: %v", err), 1)
		}
	}
	catalog, err := buildCatalog(storage, store)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to open catalog: %v", err), 1)
	}
	pub, err := buildAdapter(adapterCfg, collector)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to create adapter: %v", err), 1)
	}
	if pub != nil {
		defer iox.DiscardClose(pub)
	}

	srv := server.New(server.Config{
		Parser:      parser.config(),
		ChunkSize:   parser.chunkSize,
		MaxBodySize: maxBody,
		ReadTimeout: readTimeout,
		Store:       store,
		FieldsOnly:  parser.fieldsOnly,
		Catalog:     catalog,
		Adapter:     pub,
		Logger:      logger,
		Collector:   collector,
	})

	if err := srv.ListenAndServe(ctx, addr); err != nil {
		return cli.Exit(fmt.Sprintf("server failed: %v", err), 1)
	}
	logger.Info("server stopped", nil)
	return nil
}
