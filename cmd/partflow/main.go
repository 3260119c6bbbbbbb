// Package main provides the partflow CLI entrypoint.
//
// Usage:
//
//	partflow <command> [subcommand] [options]
//
// Exit codes for `ingest`:
//   - 0: success
//   - 1: parse error
//   - 2: storage failure (or completion event not delivered)
//   - 3: aborted
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/partflow/cli/cmd"
	"github.com/justapithecus/partflow/types"
)

// Commit is set via ldflags at build time.
var commit = "unknown"

func main() {
	app := &cli.App{
		Name:           "partflow",
		Usage:          "Streaming multipart/form-data ingestion",
		Version:        fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			cmd.IngestCommand(),
			cmd.ServeCommand(),
			cmd.RequestsCommand(),
			cmd.VersionCommand(commit),
		},
	}

	if err := app.Run(os.Args); err != nil {
		// ExitErrHandler already handled the exit for cli.ExitCoder errors.
		// This branch handles unexpected errors that weren't wrapped.
		os.Exit(1)
	}
}

// exitErrHandler handles errors from the CLI, preserving exit codes from cli.Exit().
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		if msg := exitMessage(exitCoder); msg != "" {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}

	// Unexpected error - print and exit with code 1
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

// exitMessage returns the message worth printing for an exit error.
// cli.Exit("", N).Error() returns "" or "exit status N"; both are skipped.
func exitMessage(ec cli.ExitCoder) string {
	msg := ec.Error()
	if msg == fmt.Sprintf("exit status %d", ec.ExitCode()) {
		return ""
	}
	return msg
}
