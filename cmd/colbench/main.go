// Command colbench converts high-energy-physics datasets between the ORC,
// Parquet and ROOT formats and reports their schema and storage footprint.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/justapithecus/colbench/colbench"
	"github.com/justapithecus/colbench/internal/storage"
)

// Exit codes.
const (
	exitOK       = 0
	exitFailure  = 1
	exitArgument = 2
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command line and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := makeColbenchCommand(stdout, stderr)
	root.SetArgs(args)

	cmd, err := root.ExecuteContextC(ctx)
	if err == nil {
		return exitOK
	}
	_, _ = fmt.Fprintf(stderr, "colbench: %v\n", err)
	return exitCode(cmd, err, stderr)
}

// exitCode maps an error to the exit code; argument errors also print the
// usage of the failing command.
func exitCode(cmd *cobra.Command, err error, stderr io.Writer) int {
	var argErr *colbench.ArgumentError
	if !errors.As(err, &argErr) {
		return exitFailure
	}
	if cmd != nil {
		_, _ = fmt.Fprint(stderr, cmd.UsageString())
	}
	return exitArgument
}

// env holds the state shared by all commands.
type env struct {
	stdout   io.Writer
	stderr   io.Writer
	verbose  bool
	resolver storage.Resolver
}

func (e *env) logger() *slog.Logger {
	level := slog.LevelInfo
	if e.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(e.stderr, &slog.HandlerOptions{Level: level}))
}

func makeColbenchCommand(stdout, stderr io.Writer) *cobra.Command {
	e := &env{stdout: stdout, stderr: stderr, resolver: storage.DefaultResolver}

	command := &cobra.Command{
		Use:   "colbench [command] (flags)",
		Short: "colbench converts columnar HEP datasets between ORC, Parquet and ROOT.",
		Long: `colbench converts columnar high-energy-physics datasets between storage
formats with a uniform compression and layout policy, and reports their
schema and storage footprint.

Typical usage:
    colbench convert Events data/sample.root data/sample.parquet -o formatB
        Convert the Events tree to Parquet, rewriting unsigned columns as signed.

    colbench storage Events data/sample.root data/sample.parquet data/sample.orc
        Print format, event count, file size and clustering of each file as CSV.

Paths may be local files or s3://bucket/key objects; S3 clients are
configured from the COLBENCH_S3_* environment.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	command.SetOut(stdout)
	command.SetErr(stderr)
	command.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &colbench.ArgumentError{Msg: "invalid flags", Err: err}
	})
	command.PersistentFlags().BoolVarP(&e.verbose, "verbose", "v", false, "log every state transition and column rewrite")

	command.AddCommand(makeConvertCommand(e))
	command.AddCommand(makeColumnsCommand(e))
	command.AddCommand(makeNEventsCommand(e))
	command.AddCommand(makeStorageCommand(e))

	return command
}

// exactArgs is cobra.ExactArgs reporting an ArgumentError.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return &colbench.ArgumentError{Msg: "invalid arguments", Err: err}
		}
		return nil
	}
}

// minArgs is cobra.MinimumNArgs reporting an ArgumentError.
func minArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.MinimumNArgs(n)(cmd, args); err != nil {
			return &colbench.ArgumentError{Msg: "invalid arguments", Err: err}
		}
		return nil
	}
}
