package main

import (
	"github.com/spf13/cobra"

	"github.com/justapithecus/colbench/colbench"
	"github.com/justapithecus/colbench/internal/codec"
	"github.com/justapithecus/colbench/internal/convert"
	"github.com/justapithecus/colbench/internal/report"
)

// reportFlags are the output flags of the inspection commands.
type reportFlags struct {
	output string
	format string
}

func (f *reportFlags) register(cmd *cobra.Command, defaultFormat string) {
	cmd.Flags().StringVarP(&f.output, "output_path", "o", "", "write to this path instead of stdout; a .zst or .gz suffix compresses it")
	cmd.Flags().StringVar(&f.format, "format", defaultFormat, "report format: text, csv, json, jsonl or yaml")
}

// emit writes records to the report output.
func (f *reportFlags) emit(cmd *cobra.Command, e *env, records []codec.Record) error {
	return report.Emit(cmd.Context(), e.resolver, f.output, e.stdout, f.format, records)
}

func (f *reportFlags) validate() error {
	if _, err := codec.ByName(f.format); err != nil {
		return &colbench.ArgumentError{Msg: "invalid report format", Err: err}
	}
	return nil
}

func makeColumnsCommand(e *env) *cobra.Command {
	var flags reportFlags
	runCmdFunc := func(cmd *cobra.Command, args []string) error {
		if err := flags.validate(); err != nil {
			return err
		}
		r := convert.New(convert.Config{Resolver: e.resolver, Logger: e.logger()})
		info, _, err := r.Inspect(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		return flags.emit(cmd, e, report.Columns(info))
	}

	cmd := &cobra.Command{
		Use:   "columns <dataset_name> <input_path>",
		Short: "Print the column names of a dataset.",
		Long:  `Print the column names of a dataset, one per line. The csv, json and yaml formats add type, nullability and count column.`,
		Args:  exactArgs(2),
		RunE:  runCmdFunc,
	}
	flags.register(cmd, "text")
	return cmd
}

func makeNEventsCommand(e *env) *cobra.Command {
	var flags reportFlags
	runCmdFunc := func(cmd *cobra.Command, args []string) error {
		if err := flags.validate(); err != nil {
			return err
		}
		r := convert.New(convert.Config{Resolver: e.resolver, Logger: e.logger()})
		info, _, err := r.Inspect(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		return flags.emit(cmd, e, report.Events(info))
	}

	cmd := &cobra.Command{
		Use:   "nevents <dataset_name> <input_path>",
		Short: "Print the number of events in a dataset.",
		Args:  exactArgs(2),
		RunE:  runCmdFunc,
	}
	flags.register(cmd, "text")
	return cmd
}

func makeStorageCommand(e *env) *cobra.Command {
	var flags reportFlags
	runCmdFunc := func(cmd *cobra.Command, args []string) error {
		if err := flags.validate(); err != nil {
			return err
		}
		r := convert.New(convert.Config{Resolver: e.resolver, Logger: e.logger()})
		records := make([]codec.Record, 0, len(args)-1)
		for _, uri := range args[1:] {
			info, size, err := r.Inspect(cmd.Context(), args[0], uri)
			if err != nil {
				return err
			}
			records = append(records, report.Storage(uri, info, size))
		}
		return flags.emit(cmd, e, records)
	}

	cmd := &cobra.Command{
		Use:   "storage <dataset_name> <path>...",
		Short: "Print the storage footprint of dataset files.",
		Long: `Print one line per file with the benchmark name, format, event count, file
size, bytes per event, cluster count and compression codec.`,
		Args: minArgs(2),
		RunE: runCmdFunc,
	}
	flags.register(cmd, "csv")
	return cmd
}
