package main

import (
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/justapithecus/colbench/colbench"
	"github.com/justapithecus/colbench/internal/convert"
	"github.com/justapithecus/colbench/internal/source"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// formatValue is a pflag.Value over the closed set of output modes.
type formatValue colbench.Format

func (f *formatValue) String() string { return colbench.Format(*f).String() }

func (f *formatValue) Set(s string) error {
	v, err := colbench.ParseFormat(s)
	if err != nil {
		return err
	}
	*f = formatValue(v)
	return nil
}

func (f *formatValue) Type() string { return "format" }

var _ pflag.Value = (*formatValue)(nil)

func makeConvertCommand(e *env) *cobra.Command {
	var (
		job      convert.Job
		format   = formatValue(colbench.FormatORC)
		jsonDump bool
	)
	runCmdFunc := func(cmd *cobra.Command, args []string) error {
		job.Dataset = args[0]
		job.Input = args[1]
		job.Output = args[2]
		job.Format = colbench.Format(format)

		r := convert.New(convert.Config{Resolver: e.resolver, Logger: e.logger()})
		res, err := r.Run(cmd.Context(), job)
		if err != nil {
			return err
		}
		if !jsonDump {
			return nil
		}
		enc := json.NewEncoder(e.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	cmd := &cobra.Command{
		Use:   "convert <dataset_name> <input_path> <output_path>",
		Short: "Convert a dataset to ORC (formatA), Parquet (formatB) or ROOT (formatC).",
		Long: `Convert the dataset <dataset_name> stored at <input_path> and write it to
<output_path>, replacing any existing file. The input format is selected by
the file suffix (.orc, .parquet, .root).

Unsigned integer columns are rewritten as signed columns of the same width,
keeping the bit pattern, unless --keep_unsigned is given. ROOT to ROOT
conversions with --keep_unsigned copy the tree directly.

Compression is zstd at level 3 for every format unless --uncompressed is
given. --mirror_source_clustering sets the output group length to the
source's average rows per cluster.`,
		Args: exactArgs(3),
		RunE: runCmdFunc,
	}
	cmd.Flags().VarP(&format, "output_mode", "o", "output format: "+strings.Join(outputModes(), ", "))
	cmd.Flags().BoolVarP(&job.Uncompressed, "uncompressed", "u", false, "write without compression")
	cmd.Flags().BoolVarP(&job.MirrorSourceClustering, "mirror_source_clustering", "m", false, "mirror the source clustering in the output layout")
	cmd.Flags().BoolVarP(&job.KeepUnsigned, "keep_unsigned", "k", false, "keep unsigned integer columns unchanged")
	cmd.Flags().IntVarP(&job.BatchRows, "batch_rows", "b", source.DefaultBatchRows, "rows per in-memory batch")
	cmd.Flags().BoolVar(&jsonDump, "json", false, "print the conversion result as JSON")
	return cmd
}

func outputModes() []string {
	return []string{"formatA", "formatB", "formatC", "orc", "parquet", "root", "rntuple"}
}
