// Package convert drives a conversion job: it introspects the source
// dataset, plans the type normalization, picks the layout policy and hands
// the rows to the writer of the requested format.
package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/justapithecus/colbench/colbench"
	"github.com/justapithecus/colbench/internal/sink"
	"github.com/justapithecus/colbench/internal/source"
	"github.com/justapithecus/colbench/internal/storage"
)

// -----------------------------------------------------------------------------
// Job
// -----------------------------------------------------------------------------

// Job describes one conversion.
type Job struct {
	// Dataset is the table or tree name, used for both input and output.
	Dataset string
	// Input is the source path, local or s3://bucket/key. Its suffix
	// selects the reader.
	Input string
	// Output is the target path, local or s3://bucket/key.
	Output string
	// Format is the target format.
	Format colbench.Format
	// Uncompressed disables compression.
	Uncompressed bool
	// MirrorSourceClustering derives the group length from the source.
	MirrorSourceClustering bool
	// KeepUnsigned disables the unsigned to signed rewrite. ROOT to ROOT
	// conversions with KeepUnsigned use a direct snapshot.
	KeepUnsigned bool
	// BatchRows is the number of rows per batch; 0 uses the default.
	BatchRows int
}

// Validate checks the job before any I/O takes place.
// Failures are returned as *colbench.ArgumentError.
func (j Job) Validate() error {
	switch {
	case j.Dataset == "":
		return &colbench.ArgumentError{Msg: "dataset name is required"}
	case j.Input == "":
		return &colbench.ArgumentError{Msg: "input path is required"}
	case j.Output == "":
		return &colbench.ArgumentError{Msg: "output path is required"}
	case !j.Format.Valid():
		return &colbench.ArgumentError{Msg: "invalid output mode", Err: fmt.Errorf("%w: %s", colbench.ErrUnknownFormat, j.Format)}
	case j.BatchRows < 0:
		return &colbench.ArgumentError{Msg: fmt.Sprintf("batch rows must not be negative, got %d", j.BatchRows)}
	}
	if _, err := colbench.FormatFromPath(j.Input); err != nil {
		return &colbench.ArgumentError{Msg: "cannot select a reader for the input", Err: err}
	}
	return nil
}

// Rules returns the normalization rule set of the job.
func (j Job) Rules() colbench.RuleSet {
	if j.KeepUnsigned {
		return colbench.IdentityRules
	}
	return colbench.SignedRules
}

// snapshot reports whether the job takes the direct snapshot path: a ROOT
// source copied to ROOT without normalization.
func (j Job) snapshot() bool {
	in, err := colbench.FormatFromPath(j.Input)
	return err == nil && in == colbench.FormatROOT && j.Format == colbench.FormatROOT && j.KeepUnsigned
}

// layout returns the layout policy of the job for a source.
func (j Job) layout(src colbench.SchemaInfo) (colbench.Layout, error) {
	if j.MirrorSourceClustering {
		return colbench.MirrorLayout(j.Format, src, j.Uncompressed)
	}
	return colbench.DefaultLayout(j.Format, j.Uncompressed), nil
}

// Result describes a finished job.
type Result struct {
	colbench.WriteResult

	// Source is the introspected source schema. Empty for snapshots
	// without mirror clustering.
	Source colbench.SchemaInfo `json:"source" yaml:"source"`

	// Rewritten names the columns whose type was normalized.
	Rewritten []string `json:"rewritten,omitempty" yaml:"rewritten,omitempty"`

	// States lists the states the job went through, in order.
	States []State `json:"states" yaml:"states"`

	// Elapsed is the wall time of the job.
	Elapsed time.Duration `json:"elapsed" yaml:"elapsed"`
}

// -----------------------------------------------------------------------------
// Runner
// -----------------------------------------------------------------------------

// Config holds the collaborators of a Runner.
type Config struct {
	// Resolver maps job paths to locations. The zero value resolves local
	// paths only.
	Resolver storage.Resolver

	// Logger receives state transitions and progress. If nil, logs are
	// discarded.
	Logger *slog.Logger
}

// Runner executes conversion jobs.
type Runner struct {
	resolver storage.Resolver
	log      *slog.Logger
}

// New creates a Runner.
func New(cfg Config) *Runner {
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Runner{resolver: cfg.Resolver, log: log}
}

// tracker records the state path of one job.
type tracker struct {
	log    *slog.Logger
	states []State
}

func (t *tracker) current() State {
	return t.states[len(t.states)-1]
}

func (t *tracker) to(s State, attrs ...any) {
	from := t.current()
	if !CanTransition(from, s) {
		panic(fmt.Sprintf("convert: illegal transition %s -> %s", from, s))
	}
	t.states = append(t.states, s)
	t.log.Debug("state", append([]any{slog.String("from", from.String()), slog.String("to", s.String())}, attrs...)...)
}

// fail moves the job to Failed and returns err.
func (t *tracker) fail(err error) error {
	t.to(Failed, slog.Any("error", err))
	return err
}

// Run executes job. Errors are the colbench taxonomy: *ArgumentError,
// *DatasetOpenError, *UnsupportedTypeError or *WriteError. The returned
// Result carries the visited states on failure too.
func (r *Runner) Run(ctx context.Context, job Job) (Result, error) {
	start := time.Now()
	t := &tracker{log: r.log.With(slog.String("dataset", job.Dataset)), states: []State{Idle}}
	res, err := r.run(ctx, job, t)
	res.States = t.states
	res.Elapsed = time.Since(start)
	if err != nil {
		return res, err
	}
	t.log.Info("conversion done",
		slog.String("path", job.Output),
		slog.String("format", res.Format.String()),
		slog.String("rows", humanize.Comma(res.Rows)),
		slog.String("bytes", humanize.IBytes(uint64(res.Bytes))),
		slog.Duration("elapsed", res.Elapsed),
	)
	return res, nil
}

func (r *Runner) run(ctx context.Context, job Job, t *tracker) (Result, error) {
	if err := job.Validate(); err != nil {
		return Result{}, t.fail(err)
	}
	t.to(ArgsParsed,
		slog.String("input", job.Input),
		slog.String("output", job.Output),
		slog.String("format", job.Format.String()),
	)

	in, err := r.resolver.Resolve(ctx, job.Input)
	if err != nil {
		return Result{}, t.fail(&colbench.DatasetOpenError{Dataset: job.Dataset, Path: job.Input, Err: err})
	}
	out, err := r.resolver.Resolve(ctx, job.Output)
	if err != nil {
		return Result{}, t.fail(&colbench.WriteError{Format: job.Format, Path: job.Output, Err: err})
	}

	inPath, release, err := in.Fetch(ctx)
	if err != nil {
		return Result{}, t.fail(&colbench.DatasetOpenError{Dataset: job.Dataset, Path: job.Input, Err: err})
	}
	defer release()

	staged, discard, err := out.Stage()
	if err != nil {
		return Result{}, t.fail(&colbench.WriteError{Format: job.Format, Path: job.Output, Err: err})
	}
	defer discard()

	var res Result
	if job.snapshot() {
		res, err = r.snapshot(ctx, job, inPath, staged, t)
	} else {
		res, err = r.convert(ctx, job, inPath, staged, t)
	}
	if err != nil {
		dropOutput(ctx, out, t)
		return res, t.fail(err)
	}

	if err := out.Publish(ctx, staged); err != nil {
		dropOutput(ctx, out, t)
		return res, t.fail(&colbench.WriteError{Format: job.Format, Path: job.Output, Err: err})
	}
	res.Path = job.Output
	t.to(Done)
	return res, nil
}

// dropOutput removes the output of an earlier run once the conversion
// meant to replace it has failed, so a failed run leaves no output behind.
func dropOutput(ctx context.Context, out storage.Location, t *tracker) {
	removed, err := out.Remove(ctx)
	if err != nil {
		t.log.Warn("removing previous output failed", slog.String("path", out.URI), slog.Any("error", err))
		return
	}
	if removed {
		t.log.Info("removed previous output", slog.String("path", out.URI))
	}
}

// convert runs the introspect, normalize and write stages.
func (r *Runner) convert(ctx context.Context, job Job, inPath, staged string, t *tracker) (Result, error) {
	ds, err := source.Open(ctx, job.Dataset, inPath)
	if err != nil {
		return Result{}, relabel(err, job.Input, job.Output)
	}
	defer func() { _ = ds.Close() }()

	info := ds.Inspect()
	t.to(SchemaIntrospected,
		slog.Int("columns", len(info.Columns)),
		slog.String("rows", humanize.Comma(info.TotalRows)),
		slog.Int64("clusters", info.ClusterCount),
	)

	plan, err := colbench.Plan(info.Columns, job.Rules())
	if err != nil {
		return Result{Source: info}, err
	}
	var rewritten []string
	for _, e := range plan.Rewritten() {
		rewritten = append(rewritten, e.Source.Name)
		t.log.Debug("normalize column",
			slog.String("column", e.Source.Name),
			slog.String("from", e.Source.Type.String()),
			slog.String("to", e.Target.Type.String()),
		)
	}
	t.to(Normalized, slog.Int("rewritten", len(rewritten)))

	layout, err := job.layout(info)
	if err != nil {
		return Result{Source: info}, fmt.Errorf("layout: %w", err)
	}

	it := ds.Scan(ctx, job.BatchRows)
	wr, err := sink.Write(ctx, it, plan, job.Format, layout, staged, sink.WithTreeName(job.Dataset))
	if err != nil {
		return Result{Source: info, Rewritten: rewritten}, relabel(err, job.Input, job.Output)
	}
	t.to(Written,
		slog.String("rows", humanize.Comma(wr.Rows)),
		slog.String("bytes", humanize.IBytes(uint64(wr.Bytes))),
		slog.String("codec", wr.Layout.Codec.String()),
		slog.Int64("group_rows", wr.Layout.GroupRows),
	)
	return Result{WriteResult: wr, Source: info, Rewritten: rewritten}, nil
}

// snapshot copies a ROOT tree without an intermediate batch stage.
func (r *Runner) snapshot(ctx context.Context, job Job, inPath, staged string, t *tracker) (Result, error) {
	var info colbench.SchemaInfo
	layout := colbench.DefaultLayout(job.Format, job.Uncompressed)
	if job.MirrorSourceClustering {
		ds, err := source.Open(ctx, job.Dataset, inPath)
		if err != nil {
			return Result{}, relabel(err, job.Input, job.Output)
		}
		info = ds.Inspect()
		_ = ds.Close()
		if layout, err = job.layout(info); err != nil {
			return Result{Source: info}, fmt.Errorf("layout: %w", err)
		}
	}
	t.to(DirectSnapshot, slog.Int64("group_rows", layout.GroupRows))

	wr, err := sink.Snapshot(ctx, job.Dataset, inPath, layout, staged, sink.WithTreeName(job.Dataset))
	if err != nil {
		return Result{Source: info}, relabel(err, job.Input, job.Output)
	}
	return Result{WriteResult: wr, Source: info}, nil
}

// relabel replaces the local staging paths in taxonomy errors with the
// job's paths. Open errors name the input, write errors the output.
func relabel(err error, input, output string) error {
	var openErr *colbench.DatasetOpenError
	if errors.As(err, &openErr) {
		return &colbench.DatasetOpenError{Dataset: openErr.Dataset, Path: input, Err: openErr.Err}
	}
	var writeErr *colbench.WriteError
	if errors.As(err, &writeErr) {
		return &colbench.WriteError{Format: writeErr.Format, Path: output, Err: writeErr.Err}
	}
	return err
}

// -----------------------------------------------------------------------------
// Inspection
// -----------------------------------------------------------------------------

// Inspect introspects the dataset at uri and returns its schema and the
// size of its file in bytes.
func (r *Runner) Inspect(ctx context.Context, dataset, uri string) (colbench.SchemaInfo, int64, error) {
	if dataset == "" || uri == "" {
		return colbench.SchemaInfo{}, 0, &colbench.ArgumentError{Msg: "dataset name and path are required"}
	}
	if _, err := colbench.FormatFromPath(uri); err != nil {
		return colbench.SchemaInfo{}, 0, &colbench.ArgumentError{Msg: "cannot select a reader for the input", Err: err}
	}

	loc, err := r.resolver.Resolve(ctx, uri)
	if err != nil {
		return colbench.SchemaInfo{}, 0, &colbench.DatasetOpenError{Dataset: dataset, Path: uri, Err: err}
	}
	path, release, err := loc.Fetch(ctx)
	if err != nil {
		return colbench.SchemaInfo{}, 0, &colbench.DatasetOpenError{Dataset: dataset, Path: uri, Err: err}
	}
	defer release()

	ds, err := source.Open(ctx, dataset, path)
	if err != nil {
		return colbench.SchemaInfo{}, 0, relabel(err, uri, uri)
	}
	defer func() { _ = ds.Close() }()

	st, err := os.Stat(path)
	if err != nil {
		return colbench.SchemaInfo{}, 0, &colbench.DatasetOpenError{Dataset: dataset, Path: uri, Err: err}
	}
	info := ds.Inspect()
	r.log.Debug("inspected",
		slog.String("dataset", dataset),
		slog.String("path", uri),
		slog.String("format", info.Format.String()),
		slog.String("rows", humanize.Comma(info.TotalRows)),
		slog.String("bytes", humanize.IBytes(uint64(st.Size()))),
	)
	return info, st.Size(), nil
}
