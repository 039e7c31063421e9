package convert_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/justapithecus/colbench/colbench"
	"github.com/justapithecus/colbench/internal/convert"
	"github.com/justapithecus/colbench/internal/s3"
	"github.com/justapithecus/colbench/internal/sink"
	"github.com/justapithecus/colbench/internal/source"
	"github.com/justapithecus/colbench/internal/storage"
	"github.com/justapithecus/colbench/internal/testutil"
)

const nEvents = 250

// sampleROOT writes the Events tree, unsigned run column included, to
// dir/sample.root.
func sampleROOT(t *testing.T, dir string) string {
	t.Helper()
	plan, err := colbench.Plan(testutil.EventColumns(), colbench.IdentityRules)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	path := filepath.Join(dir, "sample.root")
	it := testutil.NewSliceIterator(testutil.EventRows(nEvents), 100, nil)
	layout := colbench.DefaultLayout(colbench.FormatROOT, false)
	if _, err := sink.Write(context.Background(), it, plan, colbench.FormatROOT, layout, path); err != nil {
		t.Fatalf("writing sample failed: %v", err)
	}
	return path
}

func inspect(t *testing.T, path string) colbench.SchemaInfo {
	t.Helper()
	ds, err := source.Open(context.Background(), "Events", path)
	if err != nil {
		t.Fatalf("Open(%s) failed: %v", path, err)
	}
	defer func() { _ = ds.Close() }()
	return ds.Inspect()
}

func states(s ...convert.State) []convert.State { return s }

func TestRun_EventsToParquet(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "sample.parquet")
	job := convert.Job{
		Dataset: "Events",
		Input:   sampleROOT(t, dir),
		Output:  out,
		Format:  colbench.FormatParquet,
	}

	res, err := convert.New(convert.Config{}).Run(context.Background(), job)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	want := states(convert.Idle, convert.ArgsParsed, convert.SchemaIntrospected, convert.Normalized, convert.Written, convert.Done)
	if !reflect.DeepEqual(res.States, want) {
		t.Errorf("States = %v, want %v", res.States, want)
	}
	if !reflect.DeepEqual(res.Rewritten, []string{"run"}) {
		t.Errorf("Rewritten = %v, want [run]", res.Rewritten)
	}
	if res.Path != out || res.Rows != nEvents || res.Source.TotalRows != nEvents {
		t.Errorf("unexpected result: path=%s rows=%d source rows=%d", res.Path, res.Rows, res.Source.TotalRows)
	}

	info := inspect(t, out)
	if len(info.Columns) != 12 {
		t.Fatalf("output has %d columns, want 12", len(info.Columns))
	}
	if info.TotalRows != nEvents {
		t.Errorf("output has %d rows, want %d", info.TotalRows, nEvents)
	}
	run, _ := info.Column("run")
	if run.Type != colbench.Scalar(colbench.KindInt32) {
		t.Errorf("run type = %s, want int32", run.Type)
	}
	for _, c := range info.Columns {
		if c.Type.Kind.Unsigned() {
			t.Errorf("column %s is still unsigned", c.Name)
		}
	}
}

func TestRun_RoundTripRowCount(t *testing.T) {
	dir := t.TempDir()
	in := sampleROOT(t, dir)
	r := convert.New(convert.Config{})

	for _, f := range colbench.Formats {
		t.Run(f.String(), func(t *testing.T) {
			out := filepath.Join(dir, "rt"+f.Extension())
			if f == colbench.FormatROOT {
				out = filepath.Join(dir, "rt_signed.root")
			}
			res, err := r.Run(context.Background(), convert.Job{Dataset: "Events", Input: in, Output: out, Format: f})
			if err != nil {
				t.Fatalf("Run failed: %v", err)
			}
			if got := inspect(t, out).TotalRows; got != nEvents || res.Rows != nEvents {
				t.Errorf("rows: file=%d result=%d, want %d", got, res.Rows, nEvents)
			}
		})
	}
}

func TestRun_OverwritesOutput(t *testing.T) {
	dir := t.TempDir()
	in := sampleROOT(t, dir)
	out := filepath.Join(dir, "twice.parquet")
	r := convert.New(convert.Config{})

	job := convert.Job{Dataset: "Events", Input: in, Output: out, Format: colbench.FormatParquet}
	if _, err := r.Run(context.Background(), job); err != nil {
		t.Fatalf("first Run failed: %v", err)
	}
	if got := inspect(t, out).Codec; got != "zstd" {
		t.Errorf("first run codec = %q, want zstd", got)
	}

	job.Uncompressed = true
	if _, err := r.Run(context.Background(), job); err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
	info := inspect(t, out)
	if info.Codec != "none" {
		t.Errorf("second run codec = %q, want none", info.Codec)
	}
	if info.TotalRows != nEvents {
		t.Errorf("rows = %d, want %d", info.TotalRows, nEvents)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 2 {
		t.Errorf("expected input and output only, got %d entries", len(entries))
	}
}

func TestRun_MirrorSourceClustering(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "mirror.parquet")
	job := convert.Job{
		Dataset:                "Events",
		Input:                  sampleROOT(t, dir),
		Output:                 out,
		Format:                 colbench.FormatParquet,
		MirrorSourceClustering: true,
	}

	res, err := convert.New(convert.Config{}).Run(context.Background(), job)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Layout.Preset != colbench.PresetMirror || res.Layout.GroupRows != nEvents {
		t.Errorf("layout = %+v, want mirror preset with %d group rows", res.Layout, nEvents)
	}
	if got := inspect(t, out).ClusterCount; got != 1 {
		t.Errorf("cluster count = %d, want 1", got)
	}
}

func TestRun_DirectSnapshot(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "copy.root")
	job := convert.Job{
		Dataset:      "Events",
		Input:        sampleROOT(t, dir),
		Output:       out,
		Format:       colbench.FormatROOT,
		KeepUnsigned: true,
	}

	res, err := convert.New(convert.Config{}).Run(context.Background(), job)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	want := states(convert.Idle, convert.ArgsParsed, convert.DirectSnapshot, convert.Done)
	if !reflect.DeepEqual(res.States, want) {
		t.Errorf("States = %v, want %v", res.States, want)
	}

	info := inspect(t, out)
	run, _ := info.Column("run")
	if run.Type != colbench.Scalar(colbench.KindUint32) {
		t.Errorf("run type = %s, want uint32", run.Type)
	}
	if info.TotalRows != nEvents {
		t.Errorf("rows = %d, want %d", info.TotalRows, nEvents)
	}
}

func TestRun_KeepUnsignedORC(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "unsigned.orc")
	job := convert.Job{
		Dataset:      "Events",
		Input:        sampleROOT(t, dir),
		Output:       out,
		Format:       colbench.FormatORC,
		KeepUnsigned: true,
	}

	res, err := convert.New(convert.Config{}).Run(context.Background(), job)
	var typeErr *colbench.UnsupportedTypeError
	if !errors.As(err, &typeErr) {
		t.Fatalf("expected UnsupportedTypeError, got %v", err)
	}
	if typeErr.Column != "run" {
		t.Errorf("column = %q, want run", typeErr.Column)
	}
	if last := res.States[len(res.States)-1]; last != convert.Failed {
		t.Errorf("last state = %s, want failed", last)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("expected only the input in %s, got %d entries", dir, len(entries))
	}
}

func TestRun_MissingInput(t *testing.T) {
	dir := t.TempDir()
	job := convert.Job{
		Dataset: "Events",
		Input:   filepath.Join(dir, "missing.root"),
		Output:  filepath.Join(dir, "out.orc"),
		Format:  colbench.FormatORC,
	}

	res, err := convert.New(convert.Config{}).Run(context.Background(), job)
	var openErr *colbench.DatasetOpenError
	if !errors.As(err, &openErr) {
		t.Fatalf("expected DatasetOpenError, got %v", err)
	}
	if openErr.Path != job.Input || openErr.Dataset != "Events" {
		t.Errorf("error context = %q/%q", openErr.Dataset, openErr.Path)
	}
	if !source.IsNotExist(err) {
		t.Errorf("expected a not-exist cause, got %v", err)
	}
	want := states(convert.Idle, convert.ArgsParsed, convert.Failed)
	if !reflect.DeepEqual(res.States, want) {
		t.Errorf("States = %v, want %v", res.States, want)
	}
	if _, err := os.Stat(job.Output); !os.IsNotExist(err) {
		t.Error("output created for a missing input")
	}
}

func TestRun_MissingTree(t *testing.T) {
	dir := t.TempDir()
	job := convert.Job{
		Dataset: "DecayTree",
		Input:   sampleROOT(t, dir),
		Output:  filepath.Join(dir, "out.parquet"),
		Format:  colbench.FormatParquet,
	}

	_, err := convert.New(convert.Config{}).Run(context.Background(), job)
	if !errors.Is(err, colbench.ErrTableNotFound) {
		t.Errorf("expected ErrTableNotFound, got %v", err)
	}
}

func TestRun_FailureRemovesPreviousOutput(t *testing.T) {
	dir := t.TempDir()
	in := sampleROOT(t, dir)
	out := filepath.Join(dir, "out.parquet")
	runner := convert.New(convert.Config{})

	job := convert.Job{Dataset: "Events", Input: in, Output: out, Format: colbench.FormatParquet}
	if _, err := runner.Run(context.Background(), job); err != nil {
		t.Fatalf("first Run failed: %v", err)
	}

	job.Dataset = "DecayTree"
	if _, err := runner.Run(context.Background(), job); !errors.Is(err, colbench.ErrTableNotFound) {
		t.Fatalf("expected ErrTableNotFound, got %v", err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Errorf("output of the earlier run survived a failed conversion: %v", err)
	}
}

func TestRun_S3FailureRemovesPreviousOutput(t *testing.T) {
	ctx := context.Background()
	client := s3.NewMockS3Client()
	resolver := storage.Resolver{
		OpenS3: func(_ context.Context, bucket string) (colbench.Store, error) {
			return s3.New(client, s3.Config{Bucket: bucket})
		},
	}
	out, err := resolver.Resolve(ctx, "s3://bench/out/sample.orc")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if err := out.Store.Put(ctx, out.Key, bytes.NewReader([]byte("earlier run"))); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	job := convert.Job{
		Dataset: "DecayTree",
		Input:   sampleROOT(t, t.TempDir()),
		Output:  "s3://bench/out/sample.orc",
		Format:  colbench.FormatORC,
	}
	if _, err := convert.New(convert.Config{Resolver: resolver}).Run(ctx, job); err == nil {
		t.Fatal("expected Run to fail")
	}
	if _, ok := client.Object("out/sample.orc"); ok {
		t.Error("output object of the earlier run survived a failed conversion")
	}
}

func TestRun_InvalidJob(t *testing.T) {
	tests := []struct {
		name string
		job  convert.Job
	}{
		{"no dataset", convert.Job{Input: "a.root", Output: "b.orc"}},
		{"no input", convert.Job{Dataset: "Events", Output: "b.orc"}},
		{"no output", convert.Job{Dataset: "Events", Input: "a.root"}},
		{"bad format", convert.Job{Dataset: "Events", Input: "a.root", Output: "b.orc", Format: colbench.Format(7)}},
		{"bad suffix", convert.Job{Dataset: "Events", Input: "a.csv", Output: "b.orc"}},
		{"negative batch", convert.Job{Dataset: "Events", Input: "a.root", Output: "b.orc", BatchRows: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := convert.New(convert.Config{}).Run(context.Background(), tt.job)
			var argErr *colbench.ArgumentError
			if !errors.As(err, &argErr) {
				t.Fatalf("expected ArgumentError, got %v", err)
			}
			want := states(convert.Idle, convert.Failed)
			if !reflect.DeepEqual(res.States, want) {
				t.Errorf("States = %v, want %v", res.States, want)
			}
		})
	}
}

func TestRun_S3InputOutput(t *testing.T) {
	ctx := context.Background()
	client := s3.NewMockS3Client()
	resolver := storage.Resolver{
		OpenS3: func(_ context.Context, bucket string) (colbench.Store, error) {
			return s3.New(client, s3.Config{Bucket: bucket})
		},
	}

	sample, err := os.ReadFile(sampleROOT(t, t.TempDir()))
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	in, err := resolver.Resolve(ctx, "s3://bench/nano/sample.root")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if err := in.Store.Put(ctx, in.Key, bytes.NewReader(sample)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	job := convert.Job{
		Dataset: "Events",
		Input:   "s3://bench/nano/sample.root",
		Output:  "s3://bench/out/sample.orc",
		Format:  colbench.FormatORC,
	}
	res, err := convert.New(convert.Config{Resolver: resolver}).Run(ctx, job)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Path != job.Output {
		t.Errorf("Path = %q, want %q", res.Path, job.Output)
	}

	data, ok := client.Object("out/sample.orc")
	if !ok {
		t.Fatal("output object missing")
	}
	local := filepath.Join(t.TempDir(), "sample.orc")
	if err := os.WriteFile(local, data, 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if got := inspect(t, local).TotalRows; got != nEvents {
		t.Errorf("rows = %d, want %d", got, nEvents)
	}
	if int64(len(data)) != res.Bytes {
		t.Errorf("Bytes = %d, object has %d", res.Bytes, len(data))
	}
}

func TestRun_S3MissingInput(t *testing.T) {
	resolver := storage.Resolver{
		OpenS3: func(_ context.Context, bucket string) (colbench.Store, error) {
			return s3.New(s3.NewMockS3Client(), s3.Config{Bucket: bucket})
		},
	}
	job := convert.Job{
		Dataset: "Events",
		Input:   "s3://bench/missing.root",
		Output:  filepath.Join(t.TempDir(), "out.orc"),
		Format:  colbench.FormatORC,
	}

	_, err := convert.New(convert.Config{Resolver: resolver}).Run(context.Background(), job)
	var openErr *colbench.DatasetOpenError
	if !errors.As(err, &openErr) || !errors.Is(err, colbench.ErrNotFound) {
		t.Errorf("expected DatasetOpenError wrapping ErrNotFound, got %v", err)
	}
}

func TestInspect(t *testing.T) {
	in := sampleROOT(t, t.TempDir())

	info, size, err := convert.New(convert.Config{}).Inspect(context.Background(), "Events", in)
	if err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}
	st, _ := os.Stat(in)
	if size != st.Size() {
		t.Errorf("size = %d, want %d", size, st.Size())
	}
	if info.TotalRows != nEvents || info.ClusterCount != 1 || len(info.Columns) != 12 {
		t.Errorf("unexpected info: rows=%d clusters=%d columns=%d", info.TotalRows, info.ClusterCount, len(info.Columns))
	}
}

func TestInspect_Errors(t *testing.T) {
	r := convert.New(convert.Config{})

	var argErr *colbench.ArgumentError
	if _, _, err := r.Inspect(context.Background(), "Events", "data.txt"); !errors.As(err, &argErr) {
		t.Errorf("expected ArgumentError for unknown suffix, got %v", err)
	}
	var openErr *colbench.DatasetOpenError
	missing := filepath.Join(t.TempDir(), "missing.parquet")
	if _, _, err := r.Inspect(context.Background(), "Events", missing); !errors.As(err, &openErr) {
		t.Errorf("expected DatasetOpenError for missing file, got %v", err)
	}
}
