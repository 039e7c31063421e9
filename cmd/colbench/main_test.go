package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/justapithecus/colbench/colbench"
	"github.com/justapithecus/colbench/internal/sink"
	"github.com/justapithecus/colbench/internal/source"
	"github.com/justapithecus/colbench/internal/testutil"
)

const nEvents = 120

func sample(t *testing.T, dir string) string {
	t.Helper()
	plan, err := colbench.Plan(testutil.EventColumns(), colbench.IdentityRules)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	path := filepath.Join(dir, "sample.root")
	it := testutil.NewSliceIterator(testutil.EventRows(nEvents), 50, nil)
	if _, err := sink.Write(context.Background(), it, plan, colbench.FormatROOT, colbench.DefaultLayout(colbench.FormatROOT, false), path); err != nil {
		t.Fatalf("writing sample failed: %v", err)
	}
	return path
}

func runCLI(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestConvert_FormatB(t *testing.T) {
	dir := t.TempDir()
	in := sample(t, dir)
	out := filepath.Join(dir, "sample.parquet")

	code, _, stderr := runCLI("convert", "Events", in, out, "-o", "formatB")
	if code != exitOK {
		t.Fatalf("exit code %d, stderr: %s", code, stderr)
	}

	ds, err := source.Open(context.Background(), "Events", out)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer func() { _ = ds.Close() }()
	info := ds.Inspect()
	if info.TotalRows != nEvents || len(info.Columns) != 12 {
		t.Errorf("rows=%d columns=%d", info.TotalRows, len(info.Columns))
	}
	if run, _ := info.Column("run"); run.Type.Kind != colbench.KindInt32 {
		t.Errorf("run kind = %s, want int32", run.Type.Kind)
	}
}

func TestConvert_DefaultModeAndJSON(t *testing.T) {
	dir := t.TempDir()
	in := sample(t, dir)
	out := filepath.Join(dir, "sample.orc")

	code, stdout, stderr := runCLI("convert", "Events", in, out, "-u", "--json", "-v")
	if code != exitOK {
		t.Fatalf("exit code %d, stderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, `"format": "orc"`) || !strings.Contains(stdout, `"codec": "none"`) {
		t.Errorf("unexpected JSON result: %s", stdout)
	}
	if !strings.Contains(stderr, "to=schema_introspected") {
		t.Errorf("expected debug state logs, got: %s", stderr)
	}
}

func TestConvert_UnknownOutputMode(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "x.csv")

	code, _, stderr := runCLI("convert", "Events", filepath.Join(dir, "in.root"), out, "-o", "formatD")
	if code != exitArgument {
		t.Errorf("exit code = %d, want %d", code, exitArgument)
	}
	if !strings.Contains(stderr, "Usage:") {
		t.Errorf("expected usage message, got: %s", stderr)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Error("output created for an invalid invocation")
	}
}

func TestConvert_WrongArgCount(t *testing.T) {
	if code, _, _ := runCLI("convert", "Events", "in.root"); code != exitArgument {
		t.Errorf("exit code = %d, want %d", code, exitArgument)
	}
}

func TestConvert_MissingInput(t *testing.T) {
	dir := t.TempDir()
	code, _, stderr := runCLI("convert", "Events", filepath.Join(dir, "missing.root"), filepath.Join(dir, "out.orc"))
	if code != exitFailure {
		t.Errorf("exit code = %d, want %d", code, exitFailure)
	}
	if !strings.Contains(stderr, "missing.root") || !strings.Contains(stderr, `"Events"`) {
		t.Errorf("error lacks path or dataset: %s", stderr)
	}
}

func TestColumns(t *testing.T) {
	in := sample(t, t.TempDir())

	code, stdout, stderr := runCLI("columns", "Events", in)
	if code != exitOK {
		t.Fatalf("exit code %d, stderr: %s", code, stderr)
	}
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	if len(lines) != 12 || lines[0] != "run" {
		t.Errorf("columns output = %q", stdout)
	}
}

func TestNEvents_OutputFile(t *testing.T) {
	dir := t.TempDir()
	in := sample(t, dir)
	out := filepath.Join(dir, "nevents.txt")

	code, stdout, stderr := runCLI("nevents", "Events", in, "-o", out)
	if code != exitOK {
		t.Fatalf("exit code %d, stderr: %s", code, stderr)
	}
	if stdout != "" {
		t.Errorf("expected nothing on stdout, got %q", stdout)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "120\n" {
		t.Errorf("nevents file = %q, want 120", data)
	}
}

func TestStorage(t *testing.T) {
	dir := t.TempDir()
	in := sample(t, dir)
	pq := filepath.Join(dir, "sample.parquet")
	if code, _, stderr := runCLI("convert", "Events", in, pq, "-o", "parquet"); code != exitOK {
		t.Fatalf("convert failed: %s", stderr)
	}

	code, stdout, stderr := runCLI("storage", "Events", in, pq)
	if code != exitOK {
		t.Fatalf("exit code %d, stderr: %s", code, stderr)
	}
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and 2 rows, got %q", stdout)
	}
	if lines[0] != "benchmark,format,n_events,file_size,bytes_per_event,clusters,codec" {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "sample,root,120,") || !strings.HasPrefix(lines[2], "sample,parquet,120,") {
		t.Errorf("rows = %q", lines[1:])
	}
}

func TestStorage_BadReportFormat(t *testing.T) {
	in := sample(t, t.TempDir())
	if code, _, _ := runCLI("storage", "Events", in, "--format", "xml"); code != exitArgument {
		t.Errorf("exit code = %d, want %d", code, exitArgument)
	}
}
