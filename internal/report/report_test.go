package report_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"

	"github.com/justapithecus/colbench/colbench"
	"github.com/justapithecus/colbench/internal/codec"
	"github.com/justapithecus/colbench/internal/report"
	"github.com/justapithecus/colbench/internal/s3"
	"github.com/justapithecus/colbench/internal/storage"
)

func eventsInfo() colbench.SchemaInfo {
	return colbench.SchemaInfo{
		Dataset: "Events",
		Format:  colbench.FormatParquet,
		Columns: []colbench.Column{
			{Name: "run", Type: colbench.Scalar(colbench.KindInt32)},
			{Name: "Muon_pt", Type: colbench.ListOf(colbench.KindFloat32), Count: "nMuon"},
		},
		TotalRows:    1000,
		ClusterCount: 10,
		Codec:        "zstd",
	}
}

func TestColumns_Text(t *testing.T) {
	var buf bytes.Buffer
	err := report.Emit(context.Background(), storage.Resolver{}, "", &buf, "text", report.Columns(eventsInfo()))
	if err != nil {
		t.Fatalf("Emit failed: %v", err)
	}
	if buf.String() != "run\nMuon_pt\n" {
		t.Errorf("text output = %q", buf.String())
	}
}

func TestColumns_CSV(t *testing.T) {
	var buf bytes.Buffer
	err := report.Emit(context.Background(), storage.Resolver{}, "", &buf, "csv", report.Columns(eventsInfo()))
	if err != nil {
		t.Fatalf("Emit failed: %v", err)
	}
	want := "name,type,nullable,count\nrun,int32,false,\nMuon_pt,[]float32,false,nMuon\n"
	if buf.String() != want {
		t.Errorf("csv output = %q, want %q", buf.String(), want)
	}
}

func TestEvents_Text(t *testing.T) {
	var buf bytes.Buffer
	err := report.Emit(context.Background(), storage.Resolver{}, "", &buf, "text", report.Events(eventsInfo()))
	if err != nil {
		t.Fatalf("Emit failed: %v", err)
	}
	if buf.String() != "1000\n" {
		t.Errorf("text output = %q, want 1000", buf.String())
	}
}

func TestStorage(t *testing.T) {
	r := report.Storage("s3://bench/data/ttjet_signed.parquet", eventsInfo(), 2500)

	want := report.StorageRecord{
		Benchmark:     "ttjet_signed",
		Format:        "parquet",
		Events:        1000,
		FileSize:      2500,
		BytesPerEvent: 2.5,
		Clusters:      10,
		Codec:         "zstd",
	}
	if r != want {
		t.Errorf("Storage = %+v, want %+v", r, want)
	}
	if got := strings.Join(r.Cells(), ","); got != "ttjet_signed,parquet,1000,2500,2.50,10,zstd" {
		t.Errorf("Cells = %s", got)
	}
}

func TestStorage_EmptyDataset(t *testing.T) {
	info := eventsInfo()
	info.TotalRows = 0
	if r := report.Storage("empty.orc", info, 100); r.BytesPerEvent != 0 {
		t.Errorf("BytesPerEvent = %v, want 0", r.BytesPerEvent)
	}
}

func TestEmit_UnknownFormat(t *testing.T) {
	err := report.Emit(context.Background(), storage.Resolver{}, "", io.Discard, "xml", nil)
	if !errors.Is(err, codec.ErrUnknownCodec) {
		t.Errorf("expected ErrUnknownCodec, got %v", err)
	}
}

func TestEmit_LocalFile(t *testing.T) {
	ctx := context.Background()
	out := filepath.Join(t.TempDir(), "columns.json")

	if err := report.Emit(ctx, storage.DefaultResolver, out, nil, "json", report.Columns(eventsInfo())); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !strings.Contains(string(data), `"name": "Muon_pt"`) {
		t.Errorf("unexpected json: %s", data)
	}
}

func TestEmit_ZstdFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	out := filepath.Join(dir, "storage.csv.zst")

	records := []codec.Record{report.Storage("a.root", eventsInfo(), 4000)}
	if err := report.Emit(ctx, storage.DefaultResolver, out, nil, "csv", records); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer func() { _ = f.Close() }()
	d, err := zstd.NewReader(f)
	if err != nil {
		t.Fatalf("zstd.NewReader failed: %v", err)
	}
	defer d.Close()

	data, err := io.ReadAll(d)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if !strings.HasPrefix(string(data), "benchmark,format,n_events,file_size") {
		t.Errorf("unexpected csv: %q", data)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("expected only the report in %s, got %d entries", dir, len(entries))
	}
}

func TestEmit_S3(t *testing.T) {
	ctx := context.Background()
	client := s3.NewMockS3Client()
	r := storage.Resolver{
		OpenS3: func(_ context.Context, bucket string) (colbench.Store, error) {
			return s3.New(client, s3.Config{Bucket: bucket})
		},
	}

	if err := report.Emit(ctx, r, "s3://bench/reports/nevents.txt", nil, "text", report.Events(eventsInfo())); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}
	data, ok := client.Object("reports/nevents.txt")
	if !ok || string(data) != "1000\n" {
		t.Errorf("object = %q, %v", data, ok)
	}
}
