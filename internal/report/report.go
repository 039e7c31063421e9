// Package report builds the inspection records printed by the columns,
// nevents and storage commands, and writes them to stdout or an output file.
package report

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/justapithecus/colbench/colbench"
	"github.com/justapithecus/colbench/internal/codec"
	"github.com/justapithecus/colbench/internal/compress"
	"github.com/justapithecus/colbench/internal/storage"
)

// -----------------------------------------------------------------------------
// Records
// -----------------------------------------------------------------------------

// ColumnRecord describes one column of a dataset.
type ColumnRecord struct {
	Name     string `json:"name" yaml:"name"`
	Type     string `json:"type" yaml:"type"`
	Nullable bool   `json:"nullable" yaml:"nullable"`
	Count    string `json:"count,omitempty" yaml:"count,omitempty"`
}

// Header returns the CSV header of column records.
func (r ColumnRecord) Header() []string { return []string{"name", "type", "nullable", "count"} }

// Cells returns the record values.
func (r ColumnRecord) Cells() []string {
	return []string{r.Name, r.Type, strconv.FormatBool(r.Nullable), r.Count}
}

// Text returns the column name.
func (r ColumnRecord) Text() string { return r.Name }

// Columns returns one record per column, in schema order.
func Columns(info colbench.SchemaInfo) []codec.Record {
	records := make([]codec.Record, len(info.Columns))
	for i, c := range info.Columns {
		records[i] = ColumnRecord{
			Name:     c.Name,
			Type:     c.Type.String(),
			Nullable: c.Nullable,
			Count:    c.Count,
		}
	}
	return records
}

// EventsRecord holds the event count of a dataset.
type EventsRecord struct {
	Dataset string `json:"dataset" yaml:"dataset"`
	Events  int64  `json:"n_events" yaml:"n_events"`
}

// Header returns the CSV header of event records.
func (r EventsRecord) Header() []string { return []string{"dataset", "n_events"} }

// Cells returns the record values.
func (r EventsRecord) Cells() []string {
	return []string{r.Dataset, strconv.FormatInt(r.Events, 10)}
}

// Text returns the event count.
func (r EventsRecord) Text() string { return strconv.FormatInt(r.Events, 10) }

// Events returns the event count record of a dataset.
func Events(info colbench.SchemaInfo) []codec.Record {
	return []codec.Record{EventsRecord{Dataset: info.Dataset, Events: info.TotalRows}}
}

// StorageRecord describes the storage footprint of one dataset file.
type StorageRecord struct {
	// Benchmark is the file's base name without its format suffix.
	Benchmark     string  `json:"benchmark" yaml:"benchmark"`
	Format        string  `json:"format" yaml:"format"`
	Events        int64   `json:"n_events" yaml:"n_events"`
	FileSize      int64   `json:"file_size" yaml:"file_size"`
	BytesPerEvent float64 `json:"bytes_per_event" yaml:"bytes_per_event"`
	Clusters      int64   `json:"clusters" yaml:"clusters"`
	Codec         string  `json:"codec,omitempty" yaml:"codec,omitempty"`
}

// Header returns the CSV header of storage records.
func (r StorageRecord) Header() []string {
	return []string{"benchmark", "format", "n_events", "file_size", "bytes_per_event", "clusters", "codec"}
}

// Cells returns the record values.
func (r StorageRecord) Cells() []string {
	return []string{
		r.Benchmark,
		r.Format,
		strconv.FormatInt(r.Events, 10),
		strconv.FormatInt(r.FileSize, 10),
		strconv.FormatFloat(r.BytesPerEvent, 'f', 2, 64),
		strconv.FormatInt(r.Clusters, 10),
		r.Codec,
	}
}

// Storage returns the storage record of a file of size bytes at uri.
// BytesPerEvent is 0 for an empty dataset.
func Storage(uri string, info colbench.SchemaInfo, size int64) StorageRecord {
	base := path.Base(strings.ReplaceAll(uri, "\\", "/"))
	r := StorageRecord{
		Benchmark: strings.TrimSuffix(base, path.Ext(base)),
		Format:    info.Format.String(),
		Events:    info.TotalRows,
		FileSize:  size,
		Clusters:  info.ClusterCount,
		Codec:     info.Codec,
	}
	if info.TotalRows > 0 {
		r.BytesPerEvent = float64(size) / float64(info.TotalRows)
	}
	return r
}

// -----------------------------------------------------------------------------
// Output
// -----------------------------------------------------------------------------

// File is a report output file. Writes go to a staged local file that
// Commit compresses according to the path suffix (.zst, .gz) and publishes.
type File struct {
	loc     storage.Location
	staged  string
	cleanup func()
	f       *os.File
	w       io.WriteCloser
}

// Create opens a report output file for uri.
func Create(ctx context.Context, r storage.Resolver, uri string) (*File, error) {
	loc, err := r.Resolve(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("report output %s: %w", uri, err)
	}
	staged, cleanup, err := loc.Stage()
	if err != nil {
		return nil, err
	}
	f, err := os.Create(staged)
	if err != nil {
		cleanup()
		return nil, err
	}
	w, err := compress.ForPath(loc.Key).Compress(f)
	if err != nil {
		_ = f.Close()
		cleanup()
		return nil, err
	}
	return &File{loc: loc, staged: staged, cleanup: cleanup, f: f, w: w}, nil
}

// Write writes p to the report.
func (f *File) Write(p []byte) (int, error) {
	return f.w.Write(p)
}

// Commit flushes the report and moves it to its destination.
func (f *File) Commit(ctx context.Context) error {
	defer f.cleanup()
	if err := f.w.Close(); err != nil {
		_ = f.f.Close()
		return err
	}
	if err := f.f.Close(); err != nil {
		return err
	}
	return f.loc.Publish(ctx, f.staged)
}

// Abort discards the report.
func (f *File) Abort() {
	_ = f.w.Close()
	_ = f.f.Close()
	f.cleanup()
}

// Emit writes records to uri, or to stdout when uri is empty.
func Emit(ctx context.Context, r storage.Resolver, uri string, stdout io.Writer, format string, records []codec.Record) error {
	c, err := codec.ByName(format)
	if err != nil {
		return err
	}
	if uri == "" {
		return c.Encode(stdout, records)
	}

	f, err := Create(ctx, r, uri)
	if err != nil {
		return err
	}
	if err := c.Encode(f, records); err != nil {
		f.Abort()
		return err
	}
	return f.Commit(ctx)
}
