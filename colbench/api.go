// Package colbench provides the data model for converting columnar
// high-energy-physics datasets between storage formats.
//
// Colbench focuses on the conversion pipeline: schema introspection, type
// normalization and format-specific layout policy. Format codecs, physics
// analysis and plotting are provided by other tools.
package colbench

import (
	"context"
	"io"
)

// -----------------------------------------------------------------------------
// Columns
// -----------------------------------------------------------------------------

// Column describes a single column of a dataset.
//
// Column names are unique within a schema and the position of a column in
// its schema is significant.
type Column struct {
	// Name is the column name.
	Name string `json:"name" yaml:"name"`

	// Type is the declared type of the column.
	Type Type `json:"type" yaml:"type"`

	// Nullable reports whether values may be null.
	Nullable bool `json:"nullable,omitempty" yaml:"nullable,omitempty"`

	// Count optionally names the column holding the element count of a
	// list column (ROOT count leaves such as nMuon for Muon_pt).
	Count string `json:"count,omitempty" yaml:"count,omitempty"`
}

// ColumnOrderKey is the file metadata key under which writers of formats
// that do not preserve field order record the column names, as a JSON list.
const ColumnOrderKey = "colbench.columns"

// ColumnNames returns the names of the columns in order.
func ColumnNames(cols []Column) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

// -----------------------------------------------------------------------------
// Schema
// -----------------------------------------------------------------------------

// SchemaInfo is the result of introspecting a dataset.
type SchemaInfo struct {
	// Dataset is the name of the table or tree inside the file.
	Dataset string `json:"dataset" yaml:"dataset"`

	// Format is the storage format of the file.
	Format Format `json:"format" yaml:"format"`

	// Columns lists the dataset columns in schema order.
	Columns []Column `json:"columns" yaml:"columns"`

	// TotalRows is the number of rows (events) in the dataset.
	TotalRows int64 `json:"total_rows" yaml:"total_rows"`

	// ClusterCount is the number of physical row groups, stripes or
	// clusters. Introspectors report at least 1.
	ClusterCount int64 `json:"cluster_count" yaml:"cluster_count"`

	// Codec is the compression codec recorded in the file metadata, when the
	// format exposes it. Empty when unknown.
	Codec string `json:"codec,omitempty" yaml:"codec,omitempty"`
}

// RowsPerCluster returns the average number of rows per cluster.
// Returns ErrNoClusters if the cluster count is not positive.
func (s SchemaInfo) RowsPerCluster() (int64, error) {
	if s.ClusterCount <= 0 {
		return 0, ErrNoClusters
	}
	return s.TotalRows / s.ClusterCount, nil
}

// Column returns the column with the given name.
func (s SchemaInfo) Column(name string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// -----------------------------------------------------------------------------
// Batches
// -----------------------------------------------------------------------------

// Row holds one value per column, in schema order.
//
// Values use Go native types: bool, int8 through uint64, float32, float64,
// string, slices of those for list columns, and nil for null.
type Row []any

// Batch is a run of consecutive rows.
type Batch []Row

// BatchIterator yields the batches of a dataset scan.
//
// The sequence is lazy, finite and cannot be restarted. Batches returned
// by Batch remain valid after the following call to Next.
type BatchIterator interface {
	// Next advances to the next batch. Returns false at the end of the scan
	// or on error.
	Next() bool

	// Batch returns the current batch.
	Batch() Batch

	// Err returns the first error encountered by the scan.
	Err() error

	// Close releases the resources held by the scan.
	Close() error
}

// -----------------------------------------------------------------------------
// Results
// -----------------------------------------------------------------------------

// WriteResult describes a file produced by a format writer.
type WriteResult struct {
	// Format is the format of the written file.
	Format Format `json:"format" yaml:"format"`

	// Path is the path of the written file.
	Path string `json:"path" yaml:"path"`

	// Rows is the number of rows written.
	Rows int64 `json:"rows" yaml:"rows"`

	// Columns is the schema of the written file.
	Columns []Column `json:"columns" yaml:"columns"`

	// Bytes is the size of the written file.
	Bytes int64 `json:"bytes" yaml:"bytes"`

	// Layout is the layout policy applied by the encoder.
	Layout Layout `json:"layout" yaml:"layout"`
}

// -----------------------------------------------------------------------------
// Store interface
// -----------------------------------------------------------------------------

// Store abstracts the location conversion inputs are read from and outputs
// are published to.
//
// Implementations target the local filesystem or S3. Unlike an archival
// store, Put replaces existing objects: rerunning a conversion overwrites
// its output.
type Store interface {
	// Put writes data to the given path, replacing any existing object.
	Put(ctx context.Context, path string, r io.Reader) error

	// Get retrieves data from the given path.
	Get(ctx context.Context, path string) (io.ReadCloser, error)

	// Exists checks whether a path exists.
	Exists(ctx context.Context, path string) (bool, error)

	// Delete removes the path if it exists.
	Delete(ctx context.Context, path string) error
}
