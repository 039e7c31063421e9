// Package source opens datasets for conversion: it introspects their schema
// and clustering and scans their rows in batches.
package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/justapithecus/colbench/colbench"
)

// DefaultBatchRows is the number of rows per batch when none is requested.
const DefaultBatchRows = 8192

// Dataset is an open, read-only source dataset.
type Dataset interface {
	// Inspect returns the schema, row count and clustering of the dataset.
	Inspect() colbench.SchemaInfo

	// Scan starts a sequential scan yielding batches of at most batchRows
	// rows. A dataset supports a single scan.
	Scan(ctx context.Context, batchRows int) colbench.BatchIterator

	// Close releases the underlying file.
	Close() error
}

// Open opens the dataset name stored in the local file at path. The reader
// is selected by the file suffix.
//
// Every failure is returned as a *colbench.DatasetOpenError carrying the
// dataset name and path; no file handle is left open on failure.
func Open(ctx context.Context, name, path string) (Dataset, error) {
	format, err := colbench.FormatFromPath(path)
	if err != nil {
		return nil, &colbench.DatasetOpenError{Dataset: name, Path: path, Err: err}
	}
	return OpenFormat(ctx, format, name, path)
}

// OpenFormat opens a dataset stored in the given format.
func OpenFormat(ctx context.Context, format colbench.Format, name, path string) (Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, &colbench.DatasetOpenError{Dataset: name, Path: path, Err: err}
	}
	if _, err := os.Stat(path); err != nil {
		return nil, &colbench.DatasetOpenError{Dataset: name, Path: path, Err: err}
	}

	var (
		ds  Dataset
		err error
	)
	switch format {
	case colbench.FormatORC:
		ds, err = openORC(name, path)
	case colbench.FormatParquet:
		ds, err = openParquet(name, path)
	case colbench.FormatROOT:
		ds, err = openROOT(name, path)
	default:
		err = fmt.Errorf("%w: %s", colbench.ErrUnknownFormat, format)
	}
	if err != nil {
		var openErr *colbench.DatasetOpenError
		if errors.As(err, &openErr) {
			return nil, err
		}
		return nil, &colbench.DatasetOpenError{Dataset: name, Path: path, Err: err}
	}
	return ds, nil
}

// ErrScanned indicates a second scan of a dataset.
var ErrScanned = errors.New("dataset already scanned")

// IsNotExist reports whether err was caused by a missing file or table.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, colbench.ErrTableNotFound)
}

// -----------------------------------------------------------------------------
// Batch iteration
// -----------------------------------------------------------------------------

// batchIter adapts a fill function to colbench.BatchIterator.
//
// fill appends up to n rows to the batch it receives and reports false once
// the source is exhausted.
type batchIter struct {
	ctx     context.Context
	n       int
	fill    func(colbench.Batch, int) (colbench.Batch, bool, error)
	closeFn func() error

	batch colbench.Batch
	done  bool
	err   error
}

func newBatchIter(ctx context.Context, n int, fill func(colbench.Batch, int) (colbench.Batch, bool, error), closeFn func() error) *batchIter {
	if n <= 0 {
		n = DefaultBatchRows
	}
	return &batchIter{ctx: ctx, n: n, fill: fill, closeFn: closeFn}
}

func (it *batchIter) Next() bool {
	if it.done || it.err != nil {
		return false
	}
	if err := it.ctx.Err(); err != nil {
		it.err = err
		return false
	}
	batch, more, err := it.fill(make(colbench.Batch, 0, it.n), it.n)
	if err != nil {
		it.err = err
		return false
	}
	if !more {
		it.done = true
	}
	it.batch = batch
	return len(batch) > 0
}

func (it *batchIter) Batch() colbench.Batch { return it.batch }

func (it *batchIter) Err() error { return it.err }

func (it *batchIter) Close() error {
	if it.closeFn == nil {
		return nil
	}
	fn := it.closeFn
	it.closeFn = nil
	return fn()
}

// errIter is an iterator that fails immediately.
type errIter struct{ err error }

func (e errIter) Next() bool { return false }

func (e errIter) Batch() colbench.Batch { return nil }

func (e errIter) Err() error { return e.err }

func (e errIter) Close() error { return nil }

var _ colbench.BatchIterator = (*batchIter)(nil)
var _ colbench.BatchIterator = errIter{}
