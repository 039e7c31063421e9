// Package sink encodes normalized batches into ORC, Parquet and ROOT files
// with an explicit layout policy.
package sink

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/justapithecus/colbench/colbench"
)

// DefaultTreeName is the ROOT tree name used when none is configured.
const DefaultTreeName = "Events"

// Option configures Write and Snapshot.
type Option func(*options)

type options struct {
	treeName string
}

// WithTreeName sets the name of the tree written to ROOT files.
func WithTreeName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.treeName = name
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{treeName: DefaultTreeName}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// encoder is implemented by the per-format writers.
type encoder interface {
	// writeBatch encodes rows in target schema order.
	writeBatch(colbench.Batch) error

	// columns returns the schema of the file being written.
	columns() []colbench.Column

	// close finalizes the file and releases its handle.
	close() error
}

// layoutWriter is implemented by encoders whose library cannot apply every
// layout field; written reports the layout as stored in the file.
type layoutWriter interface {
	written() colbench.Layout
}

// Write drains it, applies plan to every batch and encodes the result into
// a new file at path, replacing any existing file.
//
// A target format that cannot represent a column of the plan's target
// schema fails with *colbench.UnsupportedTypeError before path is created.
// Every other failure is returned as *colbench.WriteError and leaves no
// file at path.
func Write(ctx context.Context, it colbench.BatchIterator, plan colbench.NormalizationPlan, format colbench.Format, layout colbench.Layout, path string, opts ...Option) (colbench.WriteResult, error) {
	o := buildOptions(opts)

	enc, err := newEncoder(format, path, plan.Targets(), layout, o)
	if err != nil {
		var ut *colbench.UnsupportedTypeError
		if errors.As(err, &ut) {
			return colbench.WriteResult{}, err
		}
		return colbench.WriteResult{}, &colbench.WriteError{Format: format, Path: path, Err: err}
	}

	rows, err := drain(ctx, it, plan, enc)
	if cerr := enc.close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return colbench.WriteResult{}, &colbench.WriteError{Format: format, Path: path, Err: err}
	}

	st, err := os.Stat(path)
	if err != nil {
		return colbench.WriteResult{}, &colbench.WriteError{Format: format, Path: path, Err: err}
	}
	if lw, ok := enc.(layoutWriter); ok {
		layout = lw.written()
	}

	return colbench.WriteResult{
		Format:  format,
		Path:    path,
		Rows:    rows,
		Columns: enc.columns(),
		Bytes:   st.Size(),
		Layout:  layout,
	}, nil
}

// newEncoder is the single dispatch point over the closed set of formats.
func newEncoder(format colbench.Format, path string, cols []colbench.Column, layout colbench.Layout, o options) (encoder, error) {
	switch format {
	case colbench.FormatORC:
		return newORCEncoder(path, cols, layout)
	case colbench.FormatParquet:
		return newParquetEncoder(path, cols, layout)
	case colbench.FormatROOT:
		return newROOTEncoder(path, o.treeName, cols, layout)
	default:
		return nil, fmt.Errorf("%w: %s", colbench.ErrUnknownFormat, format)
	}
}

func drain(ctx context.Context, it colbench.BatchIterator, plan colbench.NormalizationPlan, enc encoder) (int64, error) {
	defer func() { _ = it.Close() }()

	var rows int64
	for it.Next() {
		if err := ctx.Err(); err != nil {
			return rows, err
		}
		b := it.Batch()
		if err := plan.Apply(b); err != nil {
			return rows, fmt.Errorf("normalize rows %d-%d: %w", rows, rows+int64(len(b)), err)
		}
		if err := enc.writeBatch(b); err != nil {
			return rows, fmt.Errorf("encode rows %d-%d: %w", rows, rows+int64(len(b)), err)
		}
		rows += int64(len(b))
	}
	if err := it.Err(); err != nil {
		return rows, fmt.Errorf("read source: %w", err)
	}
	return rows, nil
}

// checkWidth validates that row carries one value per column.
func checkWidth(row colbench.Row, cols []colbench.Column) error {
	if len(row) != len(cols) {
		return fmt.Errorf("%w: got %d values, want %d", colbench.ErrRowWidth, len(row), len(cols))
	}
	return nil
}
