package colbench

import (
	"errors"
	"fmt"
)

// -----------------------------------------------------------------------------
// Sentinels
// -----------------------------------------------------------------------------

// Error sentinel values for common conditions.
var (
	// ErrNoClusters indicates a dataset that reports zero clusters, so no
	// rows-per-cluster figure can be derived.
	ErrNoClusters = errors.New("dataset reports zero clusters")

	// ErrUnknownFormat indicates an output mode or file suffix that names no
	// supported format.
	ErrUnknownFormat = errors.New("unknown format")

	// ErrTableNotFound indicates a file that holds no table (tree) of the
	// requested name.
	ErrTableNotFound = errors.New("table not found")

	// ErrRowWidth indicates a row whose value count differs from the schema.
	ErrRowWidth = errors.New("row width does not match schema")

	// ErrNotFound indicates a missing object in a Store.
	ErrNotFound = errors.New("not found")

	// ErrInvalidPath indicates a store path that is empty or escapes the
	// store root.
	ErrInvalidPath = errors.New("invalid path")
)

// -----------------------------------------------------------------------------
// Error taxonomy
// -----------------------------------------------------------------------------

// DatasetOpenError reports a source dataset that could not be opened or
// introspected.
type DatasetOpenError struct {
	Dataset string
	Path    string
	Err     error
}

func (e *DatasetOpenError) Error() string {
	return fmt.Sprintf("open dataset %q at %s: %v", e.Dataset, e.Path, e.Err)
}

func (e *DatasetOpenError) Unwrap() error { return e.Err }

// UnsupportedTypeError reports a column whose type has no applicable rule,
// or that a target format cannot represent.
type UnsupportedTypeError struct {
	Column string
	Type   Type
	// Format is set when the type is unsupported by a specific format.
	Format string
}

func (e *UnsupportedTypeError) Error() string {
	if e.Format != "" {
		return fmt.Sprintf("column %q: type %s is not supported by %s", e.Column, e.Type, e.Format)
	}
	return fmt.Sprintf("column %q: no normalization rule for type %s", e.Column, e.Type)
}

// WriteError reports an encoder failure. The output file is invalid after a
// WriteError.
type WriteError struct {
	Format Format
	Path   string
	Err    error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s file %s: %v", e.Format, e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// ArgumentError reports an invalid command-line invocation. It is raised
// before any I/O takes place.
type ArgumentError struct {
	Msg string
	Err error
}

func (e *ArgumentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *ArgumentError) Unwrap() error { return e.Err }
