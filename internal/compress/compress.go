// Package compress provides the stream compressors applied to report
// output files.
package compress

import (
	"compress/gzip"
	"io"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/justapithecus/colbench/colbench"
)

// Compressor compresses a report stream.
type Compressor interface {
	// Name returns the compressor identifier (for example, "gzip", "zstd", "noop").
	Name() string

	// Compress wraps a writer with compression.
	Compress(w io.Writer) (io.WriteCloser, error)
}

// ForPath returns the compressor selected by the suffix of path:
// ".zst" for zstd, ".gz" for gzip and noop otherwise.
func ForPath(path string) Compressor {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zst":
		return NewZstd()
	case ".gz":
		return NewGzip()
	default:
		return NewNoop()
	}
}

// -----------------------------------------------------------------------------
// Zstd
// -----------------------------------------------------------------------------

// Zstd implements Compressor using zstd at the level the format writers use.
type Zstd struct {
	level int
}

// NewZstd creates a zstd compressor at colbench.DefaultZstdLevel.
func NewZstd() *Zstd {
	return &Zstd{level: colbench.DefaultZstdLevel}
}

// Name returns the compressor identifier.
func (z *Zstd) Name() string {
	return "zstd"
}

// Compress wraps a writer with zstd compression.
func (z *Zstd) Compress(w io.Writer) (io.WriteCloser, error) {
	return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(z.level)))
}

var _ Compressor = (*Zstd)(nil)

// -----------------------------------------------------------------------------
// Gzip
// -----------------------------------------------------------------------------

// Gzip implements Compressor using gzip compression.
type Gzip struct{}

// NewGzip creates a gzip compressor.
func NewGzip() *Gzip {
	return &Gzip{}
}

// Name returns the compressor identifier.
func (g *Gzip) Name() string {
	return "gzip"
}

// Compress wraps a writer with gzip compression.
func (g *Gzip) Compress(w io.Writer) (io.WriteCloser, error) {
	return gzip.NewWriter(w), nil
}

var _ Compressor = (*Gzip)(nil)

// -----------------------------------------------------------------------------
// Noop
// -----------------------------------------------------------------------------

// Noop implements Compressor with no compression.
type Noop struct{}

// NewNoop creates a noop compressor.
func NewNoop() *Noop {
	return &Noop{}
}

// Name returns the compressor identifier.
func (n *Noop) Name() string {
	return "noop"
}

// Compress returns a writer that passes through unchanged.
func (n *Noop) Compress(w io.Writer) (io.WriteCloser, error) {
	return &noopWriteCloser{w}, nil
}

// noopWriteCloser wraps a writer to implement WriteCloser.
type noopWriteCloser struct {
	io.Writer
}

func (n *noopWriteCloser) Close() error {
	return nil
}

var _ Compressor = (*Noop)(nil)
