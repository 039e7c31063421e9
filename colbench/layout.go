package colbench

import (
	"fmt"
)

// -----------------------------------------------------------------------------
// Codec
// -----------------------------------------------------------------------------

// Codec enumerates the compression codecs applied by the format writers.
type Codec int

// Codec constants.
const (
	CodecNone Codec = iota
	CodecZstd
	// CodecZlib is used by the ORC writer, which has no zstd encoder.
	CodecZlib
)

func (c Codec) String() string {
	switch c {
	case CodecNone:
		return "none"
	case CodecZstd:
		return "zstd"
	case CodecZlib:
		return "zlib"
	default:
		return fmt.Sprintf("codec(%d)", int(c))
	}
}

// MarshalText encodes the codec as its name.
func (c Codec) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText parses a codec name.
func (c *Codec) UnmarshalText(b []byte) error {
	switch string(b) {
	case "none":
		*c = CodecNone
	case "zstd":
		*c = CodecZstd
	case "zlib":
		*c = CodecZlib
	default:
		return fmt.Errorf("unknown codec %q", b)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Layout policy
// -----------------------------------------------------------------------------

// Preset names a layout policy.
type Preset string

// Layout presets.
const (
	// PresetDefault uses large fixed block and group sizes.
	PresetDefault Preset = "default"
	// PresetMirror derives the group size from the source clustering so the
	// target's physical layout matches the source's.
	PresetMirror Preset = "mirror-source-clustering"
)

// Layout parameters shared by every format.
const (
	// DefaultZstdLevel is the zstd level used by every format when
	// compressing, so cross-format comparisons use the same codec settings.
	DefaultZstdLevel = 3

	// DefaultGroupRows is the group length of the default preset.
	DefaultGroupRows = 64 * 1024 * 1024

	// MirrorBlockSize is the block size of the mirror preset.
	MirrorBlockSize = 1024 * 1024
)

// Default block sizes per format.
const (
	defaultORCBlockSize     = 256 * 1024
	defaultParquetBlockSize = 1024 * 1024
	defaultROOTBlockSize    = 32 * 1024
)

// Layout is the physical layout policy of an output file.
type Layout struct {
	// Preset names the policy the layout was derived from.
	Preset Preset `json:"preset" yaml:"preset"`

	// Codec is the compression codec.
	Codec Codec `json:"codec" yaml:"codec"`

	// Level is the codec level; 0 when uncompressed.
	Level int `json:"level" yaml:"level"`

	// BlockSize is the target size in bytes of the smallest independently
	// decompressible unit (ORC compression chunk, Parquet page, ROOT basket).
	BlockSize int64 `json:"block_size" yaml:"block_size"`

	// GroupRows is the number of rows per physical group (ORC stripe,
	// Parquet row group, ROOT cluster).
	GroupRows int64 `json:"group_rows" yaml:"group_rows"`
}

// DefaultLayout returns the default preset for the given format.
func DefaultLayout(f Format, uncompressed bool) Layout {
	l := Layout{
		Preset:    PresetDefault,
		BlockSize: defaultBlockSize(f),
		GroupRows: DefaultGroupRows,
	}
	l.setCodec(uncompressed)
	return l
}

// MirrorLayout returns the mirror-source-clustering preset for the given
// format: the group length equals the average rows per cluster of the
// source. Returns ErrNoClusters if the source reports no clusters.
func MirrorLayout(f Format, src SchemaInfo, uncompressed bool) (Layout, error) {
	rows, err := src.RowsPerCluster()
	if err != nil {
		return Layout{}, fmt.Errorf("mirror source clustering of %q: %w", src.Dataset, err)
	}
	if rows < 1 {
		rows = 1
	}
	l := Layout{
		Preset:    PresetMirror,
		BlockSize: MirrorBlockSize,
		GroupRows: rows,
	}
	l.setCodec(uncompressed)
	return l, nil
}

func (l *Layout) setCodec(uncompressed bool) {
	if uncompressed {
		l.Codec = CodecNone
		l.Level = 0
		return
	}
	l.Codec = CodecZstd
	l.Level = DefaultZstdLevel
}

func defaultBlockSize(f Format) int64 {
	switch f {
	case FormatORC:
		return defaultORCBlockSize
	case FormatParquet:
		return defaultParquetBlockSize
	case FormatROOT:
		return defaultROOTBlockSize
	default:
		return MirrorBlockSize
	}
}
