package colbench

import (
	"fmt"
	"path/filepath"
	"strings"
)

// -----------------------------------------------------------------------------
// Kind
// -----------------------------------------------------------------------------

// Kind enumerates the primitive column kinds.
type Kind int

// Kind constants. The set matches the primitive types exchanged between
// ROOT, Arrow-based ORC and Parquet tooling.
const (
	KindBool Kind = iota
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindUint8
	KindUint16
	KindUint32
	KindUint64
	KindFloat32
	KindFloat64
	KindString
	kindMax // sentinel for validation
)

var kindNames = [...]string{
	KindBool:    "bool",
	KindInt8:    "int8",
	KindInt16:   "int16",
	KindInt32:   "int32",
	KindInt64:   "int64",
	KindUint8:   "uint8",
	KindUint16:  "uint16",
	KindUint32:  "uint32",
	KindUint64:  "uint64",
	KindFloat32: "float32",
	KindFloat64: "float64",
	KindString:  "string",
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool {
	return k >= 0 && k < kindMax
}

func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// Integer reports whether k is a signed or unsigned integer kind.
func (k Kind) Integer() bool {
	return k >= KindInt8 && k <= KindUint64
}

// Unsigned reports whether k is an unsigned integer kind.
func (k Kind) Unsigned() bool {
	return k >= KindUint8 && k <= KindUint64
}

// Signed reports whether k is a signed integer kind.
func (k Kind) Signed() bool {
	return k >= KindInt8 && k <= KindInt64
}

// Bits returns the bit width of fixed-width kinds, 1 for bool and 0 for
// strings.
func (k Kind) Bits() int {
	switch k {
	case KindBool:
		return 1
	case KindInt8, KindUint8:
		return 8
	case KindInt16, KindUint16:
		return 16
	case KindInt32, KindUint32, KindFloat32:
		return 32
	case KindInt64, KindUint64, KindFloat64:
		return 64
	default:
		return 0
	}
}

// ParseKind parses a kind name such as "uint32".
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return Kind(k), nil
		}
	}
	return 0, fmt.Errorf("unknown kind %q", s)
}

// -----------------------------------------------------------------------------
// Type
// -----------------------------------------------------------------------------

// Type is a column type: a scalar kind or a variable-length list of it.
type Type struct {
	Kind Kind
	List bool
}

// Scalar returns the scalar type of kind k.
func Scalar(k Kind) Type { return Type{Kind: k} }

// ListOf returns the list type with elements of kind k.
func ListOf(k Kind) Type { return Type{Kind: k, List: true} }

func (t Type) String() string {
	if t.List {
		return "[]" + t.Kind.String()
	}
	return t.Kind.String()
}

// MarshalText encodes the type as its string form.
func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText parses the string form produced by MarshalText.
func (t *Type) UnmarshalText(b []byte) error {
	s := string(b)
	list := strings.HasPrefix(s, "[]")
	k, err := ParseKind(strings.TrimPrefix(s, "[]"))
	if err != nil {
		return err
	}
	*t = Type{Kind: k, List: list}
	return nil
}

// -----------------------------------------------------------------------------
// Format
// -----------------------------------------------------------------------------

// Format enumerates the supported storage formats.
//
// The set is closed: every dispatch on a Format handles all members.
type Format int

// Format constants, in command-line order (formatA, formatB, formatC).
const (
	// FormatORC is the row-columnar compressed format (Apache ORC).
	FormatORC Format = iota
	// FormatParquet is the columnar analytic format (Apache Parquet).
	FormatParquet
	// FormatROOT is the columnar binary tuple format (ROOT tree files).
	FormatROOT
	formatMax // sentinel for validation
)

// Formats lists every supported format.
var Formats = []Format{FormatORC, FormatParquet, FormatROOT}

// Valid reports whether f is one of the declared formats.
func (f Format) Valid() bool {
	return f >= 0 && f < formatMax
}

func (f Format) String() string {
	switch f {
	case FormatORC:
		return "orc"
	case FormatParquet:
		return "parquet"
	case FormatROOT:
		return "root"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// Extension returns the conventional file suffix of the format.
func (f Format) Extension() string {
	if !f.Valid() {
		return ""
	}
	return "." + f.String()
}

// MarshalText encodes the format as its name.
func (f Format) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText parses a format name accepted by ParseFormat.
func (f *Format) UnmarshalText(b []byte) error {
	v, err := ParseFormat(string(b))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// ParseFormat parses an output mode. Both the positional identifiers
// (formatA, formatB, formatC) and format names are accepted; "rntuple" is
// an alias of "root".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "formata", "orc":
		return FormatORC, nil
	case "formatb", "parquet", "pq":
		return FormatParquet, nil
	case "formatc", "root", "rntuple":
		return FormatROOT, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// FormatFromPath infers the format of a file from its suffix.
func FormatFromPath(path string) (Format, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if ext == "" {
		return 0, fmt.Errorf("%w: %s has no file suffix", ErrUnknownFormat, path)
	}
	f, err := ParseFormat(ext)
	if err != nil {
		return 0, fmt.Errorf("%w: unrecognised suffix of %s", ErrUnknownFormat, path)
	}
	return f, nil
}
