package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	gproto "github.com/golang/protobuf/proto"
	"github.com/scritchley/orc"
	orcproto "github.com/scritchley/orc/proto"

	"github.com/justapithecus/colbench/colbench"
)

// maxORCPostScriptSize bounds the postscript, whose length is stored in the
// last byte of the file.
const maxORCPostScriptSize = 255

// ErrCorruptORC indicates an ORC file whose tail cannot be decoded.
var ErrCorruptORC = errors.New("corrupt orc file")

// orcDataset reads an ORC file. Like Parquet, an ORC file holds a single
// unnamed table.
type orcDataset struct {
	file   *os.File
	reader *orc.Reader
	info   colbench.SchemaInfo

	scanned bool
}

// orcFile adapts an *os.File to orc.SizedReaderAt.
type orcFile struct {
	*os.File
	size int64
}

func (f orcFile) Size() int64 { return f.size }

func openORC(name, path string) (Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	src := orcFile{File: f, size: st.Size()}

	ps, err := readORCPostScript(src)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	r, err := newORCReader(src)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	cols, err := orcColumns(r.Schema())
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	stripes, err := r.NumStripes()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("orc: read stripes: %w", err)
	}

	return &orcDataset{
		file:   f,
		reader: r,
		info: colbench.SchemaInfo{
			Dataset:      name,
			Format:       colbench.FormatORC,
			Columns:      cols,
			TotalRows:    int64(r.NumRows()),
			ClusterCount: max(int64(stripes), 1),
			Codec:        orcCodec(ps.GetCompression()),
		},
	}, nil
}

// newORCReader decodes the file tail. The decoder indexes the tail by the
// lengths it reads from it, so a corrupt file can panic; that panic is
// reported as ErrCorruptORC.
func newORCReader(src orcFile) (r *orc.Reader, err error) {
	defer func() {
		if p := recover(); p != nil {
			r, err = nil, fmt.Errorf("orc: %w: %v", ErrCorruptORC, p)
		}
	}()
	r, err = orc.NewReader(src)
	if err != nil {
		return nil, fmt.Errorf("orc: %w", err)
	}
	return r, nil
}

// readORCPostScript decodes the postscript at the end of the file and
// checks that the lengths it records fit in the file.
func readORCPostScript(src orcFile) (*orcproto.PostScript, error) {
	if src.size < int64(len("ORC"))+1 {
		return nil, fmt.Errorf("orc: %w: %d bytes", ErrCorruptORC, src.size)
	}
	n := min(src.size, maxORCPostScriptSize+1)
	tail := make([]byte, n)
	if _, err := src.ReadAt(tail, src.size-n); err != nil && err != io.EOF {
		return nil, fmt.Errorf("orc: read tail: %w", err)
	}

	psLen := int64(tail[n-1])
	if psLen == 0 || psLen > n-1 {
		return nil, fmt.Errorf("orc: %w: postscript length %d", ErrCorruptORC, psLen)
	}
	ps := &orcproto.PostScript{}
	if err := gproto.Unmarshal(tail[n-1-psLen:n-1], ps); err != nil {
		return nil, fmt.Errorf("orc: %w: postscript: %v", ErrCorruptORC, err)
	}
	if ps.GetMagic() != "ORC" {
		return nil, fmt.Errorf("orc: %w: bad magic %q", ErrCorruptORC, ps.GetMagic())
	}
	meta := ps.GetFooterLength() + ps.GetMetadataLength()
	if meta == 0 || meta > uint64(src.size-1-psLen) {
		return nil, fmt.Errorf("orc: %w: footer length %d", ErrCorruptORC, ps.GetFooterLength())
	}
	return ps, nil
}

// orcCodec names a postscript compression kind the way the other readers
// name theirs.
func orcCodec(k orcproto.CompressionKind) string {
	switch k {
	case orcproto.CompressionKind_NONE:
		return colbench.CodecNone.String()
	case orcproto.CompressionKind_ZLIB:
		return colbench.CodecZlib.String()
	default:
		return strings.ToLower(k.String())
	}
}

func (d *orcDataset) Inspect() colbench.SchemaInfo { return d.info }

func (d *orcDataset) Scan(ctx context.Context, batchRows int) colbench.BatchIterator {
	if d.scanned {
		return errIter{err: ErrScanned}
	}
	d.scanned = true

	cols := d.info.Columns
	c := d.reader.Select(colbench.ColumnNames(cols)...)
	inStripe := false

	fill := func(b colbench.Batch, n int) (colbench.Batch, bool, error) {
		for len(b) < n {
			if inStripe && c.Next() {
				row, err := orcRow(cols, c.Row())
				if err != nil {
					return b, false, err
				}
				b = append(b, row)
				continue
			}
			if err := c.Err(); err != nil {
				return b, false, fmt.Errorf("orc: read rows: %w", err)
			}
			if !c.Stripes() {
				return b, false, c.Err()
			}
			inStripe = true
		}
		return b, true, nil
	}

	return newBatchIter(ctx, batchRows, fill, nil)
}

// Close releases the file; orc.Reader holds no resources of its own.
func (d *orcDataset) Close() error {
	return d.file.Close()
}

func orcRow(cols []colbench.Column, vals []interface{}) (colbench.Row, error) {
	if len(vals) != len(cols) {
		return nil, fmt.Errorf("orc: %w: got %d values for %d columns", colbench.ErrRowWidth, len(vals), len(cols))
	}
	row := make(colbench.Row, len(cols))
	for i, col := range cols {
		v, err := colbench.Coerce(col.Type, orcPlain(vals[i]))
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", col.Name, err)
		}
		row[i] = v
	}
	return row, nil
}

// orcPlain converts the float types of the ORC readers to Go floats.
func orcPlain(v any) any {
	switch x := v.(type) {
	case orc.Float:
		return float32(x)
	case orc.Double:
		return float64(x)
	case []interface{}:
		for i, e := range x {
			x[i] = orcPlain(e)
		}
		return x
	default:
		return v
	}
}

// orcKinds maps ORC primitive type names to column kinds. ORC has no
// unsigned integer types.
var orcKinds = map[string]colbench.Kind{
	"boolean":  colbench.KindBool,
	"tinyint":  colbench.KindInt8,
	"smallint": colbench.KindInt16,
	"int":      colbench.KindInt32,
	"bigint":   colbench.KindInt64,
	"float":    colbench.KindFloat32,
	"double":   colbench.KindFloat64,
	"string":   colbench.KindString,
	"varchar":  colbench.KindString,
	"char":     colbench.KindString,
}

// orcColumns describes the fields of the top-level struct of an ORC file.
func orcColumns(schema *orc.TypeDescription) ([]colbench.Column, error) {
	names := schema.Columns()
	cols := make([]colbench.Column, len(names))
	for i, name := range names {
		field, err := schema.GetField(name)
		if err != nil {
			return nil, fmt.Errorf("orc: column %q: %w", name, err)
		}
		typ, err := orcType(field.String())
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", name, err)
		}
		cols[i] = colbench.Column{Name: name, Type: typ, Nullable: !typ.List}
	}
	return cols, nil
}

// orcType parses a primitive or array<primitive> ORC type name.
func orcType(s string) (colbench.Type, error) {
	name := s
	list := false
	if inner, ok := strings.CutPrefix(s, "array<"); ok {
		name = strings.TrimSuffix(inner, ">")
		list = true
	}
	if i := strings.IndexByte(name, '('); i >= 0 {
		name = name[:i]
	}
	k, ok := orcKinds[name]
	if !ok {
		return colbench.Type{}, fmt.Errorf("unsupported ORC type %s", s)
	}
	return colbench.Type{Kind: k, List: list}, nil
}
