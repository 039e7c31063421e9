package sink

import (
	"fmt"
	"os"

	"github.com/scritchley/orc"

	"github.com/justapithecus/colbench/colbench"
)

// maxORCStripeSize caps the stripe target so the default preset's group
// length does not translate into multi-gigabyte stripes.
const maxORCStripeSize = 64 * 1024 * 1024

// orcEncoder writes an ORC file whose top-level struct holds one field per
// column.
type orcEncoder struct {
	file   *os.File
	w      *orc.Writer
	cols   []colbench.Column
	out    []colbench.Column
	layout colbench.Layout

	vals []interface{}
}

func newORCEncoder(path string, cols []colbench.Column, layout colbench.Layout) (*orcEncoder, error) {
	schema, err := orcSchema(cols)
	if err != nil {
		return nil, err
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	codec, written := orcCompression(layout)
	w, err := orc.NewWriter(f,
		orc.SetSchema(schema),
		orc.SetCompression(codec),
		orc.SetStripeTargetSize(orcStripeSize(cols, layout)),
	)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("orc: create writer: %w", err)
	}

	return &orcEncoder{
		file:   f,
		w:      w,
		cols:   cols,
		out:    orcWrittenColumns(cols),
		layout: written,
		vals:   make([]interface{}, len(cols)),
	}, nil
}

// orcCompression selects the codec and returns the layout as written.
// scritchley/orc encodes zlib only, so a compressed layout is written as
// zlib at the same level. Its compression chunk size is fixed at
// orc.DefaultCompressionChunkSize.
func orcCompression(layout colbench.Layout) (orc.CompressionCodec, colbench.Layout) {
	layout.BlockSize = int64(orc.DefaultCompressionChunkSize)
	if layout.Codec == colbench.CodecNone {
		return orc.CompressionNone{}, layout
	}
	layout.Codec = colbench.CodecZlib
	return orc.CompressionZlib{Level: layout.Level}, layout
}

// orcStripeSize converts the group length in rows to the stripe target in
// bytes that the ORC writer expects.
func orcStripeSize(cols []colbench.Column, layout colbench.Layout) int64 {
	width := rowWidth(cols)
	if layout.GroupRows > maxORCStripeSize/width {
		return maxORCStripeSize
	}
	return max(layout.GroupRows*width, 1)
}

// rowWidth estimates the encoded size of a row in bytes. List columns are
// assumed to hold a handful of elements.
func rowWidth(cols []colbench.Column) int64 {
	const (
		listElems   = 4
		stringBytes = 16
	)
	var w int64
	for _, c := range cols {
		n := int64(c.Type.Kind.Bits()+7) / 8
		if c.Type.Kind == colbench.KindString {
			n = stringBytes
		}
		if c.Type.List {
			n = n*listElems + 4
		}
		w += n
	}
	return max(w, 1)
}

func (e *orcEncoder) writeBatch(b colbench.Batch) error {
	for i, row := range b {
		if err := checkWidth(row, e.cols); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
		for j, col := range e.cols {
			v, err := orcValue(col, row[j])
			if err != nil {
				return fmt.Errorf("row %d column %q: %w", i, col.Name, err)
			}
			e.vals[j] = v
		}
		if err := e.w.Write(e.vals...); err != nil {
			return fmt.Errorf("orc: write row %d: %w", i, err)
		}
	}
	return nil
}

func (e *orcEncoder) columns() []colbench.Column { return e.out }

func (e *orcEncoder) written() colbench.Layout { return e.layout }

func (e *orcEncoder) close() error {
	err := e.w.Close()
	if cerr := e.file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("orc: close writer: %w", err)
	}
	return nil
}

// orcValue converts a value to the representation the ORC column writers
// accept: int64 for every integer width and []interface{} for lists.
func orcValue(col colbench.Column, v any) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	if !col.Type.List {
		return orcScalar(col.Type.Kind, v)
	}
	elems := colbench.ListElems(v)
	out := make([]interface{}, len(elems))
	for i, e := range elems {
		s, err := orcScalar(col.Type.Kind, e)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = s
	}
	return out, nil
}

func orcScalar(k colbench.Kind, v any) (interface{}, error) {
	c, err := colbench.Coerce(colbench.Scalar(k), v)
	if err != nil {
		return nil, err
	}
	switch x := c.(type) {
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	default:
		return x, nil
	}
}

// orcCategories maps column kinds to ORC primitive categories. ORC has no
// unsigned integer types. scritchley/orc cannot write tinyint columns, so
// int8 is widened to smallint.
var orcCategories = map[colbench.Kind]orc.Category{
	colbench.KindBool:    orc.CategoryBoolean,
	colbench.KindInt8:    orc.CategoryShort,
	colbench.KindInt16:   orc.CategoryShort,
	colbench.KindInt32:   orc.CategoryInt,
	colbench.KindInt64:   orc.CategoryLong,
	colbench.KindFloat32: orc.CategoryFloat,
	colbench.KindFloat64: orc.CategoryDouble,
	colbench.KindString:  orc.CategoryString,
}

// orcSchema builds the top-level struct with one field per column. Field
// names are kept as given; orc.ParseSchema would lower-case them.
func orcSchema(cols []colbench.Column) (*orc.TypeDescription, error) {
	fields := make([]orc.TypeDescriptionTransformFunc, 0, len(cols)+1)
	fields = append(fields, orc.SetCategory(orc.CategoryStruct))
	for _, c := range cols {
		cat, ok := orcCategories[c.Type.Kind]
		if !ok {
			return nil, &colbench.UnsupportedTypeError{Column: c.Name, Type: c.Type, Format: colbench.FormatORC.String()}
		}
		if c.Type.List {
			fields = append(fields, orc.AddField(c.Name,
				orc.SetCategory(orc.CategoryList),
				orc.AddChild(orc.SetCategory(cat)),
			))
			continue
		}
		fields = append(fields, orc.AddField(c.Name, orc.SetCategory(cat)))
	}
	schema, err := orc.NewTypeDescription(fields...)
	if err != nil {
		return nil, fmt.Errorf("orc: build schema: %w", err)
	}
	return schema, nil
}

// orcWrittenColumns returns cols as stored in the file.
func orcWrittenColumns(cols []colbench.Column) []colbench.Column {
	out := make([]colbench.Column, len(cols))
	for i, c := range cols {
		if c.Type.Kind == colbench.KindInt8 {
			c.Type.Kind = colbench.KindInt16
		}
		out[i] = c
	}
	return out
}
