package sink

import (
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
	kzstd "github.com/klauspost/compress/zstd"
	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"

	"github.com/justapithecus/colbench/colbench"
)

// parquetEncoder writes a Parquet file. List columns are encoded as
// repeated primitive fields; nullable scalars as optional fields.
type parquetEncoder struct {
	file *os.File
	w    *parquet.Writer
	cols []colbench.Column

	// leafCols lists, per leaf column index, the schema position it holds.
	leafCols []int
	rows     []parquet.Row
}

func newParquetEncoder(path string, cols []colbench.Column, layout colbench.Layout) (*parquetEncoder, error) {
	group := make(parquet.Group, len(cols))
	for _, c := range cols {
		node, err := parquetNode(c)
		if err != nil {
			return nil, err
		}
		group[c.Name] = node
	}
	schema := parquet.NewSchema("events", group)

	pos := make(map[string]int, len(cols))
	for i, c := range cols {
		pos[c.Name] = i
	}
	fields := schema.Fields()
	leafCols := make([]int, len(fields))
	for i, f := range fields {
		leafCols[i] = pos[f.Name()]
	}

	// parquet-go sorts group fields by name; the schema order is recorded
	// so readers can restore it.
	order, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalToString(colbench.ColumnNames(cols))
	if err != nil {
		return nil, fmt.Errorf("parquet: encode column order: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	w := parquet.NewWriter(f, schema,
		parquetCompression(layout),
		parquet.PageBufferSize(int(layout.BlockSize)),
		parquet.MaxRowsPerRowGroup(layout.GroupRows),
		parquet.DataPageStatistics(false),
		parquet.KeyValueMetadata(colbench.ColumnOrderKey, order),
	)

	return &parquetEncoder{
		file:     f,
		w:        w,
		cols:     cols,
		leafCols: leafCols,
	}, nil
}

func parquetCompression(layout colbench.Layout) parquet.WriterOption {
	if layout.Codec == colbench.CodecNone {
		return parquet.Compression(&parquet.Uncompressed)
	}
	return parquet.Compression(&zstd.Codec{Level: kzstd.EncoderLevelFromZstd(layout.Level)})
}

func (e *parquetEncoder) writeBatch(b colbench.Batch) error {
	e.rows = e.rows[:0]
	for i, row := range b {
		pr, err := e.encodeRow(row)
		if err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
		e.rows = append(e.rows, pr)
	}
	if _, err := e.w.WriteRows(e.rows); err != nil {
		return fmt.Errorf("parquet: write rows: %w", err)
	}
	return nil
}

// encodeRow builds a parquet row with values ordered by leaf column index.
func (e *parquetEncoder) encodeRow(row colbench.Row) (parquet.Row, error) {
	if err := checkWidth(row, e.cols); err != nil {
		return nil, err
	}

	pr := make(parquet.Row, 0, len(row))
	for leaf, i := range e.leafCols {
		col := e.cols[i]
		v := row[i]

		if !col.Type.List {
			if v == nil {
				if !col.Nullable {
					return nil, fmt.Errorf("column %q: null value in required column", col.Name)
				}
				pr = append(pr, parquet.NullValue().Level(0, 0, leaf))
				continue
			}
			pv, err := parquetScalar(col.Type.Kind, v)
			if err != nil {
				return nil, fmt.Errorf("column %q: %w", col.Name, err)
			}
			def := 0
			if col.Nullable {
				def = 1
			}
			pr = append(pr, pv.Level(0, def, leaf))
			continue
		}

		elems := colbench.ListElems(v)
		if len(elems) == 0 {
			pr = append(pr, parquet.NullValue().Level(0, 0, leaf))
			continue
		}
		for j, elem := range elems {
			pv, err := parquetScalar(col.Type.Kind, elem)
			if err != nil {
				return nil, fmt.Errorf("column %q element %d: %w", col.Name, j, err)
			}
			rep := 1
			if j == 0 {
				rep = 0
			}
			pr = append(pr, pv.Level(rep, 1, leaf))
		}
	}
	return pr, nil
}

func (e *parquetEncoder) columns() []colbench.Column { return e.cols }

func (e *parquetEncoder) close() error {
	err := e.w.Close()
	if cerr := e.file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("parquet: close writer: %w", err)
	}
	return nil
}

func parquetNode(c colbench.Column) (parquet.Node, error) {
	var node parquet.Node
	switch c.Type.Kind {
	case colbench.KindBool:
		node = parquet.Leaf(parquet.BooleanType)
	case colbench.KindInt8, colbench.KindInt16, colbench.KindInt32, colbench.KindInt64:
		node = parquet.Int(c.Type.Kind.Bits())
	case colbench.KindUint8, colbench.KindUint16, colbench.KindUint32, colbench.KindUint64:
		node = parquet.Uint(c.Type.Kind.Bits())
	case colbench.KindFloat32:
		node = parquet.Leaf(parquet.FloatType)
	case colbench.KindFloat64:
		node = parquet.Leaf(parquet.DoubleType)
	case colbench.KindString:
		node = parquet.String()
	default:
		return nil, &colbench.UnsupportedTypeError{Column: c.Name, Type: c.Type, Format: colbench.FormatParquet.String()}
	}

	switch {
	case c.Type.List:
		node = parquet.Repeated(node)
	case c.Nullable:
		node = parquet.Optional(node)
	}
	return node, nil
}

// parquetScalar converts v to the physical value of kind k. Integers narrower
// than 32 bits and unsigned integers are stored in the signed physical type
// of the same or next width, keeping their bit pattern.
func parquetScalar(k colbench.Kind, v any) (parquet.Value, error) {
	c, err := colbench.Coerce(colbench.Scalar(k), v)
	if err != nil {
		return parquet.Value{}, err
	}
	switch x := c.(type) {
	case bool:
		return parquet.BooleanValue(x), nil
	case int8:
		return parquet.Int32Value(int32(x)), nil
	case int16:
		return parquet.Int32Value(int32(x)), nil
	case int32:
		return parquet.Int32Value(x), nil
	case int64:
		return parquet.Int64Value(x), nil
	case uint8:
		return parquet.Int32Value(int32(x)), nil
	case uint16:
		return parquet.Int32Value(int32(x)), nil
	case uint32:
		return parquet.Int32Value(int32(x)), nil
	case uint64:
		return parquet.Int64Value(int64(x)), nil
	case float32:
		return parquet.FloatValue(x), nil
	case float64:
		return parquet.DoubleValue(x), nil
	case string:
		return parquet.ByteArrayValue([]byte(x)), nil
	default:
		return parquet.Value{}, fmt.Errorf("unsupported value %T", c)
	}
}
