package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/parquet-go/parquet-go"

	"github.com/justapithecus/colbench/colbench"
)

// parquetDataset reads a Parquet file. The file holds a single table whose
// name is not recorded, so any dataset name is accepted.
type parquetDataset struct {
	osFile *os.File
	file   *parquet.File
	info   colbench.SchemaInfo

	// order maps a schema position to the leaf column index in the file.
	order []int

	scanned bool
}

func openParquet(name, path string) (Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	pf, err := parquet.OpenFile(f, st.Size())
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("parquet: %w", err)
	}

	cols, order, err := parquetColumns(pf)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	return &parquetDataset{
		osFile: f,
		file:   pf,
		order:  order,
		info: colbench.SchemaInfo{
			Dataset:      name,
			Format:       colbench.FormatParquet,
			Columns:      cols,
			TotalRows:    pf.NumRows(),
			ClusterCount: max(int64(len(pf.RowGroups())), 1),
			Codec:        parquetCodec(pf),
		},
	}, nil
}

func (d *parquetDataset) Inspect() colbench.SchemaInfo { return d.info }

func (d *parquetDataset) Scan(ctx context.Context, batchRows int) colbench.BatchIterator {
	if d.scanned {
		return errIter{err: ErrScanned}
	}
	d.scanned = true

	reader := parquet.NewReader(d.file)
	var rows []parquet.Row

	fill := func(b colbench.Batch, n int) (colbench.Batch, bool, error) {
		if cap(rows) < n {
			rows = make([]parquet.Row, n)
		}
		// ReadRows may stop at page boundaries; keep reading until the
		// batch is full.
		for len(b) < n {
			read, err := reader.ReadRows(rows[:n-len(b)])
			for i := 0; i < read; i++ {
				row, cerr := d.decodeRow(rows[i])
				if cerr != nil {
					return b, false, cerr
				}
				b = append(b, row)
			}
			if err != nil {
				if errors.Is(err, io.EOF) {
					return b, false, nil
				}
				return b, false, fmt.Errorf("parquet: read rows: %w", err)
			}
		}
		return b, true, nil
	}

	return newBatchIter(ctx, batchRows, fill, reader.Close)
}

func (d *parquetDataset) Close() error {
	return d.osFile.Close()
}

// decodeRow converts a parquet row to a colbench row in schema order.
//
// Values of a list column share a leaf column index; null values mark empty
// or null lists and are skipped.
func (d *parquetDataset) decodeRow(pr parquet.Row) (colbench.Row, error) {
	byLeaf := make([][]parquet.Value, len(d.order))
	for _, v := range pr {
		c := v.Column()
		if c < 0 || c >= len(byLeaf) {
			return nil, fmt.Errorf("parquet: value references column %d of %d", c, len(byLeaf))
		}
		byLeaf[c] = append(byLeaf[c], v)
	}

	row := make(colbench.Row, len(d.info.Columns))
	for i, col := range d.info.Columns {
		vals := byLeaf[d.order[i]]
		if !col.Type.List {
			if len(vals) == 0 || vals[0].IsNull() {
				row[i] = nil
				continue
			}
			v, err := colbench.Coerce(col.Type, parquetValue(vals[0]))
			if err != nil {
				return nil, fmt.Errorf("column %q: %w", col.Name, err)
			}
			row[i] = v
			continue
		}

		elems := make([]any, 0, len(vals))
		for _, v := range vals {
			if v.IsNull() {
				continue
			}
			elems = append(elems, parquetValue(v))
		}
		v, err := colbench.Coerce(col.Type, elems)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", col.Name, err)
		}
		row[i] = v
	}
	return row, nil
}

func parquetValue(v parquet.Value) any {
	switch v.Kind() {
	case parquet.Boolean:
		return v.Boolean()
	case parquet.Int32:
		return v.Int32()
	case parquet.Int64:
		return v.Int64()
	case parquet.Float:
		return v.Float()
	case parquet.Double:
		return v.Double()
	default:
		return string(v.ByteArray())
	}
}

// -----------------------------------------------------------------------------
// Schema introspection
// -----------------------------------------------------------------------------

// parquetColumns describes the top-level fields of the file. Each field must
// map to exactly one leaf column: a primitive, a repeated primitive or a
// LIST-annotated group of primitives.
//
// parquet-go orders group fields by name, so the original column order is
// restored from the ColumnOrderKey metadata when present.
func parquetColumns(f *parquet.File) ([]colbench.Column, []int, error) {
	fields := f.Schema().Fields()
	cols := make([]colbench.Column, 0, len(fields))
	byName := make(map[string]int, len(fields))

	for i, field := range fields {
		col, err := parquetColumn(field)
		if err != nil {
			return nil, nil, err
		}
		cols = append(cols, col)
		byName[col.Name] = i
	}

	order := make([]int, len(cols))
	for i := range order {
		order[i] = i
	}

	stored, ok := f.Lookup(colbench.ColumnOrderKey)
	if !ok {
		return cols, order, nil
	}
	var names []string
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.UnmarshalFromString(stored, &names); err != nil {
		return nil, nil, fmt.Errorf("parquet: decode %s metadata: %w", colbench.ColumnOrderKey, err)
	}
	if len(names) != len(cols) {
		return cols, order, nil
	}

	ordered := make([]colbench.Column, len(cols))
	for i, name := range names {
		j, ok := byName[name]
		if !ok {
			return cols, order, nil
		}
		ordered[i] = cols[j]
		order[i] = j
	}
	return ordered, order, nil
}

func parquetColumn(field parquet.Field) (colbench.Column, error) {
	col := colbench.Column{Name: field.Name()}

	node := parquet.Node(field)
	if !field.Leaf() {
		elem, ok := listElement(field)
		if !ok {
			return col, fmt.Errorf("column %q: nested groups are not supported", col.Name)
		}
		node = elem
		col.Type.List = true
	}
	if field.Repeated() {
		col.Type.List = true
	}
	if field.Optional() && !col.Type.List {
		col.Nullable = true
	}

	k, err := parquetKind(node.Type())
	if err != nil {
		return col, fmt.Errorf("column %q: %w", col.Name, err)
	}
	col.Type.Kind = k
	return col, nil
}

// listElement returns the element leaf of a LIST-annotated group:
//
//	optional group name (LIST) { repeated group list { optional T element; } }
func listElement(field parquet.Node) (parquet.Node, bool) {
	lt := field.Type().LogicalType()
	if lt == nil || lt.List == nil {
		return nil, false
	}
	node := field
	for !node.Leaf() {
		children := node.Fields()
		if len(children) != 1 {
			return nil, false
		}
		node = children[0]
	}
	return node, true
}

func parquetKind(t parquet.Type) (colbench.Kind, error) {
	switch t.Kind() {
	case parquet.Boolean:
		return colbench.KindBool, nil
	case parquet.Float:
		return colbench.KindFloat32, nil
	case parquet.Double:
		return colbench.KindFloat64, nil
	case parquet.ByteArray:
		return colbench.KindString, nil
	case parquet.Int32, parquet.Int64:
		bits, signed := 32, true
		if t.Kind() == parquet.Int64 {
			bits = 64
		}
		if lt := t.LogicalType(); lt != nil && lt.Integer != nil {
			bits = int(lt.Integer.BitWidth)
			signed = lt.Integer.IsSigned
		}
		return integerKind(bits, signed)
	default:
		return 0, fmt.Errorf("unsupported physical type %s", t)
	}
}

func integerKind(bits int, signed bool) (colbench.Kind, error) {
	switch {
	case bits == 8 && signed:
		return colbench.KindInt8, nil
	case bits == 16 && signed:
		return colbench.KindInt16, nil
	case bits == 32 && signed:
		return colbench.KindInt32, nil
	case bits == 64 && signed:
		return colbench.KindInt64, nil
	case bits == 8:
		return colbench.KindUint8, nil
	case bits == 16:
		return colbench.KindUint16, nil
	case bits == 32:
		return colbench.KindUint32, nil
	case bits == 64:
		return colbench.KindUint64, nil
	default:
		return 0, fmt.Errorf("unsupported integer width %d", bits)
	}
}

// parquetCodec returns the codec of the first column chunk, lower-cased.
func parquetCodec(f *parquet.File) string {
	groups := f.Metadata().RowGroups
	if len(groups) == 0 || len(groups[0].Columns) == 0 {
		return ""
	}
	codec := strings.ToLower(groups[0].Columns[0].MetaData.Codec.String())
	if codec == "uncompressed" {
		return colbench.CodecNone.String()
	}
	return codec
}
