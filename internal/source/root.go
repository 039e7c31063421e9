package source

import (
	"context"
	"fmt"
	"reflect"

	"go-hep.org/x/hep/groot"
	"go-hep.org/x/hep/groot/riofs"
	"go-hep.org/x/hep/groot/rtree"

	"github.com/justapithecus/colbench/colbench"
)

// rootDataset reads a flat ROOT tree through groot.
type rootDataset struct {
	file *riofs.File
	tree rtree.Tree
	info colbench.SchemaInfo

	scanned bool
}

func openROOT(name, path string) (Dataset, error) {
	f, err := groot.Open(path)
	if err != nil {
		return nil, err
	}

	tree, err := LookupTree(f, name)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	cols, err := TreeColumns(tree, rtree.NewReadVars(tree))
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	return &rootDataset{
		file: f,
		tree: tree,
		info: colbench.SchemaInfo{
			Dataset:   name,
			Format:    colbench.FormatROOT,
			Columns:   cols,
			TotalRows: tree.Entries(),
			// groot does not expose the cluster ranges of a tree; the whole
			// tree is reported as one cluster.
			ClusterCount: 1,
			Codec:        rootCodec(f.Compression()),
		},
	}, nil
}

// rootCodec decodes the file compression setting, stored as
// 100*algorithm + level.
func rootCodec(setting int32) string {
	if setting%100 == 0 {
		return colbench.CodecNone.String()
	}
	switch setting / 100 {
	case 0, 1, 3:
		return colbench.CodecZlib.String()
	case 2:
		return "lzma"
	case 4:
		return "lz4"
	case 5:
		return colbench.CodecZstd.String()
	default:
		return fmt.Sprintf("compression(%d)", setting)
	}
}

// LookupTree returns the tree stored under name in f.
// Returns an error wrapping colbench.ErrTableNotFound if the key is missing
// or does not hold a tree.
func LookupTree(f *riofs.File, name string) (rtree.Tree, error) {
	obj, err := f.Get(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", colbench.ErrTableNotFound, name, err)
	}
	tree, ok := obj.(rtree.Tree)
	if !ok {
		return nil, fmt.Errorf("%w: %q is a %s, not a tree", colbench.ErrTableNotFound, name, obj.Class())
	}
	return tree, nil
}

func (d *rootDataset) Inspect() colbench.SchemaInfo { return d.info }

func (d *rootDataset) Scan(ctx context.Context, batchRows int) colbench.BatchIterator {
	if d.scanned {
		return errIter{err: ErrScanned}
	}
	d.scanned = true

	rvars := rtree.NewReadVars(d.tree)
	total := d.tree.Entries()
	var next int64

	fill := func(b colbench.Batch, n int) (colbench.Batch, bool, error) {
		if next >= total {
			return b, false, nil
		}
		end := min(next+int64(n), total)
		r, err := rtree.NewReader(d.tree, rvars, rtree.WithRange(next, end))
		if err != nil {
			return b, false, fmt.Errorf("root: open reader for entries [%d, %d): %w", next, end, err)
		}
		defer func() { _ = r.Close() }()

		err = r.Read(func(rtree.RCtx) error {
			row := make(colbench.Row, len(rvars))
			for i, rv := range rvars {
				row[i] = derefCopy(rv.Value)
			}
			b = append(b, row)
			return nil
		})
		if err != nil {
			return b, false, fmt.Errorf("root: read entries [%d, %d): %w", next, end, err)
		}
		next = end
		return b, next < total, nil
	}

	return newBatchIter(ctx, batchRows, fill, nil)
}

func (d *rootDataset) Close() error {
	return d.file.Close()
}

// TreeColumns describes the read variables of tree, one column per variable
// in the same order. Count leaves of variable-length branches are recorded
// in Column.Count.
func TreeColumns(tree rtree.Tree, rvars []rtree.ReadVar) ([]colbench.Column, error) {
	cols := make([]colbench.Column, 0, len(rvars))
	for _, rv := range rvars {
		typ, err := rootType(reflect.TypeOf(rv.Value).Elem())
		if err != nil {
			return nil, fmt.Errorf("branch %q: %w", rv.Name, err)
		}
		col := colbench.Column{Name: rv.Name, Type: typ}
		if br := tree.Branch(rv.Name); br != nil {
			for _, leaf := range br.Leaves() {
				if lc := leaf.LeafCount(); lc != nil {
					col.Count = lc.Name()
					break
				}
			}
		}
		cols = append(cols, col)
	}
	return cols, nil
}

// rootType maps the Go type groot binds for a leaf to a column type. Fixed
// size arrays and variable-length leaves both become lists.
func rootType(t reflect.Type) (colbench.Type, error) {
	list := false
	if t.Kind() == reflect.Slice || t.Kind() == reflect.Array {
		list = true
		t = t.Elem()
	}
	k, ok := reflectKinds[t.Kind()]
	if !ok {
		return colbench.Type{}, fmt.Errorf("unsupported leaf type %s", t)
	}
	return colbench.Type{Kind: k, List: list}, nil
}

var reflectKinds = map[reflect.Kind]colbench.Kind{
	reflect.Bool:    colbench.KindBool,
	reflect.Int8:    colbench.KindInt8,
	reflect.Int16:   colbench.KindInt16,
	reflect.Int32:   colbench.KindInt32,
	reflect.Int64:   colbench.KindInt64,
	reflect.Uint8:   colbench.KindUint8,
	reflect.Uint16:  colbench.KindUint16,
	reflect.Uint32:  colbench.KindUint32,
	reflect.Uint64:  colbench.KindUint64,
	reflect.Float32: colbench.KindFloat32,
	reflect.Float64: colbench.KindFloat64,
	reflect.String:  colbench.KindString,
}

// derefCopy returns the value behind a read-var pointer. Slices and arrays
// are copied into a fresh slice since groot reuses their backing storage
// between entries.
func derefCopy(ptr any) any {
	v := reflect.ValueOf(ptr).Elem()
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		dst := reflect.MakeSlice(reflect.SliceOf(v.Type().Elem()), v.Len(), v.Len())
		reflect.Copy(dst, v)
		return dst.Interface()
	default:
		return v.Interface()
	}
}
