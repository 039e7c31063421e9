package sink

import (
	"context"
	"fmt"
	"os"
	"reflect"

	"go-hep.org/x/hep/groot"
	"go-hep.org/x/hep/groot/riofs"
	"go-hep.org/x/hep/groot/rtree"

	"github.com/justapithecus/colbench/colbench"
	"github.com/justapithecus/colbench/internal/source"
)

// rootEncoder writes a flat ROOT tree through groot. Each column is bound
// to a pointer variable that is refreshed before every entry is written.
type rootEncoder struct {
	file *riofs.File
	w    rtree.Writer
	cols []colbench.Column
	out  []colbench.Column

	ptrs   []reflect.Value
	counts []rootCount

	layout colbench.Layout
	rows   int64
}

// rootCount is a synthesized count branch holding the length of a list.
type rootCount struct {
	n    *int32
	list reflect.Value
}

func (c rootCount) update() {
	*c.n = int32(c.list.Elem().Len())
}

func newROOTEncoder(path, tree string, cols []colbench.Column, layout colbench.Layout) (*rootEncoder, error) {
	ptrs := make([]reflect.Value, len(cols))
	vals := make([]any, len(cols))
	for i, c := range cols {
		if !c.Type.Kind.Valid() {
			return nil, &colbench.UnsupportedTypeError{Column: c.Name, Type: c.Type, Format: colbench.FormatROOT.String()}
		}
		ptrs[i] = reflect.New(reflect.TypeOf(colbench.Zero(c.Type)))
		vals[i] = ptrs[i].Interface()
	}
	wvars, out, counts := rootWriteVars(cols, vals)

	f, err := groot.Create(path, rootFileOptions(layout)...)
	if err != nil {
		return nil, err
	}
	w, err := rtree.NewWriter(f, tree, wvars, rootWriteOptions(layout)...)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("root: create tree %q: %w", tree, err)
	}

	return &rootEncoder{
		file:   f,
		w:      w,
		cols:   cols,
		out:    out,
		ptrs:   ptrs,
		counts: counts,
		layout: layout,
	}, nil
}

// rootFileOptions sets the file compression to the tree's, so readers can
// report the codec from the file header.
func rootFileOptions(layout colbench.Layout) []riofs.FileOption {
	if layout.Codec == colbench.CodecNone {
		return []riofs.FileOption{riofs.WithoutCompression()}
	}
	return []riofs.FileOption{riofs.WithZstd(layout.Level)}
}

func rootWriteOptions(layout colbench.Layout) []rtree.WriteOption {
	opts := []rtree.WriteOption{rtree.WithBasketSize(int(layout.BlockSize))}
	if layout.Codec == colbench.CodecNone {
		return append(opts, rtree.WithoutCompression())
	}
	return append(opts, rtree.WithZstd(layout.Level))
}

func (e *rootEncoder) writeBatch(b colbench.Batch) error {
	for i, row := range b {
		if err := checkWidth(row, e.cols); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
		for j, col := range e.cols {
			v := row[j]
			if v == nil {
				v = colbench.Zero(col.Type)
			} else {
				var err error
				if v, err = colbench.Coerce(col.Type, v); err != nil {
					return fmt.Errorf("row %d column %q: %w", i, col.Name, err)
				}
			}
			e.ptrs[j].Elem().Set(reflect.ValueOf(v))
		}
		for _, c := range e.counts {
			c.update()
		}
		if _, err := e.w.Write(); err != nil {
			return fmt.Errorf("root: write entry: %w", err)
		}
		e.rows++
	}
	return nil
}

func (e *rootEncoder) columns() []colbench.Column { return e.out }

func (e *rootEncoder) written() colbench.Layout { return rootWrittenLayout(e.layout, e.rows) }

// rootWrittenLayout reports the whole tree as one cluster. rtree.Writer
// flushes baskets by size only; calling Flush before the last entry leaves
// the branches without a basket.
func rootWrittenLayout(layout colbench.Layout, rows int64) colbench.Layout {
	layout.GroupRows = max(rows, 1)
	return layout
}

func (e *rootEncoder) close() error {
	err := e.w.Close()
	if cerr := e.file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("root: close tree: %w", err)
	}
	return nil
}

// rootWriteVars binds cols to the pointer variables vals.
//
// Variable-length lists need an int32 count branch written before them. An
// existing int32 count column is reused; otherwise an n<name> branch is
// synthesized and kept up to date through the returned counts.
func rootWriteVars(cols []colbench.Column, vals []any) ([]rtree.WriteVar, []colbench.Column, []rootCount) {
	byName := make(map[string]int, len(cols))
	for i, c := range cols {
		byName[c.Name] = i
	}

	var (
		wvars   = make([]rtree.WriteVar, 0, len(cols))
		out     = make([]colbench.Column, 0, len(cols))
		counts  []rootCount
		emitted = make(map[string]bool, len(cols))
	)
	emit := func(c colbench.Column, v any, count string) {
		wvars = append(wvars, rtree.WriteVar{Name: c.Name, Value: v, Count: count})
		c.Count = count
		out = append(out, c)
		emitted[c.Name] = true
	}

	for i, c := range cols {
		if emitted[c.Name] {
			continue
		}
		if reflect.TypeOf(vals[i]).Elem().Kind() != reflect.Slice {
			emit(c, vals[i], "")
			continue
		}

		if j, ok := byName[c.Count]; ok && c.Count != "" && cols[j].Type == colbench.Scalar(colbench.KindInt32) {
			if !emitted[c.Count] {
				emit(cols[j], vals[j], "")
			}
			emit(c, vals[i], c.Count)
			continue
		}

		name := countName(c.Name, byName, emitted)
		n := new(int32)
		emit(colbench.Column{Name: name, Type: colbench.Scalar(colbench.KindInt32)}, n, "")
		counts = append(counts, rootCount{n: n, list: reflect.ValueOf(vals[i])})
		emit(c, vals[i], name)
	}
	return wvars, out, counts
}

func countName(list string, byName map[string]int, emitted map[string]bool) string {
	name := "n" + list
	for {
		_, taken := byName[name]
		if !taken && !emitted[name] {
			return name
		}
		name += "_count"
	}
}

// -----------------------------------------------------------------------------
// Direct snapshot
// -----------------------------------------------------------------------------

// Snapshot copies the tree name of the ROOT file at inPath to a new ROOT
// file at outPath without materializing batches: the reader's variables are
// bound directly as the writer's variables. Column types are kept as is.
//
// Failures to open the source are returned as *colbench.DatasetOpenError,
// all others as *colbench.WriteError. No file is left at outPath on error.
func Snapshot(ctx context.Context, name, inPath string, layout colbench.Layout, outPath string, opts ...Option) (colbench.WriteResult, error) {
	o := buildOptions(append([]Option{WithTreeName(name)}, opts...))

	in, err := groot.Open(inPath)
	if err != nil {
		return colbench.WriteResult{}, &colbench.DatasetOpenError{Dataset: name, Path: inPath, Err: err}
	}
	defer func() { _ = in.Close() }()

	tree, err := source.LookupTree(in, name)
	if err != nil {
		return colbench.WriteResult{}, &colbench.DatasetOpenError{Dataset: name, Path: inPath, Err: err}
	}
	rvars := rtree.NewReadVars(tree)
	cols, err := source.TreeColumns(tree, rvars)
	if err != nil {
		return colbench.WriteResult{}, &colbench.DatasetOpenError{Dataset: name, Path: inPath, Err: err}
	}

	res, err := snapshot(ctx, tree, rvars, cols, layout, outPath, o)
	if err != nil {
		_ = os.Remove(outPath)
		return colbench.WriteResult{}, &colbench.WriteError{Format: colbench.FormatROOT, Path: outPath, Err: err}
	}
	return res, nil
}

func snapshot(ctx context.Context, tree rtree.Tree, rvars []rtree.ReadVar, cols []colbench.Column, layout colbench.Layout, outPath string, o options) (colbench.WriteResult, error) {
	vals := make([]any, len(rvars))
	for i, rv := range rvars {
		vals[i] = rv.Value
	}
	wvars, out, counts := rootWriteVars(cols, vals)

	f, err := groot.Create(outPath, rootFileOptions(layout)...)
	if err != nil {
		return colbench.WriteResult{}, err
	}
	w, err := rtree.NewWriter(f, o.treeName, wvars, rootWriteOptions(layout)...)
	if err != nil {
		_ = f.Close()
		return colbench.WriteResult{}, fmt.Errorf("root: create tree %q: %w", o.treeName, err)
	}

	r, err := rtree.NewReader(tree, rvars)
	if err != nil {
		_ = w.Close()
		_ = f.Close()
		return colbench.WriteResult{}, fmt.Errorf("root: open reader: %w", err)
	}

	var rows int64
	err = r.Read(func(rtree.RCtx) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, c := range counts {
			c.update()
		}
		if _, err := w.Write(); err != nil {
			return err
		}
		rows++
		return nil
	})
	if cerr := r.Close(); err == nil {
		err = cerr
	}
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return colbench.WriteResult{}, err
	}

	st, err := os.Stat(outPath)
	if err != nil {
		return colbench.WriteResult{}, err
	}
	return colbench.WriteResult{
		Format:  colbench.FormatROOT,
		Path:    outPath,
		Rows:    rows,
		Columns: out,
		Bytes:   st.Size(),
		Layout:  rootWrittenLayout(layout, rows),
	}, nil
}
