package testutil

import (
	"github.com/justapithecus/colbench/colbench"
)

// RunBase is the first run number of EventRows. It exceeds the int32 range
// so that signed reinterpretation yields negative values.
const RunBase = 1 << 31

// EventColumns returns a 12-column NanoAOD-like schema with exactly one
// unsigned column (run).
func EventColumns() []colbench.Column {
	return []colbench.Column{
		{Name: "run", Type: colbench.Scalar(colbench.KindUint32)},
		{Name: "event", Type: colbench.Scalar(colbench.KindInt64)},
		{Name: "luminosityBlock", Type: colbench.Scalar(colbench.KindInt32)},
		{Name: "nMuon", Type: colbench.Scalar(colbench.KindInt32)},
		{Name: "Muon_pt", Type: colbench.ListOf(colbench.KindFloat32), Count: "nMuon"},
		{Name: "Muon_eta", Type: colbench.ListOf(colbench.KindFloat32), Count: "nMuon"},
		{Name: "Muon_phi", Type: colbench.ListOf(colbench.KindFloat32), Count: "nMuon"},
		{Name: "Muon_charge", Type: colbench.ListOf(colbench.KindInt32), Count: "nMuon"},
		{Name: "MET_pt", Type: colbench.Scalar(colbench.KindFloat32)},
		{Name: "MET_phi", Type: colbench.Scalar(colbench.KindFloat32)},
		{Name: "PV_npvs", Type: colbench.Scalar(colbench.KindInt16)},
		{Name: "HLT_IsoMu24", Type: colbench.Scalar(colbench.KindBool)},
	}
}

// EventRows returns n deterministic rows matching EventColumns.
func EventRows(n int) colbench.Batch {
	b := make(colbench.Batch, n)
	for i := range b {
		muons := i % 3
		pt := make([]float32, muons)
		eta := make([]float32, muons)
		phi := make([]float32, muons)
		charge := make([]int32, muons)
		for j := 0; j < muons; j++ {
			pt[j] = float32(i) + float32(j)/4
			eta[j] = float32(j) - 1.25
			phi[j] = float32(j) * 0.5
			charge[j] = int32(1 - 2*(j%2))
		}
		b[i] = colbench.Row{
			uint32(RunBase + i),
			int64(i),
			int32(i / 100),
			int32(muons),
			pt,
			eta,
			phi,
			charge,
			float32(i) * 0.75,
			float32(i%7) - 3,
			int16(i % 40),
			i%2 == 0,
		}
	}
	return b
}

// SliceIterator yields pre-built batches.
type SliceIterator struct {
	batches []colbench.Batch
	cur     colbench.Batch
	err     error
	closed  bool
}

// NewSliceIterator splits rows into batches of at most size rows. An error,
// if given, is reported after the last batch.
func NewSliceIterator(rows colbench.Batch, size int, err error) *SliceIterator {
	if size <= 0 {
		size = len(rows)
	}
	var batches []colbench.Batch
	for start := 0; start < len(rows); start += size {
		end := min(start+size, len(rows))
		batch := make(colbench.Batch, end-start)
		for i, row := range rows[start:end] {
			batch[i] = append(colbench.Row(nil), row...)
		}
		batches = append(batches, batch)
	}
	return &SliceIterator{batches: batches, err: err}
}

// Next advances to the next batch.
func (it *SliceIterator) Next() bool {
	if len(it.batches) == 0 {
		return false
	}
	it.cur, it.batches = it.batches[0], it.batches[1:]
	return true
}

// Batch returns the current batch.
func (it *SliceIterator) Batch() colbench.Batch { return it.cur }

// Err returns the configured error once the batches are exhausted.
func (it *SliceIterator) Err() error {
	if len(it.batches) > 0 {
		return nil
	}
	return it.err
}

// Close marks the iterator closed.
func (it *SliceIterator) Close() error {
	it.closed = true
	return nil
}

// Closed reports whether Close was called.
func (it *SliceIterator) Closed() bool { return it.closed }
