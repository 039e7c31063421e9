package colbench

import (
	"errors"
	"math"
	"testing"
)

func eventColumns() []Column {
	return []Column{
		{Name: "run", Type: Scalar(KindUint32)},
		{Name: "event", Type: Scalar(KindUint64)},
		{Name: "nMuon", Type: Scalar(KindUint32)},
		{Name: "Muon_pt", Type: ListOf(KindFloat32), Count: "nMuon"},
		{Name: "Muon_charge", Type: ListOf(KindInt32), Count: "nMuon"},
		{Name: "Muon_flags", Type: ListOf(KindUint8), Count: "nMuon"},
		{Name: "HLT_IsoMu24", Type: Scalar(KindBool)},
		{Name: "label", Type: Scalar(KindString), Nullable: true},
	}
}

func TestPlan_IdentityByDefault(t *testing.T) {
	plan, err := Plan(eventColumns(), IdentityRules)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if !plan.Identity() {
		t.Error("Plan(IdentityRules).Identity() = false, want true")
	}
	for i, e := range plan.Entries {
		if e.Source != e.Target {
			t.Errorf("entry %d: target %+v differs from source %+v", i, e.Target, e.Source)
		}
		if e.Rule != "" {
			t.Errorf("entry %d: rule = %q, want empty", i, e.Rule)
		}
	}
}

func TestPlan_UnsignedToSigned(t *testing.T) {
	plan, err := Plan(eventColumns(), SignedRules)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}

	want := map[string]Type{
		"run":         Scalar(KindInt32),
		"event":       Scalar(KindInt64),
		"nMuon":       Scalar(KindInt32),
		"Muon_pt":     ListOf(KindFloat32),
		"Muon_charge": ListOf(KindInt32),
		"Muon_flags":  ListOf(KindInt8),
		"HLT_IsoMu24": Scalar(KindBool),
		"label":       Scalar(KindString),
	}

	targets := plan.Targets()
	if len(targets) != len(want) {
		t.Fatalf("len(Targets()) = %d, want %d", len(targets), len(want))
	}
	for _, c := range targets {
		if c.Type != want[c.Name] {
			t.Errorf("column %q: type = %s, want %s", c.Name, c.Type, want[c.Name])
		}
	}

	// Order, names, nullability and count references are preserved.
	for i, c := range targets {
		src := eventColumns()[i]
		if c.Name != src.Name || c.Nullable != src.Nullable || c.Count != src.Count {
			t.Errorf("column %d: got %+v, want name/nullable/count of %+v", i, c, src)
		}
	}

	if got := len(plan.Rewritten()); got != 4 {
		t.Errorf("len(Rewritten()) = %d, want 4", got)
	}
}

func TestPlan_Idempotent(t *testing.T) {
	first, err := Plan(eventColumns(), SignedRules)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	second, err := Plan(first.Targets(), SignedRules)
	if err != nil {
		t.Fatalf("Plan() second pass error = %v", err)
	}
	if !second.Identity() {
		t.Errorf("second plan rewrites %d columns, want identity", len(second.Rewritten()))
	}
}

func TestPlan_InvalidKind(t *testing.T) {
	cols := []Column{{Name: "weird", Type: Type{Kind: kindMax}}}
	_, err := Plan(cols, SignedRules)
	var ute *UnsupportedTypeError
	if !errors.As(err, &ute) {
		t.Fatalf("Plan() error = %v, want UnsupportedTypeError", err)
	}
	if ute.Column != "weird" {
		t.Errorf("UnsupportedTypeError.Column = %q, want %q", ute.Column, "weird")
	}
}

func TestPlan_DuplicateColumn(t *testing.T) {
	cols := []Column{
		{Name: "a", Type: Scalar(KindInt32)},
		{Name: "a", Type: Scalar(KindInt64)},
	}
	if _, err := Plan(cols, IdentityRules); err == nil {
		t.Error("Plan() with duplicate names: expected error")
	}
}

func TestApply_BitPatternPreservation(t *testing.T) {
	cols := []Column{
		{Name: "u8", Type: Scalar(KindUint8)},
		{Name: "u16", Type: Scalar(KindUint16)},
		{Name: "u32", Type: Scalar(KindUint32)},
		{Name: "u64", Type: Scalar(KindUint64)},
	}
	plan, err := Plan(cols, SignedRules)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}

	tests := []struct {
		name string
		row  Row
		want Row
	}{
		{
			name: "below sign bit",
			row:  Row{uint8(127), uint16(32767), uint32(math.MaxInt32), uint64(math.MaxInt64)},
			want: Row{int8(127), int16(32767), int32(math.MaxInt32), int64(math.MaxInt64)},
		},
		{
			name: "sign bit set",
			row:  Row{uint8(128), uint16(1 << 15), uint32(1 << 31), uint64(1 << 63)},
			want: Row{int8(-128), int16(-32768), int32(math.MinInt32), int64(math.MinInt64)},
		},
		{
			name: "all bits set",
			row:  Row{uint8(math.MaxUint8), uint16(math.MaxUint16), uint32(math.MaxUint32), uint64(math.MaxUint64)},
			want: Row{int8(-1), int16(-1), int32(-1), int64(-1)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := append(Row(nil), tt.row...)
			if err := plan.Apply(Batch{row}); err != nil {
				t.Fatalf("Apply() error = %v", err)
			}
			for i := range row {
				if row[i] != tt.want[i] {
					t.Errorf("value %d = %v (%T), want %v (%T)", i, row[i], row[i], tt.want[i], tt.want[i])
				}
			}
		})
	}
}

func TestApply_TwosComplementRoundTrip(t *testing.T) {
	plan, err := Plan([]Column{{Name: "v", Type: Scalar(KindUint32)}}, SignedRules)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}

	for _, v := range []uint32{1 << 31, 1<<31 + 12345, math.MaxUint32 - 1, math.MaxUint32} {
		row := Row{v}
		if err := plan.Apply(Batch{row}); err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
		got := row[0].(int32)
		if int64(got) != int64(v)-(1<<32) {
			t.Errorf("reinterpret(%d) = %d, want %d", v, got, int64(v)-(1<<32))
		}
		if uint32(got) != v {
			t.Errorf("uint32(reinterpret(%d)) = %d, want original value", v, uint32(got))
		}
	}
}

func TestApply_Lists(t *testing.T) {
	cols := []Column{
		{Name: "n", Type: Scalar(KindUint32)},
		{Name: "flags", Type: ListOf(KindUint16), Count: "n"},
		{Name: "pt", Type: ListOf(KindFloat32), Count: "n"},
	}
	plan, err := Plan(cols, SignedRules)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}

	pt := []float32{10.5, 20.25, 30}
	batch := Batch{
		{uint32(3), []uint16{1, 1 << 15, math.MaxUint16}, pt},
		{uint32(0), []uint16{}, []float32{}},
	}
	if err := plan.Apply(batch); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	if len(batch) != 2 {
		t.Fatalf("batch has %d rows, want 2", len(batch))
	}
	flags, ok := batch[0][1].([]int16)
	if !ok {
		t.Fatalf("flags = %T, want []int16", batch[0][1])
	}
	want := []int16{1, math.MinInt16, -1}
	for i := range want {
		if flags[i] != want[i] {
			t.Errorf("flags[%d] = %d, want %d", i, flags[i], want[i])
		}
	}
	if got := batch[0][2].([]float32); &got[0] != &pt[0] {
		t.Error("identity column was copied, want untouched")
	}
	if got := batch[1][1].([]int16); len(got) != 0 {
		t.Errorf("empty list became %v", got)
	}
	if batch[0][0] != int32(3) {
		t.Errorf("count = %v (%T), want int32(3)", batch[0][0], batch[0][0])
	}
}

func TestApply_NullPassesThrough(t *testing.T) {
	plan, err := Plan([]Column{{Name: "v", Type: Scalar(KindUint16), Nullable: true}}, SignedRules)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	row := Row{nil}
	if err := plan.Apply(Batch{row}); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if row[0] != nil {
		t.Errorf("null became %v", row[0])
	}
}

func TestApply_RowWidthMismatch(t *testing.T) {
	plan, err := Plan(eventColumns(), SignedRules)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	err = plan.Apply(Batch{{uint32(1)}})
	if !errors.Is(err, ErrRowWidth) {
		t.Errorf("Apply() error = %v, want ErrRowWidth", err)
	}
}
