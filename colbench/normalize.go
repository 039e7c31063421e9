package colbench

import (
	"fmt"
)

// -----------------------------------------------------------------------------
// Rules
// -----------------------------------------------------------------------------

// Rule rewrites columns of one element kind to another.
//
// The transform is pure and applies element-wise to list columns. Null
// values pass through unchanged.
type Rule struct {
	Name   string
	Source Kind
	Target Kind

	scalar func(any) any
	list   func(any) any
}

// RuleSet is an ordered rule table. The first rule whose source kind matches
// a column applies; columns matching no rule keep their type.
type RuleSet []Rule

// SignedRules rewrites every unsigned integer kind to the signed kind of the
// same width.
//
// The rewrite reinterprets the bit pattern (two's complement): values at or
// above 2^(W-1) become negative, nothing is clamped. Consumers that know the
// original signedness recover the values exactly by converting back.
var SignedRules = RuleSet{
	reinterpret[uint8, int8](KindUint8, KindInt8),
	reinterpret[uint16, int16](KindUint16, KindInt16),
	reinterpret[uint32, int32](KindUint32, KindInt32),
	reinterpret[uint64, int64](KindUint64, KindInt64),
}

// IdentityRules keeps every column type unchanged.
var IdentityRules = RuleSet{}

func (rs RuleSet) match(k Kind) (Rule, bool) {
	for _, r := range rs {
		if r.Source == k {
			return r, true
		}
	}
	return Rule{}, false
}

type unsignedInt interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64
}

type signedInt interface {
	~int8 | ~int16 | ~int32 | ~int64
}

// reinterpret builds a same-width unsigned to signed rule. The Go conversion
// between integer types of equal width keeps the bit pattern.
func reinterpret[U unsignedInt, S signedInt](from, to Kind) Rule {
	return Rule{
		Name:   from.String() + "->" + to.String(),
		Source: from,
		Target: to,
		scalar: func(v any) any {
			return S(v.(U))
		},
		list: func(v any) any {
			src := v.([]U)
			dst := make([]S, len(src))
			for i, x := range src {
				dst[i] = S(x)
			}
			return dst
		},
	}
}

// -----------------------------------------------------------------------------
// Plan
// -----------------------------------------------------------------------------

// PlanEntry maps one source column to its target column.
type PlanEntry struct {
	Source Column
	Target Column
	// Rule names the applied rule; empty for identity entries.
	Rule string

	transform func(any) any
}

// Identity reports whether the entry leaves values unchanged.
func (e PlanEntry) Identity() bool {
	return e.transform == nil
}

// Transform maps one source value to its target value.
func (e PlanEntry) Transform(v any) any {
	if e.transform == nil || v == nil {
		return v
	}
	return e.transform(v)
}

// NormalizationPlan is the ordered list of column rewrites for a schema.
//
// A plan is computed from schema metadata alone, before any row is read,
// so writers can declare their target schema up front.
type NormalizationPlan struct {
	Entries []PlanEntry
}

// Plan computes the normalization plan of columns under rules.
//
// Returns an UnsupportedTypeError for columns whose kind is not a declared
// Kind.
func Plan(columns []Column, rules RuleSet) (NormalizationPlan, error) {
	entries := make([]PlanEntry, 0, len(columns))
	seen := make(map[string]bool, len(columns))
	for _, col := range columns {
		if !col.Type.Kind.Valid() {
			return NormalizationPlan{}, &UnsupportedTypeError{Column: col.Name, Type: col.Type}
		}
		if seen[col.Name] {
			return NormalizationPlan{}, fmt.Errorf("duplicate column name %q", col.Name)
		}
		seen[col.Name] = true

		entry := PlanEntry{Source: col, Target: col}
		if r, ok := rules.match(col.Type.Kind); ok {
			entry.Target.Type.Kind = r.Target
			entry.Rule = r.Name
			if col.Type.List {
				entry.transform = r.list
			} else {
				entry.transform = r.scalar
			}
		}
		entries = append(entries, entry)
	}
	return NormalizationPlan{Entries: entries}, nil
}

// Sources returns the source columns in order.
func (p NormalizationPlan) Sources() []Column {
	cols := make([]Column, len(p.Entries))
	for i, e := range p.Entries {
		cols[i] = e.Source
	}
	return cols
}

// Targets returns the normalized schema in order.
func (p NormalizationPlan) Targets() []Column {
	cols := make([]Column, len(p.Entries))
	for i, e := range p.Entries {
		cols[i] = e.Target
	}
	return cols
}

// Identity reports whether no entry changes its column.
func (p NormalizationPlan) Identity() bool {
	for _, e := range p.Entries {
		if !e.Identity() {
			return false
		}
	}
	return true
}

// Rewritten returns the entries that change their column.
func (p NormalizationPlan) Rewritten() []PlanEntry {
	var out []PlanEntry
	for _, e := range p.Entries {
		if !e.Identity() {
			out = append(out, e)
		}
	}
	return out
}

// Apply rewrites every row of b in place. Row count and order are preserved.
// Returns ErrRowWidth if a row does not hold one value per plan entry.
func (p NormalizationPlan) Apply(b Batch) error {
	identity := p.Identity()
	for i, row := range b {
		if len(row) != len(p.Entries) {
			return fmt.Errorf("%w: row %d has %d values, want %d", ErrRowWidth, i, len(row), len(p.Entries))
		}
		if identity {
			continue
		}
		for j, e := range p.Entries {
			if !e.Identity() {
				row[j] = e.Transform(row[j])
			}
		}
	}
	return nil
}
