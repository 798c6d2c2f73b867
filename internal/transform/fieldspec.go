// Package transform maps raw feed records onto ordered (columns, values)
// pairs ready for insertion.
//
// A Mapping is a declarative list of FieldSpecs. Each FieldSpec is one of
// three variants fixed at construction time:
//
//	Field("tot_cases").As("cases")              // copy a source field
//	Literal("source", "cdc")                     // constant value
//	Derived("New_case", RollingMean("state", "cases_7_day_mean", 7)).As("cases_7_day_mean")
//
// Derivations may hold state in the save's aggregate.PartitionCache, so
// Mapping.Apply invokes each derivation exactly once per record, in field
// order.
package transform

import (
	"context"

	"github.com/CThaw90/refocus-dataset/internal/aggregate"
	"github.com/CThaw90/refocus-dataset/internal/records"
)

// Derivation computes a column value from a record. source is the FieldSpec's
// source field name (possibly empty) and cache is the partition cache of the
// current save.
type Derivation func(ctx context.Context, rec records.Record, source string, cache *aggregate.PartitionCache) (any, error)

// Kind identifies the FieldSpec variant.
type Kind int

const (
	// KindField reads rec[Source], falling back to the default.
	KindField Kind = iota
	// KindLiteral always yields the same constant.
	KindLiteral
	// KindDerived calls a Derivation.
	KindDerived
)

func (k Kind) String() string {
	switch k {
	case KindField:
		return "field"
	case KindLiteral:
		return "literal"
	case KindDerived:
		return "derived"
	}
	return "unknown"
}

// FieldSpec describes how one output column is produced.
type FieldSpec struct {
	kind       Kind
	source     string
	column     string
	literal    any
	derive     Derivation
	def        any
	hasDefault bool
}

// Field copies the source field into a column of the same name.
func Field(source string) FieldSpec {
	return FieldSpec{kind: KindField, source: source}
}

// Literal writes value into column for every record.
func Literal(column string, value any) FieldSpec {
	return FieldSpec{kind: KindLiteral, column: column, literal: value}
}

// Derived computes the column with fn. source is passed through to fn and
// names the column unless As is used.
func Derived(source string, fn Derivation) FieldSpec {
	return FieldSpec{kind: KindDerived, source: source, derive: fn}
}

// As sets the output column name.
func (f FieldSpec) As(column string) FieldSpec {
	f.column = column
	return f
}

// WithDefault sets the value used when the source field is absent from the
// record. It only applies to Field specs.
func (f FieldSpec) WithDefault(v any) FieldSpec {
	f.def = v
	f.hasDefault = true
	return f
}

// Kind returns the variant.
func (f FieldSpec) Kind() Kind { return f.kind }

// Source returns the source field name.
func (f FieldSpec) Source() string { return f.source }

// Column returns the output column: the explicit column, else the source.
func (f FieldSpec) Column() string {
	if f.column != "" {
		return f.column
	}
	return f.source
}
