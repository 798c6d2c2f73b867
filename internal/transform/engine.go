package transform

import (
	"context"
	"fmt"

	"github.com/CThaw90/refocus-dataset/internal/aggregate"
	"github.com/CThaw90/refocus-dataset/internal/records"
)

// MissingFieldError reports a Field spec whose source is absent from the
// record and which has no default. It indicates a broken mapping and aborts
// the save.
type MissingFieldError struct {
	Source string
	Column string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("transform: field %q (column %q) missing from record and has no default", e.Source, e.Column)
}

// Mapping is the full declarative description of one destination table.
type Mapping struct {
	// Table is the destination table name.
	Table string
	// Fields are applied in order; their columns form the insert column list.
	Fields []FieldSpec
	// Skip, when set, drops records before transformation. Skipped records
	// still count as processed.
	Skip func(records.Record) bool
}

// Columns returns the output column list in field order.
func (m Mapping) Columns() []string {
	cols := make([]string, len(m.Fields))
	for i, f := range m.Fields {
		cols[i] = f.Column()
	}
	return cols
}

// ShouldSkip reports whether rec is filtered out by the Skip predicate.
func (m Mapping) ShouldSkip(rec records.Record) bool {
	return m.Skip != nil && m.Skip(rec)
}

// Validate checks the mapping is usable: a table, at least one field, no
// empty or duplicate columns, and a function on every derived field.
func (m Mapping) Validate() error {
	if m.Table == "" {
		return fmt.Errorf("transform: mapping has no table")
	}
	if len(m.Fields) == 0 {
		return fmt.Errorf("transform: mapping for %s has no fields", m.Table)
	}
	seen := make(map[string]struct{}, len(m.Fields))
	for i, f := range m.Fields {
		col := f.Column()
		if col == "" {
			return fmt.Errorf("transform: %s field %d has no column name", m.Table, i)
		}
		if _, dup := seen[col]; dup {
			return fmt.Errorf("transform: %s column %q declared twice", m.Table, col)
		}
		seen[col] = struct{}{}
		if f.kind == KindDerived && f.derive == nil {
			return fmt.Errorf("transform: %s column %q has no derivation", m.Table, col)
		}
	}
	return nil
}

// Apply resolves every field against rec and returns the column list and the
// matching values. The engine itself has no side effects; derivations may
// update cache.
func (m Mapping) Apply(ctx context.Context, rec records.Record, cache *aggregate.PartitionCache) ([]string, []any, error) {
	columns := make([]string, 0, len(m.Fields))
	values := make([]any, 0, len(m.Fields))
	for _, f := range m.Fields {
		v, err := f.resolve(ctx, rec, cache)
		if err != nil {
			return nil, nil, err
		}
		columns = append(columns, f.Column())
		values = append(values, v)
	}
	return columns, values, nil
}

func (f FieldSpec) resolve(ctx context.Context, rec records.Record, cache *aggregate.PartitionCache) (any, error) {
	switch f.kind {
	case KindDerived:
		v, err := f.derive(ctx, rec, f.source, cache)
		if err != nil {
			return nil, fmt.Errorf("transform: derive %s: %w", f.Column(), err)
		}
		return v, nil
	case KindLiteral:
		return f.literal, nil
	default:
		if v, ok := rec.Lookup(f.source); ok {
			return v, nil
		}
		if f.hasDefault {
			return f.def, nil
		}
		return nil, &MissingFieldError{Source: f.source, Column: f.Column()}
	}
}
