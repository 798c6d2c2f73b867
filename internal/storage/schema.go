package storage

import (
	"context"
	"fmt"
	"strings"
)

// ColumnType is a portable column type; each dialect spells it.
type ColumnType int

const (
	TypeText ColumnType = iota
	TypeInteger
	TypeFloat
	TypeDate
	TypeTimestamp
	// TypeSerial is an auto-incrementing integer primary key.
	TypeSerial
)

func (t ColumnType) String() string {
	switch t {
	case TypeText:
		return "text"
	case TypeInteger:
		return "integer"
	case TypeFloat:
		return "float"
	case TypeDate:
		return "date"
	case TypeTimestamp:
		return "timestamp"
	case TypeSerial:
		return "serial"
	}
	return "unknown"
}

// Column is one column of a Table. Columns are nullable.
type Column struct {
	Name string
	Type ColumnType
}

// Table describes a destination table for CreateTables.
type Table struct {
	Name    string
	Columns []Column
}

// genericColumnType is used when a dialect does not override ColumnType.
func genericColumnType(t ColumnType) string {
	switch t {
	case TypeInteger:
		return "BIGINT"
	case TypeFloat:
		return "DOUBLE PRECISION"
	case TypeDate:
		return "DATE"
	case TypeTimestamp:
		return "TIMESTAMP"
	case TypeSerial:
		return "BIGINT PRIMARY KEY"
	default:
		return "TEXT"
	}
}

// CreateTableSQL renders a statement creating t unless it already exists.
func (d Dialect) CreateTableSQL(t Table) (string, error) {
	name := strings.TrimSpace(t.Name)
	if name == "" {
		return "", fmt.Errorf("%w: table name must not be empty", ErrConfiguration)
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("%w: table %s has no columns", ErrConfiguration, name)
	}
	spell := d.ColumnType
	if spell == nil {
		spell = genericColumnType
	}
	defs := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		if strings.TrimSpace(c.Name) == "" {
			return "", fmt.Errorf("%w: table %s column %d has no name", ErrConfiguration, name, i)
		}
		defs[i] = d.quote(c.Name) + " " + spell(c.Type)
	}
	create := "CREATE TABLE " + d.QuoteName(name) + " (" + strings.Join(defs, ", ") + ")"
	if d.CreateIfMissing != nil {
		return d.CreateIfMissing(name, create), nil
	}
	return strings.Replace(create, "CREATE TABLE ", "CREATE TABLE IF NOT EXISTS ", 1), nil
}

// CreateTables creates every missing table, each in its own statement.
// Existing tables are left untouched.
func (s *Session) CreateTables(ctx context.Context, tables ...Table) error {
	if !s.IsConnected() {
		return fmt.Errorf("%w: create tables while disconnected", ErrConnection)
	}
	if s.InTransaction() {
		return fmt.Errorf("%w: create tables inside a transaction", ErrTransactionState)
	}
	for _, t := range tables {
		stmt, err := s.dialect.CreateTableSQL(t)
		if err != nil {
			return err
		}
		if err := s.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("storage: create %s: %w", t.Name, err)
		}
		s.logger.Debug("storage: table ready", "table", t.Name)
	}
	return nil
}
