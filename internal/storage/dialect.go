package storage

import (
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Dialect describes how one SQL backend is reached and how statements are
// spelled for it. Backend packages register a Dialect from init; import
// storage/all to enable every built-in backend.
type Dialect struct {
	// Name is the registry key and the value of Config.Driver.
	Name string
	// DriverName is the database/sql driver to open.
	DriverName string
	// Embedded dialects need only Config.Database (a file path).
	Embedded bool
	// DSN renders a driver connection string from cfg.
	DSN func(cfg Config) (string, error)
	// QuoteIdent quotes a single identifier segment. Nil leaves it bare.
	QuoteIdent func(id string) string
	// Placeholder returns the bind marker for the n-th (1-based) argument of
	// a statement. Nil means "?".
	Placeholder func(n int) string
	// LimitClause renders a row limit. TopStyle dialects put it right after
	// SELECT; others append it. Nil means "LIMIT n".
	LimitClause func(n int) string
	TopStyle    bool
	// Configure tunes the pool after open. Optional.
	Configure func(db *sql.DB)
	// ColumnType spells a portable column type. Nil uses ANSI-ish defaults.
	ColumnType func(ColumnType) string
	// CreateIfMissing wraps a CREATE TABLE statement for backends without
	// CREATE TABLE IF NOT EXISTS. name is unquoted.
	CreateIfMissing func(name, create string) string
	// MaxParams and MaxRows cap one multi-row INSERT. Zero means no cap
	// beyond MaxStatementLength.
	MaxParams int
	MaxRows   int
}

// fits reports whether a statement with rows rows and params bound
// arguments stays within the dialect's caps.
func (d Dialect) fits(rows, params int) bool {
	if d.MaxRows > 0 && rows > d.MaxRows {
		return false
	}
	return d.MaxParams <= 0 || params <= d.MaxParams
}

var (
	dialectsMu sync.RWMutex
	dialects   = map[string]Dialect{}
)

// RegisterDialect makes d available under d.Name. It panics on an
// incomplete dialect or a duplicate name; both are wiring bugs.
func RegisterDialect(d Dialect) {
	if d.Name == "" || d.DriverName == "" || d.DSN == nil {
		panic("storage: RegisterDialect: name, driver and DSN are required")
	}
	dialectsMu.Lock()
	defer dialectsMu.Unlock()
	if _, dup := dialects[d.Name]; dup {
		panic("storage: RegisterDialect called twice for " + d.Name)
	}
	dialects[d.Name] = d
}

// LookupDialect returns the dialect registered under name.
func LookupDialect(name string) (Dialect, error) {
	dialectsMu.RLock()
	defer dialectsMu.RUnlock()
	d, ok := dialects[name]
	if !ok {
		return Dialect{}, fmt.Errorf("%w %q (registered: %s)", ErrUnknownDialect, name, strings.Join(dialectNamesLocked(), ", "))
	}
	return d, nil
}

// Dialects returns the registered names, sorted.
func Dialects() []string {
	dialectsMu.RLock()
	defer dialectsMu.RUnlock()
	return dialectNamesLocked()
}

func dialectNamesLocked() []string {
	names := make([]string, 0, len(dialects))
	for n := range dialects {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// QuestionMark is the positional "?" placeholder used by MySQL and SQLite.
func QuestionMark(int) string { return "?" }

func (d Dialect) quote(id string) string {
	if d.QuoteIdent == nil {
		return id
	}
	return d.QuoteIdent(id)
}

func (d Dialect) placeholder(n int) string {
	if d.Placeholder == nil {
		return "?"
	}
	return d.Placeholder(n)
}

func (d Dialect) limit(n int) string {
	if d.LimitClause == nil {
		return "LIMIT " + strconv.Itoa(n)
	}
	return d.LimitClause(n)
}

// QuoteName quotes a possibly schema-qualified name ("schema.table")
// segment by segment.
func (d Dialect) QuoteName(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = d.quote(p)
	}
	return strings.Join(parts, ".")
}

// insertPrefix renders "INSERT INTO <table> (<cols>) VALUES ".
func (d Dialect) insertPrefix(table string, columns []string) string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(d.QuoteName(table))
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(d.quote(c))
	}
	b.WriteString(") VALUES ")
	return b.String()
}

// valuesGroup renders one "(p, p, ...)" group whose first placeholder is
// argument number first.
func (d Dialect) valuesGroup(first, n int) string {
	var b strings.Builder
	b.WriteByte('(')
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(d.placeholder(first + i))
	}
	b.WriteByte(')')
	return b.String()
}

// SelectSQL renders SELECT <fields|*> FROM <table> [WHERE <where>] [limit].
// where is passed through verbatim; limit <= 0 means no limit.
func (d Dialect) SelectSQL(table string, fields []string, where string, limit int) string {
	var b strings.Builder
	b.WriteString("SELECT ")
	if limit > 0 && d.TopStyle {
		b.WriteString(d.limit(limit))
		b.WriteByte(' ')
	}
	if len(fields) == 0 {
		b.WriteByte('*')
	} else {
		for i, f := range fields {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(d.quote(f))
		}
	}
	b.WriteString(" FROM ")
	b.WriteString(d.QuoteName(table))
	if w := strings.TrimSpace(where); w != "" {
		b.WriteString(" WHERE ")
		b.WriteString(w)
	}
	if limit > 0 && !d.TopStyle {
		b.WriteByte(' ')
		b.WriteString(d.limit(limit))
	}
	return b.String()
}
