// Package sqlite registers the SQLite dialect (modernc.org/sqlite, pure Go).
// Config.Database is the file path or ":memory:"; host and credentials are
// not needed.
package sqlite

import (
	"database/sql"
	"fmt"
	"net/url"
	"sort"
	"strings"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/CThaw90/refocus-dataset/internal/storage"
)

func init() {
	storage.RegisterDialect(Dialect)
}

// Dialect uses "?" markers and double-quoted identifiers.
var Dialect = storage.Dialect{
	Name:        "sqlite",
	DriverName:  "sqlite",
	Embedded:    true,
	DSN:         DSN,
	QuoteIdent:  quoteIdent,
	Placeholder: storage.QuestionMark,
	Configure:   configure,
	ColumnType:  columnType,
}

// columnType uses SQLite affinities; dates stay ISO-8601 text.
func columnType(t storage.ColumnType) string {
	switch t {
	case storage.TypeInteger:
		return "INTEGER"
	case storage.TypeFloat:
		return "REAL"
	case storage.TypeSerial:
		return "INTEGER PRIMARY KEY"
	default:
		return "TEXT"
	}
}

// DSN returns the database path with Params appended as query options,
// e.g. {"_pragma": "foreign_keys(1)"}.
func DSN(cfg storage.Config) (string, error) {
	path := strings.TrimSpace(cfg.Database)
	if path == "" {
		return "", fmt.Errorf("sqlite: database path must not be empty")
	}
	if len(cfg.Params) == 0 {
		return path, nil
	}
	keys := make([]string, 0, len(cfg.Params))
	for k := range cfg.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	q := url.Values{}
	for _, k := range keys {
		q.Add(k, cfg.Params[k])
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + q.Encode(), nil
}

// configure pins the pool to one connection: every ":memory:" connection is
// its own database, and SQLite allows a single writer anyway.
func configure(db *sql.DB) {
	db.SetMaxOpenConns(1)
}

func quoteIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }
