// Package mssql registers the SQL Server dialect (go-mssqldb "sqlserver"
// driver).
package mssql

import (
	"fmt"
	"net"
	"net/url"
	"sort"
	"strconv"
	"strings"

	_ "github.com/microsoft/go-mssqldb" // registers the "sqlserver" driver
	"github.com/microsoft/go-mssqldb/msdsn"

	"github.com/CThaw90/refocus-dataset/internal/storage"
)

func init() {
	storage.RegisterDialect(Dialect)
}

// Dialect uses named @pN markers, [bracket] identifiers and SELECT TOP n.
var Dialect = storage.Dialect{
	Name:        "mssql",
	DriverName:  "sqlserver",
	DSN:         DSN,
	QuoteIdent:  quoteIdent,
	Placeholder: func(n int) string { return "@p" + strconv.Itoa(n) },
	LimitClause: func(n int) string { return "TOP " + strconv.Itoa(n) },
	TopStyle:    true,
	ColumnType:  columnType,
	// RPC parameter limit and the row limit of a VALUES list.
	MaxParams: 2100,
	MaxRows:   1000,
	// SQL Server has no CREATE TABLE IF NOT EXISTS.
	CreateIfMissing: func(name, create string) string {
		return "IF OBJECT_ID(N'" + strings.ReplaceAll(name, "'", "''") + "', N'U') IS NULL " + create
	},
}

func columnType(t storage.ColumnType) string {
	switch t {
	case storage.TypeInteger:
		return "BIGINT"
	case storage.TypeFloat:
		return "FLOAT"
	case storage.TypeDate:
		return "DATE"
	case storage.TypeTimestamp:
		return "DATETIME2"
	case storage.TypeSerial:
		return "BIGINT IDENTITY(1,1) PRIMARY KEY"
	default:
		return "NVARCHAR(MAX)"
	}
}

// DSN renders a sqlserver:// URL and validates it with msdsn.Parse.
func DSN(cfg storage.Config) (string, error) {
	q := url.Values{}
	q.Set("database", cfg.Database)
	keys := make([]string, 0, len(cfg.Params))
	for k := range cfg.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		q.Set(k, cfg.Params[k])
	}
	u := url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		RawQuery: q.Encode(),
	}
	dsn := u.String()
	if _, err := msdsn.Parse(dsn); err != nil {
		return "", fmt.Errorf("mssql dsn: %w", err)
	}
	return dsn, nil
}

func quoteIdent(id string) string { return `[` + strings.ReplaceAll(id, `]`, `]]`) + `]` }
