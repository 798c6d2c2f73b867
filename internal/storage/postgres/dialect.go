// Package postgres registers the Postgres dialect on top of pgx's
// database/sql driver.
package postgres

import (
	"fmt"
	"net"
	"net/url"
	"sort"
	"strconv"

	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver

	"github.com/CThaw90/refocus-dataset/internal/storage"
)

func init() {
	storage.RegisterDialect(Dialect)
}

// Dialect numbers its markers across the whole statement ($1, $2, ...) and
// double-quotes identifiers.
var Dialect = storage.Dialect{
	Name:        "postgres",
	DriverName:  "pgx",
	DSN:         DSN,
	QuoteIdent:  quoteIdent,
	Placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	ColumnType:  columnType,
}

func columnType(t storage.ColumnType) string {
	switch t {
	case storage.TypeInteger:
		return "BIGINT"
	case storage.TypeFloat:
		return "DOUBLE PRECISION"
	case storage.TypeDate:
		return "DATE"
	case storage.TypeTimestamp:
		return "TIMESTAMP"
	case storage.TypeSerial:
		return "BIGSERIAL PRIMARY KEY"
	default:
		return "TEXT"
	}
}

// DSN renders a postgres:// URL and checks it with pgx.ParseConfig.
func DSN(cfg storage.Config) (string, error) {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:   "/" + cfg.Database,
	}
	if len(cfg.Params) > 0 {
		keys := make([]string, 0, len(cfg.Params))
		for k := range cfg.Params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		q := url.Values{}
		for _, k := range keys {
			q.Set(k, cfg.Params[k])
		}
		u.RawQuery = q.Encode()
	}
	dsn := u.String()
	if _, err := pgx.ParseConfig(dsn); err != nil {
		return "", fmt.Errorf("postgres: %w", err)
	}
	return dsn, nil
}

func quoteIdent(id string) string { return pgx.Identifier{id}.Sanitize() }
