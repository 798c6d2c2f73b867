// Package mysql registers the MySQL dialect, the default sink. Importing it
// (usually through storage/all) makes Config.Driver "mysql" available.
package mysql

import (
	"net"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/CThaw90/refocus-dataset/internal/storage"
)

func init() {
	storage.RegisterDialect(Dialect)
}

// Dialect spells statements with "?" markers and backtick identifiers.
var Dialect = storage.Dialect{
	Name:        "mysql",
	DriverName:  "mysql",
	DSN:         DSN,
	QuoteIdent:  quoteIdent,
	Placeholder: storage.QuestionMark,
	ColumnType:  columnType,
}

func columnType(t storage.ColumnType) string {
	switch t {
	case storage.TypeInteger:
		return "BIGINT"
	case storage.TypeFloat:
		return "DOUBLE"
	case storage.TypeDate:
		return "DATE"
	case storage.TypeTimestamp:
		return "DATETIME"
	case storage.TypeSerial:
		return "BIGINT AUTO_INCREMENT PRIMARY KEY"
	default:
		return "TEXT"
	}
}

// DSN renders cfg with the driver's own formatter so passwords and params
// are escaped correctly.
func DSN(cfg storage.Config) (string, error) {
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	mc.DBName = cfg.Database
	if len(cfg.Params) > 0 {
		mc.Params = make(map[string]string, len(cfg.Params))
		for k, v := range cfg.Params {
			mc.Params[k] = v
		}
	}
	dsn := mc.FormatDSN()
	if _, err := mysql.ParseDSN(dsn); err != nil {
		return "", err
	}
	return dsn, nil
}

func quoteIdent(id string) string { return "`" + strings.ReplaceAll(id, "`", "``") + "`" }
